package ctl

import (
	"fmt"
	"strings"
	"time"

	"github.com/large-farva/bambu-relay/internal/detector"
	"github.com/large-farva/bambu-relay/internal/relay"
	"github.com/large-farva/bambu-relay/internal/status"
)

// StatusResponse mirrors the JSON returned by GET /api/status.
type StatusResponse struct {
	Name             string           `json:"name"`
	State            string           `json:"state"`
	Mode             string           `json:"mode"`
	UptimeSeconds    int64            `json:"uptime_seconds"`
	Printer          string           `json:"printer"`
	PrinterConnected bool             `json:"printer_connected"`
	Session          detector.Session `json:"session"`
	Last             status.Canonical `json:"last"`
	LastSeen         string           `json:"last_seen"`
	Stats            relay.Stats      `json:"stats"`
	NotifyPending    int              `json:"notify_pending"`
	NotifySink       string           `json:"notify_sink"`
	Destination      string           `json:"destination"`
	WSClients        int              `json:"ws_clients"`
}

// Status fetches the daemon status and prints a formatted summary.
func Status(baseURL string, jsonOutput bool) error {
	baseURL = strings.TrimRight(baseURL, "/")

	var s StatusResponse
	if err := getJSON(baseURL, "/api/status", &s); err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(s)
	}

	uptime := formatDuration(time.Duration(s.UptimeSeconds) * time.Second)

	printer := s.Printer
	switch {
	case s.Mode == "demo":
		printer = colorize(blue, "demo stream")
	case s.PrinterConnected:
		printer += " " + colorize(green, "(connected)")
	default:
		printer += " " + colorize(red, "(not connected)")
	}

	lastSeen := s.LastSeen
	if lastSeen == "" {
		lastSeen = colorize(dim, "never")
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, header("  BAMBU RELAY STATUS"))
	fmt.Fprintln(out, rule(38))
	fmt.Fprintf(out, "  %-12s %s\n", colorize(dim, "Daemon:"), s.Name)
	fmt.Fprintf(out, "  %-12s %s\n", colorize(dim, "State:"), colorize(stateColor(s.State), s.State))
	fmt.Fprintf(out, "  %-12s %s\n", colorize(dim, "Uptime:"), uptime)
	fmt.Fprintf(out, "  %-12s %s\n", colorize(dim, "Printer:"), printer)
	fmt.Fprintf(out, "  %-12s %s\n", colorize(dim, "Job:"), colorize(stateColor(s.Session.LastState), s.Session.LastState))
	fmt.Fprintf(out, "  %-12s %s\n", colorize(dim, "Error:"), colorize(errorCodeColor(s.Session.LastErrorCode), s.Session.LastErrorCode))
	fmt.Fprintf(out, "  %-12s %s\n", colorize(dim, "Task:"), s.Last.TaskLabel)
	fmt.Fprintf(out, "  %-12s %s\n", colorize(dim, "Last seen:"), lastSeen)
	fmt.Fprintf(out, "  %-12s %s -> %s (%d pending)\n", colorize(dim, "Notify:"), s.NotifySink, s.Destination, s.NotifyPending)
	fmt.Fprintf(out, "  %-12s %d received, %d dropped, %d notified\n",
		colorize(dim, "Messages:"), s.Stats.Received, s.Stats.DecodeErrors, s.Stats.Published)
	fmt.Fprintf(out, "  %-12s %s\n", colorize(dim, "Host:"), baseURL)
	fmt.Fprintln(out)

	return nil
}
