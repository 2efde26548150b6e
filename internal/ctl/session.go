package ctl

import (
	"fmt"
	"strings"

	"github.com/large-farva/bambu-relay/internal/detector"
	"github.com/large-farva/bambu-relay/internal/status"
)

type sessionResponse struct {
	Session   detector.Session `json:"session"`
	Last      status.Canonical `json:"last"`
	LastTopic string           `json:"last_topic"`
}

// Session shows the relay's current session state and the last
// normalized status document.
func Session(baseURL string, jsonOutput bool) error {
	baseURL = strings.TrimRight(baseURL, "/")

	var s sessionResponse
	if err := getJSON(baseURL, "/api/session", &s); err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(s)
	}

	topic := s.LastTopic
	if topic == "" {
		topic = colorize(dim, "none yet")
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, header("  SESSION"))
	fmt.Fprintln(out, rule(38))
	fmt.Fprintf(out, "  %-14s %s\n", colorize(dim, "State:"), colorize(stateColor(s.Session.LastState), s.Session.LastState))
	fmt.Fprintf(out, "  %-14s %s\n", colorize(dim, "Error code:"), colorize(errorCodeColor(s.Session.LastErrorCode), s.Session.LastErrorCode))
	fmt.Fprintf(out, "  %-14s %s\n", colorize(dim, "Task:"), s.Last.TaskLabel)
	fmt.Fprintf(out, "  %-14s %s\n", colorize(dim, "Last topic:"), topic)
	fmt.Fprintln(out)

	return nil
}

// Reset asks the daemon to put the session back to its baseline.
func Reset(baseURL string, jsonOutput bool) error {
	var resp struct {
		OK      bool             `json:"ok"`
		Message string           `json:"message"`
		Session detector.Session `json:"session"`
	}
	if err := postJSON(baseURL, "/api/session/reset", nil, &resp); err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(resp)
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "  %s  %s (state %s, error %s)\n",
		colorize(green, "OK"), resp.Message, resp.Session.LastState, resp.Session.LastErrorCode)
	fmt.Fprintln(out)
	return nil
}
