package ctl

import (
	"fmt"
	"strings"
	"time"
)

// Stats shows the relay's message and notification counters.
func Stats(baseURL string, jsonOutput bool) error {
	baseURL = strings.TrimRight(baseURL, "/")

	var s StatusResponse
	if err := getJSON(baseURL, "/api/status", &s); err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(map[string]any{
			"uptime_seconds": s.UptimeSeconds,
			"stats":          s.Stats,
			"notify_pending": s.NotifyPending,
			"ws_clients":     s.WSClients,
		})
	}

	st := s.Stats
	row := func(label string, v uint64, color string) {
		val := fmt.Sprintf("%d", v)
		if v > 0 && color != "" {
			val = colorize(color, val)
		}
		fmt.Fprintf(out, "  %-20s %s\n", label, val)
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, header("  RELAY STATISTICS"))
	fmt.Fprintln(out, rule(42))
	fmt.Fprintf(out, "  %-20s %s\n", "Uptime:", formatDuration(time.Duration(s.UptimeSeconds)*time.Second))
	row("Messages received:", st.Received, "")
	row("Undecodable:", st.DecodeErrors, yellow)
	row("Transitions:", st.Transitions, "")
	row("Events:", st.Events, "")
	row("Queued:", st.Enqueued, "")
	row("Queue drops:", st.NotifyDropped, red)
	row("Published:", st.Published, green)
	row("Publish failures:", st.PublishFailures, red)
	fmt.Fprintf(out, "  %-20s %d\n", "Pending:", s.NotifyPending)
	fmt.Fprintf(out, "  %-20s %d\n", "Watchers:", s.WSClients)
	fmt.Fprintln(out)
	return nil
}
