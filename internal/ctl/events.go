package ctl

import (
	"fmt"
	"strings"

	"github.com/large-farva/bambu-relay/internal/detector"
	"github.com/large-farva/bambu-relay/internal/notify"
)

// Events lists the most recent notification events, newest first.
func Events(baseURL string, limit int, jsonOutput bool) error {
	baseURL = strings.TrimRight(baseURL, "/")

	var resp struct {
		Events []detector.Event `json:"events"`
	}
	if err := getJSON(baseURL, fmt.Sprintf("/api/events?limit=%d", limit), &resp); err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(resp)
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, header("  RECENT NOTIFICATIONS"))
	fmt.Fprintln(out, rule(60))

	if len(resp.Events) == 0 {
		fmt.Fprintf(out, "  %s\n\n", colorize(dim, "no notifications since the daemon started"))
		return nil
	}

	for _, ev := range resp.Events {
		kind := colorize(green, padRight("DONE", 6))
		if ev.Kind == detector.KindErrorOccurred {
			kind = colorize(red, padRight("ERROR", 6))
		}
		fmt.Fprintf(out, "  %s  %s  %s\n",
			colorize(dim, ev.At.Local().Format("2006-01-02 15:04:05")),
			kind,
			notify.Format(ev),
		)
	}
	fmt.Fprintln(out)
	return nil
}
