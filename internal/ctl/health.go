package ctl

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

type healthCheck struct {
	OK    bool   `json:"ok"`
	State string `json:"state,omitempty"`
}

// Health checks the daemon's component health via GET /healthz.
func Health(baseURL string, jsonOutput bool) error {
	baseURL = strings.TrimRight(baseURL, "/")

	code, body, err := getRaw(baseURL, "/healthz", "application/json")
	if err != nil {
		if jsonOutput {
			return printJSON(map[string]any{"healthy": false, "url": baseURL, "error": err.Error()})
		}
		return err
	}

	var resp struct {
		Healthy bool                   `json:"healthy"`
		Checks  map[string]healthCheck `json:"checks"`
	}
	_ = json.Unmarshal(body, &resp)
	healthy := code == 200 && resp.Healthy

	if jsonOutput {
		return printJSON(map[string]any{"healthy": healthy, "url": baseURL, "checks": resp.Checks})
	}

	fmt.Fprintln(out)
	if healthy {
		fmt.Fprintf(out, "  %s  bambu-relayd is reachable at %s\n", colorize(green, "HEALTHY"), colorize(dim, baseURL))
	} else {
		fmt.Fprintf(out, "  %s  bambu-relayd returned HTTP %d at %s\n", colorize(red, "UNHEALTHY"), code, colorize(dim, baseURL))
	}

	names := make([]string, 0, len(resp.Checks))
	for name := range resp.Checks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		c := resp.Checks[name]
		mark := colorize(green, "ok  ")
		if !c.OK {
			mark = colorize(red, "FAIL")
		}
		fmt.Fprintf(out, "    %s  %s %s\n", mark, padRight(name, 16), colorize(dim, c.State))
	}
	fmt.Fprintln(out)

	return nil
}
