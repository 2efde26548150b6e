package ctl

import (
	"fmt"
	"net/url"
	"strings"
)

// LookupResponse mirrors GET /api/lookup.
type LookupResponse struct {
	Input       string `json:"input"`
	Code        string `json:"code"`
	Known       bool   `json:"known"`
	Description string `json:"description"`
	Ignored     bool   `json:"ignored"`
}

// Lookup canonicalizes and classifies an error code using the daemon's
// table.
func Lookup(baseURL, code string, jsonOutput bool) error {
	baseURL = strings.TrimRight(baseURL, "/")

	var r LookupResponse
	if err := getJSON(baseURL, "/api/lookup?code="+url.QueryEscape(code), &r); err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(r)
	}

	known := colorize(green, "yes")
	if !r.Known {
		known = colorize(yellow, "no")
	}
	ignored := "no"
	if r.Ignored {
		ignored = colorize(dim, "yes (never notified)")
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "  %-14s %s\n", colorize(dim, "Code:"), colorize(bold, r.Code))
	if r.Input != r.Code {
		fmt.Fprintf(out, "  %-14s %s\n", colorize(dim, "Input:"), r.Input)
	}
	fmt.Fprintf(out, "  %-14s %s\n", colorize(dim, "Description:"), r.Description)
	fmt.Fprintf(out, "  %-14s %s\n", colorize(dim, "In table:"), known)
	fmt.Fprintf(out, "  %-14s %s\n", colorize(dim, "Ignored:"), ignored)
	fmt.Fprintln(out)
	return nil
}
