// Package ctl implements the relayctl commands: thin HTTP and WebSocket
// clients for a running bambu-relayd plus terminal rendering.
package ctl

import (
	"fmt"
	"os"
	"strings"
	"time"
)

const (
	reset  = "\033[0m"
	bold   = "\033[1m"
	dim    = "\033[2m"
	red    = "\033[31m"
	green  = "\033[32m"
	yellow = "\033[33m"
	blue   = "\033[34m"
	cyan   = "\033[36m"
	white  = "\033[37m"
)

// stateColors covers daemon, connection and printer job states. Printer
// states outside this table render white.
var stateColors = map[string]string{
	"RUNNING":      green,
	"CONNECTED":    green,
	"FINISH":       green,
	"CONNECTING":   yellow,
	"RECONNECTING": yellow,
	"PAUSE":        yellow,
	"PREPARE":      yellow,
	"DEMO":         blue,
	"IDLE":         cyan,
	"FAILED":       red,
	"DISCONNECTED": red,
	"BOOTING":      dim,
	"STOPPING":     dim,
}

// colorEnabled is false whenever output is redirected, including in tests.
func colorEnabled() bool {
	if out != os.Stdout {
		return false
	}
	fi, err := os.Stdout.Stat()
	return err == nil && fi.Mode()&os.ModeCharDevice != 0
}

func stateColor(state string) string {
	if c, ok := stateColors[state]; ok {
		return c
	}
	return white
}

// errorCodeColor is green for the no-error code and red otherwise.
func errorCodeColor(code string) string {
	if code == "0" {
		return green
	}
	return red
}

func colorize(color, text string) string {
	if color == "" || !colorEnabled() {
		return text
	}
	return color + text + reset
}

func header(title string) string { return colorize(bold, title) }

func rule(width int) string {
	return colorize(dim, "  "+strings.Repeat("─", width))
}

func padRight(s string, width int) string {
	if n := width - len(s); n > 0 {
		return s + strings.Repeat(" ", n)
	}
	return s
}

// formatDuration renders "2h 14m 8s", "3m 5s" or "45s".
func formatDuration(d time.Duration) string {
	d = d.Truncate(time.Second)
	h, m, s := int(d.Hours()), int(d.Minutes())%60, int(d.Seconds())%60
	switch {
	case h > 0:
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	case m > 0:
		return fmt.Sprintf("%dm %ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}
