package ctl

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
)

// WatchOptions controls the watch command behavior.
type WatchOptions struct {
	Filter []string // event types to show; empty shows all
	JSON   bool     // print each frame verbatim
}

// Watch streams relay events until SIGINT or SIGTERM.
func Watch(baseURL string, opts WatchOptions) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return WatchContext(ctx, baseURL, opts)
}

// WatchContext is Watch bounded by ctx instead of process signals.
func WatchContext(ctx context.Context, baseURL string, opts WatchOptions) error {
	wsURL, err := websocketURL(baseURL)
	if err != nil {
		return err
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("connect %s: %w", wsURL, err)
	}
	defer conn.Close()

	if !opts.JSON {
		fmt.Fprintf(out, "\n  %s %s\n", colorize(green, "watching"), colorize(dim, wsURL))
		if len(opts.Filter) > 0 {
			fmt.Fprintf(out, "  %s\n", colorize(dim, "only: "+strings.Join(opts.Filter, ", ")))
		}
		fmt.Fprintf(out, "%s\n\n", rule(50))
	}

	frames := readFrames(conn)
	allow := newTypeFilter(opts.Filter)

	for {
		select {
		case <-ctx.Done():
			if !opts.JSON {
				fmt.Fprintf(out, "\n%s\n", colorize(dim, "  closing stream"))
			}
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			return nil

		case msg, ok := <-frames:
			if !ok {
				return nil
			}
			if !allow(msg) {
				continue
			}
			if opts.JSON {
				fmt.Fprintln(out, string(msg))
				continue
			}
			renderEvent(msg)
		}
	}
}

// readFrames pumps text frames into a channel that closes when the
// connection does.
func readFrames(conn *websocket.Conn) <-chan []byte {
	ch := make(chan []byte, 16)
	go func() {
		defer close(ch)
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			ch <- msg
		}
	}()
	return ch
}

// newTypeFilter reports whether a frame's "type" is in types. Frames that
// do not parse are always shown.
func newTypeFilter(types []string) func([]byte) bool {
	if len(types) == 0 {
		return func([]byte) bool { return true }
	}
	set := make(map[string]struct{}, len(types))
	for _, t := range types {
		set[strings.TrimSpace(t)] = struct{}{}
	}
	return func(msg []byte) bool {
		var head struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(msg, &head); err != nil {
			return true
		}
		_, ok := set[head.Type]
		return ok
	}
}

func websocketURL(baseURL string) (string, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	u.Path = "/ws"
	u.RawQuery = ""
	return u.String(), nil
}

// wireEvent is the union of the telemetry envelopes the daemon sends.
type wireEvent struct {
	Type string `json:"type"`
	TS   string `json:"ts"`

	// heartbeat
	State    string  `json:"state"`
	Uptime   float64 `json:"uptime_seconds"`
	Received uint64  `json:"received"`

	// state, transition
	Component string `json:"component"`
	Field     string `json:"field"`
	From      string `json:"from"`
	To        string `json:"to"`
	Task      string `json:"task"`

	// notification
	Delivery string `json:"delivery"`
	Text     string `json:"text"`
	Error    string `json:"error"`

	// log
	Level   string `json:"level"`
	Message string `json:"message"`
}

// renderEvent prints one frame. Unknown types are pretty-printed as JSON.
func renderEvent(raw []byte) {
	var ev wireEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		fmt.Fprintf(out, "  %s\n", string(raw))
		return
	}

	ts := colorize(dim, formatEventTime(ev.TS))
	switch ev.Type {
	case "heartbeat":
		fmt.Fprintf(out, "  %s %s  %s  up %s  %s\n", ts,
			colorize(dim, "heartbeat"),
			colorize(stateColor(ev.State), ev.State),
			colorize(dim, formatDuration(time.Duration(ev.Uptime)*time.Second)),
			colorize(dim, fmt.Sprintf("%d msgs", ev.Received)))
	case "state":
		fmt.Fprintf(out, "  %s %s  %s%s\n", ts,
			colorize(bold, "STATE"),
			colorize(dim, "["+ev.Component+"] "),
			arrow(ev.From, ev.To, stateColor))
	case "transition":
		paint := stateColor
		if ev.Field == "error" {
			paint = errorCodeColor
		}
		fmt.Fprintf(out, "  %s %s  %s  %s\n", ts,
			colorize(cyan, padRight(strings.ToUpper(ev.Field), 5)),
			arrow(ev.From, ev.To, paint),
			colorize(dim, ev.Task))
	case "notification":
		line := ev.Text
		if ev.Error != "" {
			line += colorize(red, " ("+ev.Error+")")
		}
		fmt.Fprintf(out, "  %s %s  %s\n", ts, formatDelivery(ev.Delivery), line)
	case "log":
		fmt.Fprintf(out, "  %s %s  %s\n", ts, formatLogLevel(ev.Level), ev.Message)
	default:
		var v any
		_ = json.Unmarshal(raw, &v)
		pretty, err := json.MarshalIndent(v, "  ", "  ")
		if err != nil {
			pretty = raw
		}
		fmt.Fprintf(out, "  %s\n", string(pretty))
	}
}

func arrow(from, to string, paint func(string) string) string {
	return colorize(paint(from), from) + colorize(dim, " -> ") + colorize(paint(to), to)
}

// formatEventTime shortens an RFC 3339 timestamp to local wall-clock time.
func formatEventTime(ts string) string {
	if ts == "" {
		return "        "
	}
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return ts
	}
	return t.Local().Format("15:04:05")
}

func formatLogLevel(level string) string {
	switch level {
	case "info":
		return colorize(green, "INFO ")
	case "warn", "warning":
		return colorize(yellow, "WARN ")
	case "error":
		return colorize(red, "ERROR")
	default:
		return padRight(level, 5)
	}
}

func formatDelivery(d string) string {
	switch d {
	case "sent":
		return colorize(green, "SENT ")
	case "queued":
		return colorize(blue, "QUEUE")
	case "dropped":
		return colorize(yellow, "DROP ")
	case "failed":
		return colorize(red, "FAIL ")
	default:
		return padRight(d, 5)
	}
}
