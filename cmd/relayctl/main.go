// Relayctl queries and controls a running bambu-relayd over its HTTP API
// and streams live events over WebSocket.
package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/large-farva/bambu-relay/internal/ctl"
)

// errUsage makes main print usage and exit 2.
var errUsage = errors.New("usage")

type command struct {
	name  string
	args  string
	help  string
	group string
	run   func(host string, args []string) error
}

func main() {
	var (
		host    = pflag.StringP("host", "H", "http://127.0.0.1:8090", "relay daemon URL")
		jsonOut = pflag.Bool("json", false, "print raw JSON instead of formatted text")
		filter  = pflag.StringSlice("filter", nil, "event types shown by watch (comma-separated)")
	)
	// Flags after the command name belong to the command.
	pflag.CommandLine.SetInterspersed(false)
	pflag.Parse()

	commands := []command{
		{name: "status", group: "query", help: "Daemon state, printer connection and session",
			run: func(h string, _ []string) error { return ctl.Status(h, *jsonOut) }},
		{name: "health", group: "query", help: "Component health checks",
			run: func(h string, _ []string) error { return ctl.Health(h, *jsonOut) }},
		{name: "version", group: "query", help: "CLI and daemon versions",
			run: func(h string, _ []string) error { return ctl.VersionInfo(h, *jsonOut) }},
		{name: "session", group: "query", help: "Tracked job state and error code",
			run: func(h string, _ []string) error { return ctl.Session(h, *jsonOut) }},
		{name: "stats", group: "query", help: "Message and notification counters",
			run: func(h string, _ []string) error { return ctl.Stats(h, *jsonOut) }},
		{name: "config", group: "query", help: "Effective daemon configuration",
			run: func(h string, _ []string) error { return ctl.Config(h, *jsonOut) }},
		{name: "events", args: "[--limit N]", group: "query", help: "Recent notifications, newest first",
			run: func(h string, args []string) error {
				fs := pflag.NewFlagSet("events", pflag.ContinueOnError)
				limit := fs.Int("limit", 20, "number of events to show")
				if err := fs.Parse(args); err != nil {
					return errUsage
				}
				return ctl.Events(h, *limit, *jsonOut)
			}},
		{name: "lookup", args: "CODE", group: "query", help: "Canonicalize and describe an error code",
			run: func(h string, args []string) error {
				if len(args) != 1 {
					return errUsage
				}
				return ctl.Lookup(h, args[0], *jsonOut)
			}},
		{name: "reset", group: "control", help: "Reset the session to its baseline",
			run: func(h string, _ []string) error { return ctl.Reset(h, *jsonOut) }},
		{name: "watch", group: "live", help: "Stream live events (Ctrl-C to stop)",
			run: func(h string, _ []string) error {
				return ctl.Watch(h, ctl.WatchOptions{Filter: *filter, JSON: *jsonOut})
			}},
	}

	if pflag.NArg() < 1 {
		usage(commands)
		os.Exit(2)
	}

	name := pflag.Arg(0)
	for _, c := range commands {
		if c.name != name {
			continue
		}
		err := c.run(*host, pflag.Args()[1:])
		switch {
		case errors.Is(err, errUsage):
			fmt.Fprintf(os.Stderr, "usage: relayctl %s %s\n", c.name, c.args)
			os.Exit(2)
		case err != nil:
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
		return
	}

	fmt.Fprintf(os.Stderr, "unknown command %q\n", name)
	usage(commands)
	os.Exit(2)
}

func usage(commands []command) {
	var b strings.Builder
	b.WriteString("\n  relayctl - bambu-relay control CLI\n\n")
	b.WriteString("  USAGE\n    relayctl [flags] <command> [command-flags]\n")

	group := ""
	for _, c := range commands {
		if c.group != group {
			group = c.group
			fmt.Fprintf(&b, "\n  COMMANDS (%s)\n", group)
		}
		fmt.Fprintf(&b, "    %-18s %s\n", strings.TrimSpace(c.name+" "+c.args), c.help)
	}

	b.WriteString("\n  FLAGS\n")
	b.WriteString(pflag.CommandLine.FlagUsages())
	b.WriteString("\n  watch --filter accepts: heartbeat, state, transition, notification, log\n\n")
	fmt.Fprint(os.Stderr, b.String())
}
