package ctl

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/large-farva/bambu-relay/internal/config"
)

// Config fetches and displays the daemon's running configuration. Secrets
// are never sent by the daemon.
func Config(baseURL string, jsonOutput bool) error {
	baseURL = strings.TrimRight(baseURL, "/")

	var raw json.RawMessage
	if err := getJSON(baseURL, "/api/config", &raw); err != nil {
		return err
	}

	if jsonOutput {
		var v any
		_ = json.Unmarshal(raw, &v)
		return printJSON(v)
	}

	var cfg config.Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return err
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, header("  DAEMON CONFIGURATION"))
	fmt.Fprintln(out, rule(50))

	section := func(name string) {
		fmt.Fprintf(out, "\n  %s\n", colorize(bold, "["+name+"]"))
	}
	field := func(key string, val any) {
		fmt.Fprintf(out, "    %-24s %v\n", colorize(dim, key+":"), val)
	}

	section("printer")
	field("host", cfg.Printer.Host)
	field("port", cfg.Printer.Port)
	field("username", cfg.Printer.Username)
	field("ca_file", cfg.Printer.CAFile)
	field("insecure_skip_verify", cfg.Printer.InsecureSkipVerify)
	field("topic", cfg.Printer.Topic)

	section("notify")
	field("sink", cfg.Notify.Sink)
	field("destination", cfg.Notify.Destination)
	field("queue_size", cfg.Notify.QueueSize)
	field("publish_timeout_seconds", cfg.Notify.PublishTimeoutSeconds)
	switch cfg.Notify.Sink {
	case config.SinkMQTT:
		field("mqtt.broker", cfg.Notify.MQTT.Broker)
		field("mqtt.qos", cfg.Notify.MQTT.QoS)
	case config.SinkRedis:
		field("redis.addr", cfg.Notify.Redis.Addr)
		field("redis.db", cfg.Notify.Redis.DB)
	}

	section("session")
	field("baseline_state", cfg.Session.BaselineState)
	field("baseline_error", cfg.Session.BaselineError)
	field("finished_state", cfg.Session.FinishedState)

	section("errors")
	table := cfg.Errors.TableFile
	if table == "" {
		table = "(built-in)"
	}
	field("table_file", table)
	field("ignored", strings.Join(cfg.Errors.Ignored, ", "))

	section("server")
	field("bind", cfg.Server.Bind)

	section("logging")
	field("level", cfg.Logging.Level)
	field("format", cfg.Logging.Format)

	section("demo")
	field("enabled", cfg.Demo.Enabled)
	field("interval_seconds", cfg.Demo.IntervalSeconds)

	fmt.Fprintln(out)
	return nil
}
