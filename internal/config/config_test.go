package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadLayersOverDefaults(t *testing.T) {
	path := writeFile(t, "relay.toml", `
[printer]
host = "192.168.1.50"

[notify]
sink = "log"
destination = "alerts/x1c"

[errors]
ignored = ["0", "0300-400C", "0500-4003"]
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "192.168.1.50", cfg.Printer.Host)
	assert.Equal(t, 8883, cfg.Printer.Port)
	assert.Equal(t, "bblp", cfg.Printer.Username)
	assert.Equal(t, "#", cfg.Printer.Topic)
	assert.True(t, cfg.Printer.InsecureSkipVerify)
	assert.Equal(t, SinkLog, cfg.Notify.Sink)
	assert.Equal(t, "alerts/x1c", cfg.Notify.Destination)
	assert.Equal(t, 64, cfg.Notify.QueueSize)
	assert.Equal(t, "FINISH", cfg.Session.FinishedState)
	assert.Equal(t, []string{"0", "0300-400C", "0500-4003"}, cfg.Errors.Ignored)
	assert.Equal(t, "127.0.0.1:8090", cfg.Server.Bind)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadParseError(t *testing.T) {
	path := writeFile(t, "bad.toml", "[printer\nhost = ")
	_, err := Load(path)
	assert.ErrorContains(t, err, "parse")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"ok", func(*Config) {}, ""},
		{"no host", func(c *Config) { c.Printer.Host = "" }, "printer.host"},
		{"no host in demo", func(c *Config) { c.Printer.Host = ""; c.Demo.Enabled = true }, ""},
		{"bad port", func(c *Config) { c.Printer.Port = 70000 }, "printer.port"},
		{"empty topic", func(c *Config) { c.Printer.Topic = "" }, "printer.topic"},
		{"unknown sink", func(c *Config) { c.Notify.Sink = "kafka" }, "notify.sink"},
		{"empty destination", func(c *Config) { c.Notify.Destination = "" }, "notify.destination"},
		{"zero queue", func(c *Config) { c.Notify.QueueSize = 0 }, "notify.queue_size"},
		{"zero timeout", func(c *Config) { c.Notify.PublishTimeoutSeconds = 0 }, "notify.publish_timeout_seconds"},
		{"bad qos", func(c *Config) { c.Notify.MQTT.QoS = 3 }, "notify.mqtt.qos"},
		{"servicebus without conn", func(c *Config) { c.Notify.Sink = SinkServiceBus }, "connection_string"},
		{"empty finished state", func(c *Config) { c.Session.FinishedState = "" }, "session.finished_state"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"negative demo interval", func(c *Config) { c.Demo.IntervalSeconds = -1 }, "demo.interval_seconds"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Printer.Host = "printer.local"
			tt.mutate(&cfg)
			err := validate(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestValidateMail(t *testing.T) {
	m := Default().Mail
	assert.ErrorContains(t, ValidateMail(m), "mail.smtp_host")

	m.SMTPHost = "smtp.example.com"
	m.From = "printer@example.com"
	assert.ErrorContains(t, ValidateMail(m), "mail.to")

	m.To = []string{"ops@example.com"}
	assert.NoError(t, ValidateMail(m))
}

func TestReadAccessCode(t *testing.T) {
	p := PrinterConfig{AccessCode: " 12345678 "}
	code, err := p.ReadAccessCode()
	require.NoError(t, err)
	assert.Equal(t, "12345678", code)

	p.AccessCodeFile = writeFile(t, "access_code.txt", "87654321\n")
	code, err = p.ReadAccessCode()
	require.NoError(t, err)
	assert.Equal(t, "87654321", code)

	p.AccessCodeFile = filepath.Join(t.TempDir(), "missing")
	_, err = p.ReadAccessCode()
	assert.Error(t, err)
}

func TestLoadErrorTable(t *testing.T) {
	path := writeFile(t, "hms.toml", `
[[entry]]
codes = ["0300-801E"]
description = "Custom overload."

[[entry]]
codes = ["0300-801E", "0300-800B"]
description = "Shadowed."
`)

	table, err := LoadErrorTable(path)
	require.NoError(t, err)
	require.Len(t, table, 2)
	assert.Equal(t, "Custom overload.", table[0].Description)

	c, err := ErrorsConfig{TableFile: path, Ignored: []string{"0300-400C"}}.Classifier()
	require.NoError(t, err)
	assert.Equal(t, "Custom overload.", c.Classify("0300-801E"))
	assert.Equal(t, "Shadowed.", c.Classify("0300-800B"))
	assert.True(t, c.IsIgnored("0300-400C"))
	assert.True(t, c.IsIgnored("0"))
}

func TestLoadErrorTableRejectsIncompleteEntries(t *testing.T) {
	path := writeFile(t, "hms.toml", `
[[entry]]
codes = []
description = "nothing"
`)
	_, err := LoadErrorTable(path)
	assert.ErrorContains(t, err, "entry 1 has no codes")
}

func TestDefaultClassifier(t *testing.T) {
	c, err := Default().Errors.Classifier()
	require.NoError(t, err)
	assert.Equal(t, "The extruder motor is overloaded.", c.Classify("0300-801E"))
	assert.True(t, c.IsIgnored("0300-400C"))
}

func TestLoadMailIgnoresPrinterSection(t *testing.T) {
	path := writeFile(t, "mail.toml", `
[mail]
smtp_host = "smtp.example.com"
from = "printer@example.com"
to = ["ops@example.com", "me@example.com"]

[mail.mqtt]
broker = "tcp://mqtt.example.org:1883"
`)

	cfg, err := LoadMail(path)
	require.NoError(t, err)
	assert.Equal(t, "tcp://mqtt.example.org:1883", cfg.Mail.MQTT.Broker)
	assert.Equal(t, "alerts", cfg.Mail.Topic)
	assert.Equal(t, "MQTT Alert", cfg.Mail.Subject)
	assert.Len(t, cfg.Mail.To, 2)

	_, err = Load(path)
	assert.ErrorContains(t, err, "printer.host")
}
