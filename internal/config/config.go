// Package config handles loading, defaulting, and validation of the relay's
// TOML configuration file. Every section maps to a typed struct so the rest
// of the codebase gets strong typing without manual key lookups.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/large-farva/bambu-relay/internal/hms"
)

// Config is the top-level configuration, mirroring the TOML sections.
type Config struct {
	Printer PrinterConfig `toml:"printer" json:"printer"`
	Notify  NotifyConfig  `toml:"notify"  json:"notify"`
	Session SessionConfig `toml:"session" json:"session"`
	Errors  ErrorsConfig  `toml:"errors"  json:"errors"`
	Server  ServerConfig  `toml:"server"  json:"server"`
	Logging LoggingConfig `toml:"logging" json:"logging"`
	Demo    DemoConfig    `toml:"demo"    json:"demo"`
	Mail    MailConfig    `toml:"mail"    json:"mail"`
}

type PrinterConfig struct {
	Host               string `toml:"host"                 json:"host"`
	Port               int    `toml:"port"                 json:"port"`
	Username           string `toml:"username"             json:"username"`
	AccessCode         string `toml:"access_code"          json:"-"`
	AccessCodeFile     string `toml:"access_code_file"     json:"access_code_file"`
	CAFile             string `toml:"ca_file"              json:"ca_file"`
	InsecureSkipVerify bool   `toml:"insecure_skip_verify" json:"insecure_skip_verify"`
	Topic              string `toml:"topic"                json:"topic"`
	ClientID           string `toml:"client_id"            json:"client_id"`
}

type NotifyConfig struct {
	Sink                  string           `toml:"sink"                    json:"sink"`
	Destination           string           `toml:"destination"             json:"destination"`
	QueueSize             int              `toml:"queue_size"              json:"queue_size"`
	PublishTimeoutSeconds int              `toml:"publish_timeout_seconds" json:"publish_timeout_seconds"`
	MQTT                  MQTTConfig       `toml:"mqtt"                    json:"mqtt"`
	Redis                 RedisConfig      `toml:"redis"                   json:"redis"`
	ServiceBus            ServiceBusConfig `toml:"servicebus"              json:"servicebus"`
}

// MQTTConfig describes a plain broker connection. It is shared by the
// notification sink and the alert mailer.
type MQTTConfig struct {
	Broker   string `toml:"broker"    json:"broker"`
	Username string `toml:"username"  json:"username"`
	Password string `toml:"password"  json:"-"`
	ClientID string `toml:"client_id" json:"client_id"`
	QoS      int    `toml:"qos"       json:"qos"`
}

type RedisConfig struct {
	Addr     string `toml:"addr"     json:"addr"`
	Password string `toml:"password" json:"-"`
	DB       int    `toml:"db"       json:"db"`
}

type ServiceBusConfig struct {
	ConnectionString string `toml:"connection_string" json:"-"`
}

type SessionConfig struct {
	BaselineState string `toml:"baseline_state" json:"baseline_state"`
	BaselineError string `toml:"baseline_error" json:"baseline_error"`
	FinishedState string `toml:"finished_state" json:"finished_state"`
}

type ErrorsConfig struct {
	TableFile string   `toml:"table_file" json:"table_file"`
	Ignored   []string `toml:"ignored"    json:"ignored"`
}

type ServerConfig struct {
	Bind string `toml:"bind" json:"bind"`
}

type LoggingConfig struct {
	Level  string `toml:"level"  json:"level"`
	Format string `toml:"format" json:"format"`
}

type DemoConfig struct {
	Enabled         bool `toml:"enabled"          json:"enabled"`
	IntervalSeconds int  `toml:"interval_seconds" json:"interval_seconds"`
}

type MailConfig struct {
	MQTT     MQTTConfig `toml:"mqtt"      json:"mqtt"`
	Topic    string     `toml:"topic"     json:"topic"`
	SMTPHost string     `toml:"smtp_host" json:"smtp_host"`
	SMTPPort int        `toml:"smtp_port" json:"smtp_port"`
	Username string     `toml:"username"  json:"username"`
	Password string     `toml:"password"  json:"-"`
	From     string     `toml:"from"      json:"from"`
	To       []string   `toml:"to"        json:"to"`
	Subject  string     `toml:"subject"   json:"subject"`
}

// Sink names accepted in notify.sink.
const (
	SinkMQTT       = "mqtt"
	SinkRedis      = "redis"
	SinkServiceBus = "servicebus"
	SinkLog        = "log"
)

// Default returns a Config populated with sane defaults. Values here are
// used whenever the TOML file omits a field.
func Default() Config {
	return Config{
		Printer: PrinterConfig{
			Port:               8883,
			Username:           "bblp",
			InsecureSkipVerify: true,
			Topic:              "#",
			ClientID:           "bambu-relay",
		},
		Notify: NotifyConfig{
			Sink:                  SinkMQTT,
			Destination:           "alerts/h2d",
			QueueSize:             64,
			PublishTimeoutSeconds: 10,
			MQTT: MQTTConfig{
				Broker:   "tcp://localhost:1883",
				ClientID: "bambu-relay-notify",
				QoS:      1,
			},
			Redis: RedisConfig{
				Addr: "localhost:6379",
			},
		},
		Session: SessionConfig{
			BaselineState: "FINISH",
			BaselineError: hms.NoError,
			FinishedState: "FINISH",
		},
		Errors: ErrorsConfig{
			Ignored: hms.DefaultIgnored(),
		},
		Server: ServerConfig{
			Bind: "127.0.0.1:8090",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Demo: DemoConfig{
			Enabled:         false,
			IntervalSeconds: 3,
		},
		Mail: MailConfig{
			MQTT: MQTTConfig{
				Broker:   "tcp://localhost:1883",
				ClientID: "alertmail",
				QoS:      1,
			},
			Topic:    "alerts",
			SMTPPort: 587,
			Subject:  "MQTT Alert",
		},
	}
}

// Load reads the TOML file at path, layers it on top of the defaults, and
// validates the result. An error is returned if the file can't be read,
// parsed, or if any constraint is violated.
func Load(path string) (Config, error) {
	cfg, err := read(path)
	if err != nil {
		return cfg, err
	}

	if err := validate(cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// LoadMail is Load for the alert mailer: only the [mail] and [logging]
// sections are validated, so the mailer can share the relay's file or
// use one of its own.
func LoadMail(path string) (Config, error) {
	cfg, err := read(path)
	if err != nil {
		return cfg, err
	}
	if err := ValidateMail(cfg.Mail); err != nil {
		return cfg, err
	}
	if err := validateLogging(cfg.Logging); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func read(path string) (Config, error) {
	cfg := Default()

	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	if err := toml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// ReadAccessCode returns the printer access code, reading it from
// access_code_file when set. Surrounding whitespace is trimmed.
func (p PrinterConfig) ReadAccessCode() (string, error) {
	if p.AccessCodeFile == "" {
		return strings.TrimSpace(p.AccessCode), nil
	}
	b, err := os.ReadFile(p.AccessCodeFile)
	if err != nil {
		return "", fmt.Errorf("read access code: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}

func validate(cfg Config) error {
	if !cfg.Demo.Enabled && cfg.Printer.Host == "" {
		return errors.New("printer.host must not be empty unless demo.enabled is set")
	}
	if cfg.Printer.Port <= 0 || cfg.Printer.Port > 65535 {
		return errors.New("printer.port must be between 1 and 65535")
	}
	if cfg.Printer.Topic == "" {
		return errors.New("printer.topic must not be empty")
	}
	switch cfg.Notify.Sink {
	case SinkMQTT, SinkRedis, SinkServiceBus, SinkLog:
	default:
		return fmt.Errorf("notify.sink %q is not one of mqtt, redis, servicebus, log", cfg.Notify.Sink)
	}
	if cfg.Notify.Destination == "" {
		return errors.New("notify.destination must not be empty")
	}
	if cfg.Notify.QueueSize < 1 {
		return errors.New("notify.queue_size must be >= 1")
	}
	if cfg.Notify.PublishTimeoutSeconds < 1 {
		return errors.New("notify.publish_timeout_seconds must be >= 1")
	}
	if cfg.Notify.MQTT.QoS < 0 || cfg.Notify.MQTT.QoS > 2 {
		return errors.New("notify.mqtt.qos must be 0, 1 or 2")
	}
	if cfg.Notify.Sink == SinkServiceBus && cfg.Notify.ServiceBus.ConnectionString == "" {
		return errors.New("notify.servicebus.connection_string is required for the servicebus sink")
	}
	if cfg.Session.FinishedState == "" {
		return errors.New("session.finished_state must not be empty")
	}
	if err := validateLogging(cfg.Logging); err != nil {
		return err
	}
	if cfg.Demo.IntervalSeconds < 0 {
		return errors.New("demo.interval_seconds must be >= 0")
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	if l.Format != "text" && l.Format != "json" {
		return errors.New("logging.format must be text or json")
	}
	return nil
}

// ValidateMail checks the settings the alert mailer needs. The relay
// daemon does not require them.
func ValidateMail(m MailConfig) error {
	if m.MQTT.Broker == "" {
		return errors.New("mail.mqtt.broker must not be empty")
	}
	if m.Topic == "" {
		return errors.New("mail.topic must not be empty")
	}
	if m.MQTT.QoS < 0 || m.MQTT.QoS > 2 {
		return errors.New("mail.mqtt.qos must be 0, 1 or 2")
	}
	if m.SMTPHost == "" {
		return errors.New("mail.smtp_host must not be empty")
	}
	if m.From == "" {
		return errors.New("mail.from must not be empty")
	}
	if len(m.To) == 0 {
		return errors.New("mail.to must list at least one recipient")
	}
	return nil
}
