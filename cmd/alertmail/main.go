// Alertmail subscribes to the alert topic on the notification broker and
// emails every message it receives. It is the delivery end of
// bambu-relayd's MQTT sink.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/large-farva/bambu-relay/internal/config"
	"github.com/large-farva/bambu-relay/internal/logging"
	"github.com/large-farva/bambu-relay/internal/mailer"
	"github.com/large-farva/bambu-relay/internal/mqttx"
)

func main() {
	var (
		configPath = pflag.StringP("config", "c", "/etc/bambu-relay/bambu-relay.toml", "Path to config TOML")
		logLevel   = pflag.String("log-level", "", "Log level (overrides logging.level)")
	)
	pflag.Parse()

	cfg, err := config.LoadMail(*configPath)
	if err != nil {
		logrus.Fatalf("config load failed: %v", err)
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)

	m := cfg.Mail
	mail, err := mailer.New(mailer.Options{
		Host:     m.SMTPHost,
		Port:     m.SMTPPort,
		Username: m.Username,
		Password: m.Password,
		From:     m.From,
		To:       m.To,
		Subject:  m.Subject,
	}, logger.WithField("component", "mailer"))
	if err != nil {
		logger.Fatalf("mailer setup failed: %v", err)
	}
	bridge := mailer.NewBridge(mail, 64, 30*time.Second, logger.WithField("component", "bridge"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	client := mqttx.New(mqttx.Conn{
		Role:     "email-server",
		Broker:   m.MQTT.Broker,
		ClientID: m.MQTT.ClientID,
		Username: m.MQTT.Username,
		Password: m.MQTT.Password,
		Topic:    m.Topic,
		QoS:      byte(m.MQTT.QoS),
		Handler:  bridge.Handle,
		// Without the subscription there is nothing to do.
		OnSubscribeError: func(err error) { cancel(err) },
	}, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return client.Run(gctx) })
	g.Go(func() error {
		bridge.Run(gctx)
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Fatalf("alertmail failed: %v", err)
	}
	if cause := context.Cause(ctx); cause != nil && !errors.Is(cause, context.Canceled) {
		logger.Fatalf("alertmail stopped: %v", cause)
	}
	logger.Info("alertmail stopped")
}
