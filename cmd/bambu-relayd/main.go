// Bambu-relayd watches a Bambu Lab printer's MQTT report stream and sends a
// short alert whenever a print finishes or a new fault appears.
//
// It loads configuration, connects to the printer (or runs a demo stream),
// and serves a small HTTP/WebSocket status API. Shutdown is handled
// gracefully on SIGINT or SIGTERM; queued alerts are flushed first.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/large-farva/bambu-relay/internal/app"
	"github.com/large-farva/bambu-relay/internal/config"
	"github.com/large-farva/bambu-relay/internal/logging"
)

func main() {
	var (
		configPath = pflag.StringP("config", "c", "/etc/bambu-relay/bambu-relay.toml", "Path to config TOML")
		bind       = pflag.String("bind", "", "HTTP bind address (overrides server.bind)")
		logLevel   = pflag.String("log-level", "", "Log level (overrides logging.level)")
	)
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.Fatalf("config load failed: %v", err)
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}

	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	logger.WithFields(logrus.Fields{
		"version": app.Version,
		"config":  *configPath,
	}).Info("bambu-relayd starting")

	a, err := app.New(app.Options{
		Logger:     logger,
		Cfg:        cfg,
		ConfigPath: *configPath,
		Bind:       *bind,
	})
	if err != nil {
		logger.Fatalf("startup failed: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Run(ctx); err != nil {
		logger.Fatalf("bambu-relayd failed: %v", err)
	}
	logger.Info("bambu-relayd stopped")
}
