// Package app wires together the HTTP server, WebSocket hub, notifier, and
// either the live printer subscription or the demo runner. It owns the
// daemon's lifecycle and is the single source of truth for the current
// operating state.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/large-farva/bambu-relay/internal/config"
	"github.com/large-farva/bambu-relay/internal/demo"
	"github.com/large-farva/bambu-relay/internal/detector"
	"github.com/large-farva/bambu-relay/internal/hms"
	"github.com/large-farva/bambu-relay/internal/mqttx"
	"github.com/large-farva/bambu-relay/internal/notify"
	"github.com/large-farva/bambu-relay/internal/relay"
	"github.com/large-farva/bambu-relay/internal/telemetry"
	"github.com/large-farva/bambu-relay/internal/ws"
)

const component = "bambu-relayd"

// Options holds everything the App needs from the caller.
type Options struct {
	Logger     logrus.FieldLogger
	Cfg        config.Config
	ConfigPath string
	Bind       string

	// Sink overrides the sink selected by notify.sink. Used by tests.
	Sink notify.Sink
}

// App is the top-level daemon process.
type App struct {
	log        logrus.FieldLogger
	cfg        config.Config
	configPath string
	bind       string
	server     *http.Server

	startedAt time.Time
	state     atomic.Value // current state string (BOOTING, CONNECTING, RUNNING, ...)

	wsHub      *ws.Hub
	classifier *hms.Classifier
	relay      *relay.Relay
	dispatcher *notify.Dispatcher

	printer      *mqttx.Client // nil in demo mode
	notifyClient *mqttx.Client // nil unless notify.sink is mqtt
}

// New builds an App in the BOOTING state: error table, detector, sink,
// dispatcher, and relay. Brokers are not contacted until Run, except Redis
// which is pinged when selected.
func New(opts Options) (*App, error) {
	a := &App{
		log:        opts.Logger,
		cfg:        opts.Cfg,
		configPath: opts.ConfigPath,
		bind:       opts.Bind,
		startedAt:  time.Now(),
		wsHub:      ws.NewHub(opts.Logger.WithField("component", "ws")),
	}
	a.state.Store("BOOTING")

	classifier, err := a.cfg.Errors.Classifier()
	if err != nil {
		return nil, err
	}
	a.classifier = classifier

	sink := opts.Sink
	if sink == nil {
		sink, err = a.buildSink()
		if err != nil {
			return nil, err
		}
	}

	// The dispatcher reports back into the relay, which is built after it.
	var rl *relay.Relay
	a.dispatcher = notify.NewDispatcher(sink, a.cfg.Notify.Destination,
		a.log.WithField("component", "notify"),
		notify.WithQueueSize(a.cfg.Notify.QueueSize),
		notify.WithPublishTimeout(time.Duration(a.cfg.Notify.PublishTimeoutSeconds)*time.Second),
		notify.WithOnPublished(func(ev detector.Event, text string, err error) {
			rl.Published(ev, text, err)
		}),
	)

	rl = relay.New(relay.Options{
		Detector: detector.New(classifier, a.cfg.Session.FinishedState),
		Baseline: detector.Session{
			LastState:     a.cfg.Session.BaselineState,
			LastErrorCode: a.cfg.Session.BaselineError,
		},
		Notifier: a.dispatcher,
		Hub:      a.wsHub,
		Logger:   a.log.WithField("component", "relay"),
	})
	a.relay = rl

	if !a.cfg.Demo.Enabled {
		if a.printer, err = a.buildPrinter(); err != nil {
			return nil, err
		}
	}

	return a, nil
}

func (a *App) buildSink() (notify.Sink, error) {
	n := a.cfg.Notify
	switch n.Sink {
	case config.SinkMQTT:
		a.notifyClient = mqttx.New(mqttx.Conn{
			Role:     "email-server",
			Broker:   n.MQTT.Broker,
			ClientID: n.MQTT.ClientID,
			Username: n.MQTT.Username,
			Password: n.MQTT.Password,
			QoS:      byte(n.MQTT.QoS),
			OnState:  a.componentState("email-server"),
		}, a.log)
		return mqttx.Sink{Client: a.notifyClient}, nil
	case config.SinkRedis:
		s, err := notify.NewRedisSink(notify.RedisOptions{
			Addr:     n.Redis.Addr,
			Password: n.Redis.Password,
			DB:       n.Redis.DB,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.SinkServiceBus:
		s, err := notify.NewServiceBusSink(n.ServiceBus.ConnectionString)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.SinkLog:
		return notify.LogSink{Log: a.log.WithField("component", "notify")}, nil
	default:
		return nil, fmt.Errorf("unknown notify sink %q", n.Sink)
	}
}

func (a *App) buildPrinter() (*mqttx.Client, error) {
	p := a.cfg.Printer
	code, err := p.ReadAccessCode()
	if err != nil {
		return nil, err
	}
	tlsCfg, err := mqttx.TLSConfig(p.CAFile, p.InsecureSkipVerify)
	if err != nil {
		return nil, err
	}
	return mqttx.New(mqttx.Conn{
		Role:      "bambu",
		Broker:    mqttx.PrinterBroker(p.Host, p.Port),
		ClientID:  p.ClientID,
		Username:  p.Username,
		Password:  code,
		TLS:       tlsCfg,
		KeepAlive: 60 * time.Second,
		Topic:     p.Topic,
		Handler:   a.ingest,
		OnState: func(from, to string) {
			a.componentState("bambu")(from, to)
			switch to {
			case mqttx.StateConnected:
				a.transition("RUNNING")
			case mqttx.StateReconnecting:
				a.transition("RECONNECTING")
			}
		},
	}, a.log), nil
}

func (a *App) ingest(topic string, payload []byte) {
	_, _ = a.relay.Ingest(topic, payload)
}

// Run starts the HTTP server, WebSocket hub, heartbeat ticker, broker
// clients, and either the printer subscription or the demo runner. It
// blocks until the context is cancelled or a component fails.
func (a *App) Run(ctx context.Context) error {
	bind := a.bind
	if bind == "" && a.cfg.Server.Bind != "" {
		bind = a.cfg.Server.Bind
	}
	if bind == "" {
		bind = "127.0.0.1:8090"
	}

	a.server = &http.Server{
		Addr:              bind,
		Handler:           a.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ln, err := net.Listen("tcp", bind)
	if err != nil {
		return err
	}
	a.log.Infof("listening on http://%s", bind)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.wsHub.Run(ctx)
		return nil
	})
	g.Go(func() error {
		a.heartbeatLoop(ctx)
		return nil
	})

	if a.notifyClient != nil {
		// Disconnected by dispatcher.Close once the queue has drained.
		g.Go(func() error {
			if err := a.notifyClient.Connect(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	if a.cfg.Demo.Enabled {
		r := demo.New(a.wsHub, a.ingest)
		if a.cfg.Demo.IntervalSeconds > 0 {
			r.Interval = time.Duration(a.cfg.Demo.IntervalSeconds) * time.Second
		}
		g.Go(func() error {
			r.Run(ctx, a.transition)
			return nil
		})
	} else {
		a.transition("CONNECTING")
		g.Go(func() error { return a.printer.Run(ctx) })
	}

	g.Go(func() error {
		<-ctx.Done()
		a.log.Info("shutdown requested")
		a.transition("STOPPING")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		if err := a.server.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	err = g.Wait()
	if cerr := a.dispatcher.Close(); cerr != nil {
		a.log.WithError(cerr).Warn("closing notifier")
	}
	return err
}

// transition atomically updates the daemon state and broadcasts the change
// to all connected WebSocket clients.
func (a *App) transition(newState string) {
	old, _ := a.state.Swap(newState).(string)
	if old == newState {
		return
	}
	a.wsHub.BroadcastJSON(telemetry.NewStateTransition(component, old, newState))
}

func (a *App) componentState(name string) func(from, to string) {
	return func(from, to string) {
		a.wsHub.BroadcastJSON(telemetry.NewStateTransition(name, from, to))
	}
}

// heartbeatLoop sends a periodic heartbeat event so clients can detect
// connectivity and track uptime without polling.
func (a *App) heartbeatLoop(ctx context.Context) {
	t := time.NewTicker(10 * time.Second)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			stats := a.relay.Stats()
			a.wsHub.BroadcastJSON(telemetry.NewHeartbeat(a.State(), time.Since(a.startedAt), stats.Received, stats.Published))
		}
	}
}

// State returns the current daemon state.
func (a *App) State() string {
	s, _ := a.state.Load().(string)
	return s
}
