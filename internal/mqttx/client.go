// Package mqttx wraps the paho MQTT client for the two roles the relay
// plays: subscribing to a printer's report stream and publishing alerts
// to a plain broker.
package mqttx

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"
)

// Connection states reported through Conn.OnState.
const (
	StateConnecting   = "CONNECTING"
	StateConnected    = "CONNECTED"
	StateReconnecting = "RECONNECTING"
	StateDisconnected = "DISCONNECTED"
)

// Handler receives every message delivered on a subscription. Calls are
// made one at a time, in arrival order.
type Handler func(topic string, payload []byte)

// Conn describes one broker connection.
type Conn struct {
	// Role names the connection in logs, e.g. "bambu" or "email-server".
	Role      string
	Broker    string
	ClientID  string
	Username  string
	Password  string
	TLS       *tls.Config
	KeepAlive time.Duration

	// Subscription established on every (re)connect. Empty Topic means
	// publish-only.
	Topic   string
	QoS     byte
	Handler Handler

	// OnState, when set, observes connection state changes.
	OnState func(from, to string)

	// OnSubscribeError, when set, is called if the broker refuses the
	// subscription or it times out.
	OnSubscribeError func(error)
}

// ErrSubscriptionRejected is reported when the broker answers a
// SUBSCRIBE with the failure return code.
var ErrSubscriptionRejected = errors.New("subscription rejected by broker")

const subackFailure = 0x80

// Client is a connected, auto-reconnecting MQTT session.
type Client struct {
	conn  Conn
	log   logrus.FieldLogger
	mqtt  mqtt.Client
	state atomic.Value
}

// PrinterBroker returns the TLS broker URL for a printer's LAN endpoint.
func PrinterBroker(host string, port int) string {
	return fmt.Sprintf("ssl://%s:%d", host, port)
}

// TLSConfig builds the client TLS settings for a printer connection. The
// CA file is optional; printers present a self-signed certificate whose
// name rarely matches the host, hence insecure.
func TLSConfig(caFile string, insecure bool) (*tls.Config, error) {
	cfg := &tls.Config{
		InsecureSkipVerify: insecure, //nolint:gosec // printer LAN certificates are self-signed
		MinVersion:         tls.VersionTLS12,
	}
	if caFile == "" {
		return cfg, nil
	}
	pem, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("read ca file: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("ca file %s: no certificates found", caFile)
	}
	cfg.RootCAs = pool
	return cfg, nil
}

// New builds a client without connecting.
func New(conn Conn, log logrus.FieldLogger) *Client {
	c := &Client{
		conn: conn,
		log:  log.WithField("role", conn.Role),
	}
	c.state.Store(StateDisconnected)
	c.mqtt = mqtt.NewClient(c.options())
	return c
}

func (c *Client) options() *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions().
		AddBroker(c.conn.Broker).
		SetClientID(c.conn.ClientID).
		SetUsername(c.conn.Username).
		SetPassword(c.conn.Password).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetMaxReconnectInterval(time.Minute).
		SetCleanSession(true).
		SetOrderMatters(true)

	if c.conn.KeepAlive > 0 {
		opts.SetKeepAlive(c.conn.KeepAlive)
	}
	if c.conn.TLS != nil {
		opts.SetTLSConfig(c.conn.TLS)
	}

	opts.SetOnConnectHandler(c.onConnect)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		c.log.WithError(err).Warn("connection lost")
		c.setState(StateReconnecting)
	})
	opts.SetReconnectingHandler(func(_ mqtt.Client, _ *mqtt.ClientOptions) {
		c.log.Info("reconnecting")
	})
	return opts
}

// onConnect (re)establishes the subscription. The broker forgets it on
// every clean-session reconnect.
func (c *Client) onConnect(client mqtt.Client) {
	c.log.WithField("broker", c.conn.Broker).Info("connected")
	c.setState(StateConnected)

	if c.conn.Topic == "" || c.conn.Handler == nil {
		return
	}
	tok := client.Subscribe(c.conn.Topic, c.conn.QoS, func(_ mqtt.Client, m mqtt.Message) {
		c.conn.Handler(m.Topic(), m.Payload())
	})
	go func() {
		log := c.log.WithField("topic", c.conn.Topic)
		if err := subscribeResult(tok, c.conn.Topic); err != nil {
			log.WithError(err).Error("subscribe failed")
			if c.conn.OnSubscribeError != nil {
				c.conn.OnSubscribeError(err)
			}
			return
		}
		log.WithField("qos", c.conn.QoS).Info("subscribed")
	}()
}

func subscribeResult(tok mqtt.Token, topic string) error {
	if !tok.WaitTimeout(10 * time.Second) {
		return errors.New("subscribe timed out")
	}
	if err := tok.Error(); err != nil {
		return err
	}
	if st, ok := tok.(*mqtt.SubscribeToken); ok {
		if granted, ok := st.Result()[topic]; ok && granted == subackFailure {
			return ErrSubscriptionRejected
		}
	}
	return nil
}

func (c *Client) setState(to string) {
	from, _ := c.state.Swap(to).(string)
	if from == to {
		return
	}
	if c.conn.OnState != nil {
		c.conn.OnState(from, to)
	}
}

// State returns the current connection state.
func (c *Client) State() string {
	s, _ := c.state.Load().(string)
	return s
}

// Connect starts the session and waits for the first successful connect,
// or ctx. Reconnects after that are automatic.
func (c *Client) Connect(ctx context.Context) error {
	c.setState(StateConnecting)
	c.log.WithField("broker", c.conn.Broker).Info("connecting")

	tok := c.mqtt.Connect()
	if err := wait(ctx, tok); err != nil {
		return fmt.Errorf("%s: connect %s: %w", c.conn.Role, c.conn.Broker, err)
	}
	return nil
}

// Run connects and stays connected until ctx is cancelled.
func (c *Client) Run(ctx context.Context) error {
	if err := c.Connect(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			c.Close()
			return nil
		}
		return err
	}
	<-ctx.Done()
	c.Close()
	return nil
}

// Publish sends payload to topic and waits for the broker acknowledgement
// according to the connection's QoS.
func (c *Client) Publish(ctx context.Context, topic, payload string) error {
	tok := c.mqtt.Publish(topic, c.conn.QoS, false, payload)
	if err := wait(ctx, tok); err != nil {
		return fmt.Errorf("%s: publish %s: %w", c.conn.Role, topic, err)
	}
	return nil
}

// Close disconnects, allowing in-flight work a short grace period. It
// also aborts a connect that is still retrying.
func (c *Client) Close() {
	open := c.mqtt.IsConnectionOpen()
	c.mqtt.Disconnect(250)
	if open {
		c.log.Info("disconnected")
	}
	c.setState(StateDisconnected)
}

func wait(ctx context.Context, tok mqtt.Token) error {
	select {
	case <-tok.Done():
		return tok.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}
