package mailer

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Bridge turns broker messages into emails. Messages are queued by Handle
// and mailed one at a time, in arrival order, by Run.
type Bridge struct {
	mailer  *Mailer
	log     logrus.FieldLogger
	timeout time.Duration
	queue   chan string
}

// NewBridge creates a bridge with room for queueSize pending alerts.
func NewBridge(m *Mailer, queueSize int, timeout time.Duration, log logrus.FieldLogger) *Bridge {
	if queueSize < 1 {
		queueSize = 1
	}
	return &Bridge{
		mailer:  m,
		log:     log,
		timeout: timeout,
		queue:   make(chan string, queueSize),
	}
}

// Handle queues one alert payload. It never blocks; when the queue is full
// the alert is dropped and logged.
func (b *Bridge) Handle(topic string, payload []byte) {
	select {
	case b.queue <- string(payload):
	default:
		b.log.WithField("topic", topic).Warnf("mail queue full, dropping alert: %s", payload)
	}
}

// Run mails queued alerts until ctx is cancelled. Delivery failures are
// logged and the alert is dropped.
func (b *Bridge) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case body := <-b.queue:
			sendCtx, cancel := context.WithTimeout(ctx, b.timeout)
			if err := b.mailer.Send(sendCtx, body); err != nil {
				b.log.WithError(err).Errorf("dropping alert: %s", body)
			}
			cancel()
		}
	}
}
