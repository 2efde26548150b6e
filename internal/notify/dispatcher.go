package notify

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/large-farva/bambu-relay/internal/detector"
)

const (
	defaultQueueSize      = 64
	defaultPublishTimeout = 10 * time.Second
	defaultDrainTimeout   = 5 * time.Second
)

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithQueueSize sets the buffer capacity. Default: 64.
func WithQueueSize(n int) Option {
	return func(d *Dispatcher) { d.queueSize = n }
}

// WithPublishTimeout bounds each Publish call. Default: 10s.
func WithPublishTimeout(t time.Duration) Option {
	return func(d *Dispatcher) { d.publishTimeout = t }
}

// WithOnPublished registers a callback run after every publish attempt,
// with the error (nil on success).
func WithOnPublished(f func(detector.Event, string, error)) Option {
	return func(d *Dispatcher) { d.onPublished = f }
}

// Dispatcher decouples event detection from delivery. Enqueue never
// blocks; a background goroutine formats each event and hands it to the
// sink, so a slow or unreachable sink cannot stall ingestion.
type Dispatcher struct {
	sink           Sink
	destination    string
	log            logrus.FieldLogger
	queueSize      int
	publishTimeout time.Duration
	onPublished    func(detector.Event, string, error)

	mu     sync.RWMutex
	closed bool
	ch     chan detector.Event
	done   chan struct{}
}

// NewDispatcher starts a dispatcher publishing to destination on sink.
func NewDispatcher(sink Sink, destination string, log logrus.FieldLogger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		sink:           sink,
		destination:    destination,
		log:            log,
		queueSize:      defaultQueueSize,
		publishTimeout: defaultPublishTimeout,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.queueSize < 1 {
		d.queueSize = 1
	}
	d.ch = make(chan detector.Event, d.queueSize)
	d.done = make(chan struct{})
	go d.drain()
	return d
}

// Enqueue queues ev for delivery. It returns ErrQueueFull, dropping the
// event, when the buffer is full, and ErrClosed after Close.
func (d *Dispatcher) Enqueue(ev detector.Event) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}

	select {
	case d.ch <- ev:
		return nil
	default:
		d.log.WithFields(logrus.Fields{
			"kind": ev.Kind,
			"task": ev.TaskLabel,
		}).Warn("notification queue full, dropping event")
		return ErrQueueFull
	}
}

// Pending returns the number of queued events.
func (d *Dispatcher) Pending() int { return len(d.ch) }

// Close stops accepting events, waits for the queue to drain (bounded),
// then closes the sink. Later calls are no-ops.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.ch)
	d.mu.Unlock()

	select {
	case <-d.done:
	case <-time.After(defaultDrainTimeout):
		d.log.WithField("pending", len(d.ch)).Warn("notification drain timed out")
	}
	return d.sink.Close()
}

func (d *Dispatcher) drain() {
	defer close(d.done)
	for ev := range d.ch {
		text := Format(ev)
		ctx, cancel := context.WithTimeout(context.Background(), d.publishTimeout)
		err := d.sink.Publish(ctx, d.destination, text)
		cancel()

		fields := logrus.Fields{"destination": d.destination, "kind": ev.Kind, "id": ev.ID}
		if err != nil {
			d.log.WithFields(fields).WithError(err).Warn("publish failed")
		} else {
			d.log.WithFields(fields).Infof("sent: %s", text)
		}
		if d.onPublished != nil {
			d.onPublished(ev, text, err)
		}
	}
}
