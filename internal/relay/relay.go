// Package relay owns the printer session and runs every incoming status
// message through the detector, one at a time, forwarding the resulting
// events to the notifier and to live WebSocket clients.
package relay

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/large-farva/bambu-relay/internal/detector"
	"github.com/large-farva/bambu-relay/internal/notify"
	"github.com/large-farva/bambu-relay/internal/status"
	"github.com/large-farva/bambu-relay/internal/telemetry"
	"github.com/large-farva/bambu-relay/internal/ws"
)

const defaultRecent = 50

// Enqueuer accepts events for asynchronous delivery.
type Enqueuer interface {
	Enqueue(ev detector.Event) error
}

// Stats are monotonically increasing counters since start (or the last
// Reset for the session-related ones).
type Stats struct {
	Received        uint64 `json:"received"`
	DecodeErrors    uint64 `json:"decode_errors"`
	Transitions     uint64 `json:"transitions"`
	Events          uint64 `json:"events"`
	Enqueued        uint64 `json:"enqueued"`
	NotifyDropped   uint64 `json:"notify_dropped"`
	Published       uint64 `json:"published"`
	PublishFailures uint64 `json:"publish_failures"`
}

// Snapshot is a point-in-time view of the relay.
type Snapshot struct {
	Session   detector.Session `json:"session"`
	Last      status.Canonical `json:"last"`
	LastTopic string           `json:"last_topic,omitempty"`
	LastSeen  time.Time        `json:"last_seen,omitempty"`
	Stats     Stats            `json:"stats"`
}

// Options configures a Relay.
type Options struct {
	Detector *detector.Detector
	Baseline detector.Session
	Notifier Enqueuer
	Hub      ws.Broadcaster
	Logger   logrus.FieldLogger

	// RecentSize bounds the in-memory event history. Default: 50.
	RecentSize int
}

// Relay serializes message handling for a single printer.
type Relay struct {
	det      *detector.Detector
	baseline detector.Session
	out      Enqueuer
	hub      ws.Broadcaster
	log      logrus.FieldLogger

	mu        sync.Mutex
	sess      detector.Session
	last      status.Canonical
	lastTopic string
	lastSeen  time.Time
	recent    []detector.Event
	recentCap int

	received        atomic.Uint64
	decodeErrors    atomic.Uint64
	transitions     atomic.Uint64
	events          atomic.Uint64
	enqueued        atomic.Uint64
	notifyDropped   atomic.Uint64
	published       atomic.Uint64
	publishFailures atomic.Uint64
}

// New builds a Relay whose session starts at opts.Baseline.
func New(opts Options) *Relay {
	r := &Relay{
		det:       opts.Detector,
		baseline:  opts.Baseline,
		out:       opts.Notifier,
		hub:       opts.Hub,
		log:       opts.Logger,
		sess:      opts.Baseline,
		recentCap: opts.RecentSize,
	}
	if r.hub == nil {
		r.hub = ws.Discard{}
	}
	if r.recentCap <= 0 {
		r.recentCap = defaultRecent
	}
	r.last = status.Canonical{State: r.sess.LastState, ErrorCode: r.sess.LastErrorCode, TaskLabel: status.UnknownTask}
	return r
}

// Ingest handles one raw message. A payload that fails to decode is
// logged and dropped; the session is unchanged and the error returned.
func (r *Relay) Ingest(topic string, payload []byte) (detector.Result, error) {
	r.received.Add(1)

	r.mu.Lock()
	defer r.mu.Unlock()

	res, err := r.det.Handle(payload, &r.sess)
	if err != nil {
		r.decodeErrors.Add(1)
		r.log.WithField("topic", topic).WithError(err).Warn("dropping undecodable message")
		r.hub.BroadcastJSON(telemetry.NewLogLine("warn", "dropped undecodable message on "+topic))
		return res, err
	}

	r.last = res.Canonical
	r.lastTopic = topic
	r.lastSeen = time.Now().UTC()

	for _, t := range res.Transitions {
		r.transitions.Add(1)
		r.log.WithFields(logrus.Fields{
			"field": t.Field,
			"from":  t.From,
			"to":    t.To,
			"task":  res.Canonical.TaskLabel,
		}).Info("transition")
		r.hub.BroadcastJSON(telemetry.NewTransition(string(t.Field), t.From, t.To, res.Canonical.TaskLabel))
	}

	for _, ev := range res.Events {
		r.events.Add(1)
		r.remember(ev)

		if r.out == nil {
			continue
		}
		delivery := telemetry.DeliveryQueued
		if err := r.out.Enqueue(ev); err != nil {
			r.notifyDropped.Add(1)
			delivery = telemetry.DeliveryDropped
			r.hub.BroadcastJSON(telemetry.NewNotification(ev.ID, string(ev.Kind), notify.Format(ev), delivery, err))
			continue
		}
		r.enqueued.Add(1)
		r.hub.BroadcastJSON(telemetry.NewNotification(ev.ID, string(ev.Kind), notify.Format(ev), delivery, nil))
	}

	return res, nil
}

// Published records the outcome of a delivery attempt. It is meant to be
// passed to notify.WithOnPublished.
func (r *Relay) Published(ev detector.Event, text string, err error) {
	delivery := telemetry.DeliverySent
	if err != nil {
		r.publishFailures.Add(1)
		delivery = telemetry.DeliveryFailed
	} else {
		r.published.Add(1)
	}
	r.hub.BroadcastJSON(telemetry.NewNotification(ev.ID, string(ev.Kind), text, delivery, err))
}

func (r *Relay) remember(ev detector.Event) {
	if len(r.recent) == r.recentCap {
		copy(r.recent, r.recent[1:])
		r.recent = r.recent[:len(r.recent)-1]
	}
	r.recent = append(r.recent, ev)
}

// Snapshot returns the current session, last canonical record, and
// counters.
func (r *Relay) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Snapshot{
		Session:   r.sess,
		Last:      r.last,
		LastTopic: r.lastTopic,
		LastSeen:  r.lastSeen,
		Stats:     r.Stats(),
	}
}

// Stats returns the counters.
func (r *Relay) Stats() Stats {
	return Stats{
		Received:        r.received.Load(),
		DecodeErrors:    r.decodeErrors.Load(),
		Transitions:     r.transitions.Load(),
		Events:          r.events.Load(),
		Enqueued:        r.enqueued.Load(),
		NotifyDropped:   r.notifyDropped.Load(),
		Published:       r.published.Load(),
		PublishFailures: r.publishFailures.Load(),
	}
}

// Recent returns up to limit of the most recent events, newest first.
// A limit <= 0 returns all retained events.
func (r *Relay) Recent(limit int) []detector.Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.recent)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]detector.Event, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, r.recent[i])
	}
	return out
}

// Reset puts the session back to its baseline. The next message is
// evaluated as if it were the first one after startup.
func (r *Relay) Reset() detector.Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.sess
	r.sess = r.baseline
	r.last = status.Canonical{State: r.sess.LastState, ErrorCode: r.sess.LastErrorCode, TaskLabel: status.UnknownTask}
	r.log.WithFields(logrus.Fields{
		"state": prev.LastState,
		"error": prev.LastErrorCode,
	}).Info("session reset to baseline")
	return r.sess
}
