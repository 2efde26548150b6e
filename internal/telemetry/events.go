// Package telemetry defines the typed event structs that flow over the
// WebSocket connection between bambu-relayd and its clients. Every event
// carries a "type" discriminator and an RFC 3339 timestamp.
package telemetry

import "time"

// EventType identifies the kind of WebSocket event.
type EventType string

const (
	EventHeartbeat    EventType = "heartbeat"
	EventState        EventType = "state"
	EventTransition   EventType = "transition"
	EventNotification EventType = "notification"
	EventLog          EventType = "log"
)

// Event is the base envelope shared by every event type.
type Event struct {
	Type EventType `json:"type"`
	TS   string    `json:"ts"`
}

// NowTS returns the current UTC time as an RFC 3339 nano string, matching the
// timestamp format used across all events.
func NowTS() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func envelope(t EventType) Event {
	return Event{Type: t, TS: NowTS()}
}

// Heartbeat is sent periodically so clients can detect connectivity and
// monitor daemon uptime.
type Heartbeat struct {
	Event
	State         string `json:"state"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Received      uint64 `json:"received"`
	Notified      uint64 `json:"notified"`
}

func NewHeartbeat(state string, uptime time.Duration, received, notified uint64) Heartbeat {
	return Heartbeat{
		Event:         envelope(EventHeartbeat),
		State:         state,
		UptimeSeconds: int64(uptime.Seconds()),
		Received:      received,
		Notified:      notified,
	}
}

// StateTransition is emitted whenever the daemon or one of its components
// moves between operating states (e.g. CONNECTING -> CONNECTED).
type StateTransition struct {
	Event
	Component string `json:"component"`
	From      string `json:"from"`
	To        string `json:"to"`
}

func NewStateTransition(component, from, to string) StateTransition {
	return StateTransition{Event: envelope(EventState), Component: component, From: from, To: to}
}

// Transition reports a change in the printer's job state or error code.
type Transition struct {
	Event
	Field string `json:"field"`
	From  string `json:"from"`
	To    string `json:"to"`
	Task  string `json:"task"`
}

func NewTransition(field, from, to, task string) Transition {
	return Transition{Event: envelope(EventTransition), Field: field, From: from, To: to, Task: task}
}

// Notification delivery outcomes.
const (
	DeliveryQueued  = "queued"
	DeliverySent    = "sent"
	DeliveryDropped = "dropped"
	DeliveryFailed  = "failed"
)

// Notification tracks one alert through the delivery pipeline.
type Notification struct {
	Event
	ID       string `json:"id"`
	Kind     string `json:"kind"`
	Text     string `json:"text,omitempty"`
	Delivery string `json:"delivery"`
	Error    string `json:"error,omitempty"`
}

func NewNotification(id, kind, text, delivery string, err error) Notification {
	n := Notification{
		Event:    envelope(EventNotification),
		ID:       id,
		Kind:     kind,
		Text:     text,
		Delivery: delivery,
	}
	if err != nil {
		n.Error = err.Error()
	}
	return n
}

// LogLine carries a human-readable log message at a severity level.
type LogLine struct {
	Event
	Level   string `json:"level"`
	Message string `json:"message"`
}

func NewLogLine(level, message string) LogLine {
	return LogLine{Event: envelope(EventLog), Level: level, Message: message}
}
