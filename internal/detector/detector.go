// Package detector compares each normalized status document against the
// last values seen for the same printer and decides which changes deserve
// a notification. It holds no hidden state: the caller owns the Session
// and passes it in on every call.
package detector

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/large-farva/bambu-relay/internal/hms"
	"github.com/large-farva/bambu-relay/internal/status"
)

// Session is the last known state of one telemetry source.
type Session struct {
	LastState     string `json:"last_state"`
	LastErrorCode string `json:"last_error_code"`
}

// Kind identifies a notification event.
type Kind string

const (
	KindPrintCompleted Kind = "print_completed"
	KindErrorOccurred  Kind = "error_occurred"
)

// Event is an outward notification produced by Handle.
type Event struct {
	ID          string    `json:"id"`
	Kind        Kind      `json:"kind"`
	TaskLabel   string    `json:"task_label"`
	Description string    `json:"description,omitempty"`
	RawCode     string    `json:"raw_code,omitempty"`
	At          time.Time `json:"at"`
}

// Field names a tracked session field in a Transition.
type Field string

const (
	FieldState Field = "state"
	FieldError Field = "error"
)

// Transition records one value change, notified or not.
type Transition struct {
	Field Field  `json:"field"`
	From  string `json:"from"`
	To    string `json:"to"`
}

// Result is everything one Handle call produced.
type Result struct {
	Canonical   status.Canonical
	Transitions []Transition
	Events      []Event
}

// DecodeError reports a payload that is not a JSON object.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string { return "decode status document: " + e.Err.Error() }
func (e *DecodeError) Unwrap() error { return e.Err }

// Classifier is the subset of hms.Classifier the detector needs.
type Classifier interface {
	Classify(code string) string
	IsIgnored(code string) bool
}

var _ Classifier = (*hms.Classifier)(nil)

// Detector evaluates status documents. It is immutable once built and
// may be shared; serializing calls per Session is the caller's job.
type Detector struct {
	classifier    Classifier
	finishedState string
	now           func() time.Time
	newID         func() string
}

// New builds a Detector. finishedState is the state token that signals a
// completed print.
func New(classifier Classifier, finishedState string) *Detector {
	return &Detector{
		classifier:    classifier,
		finishedState: finishedState,
		now:           func() time.Time { return time.Now().UTC() },
		newID:         func() string { return uuid.New().String() },
	}
}

// Handle decodes payload and evaluates it against sess. When the payload
// cannot be decoded the returned error is a *DecodeError and sess is left
// untouched.
func (d *Detector) Handle(payload []byte, sess *Session) (Result, error) {
	raw, err := Decode(payload)
	if err != nil {
		return Result{}, err
	}
	return d.HandleRaw(raw, sess), nil
}

// Decode parses payload into a status document. Anything other than a
// JSON object is rejected.
func Decode(payload []byte) (status.Raw, error) {
	var raw status.Raw
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, &DecodeError{Err: err}
	}
	if raw == nil {
		return nil, &DecodeError{Err: fmt.Errorf("document is null")}
	}
	return raw, nil
}

// HandleRaw evaluates an already-decoded document against sess and
// updates sess with any changed values. State and error are tracked
// independently, so one document may yield two events.
func (d *Detector) HandleRaw(raw status.Raw, sess *Session) Result {
	c := status.Normalize(raw, status.Previous{
		State:     sess.LastState,
		ErrorCode: sess.LastErrorCode,
	})

	res := Result{Canonical: c}
	next := *sess

	if c.State != sess.LastState {
		res.Transitions = append(res.Transitions, Transition{Field: FieldState, From: sess.LastState, To: c.State})
		if c.State == d.finishedState {
			res.Events = append(res.Events, d.event(KindPrintCompleted, c.TaskLabel, "", ""))
		}
		next.LastState = c.State
	}

	if c.ErrorCode != sess.LastErrorCode {
		res.Transitions = append(res.Transitions, Transition{Field: FieldError, From: sess.LastErrorCode, To: c.ErrorCode})
		if c.ErrorCode != hms.NoError && !d.classifier.IsIgnored(c.ErrorCode) {
			res.Events = append(res.Events, d.event(KindErrorOccurred, c.TaskLabel, d.classifier.Classify(c.ErrorCode), c.ErrorCode))
		}
		next.LastErrorCode = c.ErrorCode
	}

	*sess = next
	return res
}

func (d *Detector) event(kind Kind, task, description, code string) Event {
	return Event{
		ID:          d.newID(),
		Kind:        kind,
		TaskLabel:   task,
		Description: description,
		RawCode:     code,
		At:          d.now(),
	}
}
