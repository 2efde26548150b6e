// Package notify formats detector events into alert text and delivers
// them to a publish sink without blocking the ingest path.
package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/large-farva/bambu-relay/internal/detector"
)

// ErrQueueFull is returned by Dispatcher.Enqueue when the buffer is full
// and the event was dropped.
var ErrQueueFull = errors.New("notify: queue full")

// ErrClosed is returned by Dispatcher.Enqueue after Close.
var ErrClosed = errors.New("notify: dispatcher closed")

// Sink publishes text to a destination. Implementations may block on I/O.
type Sink interface {
	Publish(ctx context.Context, destination, text string) error
	Close() error
}

// Format renders an event as the alert text sent to the sink.
func Format(ev detector.Event) string {
	switch ev.Kind {
	case detector.KindPrintCompleted:
		return fmt.Sprintf("Print completed: %s", ev.TaskLabel)
	case detector.KindErrorOccurred:
		return fmt.Sprintf("ERROR in print: %s: %s (err %s)", ev.TaskLabel, ev.Description, ev.RawCode)
	default:
		return fmt.Sprintf("%s: %s", ev.Kind, ev.TaskLabel)
	}
}
