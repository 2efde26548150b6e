package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/large-farva/bambu-relay/internal/detector"
)

type recordingSink struct {
	mu      sync.Mutex
	texts   []string
	dests   []string
	err     error
	delay   time.Duration
	release chan struct{}
	closed  bool
}

func (s *recordingSink) Publish(ctx context.Context, destination, text string) error {
	if s.release != nil {
		<-s.release
	}
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.texts = append(s.texts, text)
	s.dests = append(s.dests, destination)
	return s.err
}

func (s *recordingSink) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *recordingSink) published() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.texts...)
}

func quietLogger() *logrus.Logger {
	log, _ := test.NewNullLogger()
	return log
}

func TestFormat(t *testing.T) {
	tests := []struct {
		name string
		ev   detector.Event
		want string
	}{
		{
			name: "completed",
			ev:   detector.Event{Kind: detector.KindPrintCompleted, TaskLabel: "vase.3mf"},
			want: "Print completed: vase.3mf",
		},
		{
			name: "error",
			ev: detector.Event{
				Kind:        detector.KindErrorOccurred,
				TaskLabel:   "bracket",
				Description: "The extruder motor is overloaded.",
				RawCode:     "0300-801E",
			},
			want: "ERROR in print: bracket: The extruder motor is overloaded. (err 0300-801E)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Format(tt.ev))
		})
	}
}

func TestDispatcherDeliversInOrder(t *testing.T) {
	sink := &recordingSink{}
	d := NewDispatcher(sink, "alerts/h2d", quietLogger(), WithQueueSize(8))

	for _, task := range []string{"a", "b", "c"} {
		require.NoError(t, d.Enqueue(detector.Event{Kind: detector.KindPrintCompleted, TaskLabel: task}))
	}
	require.NoError(t, d.Close())

	assert.Equal(t, []string{"Print completed: a", "Print completed: b", "Print completed: c"}, sink.published())
	assert.Equal(t, []string{"alerts/h2d", "alerts/h2d", "alerts/h2d"}, sink.dests)
	assert.True(t, sink.closed)
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	sink := &recordingSink{release: make(chan struct{})}
	d := NewDispatcher(sink, "alerts", quietLogger(), WithQueueSize(1))

	ev := detector.Event{Kind: detector.KindPrintCompleted, TaskLabel: "x"}

	// The drain goroutine picks up the first event and blocks in Publish;
	// the second fills the buffer; the third must be dropped without
	// blocking the caller.
	require.NoError(t, d.Enqueue(ev))
	require.Eventually(t, func() bool { return d.Pending() == 0 }, time.Second, 5*time.Millisecond)
	require.NoError(t, d.Enqueue(ev))

	start := time.Now()
	err := d.Enqueue(ev)
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.Less(t, time.Since(start), 100*time.Millisecond)

	close(sink.release)
	require.NoError(t, d.Close())
	assert.Len(t, sink.published(), 2)
}

func TestDispatcherReportsPublishErrors(t *testing.T) {
	sink := &recordingSink{err: errors.New("broker down")}

	var mu sync.Mutex
	var errs []error
	d := NewDispatcher(sink, "alerts", quietLogger(), WithOnPublished(func(_ detector.Event, _ string, err error) {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	}))

	require.NoError(t, d.Enqueue(detector.Event{Kind: detector.KindPrintCompleted, TaskLabel: "x"}))
	require.NoError(t, d.Close())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, errs, 1)
	assert.EqualError(t, errs[0], "broker down")
}

func TestDispatcherPublishTimeout(t *testing.T) {
	var seen time.Duration
	sink := &deadlineSink{fn: func(ctx context.Context) {
		dl, ok := ctx.Deadline()
		if ok {
			seen = time.Until(dl)
		}
	}}
	d := NewDispatcher(sink, "alerts", quietLogger(), WithPublishTimeout(2*time.Second))
	require.NoError(t, d.Enqueue(detector.Event{Kind: detector.KindPrintCompleted}))
	require.NoError(t, d.Close())

	assert.Greater(t, seen, time.Second)
	assert.LessOrEqual(t, seen, 2*time.Second)
}

type deadlineSink struct {
	fn func(ctx context.Context)
}

func (s *deadlineSink) Publish(ctx context.Context, _, _ string) error {
	s.fn(ctx)
	return nil
}

func (s *deadlineSink) Close() error { return nil }

type mockSink struct {
	mock.Mock
}

func (m *mockSink) Publish(ctx context.Context, destination, text string) error {
	args := m.Called(ctx, destination, text)
	return args.Error(0)
}

func (m *mockSink) Close() error {
	return m.Called().Error(0)
}

func TestDispatcherUsesFormattedText(t *testing.T) {
	sink := new(mockSink)
	sink.On("Publish", mock.Anything, "alerts/h2d", "ERROR in print: part: The cutter is stuck. (err 0300-800B)").Return(nil).Once()
	sink.On("Close").Return(nil).Once()

	d := NewDispatcher(sink, "alerts/h2d", quietLogger())
	require.NoError(t, d.Enqueue(detector.Event{
		Kind:        detector.KindErrorOccurred,
		TaskLabel:   "part",
		Description: "The cutter is stuck.",
		RawCode:     "0300-800B",
	}))
	require.NoError(t, d.Close())

	sink.AssertExpectations(t)
}

func TestLogSink(t *testing.T) {
	log, hook := test.NewNullLogger()
	s := LogSink{Log: log}

	require.NoError(t, s.Publish(context.Background(), "alerts", "Print completed: x"))
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "[alert] Print completed: x", hook.LastEntry().Message)
	assert.Equal(t, "alerts", hook.LastEntry().Data["destination"])
}

func TestEnqueueAfterClose(t *testing.T) {
	sink := &recordingSink{}
	d := NewDispatcher(sink, "alerts", quietLogger())
	require.NoError(t, d.Close())
	require.NoError(t, d.Close())

	err := d.Enqueue(detector.Event{Kind: detector.KindPrintCompleted})
	assert.ErrorIs(t, err, ErrClosed)
	assert.Empty(t, sink.published())
}
