package demo

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/large-farva/bambu-relay/internal/detector"
	"github.com/large-farva/bambu-relay/internal/hms"
	"github.com/large-farva/bambu-relay/internal/ws"
)

func TestScriptProducesExpectedEvents(t *testing.T) {
	d := detector.New(hms.Default(), "FINISH")
	sess := detector.Session{LastState: "FINISH", LastErrorCode: hms.NoError}

	var events []detector.Event
	decodeErrors := 0
	for _, step := range Script("vase.3mf") {
		res, err := d.Handle(step.Payload, &sess)
		if err != nil {
			decodeErrors++
			continue
		}
		events = append(events, res.Events...)
	}

	assert.Equal(t, 1, decodeErrors)
	require.Len(t, events, 2)

	assert.Equal(t, detector.KindErrorOccurred, events[0].Kind)
	assert.Equal(t, "0300-801E", events[0].RawCode)
	assert.Equal(t, "vase.3mf", events[0].TaskLabel)

	assert.Equal(t, detector.KindPrintCompleted, events[1].Kind)
	assert.Equal(t, "vase.3mf", events[1].TaskLabel)

	assert.Equal(t, detector.Session{LastState: "FINISH", LastErrorCode: hms.NoError}, sess)
}

func TestRunnerFeedsIngest(t *testing.T) {
	var mu sync.Mutex
	var topics []string

	r := New(ws.Discard{}, func(topic string, _ []byte) {
		mu.Lock()
		topics = append(topics, topic)
		mu.Unlock()
	})
	r.Interval = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	var state string
	go func() {
		defer close(done)
		r.Run(ctx, func(s string) { state = s })
	}()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(topics) > len(Script("x"))
	}, 2*time.Second, 5*time.Millisecond)
	cancel()
	<-done

	assert.Equal(t, "DEMO", state)
	assert.Equal(t, Topic, topics[0])
	assert.GreaterOrEqual(t, r.jobIndex, 2)
}
