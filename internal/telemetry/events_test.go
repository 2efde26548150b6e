package telemetry

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, v any) map[string]any {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	return m
}

func TestEnvelopeIsFlattened(t *testing.T) {
	m := decode(t, NewTransition("state", "RUNNING", "FINISH", "vase.3mf"))
	assert.Equal(t, "transition", m["type"])
	assert.Equal(t, "state", m["field"])
	assert.Equal(t, "vase.3mf", m["task"])

	_, err := time.Parse(time.RFC3339Nano, m["ts"].(string))
	assert.NoError(t, err)
}

func TestNotificationError(t *testing.T) {
	m := decode(t, NewNotification("id-1", "error_occurred", "", DeliveryFailed, errors.New("timeout")))
	assert.Equal(t, "failed", m["delivery"])
	assert.Equal(t, "timeout", m["error"])
	assert.NotContains(t, m, "text")

	m = decode(t, NewNotification("id-2", "print_completed", "Print completed: x", DeliverySent, nil))
	assert.NotContains(t, m, "error")
}

func TestHeartbeatUptime(t *testing.T) {
	hb := NewHeartbeat("RUNNING", 90*time.Second+400*time.Millisecond, 12, 2)
	assert.Equal(t, int64(90), hb.UptimeSeconds)
	assert.Equal(t, EventHeartbeat, hb.Type)
}
