package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/large-farva/bambu-relay/internal/config"
)

type memorySink struct {
	mu    sync.Mutex
	texts []string
}

func (s *memorySink) Publish(_ context.Context, _, text string) error {
	s.mu.Lock()
	s.texts = append(s.texts, text)
	s.mu.Unlock()
	return nil
}

func (s *memorySink) Close() error { return nil }

func (s *memorySink) published() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.texts...)
}

func newTestApp(t *testing.T) (*App, *memorySink) {
	t.Helper()
	log, _ := test.NewNullLogger()

	cfg := config.Default()
	cfg.Demo.Enabled = true
	cfg.Notify.Sink = config.SinkLog

	sink := &memorySink{}
	a, err := New(Options{Logger: log, Cfg: cfg, Sink: sink})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.dispatcher.Close() })
	return a, sink
}

func do(t *testing.T, a *App, method, target string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	a.routes().ServeHTTP(rec, req)

	var body map[string]any
	if rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestHealthz(t *testing.T) {
	a, _ := newTestApp(t)
	rec, _ := do(t, a, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok\n", rec.Body.String())
}

func TestHealthDetailed(t *testing.T) {
	a, _ := newTestApp(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Accept", "application/json")
	rec := httptest.NewRecorder()
	a.routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["healthy"])
	assert.Contains(t, body["checks"], "notify_queue")
}

func TestStatusReportsSession(t *testing.T) {
	a, _ := newTestApp(t)
	a.ingest("device/x/report", []byte(`{"print":{"gcode_state":"RUNNING","subtask_name":"vase.3mf"}}`))

	rec, body := do(t, a, http.MethodGet, "/api/status")
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, "bambu-relay", body["name"])
	assert.Equal(t, "demo", body["mode"])
	assert.Equal(t, false, body["printer_connected"])

	sess := body["session"].(map[string]any)
	assert.Equal(t, "RUNNING", sess["last_state"])
	assert.Equal(t, "0", sess["last_error_code"])

	stats := body["stats"].(map[string]any)
	assert.Equal(t, float64(1), stats["received"])
}

func TestEventsAndDelivery(t *testing.T) {
	a, sink := newTestApp(t)
	a.ingest("t", []byte(`{"print":{"gcode_state":"RUNNING","subtask_name":"vase.3mf"}}`))
	a.ingest("t", []byte(`{"print":{"gcode_state":"FINISH"}}`))

	require.Eventually(t, func() bool { return len(sink.published()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "Print completed: vase.3mf", sink.published()[0])

	rec, body := do(t, a, http.MethodGet, "/api/events?limit=5")
	require.Equal(t, http.StatusOK, rec.Code)
	events := body["events"].([]any)
	require.Len(t, events, 1)
	assert.Equal(t, "print_completed", events[0].(map[string]any)["kind"])

	rec, _ = do(t, a, http.MethodGet, "/api/events?limit=zero")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSessionReset(t *testing.T) {
	a, _ := newTestApp(t)
	a.ingest("t", []byte(`{"print":{"gcode_state":"PAUSE","err":"0300801E"}}`))

	rec, _ := do(t, a, http.MethodGet, "/api/session/reset")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec, body := do(t, a, http.MethodPost, "/api/session/reset")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["ok"])

	_, body = do(t, a, http.MethodGet, "/api/session")
	sess := body["session"].(map[string]any)
	assert.Equal(t, "FINISH", sess["last_state"])
	assert.Equal(t, "0", sess["last_error_code"])
}

func TestLookup(t *testing.T) {
	a, _ := newTestApp(t)

	tests := []struct {
		code    string
		want    string
		known   bool
		ignored bool
	}{
		{"0300801E", "0300-801E", true, false},
		{"0300-400c", "0300-400c", false, true},
		{"0300400C", "0300-400C", false, true},
		{"0", "0", false, true},
		{"9999-9999", "9999-9999", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			rec, body := do(t, a, http.MethodGet, "/api/lookup?code="+tt.code)
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.want, body["code"])
			assert.Equal(t, tt.known, body["known"])
			assert.Equal(t, tt.ignored, body["ignored"])
		})
	}

	rec, _ := do(t, a, http.MethodGet, "/api/lookup")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVersionAndConfig(t *testing.T) {
	a, _ := newTestApp(t)
	a.cfg.Notify.MQTT.Password = "hunter2"

	_, body := do(t, a, http.MethodGet, "/api/version")
	assert.Equal(t, Version, body["version"])

	rec, _ := do(t, a, http.MethodGet, "/api/config")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "hunter2")
}

func TestRunStopsOnCancel(t *testing.T) {
	log, _ := test.NewNullLogger()
	cfg := config.Default()
	cfg.Demo.Enabled = true
	cfg.Demo.IntervalSeconds = 1
	cfg.Notify.Sink = config.SinkLog

	a, err := New(Options{Logger: log, Cfg: cfg, Bind: "127.0.0.1:0"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- a.Run(ctx) }()

	require.Eventually(t, func() bool { return a.State() == "DEMO" }, 2*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Equal(t, "STOPPING", a.State())
}

func TestNewRejectsBadErrorTable(t *testing.T) {
	log, _ := test.NewNullLogger()
	cfg := config.Default()
	cfg.Demo.Enabled = true
	cfg.Errors.TableFile = t.TempDir() + "/missing.toml"

	_, err := New(Options{Logger: log, Cfg: cfg, Sink: &memorySink{}})
	assert.ErrorContains(t, err, "load error table")
}
