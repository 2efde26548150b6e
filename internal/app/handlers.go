package app

import (
	"encoding/json"
	"net/http"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/large-farva/bambu-relay/internal/mqttx"
	"github.com/large-farva/bambu-relay/internal/status"
)

const maxEventsLimit = 500

func (a *App) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", a.handleHealthz)
	mux.HandleFunc("/api/status", a.handleStatus)
	mux.HandleFunc("/api/session", a.handleSession)
	mux.HandleFunc("/api/session/reset", a.handleSessionReset)
	mux.HandleFunc("/api/lookup", a.handleLookup)
	mux.HandleFunc("/api/events", a.handleEvents)
	mux.HandleFunc("/api/version", a.handleVersion)
	mux.HandleFunc("/api/config", a.handleConfig)
	mux.Handle("/ws", a.wsHub.Handler())
	return mux
}

// ---------------------------------------------------------------------------
// Core handlers
// ---------------------------------------------------------------------------

func (a *App) handleHealthz(w http.ResponseWriter, r *http.Request) {
	// If the client asks for JSON, return component-level health checks.
	if r.Header.Get("Accept") == "application/json" {
		a.handleHealthDetailed(w, r)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

func (a *App) handleStatus(w http.ResponseWriter, _ *http.Request) {
	snap := a.relay.Snapshot()

	resp := map[string]any{
		"name":              "bambu-relay",
		"state":             a.State(),
		"uptime_seconds":    int64(time.Since(a.startedAt).Seconds()),
		"printer_connected": a.printerConnected(),
		"session":           snap.Session,
		"last":              snap.Last,
		"stats":             snap.Stats,
		"notify_pending":    a.dispatcher.Pending(),
		"notify_sink":       a.cfg.Notify.Sink,
		"destination":       a.cfg.Notify.Destination,
		"ws_clients":        a.wsHub.Clients(),
	}
	if a.cfg.Demo.Enabled {
		resp["mode"] = "demo"
	} else {
		resp["mode"] = "live"
		resp["printer"] = a.cfg.Printer.Host
	}
	if !snap.LastSeen.IsZero() {
		resp["last_seen"] = snap.LastSeen.Format(time.RFC3339)
	}

	writeJSON(w, http.StatusOK, resp)
}

func (a *App) handleSession(w http.ResponseWriter, _ *http.Request) {
	snap := a.relay.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"session":    snap.Session,
		"last":       snap.Last,
		"last_topic": snap.LastTopic,
	})
}

func (a *App) handleSessionReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	sess := a.relay.Reset()
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"message": "session reset to baseline",
		"session": sess,
	})
}

func (a *App) handleLookup(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimSpace(r.URL.Query().Get("code"))
	if raw == "" {
		jsonError(w, "code parameter required", http.StatusBadRequest)
		return
	}

	code := status.CanonicalErrorCode(raw)
	desc, known := a.classifier.Lookup(code)
	writeJSON(w, http.StatusOK, map[string]any{
		"input":       raw,
		"code":        code,
		"known":       known,
		"description": a.classifier.Classify(code),
		"ignored":     a.classifier.IsIgnored(code),
		"table_match": desc,
	})
}

func (a *App) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			jsonError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = min(n, maxEventsLimit)
	}

	writeJSON(w, http.StatusOK, map[string]any{"events": a.relay.Recent(limit)})
}

func (a *App) handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"version":    Version,
		"go_version": GoVersion,
		"built_at":   BuiltAt,
		"runtime":    runtime.Version(),
	})
}

func (a *App) handleConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.cfg)
}

func (a *App) handleHealthDetailed(w http.ResponseWriter, _ *http.Request) {
	checks := map[string]any{}
	allOK := true

	if a.printer != nil {
		ok := a.printer.State() == mqttx.StateConnected
		checks["printer"] = map[string]any{"ok": ok, "state": a.printer.State()}
		allOK = allOK && ok
	}
	if a.notifyClient != nil {
		ok := a.notifyClient.State() == mqttx.StateConnected
		checks["notify_broker"] = map[string]any{"ok": ok, "state": a.notifyClient.State()}
		allOK = allOK && ok
	}

	pending := a.dispatcher.Pending()
	queueOK := pending < a.cfg.Notify.QueueSize
	checks["notify_queue"] = map[string]any{"ok": queueOK, "pending": pending, "capacity": a.cfg.Notify.QueueSize}
	allOK = allOK && queueOK

	code := http.StatusOK
	if !allOK {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"healthy": allOK,
		"checks":  checks,
	})
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func (a *App) printerConnected() bool {
	return a.printer != nil && a.printer.State() == mqttx.StateConnected
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// jsonError writes a JSON error response.
func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]any{
		"ok":    false,
		"error": msg,
	})
}
