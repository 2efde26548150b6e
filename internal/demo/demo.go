// Package demo simulates a printer's report stream so the daemon, CLI, and
// notifier can be exercised end-to-end without a printer on the LAN. Each
// simulated job walks through idle, printing, a recoverable fault, and
// completion, with one corrupt report thrown in.
package demo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/large-farva/bambu-relay/internal/telemetry"
	"github.com/large-farva/bambu-relay/internal/ws"
)

// Topic is the report topic the simulated printer publishes on.
const Topic = "device/DEMO00000000000/report"

// jobs cycles through plausible project names.
var jobs = []string{"vase.3mf", "bracket_v2.3mf", "cable_clip.gcode.3mf", "enclosure_lid.3mf"}

// Step is one simulated report.
type Step struct {
	Payload []byte
	Note    string
}

// Runner feeds simulated reports into Ingest on a configurable interval.
type Runner struct {
	Hub      ws.Broadcaster
	Ingest   func(topic string, payload []byte)
	Interval time.Duration // time between reports

	jobIndex int
}

// New creates a demo runner with a sensible default interval.
func New(hub ws.Broadcaster, ingest func(topic string, payload []byte)) *Runner {
	return &Runner{
		Hub:      hub,
		Ingest:   ingest,
		Interval: 3 * time.Second,
	}
}

// Run replays the script for one job after another until ctx is cancelled.
func (r *Runner) Run(ctx context.Context, setState func(string)) {
	r.Hub.BroadcastJSON(telemetry.NewLogLine("info", "demo mode active, simulating printer reports"))
	setState("DEMO")

	for {
		job := jobs[r.jobIndex%len(jobs)]
		r.jobIndex++

		for _, step := range Script(job) {
			if !sleepOrCancel(ctx, r.Interval) {
				return
			}
			if step.Note != "" {
				r.Hub.BroadcastJSON(telemetry.NewLogLine("info", "demo: "+step.Note))
			}
			r.Ingest(Topic, step.Payload)
		}
	}
}

// Script returns the report sequence for one simulated job. Reports are
// partial, like the printer's own push_status deltas: most omit fields
// that did not change.
func Script(job string) []Step {
	return []Step{
		{Payload: report(map[string]any{"gcode_state": "IDLE", "err": "0"}), Note: "printer idle"},
		{Payload: report(map[string]any{"gcode_state": "PREPARE", "subtask_name": job}), Note: "preparing " + job},
		{Payload: report(map[string]any{"gcode_state": "RUNNING", "subtask_name": job, "mc_percent": 12})},
		{Payload: report(map[string]any{"mc_percent": 37})},
		{Payload: report(map[string]any{"gcode_state": "PAUSE", "err": "0300801E", "subtask_name": job}), Note: "extruder overload"},
		{Payload: []byte(`{"print":{"gcode_state":`), Note: "corrupt report"},
		{Payload: report(map[string]any{"gcode_state": "RUNNING", "err": "0", "subtask_name": job}), Note: "fault cleared"},
		{Payload: report(map[string]any{"err": "0300400C"}), Note: "cancel prompt (ignored)"},
		{Payload: report(map[string]any{"err": "0", "mc_percent": 99})},
		{Payload: report(map[string]any{"gcode_state": "FINISH", "subtask_name": job, "mc_percent": 100}), Note: "job finished"},
	}
}

func report(fields map[string]any) []byte {
	fields["command"] = "push_status"
	b, err := json.Marshal(map[string]any{"print": fields})
	if err != nil {
		panic(fmt.Sprintf("demo: marshal report: %v", err))
	}
	return b
}

func sleepOrCancel(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
