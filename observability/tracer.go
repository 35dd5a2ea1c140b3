// Package observability provides in-process run tracing and request metrics
// for the assistant. Both types are plain concurrent-safe recorders exposed
// through the HTTP API; they do not assume an external collector.
package observability

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// TraceEvent is a single step in the agent collaboration timeline.
type TraceEvent struct {
	Timestamp time.Time      `json:"timestamp"`
	Source    string         `json:"source"`
	Target    string         `json:"target"`
	Action    string         `json:"action"`
	Details   map[string]any `json:"details"`
}

// Tracer records the flow of execution between agents and tools for one run.
type Tracer struct {
	mu    sync.Mutex
	runID string
	trace []TraceEvent
}

// NewTracer creates a tracer scoped to the given run.
func NewTracer(runID string) *Tracer {
	if runID == "" {
		runID = fmt.Sprintf("run-%d", time.Now().Unix())
	}
	return &Tracer{runID: runID}
}

// RunID returns the run this tracer is scoped to.
func (t *Tracer) RunID() string { return t.runID }

// Record appends a step to the timeline. Source is the initiating agent or
// module, target the agent or tool being called, action a short verb like
// "AGENT_START" or "TOOL_CALL".
func (t *Tracer) Record(source, target, action string, details map[string]any) {
	if details == nil {
		details = map[string]any{}
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.trace = append(t.trace, TraceEvent{
		Timestamp: time.Now().UTC(),
		Source:    source,
		Target:    target,
		Action:    action,
		Details:   details,
	})
}

// Events returns a copy of the recorded timeline.
func (t *Tracer) Events() []TraceEvent {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]TraceEvent, len(t.trace))
	copy(out, t.trace)
	return out
}

// Save writes the timeline as JSON to dir/<runID>.json.
func (t *Tracer) Save(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create trace dir: %w", err)
	}
	data, err := json.MarshalIndent(t.Events(), "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode trace: %w", err)
	}
	path := filepath.Join(dir, t.runID+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write trace: %w", err)
	}
	return path, nil
}

// Timeline renders the trace as a readable numbered listing.
func (t *Tracer) Timeline() string {
	events := t.Events()

	var b strings.Builder
	fmt.Fprintf(&b, "--- Trace for Run: %s ---\n", t.runID)
	for i, ev := range events {
		status := "OK"
		if s, ok := ev.Details["status"].(string); ok {
			status = s
		} else if e, ok := ev.Details["error"].(string); ok {
			status = e
		}
		fmt.Fprintf(&b, "[%02d] %-15s -> %-15s : %-20s (%s)\n", i+1, ev.Source, ev.Target, ev.Action, status)
	}
	return b.String()
}

// TracerRegistry keeps per-run tracers addressable by run ID so the HTTP API
// can serve a run's timeline after the run finished.
type TracerRegistry struct {
	mu      sync.Mutex
	tracers map[string]*Tracer
	order   []string
	limit   int
}

// NewTracerRegistry creates a registry retaining at most limit tracers
// (oldest evicted first). A non-positive limit defaults to 128.
func NewTracerRegistry(limit int) *TracerRegistry {
	if limit <= 0 {
		limit = 128
	}
	return &TracerRegistry{tracers: make(map[string]*Tracer), limit: limit}
}

// Tracer returns (creating if needed) the tracer for runID.
func (r *TracerRegistry) Tracer(runID string) *Tracer {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t, ok := r.tracers[runID]; ok {
		return t
	}
	if len(r.order) >= r.limit {
		oldest := r.order[0]
		r.order = r.order[1:]
		delete(r.tracers, oldest)
	}
	t := NewTracer(runID)
	r.tracers[runID] = t
	r.order = append(r.order, runID)
	return t
}

// Lookup returns the tracer for runID if one was recorded.
func (r *TracerRegistry) Lookup(runID string) (*Tracer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tracers[runID]
	return t, ok
}
