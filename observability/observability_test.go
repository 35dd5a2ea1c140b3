package observability

import (
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracer_RecordAndTimeline(t *testing.T) {
	tr := NewTracer("run-1")
	tr.Record("Coordinator", "CodeGenAgent", "AGENT_START", nil)
	tr.Record("CodeGenAgent", "run_code", "TOOL_CALL", map[string]any{"status": "ok"})
	tr.Record("Coordinator", "EvaluatorAgent", "AGENT_START", map[string]any{"error": "timeout"})

	events := tr.Events()
	require.Len(t, events, 3)
	assert.Equal(t, "AGENT_START", events[0].Action)
	assert.NotNil(t, events[0].Details)

	timeline := tr.Timeline()
	assert.Contains(t, timeline, "Trace for Run: run-1")
	assert.Contains(t, timeline, "Coordinator")
	assert.Contains(t, timeline, "(ok)")
	assert.Contains(t, timeline, "(timeout)")
}

func TestTracer_Save(t *testing.T) {
	tr := NewTracer("run-save")
	tr.Record("Coordinator", "GeneralAgent", "AGENT_START", nil)

	path, err := tr.Save(t.TempDir())
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var events []TraceEvent
	require.NoError(t, json.Unmarshal(data, &events))
	require.Len(t, events, 1)
	assert.Equal(t, "GeneralAgent", events[0].Target)
}

func TestTracerRegistry_EvictsOldest(t *testing.T) {
	reg := NewTracerRegistry(2)
	reg.Tracer("a")
	reg.Tracer("b")
	reg.Tracer("c")

	_, ok := reg.Lookup("a")
	assert.False(t, ok)
	_, ok = reg.Lookup("c")
	assert.True(t, ok)

	// repeated access does not duplicate
	t1 := reg.Tracer("c")
	t2 := reg.Tracer("c")
	assert.Same(t, t1, t2)
}

func TestMetrics_Snapshot(t *testing.T) {
	m := NewMetrics()
	m.RecordRequest(2*time.Second, true)
	m.RecordRequest(4*time.Second, false)
	m.RecordAgentUsage("CodeGenAgent")
	m.RecordAgentUsage("CodeGenAgent")
	m.RecordAgentUsage("SafetyAgent")

	snap := m.Snapshot()
	assert.Equal(t, int64(2), snap.TotalRequests)
	assert.Equal(t, int64(1), snap.SuccessfulRequests)
	assert.Equal(t, int64(1), snap.FailedRequests)
	assert.Equal(t, "50.0%", snap.SuccessRate)
	assert.Equal(t, "3.00s", snap.AvgLatency)
	assert.Equal(t, int64(2), snap.AgentUsage["CodeGenAgent"])
}

func TestMetrics_EmptySnapshot(t *testing.T) {
	snap := NewMetrics().Snapshot()
	assert.Equal(t, "0.0%", snap.SuccessRate)
	assert.Equal(t, "0.00s", snap.AvgLatency)
}
