package orchestrator

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/coderlang-ai/coderlang/cache"
	"github.com/coderlang-ai/coderlang/core"
	"github.com/coderlang-ai/coderlang/logging"
	"github.com/coderlang-ai/coderlang/model"
	"github.com/coderlang-ai/coderlang/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// roleModel answers by system instruction, so different worker roles sharing
// one prompt still get distinct completions.
type roleModel struct {
	name      string
	responses map[string]string
	calls     atomic.Int64
}

func newRoleModel(name string) *roleModel {
	return &roleModel{name: name, responses: map[string]string{}}
}

func (m *roleModel) respond(role, text string) { m.responses[SystemPrompts[role]] = text }

func (m *roleModel) Generate(_ context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	m.calls.Add(1)

	respCh := make(chan model.Response, 1)
	errCh := make(chan error, 1)

	text, ok := m.responses[req.Instructions]
	if !ok {
		errCh <- fmt.Errorf("no canned response for instructions")
	} else {
		respCh <- model.Response{
			Content:      core.Content{Role: "assistant", Parts: []core.Part{core.TextPart{Text: text}}},
			FinishReason: "stop",
		}
	}

	close(respCh)
	close(errCh)

	return respCh, errCh
}

func (m *roleModel) Info() model.Info {
	return model.Info{Name: m.name, Provider: "mock", SupportsTools: true}
}

// runWorkflow drives a coordinator run the way the engine does: every
// emitted event's state delta is applied to the store before resuming.
func runWorkflow(t *testing.T, c *Coordinator, store core.SessionStore, sessionID, prompt string) ([]core.Event, error) {
	t.Helper()

	sess, err := store.Get(sessionID)
	require.NoError(t, err)

	emit := make(chan core.Event)
	resume := make(chan struct{})

	rc := core.NewRunContext(
		context.Background(),
		sessionID,
		core.NewID(),
		core.AgentInfo{Name: c.Name(), Type: "coordinator"},
		core.Content{Role: "user", Parts: []core.Part{core.TextPart{Text: prompt}}},
		0,
		emit,
		resume,
		sess,
		store,
		nil,
		nil,
		logging.NoOpLogger{},
	)

	done := make(chan error, 1)

	go func() { done <- c.Run(rc) }()

	var events []core.Event

	for {
		select {
		case ev := <-emit:
			events = append(events, ev)

			if len(ev.Actions.StateDelta) > 0 {
				require.NoError(t, store.ApplyDelta(sessionID, ev.Actions.StateDelta))
			}

			resume <- struct{}{}
		case err := <-done:
			return events, err
		}
	}
}

func sessionSummary(t *testing.T, store core.SessionStore, sessionID string) *Summary {
	t.Helper()

	sess, err := store.Get(sessionID)
	require.NoError(t, err)

	v, ok := sess.GetState(StateKeySummary)
	require.True(t, ok, "summary not in session state")

	summary, ok := SummaryFromState(v)
	require.True(t, ok)

	return summary
}

func TestCoordinator_CodeWorkflow(t *testing.T) {
	fast := newRoleModel("fast-tier")
	smart := newRoleModel("smart-tier")

	fast.respond(RoleRouter, `{"intent_summary": "implement adder", "agents_to_run": ["CodeGenAgent", "SafetyAgent", "TestGenAgent", "DocstringAgent", "ExplainAgent", "EvaluatorAgent"], "parallelizable": true}`)
	smart.respond(RoleCodeGen, "```python\ndef add(a, b):\n    return a + b\n```")
	fast.respond(RoleSafety, "Verdict: SAFE")
	fast.respond(RoleTestGen, "class TestAdd(unittest.TestCase): ...")
	fast.respond(RoleDocstring, "def add(a, b):\n    \"\"\"Return the sum.\"\"\"\n    return a + b")
	fast.respond(RoleExplain, "Adds two numbers.")
	fast.respond(RoleEvaluator, "Score: 9/10. Justification: Clean and tested.")

	store := session.NewInMemoryStore()
	c := NewCoordinator(fast, smart)

	events, err := runWorkflow(t, c, store, "s1", "write an add function")
	require.NoError(t, err)
	require.NotEmpty(t, events)

	final := events[len(events)-1]
	require.NotNil(t, final.TurnComplete)
	assert.True(t, *final.TurnComplete)

	summary := sessionSummary(t, store, "s1")
	assert.Equal(t, "implement adder", summary.Intent)
	assert.Contains(t, summary.GeneratedCode, "Return the sum.")
	assert.Equal(t, "Adds two numbers.", summary.Explanation)
	assert.Equal(t, "Verdict: SAFE", summary.Safety)
	assert.Contains(t, summary.Tests, "TestAdd")
	assert.Equal(t, 9, summary.Score)
	assert.Equal(t, StageComplete, summary.Stage)
	assert.NotEmpty(t, summary.Logs)

	sess, err := store.Get("s1")
	require.NoError(t, err)

	stage, ok := sess.GetState(StateKeyStage)
	require.True(t, ok)
	assert.Equal(t, StageComplete, stage)

	tracer, ok := c.Tracers().Lookup(events[0].RunID)
	require.True(t, ok)
	assert.NotEmpty(t, tracer.Events())

	snap := c.Metrics().Snapshot()
	assert.Equal(t, int64(1), snap.TotalRequests)
	assert.Equal(t, int64(1), snap.SuccessfulRequests)
}

func TestCoordinator_FallbackOnBadRouterOutput(t *testing.T) {
	fast := newRoleModel("fast-tier")
	smart := newRoleModel("smart-tier")

	fast.respond(RoleRouter, "not json at all")
	fast.respond(RoleGeneral, "Hello there!")

	store := session.NewInMemoryStore()
	c := NewCoordinator(fast, smart)

	_, err := runWorkflow(t, c, store, "s1", "hi")
	require.NoError(t, err)

	summary := sessionSummary(t, store, "s1")
	assert.Equal(t, "Fallback", summary.Intent)
	assert.Empty(t, summary.GeneratedCode)
	assert.Equal(t, "Hello there!", summary.Explanation)
	assert.Zero(t, smart.calls.Load())
}

func TestCoordinator_SkipsDerivativesWithoutCode(t *testing.T) {
	fast := newRoleModel("fast-tier")
	smart := newRoleModel("smart-tier")

	fast.respond(RoleRouter, `{"intent_summary": "explain closures", "agents_to_run": ["GeneralAgent", "ExplainAgent"], "parallelizable": true}`)
	fast.respond(RoleGeneral, "A closure captures variables.")
	fast.respond(RoleExplain, "Closures keep their environment alive.")

	store := session.NewInMemoryStore()
	c := NewCoordinator(fast, smart)

	_, err := runWorkflow(t, c, store, "s1", "what is a closure")
	require.NoError(t, err)

	summary := sessionSummary(t, store, "s1")
	assert.Empty(t, summary.GeneratedCode)
	assert.Empty(t, summary.Safety)
	assert.Empty(t, summary.Tests)
	assert.Equal(t, "Closures keep their environment alive.", summary.Explanation)
	assert.Zero(t, smart.calls.Load())
}

func TestCoordinator_ResumesFromPersistedStage(t *testing.T) {
	fast := newRoleModel("fast-tier")
	smart := newRoleModel("smart-tier")

	fast.respond(RoleEvaluator, "Score: 7/10. Justification: Works but terse.")

	store := session.NewInMemoryStore()

	_, err := store.Create("s1")
	require.NoError(t, err)

	// Simulate a run interrupted after the derivative stage.
	require.NoError(t, store.ApplyDelta("s1", map[string]any{
		StateKeyStage: StageTwo,
		StateKeyPlan: map[string]any{
			"intent_summary": "resumed task",
			"agents_to_run":  []any{RoleCodeGen, RoleEvaluator},
			"parallelizable": false,
		},
		StateKeyResults: map[string]any{
			RoleCodeGen: map[string]any{"text": "print('hi')", "ok": true},
		},
	}))

	c := NewCoordinator(fast, smart)

	_, err = runWorkflow(t, c, store, "s1", "print hi")
	require.NoError(t, err)

	summary := sessionSummary(t, store, "s1")
	assert.Equal(t, "resumed task", summary.Intent)
	assert.Equal(t, "print('hi')", summary.GeneratedCode)
	assert.Equal(t, 7, summary.Score)

	// Only the evaluator should have run.
	assert.Equal(t, int64(1), fast.calls.Load())
	assert.Zero(t, smart.calls.Load())
}

func TestCoordinator_CachesWorkerCompletions(t *testing.T) {
	fast := newRoleModel("fast-tier")
	smart := newRoleModel("smart-tier")

	fast.respond(RoleRouter, `{"intent_summary": "chat", "agents_to_run": ["GeneralAgent"], "parallelizable": false}`)
	fast.respond(RoleGeneral, "Cached hello.")

	store := session.NewInMemoryStore()
	c := NewCoordinator(fast, smart, func(o *Options) {
		o.Cache = cache.NewMemoryCache()
	})

	_, err := runWorkflow(t, c, store, "s1", "hello")
	require.NoError(t, err)

	callsAfterFirst := fast.calls.Load()

	_, err = runWorkflow(t, c, store, "s2", "hello")
	require.NoError(t, err)

	assert.Equal(t, callsAfterFirst, fast.calls.Load())

	summary := sessionSummary(t, store, "s2")
	assert.Equal(t, "Cached hello.", summary.Explanation)
}

func TestCoordinator_WorkerFailureIsNonFatal(t *testing.T) {
	fast := newRoleModel("fast-tier")
	smart := newRoleModel("smart-tier")

	fast.respond(RoleRouter, `{"intent_summary": "code", "agents_to_run": ["CodeGenAgent", "SafetyAgent"], "parallelizable": false}`)
	smart.respond(RoleCodeGen, "def f(): pass")
	// No SafetyAgent response registered: the worker errors out.

	store := session.NewInMemoryStore()
	c := NewCoordinator(fast, smart)

	_, err := runWorkflow(t, c, store, "s1", "write f")
	require.NoError(t, err)

	summary := sessionSummary(t, store, "s1")
	assert.Equal(t, "def f(): pass", summary.GeneratedCode)
	assert.Empty(t, summary.Safety)
}
