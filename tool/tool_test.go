package tool

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/coderlang-ai/coderlang/core"
	"github.com/coderlang-ai/coderlang/internal/util"
	"github.com/coderlang-ai/coderlang/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type lintArgs struct {
	Source    string `json:"source" description:"Source snippet to lint"`
	MaxIssues *int   `json:"max_issues" description:"Optional issue cap"`
	Fix       bool   `json:"fix,omitempty" description:"Apply fixes in place"`
}

func TestCreateSchema(t *testing.T) {
	schema := util.CreateSchema(lintArgs{})

	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "source")
	assert.Contains(t, props, "max_issues")
	assert.Contains(t, props, "fix")

	// Pointer and omitempty fields stay optional.
	req, _ := schema["required"].([]string)
	assert.ElementsMatch(t, []string{"source"}, req)
}

func TestValidateParameters(t *testing.T) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"line": map[string]any{"type": "integer"},
		},
		// The []any shape is what a JSON round trip produces.
		"required": []any{"line"},
	}

	err := util.ValidateParameters(map[string]any{"line": 42}, schema)
	assert.NoError(t, err)

	err = util.ValidateParameters(map[string]any{}, schema)
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "line", vErr.Field)

	err = util.ValidateParameters(map[string]any{"line": "forty-two"}, schema)
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.Message, "expected type integer")
}

func TestValidateParameters_RequiredStringSlice(t *testing.T) {
	// CreateSchema and hand-written schemas carry required as []string.
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"source": map[string]any{"type": "string"},
		},
		"required": []string{"source"},
	}

	err := util.ValidateParameters(map[string]any{}, schema)
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "source", vErr.Field)

	assert.NoError(t, util.ValidateParameters(map[string]any{"source": "package main"}, schema))
}

func TestFunctionTool_Success(t *testing.T) {
	params := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"source": map[string]any{"type": "string"},
		},
		"required": []string{"source"},
	}

	countLines := NewFunctionTool("count_lines", "Count lines in a snippet", params,
		func(_ *core.ToolContext, args map[string]any) (any, error) {
			return len(strings.Split(args["source"].(string), "\n")), nil
		})

	tc := core.NewToolContext(newToolRunContext(t), "fc1")

	result, err := countLines.Call(tc, map[string]any{"source": "package main\n\nfunc main() {}"})
	assert.NoError(t, err)
	assert.Equal(t, 3, result)
}

func TestFunctionTool_ValidationError(t *testing.T) {
	params := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"source": map[string]any{"type": "string"},
		},
		"required": []any{"source"},
	}

	lint := NewFunctionTool("lint_source", "Lint a snippet", params,
		func(_ *core.ToolContext, _ map[string]any) (any, error) {
			return 0, nil
		})

	tc := core.NewToolContext(newToolRunContext(t), "fc2")

	_, err := lint.Call(tc, map[string]any{})
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, "VALIDATION_ERROR", toolErr.Code)
}

func TestFunctionTool_ExecutionError(t *testing.T) {
	params := map[string]any{"type": "object", "properties": map[string]any{}}

	failing := NewFunctionTool("flaky", "Always fails", params,
		func(_ *core.ToolContext, _ map[string]any) (any, error) {
			return nil, errors.New("boom")
		})

	tc := core.NewToolContext(newToolRunContext(t), "fc3")

	_, err := failing.Call(tc, map[string]any{})
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, "EXECUTION_ERROR", toolErr.Code)
	assert.Equal(t, "boom", toolErr.Message)
}

func TestFunctionTool_ToolErrorPassthrough(t *testing.T) {
	params := map[string]any{"type": "object", "properties": map[string]any{}}

	custom := NewFunctionTool("quota", "Reports quota", params,
		func(_ *core.ToolContext, _ map[string]any) (any, error) {
			return nil, NewToolError("quota", "daily limit reached", "QUOTA_EXCEEDED")
		})

	tc := core.NewToolContext(newToolRunContext(t), "fc4")

	_, err := custom.Call(tc, map[string]any{})
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, "QUOTA_EXCEEDED", toolErr.Code)
}

// Minimal store stubs backing a RunContext for tool tests.

type stubSessions struct {
	mu       sync.RWMutex
	sessions map[string]*core.Session
}

func newStubSessions() *stubSessions {
	return &stubSessions{sessions: map[string]*core.Session{}}
}

func (s *stubSessions) Get(id string) (*core.Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()

	if !ok {
		return s.Create(id)
	}

	return sess.Clone(), nil
}

func (s *stubSessions) SaveSession(sess *core.Session) error {
	s.mu.Lock()
	s.sessions[sess.ID] = sess.Clone()
	s.mu.Unlock()

	return nil
}

func (s *stubSessions) Create(id string) (*core.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := core.NewSession(id)
	s.sessions[id] = sess

	return sess.Clone(), nil
}

func (s *stubSessions) AppendEvent(id string, ev core.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		s.sessions[id] = core.NewSession(id)
	}

	s.sessions[id].AddEvent(ev)

	return nil
}

func (s *stubSessions) ApplyDelta(id string, delta map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		s.sessions[id] = core.NewSession(id)
	}

	s.sessions[id].ApplyStateDelta(delta)

	return nil
}

type stubArtifacts struct {
	mu   sync.RWMutex
	data map[string]map[string][]byte
}

func newStubArtifacts() *stubArtifacts {
	return &stubArtifacts{data: map[string]map[string][]byte{}}
}

func (a *stubArtifacts) Save(sid, aid string, b []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.data[sid]; !ok {
		a.data[sid] = map[string][]byte{}
	}

	cp := make([]byte, len(b))
	copy(cp, b)
	a.data[sid][aid] = cp

	return nil
}

func (a *stubArtifacts) Get(sid, aid string) ([]byte, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	d, ok := a.data[sid][aid]
	if !ok {
		return nil, errors.New("not found")
	}

	cp := make([]byte, len(d))
	copy(cp, d)

	return cp, nil
}

func (a *stubArtifacts) List(sid string) ([]string, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	ids := make([]string, 0, len(a.data[sid]))
	for k := range a.data[sid] {
		ids = append(ids, k)
	}

	return ids, nil
}

func (a *stubArtifacts) Delete(sid, aid string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if m, ok := a.data[sid]; ok {
		delete(m, aid)
	}

	return nil
}

type stubMemories struct {
	mu    sync.RWMutex
	store map[string][]core.SearchResult
}

func newStubMemories() *stubMemories {
	return &stubMemories{store: map[string][]core.SearchResult{}}
}

func (m *stubMemories) Search(sid, _ string, limit int) ([]core.SearchResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	results := m.store[sid]
	if limit < len(results) {
		results = results[:limit]
	}

	return results, nil
}

func (m *stubMemories) Store(sid, content string, metadata map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.store[sid] = append(m.store[sid], core.SearchResult{
		ID:       content,
		Content:  content,
		Score:    1.0,
		Metadata: metadata,
	})

	return nil
}

func (m *stubMemories) Delete(_, _ string) error { return nil }

func (m *stubMemories) Get(_ string) (map[string]any, error) { return map[string]any{}, nil }

func (m *stubMemories) Put(_ string, _ map[string]any) error { return nil }

func newToolRunContext(t *testing.T) *core.RunContext {
	t.Helper()

	sessions := newStubSessions()

	sessionID := "sess-1"
	if _, err := sessions.Create(sessionID); err != nil {
		t.Fatal(err)
	}

	emit := make(chan core.Event, 10)
	resume := make(chan struct{}, 1)

	return core.NewRunContext(
		context.Background(),
		sessionID,
		"run-1",
		core.AgentInfo{Name: "CodeGenerator", Type: "test"},
		core.Content{},
		0,
		emit,
		resume,
		core.NewSession(sessionID),
		sessions,
		newStubArtifacts(),
		newStubMemories(),
		logging.NoOpLogger{},
	)
}

func TestStateManagerTool_SetAndGetState(t *testing.T) {
	sm := NewStateManagerTool()
	rc := newToolRunContext(t)
	tc := core.NewToolContext(rc, "fc-set")

	res, err := sm.Call(tc, map[string]any{
		"operation": "set_state",
		"key":       "target_language",
		"value":     "go",
	})
	require.NoError(t, err)

	m := res.(map[string]any)
	assert.Equal(t, "target_language", m["key"])
	assert.Equal(t, "go", m["value"])
	assert.Equal(t, "go", tc.Actions().StateDelta["target_language"])

	// Commit staged actions the way the flow would: apply onto an event,
	// then merge into the session.
	ev := core.Event{Actions: core.EventActions{StateDelta: map[string]any{}}}
	tc.InternalApplyActions(&ev)
	rc.Session.ApplyStateDelta(ev.Actions.StateDelta)

	tcGet := core.NewToolContext(rc, "fc-get")

	res, err = sm.Call(tcGet, map[string]any{"operation": "get_state", "key": "target_language"})
	require.NoError(t, err)

	gm := res.(map[string]any)
	assert.True(t, gm["exists"].(bool))
	assert.Equal(t, "go", gm["value"])
}

func TestStateManagerTool_MissingState(t *testing.T) {
	sm := NewStateManagerTool()
	tc := core.NewToolContext(newToolRunContext(t), "fc-miss")

	res, err := sm.Call(tc, map[string]any{"operation": "get_state", "key": "absent"})
	require.NoError(t, err)

	m := res.(map[string]any)
	assert.False(t, m["exists"].(bool))
	assert.Nil(t, m["value"])
}

func TestStateManagerTool_FlowControlActions(t *testing.T) {
	sm := NewStateManagerTool()
	rc := newToolRunContext(t)

	tc := core.NewToolContext(rc, "fc-flow")
	_, err := sm.Call(tc, map[string]any{"operation": "escalate"})
	require.NoError(t, err)
	require.NotNil(t, tc.Actions().Escalate)
	assert.True(t, *tc.Actions().Escalate)

	tc2 := core.NewToolContext(rc, "fc-transfer")
	_, err = sm.Call(tc2, map[string]any{"operation": "transfer_agent", "agent_name": "DebugAgent"})
	require.NoError(t, err)
	require.NotNil(t, tc2.Actions().TransferToAgent)
	assert.Equal(t, "DebugAgent", *tc2.Actions().TransferToAgent)

	tc3 := core.NewToolContext(rc, "fc-skip")
	_, err = sm.Call(tc3, map[string]any{"operation": "skip_summarization"})
	require.NoError(t, err)
	require.NotNil(t, tc3.Actions().SkipSummarization)
	assert.True(t, *tc3.Actions().SkipSummarization)
}

func TestStateManagerTool_UnknownOperation(t *testing.T) {
	sm := NewStateManagerTool()
	tc := core.NewToolContext(newToolRunContext(t), "fc-bad")

	_, err := sm.Call(tc, map[string]any{"operation": "reticulate"})
	assert.ErrorContains(t, err, "unknown operation")
}

func TestToolErrorFormatting(t *testing.T) {
	err := NewToolError("run_code", "sandbox timeout", "EXECUTION_ERROR")
	assert.Contains(t, err.Error(), "EXECUTION_ERROR")
	assert.Contains(t, err.Error(), "run_code")

	bare := &ToolError{Tool: "run_code", Message: "sandbox timeout"}
	assert.NotContains(t, bare.Error(), "[")
}
