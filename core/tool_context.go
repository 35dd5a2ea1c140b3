package core

import (
	"context"
	"fmt"

	"github.com/coderlang-ai/coderlang/logging"
)

// ToolContext is the surface handed to tool implementations. Tools never
// touch the session directly; state writes, transfers, escalations and
// artifact diffs accumulate as EventActions and are merged into the tool
// response event when the call finishes.
type ToolContext struct {
	runCtx         *RunContext
	functionCallID string
	agentInfo      AgentInfo
	actions        EventActions
	valid          bool

	*loggerAdapter
}

// NewToolContext binds a tool invocation to its parent run. functionCallID
// correlates the response event with the model's function call.
func NewToolContext(runCtx *RunContext, functionCallID string) *ToolContext {
	return &ToolContext{
		runCtx:         runCtx,
		functionCallID: functionCallID,
		agentInfo:      runCtx.Agent,
		valid:          true,
		loggerAdapter:  newLoggerAdapter(runCtx.Logger()),
	}
}

func (tc *ToolContext) Context() context.Context { return tc.runCtx.Context }

func (tc *ToolContext) SessionID() string { return tc.runCtx.SessionID }

func (tc *ToolContext) RunID() string { return tc.runCtx.RunID }

func (tc *ToolContext) Logger() logging.Logger { return tc.loggerAdapter.Logger() }

func (tc *ToolContext) FunctionCallID() string { return tc.functionCallID }

func (tc *ToolContext) AgentName() string { return tc.agentInfo.Name }

func (tc *ToolContext) AgentType() string { return tc.agentInfo.Type }

// GetState reads state, preferring this tool's own staged writes over the
// parent run context's view.
func (tc *ToolContext) GetState(k string) (any, bool) {
	if v, ok := tc.actions.StateDelta[k]; ok {
		return v, true
	}

	return tc.runCtx.GetState(k)
}

// SetState stages a state write in the local action set; the delta reaches
// the session through the tool response event. Writes stay local to this
// tool call, so parallel tool calls in one batch never touch shared state.
func (tc *ToolContext) SetState(k string, v any) {
	if tc.actions.StateDelta == nil {
		tc.actions.StateDelta = map[string]any{}
	}

	tc.actions.StateDelta[k] = v
}

// Actions exposes the accumulated event actions.
func (tc *ToolContext) Actions() *EventActions { return &tc.actions }

// SkipSummarization marks the tool result as final output, telling the flow
// not to feed it back through the model.
func (tc *ToolContext) SkipSummarization() {
	if tc.actions.SkipSummarization == nil {
		b := true
		tc.actions.SkipSummarization = &b
	}
}

// TransferToAgent hands the conversation to another registered agent.
func (tc *ToolContext) TransferToAgent(name string) {
	tc.actions.TransferToAgent = &name
	tc.LogInfo("tool.transfer.request", "from_agent", tc.AgentName(), "to_agent", name, "function_call_id", tc.functionCallID)
}

// Escalate flags the run for escalation.
func (tc *ToolContext) Escalate() {
	if tc.actions.Escalate == nil {
		b := true
		tc.actions.Escalate = &b
	}

	tc.LogInfo("tool.escalate.request", "agent", tc.AgentName(), "function_call_id", tc.functionCallID)
}

// SaveArtifact stores artifact bytes for the session and records the size
// in the artifact delta.
func (tc *ToolContext) SaveArtifact(id string, data []byte) error {
	store := tc.runCtx.ArtifactStore
	if store == nil {
		return fmt.Errorf("artifact service not configured")
	}

	if err := store.Save(tc.SessionID(), id, data); err != nil {
		return err
	}

	if tc.actions.ArtifactDelta == nil {
		tc.actions.ArtifactDelta = map[string]int{}
	}

	tc.actions.ArtifactDelta[id] = len(data)

	return nil
}

func (tc *ToolContext) LoadArtifact(id string) ([]byte, error) {
	if tc.runCtx.ArtifactStore == nil {
		return nil, fmt.Errorf("artifact service not configured")
	}

	return tc.runCtx.ArtifactStore.Get(tc.SessionID(), id)
}

func (tc *ToolContext) ListArtifacts() ([]string, error) {
	if tc.runCtx.ArtifactStore == nil {
		return nil, fmt.Errorf("artifact service not configured")
	}

	return tc.runCtx.ArtifactStore.List(tc.SessionID())
}

// SearchMemory recalls stored memories matching a query.
func (tc *ToolContext) SearchMemory(q string, limit int) ([]SearchResult, error) {
	if tc.runCtx.MemoryStore == nil {
		return nil, fmt.Errorf("memory service not configured")
	}

	return tc.runCtx.MemoryStore.Search(tc.SessionID(), q, limit)
}

// StoreMemory writes content into the session's memory store.
func (tc *ToolContext) StoreMemory(content string, md map[string]any) error {
	if tc.runCtx.MemoryStore == nil {
		return fmt.Errorf("memory service not configured")
	}

	return tc.runCtx.MemoryStore.Store(tc.SessionID(), content, md)
}

// GetSessionHistory returns the session's conversation events.
func (tc *ToolContext) GetSessionHistory() []Event {
	if tc.runCtx.Session == nil {
		return nil
	}

	return tc.runCtx.Session.GetConversationHistory()
}

// RefreshSession replaces the run's session snapshot with the stored one.
func (tc *ToolContext) RefreshSession() error {
	if tc.runCtx.SessionStore == nil {
		return fmt.Errorf("session service not configured")
	}

	s, err := tc.runCtx.SessionStore.Get(tc.SessionID())
	if err != nil {
		return err
	}

	tc.runCtx.Session = s

	return nil
}

// EmitEvent sends an event on the run's emit channel without merging the
// accumulated actions.
func (tc *ToolContext) EmitEvent(ev Event) error {
	if tc.runCtx.Emit == nil {
		return fmt.Errorf("emit channel not configured")
	}

	select {
	case <-tc.runCtx.Context.Done():
		return tc.runCtx.Context.Err()
	case tc.runCtx.Emit <- ev:
		return nil
	}
}

// Validate checks the context is complete enough to execute a tool.
func (tc *ToolContext) Validate() error {
	if !tc.IsValid() {
		return fmt.Errorf("invalid ToolContext")
	}

	return nil
}

// IsValid reports whether the context is bound to a run and a function call.
func (tc *ToolContext) IsValid() bool {
	return tc.valid && tc.runCtx != nil && tc.runCtx.SessionID != "" && tc.functionCallID != ""
}

// InternalRunContext returns the parent run context.
func (tc *ToolContext) InternalRunContext() *RunContext { return tc.runCtx }

// InternalApplyActions merges the accumulated actions into a tool response
// event. Called by the flow when it finalizes a function response.
func (tc *ToolContext) InternalApplyActions(ev *Event) {
	if len(tc.actions.StateDelta) > 0 {
		if ev.Actions.StateDelta == nil {
			ev.Actions.StateDelta = map[string]any{}
		}

		for k, v := range tc.actions.StateDelta {
			ev.Actions.StateDelta[k] = v
		}
	}

	if tc.actions.TransferToAgent != nil {
		ev.Actions.TransferToAgent = tc.actions.TransferToAgent
		tc.LogInfo("tool.transfer.applied", "from_agent", tc.AgentName(), "to_agent", *tc.actions.TransferToAgent, "function_call_id", tc.functionCallID)
	}

	if tc.actions.Escalate != nil {
		ev.Actions.Escalate = tc.actions.Escalate
		tc.LogInfo("tool.escalate.applied", "agent", tc.AgentName(), "function_call_id", tc.functionCallID)
	}
}
