package core

import (
	"context"
	"fmt"
	"maps"

	"github.com/coderlang-ai/coderlang/logging"
)

// RunContext is the per-run execution scope handed to an Agent's Run
// method: identifiers, the user's input, the session snapshot, the backing
// stores, and the channels coordinating event emission with the engine.
//
// Writes made through SetState and SaveArtifact are staged locally; they
// reach the session only when EmitEvent folds them into an event's actions
// or CommitStateDelta flushes them. Clone gives a child its own staging
// buffers while sharing the stores, so concurrent branches cannot see each
// other's uncommitted writes.
type RunContext struct {
	Context          context.Context
	SessionID, RunID string
	Agent            AgentInfo
	UserContent      Content
	MaxModelCalls    int
	Emit             chan<- Event
	Resume           <-chan struct{}
	SessionStore     SessionStore
	ArtifactStore    ArtifactStore
	MemoryStore      MemoryStore
	Limiter          *ModelLimiter
	Session          *Session
	StateDelta       map[string]any
	Artifacts        []string
	Branch           string

	*loggerAdapter
}

// NewRunContext builds a run context with empty staging buffers and a
// model-call limiter sized to maxModelCalls.
func NewRunContext(
	ctx context.Context,
	sessionID, runID string,
	agent AgentInfo,
	userContent Content,
	maxModelCalls int,
	emit chan<- Event,
	resume <-chan struct{},
	sess *Session,
	sessionStore SessionStore,
	artifactStore ArtifactStore,
	memoryStore MemoryStore,
	logger logging.Logger,
) *RunContext {
	return &RunContext{
		Context:       ctx,
		SessionID:     sessionID,
		RunID:         runID,
		Agent:         agent,
		UserContent:   userContent,
		MaxModelCalls: maxModelCalls,
		Emit:          emit,
		Resume:        resume,
		Session:       sess,
		SessionStore:  sessionStore,
		ArtifactStore: artifactStore,
		MemoryStore:   memoryStore,
		Limiter:       NewModelLimiter(maxModelCalls),
		StateDelta:    map[string]any{},
		Artifacts:     []string{},
		loggerAdapter: newLoggerAdapter(logger),
	}
}

// Done exposes the underlying context's cancellation channel.
func (rc *RunContext) Done() <-chan struct{} { return rc.Context.Done() }

// Err reports the underlying context's cancellation error.
func (rc *RunContext) Err() error { return rc.Context.Err() }

// GetState reads a key, preferring a staged write over the persisted
// session value.
func (rc *RunContext) GetState(k string) (any, bool) {
	if v, ok := rc.StateDelta[k]; ok {
		return v, true
	}

	if rc.Session != nil {
		return rc.Session.GetState(k)
	}

	return nil, false
}

// SetState stages a state write.
func (rc *RunContext) SetState(k string, v any) { rc.StateDelta[k] = v }

// ApplyStateDelta stages every pair from d.
func (rc *RunContext) ApplyStateDelta(d map[string]any) {
	maps.Copy(rc.StateDelta, d)
}

// AddArtifact stages an artifact id for the next emitted event.
func (rc *RunContext) AddArtifact(id string) { rc.Artifacts = append(rc.Artifacts, id) }

// SaveArtifact writes the bytes to the artifact store and stages the id.
func (rc *RunContext) SaveArtifact(id string, data []byte) error {
	if rc.ArtifactStore == nil {
		return fmt.Errorf("artifact store not configured")
	}

	if err := rc.ArtifactStore.Save(rc.SessionID, id, data); err != nil {
		return err
	}

	rc.AddArtifact(id)

	return nil
}

// GetArtifact reads previously saved artifact bytes.
func (rc *RunContext) GetArtifact(id string) ([]byte, error) {
	if rc.ArtifactStore == nil {
		return nil, fmt.Errorf("artifact store not configured")
	}

	return rc.ArtifactStore.Get(rc.SessionID, id)
}

// ListArtifacts returns the session's artifact ids, or an empty list when
// no store is configured.
func (rc *RunContext) ListArtifacts() ([]string, error) {
	if rc.ArtifactStore == nil {
		return []string{}, nil
	}

	return rc.ArtifactStore.List(rc.SessionID)
}

// SearchMemory queries long-term memory; without a store it matches
// nothing.
func (rc *RunContext) SearchMemory(q string, limit int) ([]SearchResult, error) {
	if rc.MemoryStore == nil {
		return []SearchResult{}, nil
	}

	return rc.MemoryStore.Search(rc.SessionID, q, limit)
}

// StoreMemory writes a memory entry with metadata.
func (rc *RunContext) StoreMemory(content string, md map[string]any) error {
	if rc.MemoryStore == nil {
		return fmt.Errorf("memory store not configured")
	}

	return rc.MemoryStore.Store(rc.SessionID, content, md)
}

// RefreshSession replaces the session snapshot with the store's current
// view.
func (rc *RunContext) RefreshSession() error {
	if rc.SessionStore == nil {
		return fmt.Errorf("session store not configured")
	}

	s, err := rc.SessionStore.Get(rc.SessionID)
	if err != nil {
		return err
	}

	rc.Session = s

	return nil
}

// CommitStateDelta flushes staged state writes to the session store and
// clears the buffer. A no-op when nothing is staged.
func (rc *RunContext) CommitStateDelta() error {
	if len(rc.StateDelta) == 0 {
		return nil
	}

	if rc.SessionStore == nil {
		return fmt.Errorf("session store not configured")
	}

	if err := rc.SessionStore.ApplyDelta(rc.SessionID, rc.StateDelta); err != nil {
		return err
	}

	rc.StateDelta = map[string]any{}

	return nil
}

// GetSessionHistory returns every event recorded on the session snapshot.
func (rc *RunContext) GetSessionHistory() []Event {
	if rc.Session == nil {
		return []Event{}
	}

	return rc.Session.GetEvents()
}

// GetAgentName returns the invoking agent's name.
func (rc *RunContext) GetAgentName() string { return rc.Agent.Name }

// GetAgentType returns the invoking agent's type label.
func (rc *RunContext) GetAgentType() string { return rc.Agent.Type }

// Clone copies the context with fresh copies of the staging buffers.
// Stores, channels and the session snapshot are shared.
func (rc *RunContext) Clone() *RunContext {
	c := &RunContext{
		Context:       rc.Context,
		SessionID:     rc.SessionID,
		RunID:         rc.RunID,
		Agent:         rc.Agent,
		UserContent:   rc.UserContent,
		Emit:          rc.Emit,
		Resume:        rc.Resume,
		SessionStore:  rc.SessionStore,
		ArtifactStore: rc.ArtifactStore,
		MemoryStore:   rc.MemoryStore,
		Limiter:       rc.Limiter,
		Session:       rc.Session,
		StateDelta:    make(map[string]any, len(rc.StateDelta)),
		Artifacts:     make([]string, 0, len(rc.Artifacts)),
		Branch:        rc.Branch,
		loggerAdapter: rc.loggerAdapter,
	}

	maps.Copy(c.StateDelta, rc.StateDelta)
	c.Artifacts = append(c.Artifacts, rc.Artifacts...)

	return c
}

// WithBranch clones the context under a new branch label.
func (rc *RunContext) WithBranch(b string) *RunContext {
	c := rc.Clone()
	c.Branch = b

	return c
}

// NewChildContext derives a context for a nested execution path with its
// own emit and resume channels and empty staging buffers. An empty branch
// inherits the parent's.
func (rc *RunContext) NewChildContext(emit chan<- Event, resume <-chan struct{}, branch string) *RunContext {
	if branch == "" {
		branch = rc.Branch
	}

	return &RunContext{
		Context:       rc.Context,
		SessionID:     rc.SessionID,
		RunID:         rc.RunID,
		Agent:         rc.Agent,
		UserContent:   rc.UserContent,
		Emit:          emit,
		Resume:        resume,
		SessionStore:  rc.SessionStore,
		ArtifactStore: rc.ArtifactStore,
		MemoryStore:   rc.MemoryStore,
		Limiter:       rc.Limiter,
		Session:       rc.Session,
		StateDelta:    map[string]any{},
		Artifacts:     []string{},
		Branch:        branch,
		loggerAdapter: rc.loggerAdapter,
	}
}

// EmitEvent folds the staged state and artifact deltas into the event's
// actions, sends it, and clears the buffers. Blocks until the engine
// accepts the event or the run is cancelled.
func (rc *RunContext) EmitEvent(ev Event) error {
	if len(rc.StateDelta) > 0 {
		if ev.Actions.StateDelta == nil {
			ev.Actions.StateDelta = make(map[string]any, len(rc.StateDelta))
		}

		maps.Copy(ev.Actions.StateDelta, rc.StateDelta)
	}

	if len(rc.Artifacts) > 0 {
		if ev.Actions.ArtifactDelta == nil {
			ev.Actions.ArtifactDelta = map[string]int{}
		}

		for _, id := range rc.Artifacts {
			ev.Actions.ArtifactDelta[id] = 1
		}
	}

	select {
	case <-rc.Context.Done():
		return rc.Context.Err()
	case rc.Emit <- ev:
	}

	rc.StateDelta = map[string]any{}
	rc.Artifacts = []string{}

	return nil
}

// WaitForResume blocks until the engine signals that the last emitted
// event has been persisted. A nil Resume channel disables the handshake.
func (rc *RunContext) WaitForResume() error {
	if rc.Resume == nil {
		return nil
	}

	select {
	case <-rc.Resume:
		return nil
	case <-rc.Context.Done():
		return rc.Context.Err()
	}
}
