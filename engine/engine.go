package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/coderlang-ai/coderlang/artifact"
	"github.com/coderlang-ai/coderlang/core"
	"github.com/coderlang-ai/coderlang/logging"
	"github.com/coderlang-ai/coderlang/memory"
	"github.com/coderlang-ai/coderlang/observability"
	"github.com/coderlang-ai/coderlang/session"
)

// Config defines tuning parameters for the engine's runtime behavior.
type Config struct {
	// MaxConcurrentRuns bounds simultaneous agent runs. 0 means unlimited.
	MaxConcurrentRuns int

	// MaxModelCalls caps model calls per run. 0 means unlimited.
	MaxModelCalls int

	// EnableStreaming forwards partial events to clients. When disabled,
	// only complete events are delivered.
	EnableStreaming bool

	// EventBufferSize sets the channel buffer for event delivery.
	EventBufferSize int

	// TraceDir receives one JSON trace file per completed run when non-empty.
	TraceDir string
}

// DefaultConfig provides conservative defaults suitable for most deployments.
var DefaultConfig = Config{
	MaxConcurrentRuns: 10,
	MaxModelCalls:     50,
	EnableStreaming:   true,
	EventBufferSize:   100,
}

// Options configures an Engine. All stores default to in-memory
// implementations so the engine works without external dependencies.
type Options struct {
	Config        Config
	SessionStore  core.SessionStore
	ArtifactStore core.ArtifactStore
	MemoryStore   core.MemoryStore
	Callbacks     *CallbackManager
	Tracers       *observability.TracerRegistry
	Logger        logging.Logger
}

// Engine orchestrates agent execution. It owns the agent registry, starts
// runs, persists emitted events and their state deltas, and coordinates the
// emit/resume handshake with running agents.
//
// Event flow per run:
//  1. The user content is persisted as the opening event.
//  2. The agent emits events; state and artifact deltas are applied first.
//  3. Non-partial events are appended to session history.
//  4. Events are forwarded to the client channel, then the agent is resumed.
type Engine struct {
	sessionStore  core.SessionStore
	artifactStore core.ArtifactStore
	memoryStore   core.MemoryStore
	callbacks     *CallbackManager
	tracers       *observability.TracerRegistry
	logger        logging.Logger

	config Config

	agents map[string]core.Agent
	mu     sync.RWMutex

	activeRuns map[string]context.CancelFunc
	runsMu     sync.RWMutex

	sem chan struct{}
}

// New creates an Engine with in-memory defaults, configurable via functional options.
func New(optFns ...func(o *Options)) *Engine {
	opts := Options{
		Config:        DefaultConfig,
		SessionStore:  session.NewInMemoryStore(),
		ArtifactStore: artifact.NewInMemoryStore(),
		MemoryStore:   memory.NewInMemoryStore(),
		Callbacks:     NewCallbackManager(),
		Logger:        logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Tracers == nil {
		opts.Tracers = observability.NewTracerRegistry(0)
	}

	e := &Engine{
		sessionStore:  opts.SessionStore,
		artifactStore: opts.ArtifactStore,
		memoryStore:   opts.MemoryStore,
		callbacks:     opts.Callbacks,
		tracers:       opts.Tracers,
		config:        opts.Config,
		agents:        make(map[string]core.Agent),
		activeRuns:    make(map[string]context.CancelFunc),
		logger:        opts.Logger,
	}

	if opts.Config.MaxConcurrentRuns > 0 {
		e.sem = make(chan struct{}, opts.Config.MaxConcurrentRuns)
	}

	return e
}

// Register adds an agent to the registry under its name. A same-named agent
// is replaced.
func (e *Engine) Register(a core.Agent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.agents[a.Name()] = a
}

// GetAgent retrieves a registered agent by name.
func (e *Engine) GetAgent(name string) (core.Agent, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	a, ok := e.agents[name]

	return a, ok
}

// Tracers exposes the trace registry shared with agents.
func (e *Engine) Tracers() *observability.TracerRegistry { return e.tracers }

// Invoke starts an agent run and returns the run ID plus channels streaming
// its events and terminal error. The returned error covers startup failures
// only; execution failures arrive on the error channel.
func (e *Engine) Invoke(
	ctx context.Context,
	sessionID string,
	agentName string,
	userContent core.Content,
) (string, <-chan core.Event, <-chan error, error) {
	agent, ok := e.GetAgent(agentName)
	if !ok {
		return "", nil, nil, fmt.Errorf("agent %s not found", agentName)
	}

	if e.sem != nil {
		select {
		case e.sem <- struct{}{}:
		case <-ctx.Done():
			return "", nil, nil, ctx.Err()
		}
	}

	sess, err := e.sessionStore.Get(sessionID)
	if err != nil {
		e.release()
		return "", nil, nil, fmt.Errorf("failed to get session: %w", err)
	}

	runID := uuid.NewString()

	eventsCh := make(chan core.Event, e.config.EventBufferSize)
	errorsCh := make(chan error, 1)
	agentEmit := make(chan core.Event, e.config.EventBufferSize)
	resumeCh := make(chan struct{}, 1)

	runCtx, cancel := context.WithCancel(ctx)

	e.runsMu.Lock()
	e.activeRuns[runID] = cancel
	e.runsMu.Unlock()

	rc := core.NewRunContext(
		runCtx,
		sessionID,
		runID,
		core.AgentInfo{Name: agent.Name(), Type: "agent"},
		userContent,
		e.config.MaxModelCalls,
		agentEmit,
		resumeCh,
		sess,
		e.sessionStore,
		e.artifactStore,
		e.memoryStore,
		e.logger,
	)

	userEvent := core.NewUserContentEvent(runID, &userContent)
	if err := e.sessionStore.AppendEvent(sessionID, userEvent); err != nil {
		e.cleanupRun(runID, cancel)
		return "", nil, nil, fmt.Errorf("failed to append user event: %w", err)
	}

	e.tracers.Tracer(runID).Record("engine", agentName, "invoke", map[string]any{"session_id": sessionID})

	var wg sync.WaitGroup

	wg.Add(2)

	go func() {
		defer func() {
			close(agentEmit)
			wg.Done()
		}()

		if err := e.runAgent(rc, agent); err != nil {
			e.tracers.Tracer(runID).Record(agentName, "engine", "run_failed", map[string]any{"error": err.Error()})

			select {
			case <-runCtx.Done():
			case errorsCh <- fmt.Errorf("agent execution failed: %w", err):
			}
		}
	}()

	go func() {
		defer func() {
			close(eventsCh)
			// Unblocks an agent still emitting after processing stops.
			cancel()
			wg.Done()
		}()

		e.processEvents(runCtx, sessionID, agentEmit, resumeCh, eventsCh, errorsCh)
	}()

	go func() {
		wg.Wait()
		// Persist the trace before the error channel closes, so callers
		// observing run completion can read the file.
		e.cleanupRun(runID, nil)
		close(errorsCh)
	}()

	return runID, eventsCh, errorsCh, nil
}

// InvokeSync runs an agent to completion and returns all emitted events.
func (e *Engine) InvokeSync(
	ctx context.Context,
	sessionID string,
	agentName string,
	userContent core.Content,
) (string, []core.Event, error) {
	runID, eventsCh, errorsCh, err := e.Invoke(ctx, sessionID, agentName, userContent)
	if err != nil {
		return "", nil, err
	}

	var events []core.Event

	for {
		select {
		case <-ctx.Done():
			return runID, events, ctx.Err()
		case event, ok := <-eventsCh:
			if !ok {
				select {
				case err := <-errorsCh:
					return runID, events, err
				default:
					return runID, events, nil
				}
			}

			events = append(events, event)
		case err := <-errorsCh:
			if err != nil {
				return runID, events, err
			}
		}
	}
}

// StopRun cancels a specific run by its ID.
func (e *Engine) StopRun(runID string) error {
	e.runsMu.Lock()
	cancel, exists := e.activeRuns[runID]
	e.runsMu.Unlock()

	if !exists {
		return fmt.Errorf("run %s not found", runID)
	}

	cancel()

	return nil
}

// GetSession retrieves a point-in-time session snapshot by ID.
func (e *Engine) GetSession(sessionID string) (*core.Session, error) {
	return e.sessionStore.Get(sessionID)
}

func (e *Engine) release() {
	if e.sem != nil {
		<-e.sem
	}
}

func (e *Engine) cleanupRun(runID string, cancel context.CancelFunc) {
	e.runsMu.Lock()
	if cancel == nil {
		cancel = e.activeRuns[runID]
	}
	delete(e.activeRuns, runID)
	e.runsMu.Unlock()

	if cancel != nil {
		cancel()
	}

	if e.config.TraceDir != "" {
		if tr, ok := e.tracers.Lookup(runID); ok {
			if _, err := tr.Save(e.config.TraceDir); err != nil {
				e.logger.Warn("engine.trace.save_failed", "run_id", runID, "error", err)
			}
		}
	}

	e.release()
}

func (e *Engine) runAgent(rc *core.RunContext, agent core.Agent) error {
	cbCtx := &CallbackContext{RunContext: rc, AgentID: agent.Name()}

	if err := e.callbacks.Execute(rc.Context, CallbackBeforeAgent, cbCtx); err != nil {
		return fmt.Errorf("before-agent callback rejected run: %w", err)
	}

	if err := agent.Start(rc); err != nil {
		return err
	}

	defer func() {
		if err := agent.Stop(rc); err != nil {
			e.logger.Warn("engine.agent.stop_failed", "agent", agent.Name(), "error", err)
		}

		cbCtx.CallbackType = CallbackAfterAgent
		if err := e.callbacks.Execute(rc.Context, CallbackAfterAgent, cbCtx); err != nil {
			e.logger.Warn("engine.callback.after_agent_failed", "agent", agent.Name(), "error", err)
		}
	}()

	if err := agent.Run(rc); err != nil {
		cbCtx.CallbackType = CallbackOnError
		if cbErr := e.callbacks.Execute(rc.Context, CallbackOnError, cbCtx); cbErr != nil {
			e.logger.Warn("engine.callback.on_error_failed", "agent", agent.Name(), "error", cbErr)
		}

		return err
	}

	return nil
}

// processEvents applies each emitted event's actions, persists it, forwards
// it to the client and resumes the agent. Service errors terminate the run.
func (e *Engine) processEvents(
	ctx context.Context,
	sessionID string,
	agentEmit <-chan core.Event,
	resumeCh chan<- struct{},
	eventsCh chan<- core.Event,
	errorsCh chan<- error,
) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-agentEmit:
			if !ok {
				return
			}

			if err := e.applyEventActions(ctx, sessionID, ev); err != nil {
				select {
				case <-ctx.Done():
				case errorsCh <- fmt.Errorf("failed to process event actions: %w", err):
				}

				return
			}

			if !ev.IsPartial() {
				if err := e.sessionStore.AppendEvent(sessionID, ev); err != nil {
					select {
					case <-ctx.Done():
					case errorsCh <- fmt.Errorf("failed to append event to session: %w", err):
					}

					return
				}
			}

			if e.config.EnableStreaming || !ev.IsPartial() {
				select {
				case <-ctx.Done():
					return
				case eventsCh <- ev:
					e.logger.Debug("engine.event.delivered", "event_id", ev.ID, "session_id", sessionID)
				}
			}

			if !ev.IsPartial() {
				select {
				case <-ctx.Done():
					return
				case resumeCh <- struct{}{}:
				default:
				}
			}
		}
	}
}

// applyEventActions applies the side-effects encoded in an event's Actions.
func (e *Engine) applyEventActions(ctx context.Context, sessionID string, ev core.Event) error {
	if len(ev.Actions.StateDelta) > 0 {
		cbCtx := &CallbackContext{Event: &ev, AgentID: ev.Author, CallbackType: CallbackOnStateChange}
		if err := e.callbacks.Execute(ctx, CallbackOnStateChange, cbCtx); err != nil {
			return fmt.Errorf("state change rejected: %w", err)
		}

		if err := e.sessionStore.ApplyDelta(sessionID, ev.Actions.StateDelta); err != nil {
			return fmt.Errorf("failed to apply state delta: %w", err)
		}
	}

	if ev.Actions.TransferToAgent != nil && *ev.Actions.TransferToAgent != "" {
		e.logger.Debug("engine.event.transfer_to_agent", "target", *ev.Actions.TransferToAgent, "session_id", sessionID)
	}

	if ev.Actions.Escalate != nil && *ev.Actions.Escalate {
		e.logger.Debug("engine.event.escalate", "session_id", sessionID)
	}

	return nil
}
