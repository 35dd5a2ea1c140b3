// Package engine is the orchestration layer that runs registered agents.
//
// An Engine owns the agent registry and, per run, wires an agent to its
// backing stores through a core.RunContext. Emitted events flow through a
// processing pipeline that applies state and artifact deltas, persists
// non-partial events to session history, forwards them to the client and
// resumes the agent. Runs are bounded by MaxConcurrentRuns and each run's
// model usage by MaxModelCalls.
//
// Setup:
//
//	eng := engine.New(func(o *engine.Options) {
//	    o.SessionStore = store
//	    o.Logger = logger
//	})
//	eng.Register(coordinator)
//
// Streaming execution:
//
//	runID, events, errors, err := eng.Invoke(ctx, "session-1", "coordinator", userContent)
//	if err != nil {
//	    return err
//	}
//	for event := range events {
//	    handleEvent(event)
//	}
//	if err := <-errors; err != nil {
//	    return err
//	}
//
// InvokeSync wraps the same flow for request/response callers, collecting all
// events before returning. Lifecycle callbacks (before/after agent, on error,
// on state change) hook cross-cutting concerns into the pipeline; a callback
// error on the before-agent or state-change hooks aborts the run.
package engine
