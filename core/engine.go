package core

import "context"

// Engine runs registered agents and streams their events.
//
// Implementations persist each run's events to the session, propagate
// context cancellation into agent Run calls, and close the returned
// channels when a run terminates.
type Engine interface {
	// Register makes an agent invocable by name.
	Register(a Agent)

	// Invoke starts an asynchronous run. It returns the run ID, a channel
	// of streamed events, and a buffered terminal-error channel; both
	// channels close when the run finishes or the context is cancelled.
	Invoke(
		ctx context.Context,
		sessionID, agentName string,
		userContent Content,
	) (string, <-chan Event, <-chan error, error)

	// InvokeSync drains Invoke, returning the run ID and every event the
	// run emitted.
	InvokeSync(ctx context.Context, sessionID, agentName string, userContent Content) (string, []Event, error)
}
