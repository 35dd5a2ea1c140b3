package agent

import (
	"errors"
	"fmt"
	"time"

	"github.com/coderlang-ai/coderlang/core"
)

// ErrEscalated signals that the child agent escalated instead of finishing.
var ErrEscalated = errors.New("child agent escalated")

// LoopAgent runs a single child agent repeatedly until a termination
// condition fires: the iteration cap, a predicate over the child's output,
// an escalation event from the child, or context cancellation. Session
// state is shared across iterations, which makes it the building block for
// refinement cycles (generate, evaluate, regenerate) and convergence-style
// retries.
type LoopAgent struct {
	BaseAgent
	child       core.Agent
	maxIters    int
	interval    time.Duration
	stopOnError bool
	predicate   func(string) bool
}

// LoopOption customizes a LoopAgent.
type LoopOption func(*LoopAgent)

// NewLoopAgent wraps child in a loop. Defaults: 100 iterations, no delay
// between them, abort on the first child error.
func NewLoopAgent(name string, child core.Agent, opts ...LoopOption) *LoopAgent {
	la := &LoopAgent{
		BaseAgent:   NewBaseAgent(name),
		child:       child,
		maxIters:    100,
		stopOnError: true,
	}

	for _, o := range opts {
		o(la)
	}

	return la
}

// WithMaxIters caps the number of iterations.
func WithMaxIters(n int) LoopOption {
	return func(l *LoopAgent) { l.maxIters = n }
}

// WithInterval inserts a delay between iterations, for polling or rate
// limited child agents.
func WithInterval(d time.Duration) LoopOption {
	return func(l *LoopAgent) { l.interval = d }
}

// WithPredicate stops the loop early when pred returns true for the text
// the child produced in its final events of an iteration.
//
//	WithPredicate(func(output string) bool {
//	    return strings.Contains(output, "COMPLETE")
//	})
func WithPredicate(pred func(string) bool) LoopOption {
	return func(l *LoopAgent) { l.predicate = pred }
}

// WithStopOnError controls whether a child error aborts the loop.
func WithStopOnError(stop bool) LoopOption {
	return func(l *LoopAgent) { l.stopOnError = stop }
}

// Run iterates the child agent. Escalation from the child ends the loop
// with a nil error after the escalation event has been forwarded.
func (l *LoopAgent) Run(rc *core.RunContext) error {
	for i := 0; i < l.maxIters; i++ {
		select {
		case <-rc.Done():
			return rc.Err()
		default:
		}

		rc.LogDebug("loop.iteration.start", "agent", l.Name(), "iteration", i+1)

		output, childErr := l.runChild(rc)

		if errors.Is(childErr, ErrEscalated) {
			rc.LogInfo("loop.escalated", "agent", l.Name(), "iteration", i+1)
			return nil
		}

		if childErr != nil {
			if l.stopOnError {
				return fmt.Errorf("loop iteration %d failed for agent %s: %w", i+1, l.child.Name(), childErr)
			}

			rc.LogWarn("loop.iteration.error", "agent", l.Name(), "iteration", i+1, "error", childErr.Error())
		}

		if l.predicate != nil && l.predicate(output) {
			rc.LogDebug("loop.predicate.stop", "agent", l.Name(), "iteration", i+1)
			return nil
		}

		if l.interval > 0 && i < l.maxIters-1 {
			select {
			case <-rc.Done():
				return rc.Err()
			case <-time.After(l.interval):
			}
		}
	}

	rc.LogDebug("loop.complete", "agent", l.Name(), "iterations", l.maxIters)

	return nil
}

// runChild executes one child iteration on a child context, inspecting
// every event for the escalate flag before forwarding it upstream. It
// returns the concatenated final-event text for predicate evaluation.
func (l *LoopAgent) runChild(rc *core.RunContext) (string, error) {
	interceptChan := make(chan core.Event, 10)
	resumeChan := make(chan struct{}, 10)
	childCtx := rc.NewChildContext(interceptChan, resumeChan, rc.Branch)

	done := make(chan error, 1)

	go func() {
		defer close(done)
		done <- l.child.Run(childCtx)
	}()

	var output string

	for {
		select {
		case event, ok := <-interceptChan:
			if !ok {
				return output, <-done
			}

			if !event.IsPartial() {
				output += event.Content.Text()
			}

			escalated := event.Actions.Escalate != nil && *event.Actions.Escalate

			if err := rc.EmitEvent(event); err != nil {
				return output, err
			}

			if escalated {
				<-done
				return output, ErrEscalated
			}

			select {
			case resumeChan <- struct{}{}:
			case <-rc.Done():
				return output, rc.Err()
			}

		case err := <-done:
			close(interceptChan)
			close(resumeChan)

			return output, err

		case <-rc.Done():
			close(interceptChan)
			close(resumeChan)

			return output, rc.Err()
		}
	}
}

// CreateEscalationEvent builds an event carrying the escalate flag, for
// agents that need to hand control back to their parent.
func CreateEscalationEvent(runID, author string, content *core.Content) core.Event {
	escalate := true

	ev := core.NewEvent(runID, author)
	ev.Actions.Escalate = &escalate
	ev.Content = content

	return ev
}
