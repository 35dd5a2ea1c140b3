package core

import (
	"fmt"
	"sync"
)

// ModelLimiter caps the number of model calls a single run may make. A
// runaway workflow (for example a routing loop) hits the cap instead of
// burning tokens indefinitely.
type ModelLimiter struct {
	mu    sync.Mutex
	max   int
	calls int
}

// NewModelLimiter returns a limiter allowing up to max calls. A max of 0
// disables the cap.
func NewModelLimiter(max int) *ModelLimiter {
	return &ModelLimiter{max: max}
}

// Increment records one model call, failing once the budget is spent.
func (ml *ModelLimiter) Increment() error {
	ml.mu.Lock()
	defer ml.mu.Unlock()

	ml.calls++

	if ml.max > 0 && ml.calls > ml.max {
		return fmt.Errorf("exceeded max model calls: %d", ml.max)
	}

	return nil
}

// Count returns the calls recorded so far.
func (ml *ModelLimiter) Count() int {
	ml.mu.Lock()
	defer ml.mu.Unlock()

	return ml.calls
}

// Remaining returns the calls left, or -1 when the cap is disabled.
func (ml *ModelLimiter) Remaining() int {
	ml.mu.Lock()
	defer ml.mu.Unlock()

	if ml.max == 0 {
		return -1
	}

	return ml.max - ml.calls
}
