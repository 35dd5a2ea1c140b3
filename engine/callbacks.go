package engine

import (
	"context"
	"fmt"

	"github.com/coderlang-ai/coderlang/core"
)

// CallbackType names a lifecycle point where registered callbacks fire.
type CallbackType string

const (
	// CallbackBeforeAgent fires before an agent run starts. An error
	// returned here rejects the run.
	CallbackBeforeAgent CallbackType = "before_agent"

	// CallbackAfterAgent fires after an agent run completes.
	CallbackAfterAgent CallbackType = "after_agent"

	// CallbackOnError fires when an agent run fails.
	CallbackOnError CallbackType = "on_error"

	// CallbackOnStateChange fires before a state delta is applied. An
	// error returned here rejects the mutation and terminates the run.
	CallbackOnStateChange CallbackType = "on_state_change"
)

// CallbackContext carries the execution details available to a callback.
type CallbackContext struct {
	RunContext   *core.RunContext
	Event        *core.Event
	AgentID      string
	CallbackType CallbackType
	Metadata     map[string]any
}

// Callback is a lifecycle hook. Implementations should be fast, as they run
// synchronously on the engine's event path.
type Callback interface {
	Type() CallbackType
	Execute(ctx context.Context, cbCtx *CallbackContext) error
}

// FunctionCallback adapts a plain function to the Callback interface.
type FunctionCallback struct {
	callbackType CallbackType
	fn           func(ctx context.Context, cbCtx *CallbackContext) error
}

// NewFunctionCallback wraps fn as a callback firing at the given lifecycle point.
func NewFunctionCallback(callbackType CallbackType, fn func(ctx context.Context, cbCtx *CallbackContext) error) *FunctionCallback {
	return &FunctionCallback{callbackType: callbackType, fn: fn}
}

func (c *FunctionCallback) Type() CallbackType { return c.callbackType }

func (c *FunctionCallback) Execute(ctx context.Context, cbCtx *CallbackContext) error {
	return c.fn(ctx, cbCtx)
}

// CallbackManager holds registered callbacks grouped by type. Registration is
// expected to finish before invocations start; execution is then safe for
// concurrent use.
type CallbackManager struct {
	callbacks map[CallbackType][]Callback
}

// NewCallbackManager returns an empty manager.
func NewCallbackManager() *CallbackManager {
	return &CallbackManager{callbacks: make(map[CallbackType][]Callback)}
}

// Register adds a callback. Callbacks of the same type run in registration order.
func (cm *CallbackManager) Register(callback Callback) {
	t := callback.Type()
	cm.callbacks[t] = append(cm.callbacks[t], callback)
}

// Execute runs all callbacks of the given type, stopping at the first error.
func (cm *CallbackManager) Execute(ctx context.Context, callbackType CallbackType, cbCtx *CallbackContext) error {
	for _, callback := range cm.callbacks[callbackType] {
		cbCtx.CallbackType = callbackType

		if err := callback.Execute(ctx, cbCtx); err != nil {
			return err
		}
	}

	return nil
}

// StateValidationCallback rejects state deltas that fail a validator. Use it
// to enforce schema or business invariants on session state writes.
type StateValidationCallback struct {
	validator func(stateDelta map[string]any) error
}

// NewStateValidationCallback wraps a delta validator as an on-state-change callback.
func NewStateValidationCallback(validator func(stateDelta map[string]any) error) *StateValidationCallback {
	return &StateValidationCallback{validator: validator}
}

func (c *StateValidationCallback) Type() CallbackType { return CallbackOnStateChange }

func (c *StateValidationCallback) Execute(_ context.Context, cbCtx *CallbackContext) error {
	if c.validator == nil || cbCtx.Event == nil || cbCtx.Event.Actions.StateDelta == nil {
		return nil
	}

	if err := c.validator(cbCtx.Event.Actions.StateDelta); err != nil {
		return fmt.Errorf("state delta validation failed: %w", err)
	}

	return nil
}
