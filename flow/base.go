package flow

import (
	"fmt"

	"github.com/coderlang-ai/coderlang/core"
	"github.com/coderlang-ai/coderlang/model"
	"github.com/coderlang-ai/coderlang/tool"
)

// BaseFlow drives the model turn cycle: assemble a request through the
// registered processors, stream the model's response, run any requested
// tools, repeat until the turn completes. Single- and multi-agent flows
// differ only in which processors they register.
type BaseFlow struct {
	agent              FlowAgent
	requestProcessors  []RequestProcessor
	responseProcessors []ResponseProcessor
	executor           FunctionExecutor
}

// NewBaseFlow returns a flow with no processors and the default parallel
// tool executor.
func NewBaseFlow(agent FlowAgent) *BaseFlow {
	return &BaseFlow{
		agent:              agent,
		requestProcessors:  []RequestProcessor{},
		responseProcessors: []ResponseProcessor{},
		executor:           NewParallelFunctionExecutor(FunctionExecutorConfig{MaxParallel: 4, PreserveOrder: true}),
	}
}

// AddRequestProcessor appends a request processor. Processors run in
// registration order.
func (f *BaseFlow) AddRequestProcessor(processor RequestProcessor) {
	f.requestProcessors = append(f.requestProcessors, processor)
}

// AddResponseProcessor appends a response processor, applied to every model
// chunk before it becomes an event.
func (f *BaseFlow) AddResponseProcessor(processor ResponseProcessor) {
	f.responseProcessors = append(f.responseProcessors, processor)
}

// SetFunctionExecutor replaces the executor used for tool call batches.
func (f *BaseFlow) SetFunctionExecutor(executor FunctionExecutor) {
	if executor != nil {
		f.executor = executor
	}
}

// Execute launches the flow asynchronously and returns the event and error
// channels. Both are closed when a final response is emitted or an
// unrecoverable error occurs. Callers should range over the event channel
// and check the error channel after it closes.
func (f *BaseFlow) Execute(runCtx *core.RunContext) (<-chan core.Event, <-chan error, error) {
	if f.agent == nil {
		return nil, nil, fmt.Errorf("flow has no agent")
	}

	eventChan := make(chan core.Event, 100)
	errChan := make(chan error, 1)

	go func() {
		defer close(eventChan)
		defer close(errChan)

		for {
			last, err := f.runOnce(runCtx, eventChan)
			if err != nil {
				errChan <- err
				return
			}
			if last == nil {
				return
			}
			// Control moves to another agent; the engine picks up from here.
			if last.Actions.TransferToAgent != nil {
				return
			}
			if last.Actions.Escalate != nil && *last.Actions.Escalate {
				return
			}
			// A tool round just finished, give the model another turn.
			if len(last.GetFunctionResponses()) > 0 {
				continue
			}
			if last.IsPartial() {
				runCtx.LogWarn("flow.stream.truncated", "agent", f.agent.GetName())
				return
			}
			if last.IsFinalResponse() {
				return
			}
		}
	}()

	return eventChan, errChan, nil
}

// runOnce performs one model turn, tool executions included, and returns
// the last emitted event. Nil means the model produced nothing.
func (f *BaseFlow) runOnce(runCtx *core.RunContext, eventChan chan<- core.Event) (*core.Event, error) {
	// Refresh the session snapshot so request processors see the latest
	// conversation, including tool responses appended by the engine.
	if runCtx.SessionStore != nil {
		if latest, err := runCtx.SessionStore.Get(runCtx.SessionID); err == nil && latest != nil {
			runCtx.Session = latest
		}
	}

	if err := runCtx.Limiter.Increment(); err != nil {
		return nil, err
	}

	req := &model.Request{Stream: f.agent.IsStreamingEnabled()}

	for _, processor := range f.requestProcessors {
		if err := processor.ProcessRequest(runCtx, req, f.agent); err != nil {
			return nil, fmt.Errorf("request processor %s failed: %w", processor.Name(), err)
		}
	}

	if f.agent.IsFunctionCallingEnabled() {
		appendToolDefinitions(req, f.agent.GetTools())
	}

	respCh, errCh := f.agent.GetLLM().Generate(runCtx.Context, *req)

	var lastEvent *core.Event

	for respCh != nil || errCh != nil {
		select {
		case resp, ok := <-respCh:
			if !ok {
				respCh = nil
				continue
			}

			for _, processor := range f.responseProcessors {
				if err := processor.ProcessResponse(runCtx, &resp, f.agent); err != nil {
					return lastEvent, fmt.Errorf("response processor %s failed: %w", processor.Name(), err)
				}
			}

			ev := core.NewEvent(runCtx.RunID, f.agent.GetName())
			ev.Content = &resp.Content
			partial := resp.Partial
			ev.Partial = &partial

			// A final chunk without tool calls ends the assistant's turn.
			if !resp.Partial && len(ev.GetFunctionCalls()) == 0 {
				complete := true
				ev.TurnComplete = &complete
			}

			lastEvent = &ev
			eventChan <- ev

			if !ev.IsPartial() {
				if err := f.awaitResume(runCtx); err != nil {
					return lastEvent, err
				}
			}

			if fnCalls := ev.GetFunctionCalls(); len(fnCalls) > 0 {
				merged, err := f.runToolBatch(runCtx, fnCalls)
				if err != nil {
					return lastEvent, err
				}

				lastEvent = merged
				eventChan <- *merged

				if err := f.awaitResume(runCtx); err != nil {
					return lastEvent, err
				}
			}
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err != nil {
				return lastEvent, fmt.Errorf("model generate failed: %w", err)
			}
		case <-runCtx.Context.Done():
			return lastEvent, runCtx.Context.Err()
		}
	}

	return lastEvent, nil
}

// runToolBatch executes all function calls of a single model turn through the
// configured executor and merges their responses into one event so downstream
// consumers see the batch atomically.
func (f *BaseFlow) runToolBatch(runCtx *core.RunContext, fnCalls []core.FunctionCall) (*core.Event, error) {
	responses := make([]core.Event, 0, len(fnCalls))
	emit := func(ev core.Event) error {
		responses = append(responses, ev)
		return nil
	}

	f.executor.Execute(runCtx, f.agent, f.agent.GetTools(), fnCalls, emit)

	if len(responses) == 0 {
		return nil, fmt.Errorf("no responses produced for %d function calls", len(fnCalls))
	}

	merged := mergeFunctionResponses(runCtx.RunID, f.agent.GetName(), responses)
	return &merged, nil
}

// awaitResume blocks until the engine has persisted the previous event.
func (f *BaseFlow) awaitResume(runCtx *core.RunContext) error {
	if runCtx.Resume == nil {
		return nil
	}
	select {
	case <-runCtx.Context.Done():
		return runCtx.Context.Err()
	case <-runCtx.Resume:
		return nil
	}
}

// mergeFunctionResponses flattens a batch of function response events into a
// single tool event, preserving response order and combining actions.
func mergeFunctionResponses(runID, author string, events []core.Event) core.Event {
	merged := core.NewEvent(runID, author)
	parts := make([]core.Part, 0, len(events))

	for _, ev := range events {
		if ev.Content != nil {
			for _, p := range ev.Content.Parts {
				if _, ok := p.(core.FunctionResponsePart); ok {
					parts = append(parts, p)
				}
			}
		}
		mergeActions(&merged.Actions, ev.Actions)
	}

	merged.Content = &core.Content{Role: "tool", Parts: parts}
	partial := false
	merged.Partial = &partial
	return merged
}

// mergeActions folds src into dst. State and artifact deltas union, the last
// transfer target wins, boolean signals are sticky once set.
func mergeActions(dst *core.EventActions, src core.EventActions) {
	if len(src.StateDelta) > 0 {
		if dst.StateDelta == nil {
			dst.StateDelta = make(map[string]any, len(src.StateDelta))
		}
		for k, v := range src.StateDelta {
			dst.StateDelta[k] = v
		}
	}
	if len(src.ArtifactDelta) > 0 {
		if dst.ArtifactDelta == nil {
			dst.ArtifactDelta = make(map[string]int, len(src.ArtifactDelta))
		}
		for k, v := range src.ArtifactDelta {
			dst.ArtifactDelta[k] = v
		}
	}
	if src.TransferToAgent != nil {
		dst.TransferToAgent = src.TransferToAgent
	}
	if src.Escalate != nil && *src.Escalate {
		escalate := true
		dst.Escalate = &escalate
	}
	if src.SkipSummarization != nil && *src.SkipSummarization {
		skip := true
		dst.SkipSummarization = &skip
	}
}

// appendToolDefinitions adds definitions for the agent's registered tools,
// skipping names already present (request processors may have injected some).
func appendToolDefinitions(req *model.Request, tools map[string]tool.Tool) {
	if len(tools) == 0 {
		return
	}
	seen := make(map[string]bool, len(req.Tools))
	for _, td := range req.Tools {
		seen[td.Function.Name] = true
	}
	for _, t := range tools {
		if seen[t.Name()] {
			continue
		}
		req.Tools = append(req.Tools, model.ToolDefinition{
			Type: "function",
			Function: model.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
	}
}
