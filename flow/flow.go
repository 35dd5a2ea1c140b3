// Package flow drives a model-backed agent through its execution pipeline:
// request processors assemble the model request, the model streams a
// response, and response handling runs tools or agent transfers. The
// selector picks between a single-agent pipeline and the multi-agent one
// with transfer support.
package flow

import (
	"github.com/coderlang-ai/coderlang/core"
	"github.com/coderlang-ai/coderlang/model"
	"github.com/coderlang-ai/coderlang/tool"
)

// Flow executes an agent's full pipeline for one run.
type Flow interface {
	// Execute runs the pipeline, streaming progress events. Both returned
	// channels close when the flow terminates; the error channel carries
	// at most one unrecoverable error.
	Execute(runCtx *core.RunContext) (<-chan core.Event, <-chan error, error)
}

// FlowAgent is the view of an agent a flow needs: its model, prompt, tools,
// children and capability flags, without the full agent implementation.
type FlowAgent interface {
	GetName() string

	GetLLM() model.Model

	// ResolveInstructions renders the system prompt for this run.
	ResolveInstructions(runCtx *core.RunContext) (string, error)

	GetTools() map[string]tool.Tool

	GetSubAgents() []FlowAgent

	IsFunctionCallingEnabled() bool

	IsStreamingEnabled() bool

	IsTransferEnabled() bool

	// GetOutputKey returns the state key for persisting the final
	// response, or "".
	GetOutputKey() string

	// MaxHistoryMessages caps the conversation history sent to the model.
	MaxHistoryMessages() int

	// ExecuteTool invokes a named tool with serialized arguments.
	ExecuteTool(toolCtx *core.ToolContext, toolName string, args string) (interface{}, error)

	// TransferToAgent hands the run to a named sub-agent.
	TransferToAgent(runCtx *core.RunContext, agentName string) error
}

// RequestProcessor mutates the model request before it is sent.
type RequestProcessor interface {
	Name() string
	ProcessRequest(runCtx *core.RunContext, req *model.Request, agent FlowAgent) error
}

// ResponseProcessor inspects the model response after it arrives and may
// produce additional events.
type ResponseProcessor interface {
	Name() string
	ProcessResponse(runCtx *core.RunContext, resp *model.Response, agent FlowAgent) error
}
