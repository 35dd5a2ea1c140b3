package agent

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/coderlang-ai/coderlang/core"
	"github.com/coderlang-ai/coderlang/flow"
	"github.com/coderlang-ai/coderlang/model"
	"github.com/coderlang-ai/coderlang/tool"
)

func boolPtr(b bool) *bool { return &b }

func stringPtr(s string) *string { return &s }

// ModelAgentOptions configures a ModelAgent via functional options to
// NewModelAgent.
type ModelAgentOptions struct {
	Instruction           Instruction
	GlobalInstruction     Instruction
	EnableStreaming       bool
	EnableFunctionCalling bool
	ToolTimeout           time.Duration
	OutputKey             string
	MaxHistoryMessages    int
	AllowTransfer         bool
	Tools                 map[string]tool.Tool
}

// ModelAgent is an agent backed by a language model. It resolves its
// instruction into a system prompt, feeds the session's conversation
// history to the model, executes requested tools, and can hand the
// conversation to a sub-agent when transfer is allowed. Execution runs
// through the flow pipeline; the flow selector picks single- or multi-step
// execution from the agent's capabilities.
type ModelAgent struct {
	BaseAgent
	llm                   model.Model
	instruction           Instruction
	tools                 map[string]tool.Tool
	enableFunctionCalling bool
	enableStreaming       bool
	toolTimeout           time.Duration
	outputKey             string
	maxHistoryMessages    int
	allowTransfer         bool
}

// NewModelAgent builds a model-backed agent. Defaults: streaming and
// function calling on, transfer allowed, 15s tool timeout, 20-message
// history window, and a generic assistant instruction derived from the
// name.
func NewModelAgent(name string, llm model.Model, optFns ...func(o *ModelAgentOptions)) *ModelAgent {
	opts := ModelAgentOptions{
		Instruction:           NewInstructionFromText(fmt.Sprintf("You are %s, a helpful AI assistant.", name)),
		EnableStreaming:       true,
		EnableFunctionCalling: true,
		ToolTimeout:           15 * time.Second,
		MaxHistoryMessages:    20,
		AllowTransfer:         true,
		Tools:                 make(map[string]tool.Tool),
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &ModelAgent{
		BaseAgent:             NewBaseAgent(name),
		llm:                   llm,
		instruction:           opts.Instruction,
		enableStreaming:       opts.EnableStreaming,
		enableFunctionCalling: opts.EnableFunctionCalling,
		toolTimeout:           opts.ToolTimeout,
		outputKey:             opts.OutputKey,
		maxHistoryMessages:    opts.MaxHistoryMessages,
		allowTransfer:         opts.AllowTransfer,
		tools:                 opts.Tools,
	}
}

// RegisterTool makes a tool callable by the model.
func (a *ModelAgent) RegisterTool(t tool.Tool) {
	a.tools[t.Name()] = t
}

// RegisterTools registers several tools at once.
func (a *ModelAgent) RegisterTools(tools ...tool.Tool) {
	for _, t := range tools {
		a.RegisterTool(t)
	}
}

// UnregisterTool removes a tool, reporting whether it was registered.
func (a *ModelAgent) UnregisterTool(name string) bool {
	if _, exists := a.tools[name]; exists {
		delete(a.tools, name)
		return true
	}

	return false
}

// HasTool reports whether a tool is registered.
func (a *ModelAgent) HasTool(name string) bool {
	_, exists := a.tools[name]
	return exists
}

// ListTools returns the registered tool names.
func (a *ModelAgent) ListTools() []string {
	names := make([]string, 0, len(a.tools))
	for name := range a.tools {
		names = append(names, name)
	}

	return names
}

// GetTool returns a registered tool by name.
func (a *ModelAgent) GetTool(name string) (tool.Tool, bool) {
	t, exists := a.tools[name]
	return t, exists
}

// ClearTools removes every registered tool.
func (a *ModelAgent) ClearTools() {
	a.tools = make(map[string]tool.Tool)
}

// The methods below satisfy flow.FlowAgent so the flow pipeline can drive
// this agent.

func (a *ModelAgent) GetName() string { return a.Name() }

func (a *ModelAgent) GetLLM() model.Model { return a.llm }

// GetTools returns a copy of the tool registry.
func (a *ModelAgent) GetTools() map[string]tool.Tool {
	tools := make(map[string]tool.Tool, len(a.tools))
	for name, t := range a.tools {
		tools[name] = t
	}

	return tools
}

// GetSubAgents returns the children that can participate in flows.
func (a *ModelAgent) GetSubAgents() []flow.FlowAgent {
	subAgents := a.SubAgents()

	flowAgents := make([]flow.FlowAgent, 0, len(subAgents))

	for _, subAgent := range subAgents {
		if flowAgent, ok := subAgent.(flow.FlowAgent); ok {
			flowAgents = append(flowAgents, flowAgent)
		}
	}

	return flowAgents
}

func (a *ModelAgent) IsFunctionCallingEnabled() bool { return a.enableFunctionCalling }

func (a *ModelAgent) IsStreamingEnabled() bool { return a.enableStreaming }

func (a *ModelAgent) IsTransferEnabled() bool { return a.allowTransfer }

// GetOutputKey returns the state key the final response is saved under, or
// "" when responses are not persisted to state.
func (a *ModelAgent) GetOutputKey() string { return a.outputKey }

// MaxHistoryMessages returns the conversation history window size.
func (a *ModelAgent) MaxHistoryMessages() int { return a.maxHistoryMessages }

// ResolveInstructions renders the instruction into the system prompt for
// this run.
func (a *ModelAgent) ResolveInstructions(runCtx *core.RunContext) (string, error) {
	return a.instruction.Resolve(runCtx)
}

// ExecuteTool decodes JSON arguments and invokes the named tool.
func (a *ModelAgent) ExecuteTool(toolCtx *core.ToolContext, toolName string, args string) (interface{}, error) {
	t, exists := a.tools[toolName]
	if !exists {
		return nil, fmt.Errorf("tool %s not found", toolName)
	}

	argsMap := make(map[string]interface{})
	if err := json.Unmarshal([]byte(args), &argsMap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal args: %w", err)
	}

	return t.Call(toolCtx, argsMap)
}

// TransferToAgent runs a named descendant agent with the same run context,
// so session state and the emit channel carry over.
func (a *ModelAgent) TransferToAgent(runCtx *core.RunContext, agentName string) error {
	target := a.FindAgent(agentName)
	if target == nil {
		return fmt.Errorf("agent '%s' not found in hierarchy", agentName)
	}

	return target.Run(runCtx)
}

// Run implements core.Agent: select a flow, execute it, and forward its
// events to the run's emit channel until the flow drains or the context is
// cancelled.
func (a *ModelAgent) Run(runCtx *core.RunContext) error {
	runCtx.LogDebug("agent.run.start", "agent", a.Name(), "run", runCtx.RunID)

	ctx := runCtx.Context

	fl := flow.NewSelector().SelectFlow(a)

	runCtx.LogDebug("agent.flow.selected", "agent", a.Name(), "flow", fmt.Sprintf("%T", fl))

	eventChan, errChan, err := fl.Execute(runCtx)
	if err != nil {
		runCtx.LogError("agent.flow.execute.error", "agent", a.Name(), "error", err.Error())

		return fmt.Errorf("flow execution failed: %w", err)
	}

	for event := range eventChan {
		select {
		case runCtx.Emit <- event:
			role := ""
			if event.Content != nil {
				role = event.Content.Role
			}

			runCtx.LogDebug(
				"agent.event.forward",
				"agent", a.Name(),
				"event_id", event.ID,
				"role", role,
				"fn_calls", len(event.GetFunctionCalls()),
			)
		case <-ctx.Done():
			runCtx.LogWarn("agent.run.context_done", "agent", a.Name(), "error", ctx.Err())

			return ctx.Err()
		}
	}

	if execErr := <-errChan; execErr != nil {
		runCtx.LogError("agent.flow.execute.error", "agent", a.Name(), "error", execErr.Error())

		return fmt.Errorf("flow execution failed: %w", execErr)
	}

	runCtx.LogDebug("agent.flow.execute.complete", "agent", a.Name())

	return nil
}
