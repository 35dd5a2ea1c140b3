package flow

import (
	"strings"

	"github.com/coderlang-ai/coderlang/core"
	"github.com/coderlang-ai/coderlang/model"
)

const transferToolName = "transfer_to_agent"

// TransferToolInjector exposes the transfer_to_agent function to the model
// when the agent is allowed to delegate and has sub-agents to delegate to.
// Injection is idempotent so repeated model turns reuse a single definition.
type TransferToolInjector struct{}

// NewTransferToolInjector creates a new transfer tool injector.
func NewTransferToolInjector() *TransferToolInjector { return &TransferToolInjector{} }

// Name returns the processor's identifier.
func (p *TransferToolInjector) Name() string { return "transfer_tool_injector" }

// ProcessRequest injects the transfer_to_agent tool definition when applicable.
func (p *TransferToolInjector) ProcessRequest(runCtx *core.RunContext, req *model.Request, agent FlowAgent) error {
	if !agent.IsTransferEnabled() {
		return nil
	}

	subAgents := agent.GetSubAgents()
	if len(subAgents) == 0 {
		return nil
	}

	for _, td := range req.Tools {
		if td.Function.Name == transferToolName {
			return nil
		}
	}

	names := make([]string, 0, len(subAgents))
	for _, sa := range subAgents {
		names = append(names, sa.GetName())
	}

	req.Tools = append(req.Tools, model.ToolDefinition{
		Type: "function",
		Function: model.FunctionDefinition{
			Name:        transferToolName,
			Description: "Transfer control to another agent by name. Available agents: " + strings.Join(names, ", "),
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"agent": map[string]any{"type": "string", "description": "Target agent name"},
				},
				"required": []string{"agent"},
			},
		},
	})

	runCtx.LogDebug("flow.transfer_tool.injected", "agent", agent.GetName(), "targets", len(names))
	return nil
}
