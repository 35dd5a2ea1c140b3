package tool

import (
	"fmt"

	"github.com/coderlang-ai/coderlang/core"
)

// transferToAgentTool lets a model hand the conversation to a named
// sub-agent. The actual handoff happens through ToolContext actions; the
// tool itself only records the request.
type transferToAgentTool struct{}

// NewTransferToAgentTool returns the transfer tool. The flow injects it
// automatically for agents that allow transfer.
func NewTransferToAgentTool() Tool { return &transferToAgentTool{} }

func (t *transferToAgentTool) Name() string { return "transfer_to_agent" }

func (t *transferToAgentTool) Description() string {
	return "Request transfer of control to another sub-agent by name. Use when another agent is better suited."
}

func (t *transferToAgentTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"agent": map[string]any{"type": "string", "description": "Target agent name"},
		},
		"required": []string{"agent"},
	}
}

func (t *transferToAgentTool) Call(tc *core.ToolContext, args map[string]any) (any, error) {
	agentName, ok := args["agent"].(string)
	if !ok || agentName == "" {
		if _, present := args["agent"]; !present {
			return nil, fmt.Errorf("missing required field 'agent'")
		}

		return nil, fmt.Errorf("field 'agent' must be non-empty string")
	}

	tc.TransferToAgent(agentName)

	return map[string]any{"transferred": true, "agent": agentName}, nil
}
