// Package tool implements function calling for agents: schema-described
// capabilities (code execution, lookups, framework operations) that models
// invoke with validated arguments and uniform error reporting.
package tool

import (
	"fmt"

	"github.com/coderlang-ai/coderlang/core"
	"github.com/coderlang-ai/coderlang/internal/util"
)

// Tool is a callable capability an agent can expose to its model.
//
// Name and Description are shown to the model as part of the function
// declaration, so they should read as documentation for the model: a
// snake_case identifier and an imperative one-liner. Parameters is a JSON
// schema for the arguments; the flow validates calls against it before
// execution. Call receives a ToolContext giving access to session state,
// flow control, memory and artifacts, and must be safe for concurrent use
// since parallel function execution may run several tools at once.
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]interface{}
	Call(toolCtx *core.ToolContext, args map[string]interface{}) (interface{}, error)
}

// ValidationError reports a schema mismatch in tool arguments.
type ValidationError = util.ValidationError

// ToolError is the uniform failure shape for tool execution. Code
// categorizes the failure (VALIDATION_ERROR, EXECUTION_ERROR, or a
// tool-specific code) so callers can branch without string matching.
type ToolError struct {
	Tool    string      `json:"tool"`
	Message string      `json:"message"`
	Code    string      `json:"code"`
	Details interface{} `json:"details,omitempty"`
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}

	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// NewToolError builds a ToolError.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{
		Tool:    tool,
		Message: message,
		Code:    code,
	}
}
