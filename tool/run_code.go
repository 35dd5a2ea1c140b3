package tool

import (
	"fmt"

	"github.com/coderlang-ai/coderlang/code"
	"github.com/coderlang-ai/coderlang/core"
)

// runCodeTool executes a code snippet through a code.Executor and returns
// the captured stdout/stderr and exit code so the model can inspect failures.
type runCodeTool struct {
	executor code.Executor
}

// NewRunCodeTool constructs the code execution tool backed by the given executor.
func NewRunCodeTool(executor code.Executor) Tool {
	return &runCodeTool{executor: executor}
}

func (t *runCodeTool) Name() string { return "run_code" }

func (t *runCodeTool) Description() string {
	return "Execute a code snippet in a sandboxed subprocess and return stdout, stderr and the exit code. Use to verify generated code actually runs."
}

func (t *runCodeTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"code": map[string]any{"type": "string", "description": "The code snippet to execute"},
		},
		"required": []string{"code"},
	}
}

func (t *runCodeTool) Call(tc *core.ToolContext, args map[string]any) (any, error) {
	snippet, ok := args["code"].(string)
	if !ok || snippet == "" {
		return nil, NewToolError(t.Name(), "field 'code' must be a non-empty string", "VALIDATION_ERROR")
	}

	result, err := t.executor.Execute(tc.Context(), snippet)
	if err != nil {
		return nil, NewToolError(t.Name(), fmt.Sprintf("execution failed: %v", err), "EXECUTION_ERROR")
	}

	return map[string]any{
		"stdout":    result.Stdout,
		"stderr":    result.Stderr,
		"exit_code": result.ExitCode,
	}, nil
}
