package tool

import (
	"errors"
	"fmt"
	"time"

	"github.com/coderlang-ai/coderlang/core"
	"github.com/coderlang-ai/coderlang/internal/util"
)

// FunctionTool wraps a plain Go function as a Tool. It keeps a minimal
// JSON-Schema description of the arguments, validates model-supplied args
// against it before calling the function, and normalizes failures into
// *ToolError (VALIDATION_ERROR for schema mismatches, EXECUTION_ERROR for
// function errors; a *ToolError returned by the function passes through
// with its own code).
//
// A FunctionTool is immutable after construction and safe for concurrent
// use. The result may be any JSON-serializable value; tools that need
// streaming or richer control should implement Tool directly.
type FunctionTool struct {
	name        string
	description string
	parameters  map[string]any
	fn          func(toolCtx *core.ToolContext, args map[string]any) (any, error)
}

// NewFunctionTool builds a FunctionTool from an explicit schema.
//
//	lintTool := NewFunctionTool(
//	  "lint_source",
//	  "Run static checks over a source snippet",
//	  map[string]any{
//	    "type": "object",
//	    "properties": map[string]any{
//	      "source":   map[string]any{"type": "string"},
//	      "language": map[string]any{"type": "string"},
//	    },
//	    "required": []string{"source"},
//	  },
//	  func(tc *core.ToolContext, args map[string]any) (any, error) {
//	    return lint(args["source"].(string)), nil
//	  },
//	)
func NewFunctionTool(
	name, description string,
	parameters map[string]any,
	fn func(toolCtx *core.ToolContext, args map[string]any) (any, error),
) *FunctionTool {
	return &FunctionTool{
		name:        name,
		description: description,
		parameters:  parameters,
		fn:          fn,
	}
}

// NewFunctionToolFromStruct derives the argument schema from a struct via
// reflection (util.CreateSchema); json tags name the fields and
// `description` tags document them.
func NewFunctionToolFromStruct(
	name, description string,
	structType any,
	fn func(toolCtx *core.ToolContext, args map[string]any) (any, error),
) *FunctionTool {
	return NewFunctionTool(name, description, util.CreateSchema(structType), fn)
}

// Name returns the tool name used in function call declarations.
func (t *FunctionTool) Name() string { return t.name }

// Description returns the description exposed to models.
func (t *FunctionTool) Description() string { return t.description }

// Parameters returns the argument schema.
func (t *FunctionTool) Parameters() map[string]any { return t.parameters }

// Call validates args against the schema, runs the wrapped function and
// wraps any failure in *ToolError. The fc_id log field correlates the model
// request with the tool execution.
func (t *FunctionTool) Call(toolCtx *core.ToolContext, args map[string]any) (any, error) {
	logger := toolCtx.Logger()
	start := time.Now()

	logger.Debug("tool.call.start", "tool", t.name, "fc_id", toolCtx.FunctionCallID())

	if err := util.ValidateParameters(args, t.parameters); err != nil {
		logger.Warn("tool.call.validation_failed", "tool", t.name, "error", err.Error())

		return nil, &ToolError{
			Tool:    t.name,
			Message: fmt.Sprintf("parameter validation failed: %v", err),
			Code:    "VALIDATION_ERROR",
			Details: err,
		}
	}

	result, err := t.fn(toolCtx, args)
	if err != nil {
		var toolErr *ToolError
		if errors.As(err, &toolErr) {
			logger.Error("tool.call.error", "tool", t.name, "error", toolErr.Message)

			return nil, toolErr
		}

		logger.Error("tool.call.error", "tool", t.name, "error", err.Error())

		return nil, &ToolError{
			Tool:    t.name,
			Message: err.Error(),
			Code:    "EXECUTION_ERROR",
		}
	}

	logger.Info("tool.call.success", "tool", t.name, "duration_ms", time.Since(start).Milliseconds())

	return result, nil
}
