package flow

import (
	"encoding/json"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/coderlang-ai/coderlang/core"
	"github.com/coderlang-ai/coderlang/tool"
)

// FunctionExecutor runs a batch of tool calls and emits one
// FunctionResponse event per call through the emit callback. Executors
// respect runCtx.Context cancellation, recover panics into error responses,
// and merge each ToolContext's accumulated actions into the emitted event.
// The emit callback owns persistence and resume synchronization.
type FunctionExecutor interface {
	Execute(runCtx *core.RunContext, agent FlowAgent, toolRegistry map[string]tool.Tool, fnCalls []core.FunctionCall, emit func(core.Event) error)
}

// FunctionExecutorConfig configures the parallel executor.
type FunctionExecutorConfig struct {
	MaxParallel    int  // <1 means one goroutine per call
	PreserveOrder  bool // buffer results and emit in call order
	LogStartEvents bool
}

type parallelFunctionExecutor struct {
	cfg FunctionExecutorConfig
}

// NewParallelFunctionExecutor returns the default batch executor.
func NewParallelFunctionExecutor(cfg FunctionExecutorConfig) FunctionExecutor {
	return &parallelFunctionExecutor{cfg: cfg}
}

func (e *parallelFunctionExecutor) Execute(
	runCtx *core.RunContext,
	agent FlowAgent,
	toolRegistry map[string]tool.Tool,
	fnCalls []core.FunctionCall,
	emit func(core.Event) error,
) {
	n := len(fnCalls)
	if n == 0 {
		return
	}

	if n == 1 {
		ev := e.runOne(runCtx, agent, toolRegistry, fnCalls[0])
		_ = emit(ev)

		return
	}

	maxPar := e.cfg.MaxParallel
	if maxPar <= 0 || maxPar > n {
		maxPar = n
	}

	ordered := make([]core.Event, n)

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)

	sem := make(chan struct{}, maxPar)
	batchStart := time.Now()

	for i := range fnCalls {
		if runCtx.Context.Err() != nil {
			break
		}

		wg.Add(1)
		sem <- struct{}{}

		go func(idx int, fc core.FunctionCall) {
			defer wg.Done()
			defer func() { <-sem }()

			if runCtx.Context.Err() != nil {
				return
			}

			respEv := e.runOne(runCtx, agent, toolRegistry, fc)

			if e.cfg.PreserveOrder {
				mu.Lock()
				ordered[idx] = respEv
				mu.Unlock()
			} else if err := emit(respEv); err != nil {
				runCtx.LogError("agent.function.emit.error", "function", fc.Name, "error", err.Error())
			}
		}(i, fnCalls[i])
	}

	wg.Wait()

	if e.cfg.PreserveOrder {
		for i, ev := range ordered {
			if ev.ID == "" {
				continue
			}

			if err := emit(ev); err != nil {
				runCtx.LogError("agent.function.emit.error", "function", fnCalls[i].Name, "error", err.Error())
			}
		}
	}

	runCtx.LogDebug(
		"agent.functions.batch.complete",
		"agent", agent.GetName(),
		"count", n,
		"parallelism", maxPar,
		"preserve_order", e.cfg.PreserveOrder,
		"duration_ms", time.Since(batchStart).Milliseconds(),
	)
}

// runOne executes a single tool call and returns its response event with
// the tool context's actions applied.
func (e *parallelFunctionExecutor) runOne(
	runCtx *core.RunContext,
	agent FlowAgent,
	toolRegistry map[string]tool.Tool,
	fc core.FunctionCall,
) core.Event {
	toolCtx := core.NewToolContext(runCtx, fc.ID)

	if e.cfg.LogStartEvents {
		runCtx.LogInfo("agent.function.start", "agent", agent.GetName(), "function", fc.Name, "function_call_id", fc.ID)
	}

	start := time.Now()

	var (
		result any
		err    error
	)

	func() {
		defer func() {
			if r := recover(); r != nil {
				err = panicError(r)
				runCtx.LogError("agent.function.panic", "agent", agent.GetName(), "function", fc.Name, "recover", r)
			}
		}()

		result, err = executeTool(toolRegistry, toolCtx, fc.Name, fc.Arguments)
	}()

	runCtx.LogInfo(
		"agent.function.executed",
		"agent", agent.GetName(),
		"function", fc.Name,
		"duration_ms", time.Since(start).Milliseconds(),
		"error", err != nil,
	)

	respEv := core.NewFunctionResponseEvent(agent.GetName(), fc.ID, fc.Name, result, err)
	toolCtx.InternalApplyActions(&respEv)

	return respEv
}

func panicError(r any) error { return &panicErr{val: r, stack: debug.Stack()} }

type panicErr struct {
	val   any
	stack []byte
}

func (p *panicErr) Error() string { return "panic recovered" }

// executeTool looks up the tool and invokes it with decoded arguments.
func executeTool(toolRegistry map[string]tool.Tool, toolCtx *core.ToolContext, toolName, args string) (any, error) {
	impl, ok := toolRegistry[toolName]
	if !ok {
		return nil, fmt.Errorf("tool %s not found", toolName)
	}

	argMap := map[string]any{}
	if args != "" {
		if err := json.Unmarshal([]byte(args), &argMap); err != nil {
			return nil, fmt.Errorf("failed to unmarshal args: %w", err)
		}
	}

	return impl.Call(toolCtx, argMap)
}
