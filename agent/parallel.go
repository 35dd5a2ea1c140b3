package agent

import (
	"fmt"
	"sync"
	"time"

	"github.com/coderlang-ai/coderlang/core"
)

// ParallelAgent runs its children concurrently, one goroutine each. Every
// child gets a cloned run context with its own branch path, so pending
// state deltas stay isolated while the shared session remains readable.
// Useful for independent gathering steps where order does not matter.
type ParallelAgent struct {
	BaseAgent
	children []core.Agent
	timeout  time.Duration
}

// NewParallelAgent builds a concurrent coordinator over the given children.
// timeout bounds the whole fan-out.
func NewParallelAgent(name string, timeout time.Duration, children ...core.Agent) *ParallelAgent {
	return &ParallelAgent{
		BaseAgent: NewBaseAgent(name),
		children:  children,
		timeout:   timeout,
	}
}

// createBranchCtxForSubAgent clones the run context and extends the branch
// path with "Parent.Child", keeping each child's pending deltas separate.
func (p *ParallelAgent) createBranchCtxForSubAgent(rc *core.RunContext, subAgent core.Agent) *core.RunContext {
	clonedCtx := rc.Clone()
	clonedCtx.Branch = buildBranchPath(rc.Branch, fmt.Sprintf("%s.%s", p.Name(), subAgent.Name()))

	return clonedCtx
}

// Run launches every child in its own goroutine and waits for all of them.
// Siblings keep running when one fails; the first recorded error is
// returned after the fan-in.
func (p *ParallelAgent) Run(rc *core.RunContext) error {
	var wg sync.WaitGroup

	errCh := make(chan error, len(p.children))

	for _, child := range p.children {
		wg.Add(1)

		go func(c core.Agent) {
			defer wg.Done()

			branchCtx := p.createBranchCtxForSubAgent(rc, c)

			if err := c.Run(branchCtx); err != nil {
				errCh <- fmt.Errorf("parallel execution failed for agent %s: %w", c.Name(), err)
			}
		}(child)
	}

	wg.Wait()
	close(errCh)

	if len(errCh) > 0 {
		return <-errCh
	}

	return nil
}
