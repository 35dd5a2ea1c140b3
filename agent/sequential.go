package agent

import (
	"fmt"

	"github.com/coderlang-ai/coderlang/core"
)

// SequentialAgent runs its children in order, sharing one run context so
// each step sees the state its predecessors wrote. The first failure stops
// the pipeline.
type SequentialAgent struct {
	BaseAgent
	children []core.Agent
}

// NewSequentialAgent builds an in-order coordinator over the given
// children.
func NewSequentialAgent(name string, children ...core.Agent) *SequentialAgent {
	return &SequentialAgent{
		BaseAgent: NewBaseAgent(name),
		children:  children,
	}
}

// Run executes each child with the shared run context, stopping at the
// first error.
func (s *SequentialAgent) Run(rc *core.RunContext) error {
	for _, child := range s.children {
		if err := child.Run(rc); err != nil {
			return fmt.Errorf("sequential execution failed at agent %s: %w", child.Name(), err)
		}
	}

	return nil
}
