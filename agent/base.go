package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/coderlang-ai/coderlang/core"
)

// BaseAgent supplies the shared pieces of every agent: identity, the
// Start/Stop lifecycle, and parent/child hierarchy management. Embed it and
// add a Run method to satisfy core.Agent. Methods are safe for concurrent
// use.
type BaseAgent struct {
	name        string
	description string
	mu          sync.Mutex
	cancel      context.CancelFunc
	running     bool
	parent      core.Agent
	subAgents   []core.Agent
}

// NewBaseAgent returns a BaseAgent with a placeholder description; override
// it with SetDescription.
func NewBaseAgent(name string) BaseAgent {
	return BaseAgent{
		name:        name,
		description: fmt.Sprintf("Agent %s", name),
	}
}

// Name returns the agent's name.
func (b *BaseAgent) Name() string { return b.name }

// Description returns the agent's purpose description, used when other
// agents decide whether to transfer to it.
func (b *BaseAgent) Description() string { return b.description }

// SetDescription replaces the description.
func (b *BaseAgent) SetDescription(desc string) { b.description = desc }

// Start marks the agent running and arms a cancel function derived from the
// run's context. Starting an already running agent fails.
func (b *BaseAgent) Start(rc *core.RunContext) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.running {
		return errors.New("agent is already running")
	}

	_, cancel := context.WithCancel(rc.Context)
	b.cancel = cancel
	b.running = true

	return nil
}

// Stop cancels the agent's derived context and clears the running flag.
// Stopping an agent that is not running fails.
func (b *BaseAgent) Stop(_ *core.RunContext) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.running {
		return errors.New("agent is not running")
	}

	if b.cancel != nil {
		b.cancel()
	}

	b.running = false

	return nil
}

// SetSubAgents replaces the child set, detaching previous children and
// making this agent the parent of each new child. A child has at most one
// parent.
func (b *BaseAgent) SetSubAgents(children ...core.Agent) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, child := range b.subAgents {
		if setter, ok := child.(interface{ setParent(core.Agent) }); ok {
			setter.setParent(nil)
		}
	}

	b.subAgents = nil

	for _, child := range children {
		if setter, ok := child.(interface{ setParent(core.Agent) }); ok {
			setter.setParent(&agentWrapper{b})
		}

		b.subAgents = append(b.subAgents, child)
	}

	return nil
}

func (b *BaseAgent) setParent(p core.Agent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.parent = p
}

// Parent returns the parent agent, or nil for a root agent.
func (b *BaseAgent) Parent() core.Agent {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.parent
}

// SubAgents returns a copy of the child agents.
func (b *BaseAgent) SubAgents() []core.Agent {
	b.mu.Lock()
	defer b.mu.Unlock()

	result := make([]core.Agent, len(b.subAgents))
	copy(result, b.subAgents)

	return result
}

// FindAgent searches depth-first for an agent by name, starting with this
// agent. Returns nil when no agent in the subtree matches.
func (b *BaseAgent) FindAgent(name string) core.Agent {
	if b.name == name {
		return &agentWrapper{b}
	}

	for _, child := range b.SubAgents() {
		if child.Name() == name {
			return child
		}

		if found := child.FindAgent(name); found != nil {
			return found
		}
	}

	return nil
}

// agentWrapper lets a bare BaseAgent stand in for core.Agent in hierarchy
// references; it cannot be executed.
type agentWrapper struct{ *BaseAgent }

func (w *agentWrapper) Run(_ *core.RunContext) error {
	return fmt.Errorf("cannot execute BaseAgent directly - embed it in a concrete agent with Run implementation")
}
