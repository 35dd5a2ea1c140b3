package flow

// Selector picks the pipeline matching an agent's capabilities.
type Selector struct{}

// NewSelector returns a flow selector.
func NewSelector() *Selector { return &Selector{} }

// SelectFlow returns SingleAgentFlow for isolated agents and MultiAgentFlow
// once the agent can transfer or has sub-agents.
func (s *Selector) SelectFlow(agent FlowAgent) Flow {
	if !agent.IsTransferEnabled() && len(agent.GetSubAgents()) == 0 {
		return NewSingleAgentFlow(agent)
	}

	return NewMultiAgentFlow(agent)
}
