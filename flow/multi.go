package flow

// MultiAgentFlow is the pipeline for agents that can call tools and hand
// control to sub-agents. On top of the base processors it injects the
// transfer_to_agent tool definition when the agent has somewhere to
// transfer to.
type MultiAgentFlow struct{ *BaseFlow }

// NewMultiAgentFlow wires the default processor chain for multi-agent
// execution.
func NewMultiAgentFlow(agent FlowAgent) *MultiAgentFlow {
	baseFlow := NewBaseFlow(agent)

	baseFlow.AddRequestProcessor(NewInstructionsProcessor())
	baseFlow.AddRequestProcessor(NewContentsProcessor())
	baseFlow.AddRequestProcessor(NewTransferToolInjector())

	return &MultiAgentFlow{BaseFlow: baseFlow}
}
