package flow

// SingleAgentFlow is the pipeline for a standalone agent: instruction and
// content assembly, then direct relay of the model's streamed events. No
// transfers, no sub-agent delegation.
type SingleAgentFlow struct{ *BaseFlow }

// NewSingleAgentFlow wires the default processor chain for standalone
// execution.
func NewSingleAgentFlow(agent FlowAgent) *SingleAgentFlow {
	baseFlow := NewBaseFlow(agent)

	baseFlow.AddRequestProcessor(NewInstructionsProcessor())
	baseFlow.AddRequestProcessor(NewContentsProcessor())

	return &SingleAgentFlow{BaseFlow: baseFlow}
}
