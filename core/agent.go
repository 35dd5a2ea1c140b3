package core

// Agent is the interface every processing unit implements, from a single
// model-backed worker up to the staged coordinator.
//
// An agent gets everything it needs through the RunContext: input content,
// session snapshot, stores, and the emit channel its results flow back on.
// Run must honor the context's cancellation and, when the resume channel is
// set, wait for the engine's acknowledgment after each emitted event. The
// sub-agent methods carry the hierarchy that delegation and transfer walk.
type Agent interface {
	Name() string
	Start(rc *RunContext) error
	Stop(rc *RunContext) error
	Run(rc *RunContext) error
	SetSubAgents(children ...Agent) error
	SubAgents() []Agent
	Parent() Agent
	FindAgent(name string) Agent
	Description() string
}

// AgentInfo identifies an agent in contexts and events. Name is the public
// identifier; Type is a coarse category such as "coordinator" or "worker".
type AgentInfo struct{ Name, Type string }
