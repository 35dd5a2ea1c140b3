// Package agent provides the agent implementations CoderLang composes into
// workflows: BaseAgent for lifecycle and hierarchy plumbing, the
// Sequential/Parallel/Loop coordination patterns, and ModelAgent, the
// model-backed conversational agent with tool calling.
//
// Agents nest via SetSubAgents and locate each other with FindAgent. A
// Run receives a *core.RunContext; composite agents coordinate child Runs
// over shared or branch-cloned contexts, and ModelAgent streams its events
// through the flow pipeline.
package agent
