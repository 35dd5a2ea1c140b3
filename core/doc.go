// Package core holds the domain types the rest of CoderLang is built on:
// agents, sessions with event history, immutable events, the RunContext and
// ToolContext execution scopes, and the store interfaces for sessions,
// artifacts and memory.
//
// Persistence backends, the engine and concrete agents live in their own
// packages; core only defines the contracts between them.
package core
