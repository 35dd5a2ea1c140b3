// Package model holds the provider-agnostic model abstraction used by
// CoderLang's agents and flows.
//
// A Model turns a normalized Request (conversation contents plus optional
// tool definitions) into a channel of Responses, covering both streaming
// and one-shot generation. Tool calls are carried in a neutral shape
// (ToolDefinition, ToolCall) so the router, coordinator and workers never
// see vendor SDK types. Concrete adapters live in the gemini, openai and
// anthropic subpackages; MockModel serves tests.
package model
