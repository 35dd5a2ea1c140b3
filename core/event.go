package core

import (
	"time"

	"github.com/google/uuid"
)

// EventActions carries the side effects attached to an event: state deltas,
// artifact writes, agent transfer and escalation signals. Pointer and map
// fields distinguish "not set" from zero values; the engine applies them
// after the event is persisted.
type EventActions struct {
	SkipSummarization *bool          `json:"skip_summarization,omitempty"`
	StateDelta        map[string]any `json:"state_delta,omitempty"`
	ArtifactDelta     map[string]int `json:"artifact_delta,omitempty"`
	TransferToAgent   *string        `json:"transfer_to_agent,omitempty"`
	Escalate          *bool          `json:"escalate,omitempty"`
}

// Event is the unit of communication between agents, the engine and clients.
// Everything an agent produces, from streamed text fragments to workflow
// stage transitions, travels as an event; once emitted it is immutable.
//
// Content may be nil for control or error-only events. Partial marks a
// streaming fragment; TurnComplete marks the end of an assistant turn.
type Event struct {
	ID                 string            `json:"id"`
	RunID              string            `json:"run_id"`
	Author             string            `json:"author"`
	Actions            EventActions      `json:"actions"`
	LongRunningToolIDs []string          `json:"long_running_tool_ids,omitempty"`
	Branch             *string           `json:"branch,omitempty"`
	Timestamp          time.Time         `json:"timestamp"`
	Content            *Content          `json:"content,omitempty"`
	Partial            *bool             `json:"partial,omitempty"`
	TurnComplete       *bool             `json:"turn_complete,omitempty"`
	ErrorCode          *string           `json:"error_code,omitempty"`
	ErrorMessage       *string           `json:"error_message,omitempty"`
	Interrupted        *bool             `json:"interrupted,omitempty"`
	CustomMetadata     map[string]string `json:"custom_metadata,omitempty"`
}

// NewEvent returns a bare event for a run, stamped with a fresh ID and a
// UTC timestamp.
func NewEvent(runID, author string) Event {
	return Event{
		ID:        NewID(),
		RunID:     runID,
		Author:    author,
		Timestamp: time.Now().UTC(),
	}
}

// NewMessageEvent wraps a plain assistant text message in an event.
func NewMessageEvent(author, message string) Event {
	e := NewEvent("", author)
	e.Content = &Content{Role: "assistant", Parts: []Part{TextPart{Text: message}}}

	return e
}

// NewUserMessageEvent wraps user text in an event.
func NewUserMessageEvent(runID, message string) Event {
	e := NewEvent(runID, "user")
	e.Content = &Content{Role: "user", Parts: []Part{TextPart{Text: message}}}

	return e
}

// NewUserContentEvent wraps arbitrary user content, for messages that carry
// more than a single text part.
func NewUserContentEvent(runID string, content *Content) Event {
	e := NewEvent(runID, "user")
	e.Content = content

	return e
}

// NewFunctionCallEvent records an agent requesting a named tool.
func NewFunctionCallEvent(author, functionName, args string) Event {
	e := NewEvent("", author)
	e.Content = &Content{
		Role: "assistant",
		Parts: []Part{
			FunctionCallPart{
				FunctionCall: FunctionCall{Name: functionName, Arguments: args},
			},
		},
	}

	return e
}

// NewFunctionResponseEvent records the result of a tool invocation. A
// non-nil err is folded into the response's Error field.
func NewFunctionResponseEvent(author, id, functionName string, result interface{}, err error) Event {
	fr := FunctionResponse{ID: id, Name: functionName, Response: result}
	if err != nil {
		fr.Error = err.Error()
	}

	e := NewEvent("", author)
	e.Content = &Content{Role: "tool", Parts: []Part{FunctionResponsePart{FunctionResponse: fr}}}

	return e
}

// NewID returns a UUID string used for event correlation.
func NewID() string { return uuid.NewString() }

// IsPartial reports whether the event is a streaming fragment that later
// events will complete.
func (e Event) IsPartial() bool { return e.Partial != nil && *e.Partial }

// GetFunctionCalls returns the FunctionCall parts in content order.
func (e Event) GetFunctionCalls() []FunctionCall {
	if e.Content == nil {
		return nil
	}

	var calls []FunctionCall

	for _, p := range e.Content.Parts {
		if fc, ok := p.(FunctionCallPart); ok {
			calls = append(calls, fc.FunctionCall)
		}
	}

	return calls
}

// GetFunctionResponses returns the FunctionResponse parts in content order.
func (e Event) GetFunctionResponses() []FunctionResponse {
	if e.Content == nil {
		return nil
	}

	var responses []FunctionResponse

	for _, p := range e.Content.Parts {
		if fr, ok := p.(FunctionResponsePart); ok {
			responses = append(responses, fr.FunctionResponse)
		}
	}

	return responses
}

// IsFinalResponse decides whether an assistant turn is complete: no pending
// tool calls or responses and not a streaming fragment. Events that skip
// summarization or reference long-running tools count as final.
func (e Event) IsFinalResponse() bool {
	if (e.Actions.SkipSummarization != nil && *e.Actions.SkipSummarization) || len(e.LongRunningToolIDs) > 0 {
		return true
	}

	return len(e.GetFunctionCalls()) == 0 &&
		len(e.GetFunctionResponses()) == 0 &&
		!e.IsPartial()
}

// UnixSeconds returns the timestamp as fractional seconds since the epoch.
func (e Event) UnixSeconds() float64 { return float64(e.Timestamp.UnixNano()) / 1e9 }
