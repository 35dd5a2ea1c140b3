package core

import "strings"

// Part is one segment of message content. The concrete types form a closed
// set via the unexported marker method.
type Part interface{ isPart() }

// TextPart carries plain text.
type TextPart struct {
	Text     string
	Metadata map[string]any
}

func (TextPart) isPart() {}

// DataPart carries a structured payload, for example a workflow summary
// attached to a final event alongside its text rendering.
type DataPart struct {
	Data     map[string]any
	Metadata map[string]any
}

func (DataPart) isPart() {}

// FilePart carries a file attachment.
type FilePart struct {
	File     FilePartFile
	Metadata map[string]any
}

func (FilePart) isPart() {}

// FunctionCall is a model's request to invoke a named tool.
type FunctionCall struct {
	ID        string `json:"id,omitempty"`
	Name      string `json:"name"`
	Arguments string `json:"arguments,omitempty"` // serialized, usually JSON
}

// FunctionCallPart wraps a FunctionCall as content.
type FunctionCallPart struct {
	FunctionCall FunctionCall
	Metadata     map[string]any
}

func (FunctionCallPart) isPart() {}

// FunctionResponse is the outcome of a tool invocation. ID matches the
// originating FunctionCall.
type FunctionResponse struct {
	ID       string      `json:"id,omitempty"`
	Name     string      `json:"name"`
	Response interface{} `json:"response,omitempty"`
	Error    string      `json:"error,omitempty"`
}

// FunctionResponsePart wraps a FunctionResponse as content.
type FunctionResponsePart struct {
	FunctionResponse FunctionResponse
	Metadata         map[string]any
}

func (FunctionResponsePart) isPart() {}

// FilePartFile describes an attachment, either inlined as base64 bytes or
// referenced by URI.
type FilePartFile struct {
	Bytes    string
	MimeType *string
	Name     *string
	URI      string
}

// Content is a role plus ordered parts.
type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

// NewTextContent builds Content holding a single text part.
func NewTextContent(role, text string) *Content {
	return &Content{Role: role, Parts: []Part{TextPart{Text: text}}}
}

// Text joins all text parts in order, skipping other part kinds.
func (c *Content) Text() string {
	if c == nil {
		return ""
	}

	var sb strings.Builder

	for _, p := range c.Parts {
		if tp, ok := p.(TextPart); ok {
			sb.WriteString(tp.Text)
		}
	}

	return sb.String()
}
