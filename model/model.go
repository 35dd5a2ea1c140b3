package model

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/coderlang-ai/coderlang/core"
)

// ToolCall is a provider-neutral function call request. Adapters normalize
// vendor shapes into this so nothing downstream branches per provider.
type ToolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"` // "function"
	Function ToolCallFunction `json:"function"`
}

// ToolCallFunction names the target function and carries its serialized
// arguments.
type ToolCallFunction struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ToolDefinition advertises a callable function to the model.
type ToolDefinition struct {
	Type     string             `json:"type"` // "function"
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition describes one exposed function. Parameters is a JSON
// Schema object.
type FunctionDefinition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

// Request is the normalized model input assembled by flows: system
// instructions, ordered contents, tool definitions and the streaming flag.
type Request struct {
	Instructions string           `json:"instructions"`
	Contents     []core.Content   `json:"contents"`
	Tools        []ToolDefinition `json:"tools,omitempty"`
	Stream       bool             `json:"stream,omitempty"`
}

// TokenUsage reports token counts for a completed response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is one chunk of model output. Partial chunks stream text
// fragments; the final chunk carries FinishReason and usage.
type Response struct {
	ID           string       `json:"id"`
	Partial      bool         `json:"partial"`
	Content      core.Content `json:"content"`
	FinishReason string       `json:"finish_reason"` // "stop", "length", "tool_calls"
	Usage        *TokenUsage  `json:"usage,omitempty"`
}

// Info identifies a model implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"` // "gemini", "openai", "anthropic", "mock"
	SupportsTools bool   `json:"supports_tools"`
}

// Model is what flows and agents need from a provider: channel-based
// generation plus identification.
type Model interface {
	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)

	Info() Info
}

// MockModel is an in-memory Model for tests and examples. Canned responses
// are keyed by the last user message, matched exactly or by substring.
type MockModel struct {
	info            Info
	responses       map[string]string
	defaultResponse string
}

// NewMockModel returns a mock reporting tool support.
func NewMockModel(name, provider string) *MockModel {
	return &MockModel{
		info: Info{
			Name:          name,
			Provider:      provider,
			SupportsTools: true,
		},
		responses: make(map[string]string),
	}
}

// AddResponse registers a canned completion for a prompt key.
func (m *MockModel) AddResponse(prompt, response string) { m.responses[prompt] = response }

// SetDefaultResponse sets the completion used when no key matches.
func (m *MockModel) SetDefaultResponse(response string) { m.defaultResponse = response }

// Generate streams per-rune partial chunks when requested, then the full
// completion.
func (m *MockModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 16)
	errCh := make(chan error, 1)

	go func() {
		defer close(respCh)
		defer close(errCh)

		if len(req.Contents) == 0 {
			errCh <- fmt.Errorf("no contents provided")
			return
		}

		inputText := req.Contents[len(req.Contents)-1].Text()

		full := m.responses[inputText]

		if full == "" {
			for key, resp := range m.responses {
				if key != "" && strings.Contains(inputText, key) {
					full = resp
					break
				}
			}
		}

		if full == "" {
			full = m.defaultResponse
		}

		if full == "" {
			full = fmt.Sprintf("Mock response to: %s", inputText)
		}

		if req.Stream {
			for _, r := range full {
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				case respCh <- Response{
					Partial: true,
					Content: core.Content{
						Role:  "assistant",
						Parts: []core.Part{core.TextPart{Text: string(r)}},
					},
				}:
				}
			}
		}

		respCh <- Response{
			Content: core.Content{
				Role:  "assistant",
				Parts: []core.Part{core.TextPart{Text: full}},
			},
			FinishReason: "stop",
		}
	}()

	return respCh, errCh
}

func (m *MockModel) Info() Info { return m.info }
