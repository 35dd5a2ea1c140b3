// Package openai adapts the OpenAI Chat Completions API, with streaming
// and tool calling, to the model.Model interface.
package openai

import (
	"context"
	"fmt"
	"strings"

	"github.com/coderlang-ai/coderlang/core"
	"github.com/coderlang-ai/coderlang/model"
	"github.com/openai/openai-go"
)

// partialCall accumulates streamed tool call deltas until the finish
// reason arrives.
type partialCall struct{ id, name, args string }

// Options holds the subset of Chat Completion parameters the adapter
// exposes.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
}

// Model drives the OpenAI Chat Completions API behind model.Model.
type Model struct {
	client *openai.Client
	opts   Options
}

// NewModel builds an adapter with a default client configured from the
// environment.
func NewModel(optFns ...func(o *Options)) *Model {
	client := openai.NewClient()
	return NewModelFromClient(&client, optFns...)
}

// NewModelFromClient builds an adapter around an existing client.
func NewModelFromClient(client *openai.Client, optFns ...func(o *Options)) *Model {
	opts := Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.7,
		MaxCompletionTokens: 4096,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Model{client: client, opts: opts}
}

// Generate converts the normalized request into chat messages and streams
// the completion back as model.Response chunks.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		toolResponses, order := indexToolResponses(req)
		params := m.buildParams(req, toMessages(req, toolResponses, order))

		if req.Stream {
			m.generateStreaming(ctx, params, out, errCh)
			return
		}

		m.generateOnce(ctx, params, out, errCh)
	}()

	return out, errCh
}

// indexToolResponses maps tool response text by function call ID, keeping
// first-seen order so unmatched responses can still be appended.
func indexToolResponses(req model.Request) (map[string]string, []string) {
	responses := map[string]string{}
	order := []string{}

	for _, c := range req.Contents {
		if c.Role != "tool" {
			continue
		}

		for _, p := range c.Parts {
			fr, ok := p.(core.FunctionResponsePart)
			if !ok || fr.FunctionResponse.ID == "" {
				continue
			}

			if _, exists := responses[fr.FunctionResponse.ID]; exists {
				continue
			}

			text, ok := fr.FunctionResponse.Response.(string)
			if !ok {
				text = fmt.Sprintf("%v", fr.FunctionResponse.Response)
			}

			responses[fr.FunctionResponse.ID] = text
			order = append(order, fr.FunctionResponse.ID)
		}
	}

	return responses, order
}

// toMessages converts contents into chat messages, placing each tool
// response directly after the assistant message that requested it.
func toMessages(
	req model.Request,
	toolResponses map[string]string,
	order []string,
) []openai.ChatCompletionMessageParamUnion {
	var messages []openai.ChatCompletionMessageParamUnion

	for _, c := range req.Contents {
		if c.Role == "tool" {
			continue
		}

		text := c.Text()

		switch c.Role {
		case "system":
			messages = append(messages, openai.SystemMessage(text))
		case "user":
			messages = append(messages, openai.UserMessage(text))
		case "assistant":
			toolCalls, callIDs := toToolCalls(c)
			if len(toolCalls) == 0 {
				messages = append(messages, openai.AssistantMessage(text))
				continue
			}

			messages = append(
				messages,
				openai.ChatCompletionMessageParamUnion{OfAssistant: &openai.ChatCompletionAssistantMessageParam{
					Role:      "assistant",
					ToolCalls: toolCalls,
				}},
			)

			for _, id := range callIDs {
				if id == "" {
					continue
				}

				if resp, ok := toolResponses[id]; ok {
					messages = append(messages, openai.ToolMessage(resp, id))
					delete(toolResponses, id)
				}
			}
		default:
			if text != "" {
				messages = append(messages, openai.UserMessage(text))
			}
		}
	}

	for _, id := range order {
		if resp, ok := toolResponses[id]; ok {
			messages = append(messages, openai.ToolMessage(resp, id))
		}
	}

	return messages
}

// toToolCalls extracts the assistant's function call parts with their IDs
// in order.
func toToolCalls(c core.Content) ([]openai.ChatCompletionMessageToolCallParam, []string) {
	var (
		toolCalls []openai.ChatCompletionMessageToolCallParam
		callIDs   []string
	)

	for _, p := range c.Parts {
		fc, ok := p.(core.FunctionCallPart)
		if !ok {
			continue
		}

		toolCalls = append(toolCalls, openai.ChatCompletionMessageToolCallParam{
			ID:   fc.FunctionCall.ID,
			Type: "function",
			Function: openai.ChatCompletionMessageToolCallFunctionParam{
				Name:      fc.FunctionCall.Name,
				Arguments: fc.FunctionCall.Arguments,
			},
		})
		callIDs = append(callIDs, fc.FunctionCall.ID)
	}

	return toolCalls, callIDs
}

func (m *Model) buildParams(
	req model.Request,
	messages []openai.ChatCompletionMessageParamUnion,
) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Messages:            messages,
		Model:               m.opts.Model,
		Temperature:         openai.Float(m.opts.Temperature),
		MaxCompletionTokens: openai.Int(m.opts.MaxCompletionTokens),
	}

	if len(req.Tools) == 0 {
		return params
	}

	tools := make([]openai.ChatCompletionToolParam, len(req.Tools))

	for i, tdef := range req.Tools {
		tools[i] = openai.ChatCompletionToolParam{
			Type: "function",
			Function: openai.FunctionDefinitionParam{
				Name:        tdef.Function.Name,
				Description: openai.String(tdef.Function.Description),
				Parameters:  tdef.Function.Parameters,
			},
		}
	}

	params.Tools = tools

	return params
}

func (m *Model) generateStreaming(
	ctx context.Context,
	params openai.ChatCompletionNewParams,
	out chan<- model.Response,
	errCh chan<- error,
) {
	stream := m.client.Chat.Completions.NewStreaming(ctx, params)

	var textBuilder strings.Builder

	calls := map[int64]*partialCall{}

	for stream.Next() {
		ck := stream.Current()

		for _, ch := range ck.Choices {
			m.emitTextDelta(ch, &textBuilder, out)
			m.emitToolCallDeltas(ch, calls, out)

			if ch.FinishReason != "" {
				m.emitFinal(ch, &textBuilder, calls, out)
			}
		}
	}

	if err := stream.Err(); err != nil {
		errCh <- fmt.Errorf("openai streaming error: %w", err)
	}
}

func (m *Model) emitTextDelta(
	ch openai.ChatCompletionChunkChoice,
	builder *strings.Builder,
	out chan<- model.Response,
) {
	if ch.Delta.Content == "" {
		return
	}

	builder.WriteString(ch.Delta.Content)

	out <- model.Response{
		Partial: true,
		Content: core.Content{
			Role:  "assistant",
			Parts: []core.Part{core.TextPart{Text: ch.Delta.Content}},
		},
	}
}

func (m *Model) emitToolCallDeltas(
	ch openai.ChatCompletionChunkChoice,
	calls map[int64]*partialCall,
	out chan<- model.Response,
) {
	for _, tc := range ch.Delta.ToolCalls {
		pc, ok := calls[tc.Index]
		if !ok {
			pc = &partialCall{}
			calls[tc.Index] = pc
		}

		if tc.ID != "" {
			pc.id = tc.ID
		}

		if tc.Function.Name != "" {
			pc.name = tc.Function.Name
		}

		if tc.Function.Arguments != "" {
			pc.args += tc.Function.Arguments
		}

		out <- model.Response{
			Partial: true,
			Content: core.Content{
				Role: "assistant",
				Parts: []core.Part{core.FunctionCallPart{FunctionCall: core.FunctionCall{
					ID:        pc.id,
					Name:      pc.name,
					Arguments: pc.args,
				}}},
			},
		}
	}
}

func (m *Model) emitFinal(
	ch openai.ChatCompletionChunkChoice,
	builder *strings.Builder,
	calls map[int64]*partialCall,
	out chan<- model.Response,
) {
	finalParts := make([]core.Part, 0, len(calls)+1)

	if builder.Len() > 0 {
		finalParts = append(finalParts, core.TextPart{Text: builder.String()})
	}

	for _, pc := range calls {
		finalParts = append(finalParts, core.FunctionCallPart{FunctionCall: core.FunctionCall{
			ID:        pc.id,
			Name:      pc.name,
			Arguments: pc.args,
		}})
	}

	out <- model.Response{
		Content:      core.Content{Role: "assistant", Parts: finalParts},
		FinishReason: ch.FinishReason,
	}
}

func (m *Model) generateOnce(
	ctx context.Context,
	params openai.ChatCompletionNewParams,
	out chan<- model.Response,
	errCh chan<- error,
) {
	resp, err := m.client.Chat.Completions.New(ctx, params)
	if err != nil {
		errCh <- fmt.Errorf("openai api error: %w", err)
		return
	}

	if len(resp.Choices) == 0 {
		errCh <- fmt.Errorf("no choices returned")
		return
	}

	choice := resp.Choices[0]

	parts := make([]core.Part, 0, len(choice.Message.ToolCalls)+1)

	if choice.Message.Content != "" {
		parts = append(parts, core.TextPart{Text: choice.Message.Content})
	}

	for _, tc := range choice.Message.ToolCalls {
		parts = append(parts, core.FunctionCallPart{FunctionCall: core.FunctionCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		}})
	}

	out <- model.Response{
		Content:      core.Content{Role: "assistant", Parts: parts},
		FinishReason: choice.FinishReason,
	}
}

// Info identifies the configured OpenAI model.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:          m.opts.Model,
		Provider:      "openai",
		SupportsTools: true,
	}
}
