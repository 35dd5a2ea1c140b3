// Package anthropic adapts the Anthropic Messages API to the model.Model
// interface.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"
	"github.com/coderlang-ai/coderlang/core"
	"github.com/coderlang-ai/coderlang/model"
)

// Options configures the adapter: model id, sampling temperature, token
// budget and an optional explicit API key.
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string
}

// Model drives the Anthropic Messages API behind model.Model.
type Model struct {
	client *anthropic.Client
	opts   Options
}

func defaultOptions() Options {
	return Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   4096,
	}
}

// NewModel builds an adapter with its own client. Without an explicit
// APIKey the client reads the environment.
func NewModel(optFns ...func(o *Options)) *Model {
	opts := defaultOptions()

	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}

	client := anthropic.NewClient(clientOpts...)

	return &Model{client: &client, opts: opts}
}

// NewModelFromClient builds an adapter around an existing client.
func NewModelFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Model {
	opts := defaultOptions()

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Model{client: client, opts: opts}
}

// Generate converts the normalized request into a Messages call and
// forwards the completion. Streaming is not supported yet; requests with
// Stream set fail immediately.
func (m *Model) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		params := anthropic.MessageNewParams{
			Model:       m.opts.Model,
			Messages:    m.toMessages(req.Contents),
			MaxTokens:   m.opts.MaxTokens,
			Temperature: anthropic.Float(m.opts.Temperature),
		}

		if systemBlocks := m.systemBlocks(req.Contents); len(systemBlocks) > 0 {
			params.System = systemBlocks
		}

		if len(req.Tools) > 0 {
			params.Tools = m.toTools(req.Tools)
		}

		if req.Stream {
			// TODO: stream via anthropic.MessageStreamEvent once the
			// assistant path needs partial Anthropic output.
			errCh <- fmt.Errorf("streaming not yet implemented for Anthropic model")
			return
		}

		resp, err := m.client.Messages.New(ctx, params)
		if err != nil {
			errCh <- fmt.Errorf("anthropic api error: %w", err)
			return
		}

		var parts []core.Part

		for _, block := range resp.Content {
			switch block.Type {
			case "text":
				if text := block.AsText().Text; text != "" {
					parts = append(parts, core.TextPart{Text: text})
				}
			case "tool_use":
				toolBlock := block.AsToolUse()

				args := ""
				if toolBlock.Input != nil {
					if argsBytes, err := json.Marshal(toolBlock.Input); err == nil {
						args = string(argsBytes)
					}
				}

				parts = append(parts, core.FunctionCallPart{
					FunctionCall: core.FunctionCall{
						ID:        toolBlock.ID,
						Name:      toolBlock.Name,
						Arguments: args,
					},
				})
			}
		}

		finishReason := "stop"
		if resp.StopReason != "" {
			finishReason = string(resp.StopReason)
		}

		out <- model.Response{
			Content:      core.Content{Role: "assistant", Parts: parts},
			FinishReason: finishReason,
		}
	}()

	return out, errCh
}

// toMessages converts contents into Messages-API turns. Tool responses are
// indexed first and embedded right after the assistant turn that issued
// the matching tool call.
func (m *Model) toMessages(contents []core.Content) []anthropic.MessageParam {
	toolResponses := make(map[string]string)

	for _, c := range contents {
		if c.Role != "tool" {
			continue
		}

		for _, p := range c.Parts {
			fr, ok := p.(core.FunctionResponsePart)
			if !ok || fr.FunctionResponse.ID == "" {
				continue
			}

			text, ok := fr.FunctionResponse.Response.(string)
			if !ok {
				text = fmt.Sprintf("%v", fr.FunctionResponse.Response)
			}

			toolResponses[fr.FunctionResponse.ID] = text
		}
	}

	var messages []anthropic.MessageParam

	for _, c := range contents {
		// System text goes into params.System; tool responses are
		// embedded into assistant turns above.
		if c.Role == "system" || c.Role == "tool" {
			continue
		}

		if c.Role == "assistant" {
			if content := m.assistantBlocks(c.Parts, toolResponses); len(content) > 0 {
				messages = append(messages, anthropic.NewAssistantMessage(content...))
			}

			continue
		}

		// Unknown roles are treated as user turns.
		if content := m.userBlocks(c.Parts); len(content) > 0 {
			messages = append(messages, anthropic.NewUserMessage(content...))
		}
	}

	return messages
}

func (m *Model) systemBlocks(contents []core.Content) []anthropic.TextBlockParam {
	var blocks []anthropic.TextBlockParam

	for _, c := range contents {
		if c.Role != "system" {
			continue
		}

		for _, p := range c.Parts {
			if tp, ok := p.(core.TextPart); ok && tp.Text != "" {
				blocks = append(blocks, anthropic.TextBlockParam{Text: tp.Text})
			}
		}
	}

	return blocks
}

func (m *Model) userBlocks(parts []core.Part) []anthropic.ContentBlockParamUnion {
	var content []anthropic.ContentBlockParamUnion

	for _, p := range parts {
		if tp, ok := p.(core.TextPart); ok && tp.Text != "" {
			content = append(content, anthropic.NewTextBlock(tp.Text))
		}
	}

	return content
}

func (m *Model) assistantBlocks(
	parts []core.Part,
	toolResponses map[string]string,
) []anthropic.ContentBlockParamUnion {
	var (
		content     []anthropic.ContentBlockParamUnion
		toolCallIDs []string
	)

	for _, p := range parts {
		switch part := p.(type) {
		case core.TextPart:
			if part.Text != "" {
				content = append(content, anthropic.NewTextBlock(part.Text))
			}
		case core.FunctionCallPart:
			var input interface{}
			if part.FunctionCall.Arguments != "" {
				if err := json.Unmarshal([]byte(part.FunctionCall.Arguments), &input); err != nil {
					input = part.FunctionCall.Arguments
				}
			}

			content = append(content, anthropic.NewToolUseBlock(
				part.FunctionCall.ID,
				input,
				part.FunctionCall.Name,
			))
			toolCallIDs = append(toolCallIDs, part.FunctionCall.ID)
		}
	}

	for _, id := range toolCallIDs {
		if resp, ok := toolResponses[id]; ok {
			content = append(content, anthropic.NewToolResultBlock(id, resp, false))
			delete(toolResponses, id)
		}
	}

	return content
}

func (m *Model) toTools(tools []model.ToolDefinition) []anthropic.ToolUnionParam {
	anthropicTools := make([]anthropic.ToolUnionParam, len(tools))

	for i, tool := range tools {
		inputSchema := anthropic.ToolInputSchemaParam{
			Type: constant.Object("object"),
		}

		if params := tool.Function.Parameters; params != nil {
			if properties, exists := params["properties"]; exists {
				inputSchema.Properties = properties
			}

			if required, exists := params["required"]; exists {
				switch req := required.(type) {
				case []string:
					inputSchema.Required = req
				case []interface{}:
					var reqStrings []string
					for _, r := range req {
						if s, ok := r.(string); ok {
							reqStrings = append(reqStrings, s)
						}
					}

					inputSchema.Required = reqStrings
				}
			}
		}

		anthropicTools[i] = anthropic.ToolUnionParamOfTool(inputSchema, tool.Function.Name)
	}

	return anthropicTools
}

// Info identifies the configured Anthropic model.
func (m *Model) Info() model.Info {
	return model.Info{
		Name:          string(m.opts.Model),
		Provider:      "anthropic",
		SupportsTools: true,
	}
}
