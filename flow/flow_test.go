package flow

import (
	"context"
	"fmt"
	"testing"

	"github.com/coderlang-ai/coderlang/core"
	"github.com/coderlang-ai/coderlang/model"
	"github.com/coderlang-ai/coderlang/session"
	"github.com/coderlang-ai/coderlang/tool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedModel replays canned completions keyed on the last user text.
// With streaming enabled it emits per-rune partials before the final
// response, mirroring how the provider adapters behave.
type scriptedModel struct {
	info      model.Info
	responses map[string]string
}

func newScriptedModel(name, provider string) *scriptedModel {
	return &scriptedModel{
		info: model.Info{
			Name:          name,
			Provider:      provider,
			SupportsTools: true,
		},
		responses: make(map[string]string),
	}
}

func (m *scriptedModel) respond(prompt, response string) {
	m.responses[prompt] = response
}

func (m *scriptedModel) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	respCh := make(chan model.Response, 16)
	errCh := make(chan error, 1)

	go func() {
		defer close(respCh)
		defer close(errCh)

		if len(req.Contents) == 0 {
			errCh <- fmt.Errorf("no contents provided")
			return
		}

		last := req.Contents[len(req.Contents)-1]

		var inputText string
		for _, p := range last.Parts {
			if tp, ok := p.(core.TextPart); ok {
				inputText += tp.Text
			}
		}

		full := m.responses[inputText]
		if full == "" {
			full = fmt.Sprintf("scripted response to: %s", inputText)
		}

		if req.Stream {
			for _, r := range full {
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				case respCh <- model.Response{
					Partial: true,
					Content: core.Content{
						Role:  "assistant",
						Parts: []core.Part{core.TextPart{Text: string(r)}},
					},
				}:
				}
			}
		}

		respCh <- model.Response{
			Content: core.Content{
				Role:  "assistant",
				Parts: []core.Part{core.TextPart{Text: full}},
			},
			FinishReason: "stop",
		}
	}()

	return respCh, errCh
}

func (m *scriptedModel) Info() model.Info { return m.info }

type noopMemoryService struct{}

func (m *noopMemoryService) Get(sessionID string) (map[string]any, error) {
	return map[string]any{}, nil
}

func (m *noopMemoryService) Put(sessionID string, delta map[string]any) error { return nil }

func (m *noopMemoryService) Search(sessionID, query string, limit int) ([]core.SearchResult, error) {
	return []core.SearchResult{}, nil
}

func (m *noopMemoryService) Store(sessionID, content string, metadata map[string]interface{}) error {
	return nil
}

func (m *noopMemoryService) Delete(sessionID, memoryID string) error { return nil }

func newFlowRunContext(t *testing.T) *core.RunContext {
	t.Helper()

	eventChan := make(chan core.Event, 10)
	sessSvc := session.NewInMemoryStore()
	sess, err := sessSvc.Create("sess-1")
	require.NoError(t, err)

	return core.NewRunContext(
		context.Background(), "sess-1", "run-1",
		core.AgentInfo{Name: "GeneralAgent", Type: "model"},
		core.Content{Role: "user", Parts: []core.Part{core.TextPart{Text: "explain this diff"}}},
		0, eventChan, nil, sess, sessSvc, nil, &noopMemoryService{}, nil,
	)
}

// plainAgent is a FlowAgent with everything switched off except the model.
type plainAgent struct {
	name string
	llm  model.Model
}

func (m *plainAgent) GetName() string     { return m.name }
func (m *plainAgent) GetLLM() model.Model { return m.llm }

func (m *plainAgent) ResolveInstructions(rc *core.RunContext) (string, error) {
	return "You review and explain code.", nil
}

func (m *plainAgent) GetTools() map[string]tool.Tool { return map[string]tool.Tool{} }
func (m *plainAgent) GetSubAgents() []FlowAgent      { return []FlowAgent{} }
func (m *plainAgent) IsFunctionCallingEnabled() bool { return false }
func (m *plainAgent) IsStreamingEnabled() bool       { return false }
func (m *plainAgent) IsTransferEnabled() bool        { return false }
func (m *plainAgent) GetOutputKey() string           { return "" }
func (m *plainAgent) MaxHistoryMessages() int        { return 10 }

func (m *plainAgent) ExecuteTool(toolCtx *core.ToolContext, toolName string, args string) (interface{}, error) {
	return nil, nil
}

func (m *plainAgent) TransferToAgent(rc *core.RunContext, agentName string) error {
	return nil
}

func TestSingleAgentFlow(t *testing.T) {
	llm := newScriptedModel("test-model", "mock")
	llm.respond("explain this diff", "The diff renames the handler and adds a nil check.")

	agent := &plainAgent{name: "ExplainAgent", llm: llm}

	f := NewSingleAgentFlow(agent)
	eventChan, errChan, err := f.Execute(newFlowRunContext(t))
	require.NoError(t, err)

	var events []core.Event
	for ev := range eventChan {
		events = append(events, ev)
	}

	require.NoError(t, <-errChan)
	assert.NotEmpty(t, events, "flow should emit at least one response event")
}
