package flow

import (
	"context"
	"testing"
	"time"

	"github.com/coderlang-ai/coderlang/core"
	"github.com/coderlang-ai/coderlang/logging"
	"github.com/coderlang-ai/coderlang/model"
	"github.com/coderlang-ai/coderlang/session"
	"github.com/coderlang-ai/coderlang/tool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// twoCallModel answers every request with a single assistant turn carrying
// two function calls, which forces the flow down the merge path.
type twoCallModel struct{}

func (m *twoCallModel) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	respCh := make(chan model.Response, 1)
	errCh := make(chan error, 1)

	go func() {
		defer close(respCh)
		defer close(errCh)

		parts := []core.Part{
			core.FunctionCallPart{FunctionCall: core.FunctionCall{ID: "fc1", Name: "run_tests", Arguments: "{}"}},
			core.FunctionCallPart{FunctionCall: core.FunctionCall{ID: "fc2", Name: "lint_source", Arguments: "{}"}},
		}

		respCh <- model.Response{
			Content:      core.Content{Role: "assistant", Parts: parts},
			FinishReason: "tool_calls",
		}
	}()

	return respCh, errCh
}

func (m *twoCallModel) Info() model.Info {
	return model.Info{Name: "two-call", Provider: "mock", SupportsTools: true}
}

type mergeAgent struct {
	*execStubAgent
	llm model.Model
}

func (a *mergeAgent) GetLLM() model.Model { return a.llm }

func newMergeRunContext(t *testing.T) *core.RunContext {
	t.Helper()

	eventChan := make(chan core.Event, 100)
	sessSvc := session.NewInMemoryStore()
	sess, err := sessSvc.Create("sess")
	require.NoError(t, err)

	userContent := core.Content{Role: "user", Parts: []core.Part{core.TextPart{Text: "check my patch"}}}

	return core.NewRunContext(
		context.Background(), "sess", "run",
		core.AgentInfo{Name: "CodeGenerator", Type: "test"},
		userContent, 100, eventChan, nil, sess, sessSvc, nil, nil,
		logging.NoOpLogger{},
	)
}

// Parallel tool responses for one model turn must come back as a single
// merged event: responses in call order, actions from both tools combined.
func TestBaseFlow_MergeFunctionResponses(t *testing.T) {
	tools := map[string]tool.Tool{
		"run_tests": &execStubTool{
			name:        "run_tests",
			delay:       20 * time.Millisecond,
			result:      "2 passed",
			actionState: map[string]any{"tests_green": true},
		},
		"lint_source": &execStubTool{
			name:       "lint_source",
			delay:      10 * time.Millisecond,
			result:     "clean",
			transferTo: "ReviewAgent",
		},
	}

	agent := &mergeAgent{
		execStubAgent: &execStubAgent{name: "CodeGenerator", tools: tools},
		llm:           &twoCallModel{},
	}

	bf := NewBaseFlow(agent)

	evCh, errCh, err := bf.Execute(newMergeRunContext(t))
	require.NoError(t, err)

	var toolEvents []core.Event
	timeout := time.After(2 * time.Second)

loop:
	for {
		select {
		case ev, ok := <-evCh:
			if !ok {
				break loop
			}

			if len(ev.GetFunctionResponses()) > 0 {
				toolEvents = append(toolEvents, ev)
			}
		case e, ok := <-errCh:
			if ok && e != nil {
				t.Fatalf("flow error: %v", e)
			}
		case <-timeout:
			t.Fatal("timeout waiting for events")
		}

		if len(toolEvents) == 1 {
			for range evCh {
			}

			break
		}
	}

	require.Len(t, toolEvents, 1, "both responses merge into one event")

	merged := toolEvents[0]
	frs := merged.GetFunctionResponses()
	require.Len(t, frs, 2)

	// Order follows the function call list, not completion time.
	assert.Equal(t, "run_tests", frs[0].Name)
	assert.Equal(t, "lint_source", frs[1].Name)

	assert.Equal(t, true, merged.Actions.StateDelta["tests_green"])
	require.NotNil(t, merged.Actions.TransferToAgent)
	assert.Equal(t, "ReviewAgent", *merged.Actions.TransferToAgent)
}
