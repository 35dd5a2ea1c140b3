package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvent_Constructors(t *testing.T) {
	e := NewEvent("run-123", "CodeGenerator")
	assert.Equal(t, "run-123", e.RunID)
	assert.Equal(t, "CodeGenerator", e.Author)
	assert.NotEmpty(t, e.ID)
	assert.False(t, e.Timestamp.IsZero())

	msg := NewMessageEvent("ExplainAgent", "this function computes fibonacci")
	require.NotNil(t, msg.Content)
	assert.Equal(t, "assistant", msg.Content.Role)
	assert.Len(t, msg.Content.Parts, 1)

	user := NewUserMessageEvent("run-1", "write a parser")
	require.NotNil(t, user.Content)
	assert.Equal(t, "user", user.Content.Role)
}

func TestEvent_FunctionCallExtraction(t *testing.T) {
	fCall := NewFunctionCallEvent("CodeGenerator", "run_tests", `{"path":"./..."}`)

	calls := fCall.GetFunctionCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "run_tests", calls[0].Name)
	assert.Equal(t, `{"path":"./..."}`, calls[0].Arguments)

	okResp := NewFunctionResponseEvent("CodeGenerator", "call-1", "run_tests", 42, nil)
	resps := okResp.GetFunctionResponses()
	require.Len(t, resps, 1)
	assert.Equal(t, 42, resps[0].Response)
	assert.Empty(t, resps[0].Error)

	errResp := NewFunctionResponseEvent("CodeGenerator", "call-2", "run_tests", nil, errors.New("boom"))
	resps = errResp.GetFunctionResponses()
	require.Len(t, resps, 1)
	assert.NotEmpty(t, resps[0].Error)
}

func TestEvent_IsFinalResponseLogic(t *testing.T) {
	partial := true
	skip := true

	e := NewEvent("run", "CodeGenerator")
	assert.True(t, e.IsFinalResponse(), "bare event is final")

	e2 := NewEvent("run", "CodeGenerator")
	e2.Partial = &partial
	assert.False(t, e2.IsFinalResponse(), "partial fragment is not final")

	e3 := NewFunctionCallEvent("CodeGenerator", "run_tests", "")
	assert.False(t, e3.IsFinalResponse(), "pending function call is not final")

	e4 := NewFunctionResponseEvent("CodeGenerator", "call-3", "run_tests", "ok", nil)
	assert.False(t, e4.IsFinalResponse(), "function response feeds back into the model")

	e5 := NewEvent("run", "CodeGenerator")
	e5.Partial = &partial
	e5.Actions.SkipSummarization = &skip
	assert.True(t, e5.IsFinalResponse(), "skip-summarization forces final")

	e6 := NewEvent("run", "CodeGenerator")
	e6.LongRunningToolIDs = []string{"sandbox-1"}
	assert.True(t, e6.IsFinalResponse(), "long running tool marks final")
}

func TestEvent_IDUniqueness(t *testing.T) {
	assert.NotEqual(t, NewID(), NewID())
}

func TestParts_DiscriminatedUnion(t *testing.T) {
	parts := []Part{
		TextPart{Text: "hello"},
		DataPart{Data: map[string]any{"score": 0.9}},
		FilePart{File: FilePartFile{URI: "file://main.go"}},
		FunctionCallPart{FunctionCall: FunctionCall{Name: "run_tests"}},
		FunctionResponsePart{FunctionResponse: FunctionResponse{Name: "run_tests"}},
	}

	for _, p := range parts {
		switch pt := p.(type) {
		case TextPart, DataPart, FilePart, FunctionCallPart, FunctionResponsePart:
		default:
			t.Fatalf("unexpected part type: %T (%v)", pt, pt)
		}
	}
}
