package core

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContentJSONRoundTrip(t *testing.T) {
	orig := Content{
		Role: "assistant",
		Parts: []Part{
			TextPart{Text: "running the snippet"},
			FunctionCallPart{FunctionCall: FunctionCall{ID: "fc-1", Name: "run_code", Arguments: `{"code":"print(1)"}`}},
			FunctionResponsePart{FunctionResponse: FunctionResponse{ID: "fc-1", Name: "run_code", Response: map[string]any{"exit_code": float64(0)}}},
			DataPart{Data: map[string]any{"score": float64(9)}},
		},
	}

	data, err := json.Marshal(orig)
	require.NoError(t, err)

	var got Content
	require.NoError(t, json.Unmarshal(data, &got))

	assert.Equal(t, orig, got)
}

func TestContentJSONUnknownPart(t *testing.T) {
	var c Content
	err := json.Unmarshal([]byte(`{"role":"user","parts":[{"type":"hologram"}]}`), &c)
	assert.Error(t, err)
}

func TestEventJSONRoundTrip(t *testing.T) {
	ev := NewEvent("run-1", "CodeGenAgent")
	ev.Content = NewTextContent("assistant", "done")
	transfer := "SafetyAgent"
	ev.Actions.TransferToAgent = &transfer
	ev.Actions.StateDelta = map[string]any{"code_generated": true}

	data, err := json.Marshal(ev)
	require.NoError(t, err)

	var got Event
	require.NoError(t, json.Unmarshal(data, &got))

	assert.Equal(t, ev.ID, got.ID)
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, "done", got.Content.Text())
	require.NotNil(t, got.Actions.TransferToAgent)
	assert.Equal(t, "SafetyAgent", *got.Actions.TransferToAgent)
}
