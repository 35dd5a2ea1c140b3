package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coderlang "github.com/coderlang-ai/coderlang"
	"github.com/coderlang-ai/coderlang/config"
	"github.com/coderlang-ai/coderlang/core"
	"github.com/coderlang-ai/coderlang/model"
	"github.com/coderlang-ai/coderlang/orchestrator"
)

type stubModel struct {
	name      string
	responses map[string]string
}

func (m *stubModel) respond(role, text string) {
	m.responses[orchestrator.SystemPrompts[role]] = text
}

func (m *stubModel) Generate(_ context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	respCh := make(chan model.Response, 1)
	errCh := make(chan error, 1)

	if text, ok := m.responses[req.Instructions]; ok {
		respCh <- model.Response{
			Content:      core.Content{Role: "assistant", Parts: []core.Part{core.TextPart{Text: text}}},
			FinishReason: "stop",
		}
	} else {
		errCh <- fmt.Errorf("no canned response")
	}

	close(respCh)
	close(errCh)

	return respCh, errCh
}

func (m *stubModel) Info() model.Info {
	return model.Info{Name: m.name, Provider: "mock", SupportsTools: true}
}

func newTestServer(t *testing.T) (*Server, *stubModel) {
	t.Helper()

	llm := &stubModel{name: "stub", responses: map[string]string{}}
	llm.respond(orchestrator.RoleRouter, `{"intent_summary":"chat","agents_to_run":["GeneralAgent","ExplainAgent"],"parallelizable":true}`)
	llm.respond(orchestrator.RoleGeneral, "hello there")
	llm.respond(orchestrator.RoleExplain, "a friendly greeting")

	cfg := config.Default()
	cfg.Provider = "mock"
	cfg.Cache.Backend = "none"
	cfg.Memory.Dir = filepath.Join(t.TempDir(), "memory")
	cfg.Executor.Workspace = filepath.Join(t.TempDir(), "workspace")

	cl, err := coderlang.New(context.Background(), func(o *coderlang.Options) {
		o.Config = cfg
		o.FastModel = llm
		o.SmartModel = llm
	})
	require.NoError(t, err)

	t.Cleanup(func() { cl.Close() })

	return New(cl), llm
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	return rec
}

func TestServer_CreateRun(t *testing.T) {
	srv, _ := newTestServer(t)
	router := srv.Router()

	rec := doJSON(t, router, http.MethodPost, "/v1/sessions/s1/runs", map[string]string{"prompt": "hi"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		RunID   string               `json:"run_id"`
		Summary orchestrator.Summary `json:"summary"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))

	assert.NotEmpty(t, resp.RunID)
	assert.Equal(t, "chat", resp.Summary.Intent)
	assert.Equal(t, "hello there", resp.Summary.Explanation)
	assert.Equal(t, orchestrator.StageComplete, resp.Summary.Stage)
}

func TestServer_CreateRun_Validation(t *testing.T) {
	srv, _ := newTestServer(t)
	router := srv.Router()

	rec := doJSON(t, router, http.MethodPost, "/v1/sessions/s1/runs", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/v1/sessions/s1/runs", bytes.NewBufferString("{not json"))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_CreateRun_UnknownAgent(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv.Router(), http.MethodPost, "/v1/sessions/s1/runs", map[string]string{
		"prompt": "hi",
		"agent":  "nope",
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestServer_EventsAndSummary(t *testing.T) {
	srv, _ := newTestServer(t)
	router := srv.Router()

	rec := doJSON(t, router, http.MethodPost, "/v1/sessions/s1/runs", map[string]string{"prompt": "hi"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/v1/sessions/s1/events", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var events struct {
		SessionID string           `json:"session_id"`
		Events    []map[string]any `json:"events"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&events))
	assert.Equal(t, "s1", events.SessionID)
	assert.NotEmpty(t, events.Events)

	rec = doJSON(t, router, http.MethodGet, "/v1/sessions/s1/summary", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var summary orchestrator.Summary
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&summary))
	assert.Equal(t, "chat", summary.Intent)
}

func TestServer_SummaryNotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv.Router(), http.MethodGet, "/v1/sessions/missing/summary", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_Trace(t *testing.T) {
	srv, _ := newTestServer(t)
	router := srv.Router()

	rec := doJSON(t, router, http.MethodPost, "/v1/sessions/s1/runs", map[string]string{"prompt": "hi"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp runResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.NotEmpty(t, resp.RunID)

	rec = doJSON(t, router, http.MethodGet, "/v1/runs/"+resp.RunID+"/trace", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var trace traceResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&trace))
	assert.Equal(t, resp.RunID, trace.RunID)
	assert.NotEmpty(t, trace.Events)
	assert.NotEmpty(t, trace.Timeline)

	rec = doJSON(t, router, http.MethodGet, "/v1/runs/unknown/trace", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_MetricsAndHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	router := srv.Router()

	rec := doJSON(t, router, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	doJSON(t, router, http.MethodPost, "/v1/sessions/s1/runs", map[string]string{"prompt": "hi"})

	rec = doJSON(t, router, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var snap map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&snap))
	assert.NotEmpty(t, snap)
}
