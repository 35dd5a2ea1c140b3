// Package server exposes the CoderLang workflow over HTTP.
//
// Endpoints:
//
//	POST /v1/sessions/{sessionID}/runs     run an agent (coordinator by default)
//	GET  /v1/sessions/{sessionID}/events   session event history
//	GET  /v1/sessions/{sessionID}/summary  latest workflow summary
//	GET  /v1/runs/{runID}/trace            per-run trace timeline
//	GET  /metrics                          request metrics snapshot
//	GET  /healthz                          liveness probe
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	coderlang "github.com/coderlang-ai/coderlang"
	"github.com/coderlang-ai/coderlang/core"
	"github.com/coderlang-ai/coderlang/logging"
	"github.com/coderlang-ai/coderlang/observability"
)

// Options configures the HTTP server.
type Options struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	Logger          logging.Logger
}

// Server serves the CoderLang HTTP API.
type Server struct {
	cl     *coderlang.CoderLang
	logger logging.Logger
	http   *http.Server

	shutdownTimeout time.Duration
}

// New creates a Server over an assembled CoderLang instance.
func New(cl *coderlang.CoderLang, optFns ...func(o *Options)) *Server {
	opts := Options{
		Addr:            ":8501",
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    5 * time.Minute,
		ShutdownTimeout: 10 * time.Second,
		Logger:          logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	s := &Server{
		cl:              cl,
		logger:          opts.Logger,
		shutdownTimeout: opts.ShutdownTimeout,
	}

	s.http = &http.Server{
		Addr:         opts.Addr,
		Handler:      s.Router(),
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
	}

	return s
}

// Router builds the chi route tree. Exposed for tests and embedding.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/metrics", s.handleMetrics)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/sessions/{sessionID}", func(r chi.Router) {
			r.Post("/runs", s.handleCreateRun)
			r.Get("/events", s.handleEvents)
			r.Get("/summary", s.handleSummary)
		})
		r.Get("/runs/{runID}/trace", s.handleTrace)
	})

	return r
}

// ListenAndServe blocks serving requests until the context is cancelled or
// the listener fails.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("server.listening", "addr", s.http.Addr)

		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()

		return s.http.Shutdown(shutdownCtx)
	}
}

type runRequest struct {
	Prompt string `json:"prompt"`
	Agent  string `json:"agent,omitempty"`
}

type runResponse struct {
	RunID   string       `json:"run_id"`
	Summary any          `json:"summary,omitempty"`
	Events  []core.Event `json:"events,omitempty"`
}

func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Prompt == "" {
		writeError(w, http.StatusBadRequest, "prompt is required")
		return
	}

	agentName := req.Agent
	if agentName == "" {
		agentName = coderlang.CoordinatorName
	}

	content := core.Content{Role: "user", Parts: []core.Part{core.TextPart{Text: req.Prompt}}}

	runID, events, err := s.cl.InvokeSync(r.Context(), sessionID, agentName, content)
	if err != nil {
		s.logger.Error("server.run.failed", "session_id", sessionID, "agent", agentName, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())

		return
	}

	resp := runResponse{RunID: runID}

	if agentName == coderlang.CoordinatorName {
		if summary, err := s.cl.Summary(sessionID); err == nil {
			resp.Summary = summary
		}
	} else {
		resp.Events = events
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	sess, err := s.cl.Sessions().Get(sessionID)
	if err != nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": sessionID,
		"events":     sess.GetEvents(),
	})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	summary, err := s.cl.Summary(sessionID)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleTrace(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	tracer, ok := s.cl.Tracers().Lookup(runID)
	if !ok {
		writeError(w, http.StatusNotFound, "trace not found")
		return
	}

	writeJSON(w, http.StatusOK, traceResponse{
		RunID:    runID,
		Events:   tracer.Events(),
		Timeline: tracer.Timeline(),
	})
}

type traceResponse struct {
	RunID    string                     `json:"run_id"`
	Events   []observability.TraceEvent `json:"events"`
	Timeline string                     `json:"timeline"`
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.cl.Metrics())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
