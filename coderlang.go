// Package coderlang provides a high-level façade over the engine, the staged
// coordinator and the backing stores. Most applications:
//  1. Load a config.Config (file + CODERLANG_ environment).
//  2. Create a CoderLang instance via New.
//  3. Call Ask for request/response usage, or Invoke for event streaming.
//
// All defaults are safe for local development: in-memory session store,
// in-memory cache and a file-backed memory store under .coderlang/.
package coderlang

import (
	"context"
	"fmt"
	"io"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"

	"github.com/coderlang-ai/coderlang/agent"
	"github.com/coderlang-ai/coderlang/cache"
	"github.com/coderlang-ai/coderlang/code"
	"github.com/coderlang-ai/coderlang/config"
	"github.com/coderlang-ai/coderlang/core"
	"github.com/coderlang-ai/coderlang/engine"
	"github.com/coderlang-ai/coderlang/logging"
	"github.com/coderlang-ai/coderlang/memory"
	"github.com/coderlang-ai/coderlang/model"
	"github.com/coderlang-ai/coderlang/model/anthropic"
	"github.com/coderlang-ai/coderlang/model/gemini"
	"github.com/coderlang-ai/coderlang/model/openai"
	"github.com/coderlang-ai/coderlang/observability"
	"github.com/coderlang-ai/coderlang/orchestrator"
	"github.com/coderlang-ai/coderlang/session"
	"github.com/coderlang-ai/coderlang/tool"
)

// CoordinatorName is the registered name of the staged workflow agent.
const CoordinatorName = "coordinator"

// AssistantName is the registered name of the tool-using chat agent.
const AssistantName = "assistant"

// Options configures a CoderLang instance beyond what config.Config carries.
// Model and store overrides take precedence over config-driven construction,
// which keeps tests and embedders free of provider credentials.
type Options struct {
	Config *config.Config
	Logger logging.Logger

	FastModel  model.Model
	SmartModel model.Model

	SessionStore core.SessionStore
	Cache        cache.Cache
	Memory       *memory.FileStore
	Executor     code.Executor
}

// CoderLang aggregates the engine, the coordinator and shared observability.
type CoderLang struct {
	cfg         *config.Config
	engine      *engine.Engine
	coordinator *orchestrator.Coordinator
	metrics     *observability.Metrics
	tracers     *observability.TracerRegistry
	sessions    core.SessionStore
	memory      *memory.FileStore
	logger      logging.Logger

	closers []io.Closer
}

// New builds a fully wired CoderLang instance from configuration.
func New(ctx context.Context, optFns ...func(o *Options)) (*CoderLang, error) {
	opts := Options{}

	for _, fn := range optFns {
		fn(&opts)
	}

	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.NewLogger(&logging.LoggerConfig{
			Level:     logLevel(cfg.Log.Level),
			Format:    "text",
			Component: "coderlang",
		})
	}

	cl := &CoderLang{
		cfg:     cfg,
		metrics: observability.NewMetrics(),
		tracers: observability.NewTracerRegistry(0),
		logger:  logger,
	}

	fast, smart, err := cl.buildModels(ctx, &opts)
	if err != nil {
		return nil, err
	}

	sessions, err := cl.buildSessionStore(&opts)
	if err != nil {
		return nil, err
	}

	cl.sessions = sessions

	respCache, err := cl.buildCache(ctx, &opts)
	if err != nil {
		return nil, err
	}

	mem := opts.Memory
	if mem == nil && cfg.Memory.Dir != "" {
		mem, err = memory.NewFileStore(cfg.Memory.Dir)
		if err != nil {
			return nil, fmt.Errorf("failed to open memory store: %w", err)
		}
	}

	cl.memory = mem

	cl.coordinator = orchestrator.NewCoordinator(fast, smart, func(o *orchestrator.Options) {
		o.Name = CoordinatorName
		o.Cache = respCache
		o.CacheTTL = cfg.Cache.TTL
		o.Tracers = cl.tracers
		o.Metrics = cl.metrics
		o.Logger = logger

		if mem != nil {
			o.Memory = mem
		}
	})

	cl.engine = engine.New(func(o *engine.Options) {
		o.Config = engine.Config{
			MaxConcurrentRuns: engine.DefaultConfig.MaxConcurrentRuns,
			MaxModelCalls:     cfg.MaxModelCalls,
			EnableStreaming:   true,
			EventBufferSize:   engine.DefaultConfig.EventBufferSize,
			TraceDir:          cfg.Trace.Dir,
		}
		o.SessionStore = sessions
		o.Tracers = cl.tracers
		o.Logger = logger
	})

	cl.engine.Register(cl.coordinator)
	cl.engine.Register(cl.buildAssistant(fast, &opts))

	return cl, nil
}

// Ask runs the coordinator workflow for prompt and returns its summary.
func (cl *CoderLang) Ask(ctx context.Context, sessionID, prompt string) (*orchestrator.Summary, error) {
	content := core.Content{Role: "user", Parts: []core.Part{core.TextPart{Text: prompt}}}

	if _, _, err := cl.engine.InvokeSync(ctx, sessionID, CoordinatorName, content); err != nil {
		return nil, err
	}

	return cl.Summary(sessionID)
}

// Summary returns the latest workflow summary stored in a session.
func (cl *CoderLang) Summary(sessionID string) (*orchestrator.Summary, error) {
	sess, err := cl.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}

	v, ok := sess.GetState(orchestrator.StateKeySummary)
	if !ok {
		return nil, fmt.Errorf("session %s has no workflow summary", sessionID)
	}

	summary, ok := orchestrator.SummaryFromState(v)
	if !ok {
		return nil, fmt.Errorf("session %s has a malformed workflow summary", sessionID)
	}

	return summary, nil
}

// Invoke starts an asynchronous run of a registered agent.
func (cl *CoderLang) Invoke(
	ctx context.Context,
	sessionID string,
	agentName string,
	userContent core.Content,
) (string, <-chan core.Event, <-chan error, error) {
	return cl.engine.Invoke(ctx, sessionID, agentName, userContent)
}

// InvokeSync runs a registered agent to completion, collecting its events.
func (cl *CoderLang) InvokeSync(
	ctx context.Context,
	sessionID string,
	agentName string,
	userContent core.Content,
) (string, []core.Event, error) {
	return cl.engine.InvokeSync(ctx, sessionID, agentName, userContent)
}

// RegisterAgent adds a custom agent to the underlying engine.
func (cl *CoderLang) RegisterAgent(a core.Agent) { cl.engine.Register(a) }

// Engine exposes the underlying engine.
func (cl *CoderLang) Engine() *engine.Engine { return cl.engine }

// Sessions exposes the configured session store.
func (cl *CoderLang) Sessions() core.SessionStore { return cl.sessions }

// Memory exposes the persistent memory store, or nil when disabled.
func (cl *CoderLang) Memory() *memory.FileStore { return cl.memory }

// Metrics returns a snapshot of request metrics.
func (cl *CoderLang) Metrics() observability.Snapshot { return cl.metrics.Snapshot() }

// Tracers exposes the per-run trace registry.
func (cl *CoderLang) Tracers() *observability.TracerRegistry { return cl.tracers }

// Config returns the active configuration.
func (cl *CoderLang) Config() *config.Config { return cl.cfg }

// Close releases durable backends (SQLite, Redis).
func (cl *CoderLang) Close() error {
	var firstErr error

	for _, c := range cl.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

func (cl *CoderLang) buildModels(ctx context.Context, opts *Options) (model.Model, model.Model, error) {
	fast, smart := opts.FastModel, opts.SmartModel
	if fast != nil && smart != nil {
		return fast, smart, nil
	}

	cfg := cl.cfg

	var built struct{ fast, smart model.Model }

	switch cfg.Provider {
	case "gemini":
		client, err := gemini.NewModel(ctx, func(o *gemini.Options) {
			o.Model = cfg.FastModel
			o.BlockNone = true
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to build gemini fast model: %w", err)
		}

		smartClient, err := gemini.NewModel(ctx, func(o *gemini.Options) {
			o.Model = cfg.SmartModel
			o.BlockNone = true
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to build gemini smart model: %w", err)
		}

		built.fast, built.smart = client, smartClient
	case "openai":
		built.fast = openai.NewModel(func(o *openai.Options) { o.Model = cfg.FastModel })
		built.smart = openai.NewModel(func(o *openai.Options) { o.Model = cfg.SmartModel })
	case "anthropic":
		built.fast = anthropic.NewModel(func(o *anthropic.Options) { o.Model = anthropicModel(cfg.FastModel) })
		built.smart = anthropic.NewModel(func(o *anthropic.Options) { o.Model = anthropicModel(cfg.SmartModel) })
	case "mock":
		built.fast = model.NewMockModel(cfg.FastModel, "mock")
		built.smart = model.NewMockModel(cfg.SmartModel, "mock")
	default:
		return nil, nil, fmt.Errorf("unsupported provider %q", cfg.Provider)
	}

	if fast == nil {
		fast = built.fast
	}

	if smart == nil {
		smart = built.smart
	}

	return fast, smart, nil
}

func (cl *CoderLang) buildSessionStore(opts *Options) (core.SessionStore, error) {
	if opts.SessionStore != nil {
		return opts.SessionStore, nil
	}

	switch cl.cfg.Session.Backend {
	case "sqlite":
		store, err := session.NewSQLiteStore(cl.cfg.Session.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open session store: %w", err)
		}

		cl.closers = append(cl.closers, store)

		return store, nil
	default:
		return session.NewInMemoryStore(), nil
	}
}

func (cl *CoderLang) buildCache(ctx context.Context, opts *Options) (cache.Cache, error) {
	if opts.Cache != nil {
		return opts.Cache, nil
	}

	switch cl.cfg.Cache.Backend {
	case "redis":
		c, err := cache.NewRedisCache(ctx, cl.cfg.Cache.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis cache: %w", err)
		}

		cl.closers = append(cl.closers, c)

		return c, nil
	case "none":
		return nil, nil
	default:
		return cache.NewMemoryCache(), nil
	}
}

// buildAssistant assembles the tool-using chat agent: local code execution,
// workspace file access and URL fetching over the fast model.
func (cl *CoderLang) buildAssistant(fast model.Model, opts *Options) *agent.ModelAgent {
	executor := opts.Executor
	if executor == nil {
		executor = code.NewLocalExecutor(func(o *code.LocalExecutorOptions) {
			o.Interpreter = cl.cfg.Executor.Interpreter
			o.FileSuffix = cl.cfg.Executor.FileSuffix
			o.Timeout = cl.cfg.Executor.Timeout
			o.TestTimeout = cl.cfg.Executor.TestTimeout
			o.Logger = cl.logger
		})
	}

	tools := []tool.Tool{
		tool.NewRunCodeTool(executor),
		tool.NewFetchURLTool(nil),
	}

	if files, err := tool.NewFileTools(cl.cfg.Executor.Workspace); err == nil {
		tools = append(tools, files.All()...)
	} else {
		cl.logger.Warn("coderlang.workspace.unavailable", "dir", cl.cfg.Executor.Workspace, "error", err)
	}

	assistant := agent.NewModelAgent(AssistantName, fast, func(o *agent.ModelAgentOptions) {
		o.Instruction = agent.NewInstructionFromText(
			"You are a helpful coding assistant. Use the available tools to run code, manage workspace files and fetch documentation when needed.")
		o.AllowTransfer = false
	})

	for _, t := range tools {
		assistant.RegisterTool(t)
	}

	return assistant
}

func anthropicModel(name string) anthropicsdk.Model { return anthropicsdk.Model(name) }

func logLevel(level string) logging.LogLevel {
	switch level {
	case "debug":
		return logging.LogLevelDebug
	case "warn":
		return logging.LogLevelWarn
	case "error":
		return logging.LogLevelError
	default:
		return logging.LogLevelInfo
	}
}
