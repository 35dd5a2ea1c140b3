// Package logging layers a small Logger interface over slog so the rest of
// CoderLang depends on four methods instead of a concrete logger. The
// ContextLogger implementation adds cloning helpers for component, session
// and run scoping plus structured records for tool, model and flow calls.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"time"
)

// LogLevel is the user-facing severity enum, decoupled from slog levels.
type LogLevel int

const (
	// LogLevelDebug enables verbose diagnostics.
	LogLevelDebug LogLevel = iota
	// LogLevelInfo is the default operational level.
	LogLevelInfo
	// LogLevelWarn reports recoverable problems.
	LogLevelWarn
	// LogLevelError reports failures.
	LogLevelError
)

// String renders the level name.
func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l LogLevel) slog() slog.Level {
	switch l {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Logger is the minimal interface the engine, agents and tools log through.
// Any structured logger can be plugged in behind it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// SlogAdapter exposes a *slog.Logger through the Logger interface.
type SlogAdapter struct {
	*slog.Logger
}

// Debug forwards to the wrapped slog logger.
func (s *SlogAdapter) Debug(msg string, args ...any) { s.Logger.Debug(msg, args...) }

// Info forwards to the wrapped slog logger.
func (s *SlogAdapter) Info(msg string, args ...any) { s.Logger.Info(msg, args...) }

// Warn forwards to the wrapped slog logger.
func (s *SlogAdapter) Warn(msg string, args ...any) { s.Logger.Warn(msg, args...) }

// Error forwards to the wrapped slog logger.
func (s *SlogAdapter) Error(msg string, args ...any) { s.Logger.Error(msg, args...) }

// NewSlogAdapter wraps an existing *slog.Logger.
func NewSlogAdapter(logger *slog.Logger) Logger {
	return &SlogAdapter{Logger: logger}
}

// NewDefaultSlogLogger wraps slog.Default().
func NewDefaultSlogLogger() Logger {
	return NewSlogAdapter(slog.Default())
}

// ContextLogger is the full-featured logger. With* methods return scoped
// copies, so a single root logger can fan out per component, session and
// run without shared mutable state.
type ContextLogger struct {
	logger    *slog.Logger
	level     LogLevel
	attrs     map[string]interface{}
	component string
	sessionID string
	runID     string
}

// LoggerConfig configures a ContextLogger.
type LoggerConfig struct {
	Level       LogLevel
	Format      string // json or text
	Output      io.Writer
	AddSource   bool
	Component   string
	SessionID   string
	RunID       string
	CustomAttrs map[string]interface{}
}

// DefaultLoggerConfig returns the baseline: JSON to stdout at info level.
func DefaultLoggerConfig() *LoggerConfig {
	return &LoggerConfig{
		Level:       LogLevelInfo,
		Format:      "json",
		Output:      os.Stdout,
		AddSource:   true,
		CustomAttrs: map[string]interface{}{},
	}
}

// NewLogger builds a ContextLogger; a nil config means defaults, and a
// missing Output falls back to stdout.
func NewLogger(cfg *LoggerConfig) *ContextLogger {
	if cfg == nil {
		cfg = DefaultLoggerConfig()
	}

	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}

	opts := &slog.HandlerOptions{Level: cfg.Level.slog(), AddSource: cfg.AddSource}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(cfg.Output, opts)
	} else {
		handler = slog.NewJSONHandler(cfg.Output, opts)
	}

	return &ContextLogger{
		logger:    slog.New(handler),
		level:     cfg.Level,
		attrs:     map[string]interface{}{},
		component: cfg.Component,
		sessionID: cfg.SessionID,
		runID:     cfg.RunID,
	}
}

// NewSlogLogger is a shorthand constructor for the common level/format case.
func NewSlogLogger(level LogLevel, format string, addSource bool) *ContextLogger {
	cfg := DefaultLoggerConfig()
	cfg.Level = level

	if format != "" {
		cfg.Format = format
	}

	cfg.AddSource = addSource

	return NewLogger(cfg)
}

func (l *ContextLogger) clone() *ContextLogger {
	nl := *l

	nl.attrs = make(map[string]interface{}, len(l.attrs))
	for k, v := range l.attrs {
		nl.attrs[k] = v
	}

	return &nl
}

// WithContext returns a copy that attaches key/value to every record.
func (l *ContextLogger) WithContext(key string, value interface{}) *ContextLogger {
	nl := l.clone()
	nl.attrs[key] = value

	return nl
}

// WithComponent returns a copy scoped to a logical component (engine,
// coordinator, tool, ...).
func (l *ContextLogger) WithComponent(c string) *ContextLogger {
	nl := l.clone()
	nl.component = c

	return nl
}

// WithSession returns a copy carrying session and run identifiers.
func (l *ContextLogger) WithSession(sessionID, runID string) *ContextLogger {
	nl := l.clone()
	nl.sessionID = sessionID
	nl.runID = runID

	return nl
}

func (l *ContextLogger) scopedAttrs() []slog.Attr {
	attrs := make([]slog.Attr, 0, len(l.attrs)+4)

	if l.component != "" {
		attrs = append(attrs, slog.String("component", l.component))
	}

	if l.sessionID != "" {
		attrs = append(attrs, slog.String("session_id", l.sessionID))
	}

	if l.runID != "" {
		attrs = append(attrs, slog.String("run_id", l.runID))
	}

	attrs = append(attrs, slog.Time("timestamp", time.Now()))

	for k, v := range l.attrs {
		attrs = append(attrs, slog.Any(k, v))
	}

	return attrs
}

// kvAttrs converts slog-style trailing arguments into attrs. A dangling
// value gets slog's !BADKEY treatment so the record still carries it.
func kvAttrs(args []interface{}) []slog.Attr {
	attrs := make([]slog.Attr, 0, (len(args)+1)/2)

	for i := 0; i < len(args); i += 2 {
		if i+1 >= len(args) {
			attrs = append(attrs, slog.Any("!BADKEY", args[i]))
			break
		}

		key, ok := args[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", args[i])
		}

		attrs = append(attrs, slog.Any(key, args[i+1]))
	}

	return attrs
}

func (l *ContextLogger) emit(level slog.Level, threshold LogLevel, msg string, args ...interface{}) {
	if l.level > threshold {
		return
	}

	attrs := append(l.scopedAttrs(), kvAttrs(args)...)

	l.logger.LogAttrs(context.Background(), level, msg, attrs...)
}

// Debug logs at debug level; trailing args are key/value pairs.
func (l *ContextLogger) Debug(msg string, args ...interface{}) {
	l.emit(slog.LevelDebug, LogLevelDebug, msg, args...)
}

// Info logs at info level; trailing args are key/value pairs.
func (l *ContextLogger) Info(msg string, args ...interface{}) {
	l.emit(slog.LevelInfo, LogLevelInfo, msg, args...)
}

// Warn logs at warn level; trailing args are key/value pairs.
func (l *ContextLogger) Warn(msg string, args ...interface{}) {
	l.emit(slog.LevelWarn, LogLevelWarn, msg, args...)
}

// Error logs at error level; trailing args are key/value pairs.
func (l *ContextLogger) Error(msg string, args ...interface{}) {
	l.emit(slog.LevelError, LogLevelError, msg, args...)
}

// ErrorWithStack logs an error together with a goroutine stack snapshot.
// Trailing args are key/value pairs.
func (l *ContextLogger) ErrorWithStack(err error, msg string, args ...interface{}) {
	if l.level > LogLevelError {
		return
	}

	stack := make([]byte, 4096)
	n := runtime.Stack(stack, false)

	attrs := l.scopedAttrs()
	attrs = append(attrs,
		slog.String("error", err.Error()),
		slog.String("error_type", fmt.Sprintf("%T", err)),
		slog.String("stack_trace", string(stack[:n])),
	)
	attrs = append(attrs, kvAttrs(args)...)

	l.logger.LogAttrs(context.Background(), slog.LevelError, msg, attrs...)
}

func (l *ContextLogger) outcome(msg string, success bool, err error, extra ...slog.Attr) {
	attrs := append(l.scopedAttrs(), extra...)
	attrs = append(attrs, slog.Bool("success", success))

	level := slog.LevelInfo
	if !success {
		level = slog.LevelError
		msg += " failed"
	} else {
		msg += " completed"
	}

	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}

	l.logger.LogAttrs(context.Background(), level, msg, attrs...)
}

// LogToolCall records a tool invocation with its duration and outcome.
func (l *ContextLogger) LogToolCall(tool string, dur time.Duration, success bool, err error) {
	l.outcome("Tool execution", success, err,
		slog.String("tool_name", tool),
		slog.Duration("duration", dur),
	)
}

// LogModelCall records a model call with token usage, latency and outcome.
func (l *ContextLogger) LogModelCall(model string, tokens int, dur time.Duration, success bool, err error) {
	l.outcome("Model call", success, err,
		slog.String("model", model),
		slog.Int("token_count", tokens),
		slog.Duration("duration", dur),
	)
}

// LogFlowExecution records aggregate metrics for one flow run.
func (l *ContextLogger) LogFlowExecution(flow string, steps int, dur time.Duration, success bool, err error) {
	l.outcome("Flow execution", success, err,
		slog.String("flow_type", flow),
		slog.Int("step_count", steps),
		slog.Duration("duration", dur),
	)
}

// StartTimer returns a closure that logs the elapsed time when called.
func (l *ContextLogger) StartTimer(op string) func() {
	start := time.Now()

	return func() {
		l.Info("Operation completed", "operation", op, "duration", time.Since(start))
	}
}

// LogPerformance logs ad-hoc performance metrics for an operation.
func (l *ContextLogger) LogPerformance(op string, dur time.Duration, metrics map[string]interface{}) {
	attrs := l.scopedAttrs()
	attrs = append(attrs, slog.String("operation", op), slog.Duration("duration", dur))

	for k, v := range metrics {
		attrs = append(attrs, slog.Any("metric_"+k, v))
	}

	l.logger.LogAttrs(context.Background(), slog.LevelInfo, "Performance metrics", attrs...)
}

// NoOpLogger drops everything. Used in tests and as the default when
// callers do not configure logging.
type NoOpLogger struct{}

// Debug discards the message.
func (NoOpLogger) Debug(string, ...any) {}

// Info discards the message.
func (NoOpLogger) Info(string, ...any) {}

// Warn discards the message.
func (NoOpLogger) Warn(string, ...any) {}

// Error discards the message.
func (NoOpLogger) Error(string, ...any) {}
