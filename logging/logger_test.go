package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureLogger(t *testing.T, level LogLevel) (*ContextLogger, *bytes.Buffer) {
	t.Helper()

	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{Level: level, Format: "json", Output: &buf})

	return logger, &buf
}

func lastRecord(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.NotEmpty(t, lines)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(lines[len(lines)-1], &rec))

	return rec
}

func TestNewLogger_DefaultsMissingOutput(t *testing.T) {
	logger := NewLogger(&LoggerConfig{Level: LogLevelInfo, Format: "text", Component: "engine"})
	require.NotNil(t, logger)

	assert.NotPanics(t, func() {
		logger.Info("engine.start", "session_id", "sess-1")
	})
}

func TestContextLogger_KeyValueArgs(t *testing.T) {
	logger, buf := captureLogger(t, LogLevelInfo)

	logger.Info("coordinator.step", "stage", "PLANNED", "run_id", "run-1")

	rec := lastRecord(t, buf)
	assert.Equal(t, "coordinator.step", rec["msg"])
	assert.Equal(t, "PLANNED", rec["stage"])
	assert.Equal(t, "run-1", rec["run_id"])
}

func TestContextLogger_DanglingValue(t *testing.T) {
	logger, buf := captureLogger(t, LogLevelInfo)

	logger.Warn("engine.event.dropped", "lonely-value")

	rec := lastRecord(t, buf)
	assert.Equal(t, "engine.event.dropped", rec["msg"])
	assert.Equal(t, "lonely-value", rec["!BADKEY"])
}

func TestContextLogger_LevelThreshold(t *testing.T) {
	logger, buf := captureLogger(t, LogLevelWarn)

	logger.Debug("flow.request.assembled")
	logger.Info("flow.turn.complete")
	assert.Zero(t, buf.Len())

	logger.Warn("flow.stream.truncated", "agent", "CodeGenerator")
	rec := lastRecord(t, buf)
	assert.Equal(t, "flow.stream.truncated", rec["msg"])
	assert.Equal(t, "CodeGenerator", rec["agent"])
}

func TestContextLogger_ScopedCopies(t *testing.T) {
	logger, buf := captureLogger(t, LogLevelInfo)

	scoped := logger.WithComponent("coordinator").WithSession("sess-1", "run-1")
	scoped.Info("coordinator.run.start")

	rec := lastRecord(t, buf)
	assert.Equal(t, "coordinator", rec["component"])
	assert.Equal(t, "sess-1", rec["session_id"])
	assert.Equal(t, "run-1", rec["run_id"])

	// The parent logger is untouched.
	buf.Reset()
	logger.Info("engine.start")
	rec = lastRecord(t, buf)
	assert.NotContains(t, rec, "component")
}

func TestContextLogger_ErrorWithStack(t *testing.T) {
	logger, buf := captureLogger(t, LogLevelInfo)

	logger.ErrorWithStack(errors.New("model quota exceeded"), "model.call.failed", "model", "gemini-fast")

	rec := lastRecord(t, buf)
	assert.Equal(t, "model.call.failed", rec["msg"])
	assert.Equal(t, "model quota exceeded", rec["error"])
	assert.Equal(t, "gemini-fast", rec["model"])
	assert.NotEmpty(t, rec["stack_trace"])
}
