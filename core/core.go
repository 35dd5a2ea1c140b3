package core

import "github.com/coderlang-ai/coderlang/logging"

// loggerAdapter gives contexts embedded LogDebug/LogInfo/LogWarn/LogError
// helpers backed by a never-nil logger.
type loggerAdapter struct {
	logger logging.Logger
}

func newLoggerAdapter(l logging.Logger) *loggerAdapter {
	if l == nil {
		l = logging.NoOpLogger{}
	}

	return &loggerAdapter{logger: l}
}

// Logger returns the wrapped logger.
func (l *loggerAdapter) Logger() logging.Logger { return l.logger }

func (l *loggerAdapter) LogDebug(msg string, args ...any) { l.logger.Debug(msg, args...) }

func (l *loggerAdapter) LogInfo(msg string, args ...any) { l.logger.Info(msg, args...) }

func (l *loggerAdapter) LogWarn(msg string, args ...any) { l.logger.Warn(msg, args...) }

func (l *loggerAdapter) LogError(msg string, args ...any) { l.logger.Error(msg, args...) }
