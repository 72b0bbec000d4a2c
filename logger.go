package wapi

import (
	"io"
	"log/slog"
	"os"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
)

// DefaultDebugConfig returns a disabled debug configuration with every event
// category selected, so enabling it is enough to see everything.
func DefaultDebugConfig() *DebugConfig {
	return &DebugConfig{
		Enabled:      false,
		LogRequests:  true,
		LogCache:     true,
		LogDedup:     true,
		LogListeners: true,
		RequestIDGen: uuid.NewString,
	}
}

// SimpleLogger writes text records through log/slog.
type SimpleLogger struct {
	logger *slog.Logger
}

// NewSimpleLogger returns a logger writing debug-level text records to stderr.
func NewSimpleLogger() *SimpleLogger {
	return NewSimpleLoggerTo(os.Stderr)
}

// NewSimpleLoggerTo returns a SimpleLogger writing to w.
func NewSimpleLoggerTo(w io.Writer) *SimpleLogger {
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug})
	return &SimpleLogger{logger: slog.New(handler).With("component", "wapi")}
}

func (l *SimpleLogger) Debug(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l *SimpleLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Info(msg, keysAndValues...)
}

func (l *SimpleLogger) Warn(msg string, keysAndValues ...any) {
	l.logger.Warn(msg, keysAndValues...)
}

func (l *SimpleLogger) Error(msg string, keysAndValues ...any) {
	l.logger.Error(msg, keysAndValues...)
}

// LogrLogger adapts a logr.Logger. Debug records go to verbosity 1.
type LogrLogger struct {
	logger logr.Logger
}

// NewLogrLogger wraps logger. A logger without a sink discards everything.
func NewLogrLogger(logger logr.Logger) *LogrLogger {
	if logger.GetSink() == nil {
		logger = logr.Discard()
	}
	return &LogrLogger{logger: logger.WithName("wapi")}
}

func (l *LogrLogger) Debug(msg string, keysAndValues ...any) {
	l.logger.V(1).Info(msg, keysAndValues...)
}

func (l *LogrLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Info(msg, keysAndValues...)
}

func (l *LogrLogger) Warn(msg string, keysAndValues ...any) {
	l.logger.Info(msg, append(keysAndValues, "level", "warn")...)
}

// Error passes the first error value found under the "error" key to logr as
// the error argument.
func (l *LogrLogger) Error(msg string, keysAndValues ...any) {
	var err error
	rest := make([]any, 0, len(keysAndValues))
	for i := 0; i < len(keysAndValues); i += 2 {
		if i+1 < len(keysAndValues) && keysAndValues[i] == "error" {
			if e, ok := keysAndValues[i+1].(error); ok && err == nil {
				err = e
				continue
			}
		}
		rest = append(rest, keysAndValues[i])
		if i+1 < len(keysAndValues) {
			rest = append(rest, keysAndValues[i+1])
		}
	}
	l.logger.Error(err, msg, rest...)
}
