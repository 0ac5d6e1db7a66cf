package state

import (
	"log/slog"
	"time"
)

// LogEntry describes a recoverable failure or a debug trace emitted by
// the engine: subscriber panics, after-stage middleware errors, adapter
// save failures, rule evaluations.
type LogEntry struct {
	Op       string
	Stage    Stage
	Path     string
	Expr     string
	Duration time.Duration
	Err      error
}

// Logger records engine events.
type Logger interface {
	Log(LogEntry)
}

// LoggerFunc adapts a function to Logger.
type LoggerFunc func(LogEntry)

// Log implements Logger.
func (f LoggerFunc) Log(entry LogEntry) {
	if f != nil {
		f(entry)
	}
}

type noopLogger struct{}

func (noopLogger) Log(LogEntry) {}

// NewSlogLogger adapts a slog.Logger to the engine Logger interface.
// Entries carrying an error log at Error level, the rest at Debug.
func NewSlogLogger(logger *slog.Logger) Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &slogLogger{logger: logger}
}

type slogLogger struct {
	logger *slog.Logger
}

func (l *slogLogger) Log(entry LogEntry) {
	attrs := make([]any, 0, 10)
	attrs = append(attrs, slog.String("op", entry.Op))
	if entry.Stage != "" {
		attrs = append(attrs, slog.String("stage", string(entry.Stage)))
	}
	if entry.Path != "" {
		attrs = append(attrs, slog.String("path", entry.Path))
	}
	if entry.Expr != "" {
		attrs = append(attrs, slog.String("expr", entry.Expr))
	}
	if entry.Duration > 0 {
		attrs = append(attrs, slog.Duration("duration", entry.Duration))
	}
	if entry.Err != nil {
		attrs = append(attrs, slog.Any("error", entry.Err))
		l.logger.Error("state", attrs...)
		return
	}
	l.logger.Debug("state", attrs...)
}
