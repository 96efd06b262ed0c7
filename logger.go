package otree

import (
	"context"
	"log/slog"
	"os"

	"github.com/hupe1980/otree/core"
)

// Logger wraps slog.Logger with otree-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithTable adds the table id to the logger.
func (l *Logger) WithTable(tableID core.TableID) *Logger {
	return &Logger{
		Logger: l.Logger.With("table", string(tableID)),
	}
}

// WithRevision adds the revision id to the logger.
func (l *Logger) WithRevision(id core.RevisionID) *Logger {
	return &Logger{
		Logger: l.Logger.With("revision", int64(id)),
	}
}

// LogAppend logs one append commit.
func (l *Logger) LogAppend(ctx context.Context, rows, files int, version int64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "append failed",
			"rows", rows,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "append committed",
			"rows", rows,
			"files", files,
			"version", version,
		)
	}
}

// LogAnalyze logs one analyze pass.
func (l *Logger) LogAnalyze(ctx context.Context, announced int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "analyze failed",
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "analyze completed",
			"announced", announced,
		)
	}
}

// LogOptimize logs one optimize pass over an announced cube.
func (l *Logger) LogOptimize(ctx context.Context, cube string, rows int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "optimize failed",
			"cube", cube,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "optimize committed",
			"cube", cube,
			"rows", rows,
		)
	}
}

// LogConvert logs a legacy table conversion.
func (l *Logger) LogConvert(ctx context.Context, files int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "convert failed",
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "convert committed",
			"files", files,
		)
	}
}
