package gridstore

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with gridstore-specific context.
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
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.DiscardHandler),
	}
}

// WithShard adds shard coordinate fields to the logger.
func (l *Logger) WithShard(x, z int32) *Logger {
	return &Logger{
		Logger: l.Logger.With("x", x, "z", z),
	}
}

// WithCount adds a count field to the logger.
func (l *Logger) WithCount(count int) *Logger {
	return &Logger{
		Logger: l.Logger.With("count", count),
	}
}

// LogLoad logs a shard load. created is true when no persisted shard
// existed or reading it failed.
func (l *Logger) LogLoad(ctx context.Context, x, z int32, created bool, err error) {
	switch {
	case err != nil:
		l.WarnContext(ctx, "failed to read shard, creating a new one",
			"x", x,
			"z", z,
			"error", err,
		)
	case created:
		l.DebugContext(ctx, "created shard",
			"x", x,
			"z", z,
		)
	default:
		l.DebugContext(ctx, "loaded shard",
			"x", x,
			"z", z,
		)
	}
}

// LogUnload logs an unloaded shard or a failure to persist it.
func (l *Logger) LogUnload(ctx context.Context, x, z int32, err error) {
	if err != nil {
		l.ErrorContext(ctx, "failed to write shard",
			"x", x,
			"z", z,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "unloaded shard",
			"x", x,
			"z", z,
		)
	}
}

// LogTrim logs a trim pass.
func (l *Logger) LogTrim(ctx context.Context, marked int, idle time.Duration) {
	l.DebugContext(ctx, "trimmed shards",
		"marked", marked,
		"idle", idle,
	)
}

// LogFlush logs a flush of loaded shards.
func (l *Logger) LogFlush(ctx context.Context, count, failed int) {
	if failed > 0 {
		l.WarnContext(ctx, "flush completed with failures",
			"total", count,
			"failed", failed,
		)
	} else {
		l.InfoContext(ctx, "flush completed",
			"count", count,
		)
	}
}
