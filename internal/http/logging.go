package http

import (
	"context"
	"log/slog"

	"github.com/example/music-school-scheduler/internal/logging"
)

// ContextWithLogger returns a derived context carrying the request scoped logger.
func ContextWithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return logging.ContextWithLogger(ctx, logger)
}

// LoggerFromContext extracts the request scoped logger if one was attached.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx)
}

func activityLogger(ctx context.Context, fallback *slog.Logger, operation string, attrs ...any) *slog.Logger {
	return handlerLogger(ctx, fallback, "ActivityHandler", operation, attrs...)
}

func directoryLogger(ctx context.Context, fallback *slog.Logger, operation string, attrs ...any) *slog.Logger {
	return handlerLogger(ctx, fallback, "DirectoryHandler", operation, attrs...)
}

// handlerLogger tags the request logger, or fallback when the request has
// none, with the handler and operation.
func handlerLogger(ctx context.Context, fallback *slog.Logger, handler, operation string, attrs ...any) *slog.Logger {
	logger := LoggerFromContext(ctx)
	if logger == nil {
		logger = fallback
	}
	if logger == nil {
		logger = slog.Default()
	}
	pairs := make([]any, 0, 4+len(attrs))
	pairs = append(pairs, "handler", handler, "operation", operation)
	return logger.With(append(pairs, attrs...)...)
}
