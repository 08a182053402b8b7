package common

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// Context keys for storing values in context
type contextKey string

const (
	ContextKeyRequestID contextKey = "request_id"
	ContextKeyBatchID   contextKey = "batch_id"
)

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// RequestIDFromContext extracts the request ID from context
func RequestIDFromContext(ctx context.Context) string {
	if requestID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return requestID
	}
	return ""
}

// EnsureRequestID returns ctx unchanged if it already has a request ID, otherwise attaches a new one.
func EnsureRequestID(ctx context.Context) (context.Context, string) {
	if id := RequestIDFromContext(ctx); id != "" {
		return ctx, id
	}
	id := uuid.NewString()
	return WithRequestID(ctx, id), id
}

// WithBatchID tags every photo of one batch run.
func WithBatchID(ctx context.Context, batchID string) context.Context {
	return context.WithValue(ctx, ContextKeyBatchID, batchID)
}

func BatchIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(ContextKeyBatchID).(string); ok {
		return id
	}
	return ""
}

// LoggerFrom decorates logger with the request and batch IDs carried by ctx.
func LoggerFrom(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	if id := RequestIDFromContext(ctx); id != "" {
		logger = logger.With("req_id", id)
	}
	if id := BatchIDFromContext(ctx); id != "" {
		logger = logger.With("batch_id", id)
	}
	return logger
}
