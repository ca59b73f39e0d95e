package util

import (
	"context"
	"log/slog"
	"strings"
)

type requestIDContextKey string

const (
	requestIDCtxKey = requestIDContextKey("request_id")
	loggerCtxKey    = requestIDContextKey("logger")
)

// WithRequestID tags ctx with a request id, generating one when id is blank.
// A child of base carrying "request_id" is stored alongside so downstream
// code can call LoggerFromContext to log with the id attached.
func WithRequestID(ctx context.Context, base *slog.Logger, id string) context.Context {
	id = strings.TrimSpace(id)
	if id == "" {
		id = NewID()
	}
	if base == nil {
		base = slog.Default()
	}
	ctx = context.WithValue(ctx, requestIDCtxKey, id)
	return ContextWithLogger(ctx, base.With("request_id", id))
}

// RequestIDFromContext returns request id from context.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDCtxKey).(string)
	return id
}

// ContextWithLogger stores logger in ctx.
func ContextWithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerCtxKey, logger)
}

// LoggerFromContext returns the logger stored in ctx, or fallback when none is set.
func LoggerFromContext(ctx context.Context, fallback *slog.Logger) *slog.Logger {
	if ctx != nil {
		if logger, ok := ctx.Value(loggerCtxKey).(*slog.Logger); ok && logger != nil {
			return logger
		}
	}
	if fallback != nil {
		return fallback
	}
	return slog.Default()
}
