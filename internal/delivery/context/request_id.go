// Package context carries request-scoped values between middleware, handlers and use cases.
//
// Values needed only by the HTTP layer (session, locale, form flow) live on echo.Context.
// The request id and the request logger are also copied onto context.Context so the
// account, session and mail services can log against them.
package context

import (
	"context"
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/oklog/ulid/v2"
)

// ContextKey namespaces the keys this package stores.
type ContextKey string

const (
	KeyRequestID ContextKey = "request_id"
	KeyLogger    ContextKey = "logger"

	// HeaderXRequestID is read from clients and echoed on every response.
	HeaderXRequestID = "X-Request-Id"
)

func fromEcho[T any](c echo.Context, key ContextKey) (T, bool) {
	v, ok := c.Get(string(key)).(T)

	return v, ok
}

func fromContext[T any](ctx context.Context, key ContextKey) (T, bool) {
	v, ok := ctx.Value(key).(T)

	return v, ok
}

// NewRequestID returns a ULID, so ids sort by the time the request arrived.
func NewRequestID() string {
	return ulid.Make().String()
}

func SetRequestID(c echo.Context, requestID string) {
	c.Set(string(KeyRequestID), requestID)
}

// GetRequestID returns the id assigned by the request id middleware. Handlers
// mounted without it fall back to the request context and then to a fresh id.
func GetRequestID(c echo.Context) string {
	if id, ok := fromEcho[string](c, KeyRequestID); ok && id != "" {
		return id
	}
	if id := GetRequestIDFromContext(c.Request().Context()); id != "" {
		return id
	}

	return NewRequestID()
}

// GetRequestIDFromContext returns "" outside a request.
func GetRequestIDFromContext(ctx context.Context) string {
	id, _ := fromContext[string](ctx, KeyRequestID)

	return id
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, KeyRequestID, requestID)
}

// GetLogger returns the request logger, or nil outside a request.
func GetLogger(ctx context.Context) *slog.Logger {
	logger, _ := fromContext[*slog.Logger](ctx, KeyLogger)

	return logger
}

func GetLoggerOrDefault(ctx context.Context, fallback *slog.Logger) *slog.Logger {
	if logger := GetLogger(ctx); logger != nil {
		return logger
	}

	return fallback
}

func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, KeyLogger, logger)
}
