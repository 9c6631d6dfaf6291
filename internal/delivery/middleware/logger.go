package middleware

import (
	"log/slog"
	"strings"
	"time"

	"coursebook/config"
	deliverycontext "coursebook/internal/delivery/context"

	"github.com/labstack/echo/v4"
)

// quietPaths are health check endpoints, logged only in debug mode.
var quietPaths = []string{"/health", "/metrics"}

// LoggerMiddleware writes one access log line per request.
//
// The route template is logged instead of the path: verification links carry
// their signature in the path and OAuth callbacks carry the code in the query.
// Both are only logged in debug mode.
type LoggerMiddleware struct {
	logger *slog.Logger
	debug  bool
}

func NewLoggerMiddleware(logger *slog.Logger, config *config.Config) *LoggerMiddleware {
	return &LoggerMiddleware{
		logger: logger,
		debug:  config.Env.Debug,
	}
}

// Handle hands a failed request to the error handler before logging so the
// line carries the status the client actually received.
func (m *LoggerMiddleware) Handle(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !m.debug && isQuietPath(c.Request().URL.Path) {
			return next(c)
		}

		start := time.Now()
		err := next(c)
		if err != nil {
			c.Error(err)
		}
		m.logRequest(c, time.Since(start), err)

		return nil
	}
}

func isQuietPath(path string) bool {
	for _, p := range quietPaths {
		if strings.HasPrefix(path, p) {
			return true
		}
	}

	return false
}

func (m *LoggerMiddleware) logRequest(c echo.Context, latency time.Duration, err error) {
	req := c.Request()
	status := c.Response().Status

	route := c.Path()
	if route == "" {
		route = "unmatched"
	}

	attrs := []slog.Attr{
		slog.String("request_id", deliverycontext.GetRequestID(c)),
		slog.String("method", req.Method),
		slog.String("route", route),
		slog.Int("status", status),
		slog.Duration("latency", latency),
		slog.String("remote_ip", c.RealIP()),
		slog.String("user_agent", req.UserAgent()),
	}
	if m.debug {
		attrs = append(attrs, slog.String("uri", req.URL.RequestURI()))
	}
	if session := deliverycontext.GetSession(c); session.IsAuthenticated() {
		attrs = append(attrs,
			slog.String("account_id", session.AccountID.String()),
			slog.String("role", session.Role.String()),
		)
	}
	if err != nil {
		attrs = append(attrs, slog.Any("error", err))
	}

	m.logger.LogAttrs(req.Context(), levelForStatus(status), "HTTP request", attrs...)
}

func levelForStatus(status int) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}
