package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"coursebook/config"
	deliverycontext "coursebook/internal/delivery/context"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(buf *bytes.Buffer, debug bool) *echo.Echo {
	logger := slog.New(slog.NewTextHandler(buf, nil))
	cfg := &config.Config{}
	cfg.Env.Debug = debug

	e := echo.New()
	e.Use(NewRequestIDMiddleware(logger).Process)
	e.Use(NewLoggerMiddleware(logger, cfg).Handle)
	e.GET("/email/verify/:id/:hash", func(c echo.Context) error {
		return c.String(http.StatusOK, deliverycontext.GetRequestIDFromContext(c.Request().Context()))
	})
	e.GET("/boom", func(echo.Context) error {
		return echo.NewHTTPError(http.StatusTeapot)
	})
	e.GET("/health", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	return e
}

func serve(e *echo.Echo, target, requestID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if requestID != "" {
		req.Header.Set(deliverycontext.HeaderXRequestID, requestID)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	return rec
}

func TestRequestID(t *testing.T) {
	e := newServer(&bytes.Buffer{}, false)

	rec := serve(e, "/email/verify/1/abc", "client-id_1")
	assert.Equal(t, "client-id_1", rec.Header().Get(deliverycontext.HeaderXRequestID))
	assert.Equal(t, "client-id_1", rec.Body.String())

	for _, bad := range []string{"", "has space", "<script>", strings.Repeat("a", 65)} {
		rec = serve(e, "/email/verify/1/abc", bad)
		got := rec.Header().Get(deliverycontext.HeaderXRequestID)
		assert.NotEqual(t, bad, got)
		assert.Len(t, got, 26)
	}
}

func TestLogger_LogsRouteNotPath(t *testing.T) {
	var buf bytes.Buffer
	serve(newServer(&buf, false), "/email/verify/1/secret-signature?expires=1", "")

	assert.Contains(t, buf.String(), "route=/email/verify/:id/:hash")
	assert.NotContains(t, buf.String(), "secret-signature")
	assert.NotContains(t, buf.String(), "expires=1")
}

func TestLogger_DebugLogsURI(t *testing.T) {
	var buf bytes.Buffer
	serve(newServer(&buf, true), "/email/verify/1/sig?expires=1", "")

	assert.Contains(t, buf.String(), "uri=\"/email/verify/1/sig?expires=1\"")
}

func TestLogger_LogsWrittenStatus(t *testing.T) {
	var buf bytes.Buffer
	rec := serve(newServer(&buf, false), "/boom", "")

	require.Equal(t, http.StatusTeapot, rec.Code)
	assert.Contains(t, buf.String(), "status=418")
	assert.Contains(t, buf.String(), "level=WARN")
}

func TestLogger_QuietPaths(t *testing.T) {
	var buf bytes.Buffer
	serve(newServer(&buf, false), "/health", "")
	assert.Empty(t, buf.String())

	serve(newServer(&buf, true), "/health", "")
	assert.Contains(t, buf.String(), "route=/health")
}
