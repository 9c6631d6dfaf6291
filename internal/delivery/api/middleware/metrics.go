package middleware

import (
	"net/http"

	domainerrors "coursebook/internal/domain/errors"
	"coursebook/internal/errors"

	"github.com/labstack/echo/v4"
)

// RequestObserver records one HTTP request. RequestStarted returns the completion callback.
type RequestObserver interface {
	RequestStarted(method string) func(route string, status int)
}

// NewMetricsMiddleware records in-flight requests, counts and latency per route template.
func NewMetricsMiddleware(observer RequestObserver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			done := observer.RequestStarted(c.Request().Method)

			err := next(c)

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			done(route, statusOf(c, err))

			return err
		}
	}
}

// statusOf predicts the status the error handler will write, since it runs after this middleware.
func statusOf(c echo.Context, err error) int {
	if err == nil || c.Response().Committed {
		return c.Response().Status
	}

	var appErr domainerrors.AppError
	if errors.As(err, &appErr) {
		return appErr.HTTPCode()
	}
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Code
	}

	return http.StatusInternalServerError
}
