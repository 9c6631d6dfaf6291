package middleware

import (
	"log/slog"
	"net/http"

	"coursebook/config"
	"coursebook/internal/delivery/api/response"
	deliverycontext "coursebook/internal/delivery/context"
	domainerrors "coursebook/internal/domain/errors"
	"coursebook/internal/errors"

	"github.com/labstack/echo/v4"
)

// oldInputFields are echoed back to a failed form. Passwords and tokens never are.
var oldInputFields = []string{"name", "email"}

// ErrorMiddleware handles errors in the HTTP pipeline
type ErrorMiddleware struct {
	logger     *slog.Logger
	guestRoute string
}

// NewErrorMiddleware creates a new error handling middleware
func NewErrorMiddleware(logger *slog.Logger, cfg *config.Config) *ErrorMiddleware {
	return &ErrorMiddleware{
		logger:     logger,
		guestRoute: cfg.Routes.Guest,
	}
}

// HandleHTTPError handles errors as Echo's HTTPErrorHandler.
// JSON clients get the envelope; browser form flows get a flash and a redirect back.
func (m *ErrorMiddleware) HandleHTTPError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	appErr := m.toAppError(err, c)

	if location := m.redirectTarget(c, appErr); location != "" {
		response.SetFlash(c, &response.Flash{
			Kind:    response.FlashError,
			Message: response.Localize(c, appErr.Message()),
			Fields:  response.FieldMessages(c, appErr),
			Old:     oldInput(c),
		})
		_ = c.Redirect(http.StatusSeeOther, location)

		return
	}

	_ = response.AppError(c, appErr)
}

// toAppError resolves the domain error behind err. Unknown errors are logged and become a generic 500.
func (m *ErrorMiddleware) toAppError(err error, c echo.Context) domainerrors.AppError {
	// Attempt to parse as AppError
	var appErr domainerrors.AppError
	if errors.As(err, &appErr) {
		if appErr.HTTPCode() >= http.StatusInternalServerError {
			m.log(c).Error("Request failed",
				slog.String("code", appErr.ErrorCode()),
				slog.Any("error", err),
				slog.String("path", c.Request().URL.Path),
				slog.String("method", c.Request().Method),
			)
		}

		return appErr
	}

	// Check if it is an Echo HTTPError
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		return httpAppError(httpErr)
	}

	// Default to internal error, log the error but return a generic message (do not expose internal details)
	m.log(c).Error("Unhandled error",
		slog.Any("error", err),
		slog.String("path", c.Request().URL.Path),
		slog.String("method", c.Request().Method),
	)

	return domainerrors.ErrInternalError
}

// redirectTarget decides where a browser goes. Forbidden never redirects, so no page content is revealed.
func (m *ErrorMiddleware) redirectTarget(c echo.Context, appErr domainerrors.AppError) string {
	if response.WantsJSON(c) {
		return ""
	}

	switch {
	case appErr.ErrorCode() == domainerrors.ErrForbidden.ErrorCode():
		return ""
	case appErr.ErrorCode() == domainerrors.ErrUnauthenticated.ErrorCode():
		return m.guestRoute
	default:
		return deliverycontext.GetErrorRedirect(c)
	}
}

func (m *ErrorMiddleware) log(c echo.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(c.Request().Context(), m.logger)
}

// httpAppError maps router-level failures (unknown route, wrong method, oversized body) onto the domain taxonomy.
func httpAppError(httpErr *echo.HTTPError) domainerrors.AppError {
	switch httpErr.Code {
	case http.StatusNotFound:
		return domainerrors.ErrNotFound
	case http.StatusTooManyRequests:
		return domainerrors.ErrTooManyRequests
	case http.StatusForbidden:
		return domainerrors.ErrForbidden
	case http.StatusUnauthorized:
		return domainerrors.ErrUnauthenticated
	}

	message := http.StatusText(httpErr.Code)
	if msg, ok := httpErr.Message.(string); ok {
		message = msg
	}
	if httpErr.Code >= http.StatusInternalServerError {
		return domainerrors.ErrInternalError
	}

	return domainerrors.NewBaseError(httpErr.Code, "HTTP_ERROR", message, "")
}

func oldInput(c echo.Context) map[string]string {
	old := make(map[string]string, len(oldInputFields))
	for _, field := range oldInputFields {
		if value := c.FormValue(field); value != "" {
			old[field] = value
		}
	}
	if len(old) == 0 {
		return nil
	}

	return old
}
