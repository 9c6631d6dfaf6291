// Package response renders the JSON envelope and the browser flash flow.
package response

import (
	"net/http"
	"strings"

	deliverycontext "coursebook/internal/delivery/context"
	domainerrors "coursebook/internal/domain/errors"
	"coursebook/internal/i18n"

	"github.com/labstack/echo/v4"
)

// SuccessResponse defines the structure for successful responses
type SuccessResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data"`
	Message string    `json:"message,omitempty"`
	Meta    *MetaInfo `json:"meta"`
}

// ErrorResponse defines the structure for error responses
type ErrorResponse struct {
	Success bool       `json:"success"`
	Error   *ErrorInfo `json:"error"`
	Meta    *MetaInfo  `json:"meta"`
}

// ErrorInfo contains detailed error information
type ErrorInfo struct {
	Code    string `json:"code"`              // Machine-readable error code, e.g., "VALIDATION_FAILED"
	Message string `json:"message"`           // Localized user-facing message
	Details any    `json:"details,omitempty"` // Field errors (only for 4xx errors)
}

// MetaInfo represents response metadata
type MetaInfo struct {
	RequestID string `json:"request_id"` // Request tracking ID
}

// WantsJSON reports whether the client asked for the JSON envelope instead of redirects.
func WantsJSON(c echo.Context) bool {
	return strings.Contains(c.Request().Header.Get(echo.HeaderAccept), echo.MIMEApplicationJSON)
}

// Localize translates a catalog key into the request locale.
func Localize(c echo.Context, key string, args ...any) string {
	return i18n.T(deliverycontext.GetLocale(c, i18n.DefaultLocale), key, args...)
}

// Success returns a successful response. messageKey may be empty.
func Success(c echo.Context, statusCode int, data any, messageKey string) error {
	resp := SuccessResponse{
		Success: true,
		Data:    data,
		Meta: &MetaInfo{
			RequestID: deliverycontext.GetRequestID(c),
		},
	}
	if messageKey != "" {
		resp.Message = Localize(c, messageKey)
	}

	return c.JSON(statusCode, resp)
}

// Error returns an error response. message must already be localized.
func Error(c echo.Context, statusCode int, errorCode string, message string, details any) error {
	// Details should not be included for 5xx errors or authentication/authorization errors
	if statusCode >= 500 || statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden {
		details = nil
	}

	return c.JSON(statusCode, ErrorResponse{
		Error: &ErrorInfo{
			Code:    errorCode,
			Message: message,
			Details: details,
		},
		Meta: &MetaInfo{
			RequestID: deliverycontext.GetRequestID(c),
		},
	})
}

// AppError renders appErr in the request locale, with localized field errors for validation failures.
func AppError(c echo.Context, appErr domainerrors.AppError) error {
	var details any
	if fields := FieldMessages(c, appErr); len(fields) > 0 {
		details = fields
	}

	return Error(c, appErr.HTTPCode(), appErr.ErrorCode(), Localize(c, appErr.Message()), details)
}

// FieldMessages localizes the field errors of a validation failure, keyed by field.
// The first violation of a field wins.
func FieldMessages(c echo.Context, err error) map[string]string {
	verr, ok := err.(*domainerrors.ValidationError) //nolint:errorlint // callers pass the unwrapped AppError
	if !ok {
		return nil
	}

	messages := make(map[string]string, len(verr.Fields()))
	for _, f := range verr.Fields() {
		if _, seen := messages[f.Field]; seen {
			continue
		}
		messages[f.Field] = Localize(c, f.Message, f.Args...)
	}

	return messages
}

// Complete finishes a form flow: JSON clients receive data, browsers receive a
// success flash and a 303 redirect to location.
func Complete(c echo.Context, statusCode int, data any, location, messageKey string) error {
	if WantsJSON(c) {
		return Success(c, statusCode, data, messageKey)
	}

	if messageKey != "" {
		SetFlash(c, &Flash{Kind: FlashSuccess, Message: Localize(c, messageKey)})
	}

	return c.Redirect(http.StatusSeeOther, location)
}
