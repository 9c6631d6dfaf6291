package middleware

import (
	"crypto/subtle"
	"net/http"

	deliverycontext "coursebook/internal/delivery/context"
	domainerrors "coursebook/internal/domain/errors"

	"github.com/labstack/echo/v4"
)

const (
	// CSRFFormField is the form field carrying the anti-forgery token.
	CSRFFormField = "_token"
	// CSRFHeader is the header alternative for scripted clients.
	CSRFHeader = "X-CSRF-Token"
)

// VerifyCSRF rejects unsafe requests whose token does not match the session's.
// It must run after SessionMiddleware.Handle.
func VerifyCSRF(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		switch c.Request().Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			return next(c)
		}

		session := deliverycontext.GetSession(c)
		if session == nil || session.CSRFToken == "" {
			return domainerrors.ErrCSRFTokenMismatch
		}

		supplied := c.Request().Header.Get(CSRFHeader)
		if supplied == "" {
			supplied = c.FormValue(CSRFFormField)
		}
		if subtle.ConstantTimeCompare([]byte(supplied), []byte(session.CSRFToken)) != 1 {
			return domainerrors.ErrCSRFTokenMismatch
		}

		return next(c)
	}
}
