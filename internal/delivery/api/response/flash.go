package response

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// FlashCookie is the cookie carrying the one-shot message to the next page.
const FlashCookie = "flash"

// Flash kinds.
const (
	FlashSuccess = "success"
	FlashError   = "error"
)

// Flash is a message shown once on the next read, with field errors and the
// previous input of a failed form. Old never holds secrets.
type Flash struct {
	Kind    string            `json:"kind"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
	Old     map[string]string `json:"old,omitempty"`
}

// SetFlash stores flash for the next request.
func SetFlash(c echo.Context, flash *Flash) {
	raw, err := json.Marshal(flash)
	if err != nil {
		return
	}

	c.SetCookie(&http.Cookie{
		Name:     FlashCookie,
		Value:    base64.RawURLEncoding.EncodeToString(raw),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// ConsumeFlash returns the pending flash, or nil, and clears it.
// Undecodable cookies are cleared and ignored.
func ConsumeFlash(c echo.Context) *Flash {
	cookie, err := c.Cookie(FlashCookie)
	if err != nil || cookie.Value == "" {
		return nil
	}

	c.SetCookie(&http.Cookie{
		Name:     FlashCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	raw, err := base64.RawURLEncoding.DecodeString(cookie.Value)
	if err != nil {
		return nil
	}

	var flash Flash
	if err := json.Unmarshal(raw, &flash); err != nil {
		return nil
	}

	return &flash
}
