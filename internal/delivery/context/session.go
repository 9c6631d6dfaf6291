package context

import (
	"coursebook/internal/domain/entity"

	"github.com/labstack/echo/v4"
	"golang.org/x/text/language"
)

const (
	// KeySession stores the resolved *entity.Session.
	KeySession ContextKey = "session"
	// KeySessionToken stores the raw token of the resolved session.
	KeySessionToken ContextKey = "session_token"
	// KeyLocale stores the negotiated language.Tag.
	KeyLocale ContextKey = "locale"
)

// SetSession stores the session resolved for this request and its raw token.
func SetSession(c echo.Context, session *entity.Session, token string) {
	c.Set(string(KeySession), session)
	c.Set(string(KeySessionToken), token)
}

// GetSession returns the session resolved for this request, or nil.
func GetSession(c echo.Context) *entity.Session {
	session, _ := fromEcho[*entity.Session](c, KeySession)

	return session
}

// GetSessionToken returns the raw token of the resolved session, or "".
func GetSessionToken(c echo.Context) string {
	token, _ := fromEcho[string](c, KeySessionToken)

	return token
}

// SetLocale stores the negotiated locale.
func SetLocale(c echo.Context, tag language.Tag) {
	c.Set(string(KeyLocale), tag)
}

// GetLocale returns the negotiated locale, or fallback when none was negotiated.
func GetLocale(c echo.Context, fallback language.Tag) language.Tag {
	if tag, ok := fromEcho[language.Tag](c, KeyLocale); ok {
		return tag
	}

	return fallback
}
