package middleware

import (
	"net/http"
	"time"

	"coursebook/config"
	deliverycontext "coursebook/internal/delivery/context"
	"coursebook/internal/i18n"

	"github.com/labstack/echo/v4"
)

// LocaleCookie persists an explicit language choice.
const LocaleCookie = "lang"

const localeCookieMaxAge = 365 * 24 * time.Hour

// NewLocaleMiddleware negotiates the request locale: a ?lang= query (remembered
// in the lang cookie), then the cookie, then Accept-Language, then the configured default.
func NewLocaleMiddleware(cfg *config.Config) echo.MiddlewareFunc {
	fallback := i18n.Parse(cfg.I18n.DefaultLocale, i18n.DefaultLocale)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			preference := c.QueryParam(LocaleCookie)
			if preference != "" {
				tag := i18n.Parse(preference, fallback)
				c.SetCookie(&http.Cookie{
					Name:     LocaleCookie,
					Value:    tag.String(),
					Path:     "/",
					MaxAge:   int(localeCookieMaxAge.Seconds()),
					HttpOnly: true,
					SameSite: http.SameSiteLaxMode,
				})
			} else if cookie, err := c.Cookie(LocaleCookie); err == nil {
				preference = cookie.Value
			}

			tag := i18n.Match(preference, c.Request().Header.Get("Accept-Language"), fallback)
			deliverycontext.SetLocale(c, tag)

			return next(c)
		}
	}
}
