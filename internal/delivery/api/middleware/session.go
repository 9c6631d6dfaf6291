package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"coursebook/config"
	deliverycontext "coursebook/internal/delivery/context"
	"coursebook/internal/domain/entity"
	"coursebook/internal/domain/repository"
	"coursebook/internal/errors"
	"coursebook/internal/usecase"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

// SessionMiddlewareParams holds dependencies for SessionMiddleware, injected by Fx.
type SessionMiddlewareParams struct {
	fx.In

	Sessions usecase.SessionUsecase
	Config   *config.Config
	Logger   *slog.Logger
}

// SessionMiddleware resolves the session cookie on every request. Callers
// without a live session get a guest session, so login always has one to rotate.
type SessionMiddleware struct {
	sessions usecase.SessionUsecase
	cookie   config.SessionConfig
	logger   *slog.Logger
}

// NewSessionMiddleware creates the session middleware.
func NewSessionMiddleware(params SessionMiddlewareParams) *SessionMiddleware {
	return &SessionMiddleware{
		sessions: params.Sessions,
		cookie:   *params.Config.Session,
		logger:   params.Logger,
	}
}

// Handle resolves or starts the session and stores it in the echo context.
func (m *SessionMiddleware) Handle(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		if cookie, err := c.Cookie(m.cookie.CookieName); err == nil && cookie.Value != "" {
			session, err := m.sessions.Resolve(ctx, cookie.Value)
			switch {
			case err == nil:
				deliverycontext.SetSession(c, session, cookie.Value)

				return next(c)
			case !errors.Is(err, repository.ErrSessionNotFound):
				return errors.Wrap(err, "failed to resolve session")
			}
		}

		issued, err := m.sessions.Start(ctx)
		if err != nil {
			return errors.Wrap(err, "failed to start session")
		}
		m.Bind(c, issued)

		return next(c)
	}
}

// Bind makes issued the session of this request and of the client's following requests.
func (m *SessionMiddleware) Bind(c echo.Context, issued *entity.IssuedSession) {
	if issued == nil {
		m.clear(c)

		return
	}

	deliverycontext.SetSession(c, issued.Session, issued.Token)
	c.SetCookie(&http.Cookie{
		Name:     m.cookie.CookieName,
		Value:    issued.Token,
		Path:     "/",
		Expires:  issued.Session.ExpiresAt,
		HttpOnly: true,
		Secure:   m.cookie.Secure,
		SameSite: sameSite(m.cookie.SameSite),
	})
}

func (m *SessionMiddleware) clear(c echo.Context) {
	deliverycontext.SetSession(c, nil, "")
	c.SetCookie(&http.Cookie{
		Name:     m.cookie.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   m.cookie.Secure,
		SameSite: sameSite(m.cookie.SameSite),
	})
}

func sameSite(mode string) http.SameSite {
	switch strings.ToLower(mode) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}
