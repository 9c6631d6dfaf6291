package middleware

import (
	"net/http"

	"coursebook/config"
	deliverycontext "coursebook/internal/delivery/context"
	"coursebook/internal/domain/entity"
	domainerrors "coursebook/internal/domain/errors"

	"github.com/labstack/echo/v4"
)

// RequireRole admits only sessions whose role equals role. There is no hierarchy:
// an admin is not a user. Unauthenticated is checked before the role.
func RequireRole(role entity.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			session := deliverycontext.GetSession(c)
			if !session.IsAuthenticated() {
				return domainerrors.ErrUnauthenticated
			}
			if session.Role != role {
				return domainerrors.ErrForbidden
			}

			return next(c)
		}
	}
}

// RequireGuest sends authenticated sessions to their landing route.
func RequireGuest(routes *config.RoutesConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			session := deliverycontext.GetSession(c)
			if session.IsAuthenticated() {
				return c.Redirect(http.StatusSeeOther, LandingRoute(routes, session.Role))
			}

			return next(c)
		}
	}
}

// LandingRoute is where a role is sent after login.
func LandingRoute(routes *config.RoutesConfig, role entity.Role) string {
	switch role {
	case entity.RoleAdmin:
		return routes.AdminLanding
	case entity.RoleUser:
		return routes.UserLanding
	default:
		return routes.Home
	}
}

// FormFlow marks the route as a browser form whose failures redirect to location with a flash.
func FormFlow(location string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			deliverycontext.SetErrorRedirect(c, location)

			return next(c)
		}
	}
}
