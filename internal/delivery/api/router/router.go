// Package router contains routing and server setup for the HTTP delivery.
package router

import (
	"net/http"

	"coursebook/config"
	"coursebook/internal/delivery/api/middleware"
	"coursebook/internal/delivery/api/router/handler"
	"coursebook/internal/domain/entity"
	"coursebook/internal/infra/metrics"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

type RouterParams struct {
	fx.In

	AuthHandler       *handler.AuthHandler
	PageHandler       *handler.PageHandler
	SessionMiddleware *middleware.SessionMiddleware
	Metrics           *metrics.Metrics `optional:"true"`
	Config            *config.Config
}

// router holds all the handlers that need to be registered.
type router struct {
	authHandler       *handler.AuthHandler
	pageHandler       *handler.PageHandler
	sessionMiddleware *middleware.SessionMiddleware
	metricsHandler    http.Handler
	attemptLimiter    echo.MiddlewareFunc
	config            *config.Config
}

// NewRouter is the constructor for the Router.
// Fx will inject the required handlers here.
func NewRouter(params RouterParams) *router {
	return &router{
		authHandler:       params.AuthHandler,
		pageHandler:       params.PageHandler,
		sessionMiddleware: params.SessionMiddleware,
		metricsHandler:    metricsHandler(params.Metrics),
		attemptLimiter:    middleware.NewAttemptLimiter(params.Config),
		config:            params.Config,
	}
}

// RegisterRoutes sets up all the routes for the application.
func (r *router) RegisterRoutes(e *echo.Echo) {
	routes := r.config.Routes

	// Operational endpoints carry no session.
	e.GET("/health", handler.HealthCheck)
	if r.metricsHandler != nil {
		e.GET("/metrics", echo.WrapHandler(r.metricsHandler))
	}

	session := r.sessionMiddleware.Handle
	guestForm := []echo.MiddlewareFunc{session, middleware.RequireGuest(routes), middleware.FormFlow(routes.Guest), middleware.VerifyCSRF}
	limitedGuestForm := append(append([]echo.MiddlewareFunc{}, guestForm...), r.attemptLimiter)

	e.GET("/", r.pageHandler.Home, session)

	// Verification links work whether or not the visitor is signed in.
	e.GET("/email/verify/:id/:hash", r.authHandler.Verify, session, middleware.FormFlow(routes.Guest))

	e.GET("/auth", r.authHandler.ShowAuth, guestForm...)
	e.POST("/register", r.authHandler.Register, limitedGuestForm...)
	e.POST("/login", r.authHandler.Login, limitedGuestForm...)
	e.POST("/email/resend", r.authHandler.ResendVerification, limitedGuestForm...)
	e.GET("/auth/google", r.authHandler.RedirectToGoogle, guestForm...)
	e.GET("/auth/google/callback", r.authHandler.GoogleCallback, guestForm...)

	e.POST("/logout", r.authHandler.Logout, session, middleware.FormFlow(routes.Home), middleware.VerifyCSRF)

	e.GET("/admin", r.pageHandler.AdminDashboard, session, middleware.RequireRole(entity.RoleAdmin))
	e.GET("/user", r.pageHandler.UserDashboard, session, middleware.RequireRole(entity.RoleUser))
}

func metricsHandler(m *metrics.Metrics) http.Handler {
	if m == nil {
		return nil
	}

	return m.Handler()
}
