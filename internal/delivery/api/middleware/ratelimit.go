package middleware

import (
	"time"

	"coursebook/config"
	domainerrors "coursebook/internal/domain/errors"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

const (
	defaultAttemptsPerMinute = 10
	defaultAttemptBurst      = 5
	limiterIdleExpiry        = 10 * time.Minute
)

// NewAttemptLimiter limits credential and registration attempts per client IP.
func NewAttemptLimiter(cfg *config.Config) echo.MiddlewareFunc {
	perMinute := cfg.Auth.LoginRatePerMinute
	if perMinute <= 0 {
		perMinute = defaultAttemptsPerMinute
	}
	burst := cfg.Auth.LoginBurst
	if burst <= 0 {
		burst = defaultAttemptBurst
	}

	store := echomiddleware.NewRateLimiterMemoryStoreWithConfig(echomiddleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Every(time.Minute / time.Duration(perMinute)),
		Burst:     burst,
		ExpiresIn: limiterIdleExpiry,
	})

	return echomiddleware.RateLimiterWithConfig(echomiddleware.RateLimiterConfig{
		Store: store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(_ echo.Context, _ error) error {
			return domainerrors.ErrForbidden
		},
		DenyHandler: func(_ echo.Context, _ string, _ error) error {
			return domainerrors.ErrTooManyRequests
		},
	})
}
