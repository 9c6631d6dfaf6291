package handler

import (
	"log/slog"
	"net/http"
	"time"

	"coursebook/config"
	"coursebook/internal/delivery/api/middleware"
	"coursebook/internal/delivery/api/response"
	deliverycontext "coursebook/internal/delivery/context"
	"coursebook/internal/domain/entity"
	domainerrors "coursebook/internal/domain/errors"
	"coursebook/internal/errors"
	"coursebook/internal/i18n"
	"coursebook/internal/usecase"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
)

// OAuthStateCookie binds a consent redirect to the browser that started it.
const OAuthStateCookie = "oauth_state"

// AuthHandlerParams holds dependencies for AuthHandler, injected by Fx.
type AuthHandlerParams struct {
	fx.In

	AuthUC   usecase.AuthUsecase
	Sessions *middleware.SessionMiddleware
	Config   *config.Config
	Logger   *slog.Logger
}

// AuthHandler holds dependencies for the registration, login, verification and logout flows.
type AuthHandler struct {
	authUC      usecase.AuthUsecase
	sessions    *middleware.SessionMiddleware
	routes      *config.RoutesConfig
	stateTTL    time.Duration
	secureState bool
	logger      *slog.Logger
}

// NewAuthHandler is the constructor for AuthHandler
func NewAuthHandler(params AuthHandlerParams) *AuthHandler {
	return &AuthHandler{
		authUC:      params.AuthUC,
		sessions:    params.Sessions,
		routes:      params.Config.Routes,
		stateTTL:    params.Config.GoogleOAuth.StateTTL,
		secureState: params.Config.Session.Secure,
		logger:      params.Logger,
	}
}

// RegisterRequest is the registration form.
type RegisterRequest struct {
	Name     string `form:"name" json:"name" validate:"max=255"`
	Email    string `form:"email" json:"email" validate:"max=255"`
	Password string `form:"password" json:"password" validate:"maxbytes=72"`
}

// LoginRequest is the login form.
type LoginRequest struct {
	Email    string `form:"email" json:"email" validate:"max=255"`
	Password string `form:"password" json:"password" validate:"maxbytes=72"`
}

// ResendRequest asks for a new verification mail.
type ResendRequest struct {
	Email string `form:"email" json:"email" validate:"max=255"`
}

// AccountResponse is the public view of an account.
type AccountResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	Verified bool   `json:"verified"`
}

func toAccountResponse(account *entity.Account) *AccountResponse {
	return &AccountResponse{
		ID:       account.ID.String(),
		Name:     account.Name,
		Email:    account.Email,
		Role:     account.Role.String(),
		Verified: account.IsVerified(),
	}
}

// ShowAuth returns what the login and register forms need.
func (h *AuthHandler) ShowAuth(c echo.Context) error {
	data := map[string]any{
		"csrf_token": deliverycontext.GetSession(c).CSRFToken,
		"flash":      response.ConsumeFlash(c),
	}

	return response.Success(c, http.StatusOK, data, "")
}

// Register handles local registration.
func (h *AuthHandler) Register(c echo.Context) error {
	var req RegisterRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	output, err := h.authUC.Register(c.Request().Context(), &usecase.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Locale:   locale(c),
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return response.Complete(c, http.StatusCreated, toAccountResponse(output.Account), h.routes.Guest, i18n.MsgRegistered)
}

// Login handles password login and redirects to the role's landing route.
func (h *AuthHandler) Login(c echo.Context) error {
	var req LoginRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	output, err := h.authUC.Login(c.Request().Context(), &usecase.LoginInput{
		Email:        req.Email,
		Password:     req.Password,
		SessionToken: deliverycontext.GetSessionToken(c),
	})
	if err != nil {
		if errors.Is(err, domainerrors.ErrUnverifiedAccount) {
			// The use case already terminated the session.
			h.sessions.Bind(c, nil)
		}

		return errors.WithStack(err)
	}

	h.sessions.Bind(c, output.Session)

	welcome := i18n.MsgWelcomeUser
	if output.Account.Role == entity.RoleAdmin {
		welcome = i18n.MsgWelcomeAdmin
	}

	return response.Complete(c, http.StatusOK, toAccountResponse(output.Account), middleware.LandingRoute(h.routes, output.Account.Role), welcome)
}

// ResendVerification requests a new verification mail. The reply is the same whether or not the email is known.
func (h *AuthHandler) ResendVerification(c echo.Context) error {
	var req ResendRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	if err := h.authUC.ResendVerification(c.Request().Context(), &usecase.ResendVerificationInput{
		Email:  req.Email,
		Locale: locale(c),
	}); err != nil {
		return errors.WithStack(err)
	}

	return response.Complete(c, http.StatusAccepted, nil, h.routes.Guest, i18n.MsgVerificationResent)
}

// Verify consumes a verification link.
func (h *AuthHandler) Verify(c echo.Context) error {
	output, err := h.authUC.Verify(c.Request().Context(), &usecase.VerifyInput{
		AccountID: c.Param("id"),
		Digest:    c.Param("hash"),
	})
	if err != nil {
		return errors.WithStack(err)
	}

	message := i18n.MsgVerifiedNow
	if output.Outcome == entity.AlreadyVerified {
		message = i18n.MsgAlreadyVerified
	}
	data := map[string]any{
		"outcome": string(output.Outcome),
		"account": toAccountResponse(output.Account),
	}

	return response.Complete(c, http.StatusOK, data, h.routes.Guest, message)
}

// RedirectToGoogle starts Google sign-in, binding the state to this browser.
func (h *AuthHandler) RedirectToGoogle(c echo.Context) error {
	output, err := h.authUC.BeginOAuth(c.Request().Context())
	if err != nil {
		return errors.WithStack(err)
	}

	c.SetCookie(&http.Cookie{
		Name:     OAuthStateCookie,
		Value:    output.SignedState,
		Path:     "/",
		MaxAge:   int(h.stateTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.secureState,
		SameSite: http.SameSiteLaxMode,
	})

	return c.Redirect(http.StatusFound, output.RedirectURL)
}

// GoogleCallback completes Google sign-in. The callback always lands on the user route.
func (h *AuthHandler) GoogleCallback(c echo.Context) error {
	var signedState string
	if cookie, err := c.Cookie(OAuthStateCookie); err == nil {
		signedState = cookie.Value
	}
	c.SetCookie(&http.Cookie{
		Name:     OAuthStateCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureState,
		SameSite: http.SameSiteLaxMode,
	})

	output, err := h.authUC.OAuthLogin(c.Request().Context(), &usecase.OAuthLoginInput{
		Code:         c.QueryParam("code"),
		State:        c.QueryParam("state"),
		SignedState:  signedState,
		SessionToken: deliverycontext.GetSessionToken(c),
	})
	if err != nil {
		return errors.WithStack(err)
	}

	h.sessions.Bind(c, output.Session)

	return response.Complete(c, http.StatusOK, toAccountResponse(output.Account), h.routes.UserLanding, i18n.MsgWelcomeUser)
}

// Logout ends the session and always succeeds.
func (h *AuthHandler) Logout(c echo.Context) error {
	output, err := h.authUC.Logout(c.Request().Context(), &usecase.LogoutInput{
		SessionToken: deliverycontext.GetSessionToken(c),
	})
	if err != nil {
		return errors.WithStack(err)
	}

	h.sessions.Bind(c, output.Session)

	return response.Complete(c, http.StatusOK, nil, h.routes.Home, i18n.MsgLoggedOut)
}

func bindAndValidate(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return domainerrors.NewValidationError(domainerrors.FieldError{
			Field:   "input",
			Message: i18n.MsgFieldInvalid,
			Args:    []any{"input"},
		})
	}

	return errors.WithStack(c.Validate(req))
}

func locale(c echo.Context) string {
	return deliverycontext.GetLocale(c, i18n.DefaultLocale).String()
}
