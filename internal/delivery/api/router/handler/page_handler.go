package handler

import (
	"net/http"

	"coursebook/internal/delivery/api/response"
	deliverycontext "coursebook/internal/delivery/context"
	"coursebook/internal/i18n"

	"github.com/labstack/echo/v4"
)

// PageHandler serves the landing routes. Page rendering happens in the client;
// these return the principal and the pending flash.
type PageHandler struct{}

// NewPageHandler creates a new PageHandler instance
func NewPageHandler() *PageHandler {
	return &PageHandler{}
}

// PrincipalResponse describes the session behind the request.
type PrincipalResponse struct {
	Authenticated bool            `json:"authenticated"`
	AccountID     string          `json:"account_id,omitempty"`
	Role          string          `json:"role,omitempty"`
	CSRFToken     string          `json:"csrf_token,omitempty"`
	Flash         *response.Flash `json:"flash,omitempty"`
}

func principal(c echo.Context) *PrincipalResponse {
	resp := &PrincipalResponse{Flash: response.ConsumeFlash(c)}

	session := deliverycontext.GetSession(c)
	if session == nil {
		return resp
	}
	resp.CSRFToken = session.CSRFToken
	if session.IsAuthenticated() {
		resp.Authenticated = true
		resp.AccountID = session.AccountID.String()
		resp.Role = session.Role.String()
	}

	return resp
}

// Home is the public root.
func (h *PageHandler) Home(c echo.Context) error {
	return response.Success(c, http.StatusOK, principal(c), "")
}

// AdminDashboard is the admin landing route.
func (h *PageHandler) AdminDashboard(c echo.Context) error {
	return response.Success(c, http.StatusOK, principal(c), i18n.MsgWelcomeAdmin)
}

// UserDashboard is the user landing route.
func (h *PageHandler) UserDashboard(c echo.Context) error {
	return response.Success(c, http.StatusOK, principal(c), i18n.MsgWelcomeUser)
}

// HealthCheck reports liveness.
func HealthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
