package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"coursebook/config"
	deliverycontext "coursebook/internal/delivery/context"
	"coursebook/internal/domain/constants"
	"coursebook/internal/errors"
	"coursebook/internal/infra/pubsub"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"
	"google.golang.org/api/idtoken"
)

// PushHandler receives verification events from a Pub/Sub push subscription.
type PushHandler struct {
	verifyPushAuth bool
	verifyToken    func(req *http.Request) error
	processor      *EventProcessor
	logger         *slog.Logger
}

type PushHandlerParams struct {
	fx.In

	Config    *config.Config
	Logger    *slog.Logger
	Processor *EventProcessor
}

// NewPushHandler requires push tokens only for the google provider outside develop and local.
func NewPushHandler(params PushHandlerParams) *PushHandler {
	verifyPushAuth := params.Config.PubSub != nil &&
		params.Config.PubSub.Provider == constants.PubSubProviderGoogle &&
		params.Config.Env.Env != constants.EnvDevelop &&
		params.Config.Env.Env != constants.EnvLocal

	audience := ""
	if params.Config.Worker != nil {
		audience = params.Config.Worker.PushAudience
	}

	return &PushHandler{
		verifyPushAuth: verifyPushAuth,
		verifyToken: func(req *http.Request) error {
			return verifyPubSubToken(req, audience)
		},
		processor: params.Processor,
		logger:    params.Logger,
	}
}

// HandlePush acknowledges everything except transient failures: Pub/Sub
// redelivers on any non-2xx reply, so only those answer 503.
func (h *PushHandler) HandlePush(c echo.Context) error {
	ctx := c.Request().Context()
	logger := deliverycontext.GetLoggerOrDefault(ctx, h.logger)

	if h.verifyPushAuth {
		if err := h.verifyToken(c.Request()); err != nil {
			logger.WarnContext(ctx, "Push request rejected", slog.Any("error", err))

			return c.NoContent(http.StatusUnauthorized)
		}
	}

	var msg pubsub.PushMessage
	if err := c.Bind(&msg); err != nil {
		logger.ErrorContext(ctx, "Dropping unreadable push body", slog.Any("error", err))

		return c.NoContent(http.StatusOK)
	}

	data, err := msg.Payload()
	if err != nil {
		logger.ErrorContext(ctx, "Dropping push message", slog.Any("error", err))

		return c.NoContent(http.StatusOK)
	}

	attributes := msg.AttributesOrEmpty()
	if _, ok := attributes[constants.AttrRequestID]; !ok {
		if requestID := deliverycontext.GetRequestIDFromContext(ctx); requestID != "" {
			attributes[constants.AttrRequestID] = requestID
		}
	}

	if err := h.processor.Process(ctx, data, attributes); err != nil && IsRetryable(err) {
		return c.NoContent(http.StatusServiceUnavailable)
	}

	return c.NoContent(http.StatusOK)
}

// googleIssuers are the issuers Google signs push tokens with.
var googleIssuers = map[string]bool{
	"accounts.google.com":         true,
	"https://accounts.google.com": true,
}

// verifyPubSubToken checks the OIDC token Google attaches to authenticated push
// requests. An empty audience means the URL of this endpoint.
func verifyPubSubToken(req *http.Request, audience string) error {
	token, ok := strings.CutPrefix(req.Header.Get("Authorization"), "Bearer ")
	if !ok || token == "" {
		return errors.New("missing bearer token")
	}

	if audience == "" {
		scheme := "https"
		if req.TLS == nil {
			scheme = "http"
		}
		audience = fmt.Sprintf("%s://%s%s", scheme, req.Host, req.URL.Path)
	}

	payload, err := idtoken.Validate(req.Context(), token, audience)
	if err != nil {
		return errors.Wrap(err, "validate push token")
	}
	if !googleIssuers[payload.Issuer] {
		return errors.Errorf("unexpected issuer %q", payload.Issuer)
	}
	if verified, ok := payload.Claims["email_verified"].(bool); ok && !verified {
		return errors.New("push service account email not verified")
	}

	return nil
}
