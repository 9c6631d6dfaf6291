// Package google implements the authorization-code sign-in flow against Google.
package google

import (
	"context"
	"log/slog"

	"coursebook/config"
	"coursebook/internal/domain/service"
	"coursebook/internal/errors"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
	"google.golang.org/api/idtoken"
)

const providerName = "google"

var scopes = []string{"openid", "email", "profile"}

// ErrMissingIDToken is returned when the token response carries no id_token.
var ErrMissingIDToken = errors.New("token response has no id_token")

// validateFunc matches idtoken.Validate.
type validateFunc func(ctx context.Context, idToken, audience string) (*idtoken.Payload, error)

// OAuthService exchanges authorization codes and validates the returned ID token.
type OAuthService struct {
	oauth    *oauth2.Config
	validate validateFunc
	logger   *slog.Logger
}

// NewOAuthService builds the Google provider from googleOAuth config.
func NewOAuthService(cfg *config.Config, logger *slog.Logger) service.OAuthProvider {
	return newOAuthService(&oauth2.Config{
		ClientID:     cfg.GoogleOAuth.ClientID,
		ClientSecret: cfg.GoogleOAuth.ClientSecret,
		RedirectURL:  cfg.GoogleOAuth.RedirectURL,
		Endpoint:     googleoauth.Endpoint,
		Scopes:       scopes,
	}, idtoken.Validate, logger)
}

func newOAuthService(oauthCfg *oauth2.Config, validate validateFunc, logger *slog.Logger) *OAuthService {
	return &OAuthService{
		oauth:    oauthCfg,
		validate: validate,
		logger:   logger,
	}
}

// Name implements service.OAuthProvider.
func (s *OAuthService) Name() string {
	return providerName
}

// AuthCodeURL implements service.OAuthProvider.
func (s *OAuthService) AuthCodeURL(state string) string {
	return s.oauth.AuthCodeURL(state, oauth2.AccessTypeOnline, oauth2.SetAuthURLParam("prompt", "select_account"))
}

// Exchange implements service.OAuthProvider. The ID token audience must be our client ID.
func (s *OAuthService) Exchange(ctx context.Context, code string) (*service.OAuthUser, error) {
	token, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, errors.Wrap(err, "exchange authorization code")
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, ErrMissingIDToken
	}

	payload, err := s.validate(ctx, rawIDToken, s.oauth.ClientID)
	if err != nil {
		return nil, errors.Wrap(err, "validate id token")
	}

	user := userFromPayload(payload)
	s.logger.Debug("Google identity resolved", slog.String("subject", user.Subject), slog.Bool("email_verified", user.EmailVerified))

	return user, nil
}

func userFromPayload(payload *idtoken.Payload) *service.OAuthUser {
	user := &service.OAuthUser{Subject: payload.Subject}

	if v, ok := payload.Claims["email"].(string); ok {
		user.Email = v
	}
	if v, ok := payload.Claims["name"].(string); ok {
		user.Name = v
	}
	if v, ok := payload.Claims["picture"].(string); ok {
		user.AvatarURL = v
	}
	if v, ok := payload.Claims["locale"].(string); ok {
		user.Locale = v
	}

	// Google sends email_verified as a bool, some older tokens as "true".
	switch v := payload.Claims["email_verified"].(type) {
	case bool:
		user.EmailVerified = v
	case string:
		user.EmailVerified = v == "true"
	}

	return user
}
