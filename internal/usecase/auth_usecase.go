// Package usecase contains the application-specific business rules.
// It orchestrates the domain layer to perform tasks.
package usecase

import (
	"context"

	"coursebook/internal/domain/entity"
)

// --- Input DTOs ---

// RegisterInput defines the data required to register a local account.
type RegisterInput struct {
	Name     string `validate:"required"`
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=6,maxbytes=72"`
	// Locale selects the language of the verification mail.
	Locale string
}

// LoginInput defines the credentials of a password login.
// SessionToken is the caller's current session, rotated on success and terminated on an unverified account.
type LoginInput struct {
	Email        string `validate:"required,email"`
	Password     string `validate:"required"`
	SessionToken string
}

// VerifyInput carries the path parameters of a verification link.
type VerifyInput struct {
	AccountID string
	Digest    string
}

// ResendVerificationInput requests a fresh verification mail.
type ResendVerificationInput struct {
	Email  string `validate:"required,email"`
	Locale string
}

// OAuthLoginInput carries the provider callback. SignedState is the value stored by BeginOAuth.
type OAuthLoginInput struct {
	Code         string
	State        string
	SignedState  string
	SessionToken string
}

// LogoutInput carries the session to terminate; an empty token is allowed.
type LogoutInput struct {
	SessionToken string
}

// --- Output DTOs ---

// RegisterOutput returns the newly created, unverified account.
type RegisterOutput struct {
	Account *entity.Account
}

// LoginOutput returns the account and its freshly issued session.
type LoginOutput struct {
	Account *entity.Account
	Session *entity.IssuedSession
	// Created is set when an OAuth login created the account.
	Created bool
}

// VerifyOutput reports which verification outcome occurred.
type VerifyOutput struct {
	Outcome entity.VerifyOutcome
	Account *entity.Account
}

// BeginOAuthOutput is the consent redirect and the state value to bind to the browser.
type BeginOAuthOutput struct {
	RedirectURL string
	SignedState string
}

// LogoutOutput carries the replacement guest session, whose anti-forgery token is new.
type LogoutOutput struct {
	Session *entity.IssuedSession
}

// AuthUsecase defines registration, login, verification, federated login and logout.
// This is the contract that the delivery layer depends on.
type AuthUsecase interface {
	Register(ctx context.Context, input *RegisterInput) (*RegisterOutput, error)
	Login(ctx context.Context, input *LoginInput) (*LoginOutput, error)
	Verify(ctx context.Context, input *VerifyInput) (*VerifyOutput, error)
	ResendVerification(ctx context.Context, input *ResendVerificationInput) error
	BeginOAuth(ctx context.Context) (*BeginOAuthOutput, error)
	OAuthLogin(ctx context.Context, input *OAuthLoginInput) (*LoginOutput, error)
	Logout(ctx context.Context, input *LogoutInput) (*LogoutOutput, error)
}
