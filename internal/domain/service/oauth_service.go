package service

import "context"

// OAuthUser represents the identity asserted by an OAuth provider.
type OAuthUser struct {
	Subject       string // Provider-specific user ID (Google's 'sub' claim)
	Email         string // User's email address
	Name          string // User's display name
	AvatarURL     string // URL to user's profile picture
	EmailVerified bool   // Whether the provider asserts ownership of the email
	Locale        string // User's locale/language preference
}

// OAuthProvider runs the authorization-code flow against an external identity provider.
type OAuthProvider interface {
	// AuthCodeURL returns the consent URL carrying state.
	AuthCodeURL(state string) string

	// Exchange trades an authorization code for the provider-verified profile.
	Exchange(ctx context.Context, code string) (*OAuthUser, error)

	// Name identifies the provider in logs and metrics.
	Name() string
}

// OAuthStateService binds an OAuth round trip to the browser that started it.
type OAuthStateService interface {
	// Issue returns the state parameter and the signed value to store client-side.
	Issue() (state, signed string, err error)

	// Validate checks that state is the one bound into signed and that signed has not expired.
	Validate(signed, state string) error
}
