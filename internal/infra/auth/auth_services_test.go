package auth

import (
	"testing"
	"time"

	"coursebook/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinkSigner(t *testing.T) {
	cfg := &config.Config{Verification: &config.VerificationConfig{Secret: "k1"}}
	signer, err := NewLinkSigner(cfg)
	require.NoError(t, err)

	digest := signer.Digest("a@x.com")
	assert.Len(t, digest, 64)
	assert.Equal(t, digest, signer.Digest(" A@X.com"), "digest is computed over the normalized email")
	assert.True(t, signer.Matches("a@x.com", digest))
	assert.False(t, signer.Matches("b@x.com", digest))
	assert.False(t, signer.Matches("a@x.com", digest[:63]+"0"))
	assert.False(t, signer.Matches("a@x.com", ""))

	other, err := NewLinkSigner(&config.Config{Verification: &config.VerificationConfig{Secret: "k2"}})
	require.NoError(t, err)
	assert.NotEqual(t, digest, other.Digest("a@x.com"), "digest depends on the deployment secret")

	_, err = NewLinkSigner(&config.Config{Verification: &config.VerificationConfig{}})
	assert.Error(t, err)
}

func TestTokenGenerator(t *testing.T) {
	gen := NewTokenGenerator()
	a, err := gen.Generate()
	require.NoError(t, err)
	b, err := gen.Generate()
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.Len(t, a, 43)
	assert.Len(t, gen.Hash(a), 64)
	assert.Equal(t, gen.Hash(a), gen.Hash(a))
	assert.NotEqual(t, a, gen.Hash(a))
}

func TestOAuthStateService(t *testing.T) {
	cfg := &config.Config{GoogleOAuth: &config.GoogleOAuthConfig{StateSecret: "state-secret", StateTTL: time.Minute}}
	svc, err := NewOAuthStateService(cfg, NewTokenGenerator())
	require.NoError(t, err)

	state, signed, err := svc.Issue()
	require.NoError(t, err)
	require.NoError(t, svc.Validate(signed, state))

	assert.ErrorIs(t, svc.Validate(signed, state+"x"), ErrInvalidState)
	assert.ErrorIs(t, svc.Validate("", state), ErrInvalidState)
	assert.ErrorIs(t, svc.Validate(signed+"x", state), ErrInvalidState)

	impl := svc.(*jwtStateService)
	impl.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	assert.ErrorIs(t, svc.Validate(signed, state), ErrInvalidState, "expired state is rejected")

	_, err = NewOAuthStateService(&config.Config{GoogleOAuth: &config.GoogleOAuthConfig{}}, NewTokenGenerator())
	assert.Error(t, err)
}
