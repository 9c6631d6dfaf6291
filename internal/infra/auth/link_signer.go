package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"coursebook/config"
	"coursebook/internal/domain/entity"
	"coursebook/internal/domain/service"
	"coursebook/internal/errors"
)

type hmacLinkSigner struct {
	secret []byte
}

// NewLinkSigner keys verification digests with verification.secret.
func NewLinkSigner(cfg *config.Config) (service.LinkSigner, error) {
	if cfg.Verification == nil || cfg.Verification.Secret == "" {
		return nil, errors.New("verification secret must be provided")
	}

	return &hmacLinkSigner{secret: []byte(cfg.Verification.Secret)}, nil
}

// Digest is hex(HMAC-SHA256(secret, normalized email)).
func (s *hmacLinkSigner) Digest(email string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(entity.NormalizeEmail(email)))

	return hex.EncodeToString(mac.Sum(nil))
}

func (s *hmacLinkSigner) Matches(email, supplied string) bool {
	return hmac.Equal([]byte(s.Digest(email)), []byte(supplied))
}
