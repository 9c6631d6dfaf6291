package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"

	"coursebook/internal/domain/service"
	"coursebook/internal/errors"
)

const tokenBytes = 32

type randomTokenGenerator struct{}

// NewTokenGenerator returns the generator for session, CSRF and OAuth state tokens.
func NewTokenGenerator() service.TokenGenerator {
	return randomTokenGenerator{}
}

func (randomTokenGenerator) Generate() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.Wrap(err, "read random bytes")
	}

	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func (randomTokenGenerator) Hash(token string) string {
	sum := sha256.Sum256([]byte(token))

	return hex.EncodeToString(sum[:])
}
