package auth

import (
	"crypto/subtle"
	"time"

	"coursebook/config"
	"coursebook/internal/domain/service"
	"coursebook/internal/errors"

	"github.com/golang-jwt/jwt/v5"
)

const stateIssuer = "coursebook-oauth-state"

// ErrInvalidState is returned when the OAuth callback state does not match its signed cookie.
var ErrInvalidState = errors.New("invalid oauth state")

type stateClaims struct {
	Nonce string `json:"nonce"`
	jwt.RegisteredClaims
}

// jwtStateService signs the OAuth state nonce into a short-lived HS256 token kept in a cookie.
type jwtStateService struct {
	secret []byte
	ttl    time.Duration
	tokens service.TokenGenerator
	now    func() time.Time
}

// NewOAuthStateService builds the state service from googleOAuth.stateSecret.
func NewOAuthStateService(cfg *config.Config, tokens service.TokenGenerator) (service.OAuthStateService, error) {
	if cfg.GoogleOAuth == nil || cfg.GoogleOAuth.StateSecret == "" {
		return nil, errors.New("oauth state secret must be provided")
	}

	return &jwtStateService{
		secret: []byte(cfg.GoogleOAuth.StateSecret),
		ttl:    cfg.GoogleOAuth.StateTTL,
		tokens: tokens,
		now:    time.Now,
	}, nil
}

func (s *jwtStateService) Issue() (string, string, error) {
	nonce, err := s.tokens.Generate()
	if err != nil {
		return "", "", err
	}

	now := s.now()
	claims := stateClaims{
		Nonce: nonce,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    stateIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", "", errors.Wrap(err, "sign oauth state")
	}

	return nonce, signed, nil
}

func (s *jwtStateService) Validate(signed, state string) error {
	if signed == "" || state == "" {
		return ErrInvalidState
	}

	claims := &stateClaims{}
	_, err := jwt.ParseWithClaims(signed, claims, func(token *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(stateIssuer),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return errors.Wrap(ErrInvalidState, err.Error())
	}

	if subtle.ConstantTimeCompare([]byte(claims.Nonce), []byte(state)) != 1 {
		return ErrInvalidState
	}

	return nil
}
