package usecase

import (
	"context"

	"coursebook/internal/domain/entity"
)

// SessionUsecase manages server-side sessions. Sessions are explicit values:
// callers pass the opaque token in and receive issued sessions back.
type SessionUsecase interface {
	// Start issues a new guest session.
	Start(ctx context.Context) (*entity.IssuedSession, error)

	// Resolve returns the live session for token, or repository.ErrSessionNotFound.
	Resolve(ctx context.Context, token string) (*entity.Session, error)

	// Establish discards the session behind previousToken (if any) and issues a new
	// session bound to account, so the identifier and anti-forgery token both rotate.
	Establish(ctx context.Context, previousToken string, account *entity.Account) (*entity.IssuedSession, error)

	// Invalidate deletes the session behind token. Unknown or empty tokens are a no-op.
	Invalidate(ctx context.Context, token string) error

	// PurgeExpired deletes expired sessions and reports how many were removed.
	PurgeExpired(ctx context.Context) (int64, error)
}
