package repository

import (
	"context"
	"time"

	"coursebook/internal/domain/entity"
	"coursebook/internal/errors"

	"github.com/google/uuid"
)

// ErrSessionNotFound is returned when the token matches no live session.
var ErrSessionNotFound = errors.New("session not found")

// SessionRepository stores server-side sessions keyed by token hash.
type SessionRepository interface {
	// Create persists a new session.
	Create(ctx context.Context, session *entity.Session) error

	// FindByTokenHash retrieves a session by the hash of its opaque token.
	FindByTokenHash(ctx context.Context, tokenHash string) (*entity.Session, error)

	// Delete removes a session by ID. Deleting a missing session is not an error.
	Delete(ctx context.Context, id uuid.UUID) error

	// DeleteByAccountID removes every session bound to the account.
	DeleteByAccountID(ctx context.Context, accountID uuid.UUID) error

	// DeleteExpired removes sessions expired before the given time and returns how many were removed.
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
