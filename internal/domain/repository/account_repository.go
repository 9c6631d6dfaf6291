// Package repository defines the interfaces for the persistence layer.
// These interfaces act as a contract between the domain/application layers and the infrastructure layer.
package repository

import (
	"context"
	"time"

	"coursebook/internal/domain/entity"
	"coursebook/internal/errors"

	"github.com/google/uuid"
)

// ErrAccountNotFound is returned when no account matches the lookup.
var ErrAccountNotFound = errors.New("account not found")

// AccountRepository defines the persistence operations for accounts.
type AccountRepository interface {
	// FindByID retrieves a single account by its unique ID.
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Account, error)

	// FindByEmail retrieves a single account by its normalized email address.
	FindByEmail(ctx context.Context, email string) (*entity.Account, error)

	// Create persists a new account. A concurrent insert of the same email fails
	// with domainerrors.ErrDuplicateEmail, enforced by the storage unique constraint.
	Create(ctx context.Context, account *entity.Account) error

	// MarkVerified stamps the verification time only if it is still unset.
	// It reports whether this call performed the transition.
	MarkVerified(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
}
