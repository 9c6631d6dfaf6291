package usecase

import (
	"context"

	"coursebook/internal/domain/entity"
)

// EnsureAccountInput describes an account provisioned out of band (seeding).
type EnsureAccountInput struct {
	Name     string      `validate:"required"`
	Email    string      `validate:"required,email"`
	Password string      `validate:"required,min=6"`
	Role     entity.Role `validate:"required"`
	Verified bool
}

// EnsureAccountOutput reports the account and whether this call created it.
type EnsureAccountOutput struct {
	Account *entity.Account
	Created bool
}

// AccountUsecase provisions accounts outside the registration flow.
type AccountUsecase interface {
	EnsureAccount(ctx context.Context, input *EnsureAccountInput) (*EnsureAccountOutput, error)
}
