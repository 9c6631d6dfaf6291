package impl

import (
	"context"
	"log/slog"
	"strings"
	"time"

	deliverycontext "coursebook/internal/delivery/context"
	"coursebook/internal/domain/entity"
	domainerrors "coursebook/internal/domain/errors"
	"coursebook/internal/domain/repository"
	"coursebook/internal/domain/service"
	"coursebook/internal/errors"
	"coursebook/internal/i18n"
	"coursebook/internal/usecase"

	"go.uber.org/fx"
)

type accountService struct {
	txManager repository.TransactionManager
	repos     repository.RepositoryFactory
	hasher    service.PasswordHasher
	now       func() time.Time
	logger    *slog.Logger
}

// AccountServiceParams holds dependencies for AccountService, injected by Fx.
type AccountServiceParams struct {
	fx.In

	TxManager repository.TransactionManager
	Repos     repository.RepositoryFactory
	Hasher    service.PasswordHasher
	Logger    *slog.Logger
}

// NewAccountService provisions accounts for seeding and operations tooling.
func NewAccountService(params AccountServiceParams) usecase.AccountUsecase {
	return &accountService{
		txManager: params.TxManager,
		repos:     params.Repos,
		hasher:    params.Hasher,
		now:       time.Now,
		logger:    params.Logger,
	}
}

func (srv *accountService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

// EnsureAccount creates the account unless one with the same email exists. Existing
// accounts are left untouched, so running a seed twice is safe.
func (srv *accountService) EnsureAccount(ctx context.Context, input *usecase.EnsureAccountInput) (*usecase.EnsureAccountOutput, error) {
	normalized := *input
	normalized.Name = strings.TrimSpace(input.Name)
	normalized.Email = entity.NormalizeEmail(input.Email)

	fields := validateInput(&normalized)
	if !normalized.Role.IsValid() && !hasFieldError(fields, "role") {
		fields = append(fields, domainerrors.FieldError{Field: "role", Message: i18n.MsgFieldInvalid, Args: []any{"role"}})
	}
	if len(fields) > 0 {
		return nil, domainerrors.NewValidationError(fields...)
	}

	existing, err := srv.repos.AccountRepo().FindByEmail(ctx, normalized.Email)
	if err == nil {
		srv.log(ctx).Info("Account already present", slog.String("email", existing.Email))

		return &usecase.EnsureAccountOutput{Account: existing}, nil
	}
	if !errors.Is(err, repository.ErrAccountNotFound) {
		return nil, errors.Wrap(err, "failed to find account")
	}

	hashedPassword, err := srv.hasher.Hash(normalized.Password)
	if err != nil {
		return nil, errors.Wrap(err, "failed to hash password")
	}

	account := &entity.Account{
		Name:         normalized.Name,
		Email:        normalized.Email,
		PasswordHash: hashedPassword,
		Role:         normalized.Role,
	}
	if normalized.Verified {
		account.MarkVerified(srv.now())
	}

	err = srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		return repoFactory.AccountRepo().Create(ctx, account)
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create account")
	}

	srv.log(ctx).Info("Account created", slog.String("email", account.Email), slog.String("role", account.Role.String()))

	return &usecase.EnsureAccountOutput{Account: account, Created: true}, nil
}
