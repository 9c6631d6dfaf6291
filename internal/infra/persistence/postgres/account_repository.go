// Package postgres contains the concrete implementation of the persistence layer using GORM and PostgreSQL.
package postgres

import (
	"context"
	"time"

	"coursebook/internal/domain/entity"
	domainerrors "coursebook/internal/domain/errors"
	"coursebook/internal/domain/repository"
	"coursebook/internal/errors"
	"coursebook/internal/infra/persistence/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// accountRepository implements repository.AccountRepository using GORM.
type accountRepository struct {
	db *gorm.DB
}

// NewAccountRepository returns the repository bound to db, which may be a transaction.
func NewAccountRepository(db *gorm.DB) repository.AccountRepository {
	return &accountRepository{db: db}
}

// FindByID retrieves a single account by its unique ID.
func (repo *accountRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Account, error) {
	var accountM model.AccountModel
	err := repo.db.WithContext(ctx).Where("id = ?", id).Take(&accountM).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrAccountNotFound
		}

		return nil, errors.Wrap(err, "failed to find account by id")
	}

	return toAccountDomain(&accountM)
}

// FindByEmail retrieves a single account by email. The lookup key is normalized
// the same way emails are stored.
func (repo *accountRepository) FindByEmail(ctx context.Context, email string) (*entity.Account, error) {
	var accountM model.AccountModel
	err := repo.db.WithContext(ctx).Where("email = ?", entity.NormalizeEmail(email)).Take(&accountM).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrAccountNotFound
		}

		return nil, errors.Wrap(err, "failed to find account by email")
	}

	return toAccountDomain(&accountM)
}

// Create persists a new account and fills in generated fields on the entity.
func (repo *accountRepository) Create(ctx context.Context, account *entity.Account) error {
	if !account.Role.IsValid() {
		return errors.Wrapf(entity.ErrInvalidRole, "create account with role %q", account.Role)
	}

	if account.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return errors.Wrap(err, "failed to generate account id")
		}
		account.ID = id
	}
	account.Email = entity.NormalizeEmail(account.Email)

	accountM := fromAccountDomain(account)
	if err := repo.db.WithContext(ctx).Create(accountM).Error; err != nil {
		if isUniqueConstraintViolation(err) {
			return domainerrors.ErrDuplicateEmail.WrapMessage("email already exists")
		}
		if isNotNullConstraintViolation(err) || isCheckConstraintViolation(err) {
			return domainerrors.ErrRegistrationFailed.WrapMessage("account violates table constraints")
		}

		return domainerrors.NewDatabaseExecuteError(err, "failed to create account")
	}

	account.CreatedAt = accountM.CreatedAt
	account.UpdatedAt = accountM.UpdatedAt

	return nil
}

// MarkVerified sets email_verified_at only while it is NULL, so concurrent callers stamp once.
func (repo *accountRepository) MarkVerified(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	result := repo.db.WithContext(ctx).
		Model(&model.AccountModel{}).
		Where("id = ? AND email_verified_at IS NULL", id).
		Updates(map[string]any{
			"email_verified_at": at,
			"updated_at":        at,
		})
	if result.Error != nil {
		return false, domainerrors.NewDatabaseExecuteError(result.Error, "failed to mark account verified")
	}

	return result.RowsAffected == 1, nil
}

func toAccountDomain(accountM *model.AccountModel) (*entity.Account, error) {
	role, err := entity.ParseRole(accountM.Role)
	if err != nil {
		return nil, errors.Wrapf(err, "account %s", accountM.ID)
	}

	return &entity.Account{
		ID:              accountM.ID,
		Name:            accountM.Name,
		Email:           accountM.Email,
		PasswordHash:    accountM.PasswordHash,
		Role:            role,
		EmailVerifiedAt: accountM.EmailVerifiedAt,
		CreatedAt:       accountM.CreatedAt,
		UpdatedAt:       accountM.UpdatedAt,
	}, nil
}

func fromAccountDomain(account *entity.Account) *model.AccountModel {
	return &model.AccountModel{
		ID:              account.ID,
		Name:            account.Name,
		Email:           account.Email,
		PasswordHash:    account.PasswordHash,
		Role:            account.Role.String(),
		EmailVerifiedAt: account.EmailVerifiedAt,
		CreatedAt:       account.CreatedAt,
		UpdatedAt:       account.UpdatedAt,
	}
}
