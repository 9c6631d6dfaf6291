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

type sessionRepository struct {
	db *gorm.DB
}

// NewSessionRepository returns the repository bound to db, which may be a transaction.
func NewSessionRepository(db *gorm.DB) repository.SessionRepository {
	return &sessionRepository{db: db}
}

func (repo *sessionRepository) Create(ctx context.Context, session *entity.Session) error {
	if session.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return errors.Wrap(err, "failed to generate session id")
		}
		session.ID = id
	}

	sessionM := fromSessionDomain(session)
	if err := repo.db.WithContext(ctx).Create(sessionM).Error; err != nil {
		if isForeignKeyConstraintViolation(err) {
			return errors.Wrap(repository.ErrAccountNotFound, "session references a missing account")
		}

		return domainerrors.NewDatabaseExecuteError(err, "failed to create session")
	}
	session.CreatedAt = sessionM.CreatedAt

	return nil
}

// FindByTokenHash returns the session even if expired; expiry is a use-case decision.
func (repo *sessionRepository) FindByTokenHash(ctx context.Context, tokenHash string) (*entity.Session, error) {
	var sessionM model.SessionModel
	err := repo.db.WithContext(ctx).Where("token_hash = ?", tokenHash).Take(&sessionM).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrSessionNotFound
		}

		return nil, errors.Wrap(err, "failed to find session")
	}

	return toSessionDomain(&sessionM), nil
}

func (repo *sessionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	err := repo.db.WithContext(ctx).Where("id = ?", id).Delete(&model.SessionModel{}).Error
	if err != nil {
		return domainerrors.NewDatabaseExecuteError(err, "failed to delete session")
	}

	return nil
}

func (repo *sessionRepository) DeleteByAccountID(ctx context.Context, accountID uuid.UUID) error {
	err := repo.db.WithContext(ctx).Where("account_id = ?", accountID).Delete(&model.SessionModel{}).Error
	if err != nil {
		return domainerrors.NewDatabaseExecuteError(err, "failed to delete account sessions")
	}

	return nil
}

func (repo *sessionRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	result := repo.db.WithContext(ctx).Where("expires_at <= ?", before).Delete(&model.SessionModel{})
	if result.Error != nil {
		return 0, domainerrors.NewDatabaseExecuteError(result.Error, "failed to delete expired sessions")
	}

	return result.RowsAffected, nil
}

func toSessionDomain(sessionM *model.SessionModel) *entity.Session {
	// An unknown stored role degrades to an empty role, which no gate accepts.
	role, _ := entity.ParseRole(sessionM.Role)

	return &entity.Session{
		ID:        sessionM.ID,
		TokenHash: sessionM.TokenHash,
		AccountID: sessionM.AccountID,
		Role:      role,
		CSRFToken: sessionM.CSRFToken,
		CreatedAt: sessionM.CreatedAt,
		ExpiresAt: sessionM.ExpiresAt,
	}
}

func fromSessionDomain(session *entity.Session) *model.SessionModel {
	return &model.SessionModel{
		ID:        session.ID,
		TokenHash: session.TokenHash,
		AccountID: session.AccountID,
		Role:      session.Role.String(),
		CSRFToken: session.CSRFToken,
		CreatedAt: session.CreatedAt,
		ExpiresAt: session.ExpiresAt,
	}
}
