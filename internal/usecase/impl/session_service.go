package impl

import (
	"context"
	"log/slog"
	"time"

	"coursebook/config"
	deliverycontext "coursebook/internal/delivery/context"
	"coursebook/internal/domain/entity"
	"coursebook/internal/domain/repository"
	"coursebook/internal/domain/service"
	"coursebook/internal/errors"
	"coursebook/internal/usecase"

	"github.com/google/uuid"
	"go.uber.org/fx"
)

type sessionService struct {
	txManager repository.TransactionManager
	repos     repository.RepositoryFactory
	tokens    service.TokenGenerator
	ttl       time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

// SessionServiceParams holds dependencies for SessionService, injected by Fx.
type SessionServiceParams struct {
	fx.In

	TxManager repository.TransactionManager
	Repos     repository.RepositoryFactory
	Tokens    service.TokenGenerator
	Config    *config.Config
	Logger    *slog.Logger
}

// NewSessionService creates the server-side session manager.
func NewSessionService(params SessionServiceParams) usecase.SessionUsecase {
	return &sessionService{
		txManager: params.TxManager,
		repos:     params.Repos,
		tokens:    params.Tokens,
		ttl:       params.Config.Session.TTL,
		now:       time.Now,
		logger:    params.Logger,
	}
}

func (srv *sessionService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

func (srv *sessionService) Start(ctx context.Context) (*entity.IssuedSession, error) {
	return srv.issue(ctx, srv.repos.SessionRepo(), nil)
}

func (srv *sessionService) Resolve(ctx context.Context, token string) (*entity.Session, error) {
	if token == "" {
		return nil, repository.ErrSessionNotFound
	}

	sessionRepo := srv.repos.SessionRepo()
	session, err := sessionRepo.FindByTokenHash(ctx, srv.tokens.Hash(token))
	if err != nil {
		return nil, errors.Wrap(err, "failed to find session")
	}

	if session.IsExpired(srv.now()) {
		if err := sessionRepo.Delete(ctx, session.ID); err != nil {
			srv.log(ctx).Warn("Failed to delete expired session", slog.Any("sessionID", session.ID), slog.Any("error", err))
		}

		return nil, repository.ErrSessionNotFound
	}

	return session, nil
}

func (srv *sessionService) Establish(ctx context.Context, previousToken string, account *entity.Account) (*entity.IssuedSession, error) {
	if account == nil {
		return nil, errors.New("account is required to establish a session")
	}

	var issued *entity.IssuedSession
	err := srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		sessionRepo := repoFactory.SessionRepo()

		if previousToken != "" {
			previous, err := sessionRepo.FindByTokenHash(ctx, srv.tokens.Hash(previousToken))
			switch {
			case err == nil:
				if err := sessionRepo.Delete(ctx, previous.ID); err != nil {
					return errors.Wrap(err, "failed to delete previous session")
				}
			case !errors.Is(err, repository.ErrSessionNotFound):
				return errors.Wrap(err, "failed to find previous session")
			}
		}

		var err error
		issued, err = srv.issue(ctx, sessionRepo, account)

		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to establish session")
	}

	srv.log(ctx).Debug("Session established", slog.Any("accountID", account.ID), slog.Any("sessionID", issued.Session.ID))

	return issued, nil
}

func (srv *sessionService) Invalidate(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}

	sessionRepo := srv.repos.SessionRepo()
	session, err := sessionRepo.FindByTokenHash(ctx, srv.tokens.Hash(token))
	if errors.Is(err, repository.ErrSessionNotFound) {
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "failed to find session")
	}

	if err := sessionRepo.Delete(ctx, session.ID); err != nil {
		return errors.Wrap(err, "failed to delete session")
	}

	return nil
}

func (srv *sessionService) PurgeExpired(ctx context.Context) (int64, error) {
	removed, err := srv.repos.SessionRepo().DeleteExpired(ctx, srv.now())
	if err != nil {
		return 0, errors.Wrap(err, "failed to purge expired sessions")
	}

	return removed, nil
}

// issue creates a session with a fresh token and anti-forgery token. A nil account issues a guest session.
func (srv *sessionService) issue(ctx context.Context, sessionRepo repository.SessionRepository, account *entity.Account) (*entity.IssuedSession, error) {
	token, err := srv.tokens.Generate()
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate session token")
	}
	csrfToken, err := srv.tokens.Generate()
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate csrf token")
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate session id")
	}

	now := srv.now()
	session := &entity.Session{
		ID:        id,
		TokenHash: srv.tokens.Hash(token),
		CSRFToken: csrfToken,
		CreatedAt: now,
		ExpiresAt: now.Add(srv.ttl),
	}
	if account != nil {
		accountID := account.ID
		session.AccountID = &accountID
		session.Role = account.Role
	}

	if err := sessionRepo.Create(ctx, session); err != nil {
		return nil, errors.Wrap(err, "failed to create session")
	}

	return &entity.IssuedSession{Session: session, Token: token}, nil
}
