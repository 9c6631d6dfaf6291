package impl

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"coursebook/config"
	"coursebook/internal/domain/entity"
	domainerrors "coursebook/internal/domain/errors"
	"coursebook/internal/domain/repository"
	"coursebook/internal/domain/service"
	"coursebook/internal/errors"
	"coursebook/internal/infra/auth"
	"coursebook/internal/usecase"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newDiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestConfig() *config.Config {
	return &config.Config{
		Session:      &config.SessionConfig{TTL: time.Hour},
		Auth:         &config.AuthConfig{BcryptCost: bcrypt.MinCost},
		Verification: &config.VerificationConfig{Secret: "test-verification-secret", BaseURL: "https://courses.test/", MarkOAuthVerified: true},
		GoogleOAuth:  &config.GoogleOAuthConfig{StateSecret: "test-state-secret", StateTTL: time.Minute},
		I18n:         &config.I18nConfig{DefaultLocale: "id"},
		PubSub:       &config.PubSubConfig{Provider: "noop"},
	}
}

// memStore is an in-memory stand-in for the accounts and sessions tables.
type memStore struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]*entity.Account
	emails   map[string]uuid.UUID
	sessions map[string]*entity.Session

	createErr error
	findErr   error
}

func newMemStore() *memStore {
	return &memStore{
		accounts: make(map[uuid.UUID]*entity.Account),
		emails:   make(map[string]uuid.UUID),
		sessions: make(map[string]*entity.Session),
	}
}

func (s *memStore) sessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.sessions)
}

func (s *memStore) account(email string) *entity.Account {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.emails[email]
	if !ok {
		return nil
	}
	copied := *s.accounts[id]

	return &copied
}

type memTxManager struct {
	store *memStore
}

func (tm *memTxManager) Execute(_ context.Context, fn func(txRepoFactory repository.RepositoryFactory) error) error {
	return fn(&memFactory{store: tm.store})
}

type memFactory struct {
	store *memStore
}

func (f *memFactory) AccountRepo() repository.AccountRepository {
	return &memAccountRepo{store: f.store}
}

func (f *memFactory) SessionRepo() repository.SessionRepository {
	return &memSessionRepo{store: f.store}
}

type memAccountRepo struct {
	store *memStore
}

func (r *memAccountRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.Account, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if r.store.findErr != nil {
		return nil, r.store.findErr
	}
	account, ok := r.store.accounts[id]
	if !ok {
		return nil, repository.ErrAccountNotFound
	}
	copied := *account

	return &copied, nil
}

func (r *memAccountRepo) FindByEmail(_ context.Context, email string) (*entity.Account, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if r.store.findErr != nil {
		return nil, r.store.findErr
	}
	id, ok := r.store.emails[entity.NormalizeEmail(email)]
	if !ok {
		return nil, repository.ErrAccountNotFound
	}
	copied := *r.store.accounts[id]

	return &copied, nil
}

func (r *memAccountRepo) Create(_ context.Context, account *entity.Account) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if r.store.createErr != nil {
		return r.store.createErr
	}
	if _, taken := r.store.emails[account.Email]; taken {
		return domainerrors.ErrDuplicateEmail.WrapMessage("unique violation")
	}
	if account.ID == uuid.Nil {
		account.ID = uuid.New()
	}
	account.CreatedAt = time.Now()
	account.UpdatedAt = account.CreatedAt

	copied := *account
	r.store.accounts[account.ID] = &copied
	r.store.emails[account.Email] = account.ID

	return nil
}

func (r *memAccountRepo) MarkVerified(_ context.Context, id uuid.UUID, at time.Time) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	account, ok := r.store.accounts[id]
	if !ok {
		return false, nil
	}

	return account.MarkVerified(at), nil
}

type memSessionRepo struct {
	store *memStore
}

func (r *memSessionRepo) Create(_ context.Context, session *entity.Session) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	copied := *session
	r.store.sessions[session.TokenHash] = &copied

	return nil
}

func (r *memSessionRepo) FindByTokenHash(_ context.Context, tokenHash string) (*entity.Session, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	session, ok := r.store.sessions[tokenHash]
	if !ok {
		return nil, repository.ErrSessionNotFound
	}
	copied := *session

	return &copied, nil
}

func (r *memSessionRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	for hash, session := range r.store.sessions {
		if session.ID == id {
			delete(r.store.sessions, hash)
		}
	}

	return nil
}

func (r *memSessionRepo) DeleteByAccountID(_ context.Context, accountID uuid.UUID) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	for hash, session := range r.store.sessions {
		if session.AccountID != nil && *session.AccountID == accountID {
			delete(r.store.sessions, hash)
		}
	}

	return nil
}

func (r *memSessionRepo) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var removed int64
	for hash, session := range r.store.sessions {
		if session.IsExpired(before) {
			delete(r.store.sessions, hash)
			removed++
		}
	}

	return removed, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*entity.VerificationEvent
	err    error
	// gate, when set, holds every publish until it is closed.
	gate chan struct{}
}

func (p *recordingPublisher) PublishVerificationRequested(ctx context.Context, event *entity.VerificationEvent) error {
	if p.gate != nil {
		select {
		case <-p.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)

	return nil
}

func (p *recordingPublisher) Close() error {
	return nil
}

func (p *recordingPublisher) published() []*entity.VerificationEvent {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]*entity.VerificationEvent(nil), p.events...)
}

type recordingMetrics struct {
	mu            sync.Mutex
	events        []string
	publishErrors int
}

func (m *recordingMetrics) ObserveAuthEvent(operation, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.events = append(m.events, operation+":"+outcome)
}

func (m *recordingMetrics) ObserveVerificationPublish(_ string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err != nil {
		m.publishErrors++
	}
}

func (m *recordingMetrics) recorded() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]string(nil), m.events...)
}

type fakeOAuthProvider struct {
	user *service.OAuthUser
	err  error
}

func (p *fakeOAuthProvider) AuthCodeURL(state string) string {
	return "https://accounts.test/o/oauth2/auth?state=" + state
}

func (p *fakeOAuthProvider) Exchange(_ context.Context, code string) (*service.OAuthUser, error) {
	if p.err != nil {
		return nil, p.err
	}
	if code != "good-code" {
		return nil, errors.New("invalid_grant")
	}
	copied := *p.user

	return &copied, nil
}

func (p *fakeOAuthProvider) Name() string {
	return "fake"
}

type recordingMailSender struct {
	mu    sync.Mutex
	mails []*service.Mail
	err   error
}

func (s *recordingMailSender) Send(_ context.Context, mail *service.Mail) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return s.err
	}
	s.mails = append(s.mails, mail)

	return nil
}

// authTestEnv wires the real auth and session services over in-memory fakes.
type authTestEnv struct {
	cfg       *config.Config
	store     *memStore
	publisher *recordingPublisher
	metrics   *recordingMetrics
	oauth     *fakeOAuthProvider
	hasher    service.PasswordHasher
	signer    service.LinkSigner
	tokens    service.TokenGenerator
	state     service.OAuthStateService
	sessions  usecase.SessionUsecase
	auth      usecase.AuthUsecase
}

func newAuthTestEnv(t *testing.T, mutate ...func(*config.Config)) *authTestEnv {
	t.Helper()

	cfg := newTestConfig()
	for _, fn := range mutate {
		fn(cfg)
	}

	env := &authTestEnv{
		cfg:       cfg,
		store:     newMemStore(),
		publisher: &recordingPublisher{},
		metrics:   &recordingMetrics{},
		oauth: &fakeOAuthProvider{user: &service.OAuthUser{
			Subject:       "google-123",
			Email:         "Budi@Example.com",
			Name:          "Budi",
			EmailVerified: true,
		}},
		hasher: auth.NewBcryptHasherWithCost(bcrypt.MinCost),
		tokens: auth.NewTokenGenerator(),
	}

	var err error
	env.signer, err = auth.NewLinkSigner(cfg)
	require.NoError(t, err)
	env.state, err = auth.NewOAuthStateService(cfg, env.tokens)
	require.NoError(t, err)

	txManager := &memTxManager{store: env.store}
	repos := &memFactory{store: env.store}

	env.sessions = NewSessionService(SessionServiceParams{
		TxManager: txManager,
		Repos:     repos,
		Tokens:    env.tokens,
		Config:    cfg,
		Logger:    newDiscardLogger(),
	})

	env.auth, err = NewAuthService(AuthServiceParams{
		TxManager: txManager,
		Repos:     repos,
		Sessions:  env.sessions,
		Hasher:    env.hasher,
		Signer:    env.signer,
		Tokens:    env.tokens,
		OAuth:     env.oauth,
		State:     env.state,
		Publisher: env.publisher,
		Metrics:   env.metrics,
		Config:    cfg,
		Logger:    newDiscardLogger(),
	})
	require.NoError(t, err)

	return env
}

// settle waits until every verification event handed off by the service has been published.
func (env *authTestEnv) settle() {
	env.auth.(*authService).publishing.Wait()
}

func (env *authTestEnv) published() []*entity.VerificationEvent {
	env.settle()

	return env.publisher.published()
}

// seedAccount stores an account with the given password, verified or not.
func (env *authTestEnv) seedAccount(t *testing.T, email, password string, role entity.Role, verified bool) *entity.Account {
	t.Helper()

	hash, err := env.hasher.Hash(password)
	require.NoError(t, err)

	account := &entity.Account{Name: "Seeded", Email: email, PasswordHash: hash, Role: role}
	if verified {
		account.MarkVerified(time.Now())
	}
	require.NoError(t, (&memAccountRepo{store: env.store}).Create(context.Background(), account))

	return account
}
