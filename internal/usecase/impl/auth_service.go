package impl

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"coursebook/config"
	deliverycontext "coursebook/internal/delivery/context"
	"coursebook/internal/domain/entity"
	domainerrors "coursebook/internal/domain/errors"
	"coursebook/internal/domain/repository"
	"coursebook/internal/domain/service"
	"coursebook/internal/errors"
	"coursebook/internal/usecase"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"go.uber.org/fx"
)

const publishTimeout = 5 * time.Second

// authService implements the AuthUsecase interface.
type authService struct {
	txManager         repository.TransactionManager
	repos             repository.RepositoryFactory
	sessions          usecase.SessionUsecase
	hasher            service.PasswordHasher
	signer            service.LinkSigner
	tokens            service.TokenGenerator
	oauth             service.OAuthProvider
	state             service.OAuthStateService
	publisher         service.EventPublisher
	metrics           service.AuthMetrics
	baseURL           string
	markOAuthVerified bool
	defaultLocale     string
	publisherName     string
	now               func() time.Time
	logger            *slog.Logger
	// dummyHash is checked against when the email is unknown, so both failure paths cost one hash comparison.
	dummyHash string
	// publishing tracks verification events still in flight after their request returned.
	publishing sync.WaitGroup
}

// AuthServiceParams holds dependencies for AuthService, injected by Fx.
type AuthServiceParams struct {
	fx.In

	Lc        fx.Lifecycle `optional:"true"`
	TxManager repository.TransactionManager
	Repos     repository.RepositoryFactory
	Sessions  usecase.SessionUsecase
	Hasher    service.PasswordHasher
	Signer    service.LinkSigner
	Tokens    service.TokenGenerator
	OAuth     service.OAuthProvider
	State     service.OAuthStateService
	Publisher service.EventPublisher
	Metrics   service.AuthMetrics
	Config    *config.Config
	Logger    *slog.Logger
}

// NewAuthService is the constructor for authService. It receives all dependencies as interfaces.
func NewAuthService(params AuthServiceParams) (usecase.AuthUsecase, error) {
	dummyHash, err := params.Hasher.Hash("coursebook-timing-equalizer")
	if err != nil {
		return nil, errors.Wrap(err, "failed to prepare credential check")
	}

	srv := &authService{
		txManager:         params.TxManager,
		repos:             params.Repos,
		sessions:          params.Sessions,
		hasher:            params.Hasher,
		signer:            params.Signer,
		tokens:            params.Tokens,
		oauth:             params.OAuth,
		state:             params.State,
		publisher:         params.Publisher,
		metrics:           params.Metrics,
		baseURL:           strings.TrimRight(params.Config.Verification.BaseURL, "/"),
		markOAuthVerified: params.Config.Verification.MarkOAuthVerified,
		defaultLocale:     params.Config.I18n.DefaultLocale,
		publisherName:     params.Config.PubSub.Provider,
		now:               time.Now,
		logger:            params.Logger,
		dummyHash:         dummyHash,
	}
	if params.Lc != nil {
		params.Lc.Append(fx.Hook{OnStop: srv.drainPublishes})
	}

	return srv, nil
}

// drainPublishes waits for in-flight verification events, or until ctx is done.
func (srv *authService) drainPublishes(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		srv.publishing.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "verification events still in flight")
	}
}

// log returns a request-scoped logger if available, otherwise falls back to the service's logger.
func (srv *authService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

// Register creates an unverified account and requests its verification mail.
func (srv *authService) Register(ctx context.Context, input *usecase.RegisterInput) (output *usecase.RegisterOutput, err error) {
	defer func() { srv.metrics.ObserveAuthEvent("register", outcomeOf(err)) }()

	email := entity.NormalizeEmail(input.Email)
	srv.log(ctx).Info("Starting registration", slog.String("email", email))

	normalized := *input
	normalized.Name = strings.TrimSpace(input.Name)
	normalized.Email = email

	fields := validateInput(&normalized)
	emailTaken := false
	if !hasFieldError(fields, "email") {
		_, lookupErr := srv.repos.AccountRepo().FindByEmail(ctx, email)
		switch {
		case lookupErr == nil:
			emailTaken = true
			fields = append(fields, emailTakenError().Fields()...)
		case !errors.Is(lookupErr, repository.ErrAccountNotFound):
			return nil, errors.Join(domainerrors.ErrRegistrationFailed, errors.Wrap(lookupErr, "failed to check email"))
		}
	}
	if len(fields) > 0 {
		verr := domainerrors.NewValidationError(fields...)
		if emailTaken {
			verr = verr.WithCause(domainerrors.ErrDuplicateEmail)
		}
		srv.log(ctx).Debug("Registration input rejected", slog.String("email", email), slog.Any("error", verr))

		return nil, verr
	}

	hashedPassword, err := srv.hasher.Hash(normalized.Password)
	if err != nil {
		return nil, errors.Join(domainerrors.ErrRegistrationFailed, errors.Wrap(err, "failed to hash password"))
	}

	account := &entity.Account{
		Name:         normalized.Name,
		Email:        email,
		PasswordHash: hashedPassword,
		Role:         entity.RoleUser,
	}

	err = srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		return repoFactory.AccountRepo().Create(ctx, account)
	})
	if errors.Is(err, domainerrors.ErrDuplicateEmail) {
		srv.log(ctx).Info("Registration lost a duplicate email race", slog.String("email", email))

		return nil, emailTakenError()
	}
	if err != nil {
		srv.log(ctx).Error("Failed to persist account", slog.String("email", email), slog.Any("error", err))

		return nil, errors.Join(domainerrors.ErrRegistrationFailed, errors.Wrap(err, "failed to create account"))
	}

	srv.requestVerification(ctx, account, input.Locale)

	srv.log(ctx).Debug("Registration completed", slog.Any("accountID", account.ID))

	return &usecase.RegisterOutput{Account: account}, nil
}

// Login checks credentials and rotates the caller's session into an authenticated one.
func (srv *authService) Login(ctx context.Context, input *usecase.LoginInput) (output *usecase.LoginOutput, err error) {
	defer func() { srv.metrics.ObserveAuthEvent("login", outcomeOf(err)) }()

	normalized := *input
	normalized.Email = entity.NormalizeEmail(input.Email)
	if fields := validateInput(&normalized); len(fields) > 0 {
		return nil, domainerrors.NewValidationError(fields...)
	}

	account, err := srv.repos.AccountRepo().FindByEmail(ctx, normalized.Email)
	if errors.Is(err, repository.ErrAccountNotFound) {
		srv.hasher.Check(normalized.Password, srv.dummyHash)

		return nil, domainerrors.ErrInvalidCredentials.WrapMessage("unknown email")
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find account")
	}

	if !srv.hasher.Check(normalized.Password, account.PasswordHash) {
		srv.log(ctx).Info("Password mismatch", slog.Any("accountID", account.ID))

		return nil, domainerrors.ErrInvalidCredentials.WrapMessage("password mismatch")
	}

	if !account.IsVerified() {
		if err := srv.sessions.Invalidate(ctx, input.SessionToken); err != nil {
			srv.log(ctx).Warn("Failed to terminate session of unverified account", slog.Any("accountID", account.ID), slog.Any("error", err))
		}

		return nil, domainerrors.ErrUnverifiedAccount.WrapMessage("login before email verification")
	}

	issued, err := srv.sessions.Establish(ctx, input.SessionToken, account)
	if err != nil {
		return nil, errors.Wrap(err, "failed to establish session")
	}

	srv.log(ctx).Info("Login succeeded", slog.Any("accountID", account.ID), slog.String("role", account.Role.String()))

	return &usecase.LoginOutput{Account: account, Session: issued}, nil
}

// Verify consumes a verification link. Re-verifying is harmless and reports AlreadyVerified.
func (srv *authService) Verify(ctx context.Context, input *usecase.VerifyInput) (output *usecase.VerifyOutput, err error) {
	defer func() { srv.metrics.ObserveAuthEvent("verify", outcomeOf(err)) }()

	id, err := uuid.Parse(input.AccountID)
	if err != nil {
		return nil, domainerrors.ErrAccountNotFound.WrapMessage("malformed account id")
	}

	accountRepo := srv.repos.AccountRepo()
	account, err := accountRepo.FindByID(ctx, id)
	if errors.Is(err, repository.ErrAccountNotFound) {
		return nil, domainerrors.ErrAccountNotFound.WrapMessage("verification for unknown account")
	}
	if err != nil {
		return nil, errors.Join(domainerrors.ErrVerificationFailed, errors.Wrap(err, "failed to find account"))
	}

	if !srv.signer.Matches(account.Email, input.Digest) {
		srv.log(ctx).Warn("Verification digest mismatch", slog.Any("accountID", account.ID))

		return nil, domainerrors.ErrInvalidLink.WrapMessage("digest mismatch")
	}

	if account.IsVerified() {
		return &usecase.VerifyOutput{Outcome: entity.AlreadyVerified, Account: account}, nil
	}

	at := srv.now()
	changed, err := accountRepo.MarkVerified(ctx, id, at)
	if err != nil {
		return nil, errors.Join(domainerrors.ErrVerificationFailed, errors.Wrap(err, "failed to mark account verified"))
	}

	if !changed {
		// A concurrent request won the transition; report the stored state.
		if reloaded, err := accountRepo.FindByID(ctx, id); err == nil {
			account = reloaded
		}

		return &usecase.VerifyOutput{Outcome: entity.AlreadyVerified, Account: account}, nil
	}

	account.MarkVerified(at)
	srv.log(ctx).Info("Account verified", slog.Any("accountID", account.ID))

	return &usecase.VerifyOutput{Outcome: entity.VerifiedNow, Account: account}, nil
}

// ResendVerification republishes the verification mail. Unknown and verified accounts are
// accepted silently so the response does not reveal which emails are registered.
func (srv *authService) ResendVerification(ctx context.Context, input *usecase.ResendVerificationInput) (err error) {
	defer func() { srv.metrics.ObserveAuthEvent("resend_verification", outcomeOf(err)) }()

	normalized := *input
	normalized.Email = entity.NormalizeEmail(input.Email)
	if fields := validateInput(&normalized); len(fields) > 0 {
		return domainerrors.NewValidationError(fields...)
	}

	account, err := srv.repos.AccountRepo().FindByEmail(ctx, normalized.Email)
	if errors.Is(err, repository.ErrAccountNotFound) {
		srv.log(ctx).Debug("Resend requested for unknown email")

		return nil
	}
	if err != nil {
		return errors.Wrap(err, "failed to find account")
	}

	if account.IsVerified() {
		return nil
	}

	srv.requestVerification(ctx, account, input.Locale)

	return nil
}

// BeginOAuth issues a state value and the provider consent URL carrying it.
func (srv *authService) BeginOAuth(_ context.Context) (*usecase.BeginOAuthOutput, error) {
	state, signed, err := srv.state.Issue()
	if err != nil {
		return nil, errors.Wrap(err, "failed to issue oauth state")
	}

	return &usecase.BeginOAuthOutput{
		RedirectURL: srv.oauth.AuthCodeURL(state),
		SignedState: signed,
	}, nil
}

// OAuthLogin completes the provider callback, linking or creating the account by email.
func (srv *authService) OAuthLogin(ctx context.Context, input *usecase.OAuthLoginInput) (output *usecase.LoginOutput, err error) {
	defer func() { srv.metrics.ObserveAuthEvent("oauth_login", outcomeOf(err)) }()

	if err := srv.state.Validate(input.SignedState, input.State); err != nil {
		srv.log(ctx).Warn("OAuth state rejected", slog.Any("error", err))

		return nil, errors.Join(domainerrors.ErrOAuthFailed, err)
	}
	if input.Code == "" {
		return nil, domainerrors.ErrOAuthFailed.WrapMessage("missing authorization code")
	}

	profile, err := srv.oauth.Exchange(ctx, input.Code)
	if err != nil {
		srv.log(ctx).Warn("OAuth exchange failed", slog.String("provider", srv.oauth.Name()), slog.Any("error", err))

		return nil, errors.Join(domainerrors.ErrOAuthFailed, err)
	}
	if profile.Email == "" || !profile.EmailVerified {
		return nil, domainerrors.ErrOAuthFailed.WrapMessage("provider did not assert a verified email")
	}

	account, created, err := srv.findOrCreateOAuthAccount(ctx, profile)
	if err != nil {
		return nil, err
	}

	issued, err := srv.sessions.Establish(ctx, input.SessionToken, account)
	if err != nil {
		return nil, errors.Wrap(err, "failed to establish session")
	}

	srv.log(ctx).Info("OAuth login succeeded",
		slog.String("provider", srv.oauth.Name()),
		slog.Any("accountID", account.ID),
		slog.Bool("created", created),
	)

	return &usecase.LoginOutput{Account: account, Session: issued, Created: created}, nil
}

func (srv *authService) findOrCreateOAuthAccount(ctx context.Context, profile *service.OAuthUser) (*entity.Account, bool, error) {
	email := entity.NormalizeEmail(profile.Email)

	account, err := srv.repos.AccountRepo().FindByEmail(ctx, email)
	if err == nil {
		srv.markVerifiedByProvider(ctx, account)

		return account, false, nil
	}
	if !errors.Is(err, repository.ErrAccountNotFound) {
		return nil, false, errors.Wrap(err, "failed to find account")
	}

	// Federated accounts get an unguessable password so the password path stays closed until a reset.
	secret, err := srv.tokens.Generate()
	if err != nil {
		return nil, false, errors.Wrap(err, "failed to generate placeholder credential")
	}
	hashedPassword, err := srv.hasher.Hash(secret)
	if err != nil {
		return nil, false, errors.Wrap(err, "failed to hash placeholder credential")
	}

	account = &entity.Account{
		Name:         displayName(profile.Name, email),
		Email:        email,
		PasswordHash: hashedPassword,
		Role:         entity.RoleUser,
	}
	if srv.markOAuthVerified {
		account.MarkVerified(srv.now())
	}

	err = srv.txManager.Execute(ctx, func(repoFactory repository.RepositoryFactory) error {
		return repoFactory.AccountRepo().Create(ctx, account)
	})
	if errors.Is(err, domainerrors.ErrDuplicateEmail) {
		// A concurrent callback or registration created the account first.
		existing, findErr := srv.repos.AccountRepo().FindByEmail(ctx, email)
		if findErr != nil {
			return nil, false, errors.Wrap(findErr, "failed to reload account after duplicate insert")
		}

		return existing, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "failed to create oauth account")
	}

	return account, true, nil
}

// markVerifiedByProvider stamps an existing unverified account once the provider has asserted the email.
func (srv *authService) markVerifiedByProvider(ctx context.Context, account *entity.Account) {
	if !srv.markOAuthVerified || account.IsVerified() {
		return
	}

	at := srv.now()
	changed, err := srv.repos.AccountRepo().MarkVerified(ctx, account.ID, at)
	if err != nil {
		srv.log(ctx).Warn("Failed to mark account verified from provider", slog.Any("accountID", account.ID), slog.Any("error", err))

		return
	}
	if changed {
		account.MarkVerified(at)
	}
}

// Logout terminates the session and hands back a fresh guest session. It never fails on a
// missing session; storage errors are logged.
func (srv *authService) Logout(ctx context.Context, input *usecase.LogoutInput) (*usecase.LogoutOutput, error) {
	defer srv.metrics.ObserveAuthEvent("logout", outcomeOf(nil))

	if err := srv.sessions.Invalidate(ctx, input.SessionToken); err != nil {
		srv.log(ctx).Warn("Failed to invalidate session on logout", slog.Any("error", err))
	}

	guest, err := srv.sessions.Start(ctx)
	if err != nil {
		srv.log(ctx).Warn("Failed to start guest session after logout", slog.Any("error", err))

		return &usecase.LogoutOutput{}, nil
	}

	return &usecase.LogoutOutput{Session: guest}, nil
}

// requestVerification publishes the verification mail request without holding up the
// response. Delivery is best-effort: the account is already committed, so failures are
// logged and counted only. Each publish is bounded by publishTimeout.
func (srv *authService) requestVerification(ctx context.Context, account *entity.Account, locale string) {
	if locale == "" {
		locale = srv.defaultLocale
	}

	event := &entity.VerificationEvent{
		EventID:         ulid.Make().String(),
		AccountID:       account.ID,
		Name:            account.Name,
		Email:           account.Email,
		VerificationURL: srv.verificationURL(account),
		Locale:          locale,
		RequestedAt:     srv.now().UTC(),
		RequestID:       deliverycontext.GetRequestIDFromContext(ctx),
	}

	pubCtx := context.WithoutCancel(ctx)
	srv.publishing.Add(1)
	go func() {
		defer srv.publishing.Done()
		srv.publish(pubCtx, event)
	}()
}

func (srv *authService) publish(ctx context.Context, event *entity.VerificationEvent) {
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err := srv.publisher.PublishVerificationRequested(ctx, event)
	srv.metrics.ObserveVerificationPublish(srv.publisherName, err)
	if err != nil {
		srv.log(ctx).Error("Failed to publish verification request",
			slog.Any("accountID", event.AccountID),
			slog.String("eventID", event.EventID),
			slog.Any("error", err),
		)

		return
	}

	srv.log(ctx).Debug("Verification request published", slog.Any("accountID", event.AccountID), slog.String("eventID", event.EventID))
}

func (srv *authService) verificationURL(account *entity.Account) string {
	return fmt.Sprintf("%s/email/verify/%s/%s", srv.baseURL, account.ID, srv.signer.Digest(account.Email))
}

func displayName(name, email string) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	if local, _, found := strings.Cut(email, "@"); found && local != "" {
		return local
	}

	return email
}
