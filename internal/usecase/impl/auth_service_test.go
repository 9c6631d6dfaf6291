package impl

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"coursebook/config"
	"coursebook/internal/domain/entity"
	domainerrors "coursebook/internal/domain/errors"
	"coursebook/internal/domain/repository"
	"coursebook/internal/errors"
	"coursebook/internal/i18n"
	"coursebook/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister_Success(t *testing.T) {
	env := newAuthTestEnv(t)
	ctx := context.Background()

	out, err := env.auth.Register(ctx, &usecase.RegisterInput{
		Name:     "  Siti ",
		Email:    " Siti@Example.COM",
		Password: "rahasia1",
		Locale:   "en",
	})
	require.NoError(t, err)

	account := out.Account
	assert.Equal(t, "Siti", account.Name)
	assert.Equal(t, "siti@example.com", account.Email)
	assert.Equal(t, entity.RoleUser, account.Role)
	assert.False(t, account.IsVerified())
	assert.NotEqual(t, "rahasia1", account.PasswordHash)
	assert.True(t, env.hasher.Check("rahasia1", account.PasswordHash))

	events := env.published()
	require.Len(t, events, 1)
	event := events[0]
	assert.Equal(t, account.ID, event.AccountID)
	assert.Equal(t, "siti@example.com", event.Email)
	assert.Equal(t, "en", event.Locale)
	assert.NotEmpty(t, event.EventID)
	assert.Equal(t,
		"https://courses.test/email/verify/"+account.ID.String()+"/"+env.signer.Digest(account.Email),
		event.VerificationURL,
	)

	assert.Equal(t, []string{"register:success"}, env.metrics.recorded())
}

func TestRegister_DefaultLocale(t *testing.T) {
	env := newAuthTestEnv(t)

	_, err := env.auth.Register(context.Background(), &usecase.RegisterInput{Name: "A", Email: "a@x.com", Password: "secret1"})
	require.NoError(t, err)

	events := env.published()
	require.Len(t, events, 1)
	assert.Equal(t, "id", events[0].Locale)
}

func TestRegister_ValidationErrors(t *testing.T) {
	tests := []struct {
		name       string
		input      usecase.RegisterInput
		wantFields map[string]string
	}{
		{
			name:  "all fields missing",
			input: usecase.RegisterInput{},
			wantFields: map[string]string{
				"name":     i18n.MsgNameRequired,
				"email":    i18n.MsgEmailRequired,
				"password": i18n.MsgPasswordRequired,
			},
		},
		{
			name:       "malformed email",
			input:      usecase.RegisterInput{Name: "A", Email: "not-an-email", Password: "secret1"},
			wantFields: map[string]string{"email": i18n.MsgEmailInvalid},
		},
		{
			name:       "short password",
			input:      usecase.RegisterInput{Name: "A", Email: "a@x.com", Password: "12345"},
			wantFields: map[string]string{"password": i18n.MsgPasswordMin},
		},
		{
			name:       "multi-byte password over 72 bytes",
			input:      usecase.RegisterInput{Name: "A", Email: "a@x.com", Password: strings.Repeat("é", 40)},
			wantFields: map[string]string{"password": i18n.MsgPasswordMax},
		},
		{
			name:       "blank name",
			input:      usecase.RegisterInput{Name: "   ", Email: "a@x.com", Password: "secret1"},
			wantFields: map[string]string{"name": i18n.MsgNameRequired},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newAuthTestEnv(t)

			_, err := env.auth.Register(context.Background(), &tt.input)
			require.ErrorIs(t, err, domainerrors.ErrValidationFailed)

			var verr *domainerrors.ValidationError
			require.True(t, errors.As(err, &verr))

			got := make(map[string]string)
			for _, f := range verr.Fields() {
				got[f.Field] = f.Message
			}
			assert.Equal(t, tt.wantFields, got)
			assert.Empty(t, env.published())
			assert.Nil(t, env.store.account(entity.NormalizeEmail(tt.input.Email)))
		})
	}
}

func TestRegister_PasswordMinCarriesLength(t *testing.T) {
	env := newAuthTestEnv(t)

	_, err := env.auth.Register(context.Background(), &usecase.RegisterInput{Name: "A", Email: "a@x.com", Password: "abc"})

	var verr *domainerrors.ValidationError
	require.True(t, errors.As(err, &verr))
	require.Len(t, verr.Fields(), 1)
	assert.Equal(t, []any{6}, verr.Fields()[0].Args)
}

func TestRegister_PasswordByteLimit(t *testing.T) {
	env := newAuthTestEnv(t)

	_, err := env.auth.Register(context.Background(), &usecase.RegisterInput{Name: "A", Email: "a@x.com", Password: strings.Repeat("é", 37)})
	var verr *domainerrors.ValidationError
	require.True(t, errors.As(err, &verr))
	require.Len(t, verr.Fields(), 1)
	assert.Equal(t, []any{72}, verr.Fields()[0].Args)

	out, err := env.auth.Register(context.Background(), &usecase.RegisterInput{Name: "A", Email: "a@x.com", Password: strings.Repeat("é", 36)})
	require.NoError(t, err)
	assert.True(t, env.hasher.Check(strings.Repeat("é", 36), out.Account.PasswordHash))
}

func TestRegister_EmailAlreadyRegistered(t *testing.T) {
	env := newAuthTestEnv(t)
	env.seedAccount(t, "taken@example.com", "secret1", entity.RoleUser, true)

	_, err := env.auth.Register(context.Background(), &usecase.RegisterInput{
		Name:     "Other",
		Email:    "TAKEN@example.com",
		Password: "secret2",
	})

	require.ErrorIs(t, err, domainerrors.ErrValidationFailed)
	require.ErrorIs(t, err, domainerrors.ErrDuplicateEmail)

	var verr *domainerrors.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.True(t, verr.HasField("email"))
	assert.Empty(t, env.published())
}

func TestRegister_ConcurrentDuplicateEmail(t *testing.T) {
	env := newAuthTestEnv(t)
	const attempts = 8

	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := range attempts {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.auth.Register(context.Background(), &usecase.RegisterInput{
				Name:     "Racer",
				Email:    "race@example.com",
				Password: "secret1",
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++

			continue
		}
		assert.ErrorIs(t, err, domainerrors.ErrDuplicateEmail)
	}

	assert.Equal(t, 1, succeeded)
	assert.Len(t, env.published(), 1)
}

func TestRegister_PublishFailureStillRegisters(t *testing.T) {
	env := newAuthTestEnv(t)
	env.publisher.err = errors.New("broker unavailable")

	out, err := env.auth.Register(context.Background(), &usecase.RegisterInput{Name: "A", Email: "a@x.com", Password: "secret1"})
	require.NoError(t, err)
	require.NotNil(t, env.store.account("a@x.com"))
	assert.Equal(t, out.Account.ID, env.store.account("a@x.com").ID)
	env.settle()
	assert.Equal(t, 1, env.metrics.publishErrors)
}

func TestRegister_DoesNotWaitForPublish(t *testing.T) {
	env := newAuthTestEnv(t)
	env.publisher.gate = make(chan struct{})

	registered := make(chan error, 1)
	go func() {
		_, err := env.auth.Register(context.Background(), &usecase.RegisterInput{Name: "A", Email: "a@x.com", Password: "secret1"})
		registered <- err
	}()

	select {
	case err := <-registered:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("registration waited for the broker")
	}

	srv := env.auth.(*authService)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	require.Error(t, srv.drainPublishes(ctx))

	close(env.publisher.gate)
	require.NoError(t, srv.drainPublishes(context.Background()))
	assert.Len(t, env.publisher.published(), 1)
}

func TestRegister_PersistFailure(t *testing.T) {
	env := newAuthTestEnv(t)
	cause := errors.New("connection reset")
	env.store.createErr = cause

	_, err := env.auth.Register(context.Background(), &usecase.RegisterInput{Name: "A", Email: "a@x.com", Password: "secret1"})

	require.ErrorIs(t, err, domainerrors.ErrRegistrationFailed)
	require.ErrorIs(t, err, cause)

	var appErr domainerrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "REGISTRATION_FAILED", appErr.ErrorCode())
	assert.Empty(t, env.published())
	assert.Equal(t, []string{"register:registration_failed"}, env.metrics.recorded())
}

func TestLogin_RotatesSession(t *testing.T) {
	tests := []struct {
		name string
		role entity.Role
	}{
		{name: "admin", role: entity.RoleAdmin},
		{name: "user", role: entity.RoleUser},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newAuthTestEnv(t)
			ctx := context.Background()
			account := env.seedAccount(t, tt.name+"@example.com", "secret1", tt.role, true)

			guest, err := env.sessions.Start(ctx)
			require.NoError(t, err)

			out, err := env.auth.Login(ctx, &usecase.LoginInput{
				Email:        strings.ToUpper(account.Email),
				Password:     "secret1",
				SessionToken: guest.Token,
			})
			require.NoError(t, err)

			issued := out.Session
			require.NotNil(t, issued)
			assert.True(t, issued.Session.IsAuthenticated())
			assert.Equal(t, account.ID, *issued.Session.AccountID)
			assert.Equal(t, tt.role, issued.Session.Role)
			assert.NotEqual(t, guest.Token, issued.Token)
			assert.NotEqual(t, guest.Session.CSRFToken, issued.Session.CSRFToken)

			_, err = env.sessions.Resolve(ctx, guest.Token)
			require.ErrorIs(t, err, repository.ErrSessionNotFound)

			resolved, err := env.sessions.Resolve(ctx, issued.Token)
			require.NoError(t, err)
			assert.Equal(t, issued.Session.ID, resolved.ID)
			assert.Equal(t, 1, env.store.sessionCount())
		})
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	env := newAuthTestEnv(t)
	env.seedAccount(t, "known@example.com", "secret1", entity.RoleUser, true)

	tests := []struct {
		name  string
		input usecase.LoginInput
	}{
		{name: "unknown email", input: usecase.LoginInput{Email: "nobody@example.com", Password: "secret1"}},
		{name: "wrong password", input: usecase.LoginInput{Email: "known@example.com", Password: "wrong-pass"}},
		{name: "password shorter than the registration minimum", input: usecase.LoginInput{Email: "known@example.com", Password: "abc"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := env.auth.Login(context.Background(), &tt.input)
			assert.Nil(t, out)
			require.ErrorIs(t, err, domainerrors.ErrInvalidCredentials)

			var appErr domainerrors.AppError
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, domainerrors.ErrInvalidCredentials.Message(), appErr.Message())
		})
	}
	assert.Zero(t, env.store.sessionCount())
}

func TestLogin_MissingFields(t *testing.T) {
	env := newAuthTestEnv(t)

	_, err := env.auth.Login(context.Background(), &usecase.LoginInput{})
	require.ErrorIs(t, err, domainerrors.ErrValidationFailed)

	var verr *domainerrors.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.True(t, verr.HasField("email"))
	assert.True(t, verr.HasField("password"))
}

func TestLogin_UnverifiedAccountGetsNoSession(t *testing.T) {
	env := newAuthTestEnv(t)
	ctx := context.Background()
	env.seedAccount(t, "new@example.com", "secret1", entity.RoleUser, false)

	guest, err := env.sessions.Start(ctx)
	require.NoError(t, err)

	out, err := env.auth.Login(ctx, &usecase.LoginInput{Email: "new@example.com", Password: "secret1", SessionToken: guest.Token})
	assert.Nil(t, out)
	require.ErrorIs(t, err, domainerrors.ErrUnverifiedAccount)

	assert.Zero(t, env.store.sessionCount())
	assert.Equal(t, []string{"login:unverified_account"}, env.metrics.recorded())
}

func TestVerify_Outcomes(t *testing.T) {
	env := newAuthTestEnv(t)
	ctx := context.Background()
	account := env.seedAccount(t, "verify@example.com", "secret1", entity.RoleUser, false)
	digest := env.signer.Digest(account.Email)

	out, err := env.auth.Verify(ctx, &usecase.VerifyInput{AccountID: account.ID.String(), Digest: digest})
	require.NoError(t, err)
	assert.Equal(t, entity.VerifiedNow, out.Outcome)
	require.NotNil(t, out.Account.EmailVerifiedAt)
	firstStamp := *out.Account.EmailVerifiedAt

	again, err := env.auth.Verify(ctx, &usecase.VerifyInput{AccountID: account.ID.String(), Digest: digest})
	require.NoError(t, err)
	assert.Equal(t, entity.AlreadyVerified, again.Outcome)

	stored := env.store.account(account.Email)
	require.NotNil(t, stored.EmailVerifiedAt)
	assert.Equal(t, firstStamp, *stored.EmailVerifiedAt)
}

func TestVerify_ConcurrentLinksVerifyOnce(t *testing.T) {
	env := newAuthTestEnv(t)
	account := env.seedAccount(t, "twice@example.com", "secret1", entity.RoleUser, false)
	input := &usecase.VerifyInput{AccountID: account.ID.String(), Digest: env.signer.Digest(account.Email)}
	const attempts = 6

	var wg sync.WaitGroup
	outcomes := make([]entity.VerifyOutcome, attempts)
	for i := range attempts {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out, err := env.auth.Verify(context.Background(), input)
			if assert.NoError(t, err) {
				outcomes[i] = out.Outcome
			}
		}(i)
	}
	wg.Wait()

	verifiedNow := 0
	for _, outcome := range outcomes {
		if outcome == entity.VerifiedNow {
			verifiedNow++
		}
	}
	assert.Equal(t, 1, verifiedNow)
}

func TestVerify_Rejections(t *testing.T) {
	env := newAuthTestEnv(t)
	account := env.seedAccount(t, "reject@example.com", "secret1", entity.RoleUser, false)
	digest := env.signer.Digest(account.Email)

	tests := []struct {
		name    string
		input   usecase.VerifyInput
		wantErr error
	}{
		{name: "tampered digest", input: usecase.VerifyInput{AccountID: account.ID.String(), Digest: tamper(digest)}, wantErr: domainerrors.ErrInvalidLink},
		{name: "digest of another email", input: usecase.VerifyInput{AccountID: account.ID.String(), Digest: env.signer.Digest("other@example.com")}, wantErr: domainerrors.ErrInvalidLink},
		{name: "empty digest", input: usecase.VerifyInput{AccountID: account.ID.String()}, wantErr: domainerrors.ErrInvalidLink},
		{name: "unknown account", input: usecase.VerifyInput{AccountID: "018f4e8e-0000-7000-8000-000000000000", Digest: digest}, wantErr: domainerrors.ErrAccountNotFound},
		{name: "malformed id", input: usecase.VerifyInput{AccountID: "42", Digest: digest}, wantErr: domainerrors.ErrAccountNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := env.auth.Verify(context.Background(), &tt.input)
			assert.Nil(t, out)
			require.ErrorIs(t, err, tt.wantErr)
			assert.False(t, env.store.account(account.Email).IsVerified())
		})
	}
}

func TestResendVerification(t *testing.T) {
	env := newAuthTestEnv(t)
	ctx := context.Background()
	pending := env.seedAccount(t, "pending@example.com", "secret1", entity.RoleUser, false)
	env.seedAccount(t, "done@example.com", "secret1", entity.RoleUser, true)

	require.NoError(t, env.auth.ResendVerification(ctx, &usecase.ResendVerificationInput{Email: "done@example.com"}))
	require.NoError(t, env.auth.ResendVerification(ctx, &usecase.ResendVerificationInput{Email: "ghost@example.com"}))
	assert.Empty(t, env.published())

	require.NoError(t, env.auth.ResendVerification(ctx, &usecase.ResendVerificationInput{Email: "Pending@example.com", Locale: "en"}))
	events := env.published()
	require.Len(t, events, 1)
	assert.Equal(t, pending.ID, events[0].AccountID)
	assert.Equal(t, "en", events[0].Locale)

	err := env.auth.ResendVerification(ctx, &usecase.ResendVerificationInput{Email: "bad"})
	require.ErrorIs(t, err, domainerrors.ErrValidationFailed)
}

func TestBeginOAuth(t *testing.T) {
	env := newAuthTestEnv(t)

	out, err := env.auth.BeginOAuth(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, out.SignedState)

	_, state, found := strings.Cut(out.RedirectURL, "state=")
	require.True(t, found)
	require.NoError(t, env.state.Validate(out.SignedState, state))
}

func TestOAuthLogin_CreatesOrLinksAccount(t *testing.T) {
	env := newAuthTestEnv(t)
	ctx := context.Background()

	begin, err := env.auth.BeginOAuth(ctx)
	require.NoError(t, err)
	_, state, _ := strings.Cut(begin.RedirectURL, "state=")

	first, err := env.auth.OAuthLogin(ctx, &usecase.OAuthLoginInput{Code: "good-code", State: state, SignedState: begin.SignedState})
	require.NoError(t, err)
	assert.True(t, first.Created)
	assert.Equal(t, "budi@example.com", first.Account.Email)
	assert.Equal(t, "Budi", first.Account.Name)
	assert.Equal(t, entity.RoleUser, first.Account.Role)
	assert.True(t, first.Account.IsVerified())
	assert.False(t, env.hasher.Check("", first.Account.PasswordHash))
	assert.True(t, first.Session.Session.IsAuthenticated())

	second, err := env.auth.OAuthLogin(ctx, &usecase.OAuthLoginInput{
		Code:         "good-code",
		State:        state,
		SignedState:  begin.SignedState,
		SessionToken: first.Session.Token,
	})
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, first.Account.ID, second.Account.ID)

	_, err = env.sessions.Resolve(ctx, first.Session.Token)
	require.ErrorIs(t, err, repository.ErrSessionNotFound)
	assert.Equal(t, 1, env.store.sessionCount())
}

func TestOAuthLogin_LinksExistingLocalAccount(t *testing.T) {
	env := newAuthTestEnv(t)
	ctx := context.Background()
	local := env.seedAccount(t, "budi@example.com", "secret1", entity.RoleAdmin, false)

	state, signed, err := env.state.Issue()
	require.NoError(t, err)

	out, err := env.auth.OAuthLogin(ctx, &usecase.OAuthLoginInput{Code: "good-code", State: state, SignedState: signed})
	require.NoError(t, err)
	assert.False(t, out.Created)
	assert.Equal(t, local.ID, out.Account.ID)
	assert.Equal(t, entity.RoleAdmin, out.Session.Session.Role)
	assert.True(t, out.Account.IsVerified())
	assert.True(t, env.hasher.Check("secret1", out.Account.PasswordHash))
}

func TestOAuthLogin_LeavesAccountUnverifiedWhenDisabled(t *testing.T) {
	env := newAuthTestEnv(t, func(cfg *config.Config) { cfg.Verification.MarkOAuthVerified = false })

	state, signed, err := env.state.Issue()
	require.NoError(t, err)

	out, err := env.auth.OAuthLogin(context.Background(), &usecase.OAuthLoginInput{Code: "good-code", State: state, SignedState: signed})
	require.NoError(t, err)
	assert.True(t, out.Created)
	assert.False(t, out.Account.IsVerified())
}

func TestOAuthLogin_Failures(t *testing.T) {
	tests := []struct {
		name  string
		setup func(env *authTestEnv) *usecase.OAuthLoginInput
	}{
		{
			name: "state mismatch",
			setup: func(env *authTestEnv) *usecase.OAuthLoginInput {
				_, signed, _ := env.state.Issue()

				return &usecase.OAuthLoginInput{Code: "good-code", State: "forged", SignedState: signed}
			},
		},
		{
			name: "missing signed state",
			setup: func(env *authTestEnv) *usecase.OAuthLoginInput {
				state, _, _ := env.state.Issue()

				return &usecase.OAuthLoginInput{Code: "good-code", State: state}
			},
		},
		{
			name: "missing code",
			setup: func(env *authTestEnv) *usecase.OAuthLoginInput {
				state, signed, _ := env.state.Issue()

				return &usecase.OAuthLoginInput{State: state, SignedState: signed}
			},
		},
		{
			name: "exchange rejected",
			setup: func(env *authTestEnv) *usecase.OAuthLoginInput {
				state, signed, _ := env.state.Issue()

				return &usecase.OAuthLoginInput{Code: "stale-code", State: state, SignedState: signed}
			},
		},
		{
			name: "provider email unverified",
			setup: func(env *authTestEnv) *usecase.OAuthLoginInput {
				env.oauth.user.EmailVerified = false
				state, signed, _ := env.state.Issue()

				return &usecase.OAuthLoginInput{Code: "good-code", State: state, SignedState: signed}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newAuthTestEnv(t)

			out, err := env.auth.OAuthLogin(context.Background(), tt.setup(env))
			assert.Nil(t, out)
			require.ErrorIs(t, err, domainerrors.ErrOAuthFailed)
			assert.Nil(t, env.store.account("budi@example.com"))
			assert.Zero(t, env.store.sessionCount())
		})
	}
}

func TestLogout(t *testing.T) {
	env := newAuthTestEnv(t)
	ctx := context.Background()
	account := env.seedAccount(t, "out@example.com", "secret1", entity.RoleUser, true)

	login, err := env.auth.Login(ctx, &usecase.LoginInput{Email: account.Email, Password: "secret1"})
	require.NoError(t, err)

	out, err := env.auth.Logout(ctx, &usecase.LogoutInput{SessionToken: login.Session.Token})
	require.NoError(t, err)
	require.NotNil(t, out.Session)
	assert.False(t, out.Session.Session.IsAuthenticated())
	assert.NotEqual(t, login.Session.Session.CSRFToken, out.Session.Session.CSRFToken)

	_, err = env.sessions.Resolve(ctx, login.Session.Token)
	require.ErrorIs(t, err, repository.ErrSessionNotFound)

	again, err := env.auth.Logout(ctx, &usecase.LogoutInput{})
	require.NoError(t, err)
	assert.NotNil(t, again.Session)
}

func TestRegisterVerifyLogin_EndToEnd(t *testing.T) {
	env := newAuthTestEnv(t)
	ctx := context.Background()

	_, err := env.auth.Register(ctx, &usecase.RegisterInput{Name: "Ani", Email: "ani@example.com", Password: "secret1"})
	require.NoError(t, err)

	_, err = env.auth.Login(ctx, &usecase.LoginInput{Email: "ani@example.com", Password: "secret1"})
	require.ErrorIs(t, err, domainerrors.ErrUnverifiedAccount)

	events := env.published()
	require.Len(t, events, 1)
	parts := strings.Split(events[0].VerificationURL, "/")
	require.GreaterOrEqual(t, len(parts), 2)
	id, digest := parts[len(parts)-2], parts[len(parts)-1]

	verified, err := env.auth.Verify(ctx, &usecase.VerifyInput{AccountID: id, Digest: digest})
	require.NoError(t, err)
	assert.Equal(t, entity.VerifiedNow, verified.Outcome)

	login, err := env.auth.Login(ctx, &usecase.LoginInput{Email: "ani@example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, entity.RoleUser, login.Session.Session.Role)
}

// tamper flips the last hex digit of a digest.
func tamper(digest string) string {
	replacement := "0"
	if strings.HasSuffix(digest, "0") {
		replacement = "1"
	}

	return digest[:len(digest)-1] + replacement
}
