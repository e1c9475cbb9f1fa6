package usecase

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quangdng/task-tracker-api/services/auth-service/internal/registry"
)

var tokenPattern = regexp.MustCompile(`code is: ([0-9]{6})`)

type resetFixture struct {
	repo     *fakeUserRepository
	tokens   *registry.MemoryRegistry
	sender   *fakeEmailSender
	authUC   AuthUsecase
	resetUC  PasswordResetUsecase
	totalTTL time.Duration
}

func newResetFixture(t *testing.T, ttl time.Duration) *resetFixture {
	t.Helper()

	repo := newFakeUserRepository()
	tokens := registry.NewMemoryRegistry(ttl, 0)
	t.Cleanup(tokens.Close)
	sender := &fakeEmailSender{}

	return &resetFixture{
		repo:     repo,
		tokens:   tokens,
		sender:   sender,
		authUC:   newTestAuthUsecase(repo, nil),
		resetUC:  NewPasswordResetUsecase(repo, tokens, sender),
		totalTTL: ttl,
	}
}

// requestToken runs the forgot-password flow and pulls the issued token out
// of the captured email.
func (f *resetFixture) requestToken(t *testing.T, email string) string {
	t.Helper()

	msg, err := f.resetUC.ForgotPassword(context.Background(), email)
	require.NoError(t, err)
	require.NotEmpty(t, msg)

	sent, ok := f.sender.lastSent()
	require.True(t, ok)
	require.Equal(t, []string{email}, sent.to)

	match := tokenPattern.FindStringSubmatch(sent.body)
	require.Len(t, match, 2)

	return match[1]
}

func TestForgotPasswordUnknownEmail(t *testing.T) {
	f := newResetFixture(t, registry.DefaultTokenTTL)

	_, err := f.resetUC.ForgotPassword(context.Background(), "nobody@x.com")
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, sent := f.sender.lastSent()
	assert.False(t, sent)
}

func TestForgotPasswordIssuesLiveToken(t *testing.T) {
	f := newResetFixture(t, registry.DefaultTokenTTL)
	registerTestUser(t, f.authUC, "alice", "a@x.com", "pw1")

	token := f.requestToken(t, "a@x.com")
	require.NoError(t, f.tokens.Verify(context.Background(), "a@x.com", token))
}

func TestForgotPasswordMailFailure(t *testing.T) {
	f := newResetFixture(t, registry.DefaultTokenTTL)
	registerTestUser(t, f.authUC, "alice", "a@x.com", "pw1")
	f.sender.err = errors.New("smtp unreachable")

	_, err := f.resetUC.ForgotPassword(context.Background(), "a@x.com")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUserNotFound)
}

func TestResetPasswordEndToEnd(t *testing.T) {
	f := newResetFixture(t, registry.DefaultTokenTTL)
	registerTestUser(t, f.authUC, "alice", "a@x.com", "pw1")
	token := f.requestToken(t, "a@x.com")

	err := f.resetUC.ResetPassword(context.Background(), ResetPasswordParams{
		Email:           "a@x.com",
		Token:           token,
		NewPassword:     "pw2",
		ConfirmPassword: "pw2",
	})
	require.NoError(t, err)

	_, err = f.authUC.Login(context.Background(), LoginParams{Email: "a@x.com", Password: "pw1"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = f.authUC.Login(context.Background(), LoginParams{Email: "a@x.com", Password: "pw2"})
	require.NoError(t, err)

	// The token is spent for good.
	err = f.resetUC.ResetPassword(context.Background(), ResetPasswordParams{
		Email:           "a@x.com",
		Token:           token,
		NewPassword:     "pw3",
		ConfirmPassword: "pw3",
	})
	assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)
}

func TestResetPasswordValidation(t *testing.T) {
	f := newResetFixture(t, registry.DefaultTokenTTL)
	registerTestUser(t, f.authUC, "alice", "a@x.com", "pw1")
	token := f.requestToken(t, "a@x.com")

	tests := []struct {
		name    string
		params  ResetPasswordParams
		wantErr error
	}{
		{
			name:    "empty email",
			params:  ResetPasswordParams{Token: token, NewPassword: "pw2", ConfirmPassword: "pw2"},
			wantErr: ErrMissingField,
		},
		{
			name:    "empty token",
			params:  ResetPasswordParams{Email: "a@x.com", NewPassword: "pw2", ConfirmPassword: "pw2"},
			wantErr: ErrMissingField,
		},
		{
			name:    "empty password",
			params:  ResetPasswordParams{Email: "a@x.com", Token: token},
			wantErr: ErrMissingField,
		},
		{
			name: "confirmation mismatch",
			params: ResetPasswordParams{
				Email: "a@x.com", Token: token,
				NewPassword: "pw2", ConfirmPassword: "pw3",
			},
			wantErr: ErrPasswordMismatch,
		},
		{
			name: "unknown email",
			params: ResetPasswordParams{
				Email: "nobody@x.com", Token: token,
				NewPassword: "pw2", ConfirmPassword: "pw2",
			},
			wantErr: ErrUserNotFound,
		},
		{
			name: "wrong token",
			params: ResetPasswordParams{
				Email: "a@x.com", Token: "0000000",
				NewPassword: "pw2", ConfirmPassword: "pw2",
			},
			wantErr: ErrInvalidOrExpiredToken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.resetUC.ResetPassword(context.Background(), tt.params)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	// None of the rejected attempts consumed the token.
	require.NoError(t, f.tokens.Verify(context.Background(), "a@x.com", token))
}

func TestResetPasswordSameAsOld(t *testing.T) {
	f := newResetFixture(t, registry.DefaultTokenTTL)
	registerTestUser(t, f.authUC, "alice", "a@x.com", "pw1")
	token := f.requestToken(t, "a@x.com")

	err := f.resetUC.ResetPassword(context.Background(), ResetPasswordParams{
		Email:           "a@x.com",
		Token:           token,
		NewPassword:     "pw1",
		ConfirmPassword: "pw1",
	})
	assert.ErrorIs(t, err, ErrSamePassword)

	// The rejection leaves the token live for another attempt.
	err = f.resetUC.ResetPassword(context.Background(), ResetPasswordParams{
		Email:           "a@x.com",
		Token:           token,
		NewPassword:     "pw2",
		ConfirmPassword: "pw2",
	})
	require.NoError(t, err)
}

func TestResetPasswordExpiredToken(t *testing.T) {
	f := newResetFixture(t, time.Nanosecond)
	registerTestUser(t, f.authUC, "alice", "a@x.com", "pw1")
	token := f.requestToken(t, "a@x.com")

	time.Sleep(time.Millisecond)

	err := f.resetUC.ResetPassword(context.Background(), ResetPasswordParams{
		Email:           "a@x.com",
		Token:           token,
		NewPassword:     "pw2",
		ConfirmPassword: "pw2",
	})
	assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)
}

func TestResetPasswordRestoresTokenOnWriteFailure(t *testing.T) {
	f := newResetFixture(t, registry.DefaultTokenTTL)
	registerTestUser(t, f.authUC, "alice", "a@x.com", "pw1")
	token := f.requestToken(t, "a@x.com")

	f.repo.setUpdateErr(errors.New("mongo unavailable"))
	err := f.resetUC.ResetPassword(context.Background(), ResetPasswordParams{
		Email:           "a@x.com",
		Token:           token,
		NewPassword:     "pw2",
		ConfirmPassword: "pw2",
	})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidOrExpiredToken)

	// The failed write put the token back; a retry succeeds.
	f.repo.setUpdateErr(nil)
	err = f.resetUC.ResetPassword(context.Background(), ResetPasswordParams{
		Email:           "a@x.com",
		Token:           token,
		NewPassword:     "pw2",
		ConfirmPassword: "pw2",
	})
	require.NoError(t, err)
}

func TestConcurrentResetSingleWinner(t *testing.T) {
	f := newResetFixture(t, registry.DefaultTokenTTL)
	registerTestUser(t, f.authUC, "alice", "a@x.com", "pw-original")

	for i := 0; i < 20; i++ {
		token := f.requestToken(t, "a@x.com")

		passwords := []string{"pw-first-" + token, "pw-second-" + token}
		results := make(chan error, len(passwords))

		var start, done sync.WaitGroup
		start.Add(1)
		done.Add(len(passwords))
		for _, password := range passwords {
			go func(password string) {
				defer done.Done()
				start.Wait()
				results <- f.resetUC.ResetPassword(context.Background(), ResetPasswordParams{
					Email:           "a@x.com",
					Token:           token,
					NewPassword:     password,
					ConfirmPassword: password,
				})
			}(password)
		}
		start.Done()
		done.Wait()
		close(results)

		winners := 0
		for err := range results {
			if err == nil {
				winners++
			} else {
				assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)
			}
		}

		assert.Equal(t, 1, winners)
	}
}

func TestResetPasswordRegistryOutageSurfacesCause(t *testing.T) {
	f := newResetFixture(t, registry.DefaultTokenTTL)
	registerTestUser(t, f.authUC, "alice", "a@x.com", "pw1")
	token := f.requestToken(t, "a@x.com")

	dbDown := errors.New("server selection timeout")
	flaky := &flakyTokenRegistry{ResetTokenRegistry: f.tokens}
	resetUC := NewPasswordResetUsecase(f.repo, flaky, f.sender)

	params := ResetPasswordParams{
		Email:           "a@x.com",
		Token:           token,
		NewPassword:     "pw2",
		ConfirmPassword: "pw2",
	}

	flaky.verifyErr = dbDown
	err := resetUC.ResetPassword(context.Background(), params)
	assert.ErrorIs(t, err, dbDown)
	assert.NotErrorIs(t, err, ErrInvalidOrExpiredToken)

	flaky.verifyErr = nil
	flaky.consumeErr = dbDown
	err = resetUC.ResetPassword(context.Background(), params)
	assert.ErrorIs(t, err, dbDown)
	assert.NotErrorIs(t, err, ErrInvalidOrExpiredToken)

	// The outage did not spend the token; a retry succeeds.
	flaky.consumeErr = nil
	require.NoError(t, resetUC.ResetPassword(context.Background(), params))
}

func TestResetPasswordFailedRestoreSurfacesBothCauses(t *testing.T) {
	f := newResetFixture(t, registry.DefaultTokenTTL)
	registerTestUser(t, f.authUC, "alice", "a@x.com", "pw1")
	token := f.requestToken(t, "a@x.com")

	writeErr := errors.New("mongo unavailable")
	restoreErr := errors.New("registry unavailable")
	flaky := &flakyTokenRegistry{ResetTokenRegistry: f.tokens, restoreErr: restoreErr}
	resetUC := NewPasswordResetUsecase(f.repo, flaky, f.sender)

	f.repo.setUpdateErr(writeErr)
	err := resetUC.ResetPassword(context.Background(), ResetPasswordParams{
		Email:           "a@x.com",
		Token:           token,
		NewPassword:     "pw2",
		ConfirmPassword: "pw2",
	})
	assert.ErrorIs(t, err, writeErr)
	assert.ErrorIs(t, err, restoreErr)
}
