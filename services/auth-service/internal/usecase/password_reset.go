package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/quangdng/task-tracker-api/services/auth-service/internal/registry"
	"github.com/quangdng/task-tracker-api/services/auth-service/internal/repository"
	"github.com/quangdng/task-tracker-api/shared/security"
)

var (
	// ErrInvalidOrExpiredToken covers every reset token rejection: unknown,
	// expired, or already consumed. The causes are collapsed so the caller
	// cannot tell which check rejected the token. Registry infrastructure
	// failures are wrapped and returned as-is instead.
	ErrInvalidOrExpiredToken = errors.New("reset token is invalid or has expired")

	ErrSamePassword = errors.New("new password must differ from the old password")
	ErrMissingField = errors.New("missing required field")
)

const resetEmailSubject = "Password Reset - Task Tracker"

// PasswordResetUsecase defines the forgot/reset password flow.
type PasswordResetUsecase interface {
	// ForgotPassword issues a reset token for the account and emails it to
	// the owner. It returns a user-facing confirmation message.
	ForgotPassword(ctx context.Context, email string) (string, error)

	// ResetPassword redeems a reset token and replaces the account password.
	ResetPassword(ctx context.Context, params ResetPasswordParams) error
}

// ResetPasswordParams defines the parameters for redeeming a reset token.
type ResetPasswordParams struct {
	Email           string
	Token           string
	NewPassword     string
	ConfirmPassword string
}

// EmailSender delivers a rendered message to a destination address.
type EmailSender interface {
	SendPlain(to []string, subject, body string) error
}

type passwordResetUsecase struct {
	userRepo repository.UserRepository
	tokens   registry.ResetTokenRegistry
	sender   EmailSender
}

// NewPasswordResetUsecase creates a new instance of PasswordResetUsecase.
func NewPasswordResetUsecase(
	userRepo repository.UserRepository,
	tokens registry.ResetTokenRegistry,
	sender EmailSender,
) PasswordResetUsecase {
	return &passwordResetUsecase{
		userRepo: userRepo,
		tokens:   tokens,
		sender:   sender,
	}
}

func (u *passwordResetUsecase) ForgotPassword(ctx context.Context, email string) (string, error) {
	user, err := u.userRepo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", ErrUserNotFound
		}

		return "", fmt.Errorf("failed to look up user: %w", err)
	}

	token, err := u.tokens.Issue(ctx, user.Email)
	if err != nil {
		return "", fmt.Errorf("failed to issue reset token: %w", err)
	}

	body := buildResetPasswordEmail(user.Username, token)
	if err := u.sender.SendPlain([]string{user.Email}, resetEmailSubject, body); err != nil {
		return "", fmt.Errorf("failed to send password reset email: %w", err)
	}

	return "A password reset email has been sent. Please check your inbox.", nil
}

func (u *passwordResetUsecase) ResetPassword(ctx context.Context, params ResetPasswordParams) error {
	switch {
	case params.Email == "":
		return fmt.Errorf("%w: email", ErrMissingField)
	case params.Token == "":
		return fmt.Errorf("%w: token", ErrMissingField)
	case params.NewPassword == "":
		return fmt.Errorf("%w: new password", ErrMissingField)
	}

	if params.NewPassword != params.ConfirmPassword {
		return ErrPasswordMismatch
	}

	user, err := u.userRepo.GetUserByEmail(ctx, params.Email)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrUserNotFound
		}

		return fmt.Errorf("failed to look up user: %w", err)
	}

	if err := u.tokens.Verify(ctx, params.Email, params.Token); err != nil {
		if isTokenRejection(err) {
			return ErrInvalidOrExpiredToken
		}

		return fmt.Errorf("failed to verify reset token: %w", err)
	}

	// The token must survive a rejected password, so this check runs before
	// consumption.
	if same, err := security.VerifyPassword(params.NewPassword, user.PasswordHash); err != nil {
		return err
	} else if same {
		return ErrSamePassword
	}

	passwordHash, err := security.HashPassword(params.NewPassword)
	if err != nil {
		return err
	}

	// Consumption is the linearization point: of two concurrent redemptions
	// only one reaches the password write.
	if err := u.tokens.Consume(ctx, params.Email, params.Token); err != nil {
		if isTokenRejection(err) {
			return ErrInvalidOrExpiredToken
		}

		return fmt.Errorf("failed to consume reset token: %w", err)
	}

	now := time.Now()
	_, err = u.userRepo.UpdateUser(ctx, user.ID.Hex(), repository.UpdateUserParams{
		PasswordHash: &passwordHash,
		LastLoginAt:  &now,
	})
	if err != nil {
		err = fmt.Errorf("failed to update password: %w", err)

		// Compensate so the owner can retry with the same token. A failed
		// compensation leaves the token consumed; surface both causes.
		if restoreErr := u.tokens.Restore(ctx, params.Email, params.Token); restoreErr != nil {
			err = errors.Join(err, fmt.Errorf("failed to restore reset token: %w", restoreErr))
		}

		return err
	}

	return nil
}

// isTokenRejection reports whether the registry rejected the token itself, as
// opposed to failing to reach its backing store.
func isTokenRejection(err error) bool {
	return errors.Is(err, registry.ErrTokenNotFound) || errors.Is(err, registry.ErrTokenAlreadyUsed)
}

func buildResetPasswordEmail(username, token string) string {
	return fmt.Sprintf(`Hi %s,

You requested to reset the password for your Task Tracker account.

Your confirmation code is: %s

This code will expire in 15 minutes.

If you did not request a password reset, please ignore this email.

Thanks,
Task Tracker Team
`, username, token)
}
