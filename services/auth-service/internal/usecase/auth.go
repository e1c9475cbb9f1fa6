package usecase

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/quangdng/task-tracker-api/services/auth-service/internal/model"
	"github.com/quangdng/task-tracker-api/services/auth-service/internal/repository"
	"github.com/quangdng/task-tracker-api/shared/auth"
	"github.com/quangdng/task-tracker-api/shared/provider"
	"github.com/quangdng/task-tracker-api/shared/security"
)

const (
	// defaultProfileImageURL is assigned to accounts registered with a
	// password; Google accounts use the provider's picture instead.
	defaultProfileImageURL = "https://cdn-icons-png.flaticon.com/512/8801/8801434.png"

	defaultRole = "ROLE_USER"
)

var (
	ErrUserAlreadyExists = errors.New("username or email already exists")
	ErrUserNotFound      = errors.New("user not found")
	ErrPasswordMismatch  = errors.New("password and confirmation do not match")
	ErrEmailNotVerified  = errors.New("email not verified by provider")

	// ErrInvalidCredentials covers both an unknown email and a wrong
	// password at login, so callers cannot probe which addresses have an
	// account.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// AuthUsecase defines the authentication and account operations exposed to
// the transport layer.
type AuthUsecase interface {
	Register(ctx context.Context, params RegisterParams) (*Profile, error)
	Login(ctx context.Context, params LoginParams) (*LoginResult, error)
	AuthenticateWithGoogle(ctx context.Context, accessToken string) (*LoginResult, error)
	UpdateProfile(ctx context.Context, userID string, params UpdateProfileParams) error
	UpdatePassword(ctx context.Context, userID string, params UpdatePasswordParams) error
	ExtractUserID(token string) (string, error)
}

// RegisterParams defines the parameters for user registration.
type RegisterParams struct {
	Username        string
	Email           string
	Password        string
	ConfirmPassword string
}

// LoginParams defines the parameters for user login.
type LoginParams struct {
	Email    string
	Password string
}

// UpdateProfileParams defines the optional profile fields to change.
type UpdateProfileParams struct {
	Username        *string
	ProfileImageURL *string
}

// UpdatePasswordParams defines the parameters for a password change. The old
// password is not required; this mirrors the product's current flow.
type UpdatePasswordParams struct {
	NewPassword     string
	ConfirmPassword string
}

// Profile is the public view of an account.
type Profile struct {
	UserID          string
	Username        string
	Email           string
	ProfileImageURL string
}

// LoginResult is a profile plus a freshly minted session token.
type LoginResult struct {
	Profile Profile
	Token   string
}

type authUsecase struct {
	userRepo repository.UserRepository
	codec    *auth.SessionCodec
	google   provider.GoogleVerifier
}

func NewAuthUsecase(
	userRepo repository.UserRepository,
	codec *auth.SessionCodec,
	google provider.GoogleVerifier,
) AuthUsecase {
	return &authUsecase{
		userRepo: userRepo,
		codec:    codec,
		google:   google,
	}
}

func (u *authUsecase) Register(ctx context.Context, params RegisterParams) (*Profile, error) {
	if params.Password != params.ConfirmPassword {
		return nil, ErrPasswordMismatch
	}

	if taken, err := u.userRepo.ExistsByUsername(ctx, params.Username); err != nil {
		return nil, fmt.Errorf("failed to check username: %w", err)
	} else if taken {
		return nil, ErrUserAlreadyExists
	}

	if taken, err := u.userRepo.ExistsByEmail(ctx, params.Email); err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	} else if taken {
		return nil, ErrUserAlreadyExists
	}

	passwordHash, err := security.HashPassword(params.Password)
	if err != nil {
		return nil, err
	}

	user, err := u.userRepo.CreateUser(ctx, &model.User{
		Username:        params.Username,
		Email:           params.Email,
		PasswordHash:    passwordHash,
		ProfileImageURL: defaultProfileImageURL,
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrUserAlreadyExists
		}

		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	// No session token at registration; the caller logs in separately.
	profile := profileOf(user)
	return &profile, nil
}

func (u *authUsecase) Login(ctx context.Context, params LoginParams) (*LoginResult, error) {
	user, err := u.userRepo.GetUserByEmail(ctx, params.Email)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrInvalidCredentials
		}

		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if ok, err := security.VerifyPassword(params.Password, user.PasswordHash); err != nil {
		return nil, err
	} else if !ok {
		return nil, ErrInvalidCredentials
	}

	return u.openSession(ctx, user)
}

func (u *authUsecase) AuthenticateWithGoogle(ctx context.Context, accessToken string) (*LoginResult, error) {
	info, err := u.google.Verify(ctx, accessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to verify google token: %w", err)
	}

	if !info.EmailVerified {
		return nil, ErrEmailNotVerified
	}

	user, err := u.userRepo.GetUserByEmail(ctx, info.Email)
	if err != nil {
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("failed to look up user: %w", err)
		}

		user, err = u.registerGoogleUser(ctx, info)
		if err != nil {
			return nil, err
		}
	}

	return u.openSession(ctx, user)
}

// registerGoogleUser auto-registers an account for a verified Google
// identity. The stored credential is a hash of a random value that is never
// disclosed, so the account cannot be entered with a password until the owner
// resets it.
func (u *authUsecase) registerGoogleUser(ctx context.Context, info *provider.GoogleUserInfo) (*model.User, error) {
	username, err := u.generateUsername(ctx, info.Email)
	if err != nil {
		return nil, err
	}

	placeholderHash, err := security.HashPassword(uuid.NewString())
	if err != nil {
		return nil, err
	}

	pictureURL := info.Picture
	if pictureURL == "" {
		pictureURL = defaultProfileImageURL
	}

	user, err := u.userRepo.CreateUser(ctx, &model.User{
		Username:        username,
		Email:           info.Email,
		PasswordHash:    placeholderHash,
		ProfileImageURL: pictureURL,
		GoogleSubject:   info.Subject,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

// generateUsername derives a unique username from the email's local part,
// appending a counter on collision.
func (u *authUsecase) generateUsername(ctx context.Context, email string) (string, error) {
	base := strings.SplitN(email, "@", 2)[0]

	username := base
	for counter := 1; ; counter++ {
		taken, err := u.userRepo.ExistsByUsername(ctx, username)
		if err != nil {
			return "", fmt.Errorf("failed to check username: %w", err)
		}
		if !taken {
			return username, nil
		}

		username = base + strconv.Itoa(counter)
	}
}

func (u *authUsecase) UpdateProfile(ctx context.Context, userID string, params UpdateProfileParams) error {
	if params.Username == nil && params.ProfileImageURL == nil {
		return nil
	}

	_, err := u.userRepo.UpdateUser(ctx, userID, repository.UpdateUserParams{
		Username:        params.Username,
		ProfileImageURL: params.ProfileImageURL,
	})
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrUserNotFound
		}
		if mongo.IsDuplicateKeyError(err) {
			return ErrUserAlreadyExists
		}

		return fmt.Errorf("failed to update profile: %w", err)
	}

	return nil
}

func (u *authUsecase) UpdatePassword(ctx context.Context, userID string, params UpdatePasswordParams) error {
	if params.NewPassword != params.ConfirmPassword {
		return ErrPasswordMismatch
	}

	passwordHash, err := security.HashPassword(params.NewPassword)
	if err != nil {
		return err
	}

	_, err = u.userRepo.UpdateUser(ctx, userID, repository.UpdateUserParams{
		PasswordHash: &passwordHash,
	})
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrUserNotFound
		}

		return fmt.Errorf("failed to update password: %w", err)
	}

	return nil
}

func (u *authUsecase) ExtractUserID(token string) (string, error) {
	return u.codec.ExtractUserID(token)
}

// openSession stamps the login time and mints a session token.
func (u *authUsecase) openSession(ctx context.Context, user *model.User) (*LoginResult, error) {
	now := time.Now()
	updated, err := u.userRepo.UpdateUser(ctx, user.ID.Hex(), repository.UpdateUserParams{
		LastLoginAt: &now,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record login time: %w", err)
	}

	token, err := u.codec.Issue(updated.Email, updated.ID.Hex(), []string{defaultRole})
	if err != nil {
		return nil, fmt.Errorf("failed to issue session token: %w", err)
	}

	return &LoginResult{
		Profile: profileOf(updated),
		Token:   token,
	}, nil
}

func profileOf(user *model.User) Profile {
	return Profile{
		UserID:          user.ID.Hex(),
		Username:        user.Username,
		Email:           user.Email,
		ProfileImageURL: user.ProfileImageURL,
	}
}
