package usecase

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/quangdng/task-tracker-api/services/auth-service/internal/model"
	"github.com/quangdng/task-tracker-api/services/auth-service/internal/registry"
	"github.com/quangdng/task-tracker-api/services/auth-service/internal/repository"
	"github.com/quangdng/task-tracker-api/shared/provider"
)

// fakeUserRepository is an in-memory, thread-safe UserRepository. It mimics
// the mongo repository's error contract: mongo.ErrNoDocuments for misses and
// a duplicate-key error for unique index violations.
type fakeUserRepository struct {
	mu        sync.Mutex
	users     map[string]*model.User
	updateErr error
}

func newFakeUserRepository() *fakeUserRepository {
	return &fakeUserRepository{users: make(map[string]*model.User)}
}

func duplicateKeyError() error {
	return mongo.CommandError{Code: 11000, Message: "duplicate key error"}
}

func (r *fakeUserRepository) CreateUser(_ context.Context, user *model.User) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.users {
		if existing.Email == user.Email || existing.Username == user.Username {
			return nil, duplicateKeyError()
		}
	}

	user.ID = bson.NewObjectID()
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	stored := *user
	r.users[user.ID.Hex()] = &stored

	return user, nil
}

func (r *fakeUserRepository) GetUser(_ context.Context, id string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}

	copied := *user
	return &copied, nil
}

func (r *fakeUserRepository) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, user := range r.users {
		if user.Email == email {
			copied := *user
			return &copied, nil
		}
	}

	return nil, mongo.ErrNoDocuments
}

func (r *fakeUserRepository) ExistsByEmail(_ context.Context, email string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, user := range r.users {
		if user.Email == email {
			return true, nil
		}
	}

	return false, nil
}

func (r *fakeUserRepository) ExistsByUsername(_ context.Context, username string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, user := range r.users {
		if user.Username == username {
			return true, nil
		}
	}

	return false, nil
}

func (r *fakeUserRepository) UpdateUser(
	_ context.Context,
	id string,
	params repository.UpdateUserParams,
) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.updateErr != nil {
		return nil, r.updateErr
	}

	user, ok := r.users[id]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}

	if params.Username != nil {
		user.Username = *params.Username
	}
	if params.PasswordHash != nil {
		user.PasswordHash = *params.PasswordHash
	}
	if params.ProfileImageURL != nil {
		user.ProfileImageURL = *params.ProfileImageURL
	}
	if params.LastLoginAt != nil {
		user.LastLoginAt = *params.LastLoginAt
	}
	user.UpdatedAt = time.Now()

	copied := *user
	return &copied, nil
}

func (r *fakeUserRepository) setUpdateErr(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updateErr = err
}

// fakeGoogleVerifier returns canned identity attributes.
type fakeGoogleVerifier struct {
	info *provider.GoogleUserInfo
	err  error
}

func (v *fakeGoogleVerifier) Verify(_ context.Context, _ string) (*provider.GoogleUserInfo, error) {
	if v.err != nil {
		return nil, v.err
	}

	return v.info, nil
}

// fakeEmailSender records outgoing mail.
type fakeEmailSender struct {
	mu   sync.Mutex
	sent []sentEmail
	err  error
}

type sentEmail struct {
	to      []string
	subject string
	body    string
}

func (s *fakeEmailSender) SendPlain(to []string, subject, body string) error {
	if s.err != nil {
		return s.err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, sentEmail{to: to, subject: subject, body: body})

	return nil
}

func (s *fakeEmailSender) lastSent() (sentEmail, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.sent) == 0 {
		return sentEmail{}, false
	}

	return s.sent[len(s.sent)-1], true
}

// flakyTokenRegistry wraps a real registry and injects infrastructure
// failures into individual operations.
type flakyTokenRegistry struct {
	registry.ResetTokenRegistry
	verifyErr  error
	consumeErr error
	restoreErr error
}

func (r *flakyTokenRegistry) Verify(ctx context.Context, email, token string) error {
	if r.verifyErr != nil {
		return r.verifyErr
	}

	return r.ResetTokenRegistry.Verify(ctx, email, token)
}

func (r *flakyTokenRegistry) Consume(ctx context.Context, email, token string) error {
	if r.consumeErr != nil {
		return r.consumeErr
	}

	return r.ResetTokenRegistry.Consume(ctx, email, token)
}

func (r *flakyTokenRegistry) Restore(ctx context.Context, email, token string) error {
	if r.restoreErr != nil {
		return r.restoreErr
	}

	return r.ResetTokenRegistry.Restore(ctx, email, token)
}
