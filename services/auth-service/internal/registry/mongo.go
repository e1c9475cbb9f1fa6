package registry

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/quangdng/task-tracker-api/services/auth-service/internal/model"
)

const passwordResetTokenCollection = "password_reset_tokens"

// mongoRegistry is a ResetTokenRegistry backed by MongoDB. Consumption is a
// single FindOneAndUpdate on a used:false filter, so the database decides the
// winner under concurrent redemption. Expired records are reaped by a TTL
// index on expires_at; no sweeper goroutine is needed.
type mongoRegistry struct {
	db  *mongo.Database
	ttl time.Duration
}

// NewMongoRegistry creates a MongoDB-backed ResetTokenRegistry.
func NewMongoRegistry(
	ctx context.Context,
	logger *zerolog.Logger,
	db *mongo.Database,
	ttl time.Duration,
) ResetTokenRegistry {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	collection := db.Collection(passwordResetTokenCollection)

	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "email", Value: 1}, {Key: "token", Value: 1}},
		},
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0), // TTL index
		},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create password reset token indexes")
	}

	return &mongoRegistry{
		db:  db,
		ttl: ttl,
	}
}

func (r *mongoRegistry) Issue(ctx context.Context, email string) (string, error) {
	token, err := generateToken()
	if err != nil {
		return "", err
	}

	now := time.Now()
	record := &model.PasswordResetToken{
		Email:     email,
		Token:     token,
		Used:      false,
		IssuedAt:  now,
		ExpiresAt: now.Add(r.ttl),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if _, err := r.db.Collection(passwordResetTokenCollection).InsertOne(ctx, record); err != nil {
		return "", err
	}

	return token, nil
}

func (r *mongoRegistry) Verify(ctx context.Context, email, token string) error {
	err := r.db.Collection(passwordResetTokenCollection).
		FindOne(ctx, r.liveFilter(email, token)).
		Err()
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return r.classifyMiss(ctx, email, token)
		}
		return err
	}

	return nil
}

func (r *mongoRegistry) Consume(ctx context.Context, email, token string) error {
	update := bson.M{
		"$set": bson.M{
			"used":       true,
			"updated_at": time.Now(),
		},
	}

	err := r.db.Collection(passwordResetTokenCollection).
		FindOneAndUpdate(ctx, r.liveFilter(email, token), update).
		Err()
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return r.classifyMiss(ctx, email, token)
		}
		return err
	}

	return nil
}

func (r *mongoRegistry) Restore(ctx context.Context, email, token string) error {
	update := bson.M{
		"$set": bson.M{
			"used":       false,
			"updated_at": time.Now(),
		},
	}

	result, err := r.db.Collection(passwordResetTokenCollection).UpdateOne(
		ctx,
		bson.M{"email": email, "token": token, "used": true},
		update,
	)
	if err != nil {
		return err
	}

	if result.ModifiedCount == 0 {
		return ErrTokenNotFound
	}

	return nil
}

func (r *mongoRegistry) liveFilter(email, token string) bson.M {
	return bson.M{
		"email":      email,
		"token":      token,
		"used":       false,
		"expires_at": bson.M{"$gt": time.Now()},
	}
}

// classifyMiss distinguishes a consumed token from one that never existed or
// has expired, after a live lookup came back empty.
func (r *mongoRegistry) classifyMiss(ctx context.Context, email, token string) error {
	err := r.db.Collection(passwordResetTokenCollection).
		FindOne(ctx, bson.M{"email": email, "token": token, "used": true}).
		Err()
	switch {
	case err == nil:
		return ErrTokenAlreadyUsed
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrTokenNotFound
	default:
		return err
	}
}
