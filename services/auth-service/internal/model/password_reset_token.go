package model

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// PasswordResetToken is the persisted form of a reset token when the registry
// is backed by MongoDB. A consumed record flips Used and can never satisfy a
// later verification; expired records are reaped by a TTL index.
type PasswordResetToken struct {
	ID        bson.ObjectID `bson:"_id,omitempty"`
	Email     string        `bson:"email"`
	Token     string        `bson:"token"`
	Used      bool          `bson:"used"`
	IssuedAt  time.Time     `bson:"issued_at"`
	ExpiresAt time.Time     `bson:"expires_at"`
	CreatedAt time.Time     `bson:"created_at"`
	UpdatedAt time.Time     `bson:"updated_at"`
}
