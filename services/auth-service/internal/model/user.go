package model

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// User represents an account in the task tracker. Accounts created through
// Google carry the provider subject id; locally registered accounts leave it
// empty. Username and email are globally unique.
type User struct {
	ID              bson.ObjectID `bson:"_id,omitempty"`
	Username        string        `bson:"username"`
	Email           string        `bson:"email"`
	PasswordHash    string        `bson:"password_hash"`
	ProfileImageURL string        `bson:"profile_image_url"`
	GoogleSubject   string        `bson:"google_subject,omitempty"`
	LastLoginAt     time.Time     `bson:"last_login_at,omitempty"`
	CreatedAt       time.Time     `bson:"created_at"`
	UpdatedAt       time.Time     `bson:"updated_at"`
}
