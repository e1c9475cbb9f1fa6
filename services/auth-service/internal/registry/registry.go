// Package registry implements the password reset token registry: short-lived,
// single-use, human-enterable numeric tokens keyed by account email.
//
// A token moves through Issued -> Consumed or Issued -> Expired, never both.
// Consume is the linearization point: under concurrent redemption of the same
// (email, token) pair exactly one caller wins. Issuing never invalidates a
// still-live prior token for the same email; several outstanding tokens per
// email are allowed.
package registry

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"
)

// DefaultTokenTTL is how long an issued token stays redeemable.
const DefaultTokenTTL = 15 * time.Minute

var (
	ErrTokenNotFound    = errors.New("reset token not found")
	ErrTokenAlreadyUsed = errors.New("reset token has already been used")
)

// ResetTokenRegistry issues, verifies and consumes password reset tokens.
type ResetTokenRegistry interface {
	// Issue creates a new token for the given email and returns its value.
	Issue(ctx context.Context, email string) (string, error)

	// Verify returns nil when a live (unexpired, unconsumed) token matches,
	// ErrTokenNotFound or ErrTokenAlreadyUsed when it does not.
	Verify(ctx context.Context, email, token string) error

	// Consume atomically marks the matching live token as used. Exactly one
	// of several concurrent calls for the same pair succeeds.
	Consume(ctx context.Context, email, token string) error

	// Restore undoes a consumption. It exists as the compensating step for
	// a password write that fails after the token was already consumed.
	Restore(ctx context.Context, email, token string) error
}

// generateToken returns a uniformly sampled 6-digit decimal token in the
// range "000000" to "999999". Collisions between independently issued tokens
// are acceptable and not deduplicated.
func generateToken() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", fmt.Errorf("failed to generate reset token: %w", err)
	}

	return fmt.Sprintf("%06d", n.Int64()), nil
}
