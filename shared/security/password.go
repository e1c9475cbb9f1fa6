package security

import (
	"errors"
	"fmt"

	"github.com/matthewhartstonge/argon2"
)

// ErrMalformedHash indicates that a stored password hash could not be parsed.
// It is reported separately from a plain mismatch so that callers can treat it
// as a data-integrity fault instead of bad credentials.
var ErrMalformedHash = errors.New("malformed password hash")

var hashConfig = argon2.DefaultConfig()

// HashPassword hashes a plaintext password with argon2id using a random salt.
func HashPassword(password string) (string, error) {
	encoded, err := hashConfig.HashEncoded([]byte(password))
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	return string(encoded), nil
}

// VerifyPassword checks a plaintext password against an encoded argon2 hash.
// The comparison is constant time. A hash that cannot be decoded returns
// ErrMalformedHash rather than a mismatch.
func VerifyPassword(password, encodedHash string) (bool, error) {
	ok, err := argon2.VerifyEncoded([]byte(password), []byte(encodedHash))
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrMalformedHash, err)
	}

	return ok, nil
}
