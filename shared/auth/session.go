package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionTokenValidity is how long a minted session token stays usable.
// There is no revocation: a token is good for its entire window regardless of
// later password changes or logout.
const SessionTokenValidity = 24 * time.Hour

// ErrInvalidToken is returned for every session token failure: bad signature,
// malformed structure, wrong audience or issuer, or expiry. The causes are
// deliberately collapsed so a caller cannot tell which check rejected the
// token.
var ErrInvalidToken = errors.New("invalid session token")

// SessionClaims is the payload carried by a session token. The registered
// subject is the account email.
type SessionClaims struct {
	UserID string   `json:"user_id"`
	Roles  []string `json:"roles"`
	jwt.RegisteredClaims
}

// SessionCodec mints and verifies self-contained session tokens. It is
// stateless; the signing secret is fixed at construction.
type SessionCodec struct {
	authenticator JWTAuthenticator
	now           func() time.Time
}

// NewSessionCodec creates a SessionCodec backed by the given authenticator.
func NewSessionCodec(authenticator JWTAuthenticator) *SessionCodec {
	return &SessionCodec{
		authenticator: authenticator,
		now:           time.Now,
	}
}

// Issue mints a signed session token for the given account.
func (c *SessionCodec) Issue(email, userID string, roles []string) (string, error) {
	now := c.now()
	claims := SessionClaims{
		UserID: userID,
		Roles:  roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			Issuer:    c.authenticator.issuer,
			Audience:  jwt.ClaimStrings{c.authenticator.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(SessionTokenValidity)),
		},
	}

	return c.authenticator.Sign(claims)
}

// Decode verifies a session token and returns its claims. The signature is
// checked before anything else; any failure yields ErrInvalidToken.
func (c *SessionCodec) Decode(tokenString string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	if _, err := c.authenticator.Parse(tokenString, claims); err != nil {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// ExtractUserID returns the user id carried by a valid session token.
func (c *SessionCodec) ExtractUserID(tokenString string) (string, error) {
	claims, err := c.Decode(tokenString)
	if err != nil {
		return "", err
	}

	if claims.UserID == "" {
		return "", ErrInvalidToken
	}

	return claims.UserID, nil
}
