package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrMalformed is returned when a credential does not have exactly three
// dot-separated segments or its payload segment is not base64url JSON.
var ErrMalformed = errors.New("malformed credential")

// Claims holds the decoded payload fields sessionkit inspects. All fields are
// optional in the wire format; absent fields are zero values here.
//
// Claims instances are intended to be configured during initialization and then
// treated as immutable unless documented otherwise.
type Claims struct {
	Subject   string
	Email     string
	Role      string
	ExpiresAt time.Time
}

// Identity is the subject/role/email triple derived from a credential.
type Identity struct {
	Subject string
	Role    string
	Email   string
}

// payloadClaims is the wire shape of the payload segment. The backend has
// emitted the role under both "role" and "user_role" across versions, so both
// are decoded and resolved in fallback order.
type payloadClaims struct {
	Role     string `json:"role,omitempty"`
	UserRole string `json:"user_role,omitempty"`
	Email    string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Decode parses the payload segment of credential without verifying the
// signature. It fails with [ErrMalformed] when the credential does not have
// exactly three segments or the payload is not valid base64url JSON.
//
// Decode does not check expiry; see [IsExpired].
func Decode(credential string) (*Claims, error) {
	payload := payloadClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(credential, &payload); err != nil {
		return nil, ErrMalformed
	}

	claims := &Claims{
		Subject: payload.Subject,
		Email:   payload.Email,
		Role:    payload.Role,
	}
	if claims.Role == "" {
		claims.Role = payload.UserRole
	}
	if payload.ExpiresAt != nil {
		claims.ExpiresAt = payload.ExpiresAt.Time
	}

	return claims, nil
}

// IsExpired reports whether credential is expired at now. Decode failures and
// a missing exp claim both report true: a credential that cannot prove it is
// current is treated as dead.
func IsExpired(credential string, now time.Time) bool {
	claims, err := Decode(credential)
	if err != nil {
		return true
	}
	if claims.ExpiresAt.IsZero() {
		return true
	}
	return !claims.ExpiresAt.After(now)
}

// Identity maps the decoded claims to an [Identity]. When the credential
// carried no role under either claim name, defaultRole is substituted; the
// fallback order is role, then user_role, then defaultRole.
func (c *Claims) Identity(defaultRole string) Identity {
	role := c.Role
	if role == "" {
		role = defaultRole
	}
	return Identity{
		Subject: c.Subject,
		Role:    role,
		Email:   c.Email,
	}
}
