package accounts

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AuthClaims is what callers get back from bearer token validation.
type AuthClaims interface {
	Subject() string
	AccountID() string
	Role() string
	HasRole(role string) bool
	Expires() time.Time
	IssuedAt() time.Time
}

// JWTClaims is the concrete claim set carried by both bearer families:
// registered claims plus the account id and role.
type JWTClaims struct {
	jwt.RegisteredClaims
	UID         string `json:"uid,omitempty"`
	AccountRole string `json:"role,omitempty"`
}

var _ AuthClaims = (*JWTClaims)(nil)

// Subject returns the subject claim
func (c *JWTClaims) Subject() string {
	return c.RegisteredClaims.Subject
}

// AccountID returns the account id, falling back to the subject
func (c *JWTClaims) AccountID() string {
	if c.UID != "" {
		return c.UID
	}
	return c.Subject()
}

// AccountUUID parses the account id claim
func (c *JWTClaims) AccountUUID() (uuid.UUID, error) {
	return uuid.Parse(c.AccountID())
}

// Role returns the account role claim
func (c *JWTClaims) Role() string {
	return c.AccountRole
}

// HasRole checks for an exact role match
func (c *JWTClaims) HasRole(role string) bool {
	return c.AccountRole == role
}

// Expires returns the expiration time, zero when unset
func (c *JWTClaims) Expires() time.Time {
	if c.ExpiresAt != nil {
		return c.ExpiresAt.Time
	}
	return time.Time{}
}

// IssuedAt returns the issuance time, zero when unset
func (c *JWTClaims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}

func ensureTokenID(claims *jwt.RegisteredClaims) {
	if claims.ID == "" {
		claims.ID = uuid.NewString()
	}
}
