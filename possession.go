package accounts

import (
	"time"

	"github.com/google/uuid"
)

// PossessionToken is a single-use opaque value proving control of an email
// inbox. Verification and password reset mint the same shape; the state
// machine decides which action the token authorizes at consumption time.
type PossessionToken struct {
	Value     string
	ExpiresAt time.Time
}

// MintPossessionToken creates a random possession token with an absolute
// expiry of now + ttl.
func MintPossessionToken(now time.Time, ttl time.Duration) PossessionToken {
	if ttl <= 0 {
		ttl = DefaultPossessionTokenTTL
	}

	return PossessionToken{
		Value:     uuid.NewString(),
		ExpiresAt: now.Add(ttl),
	}
}
