package accounts

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// DefaultHashCost matches the work factor used for both password and
// refresh-token digests.
const DefaultHashCost = 10

// maxSecretLen is bcrypt's input ceiling; longer secrets would be silently
// truncated by older implementations, so we refuse them outright.
const maxSecretLen = 72

// HashSecret will generate a bcrypt digest for a password or refresh token
func HashSecret(secret string, cost int) (string, error) {
	if secret == "" {
		return "", ErrNoEmptySecret
	}

	if len(secret) > maxSecretLen {
		return "", ErrSecretTooLong
	}

	if cost < bcrypt.MinCost {
		cost = DefaultHashCost
	}

	h, err := bcrypt.GenerateFromPassword([]byte(secret), cost)
	return string(h), err
}

// CompareSecretAndHash will validate the given cleartext secret matches
// the stored digest. The comparison is constant time inside bcrypt.
func CompareSecretAndHash(secret, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrMismatchedHashAndSecret
		}
		return err
	}
	return nil
}

// HashToken digests an opaque bearer token for storage. Refresh tokens are
// longer than bcrypt's 72 byte ceiling, so they get a SHA-256 digest; the
// token itself is high-entropy, which makes a slow hash unnecessary.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// CompareTokenAndHash validates a presented token against its stored
// digest in constant time.
func CompareTokenAndHash(token, hash string) error {
	digest := HashToken(token)
	if subtle.ConstantTimeCompare([]byte(digest), []byte(hash)) != 1 {
		return ErrMismatchedHashAndSecret
	}
	return nil
}
