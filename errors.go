package accounts

import (
	goerrors "github.com/goliatone/go-errors"
)

// Text codes used to match error kinds across process boundaries.
const (
	TextCodeEmailTaken         = "EMAIL_TAKEN"
	TextCodeTokenNotFound      = "TOKEN_NOT_FOUND"
	TextCodeTokenExpired       = "TOKEN_EXPIRED"
	TextCodeInvalidCredentials = "INVALID_CREDENTIALS"
	TextCodeSessionInvalid     = "SESSION_INVALID"
	TextCodeSessionExpired     = "SESSION_EXPIRED"
	TextCodeAccountNotFound    = "ACCOUNT_NOT_FOUND"
	TextCodeAlreadyVerified    = "ALREADY_VERIFIED"
	TextCodeBearerMalformed    = "BEARER_MALFORMED"
	TextCodeBearerExpired      = "BEARER_EXPIRED"
)

// ErrEmailTaken is returned when the registration email already exists.
var ErrEmailTaken = goerrors.New("email already exists", goerrors.CategoryConflict).
	WithTextCode(TextCodeEmailTaken).
	WithCode(goerrors.CodeConflict)

// ErrTokenNotFound is returned when no possession token matches the one
// presented. It is deliberately distinct from ErrTokenExpired so callers
// and tests can tell the two apart.
var ErrTokenNotFound = goerrors.New("invalid verification token or user ID", goerrors.CategoryNotFound).
	WithTextCode(TextCodeTokenNotFound).
	WithCode(goerrors.CodeBadRequest)

// ErrTokenExpired is returned when a matching possession token exists but
// its expiry instant has passed.
var ErrTokenExpired = goerrors.New("token has expired", goerrors.CategoryValidation).
	WithTextCode(TextCodeTokenExpired).
	WithCode(goerrors.CodeBadRequest)

// ErrInvalidCredentials is the uniform login failure. The same value covers
// "no such account", "email not verified", and "wrong password" so callers
// cannot probe which emails are registered.
var ErrInvalidCredentials = goerrors.New("invalid credentials or email not verified", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(goerrors.CodeUnauthorized)

// ErrSessionInvalid is returned on refresh when no stored refresh token
// exists or the presented token does not hash-match the stored one.
var ErrSessionInvalid = goerrors.New("invalid refresh token", goerrors.CategoryAuth).
	WithTextCode(TextCodeSessionInvalid).
	WithCode(goerrors.CodeUnauthorized)

// ErrSessionExpired is returned on refresh when the stored refresh token
// has passed its expiry.
var ErrSessionExpired = goerrors.New("expired refresh token", goerrors.CategoryAuth).
	WithTextCode(TextCodeSessionExpired).
	WithCode(goerrors.CodeUnauthorized)

// ErrAccountNotFound is returned by operations keyed by account id when the
// account does not exist. Distinct from authentication failures.
var ErrAccountNotFound = goerrors.New("account not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeAccountNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrAlreadyVerified signals that issuing a verification token for a
// verified account was refused. The resend surface maps it to a no-op
// success.
var ErrAlreadyVerified = goerrors.New("email is already verified", goerrors.CategoryConflict).
	WithTextCode(TextCodeAlreadyVerified).
	WithCode(goerrors.CodeConflict)

// ErrBearerExpired is returned when a bearer token fails validation on expiry.
var ErrBearerExpired = goerrors.New("bearer token is expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeBearerExpired).
	WithCode(goerrors.CodeUnauthorized)

// ErrBearerMalformed is returned when a bearer token is tampered with,
// signed with the wrong key, or otherwise unparseable.
var ErrBearerMalformed = goerrors.New("bearer token is malformed", goerrors.CategoryAuth).
	WithTextCode(TextCodeBearerMalformed).
	WithCode(goerrors.CodeUnauthorized)

// ErrNoEmptySecret rejects empty password/token input before hashing.
var ErrNoEmptySecret = goerrors.New("secret must not be empty", goerrors.CategoryBadInput).
	WithTextCode("EMPTY_SECRET").
	WithCode(goerrors.CodeBadRequest)

// ErrSecretTooLong rejects secrets beyond what bcrypt can digest; we fail
// loudly instead of letting the algorithm truncate.
var ErrSecretTooLong = goerrors.New("secret exceeds the 72 byte bcrypt limit", goerrors.CategoryBadInput).
	WithTextCode("SECRET_TOO_LONG").
	WithCode(goerrors.CodeBadRequest)

// ErrMismatchedHashAndSecret is the normalized bcrypt mismatch error.
var ErrMismatchedHashAndSecret = goerrors.New("secret does not match digest", goerrors.CategoryAuth).
	WithTextCode("HASH_MISMATCH").
	WithCode(goerrors.CodeUnauthorized)

// HasTextCode reports whether err carries the given machine text code.
func HasTextCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	return richErr.TextCode == code
}

// IsTokenExpired matches possession-token expiry failures.
func IsTokenExpired(err error) bool {
	return HasTextCode(err, TextCodeTokenExpired)
}

// IsTokenNotFound matches possession-token lookup failures.
func IsTokenNotFound(err error) bool {
	return HasTextCode(err, TextCodeTokenNotFound)
}

// IsInvalidCredentials matches the uniform login failure.
func IsInvalidCredentials(err error) bool {
	return HasTextCode(err, TextCodeInvalidCredentials)
}

// IsAccountNotFound matches missing-account failures.
func IsAccountNotFound(err error) bool {
	return HasTextCode(err, TextCodeAccountNotFound)
}
