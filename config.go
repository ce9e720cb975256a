package accounts

import (
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// Defaults applied by Config.Validate when the corresponding field is zero.
const (
	DefaultAccessTokenTTL     = 15 * time.Minute
	DefaultRefreshTokenTTL    = 7 * 24 * time.Hour
	DefaultPossessionTokenTTL = time.Hour
)

// Config is the immutable set of knobs the credential service needs. Build
// it once at startup, call Validate, and pass it by value to constructors.
// There is no ambient lookup: a missing secret fails fast here instead of
// at the first login.
type Config struct {
	// FrontendURL is the base used to build verification and reset
	// callback links, e.g. https://app.example.com
	FrontendURL string

	// AccessSigningKey and RefreshSigningKey sign the two bearer token
	// families. They are both required and must differ.
	AccessSigningKey  string
	RefreshSigningKey string

	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration
	PossessionTokenTTL time.Duration

	// HashCost is the bcrypt work factor for password digests.
	HashCost int

	Issuer   string
	Audience []string
}

// Validate fills defaults and fails fast on anything the service cannot
// run without.
func (c *Config) Validate() error {
	if c.AccessSigningKey == "" {
		return goerrors.New("access signing key is required", goerrors.CategoryBadInput).
			WithTextCode("CONFIG_MISSING_ACCESS_KEY")
	}

	if c.RefreshSigningKey == "" {
		return goerrors.New("refresh signing key is required", goerrors.CategoryBadInput).
			WithTextCode("CONFIG_MISSING_REFRESH_KEY")
	}

	if c.AccessSigningKey == c.RefreshSigningKey {
		return goerrors.New("access and refresh signing keys must differ", goerrors.CategoryBadInput).
			WithTextCode("CONFIG_SHARED_SIGNING_KEY")
	}

	if c.FrontendURL == "" {
		return goerrors.New("frontend base URL is required", goerrors.CategoryBadInput).
			WithTextCode("CONFIG_MISSING_FRONTEND_URL")
	}

	if c.AccessTokenTTL <= 0 {
		c.AccessTokenTTL = DefaultAccessTokenTTL
	}

	if c.RefreshTokenTTL <= 0 {
		c.RefreshTokenTTL = DefaultRefreshTokenTTL
	}

	if c.PossessionTokenTTL <= 0 {
		c.PossessionTokenTTL = DefaultPossessionTokenTTL
	}

	if c.HashCost <= 0 {
		c.HashCost = DefaultHashCost
	}

	return nil
}
