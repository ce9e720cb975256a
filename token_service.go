package accounts

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
)

// TokenPair is what a successful login hands back to the client.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// TokenService mints and validates the two bearer token families. Access
// and refresh tokens are signed with independent secrets so one leaked key
// never compromises both.
type TokenService interface {
	IssueAccess(account *Account) (string, error)
	IssuePair(account *Account) (TokenPair, error)
	ValidateAccess(tokenString string) (AuthClaims, error)
	ValidateRefresh(tokenString string) (AuthClaims, error)
}

// TokenServiceImpl implements the TokenService interface
type TokenServiceImpl struct {
	accessKey  []byte
	refreshKey []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	issuer     string
	audience   jwt.ClaimStrings
	logger     Logger
	now        Clock
}

// NewTokenService creates a TokenService from a validated Config.
func NewTokenService(cfg Config) *TokenServiceImpl {
	return &TokenServiceImpl{
		accessKey:  []byte(cfg.AccessSigningKey),
		refreshKey: []byte(cfg.RefreshSigningKey),
		accessTTL:  cfg.AccessTokenTTL,
		refreshTTL: cfg.RefreshTokenTTL,
		issuer:     cfg.Issuer,
		audience:   cfg.Audience,
		logger:     defLogger{},
		now:        time.Now,
	}
}

// WithLogger overrides the logger used by the service.
func (ts *TokenServiceImpl) WithLogger(logger Logger) *TokenServiceImpl {
	if logger != nil {
		ts.logger = logger
	}
	return ts
}

// WithClock injects a custom clock (useful for tests).
func (ts *TokenServiceImpl) WithClock(clock Clock) *TokenServiceImpl {
	if clock != nil {
		ts.now = clock
	}
	return ts
}

// IssueAccess mints a short-lived access token for the account.
func (ts *TokenServiceImpl) IssueAccess(account *Account) (string, error) {
	return ts.sign(account, ts.accessKey, ts.accessTTL)
}

// IssuePair mints an access and a refresh token in one go.
func (ts *TokenServiceImpl) IssuePair(account *Account) (TokenPair, error) {
	access, err := ts.sign(account, ts.accessKey, ts.accessTTL)
	if err != nil {
		return TokenPair{}, err
	}

	refresh, err := ts.sign(account, ts.refreshKey, ts.refreshTTL)
	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// ValidateAccess parses and validates an access token.
func (ts *TokenServiceImpl) ValidateAccess(tokenString string) (AuthClaims, error) {
	return ts.validate(tokenString, ts.accessKey)
}

// ValidateRefresh parses and validates a refresh token.
func (ts *TokenServiceImpl) ValidateRefresh(tokenString string) (AuthClaims, error) {
	return ts.validate(tokenString, ts.refreshKey)
}

func (ts *TokenServiceImpl) sign(account *Account, key []byte, ttl time.Duration) (string, error) {
	if account == nil {
		return "", goerrors.New("account must not be nil", goerrors.CategoryInternal)
	}

	now := ts.now()
	claims := &JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ts.issuer,
			Subject:   account.ID.String(),
			Audience:  ts.audience,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UID:         account.ID.String(),
		AccountRole: account.Role,
	}

	ensureTokenID(&claims.RegisteredClaims)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedString, err := token.SignedString(key)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign JWT")
	}

	return signedString, nil
}

func (ts *TokenServiceImpl) validate(tokenString string, key []byte) (AuthClaims, error) {
	parserOptions := []jwt.ParserOption{
		jwt.WithTimeFunc(func() time.Time { return ts.now() }),
	}
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}
	if len(ts.audience) > 0 {
		parserOptions = append(parserOptions, jwt.WithAudience(ts.audience...))
	}

	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Error("TokenService validate encountered unexpected signing method", "alg", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return key, nil
	}, parserOptions...)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrBearerExpired
		}
		return nil, goerrors.Wrap(err, ErrBearerMalformed.Category, ErrBearerMalformed.Message).
			WithTextCode(ErrBearerMalformed.TextCode)
	}

	if claims, ok := token.Claims.(*JWTClaims); ok && token.Valid {
		return claims, nil
	}

	ts.logger.Error("TokenService validate could not decode or validate claims")
	return nil, ErrBearerMalformed
}
