package accounts

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Role is the account's authorization tag
type Role = string

const (
	// RoleClient is the default role assigned at registration
	RoleClient Role = "client"
	// RoleAdmin can manage other accounts
	RoleAdmin Role = "admin"
)

// IsValidRole checks the role against the closed set
func IsValidRole(r Role) bool {
	switch r {
	case RoleClient, RoleAdmin:
		return true
	default:
		return false
	}
}

// Account is the durable credential entity. The possession token slot is
// shared between email verification and password reset: whichever flow
// mints last wins, and the value is always set or cleared together with
// its expiry.
type Account struct {
	bun.BaseModel `bun:"table:accounts,alias:acc"`

	ID           uuid.UUID `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Email        string    `bun:"email,notnull,unique" json:"email,omitempty"`
	PasswordHash string    `bun:"password_hash,notnull" json:"password_hash,omitempty"`
	FirstName    string    `bun:"first_name" json:"first_name,omitempty"`
	LastName     string    `bun:"last_name" json:"last_name,omitempty"`
	Phone        string    `bun:"phone_number" json:"phone_number,omitempty"`
	Role         Role      `bun:"role,notnull" json:"role,omitempty"`

	EmailVerified       bool       `bun:"is_email_verified" json:"is_email_verified,omitempty"`
	PossessionToken     *string    `bun:"possession_token,nullzero" json:"-"`
	PossessionExpiresAt *time.Time `bun:"possession_expires_at,nullzero" json:"-"`

	RefreshTokenHash *string    `bun:"refresh_token_hash,nullzero" json:"-"`
	RefreshExpiresAt *time.Time `bun:"refresh_expires_at,nullzero" json:"-"`

	CreatedAt *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// HasPossessionToken reports whether a possession token is outstanding.
func (a *Account) HasPossessionToken() bool {
	return a.PossessionToken != nil && a.PossessionExpiresAt != nil
}

// HasSession reports whether a refresh token hash is stored.
func (a *Account) HasSession() bool {
	return a.RefreshTokenHash != nil && a.RefreshExpiresAt != nil
}

// Profile is the secret-free projection of an Account returned by read
// operations.
type Profile struct {
	ID            uuid.UUID  `json:"id"`
	Email         string     `json:"email"`
	FirstName     string     `json:"first_name,omitempty"`
	LastName      string     `json:"last_name,omitempty"`
	Phone         string     `json:"phone_number,omitempty"`
	Role          Role       `json:"role"`
	EmailVerified bool       `json:"is_email_verified"`
	CreatedAt     *time.Time `json:"created_at,omitempty"`
	UpdatedAt     *time.Time `json:"updated_at,omitempty"`
}

// Sanitize strips credential material so the record can leave the service.
func (a *Account) Sanitize() Profile {
	return Profile{
		ID:            a.ID,
		Email:         a.Email,
		FirstName:     a.FirstName,
		LastName:      a.LastName,
		Phone:         a.Phone,
		Role:          a.Role,
		EmailVerified: a.EmailVerified,
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
	}
}
