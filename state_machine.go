package accounts

import (
	"time"
)

// StateMachine holds the authoritative transition rules for an account's
// verification, session, and recovery axes. It is pure: it mutates the
// record handed to it and never touches storage or collaborators, which is
// what keeps every rule unit-testable with a pinned clock.
//
// The possession slot is shared between verification and password reset.
// Minting for one flow overwrites whatever the other flow had outstanding;
// that cross-axis invalidation is intentional and matched by tests.
type StateMachine struct {
	now           Clock
	possessionTTL time.Duration
}

// StateMachineOption customizes state machine construction.
type StateMachineOption func(*StateMachine)

// WithClock injects a custom clock (useful for tests).
func WithClock(clock Clock) StateMachineOption {
	return func(sm *StateMachine) {
		if clock != nil {
			sm.now = clock
		}
	}
}

// WithPossessionTTL overrides the default 1 hour possession-token lifetime.
func WithPossessionTTL(ttl time.Duration) StateMachineOption {
	return func(sm *StateMachine) {
		if ttl > 0 {
			sm.possessionTTL = ttl
		}
	}
}

// NewStateMachine returns a state machine with a real clock and the
// default possession-token lifetime.
func NewStateMachine(opts ...StateMachineOption) *StateMachine {
	sm := &StateMachine{
		now:           time.Now,
		possessionTTL: DefaultPossessionTokenTTL,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(sm)
		}
	}

	return sm
}

// IssueVerification mints a fresh verification token for an unverified
// account, overwriting any outstanding possession token. Verified accounts
// are refused; verification never regresses.
func (sm *StateMachine) IssueVerification(account *Account) (PossessionToken, error) {
	if account.EmailVerified {
		return PossessionToken{}, ErrAlreadyVerified
	}

	token := MintPossessionToken(sm.now(), sm.possessionTTL)
	sm.setPossession(account, token)

	return token, nil
}

// ConsumeVerification flips the account to verified when the presented
// token matches and has not expired. A mismatch and a missing token are
// the same condition (ErrTokenNotFound); a correct token past its expiry
// instant is ErrTokenExpired, never "not found".
func (sm *StateMachine) ConsumeVerification(account *Account, token string) error {
	if err := sm.checkPossession(account, token); err != nil {
		return err
	}

	account.EmailVerified = true
	sm.clearPossession(account)

	return nil
}

// BeginSession stores the refresh-token digest and its expiry, replacing
// any active session. One session per account: a second login kicks the
// first refresh token out.
func (sm *StateMachine) BeginSession(account *Account, refreshHash string, expiresAt time.Time) {
	account.RefreshTokenHash = &refreshHash
	account.RefreshExpiresAt = &expiresAt
}

// ValidateSession checks that a non-expired refresh-token digest is stored.
// The digest comparison itself belongs to the hasher, not here.
func (sm *StateMachine) ValidateSession(account *Account) error {
	if !account.HasSession() {
		return ErrSessionInvalid
	}

	if account.RefreshExpiresAt.Before(sm.now()) {
		return ErrSessionExpired
	}

	return nil
}

// EndSession clears the refresh slot. Calling it with no active session is
// a no-op, which makes logout idempotent.
func (sm *StateMachine) EndSession(account *Account) {
	account.RefreshTokenHash = nil
	account.RefreshExpiresAt = nil
}

// IssuePasswordReset mints a reset token into the shared possession slot,
// silently invalidating any pending verification token.
func (sm *StateMachine) IssuePasswordReset(account *Account) PossessionToken {
	token := MintPossessionToken(sm.now(), sm.possessionTTL)
	sm.setPossession(account, token)

	return token
}

// CompletePasswordReset swaps in the new password digest when the
// presented token matches and has not expired, then clears the slot. It
// deliberately does not require a verified email: the slot is shared, so a
// reset token minted before verification completes must still work.
func (sm *StateMachine) CompletePasswordReset(account *Account, token, newPasswordHash string) error {
	if err := sm.checkPossession(account, token); err != nil {
		return err
	}

	account.PasswordHash = newPasswordHash
	sm.clearPossession(account)

	return nil
}

func (sm *StateMachine) checkPossession(account *Account, token string) error {
	if token == "" || !account.HasPossessionToken() {
		return ErrTokenNotFound
	}

	if *account.PossessionToken != token {
		return ErrTokenNotFound
	}

	if account.PossessionExpiresAt.Before(sm.now()) {
		return ErrTokenExpired
	}

	return nil
}

func (sm *StateMachine) setPossession(account *Account, token PossessionToken) {
	value := token.Value
	expiresAt := token.ExpiresAt
	account.PossessionToken = &value
	account.PossessionExpiresAt = &expiresAt
}

func (sm *StateMachine) clearPossession(account *Account) {
	account.PossessionToken = nil
	account.PossessionExpiresAt = nil
}
