package accounts

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const operationTimeout = time.Second * 10

// Result is the outcome of operations that answer with a message. Warning
// is populated when the account write committed but a best-effort side
// effect (mail dispatch) failed afterwards.
type Result struct {
	Message string `json:"message"`
	Warning string `json:"warning,omitempty"`
}

// AccessTokenResult carries the freshly minted access token from a refresh.
type AccessTokenResult struct {
	AccessToken string `json:"access_token"`
}

// RegisterMessage is the registration input.
type RegisterMessage struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
	// UseHashid derives the account id deterministically from the email
	// instead of minting a random UUID.
	UseHashid bool `json:"-"`
}

func (m RegisterMessage) Type() string { return "account.register" }

// Service is the credential and session lifecycle orchestrator. It owns
// collaborator access: the state machine and hashers stay pure while this
// layer reads, transitions, persists, and dispatches notifications.
//
// Mutations are single-row read-modify-writes without row locking, so two
// concurrent operations on one account interleave last-write-wins. Mail is
// dispatched after the transaction commits and never blocks durability.
type Service struct {
	repo    RepositoryManager
	tokens  TokenService
	mailer  Mailer
	machine *StateMachine
	cfg     Config
	logger  Logger
	now     Clock
}

// NewService wires the credential service. Config must already be
// validated.
func NewService(repo RepositoryManager, tokens TokenService, mailer Mailer, cfg Config) *Service {
	return &Service{
		repo:   repo,
		tokens: tokens,
		mailer: mailer,
		machine: NewStateMachine(
			WithPossessionTTL(cfg.PossessionTokenTTL),
		),
		cfg:    cfg,
		logger: defLogger{},
		now:    time.Now,
	}
}

// WithLogger overrides the logger used by the service.
func (s *Service) WithLogger(logger Logger) *Service {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithClock pins the clock for the service and its state machine.
func (s *Service) WithClock(clock Clock) *Service {
	if clock != nil {
		s.now = clock
		s.machine = NewStateMachine(
			WithPossessionTTL(s.cfg.PossessionTokenTTL),
			WithClock(clock),
		)
	}
	return s
}

// Register creates an unverified account and mails a verification link.
func (s *Service) Register(ctx context.Context, msg RegisterMessage) (Result, error) {
	select {
	case <-ctx.Done():
		return Result{}, goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during registration")
	default:
	}

	ctx, cancel := context.WithTimeout(ctx, operationTimeout)
	defer cancel()

	account := &Account{}
	var verification PossessionToken

	err := s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := s.repo.Accounts().FindByEmailTx(ctx, tx, msg.Email); err == nil {
			return ErrEmailTaken
		} else if !repository.IsRecordNotFound(err) {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check for existing account")
		}

		hash, err := HashSecret(msg.Password, s.cfg.HashCost)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid password provided")
		}

		account.Email = msg.Email
		account.PasswordHash = hash
		account.FirstName = msg.FirstName
		account.LastName = msg.LastName
		account.Phone = msg.Phone
		if msg.UseHashid {
			if id, err := hashid.NewUUID(msg.Email); err == nil {
				account.ID = id
			}
		}

		verification, err = s.machine.IssueVerification(account)
		if err != nil {
			return err
		}

		if account, err = s.repo.Accounts().RegisterTx(ctx, tx, account); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create account")
		}

		return nil
	})

	if err != nil {
		return Result{}, s.normalizeError(err, "account registration failed")
	}

	result := Result{
		Message: "Registration successful, please check your email to verify your account.",
	}

	if err := s.sendVerificationMail(ctx, account, verification.Value, "Verify Your Email Address"); err != nil {
		s.logger.Warn("verification mail dispatch failed", "account_id", account.ID.String(), "error", err)
		result.Warning = "verification email could not be sent"
	}

	return result, nil
}

// VerifyEmail consumes a verification token and marks the account verified.
func (s *Service) VerifyEmail(ctx context.Context, accountID, token string) (Result, error) {
	select {
	case <-ctx.Done():
		return Result{}, goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during email verification")
	default:
	}

	ctx, cancel := context.WithTimeout(ctx, operationTimeout)
	defer cancel()

	id, err := uuid.Parse(accountID)
	if err != nil {
		return Result{}, ErrTokenNotFound
	}

	err = s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		account, err := s.repo.Accounts().FindByIDTx(ctx, tx, id)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return ErrTokenNotFound
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve account for verification")
		}

		if err := s.machine.ConsumeVerification(account, token); err != nil {
			return err
		}

		return s.repo.Accounts().SaveCredentialStateTx(ctx, tx, account)
	})

	if err != nil {
		return Result{}, s.normalizeError(err, "email verification failed")
	}

	return Result{Message: "Email verification successful, you can now log in."}, nil
}

// Login authenticates a verified account and issues a token pair. Missing
// account, unverified email, and wrong password all answer with the same
// ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, email, password string) (TokenPair, error) {
	select {
	case <-ctx.Done():
		return TokenPair{}, goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during login")
	default:
	}

	ctx, cancel := context.WithTimeout(ctx, operationTimeout)
	defer cancel()

	var pair TokenPair

	err := s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		account, err := s.repo.Accounts().FindByEmailTx(ctx, tx, email)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return ErrInvalidCredentials
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve account for login")
		}

		if !account.EmailVerified {
			return ErrInvalidCredentials
		}

		if err := CompareSecretAndHash(password, account.PasswordHash); err != nil {
			return ErrInvalidCredentials
		}

		if pair, err = s.tokens.IssuePair(account); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to issue token pair")
		}

		s.machine.BeginSession(account, HashToken(pair.RefreshToken), s.now().Add(s.cfg.RefreshTokenTTL))

		return s.repo.Accounts().SaveCredentialStateTx(ctx, tx, account)
	})

	if err != nil {
		return TokenPair{}, s.normalizeError(err, "login failed")
	}

	return pair, nil
}

// Refresh exchanges a valid refresh token for a new access token. The
// refresh token itself is not rotated: the stored digest stays valid until
// expiry or logout.
func (s *Service) Refresh(ctx context.Context, accountID, refreshToken string) (AccessTokenResult, error) {
	select {
	case <-ctx.Done():
		return AccessTokenResult{}, goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during token refresh")
	default:
	}

	ctx, cancel := context.WithTimeout(ctx, operationTimeout)
	defer cancel()

	id, err := uuid.Parse(accountID)
	if err != nil {
		return AccessTokenResult{}, ErrSessionInvalid
	}

	account, err := s.repo.Accounts().FindByID(ctx, id)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return AccessTokenResult{}, ErrSessionInvalid
		}
		return AccessTokenResult{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve account for refresh")
	}

	if err := s.machine.ValidateSession(account); err != nil {
		return AccessTokenResult{}, err
	}

	if err := CompareTokenAndHash(refreshToken, *account.RefreshTokenHash); err != nil {
		return AccessTokenResult{}, ErrSessionInvalid
	}

	access, err := s.tokens.IssueAccess(account)
	if err != nil {
		return AccessTokenResult{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to issue access token")
	}

	return AccessTokenResult{AccessToken: access}, nil
}

// Logout clears the stored refresh token. Calling it twice is fine; the
// second call is a no-op on an already-empty session slot.
func (s *Service) Logout(ctx context.Context, accountID string) (Result, error) {
	select {
	case <-ctx.Done():
		return Result{}, goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during logout")
	default:
	}

	ctx, cancel := context.WithTimeout(ctx, operationTimeout)
	defer cancel()

	id, err := uuid.Parse(accountID)
	if err != nil {
		return Result{}, ErrAccountNotFound
	}

	err = s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		account, err := s.repo.Accounts().FindByIDTx(ctx, tx, id)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return ErrAccountNotFound
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve account for logout")
		}

		s.machine.EndSession(account)

		return s.repo.Accounts().SaveCredentialStateTx(ctx, tx, account)
	})

	if err != nil {
		return Result{}, s.normalizeError(err, "logout failed")
	}

	return Result{Message: "Logout successful"}, nil
}

// ResendVerification mints a fresh verification token, invalidating the
// previous one. Already-verified accounts get a no-op success.
func (s *Service) ResendVerification(ctx context.Context, email string) (Result, error) {
	select {
	case <-ctx.Done():
		return Result{}, goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during verification resend")
	default:
	}

	ctx, cancel := context.WithTimeout(ctx, operationTimeout)
	defer cancel()

	account := &Account{}
	var verification PossessionToken
	alreadyVerified := false

	err := s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		if account, err = s.repo.Accounts().FindByEmailTx(ctx, tx, email); err != nil {
			if repository.IsRecordNotFound(err) {
				return ErrAccountNotFound
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve account for verification resend")
		}

		if account.EmailVerified {
			alreadyVerified = true
			return nil
		}

		if verification, err = s.machine.IssueVerification(account); err != nil {
			return err
		}

		return s.repo.Accounts().SaveCredentialStateTx(ctx, tx, account)
	})

	if err != nil {
		return Result{}, s.normalizeError(err, "verification resend failed")
	}

	if alreadyVerified {
		return Result{Message: "Email is already verified"}, nil
	}

	result := Result{
		Message: "Verification email sent, please check your inbox to verify your account.",
	}

	if err := s.sendVerificationMail(ctx, account, verification.Value, "Request Email Verification"); err != nil {
		s.logger.Warn("verification mail dispatch failed", "account_id", account.ID.String(), "error", err)
		result.Warning = "verification email could not be sent"
	}

	return result, nil
}

// ForgotPassword mints a reset token into the shared possession slot and
// mails the reset link. Any pending verification token is invalidated.
func (s *Service) ForgotPassword(ctx context.Context, email string) (Result, error) {
	select {
	case <-ctx.Done():
		return Result{}, goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during password reset initialization")
	default:
	}

	ctx, cancel := context.WithTimeout(ctx, operationTimeout)
	defer cancel()

	account := &Account{}
	var reset PossessionToken

	err := s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		if account, err = s.repo.Accounts().FindByEmailTx(ctx, tx, email); err != nil {
			if repository.IsRecordNotFound(err) {
				return ErrAccountNotFound
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve account for password reset")
		}

		reset = s.machine.IssuePasswordReset(account)

		return s.repo.Accounts().SaveCredentialStateTx(ctx, tx, account)
	})

	if err != nil {
		return Result{}, s.normalizeError(err, "password reset initialization failed")
	}

	result := Result{
		Message: "Password reset email sent, please check your inbox to reset your password.",
	}

	if err := s.sendResetMail(ctx, account, reset.Value); err != nil {
		s.logger.Warn("reset mail dispatch failed", "account_id", account.ID.String(), "error", err)
		result.Warning = "password reset email could not be sent"
	}

	return result, nil
}

// ResetPassword consumes a reset token and stores the new password digest.
func (s *Service) ResetPassword(ctx context.Context, accountID, token, newPassword string) (Result, error) {
	select {
	case <-ctx.Done():
		return Result{}, goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during password reset")
	default:
	}

	ctx, cancel := context.WithTimeout(ctx, operationTimeout)
	defer cancel()

	id, err := uuid.Parse(accountID)
	if err != nil {
		return Result{}, ErrTokenNotFound
	}

	err = s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		account, err := s.repo.Accounts().FindByIDTx(ctx, tx, id)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return ErrTokenNotFound
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve account for password reset")
		}

		hash, err := HashSecret(newPassword, s.cfg.HashCost)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid new password provided")
		}

		if err := s.machine.CompletePasswordReset(account, token, hash); err != nil {
			return err
		}

		return s.repo.Accounts().SaveCredentialStateTx(ctx, tx, account)
	})

	if err != nil {
		return Result{}, s.normalizeError(err, "password reset failed")
	}

	return Result{Message: "Password reset successful, you can now log in with your new password."}, nil
}

func (s *Service) sendVerificationMail(ctx context.Context, account *Account, token, subject string) error {
	return s.mailer.Send(ctx, Message{
		To:       account.Email,
		Subject:  subject,
		Template: TemplateVerifyEmail,
		Context: map[string]any{
			"first_name":       account.FirstName,
			"verification_url": VerificationURL(s.cfg.FrontendURL, token, account.ID.String()),
		},
	})
}

func (s *Service) sendResetMail(ctx context.Context, account *Account, token string) error {
	return s.mailer.Send(ctx, Message{
		To:       account.Email,
		Subject:  "Reset Your Password",
		Template: TemplateResetPassword,
		Context: map[string]any{
			"first_name":         account.FirstName,
			"reset_password_url": ResetPasswordURL(s.cfg.FrontendURL, token, account.ID.String()),
		},
	})
}

func (s *Service) normalizeError(err error, msg string) error {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr
	}

	return goerrors.Wrap(err, goerrors.CategoryInternal, msg)
}
