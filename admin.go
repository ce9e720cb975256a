package accounts

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// AccountPage is one page of sanitized account listings.
type AccountPage struct {
	Accounts   []Profile `json:"accounts"`
	Total      int       `json:"total"`
	Page       int       `json:"page"`
	TotalPages int       `json:"total_pages"`
}

// CreateAccountMessage registers an account on behalf of an operator. The
// account still starts unverified and gets the usual verification mail,
// only the role assignment is privileged.
type CreateAccountMessage struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
	Role      string `json:"role"`
}

func (m CreateAccountMessage) Type() string { return "account.create" }

// UpdateAccountMessage updates mutable profile fields. Empty fields are
// left untouched.
type UpdateAccountMessage struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
}

func (m UpdateAccountMessage) Type() string { return "account.update" }

// GetAccount returns the sanitized profile for an account.
func (s *Service) GetAccount(ctx context.Context, accountID string) (Profile, error) {
	id, err := uuid.Parse(accountID)
	if err != nil {
		return Profile{}, ErrAccountNotFound
	}

	account, err := s.repo.Accounts().FindByID(ctx, id)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return Profile{}, ErrAccountNotFound
		}
		return Profile{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve account")
	}

	return account.Sanitize(), nil
}

// ListAccounts returns a page of sanitized profiles ordered newest first.
func (s *Service) ListAccounts(ctx context.Context, page, limit int) (AccountPage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}

	records, total, err := s.repo.Accounts().ListPage(ctx, page, limit)
	if err != nil {
		return AccountPage{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to list accounts")
	}

	profiles := make([]Profile, 0, len(records))
	for _, record := range records {
		profiles = append(profiles, record.Sanitize())
	}

	totalPages := total / limit
	if total%limit != 0 {
		totalPages++
	}

	return AccountPage{
		Accounts:   profiles,
		Total:      total,
		Page:       page,
		TotalPages: totalPages,
	}, nil
}

// CreateAccount registers an account with an explicit role. Like self
// service registration the account starts unverified and a verification
// link is mailed to the new owner.
func (s *Service) CreateAccount(ctx context.Context, msg CreateAccountMessage) (Profile, error) {
	select {
	case <-ctx.Done():
		return Profile{}, goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during account creation")
	default:
	}

	ctx, cancel := context.WithTimeout(ctx, operationTimeout)
	defer cancel()

	if msg.Role != "" && !IsValidRole(msg.Role) {
		return Profile{}, goerrors.New("invalid role", goerrors.CategoryBadInput).
			WithTextCode("INVALID_ROLE").
			WithMetadata(map[string]any{"role": msg.Role})
	}

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
		account.Role = msg.Role

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
		return Profile{}, s.normalizeError(err, "account creation failed")
	}

	if err := s.sendVerificationMail(ctx, account, verification.Value, "Verify Your Email Address"); err != nil {
		s.logger.Warn("verification mail dispatch failed", "account_id", account.ID.String(), "error", err)
	}

	return account.Sanitize(), nil
}

// UpdateAccount applies profile changes and returns the updated profile.
func (s *Service) UpdateAccount(ctx context.Context, accountID string, msg UpdateAccountMessage) (Profile, error) {
	select {
	case <-ctx.Done():
		return Profile{}, goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during account update")
	default:
	}

	ctx, cancel := context.WithTimeout(ctx, operationTimeout)
	defer cancel()

	id, err := uuid.Parse(accountID)
	if err != nil {
		return Profile{}, ErrAccountNotFound
	}

	account := &Account{}

	err = s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		if account, err = s.repo.Accounts().FindByIDTx(ctx, tx, id); err != nil {
			if repository.IsRecordNotFound(err) {
				return ErrAccountNotFound
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve account for update")
		}

		if msg.FirstName != "" {
			account.FirstName = msg.FirstName
		}
		if msg.LastName != "" {
			account.LastName = msg.LastName
		}
		if msg.Phone != "" {
			account.Phone = msg.Phone
		}
		now := time.Now()
		account.UpdatedAt = &now

		if account, err = s.repo.Accounts().UpdateTx(ctx, tx, account); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update account")
		}

		return nil
	})

	if err != nil {
		return Profile{}, s.normalizeError(err, "account update failed")
	}

	return account.Sanitize(), nil
}

// DeleteAccount soft deletes an account. Its sessions die with it since
// lookups exclude deleted rows.
func (s *Service) DeleteAccount(ctx context.Context, accountID string) (Result, error) {
	id, err := uuid.Parse(accountID)
	if err != nil {
		return Result{}, ErrAccountNotFound
	}

	if err := s.repo.Accounts().DeleteByID(ctx, id); err != nil {
		if repository.IsRecordNotFound(err) {
			return Result{}, ErrAccountNotFound
		}
		return Result{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to delete account")
	}

	return Result{Message: "Account deleted successfully"}, nil
}
