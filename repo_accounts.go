package accounts

import (
	"time"

	"context"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// SaveCredentialStateSQL persists every credential field in one statement.
// NOTE: the ORM update path skips zero values on nullzero columns, so it
// cannot clear token slots back to NULL; raw SQL is the reliable way to
// keep "value and expiry set or cleared together" true at the row level.
var SaveCredentialStateSQL = `UPDATE "accounts" AS "acc"
SET
	"password_hash" = ?,
	"is_email_verified" = ?,
	"possession_token" = ?,
	"possession_expires_at" = ?,
	"refresh_token_hash" = ?,
	"refresh_expires_at" = ?,
	"updated_at" = ?
WHERE
	"acc"."deleted_at" IS NULL
AND (
	"acc"."id" = ?
) RETURNING *;`

// Accounts is the persistent account store
type Accounts interface {
	repository.Repository[*Account]

	Register(ctx context.Context, account *Account) (*Account, error)
	RegisterTx(ctx context.Context, tx bun.IDB, account *Account) (*Account, error)

	FindByEmail(ctx context.Context, email string) (*Account, error)
	FindByEmailTx(ctx context.Context, tx bun.IDB, email string) (*Account, error)
	FindByID(ctx context.Context, id uuid.UUID) (*Account, error)
	FindByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*Account, error)

	SaveCredentialState(ctx context.Context, account *Account) error
	SaveCredentialStateTx(ctx context.Context, tx bun.IDB, account *Account) error

	ListPage(ctx context.Context, page, limit int) ([]*Account, int, error)
	DeleteByID(ctx context.Context, id uuid.UUID) error
}

type accountsRepo struct {
	repository.Repository[*Account]
	db *bun.DB
}

var (
	_ Accounts                        = (*accountsRepo)(nil)
	_ repository.Repository[*Account] = (*accountsRepo)(nil)
)

// NewAccountsRepository builds the bun-backed account store.
func NewAccountsRepository(db *bun.DB) Accounts {
	repo := repository.NewRepository[*Account](db, repository.ModelHandlers[*Account]{
		NewRecord: func() *Account { return &Account{} },
		GetID: func(a *Account) uuid.UUID {
			if a == nil {
				return uuid.Nil
			}
			return a.ID
		},
		SetID: func(a *Account, id uuid.UUID) {
			if a != nil {
				a.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &accountsRepo{
		Repository: repo,
		db:         db,
	}
}

func (a *accountsRepo) Register(ctx context.Context, account *Account) (*Account, error) {
	return a.RegisterTx(ctx, a.db, account)
}

func (a *accountsRepo) RegisterTx(ctx context.Context, tx bun.IDB, account *Account) (*Account, error) {
	prepareAccountDefaults(account)
	return a.Repository.CreateTx(ctx, tx, account)
}

func (a *accountsRepo) FindByEmail(ctx context.Context, email string) (*Account, error) {
	return a.FindByEmailTx(ctx, a.db, email)
}

// FindByEmailTx looks an account up by exact email match, as stored. No
// trimming or case folding happens here.
func (a *accountsRepo) FindByEmailTx(ctx context.Context, tx bun.IDB, email string) (*Account, error) {
	record := &Account{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.email = ?", email).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{"email": email})
		}
		return nil, err
	}

	return record, nil
}

func (a *accountsRepo) FindByID(ctx context.Context, id uuid.UUID) (*Account, error) {
	return a.FindByIDTx(ctx, a.db, id)
}

func (a *accountsRepo) FindByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*Account, error) {
	record := &Account{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{"id": id.String()})
		}
		return nil, err
	}

	return record, nil
}

func (a *accountsRepo) SaveCredentialState(ctx context.Context, account *Account) error {
	return a.SaveCredentialStateTx(ctx, a.db, account)
}

func (a *accountsRepo) SaveCredentialStateTx(ctx context.Context, tx bun.IDB, account *Account) error {
	now := time.Now()
	res, err := a.Repository.RawTx(ctx, tx, SaveCredentialStateSQL,
		account.PasswordHash,
		account.EmailVerified,
		account.PossessionToken,
		account.PossessionExpiresAt,
		account.RefreshTokenHash,
		account.RefreshExpiresAt,
		now,
		account.ID.String(),
	)
	if err != nil {
		return err
	}

	if len(res) == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{"id": account.ID.String()})
	}

	return nil
}

func (a *accountsRepo) ListPage(ctx context.Context, page, limit int) ([]*Account, int, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}

	records := []*Account{}
	total, err := a.db.NewSelect().
		Model(&records).
		Order("created_at DESC").
		Limit(limit).
		Offset((page - 1) * limit).
		ScanAndCount(ctx)

	if err != nil {
		return nil, 0, err
	}

	return records, total, nil
}

func (a *accountsRepo) DeleteByID(ctx context.Context, id uuid.UUID) error {
	res, err := a.db.NewDelete().
		Model((*Account)(nil)).
		Where("id = ?", id).
		Exec(ctx)

	if err != nil {
		return err
	}

	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{"id": id.String()})
	}

	return nil
}

func prepareAccountDefaults(record *Account) {
	if record == nil {
		return
	}

	if record.Role == "" {
		record.Role = RoleClient
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
}
