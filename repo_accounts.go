package users

import (
	"context"
	"database/sql"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Accounts exposes account persistence. Every mutation has a Tx variant so
// commands can compose them inside a single transaction.
type Accounts interface {
	repository.Repository[*Account]

	GetByLogin(ctx context.Context, login string, criteria ...repository.SelectCriteria) (*Account, error)
	GetByLoginTx(ctx context.Context, tx bun.IDB, login string, criteria ...repository.SelectCriteria) (*Account, error)

	// GetActiveByEmailTx resolves an account by email, skipping rows that have
	// not completed activation.
	GetActiveByEmailTx(ctx context.Context, tx bun.IDB, email string) (*Account, error)

	// FindCollisions returns every account matching the login or the email.
	FindCollisionsTx(ctx context.Context, tx bun.IDB, login, email string) ([]*Account, error)

	Register(ctx context.Context, account *Account) (*Account, error)
	RegisterTx(ctx context.Context, tx bun.IDB, account *Account) (*Account, error)

	ActivateTx(ctx context.Context, tx bun.IDB, login string) error
	UpdatePasswordTx(ctx context.Context, tx bun.IDB, login, passwordHash string) error
	UpdateProfileTx(ctx context.Context, tx bun.IDB, login string, patch ProfilePatch) (*Account, error)
	DeleteByLoginTx(ctx context.Context, tx bun.IDB, login string) error

	TrackAttemptedLogin(ctx context.Context, account *Account) error
	TrackAttemptedLoginTx(ctx context.Context, tx bun.IDB, account *Account) error
	TrackSuccessfulLogin(ctx context.Context, account *Account) error
	TrackSuccessfulLoginTx(ctx context.Context, tx bun.IDB, account *Account) error
}

// ProfilePatch carries the mutable profile attributes. Identity and
// credential fields are deliberately absent.
type ProfilePatch struct {
	FirstName *string        `json:"first_name,omitempty"`
	LastName  *string        `json:"last_name,omitempty"`
	Phone     *string        `json:"phone_number,omitempty"`
	Email     *string        `json:"email,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

type accounts struct {
	repository.Repository[*Account]
	db *bun.DB
}

var (
	_ Accounts                        = (*accounts)(nil)
	_ repository.Repository[*Account] = (*accounts)(nil)
)

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
			return "login"
		},
	})

	return &accounts{
		Repository: repo,
		db:         db,
	}
}

func (a *accounts) GetByLogin(ctx context.Context, login string, criteria ...repository.SelectCriteria) (*Account, error) {
	return a.GetByLoginTx(ctx, a.db, login, criteria...)
}

func (a *accounts) GetByLoginTx(ctx context.Context, tx bun.IDB, login string, criteria ...repository.SelectCriteria) (*Account, error) {
	record := &Account{}
	q := tx.NewSelect().Model(record)

	for _, c := range criteria {
		q.Apply(c)
	}

	err := q.
		Where("?TableAlias.login = ?", login).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"login": login,
				})
		}
		return nil, err
	}

	return record, nil
}

func (a *accounts) GetActiveByEmailTx(ctx context.Context, tx bun.IDB, email string) (*Account, error) {
	record := &Account{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.email = ?", email).
		Where("?TableAlias.active = ?", true).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"email": email,
				})
		}
		return nil, err
	}

	return record, nil
}

func (a *accounts) FindCollisionsTx(ctx context.Context, tx bun.IDB, login, email string) ([]*Account, error) {
	var records []*Account
	err := tx.NewSelect().
		Model(&records).
		Where("?TableAlias.login = ? OR ?TableAlias.email = ?", login, email).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (a *accounts) Register(ctx context.Context, account *Account) (*Account, error) {
	return a.RegisterTx(ctx, a.db, account)
}

func (a *accounts) RegisterTx(ctx context.Context, tx bun.IDB, account *Account) (*Account, error) {
	prepareAccountDefaults(account)
	return a.Repository.CreateTx(ctx, tx, account)
}

func (a *accounts) ActivateTx(ctx context.Context, tx bun.IDB, login string) error {
	res, err := tx.NewUpdate().
		Model((*Account)(nil)).
		Set("active = ?", true).
		Set("updated_at = ?", time.Now()).
		Where("login = ?", login).
		Exec(ctx)
	if err != nil {
		return err
	}

	return requireAffectedRow(res, login)
}

func (a *accounts) UpdatePasswordTx(ctx context.Context, tx bun.IDB, login, passwordHash string) error {
	res, err := tx.NewUpdate().
		Model((*Account)(nil)).
		Set("password_hash = ?", passwordHash).
		Set("updated_at = ?", time.Now()).
		Where("login = ?", login).
		Exec(ctx)
	if err != nil {
		return err
	}

	return requireAffectedRow(res, login)
}

func (a *accounts) UpdateProfileTx(ctx context.Context, tx bun.IDB, login string, patch ProfilePatch) (*Account, error) {
	record, err := a.GetByLoginTx(ctx, tx, login)
	if err != nil {
		return nil, err
	}

	if patch.FirstName != nil {
		record.FirstName = *patch.FirstName
	}
	if patch.LastName != nil {
		record.LastName = *patch.LastName
	}
	if patch.Phone != nil {
		record.Phone = *patch.Phone
	}
	if patch.Email != nil {
		record.Email = *patch.Email
	}
	for k, v := range patch.Metadata {
		record.AddMetadata(k, v)
	}

	now := time.Now()
	record.UpdatedAt = &now

	return a.Repository.UpdateTx(ctx, tx, record, repository.UpdateByID(record.ID.String()))
}

func (a *accounts) DeleteByLoginTx(ctx context.Context, tx bun.IDB, login string) error {
	_, err := tx.NewDelete().
		Model((*Account)(nil)).
		Where("login = ?", login).
		Exec(ctx)
	return err
}

func (a *accounts) TrackSuccessfulLogin(ctx context.Context, account *Account) error {
	return a.TrackSuccessfulLoginTx(ctx, a.db, account)
}

func (a *accounts) TrackSuccessfulLoginTx(ctx context.Context, tx bun.IDB, account *Account) error {
	// NOTE: Updating using the ORM fails due to a bug, it wont reset
	// login_attempt_at, login_attempts fields.
	loggedInAt := time.Now()
	_, err := tx.NewRaw(`
		UPDATE "accounts" AS "acc"
		SET
			"loggedin_at" = ?,
			"login_attempt_at" = NULL,
			"login_attempts" = 0
		WHERE
			("acc".id = ?);
	`, loggedInAt, account.ID).Exec(ctx)

	return err
}

func (a *accounts) TrackAttemptedLogin(ctx context.Context, account *Account) error {
	return a.TrackAttemptedLoginTx(ctx, a.db, account)
}

func (a *accounts) TrackAttemptedLoginTx(ctx context.Context, tx bun.IDB, account *Account) error {
	criteria := []repository.UpdateCriteria{
		repository.UpdateByID(account.ID.String()),
	}

	record := &Account{}
	record.ID = account.ID
	record.LoginAttempts = account.LoginAttempts + 1
	now := time.Now()
	record.LoginAttemptAt = &now

	_, err := a.Repository.UpdateTx(ctx, tx, record, criteria...)

	return err
}

func requireAffectedRow(res sql.Result, login string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"login": login,
			})
	}
	return nil
}

func prepareAccountDefaults(record *Account) {
	if record == nil {
		return
	}

	if record.Role == "" {
		record.Role = RoleUser
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
}
