package users

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// RepositoryManager exposes all repositories
type RepositoryManager interface {
	repository.Validator
	repository.TransactionManager
	Accounts() Accounts
	Sessions() RefreshSessions
	Tokens() LifecycleTokens
	Roles() Roles
	Settings() SettingsRepository
}

type mngr struct {
	db       *bun.DB
	accounts Accounts
	sessions RefreshSessions
	tokens   LifecycleTokens
	roles    Roles
	settings SettingsRepository
}

func NewRepositoryManager(db *bun.DB) RepositoryManager {
	return &mngr{
		db:       db,
		accounts: NewAccountsRepository(db),
		sessions: NewRefreshSessionsRepository(db),
		tokens:   NewLifecycleTokensRepository(db),
		roles:    NewRolesRepository(db),
		settings: NewSettingsRepository(db),
	}
}

func (m mngr) Validate() error {
	if m.accounts == nil {
		return errors.New("repository accounts should be initialized")
	}

	if m.sessions == nil {
		return errors.New("repository sessions should be initialized")
	}

	if m.tokens == nil {
		return errors.New("repository tokens should be initialized")
	}

	if m.roles == nil {
		return errors.New("repository roles should be initialized")
	}

	if m.settings == nil {
		return errors.New("repository settings should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) Accounts() Accounts {
	return m.accounts
}

func (m mngr) Sessions() RefreshSessions {
	return m.sessions
}

func (m mngr) Tokens() LifecycleTokens {
	return m.tokens
}

func (m mngr) Roles() Roles {
	return m.roles
}

func (m mngr) Settings() SettingsRepository {
	return m.settings
}
