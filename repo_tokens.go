package users

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// LifecycleTokens exposes activation and password-reset token persistence.
// Consumption is a compare-and-set on used_at so a token can never be spent
// twice, even under concurrent finalize calls.
type LifecycleTokens interface {
	repository.Repository[*LifecycleToken]

	IssueTx(ctx context.Context, tx bun.IDB, login, token string, kind TokenType, expireAt time.Time) (*LifecycleToken, error)

	// ConsumeTx marks the matching unspent token used and returns its row.
	// Expired, spent, or unknown tokens yield ErrTokenExpiredOrConsumed.
	ConsumeTx(ctx context.Context, tx bun.IDB, token string, kind TokenType) (*LifecycleToken, error)

	// ConsumeForLoginTx is the code variant: the token value is only unique
	// per account, so the login narrows the match.
	ConsumeForLoginTx(ctx context.Context, tx bun.IDB, login, token string, kind TokenType) (*LifecycleToken, error)

	DeleteForLoginTx(ctx context.Context, tx bun.IDB, login string, kind TokenType) error
}

type lifecycleTokens struct {
	repository.Repository[*LifecycleToken]
	db *bun.DB
}

var _ LifecycleTokens = (*lifecycleTokens)(nil)

func NewLifecycleTokensRepository(db *bun.DB) LifecycleTokens {
	repo := repository.NewRepository[*LifecycleToken](db, repository.ModelHandlers[*LifecycleToken]{
		NewRecord: func() *LifecycleToken { return &LifecycleToken{} },
		GetID: func(t *LifecycleToken) uuid.UUID {
			if t == nil {
				return uuid.Nil
			}
			return t.ID
		},
		SetID: func(t *LifecycleToken, id uuid.UUID) {
			if t != nil {
				t.ID = id
			}
		},
		GetIdentifier: func() string {
			return "token"
		},
	})

	return &lifecycleTokens{
		Repository: repo,
		db:         db,
	}
}

func (r *lifecycleTokens) IssueTx(ctx context.Context, tx bun.IDB, login, token string, kind TokenType, expireAt time.Time) (*LifecycleToken, error) {
	record := &LifecycleToken{
		ID:       uuid.New(),
		Type:     kind,
		Token:    token,
		Login:    login,
		ExpireAt: &expireAt,
	}
	return r.Repository.CreateTx(ctx, tx, record)
}

func (r *lifecycleTokens) ConsumeTx(ctx context.Context, tx bun.IDB, token string, kind TokenType) (*LifecycleToken, error) {
	return r.consume(ctx, tx, "", token, kind)
}

func (r *lifecycleTokens) ConsumeForLoginTx(ctx context.Context, tx bun.IDB, login, token string, kind TokenType) (*LifecycleToken, error) {
	return r.consume(ctx, tx, login, token, kind)
}

func (r *lifecycleTokens) consume(ctx context.Context, tx bun.IDB, login, token string, kind TokenType) (*LifecycleToken, error) {
	now := time.Now()

	q := tx.NewUpdate().
		Model((*LifecycleToken)(nil)).
		Set("used_at = ?", now).
		Where("token = ?", token).
		Where("type = ?", kind).
		Where("used_at IS NULL").
		Where("(expire_at IS NULL OR expire_at > ?)", now)

	if login != "" {
		q = q.Where("login = ?", login)
	}

	res, err := q.Exec(ctx)
	if err != nil {
		return nil, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, ErrTokenExpiredOrConsumed
	}

	record := &LifecycleToken{}
	sel := tx.NewSelect().
		Model(record).
		Where("?TableAlias.token = ?", token).
		Where("?TableAlias.type = ?", kind)
	if login != "" {
		sel = sel.Where("?TableAlias.login = ?", login)
	}

	if err := sel.Limit(1).Scan(ctx); err != nil {
		return nil, err
	}

	return record, nil
}

func (r *lifecycleTokens) DeleteForLoginTx(ctx context.Context, tx bun.IDB, login string, kind TokenType) error {
	_, err := tx.NewDelete().
		Model((*LifecycleToken)(nil)).
		Where("login = ?", login).
		Where("type = ?", kind).
		Exec(ctx)
	return err
}
