package users

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// RefreshSessions exposes refresh session persistence. Revocation is a
// compare-and-set so that concurrent refreshes of the same token elect a
// single winner.
type RefreshSessions interface {
	repository.Repository[*RefreshSession]

	GetByToken(ctx context.Context, token string) (*RefreshSession, error)
	GetByTokenTx(ctx context.Context, tx bun.IDB, token string) (*RefreshSession, error)

	CreateSessionTx(ctx context.Context, tx bun.IDB, login, token string, expireAt time.Time) (*RefreshSession, error)

	// Revoke flips the revoked flag and reports whether this caller won the
	// race. A false return with a nil error means another caller got there
	// first.
	Revoke(ctx context.Context, token string) (bool, error)
	RevokeTx(ctx context.Context, tx bun.IDB, token string) (bool, error)

	RevokeAllForLogin(ctx context.Context, login string) (int64, error)
	RevokeAllForLoginTx(ctx context.Context, tx bun.IDB, login string) (int64, error)

	PurgeExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

type refreshSessions struct {
	repository.Repository[*RefreshSession]
	db *bun.DB
}

var _ RefreshSessions = (*refreshSessions)(nil)

func NewRefreshSessionsRepository(db *bun.DB) RefreshSessions {
	repo := repository.NewRepository[*RefreshSession](db, repository.ModelHandlers[*RefreshSession]{
		NewRecord: func() *RefreshSession { return &RefreshSession{} },
		GetID: func(s *RefreshSession) uuid.UUID {
			if s == nil {
				return uuid.Nil
			}
			return s.ID
		},
		SetID: func(s *RefreshSession, id uuid.UUID) {
			if s != nil {
				s.ID = id
			}
		},
		GetIdentifier: func() string {
			return "token"
		},
	})

	return &refreshSessions{
		Repository: repo,
		db:         db,
	}
}

func (r *refreshSessions) GetByToken(ctx context.Context, token string) (*RefreshSession, error) {
	return r.GetByTokenTx(ctx, r.db, token)
}

func (r *refreshSessions) GetByTokenTx(ctx context.Context, tx bun.IDB, token string) (*RefreshSession, error) {
	record := &RefreshSession{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.token = ?", token).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound()
		}
		return nil, err
	}
	return record, nil
}

func (r *refreshSessions) CreateSessionTx(ctx context.Context, tx bun.IDB, login, token string, expireAt time.Time) (*RefreshSession, error) {
	record := &RefreshSession{
		ID:       uuid.New(),
		Login:    login,
		Token:    token,
		ExpireAt: &expireAt,
	}
	return r.Repository.CreateTx(ctx, tx, record)
}

func (r *refreshSessions) Revoke(ctx context.Context, token string) (bool, error) {
	return r.RevokeTx(ctx, r.db, token)
}

func (r *refreshSessions) RevokeTx(ctx context.Context, tx bun.IDB, token string) (bool, error) {
	res, err := tx.NewUpdate().
		Model((*RefreshSession)(nil)).
		Set("revoked = ?", true).
		Where("token = ?", token).
		Where("revoked = ?", false).
		Exec(ctx)
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return n == 1, nil
}

func (r *refreshSessions) RevokeAllForLogin(ctx context.Context, login string) (int64, error) {
	return r.RevokeAllForLoginTx(ctx, r.db, login)
}

func (r *refreshSessions) RevokeAllForLoginTx(ctx context.Context, tx bun.IDB, login string) (int64, error) {
	res, err := tx.NewUpdate().
		Model((*RefreshSession)(nil)).
		Set("revoked = ?", true).
		Where("login = ?", login).
		Where("revoked = ?", false).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *refreshSessions) PurgeExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.NewDelete().
		Model((*RefreshSession)(nil)).
		Where("expire_at IS NOT NULL").
		Where("expire_at <= ?", cutoff).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
