package users

import (
	"context"

	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// Roles exposes logical role persistence. Provisioning of the native
// principals that back each role happens in the service layer so the row and
// the principal move together inside one operation.
type Roles interface {
	List(ctx context.Context) ([]*Role, error)
	ListTx(ctx context.Context, tx bun.IDB) ([]*Role, error)

	Get(ctx context.Context, name string) (*Role, error)

	CreateTx(ctx context.Context, tx bun.IDB, role *Role) (*Role, error)
	DeleteTx(ctx context.Context, tx bun.IDB, name string) error

	// InUseTx reports whether any account is still assigned the role.
	InUseTx(ctx context.Context, tx bun.IDB, name string) (bool, error)
}

type roles struct {
	db *bun.DB
}

var _ Roles = (*roles)(nil)

func NewRolesRepository(db *bun.DB) Roles {
	return &roles{db: db}
}

func (r *roles) List(ctx context.Context) ([]*Role, error) {
	return r.ListTx(ctx, r.db)
}

func (r *roles) ListTx(ctx context.Context, tx bun.IDB) ([]*Role, error) {
	var records []*Role
	err := tx.NewSelect().
		Model(&records).
		Order("display_order ASC").
		Order("role ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r *roles) Get(ctx context.Context, name string) (*Role, error) {
	record := &Role{}
	err := r.db.NewSelect().
		Model(record).
		Where("?TableAlias.role = ?", name).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"role": name,
				})
		}
		return nil, err
	}
	return record, nil
}

func (r *roles) CreateTx(ctx context.Context, tx bun.IDB, role *Role) (*Role, error) {
	if _, err := tx.NewInsert().Model(role).Exec(ctx); err != nil {
		return nil, err
	}
	return role, nil
}

func (r *roles) DeleteTx(ctx context.Context, tx bun.IDB, name string) error {
	res, err := tx.NewDelete().
		Model((*Role)(nil)).
		Where("role = ?", name).
		Exec(ctx)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"role": name,
			})
	}
	return nil
}

func (r *roles) InUseTx(ctx context.Context, tx bun.IDB, name string) (bool, error) {
	n, err := tx.NewSelect().
		Model((*Account)(nil)).
		Where("role = ?", name).
		Count(ctx)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
