package users

import (
	"context"
	"database/sql"
	"io/fs"

	"github.com/goliatone/go-persistence-bun"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/schema"
)

// RegisterModels registers every model with the persistence client so
// relations resolve before queries run.
func RegisterModels() {
	persistence.RegisterModel((*Account)(nil))
	persistence.RegisterModel((*RefreshSession)(nil))
	persistence.RegisterModel((*LifecycleToken)(nil))
	persistence.RegisterModel((*Role)(nil))
	persistence.RegisterModel((*Settings)(nil))
}

// NewPersistence builds a persistence client with the package migrations
// registered for both supported dialects and runs them.
func NewPersistence(ctx context.Context, cfg persistence.Config, db *sql.DB, dialect schema.Dialect) (*persistence.Client, error) {
	RegisterModels()

	client, err := persistence.New(cfg, db, dialect)
	if err != nil {
		return nil, err
	}

	migrations, err := fs.Sub(GetMigrationsFS(), "data/sql/migrations")
	if err != nil {
		return nil, err
	}

	client.RegisterDialectMigrations(
		migrations,
		persistence.WithDialectSourceLabel("data/sql/migrations"),
		persistence.WithValidationTargets("postgres", "sqlite"),
	)

	if err := client.ValidateDialects(ctx); err != nil {
		return nil, err
	}

	if err := client.Migrate(ctx); err != nil {
		return nil, err
	}

	return client, nil
}

// MustDB unwraps the bun handle from a persistence client.
func MustDB(client *persistence.Client) *bun.DB {
	return client.DB()
}
