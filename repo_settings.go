package users

import (
	"context"

	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// SettingsRepository reads and writes the singleton settings row. A missing
// row is not an error; callers get the locked-down defaults.
type SettingsRepository interface {
	SettingsProvider

	GetTx(ctx context.Context, tx bun.IDB) (*Settings, error)
	Upsert(ctx context.Context, settings *Settings) (*Settings, error)
	UpsertTx(ctx context.Context, tx bun.IDB, settings *Settings) (*Settings, error)
}

type settingsRepo struct {
	db *bun.DB
}

var _ SettingsRepository = (*settingsRepo)(nil)

func NewSettingsRepository(db *bun.DB) SettingsRepository {
	return &settingsRepo{db: db}
}

func (r *settingsRepo) Get(ctx context.Context) (*Settings, error) {
	return r.GetTx(ctx, r.db)
}

func (r *settingsRepo) GetTx(ctx context.Context, tx bun.IDB) (*Settings, error) {
	record := &Settings{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", 1).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return DefaultSettings(), nil
		}
		return nil, err
	}
	return record, nil
}

func (r *settingsRepo) Upsert(ctx context.Context, settings *Settings) (*Settings, error) {
	return r.UpsertTx(ctx, r.db, settings)
}

func (r *settingsRepo) UpsertTx(ctx context.Context, tx bun.IDB, settings *Settings) (*Settings, error) {
	settings.ID = 1

	_, err := tx.NewInsert().
		Model(settings).
		On("CONFLICT (id) DO UPDATE").
		Set("public_creation = EXCLUDED.public_creation").
		Set("role_on_public_creation = EXCLUDED.role_on_public_creation").
		Set("active_on_creation = EXCLUDED.active_on_creation").
		Set("allow_reset_password = EXCLUDED.allow_reset_password").
		Set("message_template_activation = EXCLUDED.message_template_activation").
		Set("message_template_password_reset = EXCLUDED.message_template_password_reset").
		Set("access_token_ttl_minutes = EXCLUDED.access_token_ttl_minutes").
		Set("refresh_token_ttl_minutes = EXCLUDED.refresh_token_ttl_minutes").
		Set("activation_token_ttl_minutes = EXCLUDED.activation_token_ttl_minutes").
		Set("activation_token_type = EXCLUDED.activation_token_type").
		Set("activation_token_length = EXCLUDED.activation_token_length").
		Set("reset_password_token_ttl_minutes = EXCLUDED.reset_password_token_ttl_minutes").
		Exec(ctx)
	if err != nil {
		return nil, err
	}

	return settings, nil
}
