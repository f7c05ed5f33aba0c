package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/lipanganya/doctime-api/internal/model"
	"github.com/lipanganya/doctime-api/internal/repository"
)

type settingRepository struct {
	BaseRepository
}

func NewSettingRepository(base BaseRepository) repository.SettingRepository {
	return &settingRepository{base}
}

func (r *settingRepository) Get(ctx context.Context, key string) (*model.Setting, error) {
	var s model.Setting
	err := r.db.GetContext(ctx, &s,
		`SELECT key, value, description, updated_at FROM settings WHERE key = $1`, key)
	if err != nil {
		return nil, notFound(err, "get setting")
	}
	return &s, nil
}

func (r *settingRepository) List(ctx context.Context) ([]*model.Setting, error) {
	var settings []*model.Setting
	err := r.db.SelectContext(ctx, &settings,
		`SELECT key, value, description, updated_at FROM settings ORDER BY key ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list settings: %w", err)
	}
	return settings, nil
}

func (r *settingRepository) Upsert(ctx context.Context, s *model.Setting) error {
	query := `
		INSERT INTO settings (key, value, description, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (key) DO UPDATE SET
			value = EXCLUDED.value,
			description = COALESCE(EXCLUDED.description, settings.description),
			updated_at = EXCLUDED.updated_at
		RETURNING description
	`
	s.UpdatedAt = time.Now()
	if err := r.db.GetContext(ctx, &s.Description, query, s.Key, s.Value, s.Description, s.UpdatedAt); err != nil {
		return fmt.Errorf("failed to upsert setting: %w", err)
	}
	return nil
}
