package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/sector-mail-desk/internal/domain"
)

const ingestionSettingsKey = "ingestion"

// SettingsRepository reads and writes the ingestion settings document.
type SettingsRepository interface {
	Get(ctx context.Context) (domain.Settings, error)
	Save(ctx context.Context, settings domain.Settings) error
}

type settingsRepository struct {
	pool *pgxpool.Pool
}

// NewSettingsRepository builds repository.
func NewSettingsRepository(pool *pgxpool.Pool) SettingsRepository {
	return &settingsRepository{pool: pool}
}

// Get returns the stored settings; a missing document yields empty settings.
func (r *settingsRepository) Get(ctx context.Context) (domain.Settings, error) {
	var raw []byte
	err := r.pool.QueryRow(ctx, `SELECT value FROM settings WHERE key=$1`, ingestionSettingsKey).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Settings{Sectors: map[domain.Sector]domain.SectorConfig{}}, nil
	}
	if err != nil {
		return domain.Settings{}, err
	}
	return domain.ParseSettings(raw)
}

func (r *settingsRepository) Save(ctx context.Context, settings domain.Settings) error {
	raw, err := domain.MarshalSettings(settings)
	if err != nil {
		return err
	}
	const query = `
        INSERT INTO settings (key, value, updated_at) VALUES ($1, $2, NOW())
        ON CONFLICT (key) DO UPDATE SET value=EXCLUDED.value, updated_at=NOW()`
	_, err = r.pool.Exec(ctx, query, ingestionSettingsKey, raw)
	return err
}
