package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/devilmonastery/sessionshare/internal/domain/repositories"
	"github.com/devilmonastery/sessionshare/internal/pkg/metrics"
)

// SettingsRepository implements the SettingsRepository interface for PostgreSQL
type SettingsRepository struct {
	db  *sqlx.DB
	log *slog.Logger
}

// NewSettingsRepository creates a new PostgreSQL settings repository
func NewSettingsRepository(db *sqlx.DB) repositories.SettingsRepository {
	return &SettingsRepository{
		db:  db,
		log: slog.Default().With(slog.String("repo", "settings")),
	}
}

type settingRow struct {
	Key   string `db:"key"`
	Value string `db:"value"`
}

// Load returns every option stored under namespace
func (r *SettingsRepository) Load(ctx context.Context, namespace string) (map[string]string, error) {
	start := time.Now()
	var err error
	var rows []settingRow
	defer func() {
		metrics.RecordDBOperation("settings", "load", time.Since(start), int64(len(rows)), err)
	}()

	err = r.db.SelectContext(ctx, &rows,
		`SELECT key, value FROM plugin_settings WHERE namespace = $1`, namespace)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	opts := make(map[string]string, len(rows))
	for _, row := range rows {
		opts[row.Key] = row.Value
	}
	return opts, nil
}

// Save upserts opts in one transaction; empty values remove the key
func (r *SettingsRepository) Save(ctx context.Context, namespace string, opts map[string]string) error {
	start := time.Now()
	var err error
	defer func() {
		metrics.RecordDBOperation("settings", "save", time.Since(start), int64(len(opts)), err)
	}()

	var tx *sqlx.Tx
	tx, err = r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now()
	for key, value := range opts {
		if value == "" {
			_, err = tx.ExecContext(ctx,
				`DELETE FROM plugin_settings WHERE namespace = $1 AND key = $2`, namespace, key)
		} else {
			_, err = tx.ExecContext(ctx, `
				INSERT INTO plugin_settings (namespace, key, value, updated_at)
				VALUES ($1, $2, $3, $4)
				ON CONFLICT (namespace, key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
			`, namespace, key, value, now)
		}
		if err != nil {
			return fmt.Errorf("failed to save setting %s: %w", key, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit settings: %w", err)
	}

	r.log.Info("saved settings", slog.String("namespace", namespace), slog.Int("count", len(opts)))
	return nil
}

var _ repositories.SettingsRepository = (*SettingsRepository)(nil)
