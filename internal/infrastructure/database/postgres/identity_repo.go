package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/devilmonastery/sessionshare/internal/domain/repositories"
	"github.com/devilmonastery/sessionshare/internal/pkg/metrics"
)

// IdentityRepository implements the IdentityRepository interface for PostgreSQL.
// The namespace column holds the mapping key ("<name>:uid").
type IdentityRepository struct {
	db  *sqlx.DB
	log *slog.Logger
}

// NewIdentityRepository creates a new PostgreSQL identity repository
func NewIdentityRepository(db *sqlx.DB) repositories.IdentityRepository {
	return &IdentityRepository{
		db:  db,
		log: slog.Default().With(slog.String("repo", "identity")),
	}
}

// GetByExternalID returns the stored account id as a string, "" if unmapped
func (r *IdentityRepository) GetByExternalID(ctx context.Context, mappingKey, externalID string) (string, error) {
	start := time.Now()
	var err error
	var rowCount int64
	defer func() {
		metrics.RecordDBOperation("identity", "get", time.Since(start), rowCount, err)
	}()

	var uid int64
	query := `SELECT user_id FROM external_identities WHERE namespace = $1 AND external_id = $2`

	err = r.db.GetContext(ctx, &uid, query, mappingKey, externalID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = nil
			return "", nil
		}
		return "", fmt.Errorf("failed to get identity: %w", err)
	}

	rowCount = 1
	return strconv.FormatInt(uid, 10), nil
}

// LinkIfAbsent inserts the mapping unless one exists and returns whichever
// account id is stored afterwards.
func (r *IdentityRepository) LinkIfAbsent(ctx context.Context, mappingKey, externalID string, uid int64) (int64, error) {
	start := time.Now()
	var err error
	var rowCount int64
	defer func() {
		metrics.RecordDBOperation("identity", "link", time.Since(start), rowCount, err)
	}()

	query := `
		INSERT INTO external_identities (namespace, external_id, user_id, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (namespace, external_id) DO NOTHING
	`

	var result sql.Result
	result, err = r.db.ExecContext(ctx, query, mappingKey, externalID, uid, time.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to link identity: %w", err)
	}
	rowCount, _ = result.RowsAffected()
	if rowCount == 1 {
		return uid, nil
	}

	var stored int64
	err = r.db.GetContext(ctx, &stored,
		`SELECT user_id FROM external_identities WHERE namespace = $1 AND external_id = $2`,
		mappingKey, externalID)
	if err != nil {
		return 0, fmt.Errorf("failed to read existing identity: %w", err)
	}

	r.log.Debug("identity already linked",
		slog.String("namespace", mappingKey),
		slog.String("external_id", externalID),
		slog.Int64("uid", stored))
	return stored, nil
}

var _ repositories.IdentityRepository = (*IdentityRepository)(nil)
