package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/devilmonastery/sessionshare/internal/domain/entities"
	"github.com/devilmonastery/sessionshare/internal/domain/repositories"
	"github.com/devilmonastery/sessionshare/internal/pkg/idgen"
	"github.com/devilmonastery/sessionshare/internal/pkg/metrics"
)

// AuditRepository implements the AuditRepository interface for PostgreSQL
type AuditRepository struct {
	db  *sqlx.DB
	log *slog.Logger
}

// NewAuditRepository creates a new PostgreSQL audit repository
func NewAuditRepository(db *sqlx.DB) repositories.AuditRepository {
	return &AuditRepository{
		db:  db,
		log: slog.Default().With(slog.String("repo", "audit")),
	}
}

// auditLogRow represents an audit log as stored in the database
type auditLogRow struct {
	ID         string         `db:"id"`
	UserID     sql.NullInt64  `db:"user_id"`
	Action     string         `db:"action"`
	Resource   string         `db:"resource_type"`
	ResourceID sql.NullString `db:"resource_id"`
	Metadata   string         `db:"metadata"`
	Success    bool           `db:"success"`
	ErrorMsg   sql.NullString `db:"error_message"`
	CreatedAt  time.Time      `db:"timestamp"`
}

func (r *auditLogRow) toEntity() (*entities.AuditLog, error) {
	auditLog := &entities.AuditLog{
		ID:        r.ID,
		Action:    entities.AuditAction(r.Action),
		Resource:  entities.AuditResource(r.Resource),
		Success:   r.Success,
		CreatedAt: r.CreatedAt,
	}
	if r.UserID.Valid {
		uid := r.UserID.Int64
		auditLog.UserID = &uid
	}
	if r.ResourceID.Valid {
		auditLog.ResourceID = &r.ResourceID.String
	}
	if r.ErrorMsg.Valid {
		auditLog.ErrorMsg = &r.ErrorMsg.String
	}
	if err := auditLog.UnmarshalMetadataFromJSON(r.Metadata); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}
	return auditLog, nil
}

// Create stores an audit entry, assigning an id and timestamp when missing
func (r *AuditRepository) Create(ctx context.Context, log *entities.AuditLog) error {
	start := time.Now()
	var err error
	defer func() {
		metrics.RecordDBOperation("audit", "create", time.Since(start), 1, err)
	}()

	if log.ID == "" {
		log.ID = idgen.GenerateID()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now()
	}

	var metadata string
	metadata, err = log.MarshalMetadataToJSON()
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	row := &auditLogRow{
		ID:        log.ID,
		Action:    string(log.Action),
		Resource:  string(log.Resource),
		Metadata:  metadata,
		Success:   log.Success,
		CreatedAt: log.CreatedAt,
	}
	if log.UserID != nil {
		row.UserID = sql.NullInt64{Int64: *log.UserID, Valid: true}
	}
	if log.ResourceID != nil {
		row.ResourceID = sql.NullString{String: *log.ResourceID, Valid: true}
	}
	if log.ErrorMsg != nil {
		row.ErrorMsg = sql.NullString{String: *log.ErrorMsg, Valid: true}
	}

	query := `
		INSERT INTO audit_logs (id, user_id, action, resource_type, resource_id, metadata, success, error_message, timestamp)
		VALUES (:id, :user_id, :action, :resource_type, :resource_id, :metadata, :success, :error_message, :timestamp)
	`
	_, err = r.db.NamedExecContext(ctx, query, row)
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	return nil
}

// ListRecent returns the newest entries first
func (r *AuditRepository) ListRecent(ctx context.Context, limit int) ([]*entities.AuditLog, error) {
	start := time.Now()
	var err error
	var rows []auditLogRow
	defer func() {
		metrics.RecordDBOperation("audit", "list_recent", time.Since(start), int64(len(rows)), err)
	}()

	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, user_id, action, resource_type, resource_id, metadata, success, error_message, timestamp
		FROM audit_logs
		ORDER BY timestamp DESC
		LIMIT $1
	`
	err = r.db.SelectContext(ctx, &rows, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}

	logs := make([]*entities.AuditLog, 0, len(rows))
	for i := range rows {
		entry, convErr := rows[i].toEntity()
		if convErr != nil {
			r.log.Warn("skipping unreadable audit entry", slog.String("id", rows[i].ID), slog.String("error", convErr.Error()))
			continue
		}
		logs = append(logs, entry)
	}
	return logs, nil
}

var _ repositories.AuditRepository = (*AuditRepository)(nil)
