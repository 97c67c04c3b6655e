package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/devilmonastery/sessionshare/internal/domain/entities"
	"github.com/devilmonastery/sessionshare/internal/domain/repositories"
	"github.com/devilmonastery/sessionshare/internal/pkg/idgen"
	"github.com/devilmonastery/sessionshare/internal/pkg/metrics"
)

const (
	auditKey = "sessionshare:audit"
	// auditCap bounds the audit list; older entries are trimmed on write
	auditCap = 1000
)

// AuditRepository keeps audit entries as JSON in a capped list, newest first
type AuditRepository struct {
	client goredis.UniversalClient
	log    *slog.Logger
}

// NewAuditRepository creates a redis audit repository
func NewAuditRepository(client goredis.UniversalClient) repositories.AuditRepository {
	return &AuditRepository{
		client: client,
		log:    slog.Default().With(slog.String("repo", "audit")),
	}
}

// Create pushes the entry and trims the list
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

	var data []byte
	data, err = json.Marshal(log)
	if err != nil {
		return fmt.Errorf("failed to marshal audit log: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.LPush(ctx, auditKey, data)
	pipe.LTrim(ctx, auditKey, 0, auditCap-1)
	if _, err = pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	return nil
}

// ListRecent returns up to limit entries, newest first
func (r *AuditRepository) ListRecent(ctx context.Context, limit int) ([]*entities.AuditLog, error) {
	start := time.Now()
	var err error
	var raw []string
	defer func() {
		metrics.RecordDBOperation("audit", "list_recent", time.Since(start), int64(len(raw)), err)
	}()

	if limit <= 0 {
		limit = 50
	}

	raw, err = r.client.LRange(ctx, auditKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}

	logs := make([]*entities.AuditLog, 0, len(raw))
	for _, item := range raw {
		var entry entities.AuditLog
		if jsonErr := json.Unmarshal([]byte(item), &entry); jsonErr != nil {
			r.log.Warn("skipping unreadable audit entry", slog.String("error", jsonErr.Error()))
			continue
		}
		logs = append(logs, &entry)
	}
	return logs, nil
}

var _ repositories.AuditRepository = (*AuditRepository)(nil)
