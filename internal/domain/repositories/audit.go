package repositories

import (
	"context"

	"github.com/devilmonastery/sessionshare/internal/domain/entities"
)

// AuditRepository defines the interface for audit log data access
type AuditRepository interface {
	// Create a new audit log entry
	Create(ctx context.Context, log *entities.AuditLog) error

	// ListRecent returns the newest entries first, at most limit
	ListRecent(ctx context.Context, limit int) ([]*entities.AuditLog, error)
}
