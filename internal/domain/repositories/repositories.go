package repositories

import (
	"context"
)

// Repositories is a collection of all repository interfaces backed by one store
type Repositories struct {
	Users      UserRepository
	Identities IdentityRepository
	Settings   SettingsRepository
	Audit      AuditRepository
}

// HealthChecker defines health check interface for repositories
type HealthChecker interface {
	// HealthCheck performs a health check on the repository
	HealthCheck(ctx context.Context) error
}
