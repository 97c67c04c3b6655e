package postgres

import "github.com/devilmonastery/sessionshare/internal/domain/repositories"

// NewRepositories wires every PostgreSQL repository over one connection
func NewRepositories(conn *Connection) *repositories.Repositories {
	return &repositories.Repositories{
		Users:      NewUserRepository(conn.DB),
		Identities: NewIdentityRepository(conn.DB),
		Settings:   NewSettingsRepository(conn.DB),
		Audit:      NewAuditRepository(conn.DB),
	}
}
