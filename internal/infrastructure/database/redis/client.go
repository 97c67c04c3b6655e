// Package redis stores accounts, identity mappings, settings and audit
// entries in a forum-compatible redis keyspace.
package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/devilmonastery/sessionshare/internal/config"
	"github.com/devilmonastery/sessionshare/internal/domain/repositories"
)

// Default timeouts for redis operations.
const (
	DefaultDialTimeout  = 5 * time.Second
	DefaultReadTimeout  = 3 * time.Second
	DefaultWriteTimeout = 3 * time.Second
)

// Store owns the redis client shared by the repositories
type Store struct {
	client goredis.UniversalClient
}

// New connects to redis and verifies the connection with a ping
func New(ctx context.Context, cfg config.RedisConfig) (*Store, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:         cfg.Addr,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  DefaultDialTimeout,
		ReadTimeout:  DefaultReadTimeout,
		WriteTimeout: DefaultWriteTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, DefaultDialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Store{client: client}, nil
}

// NewWithClient wraps an existing client; tests pass a miniredis-backed one
func NewWithClient(client goredis.UniversalClient) *Store {
	return &Store{client: client}
}

// Repositories returns every repository over this store
func (s *Store) Repositories() *repositories.Repositories {
	return &repositories.Repositories{
		Users:      NewUserRepository(s.client),
		Identities: NewIdentityRepository(s.client),
		Settings:   NewSettingsRepository(s.client),
		Audit:      NewAuditRepository(s.client),
	}
}

// HealthCheck pings redis
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the client
func (s *Store) Close() error {
	return s.client.Close()
}

var _ repositories.HealthChecker = (*Store)(nil)
