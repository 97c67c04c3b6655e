// Package storage opens the configured persistence backend.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/devilmonastery/sessionshare/internal/config"
	"github.com/devilmonastery/sessionshare/internal/domain/repositories"
	"github.com/devilmonastery/sessionshare/internal/infrastructure/database/postgres"
	"github.com/devilmonastery/sessionshare/internal/infrastructure/database/redis"
	"github.com/devilmonastery/sessionshare/internal/infrastructure/memory"
	"github.com/devilmonastery/sessionshare/migrations"
)

// Options tune Open
type Options struct {
	// SkipMigrations leaves the postgres schema untouched
	SkipMigrations bool
	// MaxRetries bounds connection attempts; 0 means 10
	MaxRetries int
	// RetryDelay is the first backoff delay; 0 means 2s
	RetryDelay time.Duration
}

// Backend is an opened store
type Backend struct {
	Name  string
	Repos *repositories.Repositories
	// Postgres is set only for the postgres backend
	Postgres *postgres.Connection

	health  repositories.HealthChecker
	closeFn func() error
}

// HealthCheck pings the underlying store
func (b *Backend) HealthCheck(ctx context.Context) error {
	return b.health.HealthCheck(ctx)
}

// Close releases connections
func (b *Backend) Close() error {
	if b.closeFn == nil {
		return nil
	}
	return b.closeFn()
}

// Open connects to the backend named by cfg.Store.Backend
func Open(ctx context.Context, cfg *config.Config, opts Options) (*Backend, error) {
	logger := slog.Default().With("component", "storage")

	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 10
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 2 * time.Second
	}

	switch cfg.Store.Backend {
	case config.StoreMemory:
		logger.Warn("Using in-memory store, accounts and mappings are lost on restart")
		store := memory.NewStore()
		return &Backend{Name: config.StoreMemory, Repos: store.Repositories(), health: store}, nil

	case config.StoreRedis:
		logger.Info("Connecting to redis", "addr", cfg.Redis.Addr, "db", cfg.Redis.DB)
		store, err := withRetry(ctx, logger, "redis", opts, func() (*redis.Store, error) {
			return redis.New(ctx, cfg.Redis)
		})
		if err != nil {
			return nil, err
		}
		return &Backend{Name: config.StoreRedis, Repos: store.Repositories(), health: store, closeFn: store.Close}, nil

	case config.StorePostgres, "":
		logger.Info("Connecting to PostgreSQL", "target", cfg.Database.Postgres.Redacted())
		conn, err := withRetry(ctx, logger, "PostgreSQL", opts, func() (*postgres.Connection, error) {
			return postgres.NewConnection(cfg.Database.Postgres.ConnectionString())
		})
		if err != nil {
			return nil, err
		}
		if !opts.SkipMigrations {
			if err := conn.RunMigrations(migrations.FS); err != nil {
				_ = conn.Close()
				return nil, fmt.Errorf("failed to run PostgreSQL migrations: %w", err)
			}
		}
		return &Backend{
			Name:     config.StorePostgres,
			Repos:    postgres.NewRepositories(conn),
			Postgres: conn,
			health:   conn,
			closeFn:  conn.Close,
		}, nil

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// withRetry retries connect with exponential backoff capped at 30s
func withRetry[T any](ctx context.Context, logger *slog.Logger, what string, opts Options, connect func() (T, error)) (T, error) {
	var zero T
	delay := opts.RetryDelay
	for i := 0; i < opts.MaxRetries; i++ {
		conn, err := connect()
		if err == nil {
			logger.Info("Connected", "store", what)
			return conn, nil
		}
		if i == opts.MaxRetries-1 {
			return zero, fmt.Errorf("failed to connect to %s after %d attempts: %w", what, opts.MaxRetries, err)
		}

		logger.Warn("Failed to connect",
			"store", what,
			"attempt", i+1,
			"max_retries", opts.MaxRetries,
			"error", err,
			"retry_delay", delay)

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > 30*time.Second {
			delay = 30 * time.Second
		}
	}
	return zero, fmt.Errorf("failed to connect to %s", what)
}
