package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/devilmonastery/sessionshare/internal/domain/repositories"
	"github.com/devilmonastery/sessionshare/internal/pkg/metrics"
)

// SettingsRepository keeps plugin options in the settings:<namespace> hash
type SettingsRepository struct {
	client goredis.UniversalClient
}

// NewSettingsRepository creates a redis settings repository
func NewSettingsRepository(client goredis.UniversalClient) repositories.SettingsRepository {
	return &SettingsRepository{client: client}
}

func settingsKey(namespace string) string {
	return "settings:" + namespace
}

// Load returns the whole hash
func (r *SettingsRepository) Load(ctx context.Context, namespace string) (map[string]string, error) {
	start := time.Now()
	var err error
	var opts map[string]string
	defer func() {
		metrics.RecordDBOperation("settings", "load", time.Since(start), int64(len(opts)), err)
	}()

	opts, err = r.client.HGetAll(ctx, settingsKey(namespace)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	return opts, nil
}

// Save writes opts atomically; empty values are removed from the hash
func (r *SettingsRepository) Save(ctx context.Context, namespace string, opts map[string]string) error {
	start := time.Now()
	var err error
	defer func() {
		metrics.RecordDBOperation("settings", "save", time.Since(start), int64(len(opts)), err)
	}()

	key := settingsKey(namespace)
	pipe := r.client.TxPipeline()
	for field, value := range opts {
		if value == "" {
			pipe.HDel(ctx, key, field)
			continue
		}
		pipe.HSet(ctx, key, field, value)
	}
	if _, err = pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

var _ repositories.SettingsRepository = (*SettingsRepository)(nil)
