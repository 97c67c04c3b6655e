package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/devilmonastery/sessionshare/internal/domain/repositories"
	"github.com/devilmonastery/sessionshare/internal/pkg/metrics"
)

// linkIfAbsentScript writes ARGV[2] into hash KEYS[1] field ARGV[1] unless the
// field already holds a positive integer. Returns the value stored afterwards.
var linkIfAbsentScript = goredis.NewScript(`
local current = redis.call('HGET', KEYS[1], ARGV[1])
if current and string.match(current, '^[1-9]%d*$') then
	return current
end
redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
return ARGV[2]
`)

// IdentityRepository keeps mappings in the "<name>:uid" hash, field external id
type IdentityRepository struct {
	client goredis.UniversalClient
	log    *slog.Logger
}

// NewIdentityRepository creates a redis identity repository
func NewIdentityRepository(client goredis.UniversalClient) repositories.IdentityRepository {
	return &IdentityRepository{
		client: client,
		log:    slog.Default().With(slog.String("repo", "identity")),
	}
}

// GetByExternalID returns the raw field value, "" if absent
func (r *IdentityRepository) GetByExternalID(ctx context.Context, mappingKey, externalID string) (string, error) {
	start := time.Now()
	var err error
	var rowCount int64
	defer func() {
		metrics.RecordDBOperation("identity", "get", time.Since(start), rowCount, err)
	}()

	var value string
	value, err = r.client.HGet(ctx, mappingKey, externalID).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			err = nil
			return "", nil
		}
		return "", fmt.Errorf("failed to get identity: %w", err)
	}

	rowCount = 1
	return value, nil
}

// LinkIfAbsent runs the compare-and-set script
func (r *IdentityRepository) LinkIfAbsent(ctx context.Context, mappingKey, externalID string, uid int64) (int64, error) {
	start := time.Now()
	var err error
	defer func() {
		metrics.RecordDBOperation("identity", "link", time.Since(start), 1, err)
	}()

	var stored string
	stored, err = linkIfAbsentScript.Run(ctx, r.client, []string{mappingKey}, externalID, strconv.FormatInt(uid, 10)).Text()
	if err != nil {
		return 0, fmt.Errorf("failed to link identity: %w", err)
	}

	var storedUID int64
	storedUID, err = strconv.ParseInt(stored, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("unexpected mapping value %q: %w", stored, err)
	}
	if storedUID != uid {
		r.log.Debug("identity already linked",
			slog.String("namespace", mappingKey),
			slog.String("external_id", externalID),
			slog.Int64("uid", storedUID))
	}
	return storedUID, nil
}

var _ repositories.IdentityRepository = (*IdentityRepository)(nil)
