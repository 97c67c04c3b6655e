package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/devilmonastery/sessionshare/internal/domain/entities"
	"github.com/devilmonastery/sessionshare/internal/domain/repositories"
	"github.com/devilmonastery/sessionshare/internal/pkg/metrics"
)

// Forum keys for accounts and their lookup indexes
const (
	nextUIDKey     = "global:nextUid"
	emailIndexKey  = "email:uid"
	usernameIndex  = "username:uid"
	userslugIndex  = "userslug:uid"
	joindateIndex  = "users:joindate"
	userKeyPattern = "user:%d"
)

func userKey(uid int64) string {
	return fmt.Sprintf(userKeyPattern, uid)
}

// UserRepository keeps accounts in user:<uid> hashes
type UserRepository struct {
	client goredis.UniversalClient
	log    *slog.Logger
}

// NewUserRepository creates a redis user repository
func NewUserRepository(client goredis.UniversalClient) repositories.UserRepository {
	return &UserRepository{
		client: client,
		log:    slog.Default().With(slog.String("repo", "user")),
	}
}

// createUserScript writes the user hash and its indexes, claiming the email
// last so the email index never names a uid without a user:<uid> hash.
// KEYS: user:<uid>, email:uid, username:uid, userslug:uid, users:joindate
// ARGV: uid, email, username, userslug, joindate, hash field/value pairs...
// Returns 0 without writing when the email is already claimed.
var createUserScript = goredis.NewScript(`
local uid = ARGV[1]
local email = ARGV[2]
if email ~= '' and redis.call('ZSCORE', KEYS[2], email) then
	return 0
end
redis.call('HSET', KEYS[1], unpack(ARGV, 6))
redis.call('ZADD', KEYS[3], uid, ARGV[3])
redis.call('ZADD', KEYS[4], uid, ARGV[4])
redis.call('ZADD', KEYS[5], ARGV[5], uid)
if email ~= '' then
	redis.call('ZADD', KEYS[2], uid, email)
end
return 1
`)

// Create allocates the next uid and writes the user hash, its indexes and the
// email claim in one script. A failed write burns the uid and never leaves the
// email claimed.
func (r *UserRepository) Create(ctx context.Context, user *entities.User) error {
	start := time.Now()
	var err error
	defer func() {
		metrics.RecordDBOperation("user", "create", time.Since(start), 1, err)
	}()

	var uid int64
	uid, err = r.client.Incr(ctx, nextUIDKey).Result()
	if err != nil {
		return fmt.Errorf("failed to allocate uid: %w", err)
	}

	now := time.Now()
	role := user.Role
	if role == "" {
		role = entities.RoleUser
	}
	userType := user.UserType
	if userType == "" {
		userType = entities.UserTypeShared
	}

	email := strings.ToLower(strings.TrimSpace(user.Email))
	joindate := now.UnixMilli()
	args := []any{
		uid, email, user.Username, user.Userslug, joindate,
		"uid", uid,
		"username", user.Username,
		"userslug", user.Userslug,
		"email", user.Email,
		"picture", user.Picture,
		"role", string(role),
		"user_type", string(userType),
		"joindate", joindate,
		"lastedit", joindate,
	}
	if user.PasswordHash != nil {
		args = append(args, "password", *user.PasswordHash)
	}
	keys := []string{userKey(uid), emailIndexKey, usernameIndex, userslugIndex, joindateIndex}

	var created int64
	created, err = createUserScript.Run(ctx, r.client, keys, args...).Int64()
	if err != nil {
		return fmt.Errorf("failed to write user hash: %w", err)
	}
	if created == 0 {
		err = repositories.ErrEmailTaken
		return err
	}

	user.ID = uid
	user.CreatedAt = now
	user.UpdatedAt = now
	user.Role = role
	user.UserType = userType

	r.log.Debug("created user", slog.Int64("uid", uid), slog.String("userslug", user.Userslug))
	return nil
}

// GetByID reads user:<uid>
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*entities.User, error) {
	start := time.Now()
	var err error
	var rowCount int64
	defer func() {
		metrics.RecordDBOperation("user", "get_by_id", time.Since(start), rowCount, err)
	}()

	var fields map[string]string
	fields, err = r.client.HGetAll(ctx, userKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if len(fields) == 0 {
		return nil, repositories.ErrUserNotFound
	}

	rowCount = 1
	return userFromHash(id, fields), nil
}

func userFromHash(id int64, fields map[string]string) *entities.User {
	user := &entities.User{
		ID:       id,
		Username: fields["username"],
		Userslug: fields["userslug"],
		Email:    fields["email"],
		Picture:  fields["picture"],
		Role:     entities.Role(fields["role"]),
		UserType: entities.UserType(fields["user_type"]),
	}
	if user.Role == "" {
		user.Role = entities.RoleUser
	}
	if user.UserType == "" {
		user.UserType = entities.UserTypeShared
	}
	if hash, ok := fields["password"]; ok && hash != "" {
		user.PasswordHash = &hash
	}
	if ms, err := strconv.ParseInt(fields["joindate"], 10, 64); err == nil {
		user.CreatedAt = time.UnixMilli(ms)
	}
	if ms, err := strconv.ParseInt(fields["lastedit"], 10, 64); err == nil {
		user.UpdatedAt = time.UnixMilli(ms)
	} else {
		user.UpdatedAt = user.CreatedAt
	}
	return user
}

// LookupUIDByEmail reads the score of email in email:uid
func (r *UserRepository) LookupUIDByEmail(ctx context.Context, email string) (string, error) {
	start := time.Now()
	var err error
	var rowCount int64
	defer func() {
		metrics.RecordDBOperation("user", "lookup_email", time.Since(start), rowCount, err)
	}()

	var score float64
	score, err = r.client.ZScore(ctx, emailIndexKey, strings.ToLower(strings.TrimSpace(email))).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			err = nil
			return "", nil
		}
		return "", fmt.Errorf("failed to look up email: %w", err)
	}

	rowCount = 1
	return strconv.FormatFloat(score, 'f', -1, 64), nil
}

var _ repositories.UserRepository = (*UserRepository)(nil)
