// Package memory is a process-local store for development and tests.
// Nothing survives a restart.
package memory

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/devilmonastery/sessionshare/internal/domain/entities"
	"github.com/devilmonastery/sessionshare/internal/domain/repositories"
	"github.com/devilmonastery/sessionshare/internal/pkg/idgen"
)

// Store holds every table behind one mutex
type Store struct {
	mu       sync.Mutex
	nextUID  int64
	users    map[int64]*entities.User
	emails   map[string]int64
	mappings map[string]map[string]string
	settings map[string]map[string]string
	audit    []*entities.AuditLog
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		users:    make(map[int64]*entities.User),
		emails:   make(map[string]int64),
		mappings: make(map[string]map[string]string),
		settings: make(map[string]map[string]string),
	}
}

// Repositories returns repository views over the store
func (s *Store) Repositories() *repositories.Repositories {
	return &repositories.Repositories{
		Users:      &UserRepository{s: s},
		Identities: &IdentityRepository{s: s},
		Settings:   &SettingsRepository{s: s},
		Audit:      &AuditRepository{s: s},
	}
}

// HealthCheck always succeeds
func (s *Store) HealthCheck(context.Context) error { return nil }

// UserCount returns the number of stored accounts
func (s *Store) UserCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users)
}

// MappingCount returns the number of mappings under mappingKey
func (s *Store) MappingCount(mappingKey string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.mappings[mappingKey])
}

// UserRepository is the in-memory account table
type UserRepository struct{ s *Store }

func (r *UserRepository) Create(ctx context.Context, user *entities.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	email := strings.ToLower(strings.TrimSpace(user.Email))
	if email != "" {
		if _, taken := r.s.emails[email]; taken {
			return repositories.ErrEmailTaken
		}
	}

	r.s.nextUID++
	user.ID = r.s.nextUID
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	user.UpdatedAt = user.CreatedAt

	stored := *user
	r.s.users[user.ID] = &stored
	if email != "" {
		r.s.emails[email] = user.ID
	}
	return nil
}

func (r *UserRepository) GetByID(_ context.Context, id int64) (*entities.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, repositories.ErrUserNotFound
	}
	out := *u
	return &out, nil
}

func (r *UserRepository) LookupUIDByEmail(ctx context.Context, email string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	uid, ok := r.s.emails[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return "", nil
	}
	return strconv.FormatInt(uid, 10), nil
}

// IdentityRepository is the in-memory external id mapping
type IdentityRepository struct{ s *Store }

func (r *IdentityRepository) GetByExternalID(ctx context.Context, mappingKey, externalID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.mappings[mappingKey][externalID], nil
}

func (r *IdentityRepository) LinkIfAbsent(ctx context.Context, mappingKey, externalID string, uid int64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	m, ok := r.s.mappings[mappingKey]
	if !ok {
		m = make(map[string]string)
		r.s.mappings[mappingKey] = m
	}
	if current, ok := entities.ParseUID(m[externalID]); ok {
		return current, nil
	}
	m[externalID] = strconv.FormatInt(uid, 10)
	return uid, nil
}

// Put stores a raw mapping value as-is, bypassing validation. Used to seed
// data imported from elsewhere.
func (r *IdentityRepository) Put(mappingKey, externalID, raw string) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.mappings[mappingKey]
	if !ok {
		m = make(map[string]string)
		r.s.mappings[mappingKey] = m
	}
	m[externalID] = raw
}

// SettingsRepository is the in-memory option hash
type SettingsRepository struct{ s *Store }

func (r *SettingsRepository) Load(_ context.Context, namespace string) (map[string]string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make(map[string]string, len(r.s.settings[namespace]))
	for k, v := range r.s.settings[namespace] {
		out[k] = v
	}
	return out, nil
}

func (r *SettingsRepository) Save(_ context.Context, namespace string, opts map[string]string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.settings[namespace]
	if !ok {
		m = make(map[string]string)
		r.s.settings[namespace] = m
	}
	for k, v := range opts {
		if v == "" {
			delete(m, k)
		} else {
			m[k] = v
		}
	}
	return nil
}

// AuditRepository keeps audit entries in insertion order
type AuditRepository struct{ s *Store }

func (r *AuditRepository) Create(_ context.Context, log *entities.AuditLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if log.ID == "" {
		log.ID = idgen.GenerateID()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now()
	}
	r.s.audit = append(r.s.audit, log)
	return nil
}

func (r *AuditRepository) ListRecent(_ context.Context, limit int) ([]*entities.AuditLog, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*entities.AuditLog, 0, len(r.s.audit))
	for i := len(r.s.audit) - 1; i >= 0; i-- {
		out = append(out, r.s.audit[i])
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

var (
	_ repositories.UserRepository     = (*UserRepository)(nil)
	_ repositories.IdentityRepository = (*IdentityRepository)(nil)
	_ repositories.SettingsRepository = (*SettingsRepository)(nil)
	_ repositories.AuditRepository    = (*AuditRepository)(nil)
	_ repositories.HealthChecker      = (*Store)(nil)
)
