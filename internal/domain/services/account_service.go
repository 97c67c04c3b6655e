package services

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"time"

	"github.com/gosimple/slug"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/crypto/bcrypt"

	"github.com/devilmonastery/sessionshare/internal/domain/entities"
	"github.com/devilmonastery/sessionshare/internal/domain/repositories"
)

// NewAccount carries what the external login system told us about a new user
type NewAccount struct {
	Username string
	Email    string
	Picture  string
}

// AccountService creates and reads local forum accounts
type AccountService struct {
	userRepo  repositories.UserRepository
	auditRepo repositories.AuditRepository
	policy    *bluemonday.Policy
	log       *slog.Logger
}

// NewAccountService creates a new account service. auditRepo may be nil.
func NewAccountService(userRepo repositories.UserRepository, auditRepo repositories.AuditRepository) *AccountService {
	return &AccountService{
		userRepo:  userRepo,
		auditRepo: auditRepo,
		policy:    bluemonday.StrictPolicy(),
		log:       slog.Default().With(slog.String("service", "account")),
	}
}

// auditLog is a helper method that logs audit events if auditRepo is available
func (s *AccountService) auditLog(ctx context.Context, entry *entities.AuditLog) {
	if s.auditRepo == nil {
		return
	}
	if err := s.auditRepo.Create(ctx, entry); err != nil {
		s.log.Warn("failed to write audit log", slog.String("action", string(entry.Action)), slog.Any("error", err))
	}
}

// CleanUsername strips markup and surrounding whitespace from a token-supplied username
func (s *AccountService) CleanUsername(username string) string {
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(username)))
}

// CreateAccount creates a shared-session account with no password
func (s *AccountService) CreateAccount(ctx context.Context, in NewAccount) (*entities.User, error) {
	username := s.CleanUsername(in.Username)
	if username == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidUsername, in.Username)
	}

	now := time.Now()
	user := &entities.User{
		Username:  username,
		Userslug:  makeUserslug(username),
		Email:     strings.TrimSpace(in.Email),
		Picture:   strings.TrimSpace(in.Picture),
		Role:      entities.RoleUser,
		UserType:  entities.UserTypeShared,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	uid := user.ID
	s.auditLog(ctx, entities.NewAuditLog(&uid, entities.ActionAccountCreated, entities.ResourceUser).
		WithResourceID(user.UIDString()).
		WithMetadata("username", user.Username).
		WithMetadata("user_type", string(user.UserType)))

	return user, nil
}

// CreateLocalUser creates an account that can sign in with a password
func (s *AccountService) CreateLocalUser(ctx context.Context, username, email, password string, role entities.Role) (*entities.User, error) {
	if role != entities.RoleUser && role != entities.RoleAdmin {
		return nil, fmt.Errorf("invalid role: %s (must be 'user' or 'admin')", role)
	}
	if password == "" {
		return nil, fmt.Errorf("password is required")
	}

	if email != "" {
		existing, err := s.userRepo.LookupUIDByEmail(ctx, email)
		if err != nil {
			return nil, fmt.Errorf("failed to check if user exists: %w", err)
		}
		if _, ok := entities.ParseUID(existing); ok {
			return nil, fmt.Errorf("user with email %s already exists", email)
		}
	}

	username = s.CleanUsername(username)
	if username == "" {
		return nil, ErrInvalidUsername
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	hash := string(passwordHash)

	now := time.Now()
	user := &entities.User{
		Username:     username,
		Userslug:     makeUserslug(username),
		Email:        email,
		Role:         role,
		UserType:     entities.UserTypeLocal,
		PasswordHash: &hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	uid := user.ID
	s.auditLog(ctx, entities.NewAuditLog(&uid, entities.ActionAccountCreated, entities.ResourceUser).
		WithResourceID(user.UIDString()).
		WithMetadata("username", user.Username).
		WithMetadata("role", string(role)).
		WithMetadata("user_type", string(entities.UserTypeLocal)))

	// Clear password hash from returned user for security
	user.PasswordHash = nil
	return user, nil
}

// GetUser returns an account by id
func (s *AccountService) GetUser(ctx context.Context, uid int64) (*entities.User, error) {
	user, err := s.userRepo.GetByID(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

func makeUserslug(username string) string {
	if s := slug.Make(username); s != "" {
		return s
	}
	return "user"
}
