package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/devilmonastery/sessionshare/internal/domain/entities"
	"github.com/devilmonastery/sessionshare/internal/domain/repositories"
	"github.com/devilmonastery/sessionshare/internal/pkg/idgen"
	"github.com/devilmonastery/sessionshare/internal/pkg/metrics"
)

const emailIndexName = "idx_users_email_lower"

// UserRepository implements the UserRepository interface for PostgreSQL
type UserRepository struct {
	db  *sqlx.DB
	log *slog.Logger
}

// NewUserRepository creates a new PostgreSQL user repository
func NewUserRepository(db *sqlx.DB) repositories.UserRepository {
	return &UserRepository{
		db:  db,
		log: slog.Default().With(slog.String("repo", "user")),
	}
}

// userRow represents a user as stored in the database
type userRow struct {
	ID           int64          `db:"id"`
	Username     string         `db:"username"`
	Userslug     string         `db:"userslug"`
	Email        sql.NullString `db:"email"`
	Picture      sql.NullString `db:"picture"`
	PasswordHash sql.NullString `db:"password_hash"`
	Role         string         `db:"role"`
	UserType     string         `db:"user_type"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
}

func (r *userRow) toEntity() *entities.User {
	user := &entities.User{
		ID:        r.ID,
		Username:  r.Username,
		Userslug:  r.Userslug,
		Email:     r.Email.String,
		Picture:   r.Picture.String,
		Role:      entities.Role(r.Role),
		UserType:  entities.UserType(r.UserType),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if r.PasswordHash.Valid {
		user.PasswordHash = &r.PasswordHash.String
	}
	return user
}

func userRowFromEntity(user *entities.User) *userRow {
	row := &userRow{
		ID:        user.ID,
		Username:  user.Username,
		Userslug:  user.Userslug,
		Email:     sql.NullString{String: user.Email, Valid: user.Email != ""},
		Picture:   sql.NullString{String: user.Picture, Valid: user.Picture != ""},
		Role:      string(user.Role),
		UserType:  string(user.UserType),
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}
	if user.PasswordHash != nil {
		row.PasswordHash = sql.NullString{String: *user.PasswordHash, Valid: true}
	}
	return row
}

// Create inserts a new user with a generated snowflake id
func (r *UserRepository) Create(ctx context.Context, user *entities.User) error {
	start := time.Now()
	var err error
	defer func() {
		metrics.RecordDBOperation("user", "create", time.Since(start), 1, err)
	}()

	if user.ID == 0 {
		user.ID = idgen.GenerateInt64()
	}
	now := time.Now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	if user.Role == "" {
		user.Role = entities.RoleUser
	}
	if user.UserType == "" {
		user.UserType = entities.UserTypeShared
	}

	query := `
		INSERT INTO users (id, username, userslug, email, picture, password_hash, role, user_type, created_at, updated_at)
		VALUES (:id, :username, :userslug, :email, :picture, :password_hash, :role, :user_type, :created_at, :updated_at)
	`

	_, err = r.db.NamedExecContext(ctx, query, userRowFromEntity(user))
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" && pqErr.Constraint == emailIndexName {
			return repositories.ErrEmailTaken
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}

	r.log.Debug("created user", slog.Int64("uid", user.ID), slog.String("userslug", user.Userslug))
	return nil
}

// GetByID retrieves a user by id
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*entities.User, error) {
	start := time.Now()
	var err error
	var rowCount int64
	defer func() {
		metrics.RecordDBOperation("user", "get_by_id", time.Since(start), rowCount, err)
	}()

	var row userRow
	query := `
		SELECT id, username, userslug, email, picture, password_hash, role, user_type, created_at, updated_at
		FROM users
		WHERE id = $1
	`

	err = r.db.GetContext(ctx, &row, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = nil
			return nil, repositories.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	rowCount = 1
	return row.toEntity(), nil
}

// LookupUIDByEmail returns the id of the account owning email, "" if none
func (r *UserRepository) LookupUIDByEmail(ctx context.Context, email string) (string, error) {
	start := time.Now()
	var err error
	var rowCount int64
	defer func() {
		metrics.RecordDBOperation("user", "lookup_email", time.Since(start), rowCount, err)
	}()

	var id int64
	query := `SELECT id FROM users WHERE LOWER(email) = LOWER($1) LIMIT 1`

	err = r.db.GetContext(ctx, &id, query, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = nil
			return "", nil
		}
		return "", fmt.Errorf("failed to look up email: %w", err)
	}

	rowCount = 1
	return strconv.FormatInt(id, 10), nil
}

var _ repositories.UserRepository = (*UserRepository)(nil)
