package repositories

import (
	"context"

	"github.com/devilmonastery/sessionshare/internal/domain/entities"
)

// UserRepository is the forum's account store
type UserRepository interface {
	// Create stores a new account and assigns user.ID
	Create(ctx context.Context, user *entities.User) error

	// GetByID retrieves an account, ErrUserNotFound if absent
	GetByID(ctx context.Context, id int64) (*entities.User, error)

	// LookupUIDByEmail reads the email index. It returns the raw stored account
	// id, or "" when no account uses the email.
	LookupUIDByEmail(ctx context.Context, email string) (string, error)
}
