package auth

import (
	"context"
	"errors"
)

var ErrUnauthorized = errors.New("unauthorized")

// UserContext contains the logged-in forum user for a request
type UserContext struct {
	UID      int64
	Username string
	Userslug string
	Picture  string
	Role     string
}

// IsAdmin reports whether the user has the admin role
func (u *UserContext) IsAdmin() bool {
	return u.Role == "admin"
}

type contextKey string

const userContextKey contextKey = "user"

// GetUserFromContext extracts the logged-in user from the context
func GetUserFromContext(ctx context.Context) (*UserContext, error) {
	user, ok := ctx.Value(userContextKey).(*UserContext)
	if !ok || user == nil {
		return nil, ErrUnauthorized
	}
	return user, nil
}

// SetUserInContext stores the logged-in user in the context
func SetUserInContext(ctx context.Context, user *UserContext) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}
