package repositories

import "errors"

// Domain-specific repository errors
var (
	// ErrUserNotFound is returned when a user cannot be found
	ErrUserNotFound = errors.New("user not found")

	// ErrEmailTaken is returned when creating an account whose email is already indexed
	ErrEmailTaken = errors.New("email already in use")
)
