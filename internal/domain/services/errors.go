package services

import (
	"errors"
	"fmt"

	"github.com/devilmonastery/sessionshare/internal/domain/repositories"
)

// ErrInvalidUsername is returned when a username is empty after cleanup
var ErrInvalidUsername = errors.New("invalid username")

// StorageError wraps a failed read or write of the mapping or email index.
// Resolution stops at the first one; nothing after it is written.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// AccountCreationError wraps a failed account creation. No mapping is
// written when this is returned.
type AccountCreationError struct {
	Err error
}

func (e *AccountCreationError) Error() string {
	return fmt.Sprintf("account creation failed: %v", e.Err)
}

func (e *AccountCreationError) Unwrap() error { return e.Err }

// IsStorageError reports whether err is or wraps a *StorageError
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

// IsAccountCreationError reports whether err is or wraps an *AccountCreationError
func IsAccountCreationError(err error) bool {
	var ae *AccountCreationError
	return errors.As(err, &ae)
}

// IsUserNotFound checks if the error indicates user not found.
func IsUserNotFound(err error) bool {
	return errors.Is(err, repositories.ErrUserNotFound)
}
