package entities

import (
	"strconv"
	"time"
)

// User is a local forum account
type User struct {
	ID           int64     `json:"uid" db:"id"`
	Username     string    `json:"username" db:"username"`
	Userslug     string    `json:"userslug" db:"userslug"`
	Email        string    `json:"email,omitempty" db:"email"`
	Picture      string    `json:"picture,omitempty" db:"picture"`
	PasswordHash *string   `json:"-" db:"password_hash"` // never serialize to JSON
	Role         Role      `json:"role" db:"role"`
	UserType     UserType  `json:"user_type" db:"user_type"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// Role represents user roles in the system
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// UserType records how an account came to exist
type UserType string

const (
	UserTypeShared UserType = "shared" // created from a shared session token
	UserTypeLocal  UserType = "local"  // created by an operator with a password
)

// UIDString returns the id in the form stored by mapping records
func (u *User) UIDString() string {
	return strconv.FormatInt(u.ID, 10)
}

// ParseUID parses a stored account id. Only positive integers are account ids;
// anything else reports false.
func ParseUID(raw string) (int64, bool) {
	if raw == "" {
		return 0, false
	}
	uid, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || uid <= 0 {
		return 0, false
	}
	return uid, true
}
