package auth

import (
	"errors"
	"fmt"

	"github.com/devilmonastery/sessionshare/internal/config"
)

// ErrInvalidPayload means the token verified but does not carry the fields
// needed to identify a user.
var ErrInvalidPayload = errors.New("payload-invalid")

// Fields is the claim container identity fields are read from: the claims
// themselves, or claims[parent] when a parent key is configured.
type Fields map[string]any

// Identity is what the resolver needs to find or create a local account
type Identity struct {
	ExternalID string
	Email      string
	Username   string
	Picture    string
}

// ValidatePayload checks that the mapped id and username fields are present
// as non-empty strings and returns the container they were found in.
func ValidatePayload(claims Claims, mapping config.FieldMapping) (Fields, error) {
	container := map[string]any(claims)

	if mapping.Parent != "" {
		nested, ok := claims[mapping.Parent].(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: parent %q missing or not an object", ErrInvalidPayload, mapping.Parent)
		}
		container = nested
	}

	if _, ok := nonEmptyString(container[mapping.ID]); !ok {
		return nil, fmt.Errorf("%w: %q must be a non-empty string", ErrInvalidPayload, mapping.ID)
	}
	if _, ok := nonEmptyString(container[mapping.Username]); !ok {
		return nil, fmt.Errorf("%w: %q must be a non-empty string", ErrInvalidPayload, mapping.Username)
	}

	return Fields(container), nil
}

// ExtractIdentity reads the mapped fields out of a validated container.
// Optional fields that are absent or not strings come back empty.
func ExtractIdentity(fields Fields, mapping config.FieldMapping) Identity {
	get := func(key string) string {
		if key == "" {
			return ""
		}
		s, _ := nonEmptyString(fields[key])
		return s
	}

	return Identity{
		ExternalID: get(mapping.ID),
		Email:      get(mapping.Email),
		Username:   get(mapping.Username),
		Picture:    get(mapping.Picture),
	}
}

// nonEmptyString treats anything but a string of nonzero length as absent.
// Numbers, booleans, null, arrays and objects all fail.
func nonEmptyString(v any) (string, bool) {
	s, ok := v.(string)
	if !ok || len(s) == 0 {
		return "", false
	}
	return s, true
}
