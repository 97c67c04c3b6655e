package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// SettingsNamespace is the key under which session-sharing options are persisted
const SettingsNamespace = "session-sharing"

// Recognized session-sharing option names
const (
	OptSecret          = "secret"
	OptName            = "name"
	OptCookieName      = "cookieName"
	OptCookieDomain    = "cookieDomain"
	OptPayloadID       = "payload:id"
	OptPayloadEmail    = "payload:email"
	OptPayloadUsername = "payload:username"
	OptPayloadPicture  = "payload:picture"
	OptPayloadParent   = "payload:parent"
	OptGuestRedirect   = "guestRedirect"
)

var knownOptions = []string{
	OptSecret, OptName, OptCookieName, OptCookieDomain,
	OptPayloadID, OptPayloadEmail, OptPayloadUsername, OptPayloadPicture, OptPayloadParent,
	OptGuestRedirect,
}

// defaultOptions apply whenever an option is missing or empty
var defaultOptions = map[string]string{
	OptName:            "appId",
	OptCookieName:      "token",
	OptPayloadID:       "id",
	OptPayloadEmail:    "email",
	OptPayloadUsername: "username",
	OptPayloadPicture:  "picture",
}

// ErrConfiguration is returned when the settings cannot drive the pipeline,
// most commonly because no secret is configured.
var ErrConfiguration = errors.New("session sharing misconfigured")

// FieldMapping maps logical identity fields to claim keys inside a token.
// When Parent is set all lookups happen one level down, inside claims[Parent].
type FieldMapping struct {
	ID       string
	Email    string
	Username string
	Picture  string
	Parent   string
}

// Settings is an immutable view of the session-sharing options
type Settings struct {
	Secret        string
	Name          string
	CookieName    string
	CookieDomain  string
	GuestRedirect string
	Payload       FieldMapping
}

// KnownOptions returns the recognized option names in a stable order
func KnownOptions() []string {
	out := make([]string, len(knownOptions))
	copy(out, knownOptions)
	return out
}

// IsKnownOption reports whether key is a recognized option name
func IsKnownOption(key string) bool {
	for _, k := range knownOptions {
		if k == key {
			return true
		}
	}
	return false
}

// DefaultOption returns the default value for an option, or "" if it has none
func DefaultOption(key string) string {
	return defaultOptions[key]
}

// FromOptions builds Settings from raw option values, filling in defaults.
// Values are trimmed; unknown keys are ignored.
func FromOptions(opts map[string]string) Settings {
	get := func(key string) string {
		if v := strings.TrimSpace(opts[key]); v != "" {
			return v
		}
		return defaultOptions[key]
	}

	return Settings{
		Secret:        opts[OptSecret],
		Name:          get(OptName),
		CookieName:    get(OptCookieName),
		CookieDomain:  get(OptCookieDomain),
		GuestRedirect: get(OptGuestRedirect),
		Payload: FieldMapping{
			ID:       get(OptPayloadID),
			Email:    get(OptPayloadEmail),
			Username: get(OptPayloadUsername),
			Picture:  get(OptPayloadPicture),
			Parent:   get(OptPayloadParent),
		},
	}
}

// Options renders the settings back into option form. Empty optional values are omitted.
func (s Settings) Options() map[string]string {
	out := map[string]string{
		OptSecret:          s.Secret,
		OptName:            s.Name,
		OptCookieName:      s.CookieName,
		OptCookieDomain:    s.CookieDomain,
		OptGuestRedirect:   s.GuestRedirect,
		OptPayloadID:       s.Payload.ID,
		OptPayloadEmail:    s.Payload.Email,
		OptPayloadUsername: s.Payload.Username,
		OptPayloadPicture:  s.Payload.Picture,
		OptPayloadParent:   s.Payload.Parent,
	}
	for k, v := range out {
		if v == "" {
			delete(out, k)
		}
	}
	return out
}

// Validate checks that the settings can drive the pipeline
func (s Settings) Validate() error {
	if s.Secret == "" {
		return fmt.Errorf("%w: secret is not set", ErrConfiguration)
	}
	if s.Payload.ID == "" || s.Payload.Username == "" {
		return fmt.Errorf("%w: payload id and username keys are required", ErrConfiguration)
	}
	return nil
}

// MappingKey is the key of the external id -> uid mapping, "<name>:uid"
func (s Settings) MappingKey() string {
	return s.Name + ":uid"
}

// MergeOptions overlays the non-empty values of each map, later maps winning
func MergeOptions(layers ...map[string]string) map[string]string {
	out := make(map[string]string)
	for _, layer := range layers {
		for k, v := range layer {
			if v != "" {
				out[k] = v
			}
		}
	}
	return out
}

// SortedKeys returns the keys of opts in lexical order
func SortedKeys(opts map[string]string) []string {
	keys := make([]string, 0, len(opts))
	for k := range opts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
