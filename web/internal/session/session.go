package session

import (
	"net/http"

	"github.com/gorilla/sessions"
)

const (
	// SessionName is the name of the forum's own session cookie
	SessionName = "sessionshare_sid"

	// UIDKey is the session key holding the logged-in account id
	UIDKey = "uid"
)

// Manager wraps gorilla/sessions for our use case
type Manager struct {
	store *sessions.CookieStore
}

// NewManager creates a new session manager
// secretKey should be 32 bytes for AES-256
func NewManager(secretKey []byte, path string, secure bool) *Manager {
	store := sessions.NewCookieStore(secretKey)

	if path == "" {
		path = "/"
	}
	store.Options = &sessions.Options{
		Path:     path,
		MaxAge:   14 * 24 * 60 * 60, // 14 days
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}

	return &Manager{
		store: store,
	}
}

// SetUID logs the account into the session
func (m *Manager) SetUID(r *http.Request, w http.ResponseWriter, uid int64) error {
	session, err := m.store.Get(r, SessionName)
	if err != nil {
		// Undecodable cookie, start over
		session, _ = m.store.New(r, SessionName)
	}

	session.Values[UIDKey] = uid
	return session.Save(r, w)
}

// GetUID returns the logged-in account id, 0 when the session is anonymous
func (m *Manager) GetUID(r *http.Request) int64 {
	session, err := m.store.Get(r, SessionName)
	if err != nil {
		return 0
	}

	uid, ok := session.Values[UIDKey].(int64)
	if !ok || uid <= 0 {
		return 0
	}
	return uid
}

// DropUID logs the session out without discarding the cookie
func (m *Manager) DropUID(r *http.Request, w http.ResponseWriter) error {
	session, err := m.store.Get(r, SessionName)
	if err != nil {
		return nil
	}

	delete(session.Values, UIDKey)
	return session.Save(r, w)
}

// Clear removes the session (logout)
func (m *Manager) Clear(r *http.Request, w http.ResponseWriter) error {
	session, err := m.store.Get(r, SessionName)
	if err != nil {
		return nil // Session doesn't exist, nothing to clear
	}

	session.Values = map[interface{}]interface{}{}
	session.Options.MaxAge = -1
	return session.Save(r, w)
}
