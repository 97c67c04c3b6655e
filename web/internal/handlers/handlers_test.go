package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devilmonastery/sessionshare/internal/auth"
	"github.com/devilmonastery/sessionshare/internal/config"
	"github.com/devilmonastery/sessionshare/internal/domain/entities"
	"github.com/devilmonastery/sessionshare/web/internal/session"
)

type staticSettings config.Settings

func (s staticSettings) Settings() config.Settings { return config.Settings(s) }

type auditSpy struct{ entries []*entities.AuditLog }

func (a *auditSpy) Create(_ context.Context, log *entities.AuditLog) error {
	a.entries = append(a.entries, log)
	return nil
}

type healthFunc func(context.Context) error

func (f healthFunc) HealthCheck(ctx context.Context) error { return f(ctx) }

func newTestHandler(opts map[string]string, health HealthChecker) (*Handler, *session.Manager, *auditSpy) {
	mgr := session.NewManager([]byte("0123456789abcdef0123456789abcdef"), "/", false)
	audit := &auditSpy{}
	h := New(mgr, staticSettings(config.FromOptions(opts)), audit, health, "/forum/", slog.Default())
	return h, mgr, audit
}

func loggedInRequest(t *testing.T, mgr *session.Manager, uid int64) *http.Request {
	t.Helper()
	rec := httptest.NewRecorder()
	require.NoError(t, mgr.SetUID(httptest.NewRequest(http.MethodGet, "/", nil), rec, uid))

	req := httptest.NewRequest(http.MethodPost, "/forum/logout", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	return req
}

func TestLogout_ClearsSessionAndSharedCookie(t *testing.T) {
	h, mgr, audit := newTestHandler(map[string]string{"secret": "s3cret", "cookieDomain": ".example.com"}, nil)

	rec := httptest.NewRecorder()
	h.Logout(rec, loggedInRequest(t, mgr, 12))

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/forum/", rec.Header().Get("Location"))

	cookies := map[string]*http.Cookie{}
	for _, c := range rec.Result().Cookies() {
		cookies[c.Name] = c
	}
	require.Contains(t, cookies, session.SessionName)
	assert.Equal(t, -1, cookies[session.SessionName].MaxAge)
	require.Contains(t, cookies, "token")
	assert.Equal(t, "example.com", cookies["token"].Domain)
	assert.Equal(t, "/", cookies["token"].Path)
	assert.Equal(t, -1, cookies["token"].MaxAge)

	require.Len(t, audit.entries, 1)
	assert.Equal(t, entities.ActionUserLogout, audit.entries[0].Action)
	assert.Equal(t, int64(12), *audit.entries[0].UserID)
}

func TestLogout_WithoutCookieDomainKeepsSharedCookie(t *testing.T) {
	h, mgr, _ := newTestHandler(map[string]string{"secret": "s3cret"}, nil)

	rec := httptest.NewRecorder()
	h.Logout(rec, loggedInRequest(t, mgr, 12))

	for _, c := range rec.Result().Cookies() {
		assert.NotEqual(t, "token", c.Name)
	}
}

func TestLogout_AnonymousWritesNoAudit(t *testing.T) {
	h, _, audit := newTestHandler(map[string]string{"secret": "s3cret"}, nil)

	rec := httptest.NewRecorder()
	h.Logout(rec, httptest.NewRequest(http.MethodGet, "/logout", nil))

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Empty(t, audit.entries)
}

func TestMe(t *testing.T) {
	h, _, _ := newTestHandler(nil, nil)

	rec := httptest.NewRecorder()
	h.Me(rec, httptest.NewRequest(http.MethodGet, "/api/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req = req.WithContext(auth.SetUserInContext(req.Context(), &auth.UserContext{
		UID: 3, Username: "alice", Userslug: "alice", Role: "user",
	}))
	rec = httptest.NewRecorder()
	h.Me(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"uid":3,"username":"alice","userslug":"alice","role":"user","admin":false}`, rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req = req.WithContext(auth.SetUserInContext(req.Context(), &auth.UserContext{
		UID: 1, Username: "root", Userslug: "root", Role: "admin",
	}))
	rec = httptest.NewRecorder()
	h.Me(rec, req)
	assert.JSONEq(t, `{"uid":1,"username":"root","userslug":"root","role":"admin","admin":true}`, rec.Body.String())
}

func TestHealth(t *testing.T) {
	h, _, _ := newTestHandler(nil, healthFunc(func(context.Context) error { return nil }))
	rec := httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	h, _, _ = newTestHandler(nil, healthFunc(func(context.Context) error { return errors.New("down") }))
	rec = httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestVersionInfo(t *testing.T) {
	h, _, _ := newTestHandler(nil, nil)
	rec := httptest.NewRecorder()
	h.VersionInfo(rec, httptest.NewRequest(http.MethodGet, "/version", nil))
	assert.JSONEq(t, `{"version":"dev"}`, rec.Body.String())
}
