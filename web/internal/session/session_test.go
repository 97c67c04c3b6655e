package session

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey() []byte {
	return []byte("0123456789abcdef0123456789abcdef")
}

// carryCookies copies Set-Cookie headers from rec onto a fresh request
func carryCookies(rec *httptest.ResponseRecorder) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	return req
}

func TestManager_SetAndGetUID(t *testing.T) {
	mgr := NewManager(testKey(), "/", false)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, int64(0), mgr.GetUID(req))

	rec := httptest.NewRecorder()
	require.NoError(t, mgr.SetUID(req, rec, 42))

	assert.Equal(t, int64(42), mgr.GetUID(carryCookies(rec)))
}

func TestManager_Clear(t *testing.T) {
	mgr := NewManager(testKey(), "/", false)

	rec := httptest.NewRecorder()
	require.NoError(t, mgr.SetUID(httptest.NewRequest(http.MethodGet, "/", nil), rec, 7))

	req := carryCookies(rec)
	clearRec := httptest.NewRecorder()
	require.NoError(t, mgr.Clear(req, clearRec))

	header := clearRec.Header().Get("Set-Cookie")
	assert.True(t, strings.HasPrefix(header, SessionName+"="))
	assert.Contains(t, header, "Max-Age=0")
}

func TestManager_ForeignKeyIsAnonymous(t *testing.T) {
	mgr := NewManager(testKey(), "/", false)
	rec := httptest.NewRecorder()
	require.NoError(t, mgr.SetUID(httptest.NewRequest(http.MethodGet, "/", nil), rec, 7))

	other := NewManager([]byte("fedcba9876543210fedcba9876543210"), "/", false)
	assert.Equal(t, int64(0), other.GetUID(carryCookies(rec)))
}

func TestReadToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, ReadToken(req, "token"))

	req.AddCookie(&http.Cookie{Name: "token", Value: "abc.def.ghi"})
	assert.Equal(t, "abc.def.ghi", ReadToken(req, "token"))
	assert.Empty(t, ReadToken(req, "other"))
}

func TestClearTokenCookie(t *testing.T) {
	rec := httptest.NewRecorder()
	ClearTokenCookie(rec, "token", ".example.com")

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "token", cookies[0].Name)
	assert.Equal(t, "example.com", cookies[0].Domain)
	assert.Equal(t, "/", cookies[0].Path)
	assert.Equal(t, -1, cookies[0].MaxAge)
}
