package cli

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devilmonastery/sessionshare/internal/auth"
	"github.com/devilmonastery/sessionshare/internal/config"
)

// fakeForum accepts any token that inspects cleanly under settings and
// hands out a session cookie for it.
func fakeForum(t *testing.T, settings config.Settings) *httptest.Server {
	t.Helper()
	sessions := map[string]auth.Identity{}

	mux := http.NewServeMux()
	mux.HandleFunc("/forum/api/me", func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie("sid")
		if err != nil {
			http.Error(w, `{"error":"not logged in"}`, http.StatusUnauthorized)
			return
		}
		id, ok := sessions[c.Value]
		if !ok {
			http.Error(w, `{"error":"not logged in"}`, http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(ForumUser{UID: 1, Username: id.Username, Userslug: id.Username, Role: "user"})
	})
	mux.HandleFunc("/forum/", func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(settings.CookieName)
		if err != nil {
			http.Redirect(w, r, "https://login.example.com", http.StatusFound)
			return
		}
		id, err := InspectToken(settings, c.Value)
		if err != nil {
			http.Redirect(w, r, "https://login.example.com", http.StatusFound)
			return
		}
		sessions["s1"] = id
		http.SetCookie(w, &http.Cookie{Name: "sid", Value: "s1", Path: "/forum"})
		http.NotFound(w, r)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestWhoami(t *testing.T) {
	settings := config.FromOptions(map[string]string{config.OptSecret: "shh"})
	srv := fakeForum(t, settings)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	token, err := MintToken(settings, auth.Identity{ExternalID: "5", Username: "dora"}, nil, time.Hour, time.Now())
	require.NoError(t, err)

	user, err := Whoami(ctx, srv.Client(), srv.URL+"/forum/", settings.CookieName, token)
	require.NoError(t, err)
	assert.Equal(t, "dora", user.Username)
	assert.Equal(t, int64(1), user.UID)

	_, err = Whoami(ctx, srv.Client(), srv.URL+"/forum", settings.CookieName, "garbage")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redirected")
}

func TestWhoamiCommand(t *testing.T) {
	useTempConfig(t)
	settings := config.FromOptions(map[string]string{config.OptSecret: "dev-secret", config.OptName: "dev"})
	srv := fakeForum(t, settings)

	_, err := runCLI(t, "", "config", "add-context", "local",
		"--forum-url", srv.URL+"/forum", "--option", "secret=dev-secret")
	require.NoError(t, err)
	_, err = runCLI(t, "", "config", "use-context", "local")
	require.NoError(t, err)

	out, err := runCLI(t, "", "whoami", "--id", "12", "--username", "erin")
	require.NoError(t, err)
	assert.Contains(t, out, "uid 1 erin (erin) role=user")
}
