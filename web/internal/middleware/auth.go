package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/devilmonastery/sessionshare/internal/auth"
)

// RequireUser rejects anonymous requests with a JSON 401
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := auth.GetUserFromContext(r.Context()); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "not logged in"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
