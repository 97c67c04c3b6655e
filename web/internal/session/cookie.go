package session

import (
	"net/http"
	"time"
)

// ReadToken returns the shared session token from cookie name, "" when absent
func ReadToken(r *http.Request, name string) string {
	cookie, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// ClearTokenCookie expires the shared session cookie. domain must match the
// domain the external login system set it with or the browser keeps it.
func ClearTokenCookie(w http.ResponseWriter, name, domain string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Domain:   domain,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
	})
}
