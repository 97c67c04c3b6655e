package urlutil

import (
	"net/url"
	"strings"
)

// RedirectPlaceholder is replaced by the escaped original URL in a guest redirect template.
const RedirectPlaceholder = "%1"

var componentUnescapes = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

// EncodeURIComponent escapes s the way browsers do for a single URI component:
// everything except A-Z a-z 0-9 - _ . ! ~ * ' ( ) is percent-encoded.
func EncodeURIComponent(s string) string {
	return componentUnescapes.Replace(url.QueryEscape(s))
}

// AbsoluteURL joins the public base URL with a request URI (path plus query).
func AbsoluteURL(baseURL, requestURI string) string {
	base := strings.TrimRight(baseURL, "/")
	if requestURI == "" {
		return base + "/"
	}
	if !strings.HasPrefix(requestURI, "/") {
		requestURI = "/" + requestURI
	}
	return base + requestURI
}

// GuestRedirectURL fills the first %1 in template with the escaped absolute
// URL of the original request. A template without a placeholder is returned as-is.
func GuestRedirectURL(template, baseURL, requestURI string) string {
	return strings.Replace(template, RedirectPlaceholder, EncodeURIComponent(AbsoluteURL(baseURL, requestURI)), 1)
}

// IsLocalLogin reports whether the request targets the local login escape hatch
// (<relativePath>/login?local=1), which must never be redirected away.
func IsLocalLogin(relativePath string, u *url.URL) bool {
	if u == nil {
		return false
	}
	return u.Path == strings.TrimRight(relativePath, "/")+"/login" && u.Query().Get("local") == "1"
}
