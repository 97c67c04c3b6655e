package urlutil

import (
	"net/url"
	"testing"
)

func TestEncodeURIComponent(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "abc", "abc"},
		{"url", "https://forum.example.com/topic/1?x=y", "https%3A%2F%2Fforum.example.com%2Ftopic%2F1%3Fx%3Dy"},
		{"space", "a b", "a%20b"},
		{"unreserved marks", "-_.!~*'()", "-_.!~*'()"},
		{"unicode", "é", "%C3%A9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EncodeURIComponent(tt.in); got != tt.want {
				t.Errorf("EncodeURIComponent(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestGuestRedirectURL(t *testing.T) {
	tests := []struct {
		name       string
		template   string
		baseURL    string
		requestURI string
		want       string
	}{
		{
			name:       "substitutes original url",
			template:   "https://sso.example.com/login?next=%1",
			baseURL:    "https://forum.example.com",
			requestURI: "/topic/12?page=2",
			want:       "https://sso.example.com/login?next=https%3A%2F%2Fforum.example.com%2Ftopic%2F12%3Fpage%3D2",
		},
		{
			name:       "trailing slash on base",
			template:   "https://sso.example.com/?r=%1",
			baseURL:    "https://forum.example.com/",
			requestURI: "/",
			want:       "https://sso.example.com/?r=https%3A%2F%2Fforum.example.com%2F",
		},
		{
			name:       "no placeholder",
			template:   "https://sso.example.com/login",
			baseURL:    "https://forum.example.com",
			requestURI: "/x",
			want:       "https://sso.example.com/login",
		},
		{
			name:       "only first placeholder replaced",
			template:   "https://sso.example.com/?a=%1&b=%1",
			baseURL:    "http://f",
			requestURI: "/",
			want:       "https://sso.example.com/?a=http%3A%2F%2Ff%2F&b=%1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GuestRedirectURL(tt.template, tt.baseURL, tt.requestURI); got != tt.want {
				t.Errorf("GuestRedirectURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsLocalLogin(t *testing.T) {
	tests := []struct {
		relative string
		raw      string
		want     bool
	}{
		{"", "/login?local=1", true},
		{"/forum", "/forum/login?local=1", true},
		{"/forum/", "/forum/login?local=1", true},
		{"", "/login", false},
		{"", "/login?local=0", false},
		{"/forum", "/login?local=1", false},
	}
	for _, tt := range tests {
		u, err := url.Parse(tt.raw)
		if err != nil {
			t.Fatalf("parse %q: %v", tt.raw, err)
		}
		if got := IsLocalLogin(tt.relative, u); got != tt.want {
			t.Errorf("IsLocalLogin(%q, %q) = %v, want %v", tt.relative, tt.raw, got, tt.want)
		}
	}
}
