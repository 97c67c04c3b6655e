package config

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromOptionsDefaults(t *testing.T) {
	s := FromOptions(nil)

	assert.Equal(t, "appId", s.Name)
	assert.Equal(t, "token", s.CookieName)
	assert.Equal(t, FieldMapping{ID: "id", Email: "email", Username: "username", Picture: "picture"}, s.Payload)
	assert.Empty(t, s.Secret)
	assert.Empty(t, s.CookieDomain)
	assert.Empty(t, s.GuestRedirect)
	assert.Equal(t, "appId:uid", s.MappingKey())
}

func TestFromOptionsOverrides(t *testing.T) {
	s := FromOptions(map[string]string{
		OptSecret:          "s3cret",
		OptName:            "demo",
		OptPayloadID:       "sub",
		OptPayloadUsername: "name",
		OptPayloadParent:   " profile ",
		OptGuestRedirect:   "https://sso.example.com/?r=%1",
		OptCookieDomain:    ".example.com",
	})

	assert.Equal(t, "s3cret", s.Secret)
	assert.Equal(t, "demo:uid", s.MappingKey())
	assert.Equal(t, "sub", s.Payload.ID)
	assert.Equal(t, "name", s.Payload.Username)
	assert.Equal(t, "email", s.Payload.Email)
	assert.Equal(t, "profile", s.Payload.Parent)
	assert.Equal(t, ".example.com", s.CookieDomain)
	require.NoError(t, s.Validate())
}

func TestValidateEmptySecret(t *testing.T) {
	err := FromOptions(map[string]string{OptName: "demo"}).Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfiguration))
}

func TestOptionsRoundTrip(t *testing.T) {
	in := map[string]string{
		OptSecret:        "k",
		OptName:          "demo",
		OptPayloadParent: "profile",
	}
	s := FromOptions(in)
	again := FromOptions(s.Options())
	assert.Equal(t, s, again)
	_, hasDomain := s.Options()[OptCookieDomain]
	assert.False(t, hasDomain, "empty options are omitted")
}

func TestMergeOptions(t *testing.T) {
	merged := MergeOptions(
		map[string]string{OptName: "boot", OptSecret: "a"},
		map[string]string{OptName: "db", OptSecret: ""},
	)
	assert.Equal(t, "db", merged[OptName])
	assert.Equal(t, "a", merged[OptSecret], "empty values do not clobber lower layers")
}

func TestIsKnownOption(t *testing.T) {
	for _, k := range KnownOptions() {
		assert.True(t, IsKnownOption(k), k)
	}
	assert.False(t, IsKnownOption("payload:nope"))
}
