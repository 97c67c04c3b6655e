package cli

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devilmonastery/sessionshare/internal/auth"
	"github.com/devilmonastery/sessionshare/internal/config"
)

func TestBuildClaims(t *testing.T) {
	now := time.Unix(1700000000, 0)
	id := auth.Identity{ExternalID: "42", Username: "alice", Email: "a@example.com"}

	t.Run("flat", func(t *testing.T) {
		mapping := config.FromOptions(nil).Payload
		claims := BuildClaims(mapping, id, nil, time.Hour, now)

		assert.Equal(t, "42", claims["id"])
		assert.Equal(t, "alice", claims["username"])
		assert.Equal(t, "a@example.com", claims["email"])
		assert.NotContains(t, claims, "picture")
		assert.Equal(t, now.Unix(), claims["iat"])
		assert.Equal(t, now.Add(time.Hour).Unix(), claims["exp"])
	})

	t.Run("nested under parent", func(t *testing.T) {
		mapping := config.FromOptions(map[string]string{
			config.OptPayloadParent: "user",
			config.OptPayloadID:     "sub",
		}).Payload
		claims := BuildClaims(mapping, id, map[string]string{"plan": "pro"}, 0, now)

		user, ok := claims["user"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "42", user["sub"])
		assert.Equal(t, "pro", user["plan"])
		assert.NotContains(t, claims, "exp")
	})
}

func TestMintAndInspect(t *testing.T) {
	settings := config.FromOptions(map[string]string{
		config.OptSecret:        "s3cret",
		config.OptPayloadParent: "user",
	})
	id := auth.Identity{ExternalID: "7", Username: "bob", Picture: "https://img/bob.png"}

	token, err := MintToken(settings, id, nil, time.Hour, time.Now())
	require.NoError(t, err)

	got, err := InspectToken(settings, token)
	require.NoError(t, err)
	assert.Equal(t, id, got)

	other := settings
	other.Secret = "different"
	_, err = InspectToken(other, token)
	assert.ErrorIs(t, err, auth.ErrVerification)

	flat := settings
	flat.Payload.Parent = ""
	_, err = InspectToken(flat, token)
	assert.ErrorIs(t, err, auth.ErrInvalidPayload)

	expired, err := MintToken(settings, id, nil, time.Minute, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	_, err = InspectToken(settings, expired)
	assert.ErrorIs(t, err, auth.ErrVerification)
}

func TestMintTokenRequiresSecret(t *testing.T) {
	_, err := MintToken(config.FromOptions(nil), auth.Identity{ExternalID: "1", Username: "x"}, nil, 0, time.Now())
	assert.ErrorIs(t, err, config.ErrConfiguration)
}

func TestTokenCommands(t *testing.T) {
	useTempConfig(t)

	out, err := runCLI(t, "", "token", "mint", "--id", "99", "--username", "carol", "--email", "c@example.com")
	require.NoError(t, err)
	token := strings.TrimSpace(out)
	assert.Equal(t, 2, strings.Count(token, "."))

	out, err = runCLI(t, token+"\n", "token", "inspect")
	require.NoError(t, err)
	assert.Contains(t, out, "external id: 99")
	assert.Contains(t, out, "username:    carol")
	assert.Contains(t, out, "email:       c@example.com")

	out, err = runCLI(t, "", "token", "inspect", token)
	require.NoError(t, err)
	assert.Contains(t, out, "external id: 99")

	_, err = runCLI(t, "", "token", "mint", "--username", "nobody")
	require.NoError(t, err, "minting does not validate the payload")

	_, err = runCLI(t, "", "token", "inspect", "not-a-token")
	assert.ErrorIs(t, err, auth.ErrVerification)
}
