package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devilmonastery/sessionshare/internal/auth"
	"github.com/devilmonastery/sessionshare/internal/config"
)

func sign(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func newPipeline(t *testing.T, opts map[string]string) (*SessionSharing, *resolverFixture) {
	t.Helper()
	fx := newResolverFixture()
	require.NoError(t, fx.repos.Settings.Save(context.Background(), config.SettingsNamespace, opts))

	store := config.NewSettingsStore(fx.repos.Settings, nil)
	_, _ = store.Reload(context.Background())
	return NewSessionSharing(store, fx.resolver), fx
}

func TestLoginScenario(t *testing.T) {
	pipeline, fx := newPipeline(t, map[string]string{
		config.OptSecret:          "s3cret",
		config.OptName:            "demo",
		config.OptPayloadID:       "sub",
		config.OptPayloadUsername: "name",
		config.OptPayloadEmail:    "email",
	})
	require.True(t, pipeline.Ready())

	token := sign(t, "s3cret", jwt.MapClaims{"sub": "ext-42", "name": "alice", "email": "alice@example.com"})

	first, err := pipeline.Login(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, BranchCreated, first.Branch)
	assert.Equal(t, "ext-42", first.Identity.ExternalID)

	raw, err := fx.repos.Identities.GetByExternalID(context.Background(), "demo:uid", "ext-42")
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprint(first.UID), raw)

	second, err := pipeline.Login(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, first.UID, second.UID)
	assert.Equal(t, BranchExisting, second.Branch)
	assert.Equal(t, 1, fx.store.UserCount())
}

func TestLoginParentScenario(t *testing.T) {
	pipeline, _ := newPipeline(t, map[string]string{
		config.OptSecret:          "s3cret",
		config.OptName:            "demo",
		config.OptPayloadID:       "sub",
		config.OptPayloadUsername: "name",
		config.OptPayloadParent:   "profile",
	})

	ok := sign(t, "s3cret", jwt.MapClaims{"profile": map[string]any{"sub": "ext-7", "name": "bob"}})
	res, err := pipeline.Login(context.Background(), ok)
	require.NoError(t, err)
	assert.Equal(t, "bob", res.Identity.Username)

	missing := sign(t, "s3cret", jwt.MapClaims{"sub": "ext-7", "name": "bob"})
	_, err = pipeline.Login(context.Background(), missing)
	assert.ErrorIs(t, err, auth.ErrInvalidPayload)
}

func TestLoginFailures(t *testing.T) {
	pipeline, fx := newPipeline(t, map[string]string{config.OptSecret: "s3cret"})

	tests := []struct {
		name    string
		token   string
		wantErr error
		outcome string
	}{
		{
			name:    "wrong secret",
			token:   sign(t, "other", jwt.MapClaims{"id": "1", "username": "a"}),
			wantErr: auth.ErrVerification,
			outcome: OutcomeVerificationFailed,
		},
		{
			name: "expired",
			token: sign(t, "s3cret", jwt.MapClaims{
				"id": "1", "username": "a", "exp": float64(time.Now().Add(-time.Minute).Unix()),
			}),
			wantErr: auth.ErrVerification,
			outcome: OutcomeVerificationFailed,
		},
		{
			name:    "missing username",
			token:   sign(t, "s3cret", jwt.MapClaims{"id": "1"}),
			wantErr: auth.ErrInvalidPayload,
			outcome: OutcomePayloadInvalid,
		},
		{
			name:    "numeric id",
			token:   sign(t, "s3cret", jwt.MapClaims{"id": 1, "username": "a"}),
			wantErr: auth.ErrInvalidPayload,
			outcome: OutcomePayloadInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := pipeline.Login(context.Background(), tt.token)
			assert.Nil(t, res)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.outcome, Outcome(err))
		})
	}
	assert.Equal(t, 0, fx.store.UserCount())
}

func TestLoginNotReadyWithoutSecret(t *testing.T) {
	pipeline, _ := newPipeline(t, map[string]string{config.OptName: "demo"})
	assert.False(t, pipeline.Ready())

	_, err := pipeline.Login(context.Background(), sign(t, "", jwt.MapClaims{"id": "1", "username": "a"}))
	assert.ErrorIs(t, err, ErrNotReady)
	assert.ErrorIs(t, err, config.ErrConfiguration)
	assert.Equal(t, OutcomeNotReady, Outcome(err))
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, OutcomeSuccess, Outcome(nil))
	assert.Equal(t, OutcomeStorageError, Outcome(&StorageError{Op: "x", Err: errors.New("y")}))
	assert.Equal(t, OutcomeCreationError, Outcome(&AccountCreationError{Err: errors.New("y")}))
	assert.Equal(t, OutcomeCanceled, Outcome(context.Canceled))
	assert.Equal(t, OutcomeOther, Outcome(errors.New("?")))
}
