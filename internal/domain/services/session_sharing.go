package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/devilmonastery/sessionshare/internal/auth"
	"github.com/devilmonastery/sessionshare/internal/config"
	"github.com/devilmonastery/sessionshare/internal/pkg/metrics"
)

// ErrNotReady is returned while the settings cannot drive the pipeline
var ErrNotReady = fmt.Errorf("%w: pipeline not ready", config.ErrConfiguration)

// SettingsProvider hands out the current settings snapshot
type SettingsProvider interface {
	Current() *config.Snapshot
}

// Login outcomes, used as the metrics label
const (
	OutcomeSuccess            = "success"
	OutcomeNotReady           = "not_ready"
	OutcomeVerificationFailed = "verification_failed"
	OutcomePayloadInvalid     = "payload_invalid"
	OutcomeStorageError       = "storage_error"
	OutcomeCreationError      = "creation_error"
	OutcomeCanceled           = "canceled"
	OutcomeOther              = "other"
)

// LoginResult describes a successful shared-session login
type LoginResult struct {
	UID      int64
	Branch   string
	Identity auth.Identity
}

// SessionSharing runs the token -> claims -> identity -> account pipeline
type SessionSharing struct {
	settings SettingsProvider
	resolver *IdentityResolver
	log      *slog.Logger
}

// NewSessionSharing wires the pipeline
func NewSessionSharing(settings SettingsProvider, resolver *IdentityResolver) *SessionSharing {
	return &SessionSharing{
		settings: settings,
		resolver: resolver,
		log:      slog.Default().With(slog.String("service", "session_sharing")),
	}
}

// Ready reports whether the current settings can verify tokens
func (s *SessionSharing) Ready() bool {
	return s.settings.Current().Ready
}

// Settings returns the settings in effect right now
func (s *SessionSharing) Settings() config.Settings {
	return s.settings.Current().Settings
}

// Login verifies token, validates its payload and resolves the local account.
// Errors are one of auth.ErrVerification, auth.ErrInvalidPayload,
// *StorageError, *AccountCreationError or ErrNotReady.
func (s *SessionSharing) Login(ctx context.Context, token string) (*LoginResult, error) {
	result, err := s.login(ctx, token)
	metrics.LoginAttempts.WithLabelValues(Outcome(err)).Inc()
	return result, err
}

func (s *SessionSharing) login(ctx context.Context, token string) (*LoginResult, error) {
	snap := s.settings.Current()
	if !snap.Ready {
		return nil, ErrNotReady
	}
	settings := snap.Settings

	claims, err := auth.Verify(token, settings.Secret)
	if err != nil {
		return nil, err
	}

	fields, err := auth.ValidatePayload(claims, settings.Payload)
	if err != nil {
		return nil, err
	}

	identity := auth.ExtractIdentity(fields, settings.Payload)
	res, err := s.resolver.Resolve(ctx, settings.MappingKey(), identity)
	if err != nil {
		return nil, err
	}

	return &LoginResult{UID: res.UID, Branch: res.Branch, Identity: identity}, nil
}

// Outcome classifies a Login error for metrics and logging
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, config.ErrConfiguration):
		return OutcomeNotReady
	case errors.Is(err, auth.ErrVerification):
		return OutcomeVerificationFailed
	case errors.Is(err, auth.ErrInvalidPayload):
		return OutcomePayloadInvalid
	case IsStorageError(err):
		return OutcomeStorageError
	case IsAccountCreationError(err):
		return OutcomeCreationError
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return OutcomeCanceled
	default:
		return OutcomeOther
	}
}
