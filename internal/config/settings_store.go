package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/devilmonastery/sessionshare/internal/pkg/metrics"
)

// SettingsLoader reads persisted option values for a namespace
type SettingsLoader interface {
	Load(ctx context.Context, namespace string) (map[string]string, error)
}

// Snapshot is one immutable generation of settings. Ready is false when the
// settings cannot drive the pipeline; requests then pass through untouched.
type Snapshot struct {
	Settings Settings
	Ready    bool
	LoadedAt time.Time
	Err      error
}

// SettingsStore holds the current settings snapshot and swaps it atomically on reload.
// Readers never lock.
type SettingsStore struct {
	loader    SettingsLoader
	bootstrap map[string]string
	current   atomic.Pointer[Snapshot]
	log       *slog.Logger
}

// NewSettingsStore creates a store. bootstrap values come from the config file and
// are overridden by persisted values. The store starts not ready until Reload runs.
func NewSettingsStore(loader SettingsLoader, bootstrap map[string]string) *SettingsStore {
	s := &SettingsStore{
		loader:    loader,
		bootstrap: bootstrap,
		log:       slog.Default().With("component", "settings"),
	}
	s.current.Store(&Snapshot{
		Settings: FromOptions(nil),
		Err:      fmt.Errorf("%w: settings not loaded", ErrConfiguration),
	})
	return s
}

// Current returns the active snapshot. It is never nil.
func (s *SettingsStore) Current() *Snapshot {
	return s.current.Load()
}

// Ready reports whether the active snapshot can drive the pipeline
func (s *SettingsStore) Ready() bool {
	return s.Current().Ready
}

// Reload reads the persisted options and installs a new snapshot.
// A storage failure keeps the previous snapshot. A missing secret installs a
// not-ready snapshot and returns an error wrapping ErrConfiguration.
func (s *SettingsStore) Reload(ctx context.Context) (*Snapshot, error) {
	var persisted map[string]string
	if s.loader != nil {
		var err error
		persisted, err = s.loader.Load(ctx, SettingsNamespace)
		if err != nil {
			metrics.SettingsReloads.WithLabelValues("error").Inc()
			s.log.Error("[session-sharing] failed to load settings", slog.Any("error", err))
			return s.Current(), fmt.Errorf("failed to load settings: %w", err)
		}
	}

	snap := s.install(MergeOptions(s.bootstrap, persisted))
	return snap, snap.Err
}

// Replace installs settings built from opts without consulting the loader
func (s *SettingsStore) Replace(opts map[string]string) error {
	return s.install(MergeOptions(s.bootstrap, opts)).Err
}

func (s *SettingsStore) install(opts map[string]string) *Snapshot {
	settings := FromOptions(opts)
	snap := &Snapshot{Settings: settings, LoadedAt: time.Now()}

	if err := settings.Validate(); err != nil {
		snap.Err = err
		metrics.SettingsReloads.WithLabelValues("not_ready").Inc()
		metrics.PipelineReady.Set(0)
		if errors.Is(err, ErrConfiguration) {
			s.log.Warn("[session-sharing] plugin disabled until configured", slog.Any("error", err))
		}
	} else {
		snap.Ready = true
		metrics.SettingsReloads.WithLabelValues("ok").Inc()
		metrics.PipelineReady.Set(1)
		s.log.Info("[session-sharing] settings loaded",
			slog.String("namespace", settings.Name),
			slog.String("cookie_name", settings.CookieName),
			slog.String("payload_parent", settings.Payload.Parent),
			slog.Bool("guest_redirect", settings.GuestRedirect != ""))
	}

	s.current.Store(snap)
	return snap
}
