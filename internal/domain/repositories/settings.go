package repositories

import "context"

// SettingsRepository persists plugin options as a flat key/value hash per namespace
type SettingsRepository interface {
	// Load returns every stored option; an unknown namespace yields an empty map
	Load(ctx context.Context, namespace string) (map[string]string, error)

	// Save upserts the given options. Empty values delete the option.
	Save(ctx context.Context, namespace string, opts map[string]string) error
}
