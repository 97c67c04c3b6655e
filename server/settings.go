package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/devilmonastery/sessionshare/internal/config"
	"github.com/devilmonastery/sessionshare/internal/domain/entities"
	"github.com/devilmonastery/sessionshare/internal/domain/repositories"
	"github.com/devilmonastery/sessionshare/internal/infrastructure/storage"
)

const reloadHint = "send SIGHUP to the web service to apply"

func newSettingsCommand(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Inspect and edit session sharing settings",
		Long: "Read and write the persisted session sharing options. Persisted values\n" +
			"override the session_sharing section of the config file.",
	}

	cmd.AddCommand(newSettingsGetCommand(flags))
	cmd.AddCommand(newSettingsSetCommand(flags))
	cmd.AddCommand(newSettingsImportCommand(flags))
	cmd.AddCommand(newSettingsExportCommand(flags))

	return cmd
}

// withRepos opens the store for the duration of fn
func withRepos(ctx context.Context, flags *globalFlags, fn func(cfg *config.Config, repos *repositories.Repositories) error) error {
	cfg, backend, err := openStore(ctx, flags, storage.Options{})
	if err != nil {
		return err
	}
	defer backend.Close()
	return fn(cfg, backend.Repos)
}

func newSettingsGetCommand(flags *globalFlags) *cobra.Command {
	var showSecret bool

	cmd := &cobra.Command{
		Use:   "get [option...]",
		Short: "Print the effective settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepos(cmd.Context(), flags, func(cfg *config.Config, repos *repositories.Repositories) error {
				return settingsGet(cmd.Context(), repos.Settings, cfg.SessionSharing, cmd.OutOrStdout(), args, showSecret)
			})
		},
	}
	cmd.Flags().BoolVar(&showSecret, "show-secret", false, "Print the secret instead of masking it")
	return cmd
}

func newSettingsSetCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "set option=value...",
		Short: "Persist option values (an empty value removes the option)",
		Example: `  server settings set secret=s3cret name=demo
  server settings set payload:parent=`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := parseAssignments(args)
			if err != nil {
				return err
			}
			return withRepos(cmd.Context(), flags, func(_ *config.Config, repos *repositories.Repositories) error {
				return saveSettings(cmd.Context(), repos, cmd.OutOrStdout(), opts)
			})
		},
	}
}

func newSettingsImportCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Persist every option from a YAML settings file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := config.ReadOptionsFile(args[0])
			if err != nil {
				return err
			}
			return withRepos(cmd.Context(), flags, func(_ *config.Config, repos *repositories.Repositories) error {
				return saveSettings(cmd.Context(), repos, cmd.OutOrStdout(), opts)
			})
		},
	}
}

func newSettingsExportCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Write the persisted options as YAML to stdout",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepos(cmd.Context(), flags, func(_ *config.Config, repos *repositories.Repositories) error {
				opts, err := repos.Settings.Load(cmd.Context(), config.SettingsNamespace)
				if err != nil {
					return err
				}
				return config.WriteOptions(cmd.OutOrStdout(), opts)
			})
		},
	}
}

// settingsGet prints bootstrap and persisted values merged over the defaults
func settingsGet(ctx context.Context, repo repositories.SettingsRepository, bootstrap map[string]string, out io.Writer, keys []string, showSecret bool) error {
	persisted, err := repo.Load(ctx, config.SettingsNamespace)
	if err != nil {
		return err
	}
	effective := config.FromOptions(config.MergeOptions(bootstrap, persisted)).Options()

	if len(keys) == 0 {
		keys = config.KnownOptions()
	}
	for _, key := range keys {
		if !config.IsKnownOption(key) {
			return fmt.Errorf("unknown option %q", key)
		}
		value := effective[key]
		if key == config.OptSecret && value != "" && !showSecret {
			value = "********"
		}
		fmt.Fprintf(out, "%s=%s\n", key, value)
	}

	if err := config.FromOptions(effective).Validate(); err != nil {
		fmt.Fprintf(out, "# not ready: %v\n", err)
	}
	return nil
}

// parseAssignments turns key=value arguments into an option map
func parseAssignments(args []string) (map[string]string, error) {
	opts := make(map[string]string, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, fmt.Errorf("expected option=value, got %q", arg)
		}
		key = strings.TrimSpace(key)
		if !config.IsKnownOption(key) {
			return nil, fmt.Errorf("unknown option %q", key)
		}
		opts[key] = strings.TrimSpace(value)
	}
	return opts, nil
}

// saveSettings persists opts and records a settings audit entry
func saveSettings(ctx context.Context, repos *repositories.Repositories, out io.Writer, opts map[string]string) error {
	for key := range opts {
		if !config.IsKnownOption(key) {
			return fmt.Errorf("unknown option %q", key)
		}
	}

	if err := repos.Settings.Save(ctx, config.SettingsNamespace, opts); err != nil {
		return err
	}

	keys := config.SortedKeys(opts)
	entry := entities.NewAuditLog(nil, entities.ActionSettingsChanged, entities.ResourceSettings).
		WithResourceID(config.SettingsNamespace).
		WithMetadata("options", keys)
	if err := repos.Audit.Create(ctx, entry); err != nil {
		slog.Warn("failed to write audit log", "error", err)
	}

	fmt.Fprintf(out, "saved %s (%s)\n", strings.Join(keys, ", "), reloadHint)
	return nil
}
