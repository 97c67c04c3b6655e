package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/devilmonastery/sessionshare/internal/config"
	"github.com/devilmonastery/sessionshare/internal/infrastructure/storage"
	"github.com/devilmonastery/sessionshare/internal/pkg/idgen"
	"github.com/devilmonastery/sessionshare/internal/pkg/logger"
)

func main() {
	rootCmd := newRootCommand()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// globalFlags are shared by every subcommand
type globalFlags struct {
	configPath    string
	logLevel      string
	logFile       string
	alsoLogStderr bool
	logFormat     string
}

func newRootCommand() *cobra.Command {
	flags := &globalFlags{}

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Session sharing operator CLI",
		Long:  "Maintenance commands for the session sharing store: schema migrations, local users and settings",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := setupServerLogging(flags); err != nil {
				return err
			}
			slog.SetDefault(logger.WithCommand(slog.Default(), cmd.CommandPath()))
			return nil
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "Path to config file (optional)")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&flags.logFile, "log-file", "", "Log file path (if specified, logs to file instead of stderr)")
	cmd.PersistentFlags().BoolVar(&flags.alsoLogStderr, "alsologtostderr", false, "Log to both file and stderr")
	cmd.PersistentFlags().StringVar(&flags.logFormat, "log-format", "text", "Log format (text, json)")

	cmd.AddCommand(newMigrateCommand(flags))
	cmd.AddCommand(newUserCommand(flags))
	cmd.AddCommand(newSettingsCommand(flags))
	cmd.AddCommand(newAuditCommand(flags))

	return cmd
}

// setupServerLogging configures the global logger for the CLI
func setupServerLogging(flags *globalFlags) error {
	cfg := logger.Config{
		Level:         logger.ParseLevel(flags.logLevel),
		LogFile:       flags.logFile,
		LogToStderr:   flags.logFile == "",
		AlsoLogStderr: flags.alsoLogStderr,
		Format:        flags.logFormat,
	}

	globalLogger, err := logger.SetupLogger(cfg)
	if err != nil {
		return err
	}

	slog.SetDefault(globalLogger)
	return nil
}

// openStore loads the config and opens its storage backend
func openStore(ctx context.Context, flags *globalFlags, opts storage.Options) (*config.Config, *storage.Backend, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := idgen.Initialize(cfg.Snowflake.NodeID); err != nil {
		return nil, nil, fmt.Errorf("failed to initialize ID generator: %w", err)
	}

	backend, err := storage.Open(ctx, cfg, opts)
	if err != nil {
		return nil, nil, err
	}
	return cfg, backend, nil
}
