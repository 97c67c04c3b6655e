package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/devilmonastery/sessionshare/internal/infrastructure/storage"
	"github.com/devilmonastery/sessionshare/migrations"
)

func newMigrateCommand(flags *globalFlags) *cobra.Command {
	var forceVersion int

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply PostgreSQL schema migrations",
		Long:  "Apply pending PostgreSQL migrations. Other store backends need no schema.",
		Example: `  # Apply pending migrations
  server migrate

  # Recover from a dirty migration state
  server migrate --force-version 1`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := slog.Default().With("component", "migrate")

			_, backend, err := openStore(cmd.Context(), flags, storage.Options{SkipMigrations: true})
			if err != nil {
				return err
			}
			defer backend.Close()

			if backend.Postgres == nil {
				logger.Info("Store has no schema to migrate", "store", backend.Name)
				return nil
			}
			conn := backend.Postgres

			if forceVersion >= 0 {
				logger.Info("Force setting migration version", "version", forceVersion)
				if err := conn.ForceMigrationVersion(migrations.FS, forceVersion); err != nil {
					return fmt.Errorf("failed to force migration version: %w", err)
				}
			} else if err := conn.RunMigrations(migrations.FS); err != nil {
				return fmt.Errorf("failed to run PostgreSQL migrations: %w", err)
			}

			version, dirty, err := conn.MigrationVersion(migrations.FS)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (dirty=%t)\n", version, dirty)
			return nil
		},
	}

	cmd.Flags().IntVar(&forceVersion, "force-version", -1, "Force migration version (use to fix dirty migration state)")

	return cmd
}
