// Package migrations embeds the SQL schema migrations applied by golang-migrate.
package migrations

import "embed"

// FS holds the migration files, grouped by database driver.
//
//go:embed postgres/*.sql
var FS embed.FS
