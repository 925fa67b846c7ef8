// Package db carries the embedded schema migrations for the dialer.
package db

import (
	"context"
	"embed"

	"autodial_backend/platform/config"
	platformdb "autodial_backend/platform/db"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate applies all pending schema migrations.
func Migrate(ctx context.Context, cfg config.DatabaseConfig) error {
	return platformdb.RunMigrations(ctx, cfg, migrationsFS, "migrations")
}
