package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/phrazzld/digest-api/internal/platform/logger"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// RunMigrations applies all pending schema migrations to the database.
// Migrations are embedded in the binary so the deployed artifact is
// self-contained.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	log := logger.FromContext(ctx)

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set migration dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return fmt.Errorf("failed to read migration version: %w", err)
	}

	log.Info("database migrations applied", "version", version)
	return nil
}
