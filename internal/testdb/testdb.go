// Package testdb provides utilities for database integration testing.
// Tests using it skip automatically unless a test database is
// configured through the environment.
package testdb

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/digest-api/internal/platform/postgres"
)

// TestTimeout defines a default timeout for test database operations.
const TestTimeout = 5 * time.Second

// GetTestDatabaseURL returns the database URL for integration tests.
// It checks DATABASE_URL and DIGEST_TEST_DB_URL in that order.
func GetTestDatabaseURL() string {
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		return dbURL
	}
	return os.Getenv("DIGEST_TEST_DB_URL")
}

// GetTestDB opens the configured test database, applies the embedded
// migrations, and registers cleanup. Tests calling it skip when no test
// database is configured.
func GetTestDB(t *testing.T) *sql.DB {
	t.Helper()

	dbURL := GetTestDatabaseURL()
	if dbURL == "" {
		t.Skip("integration test requires DATABASE_URL or DIGEST_TEST_DB_URL")
	}

	db, err := sql.Open("pgx", dbURL)
	require.NoError(t, err, "failed to open test database")
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Logf("warning: failed to close test database: %v", err)
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), TestTimeout)
	defer cancel()
	require.NoError(t, db.PingContext(ctx), "failed to ping test database")

	require.NoError(t, postgres.RunMigrations(ctx, db), "failed to migrate test database")
	return db
}

// WithTx executes a test function within a transaction, rolling back
// afterwards so tests never leave rows behind.
func WithTx(t *testing.T, db *sql.DB, fn func(t *testing.T, tx *sql.Tx)) {
	t.Helper()

	tx, err := db.Begin()
	require.NoError(t, err, "failed to begin transaction")

	defer func() {
		err := tx.Rollback()
		if err != nil && !errors.Is(err, sql.ErrTxDone) {
			t.Logf("warning: failed to rollback transaction: %v", err)
		}
	}()

	fn(t, tx)
}
