// Package dbtest opens a migrated Postgres database for integration tests.
// Tests are skipped when DATABASE_URL is unset or unreachable.
package dbtest

import (
	"database/sql"
	"errors"
	"os"
	"testing"

	"omnichannel-support/internal/db"
	"omnichannel-support/internal/db/migrate"
)

// Open returns a pool on DATABASE_URL with all migrations applied. The pool is closed on cleanup.
func Open(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}
	conn, err := db.Open(dsn)
	if err != nil {
		t.Skipf("Database connection failed: %v", err)
	}
	if err := migrate.Run(dsn, "up", 0); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		conn.Close()
		t.Fatalf("migrate up: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}
