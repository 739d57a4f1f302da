package repository

import (
	"context"
	"os"
	"testing"

	"github.com/foxzi/alumnet/internal/db"
)

// setupTestDB creates an in-memory SQLite database with all migrations applied
func setupTestDB(t *testing.T) *db.DB {
	t.Helper()

	d, err := db.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { d.Close() })

	if err := d.Migrate(); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return d
}

// setupPostgres connects to ALUMNET_TEST_POSTGRES_DSN or skips the test
func setupPostgres(t *testing.T) *db.DB {
	t.Helper()

	dsn := os.Getenv("ALUMNET_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("ALUMNET_TEST_POSTGRES_DSN not set")
	}

	d, err := db.OpenPostgres(context.Background(), dsn)
	if err != nil {
		t.Fatalf("failed to connect to postgres: %v", err)
	}
	t.Cleanup(func() { d.Close() })

	if err := d.Migrate(); err != nil {
		t.Fatalf("failed to migrate postgres: %v", err)
	}
	return d
}
