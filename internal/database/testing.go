package database

import (
	"context"
	"os"
	"testing"
	"time"
)

// TestDSNEnv names the environment variable holding the test database DSN.
const TestDSNEnv = "QUANT_GRID_TEST_DSN"

// SetupTestDB connects to the test database named by QUANT_GRID_TEST_DSN and
// bootstraps the schema. Tests are skipped when the variable is unset.
func SetupTestDB(t *testing.T) *DB {
	t.Helper()

	dsn := os.Getenv(TestDSNEnv)
	if dsn == "" {
		t.Skipf("set %s to run database tests", TestDSNEnv)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	db, err := NewDBFromDSN(ctx, dsn, 4)
	if err != nil {
		t.Fatalf("failed to create test database connection: %v", err)
	}

	if err := db.EnsureSchema(ctx); err != nil {
		db.Close()
		t.Fatalf("failed to ensure test schema: %v", err)
	}

	return db
}

// TeardownTestDB closes the database connection cleanly
func TeardownTestDB(t *testing.T, db *DB) {
	t.Helper()
	db.Close()
}
