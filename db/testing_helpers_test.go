package db

import (
	"path/filepath"
	"testing"
)

// newTestDatabase opens a migrated database in a temp directory.
func newTestDatabase(t *testing.T) *Database {
	t.Helper()

	database, err := NewDatabase(filepath.Join(t.TempDir(), "data", "test.db"))
	if err != nil {
		t.Fatalf("NewDatabase() error = %v", err)
	}
	t.Cleanup(func() { database.Close() })

	if err := database.Migrate(); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return database
}
