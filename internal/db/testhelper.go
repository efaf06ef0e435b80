package db

import (
	"database/sql"
	"path/filepath"
	"testing"
)

// OpenTestSQLite opens a migrated identity store in t.TempDir() and closes
// it when the test ends.
func OpenTestSQLite(t *testing.T) *sql.DB {
	t.Helper()

	store, err := Open(filepath.Join(t.TempDir(), "idstore.sqlite"))
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	if err := Migrate(store); err != nil {
		t.Fatalf("migrate test store: %v", err)
	}

	return store
}
