// Package testing provides testing utilities and helpers for the balancer.
package testing

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/investbot/balancer/internal/database"
)

// NewTestDB creates a temporary SQLite database with the named schema applied.
// Supported names are "config" and "client_data"; other names get an empty database.
// The database is closed and removed when the test finishes.
func NewTestDB(t *testing.T, name string) *database.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), name+".db")
	db, err := database.New(database.Config{
		Path: path,
		Name: name,
	})
	if err != nil {
		t.Fatalf("Failed to create test database %s: %v", name, err)
	}

	if err := db.Migrate(); err != nil {
		_ = db.Close()
		t.Fatalf("Failed to migrate test database %s: %v", name, err)
	}

	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Logf("Warning: Failed to close test database %s: %v", name, err)
		}
		_ = os.Remove(path)
	})

	return db
}
