// Package testing provides test database and fixture helpers.
package testing

import (
	"fmt"
	"os"
	"testing"

	"github.com/rs/zerolog"

	"github.com/nedlands/propnet/internal/database"
	"github.com/nedlands/propnet/internal/store"
)

// NewTestDB creates a file-backed SQLite database in a temp location
// with the schema applied. Returns the database and a cleanup function;
// cleanup is idempotent.
func NewTestDB(t *testing.T) (*database.DB, func()) {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "test_network_*.db")
	if err != nil {
		t.Fatalf("Failed to create temporary database file: %v", err)
	}
	tmpPath := tmpFile.Name()
	_ = tmpFile.Close()

	db, err := database.New(database.Config{
		Path:    tmpPath,
		Profile: database.ProfileStandard,
		Name:    fmt.Sprintf("test_%s", t.Name()),
	})
	if err != nil {
		_ = os.Remove(tmpPath)
		t.Fatalf("Failed to create test database: %v", err)
	}

	if err := db.Migrate(); err != nil {
		_ = db.Close()
		_ = os.Remove(tmpPath)
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	closed := false
	cleanup := func() {
		if closed {
			return
		}
		closed = true
		_ = db.Close()
		_ = os.Remove(tmpPath)
		_ = os.Remove(tmpPath + "-wal")
		_ = os.Remove(tmpPath + "-shm")
	}
	return db, cleanup
}

// NewTestStore creates a migrated test database wrapped in a store.
func NewTestStore(t *testing.T) (*store.Store, func()) {
	t.Helper()
	db, cleanup := NewTestDB(t)
	return store.New(db, zerolog.Nop()), cleanup
}
