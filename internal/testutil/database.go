package testutil

import (
	"path/filepath"
	"testing"

	"freelanceflow/internal/database"
	"freelanceflow/internal/ff"
)

// NewTestDatabase creates a new in-memory SQLite database with schema applied.
// IDs come from a StubIDGenerator. The database is automatically closed when
// the test completes.
func NewTestDatabase(t *testing.T) ff.Database {
	t.Helper()
	return openTestDatabase(t, ":memory:")
}

// NewTestFileDatabase is NewTestDatabase backed by a file in a temp
// directory, for tests that export, import or delete the file.
func NewTestFileDatabase(t *testing.T) ff.Database {
	t.Helper()
	return openTestDatabase(t, filepath.Join(t.TempDir(), database.DatabaseFileName))
}

func openTestDatabase(t *testing.T, path string) ff.Database {
	t.Helper()

	db, err := database.NewSQLiteDatabase(path, NewStubIDGenerator())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	if err := db.EnsureSchema(); err != nil {
		db.Close()
		t.Fatalf("failed to apply schema: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}
