// Package testutil provides helpers shared by package tests.
package testutil

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/plexlinker/plexlinker/internal/database"
)

// TestDB is a migrated SQLite database in a per-test directory.
type TestDB struct {
	DB     *database.DB
	Conn   *sql.DB
	Path   string
	Logger zerolog.Logger

	closeOnce sync.Once
}

// NewTestDB opens and migrates a database under t.TempDir(). It is closed
// automatically when the test ends; calling Close earlier is allowed.
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()

	dir := t.TempDir()
	db, err := database.New(filepath.Join(dir, "plexlinker.db"))
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	if err := db.Migrate(context.Background()); err != nil {
		db.Close()
		t.Fatalf("migrate test database: %v", err)
	}

	tdb := &TestDB{
		DB:     db,
		Conn:   db.Conn(),
		Path:   dir,
		Logger: zerolog.New(zerolog.NewTestWriter(t)).Level(zerolog.DebugLevel),
	}
	t.Cleanup(tdb.Close)
	return tdb
}

// Close closes the database. The directory is removed by the testing package.
func (tdb *TestDB) Close() {
	tdb.closeOnce.Do(func() {
		if tdb.DB != nil {
			_ = tdb.DB.Close()
		}
	})
}

// NopLogger returns a logger that discards everything.
func NopLogger() zerolog.Logger {
	return zerolog.Nop()
}

// WriteFile writes content to dir/rel, creating parents, and returns the
// full path.
func WriteFile(t *testing.T, dir, rel, content string) string {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("create directory for %s: %v", rel, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", rel, err)
	}
	return path
}
