package testfixtures

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/example/music-school-scheduler/internal/persistence/memory"
	"github.com/example/music-school-scheduler/internal/persistence/sqlite"
)

// SQLiteHarness provides an activity repository written through to a
// temporary SQLite database for integration-style tests.
type SQLiteHarness struct {
	Store      *sqlite.ActivityStore
	Activities *memory.Storage
	Path       string

	cleanup func()
}

// Close releases resources associated with the harness.
func (h *SQLiteHarness) Close() {
	if h != nil && h.cleanup != nil {
		h.cleanup()
		h.cleanup = nil
	}
}

// Reopen closes the database and opens it again, returning a fresh memory
// store loaded from disk. It simulates a process restart.
func (h *SQLiteHarness) Reopen(tb testing.TB) *memory.Storage {
	tb.Helper()
	h.Close()
	store := openStore(tb, h.Path)
	h.Store = store
	h.Activities = memory.New(store)
	if _, err := h.Activities.Load(context.Background()); err != nil {
		tb.Fatalf("failed to load activities: %v", err)
	}
	h.cleanup = func() { _ = store.Close() }
	return h.Activities
}

// NewSQLiteHarness constructs a SQLiteHarness using a temporary file that is
// migrated automatically. Callers may optionally invoke Close, but the helper
// will also register a cleanup callback with the provided testing.TB.
func NewSQLiteHarness(tb testing.TB) *SQLiteHarness {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "scheduler.db")
	store := openStore(tb, path)

	harness := &SQLiteHarness{
		Store:      store,
		Activities: memory.New(store),
		Path:       path,
		cleanup: func() {
			_ = store.Close()
		},
	}

	tb.Cleanup(harness.Close)
	return harness
}

func openStore(tb testing.TB, path string) *sqlite.ActivityStore {
	tb.Helper()
	store, err := sqlite.Open(context.Background(), sqlite.DefaultConfig(path), nil)
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}
	return store
}
