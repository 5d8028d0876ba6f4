package testsupport

import (
	"context"
	"testing"

	"minutes/internal/config"
	"minutes/internal/task"
)

// MustOpenSQLStore opens a task.SQLStore at the config's database path and
// registers cleanup.
func MustOpenSQLStore(t testing.TB, cfg *config.Config) *task.SQLStore {
	t.Helper()

	store, err := task.OpenSQLStore(context.Background(), cfg.Tasks.DatabasePath)
	if err != nil {
		t.Fatalf("task.OpenSQLStore: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewTask creates a running task record in store.
func NewTask(t testing.TB, store task.Store, sourceName string) *task.Record {
	t.Helper()

	record, err := store.Create(context.Background(), task.Submission{SourceName: sourceName})
	if err != nil {
		t.Fatalf("store.Create: %v", err)
	}
	return record
}
