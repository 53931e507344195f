package testsupport

import (
	"context"
	"testing"

	"alogger/internal/config"
	"alogger/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg.Paths.DBPath)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// Enqueue inserts jobs for tests and returns their ids.
func Enqueue(t testing.TB, store *queue.Store, priority int, urls ...string) []int64 {
	t.Helper()

	ids, err := store.Enqueue(context.Background(), urls, priority)
	if err != nil {
		t.Fatalf("store.Enqueue: %v", err)
	}
	return ids
}
