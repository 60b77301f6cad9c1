package testsupport

import (
	"context"
	"testing"

	"briefcast/internal/config"
	"briefcast/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewJob creates a queued job for tests using the provided store.
func NewJob(t testing.TB, store *queue.Store, kind queue.Kind, inputJSON string) *queue.Job {
	t.Helper()

	job, err := store.NewJob(context.Background(), kind, inputJSON, "")
	if err != nil {
		t.Fatalf("store.NewJob: %v", err)
	}
	return job
}
