package testsupport

import (
	"context"
	"testing"

	"overdub/internal/config"
	"overdub/internal/jobs"
)

// MustOpenStore opens a jobs.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *jobs.Store {
	t.Helper()

	store, err := jobs.Open(cfg)
	if err != nil {
		t.Fatalf("jobs.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// SeedJob inserts a fresh job for tests using the provided store.
func SeedJob(t testing.TB, store *jobs.Store, uid, sourcePath string, mediaType jobs.MediaType) *jobs.Job {
	t.Helper()

	job := jobs.New(uid, sourcePath, mediaType, 3)
	if err := store.Create(context.Background(), job); err != nil {
		t.Fatalf("store.Create: %v", err)
	}
	return job
}
