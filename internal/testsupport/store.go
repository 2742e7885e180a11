package testsupport

import (
	"context"
	"testing"
	"time"

	"siactl/internal/config"
	"siactl/internal/journal"
)

// MustOpenJournal opens a journal.Store for tests and registers cleanup.
func MustOpenJournal(t testing.TB, cfg *config.Config) *journal.Store {
	t.Helper()

	store, err := journal.Open(cfg)
	if err != nil {
		t.Fatalf("journal.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// StartRun records a run with the given id for tests.
func StartRun(t testing.TB, store *journal.Store, id string, startedAt time.Time) {
	t.Helper()

	err := store.StartRun(context.Background(), journal.Run{
		ID:        id,
		Binary:    "siad",
		Args:      []string{"--api-addr=localhost:9980"},
		PID:       4242,
		StartedAt: startedAt,
	})
	if err != nil {
		t.Fatalf("store.StartRun: %v", err)
	}
}
