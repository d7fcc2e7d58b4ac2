package testsupport

import (
	"context"
	"testing"

	"citelink/internal/config"
	"citelink/internal/records"
)

// MustOpenStore opens a records.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *records.Store {
	t.Helper()

	store, err := records.Open(cfg)
	if err != nil {
		t.Fatalf("records.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// AddURL creates a new URL record for tests using the provided store.
func AddURL(t testing.TB, store *records.Store, url string) *records.Record {
	t.Helper()

	rec, err := store.Add(context.Background(), url)
	if err != nil {
		t.Fatalf("store.Add: %v", err)
	}
	return rec
}
