package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/cascade/internal/store"
)

// NewStore opens a store in a temp dir, closed when the test ends.
func NewStore(t testing.TB) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// SeedStore opens a store and seeds it with a YAML fixture.
func SeedStore(t testing.TB, fixtureYAML string) *store.Store {
	t.Helper()
	s := NewStore(t)
	f, err := store.ParseFixture([]byte(fixtureYAML))
	if err != nil {
		t.Fatalf("parse fixture: %v", err)
	}
	if err := s.Seed(context.Background(), f); err != nil {
		t.Fatalf("seed store: %v", err)
	}
	return s
}
