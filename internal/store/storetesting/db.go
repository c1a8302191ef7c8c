// Package storetesting opens throwaway archives for tests.
package storetesting

import (
	"testing"
	"time"

	"reportqa/internal/store"
	"reportqa/internal/testutil"
)

const defaultTimeout = 2 * time.Second

// Open returns an in-memory store with the schema applied, closed on cleanup.
func Open(t testing.TB) *store.Store {
	t.Helper()
	ctx := testutil.Context(t, defaultTimeout)
	s, err := store.Open(ctx, ":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})
	return s
}
