package testutil

import (
	"path/filepath"
	"testing"

	"github.com/mailmirror-dev/mailmirror/internal/store"
)

// NewTestStore creates a temporary database for testing. Open already
// applies migrations, so the returned store has a ready schema.
// The database is automatically cleaned up when the test completes.
func NewTestStore(t *testing.T) *store.Store {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}

	t.Cleanup(func() {
		st.Close()
	})

	return st
}
