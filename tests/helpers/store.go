// Package helpers holds fixtures shared by package tests.
package helpers

import (
	"context"
	"testing"

	store "github.com/xiaot623/gogo/marketing/internal/repository"
)

// NewTestStore opens an in-memory store through store.Open, the same entry
// point the service uses, and closes it on test cleanup.
func NewTestStore(t *testing.T) store.Store {
	t.Helper()

	s, err := store.Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})
	return s
}
