// Package testutil provides shared helpers for package tests.
package testutil

import (
	"io"
	"log/slog"
	"testing"

	"github.com/ballotwatch/ballotwatch/internal/logger"
	"github.com/ballotwatch/ballotwatch/internal/store"
)

// NewTestStore creates a fresh in-memory state store. Each call gets its
// own database, closed on test cleanup.
func NewTestStore(t *testing.T) *store.Store {
	t.Helper()

	s, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// Logger returns a logger that discards everything
func Logger() logger.Logger {
	return logger.NewWithWriter(io.Discard, slog.LevelError)
}
