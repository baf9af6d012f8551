package store_test

import (
	"context"
	"testing"

	"github.com/ballotwatch/ballotwatch/internal/store"
	"github.com/ballotwatch/ballotwatch/internal/testutil"
)

// TestGet_MissingKey tests that a missing key returns ErrNotFound
func TestGet_MissingKey(t *testing.T) {
	s := testutil.NewTestStore(t)

	_, err := s.Get(context.Background(), store.KeyAuthToken)
	if err != store.ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

// TestSetGet_RoundTrip tests that a stored token survives and reads back
func TestSetGet_RoundTrip(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	if err := s.Set(ctx, store.KeyAuthToken, "tok-abc"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	value, err := s.Get(ctx, store.KeyAuthToken)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if value != "tok-abc" {
		t.Errorf("expected 'tok-abc', got %q", value)
	}
}

// TestSet_ReplacesExistingValue tests that Set overwrites a previous value
func TestSet_ReplacesExistingValue(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	if err := s.Set(ctx, store.KeyAuthToken, "old"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := s.Set(ctx, store.KeyAuthToken, "new"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	value, err := s.Get(ctx, store.KeyAuthToken)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if value != "new" {
		t.Errorf("expected 'new', got %q", value)
	}
}

// TestDelete_RemovesValue tests that Delete clears a key
func TestDelete_RemovesValue(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	if err := s.Set(ctx, store.KeyAuthToken, "tok"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := s.Delete(ctx, store.KeyAuthToken); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	_, err := s.Get(ctx, store.KeyAuthToken)
	if err != store.ErrNotFound {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

// TestDelete_MissingKeyIsNotAnError tests idempotent deletion
func TestDelete_MissingKeyIsNotAnError(t *testing.T) {
	s := testutil.NewTestStore(t)

	if err := s.Delete(context.Background(), "never-set"); err != nil {
		t.Errorf("expected nil deleting a missing key, got %v", err)
	}
}

// TestBool_DefaultsFalse tests that an absent boolean reads as false
func TestBool_DefaultsFalse(t *testing.T) {
	s := testutil.NewTestStore(t)

	v, err := s.GetBool(context.Background(), store.KeyIsAdmin)
	if err != nil {
		t.Fatalf("GetBool failed: %v", err)
	}
	if v {
		t.Error("expected false for an absent boolean")
	}
}

// TestBool_RoundTrip tests boolean storage in both states
func TestBool_RoundTrip(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	if err := s.SetBool(ctx, store.KeyIsAdmin, true); err != nil {
		t.Fatalf("SetBool failed: %v", err)
	}
	v, err := s.GetBool(ctx, store.KeyIsAdmin)
	if err != nil {
		t.Fatalf("GetBool failed: %v", err)
	}
	if !v {
		t.Error("expected true after SetBool(true)")
	}

	if err := s.SetBool(ctx, store.KeyIsAdmin, false); err != nil {
		t.Fatalf("SetBool failed: %v", err)
	}
	v, err = s.GetBool(ctx, store.KeyIsAdmin)
	if err != nil {
		t.Fatalf("GetBool failed: %v", err)
	}
	if v {
		t.Error("expected false after SetBool(false)")
	}
}
