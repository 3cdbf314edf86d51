package memory

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"assessment-service/internal/app"
	"assessment-service/internal/domain"
	"assessment-service/internal/policy"
)

func TestSessionStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore()

	session := app.NewSession("s1", "u1", "lesson-1", policy.Policy{}, nil, rand.New(rand.NewSource(1)))
	if err := store.Open(ctx, session); err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, ok := store.Get("s1"); !ok {
		t.Fatalf("expected session present")
	}

	dup := app.NewSession("s2", "u1", "lesson-1", policy.Policy{}, nil, rand.New(rand.NewSource(1)))
	if err := store.Open(ctx, dup); !errors.Is(err, domain.ErrSessionAlreadyOpen) {
		t.Fatalf("expected already open, got %v", err)
	}

	if _, ok := store.Remove(ctx, "s1"); !ok {
		t.Fatalf("expected remove to find session")
	}
	if _, ok := store.Get("s1"); ok {
		t.Fatalf("expected session removed")
	}
	if err := store.Open(ctx, dup); err != nil {
		t.Fatalf("reopen after close: %v", err)
	}
}
