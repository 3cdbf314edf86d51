package redis

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"assessment-service/internal/app"
	"assessment-service/internal/domain"
	"assessment-service/internal/policy"
)

const u1LessonLock = "assessment:session:2:u1:lesson-1"

func TestSessionStoreLocksPairAcrossInstances(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	client := newClient(mr)
	first := NewSessionStore(client, time.Minute, nil)
	second := NewSessionStore(client, time.Minute, nil)

	session := newSession("s1")
	if err := first.Open(ctx, session); err != nil {
		t.Fatalf("open: %v", err)
	}
	if !mr.Exists(u1LessonLock) {
		t.Fatalf("expected redis lock to be set")
	}
	if err := second.Open(ctx, newSession("s2")); !errors.Is(err, domain.ErrSessionAlreadyOpen) {
		t.Fatalf("expected already open on other instance, got %v", err)
	}

	if _, ok := first.Remove(ctx, "s1"); !ok {
		t.Fatalf("expected remove to find session")
	}
	if mr.Exists(u1LessonLock) {
		t.Fatalf("expected redis lock to be removed")
	}
	if err := second.Open(ctx, newSession("s2")); err != nil {
		t.Fatalf("open after release: %v", err)
	}
}

func TestSessionStoreLockExpires(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	store := NewSessionStore(newClient(mr), time.Minute, nil)
	if err := store.Open(ctx, newSession("s1")); err != nil {
		t.Fatalf("open: %v", err)
	}
	mr.FastForward(2 * time.Minute)
	if err := store.Open(ctx, newSession("s2")); err != nil {
		t.Fatalf("expected expired lock to be reclaimable: %v", err)
	}

	// Removing the stale session must not release the newer lock.
	store.Remove(ctx, "s1")
	if !mr.Exists(u1LessonLock) {
		t.Fatalf("newer session lock was released")
	}
}

func TestSessionStoreKeepsColonIDsApart(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	store := NewSessionStore(newClient(mr), time.Minute, nil)
	rnd := rand.New(rand.NewSource(1))
	if err := store.Open(ctx, app.NewSession("s1", "a:b", "c", policy.Policy{}, nil, rnd)); err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := store.Open(ctx, app.NewSession("s2", "a", "b:c", policy.Policy{}, nil, rnd)); err != nil {
		t.Fatalf("distinct pair blocked by colliding lock: %v", err)
	}
}

func newSession(id string) *app.Session {
	return app.NewSession(id, "u1", "lesson-1", policy.Policy{}, nil, rand.New(rand.NewSource(1)))
}
