package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"assessment-service/internal/domain"
)

func TestStoreAttemptRecords(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	first, err := store.AppendAttemptRecord(ctx, domain.AttemptRecord{UserID: "u1", LessonID: "l1", Score: 3, TotalQuestions: 4})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	second, err := store.AppendAttemptRecord(ctx, domain.AttemptRecord{UserID: "u1", LessonID: "l2", Score: 1, TotalQuestions: 4})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if first.ID == 0 || second.ID <= first.ID {
		t.Fatalf("expected increasing ids, got %d and %d", first.ID, second.ID)
	}

	n, err := store.CountAttempts(ctx, "u1", "l1")
	if err != nil || n != 1 {
		t.Fatalf("expected one attempt for l1, got %d (%v)", n, err)
	}

	recs, err := store.ListAttemptRecords(ctx, domain.AttemptFilter{UserID: "u1"})
	if err != nil || len(recs) != 2 {
		t.Fatalf("expected two records, got %d (%v)", len(recs), err)
	}

	updated, err := store.AttachComment(ctx, second.ID, "tricky")
	if err != nil {
		t.Fatalf("attach comment: %v", err)
	}
	if updated.Comment != "tricky" {
		t.Fatalf("comment not stored: %+v", updated)
	}
	if _, err := store.AttachComment(ctx, 999, "x"); !errors.Is(err, domain.ErrRecordNotFound) {
		t.Fatalf("expected record not found, got %v", err)
	}
}

func TestStoreRequestsOrdered(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	_ = store.CreateRequest(ctx, domain.AttemptRequest{ID: "b", CreatedAt: base.Add(time.Minute), Status: domain.RequestPending})
	_ = store.CreateRequest(ctx, domain.AttemptRequest{ID: "a", CreatedAt: base, Status: domain.RequestPending})
	_ = store.CreateRequest(ctx, domain.AttemptRequest{ID: "c", CreatedAt: base, Status: domain.RequestRejected})

	pending, err := store.ListRequests(ctx, domain.RequestPending)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(pending) != 2 || pending[0].ID != "a" || pending[1].ID != "b" {
		t.Fatalf("unexpected order %+v", pending)
	}

	if err := store.UpdateRequest(ctx, domain.AttemptRequest{ID: "missing"}); !errors.Is(err, domain.ErrRequestNotFound) {
		t.Fatalf("expected request not found, got %v", err)
	}
}

func TestStoreEventConfigs(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	if _, err := store.ActiveEventConfig(ctx); !errors.Is(err, domain.ErrConfigNotFound) {
		t.Fatalf("expected no active config, got %v", err)
	}
	if err := store.ActivateEventConfig(ctx, "spring"); !errors.Is(err, domain.ErrConfigNotFound) {
		t.Fatalf("expected activate of unknown config to fail, got %v", err)
	}

	cfg := domain.EventConfig{Name: "spring", HintsAllowed: true, MaxHints: 2}
	if err := store.SaveEventConfig(ctx, cfg); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.ActivateEventConfig(ctx, "spring"); err != nil {
		t.Fatalf("activate: %v", err)
	}
	active, err := store.ActiveEventConfig(ctx)
	if err != nil || active.MaxHints != 2 {
		t.Fatalf("unexpected active config %+v (%v)", active, err)
	}
}
