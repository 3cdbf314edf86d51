// Package attempts governs how many assessment attempts a user may take per
// lesson and mediates the request/approval workflow for more.
package attempts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"assessment-service/internal/domain"
)

// DefaultAllowedAttempts applies when no override exists for a user+lesson.
const DefaultAllowedAttempts = 2

// Store is the slice of the persistence collaborator the governor needs.
type Store interface {
	CountAttempts(ctx context.Context, userID, lessonID string) (int, error)
	GetOverride(ctx context.Context, userID, lessonID string) (int, bool, error)
	SetOverride(ctx context.Context, override domain.AttemptOverride) error
	CreateRequest(ctx context.Context, req domain.AttemptRequest) error
	GetRequest(ctx context.Context, id string) (domain.AttemptRequest, error)
	ListRequests(ctx context.Context, status domain.RequestStatus) ([]domain.AttemptRequest, error)
	UpdateRequest(ctx context.Context, req domain.AttemptRequest) error
}

// Gate is the result of checking whether a new session may start.
type Gate struct {
	UserID   string `json:"userId"`
	LessonID string `json:"lessonId"`
	Taken    int    `json:"taken"`
	Allowed  int    `json:"allowed"`
	CanStart bool   `json:"canStart"`
}

// Err returns an *domain.AttemptLimitError when the gate is closed.
func (g Gate) Err() error {
	if g.CanStart {
		return nil
	}
	return &domain.AttemptLimitError{Taken: g.Taken, Allowed: g.Allowed}
}

// Governor looks up attempt allowances and resolves attempt requests.
type Governor struct {
	store          Store
	defaultAllowed int
	now            func() time.Time
	newID          func() string
	log            *slog.Logger
}

// Option customizes a Governor.
type Option func(*Governor)

// WithDefaultAllowed changes the allowance used when no override exists.
func WithDefaultAllowed(n int) Option {
	return func(g *Governor) {
		if n > 0 {
			g.defaultAllowed = n
		}
	}
}

// WithClock is for deterministic timestamps in tests.
func WithClock(now func() time.Time) Option {
	return func(g *Governor) { g.now = now }
}

// WithLogger sets the logger; nil keeps slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(g *Governor) {
		if log != nil {
			g.log = log
		}
	}
}

func NewGovernor(store Store, opts ...Option) *Governor {
	g := &Governor{
		store:          store,
		defaultAllowed: DefaultAllowedAttempts,
		now:            time.Now,
		newID:          func() string { return uuid.NewString() },
		log:            slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// AllowedAttempts returns the override for the pair, or the default.
func (g *Governor) AllowedAttempts(ctx context.Context, userID, lessonID string) (int, error) {
	allowed, ok, err := g.store.GetOverride(ctx, userID, lessonID)
	if err != nil {
		return 0, fmt.Errorf("get override: %w", err)
	}
	if !ok {
		return g.defaultAllowed, nil
	}
	return allowed, nil
}

// AttemptsTaken counts persisted attempt records for the pair. Abandoned
// sessions never reach the store and so never count.
func (g *Governor) AttemptsTaken(ctx context.Context, userID, lessonID string) (int, error) {
	n, err := g.store.CountAttempts(ctx, userID, lessonID)
	if err != nil {
		return 0, fmt.Errorf("count attempts: %w", err)
	}
	return n, nil
}

// Check reports whether the user may open a new session for the lesson.
func (g *Governor) Check(ctx context.Context, userID, lessonID string) (Gate, error) {
	taken, err := g.AttemptsTaken(ctx, userID, lessonID)
	if err != nil {
		return Gate{}, err
	}
	allowed, err := g.AllowedAttempts(ctx, userID, lessonID)
	if err != nil {
		return Gate{}, err
	}
	return Gate{
		UserID:   userID,
		LessonID: lessonID,
		Taken:    taken,
		Allowed:  allowed,
		CanStart: taken < allowed,
	}, nil
}

// SubmitRequest files a pending request for more attempts. Duplicate pending
// requests for the same pair are accepted as-is.
func (g *Governor) SubmitRequest(ctx context.Context, userID, lessonID string) (domain.AttemptRequest, error) {
	req := domain.AttemptRequest{
		ID:        g.newID(),
		UserID:    userID,
		LessonID:  lessonID,
		CreatedAt: g.now().UTC(),
		Status:    domain.RequestPending,
	}
	if err := g.store.CreateRequest(ctx, req); err != nil {
		return domain.AttemptRequest{}, fmt.Errorf("%w: create request: %v", domain.ErrPersistence, err)
	}
	g.log.Info("attempt request submitted", "request", req.ID, "user", userID, "lesson", lessonID)
	return req, nil
}

// ResolveRequest sets the terminal status of a request. On approval with a
// non-nil newAllowed the pair's override is written first. Re-resolving is
// allowed and the last decision wins.
func (g *Governor) ResolveRequest(ctx context.Context, id string, decision domain.RequestStatus, newAllowed *int) (domain.AttemptRequest, error) {
	if !decision.Terminal() {
		return domain.AttemptRequest{}, domain.ErrInvalidDecision
	}
	if newAllowed != nil && *newAllowed < 0 {
		return domain.AttemptRequest{}, domain.ErrInvalidAllowance
	}

	req, err := g.store.GetRequest(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrRequestNotFound) {
			return domain.AttemptRequest{}, err
		}
		return domain.AttemptRequest{}, fmt.Errorf("%w: get request: %v", domain.ErrPersistence, err)
	}
	if req.Status.Terminal() {
		g.log.Warn("re-resolving attempt request", "request", id, "from", req.Status, "to", decision)
	}

	if decision == domain.RequestApproved && newAllowed != nil {
		override := domain.AttemptOverride{UserID: req.UserID, LessonID: req.LessonID, Allowed: *newAllowed}
		if err := g.store.SetOverride(ctx, override); err != nil {
			return domain.AttemptRequest{}, fmt.Errorf("%w: set override: %v", domain.ErrPersistence, err)
		}
	}

	resolvedAt := g.now().UTC()
	req.Status = decision
	req.ResolvedAt = &resolvedAt
	if err := g.store.UpdateRequest(ctx, req); err != nil {
		return domain.AttemptRequest{}, fmt.Errorf("%w: update request: %v", domain.ErrPersistence, err)
	}
	g.log.Info("attempt request resolved", "request", id, "status", decision, "user", req.UserID, "lesson", req.LessonID)
	return req, nil
}

// SetOverride grants an allowance directly, outside the request workflow.
func (g *Governor) SetOverride(ctx context.Context, override domain.AttemptOverride) error {
	if override.Allowed < 0 {
		return domain.ErrInvalidAllowance
	}
	if err := g.store.SetOverride(ctx, override); err != nil {
		return fmt.Errorf("%w: set override: %v", domain.ErrPersistence, err)
	}
	return nil
}

// ListRequests returns requests with the given status, or all when empty.
func (g *Governor) ListRequests(ctx context.Context, status domain.RequestStatus) ([]domain.AttemptRequest, error) {
	reqs, err := g.store.ListRequests(ctx, status)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	return reqs, nil
}
