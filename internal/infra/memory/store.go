package memory

import (
	"context"
	"sort"
	"sync"

	"assessment-service/internal/domain"
)

// Store is an in-memory implementation of app.Store. It backs tests and the
// "memory" storage driver; nothing survives a restart.
type Store struct {
	mu        sync.RWMutex
	nextID    int64
	records   []domain.AttemptRecord
	overrides map[string]int
	requests  map[string]domain.AttemptRequest
	configs   map[string]domain.EventConfig
	active    string
}

func NewStore() *Store {
	return &Store{
		overrides: make(map[string]int),
		requests:  make(map[string]domain.AttemptRequest),
		configs:   make(map[string]domain.EventConfig),
	}
}

func pairKey(userID, lessonID string) string {
	return userID + "\x00" + lessonID
}

func (s *Store) AppendAttemptRecord(_ context.Context, rec domain.AttemptRecord) (domain.AttemptRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	rec.ID = s.nextID
	rec.PerQuestionReview = append([]domain.QuestionReview(nil), rec.PerQuestionReview...)
	s.records = append(s.records, rec)
	return rec, nil
}

func (s *Store) ListAttemptRecords(_ context.Context, filter domain.AttemptFilter) ([]domain.AttemptRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.AttemptRecord, 0)
	for _, rec := range s.records {
		if filter.UserID != "" && rec.UserID != filter.UserID {
			continue
		}
		if filter.LessonID != "" && rec.LessonID != filter.LessonID {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *Store) AttachComment(_ context.Context, id int64, comment string) (domain.AttemptRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.records {
		if s.records[i].ID == id {
			s.records[i].Comment = comment
			return s.records[i], nil
		}
	}
	return domain.AttemptRecord{}, domain.ErrRecordNotFound
}

func (s *Store) CountAttempts(_ context.Context, userID, lessonID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, rec := range s.records {
		if rec.UserID == userID && rec.LessonID == lessonID {
			n++
		}
	}
	return n, nil
}

func (s *Store) GetOverride(_ context.Context, userID, lessonID string) (int, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	allowed, ok := s.overrides[pairKey(userID, lessonID)]
	return allowed, ok, nil
}

func (s *Store) SetOverride(_ context.Context, override domain.AttemptOverride) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overrides[pairKey(override.UserID, override.LessonID)] = override.Allowed
	return nil
}

func (s *Store) CreateRequest(_ context.Context, req domain.AttemptRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[req.ID] = req
	return nil
}

func (s *Store) GetRequest(_ context.Context, id string) (domain.AttemptRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	req, ok := s.requests[id]
	if !ok {
		return domain.AttemptRequest{}, domain.ErrRequestNotFound
	}
	return req, nil
}

func (s *Store) ListRequests(_ context.Context, status domain.RequestStatus) ([]domain.AttemptRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.AttemptRequest, 0, len(s.requests))
	for _, req := range s.requests {
		if status == "" || req.Status == status {
			out = append(out, req)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) UpdateRequest(_ context.Context, req domain.AttemptRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.requests[req.ID]; !ok {
		return domain.ErrRequestNotFound
	}
	s.requests[req.ID] = req
	return nil
}

func (s *Store) SaveEventConfig(_ context.Context, cfg domain.EventConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.configs[cfg.Name] = cfg
	return nil
}

func (s *Store) GetEventConfig(_ context.Context, name string) (domain.EventConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, ok := s.configs[name]
	if !ok {
		return domain.EventConfig{}, domain.ErrConfigNotFound
	}
	return cfg, nil
}

func (s *Store) ListEventConfigs(_ context.Context) ([]domain.EventConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.EventConfig, 0, len(s.configs))
	for _, cfg := range s.configs {
		out = append(out, cfg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) ActivateEventConfig(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.configs[name]; !ok {
		return domain.ErrConfigNotFound
	}
	s.active = name
	return nil
}

func (s *Store) ActiveEventConfig(_ context.Context) (domain.EventConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, ok := s.configs[s.active]
	if !ok {
		return domain.EventConfig{}, domain.ErrConfigNotFound
	}
	return cfg, nil
}
