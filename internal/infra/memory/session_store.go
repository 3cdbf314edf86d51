package memory

import (
	"context"
	"sync"

	"assessment-service/internal/app"
	"assessment-service/internal/domain"
)

// SessionStore is an in-memory implementation of app.SessionRepository.
// At most one session may be open per (user, lesson) pair.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*app.Session
	open     map[string]string
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*app.Session),
		open:     make(map[string]string),
	}
}

func (s *SessionStore) Open(_ context.Context, session *app.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := pairKey(session.UserID(), session.LessonID())
	if _, ok := s.open[key]; ok {
		return domain.ErrSessionAlreadyOpen
	}
	s.open[key] = session.ID()
	s.sessions[session.ID()] = session
	return nil
}

func (s *SessionStore) Get(id string) (*app.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	return session, ok
}

func (s *SessionStore) Remove(_ context.Context, id string) (*app.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	delete(s.sessions, id)
	delete(s.open, pairKey(session.UserID(), session.LessonID()))
	return session, true
}
