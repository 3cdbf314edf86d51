package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"assessment-service/internal/app"
	"assessment-service/internal/domain"
)

// SessionStore is a Redis-aware implementation of app.SessionRepository.
// Sessions themselves stay in a local map so the in-process broadcast keeps
// working; Redis holds a per user+lesson lock so a second instance cannot open
// the same lesson for the same user while a session is live. The lock
// expires after ttl so a crashed instance cannot block a learner forever.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
	log    *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*app.Session
}

func NewSessionStore(client *redis.Client, ttl time.Duration, log *slog.Logger) *SessionStore {
	if log == nil {
		log = slog.Default()
	}
	return &SessionStore{
		client:   client,
		ttl:      ttl,
		log:      log,
		sessions: make(map[string]*app.Session),
	}
}

func (s *SessionStore) Open(ctx context.Context, session *app.Session) error {
	ok, err := s.client.SetNX(ctx, s.lockKey(session.UserID(), session.LessonID()), session.ID(), s.ttl).Result()
	if err != nil {
		return fmt.Errorf("session lock: %w", err)
	}
	if !ok {
		return domain.ErrSessionAlreadyOpen
	}

	s.mu.Lock()
	s.sessions[session.ID()] = session
	s.mu.Unlock()
	return nil
}

func (s *SessionStore) Get(id string) (*app.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	return session, ok
}

func (s *SessionStore) Remove(ctx context.Context, id string) (*app.Session, bool) {
	s.mu.Lock()
	session, ok := s.sessions[id]
	if ok {
		delete(s.sessions, id)
	}
	s.mu.Unlock()
	if !ok {
		return nil, false
	}

	// Only release the lock if it is still ours; it may have expired and
	// been taken by a newer session.
	key := s.lockKey(session.UserID(), session.LessonID())
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		owner, err := tx.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
		if owner != session.ID() {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			return nil
		})
		return err
	}, key)
	if err != nil {
		s.log.Warn("session lock not released", "session", id, "err", err)
	}
	return session, true
}

func (s *SessionStore) lockKey(userID, lessonID string) string {
	return "assessment:session:" + pairField(userID, lessonID)
}
