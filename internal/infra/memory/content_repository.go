package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"assessment-service/internal/domain"
	"golang.org/x/sync/singleflight"
)

// LessonLoader fetches lesson content for a language from a backing store.
type LessonLoader interface {
	LoadLessons(ctx context.Context, language string) ([]domain.Lesson, error)
}

// ContentRepository caches each language's lessons with a TTL to avoid
// repeated loader hits.
type ContentRepository struct {
	loader LessonLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rndMu  sync.Mutex
	rnd    *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedLessons
}

type cachedLessons struct {
	lessons   map[string][]domain.Question
	expiresAt time.Time
}

func NewContentRepository(loader LessonLoader, ttl time.Duration) *ContentRepository {
	return &ContentRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedLessons),
	}
}

// Lessons returns every lesson's questions for the language, keyed by lesson ID.
func (r *ContentRepository) Lessons(ctx context.Context, language string) (map[string][]domain.Question, error) {
	now := r.clock()

	r.mu.RLock()
	if entry, ok := r.cache[language]; ok && entry.expiresAt.After(now) {
		r.mu.RUnlock()
		return entry.lessons, nil
	}
	r.mu.RUnlock()

	result, err, _ := r.sf.Do(language, func() (interface{}, error) {
		now := r.clock()
		r.mu.RLock()
		if entry, ok := r.cache[language]; ok && entry.expiresAt.After(now) {
			r.mu.RUnlock()
			return entry.lessons, nil
		}
		r.mu.RUnlock()

		lessons, err := r.loader.LoadLessons(ctx, language)
		if err != nil {
			return nil, err
		}
		byID := IndexLessons(lessons)
		expiresAt := now.Add(r.ttlWithJitter())

		r.mu.Lock()
		r.cache[language] = cachedLessons{
			lessons:   byID,
			expiresAt: expiresAt,
		}
		r.mu.Unlock()
		return byID, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(map[string][]domain.Question), nil
}

// IndexLessons keys lesson questions by lesson ID.
func IndexLessons(lessons []domain.Lesson) map[string][]domain.Question {
	byID := make(map[string][]domain.Question, len(lessons))
	for _, l := range lessons {
		byID[l.ID] = l.Questions
	}
	return byID
}

func (r *ContentRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
