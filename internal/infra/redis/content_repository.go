package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"assessment-service/internal/domain"
)

// LessonLoader fetches lesson content for a language from a backing store.
type LessonLoader interface {
	LoadLessons(ctx context.Context, language string) ([]domain.Lesson, error)
}

// ContentRepository caches lesson content in Redis (hash per language) and
// falls back to a loader on cache miss. Questions are stored as:
// HSET content:{language} {lessonID} {json questions}
type ContentRepository struct {
	client *redis.Client
	loader LessonLoader
	ttl    time.Duration
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewContentRepository(client *redis.Client, loader LessonLoader, ttl time.Duration) *ContentRepository {
	return &ContentRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Lessons returns every lesson's questions for the language, keyed by lesson ID.
func (r *ContentRepository) Lessons(ctx context.Context, language string) (map[string][]domain.Question, error) {
	key := r.contentKey(language)

	if cached, ok := r.fromCache(ctx, key); ok {
		return cached, nil
	}

	result, err, _ := r.sf.Do(language, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if cached, ok := r.fromCache(ctx, key); ok {
			return cached, nil
		}

		lessons, err := r.loader.LoadLessons(ctx, language)
		if err != nil {
			return nil, err
		}

		byID := make(map[string][]domain.Question, len(lessons))
		pipe := r.client.Pipeline()
		for _, l := range lessons {
			byID[l.ID] = l.Questions
			payload, err := json.Marshal(l.Questions)
			if err != nil {
				return nil, err
			}
			pipe.HSet(ctx, key, l.ID, payload)
		}
		if ttl := r.ttlWithJitter(); ttl > 0 {
			pipe.Expire(ctx, key, ttl)
		}
		// A failed cache fill only costs a reload next time.
		_, _ = pipe.Exec(ctx)

		return byID, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(map[string][]domain.Question), nil
}

func (r *ContentRepository) fromCache(ctx context.Context, key string) (map[string][]domain.Question, bool) {
	entries, err := r.client.HGetAll(ctx, key).Result()
	if err != nil || len(entries) == 0 {
		return nil, false
	}
	byID := make(map[string][]domain.Question, len(entries))
	for lessonID, raw := range entries {
		var questions []domain.Question
		if err := json.Unmarshal([]byte(raw), &questions); err != nil {
			return nil, false
		}
		byID[lessonID] = questions
	}
	return byID, true
}

// Invalidate drops the cached content of a language, e.g. after an import.
func (r *ContentRepository) Invalidate(ctx context.Context, language string) error {
	return r.client.Del(ctx, r.contentKey(language)).Err()
}

func (r *ContentRepository) contentKey(language string) string {
	return "content:" + language
}

func (r *ContentRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
