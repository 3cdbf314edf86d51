package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"assessment-service/internal/domain"
	"assessment-service/internal/infra/memory"
)

func TestContentRepositoryCachesInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := newClient(mr)

	loader := &countingLoader{
		LessonLoader: memory.NewStaticLessonLoader(sampleLessons()),
	}
	repo := NewContentRepository(client, loader, time.Minute)

	lessons, err := repo.Lessons(context.Background(), "en")
	if err != nil {
		t.Fatalf("lessons: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader called once, got %d", loader.calls)
	}
	if !mr.Exists("content:en") {
		t.Fatalf("expected redis hash to be set")
	}

	// Second call should hit cache, loader not incremented.
	cached, err := repo.Lessons(context.Background(), "en")
	if err != nil {
		t.Fatalf("lessons 2: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", loader.calls)
	}
	if cached["lesson-1"][0].Options[1] != lessons["lesson-1"][0].Options[1] {
		t.Fatalf("cached content differs: %+v", cached["lesson-1"])
	}

	if err := repo.Invalidate(context.Background(), "en"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if _, err := repo.Lessons(context.Background(), "en"); err != nil {
		t.Fatalf("lessons 3: %v", err)
	}
	if loader.calls != 2 {
		t.Fatalf("expected reload after invalidate, loader calls=%d", loader.calls)
	}
}

type countingLoader struct {
	memory.LessonLoader
	calls int
}

func (l *countingLoader) LoadLessons(ctx context.Context, language string) ([]domain.Lesson, error) {
	l.calls++
	return l.LessonLoader.LoadLessons(ctx, language)
}

func sampleLessons() []domain.Lesson {
	return []domain.Lesson{
		{
			ID:       "lesson-1",
			Language: "en",
			Questions: []domain.Question{
				{
					ID:                 "q1",
					Prompt:             "What is 2 + 2?",
					Options:            []string{"3", "4"},
					CorrectOptionIndex: 1,
				},
			},
		},
	}
}
