package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"assessment-service/internal/domain"
)

func TestContentRepositoryCaches(t *testing.T) {
	loader := &countingLoader{
		LessonLoader: NewStaticLessonLoader(sampleLessons()),
	}
	repo := NewContentRepository(loader, time.Minute)

	lessons, err := repo.Lessons(context.Background(), "en")
	if err != nil {
		t.Fatalf("lessons: %v", err)
	}
	if len(lessons["lesson-1"]) != 1 {
		t.Fatalf("expected lesson-1 with one question, got %+v", lessons)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader once, got %d", loader.calls)
	}

	if _, err := repo.Lessons(context.Background(), "en"); err != nil {
		t.Fatalf("lessons 2: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls %d", loader.calls)
	}
}

func TestContentRepositoryUnknownLanguage(t *testing.T) {
	repo := NewContentRepository(NewStaticLessonLoader(sampleLessons()), time.Minute)

	_, err := repo.Lessons(context.Background(), "fr")
	if !errors.Is(err, domain.ErrLessonNotFound) {
		t.Fatalf("expected lesson not found, got %v", err)
	}
}

func TestLoadLessonsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "content.yaml")
	content := `lessons:
  - id: lesson-1
    language: en
    questions:
      - id: q1
        prompt: "What is 2 + 2?"
        options: ["3", "4", "5"]
        correctOptionIndex: 1
        hint: "Count on your fingers."
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	lessons, err := LoadLessonsFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(lessons) != 1 || lessons[0].Questions[0].CorrectOptionIndex != 1 {
		t.Fatalf("unexpected lessons %+v", lessons)
	}
	if lessons[0].Questions[0].Hint != "Count on your fingers." {
		t.Fatalf("hint not parsed: %+v", lessons[0].Questions[0])
	}
}

func TestLoadLessonsFileRejectsBadCorrectIndex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "content.yaml")
	content := `lessons:
  - id: lesson-1
    language: en
    questions:
      - prompt: "?"
        options: ["a", "b"]
        correctOptionIndex: 2
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadLessonsFile(path); err == nil {
		t.Fatalf("expected validation error")
	}
}

type countingLoader struct {
	LessonLoader
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
					Options:            []string{"3", "4", "5"},
					CorrectOptionIndex: 1,
				},
			},
		},
	}
}
