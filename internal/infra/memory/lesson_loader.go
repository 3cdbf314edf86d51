package memory

import (
	"context"
	"fmt"
	"os"

	"assessment-service/internal/domain"
	"gopkg.in/yaml.v3"
)

// StaticLessonLoader is a loader backed by an in-memory slice (useful for tests/demos).
type StaticLessonLoader struct {
	byLanguage map[string][]domain.Lesson
}

func NewStaticLessonLoader(lessons []domain.Lesson) *StaticLessonLoader {
	byLanguage := make(map[string][]domain.Lesson)
	for _, l := range lessons {
		byLanguage[l.Language] = append(byLanguage[l.Language], l)
	}
	return &StaticLessonLoader{byLanguage: byLanguage}
}

func (l *StaticLessonLoader) LoadLessons(_ context.Context, language string) ([]domain.Lesson, error) {
	lessons, ok := l.byLanguage[language]
	if !ok {
		return nil, fmt.Errorf("%w: no content for language %q", domain.ErrLessonNotFound, language)
	}
	return lessons, nil
}

// contentFile is the YAML layout of an authored content file.
type contentFile struct {
	Lessons []domain.Lesson `yaml:"lessons"`
}

// LoadLessonsFile reads authored lessons from a YAML file and validates them.
func LoadLessonsFile(path string) ([]domain.Lesson, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var file contentFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	for _, l := range file.Lessons {
		if err := validateLesson(l); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	return file.Lessons, nil
}

func validateLesson(l domain.Lesson) error {
	if l.ID == "" {
		return fmt.Errorf("lesson without id")
	}
	for i, q := range l.Questions {
		if len(q.Options) < 2 {
			return fmt.Errorf("lesson %s question %d: need at least 2 options", l.ID, i)
		}
		if q.CorrectOptionIndex < 0 || q.CorrectOptionIndex >= len(q.Options) {
			return fmt.Errorf("lesson %s question %d: correct option %d out of range", l.ID, i, q.CorrectOptionIndex)
		}
	}
	return nil
}
