package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"assessment-service/internal/domain"
)

// LessonLoader loads lesson question JSONB from Postgres.
type LessonLoader struct {
	pool *pgxpool.Pool
}

func NewLessonLoader(pool *pgxpool.Pool) *LessonLoader {
	return &LessonLoader{pool: pool}
}

func (l *LessonLoader) LoadLessons(ctx context.Context, language string) ([]domain.Lesson, error) {
	rows, err := l.pool.Query(ctx, `SELECT id, questions FROM lessons WHERE language=$1 ORDER BY id`, language)
	if err != nil {
		return nil, fmt.Errorf("load lessons: %w", err)
	}
	defer rows.Close()

	var lessons []domain.Lesson
	for rows.Next() {
		var (
			id  string
			raw []byte
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("scan lesson: %w", err)
		}
		lesson := domain.Lesson{ID: id, Language: language}
		if err := json.Unmarshal(raw, &lesson.Questions); err != nil {
			return nil, fmt.Errorf("unmarshal lesson %s: %w", id, err)
		}
		lessons = append(lessons, lesson)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load lessons: %w", err)
	}
	if len(lessons) == 0 {
		return nil, fmt.Errorf("%w: no content for language %q", domain.ErrLessonNotFound, language)
	}
	return lessons, nil
}
