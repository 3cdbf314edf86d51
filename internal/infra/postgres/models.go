package postgres

import (
	"time"

	"github.com/uptrace/bun"

	"assessment-service/internal/domain"
)

type lessonRow struct {
	bun.BaseModel `bun:"table:lessons,alias:l"`

	ID        string            `bun:"id,pk"`
	Language  string            `bun:"language,pk"`
	Questions []domain.Question `bun:"questions,type:jsonb"`
}

type attemptRecordRow struct {
	bun.BaseModel `bun:"table:attempt_records,alias:ar"`

	ID             int64                   `bun:"id,pk,autoincrement"`
	UserID         string                  `bun:"user_id,notnull"`
	LessonID       string                  `bun:"lesson_id,notnull"`
	Score          int                     `bun:"score,notnull"`
	TotalQuestions int                     `bun:"total_questions,notnull"`
	Review         []domain.QuestionReview `bun:"review,type:jsonb"`
	SubmittedAt    time.Time               `bun:"submitted_at,notnull"`
	Comment        string                  `bun:"comment,notnull"`
}

func (r attemptRecordRow) toDomain() domain.AttemptRecord {
	return domain.AttemptRecord{
		ID:                r.ID,
		UserID:            r.UserID,
		LessonID:          r.LessonID,
		Score:             r.Score,
		TotalQuestions:    r.TotalQuestions,
		PerQuestionReview: r.Review,
		SubmittedAt:       r.SubmittedAt.UTC(),
		Comment:           r.Comment,
	}
}

type overrideRow struct {
	bun.BaseModel `bun:"table:attempt_overrides,alias:ao"`

	UserID   string `bun:"user_id,pk"`
	LessonID string `bun:"lesson_id,pk"`
	Allowed  int    `bun:"allowed,notnull"`
}

type requestRow struct {
	bun.BaseModel `bun:"table:attempt_requests,alias:rq"`

	ID         string     `bun:"id,pk"`
	UserID     string     `bun:"user_id,notnull"`
	LessonID   string     `bun:"lesson_id,notnull"`
	CreatedAt  time.Time  `bun:"created_at,notnull"`
	Status     string     `bun:"status,notnull"`
	ResolvedAt *time.Time `bun:"resolved_at"`
}

func requestRowFrom(req domain.AttemptRequest) requestRow {
	return requestRow{
		ID:         req.ID,
		UserID:     req.UserID,
		LessonID:   req.LessonID,
		CreatedAt:  req.CreatedAt,
		Status:     string(req.Status),
		ResolvedAt: req.ResolvedAt,
	}
}

func (r requestRow) toDomain() domain.AttemptRequest {
	req := domain.AttemptRequest{
		ID:        r.ID,
		UserID:    r.UserID,
		LessonID:  r.LessonID,
		CreatedAt: r.CreatedAt.UTC(),
		Status:    domain.RequestStatus(r.Status),
	}
	if r.ResolvedAt != nil {
		at := r.ResolvedAt.UTC()
		req.ResolvedAt = &at
	}
	return req
}

type eventConfigRow struct {
	bun.BaseModel `bun:"table:event_configs,alias:ec"`

	Name   string             `bun:"name,pk"`
	Config domain.EventConfig `bun:"config,type:jsonb"`
	Active bool               `bun:"active,notnull"`
}
