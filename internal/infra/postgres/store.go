package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"assessment-service/internal/domain"
)

// Store is the bun-backed Postgres implementation of app.Store.
type Store struct {
	db *bun.DB
}

func NewStore(db *bun.DB) *Store {
	return &Store{db: db}
}

func (s *Store) AppendAttemptRecord(ctx context.Context, rec domain.AttemptRecord) (domain.AttemptRecord, error) {
	row := attemptRecordRow{
		UserID:         rec.UserID,
		LessonID:       rec.LessonID,
		Score:          rec.Score,
		TotalQuestions: rec.TotalQuestions,
		Review:         rec.PerQuestionReview,
		SubmittedAt:    rec.SubmittedAt,
		Comment:        rec.Comment,
	}
	if _, err := s.db.NewInsert().Model(&row).Returning("id").Exec(ctx); err != nil {
		return domain.AttemptRecord{}, fmt.Errorf("insert attempt record: %w", err)
	}
	rec.ID = row.ID
	return rec, nil
}

func (s *Store) ListAttemptRecords(ctx context.Context, filter domain.AttemptFilter) ([]domain.AttemptRecord, error) {
	var rows []attemptRecordRow
	q := s.db.NewSelect().Model(&rows).Order("id ASC")
	if filter.UserID != "" {
		q = q.Where("user_id = ?", filter.UserID)
	}
	if filter.LessonID != "" {
		q = q.Where("lesson_id = ?", filter.LessonID)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("list attempt records: %w", err)
	}
	out := make([]domain.AttemptRecord, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out, nil
}

func (s *Store) AttachComment(ctx context.Context, id int64, comment string) (domain.AttemptRecord, error) {
	row := attemptRecordRow{ID: id}
	res, err := s.db.NewUpdate().
		Model(&row).
		Set("comment = ?", comment).
		WherePK().
		Returning("*").
		Exec(ctx)
	if err != nil {
		return domain.AttemptRecord{}, fmt.Errorf("attach comment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.AttemptRecord{}, domain.ErrRecordNotFound
	}
	return row.toDomain(), nil
}

func (s *Store) CountAttempts(ctx context.Context, userID, lessonID string) (int, error) {
	return s.db.NewSelect().
		Model((*attemptRecordRow)(nil)).
		Where("user_id = ?", userID).
		Where("lesson_id = ?", lessonID).
		Count(ctx)
}

func (s *Store) GetOverride(ctx context.Context, userID, lessonID string) (int, bool, error) {
	var row overrideRow
	err := s.db.NewSelect().
		Model(&row).
		Where("user_id = ?", userID).
		Where("lesson_id = ?", lessonID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return row.Allowed, true, nil
}

func (s *Store) SetOverride(ctx context.Context, override domain.AttemptOverride) error {
	row := overrideRow{UserID: override.UserID, LessonID: override.LessonID, Allowed: override.Allowed}
	_, err := s.db.NewInsert().
		Model(&row).
		On("CONFLICT (user_id, lesson_id) DO UPDATE").
		Set("allowed = EXCLUDED.allowed").
		Exec(ctx)
	return err
}

func (s *Store) CreateRequest(ctx context.Context, req domain.AttemptRequest) error {
	row := requestRowFrom(req)
	_, err := s.db.NewInsert().Model(&row).Exec(ctx)
	return err
}

func (s *Store) GetRequest(ctx context.Context, id string) (domain.AttemptRequest, error) {
	row := requestRow{ID: id}
	err := s.db.NewSelect().Model(&row).WherePK().Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.AttemptRequest{}, domain.ErrRequestNotFound
	}
	if err != nil {
		return domain.AttemptRequest{}, err
	}
	return row.toDomain(), nil
}

func (s *Store) ListRequests(ctx context.Context, status domain.RequestStatus) ([]domain.AttemptRequest, error) {
	var rows []requestRow
	q := s.db.NewSelect().Model(&rows).Order("created_at ASC", "id ASC")
	if status != "" {
		q = q.Where("status = ?", string(status))
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]domain.AttemptRequest, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out, nil
}

func (s *Store) UpdateRequest(ctx context.Context, req domain.AttemptRequest) error {
	row := requestRowFrom(req)
	res, err := s.db.NewUpdate().
		Model(&row).
		Column("status", "resolved_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrRequestNotFound
	}
	return nil
}

func (s *Store) SaveEventConfig(ctx context.Context, cfg domain.EventConfig) error {
	row := eventConfigRow{Name: cfg.Name, Config: cfg}
	_, err := s.db.NewInsert().
		Model(&row).
		On("CONFLICT (name) DO UPDATE").
		Set("config = EXCLUDED.config").
		Exec(ctx)
	return err
}

func (s *Store) GetEventConfig(ctx context.Context, name string) (domain.EventConfig, error) {
	row := eventConfigRow{Name: name}
	err := s.db.NewSelect().Model(&row).WherePK().Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.EventConfig{}, domain.ErrConfigNotFound
	}
	if err != nil {
		return domain.EventConfig{}, err
	}
	return row.Config, nil
}

func (s *Store) ListEventConfigs(ctx context.Context) ([]domain.EventConfig, error) {
	var rows []eventConfigRow
	if err := s.db.NewSelect().Model(&rows).Order("name ASC").Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]domain.EventConfig, len(rows))
	for i, r := range rows {
		out[i] = r.Config
	}
	return out, nil
}

// ActivateEventConfig flips the active flag in one transaction so exactly
// one config is active afterwards.
func (s *Store) ActivateEventConfig(ctx context.Context, name string) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		n, err := tx.NewSelect().Model((*eventConfigRow)(nil)).Where("name = ?", name).Count(ctx)
		if err != nil {
			return err
		}
		if n == 0 {
			return domain.ErrConfigNotFound
		}
		_, err = tx.NewUpdate().
			Model((*eventConfigRow)(nil)).
			Set("active = (name = ?)", name).
			Where("TRUE").
			Exec(ctx)
		return err
	})
}

func (s *Store) ActiveEventConfig(ctx context.Context) (domain.EventConfig, error) {
	var row eventConfigRow
	err := s.db.NewSelect().Model(&row).Where("active").Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.EventConfig{}, domain.ErrConfigNotFound
	}
	if err != nil {
		return domain.EventConfig{}, err
	}
	return row.Config, nil
}

// UpsertLessons imports authored content so the pgx loader can serve it.
func (s *Store) UpsertLessons(ctx context.Context, lessons []domain.Lesson) error {
	if len(lessons) == 0 {
		return nil
	}
	rows := make([]lessonRow, len(lessons))
	for i, l := range lessons {
		rows[i] = lessonRow{ID: l.ID, Language: l.Language, Questions: l.Questions}
	}
	_, err := s.db.NewInsert().
		Model(&rows).
		On("CONFLICT (id, language) DO UPDATE").
		Set("questions = EXCLUDED.questions").
		Exec(ctx)
	return err
}
