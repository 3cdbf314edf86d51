// Package sqlite is the single-user local persistence backend: a pure Go
// SQLite file driven through ent's SQL builder.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"entgo.io/ent/dialect/sql/schema"

	"assessment-service/internal/domain"

	// Pure Go SQLite driver (no CGO).
	_ "modernc.org/sqlite"
)

// Store implements app.Store on SQLite.
type Store struct {
	db  *sql.DB
	drv *entsql.Driver
}

// Open connects to the SQLite database at dsn, applies pragmas and creates
// the schema.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}

	drv := entsql.OpenDB(dialect.SQLite, db)
	migrate, err := schema.NewMigrate(drv)
	if err != nil {
		drv.Close()
		return nil, fmt.Errorf("migrator: %w", err)
	}
	if err := migrate.Create(ctx, tables...); err != nil {
		drv.Close()
		return nil, fmt.Errorf("auto-migrate: %w", err)
	}

	return &Store{db: db, drv: drv}, nil
}

// DB returns the underlying *sql.DB for raw queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Close() error {
	return s.drv.Close()
}

// applyPragmas configures SQLite for single-user performance.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

// DefaultDBPath resolves the database file path in priority order:
// 1. ASSESSMENT_DB environment variable
// 2. $XDG_DATA_HOME/assessment/assessment.db
// 3. ~/.local/share/assessment/assessment.db
func DefaultDBPath() (string, error) {
	if p := os.Getenv("ASSESSMENT_DB"); p != "" {
		return p, ensureDir(p)
	}

	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		dataHome = filepath.Join(home, ".local", "share")
	}

	p := filepath.Join(dataHome, "assessment", "assessment.db")
	return p, ensureDir(p)
}

func ensureDir(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0o755)
}

func builder() *entsql.DialectBuilder {
	return entsql.Dialect(dialect.SQLite)
}

func toMillis(t time.Time) int64 { return t.UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

type querier interface {
	Exec(ctx context.Context, query string, args, v any) error
	Query(ctx context.Context, query string, args, v any) error
}

func exec(ctx context.Context, q querier, b entsql.Querier) (sql.Result, error) {
	query, args := b.Query()
	var res sql.Result
	if err := q.Exec(ctx, query, args, &res); err != nil {
		return nil, err
	}
	return res, nil
}

func count(ctx context.Context, q querier, table string, preds ...*entsql.Predicate) (int, error) {
	sel := builder().Select(entsql.Count("*")).From(entsql.Table(table))
	if len(preds) > 0 {
		sel = sel.Where(entsql.And(preds...))
	}
	query, args := sel.Query()
	rows := &entsql.Rows{}
	if err := q.Query(ctx, query, args, rows); err != nil {
		return 0, err
	}
	defer rows.Close()
	var n int
	if rows.Next() {
		if err := rows.Scan(&n); err != nil {
			return 0, err
		}
	}
	return n, rows.Err()
}

var recordColumns = []string{"id", "user_id", "lesson_id", "score", "total_questions", "review", "submitted_at", "comment"}

func (s *Store) AppendAttemptRecord(ctx context.Context, rec domain.AttemptRecord) (domain.AttemptRecord, error) {
	review, err := json.Marshal(rec.PerQuestionReview)
	if err != nil {
		return domain.AttemptRecord{}, err
	}
	res, err := exec(ctx, s.drv, builder().
		Insert(attemptRecordsTable.Name).
		Columns(recordColumns[1:]...).
		Values(rec.UserID, rec.LessonID, rec.Score, rec.TotalQuestions, string(review), toMillis(rec.SubmittedAt), rec.Comment))
	if err != nil {
		return domain.AttemptRecord{}, fmt.Errorf("insert attempt record: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.AttemptRecord{}, err
	}
	rec.ID = id
	return rec, nil
}

func (s *Store) selectRecords(ctx context.Context, preds ...*entsql.Predicate) ([]domain.AttemptRecord, error) {
	sel := builder().Select(recordColumns...).From(entsql.Table(attemptRecordsTable.Name)).OrderBy("id")
	if len(preds) > 0 {
		sel = sel.Where(entsql.And(preds...))
	}
	query, args := sel.Query()
	rows := &entsql.Rows{}
	if err := s.drv.Query(ctx, query, args, rows); err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.AttemptRecord, 0)
	for rows.Next() {
		var (
			rec         domain.AttemptRecord
			review      string
			submittedAt int64
		)
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.LessonID, &rec.Score, &rec.TotalQuestions, &review, &submittedAt, &rec.Comment); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(review), &rec.PerQuestionReview); err != nil {
			return nil, fmt.Errorf("decode review of record %d: %w", rec.ID, err)
		}
		rec.SubmittedAt = fromMillis(submittedAt)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Store) ListAttemptRecords(ctx context.Context, filter domain.AttemptFilter) ([]domain.AttemptRecord, error) {
	var preds []*entsql.Predicate
	if filter.UserID != "" {
		preds = append(preds, entsql.EQ("user_id", filter.UserID))
	}
	if filter.LessonID != "" {
		preds = append(preds, entsql.EQ("lesson_id", filter.LessonID))
	}
	return s.selectRecords(ctx, preds...)
}

func (s *Store) AttachComment(ctx context.Context, id int64, comment string) (domain.AttemptRecord, error) {
	res, err := exec(ctx, s.drv, builder().
		Update(attemptRecordsTable.Name).
		Set("comment", comment).
		Where(entsql.EQ("id", id)))
	if err != nil {
		return domain.AttemptRecord{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.AttemptRecord{}, domain.ErrRecordNotFound
	}
	recs, err := s.selectRecords(ctx, entsql.EQ("id", id))
	if err != nil {
		return domain.AttemptRecord{}, err
	}
	if len(recs) == 0 {
		return domain.AttemptRecord{}, domain.ErrRecordNotFound
	}
	return recs[0], nil
}

func (s *Store) CountAttempts(ctx context.Context, userID, lessonID string) (int, error) {
	return count(ctx, s.drv, attemptRecordsTable.Name, entsql.EQ("user_id", userID), entsql.EQ("lesson_id", lessonID))
}

func (s *Store) GetOverride(ctx context.Context, userID, lessonID string) (int, bool, error) {
	query, args := builder().
		Select("allowed").
		From(entsql.Table(overridesTable.Name)).
		Where(entsql.And(entsql.EQ("user_id", userID), entsql.EQ("lesson_id", lessonID))).
		Query()
	rows := &entsql.Rows{}
	if err := s.drv.Query(ctx, query, args, rows); err != nil {
		return 0, false, err
	}
	defer rows.Close()
	if !rows.Next() {
		return 0, false, rows.Err()
	}
	var allowed int
	if err := rows.Scan(&allowed); err != nil {
		return 0, false, err
	}
	return allowed, true, nil
}

func (s *Store) SetOverride(ctx context.Context, override domain.AttemptOverride) error {
	_, err := exec(ctx, s.drv, builder().
		Insert(overridesTable.Name).
		Columns("user_id", "lesson_id", "allowed").
		Values(override.UserID, override.LessonID, override.Allowed).
		OnConflict(
			entsql.ConflictColumns("user_id", "lesson_id"),
			entsql.ResolveWithNewValues(),
		))
	return err
}

var requestColumns = []string{"id", "user_id", "lesson_id", "created_at", "status", "resolved_at"}

func (s *Store) CreateRequest(ctx context.Context, req domain.AttemptRequest) error {
	_, err := exec(ctx, s.drv, builder().
		Insert(requestsTable.Name).
		Columns(requestColumns...).
		Values(req.ID, req.UserID, req.LessonID, toMillis(req.CreatedAt), string(req.Status), resolvedMillis(req.ResolvedAt)))
	return err
}

func resolvedMillis(at *time.Time) any {
	if at == nil {
		return nil
	}
	return toMillis(*at)
}

func (s *Store) selectRequests(ctx context.Context, preds ...*entsql.Predicate) ([]domain.AttemptRequest, error) {
	sel := builder().Select(requestColumns...).From(entsql.Table(requestsTable.Name)).OrderBy("created_at", "id")
	if len(preds) > 0 {
		sel = sel.Where(entsql.And(preds...))
	}
	query, args := sel.Query()
	rows := &entsql.Rows{}
	if err := s.drv.Query(ctx, query, args, rows); err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.AttemptRequest, 0)
	for rows.Next() {
		var (
			req        domain.AttemptRequest
			status     string
			createdAt  int64
			resolvedAt sql.NullInt64
		)
		if err := rows.Scan(&req.ID, &req.UserID, &req.LessonID, &createdAt, &status, &resolvedAt); err != nil {
			return nil, err
		}
		req.CreatedAt = fromMillis(createdAt)
		req.Status = domain.RequestStatus(status)
		if resolvedAt.Valid {
			at := fromMillis(resolvedAt.Int64)
			req.ResolvedAt = &at
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

func (s *Store) GetRequest(ctx context.Context, id string) (domain.AttemptRequest, error) {
	reqs, err := s.selectRequests(ctx, entsql.EQ("id", id))
	if err != nil {
		return domain.AttemptRequest{}, err
	}
	if len(reqs) == 0 {
		return domain.AttemptRequest{}, domain.ErrRequestNotFound
	}
	return reqs[0], nil
}

func (s *Store) ListRequests(ctx context.Context, status domain.RequestStatus) ([]domain.AttemptRequest, error) {
	if status == "" {
		return s.selectRequests(ctx)
	}
	return s.selectRequests(ctx, entsql.EQ("status", string(status)))
}

func (s *Store) UpdateRequest(ctx context.Context, req domain.AttemptRequest) error {
	res, err := exec(ctx, s.drv, builder().
		Update(requestsTable.Name).
		Set("status", string(req.Status)).
		Set("resolved_at", resolvedMillis(req.ResolvedAt)).
		Where(entsql.EQ("id", req.ID)))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrRequestNotFound
	}
	return nil
}

func (s *Store) SaveEventConfig(ctx context.Context, cfg domain.EventConfig) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	_, err = exec(ctx, s.drv, builder().
		Insert(eventConfigsTable.Name).
		Columns("name", "config", "active").
		Values(cfg.Name, string(raw), false).
		OnConflict(
			entsql.ConflictColumns("name"),
			entsql.ResolveWith(func(u *entsql.UpdateSet) {
				u.SetExcluded("config")
			}),
		))
	return err
}

func (s *Store) selectConfigs(ctx context.Context, q querier, preds ...*entsql.Predicate) ([]domain.EventConfig, error) {
	sel := builder().Select("config").From(entsql.Table(eventConfigsTable.Name)).OrderBy("name")
	if len(preds) > 0 {
		sel = sel.Where(entsql.And(preds...))
	}
	query, args := sel.Query()
	rows := &entsql.Rows{}
	if err := q.Query(ctx, query, args, rows); err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.EventConfig, 0)
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var cfg domain.EventConfig
		if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
			return nil, err
		}
		out = append(out, cfg)
	}
	return out, rows.Err()
}

func (s *Store) GetEventConfig(ctx context.Context, name string) (domain.EventConfig, error) {
	cfgs, err := s.selectConfigs(ctx, s.drv, entsql.EQ("name", name))
	if err != nil {
		return domain.EventConfig{}, err
	}
	if len(cfgs) == 0 {
		return domain.EventConfig{}, domain.ErrConfigNotFound
	}
	return cfgs[0], nil
}

func (s *Store) ListEventConfigs(ctx context.Context) ([]domain.EventConfig, error) {
	return s.selectConfigs(ctx, s.drv)
}

// ActivateEventConfig clears the previous active flag and sets the new one
// in a single transaction.
func (s *Store) ActivateEventConfig(ctx context.Context, name string) (err error) {
	tx, err := s.drv.Tx(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	n, err := count(ctx, tx, eventConfigsTable.Name, entsql.EQ("name", name))
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrConfigNotFound
	}
	if _, err = exec(ctx, tx, builder().Update(eventConfigsTable.Name).Set("active", false).Where(entsql.EQ("active", true))); err != nil {
		return err
	}
	if _, err = exec(ctx, tx, builder().Update(eventConfigsTable.Name).Set("active", true).Where(entsql.EQ("name", name))); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) ActiveEventConfig(ctx context.Context) (domain.EventConfig, error) {
	cfgs, err := s.selectConfigs(ctx, s.drv, entsql.EQ("active", true))
	if err != nil {
		return domain.EventConfig{}, err
	}
	if len(cfgs) == 0 {
		return domain.EventConfig{}, domain.ErrConfigNotFound
	}
	return cfgs[0], nil
}
