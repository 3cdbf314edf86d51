package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strconv"
	"time"

	"github.com/google/uuid"

	"assessment-service/internal/assist"
	"assessment-service/internal/attempts"
	"assessment-service/internal/domain"
	"assessment-service/internal/metrics"
	"assessment-service/internal/policy"
	"assessment-service/internal/pool"
	"assessment-service/internal/scoring"
)

// SessionRepository abstracts where open sessions live (in-memory, Redis-locked, etc).
type SessionRepository interface {
	// Open registers a session; ErrSessionAlreadyOpen if the user already has the lesson open.
	Open(ctx context.Context, s *Session) error
	Get(id string) (*Session, bool)
	Remove(ctx context.Context, id string) (*Session, bool)
}

// ContentRepository loads lesson content for a language (from cache/backing store).
type ContentRepository interface {
	Lessons(ctx context.Context, language string) (map[string][]domain.Question, error)
}

// RecordStore persists attempt records.
type RecordStore interface {
	AppendAttemptRecord(ctx context.Context, rec domain.AttemptRecord) (domain.AttemptRecord, error)
	ListAttemptRecords(ctx context.Context, filter domain.AttemptFilter) ([]domain.AttemptRecord, error)
	AttachComment(ctx context.Context, id int64, comment string) (domain.AttemptRecord, error)
}

// ConfigStore holds named event configs and which one is active.
type ConfigStore interface {
	SaveEventConfig(ctx context.Context, cfg domain.EventConfig) error
	GetEventConfig(ctx context.Context, name string) (domain.EventConfig, error)
	ListEventConfigs(ctx context.Context) ([]domain.EventConfig, error)
	ActivateEventConfig(ctx context.Context, name string) error
	ActiveEventConfig(ctx context.Context) (domain.EventConfig, error)
}

// Store is the full persistence collaborator.
type Store interface {
	attempts.Store
	RecordStore
	ConfigStore
}

// DefaultEventConfig applies when no event config has been activated.
var DefaultEventConfig = domain.EventConfig{
	Name:              "default",
	HintsAllowed:      true,
	MaxHints:          3,
	FiftyFiftyAllowed: true,
	MaxFiftyFifty:     1,
}

// AssessmentService contains the assessment use cases.
type AssessmentService struct {
	store     Store
	content   ContentRepository
	sessions  SessionRepository
	governor  *attempts.Governor
	assembler *pool.Assembler
	publisher Publisher
	log       *slog.Logger
	now       func() time.Time
	newRand   func() *rand.Rand
	fallback  domain.EventConfig

	govOpts []attempts.Option
}

// Option customizes an AssessmentService.
type Option func(*AssessmentService)

func WithPublisher(p Publisher) Option {
	return func(s *AssessmentService) {
		if p != nil {
			s.publisher = p
		}
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(s *AssessmentService) {
		if log != nil {
			s.log = log
		}
	}
}

// WithClock is for deterministic timestamps in tests.
func WithClock(now func() time.Time) Option {
	return func(s *AssessmentService) {
		s.now = now
		s.govOpts = append(s.govOpts, attempts.WithClock(now))
	}
}

// WithRandSource seeds pool assembly and per-session assist randomness.
func WithRandSource(seed int64) Option {
	return func(s *AssessmentService) {
		s.assembler = pool.NewAssemblerWithSource(rand.NewSource(seed))
		src := rand.New(rand.NewSource(seed))
		s.newRand = func() *rand.Rand { return rand.New(rand.NewSource(src.Int63())) }
	}
}

func WithDefaultAllowedAttempts(n int) Option {
	return func(s *AssessmentService) {
		s.govOpts = append(s.govOpts, attempts.WithDefaultAllowed(n))
	}
}

// WithFallbackConfig replaces DefaultEventConfig.
func WithFallbackConfig(cfg domain.EventConfig) Option {
	return func(s *AssessmentService) { s.fallback = cfg }
}

func NewAssessmentService(store Store, content ContentRepository, sessions SessionRepository, opts ...Option) *AssessmentService {
	s := &AssessmentService{
		store:     store,
		content:   content,
		sessions:  sessions,
		assembler: pool.NewAssembler(),
		publisher: NopPublisher{},
		log:       slog.Default(),
		now:       time.Now,
		newRand:   func() *rand.Rand { return rand.New(rand.NewSource(time.Now().UnixNano())) },
		fallback:  DefaultEventConfig,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.governor = attempts.NewGovernor(store, append(s.govOpts, attempts.WithLogger(s.log))...)
	return s
}

// Governor exposes the attempt governor for admin surfaces.
func (s *AssessmentService) Governor() *attempts.Governor { return s.governor }

// Gate reports whether the user may start the lesson's assessment.
func (s *AssessmentService) Gate(ctx context.Context, userID, lessonID string) (attempts.Gate, error) {
	return s.governor.Check(ctx, userID, lessonID)
}

// StartRequest identifies the learner and lesson for a new session.
type StartRequest struct {
	UserID   string
	LessonID string
	Language string
}

// StartSession gates on the attempt ceiling, resolves the active policy and
// assembles the question pool. The returned session is registered and must
// be closed with CloseSession.
func (s *AssessmentService) StartSession(ctx context.Context, req StartRequest) (*Session, error) {
	gate, err := s.governor.Check(ctx, req.UserID, req.LessonID)
	if err != nil {
		metrics.SessionStarts.WithLabelValues("failed").Inc()
		return nil, err
	}
	if !gate.CanStart {
		metrics.SessionStarts.WithLabelValues("limited").Inc()
		return nil, gate.Err()
	}

	cfg, err := s.activeConfig(ctx)
	if err != nil {
		metrics.SessionStarts.WithLabelValues("failed").Inc()
		return nil, err
	}
	p := policy.Resolve(cfg, req.LessonID)

	lessons, err := s.content.Lessons(ctx, req.Language)
	if err != nil {
		metrics.SessionStarts.WithLabelValues("failed").Inc()
		return nil, err
	}
	own, ok := lessons[req.LessonID]
	if !ok {
		metrics.SessionStarts.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("%w: %s (%s)", domain.ErrLessonNotFound, req.LessonID, req.Language)
	}

	desired := 0
	if p.QuestionCountOverridden {
		desired = p.DesiredQuestionCount
	}
	questions := s.assembler.Assemble(own, desired, pool.OtherLessons(lessons, req.LessonID))

	session := newSessionWithClock(uuid.NewString(), req.UserID, req.LessonID, p, questions, s.newRand(), s.now)
	if err := s.sessions.Open(ctx, session); err != nil {
		metrics.SessionStarts.WithLabelValues("failed").Inc()
		return nil, err
	}
	metrics.SessionStarts.WithLabelValues("started").Inc()
	metrics.ActiveSessions.Inc()
	s.log.Info("assessment session started",
		"session", session.ID(), "user", req.UserID, "lesson", req.LessonID,
		"config", cfg.Name, "questions", len(questions), "own", len(own))
	return session, nil
}

func (s *AssessmentService) activeConfig(ctx context.Context) (domain.EventConfig, error) {
	cfg, err := s.store.ActiveEventConfig(ctx)
	if errors.Is(err, domain.ErrConfigNotFound) {
		return s.fallback, nil
	}
	if err != nil {
		return domain.EventConfig{}, fmt.Errorf("active event config: %w", err)
	}
	return cfg, nil
}

// Session returns an open session.
func (s *AssessmentService) Session(id string) (*Session, error) {
	session, ok := s.sessions.Get(id)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

// Subscribe returns a channel of the session's events. The caller must
// invoke the returned cancel function to avoid leaks.
func (s *AssessmentService) Subscribe(id string) (<-chan SessionEvent, func(), error) {
	session, err := s.Session(id)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := session.subscribe()
	return ch, cancel, nil
}

func (s *AssessmentService) Navigate(id string, index int) error {
	session, err := s.Session(id)
	if err != nil {
		return err
	}
	return session.navigate(index)
}

// Answer records the selected option and reports whether it is correct.
func (s *AssessmentService) Answer(id string, index, option int) (bool, error) {
	session, err := s.Session(id)
	if err != nil {
		return false, err
	}
	return session.answer(index, option)
}

func (s *AssessmentService) ToggleHint(id string, index int) (assist.Hint, error) {
	session, err := s.Session(id)
	if err != nil {
		return assist.Hint{}, err
	}
	hint, err := session.toggleHint(index)
	if err != nil {
		return assist.Hint{}, err
	}
	if hint.Consumed {
		metrics.AssistsUsed.WithLabelValues("hint").Inc()
		s.log.Debug("hint consumed", "session", id, "question", index)
	}
	return hint, nil
}

// UseFiftyFifty eliminates incorrect options on a question and returns them.
func (s *AssessmentService) UseFiftyFifty(id string, index int) ([]int, error) {
	session, err := s.Session(id)
	if err != nil {
		return nil, err
	}
	removed, err := session.fiftyFifty(index)
	if err != nil {
		return nil, err
	}
	metrics.AssistsUsed.WithLabelValues("fifty_fifty").Inc()
	s.log.Debug("fifty-fifty consumed", "session", id, "question", index, "eliminated", removed)
	return removed, nil
}

// Submit scores the session and persists one attempt record. A persistence
// failure leaves the session unsubmitted and wraps domain.ErrPersistence.
func (s *AssessmentService) Submit(ctx context.Context, id string) (scoring.Result, domain.AttemptRecord, error) {
	session, err := s.Session(id)
	if err != nil {
		return scoring.Result{}, domain.AttemptRecord{}, err
	}
	result, rec, err := session.submit(ctx, s.store.AppendAttemptRecord)
	if err != nil {
		if errors.Is(err, domain.ErrPersistence) {
			metrics.PersistenceFailures.WithLabelValues("append_record").Inc()
			s.log.Error("attempt record not persisted", "session", id, "err", err)
		}
		return scoring.Result{}, domain.AttemptRecord{}, err
	}

	metrics.Submissions.WithLabelValues(strconv.FormatBool(result.Passed)).Inc()
	if result.Total > 0 {
		metrics.ScoreRatio.Observe(float64(result.Score) / float64(result.Total))
	}
	s.log.Info("assessment submitted",
		"session", id, "record", rec.ID, "user", rec.UserID, "lesson", rec.LessonID,
		"score", result.Score, "total", result.Total, "passed", result.Passed, "tier", result.Tier)
	s.publish(ctx, EventAttemptSubmitted, rec)
	return result, rec, nil
}

// CloseSession discards the session. Unsubmitted work is dropped without
// persistence, so abandoned sessions never count as attempts.
func (s *AssessmentService) CloseSession(ctx context.Context, id string) error {
	session, ok := s.sessions.Remove(ctx, id)
	if !ok {
		return domain.ErrSessionNotFound
	}
	session.close()
	metrics.ActiveSessions.Dec()
	s.log.Info("assessment session closed", "session", id, "submitted", session.View().Submitted)
	return nil
}

// RequestAttempts files a request for more attempts on a lesson.
func (s *AssessmentService) RequestAttempts(ctx context.Context, userID, lessonID string) (domain.AttemptRequest, error) {
	req, err := s.governor.SubmitRequest(ctx, userID, lessonID)
	if err != nil {
		metrics.PersistenceFailures.WithLabelValues("create_request").Inc()
		return domain.AttemptRequest{}, err
	}
	metrics.AttemptRequests.WithLabelValues("created").Inc()
	s.publish(ctx, EventRequestCreated, req)
	return req, nil
}

// ResolveRequest approves or rejects a request, optionally granting a new allowance.
func (s *AssessmentService) ResolveRequest(ctx context.Context, id string, decision domain.RequestStatus, newAllowed *int) (domain.AttemptRequest, error) {
	req, err := s.governor.ResolveRequest(ctx, id, decision, newAllowed)
	if err != nil {
		if errors.Is(err, domain.ErrPersistence) {
			metrics.PersistenceFailures.WithLabelValues("resolve_request").Inc()
		}
		return domain.AttemptRequest{}, err
	}
	metrics.AttemptRequests.WithLabelValues(string(decision)).Inc()
	s.publish(ctx, EventRequestResolved, req)
	return req, nil
}

// AttachComment adds a late comment to one of the user's persisted attempt
// records. Records owned by someone else report ErrRecordNotFound.
func (s *AssessmentService) AttachComment(ctx context.Context, userID string, recordID int64, comment string) (domain.AttemptRecord, error) {
	recs, err := s.store.ListAttemptRecords(ctx, domain.AttemptFilter{UserID: userID})
	if err != nil {
		return domain.AttemptRecord{}, fmt.Errorf("%w: list attempt records: %v", domain.ErrPersistence, err)
	}
	for _, rec := range recs {
		if rec.ID == recordID {
			return s.store.AttachComment(ctx, recordID, comment)
		}
	}
	return domain.AttemptRecord{}, domain.ErrRecordNotFound
}

func (s *AssessmentService) ListAttempts(ctx context.Context, filter domain.AttemptFilter) ([]domain.AttemptRecord, error) {
	return s.store.ListAttemptRecords(ctx, filter)
}

func (s *AssessmentService) publish(ctx context.Context, event string, payload any) {
	if err := s.publisher.Publish(ctx, event, payload); err != nil {
		s.log.Warn("event publish failed", "event", event, "err", err)
	}
}
