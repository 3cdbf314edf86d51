package app

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"assessment-service/internal/assist"
	"assessment-service/internal/domain"
	"assessment-service/internal/policy"
	"assessment-service/internal/scoring"
)

// EventType names a session lifecycle event.
type EventType string

const (
	EventStarted    EventType = "started"
	EventNavigated  EventType = "navigated"
	EventAnswered   EventType = "answered"
	EventHint       EventType = "hint"
	EventFiftyFifty EventType = "fiftyFifty"
	EventSubmitted  EventType = "submitted"
	EventClosed     EventType = "closed"
)

// SessionEvent is published to session subscribers, e.g. the avatar driver.
type SessionEvent struct {
	Type          EventType `json:"type"`
	SessionID     string    `json:"sessionId"`
	QuestionIndex int       `json:"questionIndex"`
	Option        int       `json:"option"`
	Correct       bool      `json:"correct"`
	Score         int       `json:"score"`
	Total         int       `json:"total"`
	At            time.Time `json:"at"`
}

// Session is the in-memory state of one assessment attempt. It is created
// when a user opens a lesson assessment and discarded when the view closes.
type Session struct {
	id        string
	userID    string
	lessonID  string
	createdAt time.Time
	now       func() time.Time

	mu          sync.RWMutex
	policy      policy.Policy
	questions   []domain.Question
	answers     []int
	current     int
	budget      *assist.Budget
	submitted   bool
	closed      bool
	result      *scoring.Result
	record      *domain.AttemptRecord
	subscribers map[chan SessionEvent]struct{}
}

// NewSession is exported for infrastructure layers and tests that need to
// seed sessions directly.
func NewSession(id, userID, lessonID string, p policy.Policy, questions []domain.Question, rnd *rand.Rand) *Session {
	return newSessionWithClock(id, userID, lessonID, p, questions, rnd, time.Now)
}

func newSessionWithClock(id, userID, lessonID string, p policy.Policy, questions []domain.Question, rnd *rand.Rand, now func() time.Time) *Session {
	answers := make([]int, len(questions))
	for i := range answers {
		answers[i] = domain.NoAnswer
	}
	return &Session{
		id:          id,
		userID:      userID,
		lessonID:    lessonID,
		createdAt:   now(),
		now:         now,
		policy:      p,
		questions:   questions,
		answers:     answers,
		budget:      assist.New(p, rnd),
		subscribers: make(map[chan SessionEvent]struct{}),
	}
}

func (s *Session) ID() string       { return s.id }
func (s *Session) UserID() string   { return s.userID }
func (s *Session) LessonID() string { return s.lessonID }

// QuestionView is a question as shown to the learner: the correct option and
// explanation are only revealed after submission.
type QuestionView struct {
	Prompt             string   `json:"prompt"`
	Options            []string `json:"options"`
	Eliminated         []int    `json:"eliminated"`
	HintVisible        bool     `json:"hintVisible"`
	Answer             int      `json:"answer"`
	CorrectOptionIndex *int     `json:"correctOptionIndex,omitempty"`
	Explanation        string   `json:"explanation,omitempty"`
}

// SessionView is a read-only snapshot of a session for the presentation layer.
type SessionView struct {
	ID               string          `json:"id"`
	UserID           string          `json:"userId"`
	LessonID         string          `json:"lessonId"`
	Current          int             `json:"current"`
	Questions        []QuestionView  `json:"questions"`
	AllAnswered      bool            `json:"allAnswered"`
	CanUseHint       bool            `json:"canUseHint"`
	CanUseFiftyFifty bool            `json:"canUseFiftyFifty"`
	Usage            assist.Usage    `json:"usage"`
	Submitted        bool            `json:"submitted"`
	Result           *scoring.Result `json:"result,omitempty"`
	RecordID         int64           `json:"recordId,omitempty"`
}

// View snapshots the session.
func (s *Session) View() SessionView {
	s.mu.RLock()
	defer s.mu.RUnlock()

	qs := make([]QuestionView, len(s.questions))
	for i, q := range s.questions {
		qs[i] = QuestionView{
			Prompt:      q.Prompt,
			Options:     q.Options,
			Eliminated:  s.budget.Eliminated(i),
			HintVisible: s.budget.HintVisible(i),
			Answer:      s.answers[i],
		}
		if s.submitted {
			correct := q.CorrectOptionIndex
			qs[i].CorrectOptionIndex = &correct
			qs[i].Explanation = q.Explanation
		}
	}
	view := SessionView{
		ID:               s.id,
		UserID:           s.userID,
		LessonID:         s.lessonID,
		Current:          s.current,
		Questions:        qs,
		AllAnswered:      s.allAnsweredLocked(),
		CanUseHint:       s.budget.CanUseHint(s.current),
		CanUseFiftyFifty: s.budget.CanUseFiftyFifty(),
		Usage:            s.budget.Usage(),
		Submitted:        s.submitted,
		Result:           s.result,
	}
	if s.record != nil {
		view.RecordID = s.record.ID
	}
	return view
}

func (s *Session) navigate(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkIndexLocked(index); err != nil {
		return err
	}
	s.current = index
	s.broadcastLocked(SessionEvent{Type: EventNavigated, QuestionIndex: index})
	return nil
}

// answer records a selection and reports whether it was correct.
func (s *Session) answer(index, option int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkMutableLocked(index); err != nil {
		return false, err
	}
	q := s.questions[index]
	if option < 0 || option >= len(q.Options) {
		return false, domain.ErrOptionOutOfRange
	}
	if s.budget.IsEliminated(index, option) {
		return false, domain.ErrOptionEliminated
	}
	s.answers[index] = option
	s.current = index
	correct := option == q.CorrectOptionIndex
	s.broadcastLocked(SessionEvent{Type: EventAnswered, QuestionIndex: index, Option: option, Correct: correct})
	return correct, nil
}

func (s *Session) toggleHint(index int) (assist.Hint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkMutableLocked(index); err != nil {
		return assist.Hint{}, err
	}
	hint, err := s.budget.ToggleHint(index, s.questions[index])
	if err != nil {
		return assist.Hint{}, err
	}
	s.broadcastLocked(SessionEvent{Type: EventHint, QuestionIndex: index})
	return hint, nil
}

func (s *Session) fiftyFifty(index int) ([]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkMutableLocked(index); err != nil {
		return nil, err
	}
	removed, err := s.budget.UseFiftyFifty(index, s.questions[index])
	if err != nil {
		return nil, err
	}
	// A selection that was just eliminated no longer counts as an answer.
	for _, opt := range removed {
		if s.answers[index] == opt {
			s.answers[index] = domain.NoAnswer
		}
	}
	s.broadcastLocked(SessionEvent{Type: EventFiftyFifty, QuestionIndex: index})
	return removed, nil
}

// persistFunc writes the attempt record and returns it with its assigned ID.
type persistFunc func(ctx context.Context, rec domain.AttemptRecord) (domain.AttemptRecord, error)

// submit scores the session and persists exactly one record. The session is
// marked submitted before scoring; if persisting fails the mark is rolled
// back so the learner can retry.
func (s *Session) submit(ctx context.Context, persist persistFunc) (scoring.Result, domain.AttemptRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return scoring.Result{}, domain.AttemptRecord{}, domain.ErrSessionNotFound
	}
	if s.submitted {
		return scoring.Result{}, domain.AttemptRecord{}, domain.ErrAlreadySubmitted
	}
	if !s.allAnsweredLocked() {
		return scoring.Result{}, domain.AttemptRecord{}, domain.ErrIncompleteAnswers
	}
	s.submitted = true

	result := scoring.Score(s.questions, s.answers)
	rec, err := persist(ctx, scoring.NewRecord(s.userID, s.lessonID, result, s.now()))
	if err != nil {
		s.submitted = false
		return scoring.Result{}, domain.AttemptRecord{}, fmt.Errorf("%w: append attempt record: %v", domain.ErrPersistence, err)
	}

	s.budget.Lock()
	s.result = &result
	s.record = &rec
	s.broadcastLocked(SessionEvent{Type: EventSubmitted, Score: result.Score, Total: result.Total})
	return result, rec, nil
}

// close ends the session and releases subscribers. Unsubmitted work is dropped.
func (s *Session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.broadcastLocked(SessionEvent{Type: EventClosed})
	for ch := range s.subscribers {
		delete(s.subscribers, ch)
		close(ch)
	}
}

func (s *Session) allAnsweredLocked() bool {
	for _, a := range s.answers {
		if a == domain.NoAnswer {
			return false
		}
	}
	return true
}

func (s *Session) checkIndexLocked(index int) error {
	if s.closed {
		return domain.ErrSessionNotFound
	}
	if index < 0 || index >= len(s.questions) {
		return domain.ErrQuestionOutOfRange
	}
	return nil
}

func (s *Session) checkMutableLocked(index int) error {
	if err := s.checkIndexLocked(index); err != nil {
		return err
	}
	if s.submitted {
		return domain.ErrAlreadySubmitted
	}
	return nil
}

// subscribe returns a channel of session events, primed with a started event
// so late subscribers still learn the session is live. The caller must invoke
// cancel to avoid leaks.
func (s *Session) subscribe() (<-chan SessionEvent, func()) {
	ch := make(chan SessionEvent, 8)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	s.subscribers[ch] = struct{}{}
	// The buffer is empty, so priming under the lock cannot block and close
	// cannot run between registration and the first send.
	ch <- SessionEvent{Type: EventStarted, SessionID: s.id, QuestionIndex: s.current, Total: len(s.questions), At: s.now()}
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *Session) broadcastLocked(ev SessionEvent) {
	ev.SessionID = s.id
	ev.At = s.now()
	for ch := range s.subscribers {
		select {
		case ch <- ev:
		default:
			// Drop the oldest pending event so a slow reader never blocks the session.
			select {
			case <-ch:
			default:
			}
			ch <- ev
		}
	}
}
