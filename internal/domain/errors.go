package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrLessonNotFound is returned when the content has no questions for a lesson.
	ErrLessonNotFound = errors.New("lesson not found")
	// ErrSessionNotFound is returned when an assessment session is not open.
	ErrSessionNotFound = errors.New("assessment session not found")
	// ErrSessionAlreadyOpen is returned when the same user already has the lesson open.
	ErrSessionAlreadyOpen = errors.New("assessment session already open")
	// ErrQuestionOutOfRange indicates a question index outside the session.
	ErrQuestionOutOfRange = errors.New("question index out of range")
	// ErrOptionOutOfRange indicates an option index outside the question.
	ErrOptionOutOfRange = errors.New("option index out of range")
	// ErrOptionEliminated indicates the option was removed by a 50/50.
	ErrOptionEliminated = errors.New("option eliminated")
	// ErrAlreadySubmitted is returned on any mutation after submission.
	ErrAlreadySubmitted = errors.New("assessment already submitted")
	// ErrIncompleteAnswers is returned when submitting with unanswered questions.
	ErrIncompleteAnswers = errors.New("not every question is answered")
	// ErrHintUnavailable indicates hints are disabled or the budget is spent.
	ErrHintUnavailable = errors.New("hint unavailable")
	// ErrFiftyFiftyUnavailable indicates 50/50 is disabled or the budget is spent.
	ErrFiftyFiftyUnavailable = errors.New("fifty-fifty unavailable")
	// ErrAlreadyEliminated indicates a 50/50 was already applied to the question.
	ErrAlreadyEliminated = errors.New("options already eliminated for question")
	// ErrAttemptLimitReached is returned when the user has no attempts left.
	ErrAttemptLimitReached = errors.New("attempt limit reached")
	// ErrRequestNotFound indicates an unknown attempt request ID.
	ErrRequestNotFound = errors.New("attempt request not found")
	// ErrInvalidDecision indicates a resolution other than approved or rejected.
	ErrInvalidDecision = errors.New("invalid request decision")
	// ErrInvalidAllowance indicates a negative attempt allowance.
	ErrInvalidAllowance = errors.New("invalid attempt allowance")
	// ErrRecordNotFound indicates an unknown attempt record ID.
	ErrRecordNotFound = errors.New("attempt record not found")
	// ErrConfigNotFound indicates an unknown or missing event config.
	ErrConfigNotFound = errors.New("event config not found")
	// ErrPersistence wraps storage failures that the caller may retry.
	ErrPersistence = errors.New("persistence failure")
	// ErrUnauthorized is returned for missing or invalid admin credentials.
	ErrUnauthorized = errors.New("unauthorized")
)

// AttemptLimitError carries the counts behind an ErrAttemptLimitReached.
type AttemptLimitError struct {
	Taken   int
	Allowed int
}

func (e *AttemptLimitError) Error() string {
	return fmt.Sprintf("attempt limit reached: %d of %d used", e.Taken, e.Allowed)
}

func (e *AttemptLimitError) Unwrap() error {
	return ErrAttemptLimitReached
}
