package domain

import "time"

// NoAnswer marks a question the learner has not answered yet.
const NoAnswer = -1

// Question models an authored multiple-choice question. Options keep their
// authored order and CorrectOptionIndex points into them.
type Question struct {
	ID                 string   `json:"id,omitempty" yaml:"id"`
	Prompt             string   `json:"prompt" yaml:"prompt"`
	Options            []string `json:"options" yaml:"options"`
	CorrectOptionIndex int      `json:"correctOptionIndex" yaml:"correctOptionIndex"`
	Explanation        string   `json:"explanation,omitempty" yaml:"explanation"`
	Hint               string   `json:"hint,omitempty" yaml:"hint"`
}

// Lesson is the authored question set of one lesson in one language.
type Lesson struct {
	ID        string     `json:"id" yaml:"id"`
	Language  string     `json:"language" yaml:"language"`
	Questions []Question `json:"questions" yaml:"questions"`
}

// EventConfig is a named policy bundle for a training cohort. A limit of -1
// means unlimited.
type EventConfig struct {
	Name                      string         `json:"name" yaml:"name"`
	HintsAllowed              bool           `json:"hintsAllowed" yaml:"hintsAllowed"`
	MaxHints                  int            `json:"maxHints" yaml:"maxHints"`
	FiftyFiftyAllowed         bool           `json:"fiftyFiftyAllowed" yaml:"fiftyFiftyAllowed"`
	MaxFiftyFifty             int            `json:"maxFiftyFifty" yaml:"maxFiftyFifty"`
	QuestionCountOverrides    map[string]int `json:"questionCountOverrides,omitempty" yaml:"questionCountOverrides"`
	PerLessonHintLimits       map[string]int `json:"perLessonHintLimits,omitempty" yaml:"perLessonHintLimits"`
	PerLessonFiftyFiftyLimits map[string]int `json:"perLessonFiftyFiftyLimits,omitempty" yaml:"perLessonFiftyFiftyLimits"`
}

// QuestionReview is the per-question outcome stored with an attempt.
type QuestionReview struct {
	Index         int  `json:"index"`
	SelectedIndex int  `json:"selectedIndex"`
	CorrectIndex  int  `json:"correctIndex"`
	IsCorrect     bool `json:"isCorrect"`
}

// AttemptRecord is written once per completed submission.
type AttemptRecord struct {
	ID                int64            `json:"id"`
	UserID            string           `json:"userId"`
	LessonID          string           `json:"lessonId"`
	Score             int              `json:"score"`
	TotalQuestions    int              `json:"totalQuestions"`
	PerQuestionReview []QuestionReview `json:"perQuestionReview"`
	SubmittedAt       time.Time        `json:"submittedAt"`
	Comment           string           `json:"comment,omitempty"`
}

// AttemptFilter narrows attempt record listings. Empty fields match everything.
type AttemptFilter struct {
	UserID   string
	LessonID string
}

// RequestStatus is the lifecycle state of an AttemptRequest.
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestRejected RequestStatus = "rejected"
)

// Terminal reports whether an administrator has resolved the request.
func (s RequestStatus) Terminal() bool {
	return s == RequestApproved || s == RequestRejected
}

// AttemptRequest asks an administrator for more attempts on a lesson.
type AttemptRequest struct {
	ID         string        `json:"id"`
	UserID     string        `json:"userId"`
	LessonID   string        `json:"lessonId"`
	CreatedAt  time.Time     `json:"createdAt"`
	Status     RequestStatus `json:"status"`
	ResolvedAt *time.Time    `json:"resolvedAt,omitempty"`
}

// AttemptOverride grants a user a specific number of attempts on a lesson.
type AttemptOverride struct {
	UserID   string `json:"userId"`
	LessonID string `json:"lessonId"`
	Allowed  int    `json:"allowed"`
}
