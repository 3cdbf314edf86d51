package scoring

import (
	"time"

	"assessment-service/internal/domain"
)

// Pass and celebration thresholds, in percent.
const (
	PassPercent  = 55
	MajorPercent = 70
)

// Tier is the advisory celebration intensity for a result.
type Tier string

const (
	TierNone  Tier = "none"
	TierMinor Tier = "minor"
	TierMajor Tier = "major"
)

// Result is the outcome of scoring one submission.
type Result struct {
	Score             int                     `json:"score"`
	Total             int                     `json:"total"`
	PerQuestionReview []domain.QuestionReview `json:"perQuestionReview"`
	Passed            bool                    `json:"passed"`
	Tier              Tier                    `json:"tier"`
}

// Score counts answers matching the correct option. Unanswered or missing
// answers count as incorrect.
func Score(questions []domain.Question, answers []int) Result {
	review := make([]domain.QuestionReview, len(questions))
	score := 0
	for i, q := range questions {
		selected := domain.NoAnswer
		if i < len(answers) {
			selected = answers[i]
		}
		correct := selected != domain.NoAnswer && selected == q.CorrectOptionIndex
		if correct {
			score++
		}
		review[i] = domain.QuestionReview{
			Index:         i,
			SelectedIndex: selected,
			CorrectIndex:  q.CorrectOptionIndex,
			IsCorrect:     correct,
		}
	}

	total := len(questions)
	return Result{
		Score:             score,
		Total:             total,
		PerQuestionReview: review,
		Passed:            Passed(score, total),
		Tier:              TierFor(score, total),
	}
}

// Passed reports score/total >= 0.55 using integer arithmetic so the
// boundary is exact. An empty assessment never passes.
func Passed(score, total int) bool {
	return total > 0 && score*100 >= PassPercent*total
}

// TierFor maps a result onto a celebration tier.
func TierFor(score, total int) Tier {
	switch {
	case !Passed(score, total):
		return TierNone
	case score*100 >= MajorPercent*total:
		return TierMajor
	default:
		return TierMinor
	}
}

// NewRecord builds the attempt record persisted for a scored submission.
func NewRecord(userID, lessonID string, r Result, at time.Time) domain.AttemptRecord {
	return domain.AttemptRecord{
		UserID:            userID,
		LessonID:          lessonID,
		Score:             r.Score,
		TotalQuestions:    r.Total,
		PerQuestionReview: r.PerQuestionReview,
		SubmittedAt:       at.UTC(),
	}
}
