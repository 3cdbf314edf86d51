package scoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"assessment-service/internal/domain"
)

func questionsWithAnswers(correct ...int) []domain.Question {
	qs := make([]domain.Question, len(correct))
	for i, c := range correct {
		qs[i] = domain.Question{Options: []string{"a", "b", "c"}, CorrectOptionIndex: c}
	}
	return qs
}

func TestScoreCountsUnansweredAsIncorrect(t *testing.T) {
	r := Score(questionsWithAnswers(0, 1, 2), []int{0, domain.NoAnswer, 2})

	assert.Equal(t, 2, r.Score)
	assert.Equal(t, 3, r.Total)
	require.Len(t, r.PerQuestionReview, 3)
	assert.Equal(t, domain.QuestionReview{Index: 1, SelectedIndex: -1, CorrectIndex: 1, IsCorrect: false}, r.PerQuestionReview[1])
	assert.True(t, r.PerQuestionReview[0].IsCorrect)
	assert.True(t, r.PerQuestionReview[2].IsCorrect)
}

func TestScoreToleratesShortAnswerSlice(t *testing.T) {
	r := Score(questionsWithAnswers(0, 0), []int{0})

	assert.Equal(t, 1, r.Score)
	assert.Equal(t, domain.NoAnswer, r.PerQuestionReview[1].SelectedIndex)
}

func TestPassedMatchesRatioForAllPairs(t *testing.T) {
	for total := 1; total <= 60; total++ {
		for score := 0; score <= total; score++ {
			want := float64(score)/float64(total) >= 0.55-1e-12
			assert.Equal(t, want, Passed(score, total), "score=%d total=%d", score, total)
		}
	}
}

func TestPassedBoundaryIsInclusive(t *testing.T) {
	assert.True(t, Passed(11, 20))
	assert.True(t, Passed(55, 100))
	assert.False(t, Passed(54, 100))
	assert.False(t, Passed(0, 0))
}

func TestTierFor(t *testing.T) {
	cases := []struct {
		score, total int
		want         Tier
	}{
		{5, 10, TierNone},
		{6, 10, TierMinor},
		{69, 100, TierMinor},
		{7, 10, TierMajor},
		{10, 10, TierMajor},
		{0, 0, TierNone},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, TierFor(c.score, c.total), "%d/%d", c.score, c.total)
	}
}

func TestNewRecord(t *testing.T) {
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.FixedZone("x", 3600))
	r := Score(questionsWithAnswers(1, 1), []int{1, 0})

	rec := NewRecord("u1", "lesson-1", r, at)

	assert.Equal(t, "u1", rec.UserID)
	assert.Equal(t, 1, rec.Score)
	assert.Equal(t, 2, rec.TotalQuestions)
	assert.Equal(t, time.UTC, rec.SubmittedAt.Location())
	assert.Len(t, rec.PerQuestionReview, 2)
}
