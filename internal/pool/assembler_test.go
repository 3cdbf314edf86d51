package pool

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"assessment-service/internal/domain"
)

func makeQuestions(lesson string, n int) []domain.Question {
	qs := make([]domain.Question, n)
	for i := range qs {
		qs[i] = domain.Question{
			ID:                 fmt.Sprintf("%s-q%d", lesson, i),
			Prompt:             fmt.Sprintf("%s question %d", lesson, i),
			Options:            []string{"a", "b", "c", "d"},
			CorrectOptionIndex: i % 4,
		}
	}
	return qs
}

func TestAssembleFillsShortfallFromOtherLessons(t *testing.T) {
	lessons := map[string][]domain.Question{
		"lesson-101": makeQuestions("lesson-101", 10),
		"lesson-105": makeQuestions("lesson-105", 8),
		"lesson-109": makeQuestions("lesson-109", 12),
	}
	own := lessons["lesson-101"]
	ownCopy := append([]domain.Question(nil), own...)

	a := NewAssemblerWithSource(rand.NewSource(7))
	got := a.Assemble(own, 25, OtherLessons(lessons, "lesson-101"))

	require.Len(t, got, 25)
	assert.Equal(t, own, got[:10], "lesson questions keep their order")
	assert.Equal(t, ownCopy, own, "input must not be mutated")

	seen := map[string]bool{}
	for _, q := range got {
		assert.False(t, seen[q.ID], "duplicate question %s", q.ID)
		seen[q.ID] = true
	}
	for _, q := range got[10:] {
		assert.NotContains(t, q.ID, "lesson-101")
	}
}

func TestAssembleTruncatesWhenOverrideIsSmaller(t *testing.T) {
	own := makeQuestions("l", 10)
	a := NewAssemblerWithSource(rand.NewSource(1))

	got := a.Assemble(own, 4, makeQuestions("x", 5))

	assert.Equal(t, own[:4], got)
}

func TestAssembleWithoutOverrideReturnsLesson(t *testing.T) {
	own := makeQuestions("l", 3)
	a := NewAssemblerWithSource(rand.NewSource(1))

	got := a.Assemble(own, 0, makeQuestions("x", 5))

	assert.Equal(t, own, got)
	got[0].Prompt = "changed"
	assert.NotEqual(t, "changed", own[0].Prompt)
}

func TestAssembleReturnsEverythingWhenPoolIsShort(t *testing.T) {
	own := makeQuestions("l", 2)
	others := makeQuestions("x", 3)
	a := NewAssemblerWithSource(rand.NewSource(1))

	got := a.Assemble(own, 10, others)

	assert.Len(t, got, 5)
	assert.Equal(t, own, got[:2])
}

func TestAssembleCountIsMinOfDesiredAndAvailable(t *testing.T) {
	a := NewAssemblerWithSource(rand.NewSource(3))
	for ownN := 0; ownN <= 6; ownN++ {
		for otherN := 0; otherN <= 6; otherN++ {
			for desired := 1; desired <= 12; desired++ {
				own := makeQuestions("l", ownN)
				got := a.Assemble(own, desired, makeQuestions("x", otherN))

				want := desired
				if avail := ownN + otherN; avail < want {
					want = avail
				}
				require.Len(t, got, want)

				prefix := ownN
				if desired < prefix {
					prefix = desired
				}
				assert.Equal(t, own[:prefix], got[:prefix])
			}
		}
	}
}

func TestAssembleRandomizesExtras(t *testing.T) {
	own := makeQuestions("l", 1)
	others := makeQuestions("x", 20)
	a := NewAssemblerWithSource(rand.NewSource(11))

	first := a.Assemble(own, 6, others)
	differs := false
	for i := 0; i < 10 && !differs; i++ {
		next := a.Assemble(own, 6, others)
		differs = fmt.Sprint(next[1:]) != fmt.Sprint(first[1:])
	}
	assert.True(t, differs, "extras should be re-drawn per assembly")
}

func TestOtherLessonsSkipsOwnAndDuplicates(t *testing.T) {
	shared := domain.Question{ID: "shared", Prompt: "shared"}
	lessons := map[string][]domain.Question{
		"a": {shared, {ID: "a1"}},
		"b": {shared, {ID: "b1"}},
		"c": {{ID: "c1"}, {ID: "b1"}},
	}

	got := OtherLessons(lessons, "a")

	ids := make([]string, 0, len(got))
	for _, q := range got {
		ids = append(ids, q.ID)
	}
	assert.Equal(t, []string{"b1", "c1"}, ids)
}
