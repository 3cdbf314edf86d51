package pool

import (
	"math/rand"
	"sort"
	"sync"
	"time"

	"assessment-service/internal/domain"
)

// Assembler builds the ordered question list for one assessment session.
// It is safe for concurrent use.
type Assembler struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewAssembler seeds an assembler from the wall clock.
func NewAssembler() *Assembler {
	return NewAssemblerWithSource(rand.NewSource(time.Now().UnixNano()))
}

// NewAssemblerWithSource allows deterministic shuffles in tests.
func NewAssemblerWithSource(src rand.Source) *Assembler {
	return &Assembler{rnd: rand.New(src)}
}

// Assemble returns the lesson's own questions, in order, followed by enough
// randomly drawn foreign questions to reach desired. A desired count <= 0
// means no override is configured and the lesson is used as authored. When
// the combined pool is short, everything available is returned. Neither input
// slice is modified.
func (a *Assembler) Assemble(own []domain.Question, desired int, others []domain.Question) []domain.Question {
	if desired <= 0 {
		return append([]domain.Question(nil), own...)
	}
	if len(own) >= desired {
		return append([]domain.Question(nil), own[:desired]...)
	}

	extras := append([]domain.Question(nil), others...)
	a.mu.Lock()
	a.rnd.Shuffle(len(extras), func(i, j int) {
		extras[i], extras[j] = extras[j], extras[i]
	})
	a.mu.Unlock()

	shortfall := desired - len(own)
	if shortfall > len(extras) {
		shortfall = len(extras)
	}

	out := make([]domain.Question, 0, len(own)+shortfall)
	out = append(out, own...)
	return append(out, extras[:shortfall]...)
}

// OtherLessons flattens every lesson except lessonID into one pool, in lesson
// ID order. Questions sharing an ID with the lesson itself, or with a question
// already in the pool, are skipped so an assembly never repeats a question.
func OtherLessons(lessons map[string][]domain.Question, lessonID string) []domain.Question {
	seen := make(map[string]struct{})
	for _, q := range lessons[lessonID] {
		if q.ID != "" {
			seen[q.ID] = struct{}{}
		}
	}

	ids := make([]string, 0, len(lessons))
	for id := range lessons {
		if id != lessonID {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	var out []domain.Question
	for _, id := range ids {
		for _, q := range lessons[id] {
			if q.ID != "" {
				if _, dup := seen[q.ID]; dup {
					continue
				}
				seen[q.ID] = struct{}{}
			}
			out = append(out, q)
		}
	}
	return out
}
