// Package assist tracks hint and 50/50 consumption within one assessment
// session. Hints are budgeted per distinct question; 50/50 uses share one
// session-wide counter.
package assist

import (
	"fmt"
	"math/rand"
	"sort"

	"assessment-service/internal/domain"
	"assessment-service/internal/policy"
)

// Hint is the outcome of toggling a hint on a question.
type Hint struct {
	Text     string `json:"text"`
	Visible  bool   `json:"visible"`
	Consumed bool   `json:"consumed"`
}

// Usage reports budget state. Remaining values are policy.Unlimited when
// there is no ceiling.
type Usage struct {
	HintsUsed           int  `json:"hintsUsed"`
	HintsRemaining      int  `json:"hintsRemaining"`
	FiftyFiftyUsed      int  `json:"fiftyFiftyUsed"`
	FiftyFiftyRemaining int  `json:"fiftyFiftyRemaining"`
	Locked              bool `json:"locked"`
}

// Budget is the assist state of a single session. It is not safe for
// concurrent use; the owning session serializes access.
type Budget struct {
	policy policy.Policy
	rnd    *rand.Rand

	hintsUsed   map[int]struct{}
	hintVisible map[int]bool
	hintText    map[int]string

	eliminated     map[int]map[int]struct{}
	fiftyFiftyUsed int

	locked bool
}

// New creates an empty budget for the resolved policy.
func New(p policy.Policy, rnd *rand.Rand) *Budget {
	return &Budget{
		policy:      p,
		rnd:         rnd,
		hintsUsed:   make(map[int]struct{}),
		hintVisible: make(map[int]bool),
		hintText:    make(map[int]string),
		eliminated:  make(map[int]map[int]struct{}),
	}
}

// Lock disables further consumption, e.g. after submission.
func (b *Budget) Lock() { b.locked = true }

// CanUseHint reports whether question q may show a hint. Already used
// questions stay available so their hint can be toggled for free.
func (b *Budget) CanUseHint(q int) bool {
	if b.locked || !b.policy.HintsAllowed {
		return false
	}
	if b.policy.UnlimitedHints() {
		return true
	}
	if _, used := b.hintsUsed[q]; used {
		return true
	}
	return len(b.hintsUsed) < b.policy.MaxHints
}

// ToggleHint flips hint visibility for question q. The first use of a
// question consumes one unit of budget.
func (b *Budget) ToggleHint(q int, question domain.Question) (Hint, error) {
	if !b.CanUseHint(q) {
		return Hint{}, domain.ErrHintUnavailable
	}

	consumed := false
	if _, used := b.hintsUsed[q]; !used {
		b.hintsUsed[q] = struct{}{}
		b.hintText[q] = b.hintFor(question)
		consumed = true
	}
	b.hintVisible[q] = !b.hintVisible[q]

	return Hint{Text: b.hintText[q], Visible: b.hintVisible[q], Consumed: consumed}, nil
}

// HintVisible reports whether the hint for q is currently shown.
func (b *Budget) HintVisible(q int) bool { return b.hintVisible[q] }

// hintFor returns the authored hint or names one random wrong option.
func (b *Budget) hintFor(question domain.Question) string {
	if question.Hint != "" {
		return question.Hint
	}
	wrong := incorrectOptions(question)
	if len(wrong) == 0 {
		return ""
	}
	pick := wrong[b.rnd.Intn(len(wrong))]
	return fmt.Sprintf("%q is not the correct answer.", question.Options[pick])
}

// CanUseFiftyFifty reports whether the session still has a 50/50 left.
func (b *Budget) CanUseFiftyFifty() bool {
	if b.locked || !b.policy.FiftyFiftyAllowed {
		return false
	}
	return b.policy.UnlimitedFiftyFifty() || b.fiftyFiftyUsed < b.policy.MaxFiftyFifty
}

// UseFiftyFifty eliminates up to two random incorrect options of question q
// and returns their indices in ascending order. The correct option is never
// eliminated.
func (b *Budget) UseFiftyFifty(q int, question domain.Question) ([]int, error) {
	if !b.CanUseFiftyFifty() {
		return nil, domain.ErrFiftyFiftyUnavailable
	}
	if len(b.eliminated[q]) > 0 {
		return nil, domain.ErrAlreadyEliminated
	}

	wrong := incorrectOptions(question)
	b.rnd.Shuffle(len(wrong), func(i, j int) { wrong[i], wrong[j] = wrong[j], wrong[i] })
	n := 2
	if len(wrong) < n {
		n = len(wrong)
	}
	picked := append([]int(nil), wrong[:n]...)
	sort.Ints(picked)

	set := make(map[int]struct{}, n)
	for _, opt := range picked {
		set[opt] = struct{}{}
	}
	b.eliminated[q] = set
	b.fiftyFiftyUsed++
	return picked, nil
}

// IsEliminated reports whether option opt of question q was removed.
func (b *Budget) IsEliminated(q, opt int) bool {
	_, ok := b.eliminated[q][opt]
	return ok
}

// Eliminated returns the removed options of q in ascending order.
func (b *Budget) Eliminated(q int) []int {
	out := make([]int, 0, len(b.eliminated[q]))
	for opt := range b.eliminated[q] {
		out = append(out, opt)
	}
	sort.Ints(out)
	return out
}

// Usage summarizes consumption against the policy.
func (b *Budget) Usage() Usage {
	u := Usage{
		HintsUsed:           len(b.hintsUsed),
		HintsRemaining:      policy.Unlimited,
		FiftyFiftyUsed:      b.fiftyFiftyUsed,
		FiftyFiftyRemaining: policy.Unlimited,
		Locked:              b.locked,
	}
	if !b.policy.HintsAllowed {
		u.HintsRemaining = 0
	} else if !b.policy.UnlimitedHints() {
		u.HintsRemaining = max(b.policy.MaxHints-len(b.hintsUsed), 0)
	}
	if !b.policy.FiftyFiftyAllowed {
		u.FiftyFiftyRemaining = 0
	} else if !b.policy.UnlimitedFiftyFifty() {
		u.FiftyFiftyRemaining = max(b.policy.MaxFiftyFifty-b.fiftyFiftyUsed, 0)
	}
	return u
}

func incorrectOptions(question domain.Question) []int {
	out := make([]int, 0, len(question.Options))
	for i := range question.Options {
		if i != question.CorrectOptionIndex {
			out = append(out, i)
		}
	}
	return out
}
