// Package policy resolves the effective assessment policy for one lesson by
// merging a cohort's global EventConfig with its per-lesson overrides.
package policy

import "assessment-service/internal/domain"

// Unlimited is the sentinel for "no limit" on any budget.
const Unlimited = -1

// Policy is the immutable, resolved view of an EventConfig for one lesson.
// A session takes a copy at creation so admin edits never leak into it.
type Policy struct {
	HintsAllowed      bool
	MaxHints          int
	FiftyFiftyAllowed bool
	MaxFiftyFifty     int

	// DesiredQuestionCount is only meaningful when QuestionCountOverridden is set.
	DesiredQuestionCount    int
	QuestionCountOverridden bool
}

// UnlimitedHints reports whether the hint budget has no ceiling.
func (p Policy) UnlimitedHints() bool { return p.MaxHints == Unlimited }

// UnlimitedFiftyFifty reports whether the 50/50 budget has no ceiling.
func (p Policy) UnlimitedFiftyFifty() bool { return p.MaxFiftyFifty == Unlimited }

// Resolve merges global defaults with the lesson's overrides. A present
// override replaces the global value outright, including 0 and Unlimited.
func Resolve(global domain.EventConfig, lessonID string) Policy {
	p := Policy{
		HintsAllowed:      global.HintsAllowed,
		MaxHints:          global.MaxHints,
		FiftyFiftyAllowed: global.FiftyFiftyAllowed,
		MaxFiftyFifty:     global.MaxFiftyFifty,
	}
	if v, ok := lookup(global.PerLessonHintLimits, lessonID); ok {
		p.MaxHints = v
	}
	if v, ok := lookup(global.PerLessonFiftyFiftyLimits, lessonID); ok {
		p.MaxFiftyFifty = v
	}
	if v, ok := lookup(global.QuestionCountOverrides, lessonID); ok {
		p.DesiredQuestionCount = v
		p.QuestionCountOverridden = true
	}
	return p
}

func lookup(m map[string]int, key string) (int, bool) {
	if m == nil {
		return 0, false
	}
	v, ok := m[key]
	return v, ok
}
