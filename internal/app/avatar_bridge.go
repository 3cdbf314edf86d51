package app

import (
	"context"

	"assessment-service/internal/avatar"
)

// DriveAvatar feeds session events into the avatar until the channel closes
// or ctx is done. Pointer events (hover/leave) do not pass through the
// session and are applied by the caller directly.
func DriveAvatar(ctx context.Context, events <-chan SessionEvent, m *avatar.Machine, panel avatar.Rect) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			ApplyEvent(m, ev, panel)
		}
	}
}

// ApplyEvent maps one session event onto an avatar transition.
func ApplyEvent(m *avatar.Machine, ev SessionEvent, panel avatar.Rect) {
	switch ev.Type {
	case EventStarted:
		m.OnAssessmentStart(panel)
	case EventAnswered:
		m.OnOptionSelect(ev.Correct)
	case EventSubmitted:
		m.OnSubmit(ev.Score, ev.Total)
	case EventClosed:
		m.OnAssessmentEnd()
	}
}
