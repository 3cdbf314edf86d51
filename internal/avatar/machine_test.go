package avatar

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTimer struct {
	clock   *fakeClock
	due     time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

// fakeClock fires timers only when Advance is called.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*fakeTimer
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, due: c.now + d, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now += d
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && t.due <= c.now {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()
	for _, t := range due {
		t.f()
	}
}

func TestAssessmentStartPerchesAndThinks(t *testing.T) {
	m := NewMachine(WithClock(&fakeClock{}))
	m.OnAssessmentStart(Rect{X: 400, Y: 100, Width: 600, Height: 300})

	s := m.State()
	assert.Equal(t, ModeAssessment, s.Mode)
	assert.Equal(t, Thinking, s.Emotion)
	assert.Equal(t, Vec2{X: 304, Y: 100}, s.Target)
	assert.Nil(t, s.LookAt)
}

func TestHoverAndLeave(t *testing.T) {
	m := NewMachine(WithClock(&fakeClock{}))
	m.OnOptionHover(Rect{X: 100, Y: 200, Width: 50, Height: 20})

	s := m.State()
	assert.Equal(t, Mischievous, s.Emotion)
	require.NotNil(t, s.LookAt)
	assert.Equal(t, Vec2{X: 125, Y: 210}, *s.LookAt)

	m.OnOptionLeave()
	s = m.State()
	assert.Equal(t, Thinking, s.Emotion)
	assert.Nil(t, s.LookAt)
}

func TestSelectDecaysToNeutral(t *testing.T) {
	clock := &fakeClock{}
	m := NewMachine(WithClock(clock))

	m.OnOptionSelect(true)
	assert.Equal(t, Happy, m.State().Emotion)

	clock.Advance(999 * time.Millisecond)
	assert.Equal(t, Happy, m.State().Emotion)

	clock.Advance(time.Millisecond)
	assert.Equal(t, Neutral, m.State().Emotion)

	m.OnOptionSelect(false)
	assert.Equal(t, Angry, m.State().Emotion)
}

func TestNewEmotionCancelsStaleDecay(t *testing.T) {
	clock := &fakeClock{}
	m := NewMachine(WithClock(clock))

	m.OnOptionSelect(true)
	clock.Advance(500 * time.Millisecond)
	m.OnSubmit(5, 10) // 50% fails

	clock.Advance(600 * time.Millisecond)
	assert.Equal(t, Sad, m.State().Emotion, "first decay must not revert the newer emotion")

	clock.Advance(900 * time.Millisecond)
	assert.Equal(t, Neutral, m.State().Emotion)
}

func TestPersistentEmotionCancelsDecay(t *testing.T) {
	clock := &fakeClock{}
	m := NewMachine(WithClock(clock))

	m.OnOptionSelect(false)
	m.OnOptionHover(Rect{})
	clock.Advance(2 * time.Second)
	assert.Equal(t, Mischievous, m.State().Emotion)
}

func TestSubmitUsesPassThreshold(t *testing.T) {
	clock := &fakeClock{}
	m := NewMachine(WithClock(clock))

	m.OnSubmit(11, 20) // exactly 55%
	assert.Equal(t, Happy, m.State().Emotion)

	m.OnSubmit(10, 20)
	assert.Equal(t, Sad, m.State().Emotion)
}

func TestAssessmentEndReturnsToIdleAnchor(t *testing.T) {
	clock := &fakeClock{}
	anchor := Vec2{X: 20, Y: 600}
	m := NewMachine(WithClock(clock), WithIdleAnchor(anchor))

	m.OnAssessmentStart(Rect{X: 500, Y: 50})
	m.OnOptionHover(Rect{X: 500, Y: 80, Width: 10, Height: 10})
	m.OnAssessmentEnd()

	s := m.State()
	assert.Equal(t, ModeIdle, s.Mode)
	assert.Equal(t, Happy, s.Emotion)
	assert.Equal(t, anchor, s.Target)
	assert.Nil(t, s.LookAt)

	clock.Advance(EndTTL)
	assert.Equal(t, Neutral, m.State().Emotion)
}

func TestStepEasesWithoutTeleporting(t *testing.T) {
	m := NewMachine(WithClock(&fakeClock{}))
	m.OnAssessmentStart(Rect{X: 196, Y: 0})

	s := m.Step()
	assert.InDelta(t, 8.0, s.Position.X, 1e-9)

	prev := s.Position.X
	for i := 0; i < 200; i++ {
		s = m.Step()
		require.Greater(t, s.Position.X, prev)
		require.LessOrEqual(t, s.Position.X, 100.0)
		prev = s.Position.X
	}
	assert.InDelta(t, 100.0, s.Position.X, 1e-3)
	assert.False(t, math.IsNaN(s.Position.Y))
}

func TestEasingOption(t *testing.T) {
	m := NewMachine(WithClock(&fakeClock{}), WithEasing(0.5))
	m.OnAssessmentStart(Rect{X: 296})
	assert.InDelta(t, 100.0, m.Step().Position.X, 1e-9)

	ignored := NewMachine(WithEasing(3))
	assert.Equal(t, DefaultEasing, ignored.easing)
}

func TestRunEmitsFramesUntilCancelled(t *testing.T) {
	m := NewMachine(WithClock(&fakeClock{}))
	m.OnAssessmentStart(Rect{X: 1096})

	ctx, cancel := context.WithCancel(context.Background())
	frames := make(chan State, 64)
	done := make(chan struct{})
	go func() {
		m.Run(ctx, 200, func(s State) {
			select {
			case frames <- s:
			default:
			}
		})
		close(done)
	}()

	var last State
	for i := 0; i < 3; i++ {
		select {
		case last = <-frames:
		case <-time.After(time.Second):
			t.Fatal("no frame emitted")
		}
	}
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("run did not stop")
	}
	assert.Greater(t, last.Position.X, 0.0)
}
