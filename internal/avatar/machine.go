// Package avatar drives the presentation-only feedback companion: an emotion
// that decays back to neutral and a position eased toward a target once per
// frame. It owns no assessment state.
package avatar

import (
	"context"
	"sync"
	"time"

	"assessment-service/internal/scoring"
)

// Emotion is the expression the presentation layer renders.
type Emotion string

const (
	Neutral     Emotion = "neutral"
	Happy       Emotion = "happy"
	Sad         Emotion = "sad"
	Angry       Emotion = "angry"
	Thinking    Emotion = "thinking"
	Speaking    Emotion = "speaking"
	Mischievous Emotion = "mischievous"
)

// Mode is where the avatar lives on screen.
type Mode string

const (
	ModeIdle       Mode = "idle"
	ModeAssessment Mode = "assessment"
)

// Emotion lifetimes before decaying to Neutral.
const (
	SelectTTL = 1000 * time.Millisecond
	SubmitTTL = 1500 * time.Millisecond
	EndTTL    = 1200 * time.Millisecond
)

// DefaultEasing is the fraction of the remaining distance covered per frame.
const DefaultEasing = 0.08

// Offsets relative to the anchors the presentation layer reports.
var (
	perchOffset = Vec2{X: -96, Y: 0}
	hoverOffset = Vec2{X: -48, Y: -24}
)

type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (v Vec2) Add(o Vec2) Vec2      { return Vec2{X: v.X + o.X, Y: v.Y + o.Y} }
func (v Vec2) Sub(o Vec2) Vec2      { return Vec2{X: v.X - o.X, Y: v.Y - o.Y} }
func (v Vec2) Scale(k float64) Vec2 { return Vec2{X: v.X * k, Y: v.Y * k} }

// Rect is a screen element's bounding box.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (r Rect) Origin() Vec2 { return Vec2{X: r.X, Y: r.Y} }

func (r Rect) Center() Vec2 {
	return Vec2{X: r.X + r.Width/2, Y: r.Y + r.Height/2}
}

// State is one rendered frame of the avatar.
type State struct {
	Emotion  Emotion `json:"emotion"`
	Position Vec2    `json:"position"`
	Target   Vec2    `json:"target"`
	LookAt   *Vec2   `json:"lookAt"`
	Mode     Mode    `json:"mode"`
}

// Timer is the cancel handle of a scheduled decay.
type Timer interface {
	Stop() bool
}

// Clock schedules emotion decay. The real clock uses time.AfterFunc.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// Machine is safe for concurrent use: events, decay timers and the frame
// loop may run on different goroutines.
type Machine struct {
	clock      Clock
	easing     float64
	idleAnchor Vec2

	mu    sync.Mutex
	state State
	decay Timer
	gen   uint64
}

type Option func(*Machine)

func WithClock(c Clock) Option {
	return func(m *Machine) { m.clock = c }
}

// WithEasing sets the per-frame convergence factor; values outside (0,1] are ignored.
func WithEasing(k float64) Option {
	return func(m *Machine) {
		if k > 0 && k <= 1 {
			m.easing = k
		}
	}
}

func WithIdleAnchor(p Vec2) Option {
	return func(m *Machine) { m.idleAnchor = p }
}

// NewMachine starts idle and neutral, resting on the idle anchor.
func NewMachine(opts ...Option) *Machine {
	m := &Machine{clock: realClock{}, easing: DefaultEasing}
	for _, opt := range opts {
		opt(m)
	}
	m.state = State{
		Emotion:  Neutral,
		Position: m.idleAnchor,
		Target:   m.idleAnchor,
		Mode:     ModeIdle,
	}
	return m
}

// State returns a copy of the current frame.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Machine) snapshotLocked() State {
	s := m.state
	if s.LookAt != nil {
		look := *s.LookAt
		s.LookAt = &look
	}
	return s
}

// SetEmotion replaces the emotion. A positive ttl schedules a revert to
// Neutral; any pending revert from an earlier call is cancelled first.
func (m *Machine) SetEmotion(e Emotion, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setEmotionLocked(e, ttl)
}

func (m *Machine) setEmotionLocked(e Emotion, ttl time.Duration) {
	m.gen++
	if m.decay != nil {
		m.decay.Stop()
		m.decay = nil
	}
	m.state.Emotion = e
	if ttl <= 0 {
		return
	}
	gen := m.gen
	m.decay = m.clock.AfterFunc(ttl, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		// A newer emotion owns the face now.
		if m.gen != gen {
			return
		}
		m.state.Emotion = Neutral
		m.decay = nil
	})
}

// OnAssessmentStart perches the avatar left of the question panel.
func (m *Machine) OnAssessmentStart(anchor Rect) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.Mode = ModeAssessment
	m.state.Target = anchor.Origin().Add(perchOffset)
	m.state.LookAt = nil
	m.setEmotionLocked(Thinking, 0)
}

// OnOptionHover moves next to the hovered option and looks at it.
func (m *Machine) OnOptionHover(el Rect) {
	m.mu.Lock()
	defer m.mu.Unlock()
	center := el.Center()
	m.state.Target = el.Origin().Add(hoverOffset)
	m.state.LookAt = &center
	m.setEmotionLocked(Mischievous, 0)
}

func (m *Machine) OnOptionLeave() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.LookAt = nil
	m.setEmotionLocked(Thinking, 0)
}

func (m *Machine) OnOptionSelect(correct bool) {
	e := Angry
	if correct {
		e = Happy
	}
	m.SetEmotion(e, SelectTTL)
}

// OnSubmit reacts with the same pass threshold the score uses.
func (m *Machine) OnSubmit(score, total int) {
	e := Sad
	if scoring.Passed(score, total) {
		e = Happy
	}
	m.SetEmotion(e, SubmitTTL)
}

// OnAssessmentEnd sends the avatar back to roam around the idle anchor.
func (m *Machine) OnAssessmentEnd() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.Mode = ModeIdle
	m.state.Target = m.idleAnchor
	m.state.LookAt = nil
	m.setEmotionLocked(Happy, EndTTL)
}

// Step advances one frame: position += (target - position) * easing.
func (m *Machine) Step() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	delta := m.state.Target.Sub(m.state.Position)
	m.state.Position = m.state.Position.Add(delta.Scale(m.easing))
	return m.snapshotLocked()
}

// Run steps the machine at fps frames per second and hands every frame to
// sink until ctx is done. It is independent of event delivery so bursts of
// events never stall the easing.
func (m *Machine) Run(ctx context.Context, fps int, sink func(State)) {
	if fps <= 0 {
		fps = 60
	}
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			m.stopDecay()
			return
		case <-ticker.C:
			sink(m.Step())
		}
	}
}

func (m *Machine) stopDecay() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gen++
	if m.decay != nil {
		m.decay.Stop()
		m.decay = nil
	}
}
