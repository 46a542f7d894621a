// Package dwell turns a published gaze point stream into discrete "click"
// events when the gaze holds still long enough.
package dwell

import "github.com/ayusman/drishti/internal/geom"

// Config holds the dwell thresholds. Velocities are in screen pixels per ms,
// so VThresh depends on display resolution.
type Config struct {
	DwellMs      int64   `json:"dwell_ms"`      // how long the gaze must stay slow
	VThresh      float64 `json:"v_thresh"`      // px/ms below which the gaze counts as still
	ArmMs        int64   `json:"arm_ms"`        // reported only; not part of the firing rule
	RefractoryMs int64   `json:"refractory_ms"` // minimum gap between two fires
}

// DefaultConfig returns the standard dwell thresholds.
func DefaultConfig() Config {
	return Config{
		DwellMs:      700,
		VThresh:      0.30,
		ArmMs:        250,
		RefractoryMs: 600,
	}
}

// State is the externally visible phase of the engine.
type State int

const (
	// StateIdle means the gaze is moving or has not been observed yet.
	StateIdle State = iota
	// StateArming means the gaze is slow and dwell time is accumulating.
	StateArming
	// StateRefractory means a trigger fired recently and another cannot fire yet.
	StateRefractory
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateArming:
		return "arming"
	case StateRefractory:
		return "refractory"
	default:
		return "unknown"
	}
}

// Event is a single dwell trigger.
type Event struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	T int64   `json:"t"`
}

// Engine is a velocity-gated, debounced dwell detector.
//
// armedSince == 0 means the engine is not arming. It is cleared on every
// fast sample and on every fire.
type Engine struct {
	cfg        Config
	last       geom.Point
	lastT      int64
	hasLast    bool
	armedSince int64
	firedAt    int64
	onFire     func(Event)
}

// NewEngine creates an Engine with the given thresholds.
func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// OnTrigger registers fn to be called synchronously on every fire.
// Passing nil removes the callback.
func (e *Engine) OnTrigger(fn func(Event)) {
	e.onFire = fn
}

// Update feeds one published gaze point observed at t ms. It returns the
// event and true when this sample completes a qualifying dwell.
func (e *Engine) Update(x, y float64, t int64) (Event, bool) {
	p := geom.Point{X: x, Y: y}

	if !e.hasLast {
		e.last, e.lastT, e.hasLast = p, t, true
		e.armedSince = 0
		return Event{}, false
	}

	v := geom.Speed(e.last, p, e.lastT, t)
	e.last, e.lastT = p, t

	if v >= e.cfg.VThresh {
		e.armedSince = 0
		return Event{}, false
	}

	if e.armedSince == 0 {
		e.armedSince = t
	}

	if t-e.armedSince >= e.cfg.DwellMs && t-e.firedAt > e.cfg.RefractoryMs {
		e.firedAt = t
		e.armedSince = 0

		ev := Event{X: x, Y: y, T: t}
		if e.onFire != nil {
			e.onFire(ev)
		}
		return ev, true
	}

	return Event{}, false
}

// State reports the engine phase as of time t.
func (e *Engine) State(t int64) State {
	if e.firedAt != 0 && t-e.firedAt <= e.cfg.RefractoryMs {
		return StateRefractory
	}
	if e.armedSince != 0 {
		return StateArming
	}
	return StateIdle
}

// Progress returns how far the current dwell has advanced at time t, in [0, 1].
func (e *Engine) Progress(t int64) float64 {
	if e.armedSince == 0 || e.cfg.DwellMs <= 0 {
		return 0
	}
	p := float64(t-e.armedSince) / float64(e.cfg.DwellMs)
	if p > 1 {
		return 1
	}
	if p < 0 {
		return 0
	}
	return p
}

// Config returns the thresholds the engine was built with.
func (e *Engine) Config() Config {
	return e.cfg
}
