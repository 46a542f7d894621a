package filter

import "github.com/ayusman/drishti/internal/geom"

// SaccadeConfig holds the jump rejection thresholds, in screen pixels and ms.
type SaccadeConfig struct {
	JumpPx  float64 `json:"jump_px"`
	BlockMs int64   `json:"block_ms"`
}

// DefaultSaccadeConfig returns the standard jump rejection thresholds.
func DefaultSaccadeConfig() SaccadeConfig {
	return SaccadeConfig{
		JumpPx:  120,
		BlockMs: 90,
	}
}

// SaccadeGuard rejects spatially implausible jumps in the mapped gaze point
// and holds off all samples for a short cooldown after each rejection.
//
// A large single-frame jump is almost always a detector glitch or a blink;
// the cooldown stops the pointer from flickering between the glitch and the
// true position.
type SaccadeGuard struct {
	cfg        SaccadeConfig
	lastGood   geom.Point
	hasGood    bool
	blockUntil int64
}

// NewSaccadeGuard creates a guard with the given thresholds.
func NewSaccadeGuard(cfg SaccadeConfig) *SaccadeGuard {
	return &SaccadeGuard{cfg: cfg}
}

// Accept returns p and true if the sample is plausible, or false if it was
// rejected. Rejection is not an error: it means "no reliable gaze this frame".
func (g *SaccadeGuard) Accept(p geom.Point, t int64) (geom.Point, bool) {
	if g.hasGood && geom.Distance(p, g.lastGood) > g.cfg.JumpPx {
		g.blockUntil = t + g.cfg.BlockMs
		return geom.Point{}, false
	}

	if t < g.blockUntil {
		return geom.Point{}, false
	}

	g.lastGood = p
	g.hasGood = true
	return p, true
}

// Blocked reports whether samples at time t fall inside the cooldown window.
func (g *SaccadeGuard) Blocked(t int64) bool {
	return t < g.blockUntil
}

// LastGood returns the most recently accepted point.
func (g *SaccadeGuard) LastGood() (geom.Point, bool) {
	return g.lastGood, g.hasGood
}
