// Package filter provides the per-frame smoothing stages of the gaze pipeline.
//
// Every type in this package owns private mutable state and is meant to be
// driven by a single goroutine. None of them block or allocate per call.
package filter

import "github.com/ayusman/drishti/internal/geom"

// DefaultEMAAlpha is the weight given to each new sample by the EMA stage.
const DefaultEMAAlpha = 0.2

// EMA is a single-pole low-pass filter over 2-D points.
type EMA struct {
	alpha float64
	last  geom.Point
	ok    bool
}

// NewEMA creates an EMA with the given smoothing factor.
// Higher alpha trusts new samples more.
func NewEMA(alpha float64) *EMA {
	return &EMA{alpha: alpha}
}

// Next feeds one sample and returns the smoothed value.
// The first sample is returned unchanged and becomes the running state.
func (e *EMA) Next(x, y float64) geom.Point {
	if !e.ok {
		e.last = geom.Point{X: x, Y: y}
		e.ok = true
		return e.last
	}

	e.last = geom.Point{
		X: e.alpha*x + (1-e.alpha)*e.last.X,
		Y: e.alpha*y + (1-e.alpha)*e.last.Y,
	}
	return e.last
}

// Alpha returns the configured smoothing factor.
func (e *EMA) Alpha() float64 {
	return e.alpha
}
