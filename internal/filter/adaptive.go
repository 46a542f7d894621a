package filter

import "github.com/ayusman/drishti/internal/geom"

// AdaptiveConfig holds the velocity band and blend factor range of the
// post-mapping smoother. Velocities are in pixels per millisecond.
type AdaptiveConfig struct {
	AlphaMin float64 `json:"alpha_min"`
	AlphaMax float64 `json:"alpha_max"`
	VLow     float64 `json:"v_low"`
	VHigh    float64 `json:"v_high"`
}

// DefaultAdaptiveConfig returns the standard post-mapping smoothing band.
func DefaultAdaptiveConfig() AdaptiveConfig {
	return AdaptiveConfig{
		AlphaMin: 0.1,
		AlphaMax: 0.7,
		VLow:     0.03,
		VHigh:    0.5,
	}
}

// AdaptiveSmoother is an EMA whose blend factor follows pointer velocity:
// a near-still gaze is smoothed hard, fast movement is tracked closely.
type AdaptiveSmoother struct {
	cfg     AdaptiveConfig
	running geom.Point
	lastT   int64
	ok      bool
}

// NewAdaptiveSmoother creates a smoother with the given band.
func NewAdaptiveSmoother(cfg AdaptiveConfig) *AdaptiveSmoother {
	return &AdaptiveSmoother{cfg: cfg}
}

// Update feeds one screen-space sample taken at t ms and returns the
// smoothed point. The first sample is returned unchanged.
func (s *AdaptiveSmoother) Update(p geom.Point, t int64) geom.Point {
	if !s.ok {
		s.running = p
		s.lastT = t
		s.ok = true
		return p
	}

	v := geom.Speed(s.running, p, s.lastT, t)
	s.lastT = t

	a := s.Alpha(v)
	s.running.X += a * (p.X - s.running.X)
	s.running.Y += a * (p.Y - s.running.Y)
	return s.running
}

// Alpha maps velocity v linearly from [VLow, VHigh] onto [AlphaMin, AlphaMax],
// clamped at both ends.
func (s *AdaptiveSmoother) Alpha(v float64) float64 {
	c := s.cfg
	if c.VHigh <= c.VLow {
		if v < c.VLow {
			return c.AlphaMin
		}
		return c.AlphaMax
	}

	frac := (v - c.VLow) / (c.VHigh - c.VLow)
	switch {
	case frac < 0:
		frac = 0
	case frac > 1:
		frac = 1
	}
	return c.AlphaMin + frac*(c.AlphaMax-c.AlphaMin)
}
