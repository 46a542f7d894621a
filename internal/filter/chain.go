package filter

import "github.com/ayusman/drishti/internal/geom"

// ChainConfig holds the tunables of the pre-mapping filter chain.
type ChainConfig struct {
	Alpha            float64 `json:"ema_alpha"` // EMA weight of new samples (0-1]
	ProcessNoise     float64 `json:"kalman_q"`  // Kalman Q
	MeasurementNoise float64 `json:"kalman_r"`  // Kalman R
}

// DefaultChainConfig returns the standard smoothing for normalized detector output.
func DefaultChainConfig() ChainConfig {
	return ChainConfig{
		Alpha:            DefaultEMAAlpha,
		ProcessNoise:     DefaultProcessNoise,
		MeasurementNoise: DefaultMeasurementNoise,
	}
}

// Chain smooths raw normalized detector output: EMA followed by an
// independent Kalman filter per axis.
type Chain struct {
	ema    *EMA
	kx, ky *Kalman1D
	seeded bool
}

// NewChain creates a filter chain from config.
func NewChain(cfg ChainConfig) *Chain {
	return &Chain{
		ema: NewEMA(cfg.Alpha),
		kx:  NewKalman1D(cfg.ProcessNoise, cfg.MeasurementNoise),
		ky:  NewKalman1D(cfg.ProcessNoise, cfg.MeasurementNoise),
	}
}

// Next feeds one normalized sample through the chain.
// The first call returns the input unchanged.
func (c *Chain) Next(x, y float64) geom.Point {
	smoothed := c.ema.Next(x, y)

	if !c.seeded {
		c.kx.Seed(smoothed.X)
		c.ky.Seed(smoothed.Y)
		c.seeded = true
		return smoothed
	}

	return geom.Point{
		X: c.kx.Next(smoothed.X),
		Y: c.ky.Next(smoothed.Y),
	}
}

// Current returns the last chain output, or false before the first sample.
func (c *Chain) Current() (geom.Point, bool) {
	if !c.seeded {
		return geom.Point{}, false
	}
	return geom.Point{X: c.kx.Estimate(), Y: c.ky.Estimate()}, true
}
