package gaze

import (
	"fmt"

	"github.com/ayusman/drishti/internal/dwell"
	"github.com/ayusman/drishti/internal/filter"
)

// Tuning aggregates every numeric constant of the pipeline.
type Tuning struct {
	Chain    filter.ChainConfig    `json:"chain"`
	Saccade  filter.SaccadeConfig  `json:"saccade"`
	Adaptive filter.AdaptiveConfig `json:"adaptive"`
	Dwell    dwell.Config          `json:"dwell"`
}

// DefaultTuning returns the recommended constants for a ~60Hz detector.
func DefaultTuning() Tuning {
	return Tuning{
		Chain:    filter.DefaultChainConfig(),
		Saccade:  filter.DefaultSaccadeConfig(),
		Adaptive: filter.DefaultAdaptiveConfig(),
		Dwell:    dwell.DefaultConfig(),
	}
}

// Validate reports the first out-of-range constant.
func (t Tuning) Validate() error {
	switch {
	case t.Chain.Alpha <= 0 || t.Chain.Alpha > 1:
		return fmt.Errorf("chain.ema_alpha must be in (0, 1], got %v", t.Chain.Alpha)
	case t.Chain.ProcessNoise < 0:
		return fmt.Errorf("chain.kalman_q must not be negative, got %v", t.Chain.ProcessNoise)
	case t.Chain.MeasurementNoise <= 0:
		return fmt.Errorf("chain.kalman_r must be positive, got %v", t.Chain.MeasurementNoise)
	case t.Saccade.JumpPx <= 0:
		return fmt.Errorf("saccade.jump_px must be positive, got %v", t.Saccade.JumpPx)
	case t.Saccade.BlockMs < 0:
		return fmt.Errorf("saccade.block_ms must not be negative, got %v", t.Saccade.BlockMs)
	case t.Adaptive.AlphaMin <= 0 || t.Adaptive.AlphaMax > 1 || t.Adaptive.AlphaMin > t.Adaptive.AlphaMax:
		return fmt.Errorf("adaptive alpha range [%v, %v] must lie in (0, 1] and be ordered",
			t.Adaptive.AlphaMin, t.Adaptive.AlphaMax)
	case t.Adaptive.VLow < 0 || t.Adaptive.VHigh <= t.Adaptive.VLow:
		return fmt.Errorf("adaptive velocity band [%v, %v] must be ordered and non-negative",
			t.Adaptive.VLow, t.Adaptive.VHigh)
	case t.Dwell.DwellMs <= 0:
		return fmt.Errorf("dwell.dwell_ms must be positive, got %v", t.Dwell.DwellMs)
	case t.Dwell.VThresh <= 0:
		return fmt.Errorf("dwell.v_thresh must be positive, got %v", t.Dwell.VThresh)
	case t.Dwell.RefractoryMs < 0:
		return fmt.Errorf("dwell.refractory_ms must not be negative, got %v", t.Dwell.RefractoryMs)
	}
	return nil
}
