package filter

// Default Kalman noise parameters.
const (
	DefaultProcessNoise     = 0.05
	DefaultMeasurementNoise = 0.1
)

// Kalman1D is a scalar Kalman filter with a constant-position model.
// It has no reset and is meant to run for the lifetime of a session.
type Kalman1D struct {
	q float64 // process noise
	r float64 // measurement noise
	x float64 // estimate
	p float64 // estimate variance
}

// NewKalman1D creates a filter with estimate 0 and variance 1.
func NewKalman1D(q, r float64) *Kalman1D {
	return &Kalman1D{
		q: q,
		r: r,
		x: 0,
		p: 1,
	}
}

// Next folds measurement z into the estimate and returns the new estimate.
func (k *Kalman1D) Next(z float64) float64 {
	k.p += k.q
	gain := k.p / (k.p + k.r)
	k.x += gain * (z - k.x)
	k.p *= 1 - gain
	return k.x
}

// Seed sets the estimate directly, leaving the variance untouched.
func (k *Kalman1D) Seed(x float64) {
	k.x = x
}

// Estimate returns the current estimate.
func (k *Kalman1D) Estimate() float64 {
	return k.x
}

// Variance returns the current estimate variance.
func (k *Kalman1D) Variance() float64 {
	return k.p
}
