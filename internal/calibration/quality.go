package calibration

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Degeneracy thresholds. A layout whose normalized Gram determinant falls
// below DegenerateDeterminant, or whose Gram condition number exceeds
// MaxCondition, is flagged: the regularized fit is finite but not reliable.
const (
	DegenerateDeterminant = 1e-9
	MaxCondition          = 1e8
)

// Quality describes how well a fitted matrix is supported by its samples.
type Quality struct {
	Samples     int     `json:"samples"`
	Determinant float64 `json:"determinant"`  // unregularized Gram determinant / n^3
	Condition   float64 `json:"condition"`    // 2-norm condition number of the Gram matrix, MaxFloat64 if singular
	RMSResidual float64 `json:"rms_residual"` // screen pixels
	MaxResidual float64 `json:"max_residual"` // screen pixels
	Degenerate  bool    `json:"degenerate"`
}

// Assess computes fit diagnostics for m against the samples it was fitted on.
// Near-collinear target layouts are reported through Degenerate rather than
// as an error.
func Assess(samples []Sample, m Matrix) Quality {
	q := Quality{Samples: len(samples)}
	if len(samples) == 0 {
		q.Degenerate = true
		return q
	}

	g := accumulate(samples)
	q.Determinant = g.determinant() / (g.n * g.n * g.n)

	gramMat := mat.NewSymDense(3, []float64{
		g.sxx, g.sxy, g.sx,
		g.sxy, g.syy, g.sy,
		g.sx, g.sy, g.n,
	})
	cond := mat.Cond(gramMat, 2)
	singular := math.IsInf(cond, 0) || math.IsNaN(cond)
	if singular {
		// Keep the value representable in JSON and SQLite.
		cond = math.MaxFloat64
	}
	q.Condition = cond

	q.RMSResidual, q.MaxResidual = residuals(samples, m)

	q.Degenerate = singular ||
		math.Abs(q.Determinant) < DegenerateDeterminant ||
		q.Condition > MaxCondition
	return q
}

// residuals projects every raw sample through m and measures the distance
// to its screen target.
func residuals(samples []Sample, m Matrix) (rms, peak float64) {
	n := len(samples)

	design := mat.NewDense(n, 3, nil)
	target := mat.NewDense(n, 2, nil)
	for i, s := range samples {
		design.SetRow(i, []float64{s.Raw.X, s.Raw.Y, 1})
		target.SetRow(i, []float64{s.Screen.X, s.Screen.Y})
	}

	params := mat.NewDense(3, 2, []float64{
		m.AX, m.AY,
		m.BX, m.BY,
		m.CX, m.CY,
	})

	var predicted mat.Dense
	predicted.Mul(design, params)

	var diff mat.Dense
	diff.Sub(&predicted, target)

	var sumSq float64
	for i := 0; i < n; i++ {
		dx, dy := diff.At(i, 0), diff.At(i, 1)
		d2 := dx*dx + dy*dy
		sumSq += d2
		if d := math.Sqrt(d2); d > peak {
			peak = d
		}
	}
	return math.Sqrt(sumSq / float64(n)), peak
}
