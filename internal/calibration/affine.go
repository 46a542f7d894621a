// Package calibration fits the affine map from filtered normalized gaze
// coordinates to screen pixels.
package calibration

import (
	"errors"
	"fmt"

	"github.com/ayusman/drishti/internal/geom"
)

// MinSamples is the smallest sample set the solver accepts.
const MinSamples = 3

// Regularization is added to the Gram determinant before inversion so that
// near-collinear sample layouts still produce a finite matrix.
const Regularization = 1e-10

// ErrInsufficientSamples is returned when fewer than MinSamples samples are supplied.
var ErrInsufficientSamples = errors.New("insufficient calibration samples")

// Sample pairs a filtered normalized gaze reading with the screen target
// the user was looking at when it was taken.
type Sample struct {
	Raw    geom.Point `json:"raw"`
	Screen geom.Point `json:"screen"`
}

// Matrix is a 2x3 affine map:
//
//	screenX = AX*x + BX*y + CX
//	screenY = AY*x + BY*y + CY
type Matrix struct {
	AX float64 `json:"ax"`
	BX float64 `json:"bx"`
	CX float64 `json:"cx"`
	AY float64 `json:"ay"`
	BY float64 `json:"by"`
	CY float64 `json:"cy"`
}

// Apply maps p through the matrix.
func (m Matrix) Apply(p geom.Point) geom.Point {
	return geom.Point{
		X: m.AX*p.X + m.BX*p.Y + m.CX,
		Y: m.AY*p.X + m.BY*p.Y + m.CY,
	}
}

// gram holds the sums that make up the normal equations of the fit.
type gram struct {
	sxx, sxy, sx, syy, sy, n float64 // design matrix [x y 1]^T [x y 1]
	xu, yu, u                float64 // right-hand side for screen X
	xv, yv, v                float64 // right-hand side for screen Y
}

func accumulate(samples []Sample) gram {
	var g gram
	g.n = float64(len(samples))
	for _, s := range samples {
		x, y := s.Raw.X, s.Raw.Y
		u, v := s.Screen.X, s.Screen.Y

		g.sxx += x * x
		g.sxy += x * y
		g.sx += x
		g.syy += y * y
		g.sy += y

		g.xu += x * u
		g.yu += y * u
		g.u += u
		g.xv += x * v
		g.yv += y * v
		g.v += v
	}
	return g
}

// determinant returns the unregularized determinant of the symmetric Gram matrix
//
//	| sxx sxy sx |
//	| sxy syy sy |
//	| sx  sy  n  |
func (g gram) determinant() float64 {
	return g.sxx*(g.syy*g.n-g.sy*g.sy) -
		g.sxy*(g.sxy*g.n-g.sy*g.sx) +
		g.sx*(g.sxy*g.sy-g.syy*g.sx)
}

// Fit solves the least-squares affine map for the given samples.
//
// Both output axes share one design matrix built from [rawX, rawY, 1]; its
// 3x3 Gram matrix is inverted with the explicit adjugate formula. The solver
// is pure and keeps no reference to samples.
func Fit(samples []Sample) (Matrix, error) {
	if len(samples) < MinSamples {
		return Matrix{}, fmt.Errorf("%w: got %d, need at least %d", ErrInsufficientSamples, len(samples), MinSamples)
	}

	g := accumulate(samples)
	det := g.determinant() + Regularization

	// Inverse of the symmetric Gram matrix via cofactors.
	i00 := (g.syy*g.n - g.sy*g.sy) / det
	i01 := (g.sx*g.sy - g.sxy*g.n) / det
	i02 := (g.sxy*g.sy - g.syy*g.sx) / det
	i11 := (g.sxx*g.n - g.sx*g.sx) / det
	i12 := (g.sxy*g.sx - g.sxx*g.sy) / det
	i22 := (g.sxx*g.syy - g.sxy*g.sxy) / det
	i10, i20, i21 := i01, i02, i12

	return Matrix{
		AX: i00*g.xu + i01*g.yu + i02*g.u,
		BX: i10*g.xu + i11*g.yu + i12*g.u,
		CX: i20*g.xu + i21*g.yu + i22*g.u,
		AY: i00*g.xv + i01*g.yv + i02*g.v,
		BY: i10*g.xv + i11*g.yv + i12*g.v,
		CY: i20*g.xv + i21*g.yv + i22*g.v,
	}, nil
}

// FitWithQuality fits the samples and assesses how trustworthy the result is.
// A degenerate layout still yields a matrix; callers decide whether to use it.
func FitWithQuality(samples []Sample) (Matrix, Quality, error) {
	m, err := Fit(samples)
	if err != nil {
		return Matrix{}, Quality{}, err
	}
	return m, Assess(samples, m), nil
}
