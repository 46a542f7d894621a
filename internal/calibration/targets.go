package calibration

import "github.com/ayusman/drishti/internal/geom"

// DefaultTargets is the five-point layout shown to the user during
// calibration, as fractions of the viewport: four corners inset by 10%
// and the centre.
var DefaultTargets = []geom.Point{
	{X: 0.1, Y: 0.1},
	{X: 0.9, Y: 0.1},
	{X: 0.5, Y: 0.5},
	{X: 0.1, Y: 0.9},
	{X: 0.9, Y: 0.9},
}

// ScaleTargets converts fractional targets to pixel positions for a
// viewport of the given size.
func ScaleTargets(targets []geom.Point, width, height float64) []geom.Point {
	scaled := make([]geom.Point, len(targets))
	for i, t := range targets {
		scaled[i] = geom.Point{X: t.X * width, Y: t.Y * height}
	}
	return scaled
}
