// Package geom holds the 2-D point types shared by every stage of the gaze pipeline.
//
// A Point is either in normalized detector space (roughly 0..1) or in screen
// pixels depending on where in the pipeline it sits. The type does not track
// which; callers must not mix the two.
package geom

import "math"

// Point is a 2-D position.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Distance returns the Euclidean distance between a and b.
func Distance(a, b Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// Midpoint returns the point halfway between a and b.
func Midpoint(a, b Point) Point {
	return Point{X: (a.X + b.X) * 0.5, Y: (a.Y + b.Y) * 0.5}
}

// ElapsedMs returns t - prev in milliseconds, floored to 1 so velocity
// computations never divide by zero or go negative.
func ElapsedMs(prev, t int64) float64 {
	dt := t - prev
	if dt < 1 {
		dt = 1
	}
	return float64(dt)
}

// Speed returns the distance from a to b divided by the floored elapsed time,
// in units per millisecond.
func Speed(a, b Point, prevT, t int64) float64 {
	return Distance(a, b) / ElapsedMs(prevT, t)
}
