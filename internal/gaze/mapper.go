// Package gaze ties the filter, calibration and dwell stages into a tracking
// session and maps filtered detector output onto the screen.
package gaze

import (
	"github.com/ayusman/drishti/internal/calibration"
	"github.com/ayusman/drishti/internal/geom"
)

// Viewport is the size of the target screen area in pixels.
type Viewport struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Aspect returns width / height, or 0 for an empty viewport.
func (v Viewport) Aspect() float64 {
	if v.Height <= 0 {
		return 0
	}
	return v.Width / v.Height
}

// Map converts a filtered normalized point to screen pixels.
//
// With a calibration matrix the affine transform is applied directly.
// Without one, the normalized point is stretched over the viewport while
// keeping the source aspect ratio: when the source is wider than the screen
// the width is the limiting dimension, otherwise the height is. This keeps
// the pointer usable before calibration has run.
func Map(p geom.Point, m *calibration.Matrix, vp Viewport, sourceAspect float64) geom.Point {
	if m != nil {
		return m.Apply(p)
	}

	scaleX, scaleY := fitScale(vp, sourceAspect)
	return geom.Point{X: p.X * scaleX, Y: p.Y * scaleY}
}

func fitScale(vp Viewport, sourceAspect float64) (float64, float64) {
	screenAspect := vp.Aspect()
	if sourceAspect <= 0 {
		sourceAspect = screenAspect
	}
	if sourceAspect <= 0 {
		return vp.Width, vp.Height
	}

	if sourceAspect > screenAspect {
		return vp.Width, vp.Width / sourceAspect
	}
	return vp.Height * sourceAspect, vp.Height
}
