// Package detector provides face mesh detection and iris extraction for gaze
// tracking.
package detector

import "github.com/ayusman/drishti/internal/geom"

// Face mesh sizes following the MediaPipe convention: 468 mesh points
// followed by 5 points per iris when iris refinement is enabled.
const (
	NumMeshLandmarks = 468
	NumLandmarks     = 478
)

// Iris indices averaged into each eye center. Each iris occupies five mesh
// slots; the first four are used.
var (
	LeftIris  = [4]int{468, 469, 470, 471}
	RightIris = [4]int{473, 474, 475, 476}
)

// Point3D represents a 3D point in normalized image coordinates.
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// FaceLandmarks is one detected face mesh.
type FaceLandmarks struct {
	Points []Point3D `json:"points"`
	Score  float64   `json:"score"`
}

// HasIris reports whether the mesh includes the refined iris points.
func (f *FaceLandmarks) HasIris() bool {
	return f != nil && len(f.Points) >= NumLandmarks
}

// IrisCenters returns the averaged left and right iris ring positions.
func (f *FaceLandmarks) IrisCenters() (left, right geom.Point, ok bool) {
	if !f.HasIris() {
		return geom.Point{}, geom.Point{}, false
	}
	return f.average(LeftIris), f.average(RightIris), true
}

// GazeSample returns the midpoint of both iris centers: the raw normalized
// sample fed to the filter chain.
func (f *FaceLandmarks) GazeSample() (geom.Point, bool) {
	left, right, ok := f.IrisCenters()
	if !ok {
		return geom.Point{}, false
	}
	return geom.Midpoint(left, right), true
}

func (f *FaceLandmarks) average(idx [4]int) geom.Point {
	var sx, sy float64
	for _, i := range idx {
		sx += f.Points[i].X
		sy += f.Points[i].Y
	}
	return geom.Point{X: sx / float64(len(idx)), Y: sy / float64(len(idx))}
}

// Primary returns the gaze sample of the first face with iris points, or
// nil if there is none.
func Primary(faces []FaceLandmarks) *geom.Point {
	for i := range faces {
		if p, ok := faces[i].GazeSample(); ok {
			return &p
		}
	}
	return nil
}
