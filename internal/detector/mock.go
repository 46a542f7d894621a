package detector

import (
	"sync"

	"gocv.io/x/gocv"

	"github.com/ayusman/drishti/internal/geom"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results.
type MockDetector struct {
	mu    sync.Mutex
	faces []FaceLandmarks
	err   error
	calls int
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetFaces sets the faces that will be returned by Detect.
func (m *MockDetector) SetFaces(faces []FaceLandmarks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.faces = faces
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many times Detect has been called.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Detect returns the pre-configured faces or error.
func (m *MockDetector) Detect(frame *gocv.Mat) ([]FaceLandmarks, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.faces, nil
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}

// LookingAt returns a face mesh whose iris rings both center on gaze, a
// normalized image position. The eyes sit 0.06 apart horizontally and the
// rest of the mesh is a coarse grid around them.
func LookingAt(gaze geom.Point) FaceLandmarks {
	face := FaceLandmarks{
		Points: make([]Point3D, NumLandmarks),
		Score:  0.97,
	}

	for i := 0; i < NumMeshLandmarks; i++ {
		face.Points[i] = Point3D{
			X: gaze.X - 0.15 + float64(i%24)*0.0125,
			Y: gaze.Y - 0.2 + float64(i/24)*0.02,
		}
	}

	left := geom.Point{X: gaze.X - 0.03, Y: gaze.Y}
	right := geom.Point{X: gaze.X + 0.03, Y: gaze.Y}
	setIris(face.Points, LeftIris, left)
	setIris(face.Points, RightIris, right)

	return face
}

// setIris spreads the iris points symmetrically around center.
func setIris(points []Point3D, ring [4]int, center geom.Point) {
	const r = 0.008
	offsets := [4]geom.Point{{X: r}, {Y: -r}, {X: -r}, {Y: r}}

	points[ring[3]+1] = Point3D{X: center.X, Y: center.Y}
	for i, idx := range ring {
		points[idx] = Point3D{X: center.X + offsets[i].X, Y: center.Y + offsets[i].Y}
	}
}
