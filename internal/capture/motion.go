package capture

import (
	"image"
	"sync"

	"gocv.io/x/gocv"
)

// Motion detection constants
const (
	// SampleWidth is the width frames are downscaled to before differencing.
	SampleWidth = 160
	// BlurSize is the Gaussian kernel applied to the downscaled frame.
	BlurSize = 7
	// DiffThreshold is the per-pixel intensity change that counts as motion.
	DiffThreshold = 25
)

// MotionDetector reports whether enough of the picture changed between
// consecutive frames. The gaze pipeline uses it to leave idle mode when
// someone sits down in front of the camera.
type MotionDetector struct {
	threshold  float64
	baseline   gocv.Mat
	hasBase    bool
	lastChange float64
	mu         sync.Mutex
}

// NewMotionDetector creates a MotionDetector. threshold is the percentage of
// pixels that must change; 1.0 means 1%.
func NewMotionDetector(threshold float64) *MotionDetector {
	return &MotionDetector{
		threshold: threshold,
		baseline:  gocv.NewMat(),
	}
}

// Detect compares frame with the previous one and returns whether motion
// was detected together with the changed-pixel percentage. The first frame
// only establishes the baseline.
func (m *MotionDetector) Detect(frame *gocv.Mat) (bool, float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if frame == nil || frame.Empty() {
		return false, 0
	}

	sample := m.prepare(frame)
	defer sample.Close()

	if !m.hasBase {
		sample.CopyTo(&m.baseline)
		m.hasBase = true
		m.lastChange = 0
		return false, 0
	}

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(sample, m.baseline, &diff)

	mask := gocv.NewMat()
	defer mask.Close()
	gocv.Threshold(diff, &mask, DiffThreshold, 255, gocv.ThresholdBinary)

	total := mask.Rows() * mask.Cols()
	change := 0.0
	if total > 0 {
		change = float64(gocv.CountNonZero(mask)) / float64(total) * 100.0
	}

	sample.CopyTo(&m.baseline)
	m.lastChange = change

	return change > m.threshold, change
}

// prepare converts frame to a small blurred grayscale image.
func (m *MotionDetector) prepare(frame *gocv.Mat) gocv.Mat {
	gray := gocv.NewMat()
	if frame.Channels() > 1 {
		gocv.CvtColor(*frame, &gray, gocv.ColorBGRToGray)
	} else {
		frame.CopyTo(&gray)
	}

	if gray.Cols() > SampleWidth {
		small := gocv.NewMat()
		height := gray.Rows() * SampleWidth / gray.Cols()
		gocv.Resize(gray, &small, image.Point{X: SampleWidth, Y: height}, 0, 0, gocv.InterpolationArea)
		gray.Close()
		gray = small
	}

	blurred := gocv.NewMat()
	gocv.GaussianBlur(gray, &blurred, image.Point{X: BlurSize, Y: BlurSize}, 0, 0, gocv.BorderDefault)
	gray.Close()
	return blurred
}

// LastChange returns the changed-pixel percentage of the latest comparison.
func (m *MotionDetector) LastChange() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastChange
}

// Reset drops the baseline; the next frame starts a new comparison.
func (m *MotionDetector) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clear()
}

// Close releases resources used by the motion detector.
func (m *MotionDetector) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clear()
}

func (m *MotionDetector) clear() {
	if !m.baseline.Empty() {
		m.baseline.Close()
		m.baseline = gocv.NewMat()
	}
	m.hasBase = false
	m.lastChange = 0
}

// SetThreshold sets the changed-pixel percentage that counts as motion.
// Values less than or equal to 0 are ignored.
func (m *MotionDetector) SetThreshold(threshold float64) {
	if threshold <= 0 {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.threshold = threshold
}
