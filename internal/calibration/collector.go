package calibration

import (
	"encoding/json"
	"fmt"

	"github.com/ayusman/drishti/internal/geom"
)

// TargetReadings is every raw reading taken while the user looked at one
// on-screen target.
type TargetReadings struct {
	Screen geom.Point   `json:"screen"`
	Raw    []geom.Point `json:"raw"`
}

// Collector accumulates raw gaze readings per calibration target and
// averages them into one Sample per target.
type Collector struct {
	targets []TargetReadings
	index   map[geom.Point]int
}

// NewCollector creates an empty Collector.
func NewCollector() *Collector {
	return &Collector{
		index: make(map[geom.Point]int),
	}
}

// Add records one raw reading for the given screen target.
func (c *Collector) Add(screen, raw geom.Point) {
	i, ok := c.index[screen]
	if !ok {
		i = len(c.targets)
		c.index[screen] = i
		c.targets = append(c.targets, TargetReadings{Screen: screen})
	}
	c.targets[i].Raw = append(c.targets[i].Raw, raw)
}

// Len returns the number of distinct targets seen so far.
func (c *Collector) Len() int {
	return len(c.targets)
}

// Samples averages the readings of each target, in the order targets were
// first added.
func (c *Collector) Samples() []Sample {
	samples := make([]Sample, 0, len(c.targets))
	for _, t := range c.targets {
		if len(t.Raw) == 0 {
			continue
		}
		samples = append(samples, Sample{Raw: average(t.Raw), Screen: t.Screen})
	}
	return samples
}

// Reset discards all readings.
func (c *Collector) Reset() {
	c.targets = nil
	c.index = make(map[geom.Point]int)
}

// ParseReadings decodes per-target readings as posted by a calibration UI
// and averages them into samples.
func ParseReadings(readings []json.RawMessage) ([]Sample, error) {
	if len(readings) == 0 {
		return nil, fmt.Errorf("no readings provided")
	}

	c := NewCollector()
	for i, raw := range readings {
		var tr TargetReadings
		if err := json.Unmarshal(raw, &tr); err != nil {
			return nil, fmt.Errorf("failed to parse reading %d: %w", i, err)
		}

		if len(tr.Raw) == 0 {
			return nil, fmt.Errorf("reading %d has no raw points", i)
		}

		for _, p := range tr.Raw {
			c.Add(tr.Screen, p)
		}
	}

	return c.Samples(), nil
}

// average returns the centroid of points. points must be non-empty.
func average(points []geom.Point) geom.Point {
	var sumX, sumY float64
	for _, p := range points {
		sumX += p.X
		sumY += p.Y
	}
	n := float64(len(points))
	return geom.Point{X: sumX / n, Y: sumY / n}
}
