// Package trace loads recorded detector streams and replays them through a
// gaze session.
package trace

import (
	"embed"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/ayusman/drishti/internal/gaze"
	"github.com/ayusman/drishti/internal/geom"
)

//go:embed traces/*.json
var tracesFS embed.FS

// Sample is one detector reading. Lost marks a frame without a face.
type Sample struct {
	T    int64   `json:"t"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Lost bool    `json:"lost,omitempty"`
}

// Point returns the gaze sample, or nil for a lost frame.
func (s Sample) Point() *geom.Point {
	if s.Lost {
		return nil
	}
	return &geom.Point{X: s.X, Y: s.Y}
}

// Dwell is an expected trigger.
type Dwell struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	T int64   `json:"t"`
}

// Expect is the recorded outcome of replaying a trace with default tuning.
type Expect struct {
	Published int     `json:"published"`
	Rejected  int64   `json:"rejected"`
	Dwells    []Dwell `json:"dwells"`
}

// Trace is a recorded detector stream.
type Trace struct {
	Name         string        `json:"name"`
	Description  string        `json:"description"`
	Viewport     gaze.Viewport `json:"viewport"`
	SourceAspect float64       `json:"source_aspect"`
	Expect       Expect        `json:"expect"`
	Samples      []Sample      `json:"samples"`
}

// Load loads a trace by name, without the .json suffix.
func Load(name string) (*Trace, error) {
	data, err := tracesFS.ReadFile(path.Join("traces", name+".json"))
	if err != nil {
		return nil, fmt.Errorf("load trace %s: %w", name, err)
	}

	var tr Trace
	if err := json.Unmarshal(data, &tr); err != nil {
		return nil, fmt.Errorf("decode trace %s: %w", name, err)
	}
	if len(tr.Samples) == 0 {
		return nil, fmt.Errorf("trace %s has no samples", name)
	}
	return &tr, nil
}

// Names lists the embedded traces in name order.
func Names() ([]string, error) {
	entries, err := tracesFS.ReadDir("traces")
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".json"))
	}
	sort.Strings(names)
	return names, nil
}

// Replay runs every sample through sess, feeding published points to the
// dwell engine the way the app driver does. It returns the number of
// published points and the dwell events.
func (tr *Trace) Replay(sess *gaze.Session) (int, []Dwell) {
	published := 0
	var dwells []Dwell
	for _, s := range tr.Samples {
		p := sess.Step(s.Point(), s.T)
		if p == nil {
			continue
		}
		published++
		if ev, fired := sess.Dwell(*p, s.T); fired {
			dwells = append(dwells, Dwell{X: ev.X, Y: ev.Y, T: ev.T})
		}
	}
	return published, dwells
}
