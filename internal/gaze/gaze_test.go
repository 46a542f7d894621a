package gaze

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/drishti/internal/calibration"
	"github.com/ayusman/drishti/internal/dwell"
	"github.com/ayusman/drishti/internal/geom"
)

var fullHD = Viewport{Width: 1920, Height: 1080}

// cornerSamples maps normalized space linearly onto fullHD.
var cornerSamples = []calibration.Sample{
	{Raw: geom.Point{X: 0.1, Y: 0.1}, Screen: geom.Point{X: 192, Y: 108}},
	{Raw: geom.Point{X: 0.9, Y: 0.1}, Screen: geom.Point{X: 1728, Y: 108}},
	{Raw: geom.Point{X: 0.1, Y: 0.9}, Screen: geom.Point{X: 192, Y: 972}},
	{Raw: geom.Point{X: 0.9, Y: 0.9}, Screen: geom.Point{X: 1728, Y: 972}},
}

// passthrough disables smoothing so session output equals the mapped input.
func passthrough() Tuning {
	t := DefaultTuning()
	t.Chain.Alpha = 1
	t.Chain.MeasurementNoise = 1e-12
	t.Adaptive.AlphaMin = 1
	t.Adaptive.AlphaMax = 1
	return t
}

func TestMap_UncalibratedSameAspectScalesByViewport(t *testing.T) {
	inputs := []geom.Point{{X: 0, Y: 0}, {X: 0.5, Y: 0.5}, {X: 0.25, Y: 0.75}, {X: 1, Y: 1}}
	for _, p := range inputs {
		got := Map(p, nil, fullHD, 16.0/9.0)
		assert.InDelta(t, p.X*1920, got.X, 1e-9)
		assert.InDelta(t, p.Y*1080, got.Y, 1e-9)
	}
}

func TestMap_UncalibratedAspectFit(t *testing.T) {
	tests := []struct {
		name         string
		sourceAspect float64
		wantX, wantY float64
	}{
		// 4:3 camera on a 16:9 screen: height limits
		{"narrower source", 4.0 / 3.0, 1080 * 4.0 / 3.0, 1080},
		// 21:9 camera on a 16:9 screen: width limits
		{"wider source", 21.0 / 9.0, 1920, 1920 / (21.0 / 9.0)},
		{"unknown source", 0, 1920, 1080},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Map(geom.Point{X: 1, Y: 1}, nil, fullHD, tt.sourceAspect)
			assert.InDelta(t, tt.wantX, got.X, 1e-9)
			assert.InDelta(t, tt.wantY, got.Y, 1e-9)
		})
	}
}

func TestMap_EmptyViewport(t *testing.T) {
	got := Map(geom.Point{X: 0.5, Y: 0.5}, nil, Viewport{}, 0)
	assert.Equal(t, geom.Point{}, got)
}

func TestMap_Calibrated(t *testing.T) {
	m := &calibration.Matrix{AX: 1000, BX: 10, CX: 400, AY: 5, BY: 500, CY: 200}
	got := Map(geom.Point{X: 0.5, Y: 0.5}, m, fullHD, 4.0/3.0)
	assert.InDelta(t, 905, got.X, 1e-9)
	assert.InDelta(t, 452.5, got.Y, 1e-9)
}

func TestSession_FirstSampleMapsUnchanged(t *testing.T) {
	s := NewSession(SessionConfig{Tuning: DefaultTuning(), Viewport: fullHD, SourceAspect: 16.0 / 9.0})

	got := s.Step(&geom.Point{X: 0.5, Y: 0.5}, 1000)
	require.NotNil(t, got)
	assert.InDelta(t, 960, got.X, 1e-9)
	assert.InDelta(t, 540, got.Y, 1e-9)

	norm, ok := s.CalibrationPoint()
	require.True(t, ok)
	assert.Equal(t, geom.Point{X: 0.5, Y: 0.5}, norm)
}

func TestSession_NoFaceYieldsNil(t *testing.T) {
	s := NewSession(SessionConfig{Tuning: DefaultTuning(), Viewport: fullHD})

	assert.Nil(t, s.Step(nil, 1000))
	_, ok := s.CalibrationPoint()
	assert.False(t, ok)
	assert.Equal(t, int64(1), s.Stats().Frames)
}

func TestSession_RejectsJumpAndBlocks(t *testing.T) {
	s := NewSession(SessionConfig{Tuning: passthrough(), Viewport: fullHD, SourceAspect: 16.0 / 9.0})

	require.NotNil(t, s.Step(&geom.Point{X: 0.1, Y: 0.1}, 1000))

	// ~1760px jump in one frame
	assert.Nil(t, s.Step(&geom.Point{X: 0.9, Y: 0.9}, 1016))

	// Back near the last good point but still inside the 90ms block
	assert.Nil(t, s.Step(&geom.Point{X: 0.1, Y: 0.1}, 1050))

	got := s.Step(&geom.Point{X: 0.1, Y: 0.1}, 1110)
	require.NotNil(t, got)
	assert.InDelta(t, 192, got.X, 1e-6)
	assert.InDelta(t, 108, got.Y, 1e-6)

	assert.Equal(t, int64(2), s.Stats().Rejected)
}

func TestSession_Calibrate(t *testing.T) {
	s := NewSession(SessionConfig{Tuning: passthrough(), Viewport: fullHD, SourceAspect: 16.0 / 9.0})
	m := calibration.Matrix{AX: 1000, BX: 0, CX: 400, AY: 0, BY: 500, CY: 200}

	raw := []geom.Point{{X: 0.1, Y: 0.1}, {X: 0.9, Y: 0.1}, {X: 0.1, Y: 0.9}, {X: 0.9, Y: 0.9}}
	samples := make([]calibration.Sample, len(raw))
	for i, r := range raw {
		samples[i] = calibration.Sample{Raw: r, Screen: m.Apply(r)}
	}

	t.Run("too few samples", func(t *testing.T) {
		_, err := s.Calibrate(samples[:3])
		assert.True(t, errors.Is(err, ErrTooFewSamples), "got %v", err)
		assert.False(t, s.Calibrated())
	})

	t.Run("installs matrix", func(t *testing.T) {
		q, err := s.Calibrate(samples)
		require.NoError(t, err)
		assert.False(t, q.Degenerate)
		assert.Equal(t, 4, q.Samples)
		assert.True(t, s.Calibrated())

		got := s.Step(&geom.Point{X: 0.5, Y: 0.5}, 1000)
		require.NotNil(t, got)
		assert.InDelta(t, 900, got.X, 1e-4)
		assert.InDelta(t, 450, got.Y, 1e-4)

		installed := s.Matrix()
		require.NotNil(t, installed)
		installed.AX = 0
		assert.NotEqual(t, 0.0, s.Matrix().AX, "Matrix must return a copy")
	})

	t.Run("reset", func(t *testing.T) {
		s.ResetCalibration()
		assert.False(t, s.Calibrated())
		assert.Nil(t, s.Matrix())
	})
}

func TestSession_DegenerateCalibrationStillInstalls(t *testing.T) {
	s := NewSession(SessionConfig{Tuning: DefaultTuning(), Viewport: fullHD})

	samples := []calibration.Sample{
		{Raw: geom.Point{X: 0.1, Y: 0.1}, Screen: geom.Point{X: 100, Y: 100}},
		{Raw: geom.Point{X: 0.3, Y: 0.3}, Screen: geom.Point{X: 300, Y: 300}},
		{Raw: geom.Point{X: 0.5, Y: 0.5}, Screen: geom.Point{X: 500, Y: 500}},
		{Raw: geom.Point{X: 0.9, Y: 0.9}, Screen: geom.Point{X: 900, Y: 900}},
	}

	q, err := s.Calibrate(samples)
	require.NoError(t, err)
	assert.True(t, q.Degenerate)
	assert.True(t, s.Calibrated())
}

func TestSession_ConcurrentRecalibration(t *testing.T) {
	s := NewSession(SessionConfig{Tuning: DefaultTuning(), Viewport: fullHD})
	samples := cornerSamples

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			_, _ = s.Calibrate(samples)
			s.ResetCalibration()
		}
	}()

	for i := int64(0); i < 500; i++ {
		s.Step(&geom.Point{X: 0.5, Y: 0.5}, 1000+i*16)
	}
	wg.Wait()
}

func TestSession_DwellOnPublishedPoints(t *testing.T) {
	s := NewSession(SessionConfig{Tuning: DefaultTuning(), Viewport: fullHD, SourceAspect: 16.0 / 9.0})

	var fired []dwell.Event
	for ts := int64(1000); ts < 1800; ts += 16 {
		p := s.Step(&geom.Point{X: 0.5, Y: 0.5}, ts)
		require.NotNil(t, p)
		if ev, ok := s.Dwell(*p, ts); ok {
			fired = append(fired, ev)
		}
	}

	require.Len(t, fired, 1)
	assert.Equal(t, dwell.StateRefractory.String(), s.Stats().DwellState)
	assert.InDelta(t, 960, fired[0].X, 1e-9)
}

func TestSession_CarriesCalibration(t *testing.T) {
	m := calibration.Matrix{AX: 1920, BY: 1080}
	s := NewSession(SessionConfig{Tuning: passthrough(), Viewport: fullHD, Calibration: &m})

	require.True(t, s.Calibrated())
	m.AX = 0 // the session keeps its own copy

	got := s.Step(&geom.Point{X: 0.25, Y: 0.5}, 1000)
	require.NotNil(t, got)
	assert.InDelta(t, 480, got.X, 1e-6)
	assert.InDelta(t, 540, got.Y, 1e-6)
}

func TestSession_HandoffForwardsLateCalibration(t *testing.T) {
	old := NewSession(SessionConfig{Tuning: passthrough(), Viewport: fullHD})
	next := NewSession(SessionConfig{Tuning: passthrough(), Viewport: fullHD})
	old.Handoff(next)
	require.False(t, next.Calibrated())
	assert.Same(t, next, old.Latest())

	// A handler that fetched old before the swap calibrates it afterwards.
	_, err := old.Calibrate(cornerSamples)
	require.NoError(t, err)
	require.True(t, next.Calibrated(), "calibration applied to the replaced session was lost")
	assert.Equal(t, old.Matrix(), next.Matrix())

	old.ResetCalibration()
	assert.False(t, next.Calibrated())
}

func TestSession_HandoffTakesCurrentCalibration(t *testing.T) {
	old := NewSession(SessionConfig{Tuning: passthrough(), Viewport: fullHD})
	_, err := old.Calibrate(cornerSamples)
	require.NoError(t, err)

	mid := NewSession(SessionConfig{Tuning: passthrough(), Viewport: fullHD})
	old.Handoff(mid)
	last := NewSession(SessionConfig{Tuning: passthrough(), Viewport: fullHD})
	mid.Handoff(last)

	assert.Same(t, last, old.Latest())
	assert.Same(t, last, last.Latest())
	require.True(t, last.Calibrated())

	got := last.Step(&geom.Point{X: 0.5, Y: 0.5}, 1000)
	require.NotNil(t, got)
	assert.InDelta(t, 960, got.X, 1e-6)
	assert.InDelta(t, 540, got.Y, 1e-6)
}

func TestSession_CalibrateDuringHandoff(t *testing.T) {
	live := NewSession(SessionConfig{Tuning: DefaultTuning(), Viewport: fullHD})
	var mu sync.Mutex
	current := func() *Session {
		mu.Lock()
		defer mu.Unlock()
		return live
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			_, _ = current().Calibrate(cornerSamples)
		}
	}()

	for i := 0; i < 200; i++ {
		prev := current()
		next := NewSession(SessionConfig{Tuning: DefaultTuning(), Viewport: fullHD})
		prev.Handoff(next)
		mu.Lock()
		live = next
		mu.Unlock()
	}
	wg.Wait()

	assert.True(t, current().Calibrated())
}

func TestSession_RecalibrationRestartsScreenStages(t *testing.T) {
	s := NewSession(SessionConfig{Tuning: DefaultTuning(), Viewport: fullHD, SourceAspect: 4.0 / 3.0})
	gazeAt := geom.Point{X: 0.5, Y: 0.5}

	ts := int64(1000)
	for ; ts < 1400; ts += 16 {
		p := s.Step(&gazeAt, ts)
		require.NotNil(t, p)
		s.Dwell(*p, ts)
	}
	// Uncalibrated 4:3 on 16:9 maps the centre to x=720.
	require.Equal(t, "arming", s.Stats().DwellState)

	// The calibrated mapping moves the same gaze to x=960, a 240px jump.
	samples := make([]calibration.Sample, len(calibration.DefaultTargets))
	for i, p := range calibration.DefaultTargets {
		samples[i] = calibration.Sample{Raw: p, Screen: geom.Point{X: p.X * 1920, Y: p.Y * 1080}}
	}
	_, err := s.Calibrate(samples)
	require.NoError(t, err)

	p := s.Step(&gazeAt, ts)
	require.NotNil(t, p, "first point after recalibration must not be taken for a saccade")
	assert.InDelta(t, 960, p.X, 1e-3)
	assert.InDelta(t, 540, p.Y, 1e-3)
	assert.Equal(t, int64(0), s.Stats().Rejected)

	s.Dwell(*p, ts)
	assert.Equal(t, "idle", s.Stats().DwellState, "dwell progress from the old mapping must be dropped")
}

func TestSession_StatsTrackDwellState(t *testing.T) {
	s := NewSession(SessionConfig{Tuning: DefaultTuning(), Viewport: fullHD, SourceAspect: 16.0 / 9.0})
	assert.Equal(t, "idle", s.Stats().DwellState)

	for ts := int64(1000); ts <= 1100; ts += 16 {
		p := s.Step(&geom.Point{X: 0.5, Y: 0.5}, ts)
		require.NotNil(t, p)
		s.Dwell(*p, ts)
	}

	stats := s.Stats()
	assert.Equal(t, "arming", stats.DwellState)
	// Armed on the second sample at 1016.
	assert.InDelta(t, 80.0/700.0, stats.DwellProgress, 1e-9)
	assert.Equal(t, int64(1096), stats.LastT)
	assert.Equal(t, int64(7), stats.Frames)
}

func TestTuning_Validate(t *testing.T) {
	require.NoError(t, DefaultTuning().Validate())

	tests := []struct {
		name   string
		mutate func(*Tuning)
	}{
		{"zero alpha", func(t *Tuning) { t.Chain.Alpha = 0 }},
		{"alpha above one", func(t *Tuning) { t.Chain.Alpha = 1.5 }},
		{"zero R", func(t *Tuning) { t.Chain.MeasurementNoise = 0 }},
		{"negative Q", func(t *Tuning) { t.Chain.ProcessNoise = -1 }},
		{"zero jump", func(t *Tuning) { t.Saccade.JumpPx = 0 }},
		{"negative block", func(t *Tuning) { t.Saccade.BlockMs = -1 }},
		{"inverted alpha range", func(t *Tuning) { t.Adaptive.AlphaMin = 0.8 }},
		{"inverted velocity band", func(t *Tuning) { t.Adaptive.VHigh = 0.01 }},
		{"zero dwell", func(t *Tuning) { t.Dwell.DwellMs = 0 }},
		{"zero threshold", func(t *Tuning) { t.Dwell.VThresh = 0 }},
		{"negative refractory", func(t *Tuning) { t.Dwell.RefractoryMs = -5 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tuning := DefaultTuning()
			tt.mutate(&tuning)
			assert.Error(t, tuning.Validate())
		})
	}
}

func TestTuning_JSONRoundTripKeepsDefaults(t *testing.T) {
	data, err := json.Marshal(DefaultTuning())
	require.NoError(t, err)
	assert.Contains(t, string(data), `"ema_alpha":0.2`)
	assert.Contains(t, string(data), `"jump_px":120`)
	assert.Contains(t, string(data), `"dwell_ms":700`)
}

func TestMessage_JSON(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
		want string
	}{
		{"gaze", GazeMessage(&geom.Point{X: 0, Y: 12.5}, 1000), `{"type":"gaze","x":0,"y":12.5,"t":1000}`},
		{"lost", GazeMessage(nil, 1016), `{"type":"gaze","lost":true,"t":1016}`},
		{"dwell", DwellMessage(dwell.Event{X: 5, Y: 6, T: 1720}), `{"type":"dwell","x":5,"y":6,"t":1720}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.msg)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(data))
		})
	}
}

func TestBroadcaster(t *testing.T) {
	b := NewBroadcaster()

	fast, unsubFast := b.Subscribe(4)
	slow, unsubSlow := b.Subscribe(1)
	require.Equal(t, 2, b.Subscribers())

	assert.Equal(t, 2, b.Publish(GazeMessage(&geom.Point{X: 1, Y: 1}, 1)))
	// slow is full now; publishing must not block
	assert.Equal(t, 1, b.Publish(GazeMessage(&geom.Point{X: 2, Y: 2}, 2)))

	assert.Equal(t, int64(1), (<-fast).T)
	assert.Equal(t, int64(2), (<-fast).T)
	assert.Equal(t, int64(1), (<-slow).T)

	unsubSlow()
	unsubSlow()
	assert.Equal(t, 1, b.Subscribers())
	_, open := <-slow
	assert.False(t, open)

	b.Close()
	_, open = <-fast
	assert.False(t, open)
	unsubFast()

	late, _ := b.Subscribe(1)
	_, open = <-late
	assert.False(t, open, "subscribing after Close returns a closed channel")
}
