package gaze

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/ayusman/drishti/internal/calibration"
	"github.com/ayusman/drishti/internal/dwell"
	"github.com/ayusman/drishti/internal/filter"
	"github.com/ayusman/drishti/internal/geom"
	"github.com/ayusman/drishti/internal/log"
)

// MinCalibrationSamples is the number of calibration targets a session
// requires before it will fit, one more than the solver minimum.
const MinCalibrationSamples = 4

// ErrTooFewSamples is returned by Calibrate below MinCalibrationSamples.
var ErrTooFewSamples = errors.New("too few calibration samples")

// SessionConfig configures a tracking session.
type SessionConfig struct {
	Tuning       Tuning
	Viewport     Viewport
	SourceAspect float64 // camera width / height; <= 0 means same as viewport

	// Calibration, when set, is installed before the first frame. It lets a
	// replacement session keep the user's calibration.
	Calibration *calibration.Matrix
}

// Session owns the per-session filter state and the current calibration.
//
// Step and Dwell must be called from a single goroutine (the frame driver).
// Calibrate, ResetCalibration, Calibrated and CalibrationPoint are safe to
// call from any goroutine.
//
// Once Handoff has named a successor, calibration changes made through the
// session are applied to the successor as well.
type Session struct {
	id        string
	startedAt time.Time
	cfg       SessionConfig
	logger    *slog.Logger

	chain    *filter.Chain
	saccade  *filter.SaccadeGuard
	smoother *filter.AdaptiveSmoother
	dwell    *dwell.Engine

	// mapped is the matrix the screen-space stages were last fed with; it
	// is only touched by Step.
	mapped *calibration.Matrix

	// calMu serializes matrix writes with successor.
	calMu     sync.Mutex
	successor *Session

	matrix        atomic.Pointer[calibration.Matrix]
	normalized    atomic.Pointer[geom.Point]
	frames        atomic.Int64
	rejected      atomic.Int64
	lastT         atomic.Int64
	dwellState    atomic.Int32
	dwellProgress atomic.Uint64
}

// NewSession creates a session with fresh filter state and no calibration.
func NewSession(cfg SessionConfig) *Session {
	id := uuid.New().String()
	s := &Session{
		id:        id,
		startedAt: time.Now(),
		cfg:       cfg,
		logger:    log.With("session", id),
		chain:     filter.NewChain(cfg.Tuning.Chain),
		saccade:   filter.NewSaccadeGuard(cfg.Tuning.Saccade),
		smoother:  filter.NewAdaptiveSmoother(cfg.Tuning.Adaptive),
		dwell:     dwell.NewEngine(cfg.Tuning.Dwell),
	}
	if cfg.Calibration != nil {
		m := *cfg.Calibration
		s.matrix.Store(&m)
		s.mapped = &m
	}
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// StartedAt returns when the session was created.
func (s *Session) StartedAt() time.Time { return s.startedAt }

// Viewport returns the screen area the session maps onto.
func (s *Session) Viewport() Viewport { return s.cfg.Viewport }

// Tuning returns the constants the session was built with.
func (s *Session) Tuning() Tuning { return s.cfg.Tuning }

// Step runs one detector sample observed at t ms through the pipeline and
// returns the published screen point. A nil sample (no face this frame) or a
// rejected jump yields nil.
func (s *Session) Step(sample *geom.Point, t int64) *geom.Point {
	s.frames.Add(1)
	s.lastT.Store(t)
	if sample == nil {
		return nil
	}

	filtered := s.chain.Next(sample.X, sample.Y)
	s.normalized.Store(&filtered)

	m := s.matrix.Load()
	if m != s.mapped {
		s.restartScreenStages()
		s.mapped = m
	}
	mapped := Map(filtered, m, s.cfg.Viewport, s.cfg.SourceAspect)

	accepted, ok := s.saccade.Accept(mapped, t)
	if !ok {
		s.rejected.Add(1)
		return nil
	}

	out := s.smoother.Update(accepted, t)
	return &out
}

// restartScreenStages drops the pixel-space history after the mapping
// changed. Without it the saccade guard would reject every point that the
// new matrix places more than JumpPx away from the old one.
func (s *Session) restartScreenStages() {
	s.saccade = filter.NewSaccadeGuard(s.cfg.Tuning.Saccade)
	s.smoother = filter.NewAdaptiveSmoother(s.cfg.Tuning.Adaptive)
	s.dwell = dwell.NewEngine(s.cfg.Tuning.Dwell)
	s.logger.Debug("mapping changed, screen stages restarted")
}

// Dwell feeds a published point to the dwell engine.
func (s *Session) Dwell(p geom.Point, t int64) (dwell.Event, bool) {
	ev, fired := s.dwell.Update(p.X, p.Y, t)
	s.dwellState.Store(int32(s.dwell.State(t)))
	s.dwellProgress.Store(math.Float64bits(s.dwell.Progress(t)))
	return ev, fired
}

// Calibrate fits a new matrix from samples and installs it. A degenerate
// layout still installs the fit but is logged and reported in the quality.
func (s *Session) Calibrate(samples []calibration.Sample) (calibration.Quality, error) {
	if len(samples) < MinCalibrationSamples {
		return calibration.Quality{}, fmt.Errorf("%w: got %d, need at least %d",
			ErrTooFewSamples, len(samples), MinCalibrationSamples)
	}

	m, q, err := calibration.FitWithQuality(samples)
	if err != nil {
		return calibration.Quality{}, fmt.Errorf("fit calibration: %w", err)
	}

	if q.Degenerate {
		s.logger.Warn("calibration layout is near-degenerate",
			"samples", q.Samples,
			"determinant", q.Determinant,
			"condition", q.Condition)
	}

	s.install(&m)
	s.logger.Info("calibration installed",
		"samples", q.Samples,
		"rms_px", q.RMSResidual,
		"max_px", q.MaxResidual)

	return q, nil
}

// ResetCalibration drops the matrix; mapping returns to the viewport fallback.
func (s *Session) ResetCalibration() {
	if s.install(nil) != nil {
		s.logger.Info("calibration cleared")
	}
}

// install stores m on s and its successors and returns the matrix it
// replaced on s. Installed matrices are never mutated, so successors share m.
func (s *Session) install(m *calibration.Matrix) *calibration.Matrix {
	s.calMu.Lock()
	defer s.calMu.Unlock()

	prev := s.matrix.Swap(m)
	if s.successor != nil {
		s.successor.install(m)
	}
	return prev
}

// Handoff makes next the successor of s: next takes the current calibration
// of s, and any later Calibrate or ResetCalibration on s reaches next too.
// next must not be visible to other goroutines yet.
func (s *Session) Handoff(next *Session) {
	s.calMu.Lock()
	defer s.calMu.Unlock()

	s.successor = next
	next.install(s.matrix.Load())
}

// Latest follows Handoff links and returns the newest session.
func (s *Session) Latest() *Session {
	s.calMu.Lock()
	next := s.successor
	s.calMu.Unlock()

	if next == nil {
		return s
	}
	return next.Latest()
}

// Calibrated reports whether a matrix is installed.
func (s *Session) Calibrated() bool {
	return s.matrix.Load() != nil
}

// Matrix returns a copy of the installed matrix, or nil.
func (s *Session) Matrix() *calibration.Matrix {
	m := s.matrix.Load()
	if m == nil {
		return nil
	}
	c := *m
	return &c
}

// CalibrationPoint returns the latest filtered normalized point, which is
// what a calibration UI records against each on-screen target.
func (s *Session) CalibrationPoint() (geom.Point, bool) {
	p := s.normalized.Load()
	if p == nil {
		return geom.Point{}, false
	}
	return *p, true
}

// Stats is a snapshot of per-session counters.
type Stats struct {
	Frames        int64   `json:"frames"`
	Rejected      int64   `json:"rejected"`
	Calibrated    bool    `json:"calibrated"`
	LastT         int64   `json:"last_t"`
	DwellState    string  `json:"dwell_state"`
	DwellProgress float64 `json:"dwell_progress"` // in [0, 1]
}

// Stats returns the frame counters. It is safe to call from any goroutine;
// the dwell fields are the ones recorded after the last Dwell call.
func (s *Session) Stats() Stats {
	return Stats{
		Frames:        s.frames.Load(),
		Rejected:      s.rejected.Load(),
		Calibrated:    s.Calibrated(),
		LastT:         s.lastT.Load(),
		DwellState:    dwell.State(s.dwellState.Load()).String(),
		DwellProgress: math.Float64frombits(s.dwellProgress.Load()),
	}
}
