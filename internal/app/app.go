// Package app runs the gaze pipeline: it owns the camera, the detector and
// the current tracking session, and turns dwell triggers into plugin actions.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ayusman/drishti/internal/capture"
	"github.com/ayusman/drishti/internal/detector"
	"github.com/ayusman/drishti/internal/dwell"
	"github.com/ayusman/drishti/internal/gaze"
	"github.com/ayusman/drishti/internal/log"
	"github.com/ayusman/drishti/internal/plugin"
	"github.com/ayusman/drishti/internal/store"
)

// Pipeline timing defaults.
const (
	// ActiveFPS is the frame rate while a face is being tracked.
	ActiveFPS = 30
	// IdleFPS is the frame rate while waiting for motion.
	IdleFPS = 5
	// IdleTimeout is how long the pipeline keeps the active rate without a face.
	IdleTimeout = 5 * time.Second
	// DefaultMotionThreshold is the percentage of changed pixels that wakes the pipeline.
	DefaultMotionThreshold = 1.0
)

// ErrRunning is returned by Start when the pipeline is already running.
var ErrRunning = errors.New("pipeline already running")

// Config holds the application dependencies and settings. Zero values are
// replaced by defaults in New.
type Config struct {
	Store     *store.Store
	PluginDir string

	CameraID int
	Camera   capture.Camera
	Detector detector.Detector
	// DetectorScript overrides the face mesh service location.
	DetectorScript string

	Viewport gaze.Viewport
	Tuning   *gaze.Tuning

	ActiveFPS    int
	IdleFPS      int
	IdleTimeout  time.Duration
	MotionThresh float64

	// DwellPlugin and DwellAction seed a dwell binding when none is stored.
	DwellPlugin   string
	DwellAction   string
	PluginTimeout time.Duration
}

// App is the gaze pointer application.
type App struct {
	config      Config
	camera      capture.Camera
	motion      *capture.MotionDetector
	detector    detector.Detector
	pluginMgr   *plugin.Manager
	pluginExec  *plugin.Executor
	broadcaster *gaze.Broadcaster
	preview     *capture.Preview

	epoch time.Time

	mu       sync.RWMutex
	tuning   gaze.Tuning
	onDwell  func(dwell.Event)
	cancel   context.CancelFunc
	done     chan struct{}
	actions  sync.WaitGroup

	enabled       atomic.Bool
	active        atomic.Bool
	tuningChanged atomic.Bool
	session       atomic.Pointer[gaze.Session]
	lastDwell     atomic.Pointer[dwell.Event]
}

// New creates an App. The detector defaults to the MediaPipe face mesh
// service and falls back to the mock detector when it is not installed.
func New(config Config) *App {
	if config.ActiveFPS <= 0 {
		config.ActiveFPS = ActiveFPS
	}
	if config.IdleFPS <= 0 {
		config.IdleFPS = IdleFPS
	}
	if config.IdleTimeout <= 0 {
		config.IdleTimeout = IdleTimeout
	}
	if config.MotionThresh <= 0 {
		config.MotionThresh = DefaultMotionThreshold
	}
	if config.Viewport.Width <= 0 || config.Viewport.Height <= 0 {
		config.Viewport = gaze.Viewport{Width: 1920, Height: 1080}
	}

	tuning := gaze.DefaultTuning()
	if config.Tuning != nil {
		tuning = *config.Tuning
	}

	a := &App{
		config:      config,
		camera:      config.Camera,
		motion:      capture.NewMotionDetector(config.MotionThresh),
		detector:    config.Detector,
		pluginMgr:   plugin.NewManager(config.PluginDir),
		pluginExec:  plugin.NewExecutor(config.PluginTimeout),
		broadcaster: gaze.NewBroadcaster(),
		preview:     capture.NewPreview(),
		epoch:       time.Now(),
		tuning:      tuning,
	}
	a.enabled.Store(true)

	if a.camera == nil {
		a.camera = capture.NewCamera(config.CameraID)
	}

	if a.detector == nil {
		dc := detector.DefaultConfig()
		dc.Script = config.DetectorScript
		if mp, err := detector.NewMediaPipeDetector(dc); err == nil {
			a.detector = mp
			log.Info("using MediaPipe face mesh detection")
		} else {
			log.Warn("MediaPipe not available, using mock detector", "error", err)
			a.detector = detector.NewMockDetector()
		}
	}

	return a
}

// now returns milliseconds on a monotonic clock anchored at the wall time
// the app was created.
func (a *App) now() int64 {
	return a.epoch.UnixMilli() + time.Since(a.epoch).Milliseconds()
}

// SetEnabled pauses or resumes tracking without closing the camera.
func (a *App) SetEnabled(enabled bool) {
	if a.enabled.Swap(enabled) != enabled {
		log.Info("tracking toggled", "enabled", enabled)
	}
}

// IsEnabled reports whether tracking is enabled.
func (a *App) IsEnabled() bool {
	return a.enabled.Load()
}

// IsActive reports whether the pipeline runs at the active frame rate.
func (a *App) IsActive() bool {
	return a.active.Load()
}

// IsRunning reports whether the pipeline goroutine is running.
func (a *App) IsRunning() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.cancel != nil
}

// Session returns the current tracking session, or nil when stopped.
func (a *App) Session() *gaze.Session {
	return a.session.Load()
}

// Tuning returns the constants the next session will use.
func (a *App) Tuning() gaze.Tuning {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.tuning
}

// SetTuning replaces the pipeline constants. The running session is
// replaced on the next frame; its calibration is carried over.
func (a *App) SetTuning(t gaze.Tuning) {
	a.mu.Lock()
	a.tuning = t
	a.mu.Unlock()
	a.tuningChanged.Store(true)
}

// Recalibrate drops the current calibration so the pointer falls back to
// viewport mapping until the UI posts a new one.
func (a *App) Recalibrate() {
	sess := a.Session()
	if sess == nil {
		return
	}
	sess.ResetCalibration()
	sess = sess.Latest()
	if a.config.Store != nil {
		if err := a.config.Store.Sessions().MarkCalibrated(sess.ID(), false); err != nil {
			log.Warn("failed to clear session calibration flag", "session", sess.ID(), "error", err)
		}
	}
}

// OnDwell registers fn to be called from the pipeline goroutine on every
// dwell trigger. fn must not block.
func (a *App) OnDwell(fn func(dwell.Event)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onDwell = fn
}

// LastDwell returns the most recent dwell trigger.
func (a *App) LastDwell() (dwell.Event, bool) {
	ev := a.lastDwell.Load()
	if ev == nil {
		return dwell.Event{}, false
	}
	return *ev, true
}

// DiscoverPlugins scans the plugin directory.
func (a *App) DiscoverPlugins() error {
	return a.pluginMgr.Discover()
}

// SeedDwellAction stores the configured dwell binding when no dwell action
// exists yet. It reports whether a binding was created.
func (a *App) SeedDwellAction() (bool, error) {
	if a.config.Store == nil || a.config.DwellPlugin == "" || a.config.DwellAction == "" {
		return false, nil
	}

	existing, err := a.config.Store.Actions().ForTrigger(store.TriggerDwell)
	if err != nil {
		return false, fmt.Errorf("list dwell actions: %w", err)
	}
	if len(existing) > 0 {
		return false, nil
	}

	action := &store.Action{
		Trigger:    store.TriggerDwell,
		PluginName: a.config.DwellPlugin,
		ActionName: a.config.DwellAction,
		Enabled:    true,
	}
	if err := a.config.Store.Actions().Create(action); err != nil {
		return false, fmt.Errorf("seed dwell action: %w", err)
	}

	log.Info("seeded dwell action", "plugin", action.PluginName, "action", action.ActionName)
	return true, nil
}

// Start opens the camera, begins a new session and launches the driver
// loop. The loop stops when ctx is cancelled or Stop is called.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cancel != nil {
		return ErrRunning
	}

	if err := a.camera.Open(); err != nil {
		return fmt.Errorf("open camera: %w", err)
	}
	a.camera.SetFPS(a.config.ActiveFPS)
	a.active.Store(true)

	a.startSession(a.tuning, nil)

	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.done = make(chan struct{})
	go a.runPipeline(ctx, a.done)

	log.Info("gaze pipeline started",
		"camera_fps", a.config.ActiveFPS,
		"viewport_width", a.config.Viewport.Width,
		"viewport_height", a.config.Viewport.Height)
	return nil
}

// Stop halts the driver loop, waits for running plugin actions, records
// the session end and closes the camera. It is safe to call when stopped.
func (a *App) Stop() {
	a.mu.Lock()
	cancel, done := a.cancel, a.done
	a.cancel, a.done = nil, nil
	a.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	a.actions.Wait()

	if sess := a.session.Swap(nil); sess != nil {
		a.endSession(sess)
	}

	if err := a.camera.Close(); err != nil {
		log.Warn("error closing camera", "error", err)
	}
	a.motion.Reset()
	a.active.Store(false)

	log.Info("gaze pipeline stopped")
}

// Close stops the pipeline and releases the detector, motion detector and
// broadcaster. The App cannot be restarted afterwards.
func (a *App) Close() error {
	a.Stop()
	a.motion.Close()
	a.broadcaster.Close()
	return a.detector.Close()
}

// startSession creates and publishes a new session. When carry is set, the
// new session takes over its calibration, including calibrations that reach
// carry after the swap. Callers hold a.mu or run on the pipeline goroutine.
func (a *App) startSession(t gaze.Tuning, carry *gaze.Session) *gaze.Session {
	sess := gaze.NewSession(gaze.SessionConfig{
		Tuning:       t,
		Viewport:     a.config.Viewport,
		SourceAspect: capture.Aspect(a.camera),
	})

	recorded := false
	if a.config.Store != nil {
		record := &store.Session{
			ID:             sess.ID(),
			StartedAt:      sess.StartedAt(),
			ViewportWidth:  a.config.Viewport.Width,
			ViewportHeight: a.config.Viewport.Height,
		}
		if err := a.config.Store.Sessions().Create(record); err != nil {
			log.Warn("failed to record session", "session", sess.ID(), "error", err)
		} else {
			recorded = true
		}
	}

	// The row exists before Handoff so a forwarded calibration can be
	// audited against it.
	if carry != nil {
		carry.Handoff(sess)
	}
	if recorded && sess.Calibrated() {
		if err := a.config.Store.Sessions().MarkCalibrated(sess.ID(), true); err != nil {
			log.Warn("failed to mark session calibrated", "session", sess.ID(), "error", err)
		}
	}

	a.session.Store(sess)
	log.Debug("session started", "session", sess.ID(), "calibrated", sess.Calibrated())
	return sess
}

// endSession writes the final counters of sess to the store.
func (a *App) endSession(sess *gaze.Session) {
	if a.config.Store == nil {
		return
	}
	stats := sess.Stats()
	if err := a.config.Store.Sessions().End(sess.ID(), time.Now(), stats.Frames, stats.Rejected); err != nil {
		log.Warn("failed to record session end", "session", sess.ID(), "error", err)
	}
}

// Camera returns the camera.
func (a *App) Camera() capture.Camera {
	return a.camera
}

// Detector returns the face detector.
func (a *App) Detector() detector.Detector {
	return a.detector
}

// PluginManager returns the plugin manager.
func (a *App) PluginManager() *plugin.Manager {
	return a.pluginMgr
}

// Broadcaster returns the publisher of gaze and dwell messages.
func (a *App) Broadcaster() *gaze.Broadcaster {
	return a.broadcaster
}

// Preview returns the camera preview buffer for the MJPEG endpoint.
func (a *App) Preview() *capture.Preview {
	return a.preview
}
