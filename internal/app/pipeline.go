package app

import (
	"context"
	"time"

	"github.com/ayusman/drishti/internal/detector"
	"github.com/ayusman/drishti/internal/dwell"
	"github.com/ayusman/drishti/internal/gaze"
	"github.com/ayusman/drishti/internal/geom"
	"github.com/ayusman/drishti/internal/log"
	"github.com/ayusman/drishti/internal/plugin"
	"github.com/ayusman/drishti/internal/store"
)

// runPipeline is the driver loop. Each tick it reads one frame, extracts at
// most one gaze sample, runs it through the session and publishes the result.
//
// The loop starts at the active rate. After IdleTimeout without a face it
// drops to the idle rate and only runs motion detection; motion switches
// it back to active.
func (a *App) runPipeline(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	interval := func(fps int) time.Duration { return time.Second / time.Duration(fps) }

	ticker := time.NewTicker(interval(a.config.ActiveFPS))
	defer ticker.Stop()

	lastFace := time.Now()

	setActive := func(active bool) {
		a.active.Store(active)
		fps := a.config.IdleFPS
		if active {
			fps = a.config.ActiveFPS
		}
		a.camera.SetFPS(fps)
		ticker.Reset(interval(fps))
		log.Debug("pipeline mode changed", "active", active, "fps", fps)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if !a.IsEnabled() {
			continue
		}

		if a.tuningChanged.Swap(false) {
			a.replaceSession()
		}
		sess := a.Session()
		if sess == nil {
			continue
		}

		frame, err := a.camera.ReadFrame()
		if err != nil {
			log.Debug("frame read failed", "error", err)
			continue
		}
		if err := a.preview.Update(frame); err != nil {
			log.Debug("preview update failed", "error", err)
		}

		if !a.IsActive() {
			moved, _ := a.motion.Detect(frame)
			if !moved {
				frame.Close()
				continue
			}
			lastFace = time.Now()
			setActive(true)
		}

		faces, err := a.detector.Detect(frame)
		frame.Close()
		if err != nil {
			log.Debug("face detection failed", "error", err)
			faces = nil
		}

		sample := detector.Primary(faces)
		if sample != nil {
			lastFace = time.Now()
		} else if time.Since(lastFace) > a.config.IdleTimeout {
			a.motion.Reset()
			setActive(false)
		}

		a.step(ctx, sess, sample, a.now())
	}
}

// step runs one sample through sess, publishes the point and handles a
// resulting dwell trigger.
func (a *App) step(ctx context.Context, sess *gaze.Session, sample *geom.Point, t int64) {
	p := sess.Step(sample, t)
	a.broadcaster.Publish(gaze.GazeMessage(p, t))
	if p == nil {
		return
	}

	if ev, fired := sess.Dwell(*p, t); fired {
		a.handleDwell(ctx, sess, ev)
	}
}

// replaceSession swaps in a session built from the current tuning.
func (a *App) replaceSession() {
	old := a.Session()
	next := a.startSession(a.Tuning(), old)
	if old != nil {
		a.endSession(old)
	}
	log.Info("tuning applied", "session", next.ID())
}

func (a *App) handleDwell(ctx context.Context, sess *gaze.Session, ev dwell.Event) {
	a.lastDwell.Store(&ev)
	a.broadcaster.Publish(gaze.DwellMessage(ev))
	log.Info("dwell triggered", "session", sess.ID(), "x", ev.X, "y", ev.Y)

	if a.config.Store != nil {
		record := &store.DwellEvent{SessionID: sess.ID(), X: ev.X, Y: ev.Y, T: ev.T}
		if err := a.config.Store.DwellEvents().Create(record); err != nil {
			log.Warn("failed to record dwell event", "session", sess.ID(), "error", err)
		}
	}

	a.mu.RLock()
	onDwell := a.onDwell
	a.mu.RUnlock()
	if onDwell != nil {
		onDwell(ev)
	}

	a.dispatchActions(ctx, ev)
}

// dispatchActions runs every enabled dwell action in its own goroutine so a
// slow plugin never delays the next frame.
func (a *App) dispatchActions(ctx context.Context, ev dwell.Event) {
	if a.config.Store == nil {
		return
	}

	actions, err := a.config.Store.Actions().ForTrigger(store.TriggerDwell)
	if err != nil {
		log.Warn("failed to load dwell actions", "error", err)
		return
	}

	for _, action := range actions {
		p, err := a.pluginMgr.Resolve(action.PluginName, action.ActionName)
		if err != nil {
			log.Warn("dwell action unavailable", "action_id", action.ID, "error", err)
			continue
		}

		req := &plugin.Request{
			Action: action.ActionName,
			Source: plugin.SourceDwell,
			X:      ev.X,
			Y:      ev.Y,
			Config: action.Config,
		}

		a.actions.Add(1)
		go func(p *plugin.Plugin, req *plugin.Request) {
			defer a.actions.Done()
			a.runAction(ctx, p, req)
		}(p, req)
	}
}

func (a *App) runAction(ctx context.Context, p *plugin.Plugin, req *plugin.Request) {
	// Actions outlive a cancelled pipeline only up to the executor timeout.
	resp, err := a.pluginExec.Execute(context.WithoutCancel(ctx), p, req)
	if err != nil {
		log.Warn("plugin action failed", "plugin", p.Manifest.Name, "action", req.Action, "error", err)
		return
	}
	if !resp.Success {
		log.Warn("plugin action reported failure", "plugin", p.Manifest.Name, "action", req.Action, "error", resp.Error)
		return
	}
	log.Debug("plugin action completed", "plugin", p.Manifest.Name, "action", req.Action)
}
