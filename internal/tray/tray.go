// Package tray provides the system tray menu for the Drishti gaze pointer.
package tray

import (
	"fmt"
	"sync"

	"github.com/getlantern/systray"
)

// Tray is the system tray menu.
type Tray struct {
	onToggle      func(enabled bool)
	onRecalibrate func()
	onSettings    func()
	onQuit        func()
	enabled       bool
	mu            sync.RWMutex

	menuToggle    *systray.MenuItem
	menuLastDwell *systray.MenuItem
}

// New creates a Tray with tracking enabled.
func New() *Tray {
	return &Tray{
		enabled: true,
	}
}

// OnToggle sets the callback for the tracking toggle.
func (t *Tray) OnToggle(fn func(enabled bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggle = fn
}

// OnRecalibrate sets the callback for the recalibrate item.
func (t *Tray) OnRecalibrate(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onRecalibrate = fn
}

// OnSettings sets the callback for the settings item.
func (t *Tray) OnSettings(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onSettings = fn
}

// OnQuit sets the callback for the quit item.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the tray event loop. It must be called from the main
// goroutine and blocks until Quit.
func (t *Tray) Run() {
	systray.Run(t.onReady, func() {})
}

// Quit stops the tray event loop.
func (t *Tray) Quit() {
	systray.Quit()
}

func (t *Tray) onReady() {
	systray.SetTitle("Drishti")
	systray.SetTooltip("Drishti gaze pointer")

	t.mu.Lock()
	t.menuToggle = systray.AddMenuItem(toggleTitle(t.enabled), "Toggle gaze tracking")
	systray.AddSeparator()
	t.menuLastDwell = systray.AddMenuItem(LastDwellTitle(0, 0, false), "Last dwell click")
	t.menuLastDwell.Disable()
	t.mu.Unlock()
	systray.AddSeparator()

	menuRecalibrate := systray.AddMenuItem("Recalibrate", "Discard the calibration")
	menuSettings := systray.AddMenuItem("Open Settings...", "Open settings in browser")
	systray.AddSeparator()
	menuQuit := systray.AddMenuItem("Quit", "Quit Drishti")

	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
			case <-menuRecalibrate.ClickedCh:
				t.call(func() func() { return t.onRecalibrate })
			case <-menuSettings.ClickedCh:
				t.call(func() func() { return t.onSettings })
			case <-menuQuit.ClickedCh:
				t.call(func() func() { return t.onQuit })
				systray.Quit()
				return
			}
		}
	}()
}

func (t *Tray) handleToggle() {
	t.mu.Lock()
	t.enabled = !t.enabled
	enabled := t.enabled
	t.menuToggle.SetTitle(toggleTitle(enabled))
	callback := t.onToggle
	t.mu.Unlock()

	// Outside the lock; the callback may call back into the tray.
	if callback != nil {
		callback(enabled)
	}
}

// call runs the callback returned by get under a read lock.
func (t *Tray) call(get func() func()) {
	t.mu.RLock()
	callback := get()
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

// SetLastDwell shows the position of the latest dwell click.
func (t *Tray) SetLastDwell(x, y float64) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.menuLastDwell != nil {
		t.menuLastDwell.SetTitle(LastDwellTitle(x, y, true))
	}
}

// IsEnabled returns the current toggle state.
func (t *Tray) IsEnabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.enabled
}

func toggleTitle(enabled bool) string {
	if enabled {
		return "● Tracking"
	}
	return "○ Paused"
}

// LastDwellTitle formats the last-dwell menu entry.
func LastDwellTitle(x, y float64, ok bool) string {
	if !ok {
		return "Last click: none"
	}
	return fmt.Sprintf("Last click: %.0f, %.0f", x, y)
}
