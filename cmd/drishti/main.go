// Command drishti runs the gaze pointer: the camera pipeline, the settings
// server and, on desktops, the tray menu.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/ayusman/drishti/internal/app"
	"github.com/ayusman/drishti/internal/config"
	"github.com/ayusman/drishti/internal/dwell"
	"github.com/ayusman/drishti/internal/gaze"
	"github.com/ayusman/drishti/internal/log"
	"github.com/ayusman/drishti/internal/server"
	"github.com/ayusman/drishti/internal/server/api"
	"github.com/ayusman/drishti/internal/store"
	"github.com/ayusman/drishti/internal/tray"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log.Init(cfg.LogLevel, cfg.IsProduction())

	if err := run(cfg); err != nil {
		log.Error("drishti exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	st, err := store.New(cfg.DBPath())
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	tuning := api.LoadTuning(st)
	a := app.New(app.Config{
		Store:          st,
		PluginDir:      cfg.PluginDir,
		CameraID:       cfg.CameraID,
		DetectorScript: cfg.DetectorScript,
		Viewport:       gaze.Viewport{Width: float64(cfg.ViewportWidth), Height: float64(cfg.ViewportHeight)},
		Tuning:         &tuning,
		ActiveFPS:      cfg.ActiveFPS,
		IdleFPS:        cfg.IdleFPS,
		IdleTimeout:    cfg.IdleTimeout,
		MotionThresh:   cfg.MotionThresh,
		DwellPlugin:    cfg.DwellPlugin,
		DwellAction:    cfg.DwellAction,
	})
	defer a.Close()

	if err := a.DiscoverPlugins(); err != nil {
		log.Warn("plugin discovery failed", "dir", cfg.PluginDir, "error", err)
	}
	if _, err := a.SeedDwellAction(); err != nil {
		log.Warn("could not seed dwell action", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Start(ctx); err != nil {
		return err
	}

	staticDir := cfg.StaticDir
	if staticDir == "" {
		staticDir = findWebDir(cfg.DataDir)
	}
	if staticDir != "" {
		log.Info("serving static files", "dir", staticDir)
	}

	srvCfg := server.Config{
		StaticDir:   staticDir,
		Store:       st,
		Pipeline:    a,
		Broadcaster: a.Broadcaster(),
		Plugins:     a.PluginManager(),
	}
	if cfg.EnableStream {
		srvCfg.Preview = a.Preview()
	}
	srv := server.New(srvCfg)

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting server", "addr", cfg.ListenAddr)
		errCh <- srv.Run(ctx, cfg.ListenAddr)
	}()

	if cfg.EnableTray {
		runTray(ctx, stop, a, "http://"+cfg.ListenAddr)
		stop()
		err = <-errCh
	} else {
		select {
		case err = <-errCh:
		case <-ctx.Done():
			err = <-errCh
		}
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

// runTray blocks in the tray event loop until Quit is chosen or ctx ends.
func runTray(ctx context.Context, stop context.CancelFunc, a *app.App, settingsURL string) {
	t := tray.New()
	t.OnToggle(a.SetEnabled)
	t.OnRecalibrate(a.Recalibrate)
	t.OnSettings(func() { openBrowser(settingsURL) })
	t.OnQuit(stop)

	a.OnDwell(func(ev dwell.Event) {
		t.SetLastDwell(ev.X, ev.Y)
	})

	go func() {
		<-ctx.Done()
		t.Quit()
	}()
	t.Run()
}

func openBrowser(url string) {
	var cmd string
	var args []string

	switch runtime.GOOS {
	case "darwin":
		cmd = "open"
		args = []string{url}
	case "linux":
		cmd = "xdg-open"
		args = []string{url}
	case "windows":
		cmd = "cmd"
		args = []string{"/c", "start", url}
	default:
		log.Warn("unsupported platform for browser launch", "os", runtime.GOOS)
		return
	}

	c := exec.Command(cmd, args...)
	if err := c.Start(); err != nil {
		log.Warn("failed to open browser", "error", err)
		return
	}
	go c.Wait()
}

// findWebDir returns the first web directory found next to the working
// directory or inside dataDir, or "" when there is none.
func findWebDir(dataDir string) string {
	for _, p := range []string{"web", "../web", "../../web"} {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}

	p := filepath.Join(dataDir, "web")
	if info, err := os.Stat(p); err == nil && info.IsDir() {
		return p
	}
	return ""
}
