// Package config loads drishti's runtime settings from the environment and
// an optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Defaults.
const (
	DefaultListenAddr     = "127.0.0.1:8080"
	DefaultViewportWidth  = 1920
	DefaultViewportHeight = 1080
	DefaultActiveFPS      = 30
	DefaultIdleFPS        = 5
	DefaultIdleTimeout    = 5 * time.Second
	DefaultMotionThresh   = 1.0
)

// Config holds the process-level settings. Pipeline tuning lives in
// gaze.Tuning and is stored separately.
type Config struct {
	ListenAddr  string
	DataDir     string
	PluginDir   string
	StaticDir   string
	LogLevel    string
	Environment string

	CameraID       int
	ViewportWidth  int
	ViewportHeight int
	ActiveFPS      int
	IdleFPS        int
	IdleTimeout    time.Duration
	MotionThresh   float64

	DetectorScript string
	EnableStream   bool
	EnableTray     bool

	// Default dwell binding, installed when the store has none.
	DwellPlugin string
	DwellAction string
}

// IsProduction reports whether logs should be machine readable.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// DBPath returns the SQLite database location.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "drishti.db")
}

// Load reads envFiles (".env" when none are given) and then the process
// environment. Process variables win over file values, earlier files win
// over later ones. Missing files are ignored.
func Load(envFiles ...string) (*Config, error) {
	vars, err := readEnvFiles(envFiles)
	if err != nil {
		return nil, err
	}
	e := env{file: vars}

	dataDir := e.getEnv("DRISHTI_DATA_DIR", "")
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".drishti")
	}

	cfg := &Config{
		ListenAddr:     e.getEnv("DRISHTI_ADDR", DefaultListenAddr),
		DataDir:        dataDir,
		PluginDir:      e.getEnv("DRISHTI_PLUGIN_DIR", filepath.Join(dataDir, "plugins")),
		StaticDir:      e.getEnv("DRISHTI_STATIC_DIR", ""),
		LogLevel:       e.getEnv("DRISHTI_LOG_LEVEL", "info"),
		Environment:    e.getEnv("DRISHTI_ENV", "development"),
		CameraID:       e.getEnvInt("DRISHTI_CAMERA", 0),
		ViewportWidth:  e.getEnvInt("DRISHTI_VIEWPORT_WIDTH", DefaultViewportWidth),
		ViewportHeight: e.getEnvInt("DRISHTI_VIEWPORT_HEIGHT", DefaultViewportHeight),
		ActiveFPS:      e.getEnvInt("DRISHTI_FPS", DefaultActiveFPS),
		IdleFPS:        e.getEnvInt("DRISHTI_IDLE_FPS", DefaultIdleFPS),
		IdleTimeout:    time.Duration(e.getEnvInt("DRISHTI_IDLE_TIMEOUT_MS", int(DefaultIdleTimeout/time.Millisecond))) * time.Millisecond,
		MotionThresh:   e.getEnvFloat("DRISHTI_MOTION_THRESHOLD", DefaultMotionThresh),
		DetectorScript: e.getEnv("DRISHTI_DETECTOR_SCRIPT", ""),
		EnableStream:   e.getEnvBool("DRISHTI_STREAM", false),
		EnableTray:     e.getEnvBool("DRISHTI_TRAY", true),
		DwellPlugin:    e.getEnv("DRISHTI_DWELL_PLUGIN", ""),
		DwellAction:    e.getEnv("DRISHTI_DWELL_ACTION", ""),
	}

	if err := errors.Join(append(e.errs, cfg.Validate())...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the numeric ranges.
func (c *Config) Validate() error {
	switch {
	case c.ViewportWidth <= 0 || c.ViewportHeight <= 0:
		return fmt.Errorf("viewport must be positive, got %dx%d", c.ViewportWidth, c.ViewportHeight)
	case c.ActiveFPS <= 0 || c.IdleFPS <= 0:
		return fmt.Errorf("frame rates must be positive, got active=%d idle=%d", c.ActiveFPS, c.IdleFPS)
	case c.IdleFPS > c.ActiveFPS:
		return fmt.Errorf("idle fps %d exceeds active fps %d", c.IdleFPS, c.ActiveFPS)
	case c.IdleTimeout < 0:
		return fmt.Errorf("idle timeout must not be negative, got %s", c.IdleTimeout)
	case (c.DwellPlugin == "") != (c.DwellAction == ""):
		return errors.New("DRISHTI_DWELL_PLUGIN and DRISHTI_DWELL_ACTION must be set together")
	}
	return nil
}

func readEnvFiles(files []string) (map[string]string, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}

	merged := make(map[string]string)
	for _, f := range files {
		vars, err := godotenv.Read(f)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f, err)
		}
		for k, v := range vars {
			if _, ok := merged[k]; !ok {
				merged[k] = v
			}
		}
	}
	return merged, nil
}

type env struct {
	file map[string]string
	errs []error
}

func (e *env) lookup(key string) (string, bool) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v, true
	}
	v, ok := e.file[key]
	return v, ok && v != ""
}

func (e *env) getEnv(key, defaultVal string) string {
	if v, ok := e.lookup(key); ok {
		return v
	}
	return defaultVal
}

func (e *env) getEnvInt(key string, defaultVal int) int {
	v, ok := e.lookup(key)
	if !ok {
		return defaultVal
	}
	i, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: invalid integer %q", key, v))
		return defaultVal
	}
	return i
}

func (e *env) getEnvFloat(key string, defaultVal float64) float64 {
	v, ok := e.lookup(key)
	if !ok {
		return defaultVal
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: invalid number %q", key, v))
		return defaultVal
	}
	return f
}

func (e *env) getEnvBool(key string, defaultVal bool) bool {
	v, ok := e.lookup(key)
	if !ok {
		return defaultVal
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: invalid boolean %q", key, v))
		return defaultVal
	}
	return b
}
