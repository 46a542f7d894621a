// Command keyboard sends a keystroke when a dwell fires, via AppleScript on
// macOS and xdotool on Linux. The key comes from the binding config, so one
// plugin serves any number of on-screen keys.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// Request is the executor input.
type Request struct {
	Action string          `json:"action"`
	Source string          `json:"source"`
	X      float64         `json:"x"`
	Y      float64         `json:"y"`
	Config json.RawMessage `json:"config"`
	Params json.RawMessage `json:"params"`
}

// Response is the executor output.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Keystroke is a key with optional modifiers (command, option, control, shift).
type Keystroke struct {
	Key       string   `json:"key"`
	Modifiers []string `json:"modifiers"`
}

var appleModifiers = map[string]string{
	"command": "command down",
	"cmd":     "command down",
	"option":  "option down",
	"alt":     "option down",
	"control": "control down",
	"ctrl":    "control down",
	"shift":   "shift down",
}

var xdoModifiers = map[string]string{
	"command": "super",
	"cmd":     "super",
	"option":  "alt",
	"alt":     "alt",
	"control": "ctrl",
	"ctrl":    "ctrl",
	"shift":   "shift",
}

var errNoKey = errors.New("key is required")

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeResponse(fmt.Errorf("failed to decode request: %w", err))
		return
	}
	writeResponse(handle(req))
}

func handle(req Request) error {
	switch req.Action {
	case "keystroke", "shortcut":
	default:
		return fmt.Errorf("unknown action: %s", req.Action)
	}

	ks, err := resolveKeystroke(req)
	if err != nil {
		return err
	}

	args, err := commandFor(runtime.GOOS, ks)
	if err != nil {
		return err
	}
	out, err := exec.Command(args[0], args[1:]...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, out)
	}
	return nil
}

// resolveKeystroke reads the keystroke from params, falling back to the
// binding config.
func resolveKeystroke(req Request) (Keystroke, error) {
	var ks Keystroke
	for _, raw := range []json.RawMessage{req.Params, req.Config} {
		if len(raw) == 0 {
			continue
		}
		if err := json.Unmarshal(raw, &ks); err != nil {
			return Keystroke{}, fmt.Errorf("failed to parse keystroke: %w", err)
		}
		if ks.Key != "" {
			return ks, nil
		}
	}
	return Keystroke{}, errNoKey
}

func commandFor(goos string, ks Keystroke) ([]string, error) {
	switch goos {
	case "darwin":
		return []string{"osascript", "-e", appleScript(ks)}, nil
	case "linux":
		combo := make([]string, 0, len(ks.Modifiers)+1)
		for _, m := range ks.Modifiers {
			if mod, ok := xdoModifiers[strings.ToLower(m)]; ok {
				combo = append(combo, mod)
			}
		}
		combo = append(combo, ks.Key)
		return []string{"xdotool", "key", strings.Join(combo, "+")}, nil
	}
	return nil, fmt.Errorf("unsupported platform: %s", goos)
}

func appleScript(ks Keystroke) string {
	var mods []string
	for _, m := range ks.Modifiers {
		if mod, ok := appleModifiers[strings.ToLower(m)]; ok {
			mods = append(mods, mod)
		}
	}

	key := strings.ReplaceAll(ks.Key, `"`, `\"`)
	if len(mods) == 0 {
		return fmt.Sprintf(`tell application "System Events" to keystroke "%s"`, key)
	}
	return fmt.Sprintf(`tell application "System Events" to keystroke "%s" using {%s}`, key, strings.Join(mods, ", "))
}

func writeResponse(err error) {
	resp := Response{Success: err == nil}
	if err != nil {
		resp.Error = err.Error()
	}
	json.NewEncoder(os.Stdout).Encode(resp)
}
