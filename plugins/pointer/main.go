// Command pointer clicks at the screen position of a dwell trigger.
//
// It uses cliclick on macOS and xdotool on Linux.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"runtime"
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

// Options adjust where the click lands. Scale converts gaze pixels to
// display points on HiDPI screens.
type Options struct {
	OffsetX float64 `json:"offset_x"`
	OffsetY float64 `json:"offset_y"`
	Scale   float64 `json:"scale"`
}

var errUnsupported = errors.New("unsupported platform")

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeResponse(fmt.Errorf("failed to decode request: %w", err))
		return
	}
	writeResponse(handle(req))
}

func handle(req Request) error {
	var opts Options
	if len(req.Config) > 0 {
		if err := json.Unmarshal(req.Config, &opts); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
	}

	x, y := target(req.X, req.Y, opts)
	args, err := commandFor(runtime.GOOS, req.Action, x, y)
	if err != nil {
		return err
	}

	out, err := exec.Command(args[0], args[1:]...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s %s: %w: %s", args[0], req.Action, err, out)
	}
	return nil
}

// target applies opts to a gaze point and rounds to whole pixels.
func target(x, y float64, opts Options) (int, int) {
	scale := opts.Scale
	if scale <= 0 {
		scale = 1
	}
	return int(math.Round((x + opts.OffsetX) * scale)), int(math.Round((y + opts.OffsetY) * scale))
}

// commandFor builds the command line for action on goos.
func commandFor(goos, action string, x, y int) ([]string, error) {
	switch goos {
	case "darwin":
		verb := map[string]string{
			"move":         "m",
			"click":        "c",
			"double-click": "dc",
			"right-click":  "rc",
		}[action]
		if verb == "" {
			return nil, fmt.Errorf("unknown action: %s", action)
		}
		return []string{"cliclick", verb + ":" + cliclickCoord(x) + "," + cliclickCoord(y)}, nil

	case "linux":
		move := []string{"xdotool", "mousemove"}
		if x < 0 || y < 0 {
			move = append(move, "--")
		}
		move = append(move, fmt.Sprint(x), fmt.Sprint(y))
		switch action {
		case "move":
			return move, nil
		case "click":
			return append(move, "click", "1"), nil
		case "double-click":
			return append(move, "click", "--repeat", "2", "1"), nil
		case "right-click":
			return append(move, "click", "3"), nil
		}
		return nil, fmt.Errorf("unknown action: %s", action)
	}
	return nil, fmt.Errorf("%w: %s", errUnsupported, goos)
}

func writeResponse(err error) {
	resp := Response{Success: err == nil}
	if err != nil {
		resp.Error = err.Error()
	}
	json.NewEncoder(os.Stdout).Encode(resp)
}

// cliclickCoord formats v for cliclick, which reads a bare leading minus as
// a relative offset and needs "=" for negative absolute positions.
func cliclickCoord(v int) string {
	if v < 0 {
		return fmt.Sprintf("=%d", v)
	}
	return fmt.Sprint(v)
}
