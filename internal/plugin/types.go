// Package plugin discovers external action executables and runs them when
// the gaze pipeline fires a dwell trigger.
package plugin

import "encoding/json"

// SourceDwell marks requests produced by a dwell trigger.
const SourceDwell = "dwell"

// Manifest is the content of a plugin's plugin.json.
type Manifest struct {
	Name         string          `json:"name"`
	Version      string          `json:"version"`
	Description  string          `json:"description"`
	Executable   string          `json:"executable"`
	Actions      []string        `json:"actions"`
	ConfigSchema json.RawMessage `json:"configSchema,omitempty"`
}

// HasAction reports whether the manifest declares the named action.
// A manifest without an action list accepts any action.
func (m Manifest) HasAction(name string) bool {
	if len(m.Actions) == 0 {
		return true
	}
	for _, a := range m.Actions {
		if a == name {
			return true
		}
	}
	return false
}

// Request is written as JSON to the plugin's stdin.
// X and Y are screen pixels of the point that triggered the action.
type Request struct {
	Action string          `json:"action"`
	Source string          `json:"source"`
	X      float64         `json:"x"`
	Y      float64         `json:"y"`
	Config json.RawMessage `json:"config,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Response is read as JSON from the plugin's stdout.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Plugin is a discovered plugin.
type Plugin struct {
	Manifest   Manifest
	Path       string
	Executable string
}
