// Package api provides the HTTP handlers behind the drishti REST endpoints.
package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/ayusman/drishti/internal/gaze"
)

// Pipeline is the live tracking state the handlers read and control.
type Pipeline interface {
	// Session returns the running session, or nil while tracking is off.
	Session() *gaze.Session
	// SetTuning replaces the pipeline constants; the next session uses them.
	SetTuning(t gaze.Tuning)
}

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
}

// splitPath trims prefix from the request path and returns the remaining
// slash-separated segments.
func splitPath(r *http.Request, prefix string) []string {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, prefix), "/")
	if rest == "" {
		return nil
	}
	return strings.Split(rest, "/")
}

const timeLayout = "2006-01-02T15:04:05Z07:00"
