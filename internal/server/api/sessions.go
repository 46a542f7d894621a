package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/ayusman/drishti/internal/gaze"
	"github.com/ayusman/drishti/internal/store"
)

// DefaultSessionLimit caps GET /api/sessions when no limit is given.
const DefaultSessionLimit = 50

// SessionHandler serves session history and the live session summary.
type SessionHandler struct {
	store    *store.Store
	pipeline Pipeline
}

// NewSessionHandler creates a SessionHandler. p may be nil when no pipeline
// is running, in which case /api/sessions/current returns 404.
func NewSessionHandler(s *store.Store, p Pipeline) *SessionHandler {
	return &SessionHandler{store: s, pipeline: p}
}

// ServeHTTP routes /api/sessions, /api/sessions/current,
// /api/sessions/{id}, /api/sessions/{id}/events and
// /api/sessions/{id}/calibrations.
func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	parts := splitPath(r, "/api/sessions")
	switch {
	case len(parts) == 0:
		h.list(w, r)
	case len(parts) == 1 && parts[0] == "current":
		h.current(w, r)
	case len(parts) == 1:
		h.get(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "events":
		h.events(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "calibrations":
		h.calibrations(w, r, parts[0])
	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

type sessionResponse struct {
	ID             string  `json:"id"`
	StartedAt      string  `json:"started_at"`
	EndedAt        *string `json:"ended_at,omitempty"`
	ViewportWidth  float64 `json:"viewport_width"`
	ViewportHeight float64 `json:"viewport_height"`
	Calibrated     bool    `json:"calibrated"`
	Frames         int64   `json:"frames"`
	Rejected       int64   `json:"rejected"`
}

type listSessionsResponse struct {
	Sessions []sessionResponse `json:"sessions"`
}

type currentSessionResponse struct {
	ID        string        `json:"id"`
	StartedAt string        `json:"started_at"`
	Viewport  gaze.Viewport `json:"viewport"`
	Stats     gaze.Stats    `json:"stats"`
}

type eventsResponse struct {
	SessionID string             `json:"session_id"`
	Events    []store.DwellEvent `json:"events"`
}

type calibrationsResponse struct {
	SessionID    string                   `json:"session_id"`
	Calibrations []store.CalibrationAudit `json:"calibrations"`
}

func toSessionResponse(s *store.Session) sessionResponse {
	resp := sessionResponse{
		ID:             s.ID,
		StartedAt:      s.StartedAt.Format(timeLayout),
		ViewportWidth:  s.ViewportWidth,
		ViewportHeight: s.ViewportHeight,
		Calibrated:     s.Calibrated,
		Frames:         s.Frames,
		Rejected:       s.Rejected,
	}
	if s.EndedAt != nil {
		ended := s.EndedAt.Format(timeLayout)
		resp.EndedAt = &ended
	}
	return resp
}

func (h *SessionHandler) list(w http.ResponseWriter, r *http.Request) {
	limit := DefaultSessionLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	sessions, err := h.store.Sessions().List(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list sessions")
		return
	}

	response := listSessionsResponse{Sessions: make([]sessionResponse, 0, len(sessions))}
	for _, s := range sessions {
		response.Sessions = append(response.Sessions, toSessionResponse(s))
	}
	writeJSON(w, http.StatusOK, response)
}

func (h *SessionHandler) current(w http.ResponseWriter, r *http.Request) {
	var sess *gaze.Session
	if h.pipeline != nil {
		sess = h.pipeline.Session()
	}
	if sess == nil {
		writeError(w, http.StatusNotFound, "Tracking is not running")
		return
	}

	writeJSON(w, http.StatusOK, currentSessionResponse{
		ID:        sess.ID(),
		StartedAt: sess.StartedAt().Format(timeLayout),
		Viewport:  sess.Viewport(),
		Stats:     sess.Stats(),
	})
}

// lookup writes 404/500 and returns nil when the session cannot be loaded.
func (h *SessionHandler) lookup(w http.ResponseWriter, id string) *store.Session {
	s, err := h.store.Sessions().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Session not found")
			return nil
		}
		writeError(w, http.StatusInternalServerError, "Failed to get session")
		return nil
	}
	return s
}

func (h *SessionHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	if s := h.lookup(w, id); s != nil {
		writeJSON(w, http.StatusOK, toSessionResponse(s))
	}
}

func (h *SessionHandler) events(w http.ResponseWriter, r *http.Request, id string) {
	if h.lookup(w, id) == nil {
		return
	}

	events, err := h.store.DwellEvents().ListBySession(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list events")
		return
	}
	if events == nil {
		events = []store.DwellEvent{}
	}
	writeJSON(w, http.StatusOK, eventsResponse{SessionID: id, Events: events})
}

func (h *SessionHandler) calibrations(w http.ResponseWriter, r *http.Request, id string) {
	if h.lookup(w, id) == nil {
		return
	}

	audits, err := h.store.Calibrations().ListBySession(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list calibrations")
		return
	}
	if audits == nil {
		audits = []store.CalibrationAudit{}
	}
	writeJSON(w, http.StatusOK, calibrationsResponse{SessionID: id, Calibrations: audits})
}
