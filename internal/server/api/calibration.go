package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ayusman/drishti/internal/calibration"
	"github.com/ayusman/drishti/internal/gaze"
	"github.com/ayusman/drishti/internal/geom"
	"github.com/ayusman/drishti/internal/log"
	"github.com/ayusman/drishti/internal/store"
)

// CalibrationHandler serves /api/calibration and its targets and point
// sub-resources.
type CalibrationHandler struct {
	pipeline Pipeline
	store    *store.Store
}

// NewCalibrationHandler creates a CalibrationHandler. s may be nil, in which
// case calibrations are applied but not audited.
func NewCalibrationHandler(p Pipeline, s *store.Store) *CalibrationHandler {
	return &CalibrationHandler{pipeline: p, store: s}
}

// ServeHTTP routes the calibration endpoints.
func (h *CalibrationHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	parts := splitPath(r, "/api/calibration")

	switch {
	case len(parts) == 0:
		switch r.Method {
		case http.MethodGet:
			h.status(w, r)
		case http.MethodPost:
			h.calibrate(w, r)
		case http.MethodDelete:
			h.reset(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	case len(parts) == 1 && parts[0] == "targets":
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.targets(w, r)
	case len(parts) == 1 && parts[0] == "point":
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.point(w, r)
	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

// calibrateRequest carries either pre-averaged samples or raw per-target
// readings; readings win when both are present.
type calibrateRequest struct {
	Samples  []calibration.Sample `json:"samples"`
	Readings []json.RawMessage    `json:"readings"`
}

type calibrationResponse struct {
	SessionID  string               `json:"session_id"`
	Calibrated bool                 `json:"calibrated"`
	Matrix     *calibration.Matrix  `json:"matrix,omitempty"`
	Quality    *calibration.Quality `json:"quality,omitempty"`
}

type targetsResponse struct {
	Viewport gaze.Viewport `json:"viewport"`
	Targets  []geom.Point  `json:"targets"`
}

// session returns the running session or writes 409.
func (h *CalibrationHandler) session(w http.ResponseWriter) *gaze.Session {
	sess := h.pipeline.Session()
	if sess == nil {
		writeError(w, http.StatusConflict, "Tracking is not running")
	}
	return sess
}

func (h *CalibrationHandler) status(w http.ResponseWriter, r *http.Request) {
	sess := h.session(w)
	if sess == nil {
		return
	}
	writeJSON(w, http.StatusOK, calibrationResponse{
		SessionID:  sess.ID(),
		Calibrated: sess.Calibrated(),
		Matrix:     sess.Matrix(),
	})
}

func (h *CalibrationHandler) calibrate(w http.ResponseWriter, r *http.Request) {
	sess := h.session(w)
	if sess == nil {
		return
	}

	var req calibrateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	samples := req.Samples
	if len(req.Readings) > 0 {
		parsed, err := calibration.ParseReadings(req.Readings)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		samples = parsed
	}

	quality, err := sess.Calibrate(samples)
	if err != nil {
		if errors.Is(err, gaze.ErrTooFewSamples) || errors.Is(err, calibration.ErrInsufficientSamples) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to calibrate")
		return
	}

	// A session replaced while the request was in flight forwards the
	// matrix; report and audit against the one that is live now.
	sess = sess.Latest()
	h.audit(sess.ID(), quality)

	writeJSON(w, http.StatusOK, calibrationResponse{
		SessionID:  sess.ID(),
		Calibrated: true,
		Matrix:     sess.Matrix(),
		Quality:    &quality,
	})
}

// audit records the fit diagnostics. Failures are logged only; the
// calibration is already live.
func (h *CalibrationHandler) audit(sessionID string, q calibration.Quality) {
	if h.store == nil {
		return
	}

	entry := &store.CalibrationAudit{
		SessionID:   sessionID,
		Samples:     q.Samples,
		Determinant: q.Determinant,
		Condition:   q.Condition,
		RMSResidual: q.RMSResidual,
		MaxResidual: q.MaxResidual,
		Degenerate:  q.Degenerate,
	}
	if err := h.store.Calibrations().Create(entry); err != nil {
		log.Warn("failed to record calibration", "session", sessionID, "error", err)
		return
	}
	if err := h.store.Sessions().MarkCalibrated(sessionID, true); err != nil {
		log.Warn("failed to mark session calibrated", "session", sessionID, "error", err)
	}
}

func (h *CalibrationHandler) reset(w http.ResponseWriter, r *http.Request) {
	sess := h.session(w)
	if sess == nil {
		return
	}

	sess.ResetCalibration()
	sess = sess.Latest()
	if h.store != nil {
		if err := h.store.Sessions().MarkCalibrated(sess.ID(), false); err != nil && !errors.Is(err, store.ErrNotFound) {
			log.Warn("failed to clear session calibration flag", "session", sess.ID(), "error", err)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CalibrationHandler) targets(w http.ResponseWriter, r *http.Request) {
	sess := h.session(w)
	if sess == nil {
		return
	}

	vp := sess.Viewport()
	writeJSON(w, http.StatusOK, targetsResponse{
		Viewport: vp,
		Targets:  calibration.ScaleTargets(calibration.DefaultTargets, vp.Width, vp.Height),
	})
}

func (h *CalibrationHandler) point(w http.ResponseWriter, r *http.Request) {
	sess := h.session(w)
	if sess == nil {
		return
	}

	p, ok := sess.CalibrationPoint()
	if !ok {
		writeError(w, http.StatusNotFound, "No gaze sample yet")
		return
	}
	writeJSON(w, http.StatusOK, p)
}
