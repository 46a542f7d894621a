package api

import (
	"errors"
	"net/http"

	"github.com/ayusman/drishti/internal/gaze"
	"github.com/ayusman/drishti/internal/log"
	"github.com/ayusman/drishti/internal/store"
)

// TuningHandler serves /api/settings/tuning. Stored tuning survives restarts;
// calibration does not.
type TuningHandler struct {
	store    *store.Store
	pipeline Pipeline
}

// NewTuningHandler creates a TuningHandler. p may be nil, in which case
// changes are only persisted.
func NewTuningHandler(s *store.Store, p Pipeline) *TuningHandler {
	return &TuningHandler{store: s, pipeline: p}
}

// LoadTuning returns the stored tuning, or the defaults when none is stored
// or the stored value no longer validates.
func LoadTuning(s *store.Store) gaze.Tuning {
	t := gaze.DefaultTuning()
	if err := s.Settings().GetJSON(store.SettingTuning, &t); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Warn("ignoring stored tuning", "error", err)
		}
		return gaze.DefaultTuning()
	}
	if err := t.Validate(); err != nil {
		log.Warn("ignoring invalid stored tuning", "error", err)
		return gaze.DefaultTuning()
	}
	return t
}

// ServeHTTP handles GET, PUT and DELETE.
func (h *TuningHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, LoadTuning(h.store))
	case http.MethodPut:
		h.put(w, r)
	case http.MethodDelete:
		h.reset(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// put accepts a partial document: fields not present keep their current value.
func (h *TuningHandler) put(w http.ResponseWriter, r *http.Request) {
	t := LoadTuning(h.store)
	if err := decodeJSON(w, r, &t); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if err := t.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.store.Settings().SetJSON(store.SettingTuning, t); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save tuning")
		return
	}
	h.apply(t)

	writeJSON(w, http.StatusOK, t)
}

func (h *TuningHandler) reset(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Settings().Delete(store.SettingTuning); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset tuning")
		return
	}
	t := gaze.DefaultTuning()
	h.apply(t)

	writeJSON(w, http.StatusOK, t)
}

func (h *TuningHandler) apply(t gaze.Tuning) {
	if h.pipeline != nil {
		h.pipeline.SetTuning(t)
	}
}
