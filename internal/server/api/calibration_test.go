package api

import (
	"math"
	"net/http"
	"testing"

	"github.com/ayusman/drishti/internal/calibration"
	"github.com/ayusman/drishti/internal/geom"
)

func viewportSamples() []calibration.Sample {
	samples := make([]calibration.Sample, len(calibration.DefaultTargets))
	for i, p := range calibration.DefaultTargets {
		samples[i] = calibration.Sample{
			Raw:    p,
			Screen: geom.Point{X: p.X * 1920, Y: p.Y * 1080},
		}
	}
	return samples
}

func TestCalibrationHandler_Calibrate(t *testing.T) {
	s := newTestStore(t)
	p := newFakePipeline()
	persistSession(t, s, p.sess)
	h := NewCalibrationHandler(p, s)

	rec := do(t, h, http.MethodPost, "/api/calibration", calibrateRequest{Samples: viewportSamples()})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}

	var resp calibrationResponse
	decode(t, rec, &resp)
	if !resp.Calibrated || resp.Matrix == nil || resp.Quality == nil {
		t.Fatalf("incomplete response: %+v", resp)
	}
	if math.Abs(resp.Matrix.AX-1920) > 1e-2 || math.Abs(resp.Matrix.BY-1080) > 1e-2 {
		t.Errorf("unexpected matrix %+v", resp.Matrix)
	}
	if resp.Quality.Samples != 5 || resp.Quality.Degenerate {
		t.Errorf("unexpected quality %+v", resp.Quality)
	}
	if !p.sess.Calibrated() {
		t.Error("session should be calibrated")
	}

	audits, err := s.Calibrations().ListBySession(p.sess.ID())
	if err != nil || len(audits) != 1 {
		t.Fatalf("expected 1 audit, got %d (%v)", len(audits), err)
	}
	stored, err := s.Sessions().GetByID(p.sess.ID())
	if err != nil || !stored.Calibrated {
		t.Errorf("stored session not marked calibrated: %+v, %v", stored, err)
	}

	rec = do(t, h, http.MethodGet, "/api/calibration", nil)
	var status calibrationResponse
	decode(t, rec, &status)
	if !status.Calibrated || status.Matrix == nil || status.SessionID != p.sess.ID() {
		t.Errorf("unexpected status %+v", status)
	}
}

func TestCalibrationHandler_Readings(t *testing.T) {
	p := newFakePipeline()
	h := NewCalibrationHandler(p, nil)

	body := `{"readings":[
		{"screen":{"x":192,"y":108},"raw":[{"x":0.09,"y":0.1},{"x":0.11,"y":0.1}]},
		{"screen":{"x":1728,"y":108},"raw":[{"x":0.9,"y":0.1}]},
		{"screen":{"x":960,"y":540},"raw":[{"x":0.5,"y":0.5}]},
		{"screen":{"x":192,"y":972},"raw":[{"x":0.1,"y":0.9}]},
		{"screen":{"x":1728,"y":972},"raw":[{"x":0.9,"y":0.9}]}
	]}`
	rec := do(t, h, http.MethodPost, "/api/calibration", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}
	if !p.sess.Calibrated() {
		t.Error("session should be calibrated")
	}
}

func TestCalibrationHandler_Errors(t *testing.T) {
	tests := []struct {
		name string
		body any
		want int
	}{
		{"invalid json", `{"samples":`, http.StatusBadRequest},
		{"too few samples", calibrateRequest{Samples: viewportSamples()[:3]}, http.StatusBadRequest},
		{"no samples", `{}`, http.StatusBadRequest},
		{"bad readings", `{"readings":[{"screen":{"x":1,"y":1},"raw":[]}]}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newFakePipeline()
			rec := do(t, NewCalibrationHandler(p, nil), http.MethodPost, "/api/calibration", tt.body)
			if rec.Code != tt.want {
				t.Errorf("expected status %d, got %d", tt.want, rec.Code)
			}
			if p.sess.Calibrated() {
				t.Error("failed request must not install a matrix")
			}
		})
	}
}

func TestCalibrationHandler_Reset(t *testing.T) {
	s := newTestStore(t)
	p := newFakePipeline()
	persistSession(t, s, p.sess)
	h := NewCalibrationHandler(p, s)

	do(t, h, http.MethodPost, "/api/calibration", calibrateRequest{Samples: viewportSamples()})

	rec := do(t, h, http.MethodDelete, "/api/calibration", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected status %d, got %d", http.StatusNoContent, rec.Code)
	}
	if p.sess.Calibrated() {
		t.Error("matrix should be cleared")
	}
	stored, _ := s.Sessions().GetByID(p.sess.ID())
	if stored.Calibrated {
		t.Error("stored session should no longer be calibrated")
	}
}

func TestCalibrationHandler_Targets(t *testing.T) {
	h := NewCalibrationHandler(newFakePipeline(), nil)

	rec := do(t, h, http.MethodGet, "/api/calibration/targets", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	var resp targetsResponse
	decode(t, rec, &resp)
	if len(resp.Targets) != 5 {
		t.Fatalf("expected 5 targets, got %d", len(resp.Targets))
	}
	if resp.Targets[2] != (geom.Point{X: 960, Y: 540}) {
		t.Errorf("centre target = %+v", resp.Targets[2])
	}
	if resp.Viewport.Width != 1920 {
		t.Errorf("viewport = %+v", resp.Viewport)
	}
}

func TestCalibrationHandler_Point(t *testing.T) {
	p := newFakePipeline()
	h := NewCalibrationHandler(p, nil)

	if rec := do(t, h, http.MethodGet, "/api/calibration/point", nil); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 before any sample, got %d", rec.Code)
	}

	p.sess.Step(&geom.Point{X: 0.4, Y: 0.6}, 1000)

	rec := do(t, h, http.MethodGet, "/api/calibration/point", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	var pt geom.Point
	decode(t, rec, &pt)
	if math.Abs(pt.X-0.4) > 1e-9 || math.Abs(pt.Y-0.6) > 1e-9 {
		t.Errorf("calibration point = %+v, want (0.4, 0.6)", pt)
	}
}

func TestCalibrationHandler_NoSession(t *testing.T) {
	h := NewCalibrationHandler(&fakePipeline{}, nil)

	for _, path := range []string{"/api/calibration", "/api/calibration/targets", "/api/calibration/point"} {
		if rec := do(t, h, http.MethodGet, path, nil); rec.Code != http.StatusConflict {
			t.Errorf("GET %s: expected 409, got %d", path, rec.Code)
		}
	}
}

func TestCalibrationHandler_Routing(t *testing.T) {
	h := NewCalibrationHandler(newFakePipeline(), nil)

	if rec := do(t, h, http.MethodPut, "/api/calibration", nil); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("PUT: expected 405, got %d", rec.Code)
	}
	if rec := do(t, h, http.MethodPost, "/api/calibration/targets", nil); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST targets: expected 405, got %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/api/calibration/other", nil); rec.Code != http.StatusNotFound {
		t.Errorf("unknown path: expected 404, got %d", rec.Code)
	}
}
