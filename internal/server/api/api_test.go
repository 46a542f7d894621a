package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/ayusman/drishti/internal/gaze"
	"github.com/ayusman/drishti/internal/store"
)

// newTestStore creates a Store backed by a temporary database.
func newTestStore(t *testing.T) *store.Store {
	t.Helper()

	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() {
		s.Close()
	})
	return s
}

// fakePipeline is a Pipeline with a fixed session.
type fakePipeline struct {
	mu     sync.Mutex
	sess   *gaze.Session
	tuning *gaze.Tuning
}

func newFakePipeline() *fakePipeline {
	return &fakePipeline{sess: gaze.NewSession(gaze.SessionConfig{
		Tuning:   gaze.DefaultTuning(),
		Viewport: gaze.Viewport{Width: 1920, Height: 1080},
	})}
}

func (p *fakePipeline) Session() *gaze.Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sess
}

func (p *fakePipeline) SetTuning(t gaze.Tuning) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tuning = &t
}

func (p *fakePipeline) appliedTuning() *gaze.Tuning {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tuning
}

// persistSession stores the pipeline session so audits and events can
// reference it.
func persistSession(t *testing.T, s *store.Store, sess *gaze.Session) {
	t.Helper()
	vp := sess.Viewport()
	err := s.Sessions().Create(&store.Session{
		ID:             sess.ID(),
		StartedAt:      sess.StartedAt(),
		ViewportWidth:  vp.Width,
		ViewportHeight: vp.Height,
	})
	if err != nil {
		t.Fatalf("failed to persist session: %v", err)
	}
}

// do sends a request to h and returns the recorder.
func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, http.StatusTeapot, "short and stout")

	if rec.Code != http.StatusTeapot {
		t.Errorf("expected status %d, got %d", http.StatusTeapot, rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type application/json, got %s", ct)
	}

	var resp errorResponse
	decode(t, rec, &resp)
	if resp.Error != "short and stout" {
		t.Errorf("unexpected error message %q", resp.Error)
	}
}

func TestSplitPath(t *testing.T) {
	tests := []struct {
		path string
		want int
	}{
		{"/api/sessions", 0},
		{"/api/sessions/", 0},
		{"/api/sessions/abc", 1},
		{"/api/sessions/abc/events", 2},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, tt.path, nil)
		if got := splitPath(req, "/api/sessions"); len(got) != tt.want {
			t.Errorf("splitPath(%q) = %v, want %d segments", tt.path, got, tt.want)
		}
	}
}
