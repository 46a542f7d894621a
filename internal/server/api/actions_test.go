package api

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/ayusman/drishti/internal/plugin"
	"github.com/ayusman/drishti/internal/store"
)

func newTestPlugins(t *testing.T) *plugin.Manager {
	t.Helper()

	root := t.TempDir()
	dir := filepath.Join(root, "pointer")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	manifest := `{"name":"pointer","version":"1.0.0","executable":"pointer","actions":["click","double-click"]}`
	if err := os.WriteFile(filepath.Join(dir, plugin.ManifestFile), []byte(manifest), 0644); err != nil {
		t.Fatal(err)
	}

	m := plugin.NewManager(root)
	if err := m.Discover(); err != nil {
		t.Fatal(err)
	}
	return m
}

func TestActionHandler_CreateAndGet(t *testing.T) {
	s := newTestStore(t)
	h := NewActionHandler(s, newTestPlugins(t))

	rec := do(t, h, http.MethodPost, "/api/actions", map[string]any{
		"plugin_name": "pointer",
		"action_name": "click",
		"config":      map[string]string{"button": "left"},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, rec.Code, rec.Body.String())
	}

	var created actionResponse
	decode(t, rec, &created)
	if created.ID == "" || created.Trigger != store.TriggerDwell || !created.Enabled {
		t.Errorf("unexpected created action: %+v", created)
	}

	rec = do(t, h, http.MethodGet, "/api/actions/"+created.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	var got actionResponse
	decode(t, rec, &got)

	var config map[string]string
	if err := json.Unmarshal(got.Config, &config); err != nil || config["button"] != "left" {
		t.Errorf("config = %s (%v)", got.Config, err)
	}
}

func TestActionHandler_CreateValidation(t *testing.T) {
	tests := []struct {
		name string
		body any
	}{
		{"invalid json", `{"plugin_name":`},
		{"missing plugin", map[string]string{"action_name": "click"}},
		{"missing action", map[string]string{"plugin_name": "pointer"}},
		{"unknown trigger", map[string]string{"trigger": "blink", "plugin_name": "pointer", "action_name": "click"}},
		{"unknown plugin", map[string]string{"plugin_name": "nope", "action_name": "click"}},
		{"undeclared action", map[string]string{"plugin_name": "pointer", "action_name": "scroll"}},
	}

	s := newTestStore(t)
	h := NewActionHandler(s, newTestPlugins(t))

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/api/actions", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
			}
		})
	}
}

func TestActionHandler_ListUpdateDelete(t *testing.T) {
	s := newTestStore(t)
	h := NewActionHandler(s, nil)

	a := &store.Action{PluginName: "keyboard", ActionName: "keystroke", Enabled: true}
	if err := s.Actions().Create(a); err != nil {
		t.Fatal(err)
	}

	rec := do(t, h, http.MethodGet, "/api/actions", nil)
	var list listActionsResponse
	decode(t, rec, &list)
	if len(list.Actions) != 1 || list.Actions[0].ID != a.ID {
		t.Fatalf("unexpected list: %+v", list)
	}

	rec = do(t, h, http.MethodPut, "/api/actions/"+a.ID, map[string]any{"enabled": false})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	var updated actionResponse
	decode(t, rec, &updated)
	if updated.Enabled || updated.ActionName != "keystroke" {
		t.Errorf("unexpected update result: %+v", updated)
	}

	enabled, _ := s.Actions().ForTrigger(store.TriggerDwell)
	if len(enabled) != 0 {
		t.Errorf("disabled action still returned for dwell trigger")
	}

	if rec := do(t, h, http.MethodDelete, "/api/actions/"+a.ID, nil); rec.Code != http.StatusNoContent {
		t.Errorf("expected status %d, got %d", http.StatusNoContent, rec.Code)
	}
	if rec := do(t, h, http.MethodDelete, "/api/actions/"+a.ID, nil); rec.Code != http.StatusNotFound {
		t.Errorf("second delete: expected 404, got %d", rec.Code)
	}
	if rec := do(t, h, http.MethodPut, "/api/actions/"+a.ID, map[string]any{}); rec.Code != http.StatusNotFound {
		t.Errorf("update missing: expected 404, got %d", rec.Code)
	}
}

func TestActionHandler_MethodNotAllowed(t *testing.T) {
	h := NewActionHandler(newTestStore(t), nil)

	if rec := do(t, h, http.MethodPatch, "/api/actions", nil); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rec.Code)
	}
	if rec := do(t, h, http.MethodPost, "/api/actions/abc", nil); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rec.Code)
	}
}
