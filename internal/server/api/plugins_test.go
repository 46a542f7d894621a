package api

import (
	"net/http"
	"testing"
)

func TestPluginHandler(t *testing.T) {
	h := NewPluginHandler(newTestPlugins(t))

	for _, method := range []string{http.MethodGet, http.MethodPost} {
		rec := do(t, h, method, "/api/plugins", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected status %d, got %d", method, http.StatusOK, rec.Code)
		}

		var resp listPluginsResponse
		decode(t, rec, &resp)
		if len(resp.Plugins) != 1 || resp.Plugins[0].Name != "pointer" || len(resp.Plugins[0].Actions) != 2 {
			t.Errorf("%s: unexpected plugins %+v", method, resp.Plugins)
		}
	}

	if rec := do(t, h, http.MethodDelete, "/api/plugins", nil); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rec.Code)
	}
}
