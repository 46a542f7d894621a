package tray

import "testing"

func TestNew(t *testing.T) {
	tr := New()
	if !tr.IsEnabled() {
		t.Error("new tray should start enabled")
	}
}

func TestLastDwellTitle(t *testing.T) {
	tests := []struct {
		x, y float64
		ok   bool
		want string
	}{
		{0, 0, false, "Last click: none"},
		{960.4, 540.6, true, "Last click: 960, 541"},
		{0, 0, true, "Last click: 0, 0"},
	}
	for _, tt := range tests {
		if got := LastDwellTitle(tt.x, tt.y, tt.ok); got != tt.want {
			t.Errorf("LastDwellTitle(%v, %v, %v) = %q, want %q", tt.x, tt.y, tt.ok, got, tt.want)
		}
	}
}

func TestToggleTitle(t *testing.T) {
	if toggleTitle(true) == toggleTitle(false) {
		t.Error("toggle titles should differ")
	}
}

func TestSetLastDwellBeforeReady(t *testing.T) {
	tr := New()
	tr.SetLastDwell(1, 2) // menu not built yet: no-op
}
