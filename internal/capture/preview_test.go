package capture

import (
	"bytes"
	"testing"
)

func TestPreview_SkipsWithoutViewers(t *testing.T) {
	p := NewPreview()
	frames := BlankFrames(1, 64, 48)
	defer closeFrames(frames)

	if err := p.Update(frames[0]); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if _, seq := p.Latest(); seq != 0 {
		t.Errorf("frame encoded without viewers, seq = %d", seq)
	}
}

func TestPreview_EncodesForViewers(t *testing.T) {
	p := NewPreview()
	frames := BlankFrames(2, 64, 48)
	defer closeFrames(frames)

	detach := p.Attach()
	if !p.Wanted() {
		t.Fatal("Wanted() = false after Attach")
	}

	for _, f := range frames {
		if err := p.Update(f); err != nil {
			t.Fatalf("Update() error = %v", err)
		}
	}

	data, seq := p.Latest()
	if seq != 2 {
		t.Errorf("seq = %d, want 2", seq)
	}
	// JPEG start-of-image marker
	if !bytes.HasPrefix(data, []byte{0xFF, 0xD8}) {
		t.Errorf("preview is not a JPEG")
	}

	detach()
	detach()
	if p.Wanted() {
		t.Error("Wanted() = true after detach")
	}
}

func TestPreview_EmptyFrame(t *testing.T) {
	p := NewPreview()
	defer p.Attach()()

	if err := p.Update(nil); err != ErrEmptyFrame {
		t.Errorf("Update(nil) error = %v, want ErrEmptyFrame", err)
	}
}
