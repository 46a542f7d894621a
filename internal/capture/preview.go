package capture

import (
	"fmt"
	"sync"
	"sync/atomic"

	"gocv.io/x/gocv"
)

// Preview holds the most recent camera frame as JPEG for the MJPEG
// endpoint, so the stream never reads the camera itself. Frames are only
// encoded while at least one viewer is attached.
type Preview struct {
	mu      sync.RWMutex
	jpeg    []byte
	seq     uint64
	viewers atomic.Int32
}

// NewPreview creates an empty Preview.
func NewPreview() *Preview {
	return &Preview{}
}

// Wanted reports whether any viewer is attached.
func (p *Preview) Wanted() bool {
	return p.viewers.Load() > 0
}

// Attach registers a viewer and returns the function that detaches it.
func (p *Preview) Attach() func() {
	p.viewers.Add(1)
	var once sync.Once
	return func() {
		once.Do(func() { p.viewers.Add(-1) })
	}
}

// Update encodes frame as the latest preview image. It is a no-op while no
// viewer is attached.
func (p *Preview) Update(frame *gocv.Mat) error {
	if !p.Wanted() {
		return nil
	}
	if frame == nil || frame.Empty() {
		return ErrEmptyFrame
	}

	buf, err := gocv.IMEncode(".jpg", *frame)
	if err != nil {
		return fmt.Errorf("encode preview: %w", err)
	}
	defer buf.Close()

	data := append([]byte(nil), buf.GetBytes()...)

	p.mu.Lock()
	p.jpeg = data
	p.seq++
	p.mu.Unlock()
	return nil
}

// Latest returns the latest JPEG and its sequence number. The sequence is 0
// until the first frame has been encoded.
func (p *Preview) Latest() ([]byte, uint64) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.jpeg, p.seq
}
