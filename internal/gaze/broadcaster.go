package gaze

import (
	"encoding/json"
	"sync"

	"github.com/ayusman/drishti/internal/dwell"
	"github.com/ayusman/drishti/internal/geom"
)

// Message types published to subscribers.
const (
	TypeGaze  = "gaze"
	TypeDwell = "dwell"
)

// Message is one published pipeline output: a gaze point, a lost frame or
// a dwell trigger.
type Message struct {
	Type string
	X, Y float64
	T    int64
	Lost bool
}

// GazeMessage builds the per-frame message for p, or a lost message when p is nil.
func GazeMessage(p *geom.Point, t int64) Message {
	if p == nil {
		return Message{Type: TypeGaze, T: t, Lost: true}
	}
	return Message{Type: TypeGaze, X: p.X, Y: p.Y, T: t}
}

// DwellMessage builds the message for a dwell trigger.
func DwellMessage(ev dwell.Event) Message {
	return Message{Type: TypeDwell, X: ev.X, Y: ev.Y, T: ev.T}
}

// MarshalJSON omits coordinates on lost frames.
func (m Message) MarshalJSON() ([]byte, error) {
	if m.Lost {
		return json.Marshal(struct {
			Type string `json:"type"`
			Lost bool   `json:"lost"`
			T    int64  `json:"t"`
		}{m.Type, true, m.T})
	}
	return json.Marshal(struct {
		Type string  `json:"type"`
		X    float64 `json:"x"`
		Y    float64 `json:"y"`
		T    int64   `json:"t"`
	}{m.Type, m.X, m.Y, m.T})
}

// Broadcaster fans messages out to subscribers without ever blocking the
// publisher. A subscriber whose buffer is full misses that message.
type Broadcaster struct {
	mu     sync.RWMutex
	subs   map[chan Message]struct{}
	closed bool
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[chan Message]struct{})}
}

// Subscribe registers a new subscriber with the given buffer size. The
// returned function unsubscribes and closes the channel.
func (b *Broadcaster) Subscribe(buffer int) (<-chan Message, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Message, buffer)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			if _, ok := b.subs[ch]; ok {
				delete(b.subs, ch)
				close(ch)
			}
			b.mu.Unlock()
		})
	}
}

// Publish delivers m to every subscriber with room in its buffer and
// returns how many received it.
func (b *Broadcaster) Publish(m Message) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	delivered := 0
	for ch := range b.subs {
		select {
		case ch <- m:
			delivered++
		default:
		}
	}
	return delivered
}

// Subscribers returns the number of active subscribers.
func (b *Broadcaster) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close closes every subscriber channel. Later subscriptions receive a
// closed channel.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for ch := range b.subs {
		close(ch)
		delete(b.subs, ch)
	}
}
