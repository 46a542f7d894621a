package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/drishti/internal/gaze"
	"github.com/ayusman/drishti/internal/log"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	subscriberSize = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // local UI only
	},
}

// GazeHandler streams published gaze points and dwell triggers to
// WebSocket clients. Slow clients lose frames instead of stalling the pipeline.
type GazeHandler struct {
	broadcaster *gaze.Broadcaster
}

// NewGazeHandler creates a GazeHandler fed by b.
func NewGazeHandler(b *gaze.Broadcaster) *GazeHandler {
	return &GazeHandler{broadcaster: b}
}

// ServeHTTP upgrades the connection and runs its read and write pumps.
func (h *GazeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("websocket upgrade failed", "error", err)
		return
	}

	messages, unsubscribe := h.broadcaster.Subscribe(subscriberSize)
	log.Debug("gaze client connected", "remote", r.RemoteAddr, "clients", h.broadcaster.Subscribers())

	done := make(chan struct{})
	go readPump(conn, done)
	writePump(conn, messages, done)

	unsubscribe()
	conn.Close()
	log.Debug("gaze client disconnected", "remote", r.RemoteAddr)
}

// readPump discards client messages and closes done when the peer goes away.
func readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)

	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug("gaze client read error", "error", err)
			}
			return
		}
	}
}

func writePump(conn *websocket.Conn, messages <-chan gaze.Message, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-messages:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
				return
			}
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
