package server

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// subscriber pairs a connection with its write lock. Gorilla connections
// allow one concurrent writer, and both the broadcast fan-out and the read
// pump's replies write to the same socket.
//
// lastHeartbeat and lastRTT are guarded by the hub's mutex, not sub.mu.
type subscriber struct {
	playerID string
	conn     Conn

	mu sync.Mutex

	lastHeartbeat time.Time
	lastRTT       time.Duration
}

func newSubscriber(playerID string, conn Conn) *subscriber {
	return &subscriber{
		playerID:      playerID,
		conn:          conn,
		lastHeartbeat: time.Now(),
	}
}

// WriteMessage sends one frame, serialized against every other writer on the
// same connection. The read pump uses this for its replies so they cannot
// interleave with broadcast writes.
func (s *subscriber) WriteMessage(messageType int, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteMessage(messageType, data)
}

func (s *subscriber) write(data []byte) error {
	return s.WriteMessage(websocket.TextMessage, data)
}
