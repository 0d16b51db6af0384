package server

import (
	"sync"

	"github.com/gorilla/websocket"
)

// safeConn wraps a websocket.Conn with a mutex for thread-safe writes.
// gorilla/websocket does not support concurrent writes, and session
// events arrive from crawl goroutines while the read loop may be
// answering a request, so all writes go through the lock.
type safeConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// newSafeConn wraps a websocket connection for thread-safe writes.
func newSafeConn(conn *websocket.Conn) *safeConn {
	return &safeConn{conn: conn}
}

// WriteJSON sends a JSON-encoded message.
func (sc *safeConn) WriteJSON(v any) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.conn.WriteJSON(v)
}

// ReadMessage reads the next message. Reads need no lock; there is a
// single reader per connection.
func (sc *safeConn) ReadMessage() (messageType int, p []byte, err error) {
	return sc.conn.ReadMessage()
}

// Close closes the underlying connection.
func (sc *safeConn) Close() error {
	return sc.conn.Close()
}
