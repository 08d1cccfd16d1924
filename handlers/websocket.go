package handlers

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const closeGracePeriod = time.Second

func newUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		// Game clients and servers are not browsers; there is no origin to trust.
		CheckOrigin: func(r *http.Request) bool { return true },
	}
}

// connSet tracks open WebSocket connections so they can be closed on shutdown: echo's Shutdown does not reach
// hijacked connections.
type connSet struct {
	mu     sync.Mutex
	conns  map[*websocket.Conn]struct{}
	closed bool
}

func newConnSet() *connSet {
	return &connSet{conns: make(map[*websocket.Conn]struct{})}
}

// add tracks conn. It returns false once the set has been closed; the caller must then drop the connection.
func (s *connSet) add(conn *websocket.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[conn] = struct{}{}
	return true
}

func (s *connSet) remove(conn *websocket.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
}

func (s *connSet) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// closeAll sends a going-away close frame to every connection and closes it.
func (s *connSet) closeAll() {
	s.mu.Lock()
	s.closed = true
	conns := make([]*websocket.Conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		closeConn(c, websocket.CloseGoingAway, "server shutting down")
	}
}

// closeConn sends a close frame and closes conn. WriteControl and Close are safe next to a concurrent writer.
func closeConn(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGracePeriod))
	_ = conn.Close()
}

// writeFrame writes one JSON frame with a deadline.
func writeFrame(conn *websocket.Conn, timeout time.Duration, frame any) error {
	if err := conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}
	return conn.WriteJSON(frame)
}

// armIdleTimeout makes reads fail after timeout without traffic; pongs count as traffic.
func armIdleTimeout(conn *websocket.Conn, timeout time.Duration) error {
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(timeout))
	})
	return conn.SetReadDeadline(time.Now().Add(timeout))
}

// isNormalClose reports whether a read error is an orderly or idle end of the session.
func isNormalClose(err error) bool {
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived)
}
