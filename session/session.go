// Package session implements the client-identity registry: exactly one
// session per ClientId, live-socket tracking, and grace-window reconnect.
package session

import (
	"net"
	"time"
)

// DefaultGrace is the window a disconnected session's subscriptions survive
// before the background worker scrubs and reaps it.
const DefaultGrace = 30 * time.Second

// Session is one logged-in identity's state. Socket is nil when disconnected.
type Session struct {
	ID             string
	Socket         net.Conn
	DisconnectedAt time.Time
	hasDisconnect  bool
}

// Live reports whether the session currently owns a connected socket.
func (s *Session) Live() bool {
	return s.Socket != nil
}
