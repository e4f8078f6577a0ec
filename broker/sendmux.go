package broker

import (
	"net"
	"sync"

	"github.com/msgbroker/broker/wire"
)

// sendMux serializes frame writes per live connection (§5's sendMu). A
// connection → *sync.Mutex map, guarded by its own mutex, avoids a single global send lock
// becoming a bottleneck across many concurrently-writable sockets; the
// per-connection mutex itself is leaf-level and never held across a
// queues/clients lock acquisition.
type sendMux struct {
	mu    sync.Mutex // guards the locks map's lazy-insert/delete
	locks map[net.Conn]*sync.Mutex
}

func newSendMux() *sendMux {
	return &sendMux{locks: make(map[net.Conn]*sync.Mutex)}
}

func (m *sendMux) lockFor(conn net.Conn) *sync.Mutex {
	m.mu.Lock()
	l, ok := m.locks[conn]
	if !ok {
		l = &sync.Mutex{}
		m.locks[conn] = l
	}
	m.mu.Unlock()
	return l
}

// Send writes one frame to conn, serialized against any other concurrent
// send to the same connection.
func (m *sendMux) Send(conn net.Conn, role, action byte, payload []byte) error {
	l := m.lockFor(conn)
	l.Lock()
	defer l.Unlock()
	return wire.WriteFrame(conn, role, action, payload)
}

// Forget removes conn's send lock, called during connection teardown (§4.4).
func (m *sendMux) Forget(conn net.Conn) {
	m.mu.Lock()
	delete(m.locks, conn)
	m.mu.Unlock()
}
