package session

import (
	"net"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
)

// Outcome reports which branch of the login state machine (§4.3) a Login
// call took.
type Outcome int

const (
	// LoggedIn is a brand-new session, or one resumed after its grace window
	// elapsed (subscriptions were purged by the caller).
	LoggedIn Outcome = iota
	// Reconnected is an existing, disconnected session resumed within grace.
	Reconnected
)

// ErrIDTaken is returned by Login when id already has a live socket.
var ErrIDTaken = errors.New("session: id already has a live connection")

// Registry is the ClientId → Session map. Exactly one Session exists per id
// (I4); callers serialize Login/Disconnect/Reap against the documented lock
// order — the registry's own lock is the "clients lock" of §3/§5.
type Registry struct {
	mu       sync.Mutex
	grace    time.Duration
	sessions map[string]*Session
}

// NewRegistry returns an empty registry using the given grace window.
func NewRegistry(grace time.Duration) *Registry {
	return &Registry{
		grace:    grace,
		sessions: make(map[string]*Session),
	}
}

// Login implements §4.3's three-way branch. needsPurge is true only when an
// expired-grace session is being resumed; the caller must then call
// queue.Store.PurgeSubscriber(id) under the documented queues-then-clients
// order before treating the session as fully live (the registry itself
// never touches the queue store).
func (r *Registry) Login(id string, socket net.Conn, now time.Time) (outcome Outcome, needsPurge bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, exists := r.sessions[id]
	if !exists {
		r.sessions[id] = &Session{ID: id, Socket: socket}
		return LoggedIn, false, nil
	}
	if sess.Live() {
		return 0, false, ErrIDTaken
	}

	withinGrace := now.Sub(sess.DisconnectedAt) < r.grace
	sess.Socket = socket
	sess.hasDisconnect = false
	if withinGrace {
		return Reconnected, false, nil
	}
	return LoggedIn, true, nil
}

// Disconnect marks id as having no live socket without erasing the session;
// subscriptions are preserved until the grace window elapses (§3).
func (r *Registry) Disconnect(id string, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.sessions[id]
	if !ok {
		return
	}
	sess.Socket = nil
	sess.DisconnectedAt = now
	sess.hasDisconnect = true
}

// Get returns id's session and whether it exists.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.sessions[id]
	return sess, ok
}

// LiveSocket returns id's socket if the session exists and is live.
func (r *Registry) LiveSocket(id string) (net.Conn, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.sessions[id]
	if !ok || !sess.Live() {
		return nil, false
	}
	return sess.Socket, true
}

// LiveSockets returns a snapshot of every currently-live socket, used by the
// background worker's heartbeat batch (§4.6 step 1).
func (r *Registry) LiveSockets() []net.Conn {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]net.Conn, 0, len(r.sessions))
	for _, sess := range r.sessions {
		if sess.Live() {
			out = append(out, sess.Socket)
		}
	}
	return out
}

// ReapExpired erases every session with no live socket whose grace window
// has elapsed as of now, returning their ids so the caller can purge them
// from the queue store outside the registry's lock (§4.6 steps 1-2).
func (r *Registry) ReapExpired(now time.Time) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var purged []string
	for id, sess := range r.sessions {
		if sess.Live() || !sess.hasDisconnect {
			continue
		}
		if now.Sub(sess.DisconnectedAt) >= r.grace {
			delete(r.sessions, id)
			purged = append(purged, id)
		}
	}
	return purged
}
