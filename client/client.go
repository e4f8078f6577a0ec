package client

import (
	"net"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/msgbroker/broker/wire"
)

// ErrNotConnected is returned by command methods once the connection has
// torn down, instead of silently dropping the write.
var ErrNotConnected = errors.New("client: not connected")

// DefaultDialTimeout bounds the initial TCP dial and the LOGIN round trip.
const DefaultDialTimeout = 5 * time.Second

// Client drives one connection's LOGIN/AUTHED lifecycle and hands the
// application a stream of Events through a bounded poll, mirroring the
// split between command issuance and asynchronous delivery in §4.7.
type Client struct {
	conn net.Conn
	id   string

	events *eventQueue

	mu     sync.RWMutex
	queues []string
	closed bool

	closeOnce sync.Once
	done      chan struct{}
}

// Connect dials addr, performs the LOGIN handshake synchronously, and
// starts the receiver loop. The returned Client's AvailableQueues reflects
// the initial catalog once the IN frame arrives, shortly after return.
func Connect(addr, id string, timeout time.Duration) (*Client, error) {
	if !wire.ValidClientID(id) {
		return nil, errors.New("client: invalid client id")
	}
	if timeout <= 0 {
		timeout = DefaultDialTimeout
	}

	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, errors.Wrap(err, "client: dial failed")
	}

	c := &Client{
		conn:   conn,
		id:     id,
		events: newEventQueue(defaultQueueCapacity),
		done:   make(chan struct{}),
	}

	if err := c.login(timeout); err != nil {
		_ = conn.Close()
		return nil, err
	}

	go c.receiveLoop()
	return c, nil
}

// login sends LO and blocks for its ack, ahead of the receiver loop
// starting, so a rejected login surfaces as a returned error rather than an
// ErrorEvent the caller has to notice.
func (c *Client) login(timeout time.Duration) error {
	_ = c.conn.SetDeadline(time.Now().Add(timeout))
	defer c.conn.SetDeadline(time.Time{})

	if err := wire.WriteFrame(c.conn, wire.RoleLogin, wire.ActionLogin, []byte(c.id)); err != nil {
		return errors.Wrap(err, "client: login write failed")
	}

	hdr, payload, err := wire.ReadFrame(c.conn)
	if err != nil {
		return errors.Wrap(err, "client: login read failed")
	}
	if hdr.Type() != wire.TypeLogin {
		return errors.Newf("client: unexpected reply to login: %s", hdr.Type())
	}
	if wire.IsError(string(payload)) {
		return errors.Newf("client: login refused: %s", payload)
	}
	return nil
}

// Subscribe requests a subscription to name. The outcome arrives as a
// StatusUpdateEvent or ErrorEvent, followed on success by a
// BatchMessagesEvent replay when the queue has retained messages.
func (c *Client) Subscribe(name string) error {
	if !wire.ValidQueueName(name) {
		return errors.New("client: invalid queue name")
	}
	return c.send(wire.RoleSub, wire.ActionSub, []byte(name))
}

// Unsubscribe requests removal from name's subscriber set.
func (c *Client) Unsubscribe(name string) error {
	if !wire.ValidQueueName(name) {
		return errors.New("client: invalid queue name")
	}
	return c.send(wire.RoleSub, wire.ActionUnsub, []byte(name))
}

// CreateQueue requests a new queue named name.
func (c *Client) CreateQueue(name string) error {
	if !wire.ValidQueueName(name) {
		return errors.New("client: invalid queue name")
	}
	return c.send(wire.RoleQueue, wire.ActionCreate, []byte(name))
}

// DeleteQueue requests deletion of the queue named name.
func (c *Client) DeleteQueue(name string) error {
	if !wire.ValidQueueName(name) {
		return errors.New("client: invalid queue name")
	}
	return c.send(wire.RoleQueue, wire.ActionDelete, []byte(name))
}

// Publish sends text to queue name with a retention TTL in seconds.
func (c *Client) Publish(name string, text []byte, ttlSeconds int) error {
	if !wire.ValidQueueName(name) {
		return errors.New("client: invalid queue name")
	}
	if !wire.ValidTTL(ttlSeconds) {
		return errors.New("client: invalid ttl")
	}
	payload := wire.EncodePublish(name, uint32(ttlSeconds), text)
	return c.send(wire.RoleQueue, wire.ActionPublish, payload)
}

func (c *Client) send(role, action byte, payload []byte) error {
	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return ErrNotConnected
	}
	if err := wire.WriteFrame(c.conn, role, action, payload); err != nil {
		return errors.Wrap(err, "client: write failed")
	}
	return nil
}

// AvailableQueues returns the most recently received catalog snapshot.
func (c *Client) AvailableQueues() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, len(c.queues))
	copy(out, c.queues)
	return out
}

// PollEvent blocks up to timeout for the next Event.
func (c *Client) PollEvent(timeout time.Duration) (Event, bool) {
	return c.events.Poll(timeout)
}

// Close closes the underlying connection and waits for the receiver loop
// to observe it and enqueue a final DisconnectedEvent.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		err = c.conn.Close()
		<-c.done
	})
	return err
}

func (c *Client) setQueues(names []string) {
	c.mu.Lock()
	c.queues = names
	c.mu.Unlock()
}
