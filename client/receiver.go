package client

import (
	"errors"
	"fmt"

	"github.com/msgbroker/broker/wire"
)

// receiveLoop owns the socket's read side for the life of the connection,
// decoding every pushed frame into an Event per §4.7's dispatch table. A
// read failure of any kind is terminal: it enqueues DisconnectedEvent and
// returns.
func (c *Client) receiveLoop() {
	defer close(c.done)
	defer func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
	}()

	for {
		hdr, payload, err := wire.ReadFrame(c.conn)
		if err != nil {
			c.events.Push(DisconnectedEvent{Reason: reasonFor(err)})
			return
		}
		c.dispatch(hdr, payload)
	}
}

func reasonFor(err error) string {
	if errors.Is(err, wire.ErrDisconnect) {
		return "server closed the connection"
	}
	return err.Error()
}

// dispatch decodes one pushed frame and enqueues the corresponding Event.
// Heartbeats are answered inline rather than surfaced to the caller, since
// they carry no application information (§4.7).
func (c *Client) dispatch(hdr wire.Header, payload []byte) {
	switch hdr.Type() {
	case wire.TypeHeartbeat:
		_ = c.send(wire.RoleHeartbeat, wire.ActionHeartbeat, nil)

	case wire.TypeInitial, wire.TypeQueueList:
		names, err := wire.DecodeQueueList(payload)
		if err != nil {
			c.events.Push(ErrorEvent{Message: "malformed queue list: " + err.Error()})
			return
		}
		c.setQueues(names)
		c.events.Push(QueueListEvent{Queues: names})

	case wire.TypeMessage:
		msg, err := wire.DecodeMulticast(payload)
		if err != nil {
			c.events.Push(ErrorEvent{Message: "malformed message: " + err.Error()})
			return
		}
		c.events.Push(MessageEvent{Queue: msg.Name, Text: msg.Text})

	case wire.TypeBatch:
		batch, err := wire.DecodeBatch(payload)
		if err != nil {
			c.events.Push(ErrorEvent{Message: "malformed batch: " + err.Error()})
			return
		}
		c.events.Push(BatchMessagesEvent{Queue: batch.Name, Texts: batch.Texts})

	case wire.TypeNotice:
		c.events.Push(QueueDeletedEvent{Queue: string(payload)})

	case wire.TypeLogin:
		c.dispatchStatus(hdr.Type(), payload)

	case wire.TypeSubscribe, wire.TypeUnsub, wire.TypeCreate, wire.TypeDelete, wire.TypePublish:
		c.dispatchStatus(hdr.Type(), payload)

	default:
		c.events.Push(ErrorEvent{Message: fmt.Sprintf("unknown frame type %q", hdr.Type())})
	}
}

// dispatchStatus turns a command ack into a StatusUpdateEvent or ErrorEvent
// depending on the OK/ER: sentinel (§4.7). An unexpected LO ack after the
// handshake is already complete is still reported, never treated as fatal.
func (c *Client) dispatchStatus(commandType string, payload []byte) {
	status := string(payload)
	if wire.IsError(status) {
		c.events.Push(ErrorEvent{CommandType: commandType, Message: status})
		return
	}
	c.events.Push(StatusUpdateEvent{CommandType: commandType, Status: status})
}
