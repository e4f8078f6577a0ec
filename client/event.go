// Package client implements the symmetric half of the protocol: dialing
// the broker, driving the login/command exchange, and a receiver loop that
// decodes server-pushed frames into Events drained via a bounded poll.
package client

// Event is the tagged union of everything the receiver loop can hand to
// application code (§9's resolved design: a closed set of concrete types
// behind a marker interface, dispatched with a type switch, rather than one
// struct with optional fields).
type Event interface {
	isEvent()
}

// QueueListEvent carries the full catalog, sent after login (IN) or after
// any create/delete anywhere in the system (QL).
type QueueListEvent struct {
	Queues []string
}

// MessageEvent is a single published message delivered to a live subscriber (MS).
type MessageEvent struct {
	Queue string
	Text  []byte
}

// BatchMessagesEvent is the retained-message replay sent immediately after
// a successful subscribe (MA).
type BatchMessagesEvent struct {
	Queue string
	Texts [][]byte
}

// QueueDeletedEvent notifies a former subscriber that their queue is gone (ND).
type QueueDeletedEvent struct {
	Queue string
}

// StatusUpdateEvent reports a successful ack to one of the client's own
// commands (subscribe, unsubscribe, create, delete, publish).
type StatusUpdateEvent struct {
	CommandType string // e.g. "SS", "PC"
	Status      string // "OK" or "OK:..."
}

// ErrorEvent reports a server-rejected command or an unparseable frame.
// It never terminates the session.
type ErrorEvent struct {
	CommandType string // empty for errors not tied to a specific command
	Message     string
}

// DisconnectedEvent is the final event enqueued before the receiver loop exits.
type DisconnectedEvent struct {
	Reason string
}

func (QueueListEvent) isEvent()     {}
func (MessageEvent) isEvent()       {}
func (BatchMessagesEvent) isEvent() {}
func (QueueDeletedEvent) isEvent()  {}
func (StatusUpdateEvent) isEvent()  {}
func (ErrorEvent) isEvent()         {}
func (DisconnectedEvent) isEvent()  {}
