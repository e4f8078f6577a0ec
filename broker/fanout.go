package broker

import (
	"net"
	"time"

	"github.com/msgbroker/broker/internal/logging"
	"github.com/msgbroker/broker/internal/metrics"
	"github.com/msgbroker/broker/wire"
)

// sendAck writes the synchronous unicast reply to the client's own command
// (§4.5's "unicast reply" pattern) — always the echo of the request's type.
func (b *Broker) sendAck(conn net.Conn, role, action byte, payload string) {
	if err := b.send.Send(conn, role, action, []byte(payload)); err != nil {
		logging.LogError(b.logger, err, "ack send failed", map[string]any{"type": string([]byte{role, action})})
	}
}

// broadcastCatalog sends a QL frame to every currently-live socket, used
// after create/delete (§4.5's "broadcast catalog" pattern).
func (b *Broker) broadcastCatalog() {
	names := b.queues.Snapshot()
	metrics.QueuesCurrent.Set(float64(len(names)))
	payload := wire.EncodeQueueList(names)

	for _, conn := range b.sessions.LiveSockets() {
		if err := b.send.Send(conn, wire.RoleQueueList, wire.ActionList, payload); err != nil {
			logging.LogError(b.logger, err, "catalog broadcast failed", nil)
		}
	}
}

// sendInitialCatalog sends the IN frame immediately after a successful
// login (§4.7 client-side names it IN, decoded the same as QL).
func (b *Broker) sendInitialCatalog(conn net.Conn) {
	payload := wire.EncodeQueueList(b.queues.Snapshot())
	if err := b.send.Send(conn, wire.RoleInitial, wire.ActionInitial, payload); err != nil {
		logging.LogError(b.logger, err, "initial catalog send failed", nil)
	}
}

// multicastPublish fans a published message out to every subscriber id, in
// the order given, resolving each to a live socket under the session
// registry and sending outside any queue-store lock, per §5's ordering
// discipline. Sends run synchronously on the publishing goroutine, one
// subscriber at a time: §5 guarantees every subscriber sees a queue's
// messages in publish order, which a pool of worker goroutines racing each
// other on the same connections cannot preserve. A disconnected subscriber
// is skipped silently; a live one is never dropped.
func (b *Broker) multicastPublish(name string, subscriberIDs []string, text []byte) {
	payload := wire.EncodeMulticast(name, text)
	for _, id := range subscriberIDs {
		conn, ok := b.sessions.LiveSocket(id)
		if !ok {
			continue // disconnected subscriber, skip silently
		}
		if err := b.send.Send(conn, wire.RoleMessage, wire.ActionSingle, payload); err != nil {
			logging.LogError(b.logger, err, "multicast send failed", map[string]any{"queue": name, "client_id": id})
			continue
		}
		metrics.MessagesDeliveredTotal.Inc()
	}
}

// replayRetained sends a single MA frame of a queue's non-expired retained
// messages to a newly-subscribed connection, immediately after its SS "OK"
// reply (§4.5's "replay on subscribe" pattern). No-op if nothing is retained.
func (b *Broker) replayRetained(conn net.Conn, name string) {
	texts, err := b.queues.DrainRetained(name, time.Now())
	if err != nil || len(texts) == 0 {
		return
	}
	payload := wire.EncodeBatch(name, texts)
	if err := b.send.Send(conn, wire.RoleMessage, wire.ActionBatch, payload); err != nil {
		logging.LogError(b.logger, err, "replay send failed", map[string]any{"queue": name})
	}
}

// notifyDeleted sends an ND frame to every id that was subscribed to name
// at the moment of its deletion (§4.5's "deletion notice" pattern).
func (b *Broker) notifyDeleted(name string, subscriberIDs []string) {
	payload := []byte(name)
	for _, id := range subscriberIDs {
		conn, ok := b.sessions.LiveSocket(id)
		if !ok {
			continue
		}
		if err := b.send.Send(conn, wire.RoleNotice, wire.ActionDelete2, payload); err != nil {
			logging.LogError(b.logger, err, "deletion notice send failed", map[string]any{"queue": name, "client_id": id})
		}
	}
}
