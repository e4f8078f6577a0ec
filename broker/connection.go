package broker

import (
	"context"
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/msgbroker/broker/internal/logging"
	"github.com/msgbroker/broker/internal/metrics"
	"github.com/msgbroker/broker/queue"
	"github.com/msgbroker/broker/session"
	"github.com/msgbroker/broker/wire"
)

// handleConn runs one connection's state machine end to end: LOGIN, then
// AUTHED command dispatch, until a terminal condition tears it down (§4.4).
func (b *Broker) handleConn(ctx context.Context, conn net.Conn, correlationID uuid.UUID) {
	stopWatch := make(chan struct{})
	defer close(stopWatch)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-stopWatch:
		}
	}()

	clientID, ok := b.runLogin(conn, correlationID)
	defer b.teardown(conn, clientID)

	if !ok {
		return
	}

	for {
		if b.cfg.ReadTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(b.cfg.ReadTimeout))
		}
		hdr, payload, err := wire.ReadFrame(conn)
		if err != nil {
			b.onReadError(conn, hdr, err, clientID, correlationID)
			return
		}
		b.dispatchAuthed(conn, clientID, hdr, payload)
	}
}

// runLogin accepts only LO frames until one succeeds, matching §4.4's LOGIN
// state: anything else is answered with ER:FIRST YOU MUST LOG IN and the
// connection stays in LOGIN. An id that already has a live connection is
// answered with ER:ID_TAKEN and the connection is not admitted.
func (b *Broker) runLogin(conn net.Conn, correlationID uuid.UUID) (string, bool) {
	for {
		if b.cfg.ReadTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(b.cfg.ReadTimeout))
		}
		hdr, payload, err := wire.ReadFrame(conn)
		if err != nil {
			b.onReadError(conn, hdr, err, "", correlationID)
			return "", false
		}

		if hdr.Type() != wire.TypeLogin {
			b.sendAck(conn, wire.RoleLogin, wire.ActionLogin, wire.ReasonFirstLogin)
			continue
		}

		id := string(payload)
		switch {
		case len(id) < wire.MinClientIDLen:
			b.sendAck(conn, wire.RoleLogin, wire.ActionLogin, wire.ReasonIDTooShort)
			continue
		case len(id) > wire.MaxClientIDLen:
			b.sendAck(conn, wire.RoleLogin, wire.ActionLogin, wire.ReasonIDTooLong)
			continue
		}

		outcome, needsPurge, err := b.sessions.Login(id, conn, time.Now())
		if err != nil {
			b.sendAck(conn, wire.RoleLogin, wire.ActionLogin, wire.ReasonIDTaken)
			return "", false
		}
		if needsPurge {
			b.queues.PurgeSubscriber(id)
		}

		metrics.SessionsTotal.Inc()
		logging.LogInfo(b.logger, "login", map[string]any{
			"client_id":      id,
			"correlation_id": correlationID.String(),
			"reconnected":    outcome == session.Reconnected,
		})

		if outcome == session.Reconnected {
			b.sendAck(conn, wire.RoleLogin, wire.ActionLogin, wire.ReasonReconnected)
		} else {
			b.sendAck(conn, wire.RoleLogin, wire.ActionLogin, wire.ReasonLoggedIn)
		}
		b.sendInitialCatalog(conn)
		return id, true
	}
}

// dispatchAuthed handles one AUTHED-state frame (§4.4). Only a read
// failure from the caller's loop ever tears the connection down from here.
func (b *Broker) dispatchAuthed(conn net.Conn, clientID string, hdr wire.Header, payload []byte) {
	switch hdr.Type() {
	case wire.TypeLogin:
		b.sendAck(conn, wire.RoleLogin, wire.ActionLogin, wire.ReasonAlreadyLoggedIn)
	case wire.TypeHeartbeat:
		// Liveness only; no reply required beyond the worker's own HB cadence.
	case wire.TypeSubscribe:
		b.handleSubscribe(conn, clientID, string(payload))
	case wire.TypeUnsub:
		b.handleUnsubscribe(conn, clientID, string(payload))
	case wire.TypeCreate:
		b.handleCreate(conn, string(payload))
	case wire.TypeDelete:
		b.handleDelete(conn, string(payload))
	case wire.TypePublish:
		b.handlePublish(conn, payload)
	default:
		metrics.ProtocolErrorsTotal.Inc()
		logging.LogInfo(b.logger, "unknown type pair", map[string]any{"type": hdr.Type(), "client_id": clientID})
	}
}

func (b *Broker) handleSubscribe(conn net.Conn, clientID, name string) {
	err := b.queues.Subscribe(name, clientID)
	switch err {
	case nil:
		b.sendAck(conn, wire.RoleSub, wire.ActionSub, wire.StatusOK)
		b.replayRetained(conn, name)
	case queue.ErrNotFound:
		b.sendAck(conn, wire.RoleSub, wire.ActionSub, wire.ReasonNoQueue)
	case queue.ErrAlreadySubscribed:
		b.sendAck(conn, wire.RoleSub, wire.ActionSub, wire.ReasonAlreadySub)
	}
}

func (b *Broker) handleUnsubscribe(conn net.Conn, clientID, name string) {
	err := b.queues.Unsubscribe(name, clientID)
	switch err {
	case nil:
		b.sendAck(conn, wire.RoleSub, wire.ActionUnsub, wire.StatusOK)
	case queue.ErrNotFound:
		b.sendAck(conn, wire.RoleSub, wire.ActionUnsub, wire.ReasonNoQueue)
	case queue.ErrNotSubscribed:
		b.sendAck(conn, wire.RoleSub, wire.ActionUnsub, wire.ReasonNotSubscribing)
	}
}

func (b *Broker) handleCreate(conn net.Conn, name string) {
	err := b.queues.Create(name)
	switch err {
	case nil:
		b.sendAck(conn, wire.RoleQueue, wire.ActionCreate, wire.StatusOK)
		b.broadcastCatalog()
	case queue.ErrAlreadyExists:
		b.sendAck(conn, wire.RoleQueue, wire.ActionCreate, wire.ReasonQueueExists)
	}
}

func (b *Broker) handleDelete(conn net.Conn, name string) {
	ids, err := b.queues.Delete(name)
	switch err {
	case nil:
		b.sendAck(conn, wire.RoleQueue, wire.ActionDelete, wire.StatusOK)
		b.notifyDeleted(name, ids)
		b.broadcastCatalog()
	case queue.ErrNotFound:
		b.sendAck(conn, wire.RoleQueue, wire.ActionDelete, wire.ReasonNoQueue)
	}
}

func (b *Broker) handlePublish(conn net.Conn, payload []byte) {
	req, err := wire.DecodePublish(payload)
	if err != nil {
		metrics.ProtocolErrorsTotal.Inc()
		return
	}
	if len(req.Text) > b.cfg.MaxPayloadBytes {
		b.sendAck(conn, wire.RoleQueue, wire.ActionPublish, wire.ReasonMsgTooBig)
		return
	}

	ids, pubErr := b.queues.Publish(req.Name, req.Text, int(req.TTL), time.Now())
	if pubErr == queue.ErrNotFound {
		b.sendAck(conn, wire.RoleQueue, wire.ActionPublish, wire.ReasonNoQueue)
		return
	}

	metrics.MessagesPublishedTotal.Inc()
	b.sendAck(conn, wire.RoleQueue, wire.ActionPublish, wire.StatusOK)
	b.multicastPublish(req.Name, ids, req.Text)
}

// onReadError classifies a read failure per §7: disconnect is a clean
// close, payload-too-large gets a typed error reply before teardown
// (§4.4's protocol-error policy), anything else is a network error. All
// three terminate the session.
func (b *Broker) onReadError(conn net.Conn, hdr wire.Header, err error, clientID string, correlationID uuid.UUID) {
	fields := map[string]any{"client_id": clientID, "correlation_id": correlationID.String()}
	switch err {
	case wire.ErrDisconnect:
		logging.LogInfo(b.logger, "connection closed", fields)
	case wire.ErrPayloadTooLarge:
		b.sendAck(conn, hdr.Role, hdr.Action, wire.ReasonMsgTooBig)
		logging.LogInfo(b.logger, "payload too large", fields)
	default:
		logging.LogError(b.logger, err, "connection network error", fields)
	}
}

// teardown stamps the session disconnected, releases the per-socket send
// lock, and closes the socket (§4.4). Subscriptions are preserved; the
// background worker reaps them after the grace window.
func (b *Broker) teardown(conn net.Conn, clientID string) {
	if clientID != "" {
		b.sessions.Disconnect(clientID, time.Now())
	}
	b.send.Forget(conn)
	_ = conn.Close()
	metrics.ConnectionsCurrent.Dec()
}
