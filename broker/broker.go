// Package broker implements the server side of the protocol: the
// connection handler (C4), fan-out/notification engine (C5), and
// background worker (C6), wiring the queue store and session registry
// together under the documented lock order (queues lock then clients
// lock; the per-socket send lock is always leaf-level).
package broker

import (
	"context"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/msgbroker/broker/internal/admission"
	"github.com/msgbroker/broker/internal/logging"
	"github.com/msgbroker/broker/internal/metrics"
	"github.com/msgbroker/broker/queue"
	"github.com/msgbroker/broker/session"
)

// Config bundles the broker's runtime tunables, decoupled from
// internal/config.Config so this package has no dependency on env parsing.
type Config struct {
	GraceWindow       time.Duration
	HeartbeatInterval time.Duration
	ReadTimeout       time.Duration
	MaxPayloadBytes   int

	CPURejectThreshold float64
	MemRejectThreshold float64
}

// Broker owns the queue store, session registry and fan-out machinery for
// one listening endpoint.
type Broker struct {
	cfg    Config
	logger *zerolog.Logger

	queues   *queue.Store
	sessions *session.Registry
	send     *sendMux
	guard    *admission.Guard

	listener net.Listener
}

// New constructs a Broker. Call Serve to start accepting connections.
func New(cfg Config, logger *zerolog.Logger) *Broker {
	return &Broker{
		cfg:      cfg,
		logger:   logger,
		queues:   queue.NewStore(),
		sessions: session.NewRegistry(cfg.GraceWindow),
		send:     newSendMux(),
		guard:    admission.New(cfg.CPURejectThreshold, cfg.MemRejectThreshold),
	}
}

// Serve binds addr and runs the accept loop until ctx is canceled. It
// blocks until the listener is closed.
func (b *Broker) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	b.listener = ln

	go b.runWorker(ctx)

	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				logging.LogError(b.logger, err, "accept failed", nil)
				return err
			}
		}
		b.acceptConn(ctx, conn)
	}
}

// acceptConn applies the admission gate before handing the socket to a
// connection goroutine (§4.4's "Admission" note): a rejected connection is
// closed immediately, with no frame sent, because this is a transport-level
// rejection rather than a protocol error.
func (b *Broker) acceptConn(ctx context.Context, conn net.Conn) {
	if ok, reason := b.guard.ShouldAccept(); !ok {
		logging.LogInfo(b.logger, "connection rejected by admission guard", map[string]any{"reason": reason})
		_ = conn.Close()
		return
	}

	metrics.ConnectionsCurrent.Inc()
	correlationID := uuid.New()
	go b.handleConn(ctx, conn, correlationID)
}
