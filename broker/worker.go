package broker

import (
	"context"
	"time"

	"github.com/msgbroker/broker/internal/logging"
	"github.com/msgbroker/broker/internal/metrics"
	"github.com/msgbroker/broker/wire"
)

// runWorker is the single background goroutine of §4.6: every
// HeartbeatInterval, with a 1-second tick for cancellation latency, it
// reaps stale sessions, emits heartbeats, evicts expired retained
// messages, and refreshes the admission sample.
func (b *Broker) runWorker(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	interval := b.cfg.HeartbeatInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	var elapsed time.Duration

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			elapsed += time.Second
			if elapsed < interval {
				continue
			}
			elapsed = 0
			b.runWorkerTick()
		}
	}
}

func (b *Broker) runWorkerTick() {
	now := time.Now()

	// Step 1-2: reap sessions whose grace has elapsed, purge them from the
	// queue store outside the session registry's lock.
	for _, id := range b.sessions.ReapExpired(now) {
		b.queues.PurgeSubscriber(id)
		metrics.SessionsReapedTotal.Inc()
	}

	// Step 3: heartbeat every still-live socket.
	for _, conn := range b.sessions.LiveSockets() {
		if err := b.send.Send(conn, wire.RoleHeartbeat, wire.ActionHeartbeat, nil); err != nil {
			logging.LogError(b.logger, err, "heartbeat send failed", nil)
		}
	}

	// Step 4: evict expired retained messages.
	dropped := b.queues.EvictExpired(now)
	metrics.MessagesExpiredTotal.Add(float64(dropped))

	// Step 5 (expansion, A4): refresh the admission sample.
	if err := b.guard.Refresh(); err != nil {
		logging.LogError(b.logger, err, "admission sample refresh failed", nil)
	}
}
