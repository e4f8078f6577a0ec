// Package metrics registers the broker's Prometheus collectors and serves
// them on a side HTTP listener, entirely separate from the broker's own TCP
// listener (§4.11).
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ConnectionsCurrent = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "broker_connections_current",
		Help: "Current number of accepted TCP connections.",
	})

	SessionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "broker_sessions_total",
		Help: "Total number of sessions logged in (fresh or reconnected).",
	})

	QueuesCurrent = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "broker_queues_current",
		Help: "Current number of queues in the catalog.",
	})

	MessagesPublishedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "broker_messages_published_total",
		Help: "Total number of publish commands accepted.",
	})

	MessagesDeliveredTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "broker_messages_delivered_total",
		Help: "Total number of message frames delivered to subscribers.",
	})

	MessagesExpiredTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "broker_messages_expired_total",
		Help: "Total number of retained messages dropped by TTL eviction.",
	})

	SessionsReapedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "broker_sessions_reaped_total",
		Help: "Total number of sessions erased after their grace window elapsed.",
	})

	ProtocolErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "broker_protocol_errors_total",
		Help: "Total number of non-fatal protocol errors (unknown type pairs, malformed publish payloads).",
	})
)

// Register registers every collector with reg. Tests pass an isolated
// registry instead of the global default.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		ConnectionsCurrent,
		SessionsTotal,
		QueuesCurrent,
		MessagesPublishedTotal,
		MessagesDeliveredTotal,
		MessagesExpiredTotal,
		SessionsReapedTotal,
		ProtocolErrorsTotal,
	)
}

// Serve starts the /metrics HTTP listener and blocks until ctx is canceled
// or the listener fails. It is intended to run in its own goroutine.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		return srv.Shutdown(context.Background())
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
