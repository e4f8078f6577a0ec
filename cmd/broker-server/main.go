// Command broker-server runs the message broker: the TCP listener, the
// background worker, and a side HTTP listener for Prometheus metrics.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	_ "go.uber.org/automaxprocs"

	"github.com/msgbroker/broker/broker"
	"github.com/msgbroker/broker/internal/config"
	"github.com/msgbroker/broker/internal/logging"
	"github.com/msgbroker/broker/internal/metrics"
)

var printConfig bool

var rootCmd = &cobra.Command{
	Use:   "broker-server",
	Short: "Run the publish/subscribe message broker",
	RunE:  runServer,
}

func init() {
	rootCmd.Flags().BoolVar(&printConfig, "print-config", false, "print the resolved configuration and exit")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, args []string) error {
	bootstrapLogger := logging.New(logging.Config{Level: "info", Format: "json"})

	cfg, err := config.Load(&bootstrapLogger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if printConfig {
		cfg.Print()
		return nil
	}

	logger := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	metrics.Register(prometheus.DefaultRegisterer)

	b := broker.New(broker.Config{
		GraceWindow:        cfg.GraceWindow,
		HeartbeatInterval:  cfg.HeartbeatInterval,
		ReadTimeout:        cfg.ReadTimeout,
		MaxPayloadBytes:    cfg.MaxPayloadBytes,
		CPURejectThreshold: cfg.CPURejectThreshold,
		MemRejectThreshold: cfg.MemRejectThreshold,
	}, &logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metricsErrCh := make(chan error, 1)
	go func() {
		metricsErrCh <- metrics.Serve(ctx, cfg.MetricsAddr)
	}()

	serveErrCh := make(chan error, 1)
	go func() {
		serveErrCh <- b.Serve(ctx, cfg.Addr)
	}()

	logging.LogInfo(&logger, "broker started", map[string]any{
		"addr":         cfg.Addr,
		"metrics_addr": cfg.MetricsAddr,
	})

	select {
	case <-ctx.Done():
		logging.LogInfo(&logger, "shutdown signal received", nil)
	case err := <-serveErrCh:
		if err != nil {
			logging.LogError(&logger, err, "broker listener failed", nil)
			stop()
			return err
		}
	case err := <-metricsErrCh:
		if err != nil {
			logging.LogError(&logger, err, "metrics listener failed", nil)
			stop()
		}
	}

	<-serveErrCh
	logging.LogInfo(&logger, "broker stopped", nil)
	return nil
}
