// Package main is the entry point for the Router Worker: a long-lived
// consumer fanning envelopes out into per-channel messages.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"golang.org/x/sync/errgroup"

	"github.com/notifybridge/pipeline/internal/config"
	"github.com/notifybridge/pipeline/internal/healthcheck"
	"github.com/notifybridge/pipeline/internal/router"
	"github.com/notifybridge/pipeline/internal/telemetry"
)

func main() {
	cfg := config.Load()

	if err := telemetry.InitGlobalLogger(&telemetry.LogConfig{
		Level:  telemetry.LogLevel(cfg.LogLevel),
		Format: cfg.LogFormat,
		Output: "stdout",
	}); err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	logger := telemetry.LogFromContext(context.Background())

	otelCfg := telemetry.LoadConfigFromEnv()
	otelCfg.ServiceName = cfg.ServiceName + "-router"
	otelCfg.Environment = cfg.Environment
	otelCfg.OTLPEndpoint = cfg.OTLPEndpoint
	otelCfg.Enabled = cfg.OTelEnabled
	otelShutdown, err := telemetry.InitializeOpenTelemetry(context.Background(), otelCfg)
	if err != nil {
		log.Fatalf("failed to initialize OpenTelemetry: %v", err)
	}
	defer otelShutdown()

	conn, err := amqp.Dial(cfg.BrokerURL)
	if err != nil {
		log.Fatalf("failed to connect to broker: %v", err)
	}
	defer func() { _ = conn.Close() }()

	worker, err := router.NewWorker(conn)
	if err != nil {
		log.Fatalf("failed to construct router worker: %v", err)
	}
	defer func() { _ = worker.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	healthServer := healthcheck.Start(cfg.HealthPort)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("router worker starting")
		return worker.Run(gctx)
	})

	<-ctx.Done()
	logger.Info("shutting down router worker")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := healthServer.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("health server shutdown error: %v", err)
	}

	if err := g.Wait(); err != nil && err != context.Canceled {
		logger.Warnf("router worker stopped with error: %v", err)
	}
	logger.Info("router worker stopped")
}

