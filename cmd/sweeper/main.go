// Package main is the entry point for the Retry Sweeper: a single
// periodic task per deployment, using its own broker connection so it
// never contends with consumers.
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
	"github.com/notifybridge/pipeline/internal/sweeper"
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
	if err := telemetry.InitSentry(telemetry.SentryConfig{
		Enabled:     cfg.SentryEnabled,
		DSN:         cfg.SentryDSN,
		Environment: cfg.SentryEnvironment,
	}); err != nil {
		log.Printf("WARNING: sentry init failed: %v", err)
	}
	defer telemetry.FlushSentry(2 * time.Second)

	logger := telemetry.LogFromContext(context.Background())

	otelCfg := telemetry.LoadConfigFromEnv()
	otelCfg.ServiceName = cfg.ServiceName + "-sweeper"
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

	alerter := sweeper.NewDLQHealthAlerter(cfg.DLQAlertThreshold)
	sw, err := sweeper.NewSweeper(conn, sweeper.Config{
		Interval:   cfg.SweepInterval,
		MaxRetries: cfg.MaxRetries,
		BatchSize:  cfg.SweepBatchSize,
	}, alerter)
	if err != nil {
		log.Fatalf("failed to construct sweeper: %v", err)
	}
	defer func() { _ = sw.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	healthServer := healthcheck.Start(cfg.HealthPort)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Infof("retry sweeper starting (interval=%s, max_retries=%d)", cfg.SweepInterval, cfg.MaxRetries)
		return sw.Run(gctx)
	})

	<-ctx.Done()
	logger.Info("shutting down retry sweeper")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := healthServer.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("health server shutdown error: %v", err)
	}

	if err := g.Wait(); err != nil && err != context.Canceled {
		logger.Warnf("retry sweeper stopped with error: %v", err)
	}
	logger.Info("retry sweeper stopped")
}

