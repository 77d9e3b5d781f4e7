// Package main is the entry point for a Channel Worker. A single binary
// serves either channel; CHANNEL selects email or push so operators can
// run competing-consumer fleets of either kind from the same image.
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

	"github.com/notifybridge/pipeline/internal/audit"
	"github.com/notifybridge/pipeline/internal/broker"
	"github.com/notifybridge/pipeline/internal/channelworker"
	"github.com/notifybridge/pipeline/internal/config"
	"github.com/notifybridge/pipeline/internal/healthcheck"
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

	if err := cfg.ValidateChannelWorker(); err != nil {
		log.Fatalf("configuration error: %v", err)
	}
	logger := telemetry.LogFromContext(context.Background())

	otelCfg := telemetry.LoadConfigFromEnv()
	otelCfg.ServiceName = cfg.ServiceName + "-" + cfg.Channel + "-worker"
	otelCfg.Environment = cfg.Environment
	otelCfg.OTLPEndpoint = cfg.OTLPEndpoint
	otelCfg.Enabled = cfg.OTelEnabled
	otelShutdown, err := telemetry.InitializeOpenTelemetry(context.Background(), otelCfg)
	if err != nil {
		log.Fatalf("failed to initialize OpenTelemetry: %v", err)
	}
	defer otelShutdown()

	db, err := audit.Open(cfg.AuditDatabaseURL)
	if err != nil {
		log.Fatalf("failed to open audit database: %v", err)
	}
	defer func() { _ = db.Close() }()
	repo := audit.NewPostgresRepository(db)

	conn, err := amqp.Dial(cfg.BrokerURL)
	if err != nil {
		log.Fatalf("failed to connect to broker: %v", err)
	}
	defer func() { _ = conn.Close() }()

	var queue string
	var sender channelworker.Sender
	switch cfg.Channel {
	case "push":
		queue = broker.QueuePush
		sender = channelworker.NewPushSender(channelworker.PushSenderConfig{
			APIKey:  cfg.PushProviderAPIKey,
			BaseURL: cfg.PushProviderURL,
			Timeout: cfg.ProviderTimeout,
		})
	default:
		queue = broker.QueueEmail
		sender = channelworker.NewEmailSender(channelworker.EmailSenderConfig{
			APIKey:  cfg.EmailProviderAPIKey,
			BaseURL: cfg.EmailProviderURL,
			Timeout: cfg.ProviderTimeout,
		})
	}

	worker, err := channelworker.NewWorker(conn, queue, sender, repo)
	if err != nil {
		log.Fatalf("failed to construct %s channel worker: %v", cfg.Channel, err)
	}
	defer func() { _ = worker.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	healthServer := healthcheck.Start(cfg.HealthPort)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Infof("%s channel worker starting on %s", cfg.Channel, queue)
		return worker.Run(gctx)
	})

	<-ctx.Done()
	logger.Infof("shutting down %s channel worker", cfg.Channel)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := healthServer.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("health server shutdown error: %v", err)
	}

	if err := g.Wait(); err != nil && err != context.Canceled {
		logger.Warnf("%s channel worker stopped with error: %v", cfg.Channel, err)
	}
	logger.Infof("%s channel worker stopped", cfg.Channel)
}

