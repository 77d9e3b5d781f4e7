// Package main is the entry point for the Submission API: HTTP ingress
// validating, idempotency-guarding, and enqueuing notification requests
// (config-load -> client-construction-with-deferred-close ->
// errgroup-driven graceful shutdown).
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/notifybridge/pipeline/internal/audit"
	"github.com/notifybridge/pipeline/internal/broker"
	"github.com/notifybridge/pipeline/internal/clients"
	"github.com/notifybridge/pipeline/internal/config"
	"github.com/notifybridge/pipeline/internal/healthcheck"
	"github.com/notifybridge/pipeline/internal/idempotency"
	"github.com/notifybridge/pipeline/internal/submission"
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

	otelCfg := telemetry.LoadConfigFromEnv()
	otelCfg.ServiceName = cfg.ServiceName + "-submission"
	otelCfg.Environment = cfg.Environment
	otelCfg.OTLPEndpoint = cfg.OTLPEndpoint
	otelCfg.Enabled = cfg.OTelEnabled
	otelShutdown, err := telemetry.InitializeOpenTelemetry(context.Background(), otelCfg)
	if err != nil {
		log.Fatalf("failed to initialize OpenTelemetry: %v", err)
	}
	defer otelShutdown()

	if err := cfg.ValidateSubmission(); err != nil {
		log.Fatalf("configuration error: %v", err)
	}

	logger := telemetry.LogFromContext(context.Background())

	conn, err := amqp.Dial(cfg.BrokerURL)
	if err != nil {
		log.Fatalf("failed to connect to broker: %v", err)
	}
	defer func() { _ = conn.Close() }()

	publisher, err := broker.NewPublisher(conn)
	if err != nil {
		log.Fatalf("failed to open publisher channel: %v", err)
	}
	defer func() { _ = publisher.Close() }()

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Fatalf("invalid REDIS_URL: %v", err)
	}
	redisClient := redis.NewClient(redisOpts)
	defer func() { _ = redisClient.Close() }()

	profileClient := clients.NewProfileClient(clients.ProfileClientConfig{
		BaseURL:        cfg.ProfileServiceURL,
		InternalSecret: cfg.InternalSecret,
		Timeout:        cfg.UpstreamTimeout,
	})
	templateClient := clients.NewTemplateClient(clients.TemplateClientConfig{
		BaseURL:        cfg.TemplateServiceURL,
		InternalSecret: cfg.InternalSecret,
		Timeout:        cfg.UpstreamTimeout,
	})
	idempotencyStore := idempotency.NewRedisStore(redisClient)

	service := submission.NewService(profileClient, templateClient, idempotencyStore, publisher)
	stats := submission.NewStatsProvider(conn)
	handler := submission.NewHandler(service, stats)

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	handler.Register(app)

	auditDB, err := audit.Open(cfg.AuditDatabaseURL)
	if err != nil {
		log.Fatalf("failed to open audit database: %v", err)
	}
	defer func() { _ = auditDB.Close() }()
	reconciler := submission.NewReconciler(audit.NewPostgresRepository(auditDB))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	healthServer := healthcheck.Start(cfg.HealthPort)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Infof("submission API listening on :%s", cfg.HTTPPort)
		if err := app.Listen(":" + cfg.HTTPPort); err != nil {
			return err
		}
		return nil
	})
	g.Go(func() error {
		ticker := time.NewTicker(cfg.ReconcileInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				flagged, err := reconciler.Run(gctx, cfg.ReconcileStaleAfterHours)
				if err != nil {
					logger.Warnf("reconciliation sweep failed: %v", err)
					continue
				}
				if flagged > 0 {
					logger.Warnf("reconciliation sweep flagged %d stale submission(s)", flagged)
				}
			}
		}
	})

	<-ctx.Done()
	logger.Info("shutting down submission API")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Warnf("fiber shutdown error: %v", err)
	}
	if err := healthServer.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("health server shutdown error: %v", err)
	}

	if err := g.Wait(); err != nil && err != http.ErrServerClosed {
		logger.Warnf("submission API server error: %v", err)
	}
	logger.Info("submission API stopped")
}

