// Package sweeper implements the Retry Sweeper: a periodic task that
// drains failed.queue, republishing entries under their retry budget and
// promoting the rest to their channel's terminal DLQ. It runs a
// time.Ticker driving direct AMQP channel.Get polls against failed.queue
// rather than holding a long-lived consumer open between ticks.
package sweeper

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/notifybridge/pipeline/internal/broker"
	"github.com/notifybridge/pipeline/internal/telemetry"
)

// Config controls sweep cadence and retry policy.
type Config struct {
	// Interval between sweeps. Defaults to 60s.
	Interval time.Duration
	// MaxRetries is the number of times an entry may be republished
	// before it is promoted to its terminal DLQ. Defaults to 5.
	MaxRetries int
	// BatchSize bounds how many failed.queue entries a single sweep
	// drains.
	BatchSize int
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = 60 * time.Second
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 5
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 50
	}
	return c
}

// Sweeper periodically drains failed.queue.
type Sweeper struct {
	conn      *amqp.Connection
	publisher *broker.Publisher
	cfg       Config
	alerter   *DLQHealthAlerter
}

// NewSweeper constructs a Sweeper over conn with the given Config. The
// alerter, if non-nil, is notified after every sweep with the resulting
// DLQ health snapshot.
func NewSweeper(conn *amqp.Connection, cfg Config, alerter *DLQHealthAlerter) (*Sweeper, error) {
	pub, err := broker.NewPublisher(conn)
	if err != nil {
		return nil, err
	}
	return &Sweeper{conn: conn, publisher: pub, cfg: cfg.withDefaults(), alerter: alerter}, nil
}

// Run blocks, sweeping on every tick of cfg.Interval until ctx is
// cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	logger := telemetry.LogFromContext(ctx)
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.sweepOnce(ctx); err != nil {
				logger.Warnf("sweep failed: %v", err)
			}
		}
	}
}

// sweepOnce drains up to BatchSize entries currently sitting in
// failed.queue, using a short-lived Get-based consumer rather than a
// long-lived Consume so the sweeper never holds the queue open between
// ticks.
func (s *Sweeper) sweepOnce(ctx context.Context) error {
	logger := telemetry.LogFromContext(ctx)

	ch, err := s.conn.Channel()
	if err != nil {
		return fmt.Errorf("open sweep channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	var requeued, promoted int

	for i := 0; i < s.cfg.BatchSize; i++ {
		delivery, ok, err := ch.Get(broker.QueueFailed, false)
		if err != nil {
			return fmt.Errorf("get from %s: %w", broker.QueueFailed, err)
		}
		if !ok {
			break
		}

		if err := s.handleEntry(ctx, delivery); err != nil {
			logger.Warnf("sweeper: requeueing entry with nack after handling error: %v", err)
			_ = delivery.Nack(false, true)
			continue
		}
		_ = delivery.Ack(false)

		retryCount := broker.HeaderInt(delivery.Headers, "x-retry-count", 0)
		if retryCount < s.cfg.MaxRetries {
			requeued++
		} else {
			promoted++
		}
	}

	if requeued > 0 || promoted > 0 {
		logger.WithField("requeued", requeued).WithField("promoted", promoted).
			Info("retry sweep completed")
	}

	if s.alerter != nil {
		s.alerter.Observe(ctx, promoted)
	}

	return nil
}

// handleEntry republishes delivery to its main exchange with an
// incremented retry count when still under budget, else promotes it to
// the channel's terminal DLQ. The original body is republished
// byte-identical so repeated retries never mutate the payload.
func (s *Sweeper) handleEntry(ctx context.Context, delivery amqp.Delivery) error {
	channel := broker.HeaderString(delivery.Headers, "x-channel")
	retryCount := broker.HeaderInt(delivery.Headers, "x-retry-count", 0)
	lastError := broker.HeaderString(delivery.Headers, "x-last-error")

	if retryCount < s.cfg.MaxRetries {
		headers := amqp.Table{
			"x-retry-count": int32(retryCount + 1),
			"x-last-error":  lastError,
			"x-channel":     channel,
		}
		routingKey := broker.RoutingKeyEmail
		if channel == "push" {
			routingKey = broker.RoutingKeyPush
		}
		return s.publisher.PublishRaw(ctx, broker.ExchangeDirect, routingKey, delivery.Body, headers)
	}

	headers := amqp.Table{
		"x-retry-count":        int32(retryCount),
		"x-last-error":         lastError,
		"x-channel":            channel,
		"x-final-failure-time": time.Now().Unix(),
	}
	return s.publisher.PublishRaw(ctx, "", broker.TerminalDLQFor(channel), delivery.Body, headers)
}

// Close releases the sweeper's publishing channel.
func (s *Sweeper) Close() error { return s.publisher.Close() }
