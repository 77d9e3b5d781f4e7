// Package channelworker implements the per-channel Channel Worker:
// consumes one channel's queue, calls the provider, and
// acks/dead-letters.
package channelworker

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/notifybridge/pipeline/internal/audit"
	"github.com/notifybridge/pipeline/internal/broker"
	"github.com/notifybridge/pipeline/internal/notifypipe"
	"github.com/notifybridge/pipeline/internal/telemetry"
)

// SendResult is returned by a Sender after attempting delivery.
type SendResult struct {
	Success            bool
	ProviderMessageID  string
	ProviderStatusCode int
	Err                error
}

// Sender is the per-channel provider-call capability. Each channel
// (email, push) has its own implementation.
type Sender interface {
	Channel() notifypipe.Channel
	Send(ctx context.Context, body []byte) SendResult
}

// Worker consumes one channel queue, calls its Sender, and records the
// outcome to the audit repository.
type Worker struct {
	conn      *amqp.Connection
	publisher *broker.Publisher
	sender    Sender
	repo      audit.Repository
	queue     string
}

// NewWorker constructs a channel Worker for queue, bound to sender and
// repo.
func NewWorker(conn *amqp.Connection, queue string, sender Sender, repo audit.Repository) (*Worker, error) {
	pub, err := broker.NewPublisher(conn)
	if err != nil {
		return nil, err
	}
	return &Worker{conn: conn, publisher: pub, sender: sender, repo: repo, queue: queue}, nil
}

// Run consumes the channel queue (prefetch=1) until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	ch, deliveries, err := broker.Consume(w.conn, w.queue)
	if err != nil {
		return err
	}
	defer func() { _ = ch.Close() }()

	logger := telemetry.LogFromContext(ctx)
	logger.Info("channel worker consuming " + w.queue)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-deliveries:
			if !ok {
				return nil
			}
			w.handle(ctx, delivery)
		}
	}
}

func (w *Worker) handle(ctx context.Context, delivery amqp.Delivery) {
	logger := telemetry.LogFromContext(ctx)
	channel := w.sender.Channel()

	submissionID, userID := peekIdentity(delivery.Body)
	retryCount := broker.HeaderInt(delivery.Headers, "x-retry-count", 0)

	result := w.sender.Send(ctx, delivery.Body)

	attempt := notifypipe.DeliveryAttempt{
		SubmissionID: submissionID,
		RecipientID:  userID,
		Channel:      channel,
		RetryCount:   retryCount,
		AttemptAt:    time.Now().UTC(),
	}

	if result.Success {
		attempt.Status = notifypipe.AttemptSent
		attempt.ProviderMessageID = result.ProviderMessageID
		attempt.ProviderStatusCode = result.ProviderStatusCode
		if err := w.repo.Record(ctx, attempt); err != nil {
			logger.Warnf("audit record failed for sent attempt, continuing: %v", err)
		}
		_ = delivery.Ack(false)
		return
	}

	attempt.Status = notifypipe.AttemptFailed
	attempt.ProviderStatusCode = result.ProviderStatusCode
	if result.Err != nil {
		attempt.Error = truncate(result.Err.Error(), 500)
	}
	if err := w.repo.Record(ctx, attempt); err != nil {
		logger.Warnf("audit record failed for failed attempt, continuing: %v", err)
	}

	if err := w.deadLetter(ctx, delivery, channel, retryCount, attempt.Error); err != nil {
		logger.Warnf("dead-letter republish failed, nacking with requeue: %v", err)
		_ = delivery.Nack(false, true)
		return
	}
	_ = delivery.Ack(false)
}

// deadLetter republishes the original body to the DLX with retry headers
// preserved. It deliberately doesn't use the broker's native
// reject-to-dead-letter mechanism, because the retry count must survive
// across the hop.
func (w *Worker) deadLetter(ctx context.Context, delivery amqp.Delivery, channel notifypipe.Channel, retryCount int, lastError string) error {
	headers := amqp.Table{
		"x-retry-count": int32(retryCount),
		"x-last-error":  lastError,
		"x-failed-time": time.Now().Unix(),
		"x-channel":     string(channel),
	}
	return w.publisher.PublishRaw(ctx, broker.ExchangeDLX, "", delivery.Body, headers)
}

// peekIdentity extracts notification_id/user_id without committing to
// either channel message shape, so audit rows can be written even when
// the body only partially matches one schema.
func peekIdentity(body []byte) (submissionID, userID string) {
	var partial struct {
		NotificationID string `json:"notification_id"`
		UserID         string `json:"user_id"`
	}
	_ = json.Unmarshal(body, &partial)
	return partial.NotificationID, partial.UserID
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// Close releases the worker's publishing channel.
func (w *Worker) Close() error { return w.publisher.Close() }
