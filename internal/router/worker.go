// Package router implements the Router Worker: consumes envelopes from
// the ingress queue and fans them out into per-channel messages on the
// channel queues, as a long-lived AMQP consumer with prefetch=1.
package router

import (
	"context"
	"encoding/json"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/notifybridge/pipeline/internal/broker"
	"github.com/notifybridge/pipeline/internal/notifypipe"
	"github.com/notifybridge/pipeline/internal/telemetry"
)

// Worker consumes the ingress queue and fans out per-channel messages.
type Worker struct {
	conn      *amqp.Connection
	publisher *broker.Publisher
}

// NewWorker constructs a router Worker over conn, opening its own
// publishing channel rather than sharing one with another component.
func NewWorker(conn *amqp.Connection) (*Worker, error) {
	pub, err := broker.NewPublisher(conn)
	if err != nil {
		return nil, err
	}
	return &Worker{conn: conn, publisher: pub}, nil
}

// Run consumes notifications until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	ch, deliveries, err := broker.Consume(w.conn, broker.QueueIngress)
	if err != nil {
		return err
	}
	defer func() { _ = ch.Close() }()

	logger := telemetry.LogFromContext(ctx)
	logger.Info("router worker consuming " + broker.QueueIngress)

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

	var envelope notifypipe.Envelope
	if err := json.Unmarshal(delivery.Body, &envelope); err != nil {
		logger.Warnf("router: malformed envelope, discarding: %v", err)
		_ = delivery.Nack(false, false)
		return
	}

	if err := envelope.Validate(); err != nil {
		logger.Warnf("router: envelope failed validation, discarding: %v", err)
		_ = delivery.Nack(false, false)
		return
	}

	if !envelope.DeliveryTargets.HasAnyTarget() {
		logger.WithField("submission_id", envelope.Metadata.SubmissionID).
			Warn("router: envelope has no deliverable channel, acking no-op")
		_ = delivery.Ack(false)
		return
	}

	if err := w.fanout(ctx, envelope); err != nil {
		logger.WithField("submission_id", envelope.Metadata.SubmissionID).
			Warnf("router: fan-out publish failed, nacking without requeue: %v", err)
		_ = delivery.Nack(false, false)
		return
	}

	_ = delivery.Ack(false)
}

// fanout publishes the applicable per-channel messages for envelope.
// push_token is preferred over phone when both are present, and
// email/push are independent: the router never duplicates a channel for
// the same envelope.
func (w *Worker) fanout(ctx context.Context, envelope notifypipe.Envelope) error {
	submissionID := envelope.Metadata.SubmissionID

	if envelope.DeliveryTargets.Email != "" {
		msg := notifypipe.EmailMessage{
			NotificationID: submissionID,
			UserID:         envelope.RecipientID,
			To:             envelope.DeliveryTargets.Email,
			Subject:        envelope.Rendered.Subject,
			Content:        envelope.Rendered.BodyHTML,
			TemplateID:     envelope.Metadata.TemplateKey,
			Data:           envelope.Preferences,
		}
		if err := w.publisher.PublishJSON(ctx, broker.ExchangeDirect, broker.RoutingKeyEmail, msg, nil); err != nil {
			return err
		}
	}

	pushTarget := envelope.DeliveryTargets.PushToken
	if pushTarget == "" {
		pushTarget = envelope.DeliveryTargets.Phone
	}
	if pushTarget != "" {
		msg := notifypipe.PushMessage{
			NotificationID: submissionID,
			UserID:         envelope.RecipientID,
			Target:         pushTarget,
			Title:          envelope.Rendered.Subject,
			Body:           envelope.Rendered.BodyText,
			Data:           envelope.Preferences,
		}
		if err := w.publisher.PublishJSON(ctx, broker.ExchangeDirect, broker.RoutingKeyPush, msg, nil); err != nil {
			return err
		}
	}

	return nil
}

// Close releases the worker's publishing channel.
func (w *Worker) Close() error { return w.publisher.Close() }
