package broker

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher owns one AMQP channel dedicated to publishing: each
// component that publishes messages opens its own connection and
// channel rather than sharing one across concurrency domains. It is safe
// to reuse across many publishes but not safe for concurrent use from
// multiple goroutines — callers needing concurrency should use a
// Publisher per goroutine or pool them.
type Publisher struct {
	ch *amqp.Channel
}

// NewPublisher opens a dedicated publishing channel on conn.
func NewPublisher(conn *amqp.Connection) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open publish channel: %w", err)
	}
	return &Publisher{ch: ch}, nil
}

// Close releases the publisher's channel.
func (p *Publisher) Close() error { return p.ch.Close() }

// PublishJSON marshals body and publishes it to exchange/routingKey with
// persistent delivery mode and content-type application/json. headers,
// if non-nil, are attached to the message (used for x-retry-count /
// x-last-error / x-failed-time on retry/dead-letter paths).
func (p *Publisher) PublishJSON(ctx context.Context, exchange, routingKey string, body interface{}, headers amqp.Table) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	return p.PublishRaw(ctx, exchange, routingKey, raw, headers)
}

// PublishRaw publishes an already-encoded body, preserving it
// byte-identical (used when re-wrapping a FailedEnvelope so its body is
// never re-serialized).
func (p *Publisher) PublishRaw(ctx context.Context, exchange, routingKey string, body []byte, headers amqp.Table) error {
	return p.ch.PublishWithContext(ctx, exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Headers:      headers,
		Body:         body,
	})
}
