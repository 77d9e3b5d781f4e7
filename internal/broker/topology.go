// Package broker declares and exercises the pipeline's AMQP topology:
// the ingress/per-channel/fail/terminal-DLQ queues, the direct and
// fanout exchanges, and their bindings, plus thin publish and consume
// helpers used by every other component.
package broker

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/notifybridge/pipeline/internal/telemetry"
)

// Exchange, queue, and routing-key names, wire-exact across every
// component that touches the broker.
const (
	ExchangeDirect = "notifications.direct"
	ExchangeDLX    = "notifications.dlx"

	QueueIngress = "notifications"
	QueueEmail   = "email.queue"
	QueuePush    = "push.queue"
	QueueFailed  = "failed.queue"
	QueueEmailDLQ = "email.dlq"
	QueuePushDLQ  = "push.dlq"

	// RoutingKeyEmail/RoutingKeyPush route envelopes out of the direct
	// exchange to their channel queue.
	RoutingKeyEmail = "notify.email"
	RoutingKeyPush  = "notify.push"

	// dlxRoutingKeyEmail/dlxRoutingKeyPush are the x-dead-letter-routing-key
	// argument values on the per-channel queues, distinct from the main
	// routing keys above.
	dlxRoutingKeyEmail = "email"
	dlxRoutingKeyPush  = "push"

	failedQueueTTLMillis = 24 * 60 * 60 * 1000
	failedQueueMaxLength = 10000
)

// TerminalDLQFor maps a channel name to its terminal DLQ queue name.
func TerminalDLQFor(channel string) string {
	if channel == "push" {
		return QueuePushDLQ
	}
	return QueueEmailDLQ
}

// Topology owns a dedicated AMQP connection/channel used only to declare
// the wire-exact broker shape. It is short-lived: callers should run
// Init once at process startup and close it afterward.
type Topology struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

// Connect dials the broker URL and opens a channel for topology work.
func Connect(url string) (*Topology, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	return &Topology{conn: conn, ch: ch}, nil
}

// Close releases the topology's connection and channel.
func (t *Topology) Close() error {
	if t.ch != nil {
		_ = t.ch.Close()
	}
	if t.conn != nil {
		return t.conn.Close()
	}
	return nil
}

// Init idempotently declares every exchange, queue, and binding this
// pipeline needs. If a queue already exists with divergent arguments,
// the broker rejects the declare with a 406 PRECONDITION_FAILED channel
// error; Init logs that case and passively accepts the existing queue
// rather than deleting or redeclaring it.
func (t *Topology) Init(ctx context.Context) error {
	logger := telemetry.LogFromContext(ctx)

	if err := t.ch.ExchangeDeclare(ExchangeDirect, amqp.ExchangeDirect, true, false, false, false, nil); err != nil {
		return t.acceptOrFail(logger, "exchange", ExchangeDirect, err)
	}
	if err := t.ch.ExchangeDeclare(ExchangeDLX, amqp.ExchangeFanout, true, false, false, false, nil); err != nil {
		return t.acceptOrFail(logger, "exchange", ExchangeDLX, err)
	}

	if _, err := t.ch.QueueDeclare(QueueIngress, true, false, false, false, nil); err != nil {
		return t.acceptOrFail(logger, "queue", QueueIngress, err)
	}

	if _, err := t.ch.QueueDeclare(QueueEmail, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    ExchangeDLX,
		"x-dead-letter-routing-key": dlxRoutingKeyEmail,
	}); err != nil {
		return t.acceptOrFail(logger, "queue", QueueEmail, err)
	}
	if _, err := t.ch.QueueDeclare(QueuePush, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    ExchangeDLX,
		"x-dead-letter-routing-key": dlxRoutingKeyPush,
	}); err != nil {
		return t.acceptOrFail(logger, "queue", QueuePush, err)
	}

	if _, err := t.ch.QueueDeclare(QueueFailed, true, false, false, false, amqp.Table{
		"x-message-ttl":  int32(failedQueueTTLMillis),
		"x-max-length":   int32(failedQueueMaxLength),
	}); err != nil {
		return t.acceptOrFail(logger, "queue", QueueFailed, err)
	}

	if _, err := t.ch.QueueDeclare(QueueEmailDLQ, true, false, false, false, nil); err != nil {
		return t.acceptOrFail(logger, "queue", QueueEmailDLQ, err)
	}
	if _, err := t.ch.QueueDeclare(QueuePushDLQ, true, false, false, false, nil); err != nil {
		return t.acceptOrFail(logger, "queue", QueuePushDLQ, err)
	}

	if err := t.ch.QueueBind(QueueEmail, RoutingKeyEmail, ExchangeDirect, false, nil); err != nil {
		return fmt.Errorf("bind %s: %w", QueueEmail, err)
	}
	if err := t.ch.QueueBind(QueuePush, RoutingKeyPush, ExchangeDirect, false, nil); err != nil {
		return fmt.Errorf("bind %s: %w", QueuePush, err)
	}
	if err := t.ch.QueueBind(QueueFailed, "", ExchangeDLX, false, nil); err != nil {
		return fmt.Errorf("bind %s: %w", QueueFailed, err)
	}

	logger.Info("broker topology initialized")
	return nil
}

// acceptOrFail logs and accepts a 406 PRECONDITION_FAILED (queue/exchange
// exists with divergent arguments) and fails on anything else.
func (t *Topology) acceptOrFail(logger *telemetry.ContextualLogger, kind, name string, err error) error {
	if amqpErr, ok := err.(*amqp.Error); ok && amqpErr.Code == amqp.PreconditionFailed {
		logger.WithField(kind, name).Warnf("%s %s exists with divergent arguments, leaving as-is", kind, name)
		// The channel was closed by the broker when the declare was
		// rejected; reopen one for subsequent declares in this Init call.
		newCh, reopenErr := t.conn.Channel()
		if reopenErr != nil {
			return fmt.Errorf("reopen channel after precondition failure on %s %s: %w", kind, name, reopenErr)
		}
		t.ch = newCh
		return nil
	}
	return fmt.Errorf("declare %s %s: %w", kind, name, err)
}
