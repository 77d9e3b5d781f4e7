package submission

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/notifybridge/pipeline/internal/apperrors"
	"github.com/notifybridge/pipeline/internal/broker"
)

// StatsResponse is the body for GET /v1/stats, the queue/DLQ depth
// introspection endpoint.
type StatsResponse struct {
	Queues map[string]int `json:"queues"`
}

// StatsProvider exposes read-only queue depth introspection.
type StatsProvider struct {
	conn *amqp.Connection
}

// NewStatsProvider wraps an existing broker connection. It opens its own
// channel per call rather than holding one open, since stats are polled
// infrequently by operators.
func NewStatsProvider(conn *amqp.Connection) *StatsProvider {
	return &StatsProvider{conn: conn}
}

// Stats reports the ready-message count for every queue in the topology.
func (p *StatsProvider) Stats(ctx context.Context) (*StatsResponse, error) {
	counts, err := broker.QueueStats(p.conn,
		broker.QueueIngress, broker.QueueEmail, broker.QueuePush,
		broker.QueueFailed, broker.QueueEmailDLQ, broker.QueuePushDLQ)
	if err != nil {
		return nil, apperrors.NewBrokerUnavailable("queue_stats", err)
	}
	return &StatsResponse{Queues: counts}, nil
}
