package broker

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// QueueStats returns the ready-message count for each named queue via a
// passive declare (no side effects on an existing queue), backing the
// queue/DLQ depth introspection endpoint.
func QueueStats(conn *amqp.Connection, queues ...string) (map[string]int, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open stats channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	stats := make(map[string]int, len(queues))
	for _, q := range queues {
		qq, err := ch.QueueDeclarePassive(q, true, false, false, false, nil)
		if err != nil {
			return nil, fmt.Errorf("inspect queue %s: %w", q, err)
		}
		stats[q] = qq.Messages
	}
	return stats, nil
}
