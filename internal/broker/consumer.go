package broker

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Consume opens a dedicated channel on conn, sets prefetch=1 so messages
// are processed strictly one at a time and acknowledgement stays
// straightforward, and returns the delivery channel for queue.
func Consume(conn *amqp.Connection, queue string) (*amqp.Channel, <-chan amqp.Delivery, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, nil, fmt.Errorf("open consume channel: %w", err)
	}
	if err := ch.Qos(1, 0, false); err != nil {
		_ = ch.Close()
		return nil, nil, fmt.Errorf("set prefetch: %w", err)
	}
	deliveries, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		return nil, nil, fmt.Errorf("consume %s: %w", queue, err)
	}
	return ch, deliveries, nil
}

// HeaderInt reads an integer header value, returning def if absent or of
// an unexpected type. AMQP table integers typically decode as int32 or
// int64 depending on how they were published.
func HeaderInt(headers amqp.Table, key string, def int) int {
	v, ok := headers[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case int32:
		return int(n)
	case int64:
		return int(n)
	case int:
		return n
	default:
		return def
	}
}

// HeaderString reads a string header value, returning "" if absent.
func HeaderString(headers amqp.Table, key string) string {
	v, ok := headers[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}
