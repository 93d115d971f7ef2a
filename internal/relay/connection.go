// Package relay publishes ledger transactions to downstream consumers.
package relay

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/fairyhunter13/order-fulfillment-service/internal/obs"
)

// ExchangeType is the kind of exchange transactions are published to.
const ExchangeType = "topic"

const (
	dialAttempts = 5
	dialBackoff  = 2 * time.Second
)

// Dial connects to RabbitMQ, opens a channel and declares the durable topic
// exchange. Connection attempts are retried while the broker starts up.
func Dial(ctx context.Context, url, exchange string) (*amqp.Connection, *amqp.Channel, error) {
	var conn *amqp.Connection
	var err error
	for i := 0; i < dialAttempts; i++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			break
		}
		obs.Logger.Warn("amqp_dial_failed", "attempt", i+1, "error", err)
		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		case <-time.After(dialBackoff):
		}
	}
	if err != nil {
		return nil, nil, fmt.Errorf("could not connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("could not open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		exchange,     // name
		ExchangeType, // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, nil, fmt.Errorf("could not declare exchange: %w", err)
	}
	return conn, ch, nil
}
