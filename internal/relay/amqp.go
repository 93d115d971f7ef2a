package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/fairyhunter13/order-fulfillment-service/internal/model"
)

// Channel is the part of *amqp.Channel the publisher uses.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPPublisher sends each transaction as a persistent JSON message.
type AMQPPublisher struct {
	mu       sync.Mutex
	ch       Channel
	exchange string
}

// NewAMQPPublisher publishes on ch to exchange.
func NewAMQPPublisher(ch Channel, exchange string) *AMQPPublisher {
	return &AMQPPublisher{ch: ch, exchange: exchange}
}

// RoutingKey is transaction.<type>, e.g. transaction.order_fulfilled.
func RoutingKey(tx model.Transaction) string {
	return "transaction." + strings.ToLower(string(tx.Type))
}

// Publish implements queue.Publisher.
func (p *AMQPPublisher) Publish(ctx context.Context, tx model.Transaction) error {
	body, err := json.Marshal(tx)
	if err != nil {
		return fmt.Errorf("could not marshal transaction %d: %w", tx.ID, err)
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    tx.Timestamp,
		Type:         string(tx.Type),
		Body:         body,
	}
	// Publishing on one channel from several workers must be serialized.
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ch.PublishWithContext(ctx,
		p.exchange,     // exchange
		RoutingKey(tx), // routing key
		false,          // mandatory
		false,          // immediate
		msg,
	)
}
