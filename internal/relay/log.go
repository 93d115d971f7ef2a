package relay

import (
	"context"

	"github.com/fairyhunter13/order-fulfillment-service/internal/model"
	"github.com/fairyhunter13/order-fulfillment-service/internal/obs"
)

// LogPublisher writes each transaction to the structured log. It is used when
// no broker is configured.
type LogPublisher struct{}

// Publish implements queue.Publisher.
func (LogPublisher) Publish(_ context.Context, tx model.Transaction) error {
	attrs := []any{
		"transaction_id", tx.ID,
		"type", string(tx.Type),
		"category", tx.Type.Category(),
		"routing_key", RoutingKey(tx),
		"details", tx.Details,
	}
	if tx.ProductID != nil {
		attrs = append(attrs, "product_id", *tx.ProductID)
	}
	if tx.Quantity != nil {
		attrs = append(attrs, "quantity", *tx.Quantity)
	}
	obs.Logger.Info("transaction_published", attrs...)
	return nil
}
