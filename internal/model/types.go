// Package model defines domain types used by the service.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Browser clients treat prices as numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

// Product represents the current stock record of a product.
type Product struct {
	ID       int64           `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int64           `json:"quantity"`
	Category string          `json:"category"`
}

// Order is a customer request for a whole quantity of one product.
type Order struct {
	ID           int64       `json:"id"`
	ProductID    int64       `json:"productId"`
	Quantity     int64       `json:"quantity"`
	CustomerName string      `json:"customerName"`
	Priority     Priority    `json:"priority"`
	Status       OrderStatus `json:"status"`
	CreatedAt    time.Time   `json:"timestamp"`
	FulfilledAt  *time.Time  `json:"fulfilledAt,omitempty"`
	DeliveredAt  *time.Time  `json:"deliveredAt,omitempty"`
}

// ReadyForDelivery reports whether the order is allocated but not yet dispatched.
func (o Order) ReadyForDelivery() bool {
	return o.Status == OrderCompleted && o.DeliveredAt == nil
}

// Transaction is one immutable ledger entry.
type Transaction struct {
	ID        uint64          `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Type      TransactionType `json:"type"`
	ProductID *int64          `json:"product_id,omitempty"`
	Quantity  *int64          `json:"quantity,omitempty"`
	Details   string          `json:"details"`
}

// SystemStatus is derived from live store and order book state.
type SystemStatus struct {
	TotalProducts     int    `json:"total_products"`
	PendingOrders     int    `json:"pending_orders"`
	Backorders        int    `json:"backorders"`
	ReadyForDelivery  int    `json:"items_ready_for_delivery"`
	TotalTransactions uint64 `json:"total_transactions"`
}

// Component is one line of a composite product. A component either names a
// product or nests further components; Quantity multiplies either form.
type Component struct {
	ProductID  int64       `json:"productId,omitempty"`
	Quantity   int64       `json:"quantity"`
	Name       string      `json:"name,omitempty"`
	Components []Component `json:"components,omitempty"`
}

// IsNested reports whether the component groups other components.
func (c Component) IsNested() bool { return len(c.Components) > 0 }
