package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Priority orders pending orders for allocation; higher is served first.
type Priority int

const (
	PriorityLow    Priority = 1
	PriorityMedium Priority = 2
	PriorityHigh   Priority = 3
)

// Valid reports whether p is one of the known levels.
func (p Priority) Valid() bool { return p >= PriorityLow && p <= PriorityHigh }

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityMedium:
		return "medium"
	case PriorityHigh:
		return "high"
	default:
		return fmt.Sprintf("priority(%d)", int(p))
	}
}

// ParsePriority accepts the level names used by clients.
func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low", "1":
		return PriorityLow, nil
	case "medium", "2":
		return PriorityMedium, nil
	case "high", "3":
		return PriorityHigh, nil
	}
	return 0, fmt.Errorf("unknown priority %q", s)
}

// MarshalJSON writes the level name.
func (p Priority) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

// UnmarshalJSON accepts either the numeric level (1..3) or its name.
// Out-of-range numbers are kept so that validation can reject them.
func (p *Priority) UnmarshalJSON(b []byte) error {
	var n int
	if err := json.Unmarshal(b, &n); err == nil {
		*p = Priority(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("priority must be a number or a name: %w", err)
	}
	parsed, err := ParsePriority(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderProcessing OrderStatus = "processing"
	OrderCompleted  OrderStatus = "completed"
	OrderCancelled  OrderStatus = "cancelled"
)

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderProcessing, OrderCompleted, OrderCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transition is allowed.
func (s OrderStatus) Terminal() bool {
	return s == OrderCompleted || s == OrderCancelled
}

// TransactionType is the wire vocabulary of ledger entries.
type TransactionType string

const (
	TxProductAdded    TransactionType = "PRODUCT_ADDED"
	TxStockIncrease   TransactionType = "STOCK_INCREASE"
	TxStockDecrease   TransactionType = "STOCK_DECREASE"
	TxOrderPlaced     TransactionType = "ORDER_PLACED"
	TxOrderFulfilled  TransactionType = "ORDER_FULFILLED"
	TxOrderCancelled  TransactionType = "ORDER_CANCELLED"
	TxOrderDispatched TransactionType = "ORDER_DISPATCHED"
)

// Category collapses the wire type into the coarse kind shown by dashboards.
func (t TransactionType) Category() string {
	switch t {
	case TxProductAdded:
		return "product_added"
	case TxStockIncrease, TxStockDecrease:
		return "stock_adjustment"
	case TxOrderPlaced:
		return "order_placed"
	case TxOrderFulfilled:
		return "order_processed"
	default:
		return strings.ToLower(string(t))
	}
}

// StockAdjustmentType picks the increase or decrease type for a signed delta.
func StockAdjustmentType(delta int64) TransactionType {
	if delta < 0 {
		return TxStockDecrease
	}
	return TxStockIncrease
}
