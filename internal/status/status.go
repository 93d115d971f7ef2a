// Package status derives the dashboard counters from live state on every call.
package status

import (
	"github.com/fairyhunter13/order-fulfillment-service/internal/model"
)

// Products is the inventory surface the aggregator reads.
type Products interface {
	Len() int
	Quantity(id int64) (int64, bool)
}

// Orders is the order book surface the aggregator reads.
type Orders interface {
	List(status model.OrderStatus) []model.Order
	ReadyForDelivery() int
}

// Counter reports how many ledger entries exist.
type Counter interface {
	Count() uint64
}

// Aggregator computes SystemStatus without caching anything between calls.
type Aggregator struct {
	products Products
	orders   Orders
	ledger   Counter
}

// New creates an Aggregator. ledger may be nil, in which case the transaction
// total is reported as zero.
func New(products Products, orders Orders, ledger Counter) *Aggregator {
	return &Aggregator{products: products, orders: orders, ledger: ledger}
}

// Compute returns the current counters. A pending order is a backorder when its
// quantity exceeds the current stock of its product.
func (a *Aggregator) Compute() model.SystemStatus {
	pending := a.orders.List(model.OrderPending)
	backorders := 0
	for _, o := range pending {
		q, ok := a.products.Quantity(o.ProductID)
		if !ok || o.Quantity > q {
			backorders++
		}
	}
	st := model.SystemStatus{
		TotalProducts:    a.products.Len(),
		PendingOrders:    len(pending),
		Backorders:       backorders,
		ReadyForDelivery: a.orders.ReadyForDelivery(),
	}
	if a.ledger != nil {
		st.TotalTransactions = a.ledger.Count()
	}
	return st
}
