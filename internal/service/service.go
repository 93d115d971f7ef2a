// Package service wires the domain components together. Every mutation of the
// store or the order book that clients can observe is paired here with its
// ledger entry.
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fairyhunter13/order-fulfillment-service/internal/apperr"
	"github.com/fairyhunter13/order-fulfillment-service/internal/composite"
	"github.com/fairyhunter13/order-fulfillment-service/internal/engine"
	"github.com/fairyhunter13/order-fulfillment-service/internal/ledger"
	"github.com/fairyhunter13/order-fulfillment-service/internal/model"
	"github.com/fairyhunter13/order-fulfillment-service/internal/obs"
	"github.com/fairyhunter13/order-fulfillment-service/internal/orderbook"
	"github.com/fairyhunter13/order-fulfillment-service/internal/status"
	"github.com/fairyhunter13/order-fulfillment-service/internal/store"
)

// Options configures a Service. Zero values select the defaults.
type Options struct {
	LockTimeout       time.Duration
	LowStockThreshold int64
	TransactionsLimit int
	// Sink receives every ledger entry after it is appended.
	Sink ledger.Sink
	// Clock stamps orders and ledger entries; time.Now when nil.
	Clock func() time.Time
}

// Service is the orchestration layer behind the HTTP API.
type Service struct {
	store     *store.Store
	book      *orderbook.Book
	ledger    *ledger.Ledger
	engine    *engine.Engine
	status    *status.Aggregator
	composite *composite.Calculator

	lowStockThreshold int64
	txLimit           int
}

// New builds the store, order book, ledger and the components reading them.
func New(opts Options) *Service {
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = store.DefaultLockTimeout
	}
	if opts.LowStockThreshold <= 0 {
		opts.LowStockThreshold = 5
	}
	if opts.TransactionsLimit <= 0 {
		opts.TransactionsLimit = 10
	}
	var bookOpts []orderbook.Option
	var ledgerOpts []ledger.Option
	if opts.Clock != nil {
		bookOpts = append(bookOpts, orderbook.WithClock(opts.Clock))
		ledgerOpts = append(ledgerOpts, ledger.WithClock(opts.Clock))
	}
	if opts.Sink != nil {
		ledgerOpts = append(ledgerOpts, ledger.WithSink(opts.Sink))
	}
	st := store.New(opts.LockTimeout)
	book := orderbook.New(st, bookOpts...)
	l := ledger.New(ledgerOpts...)
	return &Service{
		store:             st,
		book:              book,
		ledger:            l,
		engine:            engine.New(st, book, l),
		status:            status.New(st, book, l),
		composite:         composite.New(st),
		lowStockThreshold: opts.LowStockThreshold,
		txLimit:           opts.TransactionsLimit,
	}
}

// CreateProduct adds a product and records PRODUCT_ADDED before the product
// can be adjusted or ordered.
func (s *Service) CreateProduct(name string, price decimal.Decimal, quantity int64, category string) (model.Product, error) {
	p, err := s.store.Create(name, price, quantity, category, func(p model.Product) {
		s.ledger.Append(ledger.Record{
			Type:      model.TxProductAdded,
			ProductID: ledger.Int(p.ID),
			Quantity:  ledger.Int(p.Quantity),
			Details:   "Added product: " + p.Name,
		})
	})
	if err != nil {
		return model.Product{}, err
	}
	obs.Logger.Info("product_created", "product_id", p.ID, "name", p.Name, "quantity", p.Quantity)
	return p, nil
}

// AdjustStock applies a signed, non-zero delta and records STOCK_INCREASE or
// STOCK_DECREASE with the delta as quantity. The ledger entry is written under
// the product lock so entries for one product follow the order of its changes.
func (s *Service) AdjustStock(ctx context.Context, productID, delta int64) (model.Product, error) {
	if delta == 0 {
		return model.Product{}, apperr.Validation("quantityChange must be non-zero")
	}
	var updated model.Product
	err := s.store.Update(ctx, productID, func(st *store.Stock) error {
		if _, err := st.Adjust(delta); err != nil {
			return err
		}
		updated = st.Product()
		s.ledger.Append(ledger.Record{
			Type:      model.StockAdjustmentType(delta),
			ProductID: ledger.Int(productID),
			Quantity:  ledger.Int(delta),
			Details:   "Stock adjustment",
		})
		return nil
	})
	if err != nil {
		return model.Product{}, err
	}
	obs.Logger.Info("stock_adjusted", "product_id", productID, "delta", delta, "quantity", updated.Quantity)
	return updated, nil
}

// GetProduct returns one product.
func (s *Service) GetProduct(id int64) (model.Product, error) { return s.store.Get(id) }

// ListProducts returns every product in creation order.
func (s *Service) ListProducts() []model.Product { return s.store.List() }

// LowStock lists products below threshold; a non-positive threshold uses the configured default.
func (s *Service) LowStock(threshold int64) []model.Product {
	if threshold <= 0 {
		threshold = s.lowStockThreshold
	}
	return s.store.LowStock(threshold)
}

// SearchProducts filters by name substring and category, both case-insensitive.
func (s *Service) SearchProducts(name, category string) []model.Product {
	return s.store.Search(name, category)
}

// PlaceOrder records a pending order and ORDER_PLACED. The entry is appended
// before the order can be allocated. Stock is not checked.
func (s *Service) PlaceOrder(productID, quantity int64, customerName string, priority model.Priority) (model.Order, error) {
	if priority == 0 {
		priority = model.PriorityLow
	}
	o, err := s.book.Place(productID, quantity, customerName, priority, func(o model.Order) {
		s.ledger.Append(ledger.Record{
			Type:      model.TxOrderPlaced,
			ProductID: ledger.Int(o.ProductID),
			Quantity:  ledger.Int(o.Quantity),
			Details:   fmt.Sprintf("Order #%d by %s", o.ID, o.CustomerName),
		})
	})
	if err != nil {
		return model.Order{}, err
	}
	obs.Logger.Info("order_placed", "order_id", o.ID, "product_id", o.ProductID, "quantity", o.Quantity, "priority", o.Priority.String())
	return o, nil
}

// GetOrder returns one order.
func (s *Service) GetOrder(id int64) (model.Order, error) { return s.book.Get(id) }

// ListOrders returns orders in placement order, optionally filtered by status.
func (s *Service) ListOrders(st string) ([]model.Order, error) {
	want := model.OrderStatus(strings.ToLower(strings.TrimSpace(st)))
	if want != "" && !want.Valid() {
		return nil, apperr.Validationf("unknown order status %q", st)
	}
	return s.book.List(want), nil
}

// CancelOrder cancels a pending order and records ORDER_CANCELLED.
func (s *Service) CancelOrder(id int64) (model.Order, error) {
	o, err := s.book.MarkCancelled(id)
	if err != nil {
		return model.Order{}, err
	}
	s.ledger.Append(ledger.Record{
		Type:      model.TxOrderCancelled,
		ProductID: ledger.Int(o.ProductID),
		Quantity:  ledger.Int(o.Quantity),
		Details:   fmt.Sprintf("Order #%d cancelled", o.ID),
	})
	obs.Logger.Info("order_cancelled", "order_id", o.ID)
	return o, nil
}

// ProcessOrders runs one allocation pass over at most maxCount pending orders;
// a non-positive maxCount takes them all.
func (s *Service) ProcessOrders(ctx context.Context, maxCount int) (engine.Result, error) {
	return s.engine.ProcessOrders(ctx, maxCount)
}

// Dispatch hands the n most recently completed orders to delivery and records
// ORDER_DISPATCHED for each.
func (s *Service) Dispatch(n int) ([]model.Order, error) {
	if n < 1 {
		return nil, apperr.Validation("count must be at least 1")
	}
	out := s.book.Dispatch(n)
	for _, o := range out {
		s.ledger.Append(ledger.Record{
			Type:      model.TxOrderDispatched,
			ProductID: ledger.Int(o.ProductID),
			Quantity:  ledger.Int(o.Quantity),
			Details:   fmt.Sprintf("Order #%d dispatched", o.ID),
		})
	}
	obs.Logger.Info("orders_dispatched", "count", len(out))
	return out, nil
}

// Transactions returns the newest entries first. limit 0 uses the configured
// default; productID, when set, keeps only that product's entries.
func (s *Service) Transactions(limit int, productID *int64) ([]model.Transaction, error) {
	if limit < 0 {
		return nil, apperr.Validation("limit must not be negative")
	}
	if limit == 0 {
		limit = s.txLimit
	}
	return s.ledger.Recent(limit, productID), nil
}

// Status returns the live dashboard counters.
func (s *Service) Status() model.SystemStatus { return s.status.Compute() }

// CompositeCost prices components at current store prices.
func (s *Service) CompositeCost(components []model.Component) (decimal.Decimal, error) {
	return s.composite.Calculate(components)
}
