// Package orderbook owns orders and their lifecycle transitions.
package orderbook

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fairyhunter13/order-fulfillment-service/internal/apperr"
	"github.com/fairyhunter13/order-fulfillment-service/internal/idgen"
	"github.com/fairyhunter13/order-fulfillment-service/internal/model"
)

// ProductLookup tells the book whether a product id is known.
type ProductLookup interface {
	Exists(id int64) bool
}

// Option configures a Book.
type Option func(*Book)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(b *Book) { b.now = now }
}

// Book stores orders in creation order. Completed orders are also pushed on a
// delivery stack so the most recently completed order is dispatched first.
type Book struct {
	products ProductLookup
	now      func() time.Time
	ids      idgen.Sequencer

	mu       sync.RWMutex
	orders   map[int64]*model.Order
	created  []int64
	delivery []int64
}

// New creates an empty Book that validates product ids against products.
func New(products ProductLookup, opts ...Option) *Book {
	b := &Book{
		products: products,
		now:      time.Now,
		orders:   make(map[int64]*model.Order),
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Place records a new pending order. Stock is not checked here. onPlaced, when
// non-nil, runs before the order becomes visible to other callers.
func (b *Book) Place(productID, quantity int64, customerName string, priority model.Priority, onPlaced func(model.Order)) (model.Order, error) {
	customerName = strings.TrimSpace(customerName)
	switch {
	case quantity <= 0:
		return model.Order{}, apperr.Validation("quantity must be > 0")
	case customerName == "":
		return model.Order{}, apperr.Validation("customerName is required")
	case !priority.Valid():
		return model.Order{}, apperr.Validationf("priority must be 1, 2 or 3, got %d", int(priority))
	}
	if !b.products.Exists(productID) {
		return model.Order{}, apperr.NotFoundf("product %d not found", productID)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	o := &model.Order{
		ID:           b.ids.NextID(),
		ProductID:    productID,
		Quantity:     quantity,
		CustomerName: customerName,
		Priority:     priority,
		Status:       model.OrderPending,
		CreatedAt:    b.now().UTC(),
	}
	if onPlaced != nil {
		onPlaced(*o)
	}
	b.orders[o.ID] = o
	b.created = append(b.created, o.ID)
	return *o, nil
}

// Get returns a copy of the order.
func (b *Book) Get(id int64) (model.Order, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	o, ok := b.orders[id]
	if !ok {
		return model.Order{}, apperr.NotFoundf("order %d not found", id)
	}
	return *o, nil
}

// List returns orders in creation order, filtered by status when it is non-empty.
func (b *Book) List(status model.OrderStatus) []model.Order {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]model.Order, 0, len(b.created))
	for _, id := range b.created {
		o := b.orders[id]
		if status != "" && o.Status != status {
			continue
		}
		out = append(out, *o)
	}
	return out
}

// PendingOrdered returns pending orders by priority descending, then oldest
// first. Age is the placement sequence: ids are issued under the same lock
// that stamps CreatedAt, so a wall clock stepping backwards cannot reorder them.
func (b *Book) PendingOrdered() []model.Order {
	pending := b.List(model.OrderPending)
	sort.SliceStable(pending, func(i, j int) bool {
		a, c := pending[i], pending[j]
		if a.Priority != c.Priority {
			return a.Priority > c.Priority
		}
		return a.ID < c.ID
	})
	return pending
}

// Complete transitions a pending order to completed. allocate, when non-nil,
// runs first with the order's current state; if it fails nothing changes.
func (b *Book) Complete(id int64, allocate func(model.Order) error) (model.Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	o, err := b.pendingLocked(id)
	if err != nil {
		return model.Order{}, err
	}
	if allocate != nil {
		if err := allocate(*o); err != nil {
			return model.Order{}, err
		}
	}
	now := b.now().UTC()
	o.Status = model.OrderCompleted
	o.FulfilledAt = &now
	b.delivery = append(b.delivery, o.ID)
	return *o, nil
}

// MarkCompleted transitions a pending order to completed.
func (b *Book) MarkCompleted(id int64) (model.Order, error) {
	return b.Complete(id, nil)
}

// MarkCancelled transitions a pending order to cancelled.
func (b *Book) MarkCancelled(id int64) (model.Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	o, err := b.pendingLocked(id)
	if err != nil {
		return model.Order{}, err
	}
	o.Status = model.OrderCancelled
	return *o, nil
}

func (b *Book) pendingLocked(id int64) (*model.Order, error) {
	o, ok := b.orders[id]
	if !ok {
		return nil, apperr.NotFoundf("order %d not found", id)
	}
	if o.Status.Terminal() {
		return nil, apperr.InvalidStatef("order %d is already %s", id, o.Status)
	}
	if o.Status != model.OrderPending {
		return nil, apperr.InvalidStatef("order %d is %s, not pending", id, o.Status)
	}
	return o, nil
}

// Dispatch pops up to n orders from the delivery stack, most recently completed
// first, and stamps them delivered.
func (b *Book) Dispatch(n int) []model.Order {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := []model.Order{}
	now := b.now().UTC()
	for len(out) < n && len(b.delivery) > 0 {
		id := b.delivery[len(b.delivery)-1]
		b.delivery = b.delivery[:len(b.delivery)-1]
		o := b.orders[id]
		if !o.ReadyForDelivery() {
			continue
		}
		o.DeliveredAt = &now
		out = append(out, *o)
	}
	return out
}

// ReadyForDelivery counts completed orders not yet dispatched.
func (b *Book) ReadyForDelivery() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.delivery)
}
