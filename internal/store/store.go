// Package store is the authoritative inventory: product id to stock record.
package store

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fairyhunter13/order-fulfillment-service/internal/apperr"
	"github.com/fairyhunter13/order-fulfillment-service/internal/idgen"
	"github.com/fairyhunter13/order-fulfillment-service/internal/model"
)

// DefaultLockTimeout bounds how long a caller waits for a product lock.
const DefaultLockTimeout = 250 * time.Millisecond

// productState holds one product. Name, price and category never change after
// creation; quantity is only written while lock is held.
type productState struct {
	p        model.Product
	quantity atomic.Int64
	lock     chan struct{}
}

func (ps *productState) snapshot() model.Product {
	p := ps.p
	p.Quantity = ps.quantity.Load()
	return p
}

func (ps *productState) acquire(ctx context.Context, timeout time.Duration) error {
	select {
	case ps.lock <- struct{}{}:
		return nil
	default:
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case ps.lock <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return apperr.ConcurrencyConflictf("product %d is busy", ps.p.ID)
	}
}

func (ps *productState) release() { <-ps.lock }

// Stock is the locked view of one product handed to Update callbacks.
type Stock struct {
	ps *productState
}

// Product returns the current record.
func (s *Stock) Product() model.Product { return s.ps.snapshot() }

// Quantity returns the current quantity.
func (s *Stock) Quantity() int64 { return s.ps.quantity.Load() }

// Adjust applies a signed delta, rejecting any change that would go negative
// or overflow.
func (s *Stock) Adjust(delta int64) (int64, error) {
	cur := s.ps.quantity.Load()
	if delta > 0 && cur > math.MaxInt64-delta {
		return cur, apperr.Validationf("quantity overflow for product %d: %d + %d", s.ps.p.ID, cur, delta)
	}
	if cur+delta < 0 {
		return cur, apperr.InsufficientStockf(
			"insufficient stock for product %d: available %d, requested %d", s.ps.p.ID, cur, -delta)
	}
	s.ps.quantity.Store(cur + delta)
	return cur + delta, nil
}

// Store keeps products in creation order with one lock per product.
type Store struct {
	mu          sync.RWMutex
	m           map[int64]*productState
	order       []int64
	ids         idgen.Sequencer
	lockTimeout time.Duration
}

// New creates an empty Store. A non-positive lockTimeout selects DefaultLockTimeout.
func New(lockTimeout time.Duration) *Store {
	if lockTimeout <= 0 {
		lockTimeout = DefaultLockTimeout
	}
	return &Store{m: make(map[int64]*productState), lockTimeout: lockTimeout}
}

// Create validates and inserts a new product with the next id. onCreated, when
// non-nil, runs before the product becomes visible to other callers.
func (s *Store) Create(name string, price decimal.Decimal, quantity int64, category string, onCreated func(model.Product)) (model.Product, error) {
	name = strings.TrimSpace(name)
	category = strings.TrimSpace(category)
	switch {
	case name == "":
		return model.Product{}, apperr.Validation("name is required")
	case category == "":
		return model.Product{}, apperr.Validation("category is required")
	case price.IsNegative():
		return model.Product{}, apperr.Validation("price must be >= 0")
	case quantity < 0:
		return model.Product{}, apperr.Validation("quantity must be >= 0")
	}
	ps := &productState{
		p:    model.Product{Name: name, Price: price, Category: category},
		lock: make(chan struct{}, 1),
	}
	ps.quantity.Store(quantity)

	s.mu.Lock()
	defer s.mu.Unlock()
	ps.p.ID = s.ids.NextID()
	created := ps.snapshot()
	if onCreated != nil {
		onCreated(created)
	}
	s.m[ps.p.ID] = ps
	s.order = append(s.order, ps.p.ID)
	return created, nil
}

func (s *Store) state(id int64) (*productState, error) {
	s.mu.RLock()
	ps, ok := s.m[id]
	s.mu.RUnlock()
	if !ok {
		return nil, apperr.NotFoundf("product %d not found", id)
	}
	return ps, nil
}

// Get returns the product or a not_found error.
func (s *Store) Get(id int64) (model.Product, error) {
	ps, err := s.state(id)
	if err != nil {
		return model.Product{}, err
	}
	return ps.snapshot(), nil
}

// Exists reports whether id names a product.
func (s *Store) Exists(id int64) bool {
	_, err := s.state(id)
	return err == nil
}

// Quantity returns the current stock of id without taking its lock.
func (s *Store) Quantity(id int64) (int64, bool) {
	ps, err := s.state(id)
	if err != nil {
		return 0, false
	}
	return ps.quantity.Load(), true
}

// Update runs fn while holding the lock of product id. Waiting longer than the
// lock timeout yields a concurrency_conflict error and fn is not called.
func (s *Store) Update(ctx context.Context, id int64, fn func(*Stock) error) error {
	ps, err := s.state(id)
	if err != nil {
		return err
	}
	if err := ps.acquire(ctx, s.lockTimeout); err != nil {
		return err
	}
	defer ps.release()
	return fn(&Stock{ps: ps})
}

// Adjust atomically applies delta to the quantity of id and returns the new quantity.
func (s *Store) Adjust(ctx context.Context, id int64, delta int64) (int64, error) {
	var q int64
	err := s.Update(ctx, id, func(st *Stock) error {
		var err error
		q, err = st.Adjust(delta)
		return err
	})
	return q, err
}

// List returns every product in creation order.
func (s *Store) List() []model.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Product, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.m[id].snapshot())
	}
	return out
}

// Len returns the number of products.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// LowStock returns products whose quantity is below threshold, lowest first.
func (s *Store) LowStock(threshold int64) []model.Product {
	out := []model.Product{}
	for _, p := range s.List() {
		if p.Quantity < threshold {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Quantity < out[j].Quantity })
	return out
}

// Search filters by case-insensitive name substring and exact category, either may be empty.
func (s *Store) Search(name, category string) []model.Product {
	name = strings.ToLower(strings.TrimSpace(name))
	category = strings.TrimSpace(category)
	out := []model.Product{}
	for _, p := range s.List() {
		if name != "" && !strings.Contains(strings.ToLower(p.Name), name) {
			continue
		}
		if category != "" && !strings.EqualFold(p.Category, category) {
			continue
		}
		out = append(out, p)
	}
	return out
}
