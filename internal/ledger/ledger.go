// Package ledger is the append-only audit trail of inventory and order events.
package ledger

import (
	"sync"
	"time"

	"github.com/fairyhunter13/order-fulfillment-service/internal/idgen"
	"github.com/fairyhunter13/order-fulfillment-service/internal/model"
)

// Sink receives every appended transaction. Enqueue must not block.
type Sink interface {
	Enqueue(tx model.Transaction) bool
}

// Record is the caller-supplied part of a transaction.
type Record struct {
	Type      model.TransactionType
	ProductID *int64
	Quantity  *int64
	Details   string
}

// Int returns a pointer to v for optional Record fields.
func Int(v int64) *int64 { return &v }

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(l *Ledger) { l.now = now } }

// WithSink forwards appended transactions to s.
func WithSink(s Sink) Option { return func(l *Ledger) { l.sink = s } }

// Ledger never updates or removes an entry. Ids are issued under the write
// lock, so slice order, id order and append order coincide.
type Ledger struct {
	mu      sync.RWMutex
	entries []model.Transaction
	ids     idgen.Sequencer
	now     func() time.Time
	sink    Sink
}

// New creates an empty Ledger.
func New(opts ...Option) *Ledger {
	l := &Ledger{now: time.Now}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Append stores r as the next transaction and returns it.
func (l *Ledger) Append(r Record) model.Transaction {
	l.mu.Lock()
	tx := model.Transaction{
		ID:        l.ids.Next(),
		Timestamp: l.now().UTC(),
		Type:      r.Type,
		ProductID: copyInt(r.ProductID),
		Quantity:  copyInt(r.Quantity),
		Details:   r.Details,
	}
	l.entries = append(l.entries, tx)
	l.mu.Unlock()

	if l.sink != nil {
		l.sink.Enqueue(tx)
	}
	return tx
}

// Recent returns up to limit transactions, newest first. A non-positive limit
// returns everything. A non-nil productID restricts the result to that product.
func (l *Ledger) Recent(limit int, productID *int64) []model.Transaction {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]model.Transaction, 0, min(max(limit, 0), len(l.entries)))
	for i := len(l.entries) - 1; i >= 0; i-- {
		if limit > 0 && len(out) >= limit {
			break
		}
		tx := l.entries[i]
		if productID != nil && (tx.ProductID == nil || *tx.ProductID != *productID) {
			continue
		}
		out = append(out, tx)
	}
	return out
}

// Last returns the most recent transaction.
func (l *Ledger) Last() (model.Transaction, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.entries) == 0 {
		return model.Transaction{}, false
	}
	return l.entries[len(l.entries)-1], true
}

// Count returns the number of appended transactions.
func (l *Ledger) Count() uint64 { return l.ids.Last() }

func copyInt(p *int64) *int64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
