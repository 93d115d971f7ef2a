// Package engine allocates stock to pending orders.
//
// A pass walks pending orders by priority (high first) and age (oldest
// first), and completes each order whose whole quantity is in stock. Orders
// that cannot be filled stay pending as backorders and are retried by later
// passes; one order failing never stops the rest of the window.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/fairyhunter13/order-fulfillment-service/internal/apperr"
	"github.com/fairyhunter13/order-fulfillment-service/internal/ledger"
	"github.com/fairyhunter13/order-fulfillment-service/internal/model"
	"github.com/fairyhunter13/order-fulfillment-service/internal/obs"
	"github.com/fairyhunter13/order-fulfillment-service/internal/store"
)

// Inventory is the per-product locking surface of the store.
type Inventory interface {
	Update(ctx context.Context, id int64, fn func(*store.Stock) error) error
}

// Orders is the part of the order book a pass needs.
type Orders interface {
	PendingOrdered() []model.Order
	Complete(id int64, allocate func(model.Order) error) (model.Order, error)
}

// Appender records fulfilment in the ledger.
type Appender interface {
	Append(r ledger.Record) model.Transaction
}

// Result lists the outcome of one pass in processing order.
type Result struct {
	Completed        []int64 `json:"completed"`
	StillBackordered []int64 `json:"still_backordered"`
}

// errShortStock means the order's product has less stock than requested.
var errShortStock = errors.New("stock below order quantity")

type outcome int

const (
	outcomeCompleted outcome = iota
	outcomeBackordered
	outcomeSkipped
)

// Engine runs at most one allocation pass at a time.
type Engine struct {
	inv     Inventory
	orders  Orders
	ledger  Appender
	pass    *semaphore.Weighted
	retries int
}

// New creates an Engine. Transient failures of a single order are retried once.
func New(inv Inventory, orders Orders, l Appender) *Engine {
	return &Engine{inv: inv, orders: orders, ledger: l, pass: semaphore.NewWeighted(1), retries: 1}
}

// ProcessOrders allocates stock to up to maxCount pending orders; a
// non-positive maxCount takes every pending order. Orders beyond the window
// are untouched. If ctx ends mid-pass the orders already decided keep their
// outcome and the error is returned with the partial result.
func (e *Engine) ProcessOrders(ctx context.Context, maxCount int) (Result, error) {
	res := Result{Completed: []int64{}, StillBackordered: []int64{}}
	if err := e.pass.Acquire(ctx, 1); err != nil {
		return res, err
	}
	defer e.pass.Release(1)

	start := time.Now()
	window := e.orders.PendingOrdered()
	if maxCount > 0 && len(window) > maxCount {
		window = window[:maxCount]
	}
	for _, o := range window {
		if err := ctx.Err(); err != nil {
			obs.Logger.Warn("allocation_pass_aborted", "error", err, "completed", len(res.Completed))
			return res, err
		}
		switch e.allocateWithRetry(ctx, o) {
		case outcomeCompleted:
			res.Completed = append(res.Completed, o.ID)
		case outcomeBackordered:
			res.StillBackordered = append(res.StillBackordered, o.ID)
		}
	}
	obs.Logger.Info("allocation_pass_complete",
		"window", len(window),
		"completed", len(res.Completed),
		"backordered", len(res.StillBackordered),
		"latency_ms", float64(time.Since(start).Microseconds())/1000.0,
	)
	return res, nil
}

func (e *Engine) allocateWithRetry(ctx context.Context, o model.Order) outcome {
	var err error
	for attempt := 0; attempt <= e.retries; attempt++ {
		err = e.allocate(ctx, o)
		switch {
		case err == nil:
			return outcomeCompleted
		case errors.Is(err, errShortStock):
			obs.Logger.Debug("order_backordered", "order_id", o.ID, "product_id", o.ProductID, "quantity", o.Quantity)
			return outcomeBackordered
		case apperr.Is(err, apperr.KindInvalidState), apperr.Is(err, apperr.KindNotFound):
			// Cancelled or otherwise moved on since the window was read.
			obs.Logger.Info("order_skipped", "order_id", o.ID, "reason", err.Error())
			return outcomeSkipped
		case apperr.Is(err, apperr.KindConcurrencyConflict), apperr.Is(err, apperr.KindInsufficientStock):
			obs.Logger.Warn("order_allocation_retry", "order_id", o.ID, "attempt", attempt+1, "error", err)
			continue
		default:
			obs.Logger.Error("order_allocation_failed", "order_id", o.ID, "error", err)
			return outcomeBackordered
		}
	}
	obs.Logger.Warn("order_backordered_after_retry", "order_id", o.ID, "error", err)
	return outcomeBackordered
}

// allocate decides and applies one order under its product lock: the stock
// decrement, the order transition and the ledger entry happen together or not at all.
func (e *Engine) allocate(ctx context.Context, o model.Order) error {
	return e.inv.Update(ctx, o.ProductID, func(st *store.Stock) error {
		done, err := e.orders.Complete(o.ID, func(cur model.Order) error {
			if st.Quantity() < cur.Quantity {
				return errShortStock
			}
			_, err := st.Adjust(-cur.Quantity)
			return err
		})
		if err != nil {
			return err
		}
		e.ledger.Append(ledger.Record{
			Type:      model.TxOrderFulfilled,
			ProductID: ledger.Int(done.ProductID),
			Quantity:  ledger.Int(done.Quantity),
			Details:   fmt.Sprintf("Order #%d", done.ID),
		})
		return nil
	})
}
