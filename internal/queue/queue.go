package queue

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fairyhunter13/order-fulfillment-service/internal/model"
	"github.com/fairyhunter13/order-fulfillment-service/internal/obs"
)

// Queue is an unbounded transaction backlog with a background broker feeding
// a buffered output channel. Enqueue never blocks the caller.
type Queue struct {
	mu           sync.Mutex
	backlog      []model.Transaction
	notify       chan struct{}
	out          chan model.Transaction
	shuttingDown atomic.Bool

	enqueued  atomic.Uint64
	processed atomic.Uint64
	failed    atomic.Uint64
}

// New creates a Queue with a buffered output channel.
func New(outBuffer int) *Queue {
	if outBuffer <= 0 {
		outBuffer = 64
	}
	return &Queue{
		notify: make(chan struct{}, 1),
		out:    make(chan model.Transaction, outBuffer),
	}
}

// Start runs the broker loop.
func (q *Queue) Start(ctx context.Context, highWatermark int) {
	go q.broker(ctx, highWatermark)
}

// broker moves backlog items to the output channel.
func (q *Queue) broker(ctx context.Context, highWatermark int) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	warned := false
	for {
		q.flushOnce()
		if highWatermark > 0 {
			sz := q.BacklogSize()
			if sz > highWatermark && !warned {
				obs.Logger.Warn("relay_backlog_high", "backlog_size", sz, "high_watermark", highWatermark)
			}
			warned = sz > highWatermark
		}
		select {
		case <-ctx.Done():
			return
		case <-q.notify:
		case <-ticker.C:
		}
	}
}

// flushOnce drains backlog into the output buffer.
func (q *Queue) flushOnce() {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for n < len(q.backlog) && len(q.out) < cap(q.out) {
		q.out <- q.backlog[n]
		n++
	}
	if n > 0 {
		clear(q.backlog[:n])
		q.backlog = q.backlog[n:]
	}
}

// Enqueue appends a transaction to the backlog and notifies the broker.
// It reports false once intake is closed.
func (q *Queue) Enqueue(tx model.Transaction) bool {
	if q.shuttingDown.Load() {
		return false
	}
	q.enqueued.Add(1)
	q.mu.Lock()
	q.backlog = append(q.backlog, tx)
	q.mu.Unlock()
	select {
	case q.notify <- struct{}{}:
	default:
	}
	return true
}

// Out exposes the output channel.
func (q *Queue) Out() <-chan model.Transaction { return q.out }

// BacklogSize returns the number of enqueued-but-not-yet-output transactions.
func (q *Queue) BacklogSize() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.backlog)
}

// QueueDepth returns backlog plus buffered output items.
func (q *Queue) QueueDepth() int {
	q.mu.Lock()
	bl := len(q.backlog)
	q.mu.Unlock()
	return bl + len(q.out)
}

// MarkProcessed records one finished delivery attempt; failed marks it unsuccessful.
func (q *Queue) MarkProcessed(failed bool) {
	if failed {
		q.failed.Add(1)
	}
	q.processed.Add(1)
}

// Metrics is a point-in-time view of the queue counters.
type Metrics struct {
	Enqueued    uint64 `json:"transactions_enqueued"`
	Processed   uint64 `json:"transactions_processed"`
	Failed      uint64 `json:"transactions_failed"`
	BacklogSize int    `json:"backlog_size"`
	QueueDepth  int    `json:"queue_depth"`
}

// Metrics returns counters and sizes for observability.
func (q *Queue) Metrics() Metrics {
	return Metrics{
		Enqueued:    q.enqueued.Load(),
		Processed:   q.processed.Load(),
		Failed:      q.failed.Load(),
		BacklogSize: q.BacklogSize(),
		QueueDepth:  q.QueueDepth(),
	}
}

// CloseIntake disallows future enqueues.
func (q *Queue) CloseIntake() { q.shuttingDown.Store(true) }

// IsShuttingDown reports if intake has been closed.
func (q *Queue) IsShuttingDown() bool { return q.shuttingDown.Load() }
