// Package queue relays ledger transactions to a publisher through an
// in-memory queue drained by an autoscaled worker pool.
package queue

import (
	"context"
	"sync"
	"time"

	"github.com/fairyhunter13/order-fulfillment-service/internal/config"
	"github.com/fairyhunter13/order-fulfillment-service/internal/model"
	"github.com/fairyhunter13/order-fulfillment-service/internal/obs"
)

const (
	publishTimeout  = 5 * time.Second
	publishAttempts = 3
	publishBackoff  = 100 * time.Millisecond
)

// Publisher delivers one transaction downstream.
type Publisher interface {
	Publish(ctx context.Context, tx model.Transaction) error
}

// scalePolicy decides how the relay pool grows and shrinks. Growth happens
// when the backlog exceeds perWorker items per running worker; shrinking
// needs idleTicks consecutive observations of an empty backlog.
type scalePolicy struct {
	min, max  int
	perWorker int
	idleTicks int

	idle int
}

func newScalePolicy(cfg config.Config) *scalePolicy {
	p := &scalePolicy{
		min:       max(cfg.WorkerMin, 1),
		max:       max(cfg.WorkerMax, cfg.WorkerMin, 1),
		perWorker: max(cfg.ScaleUpBacklogPerWorker, 1),
		idleTicks: max(cfg.ScaleDownIdleTicks, 1),
	}
	return p
}

// observe returns +1, -1 or 0 workers for one tick.
func (p *scalePolicy) observe(backlog, workers int) int {
	if backlog > workers*p.perWorker && workers < p.max {
		p.idle = 0
		return 1
	}
	if backlog != 0 {
		p.idle = 0
		return 0
	}
	p.idle++
	if p.idle >= p.idleTicks && workers > p.min {
		p.idle = 0
		return -1
	}
	return 0
}

// Manager owns the relay worker pool.
type Manager struct {
	cfg    config.Config
	q      *Queue
	pub    Publisher
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	workers []context.CancelFunc
}

// NewManager wires a queue to a publisher. Nothing runs until Start.
func NewManager(cfg config.Config, q *Queue, pub Publisher) *Manager {
	return &Manager{cfg: cfg, q: q, pub: pub}
}

// Start launches the broker, the initial workers and the scaler.
func (m *Manager) Start(parent context.Context) {
	m.ctx, m.cancel = context.WithCancel(parent)
	m.q.Start(m.ctx, m.cfg.QueueHighWatermark)
	m.resize(max(m.cfg.InitialWorkerCount, 1))
	go m.scale(newScalePolicy(m.cfg))
}

// Stop cancels every worker and waits for in-flight publishes to return.
func (m *Manager) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.mu.Lock()
	for _, c := range m.workers {
		c()
	}
	m.workers = nil
	m.mu.Unlock()
	m.wg.Wait()
}

func (m *Manager) scale(p *scalePolicy) {
	interval := m.cfg.ScaleInterval
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-m.ctx.Done():
			return
		case <-t.C:
			if d := p.observe(m.q.BacklogSize(), m.WorkerCount()); d != 0 {
				m.resize(d)
			}
		}
	}
}

// resize adds delta workers, or stops -delta of the newest ones.
func (m *Manager) resize(delta int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for ; delta > 0; delta-- {
		wctx, cancel := context.WithCancel(m.ctx)
		m.workers = append(m.workers, cancel)
		m.wg.Add(1)
		go m.work(wctx)
	}
	for ; delta < 0 && len(m.workers) > 0; delta++ {
		last := len(m.workers) - 1
		m.workers[last]()
		m.workers = m.workers[:last]
	}
	obs.Logger.Info("relay_workers_scaled", "worker_count", len(m.workers))
}

func (m *Manager) work(ctx context.Context) {
	defer m.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case tx := <-m.q.Out():
			err := m.deliver(ctx, tx)
			if err != nil {
				obs.Logger.Error("transaction_publish_failed", "transaction_id", tx.ID, "type", string(tx.Type), "error", err)
			}
			m.q.MarkProcessed(err != nil)
		}
	}
}

// deliver tries the publisher a bounded number of times. A transaction
// already taken off the queue is still attempted after ctx is cancelled so
// that a scale-down never drops it.
func (m *Manager) deliver(ctx context.Context, tx model.Transaction) error {
	base := context.WithoutCancel(ctx)
	var err error
	for attempt := 1; attempt <= publishAttempts; attempt++ {
		pctx, cancel := context.WithTimeout(base, publishTimeout)
		err = m.pub.Publish(pctx, tx)
		cancel()
		if err == nil {
			return nil
		}
		if attempt < publishAttempts {
			obs.Logger.Warn("transaction_publish_retry", "transaction_id", tx.ID, "attempt", attempt, "error", err)
			time.Sleep(time.Duration(attempt) * publishBackoff)
		}
	}
	return err
}

// Enqueue hands a transaction to the relay without blocking. It reports
// false once intake is closed.
func (m *Manager) Enqueue(tx model.Transaction) bool { return m.q.Enqueue(tx) }

// WorkerCount returns the current number of workers.
func (m *Manager) WorkerCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.workers)
}

// CloseIntake disallows future enqueues.
func (m *Manager) CloseIntake() { m.q.CloseIntake() }

// QueueMetrics exposes the underlying queue metrics.
func (m *Manager) QueueMetrics() Metrics { return m.q.Metrics() }

// DrainUntil blocks until every enqueued transaction has been handled or ctx is done.
func (m *Manager) DrainUntil(ctx context.Context) bool {
	t := time.NewTicker(50 * time.Millisecond)
	defer t.Stop()
	for {
		mt := m.q.Metrics()
		if mt.BacklogSize == 0 && mt.QueueDepth == 0 && mt.Enqueued == mt.Processed {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-t.C:
		}
	}
}
