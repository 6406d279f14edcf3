package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alanyoungcy/insiderwatch/internal/domain"
	"github.com/alanyoungcy/insiderwatch/internal/market"
)

// worker owns one market's State. Only the worker goroutine touches the
// state; passes run on snapshots in their own goroutine.
type worker struct {
	p        *Pipeline
	marketID string
	state    *market.State

	mu    sync.Mutex
	queue *market.Ring[domain.Trade]

	wake  chan struct{}
	force chan chan struct{}

	inFlight    atomic.Bool
	passes      sync.WaitGroup
	lastApplied int64
}

func newWorker(p *Pipeline, marketID string, sz market.Sizing, queueCapacity int) *worker {
	return &worker{
		p:        p,
		marketID: marketID,
		state:    market.NewState(marketID, sz),
		queue:    market.NewRing[domain.Trade](queueCapacity),
		wake:     make(chan struct{}, 1),
		force:    make(chan chan struct{}),
	}
}

func (w *worker) enqueue(t domain.Trade) {
	w.mu.Lock()
	dropped := w.queue.Push(t)
	w.mu.Unlock()
	if dropped {
		w.p.observer.TradeDropped(w.marketID)
	}
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *worker) run(ctx context.Context) error {
	var (
		ticker   *time.Ticker
		tick     <-chan time.Time
		interval = w.p.cfg.Load().Detection.AnalysisInterval.Duration
	)
	if !w.p.manual {
		ticker = time.NewTicker(interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			w.passes.Wait()
			return nil
		case <-w.wake:
			w.apply()
		case <-tick:
			w.apply()
			w.tick()
			if d := w.p.cfg.Load().Detection.AnalysisInterval.Duration; d != interval {
				interval = d
				ticker.Reset(d)
			}
		case done := <-w.force:
			w.apply()
			w.passes.Wait()
			if snap, ok := w.begin(); ok {
				w.p.analyze(snap)
				w.inFlight.Store(false)
			}
			close(done)
		}
	}
}

// apply moves queued trades into the ledger and the market state. Trades
// older than the market clock are rejected before the ledger sees them.
func (w *worker) apply() {
	w.mu.Lock()
	trades := w.queue.Drain()
	w.mu.Unlock()

	for _, t := range trades {
		if err := w.state.Check(t); err != nil {
			w.p.observer.TradeRejected(w.marketID, err)
			continue
		}
		prior := w.p.ledger.Record(t)
		if err := w.state.Ingest(t, prior); err != nil {
			w.p.observer.TradeRejected(w.marketID, err)
		}
	}
}

// tick starts an asynchronous pass unless one is still running.
func (w *worker) tick() {
	if w.state.Applied() == w.lastApplied {
		return
	}
	snap, ok := w.begin()
	if !ok {
		w.p.observer.PassSkipped(w.marketID)
		return
	}
	w.passes.Add(1)
	go func() {
		defer w.passes.Done()
		defer w.inFlight.Store(false)
		w.p.analyze(snap)
	}()
}

// begin claims the in-flight slot and snapshots the state. It reports false
// when a pass is already running or there is nothing new to analyze.
func (w *worker) begin() (market.Snapshot, bool) {
	if w.state.Applied() == w.lastApplied {
		return market.Snapshot{}, false
	}
	if !w.inFlight.CompareAndSwap(false, true) {
		return market.Snapshot{}, false
	}
	snap := w.state.Snapshot()
	w.state.MarkAnalyzed(snap.Clock)
	w.lastApplied = snap.Applied
	return snap, true
}
