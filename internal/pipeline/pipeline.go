// Package pipeline routes trades to per-market workers, runs analysis passes
// and hands the resulting alerts to the dispatch gate.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/insiderwatch/internal/classifier"
	"github.com/alanyoungcy/insiderwatch/internal/confidence"
	"github.com/alanyoungcy/insiderwatch/internal/config"
	"github.com/alanyoungcy/insiderwatch/internal/detector"
	"github.com/alanyoungcy/insiderwatch/internal/dispatch"
	"github.com/alanyoungcy/insiderwatch/internal/domain"
	"github.com/alanyoungcy/insiderwatch/internal/ledger"
	"github.com/alanyoungcy/insiderwatch/internal/market"
)

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithDetectors replaces the default detector set.
func WithDetectors(d ...detector.Detector) Option {
	return func(p *Pipeline) { p.detectors = d }
}

// WithObserver adds an observer next to the built-in counters.
func WithObserver(o Observer) Option {
	return func(p *Pipeline) { p.extra = append(p.extra, o) }
}

// WithManualPasses disables the per-market analysis tickers. Passes then run
// only through AnalyzeNow.
func WithManualPasses() Option {
	return func(p *Pipeline) { p.manual = true }
}

// Pipeline owns one worker per market. Workers are created lazily on the
// first trade for a market and live until Run returns.
type Pipeline struct {
	cfg       atomic.Pointer[config.Config]
	ledger    *ledger.Ledger
	gate      *dispatch.Gate
	engine    *confidence.Engine
	detectors []detector.Detector
	stats     *Stats
	extra     []Observer
	observer  Observer
	manual    bool
	logger    *slog.Logger

	mu       sync.Mutex
	workers  map[string]*worker
	group    *errgroup.Group
	groupCtx context.Context
	workerWG sync.WaitGroup
	closed   bool

	running  atomic.Bool
	ingested atomic.Int64
}

// New creates a Pipeline. cfg is validated and copied.
func New(cfg *config.Config, l *ledger.Ledger, gate *dispatch.Gate, logger *slog.Logger, opts ...Option) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("pipeline: new: %w: %w", domain.ErrInvalidConfig, err)
	}
	p := &Pipeline{
		ledger:    l,
		gate:      gate,
		engine:    confidence.New(),
		detectors: detector.Default(),
		stats:     &Stats{},
		logger:    logger.With(slog.String("component", "pipeline")),
		workers:   make(map[string]*worker),
	}
	for _, o := range opts {
		o(p)
	}
	p.observer = append(observers{p.stats}, p.extra...)

	c := *cfg
	p.cfg.Store(&c)
	return p, nil
}

// Config returns the configuration in effect.
func (p *Pipeline) Config() *config.Config { return p.cfg.Load() }

// Configure validates cfg and swaps it in. Passes already running keep the
// configuration they started with. Market state sizing is fixed when a
// market's worker is created and is not changed here.
func (p *Pipeline) Configure(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("pipeline: configure: %w: %w", domain.ErrInvalidConfig, err)
	}
	c := *cfg
	p.cfg.Store(&c)
	p.ledger.SetClassifier(classifier.ParamsFrom(c.Classifier), c.Classifier.RecomputeEvery)
	p.gate.Configure(dispatch.PolicyFrom(&c))
	p.logger.Info("configuration applied")
	return nil
}

// Ingest queues a trade for its market's worker without blocking. When the
// worker queue is full the oldest queued trade is dropped.
func (p *Pipeline) Ingest(t domain.Trade) error {
	if err := t.Validate(); err != nil {
		p.observer.TradeRejected(t.MarketID, err)
		return fmt.Errorf("pipeline: ingest: %w", err)
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return domain.ErrClosed
	}
	w, ok := p.workers[t.MarketID]
	if !ok {
		cfg := p.cfg.Load()
		w = newWorker(p, t.MarketID, market.SizingFrom(&cfg.Detection), cfg.Detection.QueueCapacity)
		p.workers[t.MarketID] = w
		if p.group != nil {
			p.startLocked(w)
		}
	}
	p.mu.Unlock()

	w.enqueue(t)
	p.ingested.Add(1)
	return nil
}

// Alerts returns the dispatch gate's stream of admitted alerts.
func (p *Pipeline) Alerts() <-chan domain.Alert { return p.gate.Alerts() }

// Run starts the gate consumer and every worker, and blocks until ctx is
// done. Workers stop first and finish any pass in flight; the gate then
// drains its queue.
func (p *Pipeline) Run(ctx context.Context) error {
	if !p.running.CompareAndSwap(false, true) {
		return errors.New("pipeline: run: already running")
	}

	g, gctx := errgroup.WithContext(ctx)
	gateCtx, stopGate := context.WithCancel(context.WithoutCancel(ctx))
	defer stopGate()

	g.Go(func() error {
		return p.gate.Run(gateCtx)
	})

	p.mu.Lock()
	p.group, p.groupCtx = g, gctx
	for _, w := range p.workers {
		p.startLocked(w)
	}
	p.mu.Unlock()

	g.Go(func() error {
		<-gctx.Done()
		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()
		p.workerWG.Wait()
		stopGate()
		return nil
	})

	p.logger.Info("pipeline started", slog.Int("detectors", len(p.detectors)))
	err := g.Wait()
	p.logger.Info("pipeline stopped", slog.Int("markets", p.markets()))
	return err
}

// startLocked launches w inside the run group. Caller holds p.mu.
func (p *Pipeline) startLocked(w *worker) {
	p.workerWG.Add(1)
	ctx := p.groupCtx
	p.group.Go(func() error {
		defer p.workerWG.Done()
		return w.run(ctx)
	})
}

// AnalyzeNow applies every queued trade and runs a pass on each market with
// new trades, waiting for all passes to finish.
func (p *Pipeline) AnalyzeNow(ctx context.Context) error {
	p.mu.Lock()
	if p.group == nil || p.closed {
		p.mu.Unlock()
		return domain.ErrNotRunning
	}
	ws := make([]*worker, 0, len(p.workers))
	for _, w := range p.workers {
		ws = append(ws, w)
	}
	p.mu.Unlock()

	for _, w := range ws {
		done := make(chan struct{})
		select {
		case w.force <- done:
		case <-ctx.Done():
			return ctx.Err()
		}
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// analyze runs one pass over snap. It loads the configuration exactly once.
func (p *Pipeline) analyze(snap market.Snapshot) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			p.observer.PassFailed(snap.MarketID, fmt.Errorf("pipeline: pass panic: %v", r))
		}
	}()

	cfg := p.cfg.Load()
	signals := detector.Run(p.detectors, snap, p.ledger, &cfg.Detection, p.observer)
	a, ok := p.engine.Evaluate(snap.MarketID, signals, snap.LastPrice, snap.Clock, &cfg.Confidence)
	p.observer.PassCompleted(snap.MarketID, len(signals), time.Since(start))
	if !ok {
		return
	}
	p.observer.AlertEmitted(a)
	if err := p.gate.Submit(a); err != nil {
		p.logger.Warn("alert not queued for dispatch",
			slog.String("alert_id", a.ID),
			slog.String("market_id", a.MarketID),
			slog.String("error", err.Error()),
		)
	}
}

func (p *Pipeline) markets() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.workers)
}

// Stats returns the pipeline counters.
func (p *Pipeline) Stats() StatsSnapshot {
	s := p.stats.Snapshot()
	s.TradesIngested = p.ingested.Load()
	s.Markets = p.markets()
	s.Wallets = p.ledger.Len()
	return s
}
