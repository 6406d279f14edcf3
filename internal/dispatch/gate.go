// Package dispatch filters, rate-limits and delivers alerts to notification
// channels.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alanyoungcy/insiderwatch/internal/config"
	"github.com/alanyoungcy/insiderwatch/internal/dedup"
	"github.com/alanyoungcy/insiderwatch/internal/domain"
)

// Channel delivers an alert to one destination.
type Channel interface {
	Name() string
	Send(ctx context.Context, alert domain.Alert) error
}

// OutcomeRecorder receives one outcome per alert and channel.
type OutcomeRecorder interface {
	Record(ctx context.Context, outcome domain.DispatchOutcome) error
}

const (
	ScopeShared     = "shared"
	ScopePerChannel = "per_channel"
)

// Policy is the hot-swappable part of the gate configuration.
type Policy struct {
	// Floors maps channel names to their minimum severity. Channels without
	// an entry use DefaultFloor.
	Floors           map[string]domain.Severity
	DefaultFloor     domain.Severity
	MaxAlertsPerHour int
	Scope            string
	DuplicateWindow  time.Duration
}

func (p *Policy) floor(channel string) domain.Severity {
	if f, ok := p.Floors[channel]; ok {
		return f
	}
	return p.DefaultFloor
}

// PolicyFrom builds a Policy from the dispatch and notify sections. Severity
// names have already been validated by config.Validate.
func PolicyFrom(cfg *config.Config) Policy {
	floors := make(map[string]domain.Severity, 3)
	for name, s := range map[string]string{
		"telegram": cfg.Notify.TelegramMinSeverity,
		"discord":  cfg.Notify.DiscordMinSeverity,
		"console":  cfg.Notify.ConsoleMinSeverity,
	} {
		if sev, err := domain.ParseSeverity(s); err == nil {
			floors[name] = sev
		}
	}
	return Policy{
		Floors:           floors,
		DefaultFloor:     domain.SeverityMedium,
		MaxAlertsPerHour: cfg.Dispatch.MaxAlertsPerHour,
		Scope:            cfg.Dispatch.RateLimitScope,
		DuplicateWindow:  cfg.Dispatch.DuplicateWindow.Duration,
	}
}

// Options are the structural settings of a Gate, fixed at construction.
type Options struct {
	QueueCapacity int
	MaxInFlight   int
	SendTimeout   time.Duration
	DrainTimeout  time.Duration
	// Now replaces time.Now for outcome timestamps and the duplicate window.
	Now func() time.Time
}

// OptionsFrom converts the dispatch section.
func OptionsFrom(cfg *config.DispatchConfig) Options {
	return Options{
		QueueCapacity: cfg.QueueCapacity,
		MaxInFlight:   cfg.MaxInFlight,
		SendTimeout:   cfg.SendTimeout.Duration,
		DrainTimeout:  cfg.DrainTimeout.Duration,
	}
}

// Gate is the single consumer of offered alerts. Submit never blocks; Run
// applies the duplicate window, per-channel severity floors and the rate
// limiter, then sends asynchronously with bounded concurrency.
type Gate struct {
	channels []Channel
	limiter  Limiter
	recorder OutcomeRecorder
	dedup    *dedup.Window
	policy   atomic.Pointer[Policy]
	opts     Options
	logger   *slog.Logger

	queue   chan domain.Alert
	alerts  chan domain.Alert
	sem     chan struct{}
	wg      sync.WaitGroup
	abandon chan struct{}
	closed  atomic.Bool
	running atomic.Bool

	offered      atomic.Int64
	queueDropped atomic.Int64
	duplicate    atomic.Int64
	published    atomic.Int64
	perChannel   map[string]*counters
}

// New creates a Gate. recorder may be nil.
func New(channels []Channel, limiter Limiter, recorder OutcomeRecorder, policy Policy, opts Options, logger *slog.Logger) *Gate {
	if opts.QueueCapacity < 1 {
		opts.QueueCapacity = 1
	}
	if opts.MaxInFlight < 1 {
		opts.MaxInFlight = 1
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	g := &Gate{
		channels:   channels,
		limiter:    limiter,
		recorder:   recorder,
		dedup:      dedup.New(policy.DuplicateWindow, dedup.WithClock(opts.Now)),
		opts:       opts,
		logger:     logger.With(slog.String("component", "dispatch")),
		queue:      make(chan domain.Alert, opts.QueueCapacity),
		alerts:     make(chan domain.Alert, opts.QueueCapacity),
		sem:        make(chan struct{}, opts.MaxInFlight),
		abandon:    make(chan struct{}),
		perChannel: make(map[string]*counters, len(channels)),
	}
	for _, ch := range channels {
		g.perChannel[ch.Name()] = &counters{}
	}
	g.policy.Store(&policy)
	return g
}

// Configure swaps the channel floors, rate and duplicate window.
func (g *Gate) Configure(p Policy) {
	g.policy.Store(&p)
	g.dedup.SetTTL(p.DuplicateWindow)
	if rs, ok := g.limiter.(RateSetter); ok {
		rs.SetRate(p.MaxAlertsPerHour)
	}
}

// Submit enqueues an alert without blocking. It returns domain.ErrQueueFull
// when the queue is full and domain.ErrClosed once the gate has shut down.
func (g *Gate) Submit(a domain.Alert) error {
	if g.closed.Load() {
		return domain.ErrClosed
	}
	select {
	case g.queue <- a:
		return nil
	default:
		g.queueDropped.Add(1)
		g.logger.Warn("alert queue full, dropping alert",
			slog.String("alert_id", a.ID),
			slog.String("market_id", a.MarketID),
		)
		return domain.ErrQueueFull
	}
}

// Alerts returns the stream of alerts admitted to at least one channel. It is
// closed when Run returns and must be consumed.
func (g *Gate) Alerts() <-chan domain.Alert { return g.alerts }

// Run consumes the queue until ctx is done, then drains it under a context
// bounded by the drain timeout, waits for in-flight sends and closes Alerts.
func (g *Gate) Run(ctx context.Context) error {
	if !g.running.CompareAndSwap(false, true) {
		return errors.New("dispatch: run: already running")
	}
	base := context.WithoutCancel(ctx)
	g.logger.Info("dispatch gate started", slog.Int("channels", len(g.channels)))

	cleanup := time.NewTicker(time.Minute)
	defer cleanup.Stop()

	for {
		select {
		case <-ctx.Done():
			g.drain(base)
			return nil
		case a := <-g.queue:
			g.offer(base, a)
		case <-cleanup.C:
			g.dedup.Cleanup()
		}
	}
}

func (g *Gate) drain(base context.Context) {
	g.closed.Store(true)
	dctx, cancel := context.WithTimeout(base, g.opts.DrainTimeout)
	defer cancel()

	drained := 0
loop:
	for dctx.Err() == nil {
		select {
		case a := <-g.queue:
			g.offer(dctx, a)
			drained++
		default:
			break loop
		}
	}

	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-dctx.Done():
		close(g.abandon)
		<-done
	}
	close(g.alerts)
	g.logger.Info("dispatch gate stopped",
		slog.Int("drained", drained),
		slog.Int("left_in_queue", len(g.queue)),
	)
}

// offer runs one alert through the duplicate window, floors and limiter, and
// starts the sends for every admitted channel.
func (g *Gate) offer(ctx context.Context, a domain.Alert) {
	g.offered.Add(1)
	p := g.policy.Load()

	if g.dedup.IsDuplicate(duplicateKey(a)) {
		g.duplicate.Add(1)
		for _, ch := range g.channels {
			g.record(ctx, a, ch.Name(), domain.DispatchDuplicate, nil)
		}
		g.logger.Debug("duplicate alert suppressed",
			slog.String("alert_id", a.ID),
			slog.String("market_id", a.MarketID),
			slog.String("type", string(a.Type)),
		)
		return
	}

	var (
		admitted     []Channel
		sharedTaken  bool
		sharedAllows bool
	)
	for _, ch := range g.channels {
		name := ch.Name()
		if a.Severity < p.floor(name) {
			g.record(ctx, a, name, domain.DispatchBelowSeverity, nil)
			continue
		}

		var allowed bool
		if p.Scope == ScopePerChannel {
			allowed = g.allow(ctx, "alerts:"+name)
		} else {
			if !sharedTaken {
				sharedAllows = g.allow(ctx, "alerts")
				sharedTaken = true
			}
			allowed = sharedAllows
		}
		if !allowed {
			g.record(ctx, a, name, domain.DispatchRateLimited, nil)
			continue
		}
		admitted = append(admitted, ch)
	}
	if len(admitted) == 0 {
		return
	}

	select {
	case g.sem <- struct{}{}:
	case <-ctx.Done():
		for _, ch := range admitted {
			g.record(context.WithoutCancel(ctx), a, ch.Name(), domain.DispatchFailed, ctx.Err())
		}
		return
	}
	g.wg.Add(1)
	go func() {
		defer func() {
			<-g.sem
			g.wg.Done()
		}()
		g.deliver(ctx, a, admitted)
	}()
}

// allow consults the limiter. A limiter error lets the alert through so an
// unreachable backend does not silence notifications.
func (g *Gate) allow(ctx context.Context, key string) bool {
	if g.limiter == nil {
		return true
	}
	ok, err := g.limiter.Allow(ctx, key)
	if err != nil {
		g.logger.Warn("rate limiter unavailable, allowing alert",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return true
	}
	return ok
}

func (g *Gate) deliver(ctx context.Context, a domain.Alert, channels []Channel) {
	for _, ch := range channels {
		sctx, cancel := context.WithTimeout(ctx, g.opts.SendTimeout)
		err := g.send(sctx, ch, a)
		cancel()
		if err != nil {
			g.logger.Error("alert delivery failed",
				slog.String("channel", ch.Name()),
				slog.String("alert_id", a.ID),
				slog.String("error", err.Error()),
			)
			g.record(context.WithoutCancel(ctx), a, ch.Name(), domain.DispatchFailed, err)
			continue
		}
		g.record(context.WithoutCancel(ctx), a, ch.Name(), domain.DispatchSent, nil)
	}

	select {
	case g.alerts <- a:
		g.published.Add(1)
	case <-g.abandon:
		g.logger.Warn("alert stream not drained before shutdown", slog.String("alert_id", a.ID))
	}
}

// send calls the channel and converts a panic into an error.
func (g *Gate) send(ctx context.Context, ch Channel, a domain.Alert) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("dispatch: %s: panic: %v", ch.Name(), r)
		}
	}()
	return ch.Send(ctx, a)
}

func (g *Gate) record(ctx context.Context, a domain.Alert, channel string, status domain.DispatchStatus, cause error) {
	if c, ok := g.perChannel[channel]; ok {
		c.add(status)
	}
	if g.recorder == nil {
		return
	}
	o := domain.DispatchOutcome{
		AlertID:  a.ID,
		MarketID: a.MarketID,
		Channel:  channel,
		Status:   status,
		At:       g.opts.Now(),
	}
	if cause != nil {
		o.Error = cause.Error()
	}
	if err := g.recorder.Record(ctx, o); err != nil {
		g.logger.Warn("failed to record dispatch outcome",
			slog.String("alert_id", a.ID),
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
	}
}

// duplicateKey identifies alerts that are repeats of each other.
func duplicateKey(a domain.Alert) string {
	return a.MarketID + "|" + string(a.Type) + "|" + a.Severity.String()
}

// Stats returns a copy of the counters.
func (g *Gate) Stats() Stats {
	s := Stats{
		Offered:      g.offered.Load(),
		QueueDropped: g.queueDropped.Load(),
		Published:    g.published.Load(),
		Duplicate:    g.duplicate.Load(),
		Channels:     make(map[string]ChannelStats, len(g.perChannel)),
	}
	for name, c := range g.perChannel {
		cs := c.snapshot()
		s.Channels[name] = cs
		s.Sent += cs.Sent
		s.Failed += cs.Failed
		s.RateLimited += cs.RateLimited
		s.BelowSeverity += cs.BelowSeverity
	}
	return s
}
