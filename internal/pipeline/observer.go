package pipeline

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/alanyoungcy/insiderwatch/internal/domain"
)

// Observer receives pipeline events. Implementations must be safe for
// concurrent use and must not block.
type Observer interface {
	TradeDropped(marketID string)
	TradeRejected(marketID string, err error)
	DetectorFault(marketID string, name domain.DetectorName, err error)
	PassSkipped(marketID string)
	PassFailed(marketID string, err error)
	PassCompleted(marketID string, signals int, took time.Duration)
	AlertEmitted(alert domain.Alert)
}

// Stats counts pipeline events with atomic counters.
type Stats struct {
	tradesDropped  atomic.Int64
	tradesRejected atomic.Int64
	detectorFaults atomic.Int64
	passesSkipped  atomic.Int64
	passesFailed   atomic.Int64
	passes         atomic.Int64
	signals        atomic.Int64
	alerts         atomic.Int64
}

var _ Observer = (*Stats)(nil)

func (s *Stats) TradeDropped(string) { s.tradesDropped.Add(1) }
func (s *Stats) TradeRejected(string, error) { s.tradesRejected.Add(1) }
func (s *Stats) DetectorFault(string, domain.DetectorName, error) { s.detectorFaults.Add(1) }
func (s *Stats) PassSkipped(string) { s.passesSkipped.Add(1) }
func (s *Stats) PassFailed(string, error) { s.passesFailed.Add(1) }
func (s *Stats) AlertEmitted(domain.Alert) { s.alerts.Add(1) }

func (s *Stats) PassCompleted(_ string, signals int, _ time.Duration) {
	s.passes.Add(1)
	s.signals.Add(int64(signals))
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	TradesIngested int64 `json:"trades_ingested"`
	TradesDropped  int64 `json:"trades_dropped"`
	TradesRejected int64 `json:"trades_rejected"`
	DetectorFaults int64 `json:"detector_faults"`
	PassesSkipped  int64 `json:"passes_skipped"`
	PassesFailed   int64 `json:"passes_failed"`
	Passes         int64 `json:"passes"`
	Signals        int64 `json:"signals"`
	Alerts         int64 `json:"alerts"`
	Markets        int   `json:"markets"`
	Wallets        int   `json:"wallets"`
}

// Snapshot returns the current counts.
func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		TradesDropped:  s.tradesDropped.Load(),
		TradesRejected: s.tradesRejected.Load(),
		DetectorFaults: s.detectorFaults.Load(),
		PassesSkipped:  s.passesSkipped.Load(),
		PassesFailed:   s.passesFailed.Load(),
		Passes:         s.passes.Load(),
		Signals:        s.signals.Load(),
		Alerts:         s.alerts.Load(),
	}
}

// LogObserver logs every event with slog and forwards it to Next, which may
// be nil.
type LogObserver struct {
	Next   Observer
	Logger *slog.Logger
}

var _ Observer = LogObserver{}

// NewLogObserver decorates next with structured logging.
func NewLogObserver(next Observer, logger *slog.Logger) LogObserver {
	return LogObserver{Next: next, Logger: logger.With(slog.String("component", "pipeline"))}
}

func (o LogObserver) TradeDropped(marketID string) {
	o.Logger.Warn("worker queue full, dropped oldest trade", slog.String("market_id", marketID))
	if o.Next != nil {
		o.Next.TradeDropped(marketID)
	}
}

func (o LogObserver) TradeRejected(marketID string, err error) {
	o.Logger.Warn("trade rejected", slog.String("market_id", marketID), slog.String("error", err.Error()))
	if o.Next != nil {
		o.Next.TradeRejected(marketID, err)
	}
}

func (o LogObserver) DetectorFault(marketID string, name domain.DetectorName, err error) {
	o.Logger.Error("detector fault",
		slog.String("market_id", marketID),
		slog.String("detector", string(name)),
		slog.String("error", err.Error()),
	)
	if o.Next != nil {
		o.Next.DetectorFault(marketID, name, err)
	}
}

func (o LogObserver) PassSkipped(marketID string) {
	o.Logger.Debug("analysis pass still running, tick skipped", slog.String("market_id", marketID))
	if o.Next != nil {
		o.Next.PassSkipped(marketID)
	}
}

func (o LogObserver) PassFailed(marketID string, err error) {
	o.Logger.Error("analysis pass failed", slog.String("market_id", marketID), slog.String("error", err.Error()))
	if o.Next != nil {
		o.Next.PassFailed(marketID, err)
	}
}

func (o LogObserver) PassCompleted(marketID string, signals int, took time.Duration) {
	o.Logger.Debug("analysis pass complete",
		slog.String("market_id", marketID),
		slog.Int("signals", signals),
		slog.Duration("took", took),
	)
	if o.Next != nil {
		o.Next.PassCompleted(marketID, signals, took)
	}
}

func (o LogObserver) AlertEmitted(a domain.Alert) {
	o.Logger.Info("alert emitted",
		slog.String("alert_id", a.ID),
		slog.String("market_id", a.MarketID),
		slog.String("type", string(a.Type)),
		slog.String("severity", a.Severity.String()),
		slog.Float64("confidence", a.Confidence),
	)
	if o.Next != nil {
		o.Next.AlertEmitted(a)
	}
}

// observers fans events out to several observers.
type observers []Observer

func (m observers) TradeDropped(id string) {
	for _, o := range m {
		o.TradeDropped(id)
	}
}

func (m observers) TradeRejected(id string, err error) {
	for _, o := range m {
		o.TradeRejected(id, err)
	}
}

func (m observers) DetectorFault(id string, name domain.DetectorName, err error) {
	for _, o := range m {
		o.DetectorFault(id, name, err)
	}
}

func (m observers) PassSkipped(id string) {
	for _, o := range m {
		o.PassSkipped(id)
	}
}

func (m observers) PassFailed(id string, err error) {
	for _, o := range m {
		o.PassFailed(id, err)
	}
}

func (m observers) PassCompleted(id string, signals int, took time.Duration) {
	for _, o := range m {
		o.PassCompleted(id, signals, took)
	}
}

func (m observers) AlertEmitted(a domain.Alert) {
	for _, o := range m {
		o.AlertEmitted(a)
	}
}
