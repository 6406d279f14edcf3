// Package market holds the per-market state a pipeline worker owns: the
// bounded trade history, price samples and the rolling baselines detectors
// compare against.
package market

import (
	"fmt"
	"time"

	"github.com/alanyoungcy/insiderwatch/internal/config"
	"github.com/alanyoungcy/insiderwatch/internal/domain"
)

// Observation is a trade together with the wallet's trade count from before
// the trade was recorded.
type Observation struct {
	Trade       domain.Trade `json:"trade"`
	PriorTrades int          `json:"prior_trades"`
}

// PricePoint records a single price observation at a point in time.
type PricePoint struct {
	Price float64   `json:"price"`
	Time  time.Time `json:"time"`
}

// Sizing holds the structural parameters of a State. They are fixed for the
// lifetime of a State; threshold changes do not resize existing markets.
type Sizing struct {
	HistoryCapacity      int
	PriceHistoryCapacity int
	VolumeWindow         time.Duration
	VolumeHorizon        time.Duration
	RateWindow           time.Duration
	RateHorizon          time.Duration
}

// SizingFrom derives Sizing from the detection configuration.
func SizingFrom(cfg *config.DetectionConfig) Sizing {
	return Sizing{
		HistoryCapacity:      cfg.HistoryCapacity,
		PriceHistoryCapacity: cfg.PriceHistoryCapacity,
		VolumeWindow:         cfg.BaselineWindow.Duration,
		VolumeHorizon:        cfg.BaselineHorizon.Duration,
		RateWindow:           cfg.Coordination.BurstBaselineWindow.Duration,
		RateHorizon:          cfg.Coordination.BurstBaselineHorizon.Duration,
	}
}

// State is the mutable per-market state. It is not safe for concurrent use;
// exactly one worker owns it and detectors only ever see a Snapshot.
type State struct {
	marketID string
	trades   *Ring[Observation]
	prices   *Ring[PricePoint]
	volume   *Baseline
	rate     *Baseline

	lastPrice      float64
	clock          time.Time
	lastAnalysisAt time.Time
	applied        int64
}

// NewState creates an empty State for marketID.
func NewState(marketID string, sz Sizing) *State {
	return &State{
		marketID: marketID,
		trades:   NewRing[Observation](sz.HistoryCapacity),
		prices:   NewRing[PricePoint](sz.PriceHistoryCapacity),
		volume:   NewBaseline(sz.VolumeWindow, sz.VolumeHorizon),
		rate:     NewBaseline(sz.RateWindow, sz.RateHorizon),
	}
}

// Ingest applies a trade. Trades for another market, or older than the last
// applied trade, are rejected and leave the state untouched.
func (s *State) Ingest(t domain.Trade, priorTrades int) error {
	if err := s.Check(t); err != nil {
		return err
	}

	s.trades.Push(Observation{Trade: t, PriorTrades: priorTrades})
	s.prices.Push(PricePoint{Price: t.Price, Time: t.Timestamp})
	s.volume.Add(t.Timestamp, t.USDValue)
	s.rate.Add(t.Timestamp, 1)
	s.lastPrice = t.Price
	s.clock = t.Timestamp
	s.applied++
	return nil
}

// Check reports whether Ingest would accept t.
func (s *State) Check(t domain.Trade) error {
	if t.MarketID != s.marketID {
		return fmt.Errorf("market: ingest %s into %s: %w", t.MarketID, s.marketID, domain.ErrInvalidTrade)
	}
	if t.Timestamp.Before(s.clock) {
		return fmt.Errorf("market: ingest at %s before %s: %w",
			t.Timestamp.Format(time.RFC3339Nano), s.clock.Format(time.RFC3339Nano), domain.ErrOutOfOrder)
	}
	return nil
}

// MarkAnalyzed records the time of the latest completed analysis pass.
func (s *State) MarkAnalyzed(at time.Time) { s.lastAnalysisAt = at }

// Len returns the number of trades currently held.
func (s *State) Len() int { return s.trades.Len() }

// Applied returns the total number of trades ever applied.
func (s *State) Applied() int64 { return s.applied }

// Snapshot returns an immutable copy of the state.
func (s *State) Snapshot() Snapshot {
	return Snapshot{
		MarketID:       s.marketID,
		Observations:   s.trades.Items(),
		Prices:         s.prices.Items(),
		Volume:         s.volume.Stats(),
		Rate:           s.rate.Stats(),
		LastPrice:      s.lastPrice,
		Clock:          s.clock,
		LastAnalysisAt: s.lastAnalysisAt,
		Applied:        s.applied,
	}
}
