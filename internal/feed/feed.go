// Package feed connects upstream trade sources to the pipeline. Every source
// passes raw payloads through the normalizer before ingesting them.
package feed

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/alanyoungcy/insiderwatch/internal/domain"
	"github.com/alanyoungcy/insiderwatch/internal/normalize"
)

// Sink receives normalized trades. *pipeline.Pipeline satisfies it.
type Sink interface {
	Ingest(t domain.Trade) error
}

// Source is a running trade feed.
type Source interface {
	Name() string
	Run(ctx context.Context) error
}

// Stats counts feed outcomes.
type Stats struct {
	Received atomic.Int64
	Accepted atomic.Int64
	Invalid  atomic.Int64
	Filtered atomic.Int64
	Rejected atomic.Int64
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	Received int64 `json:"received"`
	Accepted int64 `json:"accepted"`
	Invalid  int64 `json:"invalid"`
	Filtered int64 `json:"filtered"`
	Rejected int64 `json:"rejected"`
}

// Snapshot returns the current counts.
func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Received: s.Received.Load(),
		Accepted: s.Accepted.Load(),
		Invalid:  s.Invalid.Load(),
		Filtered: s.Filtered.Load(),
		Rejected: s.Rejected.Load(),
	}
}

// emitter normalizes raw trades and hands them to the sink.
type emitter struct {
	norm   *normalize.Normalizer
	sink   Sink
	stats  *Stats
	logger *slog.Logger
}

func (e *emitter) emit(raw domain.RawTrade) bool {
	e.stats.Received.Add(1)
	t, err := e.norm.Normalize(raw)
	switch {
	case errors.Is(err, normalize.ErrFiltered):
		e.stats.Filtered.Add(1)
		return false
	case err != nil:
		e.stats.Invalid.Add(1)
		e.logger.Debug("malformed trade dropped", slog.String("error", err.Error()))
		return false
	}
	if err := e.sink.Ingest(t); err != nil {
		e.stats.Rejected.Add(1)
		if !errors.Is(err, domain.ErrClosed) {
			e.logger.Debug("trade not ingested",
				slog.String("market_id", t.MarketID),
				slog.String("error", err.Error()),
			)
		}
		return false
	}
	e.stats.Accepted.Add(1)
	return true
}
