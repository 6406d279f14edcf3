package feed

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/alanyoungcy/insiderwatch/internal/dedup"
	"github.com/alanyoungcy/insiderwatch/internal/domain"
	"github.com/alanyoungcy/insiderwatch/internal/normalize"
	"github.com/alanyoungcy/insiderwatch/internal/platform/polymarket"
)

// TradeLister fetches recent trades, newest first.
type TradeLister interface {
	RecentTrades(ctx context.Context, markets []string, limit int) ([]polymarket.TradeMessage, error)
}

// Poller polls the Data API on an interval. Pages overlap, so trades already
// seen within the TTL are skipped.
type Poller struct {
	emitter
	api      TradeLister
	markets  []string
	limit    int
	interval time.Duration
	seen     *dedup.Window
}

// PollerConfig tunes a Poller.
type PollerConfig struct {
	Markets  []string
	Limit    int
	Interval time.Duration
	SeenTTL  time.Duration
}

// NewPoller creates a Poller.
func NewPoller(api TradeLister, cfg PollerConfig, norm *normalize.Normalizer, sink Sink, stats *Stats, logger *slog.Logger) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = 15 * time.Second
	}
	return &Poller{
		emitter: emitter{
			norm:   norm,
			sink:   sink,
			stats:  stats,
			logger: logger.With(slog.String("component", "poller")),
		},
		api:      api,
		markets:  cfg.Markets,
		limit:    cfg.Limit,
		interval: cfg.Interval,
		seen:     dedup.New(cfg.SeenTTL),
	}
}

func (p *Poller) Name() string { return "poll" }

// Run polls immediately and then on every interval until ctx is done.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if _, err := p.Poll(ctx); err != nil && ctx.Err() == nil {
			p.logger.Warn("trade poll failed", slog.String("error", err.Error()))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.seen.Cleanup()
		}
	}
}

// Poll fetches one page and ingests the unseen trades oldest first. It
// returns how many were accepted.
func (p *Poller) Poll(ctx context.Context) (int, error) {
	msgs, err := p.api.RecentTrades(ctx, p.markets, p.limit)
	if err != nil {
		return 0, err
	}

	raws := make([]domain.RawTrade, 0, len(msgs))
	for _, m := range msgs {
		raws = append(raws, m.Raw())
	}
	sort.SliceStable(raws, func(i, j int) bool { return raws[i].Timestamp < raws[j].Timestamp })

	accepted := 0
	for _, raw := range raws {
		if p.seen.IsDuplicate(seenKey(raw)) {
			continue
		}
		if p.emit(raw) {
			accepted++
		}
	}
	return accepted, nil
}

func seenKey(r domain.RawTrade) string {
	return r.TxHash + "|" + r.AssetID + "|" + r.Wallet + "|" + r.Side + "|" + r.Size + "|" + r.Price
}
