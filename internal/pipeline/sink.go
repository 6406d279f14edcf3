package pipeline

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/alanyoungcy/insiderwatch/internal/domain"
	"github.com/alanyoungcy/insiderwatch/internal/ledger"
)

// Archive buffers alerts for periodic upload to cold storage.
type Archive interface {
	Add(a domain.Alert)
	Flush(ctx context.Context) (string, error)
}

// SinkConfig wires the optional alert destinations. Nil fields are skipped.
type SinkConfig struct {
	Store           domain.AlertStore
	Bus             domain.SignalBus
	Channel         string
	Stream          string
	Archive         Archive
	ArchiveInterval time.Duration
}

// AlertSink persists and fans out every alert the dispatch gate admits.
type AlertSink struct {
	cfg    SinkConfig
	logger *slog.Logger
}

// NewAlertSink creates an AlertSink.
func NewAlertSink(cfg SinkConfig, logger *slog.Logger) *AlertSink {
	if cfg.ArchiveInterval <= 0 {
		cfg.ArchiveInterval = time.Hour
	}
	return &AlertSink{cfg: cfg, logger: logger.With(slog.String("component", "alert_sink"))}
}

// Run consumes alerts until the channel is closed, which happens after the
// gate has drained. The archive is flushed on its interval and once more at
// the end.
func (s *AlertSink) Run(ctx context.Context, alerts <-chan domain.Alert) error {
	ticker := time.NewTicker(s.cfg.ArchiveInterval)
	defer ticker.Stop()

	// Writes outlive ctx so alerts admitted during shutdown are still stored.
	base := context.WithoutCancel(ctx)
	for {
		select {
		case a, ok := <-alerts:
			if !ok {
				s.flush(base)
				return nil
			}
			s.handle(base, a)
		case <-ticker.C:
			s.flush(base)
		}
	}
}

func (s *AlertSink) handle(ctx context.Context, a domain.Alert) {
	log := s.logger.With(slog.String("alert_id", a.ID), slog.String("market_id", a.MarketID))

	if s.cfg.Store != nil {
		if err := s.cfg.Store.Save(ctx, a); err != nil {
			log.Error("failed to store alert", slog.String("error", err.Error()))
		}
	}
	if s.cfg.Bus != nil {
		payload, err := json.Marshal(a)
		if err != nil {
			log.Error("failed to encode alert", slog.String("error", err.Error()))
		} else {
			if s.cfg.Channel != "" {
				if err := s.cfg.Bus.Publish(ctx, s.cfg.Channel, payload); err != nil {
					log.Warn("failed to publish alert", slog.String("error", err.Error()))
				}
			}
			if s.cfg.Stream != "" {
				if err := s.cfg.Bus.StreamAppend(ctx, s.cfg.Stream, payload); err != nil {
					log.Warn("failed to append alert to stream", slog.String("error", err.Error()))
				}
			}
		}
	}
	if s.cfg.Archive != nil {
		s.cfg.Archive.Add(a)
	}
}

func (s *AlertSink) flush(ctx context.Context) {
	if s.cfg.Archive == nil {
		return
	}
	key, err := s.cfg.Archive.Flush(ctx)
	if err != nil {
		s.logger.Error("alert archive flush failed", slog.String("error", err.Error()))
		return
	}
	if key != "" {
		s.logger.Info("alerts archived", slog.String("path", key))
	}
}

// WalletFlusher periodically writes changed ledger entries to the wallet
// store and prunes wallets idle for longer than the retention.
type WalletFlusher struct {
	ledger     *ledger.Ledger
	store      domain.WalletStore
	interval   time.Duration
	pruneEvery time.Duration
	retention  time.Duration
	now        func() time.Time
	logger     *slog.Logger
}

// NewWalletFlusher creates a WalletFlusher. store may be nil, in which case
// only pruning runs. A zero retention disables pruning.
func NewWalletFlusher(l *ledger.Ledger, store domain.WalletStore, interval, retention time.Duration, logger *slog.Logger) *WalletFlusher {
	if interval <= 0 {
		interval = time.Minute
	}
	return &WalletFlusher{
		ledger:     l,
		store:      store,
		interval:   interval,
		pruneEvery: time.Hour,
		retention:  retention,
		now:        time.Now,
		logger:     logger.With(slog.String("component", "wallet_flusher")),
	}
}

// Run flushes on every interval and prunes hourly until ctx is done, then
// writes a final flush.
func (f *WalletFlusher) Run(ctx context.Context) error {
	flush := time.NewTicker(f.interval)
	defer flush.Stop()
	prune := time.NewTicker(f.pruneEvery)
	defer prune.Stop()

	for {
		select {
		case <-ctx.Done():
			final, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
			f.Flush(final)
			cancel()
			return nil
		case <-flush.C:
			f.Flush(ctx)
		case <-prune.C:
			f.Prune(ctx)
		}
	}
}

// Flush writes every wallet changed since the previous flush. It returns the
// number written.
func (f *WalletFlusher) Flush(ctx context.Context) int {
	if f.store == nil {
		return 0
	}
	dirty := f.ledger.DrainDirty()
	if len(dirty) == 0 {
		return 0
	}
	if err := f.store.UpsertBatch(ctx, dirty); err != nil {
		f.logger.Error("wallet flush failed",
			slog.Int("wallets", len(dirty)),
			slog.String("error", err.Error()),
		)
		return 0
	}
	f.logger.Debug("wallets flushed", slog.Int("wallets", len(dirty)))
	return len(dirty)
}

// snapshotPruner is implemented by wallet stores that can expire snapshots.
type snapshotPruner interface {
	DeleteInactive(ctx context.Context, cutoff time.Time) (int64, error)
}

// Prune drops ledger entries, and stored snapshots when the store supports
// it, idle for longer than the retention. It returns the ledger count.
func (f *WalletFlusher) Prune(ctx context.Context) int {
	if f.retention <= 0 {
		return 0
	}
	cutoff := f.now().Add(-f.retention)
	n := f.ledger.Prune(cutoff)
	if n > 0 {
		f.logger.Info("idle wallets pruned", slog.Int("wallets", n))
	}
	if p, ok := f.store.(snapshotPruner); ok {
		deleted, err := p.DeleteInactive(ctx, cutoff)
		if err != nil {
			f.logger.Warn("wallet snapshot prune failed", slog.String("error", err.Error()))
		} else if deleted > 0 {
			f.logger.Info("idle wallet snapshots deleted", slog.Int64("snapshots", deleted))
		}
	}
	return n
}
