package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/insiderwatch/internal/domain"
	"github.com/alanyoungcy/insiderwatch/internal/normalize"
)

// streamPollInterval is how often an idle stream is re-read.
const streamPollInterval = 500 * time.Millisecond

// BusFeed ingests JSON-encoded domain.RawTrade messages from the signal bus.
// A channel uses Pub/Sub; otherwise the stream is tailed from the moment
// the feed starts.
type BusFeed struct {
	emitter
	bus     domain.SignalBus
	channel string
	stream  string
	now     func() time.Time
}

// NewBusFeed creates a BusFeed. One of channel or stream must be set.
func NewBusFeed(bus domain.SignalBus, channel, stream string, norm *normalize.Normalizer, sink Sink, stats *Stats, logger *slog.Logger) *BusFeed {
	return &BusFeed{
		emitter: emitter{
			norm:   norm,
			sink:   sink,
			stats:  stats,
			logger: logger.With(slog.String("component", "bus_feed")),
		},
		bus:     bus,
		channel: channel,
		stream:  stream,
		now:     time.Now,
	}
}

func (f *BusFeed) Name() string { return "bus" }

// Run consumes until ctx is done.
func (f *BusFeed) Run(ctx context.Context) error {
	if f.channel != "" {
		return f.subscribe(ctx)
	}
	if f.stream != "" {
		return f.tail(ctx)
	}
	return fmt.Errorf("feed: bus: no channel or stream configured")
}

func (f *BusFeed) subscribe(ctx context.Context) error {
	msgs, err := f.bus.Subscribe(ctx, f.channel)
	if err != nil {
		return fmt.Errorf("feed: bus: %w", err)
	}
	f.logger.Info("subscribed to trade channel", slog.String("channel", f.channel))
	for payload := range msgs {
		f.handle(payload)
	}
	return nil
}

func (f *BusFeed) tail(ctx context.Context) error {
	// Stream IDs start with a millisecond timestamp.
	lastID := fmt.Sprintf("%d-0", f.now().UnixMilli())
	f.logger.Info("tailing trade stream", slog.String("stream", f.stream), slog.String("from", lastID))

	ticker := time.NewTicker(streamPollInterval)
	defer ticker.Stop()
	for {
		msgs, err := f.bus.StreamRead(ctx, f.stream, lastID, 500)
		if err != nil && ctx.Err() == nil {
			f.logger.Warn("trade stream read failed", slog.String("error", err.Error()))
		}
		for _, m := range msgs {
			f.handle(m.Payload)
			lastID = m.ID
		}
		if len(msgs) > 0 {
			continue
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (f *BusFeed) handle(payload []byte) {
	var raw domain.RawTrade
	if err := json.Unmarshal(payload, &raw); err != nil {
		f.stats.Received.Add(1)
		f.stats.Invalid.Add(1)
		f.logger.Debug("undecodable trade message", slog.String("error", err.Error()))
		return
	}
	f.emit(raw)
}
