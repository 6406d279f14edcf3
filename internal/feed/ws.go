package feed

import (
	"context"
	"log/slog"
	"time"

	"github.com/alanyoungcy/insiderwatch/internal/normalize"
	"github.com/alanyoungcy/insiderwatch/internal/platform/polymarket"
)

const (
	reconnectDelay    = 2 * time.Second
	maxReconnectDelay = 60 * time.Second
)

// WSFeed streams public trades from the RTDS activity topic and reconnects
// with exponential backoff when the connection drops.
type WSFeed struct {
	wsURL string
	emitter
	dial     func(url string) rtds
	minDelay time.Duration
}

// rtds is the part of polymarket.RTDSClient the feed drives.
type rtds interface {
	Connect(ctx context.Context) error
	Subscribe(subs ...polymarket.Subscription) error
	Run(ctx context.Context, handle polymarket.TradeHandler) error
	Close() error
}

// NewWSFeed creates a WSFeed.
func NewWSFeed(wsURL string, norm *normalize.Normalizer, sink Sink, stats *Stats, logger *slog.Logger) *WSFeed {
	return &WSFeed{
		wsURL: wsURL,
		emitter: emitter{
			norm:   norm,
			sink:   sink,
			stats:  stats,
			logger: logger.With(slog.String("component", "ws_feed")),
		},
		dial:     func(url string) rtds { return polymarket.NewRTDSClient(url) },
		minDelay: reconnectDelay,
	}
}

func (f *WSFeed) Name() string { return "ws" }

// Run keeps a subscription open until ctx is done.
func (f *WSFeed) Run(ctx context.Context) error {
	delay := f.minDelay
	for {
		connected, err := f.session(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if connected {
			delay = f.minDelay
		}
		f.logger.Warn("trade stream disconnected, reconnecting",
			slog.String("error", errString(err)),
			slog.Duration("delay", delay),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
		delay = min(delay*2, maxReconnectDelay)
	}
}

// session runs one connection. connected reports whether the subscription
// was established, which resets the backoff.
func (f *WSFeed) session(ctx context.Context) (connected bool, err error) {
	client := f.dial(f.wsURL)
	defer client.Close()

	dialCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	err = client.Connect(dialCtx)
	cancel()
	if err != nil {
		return false, err
	}
	if err := client.Subscribe(polymarket.TradesSubscription()); err != nil {
		return false, err
	}
	f.logger.Info("subscribed to trade stream", slog.String("url", f.wsURL))

	return true, client.Run(ctx, func(m polymarket.TradeMessage) {
		f.emit(m.Raw())
	})
}

func errString(err error) string {
	if err == nil {
		return "closed by server"
	}
	return err.Error()
}
