package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/insiderwatch/internal/classifier"
	"github.com/alanyoungcy/insiderwatch/internal/config"
	"github.com/alanyoungcy/insiderwatch/internal/detector"
	"github.com/alanyoungcy/insiderwatch/internal/dispatch"
	"github.com/alanyoungcy/insiderwatch/internal/domain"
	"github.com/alanyoungcy/insiderwatch/internal/ledger"
	"github.com/alanyoungcy/insiderwatch/internal/market"
)

var t0 = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type sinkChannel struct {
	mu  sync.Mutex
	ids []string
}

func (c *sinkChannel) Name() string { return "test" }

func (c *sinkChannel) Send(_ context.Context, a domain.Alert) error {
	c.mu.Lock()
	c.ids = append(c.ids, a.ID)
	c.mu.Unlock()
	return nil
}

func testConfig() *config.Config {
	c := config.Defaults()
	c.Feed.Source = "none"
	c.Server.Enabled = false
	c.Dispatch.MaxAlertsPerHour = 1000
	c.Detection.Whale.WhaleThresholdUSD = 5000
	return &c
}

type harness struct {
	p      *Pipeline
	ledger *ledger.Ledger
	cancel context.CancelFunc
	done   chan error

	mu     sync.Mutex
	alerts []domain.Alert
	closed chan struct{}
}

func newPipeline(t *testing.T, cfg *config.Config, opts ...Option) (*Pipeline, *ledger.Ledger) {
	t.Helper()
	l := ledger.New(classifier.ParamsFrom(cfg.Classifier), cfg.Classifier.RecomputeEvery)
	gate := dispatch.New([]dispatch.Channel{&sinkChannel{}}, dispatch.NewTokenBucket(cfg.Dispatch.MaxAlertsPerHour, time.Hour, nil),
		nil, dispatch.PolicyFrom(cfg), dispatch.OptionsFrom(&cfg.Dispatch), discardLogger())
	p, err := New(cfg, l, gate, discardLogger(), opts...)
	require.NoError(t, err)
	return p, l
}

// start runs p and collects every published alert.
func start(t *testing.T, p *Pipeline, l *ledger.Ledger) *harness {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	h := &harness{p: p, ledger: l, cancel: cancel, done: make(chan error, 1), closed: make(chan struct{})}
	go func() { h.done <- p.Run(ctx) }()
	go func() {
		defer close(h.closed)
		for a := range p.Alerts() {
			h.mu.Lock()
			h.alerts = append(h.alerts, a)
			h.mu.Unlock()
		}
	}()
	require.Eventually(t, func() bool {
		return !errors.Is(p.AnalyzeNow(context.Background()), domain.ErrNotRunning)
	}, time.Second, time.Millisecond)
	return h
}

// stop shuts the pipeline down and returns the published alerts.
func (h *harness) stop(t *testing.T) []domain.Alert {
	t.Helper()
	h.cancel()
	require.NoError(t, <-h.done)
	<-h.closed
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]domain.Alert(nil), h.alerts...)
}

func trade(market, wallet string, side domain.Side, usd float64, at time.Time) domain.Trade {
	return domain.Trade{
		ID:        fmt.Sprintf("%s-%s-%d", market, wallet, at.UnixNano()),
		MarketID:  market,
		Wallet:    wallet,
		Side:      side,
		Price:     0.25,
		Size:      usd / 0.25,
		USDValue:  usd,
		Timestamp: at,
	}
}

func TestLargeFreshTradeRaisesCompositeAlert(t *testing.T) {
	p, l := newPipeline(t, testConfig(), WithManualPasses())
	h := start(t, p, l)

	require.NoError(t, p.Ingest(trade("m1", "0xfresh", domain.SideBuy, 10000, t0)))
	require.NoError(t, p.AnalyzeNow(context.Background()))
	alerts := h.stop(t)

	require.Len(t, alerts, 1)
	a := alerts[0]
	assert.Equal(t, domain.AlertComposite, a.Type)
	assert.GreaterOrEqual(t, a.Severity, domain.SeverityHigh)
	assert.Equal(t, domain.ActionBuy, a.Recommendation.Action)
	assert.Equal(t, t0, a.CreatedAt)

	st := p.Stats()
	assert.Equal(t, int64(1), st.TradesIngested)
	assert.Equal(t, int64(1), st.Passes)
	assert.Equal(t, int64(1), st.Alerts)
	assert.Equal(t, 1, st.Markets)
	assert.Equal(t, 1, st.Wallets)
}

func TestRepeatedAnalysisWithoutNewTradesIsIdle(t *testing.T) {
	p, l := newPipeline(t, testConfig(), WithManualPasses())
	h := start(t, p, l)

	require.NoError(t, p.Ingest(trade("m1", "0xfresh", domain.SideBuy, 10000, t0)))
	for i := 0; i < 3; i++ {
		require.NoError(t, p.AnalyzeNow(context.Background()))
	}
	assert.Len(t, h.stop(t), 1)
	assert.Equal(t, int64(1), p.Stats().Passes)
}

func replay(t *testing.T) []domain.Alert {
	t.Helper()
	p, l := newPipeline(t, testConfig(), WithManualPasses())
	h := start(t, p, l)

	// Wallets trade on both markets, so each market is applied before the
	// next one ingests; the ledger then sees trades in one order.
	for step := 0; step < 4; step++ {
		at := t0.Add(time.Duration(step) * 10 * time.Minute)
		side := domain.SideBuy
		if step%2 == 1 {
			side = domain.SideSell
		}
		for _, m := range []string{"m1", "m2"} {
			for i := 0; i < 6; i++ {
				wallet := fmt.Sprintf("0xw%d", i)
				require.NoError(t, p.Ingest(trade(m, wallet, side, 2000+float64(1000*i), at.Add(time.Duration(i)*time.Second))))
			}
			require.NoError(t, p.AnalyzeNow(context.Background()))
		}
	}
	alerts := h.stop(t)
	sort.Slice(alerts, func(i, j int) bool { return alerts[i].ID < alerts[j].ID })
	return alerts
}

func TestReplayIsDeterministic(t *testing.T) {
	first := replay(t)
	require.NotEmpty(t, first)
	for i := 0; i < 3; i++ {
		assert.Equal(t, first, replay(t))
	}
}

func TestQueueDropsOldestWhenFull(t *testing.T) {
	cfg := testConfig()
	cfg.Detection.QueueCapacity = 2
	p, l := newPipeline(t, cfg, WithManualPasses())

	// Not running yet, so nothing drains the queue.
	for i := 0; i < 3; i++ {
		require.NoError(t, p.Ingest(trade("m1", fmt.Sprintf("0xq%d", i), domain.SideBuy, 10, t0.Add(time.Duration(i)*time.Second))))
	}
	assert.Equal(t, int64(1), p.Stats().TradesDropped)

	h := start(t, p, l)
	require.NoError(t, p.AnalyzeNow(context.Background()))
	h.stop(t)

	_, ok := l.Lookup("0xq0")
	assert.False(t, ok, "oldest trade was dropped")
	_, ok = l.Lookup("0xq2")
	assert.True(t, ok)
}

func TestIngestRejectsInvalidAndLateTrades(t *testing.T) {
	p, l := newPipeline(t, testConfig(), WithManualPasses())

	bad := trade("m1", "0xa", domain.SideBuy, 10, t0)
	bad.Price = 2
	assert.ErrorIs(t, p.Ingest(bad), domain.ErrInvalidTrade)

	h := start(t, p, l)
	require.NoError(t, p.Ingest(trade("m1", "0xa", domain.SideBuy, 10, t0.Add(time.Minute))))
	require.NoError(t, p.AnalyzeNow(context.Background()))
	require.NoError(t, p.Ingest(trade("m1", "0xlate", domain.SideBuy, 10, t0)))
	require.NoError(t, p.AnalyzeNow(context.Background()))
	h.stop(t)

	assert.Equal(t, int64(2), p.Stats().TradesRejected)
	_, ok := l.Lookup("0xlate")
	assert.False(t, ok, "late trades never reach the ledger")

	assert.ErrorIs(t, p.Ingest(trade("m1", "0xa", domain.SideBuy, 10, t0.Add(time.Hour))), domain.ErrClosed)
}

func TestConfigureValidatesAndSwaps(t *testing.T) {
	p, _ := newPipeline(t, testConfig())

	bad := testConfig()
	bad.Classifier.BalanceWeight = 90
	assert.ErrorIs(t, p.Configure(bad), domain.ErrInvalidConfig)
	assert.Equal(t, 40.0, p.Config().Classifier.BalanceWeight)

	good := testConfig()
	good.Detection.Whale.WhaleThresholdUSD = 123456
	require.NoError(t, p.Configure(good))
	assert.Equal(t, 123456.0, p.Config().Detection.Whale.WhaleThresholdUSD)
}

func TestTickerDrivenPasses(t *testing.T) {
	cfg := testConfig()
	cfg.Detection.AnalysisInterval.Duration = 5 * time.Millisecond
	p, l := newPipeline(t, cfg)
	h := start(t, p, l)

	require.NoError(t, p.Ingest(trade("m1", "0xfresh", domain.SideBuy, 10000, t0)))
	require.Eventually(t, func() bool { return p.Stats().Alerts == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Len(t, h.stop(t), 1)
}

// blocking holds every pass until released.
type blocking struct {
	entered chan struct{}
	release chan struct{}
}

func (b *blocking) Name() domain.DetectorName { return domain.DetectorVolume }

func (b *blocking) Detect(market.Snapshot, detector.WalletView, *config.DetectionConfig) ([]domain.Signal, error) {
	select {
	case b.entered <- struct{}{}:
	default:
	}
	<-b.release
	return nil, nil
}

func TestTicksDuringPassAreSkipped(t *testing.T) {
	cfg := testConfig()
	cfg.Detection.AnalysisInterval.Duration = 2 * time.Millisecond
	b := &blocking{entered: make(chan struct{}, 1), release: make(chan struct{})}
	p, l := newPipeline(t, cfg, WithDetectors(b))
	h := start(t, p, l)

	require.NoError(t, p.Ingest(trade("m1", "0xa", domain.SideBuy, 10, t0)))
	<-b.entered
	require.NoError(t, p.Ingest(trade("m1", "0xb", domain.SideBuy, 10, t0.Add(time.Second))))
	require.Eventually(t, func() bool { return p.Stats().PassesSkipped > 0 }, 2*time.Second, time.Millisecond)

	close(b.release)
	h.stop(t)
	assert.GreaterOrEqual(t, p.Stats().Passes, int64(1))
}
