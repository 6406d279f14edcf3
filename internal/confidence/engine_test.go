package confidence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/insiderwatch/internal/config"
	"github.com/alanyoungcy/insiderwatch/internal/detector"
	"github.com/alanyoungcy/insiderwatch/internal/domain"
	"github.com/alanyoungcy/insiderwatch/internal/market"
)

var clock = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

func confidenceConfig() *config.ConfidenceConfig {
	c := config.Defaults()
	return &c.Confidence
}

func sig(d domain.DetectorName, score float64, dir domain.Direction) domain.Signal {
	return domain.Signal{Detector: d, Kind: string(d), MarketID: "m1", Score: score, Direction: dir}
}

func TestNoSignalsNoAlert(t *testing.T) {
	_, ok := New().Evaluate("m1", nil, 0.5, clock, confidenceConfig())
	assert.False(t, ok)
}

func TestSingleSignalBar(t *testing.T) {
	cfg := confidenceConfig()
	e := New()

	_, ok := e.Evaluate("m1", []domain.Signal{sig(domain.DetectorWhale, 9.99, domain.DirectionUp)}, 0.5, clock, cfg)
	assert.False(t, ok)

	a, ok := e.Evaluate("m1", []domain.Signal{sig(domain.DetectorWhale, 10, domain.DirectionUp)}, 0.5, clock, cfg)
	require.True(t, ok)
	assert.Equal(t, domain.AlertWhaleActivity, a.Type)
	assert.Equal(t, 10.0, a.Confidence)
	assert.Equal(t, domain.SeverityMedium, a.Severity)
	assert.Equal(t, domain.ActionBuy, a.Recommendation.Action)
	assert.Equal(t, clock, a.CreatedAt)
	assert.Len(t, a.Signals, 1)
}

func TestMultiSignalBonuses(t *testing.T) {
	cfg := confidenceConfig()

	agree := []domain.Signal{
		sig(domain.DetectorWhale, 3, domain.DirectionUp),
		sig(domain.DetectorFreshWallet, 3, domain.DirectionUp),
	}
	b := Score(agree, cfg)
	assert.Equal(t, 6.0, b.Sum)
	assert.Equal(t, cfg.DirectionalBonus+cfg.MultiDetectorBonus, b.Bonus)
	assert.Equal(t, cfg.MultiSignalBar, b.Bar)

	disagree := []domain.Signal{
		sig(domain.DetectorWhale, 3, domain.DirectionUp),
		sig(domain.DetectorWhale, 3, domain.DirectionDown),
	}
	assert.Zero(t, Score(disagree, cfg).Bonus)

	backed := sig(domain.DetectorVolume, 4, domain.DirectionNone)
	backed.Evidence.BaselineBacked = true
	wash := sig(domain.DetectorCoordination, 3.5, domain.DirectionNone)
	wash.Evidence.WashTrading = true
	b = Score([]domain.Signal{backed, wash}, cfg)
	assert.Equal(t, cfg.BaselineBonus+cfg.CoordinationBonus+cfg.MultiDetectorBonus+cfg.WashTradingBonus, b.Bonus)
	assert.Equal(t, 7.5+b.Bonus, b.Confidence)
}

func TestMultiBarIsLowerThanSingleBar(t *testing.T) {
	cfg := confidenceConfig()
	// Two weak signals from one detector, no bonuses: 4.5 + 4.5 clears the
	// multi-signal bar although neither would alert alone.
	signals := []domain.Signal{
		sig(domain.DetectorPrice, 4.5, domain.DirectionNone),
		sig(domain.DetectorPrice, 4.5, domain.DirectionNone),
	}
	a, ok := New().Evaluate("m1", signals, 0.3, clock, cfg)
	require.True(t, ok)
	assert.Equal(t, domain.AlertComposite, a.Type)
	assert.Equal(t, domain.ActionMonitor, a.Recommendation.Action)
	assert.Equal(t, "MONITOR bias at 0.3000 (monitor closely for confirmation)", a.RecommendedAction)
}

func TestSeverityBands(t *testing.T) {
	cfg := confidenceConfig()
	assert.Equal(t, domain.SeverityMedium, SeverityFor(11.9, cfg))
	assert.Equal(t, domain.SeverityHigh, SeverityFor(12, cfg))
	assert.Equal(t, domain.SeverityCritical, SeverityFor(16, cfg))
}

func TestDominantTieBreaksByDetectorOrder(t *testing.T) {
	signals := []domain.Signal{
		sig(domain.DetectorFreshWallet, 8, domain.DirectionDown),
		sig(domain.DetectorWhale, 8, domain.DirectionUp),
		sig(domain.DetectorPrice, 5, domain.DirectionDown),
	}
	d, ok := Dominant(signals)
	require.True(t, ok)
	assert.Equal(t, domain.DetectorWhale, d.Detector)
	assert.Equal(t, domain.ActionBuy, Recommend(signals, 0.6).Action)
}

func TestAlertIDIsDeterministic(t *testing.T) {
	id := AlertID("m1", clock, domain.AlertComposite)
	assert.Equal(t, id, AlertID("m1", clock, domain.AlertComposite))
	assert.NotEqual(t, id, AlertID("m1", clock.Add(time.Second), domain.AlertComposite))
	assert.NotEqual(t, id, AlertID("m2", clock, domain.AlertComposite))
	assert.NotEqual(t, id, AlertID("m1", clock, domain.AlertWhaleActivity))
}

func TestLargeFreshWalletTradeIsComposite(t *testing.T) {
	c := config.Defaults()
	c.Detection.Whale.WhaleThresholdUSD = 5000
	c.Detection.FreshWallet.MaxPreviousTrades = 0

	st := market.NewState("m1", market.SizingFrom(&c.Detection))
	require.NoError(t, st.Ingest(domain.Trade{
		MarketID: "m1", Wallet: "0xfresh", Side: domain.SideBuy,
		Price: 0.25, Size: 40000, USDValue: 10000, Timestamp: clock,
	}, 0))
	snap := st.Snapshot()

	signals := detector.Run(detector.Default(), snap, nil, &c.Detection, nil)
	a, ok := New().Evaluate(snap.MarketID, signals, snap.LastPrice, snap.Clock, &c.Confidence)
	require.True(t, ok)
	assert.Equal(t, domain.AlertComposite, a.Type)
	assert.GreaterOrEqual(t, a.Severity, domain.SeverityHigh)
	assert.Equal(t, domain.ActionBuy, a.Recommendation.Action)
	assert.Equal(t, 0.25, a.Recommendation.Price)
}
