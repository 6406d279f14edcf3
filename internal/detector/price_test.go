package detector

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/insiderwatch/internal/domain"
)

func TestRapidMoveAndMomentum(t *testing.T) {
	cfg := detectionConfig()
	var trades []obs
	for i, p := range []float64{0.40, 0.42, 0.44, 0.46, 0.48, 0.50} {
		trades = append(trades, tr("0xa", domain.SideBuy, p, 100, base.Add(time.Duration(i)*time.Minute)))
	}
	signals, err := Price{}.Detect(snapshot(t, cfg, trades...), nil, cfg)
	require.NoError(t, err)

	rapid, ok := find(signals, "rapid_move")
	require.True(t, ok, "kinds: %v", kinds(signals))
	assert.InDelta(t, 10.0, rapid.Score, 1e-9)
	assert.Equal(t, domain.DirectionUp, rapid.Direction)

	mom, ok := find(signals, "momentum")
	require.True(t, ok)
	assert.InDelta(t, 5.0, mom.Score, 1e-9)
	assert.Equal(t, domain.DirectionUp, mom.Direction)

	_, ok = find(signals, "volatility_spike")
	assert.False(t, ok, "no prior samples")
}

func TestVolatilitySpikeAgainstPriorSamples(t *testing.T) {
	cfg := detectionConfig()
	var trades []obs
	early := base.Add(-3 * time.Hour)
	for i := 0; i < 10; i++ {
		p := 0.50
		if i%2 == 1 {
			p = 0.51
		}
		trades = append(trades, tr("0xa", domain.SideBuy, p, 100, early.Add(time.Duration(i)*time.Minute)))
	}
	for i := 0; i < 6; i++ {
		p := 0.40
		if i%2 == 1 {
			p = 0.60
		}
		trades = append(trades, tr("0xa", domain.SideBuy, p, 100, base.Add(time.Duration(i)*time.Minute)))
	}
	signals, err := Price{}.Detect(snapshot(t, cfg, trades...), nil, cfg)
	require.NoError(t, err)

	s, ok := find(signals, "volatility_spike")
	require.True(t, ok, "kinds: %v", kinds(signals))
	assert.True(t, s.Evidence.BaselineBacked)
	assert.Equal(t, 10.0, s.Score)
	assert.InDelta(t, 20.0, s.Evidence.Multiplier, 1e-6)
}

func TestVWAPPressure(t *testing.T) {
	cfg := detectionConfig()
	var trades []obs
	for i := 0; i < 20; i++ {
		p := 0.30 + 0.001*float64(i)
		trades = append(trades, tr("0xa", domain.SideBuy, p, 100*p, base.Add(time.Duration(i)*time.Second)))
	}
	signals, err := Price{}.Detect(snapshot(t, cfg, trades...), nil, cfg)
	require.NoError(t, err)

	s, ok := find(signals, "vwap_pressure")
	require.True(t, ok, "kinds: %v", kinds(signals))
	assert.Equal(t, domain.DirectionUp, s.Direction)
	// The first trade sits on its own VWAP; every later one is above it.
	assert.GreaterOrEqual(t, s.Evidence.Ratio, 0.95)
	assert.InDelta(t, 4*s.Evidence.Ratio, s.Score, 1e-9)
	assert.GreaterOrEqual(t, s.Evidence.Metrics["above"], 19.0)

	// Too few trades for the lookback.
	signals, err = Price{}.Detect(snapshot(t, cfg, trades[:10]...), nil, cfg)
	require.NoError(t, err)
	_, ok = find(signals, "vwap_pressure")
	assert.False(t, ok)
}

func TestPriceQuietMarket(t *testing.T) {
	cfg := detectionConfig()
	snap := snapshot(t, cfg,
		tr("0xa", domain.SideBuy, 0.50, 100, base),
		tr("0xb", domain.SideSell, 0.50, 100, base.Add(time.Minute)),
	)
	signals, err := Price{}.Detect(snap, nil, cfg)
	require.NoError(t, err)
	assert.Empty(t, signals)
}
