package detector

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/insiderwatch/internal/domain"
)

func burst(n int, side func(i int) domain.Side) []obs {
	var out []obs
	for i := 0; i < n; i++ {
		out = append(out, tr(fmt.Sprintf("0xc%02d", i), side(i), 0.5, 500, base.Add(time.Duration(i*10/n)*time.Second)))
	}
	return out
}

func allBuy(int) domain.Side { return domain.SideBuy }

func TestCoordinatedBuyingWithinOneSubWindow(t *testing.T) {
	cfg := detectionConfig()
	signals, err := Coordination{}.Detect(snapshot(t, cfg, burst(6, allBuy)...), fakeWallets{}, cfg)
	require.NoError(t, err)
	require.Len(t, signals, 1)

	s := signals[0]
	assert.Equal(t, "coordinated_trading", s.Kind)
	assert.Equal(t, domain.DirectionUp, s.Direction)
	assert.Len(t, s.Evidence.Wallets, 6)
	assert.Equal(t, base, s.Evidence.WindowStart)
	assert.Equal(t, base.Add(30*time.Second), s.Evidence.WindowEnd)
	// No trade-rate baseline yet, so burst intensity contributes 1.
	assert.InDelta(t, 5*6.0/5.0, s.Score, 1e-9)
}

func TestCoordinationExcludesMarketMakers(t *testing.T) {
	cfg := detectionConfig()
	trades := burst(5, allBuy)
	wallets := fakeWallets{trades[0].trade.Wallet: true}
	signals, err := Coordination{}.Detect(snapshot(t, cfg, trades...), wallets, cfg)
	require.NoError(t, err)
	assert.Empty(t, signals)
}

func TestCoordinationNeedsDirectionalBias(t *testing.T) {
	cfg := detectionConfig()
	mixed := burst(6, func(i int) domain.Side {
		if i%2 == 0 {
			return domain.SideBuy
		}
		return domain.SideSell
	})
	signals, err := Coordination{}.Detect(snapshot(t, cfg, mixed...), nil, cfg)
	require.NoError(t, err)
	assert.Empty(t, signals)
}

func TestCoordinationBurstAcrossClockBoundary(t *testing.T) {
	cfg := detectionConfig()
	var trades []obs
	for i := 0; i < 6; i++ {
		// Three wallets before base+30s, three after.
		at := base.Add(25*time.Second + time.Duration(i*2)*time.Second)
		trades = append(trades, tr(fmt.Sprintf("0xs%d", i), domain.SideBuy, 0.5, 8000, at))
	}
	signals, err := Coordination{}.Detect(snapshot(t, cfg, trades...), nil, cfg)
	require.NoError(t, err)
	require.Len(t, signals, 1)

	s := signals[0]
	assert.Equal(t, "coordinated_trading", s.Kind)
	assert.Equal(t, domain.DirectionUp, s.Direction)
	assert.Len(t, s.Evidence.Wallets, 6)
	assert.Equal(t, base.Add(25*time.Second), s.Evidence.WindowStart)
	assert.Equal(t, base.Add(55*time.Second), s.Evidence.WindowEnd)
	assert.InDelta(t, 48000.0, s.Evidence.VolumeUSD, 1e-6)
}

func TestCoordinationWalletsSpreadWiderThanSubWindow(t *testing.T) {
	cfg := detectionConfig()
	var trades []obs
	for i := 0; i < 6; i++ {
		trades = append(trades, tr(fmt.Sprintf("0xw%d", i), domain.SideBuy, 0.5, 500, base.Add(time.Duration(i*10)*time.Second)))
	}
	// Any 30s span holds at most three of the six wallets.
	signals, err := Coordination{}.Detect(snapshot(t, cfg, trades...), nil, cfg)
	require.NoError(t, err)
	assert.Empty(t, signals)
}

func TestWashScore(t *testing.T) {
	var round []domain.Trade
	for i := 0; i < 6; i++ {
		side := domain.SideBuy
		if i%2 == 1 {
			side = domain.SideSell
		}
		round = append(round, domain.Trade{Side: side, Price: 0.5, Timestamp: base.Add(time.Duration(i) * 10 * time.Second)})
	}
	assert.InDelta(t, 1.0, WashScore(round), 1e-9)

	oneWay := []domain.Trade{
		{Side: domain.SideBuy, Price: 0.3, Timestamp: base},
		{Side: domain.SideBuy, Price: 0.6, Timestamp: base.Add(time.Second)},
		{Side: domain.SideBuy, Price: 0.3, Timestamp: base.Add(101 * time.Second)},
		{Side: domain.SideBuy, Price: 0.6, Timestamp: base.Add(106 * time.Second)},
	}
	assert.Less(t, WashScore(oneWay), 0.7)
	assert.Zero(t, WashScore(oneWay[:1]))
}

func TestWashTradingSignal(t *testing.T) {
	cfg := detectionConfig()
	var trades []obs
	for i := 0; i < 6; i++ {
		side := domain.SideBuy
		if i%2 == 1 {
			side = domain.SideSell
		}
		trades = append(trades, tr("0xwash", side, 0.5, 200, base.Add(time.Duration(i)*10*time.Second)))
	}
	snap := snapshot(t, cfg, trades...)

	signals, err := Coordination{}.Detect(snap, fakeWallets{"0xwash": false}, cfg)
	require.NoError(t, err)
	require.Len(t, signals, 1)
	s := signals[0]
	assert.Equal(t, "wash_trading", s.Kind)
	assert.True(t, s.Evidence.WashTrading)
	assert.Equal(t, domain.DirectionNone, s.Direction)
	assert.InDelta(t, 5.0, s.Score, 1e-9)

	signals, err = Coordination{}.Detect(snap, fakeWallets{"0xwash": true}, cfg)
	require.NoError(t, err)
	assert.Empty(t, signals)
}
