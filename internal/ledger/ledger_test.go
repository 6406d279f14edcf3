package ledger

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/insiderwatch/internal/classifier"
	"github.com/alanyoungcy/insiderwatch/internal/domain"
)

var day0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func tr(wallet, market string, side domain.Side, usd float64, at time.Time) domain.Trade {
	return domain.Trade{MarketID: market, Wallet: wallet, Side: side, Price: 0.5, Size: usd * 2, USDValue: usd, Timestamp: at}
}

func TestRecordAggregatesAcrossMarkets(t *testing.T) {
	l := New(classifier.DefaultParams(), 25)

	assert.Equal(t, 0, l.Record(tr("0xa", "m1", domain.SideBuy, 100, day0)))
	assert.Equal(t, 1, l.Record(tr("0xa", "m2", domain.SideSell, 40, day0.Add(time.Hour))))
	assert.Equal(t, 2, l.Record(tr("0xa", "m1", domain.SideBuy, 60, day0.Add(48*time.Hour))))

	s, ok := l.Lookup("0xa")
	require.True(t, ok)
	assert.Equal(t, 3, s.TradeCount)
	assert.Equal(t, 200.0, s.TotalVolumeUSD)
	assert.Equal(t, 160.0, s.BuyVolumeUSD)
	assert.Equal(t, 40.0, s.SellVolumeUSD)
	assert.Equal(t, 2, s.DistinctMarkets)
	assert.Equal(t, 2, s.ActiveDays)
	assert.Equal(t, day0, s.FirstSeenAt)
	assert.Equal(t, day0.Add(48*time.Hour), s.LastSeenAt)

	_, ok = l.Lookup("0xmissing")
	assert.False(t, ok)
	_, ok = l.Classify("0xmissing")
	assert.False(t, ok)
}

func TestRecordIsAtomicPerWallet(t *testing.T) {
	l := New(classifier.DefaultParams(), 25)
	const workers, perWorker = 8, 250

	var mu sync.Mutex
	priors := make(map[int]bool)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				p := l.Record(tr("0xshared", fmt.Sprintf("m%d", w), domain.SideBuy, 1, day0))
				mu.Lock()
				priors[p] = true
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()

	s, _ := l.Lookup("0xshared")
	assert.Equal(t, workers*perWorker, s.TradeCount)
	assert.Len(t, priors, workers*perWorker, "every prior count is observed exactly once")
	assert.Equal(t, workers, s.DistinctMarkets)
}

func TestClassifyRecomputesOnStaleness(t *testing.T) {
	l := New(classifier.DefaultParams(), 10)
	l.Record(tr("0xb", "m1", domain.SideBuy, 100, day0))

	first, ok := l.Classify("0xb")
	require.True(t, ok)

	// Fewer than recomputeEvery new trades keep the cached result.
	for i := 0; i < 9; i++ {
		side := domain.SideSell
		if i%2 == 0 {
			side = domain.SideBuy
		}
		l.Record(tr("0xb", fmt.Sprintf("m%d", i), side, 100, day0.Add(time.Duration(i)*24*time.Hour)))
	}
	cached, _ := l.Classify("0xb")
	assert.Equal(t, first, cached)

	l.Record(tr("0xb", "m9", domain.SideSell, 100, day0.Add(10*24*time.Hour)))
	fresh, _ := l.Classify("0xb")
	assert.Greater(t, fresh.Score, first.Score)
}

func TestSetClassifierInvalidatesCache(t *testing.T) {
	l := New(classifier.DefaultParams(), 1000)
	l.Record(tr("0xc", "m1", domain.SideBuy, 100, day0))
	l.Record(tr("0xc", "m1", domain.SideSell, 100, day0))
	before, _ := l.Classify("0xc")
	assert.False(t, before.IsMarketMaker)

	p := classifier.DefaultParams()
	p.Threshold = 1
	l.SetClassifier(p, 1000)
	after, _ := l.Classify("0xc")
	assert.True(t, after.IsMarketMaker)
}

func TestHighActivityBalancedWalletIsMarketMaker(t *testing.T) {
	l := New(classifier.DefaultParams(), 25)
	for i := 0; i < 500; i++ {
		side := domain.SideBuy
		if i%2 == 1 {
			side = domain.SideSell
		}
		at := day0.Add(time.Duration(i%60) * 24 * time.Hour)
		l.Record(tr("0xmm", fmt.Sprintf("m%d", i%20), side, 100, at))
	}

	s, _ := l.Lookup("0xmm")
	require.Equal(t, 20, s.DistinctMarkets)
	require.Equal(t, 60, s.ActiveDays)
	require.Equal(t, s.BuyVolumeUSD, s.SellVolumeUSD)

	r, _ := l.Classify("0xmm")
	assert.GreaterOrEqual(t, r.Score, 70.0)
	assert.True(t, r.IsMarketMaker)
}

func TestDrainDirtyAndPrune(t *testing.T) {
	l := New(classifier.DefaultParams(), 25)
	l.Record(tr("0xb", "m1", domain.SideBuy, 1, day0))
	l.Record(tr("0xa", "m1", domain.SideBuy, 1, day0.Add(72*time.Hour)))

	dirty := l.DrainDirty()
	require.Len(t, dirty, 2)
	assert.Equal(t, "0xa", dirty[0].Address)
	assert.Empty(t, l.DrainDirty())

	l.Record(tr("0xa", "m2", domain.SideSell, 1, day0.Add(73*time.Hour)))
	assert.Len(t, l.DrainDirty(), 1)

	assert.Equal(t, 1, l.Prune(day0.Add(24*time.Hour)))
	assert.Equal(t, 1, l.Len())
	_, ok := l.Lookup("0xb")
	assert.False(t, ok)
}
