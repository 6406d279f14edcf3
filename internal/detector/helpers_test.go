package detector

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/insiderwatch/internal/classifier"
	"github.com/alanyoungcy/insiderwatch/internal/config"
	"github.com/alanyoungcy/insiderwatch/internal/domain"
	"github.com/alanyoungcy/insiderwatch/internal/market"
)

// base is aligned to every sub-window and baseline width used in tests.
var base = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

func detectionConfig() *config.DetectionConfig {
	c := config.Defaults()
	return &c.Detection
}

// fakeWallets maps known addresses to their market-maker flag.
type fakeWallets map[string]bool

func (f fakeWallets) Classify(addr string) (classifier.Result, bool) {
	mm, ok := f[addr]
	if !ok {
		return classifier.Result{}, false
	}
	if mm {
		return classifier.Result{Score: 90, IsMarketMaker: true}, true
	}
	return classifier.Result{Score: 10}, true
}

func (f fakeWallets) Lookup(addr string) (domain.WalletStats, bool) {
	_, ok := f[addr]
	return domain.WalletStats{Address: addr}, ok
}

type obs struct {
	trade domain.Trade
	prior int
}

func tr(wallet string, side domain.Side, price, usd float64, at time.Time) obs {
	return obs{trade: domain.Trade{
		MarketID:  "m1",
		Wallet:    wallet,
		Side:      side,
		Price:     price,
		Size:      usd / price,
		USDValue:  usd,
		Timestamp: at,
	}}
}

func withPrior(o obs, prior int) obs {
	o.prior = prior
	return o
}

func snapshot(t *testing.T, cfg *config.DetectionConfig, trades ...obs) market.Snapshot {
	t.Helper()
	st := market.NewState("m1", market.SizingFrom(cfg))
	for _, o := range trades {
		require.NoError(t, st.Ingest(o.trade, o.prior))
	}
	return st.Snapshot()
}

func kinds(signals []domain.Signal) []string {
	out := make([]string, len(signals))
	for i, s := range signals {
		out[i] = s.Kind
	}
	return out
}

func find(signals []domain.Signal, kind string) (domain.Signal, bool) {
	for _, s := range signals {
		if s.Kind == kind {
			return s, true
		}
	}
	return domain.Signal{}, false
}
