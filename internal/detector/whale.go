package detector

import (
	"math"
	"sort"

	"github.com/alanyoungcy/insiderwatch/internal/config"
	"github.com/alanyoungcy/insiderwatch/internal/domain"
	"github.com/alanyoungcy/insiderwatch/internal/market"
)

// Whale flags single large trades by non market-maker wallets and groups of
// whales trading the same way.
type Whale struct{}

var _ Detector = Whale{}

func (Whale) Name() domain.DetectorName { return domain.DetectorWhale }

func (Whale) Detect(snap market.Snapshot, wallets WalletView, cfg *config.DetectionConfig) ([]domain.Signal, error) {
	d := cfg.AnalysisWindow.Duration
	win := snap.Window(d)
	if len(win) == 0 {
		return nil, nil
	}
	wc := cfg.Whale
	start, end := snap.WindowStart(d), snap.Clock

	var total float64
	for _, o := range win {
		total += o.Trade.USDValue
	}

	type flow struct{ buy, sell float64 }
	whales := make(map[string]*flow)
	mm := make(map[string]bool)

	var out []domain.Signal
	for _, o := range win {
		t := o.Trade
		if t.USDValue < wc.WhaleThresholdUSD {
			continue
		}
		isMM, seen := mm[t.Wallet]
		if !seen {
			isMM = isMarketMaker(wallets, t.Wallet)
			mm[t.Wallet] = isMM
		}
		if isMM {
			continue
		}

		share := 0.0
		if total > 0 {
			share = t.USDValue / total
		}
		dominant := share > wc.DominanceShare
		out = append(out, domain.Signal{
			Detector:  domain.DetectorWhale,
			Kind:      "whale_trade",
			MarketID:  snap.MarketID,
			Score:     sizeScore(t.USDValue, wc.WhaleThresholdUSD, 10),
			Direction: t.Side.Direction(),
			Evidence: domain.Evidence{
				Wallets:     []string{t.Wallet},
				VolumeUSD:   t.USDValue,
				Multiplier:  t.USDValue / wc.WhaleThresholdUSD,
				Ratio:       share,
				WindowStart: start,
				WindowEnd:   end,
				Metrics: map[string]float64{
					"share":    share,
					"dominant": boolMetric(dominant),
					"price":    t.Price,
				},
			},
		})

		f := whales[t.Wallet]
		if f == nil {
			f = &flow{}
			whales[t.Wallet] = f
		}
		switch t.Side {
		case domain.SideBuy:
			f.buy += t.USDValue
		case domain.SideSell:
			f.sell += t.USDValue
		}
	}

	if len(whales) >= wc.MinWhalesForCoordination && wc.MinWhalesForCoordination > 0 {
		var buy, sell float64
		addrs := make([]string, 0, len(whales))
		for addr, f := range whales {
			buy += f.buy
			sell += f.sell
			addrs = append(addrs, addr)
		}
		sort.Strings(addrs)
		corr := 0.0
		if buy+sell > 0 {
			corr = math.Abs(buy-sell) / (buy + sell)
		}
		if corr >= wc.CoordinationThreshold {
			n := float64(len(whales))
			out = append(out, domain.Signal{
				Detector:  domain.DetectorWhale,
				Kind:      "whale_coordination",
				MarketID:  snap.MarketID,
				Score:     math.Min(12, 8+2*corr*(n/float64(wc.MinWhalesForCoordination))),
				Direction: signDirection(buy - sell),
				Evidence: domain.Evidence{
					Wallets:     addrs,
					VolumeUSD:   buy + sell,
					Ratio:       corr,
					WindowStart: start,
					WindowEnd:   end,
					Metrics: map[string]float64{
						"whales":      n,
						"correlation": corr,
						"buy_usd":     buy,
						"sell_usd":    sell,
					},
				},
			})
		}
	}
	return out, nil
}
