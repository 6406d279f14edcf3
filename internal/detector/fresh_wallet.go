package detector

import (
	"sort"

	"github.com/alanyoungcy/insiderwatch/internal/config"
	"github.com/alanyoungcy/insiderwatch/internal/domain"
	"github.com/alanyoungcy/insiderwatch/internal/market"
)

// FreshWallet flags large bets from wallets with almost no prior history.
// The prior trade count is the one recorded when the trade was applied, so a
// wallet's later activity does not hide its first bet. Market makers are not
// excluded.
type FreshWallet struct{}

var _ Detector = FreshWallet{}

func (FreshWallet) Name() domain.DetectorName { return domain.DetectorFreshWallet }

func (FreshWallet) Detect(snap market.Snapshot, _ WalletView, cfg *config.DetectionConfig) ([]domain.Signal, error) {
	d := cfg.AnalysisWindow.Duration
	win := snap.Window(d)
	fc := cfg.FreshWallet

	largest := make(map[string]market.Observation)
	for _, o := range win {
		if o.Trade.USDValue < fc.MinBetSizeUSD || o.PriorTrades > fc.MaxPreviousTrades {
			continue
		}
		if cur, ok := largest[o.Trade.Wallet]; !ok || o.Trade.USDValue > cur.Trade.USDValue {
			largest[o.Trade.Wallet] = o
		}
	}
	if len(largest) == 0 {
		return nil, nil
	}

	addrs := make([]string, 0, len(largest))
	for addr := range largest {
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)

	out := make([]domain.Signal, 0, len(addrs))
	for _, addr := range addrs {
		o := largest[addr]
		out = append(out, domain.Signal{
			Detector:  domain.DetectorFreshWallet,
			Kind:      "fresh_wallet_bet",
			MarketID:  snap.MarketID,
			Score:     sizeScore(o.Trade.USDValue, fc.MinBetSizeUSD, 10),
			Direction: o.Trade.Side.Direction(),
			Evidence: domain.Evidence{
				Wallets:     []string{addr},
				VolumeUSD:   o.Trade.USDValue,
				Multiplier:  o.Trade.USDValue / fc.MinBetSizeUSD,
				WindowStart: snap.WindowStart(d),
				WindowEnd:   snap.Clock,
				Metrics: map[string]float64{
					"prior_trades": float64(o.PriorTrades),
					"price":        o.Trade.Price,
				},
			},
		})
	}
	return out, nil
}
