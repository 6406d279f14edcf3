package detector

import (
	"math"
	"sort"
	"time"

	"github.com/alanyoungcy/insiderwatch/internal/config"
	"github.com/alanyoungcy/insiderwatch/internal/domain"
	"github.com/alanyoungcy/insiderwatch/internal/market"
)

// Coordination flags many distinct wallets trading the same direction inside
// one short sub-window trailing any trade, and single wallets whose round trips look like wash
// trading. Market makers are excluded from both.
type Coordination struct{}

var _ Detector = Coordination{}

func (Coordination) Name() domain.DetectorName { return domain.DetectorCoordination }

type subWindow struct {
	start  time.Time
	trades int
	usd    float64
	net    map[string]float64 // wallet -> signed USD
}

func (Coordination) Detect(snap market.Snapshot, wallets WalletView, cfg *config.DetectionConfig) ([]domain.Signal, error) {
	win := snap.Window(cfg.AnalysisWindow.Duration)
	co := cfg.Coordination
	width := co.SubWindow()
	if len(win) == 0 || width <= 0 || co.MinCoordinatedWallets < 1 {
		return nil, nil
	}

	mm := make(map[string]bool)
	excluded := func(addr string) bool {
		v, ok := mm[addr]
		if !ok {
			v = isMarketMaker(wallets, addr)
			mm[addr] = v
		}
		return v
	}

	trades := make([]domain.Trade, len(win))
	for i, o := range win {
		trades[i] = o.Trade
	}
	sort.SliceStable(trades, func(i, j int) bool { return trades[i].Timestamp.Before(trades[j].Timestamp) })

	perWallet := make(map[string][]domain.Trade)
	for _, t := range trades {
		if !excluded(t.Wallet) {
			perWallet[t.Wallet] = append(perWallet[t.Wallet], t)
		}
	}

	baseRate := 0.0
	if r := snap.Rate; r.Ready(cfg.MinimumBaselineWindows) && r.Width > 0 {
		baseRate = r.Mean / r.Width.Seconds()
	}

	// Each sub-window trails from one trade, so a burst is never split by a
	// window boundary.
	var best *domain.Signal
	end := 0
	for i, first := range trades {
		if i > 0 && first.Timestamp.Equal(trades[i-1].Timestamp) {
			continue
		}
		limit := first.Timestamp.Add(width)
		if end < i {
			end = i
		}
		for end < len(trades) && trades[end].Timestamp.Before(limit) {
			end++
		}
		if end-i < co.MinCoordinatedWallets {
			continue
		}
		b := collectSubWindow(trades[i:end], first.Timestamp, excluded)
		s, ok := scoreSubWindow(b, snap.MarketID, baseRate, width, co)
		if ok && (best == nil || s.Score > best.Score) {
			best = &s
		}
	}

	var out []domain.Signal
	if best != nil {
		out = append(out, *best)
	}
	out = append(out, washSignals(perWallet, snap, cfg)...)
	return out, nil
}

func collectSubWindow(trades []domain.Trade, start time.Time, excluded func(string) bool) *subWindow {
	b := &subWindow{start: start, trades: len(trades), net: make(map[string]float64)}
	for _, t := range trades {
		if excluded(t.Wallet) {
			continue
		}
		signed := t.USDValue
		if t.Side == domain.SideSell {
			signed = -signed
		}
		b.net[t.Wallet] += signed
		b.usd += t.USDValue
	}
	return b
}

func scoreSubWindow(b *subWindow, marketID string, baseRate float64, width time.Duration, co config.CoordinationConfig) (domain.Signal, bool) {
	distinct := len(b.net)
	if distinct < co.MinCoordinatedWallets {
		return domain.Signal{}, false
	}
	var ups, downs []string
	for addr, v := range b.net {
		switch {
		case v > 0:
			ups = append(ups, addr)
		case v < 0:
			downs = append(downs, addr)
		}
	}
	majority, dir := ups, domain.DirectionUp
	if len(downs) > len(ups) {
		majority, dir = downs, domain.DirectionDown
	}
	bias := float64(len(majority)) / float64(distinct)
	if len(ups) == len(downs) || bias < co.DirectionalBiasThreshold {
		return domain.Signal{}, false
	}

	burst := 1.0
	if baseRate > 0 {
		burst = (float64(b.trades) / width.Seconds()) / baseRate
	}
	intensity := 1.0
	if co.BurstIntensityThreshold > 0 {
		intensity = clamp(burst/co.BurstIntensityThreshold, 1, 2)
	}
	score := 5 * (float64(distinct) / float64(co.MinCoordinatedWallets)) * bias * intensity

	sort.Strings(majority)
	return domain.Signal{
		Detector:  domain.DetectorCoordination,
		Kind:      "coordinated_trading",
		MarketID:  marketID,
		Score:     score,
		Direction: dir,
		Evidence: domain.Evidence{
			Wallets:     majority,
			VolumeUSD:   b.usd,
			Multiplier:  burst,
			Ratio:       bias,
			WindowStart: b.start,
			WindowEnd:   b.start.Add(width),
			Metrics: map[string]float64{
				"distinct_wallets": float64(distinct),
				"directional_bias": bias,
				"burst_intensity":  burst,
				"trades":           float64(b.trades),
			},
		},
	}, true
}

// WashScore rates how much a wallet's trades look like self-dealing round
// trips: 0.4 for side alternation, 0.4 for price stability and 0.2 for
// regular timing. trades must be in time order.
func WashScore(trades []domain.Trade) float64 {
	if len(trades) < 2 {
		return 0
	}
	switches := 0
	px := make([]float64, len(trades))
	gaps := make([]float64, 0, len(trades)-1)
	for i, t := range trades {
		px[i] = t.Price
		if i == 0 {
			continue
		}
		if t.Side != trades[i-1].Side {
			switches++
		}
		gaps = append(gaps, t.Timestamp.Sub(trades[i-1].Timestamp).Seconds())
	}
	alternation := float64(switches) / float64(len(trades)-1)
	stability := math.Max(0, 1-stddev(px)/math.Max(mean(px), 1e-8))
	regularity := 1 / (1 + stddev(gaps))
	return math.Min(1, 0.4*alternation+0.4*stability+0.2*regularity)
}

func washSignals(perWallet map[string][]domain.Trade, snap market.Snapshot, cfg *config.DetectionConfig) []domain.Signal {
	co := cfg.Coordination
	addrs := make([]string, 0, len(perWallet))
	for addr, trades := range perWallet {
		if len(trades) >= co.WashMinTrades {
			addrs = append(addrs, addr)
		}
	}
	sort.Strings(addrs)

	var out []domain.Signal
	for _, addr := range addrs {
		trades := perWallet[addr]
		score := WashScore(trades)
		if score < co.WashScoreThreshold {
			continue
		}
		var usd float64
		for _, t := range trades {
			usd += t.USDValue
		}
		out = append(out, domain.Signal{
			Detector:  domain.DetectorCoordination,
			Kind:      "wash_trading",
			MarketID:  snap.MarketID,
			Score:     5 * score,
			Direction: domain.DirectionNone,
			Evidence: domain.Evidence{
				Wallets:     []string{addr},
				VolumeUSD:   usd,
				Ratio:       score,
				WindowStart: trades[0].Timestamp,
				WindowEnd:   trades[len(trades)-1].Timestamp,
				WashTrading: true,
				Metrics: map[string]float64{
					"wash_score": score,
					"trades":     float64(len(trades)),
				},
			},
		})
	}
	return out
}
