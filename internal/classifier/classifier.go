// Package classifier scores how likely a wallet is to be a market maker.
//
// The score is a heuristic out of 100 built from four weighted components:
// trade frequency, buy/sell balance, market diversity and activity
// consistency. Each component is exported so it can be tested on its own.
package classifier

import (
	"math"

	"github.com/alanyoungcy/insiderwatch/internal/config"
	"github.com/alanyoungcy/insiderwatch/internal/domain"
)

// MaxScore is the upper bound of Score.
const MaxScore = 100.0

// Params are the weights, saturation references and cutoff of the score.
type Params struct {
	FrequencyWeight     float64
	BalanceWeight       float64
	DiversityWeight     float64
	ConsistencyWeight   float64
	HighFrequencyTrades int
	MarketCeiling       int
	ActiveDaysCeiling   int
	Threshold           float64
}

// ParamsFrom converts the classifier configuration.
func ParamsFrom(cfg config.ClassifierConfig) Params {
	return Params{
		FrequencyWeight:     cfg.FrequencyWeight,
		BalanceWeight:       cfg.BalanceWeight,
		DiversityWeight:     cfg.DiversityWeight,
		ConsistencyWeight:   cfg.ConsistencyWeight,
		HighFrequencyTrades: cfg.HighFrequencyTrades,
		MarketCeiling:       cfg.MarketCeiling,
		ActiveDaysCeiling:   cfg.ActiveDaysCeiling,
		Threshold:           cfg.Threshold,
	}
}

// DefaultParams returns the parameters of config.Defaults.
func DefaultParams() Params {
	return ParamsFrom(config.Defaults().Classifier)
}

// Result is a computed classification.
type Result struct {
	Score         float64
	IsMarketMaker bool
}

// saturate scales v against reference, capped at 1.
func saturate(v, reference float64) float64 {
	if reference <= 0 || v <= 0 {
		return 0
	}
	return math.Min(1, v/reference)
}

// FrequencyScore scales the trade count against the high-frequency reference.
func FrequencyScore(tradeCount, reference int, weight float64) float64 {
	return weight * saturate(float64(tradeCount), float64(reference))
}

// BalanceScore rewards symmetric buy/sell flow. A wallet trading in only one
// direction, or with no volume, scores 0.
func BalanceScore(buyUSD, sellUSD, weight float64) float64 {
	buyUSD, sellUSD = math.Max(buyUSD, 0), math.Max(sellUSD, 0)
	total := buyUSD + sellUSD
	if total <= 0 {
		return 0
	}
	return weight * (1 - math.Abs(buyUSD-sellUSD)/total)
}

// DiversityScore scales the distinct market count against the ceiling.
func DiversityScore(markets, ceiling int, weight float64) float64 {
	return weight * saturate(float64(markets), float64(ceiling))
}

// ConsistencyScore scales the distinct active day count against the ceiling.
func ConsistencyScore(activeDays, ceiling int, weight float64) float64 {
	return weight * saturate(float64(activeDays), float64(ceiling))
}

// Score sums the four components, clamped to [0, MaxScore].
func Score(s domain.WalletStats, p Params) float64 {
	total := FrequencyScore(s.TradeCount, p.HighFrequencyTrades, p.FrequencyWeight) +
		BalanceScore(s.BuyVolumeUSD, s.SellVolumeUSD, p.BalanceWeight) +
		DiversityScore(s.DistinctMarkets, p.MarketCeiling, p.DiversityWeight) +
		ConsistencyScore(s.ActiveDays, p.ActiveDaysCeiling, p.ConsistencyWeight)
	if math.IsNaN(total) {
		return 0
	}
	return math.Max(0, math.Min(MaxScore, total))
}

// Classify scores s and applies the threshold.
func Classify(s domain.WalletStats, p Params) Result {
	score := Score(s, p)
	return Result{Score: score, IsMarketMaker: score >= p.Threshold}
}
