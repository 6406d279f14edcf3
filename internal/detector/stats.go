package detector

import (
	"math"

	"github.com/alanyoungcy/insiderwatch/internal/domain"
	"github.com/alanyoungcy/insiderwatch/internal/market"
)

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// stddev is the population standard deviation.
func stddev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := mean(xs)
	var ss float64
	for _, x := range xs {
		d := x - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)))
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// sizeScore maps a notional at or above reference onto 5..limit on a log2
// scale: each doubling adds 3.
func sizeScore(usd, reference, limit float64) float64 {
	if reference <= 0 || usd < reference {
		return 0
	}
	return math.Min(limit, 5+3*math.Log2(usd/reference))
}

func prices(points []market.PricePoint) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = p.Price
	}
	return out
}

// netDirection compares buy and sell notional across obs.
func netDirection(obs []market.Observation) domain.Direction {
	var net float64
	for _, o := range obs {
		switch o.Trade.Side {
		case domain.SideBuy:
			net += o.Trade.USDValue
		case domain.SideSell:
			net -= o.Trade.USDValue
		}
	}
	return signDirection(net)
}

func signDirection(v float64) domain.Direction {
	switch {
	case v > 0:
		return domain.DirectionUp
	case v < 0:
		return domain.DirectionDown
	default:
		return domain.DirectionNone
	}
}

func boolMetric(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
