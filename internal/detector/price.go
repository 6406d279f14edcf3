package detector

import (
	"math"

	"github.com/alanyoungcy/insiderwatch/internal/config"
	"github.com/alanyoungcy/insiderwatch/internal/domain"
	"github.com/alanyoungcy/insiderwatch/internal/market"
)

// Price flags rapid moves, volatility spikes, sustained one-way momentum and
// trades persistently on one side of VWAP.
type Price struct{}

var _ Detector = Price{}

func (Price) Name() domain.DetectorName { return domain.DetectorPrice }

func (Price) Detect(snap market.Snapshot, _ WalletView, cfg *config.DetectionConfig) ([]domain.Signal, error) {
	d := cfg.AnalysisWindow.Duration
	start, end := snap.WindowStart(d), snap.Clock
	pc := cfg.Price

	signal := func(kind string, score float64, dir domain.Direction, ev domain.Evidence) domain.Signal {
		ev.WindowStart, ev.WindowEnd = start, end
		return domain.Signal{
			Detector:  domain.DetectorPrice,
			Kind:      kind,
			MarketID:  snap.MarketID,
			Score:     score,
			Direction: dir,
			Evidence:  ev,
		}
	}

	var out []domain.Signal
	pts := snap.PricesSince(start)
	if len(pts) >= 2 && pts[0].Price > 0 {
		first, last := pts[0].Price, pts[len(pts)-1].Price
		change := (last - first) / first * 100
		moveDir := signDirection(change)
		abs := math.Abs(change)

		if abs >= pc.RapidMovementPct {
			out = append(out, signal("rapid_move", 6*abs/pc.RapidMovementPct, moveDir, domain.Evidence{
				Ratio: change / 100,
				Metrics: map[string]float64{
					"change_pct":  change,
					"first_price": first,
					"last_price":  last,
				},
			}))
		}

		window := prices(pts)
		if prior := snap.PricesBefore(start); len(prior) >= pc.MinPriceSamples {
			cur, base := stddev(window), stddev(prices(prior))
			if base > 0 && cur >= pc.VolatilitySpikeMultiplier*base {
				ratio := cur / base
				out = append(out, signal("volatility_spike", math.Min(10, ratio*2), moveDir, domain.Evidence{
					Multiplier:     ratio,
					Ratio:          ratio,
					BaselineBacked: true,
					Metrics: map[string]float64{
						"current_volatility":  cur,
						"baseline_volatility": base,
						"baseline_samples":    float64(len(prior)),
					},
				}))
			}
		}

		var ups, downs int
		for i := 1; i < len(window); i++ {
			switch {
			case window[i] > window[i-1]:
				ups++
			case window[i] < window[i-1]:
				downs++
			}
		}
		if changes := ups + downs; changes >= pc.MinPriceChanges && changes > 0 {
			momentum := float64(max(ups, downs)) / float64(changes)
			if momentum >= pc.MomentumThreshold && abs >= pc.MinTrendPct {
				dir := domain.DirectionNone
				switch {
				case ups > downs:
					dir = domain.DirectionUp
				case downs > ups:
					dir = domain.DirectionDown
				}
				out = append(out, signal("momentum", 5*momentum, dir, domain.Evidence{
					Ratio: momentum,
					Metrics: map[string]float64{
						"momentum":   momentum,
						"ups":        float64(ups),
						"downs":      float64(downs),
						"change_pct": change,
					},
				}))
			}
		}
	}

	if s, ok := vwapPressure(snap.Window(d), pc); ok {
		out = append(out, signal("vwap_pressure", s.score, s.dir, domain.Evidence{
			Ratio: s.fraction,
			Metrics: map[string]float64{
				"fraction": s.fraction,
				"vwap":     s.vwap,
				"above":    float64(s.above),
				"below":    float64(s.below),
			},
		}))
	}
	return out, nil
}

type pressure struct {
	score, fraction, vwap float64
	above, below          int
	dir                   domain.Direction
}

// vwapPressure compares each of the last lookback trades with the running
// VWAP at that trade. Mostly above is accumulation, mostly below is
// distribution.
func vwapPressure(win []market.Observation, pc config.PriceConfig) (pressure, bool) {
	n := pc.VWAPLookback
	if n < 1 || len(win) < n {
		return pressure{}, false
	}
	var notional, size float64
	var p pressure
	for i, o := range win {
		if o.Trade.Size <= 0 || o.Trade.Price <= 0 {
			continue
		}
		notional += o.Trade.Price * o.Trade.Size
		size += o.Trade.Size
		if i < len(win)-n || size == 0 {
			continue
		}
		vwap := notional / size
		switch {
		case o.Trade.Price > vwap:
			p.above++
		case o.Trade.Price < vwap:
			p.below++
		}
		p.vwap = vwap
	}
	top := max(p.above, p.below)
	p.fraction = float64(top) / float64(n)
	if p.above == p.below || p.fraction < pc.VWAPDominance {
		return pressure{}, false
	}
	p.dir = domain.DirectionDown
	if p.above > p.below {
		p.dir = domain.DirectionUp
	}
	p.score = 4 * p.fraction
	return p, true
}
