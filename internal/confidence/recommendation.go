package confidence

import (
	"fmt"

	"github.com/alanyoungcy/insiderwatch/internal/domain"
)

// Dominant returns the highest scoring signal. Ties go to the detector that
// runs first.
func Dominant(signals []domain.Signal) (domain.Signal, bool) {
	if len(signals) == 0 {
		return domain.Signal{}, false
	}
	best := signals[0]
	for _, s := range signals[1:] {
		if s.Score > best.Score || (s.Score == best.Score && s.Detector.Rank() < best.Detector.Rank()) {
			best = s
		}
	}
	return best, true
}

// Recommend derives the advisory bias from the dominant signal's direction.
func Recommend(signals []domain.Signal, price float64) domain.Recommendation {
	rec := domain.Recommendation{Action: domain.ActionMonitor, Bias: domain.DirectionNone, Price: price}
	d, ok := Dominant(signals)
	if !ok {
		return rec
	}
	rec.Bias = d.Direction
	switch d.Direction {
	case domain.DirectionUp:
		rec.Action = domain.ActionBuy
	case domain.DirectionDown:
		rec.Action = domain.ActionSell
	}
	return rec
}

// Describe renders a recommendation as text. It is advisory only.
func Describe(rec domain.Recommendation, sev domain.Severity) string {
	var qualifier string
	switch sev {
	case domain.SeverityCritical:
		qualifier = "strongly corroborated unusual activity"
	case domain.SeverityHigh:
		qualifier = "consider the direction of the unusual flow"
	default:
		qualifier = "monitor closely for confirmation"
	}
	return fmt.Sprintf("%s bias at %.4f (%s)", rec.Action, rec.Price, qualifier)
}
