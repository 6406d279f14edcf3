// Package confidence merges one pass's signals into at most one alert.
package confidence

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/insiderwatch/internal/config"
	"github.com/alanyoungcy/insiderwatch/internal/domain"
)

// alertNamespace seeds the name-based alert IDs.
var alertNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("insiderwatch/alert"))

// Engine scores signal sets. It holds no state between calls.
type Engine struct{}

// New creates an Engine.
func New() *Engine { return &Engine{} }

// Breakdown is the confidence computation for a signal set.
type Breakdown struct {
	Sum        float64
	Bonus      float64
	Confidence float64
	Bar        float64
}

// Score computes the confidence of signals without deciding on an alert.
func Score(signals []domain.Signal, cfg *config.ConfidenceConfig) Breakdown {
	switch len(signals) {
	case 0:
		return Breakdown{Bar: cfg.SingleSignalBar}
	case 1:
		return Breakdown{Sum: signals[0].Score, Confidence: signals[0].Score, Bar: cfg.SingleSignalBar}
	}

	var b Breakdown
	b.Bar = cfg.MultiSignalBar
	var (
		baseline, coordination, wash bool
		detectors                    = make(map[domain.DetectorName]struct{})
		directional                  int
		agree                        = true
		first                        domain.Direction
	)
	for _, s := range signals {
		b.Sum += s.Score
		detectors[s.Detector] = struct{}{}
		baseline = baseline || s.Evidence.BaselineBacked
		coordination = coordination || s.Detector == domain.DetectorCoordination
		wash = wash || s.Evidence.WashTrading
		if s.Direction == domain.DirectionNone {
			continue
		}
		if directional == 0 {
			first = s.Direction
		} else if s.Direction != first {
			agree = false
		}
		directional++
	}

	if baseline {
		b.Bonus += cfg.BaselineBonus
	}
	if coordination {
		b.Bonus += cfg.CoordinationBonus
	}
	if directional >= 2 && agree {
		b.Bonus += cfg.DirectionalBonus
	}
	if len(detectors) >= 2 {
		b.Bonus += cfg.MultiDetectorBonus
	}
	if wash {
		b.Bonus += cfg.WashTradingBonus
	}
	b.Confidence = b.Sum + b.Bonus
	return b
}

// SeverityFor maps a confidence onto a severity band.
func SeverityFor(confidence float64, cfg *config.ConfidenceConfig) domain.Severity {
	switch {
	case confidence >= cfg.CriticalBar:
		return domain.SeverityCritical
	case confidence >= cfg.HighBar:
		return domain.SeverityHigh
	default:
		return domain.SeverityMedium
	}
}

// Evaluate decides whether signals clear the applicable bar and builds the
// alert. at is the snapshot clock; it becomes the alert's creation time and
// feeds the deterministic ID. price is the market's last price.
func (e *Engine) Evaluate(marketID string, signals []domain.Signal, price float64, at time.Time, cfg *config.ConfidenceConfig) (domain.Alert, bool) {
	if len(signals) == 0 {
		return domain.Alert{}, false
	}
	b := Score(signals, cfg)
	if b.Confidence < b.Bar {
		return domain.Alert{}, false
	}

	typ := domain.AlertComposite
	if len(signals) == 1 {
		typ = signals[0].Detector.AlertType()
	}
	sev := SeverityFor(b.Confidence, cfg)
	rec := Recommend(signals, price)

	own := make([]domain.Signal, len(signals))
	copy(own, signals)

	return domain.Alert{
		ID:                AlertID(marketID, at, typ),
		MarketID:          marketID,
		Type:              typ,
		Severity:          sev,
		Confidence:        b.Confidence,
		Signals:           own,
		Recommendation:    rec,
		RecommendedAction: Describe(rec, sev),
		CreatedAt:         at,
	}, true
}

// AlertID derives a stable ID from the market, snapshot clock and type.
func AlertID(marketID string, at time.Time, typ domain.AlertType) string {
	name := fmt.Sprintf("%s|%s|%s", marketID, at.UTC().Format(time.RFC3339Nano), typ)
	return uuid.NewSHA1(alertNamespace, []byte(name)).String()
}
