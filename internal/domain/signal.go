package domain

import (
	"math"
	"time"
)

// Direction is the price direction a signal points to.
type Direction string

const (
	DirectionUp   Direction = "UP"
	DirectionDown Direction = "DOWN"
	DirectionNone Direction = "NONE"
)

// DetectorName identifies the detector that produced a signal.
type DetectorName string

const (
	DetectorVolume       DetectorName = "volume"
	DetectorWhale        DetectorName = "whale"
	DetectorPrice        DetectorName = "price"
	DetectorCoordination DetectorName = "coordination"
	DetectorFreshWallet  DetectorName = "fresh_wallet"
)

// DetectorOrder is the fixed order detectors run in and the order used to
// break ties between equally scored signals.
var DetectorOrder = []DetectorName{
	DetectorVolume,
	DetectorWhale,
	DetectorPrice,
	DetectorCoordination,
	DetectorFreshWallet,
}

// Rank returns the position of d in DetectorOrder, or len(DetectorOrder) for
// unknown names.
func (d DetectorName) Rank() int {
	for i, n := range DetectorOrder {
		if n == d {
			return i
		}
	}
	return len(DetectorOrder)
}

// AlertType returns the alert type used when d is the only contributor.
func (d DetectorName) AlertType() AlertType {
	switch d {
	case DetectorVolume:
		return AlertVolumeSpike
	case DetectorWhale:
		return AlertWhaleActivity
	case DetectorPrice:
		return AlertPriceMovement
	case DetectorCoordination:
		return AlertCoordinatedTrading
	case DetectorFreshWallet:
		return AlertFreshWallet
	default:
		return AlertComposite
	}
}

// Evidence is the small structured payload attached to a signal.
type Evidence struct {
	Wallets        []string           `json:"wallets,omitempty"`
	VolumeUSD      float64            `json:"volume_usd,omitempty"`
	Multiplier     float64            `json:"multiplier,omitempty"`
	Ratio          float64            `json:"ratio,omitempty"`
	WindowStart    time.Time          `json:"window_start"`
	WindowEnd      time.Time          `json:"window_end"`
	BaselineBacked bool               `json:"baseline_backed,omitempty"`
	WashTrading    bool               `json:"wash_trading,omitempty"`
	Metrics        map[string]float64 `json:"metrics,omitempty"`
}

// Signal is a single detector finding for one market in one analysis pass.
type Signal struct {
	Detector  DetectorName `json:"detector"`
	Kind      string       `json:"kind"`
	MarketID  string       `json:"market_id"`
	Score     float64      `json:"score"`
	Direction Direction    `json:"direction"`
	Evidence  Evidence     `json:"evidence"`
}

// Valid reports whether the score is a finite, non-negative number.
func (s Signal) Valid() bool {
	return !math.IsNaN(s.Score) && !math.IsInf(s.Score, 0) && s.Score >= 0
}
