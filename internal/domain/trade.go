package domain

import (
	"fmt"
	"math"
	"time"
)

// Side is the taker side of a trade on an outcome token.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Direction returns the price direction implied by the side.
func (s Side) Direction() Direction {
	switch s {
	case SideBuy:
		return DirectionUp
	case SideSell:
		return DirectionDown
	default:
		return DirectionNone
	}
}

// Trade is a normalized fill. Trades are immutable once created.
type Trade struct {
	ID        string    `json:"id"`
	MarketID  string    `json:"market_id"`
	AssetID   string    `json:"asset_id,omitempty"`
	Outcome   string    `json:"outcome,omitempty"`
	Wallet    string    `json:"wallet"`
	Side      Side      `json:"side"`
	Price     float64   `json:"price"`
	Size      float64   `json:"size"`
	USDValue  float64   `json:"usd_value"`
	Timestamp time.Time `json:"timestamp"`
	TxHash    string    `json:"tx_hash,omitempty"`
}

// RawTrade is a venue trade payload before normalization. Numeric fields are
// kept as strings so precision survives until the normalizer parses them.
type RawTrade struct {
	MarketID  string `json:"market"`
	AssetID   string `json:"asset"`
	Outcome   string `json:"outcome"`
	Wallet    string `json:"wallet"`
	Side      string `json:"side"`
	Price     string `json:"price"`
	Size      string `json:"size"`
	Timestamp int64  `json:"timestamp"`
	TxHash    string `json:"tx_hash"`
}

// Validate checks the fields every detector relies on. The returned error
// wraps ErrInvalidTrade.
func (t Trade) Validate() error {
	var reason string
	switch {
	case t.MarketID == "":
		reason = "missing market"
	case t.Wallet == "":
		reason = "missing wallet"
	case t.Side != SideBuy && t.Side != SideSell:
		reason = fmt.Sprintf("unknown side %q", t.Side)
	case !finite(t.Price) || t.Price < 0 || t.Price > 1:
		reason = fmt.Sprintf("price %v outside [0,1]", t.Price)
	case !finite(t.Size) || t.Size <= 0:
		reason = fmt.Sprintf("size %v not positive", t.Size)
	case !finite(t.USDValue) || t.USDValue < 0:
		reason = fmt.Sprintf("usd value %v negative", t.USDValue)
	case t.Timestamp.IsZero():
		reason = "missing timestamp"
	default:
		return nil
	}
	return fmt.Errorf("%w: %s", ErrInvalidTrade, reason)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
