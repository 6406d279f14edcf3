// Package normalize converts venue trade payloads into domain trades.
package normalize

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/insiderwatch/internal/domain"
)

// ErrFiltered marks a well-formed trade for a market outside the allowlist.
var ErrFiltered = errors.New("market not monitored")

// millisThreshold separates second from millisecond Unix timestamps. Values
// at or above it are milliseconds (any date after 2001 in ms).
const millisThreshold = 1_000_000_000_000

// usdPlaces is the precision notional values are rounded to.
const usdPlaces = 6

// Normalizer validates raw trades and computes their notional. It is safe
// for concurrent use once created.
type Normalizer struct {
	markets map[string]bool
}

// New creates a Normalizer. An empty markets list accepts every market.
func New(markets []string) *Normalizer {
	n := &Normalizer{}
	if len(markets) > 0 {
		n.markets = make(map[string]bool, len(markets))
		for _, m := range markets {
			n.markets[strings.ToLower(strings.TrimSpace(m))] = true
		}
	}
	return n
}

// Normalize converts raw into a domain.Trade. Malformed input yields an error
// wrapping domain.ErrInvalidTrade; trades for unmonitored markets yield
// ErrFiltered.
func (n *Normalizer) Normalize(raw domain.RawTrade) (domain.Trade, error) {
	market := strings.TrimSpace(raw.MarketID)
	if market == "" {
		return domain.Trade{}, invalid("missing market")
	}
	if n.markets != nil && !n.markets[strings.ToLower(market)] {
		return domain.Trade{}, fmt.Errorf("normalize: %s: %w", market, ErrFiltered)
	}

	wallet, err := Address(raw.Wallet)
	if err != nil {
		return domain.Trade{}, err
	}

	var txHash string
	if raw.TxHash != "" {
		if txHash, err = TxHash(raw.TxHash); err != nil {
			return domain.Trade{}, err
		}
	}

	side := domain.Side(strings.ToUpper(strings.TrimSpace(raw.Side)))
	if side != domain.SideBuy && side != domain.SideSell {
		return domain.Trade{}, invalid(fmt.Sprintf("unknown side %q", raw.Side))
	}

	price, err := decimal.NewFromString(strings.TrimSpace(raw.Price))
	if err != nil {
		return domain.Trade{}, invalid(fmt.Sprintf("price %q", raw.Price))
	}
	if price.IsNegative() || price.GreaterThan(decimal.NewFromInt(1)) {
		return domain.Trade{}, invalid(fmt.Sprintf("price %s outside [0,1]", price))
	}
	size, err := decimal.NewFromString(strings.TrimSpace(raw.Size))
	if err != nil {
		return domain.Trade{}, invalid(fmt.Sprintf("size %q", raw.Size))
	}
	if !size.IsPositive() {
		return domain.Trade{}, invalid(fmt.Sprintf("size %s not positive", size))
	}

	at, err := Timestamp(raw.Timestamp)
	if err != nil {
		return domain.Trade{}, err
	}

	t := domain.Trade{
		ID:        tradeID(txHash, raw.AssetID, wallet, side, at),
		MarketID:  market,
		AssetID:   raw.AssetID,
		Outcome:   raw.Outcome,
		Wallet:    wallet,
		Side:      side,
		Price:     price.InexactFloat64(),
		Size:      size.InexactFloat64(),
		USDValue:  price.Mul(size).Round(usdPlaces).InexactFloat64(),
		Timestamp: at,
		TxHash:    txHash,
	}
	return t, nil
}

// Address validates a hex wallet address and returns it lower-cased.
func Address(s string) (string, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return "", invalid(fmt.Sprintf("wallet %q is not a hex address", s))
	}
	return strings.ToLower(common.HexToAddress(s).Hex()), nil
}

// TxHash validates a 0x-prefixed 32-byte transaction hash and returns it
// lower-cased.
func TxHash(s string) (string, error) {
	s = strings.TrimSpace(s)
	b, err := hexutil.Decode(s)
	if err != nil || len(b) != common.HashLength {
		return "", invalid(fmt.Sprintf("tx hash %q", s))
	}
	return common.BytesToHash(b).Hex(), nil
}

// Timestamp interprets v as Unix seconds or, when large enough, Unix
// milliseconds.
func Timestamp(v int64) (time.Time, error) {
	switch {
	case v <= 0:
		return time.Time{}, invalid("missing timestamp")
	case v >= millisThreshold:
		return time.UnixMilli(v).UTC(), nil
	default:
		return time.Unix(v, 0).UTC(), nil
	}
}

// tradeID is stable across feeds so the poller and the stream agree on what
// counts as the same fill.
func tradeID(txHash, asset, wallet string, side domain.Side, at time.Time) string {
	if txHash != "" {
		return txHash + ":" + asset + ":" + wallet + ":" + string(side)
	}
	return fmt.Sprintf("%s:%s:%s:%d", asset, wallet, side, at.UnixMilli())
}

func invalid(reason string) error {
	return fmt.Errorf("normalize: %w: %s", domain.ErrInvalidTrade, reason)
}
