package domain

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTradeValidate(t *testing.T) {
	good := Trade{
		MarketID:  "0xabc",
		Wallet:    "0x1111111111111111111111111111111111111111",
		Side:      SideBuy,
		Price:     0.42,
		Size:      100,
		USDValue:  42,
		Timestamp: time.Unix(1_700_000_000, 0),
	}
	assert.NoError(t, good.Validate())

	for name, mutate := range map[string]func(*Trade){
		"market":    func(t *Trade) { t.MarketID = "" },
		"wallet":    func(t *Trade) { t.Wallet = "" },
		"side":      func(t *Trade) { t.Side = "HOLD" },
		"price":     func(t *Trade) { t.Price = 1.2 },
		"nan price": func(t *Trade) { t.Price = math.NaN() },
		"size":      func(t *Trade) { t.Size = 0 },
		"usd":       func(t *Trade) { t.USDValue = -1 },
		"timestamp": func(t *Trade) { t.Timestamp = time.Time{} },
	} {
		bad := good
		mutate(&bad)
		assert.ErrorIs(t, bad.Validate(), ErrInvalidTrade, name)
	}
}

func TestSeverityText(t *testing.T) {
	var s Severity
	assert.NoError(t, s.UnmarshalText([]byte("high")))
	assert.Equal(t, SeverityHigh, s)
	b, err := SeverityCritical.MarshalText()
	assert.NoError(t, err)
	assert.Equal(t, "CRITICAL", string(b))
	_, err = ParseSeverity("urgent")
	assert.Error(t, err)
	assert.True(t, SeverityLow < SeverityMedium && SeverityHigh < SeverityCritical)
}

func TestDetectorRankAndAlertType(t *testing.T) {
	assert.Equal(t, 0, DetectorVolume.Rank())
	assert.Equal(t, 4, DetectorFreshWallet.Rank())
	assert.Equal(t, len(DetectorOrder), DetectorName("other").Rank())
	assert.Equal(t, AlertCoordinatedTrading, DetectorCoordination.AlertType())
	assert.Equal(t, DirectionDown, SideSell.Direction())
}
