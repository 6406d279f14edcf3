package domain

import "time"

// WalletStats is a point-in-time copy of a wallet ledger entry.
type WalletStats struct {
	Address          string    `json:"address"`
	TotalVolumeUSD   float64   `json:"total_volume_usd"`
	TradeCount       int       `json:"trade_count"`
	BuyVolumeUSD     float64   `json:"buy_volume_usd"`
	SellVolumeUSD    float64   `json:"sell_volume_usd"`
	DistinctMarkets  int       `json:"distinct_markets"`
	ActiveDays       int       `json:"active_days"`
	FirstSeenAt      time.Time `json:"first_seen_at"`
	LastSeenAt       time.Time `json:"last_seen_at"`
	IsMarketMaker    bool      `json:"is_market_maker"`
	MarketMakerScore float64   `json:"market_maker_score"`
}
