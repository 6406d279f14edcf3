package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/alanyoungcy/insiderwatch/internal/domain"
)

// WalletStore implements domain.WalletStore over the wallet_snapshots table.
type WalletStore struct {
	db DB
}

// NewWalletStore creates a WalletStore on db.
func NewWalletStore(db DB) *WalletStore {
	return &WalletStore{db: db}
}

const walletCols = `address, total_volume_usd, trade_count, buy_volume_usd, sell_volume_usd,
	distinct_markets, active_days, first_seen_at, last_seen_at, is_market_maker, market_maker_score`

// UpsertBatch writes every snapshot in one statement by unnesting parallel
// arrays. A later snapshot of the same wallet replaces the stored row.
func (s *WalletStore) UpsertBatch(ctx context.Context, wallets []domain.WalletStats) error {
	if len(wallets) == 0 {
		return nil
	}

	n := len(wallets)
	var (
		addrs   = make([]string, n)
		total   = make([]float64, n)
		count   = make([]int32, n)
		buy     = make([]float64, n)
		sell    = make([]float64, n)
		markets = make([]int32, n)
		days    = make([]int32, n)
		first   = make([]time.Time, n)
		last    = make([]time.Time, n)
		mm      = make([]bool, n)
		mmScore = make([]float64, n)
	)
	for i, w := range wallets {
		addrs[i] = strings.ToLower(w.Address)
		total[i] = w.TotalVolumeUSD
		count[i] = int32(w.TradeCount)
		buy[i] = w.BuyVolumeUSD
		sell[i] = w.SellVolumeUSD
		markets[i] = int32(w.DistinctMarkets)
		days[i] = int32(w.ActiveDays)
		first[i] = w.FirstSeenAt
		last[i] = w.LastSeenAt
		mm[i] = w.IsMarketMaker
		mmScore[i] = w.MarketMakerScore
	}

	const query = `
		INSERT INTO wallet_snapshots (` + walletCols + `)
		SELECT * FROM unnest(
			$1::text[], $2::float8[], $3::int4[], $4::float8[], $5::float8[],
			$6::int4[], $7::int4[], $8::timestamptz[], $9::timestamptz[], $10::bool[], $11::float8[]
		)
		ON CONFLICT (address) DO UPDATE SET
			total_volume_usd   = EXCLUDED.total_volume_usd,
			trade_count        = EXCLUDED.trade_count,
			buy_volume_usd     = EXCLUDED.buy_volume_usd,
			sell_volume_usd    = EXCLUDED.sell_volume_usd,
			distinct_markets   = EXCLUDED.distinct_markets,
			active_days        = EXCLUDED.active_days,
			first_seen_at      = LEAST(wallet_snapshots.first_seen_at, EXCLUDED.first_seen_at),
			last_seen_at       = EXCLUDED.last_seen_at,
			is_market_maker    = EXCLUDED.is_market_maker,
			market_maker_score = EXCLUDED.market_maker_score,
			updated_at         = NOW()`
	if _, err := s.db.Exec(ctx, query,
		addrs, total, count, buy, sell, markets, days, first, last, mm, mmScore,
	); err != nil {
		return fmt.Errorf("postgres: upsert %d wallets: %w", n, err)
	}
	return nil
}

// Get returns the stored snapshot for address or domain.ErrNotFound.
func (s *WalletStore) Get(ctx context.Context, address string) (domain.WalletStats, error) {
	var w domain.WalletStats
	err := s.db.QueryRow(ctx,
		`SELECT `+walletCols+` FROM wallet_snapshots WHERE address = $1`,
		strings.ToLower(address),
	).Scan(&w.Address, &w.TotalVolumeUSD, &w.TradeCount, &w.BuyVolumeUSD, &w.SellVolumeUSD,
		&w.DistinctMarkets, &w.ActiveDays, &w.FirstSeenAt, &w.LastSeenAt, &w.IsMarketMaker, &w.MarketMakerScore)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.WalletStats{}, fmt.Errorf("postgres: get wallet %s: %w", address, domain.ErrNotFound)
	}
	if err != nil {
		return domain.WalletStats{}, fmt.Errorf("postgres: get wallet %s: %w", address, err)
	}
	return w, nil
}

// DeleteInactive removes snapshots last seen before cutoff.
func (s *WalletStore) DeleteInactive(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM wallet_snapshots WHERE last_seen_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete inactive wallets: %w", err)
	}
	return tag.RowsAffected(), nil
}

var _ domain.WalletStore = (*WalletStore)(nil)
