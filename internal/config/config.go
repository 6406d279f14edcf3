// Package config defines the top-level configuration for insiderwatch and
// provides validation helpers.
package config

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/alanyoungcy/insiderwatch/internal/domain"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by INSIDERWATCH_* environment variables.
type Config struct {
	Feed        FeedConfig        `toml:"feed"`
	Detection   DetectionConfig   `toml:"detection"`
	Classifier  ClassifierConfig  `toml:"classifier"`
	Confidence  ConfidenceConfig  `toml:"confidence"`
	Dispatch    DispatchConfig    `toml:"dispatch"`
	Persistence PersistenceConfig `toml:"persistence"`
	Postgres    PostgresConfig    `toml:"postgres"`
	Redis       RedisConfig       `toml:"redis"`
	S3          S3Config          `toml:"s3"`
	Server      ServerConfig      `toml:"server"`
	Notify      NotifyConfig      `toml:"notify"`
	Mode        string            `toml:"mode"`
	LogLevel    string            `toml:"log_level"`
}

// FeedConfig selects and tunes the upstream trade source.
type FeedConfig struct {
	// Source is one of "ws", "poll", "bus" or "none".
	Source       string   `toml:"source"`
	WsURL        string   `toml:"ws_url"`
	DataAPIURL   string   `toml:"data_api_url"`
	PollInterval duration `toml:"poll_interval"`
	PollLimit    int      `toml:"poll_limit"`
	// Markets restricts ingestion to these condition IDs. Empty means all.
	Markets    []string `toml:"markets"`
	BusChannel string   `toml:"bus_channel"`
	BusStream  string   `toml:"bus_stream"`
	SeenTTL    duration `toml:"seen_ttl"`
}

// DetectionConfig holds market state sizing and per-detector thresholds.
type DetectionConfig struct {
	AnalysisInterval       duration `toml:"analysis_interval"`
	AnalysisWindow         duration `toml:"analysis_window"`
	HistoryCapacity        int      `toml:"history_capacity"`
	PriceHistoryCapacity   int      `toml:"price_history_capacity"`
	QueueCapacity          int      `toml:"queue_capacity"`
	BaselineWindow         duration `toml:"baseline_window"`
	BaselineHorizon        duration `toml:"baseline_horizon"`
	MinimumBaselineWindows int      `toml:"minimum_baseline_windows"`

	Volume       VolumeConfig       `toml:"volume"`
	Whale        WhaleConfig        `toml:"whale"`
	Price        PriceConfig        `toml:"price"`
	Coordination CoordinationConfig `toml:"coordination"`
	FreshWallet  FreshWalletConfig  `toml:"fresh_wallet"`
}

// VolumeConfig tunes the volume spike detector.
type VolumeConfig struct {
	ZScoreThreshold       float64 `toml:"z_score_threshold"`
	VolumeSpikeMultiplier float64 `toml:"volume_spike_multiplier"`
}

// WhaleConfig tunes the whale detector.
type WhaleConfig struct {
	WhaleThresholdUSD        float64 `toml:"whale_threshold_usd"`
	MinWhalesForCoordination int     `toml:"min_whales_for_coordination"`
	CoordinationThreshold    float64 `toml:"coordination_threshold"`
	DominanceShare           float64 `toml:"dominance_share"`
}

// PriceConfig tunes the price movement detector.
type PriceConfig struct {
	RapidMovementPct          float64 `toml:"rapid_movement_pct"`
	VolatilitySpikeMultiplier float64 `toml:"volatility_spike_multiplier"`
	MinPriceSamples           int     `toml:"min_price_samples"`
	MomentumThreshold         float64 `toml:"momentum_threshold"`
	MinPriceChanges           int     `toml:"min_price_changes"`
	MinTrendPct               float64 `toml:"min_trend_pct"`
	VWAPLookback              int     `toml:"vwap_lookback"`
	VWAPDominance             float64 `toml:"vwap_dominance"`
}

// CoordinationConfig tunes the coordination and wash-trading detector.
type CoordinationConfig struct {
	MinCoordinatedWallets    int     `toml:"min_coordinated_wallets"`
	CoordinationTimeWindow   int     `toml:"coordination_time_window"` // seconds
	DirectionalBiasThreshold float64 `toml:"directional_bias_threshold"`
	BurstIntensityThreshold  float64 `toml:"burst_intensity_threshold"`
	// BurstBaselineWindow and BurstBaselineHorizon size the trade-rate
	// baseline burst intensity is measured against. It is kept separate from
	// the volume baseline.
	BurstBaselineWindow  duration `toml:"burst_baseline_window"`
	BurstBaselineHorizon duration `toml:"burst_baseline_horizon"`
	WashMinTrades        int      `toml:"wash_min_trades"`
	WashScoreThreshold   float64  `toml:"wash_score_threshold"`
}

// SubWindow returns the coordination sub-window length.
func (c CoordinationConfig) SubWindow() time.Duration {
	return time.Duration(c.CoordinationTimeWindow) * time.Second
}

// FreshWalletConfig tunes the fresh-wallet detector.
type FreshWalletConfig struct {
	MinBetSizeUSD     float64 `toml:"min_bet_size_usd"`
	MaxPreviousTrades int     `toml:"max_previous_trades"`
}

// ClassifierConfig holds market-maker score weights and references.
type ClassifierConfig struct {
	FrequencyWeight     float64 `toml:"frequency_weight"`
	BalanceWeight       float64 `toml:"balance_weight"`
	DiversityWeight     float64 `toml:"diversity_weight"`
	ConsistencyWeight   float64 `toml:"consistency_weight"`
	HighFrequencyTrades int     `toml:"high_frequency_trades"`
	MarketCeiling       int     `toml:"market_ceiling"`
	ActiveDaysCeiling   int     `toml:"active_days_ceiling"`
	Threshold           float64 `toml:"threshold"`
	RecomputeEvery      int     `toml:"recompute_every"`
}

// ConfidenceConfig holds alert bars, severity bands and corroboration bonuses.
type ConfidenceConfig struct {
	SingleSignalBar    float64 `toml:"single_signal_bar"`
	MultiSignalBar     float64 `toml:"multi_signal_bar"`
	HighBar            float64 `toml:"high_bar"`
	CriticalBar        float64 `toml:"critical_bar"`
	BaselineBonus      float64 `toml:"baseline_bonus"`
	CoordinationBonus  float64 `toml:"coordination_bonus"`
	DirectionalBonus   float64 `toml:"directional_bonus"`
	MultiDetectorBonus float64 `toml:"multi_detector_bonus"`
	WashTradingBonus   float64 `toml:"wash_trading_bonus"`
}

// DispatchConfig holds rate limiting and delivery parameters.
type DispatchConfig struct {
	MaxAlertsPerHour int `toml:"max_alerts_per_hour"`
	// RateLimitScope is "shared" (one bucket for all channels) or "per_channel".
	RateLimitScope string `toml:"rate_limit_scope"`
	// RateLimitBackend is "local" (in-process token bucket) or "redis".
	RateLimitBackend string   `toml:"rate_limit_backend"`
	DuplicateWindow  duration `toml:"duplicate_window"`
	QueueCapacity    int      `toml:"queue_capacity"`
	MaxInFlight      int      `toml:"max_in_flight"`
	SendTimeout      duration `toml:"send_timeout"`
	DrainTimeout     duration `toml:"drain_timeout"`
}

// PersistenceConfig controls the alert and wallet sinks.
type PersistenceConfig struct {
	Enabled             bool     `toml:"enabled"`
	WalletFlushInterval duration `toml:"wallet_flush_interval"`
	WalletRetention     duration `toml:"wallet_retention"`
	AlertChannel        string   `toml:"alert_channel"`
	AlertStream         string   `toml:"alert_stream"`
	ArchiveEnabled      bool     `toml:"archive_enabled"`
	ArchiveInterval     duration `toml:"archive_interval"`
	ArchivePrefix       string   `toml:"archive_prefix"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	APIKey      string   `toml:"api_key"`
	CORSOrigins []string `toml:"cors_origins"`
	// RateLimitPerMinute caps API requests per client IP. It needs Redis;
	// zero disables it.
	RateLimitPerMinute int `toml:"rate_limit_per_minute"`
}

// NotifyConfig holds notification channel credentials and severity floors.
type NotifyConfig struct {
	TelegramToken       string `toml:"telegram_token"`
	TelegramChatID      string `toml:"telegram_chat_id"`
	TelegramMinSeverity string `toml:"telegram_min_severity"`
	DiscordWebhookURL   string `toml:"discord_webhook_url"`
	DiscordMinSeverity  string `toml:"discord_min_severity"`
	ConsoleEnabled      bool   `toml:"console_enabled"`
	ConsoleMinSeverity  string `toml:"console_min_severity"`
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Feed: FeedConfig{
			Source:       "ws",
			WsURL:        "wss://ws-live-data.polymarket.com",
			DataAPIURL:   "https://data-api.polymarket.com",
			PollInterval: duration{15 * time.Second},
			PollLimit:    500,
			BusChannel:   "trades",
			SeenTTL:      duration{30 * time.Minute},
		},
		Detection: DetectionConfig{
			AnalysisInterval:       duration{60 * time.Second},
			AnalysisWindow:         duration{time.Hour},
			HistoryCapacity:        1000,
			PriceHistoryCapacity:   1000,
			QueueCapacity:          512,
			BaselineWindow:         duration{time.Hour},
			BaselineHorizon:        duration{7 * 24 * time.Hour},
			MinimumBaselineWindows: 6,
			Volume: VolumeConfig{
				ZScoreThreshold:       3.0,
				VolumeSpikeMultiplier: 3.0,
			},
			Whale: WhaleConfig{
				WhaleThresholdUSD:        10000,
				MinWhalesForCoordination: 3,
				CoordinationThreshold:    0.7,
				DominanceShare:           0.3,
			},
			Price: PriceConfig{
				RapidMovementPct:          15,
				VolatilitySpikeMultiplier: 3.0,
				MinPriceSamples:           10,
				MomentumThreshold:         0.8,
				MinPriceChanges:           5,
				MinTrendPct:               1.0,
				VWAPLookback:              20,
				VWAPDominance:             0.75,
			},
			Coordination: CoordinationConfig{
				MinCoordinatedWallets:    5,
				CoordinationTimeWindow:   30,
				DirectionalBiasThreshold: 0.8,
				BurstIntensityThreshold:  3.0,
				BurstBaselineWindow:      duration{5 * time.Minute},
				BurstBaselineHorizon:     duration{24 * time.Hour},
				WashMinTrades:            4,
				WashScoreThreshold:       0.7,
			},
			FreshWallet: FreshWalletConfig{
				MinBetSizeUSD:     5000,
				MaxPreviousTrades: 2,
			},
		},
		Classifier: ClassifierConfig{
			FrequencyWeight:     30,
			BalanceWeight:       40,
			DiversityWeight:     20,
			ConsistencyWeight:   10,
			HighFrequencyTrades: 100,
			MarketCeiling:       10,
			ActiveDaysCeiling:   7,
			Threshold:           70,
			RecomputeEvery:      25,
		},
		Confidence: ConfidenceConfig{
			SingleSignalBar:    10.0,
			MultiSignalBar:     8.0,
			HighBar:            12.0,
			CriticalBar:        16.0,
			BaselineBonus:      1.0,
			CoordinationBonus:  2.0,
			DirectionalBonus:   1.0,
			MultiDetectorBonus: 2.0,
			WashTradingBonus:   2.0,
		},
		Dispatch: DispatchConfig{
			MaxAlertsPerHour: 10,
			RateLimitScope:   "shared",
			RateLimitBackend: "local",
			DuplicateWindow:  duration{10 * time.Minute},
			QueueCapacity:    256,
			MaxInFlight:      8,
			SendTimeout:      duration{10 * time.Second},
			DrainTimeout:     duration{15 * time.Second},
		},
		Persistence: PersistenceConfig{
			Enabled:             false,
			WalletFlushInterval: duration{time.Minute},
			WalletRetention:     duration{30 * 24 * time.Hour},
			AlertChannel:        "alerts",
			AlertStream:         "alerts:stream",
			ArchiveEnabled:      false,
			ArchiveInterval:     duration{time.Hour},
			ArchivePrefix:       "alerts",
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "postgres",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Enabled:    false,
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "insiderwatch",
			ForcePathStyle: true,
		},
		Server: ServerConfig{
			Enabled:            true,
			Port:               8000,
			CORSOrigins:        []string{"http://localhost:3000"},
			RateLimitPerMinute: 120,
		},
		Notify: NotifyConfig{
			TelegramMinSeverity: "MEDIUM",
			DiscordMinSeverity:  "MEDIUM",
			ConsoleEnabled:      true,
			ConsoleMinSeverity:  "MEDIUM",
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"full":   true,
	"detect": true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validSources = map[string]bool{
	"ws":   true,
	"poll": true,
	"bus":  true,
	"none": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: full, detect)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Feed
	if !validSources[c.Feed.Source] {
		errs = append(errs, fmt.Sprintf("feed: unknown source %q (valid: ws, poll, bus, none)", c.Feed.Source))
	}
	switch c.Feed.Source {
	case "ws":
		if c.Feed.WsURL == "" {
			errs = append(errs, "feed: ws_url must not be empty for source ws")
		}
	case "poll":
		if c.Feed.DataAPIURL == "" {
			errs = append(errs, "feed: data_api_url must not be empty for source poll")
		}
		if c.Feed.PollInterval.Duration <= 0 {
			errs = append(errs, "feed: poll_interval must be > 0")
		}
	case "bus":
		if !c.Redis.Enabled {
			errs = append(errs, "feed: source bus requires redis.enabled")
		}
		if c.Feed.BusChannel == "" && c.Feed.BusStream == "" {
			errs = append(errs, "feed: bus_channel or bus_stream must be set for source bus")
		}
	}

	errs = append(errs, c.Detection.validate()...)
	errs = append(errs, c.Classifier.validate()...)
	errs = append(errs, c.Confidence.validate()...)
	errs = append(errs, c.Dispatch.validate(c.Redis.Enabled)...)
	errs = append(errs, c.Notify.validate()...)

	// Postgres
	if c.Persistence.Enabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 || c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must be between 0 and pool_max_conns")
		}
		if c.Persistence.WalletFlushInterval.Duration <= 0 {
			errs = append(errs, "persistence: wallet_flush_interval must be > 0")
		}
	}
	if c.Persistence.ArchiveEnabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when archiving")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when archiving")
		}
		if c.Persistence.ArchiveInterval.Duration <= 0 {
			errs = append(errs, "persistence: archive_interval must be > 0")
		}
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.RateLimitPerMinute < 0 {
			errs = append(errs, "server: rate_limit_per_minute must be >= 0")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func (d *DetectionConfig) validate() []string {
	var errs []string
	if d.AnalysisInterval.Duration <= 0 {
		errs = append(errs, "detection: analysis_interval must be > 0")
	}
	if d.AnalysisWindow.Duration <= 0 {
		errs = append(errs, "detection: analysis_window must be > 0")
	}
	if d.HistoryCapacity < 1 {
		errs = append(errs, "detection: history_capacity must be >= 1")
	}
	if d.PriceHistoryCapacity < 2 {
		errs = append(errs, "detection: price_history_capacity must be >= 2")
	}
	if d.QueueCapacity < 1 {
		errs = append(errs, "detection: queue_capacity must be >= 1")
	}
	if d.BaselineWindow.Duration <= 0 {
		errs = append(errs, "detection: baseline_window must be > 0")
	}
	if d.BaselineHorizon.Duration < d.BaselineWindow.Duration {
		errs = append(errs, "detection: baseline_horizon must be >= baseline_window")
	}
	if d.MinimumBaselineWindows < 2 {
		errs = append(errs, "detection: minimum_baseline_windows must be >= 2")
	}

	if d.Volume.ZScoreThreshold <= 0 {
		errs = append(errs, "detection.volume: z_score_threshold must be > 0")
	}
	if d.Volume.VolumeSpikeMultiplier <= 1 {
		errs = append(errs, "detection.volume: volume_spike_multiplier must be > 1")
	}

	if d.Whale.WhaleThresholdUSD <= 0 {
		errs = append(errs, "detection.whale: whale_threshold_usd must be > 0")
	}
	if d.Whale.MinWhalesForCoordination < 2 {
		errs = append(errs, "detection.whale: min_whales_for_coordination must be >= 2")
	}
	if !inUnit(d.Whale.CoordinationThreshold) {
		errs = append(errs, "detection.whale: coordination_threshold must be in (0, 1]")
	}
	if !inUnit(d.Whale.DominanceShare) {
		errs = append(errs, "detection.whale: dominance_share must be in (0, 1]")
	}

	if d.Price.RapidMovementPct <= 0 {
		errs = append(errs, "detection.price: rapid_movement_pct must be > 0")
	}
	if d.Price.VolatilitySpikeMultiplier <= 1 {
		errs = append(errs, "detection.price: volatility_spike_multiplier must be > 1")
	}
	if d.Price.MinPriceSamples < 2 {
		errs = append(errs, "detection.price: min_price_samples must be >= 2")
	}
	if !inUnit(d.Price.MomentumThreshold) {
		errs = append(errs, "detection.price: momentum_threshold must be in (0, 1]")
	}
	if d.Price.MinPriceChanges < 1 {
		errs = append(errs, "detection.price: min_price_changes must be >= 1")
	}
	if d.Price.VWAPLookback < 2 {
		errs = append(errs, "detection.price: vwap_lookback must be >= 2")
	}
	if !inUnit(d.Price.VWAPDominance) {
		errs = append(errs, "detection.price: vwap_dominance must be in (0, 1]")
	}

	co := d.Coordination
	if co.MinCoordinatedWallets < 2 {
		errs = append(errs, "detection.coordination: min_coordinated_wallets must be >= 2")
	}
	if co.CoordinationTimeWindow < 1 {
		errs = append(errs, "detection.coordination: coordination_time_window must be >= 1 second")
	}
	if !inUnit(co.DirectionalBiasThreshold) {
		errs = append(errs, "detection.coordination: directional_bias_threshold must be in (0, 1]")
	}
	if co.BurstIntensityThreshold <= 0 {
		errs = append(errs, "detection.coordination: burst_intensity_threshold must be > 0")
	}
	if co.BurstBaselineWindow.Duration <= 0 || co.BurstBaselineHorizon.Duration < co.BurstBaselineWindow.Duration {
		errs = append(errs, "detection.coordination: burst_baseline_window must be > 0 and <= burst_baseline_horizon")
	}
	if co.WashMinTrades < 2 {
		errs = append(errs, "detection.coordination: wash_min_trades must be >= 2")
	}
	if !inUnit(co.WashScoreThreshold) {
		errs = append(errs, "detection.coordination: wash_score_threshold must be in (0, 1]")
	}

	if d.FreshWallet.MinBetSizeUSD <= 0 {
		errs = append(errs, "detection.fresh_wallet: min_bet_size_usd must be > 0")
	}
	if d.FreshWallet.MaxPreviousTrades < 0 {
		errs = append(errs, "detection.fresh_wallet: max_previous_trades must be >= 0")
	}
	return errs
}

func (c *ClassifierConfig) validate() []string {
	var errs []string
	weights := []float64{c.FrequencyWeight, c.BalanceWeight, c.DiversityWeight, c.ConsistencyWeight}
	var sum float64
	for _, w := range weights {
		if w < 0 {
			errs = append(errs, "classifier: weights must be >= 0")
			break
		}
		sum += w
	}
	if math.Abs(sum-100) > 1e-9 {
		errs = append(errs, fmt.Sprintf("classifier: weights must sum to 100, got %g", sum))
	}
	if c.HighFrequencyTrades < 1 || c.MarketCeiling < 1 || c.ActiveDaysCeiling < 1 {
		errs = append(errs, "classifier: high_frequency_trades, market_ceiling and active_days_ceiling must be >= 1")
	}
	if c.Threshold <= 0 || c.Threshold > 100 {
		errs = append(errs, "classifier: threshold must be in (0, 100]")
	}
	if c.RecomputeEvery < 1 {
		errs = append(errs, "classifier: recompute_every must be >= 1")
	}
	return errs
}

func (c *ConfidenceConfig) validate() []string {
	var errs []string
	if c.MultiSignalBar <= 0 {
		errs = append(errs, "confidence: multi_signal_bar must be > 0")
	}
	if c.SingleSignalBar <= c.MultiSignalBar {
		errs = append(errs, "confidence: single_signal_bar must be greater than multi_signal_bar")
	}
	if c.HighBar < c.MultiSignalBar || c.CriticalBar < c.HighBar {
		errs = append(errs, "confidence: bars must satisfy multi_signal_bar <= high_bar <= critical_bar")
	}
	for _, b := range []float64{c.BaselineBonus, c.CoordinationBonus, c.DirectionalBonus, c.MultiDetectorBonus, c.WashTradingBonus} {
		if b < 0 {
			errs = append(errs, "confidence: bonuses must be >= 0")
			break
		}
	}
	return errs
}

func (d *DispatchConfig) validate(redisEnabled bool) []string {
	var errs []string
	if d.MaxAlertsPerHour < 1 {
		errs = append(errs, "dispatch: max_alerts_per_hour must be >= 1")
	}
	if d.RateLimitScope != "shared" && d.RateLimitScope != "per_channel" {
		errs = append(errs, fmt.Sprintf("dispatch: unknown rate_limit_scope %q (valid: shared, per_channel)", d.RateLimitScope))
	}
	switch d.RateLimitBackend {
	case "local":
	case "redis":
		if !redisEnabled {
			errs = append(errs, "dispatch: rate_limit_backend redis requires redis.enabled")
		}
	default:
		errs = append(errs, fmt.Sprintf("dispatch: unknown rate_limit_backend %q (valid: local, redis)", d.RateLimitBackend))
	}
	if d.DuplicateWindow.Duration < 0 {
		errs = append(errs, "dispatch: duplicate_window must be >= 0")
	}
	if d.QueueCapacity < 1 || d.MaxInFlight < 1 {
		errs = append(errs, "dispatch: queue_capacity and max_in_flight must be >= 1")
	}
	if d.SendTimeout.Duration <= 0 || d.DrainTimeout.Duration <= 0 {
		errs = append(errs, "dispatch: send_timeout and drain_timeout must be > 0")
	}
	return errs
}

func (n *NotifyConfig) validate() []string {
	var errs []string
	for name, v := range map[string]string{
		"telegram_min_severity": n.TelegramMinSeverity,
		"discord_min_severity":  n.DiscordMinSeverity,
		"console_min_severity":  n.ConsoleMinSeverity,
	} {
		if _, err := domain.ParseSeverity(v); err != nil {
			errs = append(errs, fmt.Sprintf("notify: %s: %v", name, err))
		}
	}
	if (n.TelegramToken == "") != (n.TelegramChatID == "") {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}
	return errs
}

func inUnit(v float64) bool {
	return v > 0 && v <= 1
}
