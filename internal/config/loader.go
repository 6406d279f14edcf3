package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies INSIDERWATCH_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known INSIDERWATCH_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Feed ──
	setStr(&cfg.Feed.Source, "INSIDERWATCH_FEED_SOURCE")
	setStr(&cfg.Feed.WsURL, "INSIDERWATCH_FEED_WS_URL")
	setStr(&cfg.Feed.DataAPIURL, "INSIDERWATCH_FEED_DATA_API_URL")
	setDuration(&cfg.Feed.PollInterval, "INSIDERWATCH_FEED_POLL_INTERVAL")
	setInt(&cfg.Feed.PollLimit, "INSIDERWATCH_FEED_POLL_LIMIT")
	setStringSlice(&cfg.Feed.Markets, "INSIDERWATCH_FEED_MARKETS")
	setStr(&cfg.Feed.BusChannel, "INSIDERWATCH_FEED_BUS_CHANNEL")
	setStr(&cfg.Feed.BusStream, "INSIDERWATCH_FEED_BUS_STREAM")

	// ── Detection ──
	setDuration(&cfg.Detection.AnalysisInterval, "INSIDERWATCH_DETECTION_ANALYSIS_INTERVAL")
	setDuration(&cfg.Detection.AnalysisWindow, "INSIDERWATCH_DETECTION_ANALYSIS_WINDOW")
	setInt(&cfg.Detection.QueueCapacity, "INSIDERWATCH_DETECTION_QUEUE_CAPACITY")
	setFloat64(&cfg.Detection.Whale.WhaleThresholdUSD, "INSIDERWATCH_DETECTION_WHALE_THRESHOLD_USD")
	setInt(&cfg.Detection.Coordination.CoordinationTimeWindow, "INSIDERWATCH_DETECTION_COORDINATION_TIME_WINDOW")
	setFloat64(&cfg.Detection.FreshWallet.MinBetSizeUSD, "INSIDERWATCH_DETECTION_FRESH_WALLET_MIN_BET_SIZE_USD")
	setInt(&cfg.Detection.FreshWallet.MaxPreviousTrades, "INSIDERWATCH_DETECTION_FRESH_WALLET_MAX_PREVIOUS_TRADES")

	// ── Dispatch ──
	setInt(&cfg.Dispatch.MaxAlertsPerHour, "INSIDERWATCH_DISPATCH_MAX_ALERTS_PER_HOUR")
	setStr(&cfg.Dispatch.RateLimitScope, "INSIDERWATCH_DISPATCH_RATE_LIMIT_SCOPE")
	setStr(&cfg.Dispatch.RateLimitBackend, "INSIDERWATCH_DISPATCH_RATE_LIMIT_BACKEND")
	setDuration(&cfg.Dispatch.DuplicateWindow, "INSIDERWATCH_DISPATCH_DUPLICATE_WINDOW")

	// ── Persistence ──
	setBool(&cfg.Persistence.Enabled, "INSIDERWATCH_PERSISTENCE_ENABLED")
	setBool(&cfg.Persistence.ArchiveEnabled, "INSIDERWATCH_PERSISTENCE_ARCHIVE_ENABLED")
	setDuration(&cfg.Persistence.ArchiveInterval, "INSIDERWATCH_PERSISTENCE_ARCHIVE_INTERVAL")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "INSIDERWATCH_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.Host, "INSIDERWATCH_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "INSIDERWATCH_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "INSIDERWATCH_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "INSIDERWATCH_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "INSIDERWATCH_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "INSIDERWATCH_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "INSIDERWATCH_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "INSIDERWATCH_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "INSIDERWATCH_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "INSIDERWATCH_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "INSIDERWATCH_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "INSIDERWATCH_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "INSIDERWATCH_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "INSIDERWATCH_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "INSIDERWATCH_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "INSIDERWATCH_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "INSIDERWATCH_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "INSIDERWATCH_S3_REGION")
	setStr(&cfg.S3.Bucket, "INSIDERWATCH_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "INSIDERWATCH_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "INSIDERWATCH_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "INSIDERWATCH_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "INSIDERWATCH_S3_FORCE_PATH_STYLE")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "INSIDERWATCH_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "INSIDERWATCH_SERVER_PORT")
	setStr(&cfg.Server.APIKey, "INSIDERWATCH_SERVER_API_KEY")
	setStringSlice(&cfg.Server.CORSOrigins, "INSIDERWATCH_SERVER_CORS_ORIGINS")
	setInt(&cfg.Server.RateLimitPerMinute, "INSIDERWATCH_SERVER_RATE_LIMIT_PER_MINUTE")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "INSIDERWATCH_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "INSIDERWATCH_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.TelegramMinSeverity, "INSIDERWATCH_NOTIFY_TELEGRAM_MIN_SEVERITY")
	setStr(&cfg.Notify.DiscordWebhookURL, "INSIDERWATCH_NOTIFY_DISCORD_WEBHOOK_URL")
	setStr(&cfg.Notify.DiscordMinSeverity, "INSIDERWATCH_NOTIFY_DISCORD_MIN_SEVERITY")
	setBool(&cfg.Notify.ConsoleEnabled, "INSIDERWATCH_NOTIFY_CONSOLE_ENABLED")
	setStr(&cfg.Notify.ConsoleMinSeverity, "INSIDERWATCH_NOTIFY_CONSOLE_MIN_SEVERITY")

	// ── Top-level ──
	setStr(&cfg.Mode, "INSIDERWATCH_MODE")
	setStr(&cfg.LogLevel, "INSIDERWATCH_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
