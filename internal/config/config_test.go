package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaultsAreValid(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())
	assert.Less(t, cfg.Confidence.MultiSignalBar, cfg.Confidence.SingleSignalBar)
}

func TestValidateCollectsEveryProblem(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "trade"
	cfg.Classifier.BalanceWeight = 50
	cfg.Confidence.SingleSignalBar = 5
	cfg.Dispatch.RateLimitScope = "global"
	cfg.Notify.DiscordMinSeverity = "loud"

	err := cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, `unknown mode "trade"`)
	assert.Contains(t, msg, "weights must sum to 100")
	assert.Contains(t, msg, "single_signal_bar must be greater than multi_signal_bar")
	assert.Contains(t, msg, `unknown rate_limit_scope "global"`)
	assert.Contains(t, msg, "discord_min_severity")
}

func TestValidateBusSourceNeedsRedis(t *testing.T) {
	cfg := Defaults()
	cfg.Feed.Source = "bus"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires redis.enabled")

	cfg.Redis.Enabled = true
	assert.NoError(t, cfg.Validate())
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := writeFile(t, `
mode = "detect"

[detection]
analysis_interval = "30s"

[detection.whale]
whale_threshold_usd = 5000.0

[dispatch]
max_alerts_per_hour = 3
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "detect", cfg.Mode)
	assert.Equal(t, 30*time.Second, cfg.Detection.AnalysisInterval.Duration)
	assert.Equal(t, 5000.0, cfg.Detection.Whale.WhaleThresholdUSD)
	assert.Equal(t, 3, cfg.Dispatch.MaxAlertsPerHour)
	// Untouched keys keep their defaults.
	assert.Equal(t, 3.0, cfg.Detection.Volume.ZScoreThreshold)
	assert.Equal(t, 1000, cfg.Detection.HistoryCapacity)
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	path := writeFile(t, `mode = "full"`)
	t.Setenv("INSIDERWATCH_MODE", "detect")
	t.Setenv("INSIDERWATCH_DISPATCH_MAX_ALERTS_PER_HOUR", "25")
	t.Setenv("INSIDERWATCH_FEED_MARKETS", "0xabc, 0xdef ,")
	t.Setenv("INSIDERWATCH_DETECTION_ANALYSIS_WINDOW", "15m")
	t.Setenv("INSIDERWATCH_REDIS_POOL_SIZE", "not-a-number")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "detect", cfg.Mode)
	assert.Equal(t, 25, cfg.Dispatch.MaxAlertsPerHour)
	assert.Equal(t, []string{"0xabc", "0xdef"}, cfg.Feed.Markets)
	assert.Equal(t, 15*time.Minute, cfg.Detection.AnalysisWindow.Duration)
	assert.Equal(t, 20, cfg.Redis.PoolSize, "unparseable values are ignored")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Postgres.Password = "hunter2"
	cfg.Notify.TelegramToken = "token"
	cfg.Feed.Markets = []string{"m1"}

	out := RedactedConfig(&cfg)
	assert.Equal(t, "***", out.Postgres.Password)
	assert.Equal(t, "***", out.Notify.TelegramToken)
	assert.Empty(t, out.Notify.DiscordWebhookURL, "empty secrets stay empty")

	out.Feed.Markets[0] = "changed"
	assert.Equal(t, "m1", cfg.Feed.Markets[0])
	assert.Equal(t, "hunter2", cfg.Postgres.Password)
}

func TestWatcherReloadRejectsInvalidFile(t *testing.T) {
	path := writeFile(t, `mode = "full"`)
	var got *Config
	w := NewWatcher(path, func(c *Config) error {
		got = c
		return nil
	}, discardLogger())

	require.NoError(t, w.Reload())
	require.NotNil(t, got)

	require.NoError(t, os.WriteFile(path, []byte(`mode = "bogus"`), 0o600))
	got = nil
	assert.Error(t, w.Reload())
	assert.Nil(t, got)
}
