package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/alanyoungcy/insiderwatch/internal/blob/s3"
	"github.com/alanyoungcy/insiderwatch/internal/cache/redis"
	"github.com/alanyoungcy/insiderwatch/internal/config"
	"github.com/alanyoungcy/insiderwatch/internal/domain"
	"github.com/alanyoungcy/insiderwatch/internal/store/postgres"
)

// Dependencies bundles the external backends the modes use. Every field is
// nil when its backend is disabled.
type Dependencies struct {
	// Stores
	AlertStore    domain.AlertStore
	WalletStore   domain.WalletStore
	DispatchStore domain.DispatchStore
	AuditStore    domain.AuditStore

	// Redis
	RateLimiter domain.RateLimiter
	LockManager domain.LockManager
	SignalBus   domain.SignalBus

	// Blob storage
	Archiver *s3blob.AlertArchiver
}

// Wire constructs the enabled backends from cfg and returns them together
// with a cleanup function that releases them in reverse order.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default().With(slog.String("component", "wire"))

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL ---
	if cfg.Persistence.Enabled {
		pgClient, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		pool := pgClient.Pool()
		deps.AlertStore = postgres.NewAlertStore(pool)
		deps.WalletStore = postgres.NewWalletStore(pool)
		deps.DispatchStore = postgres.NewDispatchStore(pool)
		deps.AuditStore = postgres.NewAuditStore(pool)
		logger.InfoContext(ctx, "postgres connected")
	}

	// --- Redis ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, cfg.Redis)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.RateLimiter = redis.NewRateLimiter(redisClient, nil)
		deps.LockManager = redis.NewLockManager(redisClient)
		deps.SignalBus = redis.NewSignalBus(redisClient)
		logger.InfoContext(ctx, "redis connected", slog.String("addr", cfg.Redis.Addr))
	}

	// --- S3 alert archive ---
	if cfg.Persistence.ArchiveEnabled {
		s3Client, err := s3blob.New(ctx, cfg.S3)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		deps.Archiver = s3blob.NewAlertArchiver(
			s3blob.NewWriter(s3Client),
			deps.AuditStore,
			cfg.Persistence.ArchivePrefix,
			nil,
		)
		logger.InfoContext(ctx, "s3 archive enabled", slog.String("bucket", cfg.S3.Bucket))
	}

	return deps, cleanup, nil
}
