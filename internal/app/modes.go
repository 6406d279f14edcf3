package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	s3blob "github.com/alanyoungcy/insiderwatch/internal/blob/s3"
	"github.com/alanyoungcy/insiderwatch/internal/classifier"
	"github.com/alanyoungcy/insiderwatch/internal/config"
	"github.com/alanyoungcy/insiderwatch/internal/dispatch"
	"github.com/alanyoungcy/insiderwatch/internal/feed"
	"github.com/alanyoungcy/insiderwatch/internal/ledger"
	"github.com/alanyoungcy/insiderwatch/internal/normalize"
	"github.com/alanyoungcy/insiderwatch/internal/notify"
	"github.com/alanyoungcy/insiderwatch/internal/pipeline"
	"github.com/alanyoungcy/insiderwatch/internal/platform/polymarket"
	"github.com/alanyoungcy/insiderwatch/internal/server"
	"github.com/alanyoungcy/insiderwatch/internal/server/handler"
)

const (
	reloadLockKey = "config-reload"
	reloadLockTTL = 30 * time.Second
)

// components are the long-lived pieces built for one run.
type components struct {
	ledger    *ledger.Ledger
	gate      *dispatch.Gate
	pipeline  *pipeline.Pipeline
	source    feed.Source
	feedStats *feed.Stats
	sink      *pipeline.AlertSink
	flusher   *pipeline.WalletFlusher
}

// FullMode runs the feed, the pipeline, the sinks and the HTTP server.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")
	return a.run(ctx, deps, a.cfg.Server.Enabled)
}

// DetectMode runs the feed, the pipeline and the sinks without the HTTP
// server.
func (a *App) DetectMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting detect mode")
	return a.run(ctx, deps, false)
}

func (a *App) run(ctx context.Context, deps *Dependencies, withServer bool) error {
	c, err := a.build(deps)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return c.pipeline.Run(ctx)
	})

	// The sink stops by itself once the gate has drained and closed Alerts.
	g.Go(func() error {
		return c.sink.Run(ctx, c.pipeline.Alerts())
	})

	if c.source != nil {
		g.Go(func() error {
			return c.source.Run(ctx)
		})
	} else {
		a.logger.InfoContext(ctx, "no trade feed configured; waiting for shutdown")
	}

	if c.flusher != nil {
		g.Go(func() error {
			return c.flusher.Run(ctx)
		})
	}

	if a.configPath != "" {
		a.startReloader(ctx, g, deps, c)
	}

	if withServer {
		a.startHTTPServer(ctx, g, deps, c)
	}

	if err := g.Wait(); err != nil {
		return err
	}
	a.logger.Info("all components stopped",
		slog.Int64("trades", c.pipeline.Stats().TradesIngested),
		slog.Int64("alerts", c.pipeline.Stats().Alerts),
	)
	return nil
}

// build assembles the pipeline and everything that feeds it or drains it.
func (a *App) build(deps *Dependencies) (*components, error) {
	cfg := a.cfg
	c := &components{
		ledger: ledger.New(classifier.ParamsFrom(cfg.Classifier), cfg.Classifier.RecomputeEvery),
	}

	var limiter dispatch.Limiter
	switch cfg.Dispatch.RateLimitBackend {
	case "redis":
		if deps.RateLimiter == nil {
			return nil, fmt.Errorf("app: redis rate limiter requested but redis is disabled")
		}
		limiter = dispatch.NewRemoteLimiter(deps.RateLimiter, "insiderwatch:", cfg.Dispatch.MaxAlertsPerHour, time.Hour)
	default:
		limiter = dispatch.NewTokenBucket(cfg.Dispatch.MaxAlertsPerHour, time.Hour, nil)
	}

	channels := notify.Channels(&cfg.Notify, a.logger)
	if len(channels) == 0 {
		a.logger.Warn("no notification channels configured; alerts are only persisted")
	}

	var recorder dispatch.OutcomeRecorder
	if deps.DispatchStore != nil {
		recorder = deps.DispatchStore
	}
	c.gate = dispatch.New(channels, limiter, recorder, dispatch.PolicyFrom(cfg), dispatch.OptionsFrom(&cfg.Dispatch), a.logger)

	p, err := pipeline.New(cfg, c.ledger, c.gate, a.logger,
		pipeline.WithObserver(pipeline.NewLogObserver(nil, a.logger)),
	)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	c.pipeline = p

	c.source, c.feedStats = a.newSource(deps, p)

	sc := pipeline.SinkConfig{
		Store:   deps.AlertStore,
		Bus:     deps.SignalBus,
		Channel: cfg.Persistence.AlertChannel,
		Stream:  cfg.Persistence.AlertStream,
	}
	if deps.Archiver != nil {
		sc.Archive = deps.Archiver
		sc.ArchiveInterval = cfg.Persistence.ArchiveInterval.Duration
	}
	c.sink = pipeline.NewAlertSink(sc, a.logger)

	if deps.WalletStore != nil {
		c.flusher = pipeline.NewWalletFlusher(c.ledger, deps.WalletStore,
			cfg.Persistence.WalletFlushInterval.Duration,
			cfg.Persistence.WalletRetention.Duration,
			a.logger,
		)
	}
	return c, nil
}

// newSource selects the trade feed. It returns a nil Source for "none".
func (a *App) newSource(deps *Dependencies, sink feed.Sink) (feed.Source, *feed.Stats) {
	cfg := a.cfg.Feed
	norm := normalize.New(cfg.Markets)
	stats := &feed.Stats{}

	switch cfg.Source {
	case "ws":
		return feed.NewWSFeed(cfg.WsURL, norm, sink, stats, a.logger), stats
	case "poll":
		api := polymarket.NewDataAPIClient(cfg.DataAPIURL)
		return feed.NewPoller(api, feed.PollerConfig{
			Markets:  cfg.Markets,
			Limit:    cfg.PollLimit,
			Interval: cfg.PollInterval.Duration,
			SeenTTL:  cfg.SeenTTL.Duration,
		}, norm, sink, stats, a.logger), stats
	case "bus":
		return feed.NewBusFeed(deps.SignalBus, cfg.BusChannel, cfg.BusStream, norm, sink, stats, a.logger), stats
	default:
		return nil, nil
	}
}

// startReloader watches the config file and listens for SIGHUP. Reloads only
// swap the tunable detection, classifier, confidence and dispatch settings;
// backends and the feed keep their startup configuration.
func (a *App) startReloader(ctx context.Context, g *errgroup.Group, deps *Dependencies, c *components) {
	apply := func(next *config.Config) error {
		return a.applyReload(ctx, deps, c, next)
	}
	watcher := config.NewWatcher(a.configPath, apply, a.logger)

	g.Go(func() error {
		return watcher.Run(ctx)
	})

	g.Go(func() error {
		hup := make(chan os.Signal, 1)
		signal.Notify(hup, syscall.SIGHUP)
		defer signal.Stop(hup)
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-hup:
				if err := watcher.Reload(); err != nil {
					a.logger.Error("config reload rejected", slog.String("error", err.Error()))
					continue
				}
				a.logger.Info("config reloaded on SIGHUP")
			}
		}
	})
}

// applyReload swaps next into the pipeline. With Redis, a lock keeps
// concurrent instances from reloading at the same time. Every attempt is
// audited when Postgres is enabled.
func (a *App) applyReload(ctx context.Context, deps *Dependencies, c *components, next *config.Config) error {
	if deps.LockManager != nil {
		unlock, err := deps.LockManager.Acquire(ctx, reloadLockKey, reloadLockTTL)
		if err != nil {
			return fmt.Errorf("app: reload: %w", err)
		}
		defer unlock()
	}

	err := c.pipeline.Configure(next)
	if deps.AuditStore != nil {
		detail := map[string]any{"path": a.configPath, "applied": err == nil}
		if err != nil {
			detail["error"] = err.Error()
		}
		if aerr := deps.AuditStore.Log(context.WithoutCancel(ctx), "config.reload", detail); aerr != nil {
			a.logger.Warn("config reload audit failed", slog.String("error", aerr.Error()))
		}
	}
	if err != nil {
		return err
	}
	if next.Feed.Source != a.cfg.Feed.Source || next.Mode != a.cfg.Mode {
		a.logger.Warn("feed source and mode changes take effect on restart")
	}
	return nil
}

// startHTTPServer adds the API server to the group. It shuts down gracefully
// when ctx is cancelled.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, c *components) {
	feedName := ""
	if c.source != nil {
		feedName = c.source.Name()
	}

	handlers := server.Handlers{
		Health:  handler.NewHealthHandler(a.cfg.Mode),
		Stats:   handler.NewStatsHandler(c.pipeline, c.gate, feedName, c.feedStats),
		Alerts:  handler.NewAlertHandler(deps.AlertStore, a.logger),
		Wallets: handler.NewWalletHandler(c.ledger, deps.WalletStore, a.logger),
		Config:  handler.NewConfigHandler(c.pipeline.Config),
	}
	srv := server.NewServer(server.Config{
		Port:               a.cfg.Server.Port,
		CORSOrigins:        a.cfg.Server.CORSOrigins,
		APIKey:             a.cfg.Server.APIKey,
		Limiter:            deps.RateLimiter,
		RateLimitPerMinute: a.cfg.Server.RateLimitPerMinute,
	}, handlers, a.logger)

	g.Go(func() error {
		if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
}

var (
	_ feed.Sink        = (*pipeline.Pipeline)(nil)
	_ pipeline.Archive = (*s3blob.AlertArchiver)(nil)
)
