// internal/app/runner.go
package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rovshanmuradov/leaderboard-crawler/internal/admin"
	"github.com/rovshanmuradov/leaderboard-crawler/internal/config"
	"github.com/rovshanmuradov/leaderboard-crawler/internal/control"
	"github.com/rovshanmuradov/leaderboard-crawler/internal/crawl"
	"github.com/rovshanmuradov/leaderboard-crawler/internal/leaderboard"
	"github.com/rovshanmuradov/leaderboard-crawler/internal/logger"
	"github.com/rovshanmuradov/leaderboard-crawler/internal/metrics"
	"github.com/rovshanmuradov/leaderboard-crawler/internal/rpc"
	"github.com/rovshanmuradov/leaderboard-crawler/internal/storage"
	"github.com/rovshanmuradov/leaderboard-crawler/internal/storage/mongostore"
	"github.com/rovshanmuradov/leaderboard-crawler/internal/storage/sqlstore"
)

// Runner wires storage, the upstream client, the crawl orchestrator and the
// control-plane transports into one process.
type Runner struct {
	cfg      *config.Config
	logger   *zap.Logger
	logs     *logger.LogBuffer
	metrics  *metrics.Collector
	shutdown *ShutdownHandler
}

// NewRunner wires a runner from cfg. logs may be nil.
func NewRunner(cfg *config.Config, log *zap.Logger, logs *logger.LogBuffer) *Runner {
	return &Runner{
		cfg:      cfg,
		logger:   log,
		logs:     logs,
		metrics:  metrics.NewCollector(),
		shutdown: NewShutdownHandler(log, 0),
	}
}

// Metrics returns the process collector.
func (r *Runner) Metrics() *metrics.Collector {
	return r.metrics
}

// Run blocks until ctx is cancelled or a component fails, then closes
// everything it opened.
func (r *Runner) Run(ctx context.Context) (err error) {
	defer func() {
		if shutdownErr := r.shutdown.Shutdown(context.Background()); shutdownErr != nil {
			err = errors.Join(err, shutdownErr)
		}
	}()

	store, err := OpenStorage(ctx, r.cfg.Storage, r.logger)
	if err != nil {
		return err
	}
	r.shutdown.AddFunc("storage", func() error { return store.Close(context.Background()) })

	orch, err := r.buildOrchestrator(store)
	if err != nil {
		return err
	}
	if err := orch.Restore(ctx); err != nil {
		return fmt.Errorf("restore state: %w", err)
	}

	dispatcher := control.NewDispatcher(orch, r.logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return orch.Run(gctx) })

	if r.cfg.Admin.Addr != "" {
		srv := admin.NewServer(r.cfg.Admin.Addr, dispatcher, r.metrics, r.logs, r.logger)
		g.Go(func() error { return srv.Run(gctx) })
	}
	if r.cfg.AMQP.URL != "" {
		srv := rpc.NewServer(rpc.Options{URL: r.cfg.AMQP.URL, Queue: r.cfg.AMQP.Queue}, dispatcher, r.metrics, r.logger)
		g.Go(func() error { return srv.Run(gctx) })
	}

	r.logger.Info("✅ Crawler running",
		zap.String("storage", r.cfg.Storage.Driver),
		zap.Bool("amqp", r.cfg.AMQP.URL != ""),
		zap.String("admin", r.cfg.Admin.Addr))

	// Любая причина отмены ctx считается штатной остановкой.
	if err := g.Wait(); err != nil && ctx.Err() == nil {
		return err
	}
	r.logger.Info("👋 Crawler stopped")
	return nil
}

func (r *Runner) buildOrchestrator(store storage.Storage) (*crawl.Orchestrator, error) {
	rankAt, err := crawl.ParseClock(r.cfg.RankSchedule)
	if err != nil {
		return nil, fmt.Errorf("rank_schedule: %w", err)
	}
	infoAt, err := crawl.ParseClock(r.cfg.InfoSchedule)
	if err != nil {
		return nil, fmt.Errorf("info_schedule: %w", err)
	}

	client := leaderboard.NewClient(leaderboard.Options{
		BaseURL:   r.cfg.APIBaseURL,
		TradeType: r.cfg.TradeType,
		Timeout:   r.cfg.HTTPTimeout,
	}, r.logger)

	return crawl.New(crawl.Config{
		Source: client,
		Store:  store,
		Intervals: control.Intervals{
			Rank:     r.cfg.RankInterval,
			User:     r.cfg.UserInfoInterval,
			Position: r.cfg.PositionInterval,
		},
		Cooldown:       r.cfg.Cooldown,
		UserLimit:      r.cfg.CrawlUserLimit,
		RankAt:         rankAt,
		InfoAt:         infoAt,
		PollPeriod:     r.cfg.PollPeriod,
		PositionPeriod: r.cfg.PositionPeriod,
		SkipInflight:   r.cfg.SkipInflightRounds,
		Metrics:        r.metrics,
		Logger:         r.logger,
	}), nil
}

// OpenStorage opens the backend selected by cfg.Driver. Relational backends
// are migrated before use.
func OpenStorage(ctx context.Context, cfg config.StorageConfig, log *zap.Logger) (storage.Storage, error) {
	switch cfg.Driver {
	case "mongo":
		store, err := mongostore.Connect(ctx, mongostore.Options{
			URI:             cfg.DSN,
			Database:        cfg.Database,
			SummaryDatabase: cfg.SummaryDatabase,
		}, log)
		if err != nil {
			return nil, err
		}
		return store, nil
	case sqlstore.DriverSQLite, sqlstore.DriverPostgres:
		store, err := sqlstore.Open(cfg.Driver, cfg.DSN, log)
		if err != nil {
			return nil, err
		}
		if err := store.RunMigrations(ctx); err != nil {
			_ = store.Close(context.Background())
			return nil, fmt.Errorf("migrate %s: %w", cfg.Driver, err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
