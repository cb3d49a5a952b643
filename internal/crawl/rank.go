// internal/crawl/rank.go
package crawl

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/leaderboard-crawler/internal/control"
	"github.com/rovshanmuradov/leaderboard-crawler/internal/domain"
	"github.com/rovshanmuradov/leaderboard-crawler/internal/leaderboard"
	"github.com/rovshanmuradov/leaderboard-crawler/internal/metrics"
)

// RankSource is the part of the leaderboard API used by the rank and info sweeps.
type RankSource interface {
	TradeType() string
	RankList(ctx context.Context, q leaderboard.RankQuery) (*leaderboard.RankPage, error)
	Performance(ctx context.Context, uid string) (any, error)
	BaseInfo(ctx context.Context, uid string) (*leaderboard.BaseInfo, error)
}

// RankStore persists what the rank and info sweeps observe.
type RankStore interface {
	InsertTrader(ctx context.Context, trader domain.Trader) error
	SetTraderShared(ctx context.Context, uid string, shared bool, at time.Time) error
	ActiveTraders(ctx context.Context) ([]domain.Trader, error)
	ClearSummaryRanks(ctx context.Context, before time.Time) error
	InsertRankResult(ctx context.Context, result domain.RankResult) error
	SaveInfo(ctx context.Context, record domain.InfoRecord) error
	SharedFlags(ctx context.Context) (map[string]bool, error)
}

// TraderListener receives share-status transitions.
type TraderListener interface {
	OnNewTraders(uids []string)
	OnTraderStoppedSharing(uid string)
}

// RankGrid returns the 24 rank queries of one sweep. isShared=true with
// isTrader=true is left out because upstream answers it with an empty list.
func RankGrid(tradeType string) []leaderboard.RankQuery {
	grid := make([]leaderboard.RankQuery, 0, 24)
	for _, shared := range []bool{true, false} {
		for _, trader := range []bool{true, false} {
			if shared && trader {
				continue
			}
			for _, period := range leaderboard.PeriodTypes {
				for _, stat := range leaderboard.StatisticsTypes {
					grid = append(grid, leaderboard.RankQuery{
						IsShared:       shared,
						IsTrader:       trader,
						PeriodType:     period,
						StatisticsType: stat,
						TradeType:      tradeType,
					})
				}
			}
		}
	}
	return grid
}

// RankConfig configures a RankScheduler.
type RankConfig struct {
	Source     RankSource
	Store      RankStore
	Listener   TraderListener
	Intervals  IntervalSource
	Guard      *Guard
	UserLimit  int
	RankAt     Clock
	InfoAt     Clock
	PollPeriod time.Duration
	Metrics    *metrics.Collector
	Logger     *zap.Logger
}

// RankScheduler discovers traders through the rank sweep and refreshes their
// performance and base info through the info sweep.
type RankScheduler struct {
	source    RankSource
	store     RankStore
	listener  TraderListener
	intervals IntervalSource
	guard     *Guard
	userLimit int
	rankAt    Clock
	infoAt    Clock
	poll      time.Duration
	metrics   *metrics.Collector
	logger    *zap.Logger
	now       func() time.Time

	mu     sync.Mutex
	roster *roster
	shared map[string]bool

	lastRankUpdate  time.Time
	lastRankSpan    time.Duration
	lastRankCount   int
	lastUsersUpdate time.Time
	lastUsersSpan   time.Duration
	lastUsersCount  int
}

// NewRankScheduler creates a rank scheduler.
func NewRankScheduler(cfg RankConfig) *RankScheduler {
	guard := cfg.Guard
	if guard == nil {
		guard = NewGuard(DefaultCooldown)
	}
	poll := cfg.PollPeriod
	if poll <= 0 {
		poll = 10 * time.Second
	}
	return &RankScheduler{
		source:    cfg.Source,
		store:     cfg.Store,
		listener:  cfg.Listener,
		intervals: cfg.Intervals,
		guard:     guard,
		userLimit: cfg.UserLimit,
		rankAt:    cfg.RankAt,
		infoAt:    cfg.InfoAt,
		poll:      poll,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger.Named("rank_crawl"),
		now:       time.Now,
		roster:    newRoster(),
		shared:    make(map[string]bool),
	}
}

// Restore rebuilds the roster and share-status map from storage and reports
// every shared trader to the listener once.
func (r *RankScheduler) Restore(ctx context.Context) error {
	traders, err := r.store.ActiveTraders(ctx)
	if err != nil {
		return fmt.Errorf("load traders: %w", err)
	}
	flags, err := r.store.SharedFlags(ctx)
	if err != nil {
		return fmt.Errorf("load share flags: %w", err)
	}

	var shared []string
	r.mu.Lock()
	for _, t := range traders {
		if !r.roster.add(t.UID) {
			continue
		}
		s := flags[t.UID]
		r.shared[t.UID] = s
		if s {
			shared = append(shared, t.UID)
		}
	}
	total := r.roster.len()
	r.mu.Unlock()

	if len(shared) > 0 {
		r.listener.OnNewTraders(shared)
	}
	r.logger.Info("📋 Trader roster restored",
		zap.Int("traders", total),
		zap.Int("shared", len(shared)))
	return nil
}

// RunRankSweep runs one rank sweep unless the guard rejects it.
func (r *RankScheduler) RunRankSweep(ctx context.Context) (bool, error) {
	ran, err := r.guard.Run(ctx, SweepRank, r.rankSweep)
	if !ran && err == nil {
		r.metrics.RecordSweepSkipped(string(SweepRank))
		r.logger.Info("Rank sweep skipped, last run too recent")
	}
	return ran, err
}

// RunInfoSweep runs one info sweep unless the guard rejects it.
func (r *RankScheduler) RunInfoSweep(ctx context.Context) (bool, error) {
	ran, err := r.guard.Run(ctx, SweepInfo, r.infoSweep)
	if !ran && err == nil {
		r.metrics.RecordSweepSkipped(string(SweepInfo))
		r.logger.Info("Info sweep skipped, last run too recent")
	}
	return ran, err
}

// Run performs both sweeps once, then runs them daily until ctx is done.
func (r *RankScheduler) Run(ctx context.Context) error {
	r.runRank(ctx)
	r.runInfo(ctx)

	daily := NewDaily(r.logger)
	daily.Add(string(SweepRank), r.rankAt, r.runRank)
	daily.Add(string(SweepInfo), r.infoAt, r.runInfo)
	return daily.Run(ctx, r.poll)
}

func (r *RankScheduler) runRank(ctx context.Context) {
	if _, err := r.RunRankSweep(ctx); err != nil && ctx.Err() == nil {
		r.logger.Error("Rank sweep failed", zap.Error(err))
	}
}

func (r *RankScheduler) runInfo(ctx context.Context) {
	if _, err := r.RunInfoSweep(ctx); err != nil && ctx.Err() == nil {
		r.logger.Error("Info sweep failed", zap.Error(err))
	}
}

func (r *RankScheduler) rankSweep(ctx context.Context) error {
	logger := sweepLogger(r.logger, SweepRank)
	start := r.now()
	logger.Info("🏁 Rank sweep started")

	if err := r.store.ClearSummaryRanks(ctx, start); err != nil {
		logger.Error("Failed to clear rank summary", zap.Error(err))
	}

	succeeded := 0
	for _, q := range RankGrid(r.source.TradeType()) {
		if ctx.Err() != nil {
			break
		}
		if r.fetchRankList(ctx, logger, q) {
			succeeded++
		}
		if err := sleepCtx(ctx, seconds(r.intervals.Intervals().Rank)); err != nil {
			break
		}
	}

	finished := r.now()
	elapsed := finished.Sub(start)
	r.mu.Lock()
	r.lastRankUpdate = finished
	r.lastRankSpan = elapsed
	r.lastRankCount = succeeded
	total := r.roster.len()
	r.mu.Unlock()

	r.metrics.RecordSweep(string(SweepRank), elapsed, succeeded)
	logger.Info("✅ Rank sweep finished",
		zap.Int("lists", succeeded),
		zap.Int("traders", total),
		zap.Duration("elapsed", elapsed))
	return ctx.Err()
}

func (r *RankScheduler) fetchRankList(ctx context.Context, logger *zap.Logger, q leaderboard.RankQuery) bool {
	logger.Debug("Fetching rank list", zap.Any("payload", q.Payload()))

	page, err := r.source.RankList(ctx, q)
	r.metrics.RecordRequest(endpointRank, requestOutcome(err))
	if err != nil {
		logRequestFailure(logger, "Rank list fetch failed", err, zap.Any("payload", q.Payload()))
		return false
	}

	result := domain.RankResult{RecordTime: r.now(), Payload: q.Payload(), RankList: page.Raw}
	if err := r.store.InsertRankResult(ctx, result); err != nil {
		logger.Error("Failed to save rank result", zap.Error(err))
	}

	var started []string
	for _, entry := range page.Entries {
		r.registerTrader(ctx, logger, entry)
		if entry.PositionShared && r.markShared(entry.UID) {
			started = append(started, entry.UID)
		}
	}
	if len(started) > 0 {
		logger.Info("New shared traders discovered", zap.Int("count", len(started)))
		r.listener.OnNewTraders(started)
	}
	return true
}

// registerTrader adds an unseen trader to the roster once its record is stored.
func (r *RankScheduler) registerTrader(ctx context.Context, logger *zap.Logger, entry leaderboard.RankEntry) {
	r.mu.Lock()
	known := r.roster.has(entry.UID)
	r.mu.Unlock()
	if known {
		return
	}

	trader := domain.NewTrader(entry.UID, entry.Nickname, r.now())
	trader.PositionShared = entry.PositionShared
	if err := r.store.InsertTrader(ctx, trader); err != nil {
		logger.Error("Save new trader failed", zap.String("uid", entry.UID), zap.Error(err))
		return
	}

	r.mu.Lock()
	r.roster.add(entry.UID)
	r.mu.Unlock()
}

// markShared records uid as shared and reports whether it was not already.
func (r *RankScheduler) markShared(uid string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.shared[uid] {
		return false
	}
	r.shared[uid] = true
	return true
}

func (r *RankScheduler) infoSweep(ctx context.Context) error {
	logger := sweepLogger(r.logger, SweepInfo)
	start := r.now()

	r.mu.Lock()
	traders := r.roster.snapshot(r.userLimit)
	r.mu.Unlock()
	logger.Info("🏁 Info sweep started", zap.Int("traders", len(traders)))

	processed := 0
	for _, uid := range traders {
		if ctx.Err() != nil {
			break
		}
		safeStep(logger, uid, func() { r.fetchTraderInfo(ctx, logger, uid) })
		processed++
		if err := sleepCtx(ctx, seconds(r.intervals.Intervals().User)); err != nil {
			break
		}
	}

	finished := r.now()
	elapsed := finished.Sub(start)
	r.mu.Lock()
	r.lastUsersUpdate = finished
	r.lastUsersSpan = elapsed
	r.lastUsersCount = processed
	r.mu.Unlock()

	r.metrics.RecordSweep(string(SweepInfo), elapsed, processed)
	logger.Info("✅ Info sweep finished",
		zap.Int("traders", processed),
		zap.Duration("elapsed", elapsed))
	return ctx.Err()
}

func (r *RankScheduler) fetchTraderInfo(ctx context.Context, logger *zap.Logger, uid string) {
	perf, err := r.source.Performance(ctx, uid)
	r.metrics.RecordRequest(endpointPerformance, requestOutcome(err))
	if err != nil {
		logRequestFailure(logger, "Trader performance fetch failed", err, zap.String("uid", uid))
	} else {
		record := domain.InfoRecord{Kind: domain.InfoPerformance, RecordTime: r.now(), UID: uid, Data: perf}
		if err := r.store.SaveInfo(ctx, record); err != nil {
			logger.Error("Save trader performance failed", zap.String("uid", uid), zap.Error(err))
		}
	}

	base, err := r.source.BaseInfo(ctx, uid)
	r.metrics.RecordRequest(endpointBaseInfo, requestOutcome(err))
	if err != nil {
		logRequestFailure(logger, "Trader base info fetch failed", err, zap.String("uid", uid))
		return
	}
	record := domain.InfoRecord{Kind: domain.InfoBaseInfo, RecordTime: r.now(), UID: uid, Data: base.Raw}
	if err := r.store.SaveInfo(ctx, record); err != nil {
		logger.Error("Save trader base info failed", zap.String("uid", uid), zap.Error(err))
	}
	r.applyShared(ctx, logger, uid, base.PositionShared)
}

// applyShared updates the share flag of uid from base info and reports transitions.
func (r *RankScheduler) applyShared(ctx context.Context, logger *zap.Logger, uid string, shared bool) {
	r.mu.Lock()
	old, known := r.shared[uid]
	r.shared[uid] = shared
	r.mu.Unlock()

	switch {
	case known && old && !shared:
		logger.Info("Trader stopped sharing positions", zap.String("uid", uid))
		r.listener.OnTraderStoppedSharing(uid)
	case !old && shared:
		logger.Info("Trader started sharing positions", zap.String("uid", uid))
		r.listener.OnNewTraders([]string{uid})
	default:
		return
	}

	if err := r.store.SetTraderShared(ctx, uid, shared, r.now()); err != nil {
		logger.Error("Failed to update trader share flag", zap.String("uid", uid), zap.Error(err))
	}
}

// TraderCount returns the size of the full roster.
func (r *RankScheduler) TraderCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.roster.len()
}

// Status reports the counters of both sweeps.
func (r *RankScheduler) Status() control.RankCrawlStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return control.RankCrawlStatus{
		TotalTraderCount:  r.roster.len(),
		LastRankUpdate:    statusTime(r.lastRankUpdate),
		LastRankTimeSpan:  r.lastRankSpan.Seconds(),
		LastRankCount:     r.lastRankCount,
		LastUsersUpdate:   statusTime(r.lastUsersUpdate),
		LastUsersTimeSpan: r.lastUsersSpan.Seconds(),
		LastUsersCount:    r.lastUsersCount,
	}
}
