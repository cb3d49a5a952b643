// internal/crawl/position.go
package crawl

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/leaderboard-crawler/internal/control"
	"github.com/rovshanmuradov/leaderboard-crawler/internal/domain"
	"github.com/rovshanmuradov/leaderboard-crawler/internal/leaderboard"
	"github.com/rovshanmuradov/leaderboard-crawler/internal/metrics"
	"github.com/rovshanmuradov/leaderboard-crawler/internal/position"
)

// DefaultPositionPeriod is the re-arm period of the position sweep.
const DefaultPositionPeriod = 5 * time.Second

// PositionSource fetches the open positions of a trader.
type PositionSource interface {
	Positions(ctx context.Context, uid string) ([]leaderboard.PositionRow, error)
}

// PositionState is the orchestrator surface used by the position sweep.
type PositionState interface {
	SharedTraders(limit int) []string
	LastPositions(uid string) (domain.Snapshot, bool)
	OnPositionInit(uid string, positions domain.Snapshot)
	OnPositionChanged(uid string, old, current domain.Snapshot, diff domain.DiffResult)
}

// PositionConfig configures a PositionScheduler.
type PositionConfig struct {
	Source       PositionSource
	State        PositionState
	Intervals    IntervalSource
	UserLimit    int
	Period       time.Duration
	SkipInflight bool
	Metrics      *metrics.Collector
	Logger       *zap.Logger
}

// PositionScheduler polls the positions of every shared trader and reports
// Init and Changed outcomes to its state.
type PositionScheduler struct {
	source       PositionSource
	state        PositionState
	intervals    IntervalSource
	userLimit    int
	period       time.Duration
	skipInflight bool
	metrics      *metrics.Collector
	logger       *zap.Logger
	now          func() time.Time

	inflight atomic.Bool
	wg       sync.WaitGroup

	mu             sync.Mutex
	lastCrawlCount int
	lastFailCount  int
	lastCrawlTime  time.Duration
	lastUpdate     time.Time
	totalFailed    int
	totalTimes     int
	skippedRounds  int
}

// NewPositionScheduler creates a position scheduler.
func NewPositionScheduler(cfg PositionConfig) *PositionScheduler {
	period := cfg.Period
	if period <= 0 {
		period = DefaultPositionPeriod
	}
	return &PositionScheduler{
		source:       cfg.Source,
		state:        cfg.State,
		intervals:    cfg.Intervals,
		userLimit:    cfg.UserLimit,
		period:       period,
		skipInflight: cfg.SkipInflight,
		metrics:      cfg.Metrics,
		logger:       cfg.Logger.Named("position_crawl"),
		now:          time.Now,
	}
}

// Run starts a round immediately and then on every period tick until ctx is done.
// It waits for rounds in flight before returning.
func (p *PositionScheduler) Run(ctx context.Context) error {
	defer p.wg.Wait()

	p.startRound(ctx)
	ticker := time.NewTicker(p.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.startRound(ctx)
		}
	}
}

func (p *PositionScheduler) startRound(ctx context.Context) {
	if p.skipInflight && !p.inflight.CompareAndSwap(false, true) {
		p.mu.Lock()
		p.skippedRounds++
		p.mu.Unlock()
		p.metrics.RecordRoundSkipped()
		p.logger.Debug("Position round still running, tick skipped")
		return
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if p.skipInflight {
			defer p.inflight.Store(false)
		}
		p.RunRound(ctx)
	}()
}

// RunRound fetches and diffs the positions of a point-in-time copy of the
// shared roster. Per-trader failures are counted and never end the round.
func (p *PositionScheduler) RunRound(ctx context.Context) {
	logger := sweepLogger(p.logger, SweepPosition)

	p.mu.Lock()
	p.totalTimes++
	p.mu.Unlock()

	traders := p.state.SharedTraders(p.userLimit)
	logger.Info("Start new round of user position crawl", zap.Int("count", len(traders)))
	start := p.now()

	crawled, failed := 0, 0
	for _, uid := range traders {
		if ctx.Err() != nil {
			break
		}
		reqFailed := true
		safeStep(logger, uid, func() { reqFailed = p.crawlTrader(ctx, logger, uid) })
		crawled++
		if reqFailed {
			failed++
		}
	}

	finished := p.now()
	elapsed := finished.Sub(start)
	p.mu.Lock()
	p.lastCrawlCount = crawled
	p.lastFailCount = failed
	p.lastCrawlTime = elapsed
	p.lastUpdate = finished
	p.totalFailed += failed
	p.mu.Unlock()

	p.metrics.RecordSweep(string(SweepPosition), elapsed, crawled)
	logger.Info("User position crawl round done",
		zap.Int("crawled", crawled),
		zap.Int("failed", failed),
		zap.Duration("elapsed", elapsed))
}

// crawlTrader handles one trader and reports whether the request itself failed.
func (p *PositionScheduler) crawlTrader(ctx context.Context, logger *zap.Logger, uid string) bool {
	rows, err := p.source.Positions(ctx, uid)
	p.metrics.RecordRequest(endpointPosition, requestOutcome(err))
	_ = sleepCtx(ctx, seconds(p.intervals.Intervals().Position))

	if err != nil {
		if leaderboard.IsRequestFailure(err) {
			logRequestFailure(logger, "Position fetch failed", err, zap.String("uid", uid))
			return true
		}
		logger.Debug("No position data", zap.String("uid", uid), zap.Error(err))
		return false
	}

	current := leaderboard.Snapshot(rows)
	previous, seen := p.state.LastPositions(uid)
	outcome := position.Diff(previous, seen, current)

	switch outcome.Kind {
	case domain.OutcomeInit:
		logger.Debug("Position initialized", zap.String("uid", uid), zap.Int("positions", len(current)))
		p.state.OnPositionInit(uid, current)
	case domain.OutcomeChanged:
		logger.Debug("Position changed",
			zap.String("uid", uid),
			zap.Int("added", len(outcome.Diff.Added)),
			zap.Int("removed", len(outcome.Diff.Removed)),
			zap.Int("changed", len(outcome.Diff.Changed)))
		p.state.OnPositionChanged(uid, previous, current, outcome.Diff)
	}
	return false
}

// Status reports the sweep counters. CurrentShareTraderCount is left to the caller.
func (p *PositionScheduler) Status() control.PositionCrawlStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return control.PositionCrawlStatus{
		LastCrawlCount: p.lastCrawlCount,
		LastCrawlFail:  p.lastFailCount,
		LastCrawlTime:  p.lastCrawlTime.Seconds(),
		LastUpdate:     statusTime(p.lastUpdate),
		TotalFailed:    p.totalFailed,
		TotalTimes:     p.totalTimes,
		SkippedRounds:  p.skippedRounds,
	}
}
