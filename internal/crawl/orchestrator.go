// internal/crawl/orchestrator.go
package crawl

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rovshanmuradov/leaderboard-crawler/internal/control"
	"github.com/rovshanmuradov/leaderboard-crawler/internal/domain"
	"github.com/rovshanmuradov/leaderboard-crawler/internal/events"
	"github.com/rovshanmuradov/leaderboard-crawler/internal/metrics"
	"github.com/rovshanmuradov/leaderboard-crawler/internal/storage"
)

// Source is the full upstream surface used by the crawler.
type Source interface {
	RankSource
	PositionSource
}

// PositionStore persists current positions and their audit trail.
type PositionStore interface {
	ActiveTraders(ctx context.Context) ([]domain.Trader, error)
	CurrentPositions(ctx context.Context, uid string) (domain.Snapshot, error)
	UpsertPositions(ctx context.Context, record domain.PositionRecord) error
	InsertPositionAudit(ctx context.Context, audit domain.PositionAudit) error
}

// Store is everything the crawler writes and restores from.
type Store interface {
	RankStore
	PositionStore
}

// Config configures an Orchestrator.
type Config struct {
	Source         Source
	Store          Store
	Intervals      control.Intervals
	Cooldown       time.Duration
	UserLimit      int
	RankAt         Clock
	InfoAt         Clock
	PollPeriod     time.Duration
	PositionPeriod time.Duration
	SkipInflight   bool
	Metrics        *metrics.Collector
	Logger         *zap.Logger
}

// Orchestrator owns the shared-trader roster, the last-known positions and the
// persistence queue, and wires the rank and position schedulers together.
type Orchestrator struct {
	store    PositionStore
	queue    *events.Queue
	rank     *RankScheduler
	position *PositionScheduler
	metrics  *metrics.Collector
	logger   *zap.Logger
	now      func() time.Time

	mu        sync.RWMutex
	intervals control.Intervals
	shared    *roster
	last      map[string]domain.Snapshot
}

// New creates an orchestrator and both schedulers.
func New(cfg Config) *Orchestrator {
	o := &Orchestrator{
		store:     cfg.Store,
		queue:     events.NewQueue(cfg.Logger),
		metrics:   cfg.Metrics,
		logger:    cfg.Logger.Named("orchestrator"),
		now:       time.Now,
		intervals: cfg.Intervals,
		shared:    newRoster(),
		last:      make(map[string]domain.Snapshot),
	}

	o.rank = NewRankScheduler(RankConfig{
		Source:     cfg.Source,
		Store:      cfg.Store,
		Listener:   o,
		Intervals:  o,
		Guard:      NewGuard(cfg.Cooldown),
		UserLimit:  cfg.UserLimit,
		RankAt:     cfg.RankAt,
		InfoAt:     cfg.InfoAt,
		PollPeriod: cfg.PollPeriod,
		Metrics:    cfg.Metrics,
		Logger:     cfg.Logger,
	})
	o.position = NewPositionScheduler(PositionConfig{
		Source:       cfg.Source,
		State:        o,
		Intervals:    o,
		UserLimit:    cfg.UserLimit,
		Period:       cfg.PositionPeriod,
		SkipInflight: cfg.SkipInflight,
		Metrics:      cfg.Metrics,
		Logger:       cfg.Logger,
	})
	return o
}

// Rank returns the rank scheduler.
func (o *Orchestrator) Rank() *RankScheduler {
	return o.rank
}

// Position returns the position scheduler.
func (o *Orchestrator) Position() *PositionScheduler {
	return o.position
}

// Queue returns the persistence queue.
func (o *Orchestrator) Queue() *events.Queue {
	return o.queue
}

// Restore loads the last stored positions of every tracked trader, then the
// rank scheduler's roster. Traders without a stored record stay unseen.
func (o *Orchestrator) Restore(ctx context.Context) error {
	traders, err := o.store.ActiveTraders(ctx)
	if err != nil {
		return fmt.Errorf("load traders: %w", err)
	}

	restored := 0
	for _, t := range traders {
		snap, err := o.store.CurrentPositions(ctx, t.UID)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			o.logger.Warn("Failed to load stored positions", zap.String("uid", t.UID), zap.Error(err))
			continue
		}
		if snap == nil {
			snap = domain.Snapshot{}
		}
		o.mu.Lock()
		o.last[t.UID] = snap
		o.mu.Unlock()
		restored++
	}
	o.logger.Info("📦 Positions restored",
		zap.Int("traders", len(traders)),
		zap.Int("with_positions", restored))

	return o.rank.Restore(ctx)
}

// Run runs the persistence consumer and both schedulers until ctx is done.
func (o *Orchestrator) Run(parent context.Context) error {
	g, ctx := errgroup.WithContext(parent)

	g.Go(func() error {
		return o.queue.Consume(ctx, events.HandlerFunc(o.persist))
	})
	g.Go(func() error {
		return o.rank.Run(ctx)
	})
	g.Go(func() error {
		return o.position.Run(ctx)
	})

	o.logger.Info("🚀 Crawl started")
	err := g.Wait()
	o.queue.Close()

	stats := o.queue.Stats()
	o.logger.Info("Crawl stopped",
		zap.Uint64("events_pushed", stats.Pushed),
		zap.Uint64("events_persisted", stats.Consumed),
		zap.Int("events_pending", stats.Pending))
	if err != nil && parent.Err() != nil {
		return nil
	}
	return err
}

// OnNewTraders adds uids to the shared roster. Uids already present are skipped.
func (o *Orchestrator) OnNewTraders(uids []string) {
	o.mu.Lock()
	added := 0
	for _, uid := range uids {
		if o.shared.add(uid) {
			added++
		}
	}
	n := o.shared.len()
	o.mu.Unlock()

	o.metrics.SetSharedTraders(n)
	if added > 0 {
		o.logger.Info("Start watching traders", zap.Int("added", added), zap.Int("shared", n))
	}
}

// OnTraderStoppedSharing removes uid from the shared roster if present.
func (o *Orchestrator) OnTraderStoppedSharing(uid string) {
	o.mu.Lock()
	removed := o.shared.remove(uid)
	n := o.shared.len()
	o.mu.Unlock()

	o.metrics.SetSharedTraders(n)
	if removed {
		o.logger.Info("Stop watching trader", zap.String("uid", uid), zap.Int("shared", n))
	}
}

// OnPositionInit commits the first snapshot of uid and queues an Init event.
func (o *Orchestrator) OnPositionInit(uid string, positions domain.Snapshot) {
	o.mu.Lock()
	o.last[uid] = positions.Clone()
	o.mu.Unlock()

	o.enqueue(events.NewInitEvent(uid, positions, o.now()))
}

// OnPositionChanged commits current as the snapshot of uid and queues a Changed event.
func (o *Orchestrator) OnPositionChanged(uid string, old, current domain.Snapshot, diff domain.DiffResult) {
	o.mu.Lock()
	o.last[uid] = current.Clone()
	o.mu.Unlock()

	o.enqueue(events.NewChangedEvent(uid, old, current, diff, o.now()))
}

func (o *Orchestrator) enqueue(ev events.Event) {
	if !o.queue.Push(ev) {
		o.logger.Warn("Event dropped, queue closed",
			zap.String("event_type", string(ev.Type())),
			zap.String("uid", ev.TraderUID()))
		return
	}
	o.metrics.RecordEvent(string(ev.Type()))
	o.metrics.SetQueueDepth(o.queue.Len())
}

// SharedTraders returns a copy of the shared roster, at most limit long when limit > 0.
func (o *Orchestrator) SharedTraders(limit int) []string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.shared.snapshot(limit)
}

// LastPositions returns a copy of the last accepted snapshot of uid.
func (o *Orchestrator) LastPositions(uid string) (domain.Snapshot, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	snap, ok := o.last[uid]
	if !ok {
		return nil, false
	}
	return snap.Clone(), true
}

// Intervals returns the current interval configuration.
func (o *Orchestrator) Intervals() control.Intervals {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.intervals
}

// UpdateIntervals applies a partial interval update atomically.
func (o *Orchestrator) UpdateIntervals(_ context.Context, update control.IntervalUpdate) (control.Intervals, error) {
	if err := update.Validate(); err != nil {
		return control.Intervals{}, err
	}

	o.mu.Lock()
	o.intervals = update.Apply(o.intervals)
	current := o.intervals
	o.mu.Unlock()

	o.logger.Info("⚙️ Crawl intervals updated",
		zap.Int("rank", current.Rank),
		zap.Int("user", current.User),
		zap.Int("position", current.Position))
	return current, nil
}

// Status returns a read-only snapshot of intervals and sweep counters.
func (o *Orchestrator) Status(_ context.Context) (*control.Status, error) {
	o.mu.RLock()
	intervals := o.intervals
	shared := o.shared.len()
	o.mu.RUnlock()

	pos := o.position.Status()
	pos.CurrentShareTraderCount = shared
	pos.PendingEvents = o.queue.Len()

	return &control.Status{
		Intervals:     intervals,
		RankCrawl:     o.rank.Status(),
		PositionCrawl: pos,
	}, nil
}

// persist writes one event. Each write is attempted once; failures are returned
// to the consumer, which logs them and moves on.
func (o *Orchestrator) persist(ctx context.Context, ev events.Event) error {
	defer o.metrics.SetQueueDepth(o.queue.Len())
	now := o.now()

	switch e := ev.(type) {
	case *events.InitEvent:
		return o.savePositions(ctx, e.TraderUID(), e.Positions, now)

	case *events.ChangedEvent:
		saveErr := o.savePositions(ctx, e.TraderUID(), e.New, now)

		audit := domain.PositionAudit{
			ID:         uuid.NewString(),
			RecordTime: now,
			UID:        e.TraderUID(),
			New:        e.New,
			Old:        e.Old,
			Diff:       e.Diff,
		}
		var auditErr error
		if err := o.store.InsertPositionAudit(ctx, audit); err != nil {
			o.metrics.RecordPersistFailure("position_audit")
			auditErr = fmt.Errorf("save position operation: %w", err)
		}
		return errors.Join(saveErr, auditErr)

	default:
		return fmt.Errorf("unknown event type %q", ev.Type())
	}
}

func (o *Orchestrator) savePositions(ctx context.Context, uid string, positions domain.Snapshot, at time.Time) error {
	record := domain.PositionRecord{RecordTime: at, UID: uid, Positions: positions}
	if err := o.store.UpsertPositions(ctx, record); err != nil {
		o.metrics.RecordPersistFailure("position")
		return fmt.Errorf("save position: %w", err)
	}
	return nil
}
