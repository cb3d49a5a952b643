// internal/crawl/orchestrator_test.go
package crawl

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/leaderboard-crawler/internal/control"
	"github.com/rovshanmuradov/leaderboard-crawler/internal/domain"
	"github.com/rovshanmuradov/leaderboard-crawler/internal/events"
	"github.com/rovshanmuradov/leaderboard-crawler/internal/leaderboard"
	"github.com/rovshanmuradov/leaderboard-crawler/internal/metrics"
	"github.com/rovshanmuradov/leaderboard-crawler/internal/position"
)

func newTestOrchestrator(t *testing.T, src *fakeSource, store *memStore) *Orchestrator {
	return New(Config{
		Source:         src,
		Store:          store,
		Intervals:      control.Intervals{},
		Cooldown:       10 * time.Minute,
		PollPeriod:     time.Hour,
		PositionPeriod: 10 * time.Millisecond,
		SkipInflight:   true,
		Metrics:        metrics.NewCollector(),
		Logger:         zaptest.NewLogger(t),
	})
}

func snapshotOf(rows ...leaderboard.PositionRow) domain.Snapshot {
	return leaderboard.Snapshot(rows)
}

func TestOrchestrator_SharedRosterIsASet(t *testing.T) {
	o := newTestOrchestrator(t, newFakeSource(), newMemStore())

	o.OnNewTraders([]string{"a", "b"})
	o.OnNewTraders([]string{"b", "c", "a"})
	assert.Equal(t, []string{"a", "b", "c"}, o.SharedTraders(0))
	assert.Equal(t, []string{"a", "b"}, o.SharedTraders(2))

	o.OnTraderStoppedSharing("b")
	o.OnTraderStoppedSharing("missing")
	assert.Equal(t, []string{"a", "c"}, o.SharedTraders(0))

	// the returned slice is a copy
	got := o.SharedTraders(0)
	got[0] = "zzz"
	assert.Equal(t, []string{"a", "c"}, o.SharedTraders(0))
}

func TestOrchestrator_PositionNotifications(t *testing.T) {
	o := newTestOrchestrator(t, newFakeSource(), newMemStore())
	first := snapshotOf(row("BTCUSDT", 10, "1", "100"))
	second := snapshotOf(row("BTCUSDT", 10, "2", "100"))

	_, seen := o.LastPositions("u1")
	assert.False(t, seen)

	o.OnPositionInit("u1", first)
	got, seen := o.LastPositions("u1")
	require.True(t, seen)
	assert.Equal(t, first, got)

	outcome := position.Diff(got, seen, second)
	require.Equal(t, domain.OutcomeChanged, outcome.Kind)
	o.OnPositionChanged("u1", got, second, outcome.Diff)

	got, _ = o.LastPositions("u1")
	assert.Equal(t, second, got)

	assert.Equal(t, 2, o.Queue().Len())
	ctx := context.Background()
	ev, err := o.Queue().Pop(ctx)
	require.NoError(t, err)
	assert.Equal(t, events.PositionInit, ev.Type())
	ev, err = o.Queue().Pop(ctx)
	require.NoError(t, err)
	changed, ok := ev.(*events.ChangedEvent)
	require.True(t, ok)
	assert.Equal(t, first, changed.Old)
	assert.Equal(t, second, changed.New)
}

func TestOrchestrator_PersistInit(t *testing.T) {
	store := newMemStore()
	o := newTestOrchestrator(t, newFakeSource(), store)
	positions := snapshotOf(row("BTCUSDT", 10, "1", "100"))

	err := o.persist(context.Background(), events.NewInitEvent("u1", positions, time.Now()))
	require.NoError(t, err)

	rec, ok := store.record("u1")
	require.True(t, ok)
	assert.Equal(t, []domain.Position(positions), rec.Positions)
	assert.Equal(t, 0, store.auditCount(), "init writes no audit record")
}

func TestOrchestrator_PersistChanged(t *testing.T) {
	store := newMemStore()
	o := newTestOrchestrator(t, newFakeSource(), store)
	old := snapshotOf(row("BTCUSDT", 10, "1", "100"))
	current := snapshotOf(row("ETHUSDT", 3, "4", "2000"))
	diff := position.Diff(old, true, current).Diff

	err := o.persist(context.Background(), events.NewChangedEvent("u1", old, current, diff, time.Now()))
	require.NoError(t, err)

	rec, ok := store.record("u1")
	require.True(t, ok)
	assert.Equal(t, []domain.Position(current), rec.Positions)
	require.Equal(t, 1, store.auditCount())
	audit := store.audits[0]
	assert.NotEmpty(t, audit.ID)
	assert.Equal(t, "u1", audit.UID)
	assert.Len(t, audit.Diff.Added, 1)
	assert.Len(t, audit.Diff.Removed, 1)
}

func TestOrchestrator_PersistFailureStillWritesAudit(t *testing.T) {
	store := newMemStore()
	store.upsertErr = errors.New("disk full")
	o := newTestOrchestrator(t, newFakeSource(), store)
	old := snapshotOf(row("BTCUSDT", 10, "1", "100"))
	diff := position.Diff(old, true, domain.Snapshot{}).Diff

	err := o.persist(context.Background(), events.NewChangedEvent("u1", old, domain.Snapshot{}, diff, time.Now()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")

	assert.Equal(t, 1, store.auditCount())
	_, ok := store.record("u1")
	assert.False(t, ok)
}

func TestOrchestrator_Restore(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()
	for _, uid := range []string{"withpos", "empty", "nopos", "broken"} {
		require.NoError(t, store.InsertTrader(ctx, domain.NewTrader(uid, uid, time.Now())))
	}
	stored := snapshotOf(row("BTCUSDT", 10, "1", "100"))
	store.current["withpos"] = domain.PositionRecord{UID: "withpos", Positions: stored}
	store.current["empty"] = domain.PositionRecord{UID: "empty"}
	store.positionsErr["broken"] = errors.New("corrupt")
	store.flags["withpos"] = true

	o := newTestOrchestrator(t, newFakeSource(), store)
	require.NoError(t, o.Restore(ctx))

	got, seen := o.LastPositions("withpos")
	require.True(t, seen)
	assert.Equal(t, stored, got)

	got, seen = o.LastPositions("empty")
	assert.True(t, seen, "a stored empty record counts as seen")
	assert.Empty(t, got)

	_, seen = o.LastPositions("nopos")
	assert.False(t, seen)
	_, seen = o.LastPositions("broken")
	assert.False(t, seen)

	assert.Equal(t, []string{"withpos"}, o.SharedTraders(0))
	assert.Equal(t, 4, o.Rank().TraderCount())
}

func TestOrchestrator_ControlPlane(t *testing.T) {
	o := newTestOrchestrator(t, newFakeSource(), newMemStore())
	o.intervals = control.Intervals{Rank: 1, User: 2, Position: 2}
	o.OnNewTraders([]string{"a", "b"})
	d := control.NewDispatcher(o, zaptest.NewLogger(t))
	ctx := context.Background()

	resp := d.Dispatch(ctx, control.Request{Method: control.MethodUpdateInterval, Params: json.RawMessage(`{"user":7}`)})
	require.True(t, resp.Success, resp.Message)
	assert.Equal(t, control.Intervals{Rank: 1, User: 7, Position: 2}, o.Intervals())

	resp = d.Dispatch(ctx, control.Request{Method: control.MethodStatus})
	require.True(t, resp.Success)
	status, ok := resp.Data.(*control.Status)
	require.True(t, ok)
	assert.Equal(t, 7, status.Intervals.User)
	assert.Equal(t, 2, status.PositionCrawl.CurrentShareTraderCount)
	assert.Equal(t, 0, status.RankCrawl.TotalTraderCount)

	_, err := o.UpdateIntervals(ctx, control.IntervalUpdate{Position: intPtr(-5)})
	assert.Error(t, err)
	assert.Equal(t, 2, o.Intervals().Position)
}

func intPtr(v int) *int { return &v }

func TestOrchestrator_RunEndToEnd(t *testing.T) {
	src := newFakeSource()
	src.rankEntries = []leaderboard.RankEntry{{UID: "u1", Nickname: "alice", PositionShared: true}}
	src.baseInfo["u1"] = true
	src.setPositions("u1",
		positionReply{rows: []leaderboard.PositionRow{row("BTCUSDT", 10, "1", "100")}},
		positionReply{rows: []leaderboard.PositionRow{row("BTCUSDT", 10, "1", "100"), row("ETHUSDT", 5, "-3", "2000")}},
	)
	store := newMemStore()
	o := newTestOrchestrator(t, src, store)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- o.Run(ctx) }()

	require.Eventually(t, func() bool {
		rec, ok := store.record("u1")
		return ok && len(rec.Positions) == 2 && store.auditCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("orchestrator did not stop")
	}

	status, err := o.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, status.RankCrawl.TotalTraderCount)
	assert.Equal(t, 1, status.PositionCrawl.CurrentShareTraderCount)
	assert.GreaterOrEqual(t, status.PositionCrawl.TotalTimes, 2)

	stats := o.Queue().Stats()
	assert.True(t, stats.Closed)
	assert.GreaterOrEqual(t, stats.Consumed, uint64(2))
}

func TestOrchestrator_RunStopsCleanlyOnDeadline(t *testing.T) {
	o := newTestOrchestrator(t, newFakeSource(), newMemStore())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	assert.NoError(t, o.Run(ctx), "a deadline is a normal stop")
}
