// internal/crawl/rank_test.go
package crawl

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/leaderboard-crawler/internal/domain"
	"github.com/rovshanmuradov/leaderboard-crawler/internal/leaderboard"
)

func newTestRankScheduler(t *testing.T, src *fakeSource, store *memStore, listener *recordingListener, limit int) *RankScheduler {
	return NewRankScheduler(RankConfig{
		Source:    src,
		Store:     store,
		Listener:  listener,
		Intervals: fixedIntervals{},
		Guard:     NewGuard(10 * time.Minute),
		UserLimit: limit,
		Logger:    zaptest.NewLogger(t),
	})
}

func TestRankGrid(t *testing.T) {
	grid := RankGrid("PERPETUAL")

	require.Len(t, grid, 24)
	seen := make(map[string]bool)
	for _, q := range grid {
		assert.False(t, q.IsShared && q.IsTrader, "isShared=true with isTrader=true is never requested")
		assert.Equal(t, "PERPETUAL", q.TradeType)
		key := queryKey(q)
		assert.False(t, seen[key], "duplicate query %s", key)
		seen[key] = true
	}
}

func TestRankScheduler_RankSweep(t *testing.T) {
	src := newFakeSource()
	src.rankEntries = []leaderboard.RankEntry{
		{UID: "u1", Nickname: "alice", PositionShared: true},
		{UID: "u2", Nickname: "bob", PositionShared: false},
		{UID: "u3", Nickname: "carol", PositionShared: true},
	}
	store := newMemStore()
	listener := &recordingListener{}
	r := newTestRankScheduler(t, src, store, listener, 0)

	ran, err := r.RunRankSweep(context.Background())
	require.NoError(t, err)
	require.True(t, ran)

	assert.Len(t, src.rankCalls, 24)
	assert.Len(t, store.rankResults, 24)
	assert.Len(t, store.clearedBefore, 1, "summary ranks cleared once at sweep start")
	assert.Equal(t, []string{"u1", "u2", "u3"}, store.order, "each trader stored once")
	assert.True(t, store.traders["u1"].CrawlStatus)
	assert.Equal(t, "alice", store.traders["u1"].Nickname)

	// shared traders are reported once although they appear in every list
	assert.Equal(t, []string{"u1", "u3"}, listener.startedFlat())

	status := r.Status()
	assert.Equal(t, 3, status.TotalTraderCount)
	assert.Equal(t, 24, status.LastRankCount)
	assert.NotEmpty(t, status.LastRankUpdate)
}

func TestRankScheduler_RankSweepCooldown(t *testing.T) {
	src := newFakeSource()
	r := newTestRankScheduler(t, src, newMemStore(), &recordingListener{}, 0)

	ran, err := r.RunRankSweep(context.Background())
	require.NoError(t, err)
	require.True(t, ran)

	ran, err = r.RunRankSweep(context.Background())
	require.NoError(t, err)
	assert.False(t, ran)
	assert.Len(t, src.rankCalls, 24, "rejected sweep issues no requests")
}

func TestRankScheduler_RankSweepSurvivesFailures(t *testing.T) {
	src := newFakeSource()
	src.rankEntries = []leaderboard.RankEntry{{UID: "u1", PositionShared: true}}
	grid := RankGrid(leaderboard.DefaultTradeType)
	src.rankErr[queryKey(grid[0])] = leaderboard.ErrThrottled
	src.rankErr[queryKey(grid[1])] = &leaderboard.StatusError{Code: 500}
	src.rankErr[queryKey(grid[2])] = leaderboard.ErrUnsuccessful
	store := newMemStore()
	r := newTestRankScheduler(t, src, store, &recordingListener{}, 0)

	_, err := r.RunRankSweep(context.Background())
	require.NoError(t, err)

	assert.Len(t, src.rankCalls, 24)
	assert.Len(t, store.rankResults, 21)
	assert.Equal(t, 21, r.Status().LastRankCount)
}

func TestRankScheduler_InsertFailureKeepsTraderUnknown(t *testing.T) {
	src := newFakeSource()
	src.rankEntries = []leaderboard.RankEntry{{UID: "u1"}, {UID: "u2"}}
	store := newMemStore()
	store.insertErr["u1"] = errors.New("write failed")
	r := newTestRankScheduler(t, src, store, &recordingListener{}, 0)

	_, err := r.RunRankSweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, r.TraderCount())
	assert.Equal(t, []string{"u2"}, store.order)
}

func TestRankScheduler_InfoSweep(t *testing.T) {
	src := newFakeSource()
	store := newMemStore()
	listener := &recordingListener{}
	r := newTestRankScheduler(t, src, store, listener, 0)

	r.mu.Lock()
	for _, uid := range []string{"on", "off", "new", "broken"} {
		r.roster.add(uid)
	}
	r.shared["on"] = true
	r.shared["off"] = false
	r.mu.Unlock()

	src.baseInfo["on"] = false  // stops sharing
	src.baseInfo["off"] = false // unchanged
	src.baseInfo["new"] = true  // starts sharing
	src.baseErr["broken"] = &leaderboard.StatusError{Code: 502}
	src.perfErr["broken"] = &leaderboard.TransportError{Err: errors.New("reset")}

	ran, err := r.RunInfoSweep(context.Background())
	require.NoError(t, err)
	require.True(t, ran)

	assert.Equal(t, []string{"on"}, listener.stopped)
	assert.Equal(t, []string{"new"}, listener.startedFlat())
	assert.Equal(t, map[string]bool{"on": false, "new": true}, store.shareUpdates)

	perf, base := 0, 0
	for _, rec := range store.infos {
		switch rec.Kind {
		case domain.InfoPerformance:
			perf++
		case domain.InfoBaseInfo:
			base++
		}
	}
	assert.Equal(t, 3, perf)
	assert.Equal(t, 3, base)

	status := r.Status()
	assert.Equal(t, 4, status.LastUsersCount, "failed traders still count as processed")
	assert.NotEmpty(t, status.LastUsersUpdate)
}

func TestRankScheduler_InfoSweepUserLimit(t *testing.T) {
	src := newFakeSource()
	r := newTestRankScheduler(t, src, newMemStore(), &recordingListener{}, 2)

	r.mu.Lock()
	for _, uid := range []string{"a", "b", "c"} {
		r.roster.add(uid)
	}
	r.mu.Unlock()

	_, err := r.RunInfoSweep(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, src.infoCalls)
}

func TestRankScheduler_Restore(t *testing.T) {
	store := newMemStore()
	now := time.Now()
	for _, uid := range []string{"a", "b", "c"} {
		require.NoError(t, store.InsertTrader(context.Background(), domain.NewTrader(uid, uid, now)))
	}
	store.flags["a"] = true
	store.flags["c"] = true
	listener := &recordingListener{}
	r := newTestRankScheduler(t, newFakeSource(), store, listener, 0)

	require.NoError(t, r.Restore(context.Background()))

	assert.Equal(t, 3, r.TraderCount())
	require.Len(t, listener.started, 1, "shared traders reported in one batch")
	assert.Equal(t, []string{"a", "c"}, listener.started[0])
}

func TestRankScheduler_SweepStopsOnCancel(t *testing.T) {
	src := newFakeSource()
	r := NewRankScheduler(RankConfig{
		Source:    src,
		Store:     newMemStore(),
		Listener:  &recordingListener{},
		Intervals: fixedIntervals{Rank: 60},
		Logger:    zaptest.NewLogger(t),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	ran, err := r.RunRankSweep(ctx)
	assert.True(t, ran)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Len(t, src.rankCalls, 1)
}
