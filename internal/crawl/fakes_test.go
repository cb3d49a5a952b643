// internal/crawl/fakes_test.go
package crawl

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rovshanmuradov/leaderboard-crawler/internal/control"
	"github.com/rovshanmuradov/leaderboard-crawler/internal/domain"
	"github.com/rovshanmuradov/leaderboard-crawler/internal/leaderboard"
	"github.com/rovshanmuradov/leaderboard-crawler/internal/storage"
)

// fakeSource serves canned upstream answers
type fakeSource struct {
	mu sync.Mutex

	rankEntries []leaderboard.RankEntry
	rankErr     map[string]error
	rankCalls   []leaderboard.RankQuery

	perfErr   map[string]error
	baseInfo  map[string]bool
	baseErr   map[string]error
	infoCalls []string

	// positions[uid] is consumed one response per call; the last one repeats
	positions    map[string][]positionReply
	positionHook func(uid string)
	posCalls     []string
}

type positionReply struct {
	rows []leaderboard.PositionRow
	err  error
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		rankErr:   make(map[string]error),
		perfErr:   make(map[string]error),
		baseInfo:  make(map[string]bool),
		baseErr:   make(map[string]error),
		positions: make(map[string][]positionReply),
	}
}

func queryKey(q leaderboard.RankQuery) string {
	return fmt.Sprintf("%t/%t/%s/%s", q.IsShared, q.IsTrader, q.PeriodType, q.StatisticsType)
}

func (f *fakeSource) TradeType() string { return leaderboard.DefaultTradeType }

func (f *fakeSource) RankList(ctx context.Context, q leaderboard.RankQuery) (*leaderboard.RankPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rankCalls = append(f.rankCalls, q)
	if err := f.rankErr[queryKey(q)]; err != nil {
		return nil, err
	}
	page := &leaderboard.RankPage{}
	for _, e := range f.rankEntries {
		page.Raw = append(page.Raw, map[string]any{"encryptedUid": e.UID, "nickName": e.Nickname, "positionShared": e.PositionShared})
		page.Entries = append(page.Entries, e)
	}
	return page, nil
}

func (f *fakeSource) Performance(ctx context.Context, uid string) (any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.infoCalls = append(f.infoCalls, uid)
	if err := f.perfErr[uid]; err != nil {
		return nil, err
	}
	return map[string]any{"uid": uid}, nil
}

func (f *fakeSource) BaseInfo(ctx context.Context, uid string) (*leaderboard.BaseInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.baseErr[uid]; err != nil {
		return nil, err
	}
	shared := f.baseInfo[uid]
	return &leaderboard.BaseInfo{Raw: map[string]any{"positionShared": shared}, PositionShared: shared}, nil
}

func (f *fakeSource) setPositions(uid string, replies ...positionReply) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.positions[uid] = replies
}

func (f *fakeSource) Positions(ctx context.Context, uid string) ([]leaderboard.PositionRow, error) {
	f.mu.Lock()
	f.posCalls = append(f.posCalls, uid)
	hook := f.positionHook
	replies := f.positions[uid]
	var reply positionReply
	switch {
	case len(replies) == 0:
		reply = positionReply{err: leaderboard.ErrNoData}
	case len(replies) == 1:
		reply = replies[0]
	default:
		reply = replies[0]
		f.positions[uid] = replies[1:]
	}
	f.mu.Unlock()

	if hook != nil {
		hook(uid)
	}
	return reply.rows, reply.err
}

func (f *fakeSource) positionCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.posCalls...)
}

func row(symbol string, leverage int, amount, entry string) leaderboard.PositionRow {
	return leaderboard.PositionRow{
		Symbol:     symbol,
		Leverage:   leverage,
		Amount:     decimal.RequireFromString(amount),
		EntryPrice: decimal.RequireFromString(entry),
		MarkPrice:  decimal.RequireFromString(entry),
	}
}

// memStore is an in-memory Store
type memStore struct {
	mu sync.Mutex

	traders        map[string]domain.Trader
	order          []string
	insertErr      map[string]error
	shareUpdates   map[string]bool
	rankResults    []domain.RankResult
	clearedBefore  []time.Time
	infos          []domain.InfoRecord
	flags          map[string]bool
	current        map[string]domain.PositionRecord
	audits         []domain.PositionAudit
	upsertErr      error
	auditErr       error
	positionsErr   map[string]error
	positionWrites int
}

func newMemStore() *memStore {
	return &memStore{
		traders:      make(map[string]domain.Trader),
		insertErr:    make(map[string]error),
		shareUpdates: make(map[string]bool),
		flags:        make(map[string]bool),
		current:      make(map[string]domain.PositionRecord),
		positionsErr: make(map[string]error),
	}
}

func (m *memStore) InsertTrader(ctx context.Context, t domain.Trader) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.insertErr[t.UID]; err != nil {
		return err
	}
	if _, ok := m.traders[t.UID]; ok {
		return fmt.Errorf("duplicate trader %s", t.UID)
	}
	m.traders[t.UID] = t
	m.order = append(m.order, t.UID)
	return nil
}

func (m *memStore) SetTraderShared(ctx context.Context, uid string, shared bool, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shareUpdates[uid] = shared
	return nil
}

func (m *memStore) ActiveTraders(ctx context.Context) ([]domain.Trader, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Trader
	for _, uid := range m.order {
		if t := m.traders[uid]; t.CrawlStatus {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memStore) ClearSummaryRanks(ctx context.Context, before time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clearedBefore = append(m.clearedBefore, before)
	return nil
}

func (m *memStore) InsertRankResult(ctx context.Context, r domain.RankResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rankResults = append(m.rankResults, r)
	return nil
}

func (m *memStore) SaveInfo(ctx context.Context, r domain.InfoRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.infos = append(m.infos, r)
	return nil
}

func (m *memStore) SharedFlags(ctx context.Context) (map[string]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]bool, len(m.flags))
	for k, v := range m.flags {
		out[k] = v
	}
	return out, nil
}

func (m *memStore) CurrentPositions(ctx context.Context, uid string) (domain.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.positionsErr[uid]; err != nil {
		return nil, err
	}
	rec, ok := m.current[uid]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return domain.Snapshot(rec.Positions).Clone(), nil
}

func (m *memStore) UpsertPositions(ctx context.Context, r domain.PositionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positionWrites++
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.current[r.UID] = r
	return nil
}

func (m *memStore) InsertPositionAudit(ctx context.Context, a domain.PositionAudit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.auditErr != nil {
		return m.auditErr
	}
	m.audits = append(m.audits, a)
	return nil
}

func (m *memStore) record(uid string) (domain.PositionRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.current[uid]
	return r, ok
}

func (m *memStore) auditCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.audits)
}

// recordingListener captures share-status notifications
type recordingListener struct {
	mu      sync.Mutex
	started [][]string
	stopped []string
}

func (l *recordingListener) OnNewTraders(uids []string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.started = append(l.started, append([]string(nil), uids...))
}

func (l *recordingListener) OnTraderStoppedSharing(uid string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stopped = append(l.stopped, uid)
}

func (l *recordingListener) startedFlat() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []string
	for _, batch := range l.started {
		out = append(out, batch...)
	}
	return out
}

type fixedIntervals control.Intervals

func (f fixedIntervals) Intervals() control.Intervals { return control.Intervals(f) }
