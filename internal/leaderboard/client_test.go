// internal/leaderboard/client_test.go
package leaderboard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/leaderboard-crawler/internal/domain"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Options{BaseURL: srv.URL}, zaptest.NewLogger(t))
}

func TestClient_RankList(t *testing.T) {
	var got map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, rankPath, r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"success":true,"data":[
			{"encryptedUid":"A1","nickName":"alice","positionShared":true,"pnl":12.5},
			{"encryptedUid":"B2","nickName":"bob","positionShared":false},
			{"nickName":"no uid"}
		]}`))
	})

	page, err := c.RankList(context.Background(), RankQuery{IsShared: false, IsTrader: true, PeriodType: "DAILY", StatisticsType: "PNL"})
	require.NoError(t, err)

	assert.Equal(t, "PERPETUAL", got["tradeType"])
	assert.Equal(t, true, got["isTrader"])
	assert.Len(t, page.Raw, 3)
	require.Len(t, page.Entries, 2)
	assert.Equal(t, RankEntry{UID: "A1", Nickname: "alice", PositionShared: true}, page.Entries[0])
	assert.False(t, page.Entries[1].PositionShared)
}

func TestClient_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "throttled",
			status: http.StatusForbidden,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrThrottled)
				assert.True(t, IsRequestFailure(err))
			},
		},
		{
			name:   "server error",
			status: http.StatusBadGateway,
			check: func(t *testing.T, err error) {
				var se *StatusError
				require.True(t, errors.As(err, &se))
				assert.Equal(t, http.StatusBadGateway, se.Code)
				assert.True(t, IsRequestFailure(err))
			},
		},
		{
			name:   "unsuccessful envelope",
			status: http.StatusOK,
			body:   `{"success":false,"message":"system busy"}`,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrUnsuccessful)
				assert.False(t, IsRequestFailure(err))
			},
		},
		{
			name:   "malformed body",
			status: http.StatusOK,
			body:   `<html>`,
			check: func(t *testing.T, err error) {
				assert.Error(t, err)
				assert.False(t, IsRequestFailure(err))
			},
		},
		{
			name:   "null data",
			status: http.StatusOK,
			body:   `{"success":true,"data":null}`,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrNoData)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := c.Positions(context.Background(), "uid")
			tt.check(t, err)
		})
	}
}

func TestClient_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	c := NewClient(Options{BaseURL: srv.URL}, zaptest.NewLogger(t))
	srv.Close()

	_, err := c.BaseInfo(context.Background(), "uid")
	var te *TransportError
	assert.True(t, errors.As(err, &te))
	assert.True(t, IsRequestFailure(err))
}

func TestClient_Positions(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "U1", payload["encryptedUid"])
		_, _ = w.Write([]byte(`{"success":true,"data":{"otherPositionRetList":[
			{"symbol":"BTCUSDT","leverage":10,"amount":0.5,"entryPrice":64000.1,"markPrice":65000,"updateTimeStamp":1700000000000,"pnl":500,"roe":0.15,"yellow":false,"tradeBefore":true},
			{"symbol":"ETHUSDT","leverage":20,"amount":-3,"entryPrice":3400,"markPrice":3300,"updateTimeStamp":1700000000001,"pnl":300,"roe":0.2,"yellow":true,"tradeBefore":false}
		]}}`))
	})

	rows, err := c.Positions(context.Background(), "U1")
	require.NoError(t, err)
	snap := Snapshot(rows)
	require.Len(t, snap, 2)

	assert.Equal(t, domain.SideLong, snap[0].Side)
	assert.True(t, snap[0].Amount.Equal(decimal.RequireFromString("0.5")))
	assert.True(t, snap[0].EntryPrice.Equal(decimal.RequireFromString("64000.1")))
	assert.Equal(t, int64(1700000000000), snap[0].UpdateTime)
	assert.True(t, snap[0].TradeBefore)

	assert.Equal(t, domain.SideShort, snap[1].Side)
	assert.Equal(t, 20, snap[1].Leverage)
}

func TestClient_EmptyPositionList(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"data":{"otherPositionRetList":[]}}`))
	})

	rows, err := c.Positions(context.Background(), "U1")
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}

func TestClient_BaseInfo(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, baseInfoPath, r.URL.Path)
		_, _ = w.Write([]byte(`{"success":true,"data":{"nickName":"alice","positionShared":true,"followerCount":10}}`))
	})

	info, err := c.BaseInfo(context.Background(), "U1")
	require.NoError(t, err)
	assert.True(t, info.PositionShared)
	assert.Equal(t, "alice", info.Raw["nickName"])
}
