// internal/control/types.go
package control

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Recognized control methods.
const (
	MethodStatus         = "status"
	MethodUpdateInterval = "update_interval"
)

// Request is a control-plane call.
type Request struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Response is the result of a control-plane call: data on success, message on failure.
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

// Success wraps data in a successful response.
func Success(data any) Response {
	return Response{Success: true, Data: data}
}

// Failure builds an error response.
func Failure(reason string) Response {
	return Response{Success: false, Message: reason}
}

// ParseRequest decodes a request body. Bodies wrapped as {"data": {...}} are unwrapped.
func ParseRequest(body []byte) (Request, error) {
	var probe struct {
		Method *string          `json:"method"`
		Data   *json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return Request{}, fmt.Errorf("decode request: %w", err)
	}

	inner := body
	if probe.Method == nil && probe.Data != nil {
		inner = *probe.Data
	}

	var req Request
	if err := json.Unmarshal(inner, &req); err != nil {
		return Request{}, fmt.Errorf("decode request: %w", err)
	}
	if req.Method == "" {
		return Request{}, errors.New("missing method")
	}
	return req, nil
}

// Intervals are the inter-request sleeps of the three crawls, in seconds.
type Intervals struct {
	Rank     int `json:"rank"`
	User     int `json:"user"`
	Position int `json:"position"`
}

// IntervalUpdate is a partial Intervals; nil fields keep their current value.
type IntervalUpdate struct {
	Rank     *int `json:"rank,omitempty"`
	User     *int `json:"user,omitempty"`
	Position *int `json:"position,omitempty"`
}

// ParseIntervalUpdate decodes update_interval params. Absent or null params are an error.
func ParseIntervalUpdate(params json.RawMessage) (IntervalUpdate, error) {
	trimmed := bytes.TrimSpace(params)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return IntervalUpdate{}, errors.New("no config found")
	}
	var u IntervalUpdate
	if err := json.Unmarshal(trimmed, &u); err != nil {
		return IntervalUpdate{}, fmt.Errorf("invalid interval config: %w", err)
	}
	return u, u.Validate()
}

// Validate rejects negative intervals.
func (u IntervalUpdate) Validate() error {
	for name, v := range map[string]*int{"rank": u.Rank, "user": u.User, "position": u.Position} {
		if v != nil && *v < 0 {
			return fmt.Errorf("invalid %s interval: %d", name, *v)
		}
	}
	return nil
}

// Apply returns cur with the specified fields replaced.
func (u IntervalUpdate) Apply(cur Intervals) Intervals {
	if u.Rank != nil {
		cur.Rank = *u.Rank
	}
	if u.User != nil {
		cur.User = *u.User
	}
	if u.Position != nil {
		cur.Position = *u.Position
	}
	return cur
}

// RankCrawlStatus describes the rank and info sweeps.
type RankCrawlStatus struct {
	TotalTraderCount  int     `json:"total_trader_count"`
	LastRankUpdate    string  `json:"last_rank_update"`
	LastRankTimeSpan  float64 `json:"last_rank_time_span"`
	LastRankCount     int     `json:"last_rank_count"`
	LastUsersUpdate   string  `json:"last_users_update"`
	LastUsersTimeSpan float64 `json:"last_users_time_span"`
	LastUsersCount    int     `json:"last_users_count"`
}

// PositionCrawlStatus describes the position sweep.
type PositionCrawlStatus struct {
	CurrentShareTraderCount int     `json:"current_share_trader_count"`
	LastCrawlCount          int     `json:"last_crawl_count"`
	LastCrawlFail           int     `json:"last_crawl_fail"`
	LastCrawlTime           float64 `json:"last_crawl_time"`
	LastUpdate              string  `json:"last_update"`
	TotalFailed             int     `json:"total_failed"`
	TotalTimes              int     `json:"total_times"`
	SkippedRounds           int     `json:"skipped_rounds"`
	PendingEvents           int     `json:"pending_events"`
}

// Status is the read-only snapshot returned by the status method.
type Status struct {
	Intervals     Intervals           `json:"intervals"`
	RankCrawl     RankCrawlStatus     `json:"rank_crawl"`
	PositionCrawl PositionCrawlStatus `json:"position_crawl"`
}
