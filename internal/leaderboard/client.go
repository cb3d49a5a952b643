// internal/leaderboard/client.go
package leaderboard

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultBaseURL = "https://www.binance.com/bapi/futures"

	rankPath        = "/v3/public/future/leaderboard/getLeaderboardRank"
	performancePath = "/v2/public/future/leaderboard/getOtherPerformance"
	baseInfoPath    = "/v2/public/future/leaderboard/getOtherLeaderboardBaseInfo"
	positionPath    = "/v1/public/future/leaderboard/getOtherPosition"
)

// Client talks to the public futures leaderboard API.
// It sends JSON bodies and expects the {success, data} envelope back.
type Client struct {
	http      *http.Client
	baseURL   string
	tradeType string
	logger    *zap.Logger
}

// Options configures a Client.
type Options struct {
	BaseURL   string
	TradeType string
	// Timeout of zero keeps the transport default.
	Timeout time.Duration
}

// NewClient creates a new leaderboard API client.
func NewClient(opts Options, logger *zap.Logger) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.TradeType == "" {
		opts.TradeType = DefaultTradeType
	}
	return &Client{
		http:      &http.Client{Timeout: opts.Timeout},
		baseURL:   strings.TrimRight(opts.BaseURL, "/"),
		tradeType: opts.TradeType,
		logger:    logger.Named("leaderboard"),
	}
}

// TradeType returns the trade type sent with every request.
func (c *Client) TradeType() string {
	return c.tradeType
}

// RankList fetches one ranked list.
func (c *Client) RankList(ctx context.Context, q RankQuery) (*RankPage, error) {
	if q.TradeType == "" {
		q.TradeType = c.tradeType
	}
	var rows []map[string]any
	if err := c.post(ctx, rankPath, q, &rows); err != nil {
		return nil, err
	}
	if rows == nil {
		return nil, ErrNoData
	}

	page := &RankPage{Raw: rows, Entries: make([]RankEntry, 0, len(rows))}
	for _, row := range rows {
		uid, _ := row["encryptedUid"].(string)
		if uid == "" {
			continue
		}
		nickname, _ := row["nickName"].(string)
		shared, _ := row["positionShared"].(bool)
		page.Entries = append(page.Entries, RankEntry{UID: uid, Nickname: nickname, PositionShared: shared})
	}
	return page, nil
}

// Performance fetches the raw performance payload of a trader.
func (c *Client) Performance(ctx context.Context, uid string) (any, error) {
	payload := map[string]any{"encryptedUid": uid, "tradeType": c.tradeType}
	var data any
	if err := c.post(ctx, performancePath, payload, &data); err != nil {
		return nil, err
	}
	return data, nil
}

// BaseInfo fetches the base info of a trader, including the position sharing flag.
func (c *Client) BaseInfo(ctx context.Context, uid string) (*BaseInfo, error) {
	payload := map[string]any{"encryptedUid": uid}
	var data map[string]any
	if err := c.post(ctx, baseInfoPath, payload, &data); err != nil {
		return nil, err
	}
	if data == nil {
		return nil, ErrNoData
	}
	shared, _ := data["positionShared"].(bool)
	return &BaseInfo{Raw: data, PositionShared: shared}, nil
}

// Positions fetches the open positions of a trader.
// ErrNoData means the trader currently exposes no position list at all,
// which is different from an empty list.
func (c *Client) Positions(ctx context.Context, uid string) ([]PositionRow, error) {
	payload := map[string]any{"encryptedUid": uid, "tradeType": c.tradeType}
	var data *positionData
	if err := c.post(ctx, positionPath, payload, &data); err != nil {
		return nil, err
	}
	if data == nil || data.List == nil {
		return nil, ErrNoData
	}
	return *data.List, nil
}

func (c *Client) post(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return &TransportError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden {
		return ErrThrottled
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Code: resp.StatusCode}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Err: err}
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}
	if !env.Success {
		c.logger.Debug("Unsuccessful response",
			zap.String("path", path),
			zap.String("message", env.Message))
		return ErrUnsuccessful
	}
	if len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode data: %w", err)
	}
	return nil
}
