// internal/ui/client.go
package ui

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rovshanmuradov/leaderboard-crawler/internal/control"
	"github.com/rovshanmuradov/leaderboard-crawler/internal/logger"
)

// ErrLogsDisabled is returned by Logs when the crawler runs without a log buffer.
var ErrLogsDisabled = errors.New("log buffer disabled")

// Client talks to the crawler admin server.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

type controlReply struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

func (c *Client) call(ctx context.Context, method string, params any, out any) error {
	req := control.Request{Method: method}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("encode params: %w", err)
		}
		req.Params = raw
	}
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/control", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: unexpected status %d", method, resp.StatusCode)
	}

	var reply controlReply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return fmt.Errorf("%s: decode reply: %w", method, err)
	}
	if !reply.Success {
		return fmt.Errorf("%s: %s", method, reply.Message)
	}
	if out == nil || len(reply.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(reply.Data, out); err != nil {
		return fmt.Errorf("%s: decode data: %w", method, err)
	}
	return nil
}

// Status fetches the crawl status snapshot.
func (c *Client) Status(ctx context.Context) (*control.Status, error) {
	var status control.Status
	if err := c.call(ctx, control.MethodStatus, nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// UpdateIntervals changes the given intervals and returns the resulting set.
func (c *Client) UpdateIntervals(ctx context.Context, update control.IntervalUpdate) (control.Intervals, error) {
	var out struct {
		Intervals control.Intervals `json:"intervals"`
	}
	if err := c.call(ctx, control.MethodUpdateInterval, update, &out); err != nil {
		return control.Intervals{}, err
	}
	return out.Intervals, nil
}

// Logs fetches up to limit of the newest crawler log entries.
func (c *Client) Logs(ctx context.Context, limit int) ([]logger.LogEntry, error) {
	url := c.baseURL + "/logs?limit=" + strconv.Itoa(limit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("logs: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, ErrLogsDisabled
	default:
		return nil, fmt.Errorf("logs: unexpected status %d", resp.StatusCode)
	}

	var entries []logger.LogEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("logs: decode: %w", err)
	}
	return entries, nil
}
