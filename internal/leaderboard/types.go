// internal/leaderboard/types.go
package leaderboard

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/rovshanmuradov/leaderboard-crawler/internal/domain"
)

// Period types and statistics types accepted by the rank endpoint.
var (
	PeriodTypes     = []string{"DAILY", "WEEKLY", "MONTHLY", "ALL"}
	StatisticsTypes = []string{"PNL", "ROI"}
)

// DefaultTradeType selects USD-margined perpetual futures.
const DefaultTradeType = "PERPETUAL"

// envelope is the common response wrapper of every endpoint.
type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// RankQuery is one cell of the rank sweep parameter grid.
type RankQuery struct {
	IsShared       bool   `json:"isShared"`
	IsTrader       bool   `json:"isTrader"`
	PeriodType     string `json:"periodType"`
	StatisticsType string `json:"statisticsType"`
	TradeType      string `json:"tradeType"`
}

// Payload returns the query as the generic map that is stored with the raw result.
func (q RankQuery) Payload() map[string]any {
	return map[string]any{
		"isShared":       q.IsShared,
		"isTrader":       q.IsTrader,
		"periodType":     q.PeriodType,
		"statisticsType": q.StatisticsType,
		"tradeType":      q.TradeType,
	}
}

// RankEntry is the part of a rank row the crawler acts on.
type RankEntry struct {
	UID            string
	Nickname       string
	PositionShared bool
}

// RankPage holds a rank response both verbatim and parsed.
type RankPage struct {
	Raw     []map[string]any
	Entries []RankEntry
}

// BaseInfo is a trader base-info response.
type BaseInfo struct {
	Raw            map[string]any
	PositionShared bool
}

// PositionRow is one element of data.otherPositionRetList.
type PositionRow struct {
	Symbol          string          `json:"symbol"`
	Leverage        int             `json:"leverage"`
	Amount          decimal.Decimal `json:"amount"`
	EntryPrice      decimal.Decimal `json:"entryPrice"`
	MarkPrice       decimal.Decimal `json:"markPrice"`
	UpdateTimeStamp int64           `json:"updateTimeStamp"`
	PnL             decimal.Decimal `json:"pnl"`
	ROE             decimal.Decimal `json:"roe"`
	Yellow          bool            `json:"yellow"`
	TradeBefore     bool            `json:"tradeBefore"`
}

// Position converts the upstream row into a domain position.
func (r PositionRow) Position() domain.Position {
	return domain.Position{
		Symbol:      r.Symbol,
		Side:        domain.SideOf(r.Amount),
		Leverage:    r.Leverage,
		Amount:      r.Amount,
		EntryPrice:  r.EntryPrice,
		MarkPrice:   r.MarkPrice,
		UpdateTime:  r.UpdateTimeStamp,
		PnL:         r.PnL,
		ROE:         r.ROE,
		Yellow:      r.Yellow,
		TradeBefore: r.TradeBefore,
	}
}

// Snapshot converts a full row list, preserving order.
func Snapshot(rows []PositionRow) domain.Snapshot {
	out := make(domain.Snapshot, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Position())
	}
	return out
}

type positionData struct {
	List *[]PositionRow `json:"otherPositionRetList"`
}
