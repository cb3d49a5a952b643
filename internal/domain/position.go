// internal/domain/position.go
package domain

import (
	"github.com/shopspring/decimal"
)

// Side is the direction of an open position.
type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// SideOf derives the position side from a signed amount.
// Zero amounts are reported as SHORT, matching the upstream convention.
func SideOf(amount decimal.Decimal) Side {
	if amount.IsPositive() {
		return SideLong
	}
	return SideShort
}

// Position is one open futures position of a trader at a fetch instant.
type Position struct {
	Symbol      string          `json:"symbol" bson:"symbol"`
	Side        Side            `json:"position_side" bson:"position_side"`
	Leverage    int             `json:"leverage" bson:"leverage"`
	Amount      decimal.Decimal `json:"amount" bson:"amount"`
	EntryPrice  decimal.Decimal `json:"entry_price" bson:"entry_price"`
	MarkPrice   decimal.Decimal `json:"mark_price" bson:"mark_price"`
	UpdateTime  int64           `json:"update_time" bson:"update_time"`
	PnL         decimal.Decimal `json:"pnl" bson:"pnl"`
	ROE         decimal.Decimal `json:"roe" bson:"roe"`
	Yellow      bool            `json:"yellow" bson:"yellow"`
	TradeBefore bool            `json:"trade_before" bson:"trade_before"`
}

// SameType reports whether both positions share the (symbol, side) identity.
func (p Position) SameType(o Position) bool {
	return p.Symbol == o.Symbol && p.Side == o.Side
}

// SamePosition reports value equality on the fields that define a position change.
// Mark price, pnl and roe move with the market and are ignored.
func (p Position) SamePosition(o Position) bool {
	return p.SameType(o) &&
		p.Leverage == o.Leverage &&
		p.Amount.Equal(o.Amount) &&
		p.EntryPrice.Equal(o.EntryPrice)
}

// Snapshot is the ordered set of a trader's open positions at one fetch instant.
type Snapshot []Position

// Clone returns a copy that does not share the backing array.
func (s Snapshot) Clone() Snapshot {
	if s == nil {
		return nil
	}
	out := make(Snapshot, len(s))
	copy(out, s)
	return out
}

// Change pairs a prior position with the new value it was matched to.
type Change struct {
	From Position `json:"from" bson:"from"`
	To   Position `json:"to" bson:"to"`
}

// DiffResult is the classified difference between two snapshots of one trader.
type DiffResult struct {
	Added   []Position `json:"added" bson:"added"`
	Removed []Position `json:"removed" bson:"removed"`
	Changed []Change   `json:"changed" bson:"changed"`
}

// Empty reports whether nothing was added, removed or changed.
func (d DiffResult) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Changed) == 0
}

// OutcomeKind classifies the result of comparing a fresh snapshot with the last known one.
type OutcomeKind int

const (
	OutcomeNoChange OutcomeKind = iota
	OutcomeInit
	OutcomeChanged
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeInit:
		return "init"
	case OutcomeChanged:
		return "changed"
	default:
		return "no_change"
	}
}

// Outcome is what the diff engine hands back to the position sweep.
type Outcome struct {
	Kind OutcomeKind
	Diff DiffResult
}
