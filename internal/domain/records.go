// internal/domain/records.go
package domain

import "time"

// TimeFormat is the layout used for every human readable record timestamp.
const TimeFormat = "2006-01-02 15:04:05"

// FormatTime renders t with TimeFormat.
func FormatTime(t time.Time) string {
	return t.Format(TimeFormat)
}

// UnixSeconds returns t as fractional seconds since the epoch.
func UnixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

// RankResult is one raw rank-list response stored verbatim with the request that produced it.
type RankResult struct {
	RecordTime time.Time
	Payload    map[string]any
	RankList   []map[string]any
}

// InfoKind distinguishes the two per-trader info records.
type InfoKind string

const (
	InfoPerformance InfoKind = "performance"
	InfoBaseInfo    InfoKind = "base_info"
)

// InfoRecord is a raw performance or base-info response for one trader.
type InfoRecord struct {
	Kind       InfoKind
	RecordTime time.Time
	UID        string
	Data       any
}

// PositionRecord is the canonical "current positions" record, upserted by uid.
type PositionRecord struct {
	RecordTime time.Time
	UID        string
	Positions  []Position
}

// PositionAudit is the append-only record of one detected change.
type PositionAudit struct {
	ID         string
	RecordTime time.Time
	UID        string
	New        []Position
	Old        []Position
	Diff       DiffResult
}
