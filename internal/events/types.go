// internal/events/types.go
package events

import (
	"time"

	"github.com/rovshanmuradov/leaderboard-crawler/internal/domain"
)

// EventType represents the type of event.
type EventType string

const (
	// PositionInit is the first snapshot ever accepted for a trader.
	PositionInit EventType = "position.init"
	// PositionChanged is a non-empty diff against the last accepted snapshot.
	PositionChanged EventType = "position.changed"
)

// Event is the base interface for all queued persistence events.
type Event interface {
	Type() EventType
	Timestamp() time.Time
	TraderUID() string
}

// BaseEvent provides common fields for all events.
type BaseEvent struct {
	EventType EventType
	EventTime time.Time
	UID       string
}

// Type returns the event type.
func (e BaseEvent) Type() EventType {
	return e.EventType
}

// Timestamp returns when the event occurred.
func (e BaseEvent) Timestamp() time.Time {
	return e.EventTime
}

// TraderUID returns the trader the event belongs to.
func (e BaseEvent) TraderUID() string {
	return e.UID
}

// InitEvent carries the first accepted snapshot of a trader.
type InitEvent struct {
	BaseEvent
	Positions domain.Snapshot
}

// ChangedEvent carries both snapshots and the diff between them.
type ChangedEvent struct {
	BaseEvent
	Old  domain.Snapshot
	New  domain.Snapshot
	Diff domain.DiffResult
}

// NewInitEvent builds an InitEvent that owns a private copy of positions.
func NewInitEvent(uid string, positions domain.Snapshot, at time.Time) *InitEvent {
	return &InitEvent{
		BaseEvent: BaseEvent{EventType: PositionInit, EventTime: at, UID: uid},
		Positions: positions.Clone(),
	}
}

// NewChangedEvent builds a ChangedEvent that owns private copies of both snapshots.
func NewChangedEvent(uid string, old, current domain.Snapshot, diff domain.DiffResult, at time.Time) *ChangedEvent {
	return &ChangedEvent{
		BaseEvent: BaseEvent{EventType: PositionChanged, EventTime: at, UID: uid},
		Old:       old.Clone(),
		New:       current.Clone(),
		Diff:      diff,
	}
}
