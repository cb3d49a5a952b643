package ui

import (
	"time"

	"github.com/rovshanmuradov/leaderboard-crawler/internal/control"
	"github.com/rovshanmuradov/leaderboard-crawler/internal/logger"
)

// StatusMsg carries a fresh status snapshot.
type StatusMsg struct {
	Status *control.Status
	At     time.Time
}

// LogsMsg carries the newest log entries.
type LogsMsg struct {
	Entries []logger.LogEntry
}

// IntervalsMsg is the result of an interval update.
type IntervalsMsg struct {
	Intervals control.Intervals
}

// ErrMsg reports a failed control call.
type ErrMsg struct {
	Err error
}

type tickMsg time.Time
