// internal/crawl/daily.go
package crawl

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Clock is a wall-clock time of day.
type Clock struct {
	Hour   int
	Minute int
}

// ParseClock parses "HH:MM".
func ParseClock(s string) (Clock, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return Clock{}, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	return Clock{Hour: t.Hour(), Minute: t.Minute()}, nil
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// Next returns the first occurrence of c strictly after t, in t's location.
func (c Clock) Next(t time.Time) time.Time {
	next := time.Date(t.Year(), t.Month(), t.Day(), c.Hour, c.Minute, 0, 0, t.Location())
	if !next.After(t) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

type dailyJob struct {
	name string
	at   Clock
	next time.Time
	fn   func(ctx context.Context)
}

// Daily runs jobs once a day at fixed times of day. Due jobs are found by
// polling, so a job fires at most one poll period late.
type Daily struct {
	mu     sync.Mutex
	jobs   []*dailyJob
	now    func() time.Time
	logger *zap.Logger
}

// NewDaily creates an empty daily schedule.
func NewDaily(logger *zap.Logger) *Daily {
	return &Daily{
		now:    time.Now,
		logger: logger.Named("daily"),
	}
}

// Add registers fn to run every day at at.
func (d *Daily) Add(name string, at Clock, fn func(ctx context.Context)) {
	d.mu.Lock()
	defer d.mu.Unlock()

	job := &dailyJob{name: name, at: at, next: at.Next(d.now()), fn: fn}
	d.jobs = append(d.jobs, job)
	d.logger.Info("Daily job scheduled",
		zap.String("job", name),
		zap.Stringer("at", at),
		zap.Time("next_run", job.next))
}

// RunPending runs every job that is due, in registration order, and returns how many ran.
func (d *Daily) RunPending(ctx context.Context) int {
	d.mu.Lock()
	now := d.now()
	var due []*dailyJob
	for _, job := range d.jobs {
		if !job.next.After(now) {
			due = append(due, job)
			job.next = job.at.Next(now)
		}
	}
	d.mu.Unlock()

	for _, job := range due {
		if ctx.Err() != nil {
			break
		}
		d.logger.Debug("Running daily job", zap.String("job", job.name))
		job.fn(ctx)
	}
	return len(due)
}

// Run polls for due jobs every poll until ctx is done.
func (d *Daily) Run(ctx context.Context, poll time.Duration) error {
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			d.RunPending(ctx)
		}
	}
}
