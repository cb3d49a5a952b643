// internal/crawl/guard.go
package crawl

import (
	"context"
	"sync"
	"time"
)

// SweepKind identifies a heavy sweep serialized by a Guard.
type SweepKind string

const (
	SweepRank SweepKind = "rank"
	SweepInfo SweepKind = "info"

	// SweepPosition is not guarded; it only labels logs and metrics.
	SweepPosition SweepKind = "position"
)

// DefaultCooldown is the minimum spacing between two runs of the same sweep kind.
const DefaultCooldown = 10 * time.Minute

// Guard is a capacity-1 semaphore shared by every sweep kind, plus an
// independent minimum spacing per kind. Two guarded sweeps never run at once.
type Guard struct {
	sem      chan struct{}
	cooldown time.Duration
	now      func() time.Time

	mu   sync.Mutex
	last map[SweepKind]time.Time
}

// NewGuard creates a guard. A non-positive cooldown falls back to DefaultCooldown.
func NewGuard(cooldown time.Duration) *Guard {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Guard{
		sem:      make(chan struct{}, 1),
		cooldown: cooldown,
		now:      time.Now,
		last:     make(map[SweepKind]time.Time),
	}
}

// Run waits for the semaphore and runs fn unless kind finished less than the
// cooldown ago. ran is false when the call was rejected by the cooldown or ctx
// ended while waiting. The finish time of kind is recorded on every exit path of fn.
func (g *Guard) Run(ctx context.Context, kind SweepKind, fn func(ctx context.Context) error) (ran bool, err error) {
	select {
	case g.sem <- struct{}{}:
	case <-ctx.Done():
		return false, ctx.Err()
	}
	defer func() { <-g.sem }()

	if last, ok := g.Last(kind); ok && g.now().Sub(last) < g.cooldown {
		return false, nil
	}

	defer func() {
		g.mu.Lock()
		g.last[kind] = g.now()
		g.mu.Unlock()
	}()

	return true, fn(ctx)
}

// Last returns the time kind last finished.
func (g *Guard) Last(kind SweepKind) (time.Time, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	t, ok := g.last[kind]
	return t, ok
}
