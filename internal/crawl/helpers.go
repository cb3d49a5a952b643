// internal/crawl/helpers.go
package crawl

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/leaderboard-crawler/internal/control"
	"github.com/rovshanmuradov/leaderboard-crawler/internal/domain"
	"github.com/rovshanmuradov/leaderboard-crawler/internal/leaderboard"
	"github.com/rovshanmuradov/leaderboard-crawler/internal/metrics"
)

// Endpoint labels used for request metrics.
const (
	endpointRank        = "rank"
	endpointPerformance = "performance"
	endpointBaseInfo    = "base_info"
	endpointPosition    = "position"
)

// IntervalSource provides the live inter-request sleeps.
type IntervalSource interface {
	Intervals() control.Intervals
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// sleepCtx waits d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func sweepLogger(logger *zap.Logger, kind SweepKind) *zap.Logger {
	return logger.With(
		zap.String("sweep", string(kind)),
		zap.String("sweep_id", uuid.NewString()),
	)
}

func requestOutcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.Is(err, leaderboard.ErrThrottled):
		return metrics.OutcomeThrottled
	case errors.Is(err, leaderboard.ErrNoData), errors.Is(err, leaderboard.ErrUnsuccessful):
		return metrics.OutcomeNoData
	default:
		return metrics.OutcomeFailed
	}
}

func logRequestFailure(logger *zap.Logger, msg string, err error, fields ...zap.Field) {
	if errors.Is(err, leaderboard.ErrThrottled) {
		logger.Warn(msg, append(fields, zap.String("reason", "throttled"))...)
		return
	}
	logger.Warn(msg, append(fields, zap.Error(err))...)
}

// safeStep runs one per-trader step, turning a panic into a log entry.
func safeStep(logger *zap.Logger, uid string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Recovered panic in crawl step",
				zap.String("uid", uid),
				zap.Any("panic", r),
				zap.Stack("stack"))
		}
	}()
	fn()
}

func statusTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return domain.FormatTime(t)
}
