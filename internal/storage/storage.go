// internal/storage/storage.go
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/rovshanmuradov/leaderboard-crawler/internal/domain"
)

// ErrNotFound is returned by lookups that match no record.
var ErrNotFound = errors.New("storage: not found")

// Storage определяет интерфейс для работы с хранилищем.
// Every write is independent: there is no transactional coupling across record kinds.
type Storage interface {
	// Трейдеры
	InsertTrader(ctx context.Context, trader domain.Trader) error
	SetTraderShared(ctx context.Context, uid string, shared bool, at time.Time) error
	ActiveTraders(ctx context.Context) ([]domain.Trader, error)

	// Рейтинг
	ClearSummaryRanks(ctx context.Context, before time.Time) error
	InsertRankResult(ctx context.Context, result domain.RankResult) error

	// Performance / base info
	SaveInfo(ctx context.Context, record domain.InfoRecord) error
	SharedFlags(ctx context.Context) (map[string]bool, error)

	// Позиции
	UpsertPositions(ctx context.Context, record domain.PositionRecord) error
	InsertPositionAudit(ctx context.Context, audit domain.PositionAudit) error
	CurrentPositions(ctx context.Context, uid string) (domain.Snapshot, error)

	Close(ctx context.Context) error
}
