// internal/storage/models/trader.go
package models

import (
	"time"

	"github.com/rovshanmuradov/leaderboard-crawler/internal/domain"
)

type Trader struct {
	UID            string `gorm:"primaryKey;type:varchar(64)"`
	Nickname       string `gorm:"type:varchar(100)"`
	CrawlStatus    bool   `gorm:"index;not null"`
	PositionShared bool   `gorm:"not null"`
	CreateAt       time.Time
	LastUpdate     time.Time
}

func TraderFromDomain(t domain.Trader) Trader {
	return Trader{
		UID:            t.UID,
		Nickname:       t.Nickname,
		CrawlStatus:    t.CrawlStatus,
		PositionShared: t.PositionShared,
		CreateAt:       t.CreateAt,
		LastUpdate:     t.LastUpdate,
	}
}

func (t Trader) Domain() domain.Trader {
	return domain.Trader{
		UID:            t.UID,
		Nickname:       t.Nickname,
		CrawlStatus:    t.CrawlStatus,
		PositionShared: t.PositionShared,
		CreateAt:       t.CreateAt,
		LastUpdate:     t.LastUpdate,
	}
}
