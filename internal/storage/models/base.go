// internal/storage/models/base.go
package models

import (
	"time"

	"github.com/rovshanmuradov/leaderboard-crawler/internal/domain"
)

// BaseModel заменяет gorm.Model для большего контроля
type BaseModel struct {
	ID        uint      `gorm:"primarykey"`
	CreatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP"`
}

// RecordStamp is the pair of timestamps every crawl record carries.
type RecordStamp struct {
	RecordTime      string  `gorm:"type:varchar(19)"`
	RecordTimeStamp float64 `gorm:"index"`
}

// StampOf renders t as a RecordStamp.
func StampOf(t time.Time) RecordStamp {
	return RecordStamp{RecordTime: domain.FormatTime(t), RecordTimeStamp: domain.UnixSeconds(t)}
}
