// internal/storage/models/info.go
package models

import (
	"encoding/json"
	"fmt"

	"github.com/rovshanmuradov/leaderboard-crawler/internal/domain"
)

// InfoHistory is one performance or base-info response, append-only.
type InfoHistory struct {
	BaseModel
	RecordStamp
	UID  string `gorm:"index;not null;type:varchar(64)"`
	Data string `gorm:"type:text"`
}

// InfoSummary is the latest performance or base-info response of a trader.
type InfoSummary struct {
	UID string `gorm:"primaryKey;type:varchar(64)"`
	RecordStamp
	Data string `gorm:"type:text"`
	// PositionShared is only meaningful for base info.
	PositionShared bool `gorm:"not null"`
}

// InfoFromDomain encodes a record for both tables.
func InfoFromDomain(r domain.InfoRecord) (InfoHistory, InfoSummary, error) {
	raw, err := json.Marshal(r.Data)
	if err != nil {
		return InfoHistory{}, InfoSummary{}, fmt.Errorf("encode %s: %w", r.Kind, err)
	}

	stamp := StampOf(r.RecordTime)
	summary := InfoSummary{UID: r.UID, RecordStamp: stamp, Data: string(raw)}
	if r.Kind == domain.InfoBaseInfo {
		if m, ok := r.Data.(map[string]any); ok {
			summary.PositionShared, _ = m["positionShared"].(bool)
		}
	}
	return InfoHistory{RecordStamp: stamp, UID: r.UID, Data: string(raw)}, summary, nil
}
