// internal/storage/models/rank.go
package models

import "github.com/rovshanmuradov/leaderboard-crawler/internal/domain"

// RankResult is a raw rank list together with the query that produced it.
type RankResult struct {
	BaseModel
	RecordStamp
	Payload  map[string]any   `gorm:"serializer:json"`
	RankList []map[string]any `gorm:"serializer:json"`
}

func RankResultFromDomain(r domain.RankResult) RankResult {
	return RankResult{
		RecordStamp: StampOf(r.RecordTime),
		Payload:     r.Payload,
		RankList:    r.RankList,
	}
}
