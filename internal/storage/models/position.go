// internal/storage/models/position.go
package models

import "github.com/rovshanmuradov/leaderboard-crawler/internal/domain"

// CurrentPositions holds the last accepted snapshot of a trader.
type CurrentPositions struct {
	UID string `gorm:"primaryKey;type:varchar(64)"`
	RecordStamp
	Positions []domain.Position `gorm:"serializer:json"`
}

// PositionOperation is the immutable audit record of one detected change.
type PositionOperation struct {
	ID string `gorm:"primaryKey;type:varchar(36)"`
	RecordStamp
	UID  string            `gorm:"index;not null;type:varchar(64)"`
	New  []domain.Position `gorm:"serializer:json"`
	Old  []domain.Position `gorm:"serializer:json"`
	Diff domain.DiffResult `gorm:"serializer:json"`
}

func CurrentPositionsFromDomain(r domain.PositionRecord) CurrentPositions {
	positions := r.Positions
	if positions == nil {
		positions = []domain.Position{}
	}
	return CurrentPositions{UID: r.UID, RecordStamp: StampOf(r.RecordTime), Positions: positions}
}

func PositionOperationFromDomain(a domain.PositionAudit) PositionOperation {
	return PositionOperation{
		ID:          a.ID,
		RecordStamp: StampOf(a.RecordTime),
		UID:         a.UID,
		New:         a.New,
		Old:         a.Old,
		Diff:        a.Diff,
	}
}
