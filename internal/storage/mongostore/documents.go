// internal/storage/mongostore/documents.go
package mongostore

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/rovshanmuradov/leaderboard-crawler/internal/domain"
)

func stamp(t time.Time) bson.M {
	return bson.M{
		"record_time":       domain.FormatTime(t),
		"record_time_stamp": domain.UnixSeconds(t),
	}
}

func rankDocument(r domain.RankResult) bson.M {
	doc := stamp(r.RecordTime)
	doc["payload"] = r.Payload
	doc["rank_list"] = r.RankList
	return doc
}

// infoField is the key holding the raw response in performance and board_info documents.
func infoField(kind domain.InfoKind) string {
	if kind == domain.InfoBaseInfo {
		return "base_info"
	}
	return "performance"
}

func infoDocument(r domain.InfoRecord) bson.M {
	doc := stamp(r.RecordTime)
	doc["uid"] = r.UID
	doc[infoField(r.Kind)] = r.Data
	return doc
}

func positionDocument(r domain.PositionRecord) bson.M {
	positions := r.Positions
	if positions == nil {
		positions = []domain.Position{}
	}
	doc := stamp(r.RecordTime)
	doc["uid"] = r.UID
	doc["positions"] = positions
	return doc
}

func auditDocument(a domain.PositionAudit) bson.M {
	doc := stamp(a.RecordTime)
	doc["_id"] = a.ID
	doc["uid"] = a.UID
	doc["new"] = nonNil(a.New)
	doc["old"] = nonNil(a.Old)
	doc["diff"] = bson.M{
		"removed": nonNil(a.Diff.Removed),
		"added":   nonNil(a.Diff.Added),
		"changed": a.Diff.Changed,
	}
	return doc
}

func nonNil(p []domain.Position) []domain.Position {
	if p == nil {
		return []domain.Position{}
	}
	return p
}

type positionsDocument struct {
	UID       string            `bson:"uid"`
	Positions []domain.Position `bson:"positions"`
}

type boardInfoDocument struct {
	UID      string `bson:"uid"`
	BaseInfo struct {
		PositionShared bool `bson:"positionShared"`
	} `bson:"base_info"`
}
