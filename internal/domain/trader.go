// internal/domain/trader.go
package domain

import "time"

// Trader is a leaderboard participant known to the crawler.
type Trader struct {
	UID            string    `json:"uid" bson:"uid"`
	Nickname       string    `json:"nickname" bson:"nickname"`
	CrawlStatus    bool      `json:"crawl_status" bson:"crawl_status"`
	PositionShared bool      `json:"position_shared" bson:"position_shared"`
	CreateAt       time.Time `json:"create_at" bson:"create_at"`
	LastUpdate     time.Time `json:"last_update" bson:"last_update"`
}

// NewTrader returns a trader first seen at now, tracked for crawling.
func NewTrader(uid, nickname string, now time.Time) Trader {
	return Trader{
		UID:         uid,
		Nickname:    nickname,
		CrawlStatus: true,
		CreateAt:    now,
		LastUpdate:  now,
	}
}
