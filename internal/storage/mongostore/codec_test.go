// internal/storage/mongostore/codec_test.go
package mongostore

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsonrw"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/rovshanmuradov/leaderboard-crawler/internal/domain"
)

func marshal(t *testing.T, v interface{}) []byte {
	t.Helper()
	buf := new(bsonrw.SliceWriter)
	vw, err := bsonrw.NewBSONValueWriter(buf)
	require.NoError(t, err)
	enc, err := bson.NewEncoder(vw)
	require.NoError(t, err)
	require.NoError(t, enc.SetRegistry(NewRegistry()))
	require.NoError(t, enc.Encode(v))
	return *buf
}

func unmarshal(t *testing.T, data []byte, out interface{}) {
	t.Helper()
	dec, err := bson.NewDecoder(bsonrw.NewBSONDocumentReader(data))
	require.NoError(t, err)
	require.NoError(t, dec.SetRegistry(NewRegistry()))
	require.NoError(t, dec.Decode(out))
}

func TestDecimalCodec_RoundTrip(t *testing.T) {
	p := domain.Position{
		Symbol:     "BTCUSDT",
		Side:       domain.SideLong,
		Leverage:   20,
		Amount:     decimal.RequireFromString("0.123456789012345678"),
		EntryPrice: decimal.RequireFromString("64123.10"),
		MarkPrice:  decimal.RequireFromString("64200"),
	}

	var raw bson.M
	unmarshal(t, marshal(t, p), &raw)
	assert.Equal(t, "0.123456789012345678", raw["amount"], "decimals are stored as strings")

	var got domain.Position
	unmarshal(t, marshal(t, p), &got)
	assert.True(t, p.SamePosition(got))
	assert.True(t, p.MarkPrice.Equal(got.MarkPrice))
}

func TestDecimalCodec_AcceptsNumbers(t *testing.T) {
	d128, err := primitive.ParseDecimal128("12.5")
	require.NoError(t, err)

	tests := []struct {
		name  string
		value interface{}
		want  string
	}{
		{"double", 1.25, "1.25"},
		{"int32", int32(7), "7"},
		{"int64", int64(-3), "-3"},
		{"decimal128", d128, "12.5"},
		{"string", "0.001", "0.001"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := marshal(t, bson.M{"amount": tt.value})

			var got struct {
				Amount decimal.Decimal `bson:"amount"`
			}
			unmarshal(t, data, &got)
			assert.True(t, decimal.RequireFromString(tt.want).Equal(got.Amount), "got %s", got.Amount)
		})
	}
}

func TestDocuments(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)

	rank := rankDocument(domain.RankResult{RecordTime: at, Payload: map[string]any{"periodType": "WEEKLY"}})
	assert.Equal(t, "2024-03-01 12:30:00", rank["record_time"])
	assert.InDelta(t, float64(at.Unix()), rank["record_time_stamp"], 0.001)
	assert.Contains(t, rank, "rank_list")

	info := infoDocument(domain.InfoRecord{Kind: domain.InfoBaseInfo, RecordTime: at, UID: "u1", Data: map[string]any{"positionShared": true}})
	assert.Contains(t, info, "base_info")
	assert.NotContains(t, info, "performance")

	perf := infoDocument(domain.InfoRecord{Kind: domain.InfoPerformance, RecordTime: at, UID: "u1"})
	assert.Contains(t, perf, "performance")

	audit := auditDocument(domain.PositionAudit{ID: "id-1", RecordTime: at, UID: "u1"})
	assert.Equal(t, "id-1", audit["_id"])
	diff := audit["diff"].(bson.M)
	assert.Equal(t, []domain.Position{}, diff["added"])
	assert.Equal(t, []domain.Position{}, diff["removed"])

	pos := positionDocument(domain.PositionRecord{RecordTime: at, UID: "u1"})
	assert.Equal(t, []domain.Position{}, pos["positions"])
}

func TestBoardInfoDocument_Decode(t *testing.T) {
	data := marshal(t, bson.M{"uid": "u1", "base_info": bson.M{"positionShared": true, "nickName": "x"}})

	var doc boardInfoDocument
	unmarshal(t, data, &doc)
	assert.Equal(t, "u1", doc.UID)
	assert.True(t, doc.BaseInfo.PositionShared)
}
