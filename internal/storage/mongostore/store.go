// internal/storage/mongostore/store.go
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/leaderboard-crawler/internal/domain"
	"github.com/rovshanmuradov/leaderboard-crawler/internal/storage"
)

// Default database names: one for the full history, one for the latest view.
const (
	DefaultDatabase        = "binance_crawl_futures_umargin"
	DefaultSummaryDatabase = "binance_crawl_futures_umargin_summary"
)

const (
	colTrader      = "trader"
	colRank        = "rank"
	colBoardInfo   = "board_info"
	colPerformance = "performance"
	colPosition    = "position"
	colOperations  = "operations"
)

// Options configures the connection.
type Options struct {
	URI             string
	Database        string
	SummaryDatabase string
	ConnectTries    uint
}

// Store реализует storage.Storage поверх MongoDB
type Store struct {
	client  *mongo.Client
	db      *mongo.Database
	summary *mongo.Database
	logger  *zap.Logger
}

var _ storage.Storage = (*Store)(nil)

// Connect dials the server, retrying with exponential backoff until it answers a ping.
func Connect(ctx context.Context, opts Options, logger *zap.Logger) (*Store, error) {
	logger = logger.Named("mongostore")
	if opts.Database == "" {
		opts.Database = DefaultDatabase
	}
	if opts.SummaryDatabase == "" {
		opts.SummaryDatabase = DefaultSummaryDatabase
	}
	if opts.ConnectTries == 0 {
		opts.ConnectTries = 5
	}

	clientOpts := options.Client().ApplyURI(opts.URI).SetRegistry(NewRegistry())
	operation := func() (*mongo.Client, error) {
		client, err := mongo.Connect(ctx, clientOpts)
		if err != nil {
			return nil, backoff.Permanent(fmt.Errorf("invalid mongo options: %w", err))
		}
		if err := client.Ping(ctx, readpref.Primary()); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, err
		}
		return client, nil
	}
	notify := func(err error, d time.Duration) {
		logger.Warn("Mongo not reachable, retrying", zap.Error(err), zap.Duration("backoff", d))
	}

	client, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(opts.ConnectTries),
		backoff.WithNotify(notify))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}

	s := &Store{
		client:  client,
		db:      client.Database(opts.Database),
		summary: client.Database(opts.SummaryDatabase),
		logger:  logger,
	}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	logger.Info("🍃 Connected to mongo",
		zap.String("database", opts.Database),
		zap.String("summary_database", opts.SummaryDatabase))
	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	unique := func(key string) mongo.IndexModel {
		return mongo.IndexModel{Keys: bson.D{{Key: key, Value: 1}}, Options: options.Index().SetUnique(true)}
	}
	plain := func(key string) mongo.IndexModel {
		return mongo.IndexModel{Keys: bson.D{{Key: key, Value: 1}}}
	}

	indexes := []struct {
		col   *mongo.Collection
		model mongo.IndexModel
	}{
		{s.db.Collection(colTrader), unique("uid")},
		{s.summary.Collection(colTrader), unique("uid")},
		{s.summary.Collection(colRank), plain("record_time_stamp")},
		{s.summary.Collection(colBoardInfo), unique("uid")},
		{s.summary.Collection(colPerformance), unique("uid")},
		{s.db.Collection(colPosition), unique("uid")},
		{s.db.Collection(colOperations), plain("uid")},
	}
	for _, idx := range indexes {
		if _, err := idx.col.Indexes().CreateOne(ctx, idx.model); err != nil {
			return fmt.Errorf("create index on %s: %w", idx.col.Name(), err)
		}
	}
	return nil
}

func (s *Store) InsertTrader(ctx context.Context, trader domain.Trader) error {
	for _, col := range []*mongo.Collection{s.db.Collection(colTrader), s.summary.Collection(colTrader)} {
		if _, err := col.InsertOne(ctx, trader); err != nil {
			return fmt.Errorf("insert trader into %s.%s: %w", col.Database().Name(), col.Name(), err)
		}
	}
	return nil
}

func (s *Store) SetTraderShared(ctx context.Context, uid string, shared bool, at time.Time) error {
	update := bson.M{"$set": bson.M{"position_shared": shared, "last_update": at}}
	for _, col := range []*mongo.Collection{s.db.Collection(colTrader), s.summary.Collection(colTrader)} {
		if _, err := col.UpdateOne(ctx, bson.M{"uid": uid}, update); err != nil {
			return fmt.Errorf("update trader in %s.%s: %w", col.Database().Name(), col.Name(), err)
		}
	}
	return nil
}

func (s *Store) ActiveTraders(ctx context.Context) ([]domain.Trader, error) {
	cur, err := s.summary.Collection(colTrader).Find(ctx,
		bson.M{"crawl_status": true},
		options.Find().SetSort(bson.D{{Key: "create_at", Value: 1}, {Key: "uid", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find traders: %w", err)
	}

	var traders []domain.Trader
	if err := cur.All(ctx, &traders); err != nil {
		return nil, fmt.Errorf("decode traders: %w", err)
	}
	return traders, nil
}

func (s *Store) ClearSummaryRanks(ctx context.Context, before time.Time) error {
	_, err := s.summary.Collection(colRank).DeleteMany(ctx,
		bson.M{"record_time_stamp": bson.M{"$lt": domain.UnixSeconds(before)}})
	return err
}

func (s *Store) InsertRankResult(ctx context.Context, result domain.RankResult) error {
	if _, err := s.db.Collection(colRank).InsertOne(ctx, rankDocument(result)); err != nil {
		return fmt.Errorf("insert rank result: %w", err)
	}
	if _, err := s.summary.Collection(colRank).InsertOne(ctx, rankDocument(result)); err != nil {
		return fmt.Errorf("insert summary rank result: %w", err)
	}
	return nil
}

func (s *Store) SaveInfo(ctx context.Context, record domain.InfoRecord) error {
	col := colPerformance
	if record.Kind == domain.InfoBaseInfo {
		col = colBoardInfo
	}

	if _, err := s.db.Collection(col).InsertOne(ctx, infoDocument(record)); err != nil {
		return fmt.Errorf("insert %s: %w", col, err)
	}
	_, err := s.summary.Collection(col).ReplaceOne(ctx,
		bson.M{"uid": record.UID},
		infoDocument(record),
		options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("replace summary %s: %w", col, err)
	}
	return nil
}

func (s *Store) SharedFlags(ctx context.Context) (map[string]bool, error) {
	cur, err := s.summary.Collection(colBoardInfo).Find(ctx, bson.M{},
		options.Find().SetProjection(bson.M{"uid": 1, "base_info.positionShared": 1}))
	if err != nil {
		return nil, fmt.Errorf("find board info: %w", err)
	}

	var docs []boardInfoDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode board info: %w", err)
	}
	flags := make(map[string]bool, len(docs))
	for _, d := range docs {
		flags[d.UID] = d.BaseInfo.PositionShared
	}
	return flags, nil
}

func (s *Store) UpsertPositions(ctx context.Context, record domain.PositionRecord) error {
	_, err := s.db.Collection(colPosition).ReplaceOne(ctx,
		bson.M{"uid": record.UID},
		positionDocument(record),
		options.Replace().SetUpsert(true))
	return err
}

func (s *Store) InsertPositionAudit(ctx context.Context, audit domain.PositionAudit) error {
	_, err := s.db.Collection(colOperations).InsertOne(ctx, auditDocument(audit))
	return err
}

func (s *Store) CurrentPositions(ctx context.Context, uid string) (domain.Snapshot, error) {
	var doc positionsDocument
	err := s.db.Collection(colPosition).FindOne(ctx, bson.M{"uid": uid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find positions: %w", err)
	}
	return domain.Snapshot(doc.Positions), nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
