// internal/storage/sqlstore/sqlstore.go
package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/rovshanmuradov/leaderboard-crawler/internal/domain"
	"github.com/rovshanmuradov/leaderboard-crawler/internal/storage"
	"github.com/rovshanmuradov/leaderboard-crawler/internal/storage/models"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Table names. The summary_ tables hold the latest view, the others the full history.
const (
	tableTraders            = "traders"
	tableSummaryTraders     = "summary_traders"
	tableRanks              = "ranks"
	tableSummaryRanks       = "summary_ranks"
	tablePerformance        = "performances"
	tableSummaryPerformance = "summary_performances"
	tableBoardInfo          = "board_infos"
	tableSummaryBoardInfo   = "summary_board_infos"
	tablePositions          = "positions"
	tableOperations         = "position_operations"
)

// Store реализует интерфейс storage.Storage поверх GORM
type Store struct {
	db     *gorm.DB
	driver string
	logger *zap.Logger
}

var _ storage.Storage = (*Store)(nil)

// Open connects to a sqlite file or a postgres DSN.
func Open(driver, dsn string, zapLogger *zap.Logger) (*Store, error) {
	var dialector gorm.Dialector
	switch driver {
	case DriverSQLite:
		dialector = sqlite.Open(dsn)
	case DriverPostgres:
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported sql driver %q", driver)
	}

	gormLogger := newGormLogger(zapLogger.Named("gorm"))
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormLogger,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
		DisableForeignKeyConstraintWhenMigrating: true,
		SkipDefaultTransaction:                   true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	// Настройка пула соединений
	if driver == DriverSQLite {
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(100)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	return &Store{db: db, driver: driver, logger: zapLogger.Named("sqlstore")}, nil
}

// RunMigrations создает таблицы через GORM AutoMigrate
func (s *Store) RunMigrations(ctx context.Context) error {
	db := s.db.WithContext(ctx)

	if s.driver == DriverPostgres {
		var lockObtained bool
		if err := db.Raw("SELECT pg_try_advisory_lock(101)").Scan(&lockObtained).Error; err != nil {
			return fmt.Errorf("failed to acquire migration lock: %w", err)
		}
		if !lockObtained {
			return fmt.Errorf("another migration is in progress")
		}
		defer db.Exec("SELECT pg_advisory_unlock(101)")
	}

	tables := []struct {
		name  string
		model interface{}
	}{
		{tableTraders, &models.Trader{}},
		{tableSummaryTraders, &models.Trader{}},
		{tableRanks, &models.RankResult{}},
		{tableSummaryRanks, &models.RankResult{}},
		{tablePerformance, &models.InfoHistory{}},
		{tableSummaryPerformance, &models.InfoSummary{}},
		{tableBoardInfo, &models.InfoHistory{}},
		{tableSummaryBoardInfo, &models.InfoSummary{}},
		{tablePositions, &models.CurrentPositions{}},
		{tableOperations, &models.PositionOperation{}},
	}
	for _, t := range tables {
		if err := db.Table(t.name).AutoMigrate(t.model); err != nil {
			return fmt.Errorf("failed to migrate %s: %w", t.name, err)
		}
	}

	s.logger.Info("Database migrated", zap.String("driver", s.driver), zap.Int("tables", len(tables)))
	return nil
}

func (s *Store) InsertTrader(ctx context.Context, trader domain.Trader) error {
	db := s.db.WithContext(ctx)
	for _, table := range []string{tableTraders, tableSummaryTraders} {
		row := models.TraderFromDomain(trader)
		if err := db.Table(table).Create(&row).Error; err != nil {
			return fmt.Errorf("insert trader into %s: %w", table, err)
		}
	}
	return nil
}

func (s *Store) SetTraderShared(ctx context.Context, uid string, shared bool, at time.Time) error {
	db := s.db.WithContext(ctx)
	for _, table := range []string{tableTraders, tableSummaryTraders} {
		err := db.Table(table).
			Where("uid = ?", uid).
			Updates(map[string]interface{}{
				"position_shared": shared,
				"last_update":     at,
			}).Error
		if err != nil {
			return fmt.Errorf("update trader in %s: %w", table, err)
		}
	}
	return nil
}

func (s *Store) ActiveTraders(ctx context.Context) ([]domain.Trader, error) {
	var rows []models.Trader
	err := s.db.WithContext(ctx).
		Table(tableSummaryTraders).
		Where("crawl_status = ?", true).
		Order("create_at, uid").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list traders: %w", err)
	}

	traders := make([]domain.Trader, 0, len(rows))
	for _, r := range rows {
		traders = append(traders, r.Domain())
	}
	return traders, nil
}

func (s *Store) ClearSummaryRanks(ctx context.Context, before time.Time) error {
	return s.db.WithContext(ctx).
		Table(tableSummaryRanks).
		Where("record_time_stamp < ?", domain.UnixSeconds(before)).
		Delete(&models.RankResult{}).Error
}

func (s *Store) InsertRankResult(ctx context.Context, result domain.RankResult) error {
	db := s.db.WithContext(ctx)
	for _, table := range []string{tableRanks, tableSummaryRanks} {
		row := models.RankResultFromDomain(result)
		if err := db.Table(table).Create(&row).Error; err != nil {
			return fmt.Errorf("insert rank result into %s: %w", table, err)
		}
	}
	return nil
}

func (s *Store) SaveInfo(ctx context.Context, record domain.InfoRecord) error {
	history, summary, err := models.InfoFromDomain(record)
	if err != nil {
		return err
	}

	historyTable, summaryTable := tablePerformance, tableSummaryPerformance
	if record.Kind == domain.InfoBaseInfo {
		historyTable, summaryTable = tableBoardInfo, tableSummaryBoardInfo
	}

	db := s.db.WithContext(ctx)
	if err := db.Table(historyTable).Create(&history).Error; err != nil {
		return fmt.Errorf("insert %s: %w", historyTable, err)
	}
	err = db.Table(summaryTable).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "uid"}}, UpdateAll: true}).
		Create(&summary).Error
	if err != nil {
		return fmt.Errorf("upsert %s: %w", summaryTable, err)
	}
	return nil
}

func (s *Store) SharedFlags(ctx context.Context) (map[string]bool, error) {
	var rows []models.InfoSummary
	if err := s.db.WithContext(ctx).Table(tableSummaryBoardInfo).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list base info: %w", err)
	}

	flags := make(map[string]bool, len(rows))
	for _, r := range rows {
		flags[r.UID] = r.PositionShared
	}
	return flags, nil
}

func (s *Store) UpsertPositions(ctx context.Context, record domain.PositionRecord) error {
	row := models.CurrentPositionsFromDomain(record)
	return s.db.WithContext(ctx).
		Table(tablePositions).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "uid"}}, UpdateAll: true}).
		Create(&row).Error
}

func (s *Store) InsertPositionAudit(ctx context.Context, audit domain.PositionAudit) error {
	row := models.PositionOperationFromDomain(audit)
	return s.db.WithContext(ctx).Table(tableOperations).Create(&row).Error
}

func (s *Store) CurrentPositions(ctx context.Context, uid string) (domain.Snapshot, error) {
	var row models.CurrentPositions
	err := s.db.WithContext(ctx).Table(tablePositions).Where("uid = ?", uid).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load positions: %w", err)
	}
	return domain.Snapshot(row.Positions), nil
}

// Audits returns the audit trail of uid, oldest first.
func (s *Store) Audits(ctx context.Context, uid string) ([]domain.PositionAudit, error) {
	var rows []models.PositionOperation
	err := s.db.WithContext(ctx).
		Table(tableOperations).
		Where("uid = ?", uid).
		Order("record_time_stamp").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list audits: %w", err)
	}

	out := make([]domain.PositionAudit, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.PositionAudit{
			ID:   r.ID,
			UID:  r.UID,
			New:  r.New,
			Old:  r.Old,
			Diff: r.Diff,
		})
	}
	return out, nil
}

func (s *Store) Close(_ context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
