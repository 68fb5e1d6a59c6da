// Package postgres provides the durable BonusResultStore on PostgreSQL via
// gorm.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/vampfi/bonus-engine/internal/config"
	"github.com/vampfi/bonus-engine/pkg/bonusTypes"
	"github.com/vampfi/bonus-engine/pkg/storage"
	"go.uber.org/zap"
	pgDriver "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormLogger "gorm.io/gorm/logger"
)

const sslMode = "disable"

func connectionString(cfg *config.DatabaseConfig) string {
	authString := ""
	if cfg.User != "" {
		authString = fmt.Sprintf("%s user=%s", authString, cfg.User)
	}
	if cfg.Password != "" {
		authString = fmt.Sprintf("%s password=%s", authString, cfg.Password)
	}

	baseString := fmt.Sprintf("host=%s %s dbname=%s port=%d sslmode=%s TimeZone=UTC",
		cfg.Host,
		authString,
		cfg.DbName,
		cfg.Port,
		sslMode,
	)
	if cfg.SchemaName != "" {
		baseString = fmt.Sprintf("%s search_path=%s", baseString, cfg.SchemaName)
	}
	return baseString
}

// NewGormConnection opens a gorm session on top of a raw lib/pq connection.
func NewGormConnection(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	pgDb, err := sql.Open("postgres", connectionString(cfg))
	if err != nil {
		return nil, errors.Wrap(err, "failed to open postgres connection")
	}

	db, err := gorm.Open(pgDriver.New(pgDriver.Config{
		Conn: pgDb,
	}), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to open gorm session")
	}
	return db, nil
}

type PostgresBonusResultStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewPostgresBonusResultStore(db *gorm.DB, l *zap.Logger) (*PostgresBonusResultStore, error) {
	if err := db.AutoMigrate(&storage.BonusRecord{}); err != nil {
		return nil, errors.Wrap(err, "failed to migrate bonus records table")
	}
	return &PostgresBonusResultStore{
		db:     db,
		logger: l,
	}, nil
}

func (s *PostgresBonusResultStore) SaveResult(ctx context.Context, result *bonusTypes.BonusResult, scope string) error {
	record, err := storage.MarshalResult(result, scope, time.Now().UTC())
	if err != nil {
		return err
	}

	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "wallet"}, {Name: "chain"}, {Name: "scope"}},
		UpdateAll: true,
	}).Create(record)
	if res.Error != nil {
		return errors.Wrap(res.Error, "failed to save bonus result")
	}

	s.logger.Sugar().Debugw("Saved bonus result",
		zap.String("wallet", result.Wallet),
		zap.String("chain", result.Chain),
		zap.String("scope", scope),
		zap.Int64("totalScore", result.TotalScore),
	)
	return nil
}

func (s *PostgresBonusResultStore) GetResult(ctx context.Context, wallet string, chain string, scope string) (*bonusTypes.BonusResult, time.Time, error) {
	var record storage.BonusRecord
	res := s.db.WithContext(ctx).Where("wallet = ? AND chain = ? AND scope = ?", wallet, chain, scope).First(&record)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return nil, time.Time{}, storage.ErrResultNotFound
		}
		return nil, time.Time{}, errors.Wrap(res.Error, "failed to load bonus result")
	}

	result, err := storage.UnmarshalResult(&record)
	if err != nil {
		return nil, time.Time{}, err
	}
	return result, record.LastScannedAt, nil
}

func (s *PostgresBonusResultStore) EligibleForRescan(ctx context.Context, wallet string, chain string, scope string, cooldown time.Duration) (bool, error) {
	var record storage.BonusRecord
	res := s.db.WithContext(ctx).Select("last_scanned_at").Where("wallet = ? AND chain = ? AND scope = ?", wallet, chain, scope).First(&record)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return true, nil
		}
		return false, errors.Wrap(res.Error, "failed to check rescan eligibility")
	}
	return time.Now().UTC().Sub(record.LastScannedAt) >= cooldown, nil
}
