package kv

import (
	"context"
	"errors"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Record is one persisted key-value pair.
type Record struct {
	Key   string `gorm:"primaryKey;type:varchar(128)"`
	Value string `gorm:"type:text;not null"`
}

func (Record) TableName() string { return "kv_records" }

// sqliteStore implements Store over an embedded sqlite database.
type sqliteStore struct {
	db *gorm.DB
}

func newSQLiteStore(config *storeConfig) (Store, error) {
	db := config.gormDB
	if db == nil {
		if config.sqlitePath == "" {
			return nil, ErrInvalidConfig
		}
		var err error
		db, err = gorm.Open(sqlite.Open(config.sqlitePath), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		if err != nil {
			return nil, err
		}
	}
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, err
	}
	return &sqliteStore{db: db}, nil
}

func (s *sqliteStore) Get(ctx context.Context, key string) (string, error) {
	var rec Record
	if err := s.db.WithContext(ctx).First(&rec, "key = ?", key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrNotFound
		}
		return "", err
	}
	return rec.Value, nil
}

func (s *sqliteStore) Set(ctx context.Context, key, value string) error {
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value"}),
		}).
		Create(&Record{Key: key, Value: value}).Error
}

func (s *sqliteStore) Delete(ctx context.Context, key string) error {
	return s.db.WithContext(ctx).Delete(&Record{}, "key = ?", key).Error
}

func (s *sqliteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
