package infrastructure

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/yourusername/ytgrab-go/internal/domain"
)

// DefaultHistoryLimit bounds ListHistory when no positive limit is given
const DefaultHistoryLimit = 50

// SQLiteHistoryStore implements domain.HistorySink and domain.HistoryReader using SQLite
type SQLiteHistoryStore struct {
	db *gorm.DB
}

// NewSQLiteHistoryStore opens (creating if needed) the history database
func NewSQLiteHistoryStore(dbPath string) (*SQLiteHistoryStore, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.AutoMigrate(&domain.HistoryRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &SQLiteHistoryStore{db: db}, nil
}

// Record upserts the summary of a finished job
func (s *SQLiteHistoryStore) Record(ctx context.Context, record domain.HistoryRecord) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "job_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"url", "format", "quality", "status", "title", "created_at"}),
	}).Create(&record).Error
}

// Enabled always reports true
func (s *SQLiteHistoryStore) Enabled() bool {
	return true
}

// ListHistory returns the most recent records first
func (s *SQLiteHistoryStore) ListHistory(ctx context.Context, limit int) ([]domain.HistoryRecord, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	records := []domain.HistoryRecord{}
	err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&records).Error
	return records, err
}

// Close closes the database connection
func (s *SQLiteHistoryStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
