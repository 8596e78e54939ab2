package audit

import (
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// StepRecord is the persisted form of a Record.
type StepRecord struct {
	ID              uint   `gorm:"primaryKey"`
	TaskID          string `gorm:"index;size:64"`
	StepIndex       int
	Handler         string `gorm:"size:128"`
	Outcome         string `gorm:"size:64"`
	DurationMS      int64
	ContextKeyCount int
	Timestamp       time.Time
}

// TableName keeps the table name explicit.
func (StepRecord) TableName() string { return "audit_steps" }

// Store is a Sink backed by sqlite through GORM.
type Store struct {
	db  *gorm.DB
	log *zap.Logger
}

// OpenStore opens (or creates) the sqlite database at path and migrates the
// audit schema. Use ":memory:" for tests.
func OpenStore(path string, zlog *zap.Logger) (*Store, error) {
	if zlog == nil {
		zlog = zap.NewNop()
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open audit store: %w", err)
	}
	if err := db.AutoMigrate(&StepRecord{}); err != nil {
		return nil, fmt.Errorf("migrate audit store: %w", err)
	}
	return &Store{db: db, log: zlog.With(zap.String("component", "audit_store"))}, nil
}

// Append implements Sink.
func (s *Store) Append(rec Record) error {
	row := StepRecord{
		TaskID:          rec.TaskID,
		StepIndex:       rec.StepIndex,
		Handler:         rec.Handler,
		Outcome:         rec.Outcome,
		DurationMS:      rec.DurationMS,
		ContextKeyCount: rec.ContextKeyCount,
		Timestamp:       rec.Timestamp,
	}
	if err := s.db.Create(&row).Error; err != nil {
		s.log.Error("failed to persist audit record",
			zap.String("task_id", rec.TaskID),
			zap.Int("step_index", rec.StepIndex),
			zap.Error(err),
		)
		return err
	}
	return nil
}

// Trail returns the persisted records for a task in step order.
func (s *Store) Trail(taskID string) ([]StepRecord, error) {
	var rows []StepRecord
	err := s.db.
		Where("task_id = ?", taskID).
		Order("step_index asc").
		Find(&rows).Error
	return rows, err
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
