package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/BaSui01/incidentflow/workflow"
)

// checkpointRecord is the persisted row layout. The state snapshot is
// stored as serialized JSON; (run_id, seq) is unique so a duplicate write
// for the same position fails instead of silently diverging.
type checkpointRecord struct {
	ID        uint   `gorm:"primaryKey"`
	RunID     string `gorm:"column:run_id;index:idx_run_seq,unique"`
	Seq       int64  `gorm:"column:seq;index:idx_run_seq,unique"`
	Next      string `gorm:"column:next"`
	State     []byte `gorm:"column:state"`
	CreatedAt time.Time
}

func (checkpointRecord) TableName() string {
	return "workflow_checkpoints"
}

// SQLite is a durable checkpoint store backed by a SQLite database file.
type SQLite struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewSQLite opens (or creates) the database at path and migrates the
// checkpoint table.
func NewSQLite(path string, logger *zap.Logger) (*SQLite, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if err := db.AutoMigrate(&checkpointRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate checkpoint table: %w", err)
	}
	return &SQLite{
		db:     db,
		logger: logger.With(zap.String("component", "sqlite_store")),
	}, nil
}

// Put appends a checkpoint for its run.
func (s *SQLite) Put(ctx context.Context, cp *workflow.Checkpoint) error {
	raw, err := json.Marshal(cp.State)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	rec := checkpointRecord{
		RunID:     cp.RunID,
		Seq:       cp.Seq,
		Next:      cp.Next,
		State:     raw,
		CreatedAt: cp.CreatedAt,
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("failed to write checkpoint run=%s seq=%d: %w", cp.RunID, cp.Seq, err)
	}
	return nil
}

// Latest returns the checkpoint with the highest sequence number.
func (s *SQLite) Latest(ctx context.Context, runID string) (*workflow.Checkpoint, error) {
	var rec checkpointRecord
	err := s.db.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("seq DESC").
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, workflow.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	return recordToCheckpoint(&rec)
}

// History returns all checkpoints for a run in sequence order.
func (s *SQLite) History(ctx context.Context, runID string) ([]*workflow.Checkpoint, error) {
	var recs []checkpointRecord
	err := s.db.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("seq ASC").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}
	out := make([]*workflow.Checkpoint, 0, len(recs))
	for i := range recs {
		cp, err := recordToCheckpoint(&recs[i])
		if err != nil {
			return nil, err
		}
		out = append(out, cp)
	}
	return out, nil
}

// Close closes the underlying database handle.
func (s *SQLite) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func recordToCheckpoint(rec *checkpointRecord) (*workflow.Checkpoint, error) {
	state := workflow.State{}
	if len(rec.State) > 0 {
		if err := json.Unmarshal(rec.State, &state); err != nil {
			return nil, fmt.Errorf("failed to unmarshal state run=%s seq=%d: %w", rec.RunID, rec.Seq, err)
		}
	}
	return &workflow.Checkpoint{
		RunID:     rec.RunID,
		Seq:       rec.Seq,
		Next:      rec.Next,
		State:     state,
		CreatedAt: rec.CreatedAt,
	}, nil
}
