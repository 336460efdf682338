package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/hoopcap/dfs-optimizer/internal/models"
	"github.com/hoopcap/dfs-optimizer/pkg/database"
	"github.com/hoopcap/dfs-optimizer/pkg/logger"
	"github.com/hoopcap/dfs-optimizer/pkg/utils"
)

// RunStore persists optimization run records.
type RunStore struct {
	db  *database.DB
	log *logrus.Entry
}

func NewRunStore(db *database.DB) *RunStore {
	return &RunStore{
		db:  db,
		log: logger.GetLogger().WithField("component", "run_store"),
	}
}

// CreateRun stores a pending run record.
func (s *RunStore) CreateRun(ctx context.Context, run *models.OptimizationRun) error {
	if err := s.db.WithContext(ctx).Create(run).Error; err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// UpdateRun saves the full record, used on every status transition.
func (s *RunStore) UpdateRun(ctx context.Context, run *models.OptimizationRun) error {
	if err := s.db.WithContext(ctx).Save(run).Error; err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	return nil
}

// GetRun loads one run by its id.
func (s *RunStore) GetRun(ctx context.Context, id string) (*models.OptimizationRun, error) {
	var run models.OptimizationRun
	err := s.db.WithContext(ctx).First(&run, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run: %w", err)
	}
	return &run, nil
}

// ListRunsForSlate returns a slate's runs newest first.
func (s *RunStore) ListRunsForSlate(ctx context.Context, slateID string, limit int) ([]models.OptimizationRun, error) {
	var runs []models.OptimizationRun
	err := s.db.WithContext(ctx).
		Where("slate_id = ?", slateID).
		Order("created_at DESC").
		Limit(limit).
		Find(&runs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}

// PurgeOld removes finished runs older than maxAge.
func (s *RunStore) PurgeOld(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().Add(-maxAge)
	result := s.db.WithContext(ctx).
		Where("created_at < ? AND status IN ?", cutoff, []string{models.RunStatusCompleted, models.RunStatusFailed}).
		Delete(&models.OptimizationRun{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to purge runs: %w", result.Error)
	}
	if result.RowsAffected > 0 {
		s.log.WithField("purged", result.RowsAffected).Info("Purged old runs")
	}
	return result.RowsAffected, nil
}
