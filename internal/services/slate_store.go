package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/hoopcap/dfs-optimizer/internal/models"
	"github.com/hoopcap/dfs-optimizer/internal/optimizer"
	"github.com/hoopcap/dfs-optimizer/pkg/database"
	"github.com/hoopcap/dfs-optimizer/pkg/logger"
	"github.com/hoopcap/dfs-optimizer/pkg/utils"
)

// SlateStore owns slate and player-pool persistence.
type SlateStore struct {
	db  *database.DB
	log *logrus.Entry
}

func NewSlateStore(db *database.DB) *SlateStore {
	return &SlateStore{
		db:  db,
		log: logger.GetLogger().WithField("component", "slate_store"),
	}
}

// CreateSlate validates the player pool as a catalog and stores the slate
// with its rows in one transaction. Pools that never validate never reach
// the database.
func (s *SlateStore) CreateSlate(ctx context.Context, slate *models.Slate, players []optimizer.Player) error {
	catalog, err := optimizer.NewCatalog(players)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(slate).Error; err != nil {
			return err
		}
		rows := models.SlatePlayersFrom(slate.ID, catalog.Players())
		return tx.CreateInBatches(rows, 200).Error
	})
	if err != nil {
		return fmt.Errorf("failed to create slate: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"slate_id": slate.ID,
		"players":  catalog.Len(),
	}).Info("Slate created")
	return nil
}

// GetSlate loads a slate with its player pool.
func (s *SlateStore) GetSlate(ctx context.Context, id string) (*models.Slate, error) {
	var slate models.Slate
	err := s.db.WithContext(ctx).
		Preload("Players", func(db *gorm.DB) *gorm.DB { return db.Order("slate_players.id") }).
		First(&slate, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load slate: %w", err)
	}
	return &slate, nil
}

// ListSlates returns slates newest first.
func (s *SlateStore) ListSlates(ctx context.Context, activeOnly bool, limit, offset int) ([]models.Slate, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Slate{})
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count slates: %w", err)
	}

	var slates []models.Slate
	err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&slates).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list slates: %w", err)
	}
	return slates, total, nil
}

// DeactivateSlate hides a slate from listings without losing its runs.
func (s *SlateStore) DeactivateSlate(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Model(&models.Slate{}).
		Where("id = ?", id).
		Update("is_active", false)
	if result.Error != nil {
		return fmt.Errorf("failed to deactivate slate: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return utils.ErrNotFound
	}
	return nil
}

// CatalogForSlate loads a slate's pool as a validated optimizer catalog.
func (s *SlateStore) CatalogForSlate(ctx context.Context, id string) (*optimizer.Catalog, *models.Slate, error) {
	slate, err := s.GetSlate(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	catalog, err := optimizer.NewCatalog(models.CatalogPlayers(slate.Players))
	if err != nil {
		return nil, nil, err
	}
	return catalog, slate, nil
}

// PurgeStale hard-deletes slates whose contests started more than maxAge
// ago, player rows included, and returns the IDs of the deleted slates.
// Deletion is explicit rather than relying on cascade so sqlite and
// postgres behave the same.
func (s *SlateStore) PurgeStale(ctx context.Context, maxAge time.Duration) ([]string, error) {
	cutoff := time.Now().Add(-maxAge)

	var purged []string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ids []string
		if err := tx.Model(&models.Slate{}).
			Where("start_time < ? AND start_time != ?", cutoff, time.Time{}).
			Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		if err := tx.Where("slate_id IN ?", ids).Delete(&models.SlatePlayer{}).Error; err != nil {
			return err
		}
		if err := tx.Where("id IN ?", ids).Delete(&models.Slate{}).Error; err != nil {
			return err
		}
		purged = ids
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to purge slates: %w", err)
	}
	if len(purged) > 0 {
		s.log.WithField("purged", len(purged)).Info("Purged stale slates")
	}
	return purged, nil
}
