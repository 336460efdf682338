package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/hoopcap/dfs-optimizer/pkg/logger"
)

// MaintenanceService runs scheduled cleanup of expired slates and old run
// records so the database does not grow without bound.
type MaintenanceService struct {
	slates    *SlateStore
	runs      *RunStore
	cache     *ResultCache
	log       *logrus.Entry
	cron      *cron.Cron
	schedule  string
	slateTTL  time.Duration
	runTTL    time.Duration
	mu        sync.Mutex
	isRunning bool
}

// NewMaintenanceService creates a maintenance service. The schedule is a
// standard five-field cron expression; slateTTL and runTTL bound how long
// inactive slates and finished runs are retained.
func NewMaintenanceService(
	slates *SlateStore,
	runs *RunStore,
	cache *ResultCache,
	schedule string,
	slateTTL time.Duration,
	runTTL time.Duration,
) *MaintenanceService {
	return &MaintenanceService{
		slates:   slates,
		runs:     runs,
		cache:    cache,
		log:      logger.GetLogger().WithField("component", "maintenance"),
		cron:     cron.New(),
		schedule: schedule,
		slateTTL: slateTTL,
		runTTL:   runTTL,
	}
}

// Start begins the scheduled cleanup.
func (s *MaintenanceService) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("maintenance service is already running")
	}

	_, err := s.cron.AddFunc(s.schedule, s.runCleanup)
	if err != nil {
		return fmt.Errorf("failed to schedule cleanup: %w", err)
	}

	s.cron.Start()
	s.isRunning = true

	s.log.WithField("schedule", s.schedule).Info("Maintenance service started")
	return nil
}

// Stop halts the scheduled cleanup, waiting for any in-flight job.
func (s *MaintenanceService) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return
	}

	ctx := s.cron.Stop()
	<-ctx.Done()

	s.isRunning = false
	s.log.Info("Maintenance service stopped")
}

// runCleanup purges expired slates and runs, then drops cached results for
// anything that no longer exists.
func (s *MaintenanceService) runCleanup() {
	s.log.Info("Starting scheduled cleanup")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	purgedSlates, err := s.slates.PurgeStale(ctx, s.slateTTL)
	if err != nil {
		s.log.Errorf("Failed to purge stale slates: %v", err)
	}
	if s.cache != nil {
		for _, id := range purgedSlates {
			s.cache.InvalidateSlate(ctx, id)
		}
	}

	runsPurged, err := s.runs.PurgeOld(ctx, s.runTTL)
	if err != nil {
		s.log.Errorf("Failed to purge old runs: %v", err)
	}

	s.log.WithFields(logrus.Fields{
		"slates_purged": len(purgedSlates),
		"runs_purged":   runsPurged,
	}).Info("Completed scheduled cleanup")
}
