package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/hoopcap/dfs-optimizer/internal/models"
	"github.com/hoopcap/dfs-optimizer/internal/optimizer"
	"github.com/hoopcap/dfs-optimizer/internal/websocket"
	"github.com/hoopcap/dfs-optimizer/pkg/logger"
)

// OptimizationSettings holds server-side policy for batch requests. Request
// fields left at zero inherit from here after slate defaults are applied.
type OptimizationSettings struct {
	Timeout          time.Duration
	MaxLineups       int
	DefaultSalaryCap int
	SalaryCapFloor   int
	SalaryCapCeiling int
	DuplicateRetries int
	ValueWeight      float64
	CacheResults     bool
}

// OptimizationService ties the optimizer to storage, caching, and progress
// streaming. It owns the run lifecycle: pending, running, then completed or
// failed, with partial results persisted when a batch dies mid-flight.
type OptimizationService struct {
	slates   *SlateStore
	runs     *RunStore
	cache    *ResultCache
	hub      *websocket.Hub
	settings OptimizationSettings
	log      *logrus.Entry
}

func NewOptimizationService(
	slates *SlateStore,
	runs *RunStore,
	cache *ResultCache,
	hub *websocket.Hub,
	settings OptimizationSettings,
) *OptimizationService {
	return &OptimizationService{
		slates:   slates,
		runs:     runs,
		cache:    cache,
		hub:      hub,
		settings: settings,
		log:      logger.GetLogger().WithField("component", "optimization_service"),
	}
}

// Optimize solves a batch synchronously. Identical requests against the same
// slate are served from the result cache without creating a new run. On a
// mid-batch failure the partial result is returned alongside the error, and
// the persisted run keeps both.
func (s *OptimizationService) Optimize(ctx context.Context, slateID string, cfg optimizer.OptimizeConfig) (*optimizer.BatchResult, error) {
	opt, cfg, err := s.prepare(ctx, slateID, cfg)
	if err != nil {
		return nil, err
	}

	var cacheKey string
	if s.cache != nil && s.settings.CacheResults {
		cacheKey = ResultCacheKey(slateID, cfg)
		if cached := s.cache.Get(ctx, cacheKey); cached != nil {
			s.log.WithFields(logrus.Fields{
				"slate_id": slateID,
				"run_id":   cached.RunID,
			}).Info("Serving cached batch result")
			return cached, nil
		}
	}

	run, err := s.createRun(ctx, slateID, cfg)
	if err != nil {
		return nil, err
	}

	result, err := s.execute(ctx, opt, run, cfg)
	if err == nil && cacheKey != "" {
		s.cache.Set(ctx, cacheKey, result)
	}
	return result, err
}

// OptimizeAsync validates the request, records a pending run, and solves in
// the background. The run ID is returned immediately so the caller can poll
// the run or subscribe to its progress over the websocket before the first
// lineup lands.
func (s *OptimizationService) OptimizeAsync(ctx context.Context, slateID string, cfg optimizer.OptimizeConfig) (string, error) {
	opt, cfg, err := s.prepare(ctx, slateID, cfg)
	if err != nil {
		return "", err
	}

	run, err := s.createRun(ctx, slateID, cfg)
	if err != nil {
		return "", err
	}

	go func() {
		// The request context dies with the HTTP response; the batch keeps
		// its own lifetime.
		if _, err := s.execute(context.Background(), opt, run, cfg); err != nil {
			logger.WithRun(run.ID).Warnf("Background batch ended with error: %v", err)
		}
	}()

	return run.ID, nil
}

// ValidateOnly checks a request against a slate without solving anything.
func (s *OptimizationService) ValidateOnly(ctx context.Context, slateID string, cfg optimizer.OptimizeConfig) error {
	_, _, err := s.prepare(ctx, slateID, cfg)
	return err
}

// GetRun returns a stored run record.
func (s *OptimizationService) GetRun(ctx context.Context, runID string) (*models.OptimizationRun, error) {
	return s.runs.GetRun(ctx, runID)
}

// ListRuns returns recent runs for a slate, newest first.
func (s *OptimizationService) ListRuns(ctx context.Context, slateID string, limit int) ([]models.OptimizationRun, error) {
	return s.runs.ListRunsForSlate(ctx, slateID, limit)
}

// prepare loads the slate's catalog, layers slate and server defaults under
// the request, and validates the merged configuration.
func (s *OptimizationService) prepare(ctx context.Context, slateID string, cfg optimizer.OptimizeConfig) (*optimizer.Optimizer, optimizer.OptimizeConfig, error) {
	catalog, slate, err := s.slates.CatalogForSlate(ctx, slateID)
	if err != nil {
		return nil, cfg, err
	}

	cfg = applySlateDefaults(slate, cfg)
	cfg, err = s.applyPolicy(cfg)
	if err != nil {
		return nil, cfg, err
	}

	opt, err := optimizer.New(catalog, optimizer.DraftKingsNBASlots())
	if err != nil {
		return nil, cfg, err
	}
	if err := opt.ValidateConfig(cfg); err != nil {
		return nil, cfg, err
	}
	return opt, cfg, nil
}

// applySlateDefaults fills zero-valued scalar fields from the slate's stored
// defaults. Locks and exclusions are per request and never inherited.
func applySlateDefaults(slate *models.Slate, cfg optimizer.OptimizeConfig) optimizer.OptimizeConfig {
	if cfg.SalaryCapMax == 0 && slate.SalaryCap > 0 {
		cfg.SalaryCapMax = slate.SalaryCap
	}
	if len(slate.DefaultRules) == 0 {
		return cfg
	}

	var defaults optimizer.OptimizeConfig
	if err := json.Unmarshal(slate.DefaultRules, &defaults); err != nil {
		return cfg
	}
	if cfg.SalaryCapMin == 0 {
		cfg.SalaryCapMin = defaults.SalaryCapMin
	}
	if cfg.SalaryCapMax == 0 {
		cfg.SalaryCapMax = defaults.SalaryCapMax
	}
	if cfg.MaxExposure == 0 {
		cfg.MaxExposure = defaults.MaxExposure
	}
	if cfg.ValueWeight == 0 {
		cfg.ValueWeight = defaults.ValueWeight
	}
	if cfg.DuplicateRetries == 0 {
		cfg.DuplicateRetries = defaults.DuplicateRetries
	}
	return cfg
}

// applyPolicy applies server-wide defaults and bounds after slate defaults.
func (s *OptimizationService) applyPolicy(cfg optimizer.OptimizeConfig) (optimizer.OptimizeConfig, error) {
	if cfg.SalaryCapMax == 0 {
		cfg.SalaryCapMax = s.settings.DefaultSalaryCap
	}
	if cfg.DuplicateRetries == 0 {
		cfg.DuplicateRetries = s.settings.DuplicateRetries
	}
	if cfg.ValueWeight == 0 {
		cfg.ValueWeight = s.settings.ValueWeight
	}

	if s.settings.MaxLineups > 0 && cfg.NumLineups > s.settings.MaxLineups {
		return cfg, optimizer.NewValidationError("num_lineups",
			fmt.Sprintf("at most %d lineups per request, got %d", s.settings.MaxLineups, cfg.NumLineups))
	}
	if s.settings.SalaryCapCeiling > 0 &&
		(cfg.SalaryCapMax < s.settings.SalaryCapFloor || cfg.SalaryCapMax > s.settings.SalaryCapCeiling) {
		return cfg, optimizer.NewValidationError("salary_cap_max",
			fmt.Sprintf("salary cap must be within [%d, %d], got %d",
				s.settings.SalaryCapFloor, s.settings.SalaryCapCeiling, cfg.SalaryCapMax))
	}
	return cfg, nil
}

// createRun records a pending run keyed by a fresh ID.
func (s *OptimizationService) createRun(ctx context.Context, slateID string, cfg optimizer.OptimizeConfig) (*models.OptimizationRun, error) {
	run, err := models.NewRun(uuid.New().String(), slateID, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode run request: %w", err)
	}
	if err := s.runs.CreateRun(ctx, run); err != nil {
		return nil, err
	}
	return run, nil
}

// execute drives one batch end to end and persists the outcome on the run
// record. The returned result and error follow the optimizer's contract:
// both may be non-nil when a batch dies with lineups already accepted.
func (s *OptimizationService) execute(ctx context.Context, opt *optimizer.Optimizer, run *models.OptimizationRun, cfg optimizer.OptimizeConfig) (*optimizer.BatchResult, error) {
	log := logger.WithRun(run.ID)

	run.MarkRunning(time.Now().UTC())
	if err := s.runs.UpdateRun(ctx, run); err != nil {
		// The batch still runs; the record catches up at completion.
		log.Warnf("Failed to mark run running: %v", err)
	}

	cfg.RunID = run.ID
	runCtx := ctx
	if s.settings.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.settings.Timeout)
		defer cancel()
	}

	var progress optimizer.ProgressFunc
	if s.hub != nil {
		progress = s.hub.BroadcastProgress
	}

	result, err := opt.OptimizeWithProgress(runCtx, cfg, progress)

	now := time.Now().UTC()
	switch {
	case err == nil:
		if mErr := run.MarkCompleted(result, now); mErr != nil {
			log.Errorf("Failed to encode result: %v", mErr)
			run.MarkFailed(mErr, now)
		}
	case result != nil:
		if mErr := run.MarkFailedWithPartial(result, err, now); mErr != nil {
			run.MarkFailed(err, now)
		}
	default:
		run.MarkFailed(err, now)
	}

	// Persist with a fresh context so a cancelled batch still gets recorded.
	if uErr := s.runs.UpdateRun(context.Background(), run); uErr != nil {
		log.Errorf("Failed to persist run outcome: %v", uErr)
	}

	return result, err
}
