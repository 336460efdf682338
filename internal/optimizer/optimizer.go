package optimizer

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"

	"github.com/hoopcap/dfs-optimizer/pkg/logger"
)

// Progress stages reported while a batch runs.
const (
	StageSolving    = "solving"
	StageAccepted   = "accepted"
	StageInfeasible = "infeasible"
	StageDuplicate  = "duplicate"
	StageCompleted  = "completed"
)

// defaultDuplicateRetries bounds how many times a lineup slot is re-solved
// after producing an already-accepted roster.
const defaultDuplicateRetries = 1

// ProgressFunc receives updates as a batch progresses. Callbacks run on the
// optimizing goroutine and should return quickly.
type ProgressFunc func(ProgressUpdate)

// Optimizer produces batches of optimal lineups from one catalog and slot
// template. It is safe for concurrent use; each run keeps its own state.
type Optimizer struct {
	catalog *Catalog
	slots   []SlotRule
	solver  *Solver
	roster  int
	log     *logrus.Entry
}

// New builds an optimizer over a validated catalog and slot template.
func New(catalog *Catalog, slots []SlotRule) (*Optimizer, error) {
	return NewWithSolver(catalog, slots, NewSolver())
}

// NewWithSolver is New with an injected solver, used when the node budget
// is tuned from configuration.
func NewWithSolver(catalog *Catalog, slots []SlotRule, solver *Solver) (*Optimizer, error) {
	if catalog == nil {
		return nil, NewValidationError("catalog", "catalog is required")
	}
	roster := RosterSize(slots)
	if err := ValidateTemplate(slots, roster); err != nil {
		return nil, err
	}
	return &Optimizer{
		catalog: catalog,
		slots:   slots,
		solver:  solver,
		roster:  roster,
		log:     logger.GetLogger().WithField("component", "optimizer"),
	}, nil
}

// RosterSize returns how many players each lineup carries.
func (o *Optimizer) RosterSize() int {
	return o.roster
}

// ValidateConfig checks a batch configuration against the catalog without
// solving anything. Lock problems abort here so a bad lock never burns a
// partial batch.
func (o *Optimizer) ValidateConfig(cfg OptimizeConfig) error {
	if cfg.NumLineups < 1 {
		return NewValidationError("num_lineups", "must request at least one lineup")
	}
	if cfg.SalaryCapMax <= 0 {
		return NewValidationError("salary_cap_max", "salary cap must be positive")
	}
	if cfg.SalaryCapMin < 0 {
		return NewValidationError("salary_cap_min", "salary floor cannot be negative")
	}
	if cfg.SalaryCapMin > cfg.SalaryCapMax {
		return NewValidationError("salary_cap_min", "salary floor exceeds the cap")
	}
	if cfg.MaxExposure < 0 || cfg.MaxExposure > 1 {
		return NewValidationError("max_exposure", "exposure must be a fraction between 0 and 1")
	}
	if cfg.ValueWeight < 0 {
		return NewValidationError("value_weight", "value weight cannot be negative")
	}
	if cfg.DuplicateRetries < 0 {
		return NewValidationError("duplicate_retries", "retries cannot be negative")
	}

	excluded := make(map[string]bool, len(cfg.ExcludedPlayers))
	for _, name := range cfg.ExcludedPlayers {
		excluded[name] = true
		if o.catalog.IndexOf(name) < 0 {
			o.log.WithField("player", name).Warn("Excluded player not in pool, ignoring")
		}
	}
	for _, name := range cfg.LockedPlayers {
		if o.catalog.IndexOf(name) < 0 {
			return NewConfigurationError(name, "locked player not in pool")
		}
		if excluded[name] {
			return NewConfigurationError(name, "player is both locked and excluded")
		}
	}
	return nil
}

// Optimize runs a full batch and returns its result. See
// OptimizeWithProgress for the contract.
func (o *Optimizer) Optimize(ctx context.Context, cfg OptimizeConfig) (*BatchResult, error) {
	return o.OptimizeWithProgress(ctx, cfg, nil)
}

// OptimizeWithProgress runs a batch of up to cfg.NumLineups solves,
// reporting after each attempt. Infeasible or duplicate lineups are
// recorded as failures and the batch continues; a batch with fewer lineups
// than requested is a valid, degraded result. Configuration and validation
// problems abort before the first solve. On context cancellation or a
// solver breakdown the partial result accumulated so far is returned
// alongside the error.
func (o *Optimizer) OptimizeWithProgress(ctx context.Context, cfg OptimizeConfig, progress ProgressFunc) (*BatchResult, error) {
	if err := o.ValidateConfig(cfg); err != nil {
		return nil, err
	}

	maxExposure := cfg.MaxExposure
	if maxExposure == 0 {
		maxExposure = 1.0
	}
	retries := cfg.DuplicateRetries
	if retries == 0 {
		retries = defaultDuplicateRetries
	}

	runID := cfg.RunID
	if runID == "" {
		runID = uuid.New().String()
	}
	log := o.log.WithFields(logrus.Fields{
		"run_id":      runID,
		"num_lineups": cfg.NumLineups,
		"salary_cap":  cfg.SalaryCapMax,
	})
	log.Info("Starting optimization batch")

	tracker := NewExposureTracker(cfg.NumLineups, maxExposure)
	seen := make(map[string]int, cfg.NumLineups)
	result := &BatchResult{
		RunID:     runID,
		Requested: cfg.NumLineups,
		Lineups:   make([]Lineup, 0, cfg.NumLineups),
	}
	start := time.Now()

	emit := func(stage string, lineupNumber int, message string) {
		if progress == nil {
			return
		}
		progress(ProgressUpdate{
			RunID:        runID,
			Stage:        stage,
			LineupNumber: lineupNumber,
			TotalLineups: cfg.NumLineups,
			Accepted:     len(result.Lineups),
			Message:      message,
			Timestamp:    time.Now(),
		})
	}
	finish := func() {
		result.Exposure = tracker.Report()
		result.Summary = summarize(result.Lineups)
		result.Elapsed = time.Since(start)
	}

	for number := 1; number <= cfg.NumLineups; number++ {
		if err := ctx.Err(); err != nil {
			finish()
			return result, err
		}
		emit(StageSolving, number, "")

		for attempt := 0; attempt <= retries; attempt++ {
			banned := o.bannedPlayers(tracker)
			sys, err := BuildConstraints(o.catalog, o.slots, BuildInput{
				SalaryCapMin:   cfg.SalaryCapMin,
				SalaryCapMax:   cfg.SalaryCapMax,
				RosterSize:     o.roster,
				ValueWeight:    cfg.ValueWeight,
				Locked:         cfg.LockedPlayers,
				Excluded:       cfg.ExcludedPlayers,
				ExposureBanned: banned,
			})
			if err != nil {
				finish()
				return result, err
			}

			sol, err := o.solver.Solve(ctx, sys)
			if IsInfeasible(err) {
				result.Failures = append(result.Failures, LineupFailure{
					LineupNumber: number,
					Reason:       FailureInfeasible,
					Message:      "no roster satisfies the active constraints",
				})
				log.WithField("lineup", number).Warn("Lineup infeasible under active constraints")
				emit(StageInfeasible, number, "no feasible roster")
				break
			}
			if err != nil {
				finish()
				return result, err
			}

			lineup := o.buildLineup(sol)
			prior, dup := seen[lineup.Key()]
			if dup {
				if attempt < retries {
					continue
				}
				result.Failures = append(result.Failures, LineupFailure{
					LineupNumber: number,
					Reason:       FailureDuplicate,
					Message:      fmt.Sprintf("optimum duplicates lineup %d", prior),
				})
				log.WithFields(logrus.Fields{
					"lineup":    number,
					"duplicate": prior,
				}).Warn("Optimum duplicates an accepted lineup")
				emit(StageDuplicate, number, fmt.Sprintf("duplicate of lineup %d", prior))
				break
			}

			seen[lineup.Key()] = number
			tracker.Record(lineup)
			result.Lineups = append(result.Lineups, lineup)
			emit(StageAccepted, number, lineup.ID)
			break
		}
	}

	finish()
	log.WithFields(logrus.Fields{
		"accepted": len(result.Lineups),
		"failed":   len(result.Failures),
		"elapsed":  result.Elapsed.String(),
	}).Info("Optimization batch complete")
	emit(StageCompleted, cfg.NumLineups, "")
	return result, nil
}

// bannedPlayers lists capped-out players in catalog order so rebuilt
// constraint systems stay identical across retries.
func (o *Optimizer) bannedPlayers(tracker *ExposureTracker) []string {
	var banned []string
	for _, p := range o.catalog.Players() {
		if tracker.AtLimit(p.Name) {
			banned = append(banned, p.Name)
		}
	}
	return banned
}

// buildLineup maps solved variable indices back to players and assigns
// display slots. Reported projection is the raw sum; the value blend only
// steers the objective.
func (o *Optimizer) buildLineup(sol *Solution) Lineup {
	players := make([]Player, 0, len(sol.Selected))
	for _, idx := range sol.Selected {
		players = append(players, o.catalog.Players()[idx])
	}
	totalSalary := 0
	totalProjection := 0.0
	for _, p := range players {
		totalSalary += p.Salary
		totalProjection += p.Projection
	}
	return Lineup{
		ID:              uuid.New().String()[:8],
		Players:         AssignPlayersToSlots(o.slots, players),
		TotalSalary:     totalSalary,
		TotalProjection: totalProjection,
	}
}

// summarize reduces accepted lineups to batch statistics. A single lineup
// has no spread, and an empty batch reports zeros.
func summarize(lineups []Lineup) BatchSummary {
	if len(lineups) == 0 {
		return BatchSummary{}
	}
	projections := make([]float64, len(lineups))
	best := lineups[0].TotalProjection
	for i, l := range lineups {
		projections[i] = l.TotalProjection
		if l.TotalProjection > best {
			best = l.TotalProjection
		}
	}
	summary := BatchSummary{
		MeanProjection: stat.Mean(projections, nil),
		BestProjection: best,
	}
	if len(projections) > 1 {
		summary.StdDevProjection = stat.StdDev(projections, nil)
	}
	return summary
}
