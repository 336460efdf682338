package optimizer

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tightSlateCatalog is a two-tier pool with exactly one roster under the
// $50,000 cap: every star but the two most expensive fits alongside the five
// value players. Dropping Antetokounmpo and Booker is the only way to shed
// enough salary, so the optimum is fully pinned down.
func tightSlateCatalog(t *testing.T) *Catalog {
	t.Helper()
	catalog, err := NewCatalog([]Player{
		// Stars
		{Name: "Stephen Curry", Positions: []string{"PG"}, Salary: 9100, Projection: 58.0, Team: "GSW"},
		{Name: "Devin Booker", Positions: []string{"SG"}, Salary: 9600, Projection: 56.0, Team: "PHX"},
		{Name: "Kevin Durant", Positions: []string{"SF"}, Salary: 9300, Projection: 60.0, Team: "PHX"},
		{Name: "Giannis Antetokounmpo", Positions: []string{"PF"}, Salary: 11300, Projection: 59.0, Team: "MIL"},
		{Name: "Nikola Jokic", Positions: []string{"C"}, Salary: 8900, Projection: 57.0, Team: "DEN"},
		// Value tier
		{Name: "De'Aaron Fox", Positions: []string{"PG"}, Salary: 4500, Projection: 46.0, Team: "SAC"},
		{Name: "Jordan Poole", Positions: []string{"SG"}, Salary: 4400, Projection: 45.0, Team: "WAS"},
		{Name: "Mikal Bridges", Positions: []string{"SF"}, Salary: 4600, Projection: 47.0, Team: "BKN"},
		{Name: "Jerami Grant", Positions: []string{"PF"}, Salary: 4450, Projection: 45.5, Team: "POR"},
		{Name: "Clint Capela", Positions: []string{"C"}, Salary: 4550, Projection: 46.5, Team: "ATL"},
	})
	require.NoError(t, err)
	return catalog
}

const (
	tightSlateOptimalSalary     = 49800
	tightSlateOptimalProjection = 405.0
)

// waveCatalog holds three projection tiers of eight players each. With an
// exposure cap of one lineup per player, a three-lineup batch walks down
// the tiers one wave at a time.
func waveCatalog(t *testing.T) *Catalog {
	t.Helper()
	waves := [][]Player{
		{
			{Name: "Shai Gilgeous-Alexander", Positions: []string{"PG"}},
			{Name: "Donovan Mitchell", Positions: []string{"SG"}},
			{Name: "Jayson Tatum", Positions: []string{"SF"}},
			{Name: "Anthony Davis", Positions: []string{"PF"}},
			{Name: "Joel Embiid", Positions: []string{"C"}},
			{Name: "Jalen Brunson", Positions: []string{"PG", "SG"}},
			{Name: "LeBron James", Positions: []string{"SF", "PF"}},
			{Name: "Victor Wembanyama", Positions: []string{"C"}},
		},
		{
			{Name: "Damian Lillard", Positions: []string{"PG"}},
			{Name: "Devin Vassell", Positions: []string{"SG"}},
			{Name: "Kawhi Leonard", Positions: []string{"SF"}},
			{Name: "Pascal Siakam", Positions: []string{"PF"}},
			{Name: "Bam Adebayo", Positions: []string{"C"}},
			{Name: "Tyrese Maxey", Positions: []string{"PG", "SG"}},
			{Name: "Paolo Banchero", Positions: []string{"SF", "PF"}},
			{Name: "Karl-Anthony Towns", Positions: []string{"C"}},
		},
		{
			{Name: "Mike Conley", Positions: []string{"PG"}},
			{Name: "Austin Reaves", Positions: []string{"SG"}},
			{Name: "Dillon Brooks", Positions: []string{"SF"}},
			{Name: "PJ Washington", Positions: []string{"PF"}},
			{Name: "Ivica Zubac", Positions: []string{"C"}},
			{Name: "Coby White", Positions: []string{"PG", "SG"}},
			{Name: "Kyle Kuzma", Positions: []string{"SF", "PF"}},
			{Name: "Brook Lopez", Positions: []string{"C"}},
		},
	}

	var players []Player
	for w, wave := range waves {
		base := 30.0 - float64(w)*10.0
		for i, p := range wave {
			p.Salary = 5000 + i*150
			p.Projection = base + float64(i)*0.1
			players = append(players, p)
		}
	}
	catalog, err := NewCatalog(players)
	require.NoError(t, err)
	return catalog
}

func newTestOptimizer(t *testing.T, catalog *Catalog) *Optimizer {
	t.Helper()
	opt, err := New(catalog, DraftKingsNBASlots())
	require.NoError(t, err)
	return opt
}

func TestOptimize_FindsOptimalLineup(t *testing.T) {
	opt := newTestOptimizer(t, tightSlateCatalog(t))

	result, err := opt.Optimize(context.Background(), OptimizeConfig{
		SalaryCapMax: 50000,
		NumLineups:   1,
	})
	require.NoError(t, err)
	require.Len(t, result.Lineups, 1)
	assert.Empty(t, result.Failures)

	lineup := result.Lineups[0]
	assert.Equal(t, tightSlateOptimalSalary, lineup.TotalSalary)
	assert.InDelta(t, tightSlateOptimalProjection, lineup.TotalProjection, 1e-6)
	require.Len(t, lineup.Players, 8)

	assert.False(t, lineup.Contains("Giannis Antetokounmpo"), "the priciest stars cannot both fit")
	assert.False(t, lineup.Contains("Devin Booker"))
	for _, name := range []string{
		"Stephen Curry", "De'Aaron Fox", "Jordan Poole", "Kevin Durant",
		"Mikal Bridges", "Jerami Grant", "Nikola Jokic", "Clint Capela",
	} {
		assert.True(t, lineup.Contains(name), "optimal roster should include %s", name)
	}

	slotCounts := make(map[string]int)
	for _, p := range lineup.Players {
		slotCounts[p.Slot]++
	}
	for _, slot := range []string{"PG", "SG", "SF", "PF", "C", "G", "F", "UTIL"} {
		assert.Equal(t, 1, slotCounts[slot], "slot %s should appear exactly once", slot)
	}

	assert.Len(t, result.RunID, 36, "run id should be a UUID")
	assert.Len(t, lineup.ID, 8)
	assert.Equal(t, 1, result.Requested)
	assert.InDelta(t, tightSlateOptimalProjection, result.Summary.BestProjection, 1e-6)
	assert.InDelta(t, tightSlateOptimalProjection, result.Summary.MeanProjection, 1e-6)
	assert.Equal(t, 0.0, result.Summary.StdDevProjection, "one lineup has no spread")
}

func TestOptimize_ValueBlendDoesNotChangeReportedProjection(t *testing.T) {
	opt := newTestOptimizer(t, tightSlateCatalog(t))

	result, err := opt.Optimize(context.Background(), OptimizeConfig{
		SalaryCapMax: 50000,
		NumLineups:   1,
		ValueWeight:  2.0,
	})
	require.NoError(t, err)
	require.Len(t, result.Lineups, 1)
	assert.InDelta(t, tightSlateOptimalProjection, result.Lineups[0].TotalProjection, 1e-6,
		"the blend steers the objective, reported projection stays raw")
}

func TestOptimize_InfeasibleSalaryCap(t *testing.T) {
	opt := newTestOptimizer(t, tightSlateCatalog(t))

	result, err := opt.Optimize(context.Background(), OptimizeConfig{
		SalaryCapMax: 20000,
		NumLineups:   2,
	})
	require.NoError(t, err, "an unfillable batch is degraded output, not an error")
	assert.Empty(t, result.Lineups)
	require.Len(t, result.Failures, 2)
	for i, failure := range result.Failures {
		assert.Equal(t, i+1, failure.LineupNumber)
		assert.Equal(t, FailureInfeasible, failure.Reason)
	}
	assert.Equal(t, 0, result.Exposure.AcceptedLineups)
	assert.Equal(t, BatchSummary{}, result.Summary)
}

func TestOptimize_SalaryFloorBoundary(t *testing.T) {
	opt := newTestOptimizer(t, tightSlateCatalog(t))

	// The only roster under the cap spends exactly 49800.
	result, err := opt.Optimize(context.Background(), OptimizeConfig{
		SalaryCapMin: 49800,
		SalaryCapMax: 50000,
		NumLineups:   1,
	})
	require.NoError(t, err)
	assert.Len(t, result.Lineups, 1, "a floor met exactly is still feasible")

	result, err = opt.Optimize(context.Background(), OptimizeConfig{
		SalaryCapMin: 49900,
		SalaryCapMax: 50000,
		NumLineups:   1,
	})
	require.NoError(t, err)
	assert.Empty(t, result.Lineups)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, FailureInfeasible, result.Failures[0].Reason)
}

func TestOptimize_UnknownLockAbortsBeforeSolving(t *testing.T) {
	opt := newTestOptimizer(t, tightSlateCatalog(t))

	var updates []ProgressUpdate
	result, err := opt.OptimizeWithProgress(context.Background(), OptimizeConfig{
		SalaryCapMax:  50000,
		NumLineups:    3,
		LockedPlayers: []string{"Luka Doncic"},
	}, func(u ProgressUpdate) {
		updates = append(updates, u)
	})

	require.Error(t, err)
	assert.True(t, IsConfigurationError(err))
	assert.Contains(t, err.Error(), "Luka Doncic")
	assert.Nil(t, result, "a bad lock aborts the whole batch")
	assert.Empty(t, updates, "no solve should start before the abort")
}

func TestOptimize_LockExcludeConflictAborts(t *testing.T) {
	opt := newTestOptimizer(t, tightSlateCatalog(t))

	result, err := opt.Optimize(context.Background(), OptimizeConfig{
		SalaryCapMax:    50000,
		NumLineups:      1,
		LockedPlayers:   []string{"Nikola Jokic"},
		ExcludedPlayers: []string{"Nikola Jokic"},
	})
	require.Error(t, err)
	assert.True(t, IsConfigurationError(err))
	assert.Nil(t, result)
}

func TestOptimize_UnknownExclusionIgnored(t *testing.T) {
	opt := newTestOptimizer(t, tightSlateCatalog(t))

	result, err := opt.Optimize(context.Background(), OptimizeConfig{
		SalaryCapMax:    50000,
		NumLineups:      1,
		ExcludedPlayers: []string{"Retired Legend"},
	})
	require.NoError(t, err)
	require.Len(t, result.Lineups, 1)
	assert.InDelta(t, tightSlateOptimalProjection, result.Lineups[0].TotalProjection, 1e-6)
}

func TestOptimize_LockedPlayerAlwaysAppears(t *testing.T) {
	opt := newTestOptimizer(t, tightSlateCatalog(t))

	result, err := opt.Optimize(context.Background(), OptimizeConfig{
		SalaryCapMax:  50000,
		NumLineups:    1,
		LockedPlayers: []string{"Kevin Durant"},
	})
	require.NoError(t, err)
	require.Len(t, result.Lineups, 1)
	assert.True(t, result.Lineups[0].Contains("Kevin Durant"))
}

func TestOptimize_LockCanMakeBatchInfeasible(t *testing.T) {
	opt := newTestOptimizer(t, tightSlateCatalog(t))

	// Forcing the most expensive star in leaves no cap room for a full
	// roster. That is reported, never silently patched.
	result, err := opt.Optimize(context.Background(), OptimizeConfig{
		SalaryCapMax:  50000,
		NumLineups:    1,
		LockedPlayers: []string{"Giannis Antetokounmpo"},
	})
	require.NoError(t, err)
	assert.Empty(t, result.Lineups)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, FailureInfeasible, result.Failures[0].Reason)
}

func TestOptimize_ExcludingOptimalPlayerCanGoInfeasible(t *testing.T) {
	opt := newTestOptimizer(t, tightSlateCatalog(t))

	result, err := opt.Optimize(context.Background(), OptimizeConfig{
		SalaryCapMax:    50000,
		NumLineups:      1,
		ExcludedPlayers: []string{"Kevin Durant"},
	})
	require.NoError(t, err)
	assert.Empty(t, result.Lineups, "the only affordable roster needs Durant")
	require.Len(t, result.Failures, 1)
	assert.Equal(t, FailureInfeasible, result.Failures[0].Reason)
}

func TestOptimize_ExposureRotatesTiers(t *testing.T) {
	opt := newTestOptimizer(t, waveCatalog(t))

	result, err := opt.Optimize(context.Background(), OptimizeConfig{
		SalaryCapMax: 50000,
		NumLineups:   3,
		MaxExposure:  0.34, // floor(3 * 0.34) = 1 lineup per player
	})
	require.NoError(t, err)
	require.Len(t, result.Lineups, 3)
	assert.Empty(t, result.Failures)

	assert.InDelta(t, 242.8, result.Lineups[0].TotalProjection, 1e-6)
	assert.InDelta(t, 162.8, result.Lineups[1].TotalProjection, 1e-6)
	assert.InDelta(t, 82.8, result.Lineups[2].TotalProjection, 1e-6)

	// Every player may appear once, so the lineups are pairwise disjoint.
	seen := make(map[string]int)
	for i, lineup := range result.Lineups {
		for _, p := range lineup.Players {
			prior, dup := seen[p.Name]
			assert.False(t, dup, "%s in lineups %d and %d", p.Name, prior, i+1)
			seen[p.Name] = i + 1
		}
	}

	require.NotNil(t, result.Exposure)
	assert.Equal(t, 1, result.Exposure.Limit)
	for _, pe := range result.Exposure.Players {
		assert.Equal(t, 1, pe.Count, "player %s should appear exactly once", pe.Name)
		assert.False(t, pe.IsViolation)
	}

	assert.InDelta(t, 162.8, result.Summary.MeanProjection, 1e-6)
	assert.InDelta(t, 80.0, result.Summary.StdDevProjection, 1e-6)
	assert.InDelta(t, 242.8, result.Summary.BestProjection, 1e-6)
}

func TestOptimize_LockOverridesExposureCap(t *testing.T) {
	opt := newTestOptimizer(t, waveCatalog(t))

	result, err := opt.Optimize(context.Background(), OptimizeConfig{
		SalaryCapMax:    50000,
		NumLineups:      3,
		MaxExposure:     0.34,
		LockedPlayers:   []string{"Brook Lopez"},
		ExcludedPlayers: []string{"Jayson Tatum"},
	})
	require.NoError(t, err)
	require.Len(t, result.Lineups, 3)

	for i, lineup := range result.Lineups {
		assert.True(t, lineup.Contains("Brook Lopez"), "lock must hold in lineup %d", i+1)
		assert.False(t, lineup.Contains("Jayson Tatum"), "exclusion must hold in lineup %d", i+1)
	}

	require.NotNil(t, result.Exposure)
	var lopez *PlayerExposure
	for i := range result.Exposure.Players {
		if result.Exposure.Players[i].Name == "Brook Lopez" {
			lopez = &result.Exposure.Players[i]
		}
	}
	require.NotNil(t, lopez)
	assert.Equal(t, 3, lopez.Count)
	assert.True(t, lopez.IsViolation, "a lock that busts the cap is reported as a violation")
}

func TestOptimize_ExposureExhaustsPool(t *testing.T) {
	// Only one tier of eight players: after the first lineup the whole
	// pool is capped out and the batch degrades.
	catalog, err := NewCatalog(waveCatalog(t).Players()[:8])
	require.NoError(t, err)
	opt := newTestOptimizer(t, catalog)

	result, err := opt.Optimize(context.Background(), OptimizeConfig{
		SalaryCapMax: 50000,
		NumLineups:   3,
		MaxExposure:  0.34,
	})
	require.NoError(t, err)
	assert.Len(t, result.Lineups, 1)
	require.Len(t, result.Failures, 2)
	for _, failure := range result.Failures {
		assert.Equal(t, FailureInfeasible, failure.Reason)
	}
}

func TestOptimize_ExposureFlooringToZeroBansEveryone(t *testing.T) {
	opt := newTestOptimizer(t, waveCatalog(t))

	result, err := opt.Optimize(context.Background(), OptimizeConfig{
		SalaryCapMax: 50000,
		NumLineups:   2,
		MaxExposure:  0.4, // floor(2 * 0.4) = 0
	})
	require.NoError(t, err)
	assert.Empty(t, result.Lineups, "a zero exposure budget surfaces as infeasibility")
	assert.Len(t, result.Failures, 2)
}

func TestOptimize_DuplicatesRecordedNotPerturbed(t *testing.T) {
	catalog, err := NewCatalog(waveCatalog(t).Players()[:8])
	require.NoError(t, err)
	opt := newTestOptimizer(t, catalog)

	result, err := opt.Optimize(context.Background(), OptimizeConfig{
		SalaryCapMax: 50000,
		NumLineups:   3,
	})
	require.NoError(t, err)
	assert.Len(t, result.Lineups, 1, "only one distinct roster exists")
	require.Len(t, result.Failures, 2)
	for _, failure := range result.Failures {
		assert.Equal(t, FailureDuplicate, failure.Reason)
		assert.Contains(t, failure.Message, "lineup 1")
	}
}

func TestOptimize_TinyCatalogInfeasible(t *testing.T) {
	catalog, err := NewCatalog([]Player{
		{Name: "Trae Young", Positions: []string{"PG"}, Salary: 8700, Projection: 49.0},
		{Name: "Zach LaVine", Positions: []string{"SG"}, Salary: 7800, Projection: 42.0},
		{Name: "Evan Mobley", Positions: []string{"PF", "C"}, Salary: 7400, Projection: 44.0},
	})
	require.NoError(t, err)
	opt := newTestOptimizer(t, catalog)

	result, err := opt.Optimize(context.Background(), OptimizeConfig{
		SalaryCapMax: 50000,
		NumLineups:   1,
	})
	require.NoError(t, err)
	assert.Empty(t, result.Lineups, "three players cannot fill eight spots")
	require.Len(t, result.Failures, 1)
	assert.Equal(t, FailureInfeasible, result.Failures[0].Reason)
}

func TestOptimize_RepeatRunsAreIdentical(t *testing.T) {
	opt := newTestOptimizer(t, tightSlateCatalog(t))
	cfg := OptimizeConfig{SalaryCapMax: 50000, NumLineups: 1}

	first, err := opt.Optimize(context.Background(), cfg)
	require.NoError(t, err)
	second, err := opt.Optimize(context.Background(), cfg)
	require.NoError(t, err)

	require.Len(t, first.Lineups, 1)
	require.Len(t, second.Lineups, 1)
	assert.Equal(t, first.Lineups[0].Key(), second.Lineups[0].Key())
	assert.Equal(t, first.Lineups[0].TotalProjection, second.Lineups[0].TotalProjection)
	assert.NotEqual(t, first.RunID, second.RunID, "each batch gets its own run id")
}

func TestOptimize_ContextCancellationReturnsPartial(t *testing.T) {
	opt := newTestOptimizer(t, tightSlateCatalog(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := opt.Optimize(ctx, OptimizeConfig{
		SalaryCapMax: 50000,
		NumLineups:   3,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, result, "whatever was accepted before cancellation is kept")
	assert.Empty(t, result.Lineups)
	assert.NotNil(t, result.Exposure)
}

func TestOptimize_ProgressUpdates(t *testing.T) {
	opt := newTestOptimizer(t, waveCatalog(t))

	var updates []ProgressUpdate
	result, err := opt.OptimizeWithProgress(context.Background(), OptimizeConfig{
		SalaryCapMax: 50000,
		NumLineups:   2,
		MaxExposure:  0.5, // one lineup per player
	}, func(u ProgressUpdate) {
		updates = append(updates, u)
	})
	require.NoError(t, err)
	require.Len(t, result.Lineups, 2)

	stages := make([]string, len(updates))
	for i, u := range updates {
		stages[i] = u.Stage
		assert.Equal(t, result.RunID, u.RunID)
		assert.Equal(t, 2, u.TotalLineups)
		assert.False(t, u.Timestamp.IsZero())
	}
	assert.Equal(t, []string{
		StageSolving, StageAccepted,
		StageSolving, StageAccepted,
		StageCompleted,
	}, stages)

	assert.Equal(t, 0, updates[0].Accepted)
	assert.Equal(t, 2, updates[len(updates)-1].Accepted)
}

func TestOptimizer_ValidateConfig(t *testing.T) {
	opt := newTestOptimizer(t, tightSlateCatalog(t))
	valid := OptimizeConfig{SalaryCapMax: 50000, NumLineups: 1}
	require.NoError(t, opt.ValidateConfig(valid))

	cases := []struct {
		name   string
		mutate func(*OptimizeConfig)
	}{
		{"zero lineups", func(c *OptimizeConfig) { c.NumLineups = 0 }},
		{"zero cap", func(c *OptimizeConfig) { c.SalaryCapMax = 0 }},
		{"negative floor", func(c *OptimizeConfig) { c.SalaryCapMin = -1 }},
		{"inverted window", func(c *OptimizeConfig) { c.SalaryCapMin = 60000 }},
		{"negative exposure", func(c *OptimizeConfig) { c.MaxExposure = -0.1 }},
		{"exposure above one", func(c *OptimizeConfig) { c.MaxExposure = 1.1 }},
		{"negative value weight", func(c *OptimizeConfig) { c.ValueWeight = -1 }},
		{"negative retries", func(c *OptimizeConfig) { c.DuplicateRetries = -1 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid
			tc.mutate(&cfg)
			err := opt.ValidateConfig(cfg)
			require.Error(t, err)
			assert.True(t, IsValidationError(err), "got %v", err)
		})
	}

	cfg := valid
	cfg.LockedPlayers = []string{"Luka Doncic"}
	err := opt.ValidateConfig(cfg)
	require.Error(t, err)
	assert.True(t, IsConfigurationError(err))
}

func TestNew_RejectsBadInputs(t *testing.T) {
	catalog := tightSlateCatalog(t)

	_, err := New(nil, DraftKingsNBASlots())
	require.Error(t, err)
	assert.True(t, IsValidationError(err))

	_, err = New(catalog, []SlotRule{{Name: "PG", Eligible: []string{"PG"}, Count: 0}})
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
}

func TestOptimize_RespectsRosterSizeAccessor(t *testing.T) {
	opt := newTestOptimizer(t, tightSlateCatalog(t))
	assert.Equal(t, 8, opt.RosterSize())
}

func ExampleOptimizer_Optimize() {
	catalog, _ := NewCatalog([]Player{
		{Name: "Guard One", Positions: []string{"PG"}, Salary: 5000, Projection: 30},
		{Name: "Guard Two", Positions: []string{"SG"}, Salary: 5000, Projection: 28},
	})
	opt, _ := New(catalog, []SlotRule{
		{Name: "PG", Eligible: []string{"PG"}, Count: 1, Priority: 1},
		{Name: "SG", Eligible: []string{"SG"}, Count: 1, Priority: 2},
	})
	result, _ := opt.Optimize(context.Background(), OptimizeConfig{
		SalaryCapMax: 50000,
		NumLineups:   1,
	})
	fmt.Println(len(result.Lineups), result.Lineups[0].TotalSalary)
	// Output: 1 10000
}
