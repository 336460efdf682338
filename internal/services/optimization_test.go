package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hoopcap/dfs-optimizer/internal/models"
	"github.com/hoopcap/dfs-optimizer/internal/optimizer"
	"github.com/hoopcap/dfs-optimizer/pkg/utils"
)

func newOptimizationService(t *testing.T) (*OptimizationService, *SlateStore, *RunStore) {
	t.Helper()

	db := newTestDB(t)
	slates := NewSlateStore(db)
	runs := NewRunStore(db)
	svc := NewOptimizationService(slates, runs, nil, nil, OptimizationSettings{
		Timeout:          10 * time.Second,
		MaxLineups:       20,
		DefaultSalaryCap: 46000,
		SalaryCapFloor:   40000,
		SalaryCapCeiling: 60000,
		DuplicateRetries: 1,
	})
	return svc, slates, runs
}

func TestOptimizationServiceEndToEnd(t *testing.T) {
	svc, slates, _ := newOptimizationService(t)
	ctx := context.Background()

	slate := seedSlate(t, slates, time.Now().Add(4*time.Hour))

	result, err := svc.Optimize(ctx, slate.ID, optimizer.OptimizeConfig{
		SalaryCapMax: 50000,
		NumLineups:   1,
	})
	require.NoError(t, err)
	require.Len(t, result.Lineups, 1)

	// Five punts plus the three best-scoring studs that fit the cap
	lineup := result.Lineups[0]
	assert.Equal(t, 48600, lineup.TotalSalary)
	assert.InDelta(t, 393.0, lineup.TotalProjection, 1e-9)
	assert.Len(t, lineup.Players, 8)

	run, err := svc.GetRun(ctx, result.RunID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, run.Status)
	assert.Equal(t, 1, run.Accepted)
	assert.Equal(t, slate.ID, run.SlateID)

	stored, err := run.BatchResult()
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, result.RunID, stored.RunID)
	require.Len(t, stored.Lineups, 1)
	assert.Equal(t, lineup.TotalSalary, stored.Lineups[0].TotalSalary)
}

func TestOptimizationServiceInheritsSlateCap(t *testing.T) {
	svc, slates, _ := newOptimizationService(t)
	ctx := context.Background()

	// Slate carries 50000; the server default of 46000 must not override it
	slate := seedSlate(t, slates, time.Now().Add(4*time.Hour))

	result, err := svc.Optimize(ctx, slate.ID, optimizer.OptimizeConfig{NumLineups: 1})
	require.NoError(t, err)

	run, err := svc.GetRun(ctx, result.RunID)
	require.NoError(t, err)

	var recorded optimizer.OptimizeConfig
	require.NoError(t, json.Unmarshal(run.Request, &recorded))
	assert.Equal(t, 50000, recorded.SalaryCapMax)
}

func TestOptimizationServicePolicyFillsValueWeight(t *testing.T) {
	db := newTestDB(t)
	slates := NewSlateStore(db)
	svc := NewOptimizationService(slates, NewRunStore(db), nil, nil, OptimizationSettings{
		Timeout:          10 * time.Second,
		MaxLineups:       20,
		DefaultSalaryCap: 46000,
		SalaryCapFloor:   40000,
		SalaryCapCeiling: 60000,
		DuplicateRetries: 1,
		ValueWeight:      0.25,
	})
	ctx := context.Background()

	slate := seedSlate(t, slates, time.Now().Add(4*time.Hour))

	result, err := svc.Optimize(ctx, slate.ID, optimizer.OptimizeConfig{
		SalaryCapMax: 50000,
		NumLineups:   1,
	})
	require.NoError(t, err)

	run, err := svc.GetRun(ctx, result.RunID)
	require.NoError(t, err)

	var recorded optimizer.OptimizeConfig
	require.NoError(t, json.Unmarshal(run.Request, &recorded))
	assert.InDelta(t, 0.25, recorded.ValueWeight, 1e-9)
}

func TestOptimizationServicePolicyRejects(t *testing.T) {
	svc, slates, runs := newOptimizationService(t)
	ctx := context.Background()

	slate := seedSlate(t, slates, time.Now().Add(4*time.Hour))

	_, err := svc.Optimize(ctx, slate.ID, optimizer.OptimizeConfig{
		SalaryCapMax: 50000,
		NumLineups:   25, // over the server cap of 20
	})
	require.Error(t, err)
	assert.True(t, optimizer.IsValidationError(err))

	_, err = svc.Optimize(ctx, slate.ID, optimizer.OptimizeConfig{
		SalaryCapMax: 99000, // outside the allowed window
		NumLineups:   1,
	})
	require.Error(t, err)
	assert.True(t, optimizer.IsValidationError(err))

	// Rejected requests never leave run records behind
	records, err := runs.ListRunsForSlate(ctx, slate.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestOptimizationServiceUnknownSlate(t *testing.T) {
	svc, _, _ := newOptimizationService(t)

	_, err := svc.Optimize(context.Background(), "missing", optimizer.OptimizeConfig{
		SalaryCapMax: 50000,
		NumLineups:   1,
	})
	assert.ErrorIs(t, err, utils.ErrNotFound)
}

func TestOptimizationServiceLockConflict(t *testing.T) {
	svc, slates, _ := newOptimizationService(t)
	ctx := context.Background()

	slate := seedSlate(t, slates, time.Now().Add(4*time.Hour))

	err := svc.ValidateOnly(ctx, slate.ID, optimizer.OptimizeConfig{
		SalaryCapMax:    50000,
		NumLineups:      1,
		LockedPlayers:   []string{"Bam Adebayo"},
		ExcludedPlayers: []string{"Bam Adebayo"},
	})
	require.Error(t, err)
	assert.True(t, optimizer.IsConfigurationError(err))
}

func TestOptimizationServiceDegradedBatchPersists(t *testing.T) {
	svc, slates, _ := newOptimizationService(t)
	ctx := context.Background()

	slate := seedSlate(t, slates, time.Now().Add(4*time.Hour))

	// Exposure limit floor(3*0.34)=1: the first roster consumes its eight
	// players, leaving only two for the rest of the batch.
	result, err := svc.Optimize(ctx, slate.ID, optimizer.OptimizeConfig{
		SalaryCapMax: 50000,
		NumLineups:   3,
		MaxExposure:  0.34,
	})
	require.NoError(t, err)
	assert.Len(t, result.Lineups, 1)
	assert.Len(t, result.Failures, 2)
	for _, failure := range result.Failures {
		assert.Equal(t, optimizer.FailureInfeasible, failure.Reason)
	}

	run, err := svc.GetRun(ctx, result.RunID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCompleted, run.Status)
	assert.Equal(t, 1, run.Accepted)
	assert.Equal(t, 3, run.Requested)
}

func TestOptimizationServiceAsync(t *testing.T) {
	svc, slates, _ := newOptimizationService(t)
	ctx := context.Background()

	slate := seedSlate(t, slates, time.Now().Add(4*time.Hour))

	runID, err := svc.OptimizeAsync(ctx, slate.ID, optimizer.OptimizeConfig{
		SalaryCapMax: 50000,
		NumLineups:   1,
	})
	require.NoError(t, err)
	require.NotEmpty(t, runID)

	require.Eventually(t, func() bool {
		run, err := svc.GetRun(ctx, runID)
		return err == nil && run.Status == models.RunStatusCompleted
	}, 10*time.Second, 50*time.Millisecond)

	run, err := svc.GetRun(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, 1, run.Accepted)

	stored, err := run.BatchResult()
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, runID, stored.RunID)
}
