package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"github.com/hoopcap/dfs-optimizer/internal/optimizer"
)

// Run lifecycle states.
const (
	RunStatusPending   = "pending"
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// OptimizationRun persists one batch: the request that started it and, once
// finished, the full result payload. Request and Result are JSON columns so
// the optimizer types stay the single source of truth for their shape.
type OptimizationRun struct {
	ID           string         `gorm:"type:uuid;primaryKey" json:"id"`
	SlateID      string         `gorm:"type:uuid;index" json:"slate_id"`
	Status       string         `gorm:"not null;default:pending;index" json:"status"`
	Requested    int            `json:"requested"`
	Accepted     int            `json:"accepted"`
	Request      datatypes.JSON `gorm:"type:jsonb" json:"request,omitempty"`
	Result       datatypes.JSON `gorm:"type:jsonb" json:"result,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty"`
	StartedAt    *time.Time     `json:"started_at,omitempty"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

func (OptimizationRun) TableName() string {
	return "optimization_runs"
}

// NewRun creates a pending run record for a batch request.
func NewRun(runID, slateID string, cfg optimizer.OptimizeConfig) (*OptimizationRun, error) {
	request, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	return &OptimizationRun{
		ID:        runID,
		SlateID:   slateID,
		Status:    RunStatusPending,
		Requested: cfg.NumLineups,
		Request:   datatypes.JSON(request),
	}, nil
}

// MarkRunning stamps the start of solving.
func (r *OptimizationRun) MarkRunning(now time.Time) {
	r.Status = RunStatusRunning
	r.StartedAt = &now
}

// MarkCompleted attaches the finished batch.
func (r *OptimizationRun) MarkCompleted(result *optimizer.BatchResult, now time.Time) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return err
	}
	r.Status = RunStatusCompleted
	r.Accepted = len(result.Lineups)
	r.Result = datatypes.JSON(payload)
	r.CompletedAt = &now
	return nil
}

// MarkFailed records a batch-level failure.
func (r *OptimizationRun) MarkFailed(err error, now time.Time) {
	r.Status = RunStatusFailed
	r.ErrorMessage = err.Error()
	r.CompletedAt = &now
}

// MarkFailedWithPartial records a failure that still produced lineups, such
// as a cancelled batch, keeping the partial result next to the error.
func (r *OptimizationRun) MarkFailedWithPartial(result *optimizer.BatchResult, cause error, now time.Time) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return err
	}
	r.Status = RunStatusFailed
	r.Accepted = len(result.Lineups)
	r.Result = datatypes.JSON(payload)
	r.ErrorMessage = cause.Error()
	r.CompletedAt = &now
	return nil
}

// BatchResult decodes the stored result payload, nil when none is stored.
func (r *OptimizationRun) BatchResult() (*optimizer.BatchResult, error) {
	if len(r.Result) == 0 {
		return nil, nil
	}
	var result optimizer.BatchResult
	if err := json.Unmarshal(r.Result, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
