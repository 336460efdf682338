package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hoopcap/dfs-optimizer/internal/optimizer"
	"github.com/hoopcap/dfs-optimizer/internal/services"
	"github.com/hoopcap/dfs-optimizer/pkg/utils"
)

type OptimizeHandler struct {
	service *services.OptimizationService
}

func NewOptimizeHandler(service *services.OptimizationService) *OptimizeHandler {
	return &OptimizeHandler{service: service}
}

// Optimize solves a batch for a slate. With ?async=true the call returns a
// run ID immediately and the batch runs in the background; progress streams
// over the websocket and the finished run is fetched by ID.
func (h *OptimizeHandler) Optimize(c *gin.Context) {
	var cfg optimizer.OptimizeConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		utils.SendValidationError(c, "Invalid request body", err.Error())
		return
	}

	slateID := c.Param("id")

	if c.Query("async") == "true" {
		runID, err := h.service.OptimizeAsync(c.Request.Context(), slateID, cfg)
		if err != nil {
			h.sendOptimizeError(c, nil, err)
			return
		}
		c.JSON(http.StatusAccepted, utils.Response{
			Success: true,
			Data:    gin.H{"run_id": runID, "status": "pending"},
		})
		return
	}

	result, err := h.service.Optimize(c.Request.Context(), slateID, cfg)
	if err != nil {
		h.sendOptimizeError(c, result, err)
		return
	}
	utils.SendSuccess(c, result)
}

// Validate checks a request against a slate without solving.
func (h *OptimizeHandler) Validate(c *gin.Context) {
	var cfg optimizer.OptimizeConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		utils.SendValidationError(c, "Invalid request body", err.Error())
		return
	}

	if err := h.service.ValidateOnly(c.Request.Context(), c.Param("id"), cfg); err != nil {
		h.sendOptimizeError(c, nil, err)
		return
	}
	utils.SendSuccess(c, gin.H{"valid": true})
}

// GetRun returns a stored run, including its result payload once finished.
func (h *OptimizeHandler) GetRun(c *gin.Context) {
	run, err := h.service.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			utils.SendNotFound(c, "Run not found")
			return
		}
		utils.SendInternalError(c, "Failed to load run")
		return
	}
	utils.SendSuccess(c, run)
}

// ListRuns returns recent runs for a slate, newest first.
func (h *OptimizeHandler) ListRuns(c *gin.Context) {
	limit := parsePositiveInt(c.DefaultQuery("limit", "20"), 20)
	if limit > 100 {
		limit = 100
	}

	runs, err := h.service.ListRuns(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		utils.SendInternalError(c, "Failed to list runs")
		return
	}
	utils.SendSuccess(c, runs)
}

// sendOptimizeError maps the optimizer's error taxonomy onto HTTP statuses.
// A batch that died with lineups already accepted keeps them on the run
// record; the response points at the run so the partial output is not lost.
func (h *OptimizeHandler) sendOptimizeError(c *gin.Context, partial *optimizer.BatchResult, err error) {
	switch {
	case errors.Is(err, utils.ErrNotFound):
		utils.SendNotFound(c, "Slate not found")
	case optimizer.IsValidationError(err):
		utils.SendValidationError(c, "Invalid optimization request", err.Error())
	case optimizer.IsConfigurationError(err):
		utils.SendConfigurationError(c, "Conflicting player rules", err.Error())
	case partial != nil:
		status := http.StatusInternalServerError
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			status = http.StatusGatewayTimeout
		}
		utils.SendError(c, status, utils.NewAppError(utils.ErrCodeSolver,
			"Optimization did not finish",
			fmt.Sprintf("run %s kept %d accepted lineups: %v", partial.RunID, len(partial.Lineups), err)))
	default:
		utils.SendError(c, http.StatusInternalServerError,
			utils.NewAppError(utils.ErrCodeSolver, "Optimization failed", err.Error()))
	}
}
