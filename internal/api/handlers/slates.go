package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"

	"github.com/hoopcap/dfs-optimizer/internal/models"
	"github.com/hoopcap/dfs-optimizer/internal/optimizer"
	"github.com/hoopcap/dfs-optimizer/internal/services"
	"github.com/hoopcap/dfs-optimizer/pkg/utils"
)

type SlateHandler struct {
	slates      *services.SlateStore
	maxPoolSize int
}

func NewSlateHandler(slates *services.SlateStore, maxPoolSize int) *SlateHandler {
	return &SlateHandler{
		slates:      slates,
		maxPoolSize: maxPoolSize,
	}
}

type slatePlayerPayload struct {
	Name       string  `json:"name" binding:"required"`
	Team       string  `json:"team"`
	Positions  string  `json:"positions" binding:"required"` // slash-separated, "PG/SG"
	Salary     int     `json:"salary" binding:"required"`
	Projection float64 `json:"projection"`
}

type createSlateRequest struct {
	Name         string               `json:"name" binding:"required"`
	Sport        string               `json:"sport"`
	Platform     string               `json:"platform"`
	SalaryCap    int                  `json:"salary_cap"`
	GameCount    int                  `json:"game_count"`
	StartTime    time.Time            `json:"start_time"`
	DefaultRules json.RawMessage      `json:"default_rules"`
	Players      []slatePlayerPayload `json:"players" binding:"required,min=1"`
}

// CreateSlate ingests a player pool for one contest date.
func (h *SlateHandler) CreateSlate(c *gin.Context) {
	var req createSlateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendValidationError(c, "Invalid request body", err.Error())
		return
	}

	if h.maxPoolSize > 0 && len(req.Players) > h.maxPoolSize {
		utils.SendValidationError(c, "Player pool too large",
			fmt.Sprintf("maximum pool size is %d, got %d", h.maxPoolSize, len(req.Players)))
		return
	}

	players := make([]optimizer.Player, 0, len(req.Players))
	for _, p := range req.Players {
		positions, err := optimizer.ParsePositions(p.Positions)
		if err != nil {
			utils.SendValidationError(c, "Invalid player "+p.Name, err.Error())
			return
		}
		players = append(players, optimizer.Player{
			Name:       p.Name,
			Team:       p.Team,
			Positions:  positions,
			Salary:     p.Salary,
			Projection: p.Projection,
		})
	}

	slate := &models.Slate{
		Name:      req.Name,
		Sport:     req.Sport,
		Platform:  req.Platform,
		SalaryCap: req.SalaryCap,
		GameCount: req.GameCount,
		StartTime: req.StartTime,
		IsActive:  true,
	}
	if len(req.DefaultRules) > 0 {
		slate.DefaultRules = datatypes.JSON(req.DefaultRules)
	}

	if err := h.slates.CreateSlate(c.Request.Context(), slate, players); err != nil {
		if optimizer.IsValidationError(err) {
			utils.SendValidationError(c, "Invalid player pool", err.Error())
			return
		}
		utils.SendInternalError(c, "Failed to create slate")
		return
	}

	utils.SendCreated(c, slate)
}

// GetSlate returns one slate with its player pool.
func (h *SlateHandler) GetSlate(c *gin.Context) {
	slate, err := h.slates.GetSlate(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			utils.SendNotFound(c, "Slate not found")
			return
		}
		utils.SendInternalError(c, "Failed to load slate")
		return
	}
	utils.SendSuccess(c, slate)
}

// ListSlates returns slates, newest first. ?active=true filters to active.
func (h *SlateHandler) ListSlates(c *gin.Context) {
	activeOnly := c.Query("active") == "true"
	page := parsePositiveInt(c.DefaultQuery("page", "1"), 1)
	perPage := parsePositiveInt(c.DefaultQuery("per_page", "20"), 20)
	if perPage > 100 {
		perPage = 100
	}

	slates, total, err := h.slates.ListSlates(c.Request.Context(), activeOnly, perPage, (page-1)*perPage)
	if err != nil {
		utils.SendInternalError(c, "Failed to list slates")
		return
	}

	totalPages := int((total + int64(perPage) - 1) / int64(perPage))
	utils.SendSuccessWithMeta(c, slates, &utils.Meta{
		Page:       page,
		PerPage:    perPage,
		Total:      total,
		TotalPages: totalPages,
	})
}

// DeactivateSlate retires a slate without deleting its history.
func (h *SlateHandler) DeactivateSlate(c *gin.Context) {
	err := h.slates.DeactivateSlate(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			utils.SendNotFound(c, "Slate not found")
			return
		}
		utils.SendInternalError(c, "Failed to deactivate slate")
		return
	}
	utils.SendSuccess(c, gin.H{"deactivated": true})
}
