package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hoopcap/dfs-optimizer/internal/services"
	"github.com/hoopcap/dfs-optimizer/pkg/database"
)

type HealthHandler struct {
	db    *database.DB
	cache *services.ResultCache
}

func NewHealthHandler(db *database.DB, cache *services.ResultCache) *HealthHandler {
	return &HealthHandler{
		db:    db,
		cache: cache,
	}
}

// GetHealth is the liveness probe, 200 whenever the process is serving.
func (h *HealthHandler) GetHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "dfs-optimizer",
		"time":    time.Now().UTC(),
	})
}

// GetReady is the readiness probe. The database is required; the cache is
// reported but optional since the optimizer runs without it.
func (h *HealthHandler) GetReady(c *gin.Context) {
	checks := gin.H{}
	ready := true

	sqlDB, err := h.db.DB.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		checks["database"] = "down"
		ready = false
	} else {
		checks["database"] = "up"
	}

	if h.cache != nil {
		if h.cache.Healthy(c.Request.Context()) {
			checks["cache"] = "up"
		} else {
			checks["cache"] = "degraded"
		}
	}

	status := http.StatusOK
	state := "ready"
	if !ready {
		status = http.StatusServiceUnavailable
		state = "not_ready"
	}
	c.JSON(status, gin.H{
		"status": state,
		"checks": checks,
	})
}
