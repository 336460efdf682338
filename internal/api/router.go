package api

import (
	"github.com/gin-gonic/gin"

	"github.com/hoopcap/dfs-optimizer/internal/api/handlers"
	"github.com/hoopcap/dfs-optimizer/internal/api/middleware"
	"github.com/hoopcap/dfs-optimizer/internal/services"
	"github.com/hoopcap/dfs-optimizer/pkg/config"
	"github.com/hoopcap/dfs-optimizer/pkg/database"
)

// SetupRoutes configures all API routes on the given router group.
func SetupRoutes(
	group *gin.RouterGroup,
	db *database.DB,
	slates *services.SlateStore,
	optimization *services.OptimizationService,
	cache *services.ResultCache,
	cfg *config.Config,
) {
	slateHandler := handlers.NewSlateHandler(slates, cfg.MaxPoolSize)
	optimizeHandler := handlers.NewOptimizeHandler(optimization)
	healthHandler := handlers.NewHealthHandler(db, cache)

	optimizeLimiter := middleware.NewRateLimiter(cfg.OptimizeRateLimit, cfg.OptimizeRateBurst)

	// Probes
	group.GET("/health", healthHandler.GetHealth)
	group.GET("/ready", healthHandler.GetReady)

	// Slate endpoints
	group.GET("/slates", slateHandler.ListSlates)
	group.GET("/slates/:id", slateHandler.GetSlate)

	// Run retrieval
	group.GET("/runs/:id", optimizeHandler.GetRun)
	group.GET("/slates/:id/runs", optimizeHandler.ListRuns)

	// Mutating routes require auth when a JWT secret is configured
	auth := group.Group("")
	auth.Use(middleware.AuthRequired(cfg.JWTSecret))
	{
		auth.POST("/slates", slateHandler.CreateSlate)
		auth.DELETE("/slates/:id", slateHandler.DeactivateSlate)

		auth.POST("/slates/:id/optimize/validate", optimizeHandler.Validate)

		solve := auth.Group("")
		solve.Use(optimizeLimiter.Middleware())
		{
			solve.POST("/slates/:id/optimize", optimizeHandler.Optimize)
		}
	}
}
