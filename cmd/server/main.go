package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/hoopcap/dfs-optimizer/internal/api"
	"github.com/hoopcap/dfs-optimizer/internal/api/middleware"
	"github.com/hoopcap/dfs-optimizer/internal/models"
	"github.com/hoopcap/dfs-optimizer/internal/services"
	"github.com/hoopcap/dfs-optimizer/internal/websocket"
	"github.com/hoopcap/dfs-optimizer/pkg/config"
	"github.com/hoopcap/dfs-optimizer/pkg/database"
	"github.com/hoopcap/dfs-optimizer/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	// Setup logging
	logLevel := "info"
	if cfg.IsDevelopment() {
		logLevel = "debug"
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	logger.InitLogger(logLevel, cfg.IsDevelopment())
	log := logger.WithService("dfs-optimizer")
	log.WithFields(logrus.Fields{
		"environment": cfg.Env,
		"port":        cfg.Port,
	}).Info("Starting lineup optimizer server")

	// Connect to database
	db, err := database.NewConnection(cfg.DatabaseURL, cfg.IsDevelopment())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.AutoMigrate(&models.Slate{}, &models.SlatePlayer{}, &models.OptimizationRun{}); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	// Connect to Redis when result caching is on
	var resultCache *services.ResultCache
	if cfg.EnableResultCache {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("Failed to parse Redis URL: %v", err)
		}
		redisClient := redis.NewClient(opt)
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redisClient.Close()
		resultCache = services.NewResultCache(redisClient, cfg.ResultCacheTTL, cfg.CircuitBreakerThreshold)
	}

	// Initialize services
	slateStore := services.NewSlateStore(db)
	runStore := services.NewRunStore(db)

	hub := websocket.NewHub()
	go hub.Run()

	optimization := services.NewOptimizationService(slateStore, runStore, resultCache, hub, services.OptimizationSettings{
		Timeout:          time.Duration(cfg.OptimizationTimeout) * time.Second,
		MaxLineups:       cfg.MaxLineups,
		DefaultSalaryCap: cfg.DefaultSalaryCap,
		SalaryCapFloor:   cfg.SalaryCapFloor,
		SalaryCapCeiling: cfg.SalaryCapCeiling,
		DuplicateRetries: cfg.DuplicateRetries,
		ValueWeight:      cfg.ValueWeight,
		CacheResults:     cfg.EnableResultCache,
	})

	if cfg.EnableBackgroundJobs {
		maintenance := services.NewMaintenanceService(slateStore, runStore, resultCache,
			cfg.CleanupSchedule, cfg.SlateTTL, cfg.RunTTL)
		if err := maintenance.Start(); err != nil {
			log.Errorf("Failed to start maintenance service: %v", err)
		}
		defer maintenance.Stop()
	}

	// Setup Gin router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.CORS(cfg.CorsOrigins))

	// API routes under /api/v1
	apiV1 := router.Group("/api/v1")
	api.SetupRoutes(apiV1, db, slateStore, optimization, resultCache, cfg)

	// WebSocket endpoint at root level, outside /api/v1
	router.GET("/ws", middleware.OptionalAuth(cfg.JWTSecret), hub.HandleWebSocket)

	// Setup server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: time.Duration(cfg.OptimizationTimeout)*time.Second + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Infof("Starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorf("Server forced to shutdown: %v", err)
	}

	log.Info("Server exited")
}
