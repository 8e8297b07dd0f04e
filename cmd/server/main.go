package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/tmcfarland/cfb-rankings/internal/api"
	"github.com/tmcfarland/cfb-rankings/internal/api/handlers"
	"github.com/tmcfarland/cfb-rankings/internal/api/middleware"
	"github.com/tmcfarland/cfb-rankings/internal/providers"
	"github.com/tmcfarland/cfb-rankings/internal/services"
	"github.com/tmcfarland/cfb-rankings/pkg/config"
	"github.com/tmcfarland/cfb-rankings/pkg/database"
)

func main() {
	// Load .env if present; real env vars win.
	if err := godotenv.Load(); err == nil {
		logrus.Debug("Loaded environment from .env")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	if cfg.IsDevelopment() {
		logrus.SetLevel(logrus.DebugLevel)
		gin.SetMode(gin.DebugMode)
	} else {
		logrus.SetLevel(logrus.InfoLevel)
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewConnection(cfg.DatabaseURL, cfg.IsDevelopment())
	if err != nil {
		logrus.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		logrus.Fatalf("Failed to migrate database: %v", err)
	}

	// Redis is optional; without it the read cache is disabled.
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logrus.Fatalf("Failed to parse Redis URL: %v", err)
		}
		redisClient = redis.NewClient(opt)
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logrus.Warnf("Redis unreachable, caching disabled: %v", err)
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	logger := logrus.StandardLogger()

	// One writer lock for everything that mutates ratings.
	var writerMu sync.Mutex

	cacheService := services.NewCacheService(redisClient)
	usageService := services.NewUsageService(db, cfg, logger)
	provider := providers.NewCFBDClient(
		cfg.CFBDBaseURL, cfg.CFBDAPIKey,
		cfg.ProviderTimeout, cfg.ProviderRateLimit, cfg.ProviderRetries,
		usageService, logger,
	)
	rankingService := services.NewRankingService(db, cfg, logger, &writerMu)
	predictionService := services.NewPredictionService(db, cfg, logger, &writerMu)
	seasonService := services.NewSeasonService(db, cfg, logger, rankingService, cacheService)
	ingestionService := services.NewIngestionService(db, cfg, logger, provider, rankingService, predictionService)
	updateService := services.NewUpdateService(db, cfg, logger, provider, usageService, ingestionService, rankingService, cacheService)

	if err := updateService.Start(); err != nil {
		logrus.Fatalf("Failed to start update scheduler: %v", err)
	}
	defer updateService.Stop()

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger())
	router.Use(middleware.CORS(cfg.CorsOrigins))

	healthHandler := handlers.NewHealthHandler(db, cacheService)
	router.GET("/health", healthHandler.GetHealth)

	apiV1 := router.Group("/api/v1")
	api.SetupRoutes(apiV1, api.Deps{
		DB:          db,
		Cfg:         cfg,
		Cache:       cacheService,
		Ranking:     rankingService,
		Predictions: predictionService,
		Seasons:     seasonService,
		Usage:       usageService,
		Update:      updateService,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logrus.Infof("Starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logrus.Errorf("Server forced to shutdown: %v", err)
	}

	logrus.Info("Server exited")
}
