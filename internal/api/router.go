package api

import (
	"github.com/gin-gonic/gin"

	"github.com/tmcfarland/cfb-rankings/internal/api/handlers"
	"github.com/tmcfarland/cfb-rankings/internal/services"
	"github.com/tmcfarland/cfb-rankings/pkg/config"
	"github.com/tmcfarland/cfb-rankings/pkg/database"
)

// Deps carries the wired service graph into route registration.
type Deps struct {
	DB          *database.DB
	Cfg         *config.Config
	Cache       *services.CacheService
	Ranking     *services.RankingService
	Predictions *services.PredictionService
	Seasons     *services.SeasonService
	Usage       *services.UsageService
	Update      *services.UpdateService
}

// SetupRoutes registers every API route on the given group.
func SetupRoutes(group *gin.RouterGroup, d Deps) {
	rankingHandler := handlers.NewRankingHandler(d.Cache, d.Ranking, d.Seasons)
	teamHandler := handlers.NewTeamHandler(d.DB, d.Ranking, d.Seasons)
	gameHandler := handlers.NewGameHandler(d.DB, d.Cfg, d.Ranking, d.Predictions)
	predictionHandler := handlers.NewPredictionHandler(d.Cache, d.Predictions, d.Seasons)
	seasonHandler := handlers.NewSeasonHandler(d.Seasons)
	statsHandler := handlers.NewStatsHandler(d.DB, d.Predictions, d.Seasons)
	adminHandler := handlers.NewAdminHandler(d.Cfg, d.Usage, d.Update)

	// Rankings
	group.GET("/rankings", rankingHandler.GetRankings)
	group.GET("/rankings/history", rankingHandler.GetRankingHistory)

	// Teams
	group.GET("/teams", teamHandler.ListTeams)
	group.GET("/teams/:id", teamHandler.GetTeam)
	group.GET("/teams/:id/schedule", teamHandler.GetTeamSchedule)
	group.GET("/teams/:id/history", rankingHandler.GetRankingHistory)

	// Games
	group.GET("/games", gameHandler.ListGames)
	group.POST("/games", gameHandler.CreateGame)
	group.GET("/games/:id", gameHandler.GetGame)
	group.PUT("/games/:id/result", gameHandler.SubmitResult)
	group.POST("/games/:id/prediction", predictionHandler.CreatePrediction)

	// Predictions: the bare collection is the scheduled-game view;
	// raw stored rows live under /stored.
	group.GET("/predictions", predictionHandler.GetUpcoming)
	group.GET("/predictions/upcoming", predictionHandler.GetUpcoming)
	group.GET("/predictions/stored", predictionHandler.ListPredictions)
	group.GET("/predictions/accuracy", predictionHandler.GetAccuracy)
	group.GET("/predictions/accuracy/team/:id", predictionHandler.GetTeamAccuracy)
	group.GET("/predictions/comparison", predictionHandler.GetComparison)

	// Seasons
	group.GET("/seasons", seasonHandler.ListSeasons)
	group.POST("/seasons", seasonHandler.CreateSeason)
	group.GET("/seasons/active", seasonHandler.GetActiveSeason)
	group.PUT("/seasons/:year/activate", seasonHandler.ActivateSeason)
	group.POST("/seasons/:year/reset", seasonHandler.ResetSeason)

	// Stats
	group.GET("/stats", statsHandler.GetStats)

	// Admin: update tasks, quota, runtime settings
	admin := group.Group("/admin")
	{
		admin.POST("/trigger-update", adminHandler.TriggerUpdate)
		admin.POST("/update", adminHandler.TriggerUpdate)
		admin.GET("/update-status/:id", adminHandler.GetTask)
		admin.GET("/update/tasks", adminHandler.ListTasks)
		admin.GET("/update/tasks/:id", adminHandler.GetTask)
		admin.DELETE("/update/tasks/:id", adminHandler.CancelTask)
		admin.GET("/api-usage", adminHandler.GetAPIUsage)
		admin.GET("/api-usage/dashboard", adminHandler.GetUsageDashboard)
		admin.GET("/usage-dashboard", adminHandler.GetUsageDashboard)
		admin.GET("/config", adminHandler.GetConfig)
		admin.PUT("/config", adminHandler.UpdateConfig)
	}
}
