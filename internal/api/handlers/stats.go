package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tmcfarland/cfb-rankings/internal/models"
	"github.com/tmcfarland/cfb-rankings/internal/services"
	"github.com/tmcfarland/cfb-rankings/pkg/database"
	"github.com/tmcfarland/cfb-rankings/pkg/utils"
)

type StatsHandler struct {
	db          *database.DB
	predictions *services.PredictionService
	seasons     *services.SeasonService
}

func NewStatsHandler(db *database.DB, predictions *services.PredictionService, seasons *services.SeasonService) *StatsHandler {
	return &StatsHandler{db: db, predictions: predictions, seasons: seasons}
}

// GetStats returns a season-level activity summary for dashboards.
func (h *StatsHandler) GetStats(c *gin.Context) {
	var season int
	if raw := c.Query("season"); raw != "" {
		var err error
		if season, err = strconv.Atoi(raw); err != nil {
			utils.SendValidationError(c, "Invalid season", err.Error())
			return
		}
	} else {
		active, err := h.seasons.Active()
		if err != nil {
			utils.SendServiceError(c, err)
			return
		}
		season = active.Year
	}

	var teams, fbsTeams int64
	if err := h.db.Model(&models.Team{}).Count(&teams).Error; err != nil {
		utils.SendInternalError(c, "Failed to count teams")
		return
	}
	if err := h.db.Model(&models.Team{}).Where("conference_tier <> ?", models.TierFCS).Count(&fbsTeams).Error; err != nil {
		utils.SendInternalError(c, "Failed to count teams")
		return
	}

	var totalGames, processedGames, excludedGames int64
	games := h.db.Model(&models.Game{}).Where("season = ?", season)
	if err := games.Session(&gorm.Session{}).Count(&totalGames).Error; err != nil {
		utils.SendInternalError(c, "Failed to count games")
		return
	}
	if err := games.Session(&gorm.Session{}).Where("is_processed = ?", true).Count(&processedGames).Error; err != nil {
		utils.SendInternalError(c, "Failed to count games")
		return
	}
	if err := games.Session(&gorm.Session{}).Where("excluded_from_rankings = ?", true).Count(&excludedGames).Error; err != nil {
		utils.SendInternalError(c, "Failed to count games")
		return
	}

	accuracy, err := h.predictions.GetAccuracy(season, 0)
	if err != nil {
		utils.SendServiceError(c, err)
		return
	}

	var currentWeek int
	var seasonRow models.Season
	if err := h.db.Where("year = ?", season).First(&seasonRow).Error; err == nil {
		currentWeek = seasonRow.CurrentWeek
	}

	utils.SendSuccess(c, gin.H{
		"season":          season,
		"current_week":    currentWeek,
		"teams":           teams,
		"fbs_teams":       fbsTeams,
		"games":           totalGames,
		"processed_games": processedGames,
		"excluded_games":  excludedGames,
		"accuracy":        accuracy,
	})
}
