package handlers

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tmcfarland/cfb-rankings/internal/services"
	"github.com/tmcfarland/cfb-rankings/pkg/utils"
)

type PredictionHandler struct {
	cache       *services.CacheService
	predictions *services.PredictionService
	seasons     *services.SeasonService
}

func NewPredictionHandler(cache *services.CacheService, predictions *services.PredictionService, seasons *services.SeasonService) *PredictionHandler {
	return &PredictionHandler{
		cache:       cache,
		predictions: predictions,
		seasons:     seasons,
	}
}

// GetUpcoming returns predictions for scheduled games, marquee matchups
// first.
func (h *PredictionHandler) GetUpcoming(c *gin.Context) {
	season, err := h.season(c)
	if err != nil {
		utils.SendServiceError(c, err)
		return
	}

	var week *int
	if raw := c.Query("week"); raw != "" {
		w, err := strconv.Atoi(raw)
		if err != nil {
			utils.SendValidationError(c, "Invalid week", err.Error())
			return
		}
		week = &w
	} else if raw := c.Query("next_week"); raw != "" {
		next, err := strconv.ParseBool(raw)
		if err != nil {
			utils.SendValidationError(c, "Invalid next_week flag", err.Error())
			return
		}
		if next {
			row, err := h.seasons.Get(season)
			if err != nil {
				utils.SendServiceError(c, err)
				return
			}
			w := row.CurrentWeek + 1
			week = &w
		}
	}

	var teamID uint64
	if raw := c.Query("team_id"); raw != "" {
		teamID, err = strconv.ParseUint(raw, 10, 32)
		if err != nil {
			utils.SendValidationError(c, "Invalid team ID", err.Error())
			return
		}
	}

	views, err := h.predictions.ListUpcoming(season, week, uint(teamID))
	if err != nil {
		utils.SendServiceError(c, err)
		return
	}
	utils.SendSuccess(c, views)
}

// ListPredictions returns the season's raw prediction rows.
func (h *PredictionHandler) ListPredictions(c *gin.Context) {
	season, err := h.season(c)
	if err != nil {
		utils.SendServiceError(c, err)
		return
	}
	rows, err := h.predictions.ListStored(season)
	if err != nil {
		utils.SendServiceError(c, err)
		return
	}
	utils.SendSuccess(c, rows)
}

// CreatePrediction stores a prediction for a scheduled game using the
// ratings in effect right now.
func (h *PredictionHandler) CreatePrediction(c *gin.Context) {
	gameID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		utils.SendValidationError(c, "Invalid game ID", err.Error())
		return
	}

	prediction, err := h.predictions.CreateAndStore(uint(gameID))
	if err != nil {
		utils.SendServiceError(c, err)
		return
	}
	utils.SendSuccess(c, prediction)
}

// GetAccuracy reports resolved-prediction accuracy, optionally scoped
// to one team via ?team_id.
func (h *PredictionHandler) GetAccuracy(c *gin.Context) {
	var teamID uint64
	if raw := c.Query("team_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			utils.SendValidationError(c, "Invalid team ID", err.Error())
			return
		}
		teamID = id
	}
	h.accuracy(c, uint(teamID))
}

// GetTeamAccuracy scopes the accuracy report to the team in the path.
func (h *PredictionHandler) GetTeamAccuracy(c *gin.Context) {
	teamID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		utils.SendValidationError(c, "Invalid team ID", err.Error())
		return
	}
	h.accuracy(c, uint(teamID))
}

func (h *PredictionHandler) accuracy(c *gin.Context, teamID uint) {
	season, err := h.season(c)
	if err != nil {
		utils.SendServiceError(c, err)
		return
	}

	ctx := context.Background()
	cacheKey := services.AccuracyCacheKey(season, teamID)
	var cached services.AccuracyReport
	if err := h.cache.Get(ctx, cacheKey, &cached); err == nil {
		utils.SendSuccess(c, cached)
		return
	}

	report, err := h.predictions.GetAccuracy(season, teamID)
	if err != nil {
		utils.SendServiceError(c, err)
		return
	}

	h.cache.Set(ctx, cacheKey, report, 10*time.Minute)
	utils.SendSuccess(c, report)
}

// GetComparison pits the rating model against the AP-poll baseline.
func (h *PredictionHandler) GetComparison(c *gin.Context) {
	season, err := h.season(c)
	if err != nil {
		utils.SendServiceError(c, err)
		return
	}

	ctx := context.Background()
	cacheKey := services.ComparisonCacheKey(season)
	var cached services.ComparisonReport
	if err := h.cache.Get(ctx, cacheKey, &cached); err == nil {
		utils.SendSuccess(c, cached)
		return
	}

	report, err := h.predictions.CompareToAP(season)
	if err != nil {
		utils.SendServiceError(c, err)
		return
	}

	h.cache.Set(ctx, cacheKey, report, 10*time.Minute)
	utils.SendSuccess(c, report)
}

func (h *PredictionHandler) season(c *gin.Context) (int, error) {
	if raw := c.Query("season"); raw != "" {
		return strconv.Atoi(raw)
	}
	active, err := h.seasons.Active()
	if err != nil {
		return 0, err
	}
	return active.Year, nil
}
