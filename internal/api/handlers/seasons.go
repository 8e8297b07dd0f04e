package handlers

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/tmcfarland/cfb-rankings/internal/services"
	"github.com/tmcfarland/cfb-rankings/pkg/utils"
)

type SeasonHandler struct {
	seasons *services.SeasonService
}

func NewSeasonHandler(seasons *services.SeasonService) *SeasonHandler {
	return &SeasonHandler{seasons: seasons}
}

func (h *SeasonHandler) ListSeasons(c *gin.Context) {
	seasons, err := h.seasons.List()
	if err != nil {
		utils.SendServiceError(c, err)
		return
	}
	utils.SendSuccess(c, seasons)
}

func (h *SeasonHandler) GetActiveSeason(c *gin.Context) {
	season, err := h.seasons.Active()
	if err != nil {
		utils.SendServiceError(c, err)
		return
	}
	utils.SendSuccess(c, season)
}

type createSeasonRequest struct {
	Year int `json:"year" binding:"required"`
}

func (h *SeasonHandler) CreateSeason(c *gin.Context) {
	var req createSeasonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendValidationError(c, "Invalid season payload", err.Error())
		return
	}

	season, err := h.seasons.Create(req.Year)
	if err != nil {
		utils.SendServiceError(c, err)
		return
	}
	utils.SendSuccess(c, season)
}

// ActivateSeason makes the given year the active season.
func (h *SeasonHandler) ActivateSeason(c *gin.Context) {
	year, err := strconv.Atoi(c.Param("year"))
	if err != nil {
		utils.SendValidationError(c, "Invalid season year", err.Error())
		return
	}

	season, err := h.seasons.SetActive(year)
	if err != nil {
		utils.SendServiceError(c, err)
		return
	}
	utils.SendSuccess(c, season)
}

// ResetSeason rebuilds every rating from preseason inputs plus a full
// chronological replay.
func (h *SeasonHandler) ResetSeason(c *gin.Context) {
	year, err := strconv.Atoi(c.Param("year"))
	if err != nil {
		utils.SendValidationError(c, "Invalid season year", err.Error())
		return
	}

	if err := h.seasons.Reset(context.Background(), year); err != nil {
		utils.SendServiceError(c, err)
		return
	}
	utils.SendSuccess(c, gin.H{"season": year, "status": "recomputed"})
}
