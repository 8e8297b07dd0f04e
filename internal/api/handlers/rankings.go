package handlers

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tmcfarland/cfb-rankings/internal/services"
	"github.com/tmcfarland/cfb-rankings/pkg/utils"
)

type RankingHandler struct {
	cache   *services.CacheService
	ranking *services.RankingService
	seasons *services.SeasonService
}

func NewRankingHandler(cache *services.CacheService, ranking *services.RankingService, seasons *services.SeasonService) *RankingHandler {
	return &RankingHandler{
		cache:   cache,
		ranking: ranking,
		seasons: seasons,
	}
}

// GetRankings returns the current top-N rankings for a season.
func (h *RankingHandler) GetRankings(c *gin.Context) {
	season, err := h.resolveSeason(c)
	if err != nil {
		utils.SendServiceError(c, err)
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "25"))
	if err != nil || limit < 0 {
		utils.SendValidationError(c, "Invalid limit", "limit must be a non-negative integer")
		return
	}

	ctx := context.Background()
	cacheKey := services.RankingsCacheKey(season, limit)
	var cached []services.RankingEntry
	if err := h.cache.Get(ctx, cacheKey, &cached); err == nil {
		utils.SendSuccess(c, cached)
		return
	}

	entries, err := h.ranking.GetCurrentRankings(season, limit)
	if err != nil {
		utils.SendServiceError(c, err)
		return
	}

	h.cache.Set(ctx, cacheKey, entries, 5*time.Minute)
	utils.SendSuccess(c, entries)
}

// GetRankingHistory returns a team's weekly snapshot trail for a
// season. The team comes from the path on the team-scoped route and
// from ?team_id on the rankings route.
func (h *RankingHandler) GetRankingHistory(c *gin.Context) {
	raw := c.Param("id")
	if raw == "" {
		raw = c.Query("team_id")
	}
	teamID, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		utils.SendValidationError(c, "Invalid team ID", err.Error())
		return
	}
	season, err := h.resolveSeason(c)
	if err != nil {
		utils.SendServiceError(c, err)
		return
	}

	snapshots, err := h.ranking.GetSnapshots(uint(teamID), season)
	if err != nil {
		utils.SendServiceError(c, err)
		return
	}
	utils.SendSuccess(c, snapshots)
}

// resolveSeason reads ?season=YYYY, falling back to the active season.
func (h *RankingHandler) resolveSeason(c *gin.Context) (int, error) {
	if raw := c.Query("season"); raw != "" {
		season, err := strconv.Atoi(raw)
		if err != nil {
			return 0, fmt.Errorf("%w: season must be a year", utils.ErrInvalidInput)
		}
		return season, nil
	}
	active, err := h.seasons.Active()
	if err != nil {
		return 0, err
	}
	return active.Year, nil
}
