package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/tmcfarland/cfb-rankings/internal/models"
	"github.com/tmcfarland/cfb-rankings/internal/services"
	"github.com/tmcfarland/cfb-rankings/pkg/database"
	"github.com/tmcfarland/cfb-rankings/pkg/utils"
)

type TeamHandler struct {
	db      *database.DB
	ranking *services.RankingService
	seasons *services.SeasonService
}

func NewTeamHandler(db *database.DB, ranking *services.RankingService, seasons *services.SeasonService) *TeamHandler {
	return &TeamHandler{db: db, ranking: ranking, seasons: seasons}
}

// ListTeams returns teams ordered by rating, with optional tier,
// conference, and name filters.
func (h *TeamHandler) ListTeams(c *gin.Context) {
	query := h.db.Model(&models.Team{})

	if tier := c.Query("tier"); tier != "" {
		query = query.Where("conference_tier = ?", tier)
	}
	if conference := c.Query("conference"); conference != "" {
		query = query.Where("conference_name = ?", conference)
	}
	if search := c.Query("search"); search != "" {
		query = query.Where("name LIKE ?", "%"+search+"%")
	}

	var teams []models.Team
	if err := query.Order("current_rating desc, id asc").Find(&teams).Error; err != nil {
		utils.SendInternalError(c, "Failed to fetch teams")
		return
	}
	utils.SendSuccess(c, teams)
}

// GetTeam returns one team with its strength of schedule for the
// requested (or active) season.
func (h *TeamHandler) GetTeam(c *gin.Context) {
	teamID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		utils.SendValidationError(c, "Invalid team ID", err.Error())
		return
	}

	var team models.Team
	if err := h.db.First(&team, teamID).Error; err != nil {
		utils.SendNotFound(c, "Team not found")
		return
	}

	season, err := h.season(c)
	if err != nil {
		utils.SendServiceError(c, err)
		return
	}
	sos, err := h.ranking.ComputeSOS(team.ID, season)
	if err != nil {
		utils.SendServiceError(c, err)
		return
	}

	utils.SendSuccess(c, gin.H{
		"team":   team,
		"season": season,
		"sos":    sos,
	})
}

// ScheduleEntry is one game on a team's schedule with names resolved.
type ScheduleEntry struct {
	models.Game
	HomeTeam string `json:"home_team"`
	AwayTeam string `json:"away_team"`
}

// GetTeamSchedule returns a team's season schedule in week order.
func (h *TeamHandler) GetTeamSchedule(c *gin.Context) {
	teamID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		utils.SendValidationError(c, "Invalid team ID", err.Error())
		return
	}
	season, err := h.season(c)
	if err != nil {
		utils.SendServiceError(c, err)
		return
	}

	var team models.Team
	if err := h.db.First(&team, teamID).Error; err != nil {
		utils.SendNotFound(c, "Team not found")
		return
	}

	var games []models.Game
	err = h.db.Where("season = ? AND (home_team_id = ? OR away_team_id = ?)", season, teamID, teamID).
		Order("week asc, game_date asc, id asc").
		Find(&games).Error
	if err != nil {
		utils.SendInternalError(c, "Failed to fetch schedule")
		return
	}

	var teams []models.Team
	if err := h.db.Find(&teams).Error; err != nil {
		utils.SendInternalError(c, "Failed to fetch teams")
		return
	}
	names := make(map[uint]string, len(teams))
	for _, t := range teams {
		names[t.ID] = t.Name
	}

	schedule := make([]ScheduleEntry, len(games))
	for i, g := range games {
		schedule[i] = ScheduleEntry{
			Game:     g,
			HomeTeam: names[g.HomeTeamID],
			AwayTeam: names[g.AwayTeamID],
		}
	}
	utils.SendSuccess(c, schedule)
}

func (h *TeamHandler) season(c *gin.Context) (int, error) {
	if raw := c.Query("season"); raw != "" {
		return strconv.Atoi(raw)
	}
	active, err := h.seasons.Active()
	if err != nil {
		return 0, err
	}
	return active.Year, nil
}
