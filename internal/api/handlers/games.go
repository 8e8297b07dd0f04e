package handlers

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tmcfarland/cfb-rankings/internal/models"
	"github.com/tmcfarland/cfb-rankings/internal/services"
	"github.com/tmcfarland/cfb-rankings/pkg/config"
	"github.com/tmcfarland/cfb-rankings/pkg/database"
	"github.com/tmcfarland/cfb-rankings/pkg/utils"
)

type GameHandler struct {
	db          *database.DB
	cfg         *config.Config
	ranking     *services.RankingService
	predictions *services.PredictionService
}

func NewGameHandler(db *database.DB, cfg *config.Config, ranking *services.RankingService, predictions *services.PredictionService) *GameHandler {
	return &GameHandler{db: db, cfg: cfg, ranking: ranking, predictions: predictions}
}

// ListGames filters the schedule by season, week, team, and processed
// state.
func (h *GameHandler) ListGames(c *gin.Context) {
	query := h.db.Model(&models.Game{})

	if raw := c.Query("season"); raw != "" {
		season, err := strconv.Atoi(raw)
		if err != nil {
			utils.SendValidationError(c, "Invalid season", err.Error())
			return
		}
		query = query.Where("season = ?", season)
	}
	if raw := c.Query("week"); raw != "" {
		week, err := strconv.Atoi(raw)
		if err != nil {
			utils.SendValidationError(c, "Invalid week", err.Error())
			return
		}
		query = query.Where("week = ?", week)
	}
	if raw := c.Query("team_id"); raw != "" {
		teamID, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			utils.SendValidationError(c, "Invalid team ID", err.Error())
			return
		}
		query = query.Where("home_team_id = ? OR away_team_id = ?", teamID, teamID)
	}
	if raw := c.Query("processed"); raw != "" {
		processed, err := strconv.ParseBool(raw)
		if err != nil {
			utils.SendValidationError(c, "Invalid processed flag", err.Error())
			return
		}
		query = query.Where("is_processed = ?", processed)
	}

	var games []models.Game
	if err := query.Order("week asc, game_date asc, id asc").Find(&games).Error; err != nil {
		utils.SendInternalError(c, "Failed to fetch games")
		return
	}
	utils.SendSuccess(c, games)
}

// GetGame returns one game row.
func (h *GameHandler) GetGame(c *gin.Context) {
	gameID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		utils.SendValidationError(c, "Invalid game ID", err.Error())
		return
	}

	var game models.Game
	if err := h.db.First(&game, gameID).Error; err != nil {
		utils.SendNotFound(c, "Game not found")
		return
	}
	utils.SendSuccess(c, game)
}

type gameResultRequest struct {
	HomeScore int `json:"home_score" binding:"min=0"`
	AwayScore int `json:"away_score" binding:"min=0"`
}

// SubmitResult records a final score and processes the game in one
// request: ratings move, records update, and the stored prediction is
// resolved.
func (h *GameHandler) SubmitResult(c *gin.Context) {
	gameID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		utils.SendValidationError(c, "Invalid game ID", err.Error())
		return
	}

	var req gameResultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendValidationError(c, "Invalid result payload", err.Error())
		return
	}
	if req.HomeScore == 0 && req.AwayScore == 0 {
		utils.SendValidationError(c, "Invalid result payload", "a 0-0 final cannot be recorded; both scores zero denotes a scheduled game")
		return
	}

	var game models.Game
	if err := h.db.First(&game, gameID).Error; err != nil {
		utils.SendNotFound(c, "Game not found")
		return
	}
	if game.IsProcessed {
		utils.SendConflict(c, "Game is already processed")
		return
	}

	updates := map[string]interface{}{
		"home_score": req.HomeScore,
		"away_score": req.AwayScore,
	}
	if err := h.db.Model(&game).Updates(updates).Error; err != nil {
		utils.SendInternalError(c, "Failed to record result")
		return
	}

	processed, err := h.ranking.ProcessGame(game.ID)
	if err != nil {
		utils.SendServiceError(c, err)
		return
	}
	if err := h.predictions.Evaluate(game.ID); err != nil {
		utils.SendServiceError(c, err)
		return
	}
	h.sendProcessed(c, processed)
}

type createGameRequest struct {
	Season      int        `json:"season" binding:"required"`
	Week        int        `json:"week" binding:"min=0,max=19"`
	HomeTeamID  uint       `json:"home_team_id" binding:"required"`
	AwayTeamID  uint       `json:"away_team_id" binding:"required"`
	HomeScore   int        `json:"home_score" binding:"min=0"`
	AwayScore   int        `json:"away_score" binding:"min=0"`
	NeutralSite bool       `json:"neutral_site"`
	GameType    string     `json:"game_type"`
	GameDate    *time.Time `json:"game_date"`
}

// CreateGame accepts a completed game, stores it, and processes it in
// the same request. The response carries the deltas and both teams'
// new ratings.
func (h *GameHandler) CreateGame(c *gin.Context) {
	var req createGameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendValidationError(c, "Invalid game payload", err.Error())
		return
	}
	if req.HomeScore == 0 && req.AwayScore == 0 {
		utils.SendValidationError(c, "Invalid game payload", "a 0-0 final cannot be recorded; both scores zero denotes a scheduled game")
		return
	}
	if req.HomeTeamID == req.AwayTeamID {
		utils.SendValidationError(c, "Invalid game payload", "a team cannot play itself")
		return
	}

	var home, away models.Team
	if err := h.db.First(&home, req.HomeTeamID).Error; err != nil {
		utils.SendNotFound(c, "Home team not found")
		return
	}
	if err := h.db.First(&away, req.AwayTeamID).Error; err != nil {
		utils.SendNotFound(c, "Away team not found")
		return
	}

	gameType := req.GameType
	if gameType == "" {
		gameType = models.GameTypeRegular
	}
	game := models.Game{
		Season:      req.Season,
		Week:        req.Week,
		HomeTeamID:  req.HomeTeamID,
		AwayTeamID:  req.AwayTeamID,
		HomeScore:   req.HomeScore,
		AwayScore:   req.AwayScore,
		GameType:    gameType,
		GameDate:    req.GameDate,
		NeutralSite: req.NeutralSite,
	}
	settings := h.cfg.Snapshot()
	game.ExcludedFromRankings = home.IsFCS() || away.IsFCS() ||
		(game.IsPostseason() && !settings.IncludePostseason)

	if err := h.db.Create(&game).Error; err != nil {
		utils.SendConflict(c, "Game already exists for this matchup and week")
		return
	}

	processed, err := h.ranking.ProcessGame(game.ID)
	if err != nil {
		utils.SendServiceError(c, err)
		return
	}
	if err := h.predictions.Evaluate(game.ID); err != nil {
		utils.SendServiceError(c, err)
		return
	}
	h.sendProcessed(c, processed)
}

func (h *GameHandler) sendProcessed(c *gin.Context, processed *models.Game) {
	var home, away models.Team
	if err := h.db.First(&home, processed.HomeTeamID).Error; err != nil {
		utils.SendInternalError(c, "Failed to load teams")
		return
	}
	if err := h.db.First(&away, processed.AwayTeamID).Error; err != nil {
		utils.SendInternalError(c, "Failed to load teams")
		return
	}
	utils.SendSuccess(c, gin.H{
		"game":               processed,
		"home_rating_change": processed.HomeRatingChange,
		"away_rating_change": processed.AwayRatingChange,
		"home_rating":        home.CurrentRating,
		"away_rating":        away.CurrentRating,
	})
}
