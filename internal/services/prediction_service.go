package services

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/tmcfarland/cfb-rankings/internal/models"
	"github.com/tmcfarland/cfb-rankings/pkg/config"
	"github.com/tmcfarland/cfb-rankings/pkg/database"
	"github.com/tmcfarland/cfb-rankings/pkg/utils"
)

// PredictionService owns Prediction rows: it creates them for scheduled
// games, resolves them after processing, and reports accuracy against
// the AP-poll baseline.
type PredictionService struct {
	db       *database.DB
	cfg      *config.Config
	logger   *logrus.Logger
	writerMu *sync.Mutex
}

func NewPredictionService(db *database.DB, cfg *config.Config, logger *logrus.Logger, writerMu *sync.Mutex) *PredictionService {
	return &PredictionService{
		db:       db,
		cfg:      cfg,
		logger:   logger,
		writerMu: writerMu,
	}
}

// Predict computes a prediction draft from the teams' current ratings
// without persisting anything.
func (s *PredictionService) Predict(game *models.Game, home, away *models.Team) models.Prediction {
	params := eloParams(s.cfg.Snapshot())

	pHome := params.WinProbability(home.CurrentRating, away.CurrentRating, game.NeutralSite)
	homeScore, awayScore := params.PredictScores(home.CurrentRating, away.CurrentRating, game.NeutralSite)

	winnerID := game.HomeTeamID
	if pHome < 0.5 {
		winnerID = game.AwayTeamID
	}

	return models.Prediction{
		GameID:             game.ID,
		PredictedWinnerID:  winnerID,
		PredictedHomeScore: homeScore,
		PredictedAwayScore: awayScore,
		HomeWinProbability: pHome,
		AwayWinProbability: 1 - pHome,
		PreGameHomeRating:  home.CurrentRating,
		PreGameAwayRating:  away.CurrentRating,
		Confidence:         params.Confidence(pHome),
	}
}

// CreateAndStore writes a prediction for a scheduled game, capturing
// the ratings in effect at this instant. Returns the existing row when
// one is already stored.
func (s *PredictionService) CreateAndStore(gameID uint) (*models.Prediction, error) {
	s.writerMu.Lock()
	defer s.writerMu.Unlock()

	var out *models.Prediction
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var existing models.Prediction
		err := tx.Where("game_id = ?", gameID).First(&existing).Error
		if err == nil {
			out = &existing
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		var game models.Game
		if err := tx.First(&game, gameID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: game %d", utils.ErrNotFound, gameID)
			}
			return err
		}
		if game.IsProcessed {
			return fmt.Errorf("%w: game %d is already processed", utils.ErrInvalidInput, gameID)
		}

		var home, away models.Team
		if err := tx.First(&home, game.HomeTeamID).Error; err != nil {
			return fmt.Errorf("%w: home team %d of game %d: %v", utils.ErrDataIntegrity, game.HomeTeamID, gameID, err)
		}
		if err := tx.First(&away, game.AwayTeamID).Error; err != nil {
			return fmt.Errorf("%w: away team %d of game %d: %v", utils.ErrDataIntegrity, game.AwayTeamID, gameID, err)
		}

		prediction := s.Predict(&game, &home, &away)
		if err := tx.Create(&prediction).Error; err != nil {
			return err
		}
		out = &prediction
		return nil
	})
	return out, err
}

// Evaluate resolves a game's prediction once the game is processed.
// Predictions on excluded games are never scored and stay unresolved.
func (s *PredictionService) Evaluate(gameID uint) error {
	s.writerMu.Lock()
	defer s.writerMu.Unlock()

	return s.db.Transaction(func(tx *gorm.DB) error {
		var game models.Game
		if err := tx.First(&game, gameID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: game %d", utils.ErrNotFound, gameID)
			}
			return err
		}
		if !game.IsProcessed || game.ExcludedFromRankings {
			return nil
		}

		var prediction models.Prediction
		err := tx.Where("game_id = ?", gameID).First(&prediction).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if prediction.WasCorrect != nil {
			return nil
		}

		correct := prediction.PredictedWinnerID == game.WinnerID()
		prediction.WasCorrect = &correct
		return tx.Save(&prediction).Error
	})
}

// AccuracyReport aggregates resolved predictions.
type AccuracyReport struct {
	Total      int64   `json:"total"`
	Resolved   int64   `json:"resolved"`
	Correct    int64   `json:"correct"`
	Percentage float64 `json:"percentage"`
}

// GetAccuracy reports prediction accuracy, optionally scoped to a
// season and/or to games involving one team.
func (s *PredictionService) GetAccuracy(season int, teamID uint) (*AccuracyReport, error) {
	base := s.db.Model(&models.Prediction{}).
		Joins("JOIN games ON games.id = predictions.game_id")
	if season > 0 {
		base = base.Where("games.season = ?", season)
	}
	if teamID > 0 {
		base = base.Where("games.home_team_id = ? OR games.away_team_id = ?", teamID, teamID)
	}

	var report AccuracyReport
	if err := base.Session(&gorm.Session{}).Count(&report.Total).Error; err != nil {
		return nil, fmt.Errorf("failed to count predictions: %w", err)
	}
	if err := base.Session(&gorm.Session{}).Where("predictions.was_correct IS NOT NULL").Count(&report.Resolved).Error; err != nil {
		return nil, fmt.Errorf("failed to count resolved predictions: %w", err)
	}
	if err := base.Session(&gorm.Session{}).Where("predictions.was_correct = ?", true).Count(&report.Correct).Error; err != nil {
		return nil, fmt.Errorf("failed to count correct predictions: %w", err)
	}
	if report.Resolved > 0 {
		report.Percentage = float64(report.Correct) / float64(report.Resolved) * 100
	}
	return &report, nil
}

// PredictionView joins a prediction with its game and team context for
// the read API.
type PredictionView struct {
	models.Prediction
	Season     int     `json:"season"`
	Week       int     `json:"week"`
	HomeTeamID uint    `json:"home_team_id"`
	AwayTeamID uint    `json:"away_team_id"`
	HomeTeam   string  `json:"home_team"`
	AwayTeam   string  `json:"away_team"`
	HomeRating float64 `json:"home_rating"`
	AwayRating float64 `json:"away_rating"`
}

// ListUpcoming returns predictions on scheduled games, sorted by the
// higher of the two teams' current ratings so marquee matchups lead.
func (s *PredictionService) ListUpcoming(season int, week *int, teamID uint) ([]PredictionView, error) {
	query := s.db.Model(&models.Game{}).Where("is_processed = ?", false)
	if season > 0 {
		query = query.Where("season = ?", season)
	}
	if week != nil {
		query = query.Where("week = ?", *week)
	}
	if teamID > 0 {
		query = query.Where("home_team_id = ? OR away_team_id = ?", teamID, teamID)
	}

	var games []models.Game
	if err := query.Find(&games).Error; err != nil {
		return nil, fmt.Errorf("failed to load scheduled games: %w", err)
	}

	teams, err := s.teamIndex()
	if err != nil {
		return nil, err
	}

	gameIDs := make([]uint, len(games))
	for i, g := range games {
		gameIDs[i] = g.ID
	}
	var predictions []models.Prediction
	if len(gameIDs) > 0 {
		if err := s.db.Where("game_id IN ?", gameIDs).Find(&predictions).Error; err != nil {
			return nil, fmt.Errorf("failed to load predictions: %w", err)
		}
	}
	byGame := make(map[uint]models.Prediction, len(predictions))
	for _, p := range predictions {
		byGame[p.GameID] = p
	}

	views := make([]PredictionView, 0, len(games))
	for _, g := range games {
		prediction, ok := byGame[g.ID]
		if !ok {
			continue
		}
		home, away := teams[g.HomeTeamID], teams[g.AwayTeamID]
		views = append(views, PredictionView{
			Prediction: prediction,
			Season:     g.Season,
			Week:       g.Week,
			HomeTeamID: g.HomeTeamID,
			AwayTeamID: g.AwayTeamID,
			HomeTeam:   home.Name,
			AwayTeam:   away.Name,
			HomeRating: home.CurrentRating,
			AwayRating: away.CurrentRating,
		})
	}

	sort.SliceStable(views, func(a, b int) bool {
		return maxRating(views[a]) > maxRating(views[b])
	})
	return views, nil
}

func maxRating(v PredictionView) float64 {
	if v.HomeRating > v.AwayRating {
		return v.HomeRating
	}
	return v.AwayRating
}

func (s *PredictionService) teamIndex() (map[uint]models.Team, error) {
	var teams []models.Team
	if err := s.db.Find(&teams).Error; err != nil {
		return nil, fmt.Errorf("failed to load teams: %w", err)
	}
	index := make(map[uint]models.Team, len(teams))
	for _, t := range teams {
		index[t.ID] = t
	}
	return index, nil
}

// ListStored returns raw prediction rows for a season.
func (s *PredictionService) ListStored(season int) ([]models.Prediction, error) {
	query := s.db.Model(&models.Prediction{})
	if season > 0 {
		query = query.Joins("JOIN games ON games.id = predictions.game_id").
			Where("games.season = ?", season)
	}
	var predictions []models.Prediction
	if err := query.Order("predictions.id asc").Find(&predictions).Error; err != nil {
		return nil, fmt.Errorf("failed to load predictions: %w", err)
	}
	return predictions, nil
}

// ComparisonReport pits the rating model against the AP-poll baseline
// ("the higher-ranked team wins; tie goes to the home side") over games
// where both predictors had an opinion.
type ComparisonReport struct {
	Season         int                `json:"season"`
	Games          int                `json:"games"`
	BothCorrect    int                `json:"both_correct"`
	EloOnlyCorrect int                `json:"elo_only_correct"`
	APOnlyCorrect  int                `json:"ap_only_correct"`
	BothWrong      int                `json:"both_wrong"`
	EloAccuracy    float64            `json:"elo_accuracy"`
	APAccuracy     float64            `json:"ap_accuracy"`
	Weekly         []WeeklyComparison `json:"weekly"`
	Disagreements  []Disagreement     `json:"disagreements"`
}

type WeeklyComparison struct {
	Week        int     `json:"week"`
	Games       int     `json:"games"`
	EloCorrect  int     `json:"elo_correct"`
	APCorrect   int     `json:"ap_correct"`
	EloAccuracy float64 `json:"elo_accuracy"`
	APAccuracy  float64 `json:"ap_accuracy"`
}

type Disagreement struct {
	GameID         uint   `json:"game_id"`
	Week           int    `json:"week"`
	HomeTeam       string `json:"home_team"`
	AwayTeam       string `json:"away_team"`
	EloPickID      uint   `json:"elo_pick_id"`
	EloPick        string `json:"elo_pick"`
	APPickID       uint   `json:"ap_pick_id"`
	APPick         string `json:"ap_pick"`
	ActualWinnerID uint   `json:"actual_winner_id"`
	ActualWinner   string `json:"actual_winner"`
}

// CompareToAP evaluates both predictors over the season's resolved
// games where an Elo prediction exists and both participants appeared
// in that week's AP top-25.
func (s *PredictionService) CompareToAP(season int) (*ComparisonReport, error) {
	var games []models.Game
	err := s.db.Where("season = ? AND is_processed = ? AND excluded_from_rankings = ?", season, true, false).
		Order("week asc, id asc").
		Find(&games).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load processed games: %w", err)
	}

	var predictions []models.Prediction
	if err := s.db.Find(&predictions).Error; err != nil {
		return nil, fmt.Errorf("failed to load predictions: %w", err)
	}
	predByGame := make(map[uint]models.Prediction, len(predictions))
	for _, p := range predictions {
		predByGame[p.GameID] = p
	}

	var pollRows []models.APPollRanking
	if err := s.db.Where("season = ?", season).Find(&pollRows).Error; err != nil {
		return nil, fmt.Errorf("failed to load AP poll: %w", err)
	}
	pollByWeek := make(map[int]map[uint]int)
	for _, row := range pollRows {
		if pollByWeek[row.Week] == nil {
			pollByWeek[row.Week] = make(map[uint]int)
		}
		pollByWeek[row.Week][row.TeamID] = row.Rank
	}

	teams, err := s.teamIndex()
	if err != nil {
		return nil, err
	}

	report := &ComparisonReport{Season: season}
	weekly := make(map[int]*WeeklyComparison)

	for _, game := range games {
		prediction, hasPrediction := predByGame[game.ID]
		if !hasPrediction {
			continue
		}
		weekPoll := pollByWeek[game.Week]
		homeRank, homeRanked := weekPoll[game.HomeTeamID]
		awayRank, awayRanked := weekPoll[game.AwayTeamID]
		if !homeRanked || !awayRanked {
			continue
		}

		// AP baseline: smaller rank number wins, home side on a tie.
		apPick := game.HomeTeamID
		if awayRank < homeRank {
			apPick = game.AwayTeamID
		}

		actual := game.WinnerID()
		eloRight := prediction.PredictedWinnerID == actual
		apRight := apPick == actual

		report.Games++
		switch {
		case eloRight && apRight:
			report.BothCorrect++
		case eloRight:
			report.EloOnlyCorrect++
		case apRight:
			report.APOnlyCorrect++
		default:
			report.BothWrong++
		}

		wc := weekly[game.Week]
		if wc == nil {
			wc = &WeeklyComparison{Week: game.Week}
			weekly[game.Week] = wc
		}
		wc.Games++
		if eloRight {
			wc.EloCorrect++
		}
		if apRight {
			wc.APCorrect++
		}

		if prediction.PredictedWinnerID != apPick {
			report.Disagreements = append(report.Disagreements, Disagreement{
				GameID:         game.ID,
				Week:           game.Week,
				HomeTeam:       teams[game.HomeTeamID].Name,
				AwayTeam:       teams[game.AwayTeamID].Name,
				EloPickID:      prediction.PredictedWinnerID,
				EloPick:        teams[prediction.PredictedWinnerID].Name,
				APPickID:       apPick,
				APPick:         teams[apPick].Name,
				ActualWinnerID: actual,
				ActualWinner:   teams[actual].Name,
			})
		}
	}

	if report.Games > 0 {
		report.EloAccuracy = float64(report.BothCorrect+report.EloOnlyCorrect) / float64(report.Games) * 100
		report.APAccuracy = float64(report.BothCorrect+report.APOnlyCorrect) / float64(report.Games) * 100
	}

	weeks := make([]int, 0, len(weekly))
	for w := range weekly {
		weeks = append(weeks, w)
	}
	sort.Ints(weeks)
	for _, w := range weeks {
		wc := weekly[w]
		wc.EloAccuracy = float64(wc.EloCorrect) / float64(wc.Games) * 100
		wc.APAccuracy = float64(wc.APCorrect) / float64(wc.Games) * 100
		report.Weekly = append(report.Weekly, *wc)
	}

	return report, nil
}
