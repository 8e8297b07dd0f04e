package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/tmcfarland/cfb-rankings/internal/elo"
	"github.com/tmcfarland/cfb-rankings/internal/models"
	"github.com/tmcfarland/cfb-rankings/internal/providers"
	"github.com/tmcfarland/cfb-rankings/pkg/config"
	"github.com/tmcfarland/cfb-rankings/pkg/database"
	"github.com/tmcfarland/cfb-rankings/pkg/utils"
)

// IngestionService pulls provider data into the store with idempotent
// upserts and replays newly completed games through the ranking and
// prediction engines. Provider errors abort the run; per-game errors
// during replay are logged and skipped.
type IngestionService struct {
	db          *database.DB
	cfg         *config.Config
	logger      *logrus.Logger
	provider    providers.Provider
	ranking     *RankingService
	predictions *PredictionService
}

func NewIngestionService(db *database.DB, cfg *config.Config, logger *logrus.Logger, provider providers.Provider, ranking *RankingService, predictions *PredictionService) *IngestionService {
	return &IngestionService{
		db:          db,
		cfg:         cfg,
		logger:      logger,
		provider:    provider,
		ranking:     ranking,
		predictions: predictions,
	}
}

// RunSummary is the result blob of one ingestion pass.
type RunSummary struct {
	Season               int `json:"season"`
	Week                 int `json:"week"`
	TeamsTouched         int `json:"teams_touched"`
	GamesImported        int `json:"games_imported"`
	PollsImported        int `json:"polls_imported"`
	GamesProcessed       int `json:"games_processed"`
	PredictionsCreated   int `json:"predictions_created"`
	PredictionsEvaluated int `json:"predictions_evaluated"`
	Errors               int `json:"errors"`
}

// RefreshTeams upserts teams and their preseason inputs. Rating fields
// of existing teams are never touched here; recomputing them is
// ResetPreseason's job.
func (s *IngestionService) RefreshTeams(ctx context.Context, year int) (int, error) {
	teams, err := s.provider.GetTeams(ctx, year)
	if err != nil {
		return 0, err
	}
	recruiting, err := s.provider.GetRecruiting(ctx, year)
	if err != nil {
		return 0, err
	}
	transfers, err := s.provider.GetTransferPortal(ctx, year)
	if err != nil {
		return 0, err
	}
	production, err := s.provider.GetReturningProduction(ctx, year)
	if err != nil {
		return 0, err
	}

	recruitingRank := make(map[string]int, len(recruiting))
	for _, r := range recruiting {
		recruitingRank[r.Team] = r.Rank
	}
	transferRank := make(map[string]int, len(transfers))
	for _, r := range transfers {
		transferRank[r.Team] = r.Rank
	}
	returning := make(map[string]float64, len(production))
	for _, r := range production {
		returning[r.Team] = r.Percent
	}

	touched := 0
	err = s.db.Transaction(func(tx *gorm.DB) error {
		for _, record := range teams {
			rec, ok := recruitingRank[record.Name]
			if !ok {
				rec = models.UnrankedSentinel
			}
			xfer, ok := transferRank[record.Name]
			if !ok {
				xfer = models.UnrankedSentinel
			}

			var team models.Team
			err := tx.Where("name = ?", record.Name).First(&team).Error
			switch {
			case errors.Is(err, gorm.ErrRecordNotFound):
				rating := elo.PreseasonRating(record.ConferenceTier, rec, xfer, returning[record.Name])
				team = models.Team{
					Name:                record.Name,
					ConferenceTier:      record.ConferenceTier,
					ConferenceName:      record.ConferenceName,
					RecruitingRank:      rec,
					TransferRank:        xfer,
					ReturningProduction: returning[record.Name],
					InitialRating:       rating,
					CurrentRating:       rating,
				}
				if err := tx.Create(&team).Error; err != nil {
					return fmt.Errorf("failed to create team %s: %w", record.Name, err)
				}
			case err != nil:
				return err
			default:
				if err := tx.Model(&team).Updates(map[string]interface{}{
					"conference_tier":      record.ConferenceTier,
					"conference_name":      record.ConferenceName,
					"recruiting_rank":      rec,
					"transfer_rank":        xfer,
					"returning_production": returning[record.Name],
				}).Error; err != nil {
					return fmt.Errorf("failed to update team %s: %w", record.Name, err)
				}
			}
			touched++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.logger.Infof("Refreshed %d teams for %d", touched, year)
	return touched, nil
}

// RefreshGames upserts the season's schedule and results. Processed
// rows only ever take schedule metadata; a score that diverges from an
// already-processed result is reported as a data-integrity warning, not
// overwritten.
func (s *IngestionService) RefreshGames(ctx context.Context, year, upToWeek int) (int, error) {
	regular, err := s.provider.GetGames(ctx, year, providers.SeasonTypeRegular, nil)
	if err != nil {
		return 0, err
	}
	postseason, err := s.provider.GetGames(ctx, year, providers.SeasonTypePostseason, nil)
	if err != nil {
		return 0, err
	}

	records := make([]providers.GameRecord, 0, len(regular)+len(postseason))
	for _, r := range regular {
		if upToWeek > 0 && r.Week > upToWeek {
			continue
		}
		records = append(records, r)
	}
	records = append(records, postseason...)

	settings := s.cfg.Snapshot()
	imported := 0

	err = s.db.Transaction(func(tx *gorm.DB) error {
		for _, record := range records {
			homeID, err := s.resolveTeamID(tx, record.HomeTeam)
			if err != nil {
				return err
			}
			awayID, err := s.resolveTeamID(tx, record.AwayTeam)
			if err != nil {
				return err
			}

			homeScore, awayScore := normalizeScores(s.logger, record)

			var home, away models.Team
			if err := tx.First(&home, homeID).Error; err != nil {
				return err
			}
			if err := tx.First(&away, awayID).Error; err != nil {
				return err
			}
			excluded := home.IsFCS() || away.IsFCS()
			if !settings.IncludePostseason &&
				(record.GameType == models.GameTypeBowl || record.GameType == models.GameTypePlayoff) {
				excluded = true
			}

			var game models.Game
			err = tx.Where("season = ? AND home_team_id = ? AND away_team_id = ? AND week = ?",
				record.Season, homeID, awayID, record.Week).First(&game).Error
			switch {
			case errors.Is(err, gorm.ErrRecordNotFound):
				game = models.Game{
					Season:               record.Season,
					Week:                 record.Week,
					HomeTeamID:           homeID,
					AwayTeamID:           awayID,
					HomeScore:            homeScore,
					AwayScore:            awayScore,
					GameType:             record.GameType,
					PostseasonName:       record.Notes,
					GameDate:             record.StartDate,
					NeutralSite:          record.NeutralSite,
					ExcludedFromRankings: excluded,
				}
				if err := tx.Create(&game).Error; err != nil {
					return fmt.Errorf("failed to create game %s @ %s week %d: %w",
						record.AwayTeam, record.HomeTeam, record.Week, err)
				}
			case err != nil:
				return err
			case game.IsProcessed:
				// Scores are immutable once processed.
				if game.HasResult() && (game.HomeScore != homeScore || game.AwayScore != awayScore) && (homeScore != 0 || awayScore != 0) {
					s.logger.WithFields(logrus.Fields{
						"game_id":         game.ID,
						"stored_score":    fmt.Sprintf("%d-%d", game.HomeScore, game.AwayScore),
						"provider_score":  fmt.Sprintf("%d-%d", homeScore, awayScore),
					}).Warn("Data integrity: provider score diverges from processed game")
				}
				if err := tx.Model(&game).Update("game_date", record.StartDate).Error; err != nil {
					return err
				}
			default:
				if err := tx.Model(&game).Updates(map[string]interface{}{
					"home_score":             homeScore,
					"away_score":             awayScore,
					"game_date":              record.StartDate,
					"neutral_site":           record.NeutralSite,
					"game_type":              record.GameType,
					"postseason_name":        record.Notes,
					"excluded_from_rankings": excluded,
				}).Error; err != nil {
					return err
				}
			}
			imported++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.logger.Infof("Refreshed %d games for %d", imported, year)
	return imported, nil
}

// normalizeScores applies the incomplete-game policy: a row carrying
// exactly one score is treated as scheduled and flagged.
func normalizeScores(logger *logrus.Logger, record providers.GameRecord) (int, int) {
	switch {
	case record.HomePoints != nil && record.AwayPoints != nil:
		return *record.HomePoints, *record.AwayPoints
	case record.HomePoints != nil || record.AwayPoints != nil:
		logger.WithFields(logrus.Fields{
			"home_team": record.HomeTeam,
			"away_team": record.AwayTeam,
			"week":      record.Week,
		}).Warn("Data integrity: provider game has exactly one score; treating as scheduled")
		return 0, 0
	default:
		return 0, 0
	}
}

// resolveTeamID finds a team by name, creating an FCS placeholder for
// opponents the provider's FBS team list does not carry.
func (s *IngestionService) resolveTeamID(tx *gorm.DB, name string) (uint, error) {
	if name == "" {
		return 0, fmt.Errorf("%w: game participant with empty name", utils.ErrDataIntegrity)
	}
	var team models.Team
	err := tx.Where("name = ?", name).First(&team).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		rating := elo.PreseasonRating(models.TierFCS, models.UnrankedSentinel, models.UnrankedSentinel, 0)
		team = models.Team{
			Name:           name,
			ConferenceTier: models.TierFCS,
			ConferenceName: "FCS",
			RecruitingRank: models.UnrankedSentinel,
			TransferRank:   models.UnrankedSentinel,
			InitialRating:  rating,
			CurrentRating:  rating,
		}
		if err := tx.Create(&team).Error; err != nil {
			return 0, fmt.Errorf("failed to create FCS placeholder %s: %w", name, err)
		}
		s.logger.Debugf("Created FCS placeholder team %s", name)
		return team.ID, nil
	}
	if err != nil {
		return 0, err
	}
	return team.ID, nil
}

// RefreshPolls upserts the week's AP top-25.
func (s *IngestionService) RefreshPolls(ctx context.Context, year, week int) (int, error) {
	records, err := s.provider.GetAPPoll(ctx, year, week)
	if err != nil {
		return 0, err
	}

	imported := 0
	err = s.db.Transaction(func(tx *gorm.DB) error {
		for _, record := range records {
			var team models.Team
			if err := tx.Where("name = ?", record.School).First(&team).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					s.logger.Warnf("AP poll references unknown team %q; row skipped", record.School)
					continue
				}
				return err
			}

			var row models.APPollRanking
			err := tx.Where("season = ? AND week = ? AND team_id = ?", record.Season, record.Week, team.ID).
				First(&row).Error
			switch {
			case errors.Is(err, gorm.ErrRecordNotFound):
				row = models.APPollRanking{
					Season:          record.Season,
					Week:            record.Week,
					TeamID:          team.ID,
					Rank:            record.Rank,
					FirstPlaceVotes: record.FirstPlaceVotes,
					Points:          record.Points,
				}
				if err := tx.Create(&row).Error; err != nil {
					return err
				}
			case err != nil:
				return err
			default:
				if err := tx.Model(&row).Updates(map[string]interface{}{
					"rank":              record.Rank,
					"first_place_votes": record.FirstPlaceVotes,
					"points":            record.Points,
				}).Error; err != nil {
					return err
				}
			}
			imported++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.logger.Infof("Refreshed %d AP poll rows for %d week %d", imported, year, week)
	return imported, nil
}

// ReplayNew walks the season's unprocessed games in chronological
// order: scheduled games get predictions, completed games get processed
// and their predictions evaluated. Cancellation is honored between
// games, never mid-transaction.
func (s *IngestionService) ReplayNew(ctx context.Context, season int) (*RunSummary, error) {
	var games []models.Game
	err := s.db.Where("season = ? AND is_processed = ?", season, false).
		Order("week asc, game_date asc, id asc").
		Find(&games).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list unprocessed games: %w", err)
	}

	summary := &RunSummary{Season: season}
	for _, game := range games {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		if !game.HasResult() {
			// Future game: make sure a prediction exists before it can
			// ever transition to processed.
			if _, err := s.predictions.CreateAndStore(game.ID); err != nil {
				s.logger.Errorf("Failed to create prediction for game %d: %v", game.ID, err)
				summary.Errors++
			} else {
				summary.PredictionsCreated++
			}
			continue
		}

		if _, err := s.ranking.ProcessGame(game.ID); err != nil {
			// One bad game aborts its own transaction only.
			s.logger.Errorf("Failed to process game %d: %v", game.ID, err)
			summary.Errors++
			continue
		}
		summary.GamesProcessed++

		if err := s.predictions.Evaluate(game.ID); err != nil {
			s.logger.Errorf("Failed to evaluate prediction for game %d: %v", game.ID, err)
			summary.Errors++
			continue
		}
		summary.PredictionsEvaluated++
	}
	return summary, nil
}

// RunSeason runs a full ingestion pass for one season at the given
// provider week.
func (s *IngestionService) RunSeason(ctx context.Context, season *models.Season, week int) (*RunSummary, error) {
	teams, err := s.RefreshTeams(ctx, season.Year)
	if err != nil {
		return nil, err
	}
	games, err := s.RefreshGames(ctx, season.Year, week)
	if err != nil {
		return nil, err
	}
	polls, err := s.RefreshPolls(ctx, season.Year, week)
	if err != nil {
		return nil, err
	}

	summary, err := s.ReplayNew(ctx, season.Year)
	if err != nil {
		return nil, err
	}
	summary.Week = week
	summary.TeamsTouched = teams
	summary.GamesImported = games
	summary.PollsImported = polls

	if week != season.CurrentWeek {
		if err := s.db.Model(season).Update("current_week", week).Error; err != nil {
			return nil, fmt.Errorf("failed to advance current week: %w", err)
		}
	}
	return summary, nil
}

// RunOnce is the convenience wrapper for the active season: it resolves
// the current week from the provider and runs a full pass.
func (s *IngestionService) RunOnce(ctx context.Context) (*RunSummary, error) {
	var season models.Season
	if err := s.db.Where("is_active = ?", true).First(&season).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: no active season", utils.ErrNotFound)
		}
		return nil, err
	}

	week, err := s.provider.GetCurrentWeek(ctx, season.Year)
	if err != nil {
		return nil, err
	}
	if week == nil {
		return nil, fmt.Errorf("%w: provider reports no current week for %d", utils.ErrInvalidInput, season.Year)
	}
	return s.RunSeason(ctx, &season, *week)
}
