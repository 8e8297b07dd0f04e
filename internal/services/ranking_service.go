package services

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tmcfarland/cfb-rankings/internal/elo"
	"github.com/tmcfarland/cfb-rankings/internal/models"
	"github.com/tmcfarland/cfb-rankings/pkg/config"
	"github.com/tmcfarland/cfb-rankings/pkg/database"
	"github.com/tmcfarland/cfb-rankings/pkg/utils"
)

// eloParams captures the rating constants from a settings snapshot so a
// replay runs against one consistent parameter set.
func eloParams(s config.Settings) elo.Params {
	return elo.Params{
		K:                  s.KFactor,
		HomeFieldAdvantage: s.HomeFieldAdvantage,
		MOVCap:             s.MOVCap,
		BaseScore:          s.BaseScore,
		ScoreSensitivity:   s.ScoreSensitivity,
		ConfidenceHigh:     s.ConfidenceHigh,
		ConfidenceMedium:   s.ConfidenceMedium,
	}
}

// RankingService owns all mutation of team ratings, records, and game
// processed-state. Mutations run under the process-wide writer lock and
// inside a single transaction per game, so readers only ever observe
// fully committed games.
type RankingService struct {
	db       *database.DB
	cfg      *config.Config
	logger   *logrus.Logger
	writerMu *sync.Mutex
}

func NewRankingService(db *database.DB, cfg *config.Config, logger *logrus.Logger, writerMu *sync.Mutex) *RankingService {
	return &RankingService{
		db:       db,
		cfg:      cfg,
		logger:   logger,
		writerMu: writerMu,
	}
}

// RankingEntry is one row of the current rankings.
type RankingEntry struct {
	Rank           int      `json:"rank"`
	TeamID         uint     `json:"team_id"`
	Name           string   `json:"name"`
	ConferenceTier string   `json:"conference_tier"`
	ConferenceName string   `json:"conference_name"`
	Rating         float64  `json:"rating"`
	Wins           int      `json:"wins"`
	Losses         int      `json:"losses"`
	SOS            *float64 `json:"sos"`
	SOSRank        int      `json:"sos_rank"`
}

// ProcessGame transitions a game from unprocessed to processed,
// applying the rating transfer and record updates atomically. Calling
// it on an already-processed game is a no-op returning the game as-is.
func (s *RankingService) ProcessGame(gameID uint) (*models.Game, error) {
	s.writerMu.Lock()
	defer s.writerMu.Unlock()
	return s.processGameLocked(gameID, eloParams(s.cfg.Snapshot()))
}

func (s *RankingService) processGameLocked(gameID uint, params elo.Params) (*models.Game, error) {
	var out *models.Game
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var game models.Game
		if err := tx.First(&game, gameID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: game %d", utils.ErrNotFound, gameID)
			}
			return err
		}

		if game.IsProcessed {
			out = &game
			return nil
		}

		var home, away models.Team
		if err := tx.First(&home, game.HomeTeamID).Error; err != nil {
			return fmt.Errorf("%w: home team %d of game %d: %v", utils.ErrDataIntegrity, game.HomeTeamID, gameID, err)
		}
		if err := tx.First(&away, game.AwayTeamID).Error; err != nil {
			return fmt.Errorf("%w: away team %d of game %d: %v", utils.ErrDataIntegrity, game.AwayTeamID, gameID, err)
		}

		// Excluded games flip to processed without touching ratings or
		// records.
		if game.ExcludedFromRankings {
			game.IsProcessed = true
			game.HomeRatingChange = 0
			game.AwayRatingChange = 0
			out = &game
			return tx.Save(&game).Error
		}

		if !game.HasResult() {
			return fmt.Errorf("%w: game %d has no final score", utils.ErrInvalidInput, gameID)
		}

		homeDelta, awayDelta, _ := params.Update(
			home.CurrentRating, away.CurrentRating,
			game.HomeScore, game.AwayScore,
			home.ConferenceTier, away.ConferenceTier,
			game.NeutralSite,
		)

		home.CurrentRating += homeDelta
		away.CurrentRating += awayDelta
		switch {
		case game.HomeScore > game.AwayScore:
			home.Wins++
			away.Losses++
		case game.AwayScore > game.HomeScore:
			away.Wins++
			home.Losses++
		}

		game.HomeRatingChange = homeDelta
		game.AwayRatingChange = awayDelta
		game.IsProcessed = true

		if err := tx.Save(&home).Error; err != nil {
			return err
		}
		if err := tx.Save(&away).Error; err != nil {
			return err
		}
		if err := tx.Save(&game).Error; err != nil {
			return err
		}

		s.logger.WithFields(logrus.Fields{
			"game_id":    game.ID,
			"week":       game.Week,
			"home_delta": homeDelta,
		}).Debug("Processed game")

		out = &game
		return nil
	})
	return out, err
}

// RecomputeSeason rolls every team back to its initial rating, clears
// game processed-state, and replays the season in chronological order.
// Used after a parameter change or a data correction.
func (s *RankingService) RecomputeSeason(season int) error {
	s.writerMu.Lock()
	defer s.writerMu.Unlock()

	params := eloParams(s.cfg.Snapshot())

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Team{}).Where("1 = 1").Updates(map[string]interface{}{
			"current_rating": gorm.Expr("initial_rating"),
			"wins":           0,
			"losses":         0,
		}).Error; err != nil {
			return err
		}
		return tx.Model(&models.Game{}).Where("season = ?", season).Updates(map[string]interface{}{
			"is_processed":       false,
			"home_rating_change": 0,
			"away_rating_change": 0,
		}).Error
	})
	if err != nil {
		return fmt.Errorf("failed to reset season %d: %w", season, err)
	}

	gameIDs, err := s.replayableGameIDs(season)
	if err != nil {
		return err
	}

	s.logger.Infof("Recomputing season %d: replaying %d games", season, len(gameIDs))
	for _, id := range gameIDs {
		if _, err := s.processGameLocked(id, params); err != nil {
			// A bad game aborts its own transaction only; the replay
			// continues so one corrupt row cannot wedge the season.
			s.logger.Errorf("Replay of game %d failed: %v", id, err)
		}
	}
	return nil
}

// replayableGameIDs returns the season's unprocessed games that have a
// result, in processing order. Excluded games with a result still pass
// through processing so they get marked, with zero deltas.
func (s *RankingService) replayableGameIDs(season int) ([]uint, error) {
	var ids []uint
	err := s.db.Model(&models.Game{}).
		Where("season = ? AND is_processed = ? AND (home_score <> 0 OR away_score <> 0)", season, false).
		Order("week asc, game_date asc, id asc").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list games for season %d: %w", season, err)
	}
	return ids, nil
}

// ResetPreseason recomputes every team's initial rating from its
// current preseason inputs and resets the current rating to match.
// Callers that have already processed games must follow with
// RecomputeSeason to restore consistency.
func (s *RankingService) ResetPreseason(season int) error {
	s.writerMu.Lock()
	defer s.writerMu.Unlock()

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var teams []models.Team
		if err := tx.Find(&teams).Error; err != nil {
			return err
		}
		for i := range teams {
			team := &teams[i]
			rating := elo.PreseasonRating(team.ConferenceTier, team.RecruitingRank, team.TransferRank, team.ReturningProduction)
			if err := tx.Model(team).Updates(map[string]interface{}{
				"initial_rating": rating,
				"current_rating": rating,
			}).Error; err != nil {
				return err
			}
		}
		s.logger.Infof("Reset preseason ratings for %d teams (season %d)", len(teams), season)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to reset preseason ratings: %w", err)
	}
	return nil
}

// GetCurrentRankings returns FBS teams ordered by current rating with
// rank, record, and strength of schedule. limit <= 0 returns all teams.
func (s *RankingService) GetCurrentRankings(season, limit int) ([]RankingEntry, error) {
	var teams []models.Team
	err := s.db.Where("conference_tier <> ?", models.TierFCS).
		Order("current_rating desc, id asc").
		Find(&teams).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load teams: %w", err)
	}

	sosByTeam, err := s.seasonSOS(season)
	if err != nil {
		return nil, err
	}

	entries := make([]RankingEntry, len(teams))
	for i, team := range teams {
		entries[i] = RankingEntry{
			Rank:           i + 1,
			TeamID:         team.ID,
			Name:           team.Name,
			ConferenceTier: team.ConferenceTier,
			ConferenceName: team.ConferenceName,
			Rating:         team.CurrentRating,
			Wins:           team.Wins,
			Losses:         team.Losses,
			SOS:            sosByTeam[team.ID],
		}
	}

	assignSOSRanks(entries)

	if limit > 0 && limit < len(entries) {
		entries = entries[:limit]
	}
	return entries, nil
}

// seasonSOS computes every team's mean opponent rating across its
// processed, non-excluded games in one pass over the season.
func (s *RankingService) seasonSOS(season int) (map[uint]*float64, error) {
	var games []models.Game
	err := s.db.Where("season = ? AND is_processed = ? AND excluded_from_rankings = ?", season, true, false).
		Find(&games).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load processed games: %w", err)
	}

	var teams []models.Team
	if err := s.db.Find(&teams).Error; err != nil {
		return nil, fmt.Errorf("failed to load teams: %w", err)
	}
	ratings := make(map[uint]float64, len(teams))
	for _, t := range teams {
		ratings[t.ID] = t.CurrentRating
	}

	sums := make(map[uint]float64)
	counts := make(map[uint]int)
	for _, g := range games {
		sums[g.HomeTeamID] += ratings[g.AwayTeamID]
		counts[g.HomeTeamID]++
		sums[g.AwayTeamID] += ratings[g.HomeTeamID]
		counts[g.AwayTeamID]++
	}

	out := make(map[uint]*float64, len(counts))
	for teamID, count := range counts {
		sos := sums[teamID] / float64(count)
		out[teamID] = &sos
	}
	return out, nil
}

// assignSOSRanks orders entries by SOS descending; teams with no
// qualifying games have no SOS and rank last.
func assignSOSRanks(entries []RankingEntry) {
	idx := make([]int, len(entries))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		sa, sb := entries[idx[a]].SOS, entries[idx[b]].SOS
		switch {
		case sa == nil && sb == nil:
			return entries[idx[a]].TeamID < entries[idx[b]].TeamID
		case sa == nil:
			return false
		case sb == nil:
			return true
		case *sa != *sb:
			return *sa > *sb
		default:
			return entries[idx[a]].TeamID < entries[idx[b]].TeamID
		}
	})
	for rank, i := range idx {
		entries[i].SOSRank = rank + 1
	}
}

// ComputeSOS returns a single team's strength of schedule, nil when the
// team has no processed non-excluded games.
func (s *RankingService) ComputeSOS(teamID uint, season int) (*float64, error) {
	var team models.Team
	if err := s.db.First(&team, teamID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: team %d", utils.ErrNotFound, teamID)
		}
		return nil, err
	}

	sosByTeam, err := s.seasonSOS(season)
	if err != nil {
		return nil, err
	}
	return sosByTeam[teamID], nil
}

// SaveSnapshot writes an immutable ranking snapshot for every ranked
// team at (season, week). Re-saving an existing snapshot is a no-op.
func (s *RankingService) SaveSnapshot(season, week int) error {
	entries, err := s.GetCurrentRankings(season, 0)
	if err != nil {
		return err
	}

	snapshots := make([]models.RankingSnapshot, len(entries))
	for i, e := range entries {
		snapshots[i] = models.RankingSnapshot{
			TeamID:  e.TeamID,
			Season:  season,
			Week:    week,
			Rank:    e.Rank,
			Rating:  e.Rating,
			Wins:    e.Wins,
			Losses:  e.Losses,
			SOS:     e.SOS,
			SOSRank: e.SOSRank,
		}
	}
	if len(snapshots) == 0 {
		return nil
	}

	// Snapshots are immutable: conflicting rows are left untouched.
	err = s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&snapshots).Error
	if err != nil {
		return fmt.Errorf("failed to save ranking snapshot: %w", err)
	}
	s.logger.Infof("Saved ranking snapshot for season %d week %d (%d teams)", season, week, len(snapshots))
	return nil
}

// GetSnapshots returns a team's snapshot history for a season ordered
// by week.
func (s *RankingService) GetSnapshots(teamID uint, season int) ([]models.RankingSnapshot, error) {
	var snapshots []models.RankingSnapshot
	err := s.db.Where("team_id = ? AND season = ?", teamID, season).
		Order("week asc").
		Find(&snapshots).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshots: %w", err)
	}
	return snapshots, nil
}
