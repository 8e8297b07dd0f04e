package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tmcfarland/cfb-rankings/internal/models"
	"github.com/tmcfarland/cfb-rankings/internal/providers"
)

// fakeProvider serves canned records for ingestion tests.
type fakeProvider struct {
	teams      []providers.TeamRecord
	games      map[string][]providers.GameRecord
	recruiting []providers.RecruitingRecord
	transfers  []providers.TransferRecord
	production []providers.ProductionRecord
	poll       []providers.PollRecord
	week       *int
}

func (f *fakeProvider) GetTeams(ctx context.Context, year int) ([]providers.TeamRecord, error) {
	return f.teams, nil
}

func (f *fakeProvider) GetGames(ctx context.Context, year int, seasonType string, week *int) ([]providers.GameRecord, error) {
	return f.games[seasonType], nil
}

func (f *fakeProvider) GetRecruiting(ctx context.Context, year int) ([]providers.RecruitingRecord, error) {
	return f.recruiting, nil
}

func (f *fakeProvider) GetTransferPortal(ctx context.Context, year int) ([]providers.TransferRecord, error) {
	return f.transfers, nil
}

func (f *fakeProvider) GetReturningProduction(ctx context.Context, year int) ([]providers.ProductionRecord, error) {
	return f.production, nil
}

func (f *fakeProvider) GetAPPoll(ctx context.Context, year, week int) ([]providers.PollRecord, error) {
	return f.poll, nil
}

func (f *fakeProvider) GetCurrentWeek(ctx context.Context, year int) (*int, error) {
	return f.week, nil
}

func newIngestion(env *testEnv, provider providers.Provider) *IngestionService {
	return NewIngestionService(env.db, env.cfg, testLogger(), provider, env.ranking, env.predictions)
}

func intPtr(v int) *int { return &v }

func TestRefreshTeamsCreatesWithPreseasonRating(t *testing.T) {
	env := newTestEnv(t)
	provider := &fakeProvider{
		teams: []providers.TeamRecord{
			{Name: "Georgia", ConferenceTier: models.TierP5, ConferenceName: "SEC"},
		},
		recruiting: []providers.RecruitingRecord{{Team: "Georgia", Rank: 2}},
		transfers:  []providers.TransferRecord{{Team: "Georgia", Rank: 4}},
		production: []providers.ProductionRecord{{Team: "Georgia", Percent: 0.85}},
	}
	svc := newIngestion(env, provider)

	touched, err := svc.RefreshTeams(context.Background(), 2025)
	require.NoError(t, err)
	assert.Equal(t, 1, touched)

	var team models.Team
	require.NoError(t, env.db.Where("name = ?", "Georgia").First(&team).Error)
	// 1500 + 200 recruiting + 100 transfer + 40 production.
	assert.Equal(t, 1840.0, team.InitialRating)
	assert.Equal(t, 1840.0, team.CurrentRating)
	assert.Equal(t, 2, team.RecruitingRank)
}

func TestRefreshTeamsNeverTouchesExistingRatings(t *testing.T) {
	env := newTestEnv(t)
	team := createTeam(t, env.db, "Georgia", models.TierP5, 1765)

	provider := &fakeProvider{
		teams: []providers.TeamRecord{
			{Name: "Georgia", ConferenceTier: models.TierP5, ConferenceName: "SEC"},
		},
		recruiting: []providers.RecruitingRecord{{Team: "Georgia", Rank: 1}},
	}
	svc := newIngestion(env, provider)

	_, err := svc.RefreshTeams(context.Background(), 2025)
	require.NoError(t, err)

	after := reloadTeam(t, env.db, team.ID)
	assert.Equal(t, 1765.0, after.CurrentRating)
	assert.Equal(t, 1765.0, after.InitialRating)
	// Preseason inputs do update.
	assert.Equal(t, 1, after.RecruitingRank)
}

func TestRefreshTeamsUnrankedGetsSentinel(t *testing.T) {
	env := newTestEnv(t)
	provider := &fakeProvider{
		teams: []providers.TeamRecord{
			{Name: "Tulane", ConferenceTier: models.TierG5, ConferenceName: "American"},
		},
	}
	svc := newIngestion(env, provider)

	_, err := svc.RefreshTeams(context.Background(), 2025)
	require.NoError(t, err)

	var team models.Team
	require.NoError(t, env.db.Where("name = ?", "Tulane").First(&team).Error)
	assert.Equal(t, models.UnrankedSentinel, team.RecruitingRank)
	assert.Equal(t, models.UnrankedSentinel, team.TransferRank)
	// Base rating only.
	assert.Equal(t, 1500.0, team.InitialRating)
}

func TestRefreshGamesCreatesFCSPlaceholder(t *testing.T) {
	env := newTestEnv(t)
	createTeam(t, env.db, "Georgia", models.TierP5, 1800)

	kickoff := time.Date(2025, time.September, 6, 19, 0, 0, 0, time.UTC)
	provider := &fakeProvider{
		games: map[string][]providers.GameRecord{
			providers.SeasonTypeRegular: {
				{
					Season: 2025, Week: 2, SeasonType: providers.SeasonTypeRegular,
					HomeTeam: "Georgia", AwayTeam: "Mercer",
					StartDate: &kickoff, GameType: models.GameTypeRegular,
				},
			},
		},
	}
	svc := newIngestion(env, provider)

	imported, err := svc.RefreshGames(context.Background(), 2025, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, imported)

	var mercer models.Team
	require.NoError(t, env.db.Where("name = ?", "Mercer").First(&mercer).Error)
	assert.Equal(t, models.TierFCS, mercer.ConferenceTier)
	assert.Equal(t, 1300.0, mercer.CurrentRating)

	var game models.Game
	require.NoError(t, env.db.Where("season = ? AND week = ?", 2025, 2).First(&game).Error)
	assert.True(t, game.ExcludedFromRankings)
}

func TestRefreshGamesSingleScoreTreatedAsScheduled(t *testing.T) {
	env := newTestEnv(t)
	createTeam(t, env.db, "Georgia", models.TierP5, 1800)
	createTeam(t, env.db, "Alabama", models.TierP5, 1700)

	provider := &fakeProvider{
		games: map[string][]providers.GameRecord{
			providers.SeasonTypeRegular: {
				{
					Season: 2025, Week: 3, SeasonType: providers.SeasonTypeRegular,
					HomeTeam: "Georgia", AwayTeam: "Alabama",
					HomePoints: intPtr(21), GameType: models.GameTypeRegular,
				},
			},
		},
	}
	svc := newIngestion(env, provider)

	_, err := svc.RefreshGames(context.Background(), 2025, 0)
	require.NoError(t, err)

	var game models.Game
	require.NoError(t, env.db.Where("season = ? AND week = ?", 2025, 3).First(&game).Error)
	assert.False(t, game.HasResult())
}

func TestRefreshGamesUpsertsScheduledRow(t *testing.T) {
	env := newTestEnv(t)
	georgia := createTeam(t, env.db, "Georgia", models.TierP5, 1800)
	alabama := createTeam(t, env.db, "Alabama", models.TierP5, 1700)
	createGame(t, env.db, 2025, 3, georgia, alabama, 0, 0)

	provider := &fakeProvider{
		games: map[string][]providers.GameRecord{
			providers.SeasonTypeRegular: {
				{
					Season: 2025, Week: 3, SeasonType: providers.SeasonTypeRegular,
					HomeTeam: "Georgia", AwayTeam: "Alabama",
					HomePoints: intPtr(27), AwayPoints: intPtr(24),
					GameType: models.GameTypeRegular,
				},
			},
		},
	}
	svc := newIngestion(env, provider)

	_, err := svc.RefreshGames(context.Background(), 2025, 0)
	require.NoError(t, err)

	var games []models.Game
	require.NoError(t, env.db.Where("season = ?", 2025).Find(&games).Error)
	require.Len(t, games, 1)
	assert.Equal(t, 27, games[0].HomeScore)
	assert.Equal(t, 24, games[0].AwayScore)
}

func TestRefreshGamesNeverRewritesProcessedScore(t *testing.T) {
	env := newTestEnv(t)
	georgia := createTeam(t, env.db, "Georgia", models.TierP5, 1800)
	alabama := createTeam(t, env.db, "Alabama", models.TierP5, 1700)
	game := createGame(t, env.db, 2025, 3, georgia, alabama, 27, 24)
	_, err := env.ranking.ProcessGame(game.ID)
	require.NoError(t, err)

	provider := &fakeProvider{
		games: map[string][]providers.GameRecord{
			providers.SeasonTypeRegular: {
				{
					Season: 2025, Week: 3, SeasonType: providers.SeasonTypeRegular,
					HomeTeam: "Georgia", AwayTeam: "Alabama",
					HomePoints: intPtr(99), AwayPoints: intPtr(0),
					GameType: models.GameTypeRegular,
				},
			},
		},
	}
	svc := newIngestion(env, provider)

	_, err = svc.RefreshGames(context.Background(), 2025, 0)
	require.NoError(t, err)

	var after models.Game
	require.NoError(t, env.db.First(&after, game.ID).Error)
	assert.Equal(t, 27, after.HomeScore)
	assert.Equal(t, 24, after.AwayScore)
}

func TestRefreshPollsUpserts(t *testing.T) {
	env := newTestEnv(t)
	georgia := createTeam(t, env.db, "Georgia", models.TierP5, 1800)

	provider := &fakeProvider{
		poll: []providers.PollRecord{
			{Season: 2025, Week: 3, Rank: 4, School: "Georgia", Points: 1200},
			{Season: 2025, Week: 3, Rank: 9, School: "Nowhere State", Points: 700},
		},
	}
	svc := newIngestion(env, provider)

	imported, err := svc.RefreshPolls(context.Background(), 2025, 3)
	require.NoError(t, err)
	// The unknown school is skipped, not fatal.
	assert.Equal(t, 1, imported)

	var row models.APPollRanking
	require.NoError(t, env.db.Where("season = ? AND week = ?", 2025, 3).First(&row).Error)
	assert.Equal(t, georgia.ID, row.TeamID)
	assert.Equal(t, 4, row.Rank)

	// Second pass updates in place.
	provider.poll[0].Rank = 2
	_, err = svc.RefreshPolls(context.Background(), 2025, 3)
	require.NoError(t, err)

	var rows []models.APPollRanking
	require.NoError(t, env.db.Where("season = ? AND week = ?", 2025, 3).Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, 2, rows[0].Rank)
}

func TestReplayNewPredictsThenProcesses(t *testing.T) {
	env := newTestEnv(t)
	georgia := createTeam(t, env.db, "Georgia", models.TierP5, 1800)
	alabama := createTeam(t, env.db, "Alabama", models.TierP5, 1700)
	texas := createTeam(t, env.db, "Texas", models.TierP5, 1650)

	completed := createGame(t, env.db, 2025, 1, georgia, alabama, 31, 17)
	scheduled := createGame(t, env.db, 2025, 2, georgia, texas, 0, 0)

	svc := newIngestion(env, &fakeProvider{})
	summary, err := svc.ReplayNew(context.Background(), 2025)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.GamesProcessed)
	assert.Equal(t, 1, summary.PredictionsCreated)
	assert.Equal(t, 0, summary.Errors)

	var after models.Game
	require.NoError(t, env.db.First(&after, completed.ID).Error)
	assert.True(t, after.IsProcessed)

	var prediction models.Prediction
	require.NoError(t, env.db.Where("game_id = ?", scheduled.ID).First(&prediction).Error)
	assert.Equal(t, georgia.ID, prediction.PredictedWinnerID)
}

func TestReplayNewHonorsCancellation(t *testing.T) {
	env := newTestEnv(t)
	georgia := createTeam(t, env.db, "Georgia", models.TierP5, 1800)
	alabama := createTeam(t, env.db, "Alabama", models.TierP5, 1700)
	createGame(t, env.db, 2025, 1, georgia, alabama, 31, 17)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	svc := newIngestion(env, &fakeProvider{})
	_, err := svc.ReplayNew(ctx, 2025)
	assert.ErrorIs(t, err, context.Canceled)

	var count int64
	require.NoError(t, env.db.Model(&models.Game{}).Where("is_processed = ?", true).Count(&count).Error)
	assert.Zero(t, count)
}

func TestRunSeasonAdvancesCurrentWeek(t *testing.T) {
	env := newTestEnv(t)
	season := models.Season{Year: 2025, CurrentWeek: 2, IsActive: true}
	require.NoError(t, env.db.Create(&season).Error)

	svc := newIngestion(env, &fakeProvider{})
	summary, err := svc.RunSeason(context.Background(), &season, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Week)

	var after models.Season
	require.NoError(t, env.db.First(&after, season.ID).Error)
	assert.Equal(t, 3, after.CurrentWeek)
}
