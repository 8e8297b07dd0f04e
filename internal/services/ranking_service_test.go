package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tmcfarland/cfb-rankings/internal/models"
)

func TestProcessGameZeroSum(t *testing.T) {
	env := newTestEnv(t)
	home := createTeam(t, env.db, "Georgia", models.TierP5, 1800)
	away := createTeam(t, env.db, "Alabama", models.TierP5, 1700)
	game := createGame(t, env.db, 2025, 3, home, away, 31, 17)

	processed, err := env.ranking.ProcessGame(game.ID)
	require.NoError(t, err)
	assert.True(t, processed.IsProcessed)
	assert.Greater(t, processed.HomeRatingChange, 0.0)
	assert.InDelta(t, 0.0, processed.HomeRatingChange+processed.AwayRatingChange, 1e-9)

	homeAfter := reloadTeam(t, env.db, home.ID)
	awayAfter := reloadTeam(t, env.db, away.ID)
	assert.InDelta(t, 1800+processed.HomeRatingChange, homeAfter.CurrentRating, 1e-9)
	assert.InDelta(t, 1700+processed.AwayRatingChange, awayAfter.CurrentRating, 1e-9)
	assert.Equal(t, 1, homeAfter.Wins)
	assert.Equal(t, 0, homeAfter.Losses)
	assert.Equal(t, 0, awayAfter.Wins)
	assert.Equal(t, 1, awayAfter.Losses)
}

func TestProcessGameFavoriteWinExpectedDelta(t *testing.T) {
	env := newTestEnv(t)
	home := createTeam(t, env.db, "Georgia", models.TierP5, 1800)
	away := createTeam(t, env.db, "Alabama", models.TierP5, 1700)
	// 14-point home win, same tier, home field.
	game := createGame(t, env.db, 2025, 3, home, away, 31, 17)

	processed, err := env.ranking.ProcessGame(game.ID)
	require.NoError(t, err)
	// ln(15) exceeds the 2.5 MOV cap, so K=32 * 2.5 * (1 - expected
	// 0.721) lands near +22.3.
	assert.InDelta(t, 22.3, processed.HomeRatingChange, 0.5)
}

func TestProcessGameIdempotent(t *testing.T) {
	env := newTestEnv(t)
	home := createTeam(t, env.db, "Georgia", models.TierP5, 1800)
	away := createTeam(t, env.db, "Alabama", models.TierP5, 1700)
	game := createGame(t, env.db, 2025, 3, home, away, 31, 17)

	first, err := env.ranking.ProcessGame(game.ID)
	require.NoError(t, err)
	ratingAfterFirst := reloadTeam(t, env.db, home.ID).CurrentRating

	second, err := env.ranking.ProcessGame(game.ID)
	require.NoError(t, err)
	assert.Equal(t, first.HomeRatingChange, second.HomeRatingChange)
	assert.Equal(t, ratingAfterFirst, reloadTeam(t, env.db, home.ID).CurrentRating)
	assert.Equal(t, 1, reloadTeam(t, env.db, home.ID).Wins)
}

func TestProcessGameWithoutResultFails(t *testing.T) {
	env := newTestEnv(t)
	home := createTeam(t, env.db, "Georgia", models.TierP5, 1800)
	away := createTeam(t, env.db, "Alabama", models.TierP5, 1700)
	game := createGame(t, env.db, 2025, 3, home, away, 0, 0)

	_, err := env.ranking.ProcessGame(game.ID)
	assert.Error(t, err)
	assert.False(t, reloadTeam(t, env.db, home.ID).CurrentRating != 1800)
}

func TestProcessExcludedGameLeavesRatingsUntouched(t *testing.T) {
	env := newTestEnv(t)
	home := createTeam(t, env.db, "Georgia", models.TierP5, 1800)
	away := createTeam(t, env.db, "Mercer", models.TierFCS, 1300)
	game := createGame(t, env.db, 2025, 1, home, away, 56, 7)
	require.NoError(t, env.db.Model(game).Update("excluded_from_rankings", true).Error)

	processed, err := env.ranking.ProcessGame(game.ID)
	require.NoError(t, err)
	assert.True(t, processed.IsProcessed)
	assert.Zero(t, processed.HomeRatingChange)
	assert.Zero(t, processed.AwayRatingChange)
	assert.Equal(t, 1800.0, reloadTeam(t, env.db, home.ID).CurrentRating)
	assert.Equal(t, 0, reloadTeam(t, env.db, home.ID).Wins)
}

func TestProcessTieGameUpdatesRatingsNotRecords(t *testing.T) {
	env := newTestEnv(t)
	home := createTeam(t, env.db, "Georgia", models.TierP5, 1800)
	away := createTeam(t, env.db, "Alabama", models.TierP5, 1700)
	game := createGame(t, env.db, 2025, 3, home, away, 21, 21)

	processed, err := env.ranking.ProcessGame(game.ID)
	require.NoError(t, err)
	// The favorite bleeds rating on a tie.
	assert.Less(t, processed.HomeRatingChange, 0.0)
	homeAfter := reloadTeam(t, env.db, home.ID)
	awayAfter := reloadTeam(t, env.db, away.ID)
	assert.Equal(t, 0, homeAfter.Wins+homeAfter.Losses)
	assert.Equal(t, 0, awayAfter.Wins+awayAfter.Losses)
}

func TestRecomputeSeasonReproducesRatings(t *testing.T) {
	env := newTestEnv(t)
	a := createTeam(t, env.db, "Georgia", models.TierP5, 1800)
	b := createTeam(t, env.db, "Alabama", models.TierP5, 1700)
	c := createTeam(t, env.db, "Boise State", models.TierG5, 1550)

	g1 := createGame(t, env.db, 2025, 1, a, b, 27, 24)
	g2 := createGame(t, env.db, 2025, 2, b, c, 35, 10)
	g3 := createGame(t, env.db, 2025, 3, c, a, 20, 41)
	for _, g := range []*models.Game{g1, g2, g3} {
		_, err := env.ranking.ProcessGame(g.ID)
		require.NoError(t, err)
	}

	wantA := reloadTeam(t, env.db, a.ID).CurrentRating
	wantB := reloadTeam(t, env.db, b.ID).CurrentRating
	wantC := reloadTeam(t, env.db, c.ID).CurrentRating

	require.NoError(t, env.ranking.RecomputeSeason(2025))

	assert.InDelta(t, wantA, reloadTeam(t, env.db, a.ID).CurrentRating, 1e-9)
	assert.InDelta(t, wantB, reloadTeam(t, env.db, b.ID).CurrentRating, 1e-9)
	assert.InDelta(t, wantC, reloadTeam(t, env.db, c.ID).CurrentRating, 1e-9)
	assert.Equal(t, 2, reloadTeam(t, env.db, a.ID).Wins)
	assert.Equal(t, 1, reloadTeam(t, env.db, b.ID).Wins)
	assert.Equal(t, 2, reloadTeam(t, env.db, c.ID).Losses)
}

func TestGetCurrentRankingsExcludesFCS(t *testing.T) {
	env := newTestEnv(t)
	createTeam(t, env.db, "Georgia", models.TierP5, 1800)
	createTeam(t, env.db, "Boise State", models.TierG5, 1600)
	createTeam(t, env.db, "Mercer", models.TierFCS, 1400)

	entries, err := env.ranking.GetCurrentRankings(2025, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "Georgia", entries[0].Name)
	assert.Equal(t, 1, entries[0].Rank)
	assert.Equal(t, "Boise State", entries[1].Name)
	assert.Equal(t, 2, entries[1].Rank)
}

func TestGetCurrentRankingsLimit(t *testing.T) {
	env := newTestEnv(t)
	createTeam(t, env.db, "Georgia", models.TierP5, 1800)
	createTeam(t, env.db, "Alabama", models.TierP5, 1750)
	createTeam(t, env.db, "Texas", models.TierP5, 1700)

	entries, err := env.ranking.GetCurrentRankings(2025, 2)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestSOSMeanOfOpponentRatings(t *testing.T) {
	env := newTestEnv(t)
	a := createTeam(t, env.db, "Georgia", models.TierP5, 1800)
	b := createTeam(t, env.db, "Alabama", models.TierP5, 1700)
	c := createTeam(t, env.db, "Texas", models.TierP5, 1600)

	g1 := createGame(t, env.db, 2025, 1, a, b, 27, 24)
	g2 := createGame(t, env.db, 2025, 2, a, c, 30, 10)
	for _, g := range []*models.Game{g1, g2} {
		_, err := env.ranking.ProcessGame(g.ID)
		require.NoError(t, err)
	}

	sos, err := env.ranking.ComputeSOS(a.ID, 2025)
	require.NoError(t, err)
	require.NotNil(t, sos)

	wantMean := (reloadTeam(t, env.db, b.ID).CurrentRating + reloadTeam(t, env.db, c.ID).CurrentRating) / 2
	assert.InDelta(t, wantMean, *sos, 1e-9)
}

func TestSOSNilWithoutQualifyingGames(t *testing.T) {
	env := newTestEnv(t)
	a := createTeam(t, env.db, "Georgia", models.TierP5, 1800)

	sos, err := env.ranking.ComputeSOS(a.ID, 2025)
	require.NoError(t, err)
	assert.Nil(t, sos)
}

func TestSaveSnapshotImmutable(t *testing.T) {
	env := newTestEnv(t)
	a := createTeam(t, env.db, "Georgia", models.TierP5, 1800)
	createTeam(t, env.db, "Alabama", models.TierP5, 1700)

	require.NoError(t, env.ranking.SaveSnapshot(2025, 5))

	// Rating moves, snapshot must not.
	require.NoError(t, env.db.Model(&models.Team{}).Where("id = ?", a.ID).
		Update("current_rating", 1900.0).Error)
	require.NoError(t, env.ranking.SaveSnapshot(2025, 5))

	snapshots, err := env.ranking.GetSnapshots(a.ID, 2025)
	require.NoError(t, err)
	require.Len(t, snapshots, 1)
	assert.Equal(t, 1800.0, snapshots[0].Rating)
	assert.Equal(t, 5, snapshots[0].Week)
}

func TestResetPreseasonRestoresInitialRatings(t *testing.T) {
	env := newTestEnv(t)
	a := createTeam(t, env.db, "Georgia", models.TierP5, 1500)
	require.NoError(t, env.db.Model(&models.Team{}).Where("id = ?", a.ID).Updates(map[string]interface{}{
		"recruiting_rank": 2,
		"transfer_rank":   4,
		// 0.85 returning production earns the top bonus.
		"returning_production": 0.85,
		"current_rating":       1777.0,
	}).Error)

	require.NoError(t, env.ranking.ResetPreseason(2025))

	after := reloadTeam(t, env.db, a.ID)
	// 1500 base + 200 recruiting + 100 transfer + 40 production.
	assert.Equal(t, 1840.0, after.InitialRating)
	assert.Equal(t, 1840.0, after.CurrentRating)
}

func TestSameWeekDisjointGamesOrderIrrelevant(t *testing.T) {
	play := func(t *testing.T, reversed bool) map[string]float64 {
		env := newTestEnv(t)
		georgia := createTeam(t, env.db, "Georgia", models.TierP5, 1650)
		alabama := createTeam(t, env.db, "Alabama", models.TierP5, 1600)
		ohioState := createTeam(t, env.db, "Ohio State", models.TierP5, 1700)
		michigan := createTeam(t, env.db, "Michigan", models.TierP5, 1550)

		first := createGame(t, env.db, 2025, 5, georgia, alabama, 31, 17)
		second := createGame(t, env.db, 2025, 5, ohioState, michigan, 20, 23)

		order := []uint{first.ID, second.ID}
		if reversed {
			order = []uint{second.ID, first.ID}
		}
		for _, id := range order {
			_, err := env.ranking.ProcessGame(id)
			require.NoError(t, err)
		}

		ratings := make(map[string]float64)
		for _, team := range []*models.Team{georgia, alabama, ohioState, michigan} {
			ratings[team.Name] = reloadTeam(t, env.db, team.ID).CurrentRating
		}
		return ratings
	}

	// Two games in the same week with no team in common: processing
	// order cannot change the final ratings.
	forward := play(t, false)
	reverse := play(t, true)
	require.Len(t, forward, 4)
	for name, rating := range forward {
		assert.InDelta(t, rating, reverse[name], 1e-9, name)
	}
}
