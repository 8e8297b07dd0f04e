package services

import (
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tmcfarland/cfb-rankings/internal/models"
	"github.com/tmcfarland/cfb-rankings/pkg/config"
	"github.com/tmcfarland/cfb-rankings/pkg/database"
)

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	// One connection so every query sees the same in-memory database.
	sqlDB.SetMaxOpenConns(1)

	db := database.Wrap(gdb)
	require.NoError(t, db.Migrate())
	return db
}

func testSettings() config.Settings {
	return config.Settings{
		MonthlyAPILimit:    1000,
		WarningThresholds:  []float64{80, 90, 95},
		QuotaCutoffPercent: 90,
		ActiveSeasonStart:  config.MonthDay{Month: time.August, Day: 1},
		ActiveSeasonEnd:    config.MonthDay{Month: time.January, Day: 31},
		UpdateWeekday:      time.Sunday,
		UpdateHour:         6,
		KFactor:            32,
		HomeFieldAdvantage: 65,
		MOVCap:             2.5,
		BaseScore:          30,
		ScoreSensitivity:   3.5,
		ConfidenceHigh:     0.80,
		ConfidenceMedium:   0.65,
		TaskTimeout:        30 * time.Minute,
	}
}

func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	require.NoError(t, cfg.Apply(testSettings()))
	return cfg
}

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.ErrorLevel)
	return l
}

type testEnv struct {
	db          *database.DB
	cfg         *config.Config
	ranking     *RankingService
	predictions *PredictionService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := newTestDB(t)
	cfg := newTestConfig(t)
	logger := testLogger()
	var writerMu sync.Mutex
	return &testEnv{
		db:          db,
		cfg:         cfg,
		ranking:     NewRankingService(db, cfg, logger, &writerMu),
		predictions: NewPredictionService(db, cfg, logger, &writerMu),
	}
}

func createTeam(t *testing.T, db *database.DB, name, tier string, rating float64) *models.Team {
	t.Helper()
	team := &models.Team{
		Name:           name,
		ConferenceTier: tier,
		ConferenceName: tier,
		RecruitingRank: models.UnrankedSentinel,
		TransferRank:   models.UnrankedSentinel,
		InitialRating:  rating,
		CurrentRating:  rating,
	}
	require.NoError(t, db.Create(team).Error)
	return team
}

func createGame(t *testing.T, db *database.DB, season, week int, home, away *models.Team, homeScore, awayScore int) *models.Game {
	t.Helper()
	kickoff := time.Date(season, time.September, 1, 19, 0, 0, 0, time.UTC).AddDate(0, 0, 7*(week-1))
	game := &models.Game{
		Season:     season,
		Week:       week,
		HomeTeamID: home.ID,
		AwayTeamID: away.ID,
		HomeScore:  homeScore,
		AwayScore:  awayScore,
		GameDate:   &kickoff,
	}
	require.NoError(t, db.Create(game).Error)
	return game
}

func reloadTeam(t *testing.T, db *database.DB, id uint) *models.Team {
	t.Helper()
	var team models.Team
	require.NoError(t, db.First(&team, id).Error)
	return &team
}
