package services

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tmcfarland/cfb-rankings/internal/models"
	"github.com/tmcfarland/cfb-rankings/internal/providers"
	"github.com/tmcfarland/cfb-rankings/pkg/config"
	"github.com/tmcfarland/cfb-rankings/pkg/utils"
)

// alwaysInSeason keeps every test date inside the active window.
func alwaysInSeason(s config.Settings) config.Settings {
	s.ActiveSeasonStart = config.MonthDay{Month: time.January, Day: 1}
	s.ActiveSeasonEnd = config.MonthDay{Month: time.December, Day: 31}
	return s
}

// neverInSeason shrinks the window to a single day that is not today.
func neverInSeason(s config.Settings) config.Settings {
	tomorrow := time.Now().UTC().AddDate(0, 0, 1)
	s.ActiveSeasonStart = config.MonthDay{Month: tomorrow.Month(), Day: tomorrow.Day()}
	s.ActiveSeasonEnd = config.MonthDay{Month: tomorrow.Month(), Day: tomorrow.Day()}
	return s
}

func newUpdateEnv(t *testing.T, adjust func(config.Settings) config.Settings, provider providers.Provider) (*UpdateService, *testEnv) {
	t.Helper()
	env := newTestEnv(t)
	settings := testSettings()
	if adjust != nil {
		settings = adjust(settings)
	}
	require.NoError(t, env.cfg.Apply(settings))

	logger := testLogger()
	usage := NewUsageService(env.db, env.cfg, logger)
	var writerMu sync.Mutex
	ranking := NewRankingService(env.db, env.cfg, logger, &writerMu)
	predictions := NewPredictionService(env.db, env.cfg, logger, &writerMu)
	ingestion := NewIngestionService(env.db, env.cfg, logger, provider, ranking, predictions)
	cache := NewCacheService(nil)
	return NewUpdateService(env.db, env.cfg, logger, provider, usage, ingestion, ranking, cache), env
}

func TestTriggerRejectsConcurrentTask(t *testing.T) {
	svc, _ := newUpdateEnv(t, alwaysInSeason, &fakeProvider{})

	first, err := svc.Trigger(models.TaskTriggerManual)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusPending, first.Status)

	_, err = svc.Trigger(models.TaskTriggerManual)
	assert.ErrorIs(t, err, utils.ErrTaskInProgress)
}

func TestScheduledTaskOutsideSeasonIsNoOp(t *testing.T) {
	svc, env := newUpdateEnv(t, neverInSeason, &fakeProvider{})

	task, err := svc.Trigger(models.TaskTriggerScheduled)
	require.NoError(t, err)
	svc.runTask(task.ID)

	var after models.UpdateTask
	require.NoError(t, env.db.Where("id = ?", task.ID).First(&after).Error)
	assert.Equal(t, models.TaskStatusCompleted, after.Status)
	assert.NotNil(t, after.CompletedAt)
	assert.Empty(t, after.Reason)
}

func TestManualTaskOutsideSeasonFails(t *testing.T) {
	svc, env := newUpdateEnv(t, neverInSeason, &fakeProvider{})

	task, err := svc.Trigger(models.TaskTriggerManual)
	require.NoError(t, err)
	svc.runTask(task.ID)

	var after models.UpdateTask
	require.NoError(t, env.db.Where("id = ?", task.ID).First(&after).Error)
	assert.Equal(t, models.TaskStatusFailed, after.Status)
	assert.Equal(t, models.TaskReasonInactiveSeason, after.Reason)
}

func TestTaskFailsWithoutCurrentWeek(t *testing.T) {
	svc, env := newUpdateEnv(t, alwaysInSeason, &fakeProvider{week: nil})
	require.NoError(t, env.db.Create(&models.Season{Year: 2025, IsActive: true}).Error)

	task, err := svc.Trigger(models.TaskTriggerManual)
	require.NoError(t, err)
	svc.runTask(task.ID)

	var after models.UpdateTask
	require.NoError(t, env.db.Where("id = ?", task.ID).First(&after).Error)
	assert.Equal(t, models.TaskStatusFailed, after.Status)
	assert.Equal(t, models.TaskReasonNoCurrentWeek, after.Reason)
}

func TestTaskFailsWhenQuotaExhausted(t *testing.T) {
	svc, env := newUpdateEnv(t, alwaysInSeason, &fakeProvider{week: intPtr(3)})
	require.NoError(t, env.db.Create(&models.Season{Year: 2025, IsActive: true}).Error)

	usage := NewUsageService(env.db, env.cfg, testLogger())
	seedUsage(t, usage, models.UsageMonthKey(time.Now()), 905)

	task, err := svc.Trigger(models.TaskTriggerManual)
	require.NoError(t, err)
	svc.runTask(task.ID)

	var after models.UpdateTask
	require.NoError(t, env.db.Where("id = ?", task.ID).First(&after).Error)
	assert.Equal(t, models.TaskStatusFailed, after.Status)
	assert.Equal(t, models.TaskReasonQuotaExhausted, after.Reason)
}

func TestTaskCompletesFullRun(t *testing.T) {
	provider := &fakeProvider{
		week: intPtr(2),
		teams: []providers.TeamRecord{
			{Name: "Georgia", ConferenceTier: models.TierP5, ConferenceName: "SEC"},
			{Name: "Alabama", ConferenceTier: models.TierP5, ConferenceName: "SEC"},
		},
		games: map[string][]providers.GameRecord{
			providers.SeasonTypeRegular: {
				{
					Season: 2025, Week: 1, SeasonType: providers.SeasonTypeRegular,
					HomeTeam: "Georgia", AwayTeam: "Alabama",
					HomePoints: intPtr(31), AwayPoints: intPtr(17),
					GameType: models.GameTypeRegular,
				},
			},
		},
	}
	svc, env := newUpdateEnv(t, alwaysInSeason, provider)
	require.NoError(t, env.db.Create(&models.Season{Year: 2025, IsActive: true}).Error)

	task, err := svc.Trigger(models.TaskTriggerManual)
	require.NoError(t, err)
	svc.runTask(task.ID)

	var after models.UpdateTask
	require.NoError(t, env.db.Where("id = ?", task.ID).First(&after).Error)
	assert.Equal(t, models.TaskStatusCompleted, after.Status)
	assert.Contains(t, after.Result, `"games_processed":1`)

	var game models.Game
	require.NoError(t, env.db.Where("season = ? AND week = ?", 2025, 1).First(&game).Error)
	assert.True(t, game.IsProcessed)

	var season models.Season
	require.NoError(t, env.db.Where("year = ?", 2025).First(&season).Error)
	assert.Equal(t, 2, season.CurrentWeek)
}

func TestRescheduleReplacesCronEntry(t *testing.T) {
	svc, env := newUpdateEnv(t, alwaysInSeason, &fakeProvider{})
	require.NoError(t, svc.Start())
	defer svc.Stop()

	before := svc.cron.Entries()
	require.Len(t, before, 1)

	settings := env.cfg.Snapshot()
	settings.UpdateWeekday = time.Wednesday
	settings.UpdateHour = 4
	settings.UpdateMinute = 0
	require.NoError(t, env.cfg.Apply(settings))
	require.NoError(t, svc.Reschedule())

	after := svc.cron.Entries()
	require.Len(t, after, 1)
	assert.NotEqual(t, before[0].ID, after[0].ID)

	// The replacement entry follows the new schedule: from a Monday it
	// must fire on Wednesday at 04:00.
	next := after[0].Schedule.Next(time.Date(2026, time.January, 5, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Wednesday, next.Weekday())
	assert.Equal(t, 4, next.Hour())
}

func TestCancelUnknownTask(t *testing.T) {
	svc, _ := newUpdateEnv(t, alwaysInSeason, &fakeProvider{})
	err := svc.Cancel("no-such-task")
	assert.ErrorIs(t, err, utils.ErrNotFound)
}

func TestListTasksNewestFirst(t *testing.T) {
	svc, _ := newUpdateEnv(t, neverInSeason, &fakeProvider{})

	first, err := svc.Trigger(models.TaskTriggerScheduled)
	require.NoError(t, err)
	svc.runTask(first.ID)
	svc.mu.Lock()
	svc.active = ""
	svc.mu.Unlock()

	// created_at is the sort key; keep the rows distinguishable.
	time.Sleep(10 * time.Millisecond)

	second, err := svc.Trigger(models.TaskTriggerScheduled)
	require.NoError(t, err)
	svc.runTask(second.ID)

	tasks, err := svc.ListTasks(10)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, second.ID, tasks[0].ID)
}
