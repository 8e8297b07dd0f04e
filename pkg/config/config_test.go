package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSettings() Settings {
	return Settings{
		MonthlyAPILimit:    1000,
		WarningThresholds:  []float64{80, 90, 95},
		QuotaCutoffPercent: 90,
		ActiveSeasonStart:  MonthDay{Month: time.August, Day: 1},
		ActiveSeasonEnd:    MonthDay{Month: time.January, Day: 31},
		UpdateWeekday:      time.Sunday,
		UpdateHour:         6,
		UpdateMinute:       0,
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

func TestInActiveSeasonWrappingWindow(t *testing.T) {
	s := validSettings()

	tests := []struct {
		name string
		date time.Time
		want bool
	}{
		{"mid-season October", time.Date(2025, time.October, 15, 0, 0, 0, 0, time.UTC), true},
		{"window start", time.Date(2025, time.August, 1, 0, 0, 0, 0, time.UTC), true},
		{"window end across new year", time.Date(2026, time.January, 31, 23, 0, 0, 0, time.UTC), true},
		{"bowl season late December", time.Date(2025, time.December, 28, 0, 0, 0, 0, time.UTC), true},
		{"offseason May", time.Date(2025, time.May, 10, 0, 0, 0, 0, time.UTC), false},
		{"day after window", time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC), false},
		{"day before window", time.Date(2025, time.July, 31, 0, 0, 0, 0, time.UTC), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.InActiveSeason(tt.date))
		})
	}
}

func TestInActiveSeasonNonWrappingWindow(t *testing.T) {
	s := validSettings()
	s.ActiveSeasonStart = MonthDay{Month: time.March, Day: 1}
	s.ActiveSeasonEnd = MonthDay{Month: time.June, Day: 30}

	assert.True(t, s.InActiveSeason(time.Date(2025, time.April, 15, 0, 0, 0, 0, time.UTC)))
	assert.False(t, s.InActiveSeason(time.Date(2025, time.July, 1, 0, 0, 0, 0, time.UTC)))
	assert.False(t, s.InActiveSeason(time.Date(2025, time.December, 25, 0, 0, 0, 0, time.UTC)))
}

func TestCronSpec(t *testing.T) {
	s := validSettings()
	assert.Equal(t, "0 6 * * 0", s.CronSpec())

	s.UpdateWeekday = time.Wednesday
	s.UpdateHour = 14
	s.UpdateMinute = 30
	assert.Equal(t, "30 14 * * 3", s.CronSpec())
}

func TestValidateRejectsBadSettings(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Settings)
	}{
		{"zero api limit", func(s *Settings) { s.MonthlyAPILimit = 0 }},
		{"cutoff above 100", func(s *Settings) { s.QuotaCutoffPercent = 150 }},
		{"unsorted thresholds", func(s *Settings) { s.WarningThresholds = []float64{90, 80} }},
		{"hour out of range", func(s *Settings) { s.UpdateHour = 24 }},
		{"negative k", func(s *Settings) { s.KFactor = -1 }},
		{"confidence inverted", func(s *Settings) { s.ConfidenceMedium = 0.9 }},
		{"medium not above half", func(s *Settings) { s.ConfidenceMedium = 0.4 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSettings()
			tt.mutate(&s)
			assert.Error(t, s.Validate())
		})
	}
}

func TestApplyRejectsInvalidAndKeepsOld(t *testing.T) {
	cfg := &Config{}
	require.NoError(t, cfg.Apply(validSettings()))

	bad := validSettings()
	bad.MonthlyAPILimit = -5
	assert.Error(t, cfg.Apply(bad))
	assert.Equal(t, 1000, cfg.Snapshot().MonthlyAPILimit)
}

func TestSnapshotIsACopy(t *testing.T) {
	cfg := &Config{}
	require.NoError(t, cfg.Apply(validSettings()))

	snap := cfg.Snapshot()
	snap.WarningThresholds[0] = 1
	assert.Equal(t, 80.0, cfg.Snapshot().WarningThresholds[0])
}

func TestParseMonthDay(t *testing.T) {
	md, err := ParseMonthDay("08-01")
	require.NoError(t, err)
	assert.Equal(t, time.August, md.Month)
	assert.Equal(t, 1, md.Day)

	_, err = ParseMonthDay("13-01")
	assert.Error(t, err)
	_, err = ParseMonthDay("08-40")
	assert.Error(t, err)
	_, err = ParseMonthDay("august")
	assert.Error(t, err)
}
