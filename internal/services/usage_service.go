package services

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tmcfarland/cfb-rankings/internal/models"
	"github.com/tmcfarland/cfb-rankings/pkg/config"
	"github.com/tmcfarland/cfb-rankings/pkg/database"
	"github.com/tmcfarland/cfb-rankings/pkg/utils"
)

// UsageService meters provider calls against the configured monthly
// quota. It implements the provider client's UsageGate.
type UsageService struct {
	db     *database.DB
	cfg    *config.Config
	logger *logrus.Logger

	mu     sync.Mutex
	warned map[string]map[float64]bool // month key -> threshold -> already logged
}

func NewUsageService(db *database.DB, cfg *config.Config, logger *logrus.Logger) *UsageService {
	return &UsageService{
		db:     db,
		cfg:    cfg,
		logger: logger,
		warned: make(map[string]map[float64]bool),
	}
}

type EndpointCount struct {
	Endpoint string `json:"endpoint"`
	Calls    int64  `json:"calls"`
}

type UsageSummary struct {
	Month          string          `json:"month"`
	TotalCalls     int64           `json:"total_calls"`
	Limit          int             `json:"limit"`
	PercentageUsed float64         `json:"percentage_used"`
	Remaining      int64           `json:"remaining"`
	AveragePerDay  float64         `json:"average_per_day"`
	WarningLevel   string          `json:"warning_level"`
	TopEndpoints   []EndpointCount `json:"top_endpoints"`
}

type UsageDashboard struct {
	UsageSummary
	ProjectedMonthEnd float64 `json:"projected_month_end"`
	DaysRemaining     int     `json:"days_remaining"`
}

// Record persists one provider call. Metering failures are logged, not
// propagated; losing a usage row must never fail a data refresh.
func (s *UsageService) Record(endpoint string, statusCode int, duration time.Duration) {
	now := time.Now().UTC()
	row := models.APIUsage{
		MonthKey:   models.UsageMonthKey(now),
		Endpoint:   endpoint,
		Timestamp:  now,
		Duration:   duration,
		StatusCode: statusCode,
	}
	if err := s.db.Create(&row).Error; err != nil {
		s.logger.Errorf("Failed to record API usage for %s: %v", endpoint, err)
	}
}

// CheckQuota refuses the call once the month's usage reaches the
// configured cutoff. Soft thresholds below the cutoff are logged once
// per month each.
func (s *UsageService) CheckQuota() error {
	settings := s.cfg.Snapshot()
	month := models.UsageMonthKey(time.Now().UTC())

	var total int64
	if err := s.db.Model(&models.APIUsage{}).Where("month_key = ?", month).Count(&total).Error; err != nil {
		return fmt.Errorf("failed to count API usage: %w", err)
	}

	pct := float64(total) / float64(settings.MonthlyAPILimit) * 100

	s.warnThresholds(month, pct, settings.WarningThresholds)

	if pct >= settings.QuotaCutoffPercent {
		return fmt.Errorf("%w: %d of %d calls used this month (%.1f%%)",
			utils.ErrQuotaExhausted, total, settings.MonthlyAPILimit, pct)
	}
	return nil
}

func (s *UsageService) warnThresholds(month string, pct float64, thresholds []float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.warned[month] == nil {
		s.warned[month] = make(map[float64]bool)
		// Drop tracking for past months.
		for k := range s.warned {
			if k != month {
				delete(s.warned, k)
			}
		}
	}
	for _, threshold := range thresholds {
		if pct >= threshold && !s.warned[month][threshold] {
			s.warned[month][threshold] = true
			s.logger.WithFields(logrus.Fields{
				"month":     month,
				"threshold": threshold,
				"used_pct":  pct,
			}).Warn("API quota threshold crossed")
		}
	}
}

// Summary aggregates a month's usage. Month is a YYYY-MM key; empty
// means the current month.
func (s *UsageService) Summary(month string) (*UsageSummary, error) {
	now := time.Now().UTC()
	if month == "" {
		month = models.UsageMonthKey(now)
	}
	monthStart, err := time.Parse("2006-01", month)
	if err != nil {
		return nil, fmt.Errorf("%w: month must be YYYY-MM", utils.ErrInvalidInput)
	}

	settings := s.cfg.Snapshot()

	var total int64
	if err := s.db.Model(&models.APIUsage{}).Where("month_key = ?", month).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count API usage: %w", err)
	}

	var tops []EndpointCount
	err = s.db.Model(&models.APIUsage{}).
		Select("endpoint, count(*) as calls").
		Where("month_key = ?", month).
		Group("endpoint").
		Order("calls desc").
		Limit(5).
		Scan(&tops).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate endpoint usage: %w", err)
	}

	pct := float64(total) / float64(settings.MonthlyAPILimit) * 100
	remaining := int64(settings.MonthlyAPILimit) - total
	if remaining < 0 {
		remaining = 0
	}

	return &UsageSummary{
		Month:          month,
		TotalCalls:     total,
		Limit:          settings.MonthlyAPILimit,
		PercentageUsed: pct,
		Remaining:      remaining,
		AveragePerDay:  float64(total) / float64(daysElapsed(monthStart, now)),
		WarningLevel:   warningLevel(pct, settings.WarningThresholds),
		TopEndpoints:   tops,
	}, nil
}

// Dashboard extends the summary with a straight-line projection to
// month end.
func (s *UsageService) Dashboard(month string) (*UsageDashboard, error) {
	summary, err := s.Summary(month)
	if err != nil {
		return nil, err
	}

	monthStart, _ := time.Parse("2006-01", summary.Month)
	daysInMonth := monthStart.AddDate(0, 1, -1).Day()
	remaining := daysInMonth - daysElapsed(monthStart, time.Now().UTC())
	if remaining < 0 {
		remaining = 0
	}

	return &UsageDashboard{
		UsageSummary:      *summary,
		ProjectedMonthEnd: summary.AveragePerDay * float64(daysInMonth),
		DaysRemaining:     remaining,
	}, nil
}

// daysElapsed counts calendar days of the month that have begun, with a
// floor of 1 so averages stay defined on the first day.
func daysElapsed(monthStart, now time.Time) int {
	if now.Year() == monthStart.Year() && now.Month() == monthStart.Month() {
		return now.Day()
	}
	if now.Before(monthStart) {
		return 1
	}
	return monthStart.AddDate(0, 1, -1).Day()
}

func warningLevel(pct float64, thresholds []float64) string {
	level := "none"
	for _, threshold := range thresholds {
		if pct >= threshold {
			level = fmt.Sprintf("%.0f%%", threshold)
		}
	}
	return level
}
