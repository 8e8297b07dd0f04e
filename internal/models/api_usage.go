package models

import "time"

// APIUsage records one provider call. Monthly aggregates over MonthKey
// drive quota enforcement.
type APIUsage struct {
	ID         uint          `gorm:"primaryKey" json:"id"`
	MonthKey   string        `gorm:"index:idx_api_usage_month_endpoint;not null" json:"month_key"` // YYYY-MM
	Endpoint   string        `gorm:"index:idx_api_usage_month_endpoint;not null" json:"endpoint"`
	Timestamp  time.Time     `gorm:"not null" json:"timestamp"`
	Duration   time.Duration `json:"duration"`
	StatusCode int           `json:"status_code"`
}

func (APIUsage) TableName() string {
	return "api_usage"
}

// UsageMonthKey formats t (UTC) as the YYYY-MM aggregation key.
func UsageMonthKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}
