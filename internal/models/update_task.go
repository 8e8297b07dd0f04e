package models

import "time"

// Update task lifecycle: pending -> running -> (completed | failed).
// Terminal states are immutable; rows accumulate for audit.
const (
	TaskStatusPending   = "pending"
	TaskStatusRunning   = "running"
	TaskStatusCompleted = "completed"
	TaskStatusFailed    = "failed"
)

const (
	TaskTriggerScheduled = "scheduled"
	TaskTriggerManual    = "manual"
)

// Categorized failure reasons recorded on failed tasks.
const (
	TaskReasonInactiveSeason = "inactive_season"
	TaskReasonNoCurrentWeek  = "no_current_week"
	TaskReasonQuotaExhausted = "quota_exhausted"
	TaskReasonProviderError  = "provider_error"
	TaskReasonCancelled      = "cancelled"
	TaskReasonInternal       = "internal_error"
)

type UpdateTask struct {
	ID          string     `gorm:"primaryKey" json:"task_id"`
	Trigger     string     `gorm:"not null" json:"trigger"` // "scheduled" or "manual"
	Status      string     `gorm:"not null;index" json:"status"`
	StartedAt   *time.Time `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at"`
	Result      string     `json:"result,omitempty"` // JSON summary blob
	Error       string     `json:"error,omitempty"`
	Reason      string     `json:"reason,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (UpdateTask) TableName() string {
	return "update_tasks"
}

// IsTerminal reports whether the task has reached an immutable state.
func (t *UpdateTask) IsTerminal() bool {
	return t.Status == TaskStatusCompleted || t.Status == TaskStatusFailed
}
