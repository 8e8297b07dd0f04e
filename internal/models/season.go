package models

import "time"

type Season struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Year        int       `gorm:"uniqueIndex;not null" json:"year"`
	CurrentWeek int       `json:"current_week"`
	IsActive    bool      `json:"is_active"` // at most one active season at a time
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Season) TableName() string {
	return "seasons"
}
