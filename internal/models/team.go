package models

import "time"

// Conference tiers used by the rating algorithm's conference multiplier
// and the FCS exclusion policy.
const (
	TierP5  = "P5"
	TierG5  = "G5"
	TierFCS = "FCS"
)

// UnrankedSentinel marks a team absent from a recruiting or transfer
// class ranking. Sentinel ranks contribute no preseason bonus.
const UnrankedSentinel = 999

type Team struct {
	ID             uint   `gorm:"primaryKey" json:"id"`
	Name           string `gorm:"uniqueIndex;not null" json:"name"`
	ConferenceTier string `gorm:"not null;default:G5" json:"conference_tier"` // "P5", "G5", "FCS"
	ConferenceName string `json:"conference_name"`

	// Preseason inputs
	RecruitingRank      int     `gorm:"default:999" json:"recruiting_rank"`
	TransferRank        int     `gorm:"default:999" json:"transfer_rank"`
	ReturningProduction float64 `json:"returning_production"`

	// Rating state. InitialRating is fixed for the season; CurrentRating
	// and the record are owned exclusively by the ranking service.
	CurrentRating float64 `json:"current_rating"`
	InitialRating float64 `json:"initial_rating"`
	Wins          int     `json:"wins"`
	Losses        int     `json:"losses"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Team) TableName() string {
	return "teams"
}

func (t *Team) IsFCS() bool {
	return t.ConferenceTier == TierFCS
}
