package models

import "time"

// APPollRanking is one row of the AP top-25 for a given week, kept as
// the baseline "higher-ranked team wins" predictor.
type APPollRanking struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	Season          int       `gorm:"uniqueIndex:idx_ap_poll_season_week_team" json:"season"`
	Week            int       `gorm:"uniqueIndex:idx_ap_poll_season_week_team" json:"week"`
	TeamID          uint      `gorm:"uniqueIndex:idx_ap_poll_season_week_team;not null" json:"team_id"`
	Rank            int       `gorm:"not null" json:"rank"`
	FirstPlaceVotes int       `json:"first_place_votes"`
	Points          int       `json:"points"`
	CreatedAt       time.Time `json:"created_at"`
}

func (APPollRanking) TableName() string {
	return "ap_poll_rankings"
}
