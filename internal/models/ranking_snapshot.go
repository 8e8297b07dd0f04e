package models

import "time"

// RankingSnapshot is an immutable per-team record of rating state at a
// given (season, week), written for historical reconstruction.
type RankingSnapshot struct {
	ID      uint     `gorm:"primaryKey" json:"id"`
	TeamID  uint     `gorm:"uniqueIndex:idx_snapshots_team_season_week;not null" json:"team_id"`
	Season  int      `gorm:"uniqueIndex:idx_snapshots_team_season_week;index:idx_snapshots_season_week" json:"season"`
	Week    int      `gorm:"uniqueIndex:idx_snapshots_team_season_week;index:idx_snapshots_season_week" json:"week"`
	Rank    int      `json:"rank"`
	Rating  float64  `json:"rating"`
	Wins    int      `json:"wins"`
	Losses  int      `json:"losses"`
	SOS     *float64 `json:"sos"` // nil when no qualifying games
	SOSRank int      `json:"sos_rank"`

	CreatedAt time.Time `json:"created_at"`
}

func (RankingSnapshot) TableName() string {
	return "ranking_snapshots"
}
