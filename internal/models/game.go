package models

import "time"

// Game types. Postseason rounds occupy weeks 16-19; whether bowls and
// playoff games feed the ratings is a policy choice recomputed on each
// ingest (ExcludedFromRankings).
const (
	GameTypeRegular                = "regular"
	GameTypeConferenceChampionship = "conference_championship"
	GameTypeBowl                   = "bowl"
	GameTypePlayoff                = "playoff"
)

const (
	MaxRegularSeasonWeek = 15
	MaxWeek              = 19
)

type Game struct {
	ID         uint `gorm:"primaryKey" json:"id"`
	Season     int  `gorm:"uniqueIndex:idx_games_matchup;index:idx_games_season_week;index:idx_games_season_processed" json:"season"`
	Week       int  `gorm:"uniqueIndex:idx_games_matchup;index:idx_games_season_week" json:"week"`
	HomeTeamID uint `gorm:"uniqueIndex:idx_games_matchup;not null" json:"home_team_id"`
	AwayTeamID uint `gorm:"uniqueIndex:idx_games_matchup;not null" json:"away_team_id"`

	// Both scores zero means scheduled / unplayed.
	HomeScore int `json:"home_score"`
	AwayScore int `json:"away_score"`

	GameType       string     `gorm:"default:regular" json:"game_type"`
	PostseasonName string     `json:"postseason_name,omitempty"`
	GameDate       *time.Time `json:"game_date,omitempty"`
	NeutralSite    bool       `json:"neutral_site"`

	IsProcessed          bool `gorm:"index:idx_games_season_processed" json:"is_processed"`
	ExcludedFromRankings bool `json:"excluded_from_rankings"`

	// Zero until the game is processed; final afterwards.
	HomeRatingChange float64 `json:"home_rating_change"`
	AwayRatingChange float64 `json:"away_rating_change"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Game) TableName() string {
	return "games"
}

// HasResult reports whether a final score is present. Both scores zero
// denotes a scheduled game.
func (g *Game) HasResult() bool {
	return g.HomeScore != 0 || g.AwayScore != 0
}

// WinnerID returns the winning team id, with the home side on a tie.
func (g *Game) WinnerID() uint {
	if g.AwayScore > g.HomeScore {
		return g.AwayTeamID
	}
	return g.HomeTeamID
}

// IsPostseason reports whether the game sits in a postseason round.
func (g *Game) IsPostseason() bool {
	return g.GameType == GameTypeBowl || g.GameType == GameTypePlayoff
}
