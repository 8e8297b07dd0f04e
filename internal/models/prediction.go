package models

import "time"

// Prediction confidence buckets.
const (
	ConfidenceHigh   = "High"
	ConfidenceMedium = "Medium"
	ConfidenceLow    = "Low"
)

type Prediction struct {
	ID     uint `gorm:"primaryKey" json:"id"`
	GameID uint `gorm:"uniqueIndex;not null" json:"game_id"`

	PredictedWinnerID  uint    `gorm:"not null" json:"predicted_winner_id"`
	PredictedHomeScore int     `json:"predicted_home_score"`
	PredictedAwayScore int     `json:"predicted_away_score"`
	HomeWinProbability float64 `json:"home_win_probability"`
	AwayWinProbability float64 `json:"away_win_probability"`

	// Ratings in effect at the moment the prediction was created.
	PreGameHomeRating float64 `json:"pre_game_home_rating"`
	PreGameAwayRating float64 `json:"pre_game_away_rating"`

	Confidence string `json:"confidence"` // "High", "Medium", "Low"

	// Nil until the game is processed; stays nil for excluded games.
	WasCorrect *bool `json:"was_correct"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Prediction) TableName() string {
	return "predictions"
}
