package providers

import "time"

// Season types accepted by GetGames.
const (
	SeasonTypeRegular    = "regular"
	SeasonTypePostseason = "postseason"
)

// TeamRecord is a validated team row from the provider.
type TeamRecord struct {
	Name           string
	ConferenceTier string // "P5", "G5", "FCS"
	ConferenceName string
}

// GameRecord is a validated game row. Nil score pointers mean the
// provider has not reported that side's score yet.
type GameRecord struct {
	Season      int
	Week        int
	SeasonType  string
	HomeTeam    string
	AwayTeam    string
	HomePoints  *int
	AwayPoints  *int
	NeutralSite bool
	StartDate   *time.Time
	GameType    string // models.GameType*
	Notes       string
}

// RecruitingRecord carries a team's national recruiting class rank.
type RecruitingRecord struct {
	Team string
	Rank int
}

// TransferRecord carries a team's transfer portal class rank.
type TransferRecord struct {
	Team string
	Rank int
}

// ProductionRecord carries a team's returning production share in [0,1].
type ProductionRecord struct {
	Team    string
	Percent float64
}

// PollRecord is one AP top-25 slot.
type PollRecord struct {
	Season          int
	Week            int
	Rank            int
	School          string
	FirstPlaceVotes int
	Points          int
}

// Wire-level response shapes. Dynamic provider JSON is mapped into the
// validated record types above at this boundary; rows that fail
// validation are quarantined with a warning instead of propagating.

type cfbdTeam struct {
	School         string `json:"school"`
	Conference     string `json:"conference"`
	Classification string `json:"classification"` // "fbs" or "fcs"
}

type cfbdGame struct {
	ID           int64   `json:"id"`
	Season       int     `json:"season"`
	Week         int     `json:"week"`
	SeasonType   string  `json:"season_type"`
	StartDate    string  `json:"start_date"`
	NeutralSite  bool    `json:"neutral_site"`
	HomeTeam     string  `json:"home_team"`
	HomePoints   *int    `json:"home_points"`
	AwayTeam     string  `json:"away_team"`
	AwayPoints   *int    `json:"away_points"`
	Notes        string  `json:"notes"`
	ExcitementIx float64 `json:"excitement_index"`
}

type cfbdRecruitingRank struct {
	Rank int    `json:"rank"`
	Team string `json:"team"`
}

type cfbdTransferRank struct {
	Rank int    `json:"rank"`
	Team string `json:"team"`
}

type cfbdReturningProduction struct {
	Team    string  `json:"team"`
	Percent float64 `json:"percent_returning"`
}

type cfbdRankingWeek struct {
	Season int `json:"season"`
	Week   int `json:"week"`
	Polls  []struct {
		Poll  string `json:"poll"`
		Ranks []struct {
			Rank            int    `json:"rank"`
			School          string `json:"school"`
			FirstPlaceVotes int    `json:"firstPlaceVotes"`
			Points          int    `json:"points"`
		} `json:"ranks"`
	} `json:"polls"`
}

type cfbdCalendarWeek struct {
	Season         string `json:"season"`
	Week           int    `json:"week"`
	SeasonType     string `json:"seasonType"`
	FirstGameStart string `json:"firstGameStart"`
	LastGameStart  string `json:"lastGameStart"`
}
