// Package elo implements the modified Elo rating math: preseason
// initialization from recruiting/transfer/returning-production inputs,
// the per-game rating update with margin-of-victory and conference
// multipliers, and the win-probability and score formulas shared with
// the prediction engine. Everything here is pure computation; callers
// own validation and persistence.
package elo

import (
	"math"

	"github.com/tmcfarland/cfb-rankings/internal/models"
)

// Params are the tunable constants of the rating algorithm. They are
// captured from runtime settings so an in-flight replay always uses one
// consistent parameter set.
type Params struct {
	K                  float64
	HomeFieldAdvantage float64
	MOVCap             float64
	BaseScore          float64
	ScoreSensitivity   float64
	ConfidenceHigh     float64
	ConfidenceMedium   float64
}

func DefaultParams() Params {
	return Params{
		K:                  32,
		HomeFieldAdvantage: 65,
		MOVCap:             2.5,
		BaseScore:          30,
		ScoreSensitivity:   3.5,
		ConfidenceHigh:     0.80,
		ConfidenceMedium:   0.65,
	}
}

const (
	fbsBaseRating = 1500
	fcsBaseRating = 1300
)

// PreseasonRating derives a team's season-opening rating from its tier
// and preseason inputs. Sentinel ranks (999) contribute nothing.
func PreseasonRating(tier string, recruitingRank, transferRank int, returningProduction float64) float64 {
	rating := float64(fbsBaseRating)
	if tier == models.TierFCS {
		rating = fcsBaseRating
	}
	rating += recruitingBonus(recruitingRank)
	rating += transferBonus(transferRank)
	rating += productionBonus(returningProduction)
	return rating
}

func recruitingBonus(rank int) float64 {
	switch {
	case rank <= 0 || rank >= models.UnrankedSentinel:
		return 0
	case rank <= 5:
		return 200
	case rank <= 10:
		return 150
	case rank <= 25:
		return 100
	case rank <= 50:
		return 50
	case rank <= 75:
		return 25
	default:
		return 0
	}
}

func transferBonus(rank int) float64 {
	switch {
	case rank <= 0 || rank >= models.UnrankedSentinel:
		return 0
	case rank <= 5:
		return 100
	case rank <= 10:
		return 75
	case rank <= 25:
		return 50
	case rank <= 50:
		return 25
	default:
		return 0
	}
}

func productionBonus(returning float64) float64 {
	switch {
	case returning >= 0.80:
		return 40
	case returning >= 0.60:
		return 25
	case returning >= 0.40:
		return 10
	default:
		return 0
	}
}

// WinProbability returns the expected home win probability. The
// home-field advantage applies to the probability computation only and
// is skipped on neutral sites.
func (p Params) WinProbability(homeRating, awayRating float64, neutralSite bool) float64 {
	effectiveHome := homeRating
	if !neutralSite {
		effectiveHome += p.HomeFieldAdvantage
	}
	return 1.0 / (1.0 + math.Pow(10, (awayRating-effectiveHome)/400.0))
}

// Update computes the zero-sum rating transfer for a finished game.
// Returned deltas are symmetric: awayDelta == -homeDelta.
func (p Params) Update(homeRating, awayRating float64, homeScore, awayScore int, homeTier, awayTier string, neutralSite bool) (homeDelta, awayDelta, expectedHome float64) {
	expectedHome = p.WinProbability(homeRating, awayRating, neutralSite)

	var actualHome float64
	switch {
	case homeScore > awayScore:
		actualHome = 1.0
	case homeScore < awayScore:
		actualHome = 0.0
	default:
		actualHome = 0.5
	}

	mov := 1.0
	if homeScore != awayScore {
		mov = math.Min(math.Log(math.Abs(float64(homeScore-awayScore))+1), p.MOVCap)
	}

	conf := conferenceMultiplier(homeTier, awayTier, homeScore, awayScore)

	homeDelta = p.K * (actualHome - expectedHome) * mov * conf
	return homeDelta, -homeDelta, expectedHome
}

// conferenceMultiplier scales the transfer by the winner/loser tier
// pairing. Ties scale by 1.
func conferenceMultiplier(homeTier, awayTier string, homeScore, awayScore int) float64 {
	if homeScore == awayScore {
		return 1.0
	}
	winner, loser := homeTier, awayTier
	if awayScore > homeScore {
		winner, loser = awayTier, homeTier
	}
	switch {
	case winner == models.TierP5 && loser == models.TierG5:
		return 0.9
	case winner == models.TierG5 && loser == models.TierP5:
		return 1.1
	case winner != models.TierFCS && loser == models.TierFCS:
		return 0.5
	case winner == models.TierFCS && loser != models.TierFCS:
		return 2.0
	default:
		return 1.0
	}
}

// PredictScores estimates a final score from the effective rating
// difference. Scores clamp at zero.
func (p Params) PredictScores(homeRating, awayRating float64, neutralSite bool) (home, away int) {
	effectiveHome := homeRating
	if !neutralSite {
		effectiveHome += p.HomeFieldAdvantage
	}
	swing := (effectiveHome - awayRating) / 100.0 * p.ScoreSensitivity
	home = int(math.Round(p.BaseScore + swing))
	away = int(math.Round(p.BaseScore - swing))
	if home < 0 {
		home = 0
	}
	if away < 0 {
		away = 0
	}
	return home, away
}

// Confidence buckets a win probability by its distance from a coin
// flip.
func (p Params) Confidence(homeWinProbability float64) string {
	best := math.Max(homeWinProbability, 1-homeWinProbability)
	switch {
	case best > p.ConfidenceHigh:
		return models.ConfidenceHigh
	case best > p.ConfidenceMedium:
		return models.ConfidenceMedium
	default:
		return models.ConfidenceLow
	}
}
