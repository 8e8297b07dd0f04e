// Package providers contains the CollegeFootballData client, the only
// component in the service permitted to perform network I/O. Every call
// passes the monthly quota gate, the request pacer, and a circuit
// breaker before touching the wire.
package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/tmcfarland/cfb-rankings/internal/models"
	"github.com/tmcfarland/cfb-rankings/pkg/utils"
)

// Provider is the data source contract consumed by the ingestion
// pipeline and the update worker.
type Provider interface {
	GetTeams(ctx context.Context, year int) ([]TeamRecord, error)
	GetGames(ctx context.Context, year int, seasonType string, week *int) ([]GameRecord, error)
	GetRecruiting(ctx context.Context, year int) ([]RecruitingRecord, error)
	GetTransferPortal(ctx context.Context, year int) ([]TransferRecord, error)
	GetReturningProduction(ctx context.Context, year int) ([]ProductionRecord, error)
	GetAPPoll(ctx context.Context, year, week int) ([]PollRecord, error)
	GetCurrentWeek(ctx context.Context, year int) (*int, error)
}

// UsageGate meters provider calls against the monthly quota. Implemented
// by the usage service; defined here so the client stays import-light.
type UsageGate interface {
	CheckQuota() error
	Record(endpoint string, statusCode int, duration time.Duration)
}

// CFBDClient talks to the CollegeFootballData API.
type CFBDClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	usage      UsageGate
	logger     *logrus.Logger
	maxRetries int
}

func NewCFBDClient(baseURL, apiKey string, timeout time.Duration, requestsPerSecond, maxRetries int, usage UsageGate, logger *logrus.Logger) *CFBDClient {
	settings := gobreaker.Settings{
		Name: "cfbd",
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"component": "circuit_breaker",
				"service":   name,
				"from":      from.String(),
				"to":        to.String(),
			}).Info("Circuit breaker state changed")
		},
	}

	return &CFBDClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond),
		breaker:    gobreaker.NewCircuitBreaker(settings),
		usage:      usage,
		logger:     logger,
		maxRetries: maxRetries,
	}
}

// doGet runs one metered, rate-limited, breaker-protected GET. Transient
// failures (network, 5xx, 429) retry with exponential backoff; auth
// failures propagate immediately.
func (c *CFBDClient) doGet(ctx context.Context, endpoint string, params url.Values, dest interface{}) error {
	if err := c.usage.CheckQuota(); err != nil {
		return err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	reqURL := c.baseURL + endpoint
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	body, err := c.breaker.Execute(func() (interface{}, error) {
		return c.getWithRetry(ctx, endpoint, reqURL)
	})
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body.([]byte), dest); err != nil {
		return fmt.Errorf("%w: malformed response from %s: %v", utils.ErrUpstream, endpoint, err)
	}
	return nil
}

func (c *CFBDClient) getWithRetry(ctx context.Context, endpoint, reqURL string) ([]byte, error) {
	backoff := 500 * time.Millisecond
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		body, status, err := c.getOnce(ctx, endpoint, reqURL)
		if err == nil {
			return body, nil
		}
		lastErr = err

		// Auth and schema errors never heal on retry.
		if errors.Is(err, utils.ErrUpstreamAuth) || errors.Is(err, context.Canceled) {
			return nil, err
		}

		c.logger.WithFields(logrus.Fields{
			"endpoint": endpoint,
			"attempt":  attempt + 1,
			"status":   status,
		}).Warnf("Provider request failed: %v", err)
	}

	return nil, fmt.Errorf("%w: %s after %d attempts: %v", utils.ErrUpstream, endpoint, c.maxRetries+1, lastErr)
}

func (c *CFBDClient) getOnce(ctx context.Context, endpoint, reqURL string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.usage.Record(endpoint, 0, time.Since(start))
		return nil, 0, err
	}
	defer resp.Body.Close()

	c.usage.Record(endpoint, resp.StatusCode, time.Since(start))

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, resp.StatusCode, fmt.Errorf("%w: status %d from %s", utils.ErrUpstreamAuth, resp.StatusCode, endpoint)
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return nil, resp.StatusCode, fmt.Errorf("transient status %d from %s", resp.StatusCode, endpoint)
	case resp.StatusCode != http.StatusOK:
		return nil, resp.StatusCode, fmt.Errorf("%w: status %d from %s", utils.ErrUpstream, resp.StatusCode, endpoint)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}

// Power-five conferences for tier classification.
var powerFiveConferences = map[string]bool{
	"SEC":     true,
	"Big Ten": true,
	"Big 12":  true,
	"ACC":     true,
	"Pac-12":  true,
}

func tierFor(classification, conference string) string {
	if strings.EqualFold(classification, "fcs") {
		return models.TierFCS
	}
	if powerFiveConferences[conference] {
		return models.TierP5
	}
	return models.TierG5
}

func (c *CFBDClient) GetTeams(ctx context.Context, year int) ([]TeamRecord, error) {
	params := url.Values{"year": {strconv.Itoa(year)}}
	var raw []cfbdTeam
	if err := c.doGet(ctx, "/teams/fbs", params, &raw); err != nil {
		return nil, err
	}

	records := make([]TeamRecord, 0, len(raw))
	for _, t := range raw {
		if t.School == "" {
			c.logger.Warn("Quarantined team row with empty school name")
			continue
		}
		records = append(records, TeamRecord{
			Name:           t.School,
			ConferenceTier: tierFor(t.Classification, t.Conference),
			ConferenceName: t.Conference,
		})
	}
	return records, nil
}

func (c *CFBDClient) GetGames(ctx context.Context, year int, seasonType string, week *int) ([]GameRecord, error) {
	params := url.Values{
		"year":       {strconv.Itoa(year)},
		"seasonType": {seasonType},
	}
	if week != nil {
		params.Set("week", strconv.Itoa(*week))
	}

	var raw []cfbdGame
	if err := c.doGet(ctx, "/games", params, &raw); err != nil {
		return nil, err
	}

	records := make([]GameRecord, 0, len(raw))
	for _, g := range raw {
		if g.HomeTeam == "" || g.AwayTeam == "" {
			c.logger.WithField("game_id", g.ID).Warn("Quarantined game row with missing participant")
			continue
		}
		rec := GameRecord{
			Season:      g.Season,
			Week:        normalizeWeek(seasonType, g.Week),
			SeasonType:  seasonType,
			HomeTeam:    g.HomeTeam,
			AwayTeam:    g.AwayTeam,
			HomePoints:  g.HomePoints,
			AwayPoints:  g.AwayPoints,
			NeutralSite: g.NeutralSite,
			GameType:    gameTypeFor(seasonType, g.Notes),
			Notes:       g.Notes,
		}
		if ts, err := time.Parse(time.RFC3339, g.StartDate); err == nil {
			utc := ts.UTC()
			rec.StartDate = &utc
		}
		records = append(records, rec)
	}
	return records, nil
}

// normalizeWeek maps provider postseason rounds (numbered from 1) onto
// the 16-19 postseason week band.
func normalizeWeek(seasonType string, week int) int {
	if seasonType != SeasonTypePostseason {
		return week
	}
	normalized := models.MaxRegularSeasonWeek + week
	if normalized > models.MaxWeek {
		normalized = models.MaxWeek
	}
	return normalized
}

func gameTypeFor(seasonType, notes string) string {
	lower := strings.ToLower(notes)
	if seasonType == SeasonTypePostseason {
		if strings.Contains(lower, "playoff") {
			return models.GameTypePlayoff
		}
		return models.GameTypeBowl
	}
	if strings.Contains(lower, "championship") {
		return models.GameTypeConferenceChampionship
	}
	return models.GameTypeRegular
}

func (c *CFBDClient) GetRecruiting(ctx context.Context, year int) ([]RecruitingRecord, error) {
	params := url.Values{"year": {strconv.Itoa(year)}}
	var raw []cfbdRecruitingRank
	if err := c.doGet(ctx, "/recruiting/teams", params, &raw); err != nil {
		return nil, err
	}

	records := make([]RecruitingRecord, 0, len(raw))
	for _, r := range raw {
		if r.Team == "" || r.Rank <= 0 {
			c.logger.Warnf("Quarantined recruiting row: team=%q rank=%d", r.Team, r.Rank)
			continue
		}
		records = append(records, RecruitingRecord{Team: r.Team, Rank: r.Rank})
	}
	return records, nil
}

func (c *CFBDClient) GetTransferPortal(ctx context.Context, year int) ([]TransferRecord, error) {
	params := url.Values{"year": {strconv.Itoa(year)}}
	var raw []cfbdTransferRank
	if err := c.doGet(ctx, "/player/portal/teams", params, &raw); err != nil {
		return nil, err
	}

	records := make([]TransferRecord, 0, len(raw))
	for _, r := range raw {
		if r.Team == "" || r.Rank <= 0 {
			c.logger.Warnf("Quarantined transfer row: team=%q rank=%d", r.Team, r.Rank)
			continue
		}
		records = append(records, TransferRecord{Team: r.Team, Rank: r.Rank})
	}
	return records, nil
}

func (c *CFBDClient) GetReturningProduction(ctx context.Context, year int) ([]ProductionRecord, error) {
	params := url.Values{"year": {strconv.Itoa(year)}}
	var raw []cfbdReturningProduction
	if err := c.doGet(ctx, "/player/returning", params, &raw); err != nil {
		return nil, err
	}

	records := make([]ProductionRecord, 0, len(raw))
	for _, r := range raw {
		if r.Team == "" || r.Percent < 0 || r.Percent > 1 {
			c.logger.Warnf("Quarantined returning-production row: team=%q percent=%v", r.Team, r.Percent)
			continue
		}
		records = append(records, ProductionRecord{Team: r.Team, Percent: r.Percent})
	}
	return records, nil
}

func (c *CFBDClient) GetAPPoll(ctx context.Context, year, week int) ([]PollRecord, error) {
	params := url.Values{
		"year": {strconv.Itoa(year)},
		"week": {strconv.Itoa(week)},
	}
	var raw []cfbdRankingWeek
	if err := c.doGet(ctx, "/rankings", params, &raw); err != nil {
		return nil, err
	}

	var records []PollRecord
	for _, rw := range raw {
		for _, poll := range rw.Polls {
			if poll.Poll != "AP Top 25" {
				continue
			}
			for _, rank := range poll.Ranks {
				if rank.School == "" || rank.Rank <= 0 {
					c.logger.Warnf("Quarantined poll row: school=%q rank=%d", rank.School, rank.Rank)
					continue
				}
				records = append(records, PollRecord{
					Season:          rw.Season,
					Week:            rw.Week,
					Rank:            rank.Rank,
					School:          rank.School,
					FirstPlaceVotes: rank.FirstPlaceVotes,
					Points:          rank.Points,
				})
			}
		}
	}
	return records, nil
}

// GetCurrentWeek returns the in-progress (or next upcoming) week of the
// season calendar, nil once the season is over.
func (c *CFBDClient) GetCurrentWeek(ctx context.Context, year int) (*int, error) {
	params := url.Values{"year": {strconv.Itoa(year)}}
	var raw []cfbdCalendarWeek
	if err := c.doGet(ctx, "/calendar", params, &raw); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	for _, cw := range raw {
		last, err := time.Parse(time.RFC3339, cw.LastGameStart)
		if err != nil {
			continue
		}
		// The week remains current until a full day past its last kickoff.
		if now.Before(last.Add(24 * time.Hour)) {
			week := normalizeWeek(strings.ToLower(cw.SeasonType), cw.Week)
			return &week, nil
		}
	}
	return nil, nil
}
