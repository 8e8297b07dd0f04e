package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tmcfarland/cfb-rankings/internal/elo"
	"github.com/tmcfarland/cfb-rankings/internal/models"
	"github.com/tmcfarland/cfb-rankings/pkg/config"
	"github.com/tmcfarland/cfb-rankings/pkg/database"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("Usage: migrate [up|down|seed]")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.NewConnection(cfg.DatabaseURL, cfg.IsDevelopment())
	if err != nil {
		logrus.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	switch os.Args[1] {
	case "up":
		if err := db.Migrate(); err != nil {
			logrus.Fatalf("Failed to run migrations: %v", err)
		}
		logrus.Info("Migrations completed successfully")

	case "down":
		if err := dropTables(db); err != nil {
			logrus.Fatalf("Failed to drop tables: %v", err)
		}
		logrus.Info("Tables dropped successfully")

	case "seed":
		if err := seedData(db); err != nil {
			logrus.Fatalf("Failed to seed data: %v", err)
		}
		logrus.Info("Data seeded successfully")

	default:
		log.Fatalf("Unknown command: %s", os.Args[1])
	}
}

func dropTables(db *database.DB) error {
	// Reverse dependency order.
	tables := []string{
		"update_tasks",
		"api_usages",
		"ap_poll_rankings",
		"predictions",
		"ranking_snapshots",
		"games",
		"seasons",
		"teams",
	}
	for _, table := range tables {
		if err := db.Exec(fmt.Sprintf("DROP TABLE IF EXISTS %s CASCADE", table)).Error; err != nil {
			return fmt.Errorf("failed to drop table %s: %w", table, err)
		}
	}
	return nil
}

// seedData creates a small demo season so the API has something to
// serve before the first provider refresh.
func seedData(db *database.DB) error {
	year := time.Now().Year()
	season := models.Season{Year: year, CurrentWeek: 1, IsActive: true}
	if err := db.Create(&season).Error; err != nil {
		return fmt.Errorf("failed to create season: %w", err)
	}

	seed := []struct {
		name       string
		tier       string
		conference string
		recruiting int
		transfers  int
		production float64
	}{
		{"Georgia", models.TierP5, "SEC", 2, 12, 0.55},
		{"Alabama", models.TierP5, "SEC", 1, 8, 0.62},
		{"Ohio State", models.TierP5, "Big Ten", 4, 3, 0.48},
		{"Michigan", models.TierP5, "Big Ten", 9, 21, 0.71},
		{"Texas", models.TierP5, "SEC", 3, 6, 0.66},
		{"Boise State", models.TierG5, "Mountain West", 68, 44, 0.82},
		{"Tulane", models.TierG5, "American", 82, 55, 0.58},
		{"Memphis", models.TierG5, "American", 74, 61, 0.64},
	}

	teams := make([]models.Team, len(seed))
	for i, row := range seed {
		rating := elo.PreseasonRating(row.tier, row.recruiting, row.transfers, row.production)
		teams[i] = models.Team{
			Name:                row.name,
			ConferenceTier:      row.tier,
			ConferenceName:      row.conference,
			RecruitingRank:      row.recruiting,
			TransferRank:        row.transfers,
			ReturningProduction: row.production,
			InitialRating:       rating,
			CurrentRating:       rating,
		}
	}
	if err := db.Create(&teams).Error; err != nil {
		return fmt.Errorf("failed to create teams: %w", err)
	}

	kickoff := time.Date(year, time.August, 30, 19, 0, 0, 0, time.UTC)
	games := []models.Game{
		{Season: year, Week: 1, HomeTeamID: teams[0].ID, AwayTeamID: teams[5].ID, GameDate: &kickoff},
		{Season: year, Week: 1, HomeTeamID: teams[2].ID, AwayTeamID: teams[6].ID, GameDate: &kickoff},
		{Season: year, Week: 2, HomeTeamID: teams[1].ID, AwayTeamID: teams[4].ID, GameDate: ptrTime(kickoff.AddDate(0, 0, 7))},
		{Season: year, Week: 2, HomeTeamID: teams[3].ID, AwayTeamID: teams[7].ID, GameDate: ptrTime(kickoff.AddDate(0, 0, 7))},
	}
	if err := db.Create(&games).Error; err != nil {
		return fmt.Errorf("failed to create games: %w", err)
	}

	logrus.Infof("Seeded season %d with %d teams and %d games", year, len(teams), len(games))
	return nil
}

func ptrTime(t time.Time) *time.Time {
	return &t
}
