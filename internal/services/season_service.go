package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/tmcfarland/cfb-rankings/internal/models"
	"github.com/tmcfarland/cfb-rankings/pkg/config"
	"github.com/tmcfarland/cfb-rankings/pkg/database"
	"github.com/tmcfarland/cfb-rankings/pkg/utils"
)

type SeasonService struct {
	db      *database.DB
	cfg     *config.Config
	logger  *logrus.Logger
	ranking *RankingService
	cache   *CacheService
}

func NewSeasonService(db *database.DB, cfg *config.Config, logger *logrus.Logger, ranking *RankingService, cache *CacheService) *SeasonService {
	return &SeasonService{db: db, cfg: cfg, logger: logger, ranking: ranking, cache: cache}
}

func (s *SeasonService) List() ([]models.Season, error) {
	var seasons []models.Season
	if err := s.db.Order("year desc").Find(&seasons).Error; err != nil {
		return nil, fmt.Errorf("failed to list seasons: %w", err)
	}
	return seasons, nil
}

func (s *SeasonService) Get(year int) (*models.Season, error) {
	var season models.Season
	if err := s.db.Where("year = ?", year).First(&season).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: season %d", utils.ErrNotFound, year)
		}
		return nil, err
	}
	return &season, nil
}

func (s *SeasonService) Active() (*models.Season, error) {
	var season models.Season
	if err := s.db.Where("is_active = ?", true).First(&season).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: no active season", utils.ErrNotFound)
		}
		return nil, err
	}
	return &season, nil
}

// Create registers a new season. Activation is a separate step so an
// upcoming season can be staged while the current one still runs.
func (s *SeasonService) Create(year int) (*models.Season, error) {
	if year < 1900 || year > 2200 {
		return nil, fmt.Errorf("%w: implausible season year %d", utils.ErrInvalidInput, year)
	}
	season := models.Season{Year: year}
	if err := s.db.Create(&season).Error; err != nil {
		return nil, fmt.Errorf("%w: season %d already exists", utils.ErrConflict, year)
	}
	return &season, nil
}

// SetActive makes the given season the only active one.
func (s *SeasonService) SetActive(year int) (*models.Season, error) {
	var season models.Season
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("year = ?", year).First(&season).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: season %d", utils.ErrNotFound, year)
			}
			return err
		}
		if err := tx.Model(&models.Season{}).Where("is_active = ?", true).
			Update("is_active", false).Error; err != nil {
			return err
		}
		return tx.Model(&season).Update("is_active", true).Error
	})
	if err != nil {
		return nil, err
	}
	season.IsActive = true
	s.logger.Infof("Season %d is now active", year)
	return &season, nil
}

// Reset re-derives every rating for the season from scratch: preseason
// ratings from current inputs, then a chronological replay of every
// completed game.
func (s *SeasonService) Reset(ctx context.Context, year int) error {
	if _, err := s.Get(year); err != nil {
		return err
	}
	if err := s.ranking.ResetPreseason(year); err != nil {
		return err
	}
	if err := s.ranking.RecomputeSeason(year); err != nil {
		return err
	}
	s.cache.InvalidateSeason(ctx, year)
	s.logger.Infof("Season %d ratings rebuilt from preseason inputs", year)
	return nil
}
