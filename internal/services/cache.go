package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// CacheService fronts read-heavy ranking queries with redis. A nil
// client disables caching; every method degrades to a miss.
type CacheService struct {
	client *redis.Client
}

func NewCacheService(client *redis.Client) *CacheService {
	return &CacheService{
		client: client,
	}
}

func (s *CacheService) Enabled() bool {
	return s != nil && s.client != nil
}

func (s *CacheService) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if !s.Enabled() {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	if err := s.client.Set(ctx, key, data, expiration).Err(); err != nil {
		return fmt.Errorf("failed to set cache: %w", err)
	}

	return nil
}

func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) error {
	if !s.Enabled() {
		return redis.Nil
	}
	data, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return err
		}
		return fmt.Errorf("failed to get cache: %w", err)
	}

	if err := json.Unmarshal([]byte(data), dest); err != nil {
		return fmt.Errorf("failed to unmarshal value: %w", err)
	}

	return nil
}

func (s *CacheService) Delete(ctx context.Context, keys ...string) error {
	if !s.Enabled() || len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete cache: %w", err)
	}
	return nil
}

// Cache key generators
func RankingsCacheKey(season, limit int) string {
	return fmt.Sprintf("rankings:%d:%d", season, limit)
}

func ComparisonCacheKey(season int) string {
	return fmt.Sprintf("comparison:%d", season)
}

func AccuracyCacheKey(season int, teamID uint) string {
	return fmt.Sprintf("accuracy:%d:%d", season, teamID)
}

// InvalidateSeason drops every cached read derived from a season's
// rating state; called after each completed update task.
func (s *CacheService) InvalidateSeason(ctx context.Context, season int) {
	if !s.Enabled() {
		return
	}
	patterns := []string{
		fmt.Sprintf("rankings:%d:*", season),
		fmt.Sprintf("comparison:%d", season),
		fmt.Sprintf("accuracy:%d:*", season),
	}
	for _, pattern := range patterns {
		keys, err := s.client.Keys(ctx, pattern).Result()
		if err != nil {
			logrus.Warnf("Cache invalidation scan failed for %s: %v", pattern, err)
			continue
		}
		if err := s.Delete(ctx, keys...); err != nil {
			logrus.Warnf("Cache invalidation delete failed for %s: %v", pattern, err)
		}
	}
}
