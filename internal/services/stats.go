package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Ayash-Bera/coursebot/internal/database"
	"github.com/Ayash-Bera/coursebot/internal/models"
	"github.com/Ayash-Bera/coursebot/internal/repository"
)

const (
	statsRecentLimit   = 50
	statsTopQueries    = 10
	statsFeedbackLimit = 5
	popularQueriesTTL  = 5 * time.Minute
	fallbackWindow     = 24 * time.Hour
)

// StatsCache is the subset of *database.Cache used for usage stats.
type StatsCache interface {
	GetCachedPopularQueries(ctx context.Context) ([]models.PopularQuery, error)
	CachePopularQueries(ctx context.Context, queries []models.PopularQuery, expiration time.Duration) error
	GetCacheStats(ctx context.Context) (map[string]string, error)
}

// StatsService summarises recorded chat activity for operators.
type StatsService struct {
	repos  *repository.RepositoryManager
	cache  StatsCache
	logger *logrus.Logger
	now    func() time.Time
}

// NewStatsService returns a stats service. cache may be nil.
func NewStatsService(repos *repository.RepositoryManager, cache StatsCache, logger *logrus.Logger) *StatsService {
	return &StatsService{
		repos:  repos,
		cache:  cache,
		logger: logger,
		now:    time.Now,
	}
}

// Overview collects recent answer quality, feedback and popular questions.
// Cache statistics and service health are best effort.
func (s *StatsService) Overview(ctx context.Context) (*models.StatsResponse, error) {
	recent, err := s.repos.ChatLog.GetRecent(statsRecentLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent chats: %w", err)
	}

	stats := &models.StatsResponse{
		RecentChats: len(recent),
		Feedback:    make(map[string]int, len(models.FeedbackTypes)),
	}
	if len(recent) > 0 {
		total := 0
		for _, l := range recent {
			total += l.ResponseTimeMs
		}
		stats.AvgResponseTimeMs = total / len(recent)
	}

	stats.FallbacksLast24h, err = s.repos.ChatLog.CountFallbacks(s.now().Add(-fallbackWindow))
	if err != nil {
		return nil, fmt.Errorf("failed to count fallbacks: %w", err)
	}

	for _, t := range models.FeedbackTypes {
		items, err := s.repos.UserFeedback.GetByType(t)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s feedback: %w", t, err)
		}
		stats.Feedback[t] = len(items)
	}

	latest, err := s.repos.UserFeedback.GetRecentFeedback(statsFeedbackLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent feedback: %w", err)
	}
	for _, f := range latest {
		if f.FeedbackText != "" {
			stats.RecentComments = append(stats.RecentComments, f.FeedbackText)
		}
	}

	stats.TopQueries, err = s.topQueries(ctx)
	if err != nil {
		return nil, err
	}

	if unhealthy, err := s.repos.SystemHealth.GetUnhealthyServices(); err != nil {
		s.logger.WithError(err).Warn("Failed to load unhealthy services")
	} else {
		for _, h := range unhealthy {
			stats.UnhealthyServices = append(stats.UnhealthyServices, h.ServiceName)
		}
	}

	if s.cache != nil {
		if cacheStats, err := s.cache.GetCacheStats(ctx); err != nil {
			s.logger.WithError(err).Warn("Failed to read cache stats")
		} else {
			stats.Cache = cacheStats
		}
	}

	return stats, nil
}

func (s *StatsService) topQueries(ctx context.Context) ([]models.PopularQuery, error) {
	if s.cache != nil {
		cached, err := s.cache.GetCachedPopularQueries(ctx)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, database.ErrCacheMiss) {
			s.logger.WithError(err).Warn("Popular queries cache read failed")
		}
	}

	top, err := s.repos.PopularQuery.GetTop(statsTopQueries)
	if err != nil {
		return nil, fmt.Errorf("failed to load popular queries: %w", err)
	}

	if s.cache != nil && len(top) > 0 {
		if err := s.cache.CachePopularQueries(ctx, top, popularQueriesTTL); err != nil {
			s.logger.WithError(err).Warn("Failed to cache popular queries")
		}
	}
	return top, nil
}
