package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-achievement-api/internal/dto"
	"github.com/noah-isme/sma-achievement-api/internal/models"
	appErrors "github.com/noah-isme/sma-achievement-api/pkg/errors"
)

type dashboardRepository interface {
	List(ctx context.Context, filter models.AchievementFilter) ([]models.AchievementDetail, int, error)
	CountByStatus(ctx context.Context, userID string) ([]models.StatusCount, error)
	CountByActivity(ctx context.Context) ([]models.ActivityCount, error)
}

// DashboardServiceConfig tunes dashboard behaviour.
type DashboardServiceConfig struct {
	CacheTTL     time.Duration
	RecentLimit  int
	PendingLimit int
}

// DashboardService composes role-specific dashboard payloads.
type DashboardService struct {
	repo   dashboardRepository
	cache  *CacheService
	logger *zap.Logger
	cfg    DashboardServiceConfig
}

// NewDashboardService constructs a DashboardService with sane defaults.
func NewDashboardService(repo dashboardRepository, cache *CacheService, logger *zap.Logger, cfg DashboardServiceConfig) *DashboardService {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.RecentLimit <= 0 {
		cfg.RecentLimit = 5
	}
	if cfg.PendingLimit <= 0 {
		cfg.PendingLimit = 10
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{repo: repo, cache: cache, logger: logger, cfg: cfg}
}

// Student returns the caller's own summary and indicates cache utilisation.
func (s *DashboardService) Student(ctx context.Context, actor *models.JWTClaims) (*dto.StudentDashboardResponse, bool, error) {
	cacheKey := fmt.Sprintf("dash:student:%s", actor.UserID)
	if s.cache != nil {
		var cached dto.StudentDashboardResponse
		if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
			return &cached, true, nil
		}
	}

	counts, err := s.repo.CountByStatus(ctx, actor.UserID)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate achievements")
	}

	recent, _, err := s.repo.List(ctx, models.AchievementFilter{
		UserID:   actor.UserID,
		Page:     1,
		PageSize: s.cfg.RecentLimit,
	})
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load recent achievements")
	}

	summary := &dto.StudentDashboardResponse{
		Breakdown: breakdown(counts),
		Recent:    recent,
	}
	s.persistCache(ctx, cacheKey, summary)
	return summary, false, nil
}

// Admin returns the global summary and indicates cache utilisation.
func (s *DashboardService) Admin(ctx context.Context) (*dto.AdminDashboardResponse, bool, error) {
	const cacheKey = "dash:admin"
	if s.cache != nil {
		var cached dto.AdminDashboardResponse
		if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
			return &cached, true, nil
		}
	}

	counts, err := s.repo.CountByStatus(ctx, "")
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate achievements")
	}

	byActivity, err := s.repo.CountByActivity(ctx)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate activities")
	}

	pending := models.StatusPending
	queue, _, err := s.repo.List(ctx, models.AchievementFilter{
		Status:   &pending,
		Page:     1,
		PageSize: s.cfg.PendingLimit,
	})
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load pending queue")
	}

	summary := &dto.AdminDashboardResponse{
		Breakdown:    breakdown(counts),
		ByActivity:   byActivity,
		PendingQueue: queue,
	}
	s.persistCache(ctx, cacheKey, summary)
	return summary, false, nil
}

func (s *DashboardService) persistCache(ctx context.Context, key string, value interface{}) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, value, s.cfg.CacheTTL); err != nil {
		s.logger.Warn("failed to cache dashboard summary", zap.String("key", key), zap.Error(err))
	}
}

func breakdown(counts []models.StatusCount) dto.StatusBreakdown {
	var b dto.StatusBreakdown
	for _, c := range counts {
		b.Total += c.Count
		switch c.Status {
		case models.StatusPending:
			b.Pending = c.Count
		case models.StatusApproved:
			b.Approved = c.Count
		case models.StatusRejected:
			b.Rejected = c.Count
		}
	}
	return b
}
