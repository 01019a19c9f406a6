package service

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-achievement-api/internal/models"
	appErrors "github.com/noah-isme/sma-achievement-api/pkg/errors"
)

type dashboardRepoStub struct {
	counts     map[string][]models.StatusCount
	byActivity []models.ActivityCount
	records    []models.AchievementDetail
	listCalls  int
}

func (r *dashboardRepoStub) List(ctx context.Context, filter models.AchievementFilter) ([]models.AchievementDetail, int, error) {
	r.listCalls++
	var out []models.AchievementDetail
	for _, detail := range r.records {
		if filter.UserID != "" && detail.UserID != filter.UserID {
			continue
		}
		if filter.Status != nil && detail.Status != *filter.Status {
			continue
		}
		out = append(out, detail)
	}
	if filter.PageSize > 0 && len(out) > filter.PageSize {
		out = out[:filter.PageSize]
	}
	return out, len(out), nil
}

func (r *dashboardRepoStub) CountByStatus(ctx context.Context, userID string) ([]models.StatusCount, error) {
	return r.counts[userID], nil
}

func (r *dashboardRepoStub) CountByActivity(ctx context.Context) ([]models.ActivityCount, error) {
	return r.byActivity, nil
}

type memoryCacheRepo struct {
	entries map[string][]byte
}

func newMemoryCacheRepo() *memoryCacheRepo {
	return &memoryCacheRepo{entries: map[string][]byte{}}
}

func (m *memoryCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := m.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.entries[key] = raw
	return nil
}

func (m *memoryCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range m.entries {
		if strings.HasPrefix(key, prefix) {
			delete(m.entries, key)
		}
	}
	return nil
}

func newDashboardServiceForTest(t *testing.T, repo *dashboardRepoStub, cacheRepo CacheRepository) *DashboardService {
	t.Helper()
	var cache *CacheService
	if cacheRepo != nil {
		cache = NewCacheService(cacheRepo, nil, time.Minute, nil, true)
	}
	return NewDashboardService(repo, cache, nil, DashboardServiceConfig{})
}

func TestDashboardStudentBreakdown(t *testing.T) {
	repo := &dashboardRepoStub{
		counts: map[string][]models.StatusCount{
			"stu-1": {
				{Status: models.StatusPending, Count: 2},
				{Status: models.StatusApproved, Count: 5},
				{Status: models.StatusRejected, Count: 1},
			},
		},
		records: []models.AchievementDetail{
			{Achievement: models.Achievement{ID: "a1", UserID: "stu-1", Status: models.StatusApproved}},
			{Achievement: models.Achievement{ID: "a2", UserID: "stu-2", Status: models.StatusPending}},
		},
	}
	svc := newDashboardServiceForTest(t, repo, nil)

	summary, cached, err := svc.Student(context.Background(), &models.JWTClaims{UserID: "stu-1", Role: models.RoleStudent})
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, 8, summary.Breakdown.Total)
	assert.Equal(t, 2, summary.Breakdown.Pending)
	assert.Equal(t, 5, summary.Breakdown.Approved)
	assert.Equal(t, 1, summary.Breakdown.Rejected)
	require.Len(t, summary.Recent, 1)
	assert.Equal(t, "a1", summary.Recent[0].ID)
}

func TestDashboardStudentServedFromCache(t *testing.T) {
	repo := &dashboardRepoStub{
		counts: map[string][]models.StatusCount{
			"stu-1": {{Status: models.StatusApproved, Count: 1}},
		},
	}
	svc := newDashboardServiceForTest(t, repo, newMemoryCacheRepo())
	actor := &models.JWTClaims{UserID: "stu-1", Role: models.RoleStudent}

	_, cached, err := svc.Student(context.Background(), actor)
	require.NoError(t, err)
	assert.False(t, cached)
	firstCalls := repo.listCalls

	summary, cached, err := svc.Student(context.Background(), actor)
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, 1, summary.Breakdown.Total)
	assert.Equal(t, firstCalls, repo.listCalls)
}

func TestDashboardAdminSummary(t *testing.T) {
	repo := &dashboardRepoStub{
		counts: map[string][]models.StatusCount{
			"": {
				{Status: models.StatusPending, Count: 4},
				{Status: models.StatusApproved, Count: 6},
			},
		},
		byActivity: []models.ActivityCount{
			{ActivityID: "act-1", ActivityName: "Olympiad", Count: 7},
		},
		records: []models.AchievementDetail{
			{Achievement: models.Achievement{ID: "a1", UserID: "stu-1", Status: models.StatusPending}},
			{Achievement: models.Achievement{ID: "a2", UserID: "stu-2", Status: models.StatusApproved}},
		},
	}
	svc := newDashboardServiceForTest(t, repo, nil)

	summary, cached, err := svc.Admin(context.Background())
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, 10, summary.Breakdown.Total)
	require.Len(t, summary.ByActivity, 1)
	assert.Equal(t, "Olympiad", summary.ByActivity[0].ActivityName)
	require.Len(t, summary.PendingQueue, 1)
	assert.Equal(t, "a1", summary.PendingQueue[0].ID)
}

func TestDashboardCacheInvalidationByPattern(t *testing.T) {
	cacheRepo := newMemoryCacheRepo()
	repo := &dashboardRepoStub{
		counts: map[string][]models.StatusCount{
			"stu-1": {{Status: models.StatusApproved, Count: 1}},
		},
	}
	svc := newDashboardServiceForTest(t, repo, cacheRepo)
	actor := &models.JWTClaims{UserID: "stu-1", Role: models.RoleStudent}

	_, _, err := svc.Student(context.Background(), actor)
	require.NoError(t, err)
	require.NotEmpty(t, cacheRepo.entries)

	cache := NewCacheService(cacheRepo, nil, time.Minute, nil, true)
	require.NoError(t, cache.Invalidate(context.Background(), "dash:*"))
	assert.Empty(t, cacheRepo.entries)

	_, cached, err := svc.Student(context.Background(), actor)
	require.NoError(t, err)
	assert.False(t, cached)
}
