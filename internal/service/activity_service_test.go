package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-achievement-api/internal/models"
	appErrors "github.com/noah-isme/sma-achievement-api/pkg/errors"
)

type activityRepoStub struct {
	activities map[string]*models.Activity
	references map[string]int
}

func newActivityRepoStub() *activityRepoStub {
	return &activityRepoStub{
		activities: map[string]*models.Activity{},
		references: map[string]int{},
	}
}

func (r *activityRepoStub) List(ctx context.Context) ([]models.Activity, error) {
	var out []models.Activity
	for _, activity := range r.activities {
		out = append(out, *activity)
	}
	return out, nil
}

func (r *activityRepoStub) FindByID(ctx context.Context, id string) (*models.Activity, error) {
	activity, ok := r.activities[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *activity
	return &copied, nil
}

func (r *activityRepoStub) ExistsByName(ctx context.Context, name string, excludeID string) (bool, error) {
	for id, activity := range r.activities {
		if activity.Name == name && id != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (r *activityRepoStub) Create(ctx context.Context, activity *models.Activity) error {
	if activity.ID == "" {
		activity.ID = uuid.NewString()
	}
	r.activities[activity.ID] = activity
	return nil
}

func (r *activityRepoStub) Update(ctx context.Context, activity *models.Activity) error {
	if _, ok := r.activities[activity.ID]; !ok {
		return sql.ErrNoRows
	}
	r.activities[activity.ID] = activity
	return nil
}

func (r *activityRepoStub) Delete(ctx context.Context, id string) error {
	if _, ok := r.activities[id]; !ok {
		return sql.ErrNoRows
	}
	delete(r.activities, id)
	return nil
}

func (r *activityRepoStub) CountReferences(ctx context.Context, id string) (int, error) {
	return r.references[id], nil
}

func newActivityServiceForTest(t *testing.T) (*ActivityService, *activityRepoStub) {
	t.Helper()
	repo := newActivityRepoStub()
	return NewActivityService(repo, nil, nil), repo
}

func TestActivityCreate(t *testing.T) {
	svc, repo := newActivityServiceForTest(t)

	activity, err := svc.Create(context.Background(), CreateActivityRequest{
		Name:     "Science Olympiad",
		Category: "Academic",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, activity.ID)
	assert.Len(t, repo.activities, 1)
}

func TestActivityCreateDuplicateName(t *testing.T) {
	svc, repo := newActivityServiceForTest(t)
	repo.activities["act-1"] = &models.Activity{ID: "act-1", Name: "Science Olympiad", Category: "Academic"}

	_, err := svc.Create(context.Background(), CreateActivityRequest{
		Name:     "Science Olympiad",
		Category: "Academic",
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrDuplicateName.Code, appErr.Code)
	assert.Equal(t, 400, appErr.Status)
}

func TestActivityCreateMissingCategory(t *testing.T) {
	svc, _ := newActivityServiceForTest(t)

	_, err := svc.Create(context.Background(), CreateActivityRequest{Name: "Chess Club"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestActivityUpdatePartial(t *testing.T) {
	svc, repo := newActivityServiceForTest(t)
	repo.activities["act-1"] = &models.Activity{ID: "act-1", Name: "Chess", Category: "Sport", Description: "weekly"}

	category := "Academic"
	activity, err := svc.Update(context.Background(), "act-1", UpdateActivityRequest{Category: &category})
	require.NoError(t, err)
	assert.Equal(t, "Chess", activity.Name)
	assert.Equal(t, "Academic", activity.Category)
	assert.Equal(t, "weekly", activity.Description)
}

func TestActivityUpdateRenameToTakenName(t *testing.T) {
	svc, repo := newActivityServiceForTest(t)
	repo.activities["act-1"] = &models.Activity{ID: "act-1", Name: "Chess", Category: "Sport"}
	repo.activities["act-2"] = &models.Activity{ID: "act-2", Name: "Debate", Category: "Academic"}

	name := "Debate"
	_, err := svc.Update(context.Background(), "act-1", UpdateActivityRequest{Name: &name})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrDuplicateName.Code, appErrors.FromError(err).Code)
}

func TestActivityUpdateKeepOwnName(t *testing.T) {
	svc, repo := newActivityServiceForTest(t)
	repo.activities["act-1"] = &models.Activity{ID: "act-1", Name: "Chess", Category: "Sport"}

	// Re-sending the current name must not trip the uniqueness check.
	name := "Chess"
	desc := "updated"
	activity, err := svc.Update(context.Background(), "act-1", UpdateActivityRequest{Name: &name, Description: &desc})
	require.NoError(t, err)
	assert.Equal(t, "updated", activity.Description)
}

func TestActivityDeleteBlockedWhileReferenced(t *testing.T) {
	svc, repo := newActivityServiceForTest(t)
	repo.activities["act-1"] = &models.Activity{ID: "act-1", Name: "Chess", Category: "Sport"}
	repo.references["act-1"] = 3

	err := svc.Delete(context.Background(), "act-1")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
	assert.Equal(t, 409, appErr.Status)
	assert.Len(t, repo.activities, 1)
}

func TestActivityDeleteUnreferenced(t *testing.T) {
	svc, repo := newActivityServiceForTest(t)
	repo.activities["act-1"] = &models.Activity{ID: "act-1", Name: "Chess", Category: "Sport"}

	err := svc.Delete(context.Background(), "act-1")
	require.NoError(t, err)
	assert.Empty(t, repo.activities)
}

func TestActivityDeleteMissing(t *testing.T) {
	svc, _ := newActivityServiceForTest(t)

	err := svc.Delete(context.Background(), "nope")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestActivityGet(t *testing.T) {
	svc, repo := newActivityServiceForTest(t)
	repo.activities["act-1"] = &models.Activity{ID: "act-1", Name: "Chess", Category: "Sport"}

	activity, err := svc.Get(context.Background(), "act-1")
	require.NoError(t, err)
	assert.Equal(t, "Chess", activity.Name)

	_, err = svc.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
