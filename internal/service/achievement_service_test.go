package service

import (
	"context"
	"database/sql"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-achievement-api/internal/models"
	appErrors "github.com/noah-isme/sma-achievement-api/pkg/errors"
)

type achievementRepoStub struct {
	records map[string]*models.AchievementDetail
}

func newAchievementRepoStub() *achievementRepoStub {
	return &achievementRepoStub{records: map[string]*models.AchievementDetail{}}
}

func (r *achievementRepoStub) FindByID(ctx context.Context, id string) (*models.AchievementDetail, error) {
	detail, ok := r.records[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *detail
	return &copied, nil
}

func (r *achievementRepoStub) List(ctx context.Context, filter models.AchievementFilter) ([]models.AchievementDetail, int, error) {
	var out []models.AchievementDetail
	for _, detail := range r.records {
		if filter.UserID != "" && detail.UserID != filter.UserID {
			continue
		}
		if filter.Status != nil && detail.Status != *filter.Status {
			continue
		}
		out = append(out, *detail)
	}
	return out, len(out), nil
}

func (r *achievementRepoStub) Create(ctx context.Context, achievement *models.Achievement) error {
	if achievement.ID == "" {
		achievement.ID = uuid.NewString()
	}
	r.records[achievement.ID] = &models.AchievementDetail{Achievement: *achievement}
	return nil
}

func (r *achievementRepoStub) Update(ctx context.Context, achievement *models.Achievement) error {
	existing, ok := r.records[achievement.ID]
	if !ok {
		return sql.ErrNoRows
	}
	existing.Achievement = *achievement
	return nil
}

func (r *achievementRepoStub) Delete(ctx context.Context, id string) error {
	if _, ok := r.records[id]; !ok {
		return sql.ErrNoRows
	}
	delete(r.records, id)
	return nil
}

type activityLookupStub struct {
	known map[string]bool
}

func (a *activityLookupStub) FindByID(ctx context.Context, id string) (*models.Activity, error) {
	if !a.known[id] {
		return nil, sql.ErrNoRows
	}
	return &models.Activity{ID: id, Name: "Olympiad", Category: "Academic"}, nil
}

type evidenceStub struct {
	saved   []string
	deleted []string
}

func (e *evidenceStub) SaveStream(originalName string, r io.Reader) (string, error) {
	_, _ = io.Copy(io.Discard, r)
	ref := "/uploads/" + originalName
	e.saved = append(e.saved, ref)
	return ref, nil
}

func (e *evidenceStub) Open(ref string) (*os.File, error) {
	return nil, os.ErrNotExist
}

func (e *evidenceStub) Delete(ref string) error {
	e.deleted = append(e.deleted, ref)
	return nil
}

type invalidatorStub struct {
	patterns []string
}

func (i *invalidatorStub) Invalidate(ctx context.Context, pattern string) error {
	i.patterns = append(i.patterns, pattern)
	return nil
}

func newAchievementServiceForTest(t *testing.T) (*AchievementService, *achievementRepoStub, *evidenceStub, *invalidatorStub) {
	t.Helper()
	repo := newAchievementRepoStub()
	evidence := &evidenceStub{}
	invalidator := &invalidatorStub{}
	svc := NewAchievementService(AchievementServiceParams{
		Repo:       repo,
		Activities: &activityLookupStub{known: map[string]bool{"act-1": true, "act-2": true}},
		Evidence:   evidence,
		Cache:      invalidator,
		Audit:      &auditStub{},
	})
	return svc, repo, evidence, invalidator
}

func studentClaims(id string) *models.JWTClaims {
	return &models.JWTClaims{UserID: id, Role: models.RoleStudent}
}

func adminClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin}
}

func seedAchievement(repo *achievementRepoStub, id, userID string, status models.AchievementStatus) {
	repo.records[id] = &models.AchievementDetail{
		Achievement: models.Achievement{
			ID:         id,
			UserID:     userID,
			ActivityID: "act-1",
			Title:      "Regional win",
			Status:     status,
		},
	}
}

func TestAchievementSubmitForcesPending(t *testing.T) {
	svc, repo, _, invalidator := newAchievementServiceForTest(t)

	detail, err := svc.Submit(context.Background(), SubmitAchievementRequest{
		ActivityID:  "act-1",
		Title:       "Science fair",
		Description: "First place",
		Date:        time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}, nil, studentClaims("stu-1"))
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, detail.Status)
	assert.Equal(t, "stu-1", detail.UserID)
	assert.Len(t, repo.records, 1)
	assert.Contains(t, invalidator.patterns, "dash:*")
}

func TestAchievementSubmitStoresEvidence(t *testing.T) {
	svc, _, evidence, _ := newAchievementServiceForTest(t)

	detail, err := svc.Submit(context.Background(), SubmitAchievementRequest{
		ActivityID:  "act-1",
		Title:       "Science fair",
		Description: "First place",
		Date:        time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}, &EvidenceUpload{
		Filename: "certificate.pdf",
		Size:     4,
		Content:  strings.NewReader("data"),
	}, studentClaims("stu-1"))
	require.NoError(t, err)
	require.NotNil(t, detail.Proof)
	assert.Equal(t, "/uploads/certificate.pdf", *detail.Proof)
	assert.Len(t, evidence.saved, 1)
}

func TestAchievementSubmitUnknownActivity(t *testing.T) {
	svc, _, _, _ := newAchievementServiceForTest(t)

	_, err := svc.Submit(context.Background(), SubmitAchievementRequest{
		ActivityID:  "act-missing",
		Title:       "Science fair",
		Description: "First place",
		Date:        time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}, nil, studentClaims("stu-1"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestAchievementListMineScopedToActor(t *testing.T) {
	svc, repo, _, _ := newAchievementServiceForTest(t)
	seedAchievement(repo, "a1", "stu-1", models.StatusPending)
	seedAchievement(repo, "a2", "stu-2", models.StatusApproved)

	details, pagination, err := svc.ListMine(context.Background(), studentClaims("stu-1"), models.AchievementFilter{})
	require.NoError(t, err)
	require.Len(t, details, 1)
	assert.Equal(t, "a1", details[0].ID)
	assert.Equal(t, 1, pagination.TotalCount)
}

func TestAchievementUpdateContentForbiddenForNonOwner(t *testing.T) {
	svc, repo, _, _ := newAchievementServiceForTest(t)
	seedAchievement(repo, "a1", "stu-1", models.StatusPending)

	title := "Edited"
	_, err := svc.UpdateContent(context.Background(), "a1", UpdateAchievementContentRequest{Title: &title}, nil, studentClaims("stu-2"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestAchievementUpdateContentForbiddenEvenForAdmin(t *testing.T) {
	svc, repo, _, _ := newAchievementServiceForTest(t)
	seedAchievement(repo, "a1", "stu-1", models.StatusPending)

	title := "Edited"
	_, err := svc.UpdateContent(context.Background(), "a1", UpdateAchievementContentRequest{Title: &title}, nil, adminClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestAchievementUpdateContentPartial(t *testing.T) {
	svc, repo, _, _ := newAchievementServiceForTest(t)
	seedAchievement(repo, "a1", "stu-1", models.StatusPending)
	repo.records["a1"].Description = "original"

	title := "New title"
	detail, err := svc.UpdateContent(context.Background(), "a1", UpdateAchievementContentRequest{Title: &title}, nil, studentClaims("stu-1"))
	require.NoError(t, err)
	assert.Equal(t, "New title", detail.Title)
	assert.Equal(t, "original", detail.Description)
}

func TestAchievementUpdateContentReplacesEvidence(t *testing.T) {
	svc, repo, evidence, _ := newAchievementServiceForTest(t)
	seedAchievement(repo, "a1", "stu-1", models.StatusPending)
	old := "/uploads/old.pdf"
	repo.records["a1"].Proof = &old

	detail, err := svc.UpdateContent(context.Background(), "a1", UpdateAchievementContentRequest{}, &EvidenceUpload{
		Filename: "new.pdf",
		Content:  strings.NewReader("data"),
	}, studentClaims("stu-1"))
	require.NoError(t, err)
	require.NotNil(t, detail.Proof)
	assert.Equal(t, "/uploads/new.pdf", *detail.Proof)
	assert.Contains(t, evidence.deleted, "/uploads/old.pdf")
}

func TestAchievementUpdateStatusAnyTransition(t *testing.T) {
	svc, repo, _, _ := newAchievementServiceForTest(t)
	seedAchievement(repo, "a1", "stu-1", models.StatusApproved)

	// Already-reviewed records can be moved to any state, including back to
	// Pending.
	status := models.StatusPending
	detail, err := svc.UpdateStatus(context.Background(), "a1", UpdateAchievementStatusRequest{Status: &status}, adminClaims())
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, detail.Status)
}

func TestAchievementUpdateStatusWithNotes(t *testing.T) {
	svc, repo, _, _ := newAchievementServiceForTest(t)
	seedAchievement(repo, "a1", "stu-1", models.StatusPending)

	status := models.StatusRejected
	notes := "Evidence is unreadable"
	detail, err := svc.UpdateStatus(context.Background(), "a1", UpdateAchievementStatusRequest{Status: &status, AdminNotes: &notes}, adminClaims())
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, detail.Status)
	require.NotNil(t, detail.AdminNotes)
	assert.Equal(t, "Evidence is unreadable", *detail.AdminNotes)
}

func TestAchievementUpdateStatusEmptyNotesClears(t *testing.T) {
	svc, repo, _, _ := newAchievementServiceForTest(t)
	seedAchievement(repo, "a1", "stu-1", models.StatusRejected)
	notes := "old notes"
	repo.records["a1"].AdminNotes = &notes

	empty := ""
	detail, err := svc.UpdateStatus(context.Background(), "a1", UpdateAchievementStatusRequest{AdminNotes: &empty}, adminClaims())
	require.NoError(t, err)
	assert.Nil(t, detail.AdminNotes)
	// Omitting the status leaves it untouched.
	assert.Equal(t, models.StatusRejected, detail.Status)
}

func TestAchievementUpdateStatusRejectsUnknownValue(t *testing.T) {
	svc, repo, _, _ := newAchievementServiceForTest(t)
	seedAchievement(repo, "a1", "stu-1", models.StatusPending)

	bogus := models.AchievementStatus("Archived")
	_, err := svc.UpdateStatus(context.Background(), "a1", UpdateAchievementStatusRequest{Status: &bogus}, adminClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAchievementDeleteByOwner(t *testing.T) {
	svc, repo, _, _ := newAchievementServiceForTest(t)
	seedAchievement(repo, "a1", "stu-1", models.StatusApproved)

	// Owners may delete regardless of review state.
	err := svc.Delete(context.Background(), "a1", studentClaims("stu-1"))
	require.NoError(t, err)
	assert.Empty(t, repo.records)
}

func TestAchievementDeleteByAdminOfForeignRecord(t *testing.T) {
	svc, repo, evidence, _ := newAchievementServiceForTest(t)
	seedAchievement(repo, "a1", "stu-1", models.StatusPending)
	proof := "/uploads/cert.pdf"
	repo.records["a1"].Proof = &proof

	err := svc.Delete(context.Background(), "a1", adminClaims())
	require.NoError(t, err)
	assert.Contains(t, evidence.deleted, "/uploads/cert.pdf")
}

func TestAchievementDeleteForbiddenForOtherStudent(t *testing.T) {
	svc, repo, _, _ := newAchievementServiceForTest(t)
	seedAchievement(repo, "a1", "stu-1", models.StatusPending)

	err := svc.Delete(context.Background(), "a1", studentClaims("stu-2"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestAchievementDeleteMissing(t *testing.T) {
	svc, _, _, _ := newAchievementServiceForTest(t)

	err := svc.Delete(context.Background(), "nope", adminClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestAchievementGetHasNoOwnershipGate(t *testing.T) {
	svc, repo, _, _ := newAchievementServiceForTest(t)
	seedAchievement(repo, "a1", "stu-1", models.StatusPending)

	detail, err := svc.Get(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, "a1", detail.ID)
}
