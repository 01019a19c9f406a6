package service

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-achievement-api/internal/models"
	appErrors "github.com/noah-isme/sma-achievement-api/pkg/errors"
)

func newExportServiceForTest(t *testing.T, records []models.AchievementDetail) *ExportService {
	t.Helper()
	svc := NewExportService(&dashboardRepoStub{records: records}, nil)
	svc.now = func() time.Time {
		return time.Date(2026, 4, 15, 10, 0, 0, 0, time.UTC)
	}
	return svc
}

func exportFixture() []models.AchievementDetail {
	studentID := "S-1001"
	notes := "verified by committee"
	return []models.AchievementDetail{
		{
			Achievement: models.Achievement{
				ID:         "a1",
				UserID:     "stu-1",
				Title:      "Regional chess win",
				Date:       time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
				Status:     models.StatusApproved,
				AdminNotes: &notes,
			},
			User:     models.UserSummary{ID: "stu-1", Name: "Siti", StudentID: &studentID},
			Activity: models.ActivitySummary{ID: "act-1", Name: "Chess"},
		},
		{
			Achievement: models.Achievement{
				ID:     "a2",
				UserID: "stu-2",
				Title:  "Science fair entry",
				Date:   time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC),
				Status: models.StatusPending,
			},
			User:     models.UserSummary{ID: "stu-2", Name: "Budi"},
			Activity: models.ActivitySummary{ID: "act-2", Name: "Science Fair"},
		},
	}
}

func TestExportRecapCSV(t *testing.T) {
	svc := newExportServiceForTest(t, exportFixture())

	recap, err := svc.Recap(context.Background(), "csv")
	require.NoError(t, err)
	assert.Equal(t, "achievement-recap-2026-04-15.csv", recap.Filename)
	assert.Equal(t, "text/csv", recap.ContentType)

	content := recap.Content
	assert.True(t, bytes.Contains(content, []byte("Student,Student ID,Activity,Title,Date,Status,Admin Notes")))
	assert.True(t, bytes.Contains(content, []byte("Siti,S-1001,Chess,Regional chess win,2026-03-01,Approved,verified by committee")))
	assert.True(t, bytes.Contains(content, []byte("Budi,,Science Fair,Science fair entry,2026-03-05,Pending,")))
}

func TestExportRecapDefaultsToCSV(t *testing.T) {
	svc := newExportServiceForTest(t, nil)

	recap, err := svc.Recap(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", recap.ContentType)
}

func TestExportRecapPDF(t *testing.T) {
	svc := newExportServiceForTest(t, exportFixture())

	recap, err := svc.Recap(context.Background(), "pdf")
	require.NoError(t, err)
	assert.Equal(t, "achievement-recap-2026-04-15.pdf", recap.Filename)
	assert.Equal(t, "application/pdf", recap.ContentType)
	assert.True(t, bytes.HasPrefix(recap.Content, []byte("%PDF")))
}

func TestExportRecapUnknownFormat(t *testing.T) {
	svc := newExportServiceForTest(t, nil)

	_, err := svc.Recap(context.Background(), "xlsx")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
