package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-achievement-api/internal/models"
	appErrors "github.com/noah-isme/sma-achievement-api/pkg/errors"
	"github.com/noah-isme/sma-achievement-api/pkg/export"
)

const exportPageSize = 100

// RecapFile is a rendered ledger recap ready to be sent to the client.
type RecapFile struct {
	Filename    string
	ContentType string
	Content     []byte
}

// ExportService renders the full achievement ledger as a downloadable recap.
type ExportService struct {
	repo   dashboardRepository
	logger *zap.Logger
	now    func() time.Time
}

// NewExportService constructs the export service.
func NewExportService(repo dashboardRepository, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{repo: repo, logger: logger, now: time.Now}
}

// Recap renders every achievement into the requested format ("csv" or "pdf").
func (s *ExportService) Recap(ctx context.Context, format string) (*RecapFile, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = "csv"
	}
	if format != "csv" && format != "pdf" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}

	dataset, err := s.collect(ctx)
	if err != nil {
		return nil, err
	}

	stamp := s.now().UTC().Format("2006-01-02")
	switch format {
	case "pdf":
		content, err := export.PDF(dataset, "Achievement Recap "+stamp)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return &RecapFile{
			Filename:    fmt.Sprintf("achievement-recap-%s.pdf", stamp),
			ContentType: "application/pdf",
			Content:     content,
		}, nil
	default:
		content, err := export.CSV(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return &RecapFile{
			Filename:    fmt.Sprintf("achievement-recap-%s.csv", stamp),
			ContentType: "text/csv",
			Content:     content,
		}, nil
	}
}

func (s *ExportService) collect(ctx context.Context) (export.Dataset, error) {
	dataset := export.Dataset{
		Headers: []string{"Student", "Student ID", "Activity", "Title", "Date", "Status", "Admin Notes"},
	}

	for page := 1; ; page++ {
		details, total, err := s.repo.List(ctx, models.AchievementFilter{Page: page, PageSize: exportPageSize})
		if err != nil {
			return export.Dataset{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list achievements")
		}
		for _, d := range details {
			row := map[string]string{
				"Student":  d.User.Name,
				"Activity": d.Activity.Name,
				"Title":    d.Title,
				"Date":     d.Date.Format("2006-01-02"),
				"Status":   string(d.Status),
			}
			if d.User.StudentID != nil {
				row["Student ID"] = *d.User.StudentID
			}
			if d.AdminNotes != nil {
				row["Admin Notes"] = *d.AdminNotes
			}
			dataset.Rows = append(dataset.Rows, row)
		}
		if len(dataset.Rows) >= total || len(details) == 0 {
			break
		}
	}

	return dataset, nil
}
