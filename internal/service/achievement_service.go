package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-achievement-api/internal/models"
	appErrors "github.com/noah-isme/sma-achievement-api/pkg/errors"
)

type achievementRepository interface {
	FindByID(ctx context.Context, id string) (*models.AchievementDetail, error)
	List(ctx context.Context, filter models.AchievementFilter) ([]models.AchievementDetail, int, error)
	Create(ctx context.Context, achievement *models.Achievement) error
	Update(ctx context.Context, achievement *models.Achievement) error
	Delete(ctx context.Context, id string) error
}

type activityLookup interface {
	FindByID(ctx context.Context, id string) (*models.Activity, error)
}

type evidenceStorage interface {
	SaveStream(originalName string, r io.Reader) (string, error)
	Open(ref string) (*os.File, error)
	Delete(ref string) error
}

type cacheInvalidator interface {
	Invalidate(ctx context.Context, pattern string) error
}

// EvidenceUpload carries an uploaded proof file into the service layer.
type EvidenceUpload struct {
	Filename string
	Size     int64
	Content  io.Reader
}

// SubmitAchievementRequest holds the payload for submitting an achievement.
type SubmitAchievementRequest struct {
	ActivityID  string    `json:"activity_id" validate:"required"`
	Title       string    `json:"title" validate:"required"`
	Description string    `json:"description" validate:"required"`
	Date        time.Time `json:"date" validate:"required"`
}

// UpdateAchievementContentRequest holds the partial payload for owner edits.
// Nil fields retain their stored value; evidence is replaced only when a new
// file accompanies the request.
type UpdateAchievementContentRequest struct {
	ActivityID  *string    `json:"activity_id,omitempty"`
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	Date        *time.Time `json:"date,omitempty"`
}

// UpdateAchievementStatusRequest holds the partial payload for admin review.
// Nil fields retain their stored value; a present empty AdminNotes clears
// the notes.
type UpdateAchievementStatusRequest struct {
	Status     *models.AchievementStatus `json:"status,omitempty"`
	AdminNotes *string                   `json:"admin_notes,omitempty"`
}

// AchievementService handles the achievement ledger use-cases.
type AchievementService struct {
	repo       achievementRepository
	activities activityLookup
	evidence   evidenceStorage
	cache      cacheInvalidator
	audit      auditWriter
	validator  *validator.Validate
	logger     *zap.Logger
}

// AchievementServiceParams groups constructor dependencies.
type AchievementServiceParams struct {
	Repo       achievementRepository
	Activities activityLookup
	Evidence   evidenceStorage
	Cache      cacheInvalidator
	Audit      auditWriter
	Validator  *validator.Validate
	Logger     *zap.Logger
}

// NewAchievementService constructs the achievement service.
func NewAchievementService(params AchievementServiceParams) *AchievementService {
	validate := params.Validator
	if validate == nil {
		validate = validator.New()
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AchievementService{
		repo:       params.Repo,
		activities: params.Activities,
		evidence:   params.Evidence,
		cache:      params.Cache,
		audit:      params.Audit,
		validator:  validate,
		logger:     logger,
	}
}

// Submit creates a new achievement owned by the actor. The status is always
// Pending regardless of anything the client sent.
func (s *AchievementService) Submit(ctx context.Context, req SubmitAchievementRequest, proof *EvidenceUpload, actor *models.JWTClaims) (*models.AchievementDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid achievement payload")
	}

	if _, err := s.activities.FindByID(ctx, req.ActivityID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "activity not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load activity")
	}

	achievement := &models.Achievement{
		UserID:      actor.UserID,
		ActivityID:  req.ActivityID,
		Title:       req.Title,
		Description: req.Description,
		Date:        req.Date,
		Status:      models.StatusPending,
	}

	if proof != nil {
		ref, err := s.evidence.SaveStream(proof.Filename, proof.Content)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store evidence")
		}
		achievement.Proof = &ref
	}

	if err := s.repo.Create(ctx, achievement); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create achievement")
	}

	s.invalidateDashboards(ctx)
	s.recordAudit(ctx, actor, models.AuditActionSubmit, achievement.ID, map[string]interface{}{"status": achievement.Status})

	return s.repo.FindByID(ctx, achievement.ID)
}

// ListMine returns the actor's own achievements.
func (s *AchievementService) ListMine(ctx context.Context, actor *models.JWTClaims, filter models.AchievementFilter) ([]models.AchievementDetail, *models.Pagination, error) {
	filter.UserID = actor.UserID
	return s.list(ctx, filter)
}

// ListAll returns every achievement. Route-level RBAC restricts this to
// admin actors.
func (s *AchievementService) ListAll(ctx context.Context, filter models.AchievementFilter) ([]models.AchievementDetail, *models.Pagination, error) {
	return s.list(ctx, filter)
}

func (s *AchievementService) list(ctx context.Context, filter models.AchievementFilter) ([]models.AchievementDetail, *models.Pagination, error) {
	details, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list achievements")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return details, pagination, nil
}

// Get returns a single achievement by id. Any authenticated actor may fetch
// any record; there is deliberately no ownership filter on this read.
func (s *AchievementService) Get(ctx context.Context, id string) (*models.AchievementDetail, error) {
	detail, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "achievement not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load achievement")
	}
	return detail, nil
}

// UpdateContent applies the present fields onto an achievement the actor
// owns. Ownership is the only gate: admins editing records they do not own
// are rejected like anyone else.
func (s *AchievementService) UpdateContent(ctx context.Context, id string, req UpdateAchievementContentRequest, proof *EvidenceUpload, actor *models.JWTClaims) (*models.AchievementDetail, error) {
	detail, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "achievement not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load achievement")
	}

	if detail.UserID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not authorized to update this achievement")
	}

	achievement := detail.Achievement

	if req.ActivityID != nil && *req.ActivityID != achievement.ActivityID {
		if _, err := s.activities.FindByID(ctx, *req.ActivityID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "activity not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load activity")
		}
		achievement.ActivityID = *req.ActivityID
	}
	if req.Title != nil {
		achievement.Title = *req.Title
	}
	if req.Description != nil {
		achievement.Description = *req.Description
	}
	if req.Date != nil {
		achievement.Date = *req.Date
	}

	if proof != nil {
		ref, err := s.evidence.SaveStream(proof.Filename, proof.Content)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store evidence")
		}
		if achievement.Proof != nil {
			if err := s.evidence.Delete(*achievement.Proof); err != nil {
				s.logger.Warn("failed to remove replaced evidence", zap.Error(err))
			}
		}
		achievement.Proof = &ref
	}

	if err := s.repo.Update(ctx, &achievement); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update achievement")
	}

	s.invalidateDashboards(ctx)
	s.recordAudit(ctx, actor, models.AuditActionContentUpdate, achievement.ID, nil)

	return s.repo.FindByID(ctx, achievement.ID)
}

// UpdateStatus sets the review state and/or admin notes. Any of the three
// states may be set from any current state; route-level RBAC restricts the
// operation to admin actors. A present empty AdminNotes clears the notes.
func (s *AchievementService) UpdateStatus(ctx context.Context, id string, req UpdateAchievementStatusRequest, actor *models.JWTClaims) (*models.AchievementDetail, error) {
	if req.Status != nil && !req.Status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown status value")
	}

	detail, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "achievement not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load achievement")
	}

	achievement := detail.Achievement
	if req.Status != nil {
		achievement.Status = *req.Status
	}
	if req.AdminNotes != nil {
		if *req.AdminNotes == "" {
			achievement.AdminNotes = nil
		} else {
			notes := *req.AdminNotes
			achievement.AdminNotes = &notes
		}
	}

	if err := s.repo.Update(ctx, &achievement); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update achievement status")
	}

	s.invalidateDashboards(ctx)
	s.recordAudit(ctx, actor, models.AuditActionStatusUpdate, achievement.ID, map[string]interface{}{"status": achievement.Status})

	return s.repo.FindByID(ctx, achievement.ID)
}

// Delete removes an achievement. Admins may delete any record; everyone
// else only their own. The stored evidence file is removed best-effort.
func (s *AchievementService) Delete(ctx context.Context, id string, actor *models.JWTClaims) error {
	detail, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "achievement not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load achievement")
	}

	if actor.Role != models.RoleAdmin && detail.UserID != actor.UserID {
		return appErrors.Clone(appErrors.ErrForbidden, "not authorized to delete this achievement")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "achievement not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete achievement")
	}

	if detail.Proof != nil {
		if err := s.evidence.Delete(*detail.Proof); err != nil {
			s.logger.Warn("failed to remove evidence for deleted achievement", zap.Error(err))
		}
	}

	s.invalidateDashboards(ctx)
	s.recordAudit(ctx, actor, models.AuditActionDelete, id, nil)

	return nil
}

// OpenEvidence returns a read handle on the proof file of an achievement
// together with its public reference. Callers must close the file.
func (s *AchievementService) OpenEvidence(ctx context.Context, id string) (*os.File, string, error) {
	detail, err := s.Get(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if detail.Proof == nil {
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "achievement has no evidence")
	}
	file, err := s.evidence.Open(*detail.Proof)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "evidence file missing")
	}
	return file, *detail.Proof, nil
}

func (s *AchievementService) invalidateDashboards(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, "dash:*"); err != nil {
		s.logger.Warn("failed to invalidate dashboard cache", zap.Error(err))
	}
}

func (s *AchievementService) recordAudit(ctx context.Context, actor *models.JWTClaims, action, resourceID string, values map[string]interface{}) {
	if s.audit == nil || actor == nil {
		return
	}
	var payload []byte
	if values != nil {
		payload, _ = json.Marshal(values)
	}
	if err := s.audit.Create(ctx, &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     action,
		Resource:   "achievements",
		ResourceID: &resourceID,
		NewValues:  payload,
	}); err != nil {
		s.logger.Warn("failed to record achievement audit log", zap.Error(err))
	}
}
