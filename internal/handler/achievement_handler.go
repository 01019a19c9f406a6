package handler

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-achievement-api/internal/models"
	"github.com/noah-isme/sma-achievement-api/internal/service"
	appErrors "github.com/noah-isme/sma-achievement-api/pkg/errors"
	"github.com/noah-isme/sma-achievement-api/pkg/response"
)

const dateLayout = "2006-01-02"

// AchievementHandler exposes the achievement ledger endpoints.
type AchievementHandler struct {
	achievements *service.AchievementService
	exports      *service.ExportService
	maxFileSize  int64
}

// NewAchievementHandler constructs AchievementHandler.
func NewAchievementHandler(achievements *service.AchievementService, exports *service.ExportService, maxFileSize int64) *AchievementHandler {
	return &AchievementHandler{achievements: achievements, exports: exports, maxFileSize: maxFileSize}
}

// Submit godoc
// @Summary Submit a new achievement
// @Tags Achievements
// @Accept multipart/form-data
// @Produce json
// @Param activity formData string true "Activity ID"
// @Param title formData string true "Title"
// @Param description formData string true "Description"
// @Param date formData string true "Achievement date (YYYY-MM-DD)"
// @Param proof formData file false "Evidence file"
// @Success 201 {object} response.Envelope
// @Router /achievements [post]
func (h *AchievementHandler) Submit(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	date, err := time.Parse(dateLayout, c.PostForm("date"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "date must be formatted YYYY-MM-DD"))
		return
	}

	req := service.SubmitAchievementRequest{
		ActivityID:  c.PostForm("activity"),
		Title:       c.PostForm("title"),
		Description: c.PostForm("description"),
		Date:        date,
	}

	proof, err := h.evidenceFromForm(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	detail, err := h.achievements.Submit(c.Request.Context(), req, proof, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, detail)
}

// ListMine godoc
// @Summary List the caller's achievements
// @Tags Achievements
// @Produce json
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /achievements/my [get]
func (h *AchievementHandler) ListMine(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	details, pagination, err := h.achievements.ListMine(c.Request.Context(), claims, filterFromQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, details, pagination)
}

// ListAll godoc
// @Summary List every achievement
// @Tags Achievements
// @Produce json
// @Param status query string false "Filter by status"
// @Param activityId query string false "Filter by activity"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /achievements [get]
func (h *AchievementHandler) ListAll(c *gin.Context) {
	details, pagination, err := h.achievements.ListAll(c.Request.Context(), filterFromQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, details, pagination)
}

// Get godoc
// @Summary Get achievement detail
// @Tags Achievements
// @Produce json
// @Param id path string true "Achievement ID"
// @Success 200 {object} response.Envelope
// @Router /achievements/{id} [get]
func (h *AchievementHandler) Get(c *gin.Context) {
	detail, err := h.achievements.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// UpdateContent godoc
// @Summary Update an owned achievement's content
// @Tags Achievements
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Achievement ID"
// @Param activity formData string false "Activity ID"
// @Param title formData string false "Title"
// @Param description formData string false "Description"
// @Param date formData string false "Achievement date (YYYY-MM-DD)"
// @Param proof formData file false "Replacement evidence file"
// @Success 200 {object} response.Envelope
// @Router /achievements/{id} [put]
func (h *AchievementHandler) UpdateContent(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.UpdateAchievementContentRequest
	if v, ok := c.GetPostForm("activity"); ok {
		req.ActivityID = &v
	}
	if v, ok := c.GetPostForm("title"); ok {
		req.Title = &v
	}
	if v, ok := c.GetPostForm("description"); ok {
		req.Description = &v
	}
	if v, ok := c.GetPostForm("date"); ok {
		date, err := time.Parse(dateLayout, v)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "date must be formatted YYYY-MM-DD"))
			return
		}
		req.Date = &date
	}

	proof, err := h.evidenceFromForm(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	detail, err := h.achievements.UpdateContent(c.Request.Context(), c.Param("id"), req, proof, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// UpdateStatus godoc
// @Summary Review an achievement
// @Tags Achievements
// @Accept json
// @Produce json
// @Param id path string true "Achievement ID"
// @Param payload body service.UpdateAchievementStatusRequest true "Review payload"
// @Success 200 {object} response.Envelope
// @Router /achievements/{id}/status [put]
func (h *AchievementHandler) UpdateStatus(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.UpdateAchievementStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	detail, err := h.achievements.UpdateStatus(c.Request.Context(), c.Param("id"), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Delete godoc
// @Summary Delete an achievement
// @Tags Achievements
// @Produce json
// @Param id path string true "Achievement ID"
// @Success 200 {object} response.Envelope
// @Router /achievements/{id} [delete]
func (h *AchievementHandler) Delete(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.achievements.Delete(c.Request.Context(), c.Param("id"), claims); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"message": "achievement removed"}, nil)
}

// Evidence godoc
// @Summary Stream the evidence file for an achievement
// @Tags Achievements
// @Produce octet-stream
// @Param id path string true "Achievement ID"
// @Success 200 {file} binary
// @Router /achievements/{id}/evidence [get]
func (h *AchievementHandler) Evidence(c *gin.Context) {
	file, ref, err := h.achievements.OpenEvidence(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close() //nolint:errcheck

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(ref)))
	c.Header("Content-Type", "application/octet-stream")
	if _, err := io.Copy(c.Writer, file); err != nil {
		c.Abort()
	}
}

// Export godoc
// @Summary Export the full ledger as CSV or PDF
// @Tags Achievements
// @Produce octet-stream
// @Param format query string false "csv or pdf"
// @Success 200 {file} binary
// @Router /achievements/export [get]
func (h *AchievementHandler) Export(c *gin.Context) {
	recap, err := h.exports.Recap(c.Request.Context(), c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", recap.Filename))
	c.Data(http.StatusOK, recap.ContentType, recap.Content)
}

// evidenceFromForm extracts the optional proof upload. A missing file is not
// an error; an oversized one is.
func (h *AchievementHandler) evidenceFromForm(c *gin.Context) (*service.EvidenceUpload, error) {
	fileHeader, err := c.FormFile("proof")
	if err != nil {
		if err == http.ErrMissingFile || err == http.ErrNotMultipart {
			return nil, nil
		}
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid proof upload")
	}
	if h.maxFileSize > 0 && fileHeader.Size > h.maxFileSize {
		return nil, appErrors.Clone(appErrors.ErrValidation, "proof file exceeds the size limit")
	}

	src, err := fileHeader.Open()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open proof upload")
	}

	return &service.EvidenceUpload{
		Filename: fileHeader.Filename,
		Size:     fileHeader.Size,
		Content:  bufferUpload(src),
	}, nil
}

func bufferUpload(src multipart.File) io.Reader {
	defer src.Close() //nolint:errcheck
	buf, err := io.ReadAll(src)
	if err != nil {
		return bytes.NewReader(nil)
	}
	return bytes.NewReader(buf)
}

func filterFromQuery(c *gin.Context) models.AchievementFilter {
	var filter models.AchievementFilter
	filter.ActivityID = c.Query("activityId")
	if raw := c.Query("status"); raw != "" {
		status := models.AchievementStatus(raw)
		if status.Valid() {
			filter.Status = &status
		}
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	return filter
}
