package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/academic-programs-api/internal/dto"
	"github.com/noah-isme/academic-programs-api/internal/models"
	appErrors "github.com/noah-isme/academic-programs-api/pkg/errors"
	"github.com/noah-isme/academic-programs-api/pkg/response"
)

type enrollmentService interface {
	SaveDraft(ctx context.Context, req dto.SaveEnrollmentDraftRequest, actor models.AuthContext) (*models.EnrollmentRequest, error)
	Submit(ctx context.Context, id string, actor models.AuthContext) (*models.EnrollmentRequest, error)
	HODDecision(ctx context.Context, req dto.HODDecisionRequest, actor models.AuthContext) (*dto.HODDecisionResult, error)
	Get(ctx context.Context, id string, actor models.AuthContext) (*models.EnrollmentReviewItem, error)
	List(ctx context.Context, query dto.EnrollmentListQuery, actor models.AuthContext) ([]models.EnrollmentReviewItem, *models.Pagination, error)
}

// EnrollmentHandler exposes the semester enrollment workflow.
type EnrollmentHandler struct {
	enrollments enrollmentService
}

// NewEnrollmentHandler constructs EnrollmentHandler.
func NewEnrollmentHandler(enrollments enrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{enrollments: enrollments}
}

// SaveDraft godoc
// @Summary Create or update the caller's enrollment draft
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param payload body dto.SaveEnrollmentDraftRequest true "Course selection"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /enrollments/drafts [post]
func (h *EnrollmentHandler) SaveDraft(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.SaveEnrollmentDraftRequest
	if !bindJSON(c, &req, "invalid enrollment payload") {
		return
	}
	enrollment, err := h.enrollments.SaveDraft(c.Request.Context(), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollment, nil)
}

// Submit godoc
// @Summary Submit a draft for head of department approval
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment request ID"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /enrollments/{id}/submit [post]
func (h *EnrollmentHandler) Submit(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	enrollment, err := h.enrollments.Submit(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollment, nil)
}

// Decide godoc
// @Summary Approve or reject a batch of pending requests
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param payload body dto.HODDecisionRequest true "Decision"
// @Success 200 {object} response.Envelope
// @Router /enrollments/decisions [post]
func (h *EnrollmentHandler) Decide(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.HODDecisionRequest
	if !bindJSON(c, &req, "invalid decision payload") {
		return
	}
	result, err := h.enrollments.HODDecision(c.Request.Context(), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Get godoc
// @Summary Get an enrollment request
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment request ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id} [get]
func (h *EnrollmentHandler) Get(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	item, err := h.enrollments.Get(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// List godoc
// @Summary List enrollment requests visible to the caller
// @Tags Enrollments
// @Produce json
// @Param academicYear query string false "Academic year, e.g. 2024-2025"
// @Param semester query int false "Semester"
// @Param status query string false "Status"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /enrollments [get]
func (h *EnrollmentHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var query dto.EnrollmentListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	items, pagination, err := h.enrollments.List(c.Request.Context(), query, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}
