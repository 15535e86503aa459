package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/academic-programs-api/internal/dto"
	"github.com/noah-isme/academic-programs-api/internal/models"
	"github.com/noah-isme/academic-programs-api/pkg/response"
)

type lifecycleService interface {
	Submit(ctx context.Context, id string, actor models.AuthContext) (*models.ProgramDefinition, error)
	Approve(ctx context.Context, id string, actor models.AuthContext) (*models.ProgramDefinition, error)
	Reject(ctx context.Context, id string, reason string, actor models.AuthContext) (*models.ProgramDefinition, error)
	Publish(ctx context.Context, id string, actor models.AuthContext) (*models.ProgramDefinition, error)
}

type versionService interface {
	CreateVersion(ctx context.Context, sourceID string, actor models.AuthContext) (*models.ProgramDefinition, error)
}

// ProgramHandler exposes the approval workflow shared by degrees and courses.
// One instance is mounted per definition kind.
type ProgramHandler struct {
	lifecycle lifecycleService
	versions  versionService
}

// NewProgramHandler builds a handler for one definition kind.
func NewProgramHandler(lifecycle lifecycleService, versions versionService) *ProgramHandler {
	return &ProgramHandler{lifecycle: lifecycle, versions: versions}
}

// Register mounts the workflow routes under group.
func (h *ProgramHandler) Register(group *gin.RouterGroup) {
	group.POST("/:id/submit", h.Submit)
	group.POST("/:id/approve", h.Approve)
	group.POST("/:id/reject", h.Reject)
	group.POST("/:id/publish", h.Publish)
	group.POST("/:id/versions", h.CreateVersion)
}

// Submit godoc
// @Summary Submit a draft for department approval
// @Tags Programs
// @Produce json
// @Param kind path string true "degrees or courses"
// @Param id path string true "Definition ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /{kind}/{id}/submit [post]
func (h *ProgramHandler) Submit(c *gin.Context) {
	h.transition(c, h.lifecycle.Submit)
}

// Approve godoc
// @Summary Approve a pending definition (head of department)
// @Tags Programs
// @Produce json
// @Param kind path string true "degrees or courses"
// @Param id path string true "Definition ID"
// @Success 200 {object} response.Envelope
// @Router /{kind}/{id}/approve [post]
func (h *ProgramHandler) Approve(c *gin.Context) {
	h.transition(c, h.lifecycle.Approve)
}

// Reject godoc
// @Summary Send a pending definition back to draft
// @Tags Programs
// @Accept json
// @Produce json
// @Param kind path string true "degrees or courses"
// @Param id path string true "Definition ID"
// @Param payload body dto.RejectRequest true "Rejection reason"
// @Success 200 {object} response.Envelope
// @Router /{kind}/{id}/reject [post]
func (h *ProgramHandler) Reject(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.RejectRequest
	if !bindJSON(c, &req, "invalid rejection payload") {
		return
	}
	def, err := h.lifecycle.Reject(c.Request.Context(), c.Param("id"), req.Reason, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, def, nil)
}

// Publish godoc
// @Summary Publish an approved definition, archiving the previous active version
// @Tags Programs
// @Produce json
// @Param kind path string true "degrees or courses"
// @Param id path string true "Definition ID"
// @Success 200 {object} response.Envelope
// @Router /{kind}/{id}/publish [post]
func (h *ProgramHandler) Publish(c *gin.Context) {
	h.transition(c, h.lifecycle.Publish)
}

// CreateVersion godoc
// @Summary Start a new draft version from an approved or active definition
// @Tags Programs
// @Produce json
// @Param kind path string true "degrees or courses"
// @Param id path string true "Source definition ID"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /{kind}/{id}/versions [post]
func (h *ProgramHandler) CreateVersion(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	def, err := h.versions.CreateVersion(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, def)
}

func (h *ProgramHandler) transition(c *gin.Context, fn func(context.Context, string, models.AuthContext) (*models.ProgramDefinition, error)) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	def, err := fn(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, def, nil)
}
