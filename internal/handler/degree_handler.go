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

type degreeService interface {
	Create(ctx context.Context, req dto.CreateDegreeRequest, actor models.AuthContext) (*models.Degree, error)
	UpdateDraft(ctx context.Context, id string, req dto.UpdateDegreeRequest, actor models.AuthContext) (*models.Degree, error)
	Get(ctx context.Context, id string, actor models.AuthContext) (*models.Degree, error)
	List(ctx context.Context, query dto.ProgramListQuery, actor models.AuthContext) ([]models.Degree, *models.Pagination, error)
	Versions(ctx context.Context, id string, actor models.AuthContext) ([]models.Degree, error)
}

// DegreeHandler exposes degree catalog endpoints.
type DegreeHandler struct {
	service degreeService
}

// NewDegreeHandler builds a new handler.
func NewDegreeHandler(service degreeService) *DegreeHandler {
	return &DegreeHandler{service: service}
}

// Create godoc
// @Summary Create version 1 of a degree
// @Tags Degrees
// @Accept json
// @Produce json
// @Param payload body dto.CreateDegreeRequest true "Degree payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /degrees [post]
func (h *DegreeHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.CreateDegreeRequest
	if !bindJSON(c, &req, "invalid degree payload") {
		return
	}
	degree, err := h.service.Create(c.Request.Context(), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, degree)
}

// Update godoc
// @Summary Replace the payload of a degree draft
// @Tags Degrees
// @Accept json
// @Produce json
// @Param id path string true "Degree ID"
// @Param payload body dto.UpdateDegreeRequest true "Degree payload"
// @Success 200 {object} response.Envelope
// @Router /degrees/{id} [put]
func (h *DegreeHandler) Update(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.UpdateDegreeRequest
	if !bindJSON(c, &req, "invalid degree payload") {
		return
	}
	degree, err := h.service.UpdateDraft(c.Request.Context(), c.Param("id"), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, degree, nil)
}

// Get godoc
// @Summary Get a degree version
// @Tags Degrees
// @Produce json
// @Param id path string true "Degree ID"
// @Success 200 {object} response.Envelope
// @Router /degrees/{id} [get]
func (h *DegreeHandler) Get(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	degree, err := h.service.Get(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, degree, nil)
}

// List godoc
// @Summary List degrees
// @Tags Degrees
// @Produce json
// @Param code query string false "Family code"
// @Param departmentCode query string false "Department"
// @Param status query string false "Comma separated statuses"
// @Param latestOnly query bool false "Only the latest version of each family"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /degrees [get]
func (h *DegreeHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var query dto.ProgramListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	degrees, pagination, err := h.service.List(c.Request.Context(), query, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, degrees, pagination)
}

// Versions godoc
// @Summary List every version of the degree's family
// @Tags Degrees
// @Produce json
// @Param id path string true "Any degree ID of the family"
// @Success 200 {object} response.Envelope
// @Router /degrees/{id}/versions [get]
func (h *DegreeHandler) Versions(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	degrees, err := h.service.Versions(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, degrees, nil)
}
