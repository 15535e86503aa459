package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/academic-programs-api/internal/models"
	"github.com/noah-isme/academic-programs-api/internal/service"
	appErrors "github.com/noah-isme/academic-programs-api/pkg/errors"
	"github.com/noah-isme/academic-programs-api/pkg/export"
	"github.com/noah-isme/academic-programs-api/pkg/response"
)

type timelineService interface {
	Build(ctx context.Context, entityType, entityID string, actor models.AuthContext) ([]models.TimelineEvent, error)
	Export(ctx context.Context, entityType, entityID string, format export.Format, actor models.AuthContext) (*service.TimelineExport, error)
}

// TimelineHandler serves the merged audit and message history of an entity.
type TimelineHandler struct {
	timeline timelineService
}

// NewTimelineHandler constructs TimelineHandler.
func NewTimelineHandler(timeline timelineService) *TimelineHandler {
	return &TimelineHandler{timeline: timeline}
}

// Get godoc
// @Summary Chronological history of a degree, course or enrollment request
// @Tags Timeline
// @Produce json
// @Param entityType path string true "degree, course or enrollment_request"
// @Param entityId path string true "Entity ID"
// @Success 200 {object} response.Envelope
// @Router /timeline/{entityType}/{entityId} [get]
func (h *TimelineHandler) Get(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	events, err := h.timeline.Build(c.Request.Context(), c.Param("entityType"), c.Param("entityId"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, events, nil)
}

// Export godoc
// @Summary Download the timeline as CSV or PDF
// @Tags Timeline
// @Produce text/csv,application/pdf
// @Param entityType path string true "degree, course or enrollment_request"
// @Param entityId path string true "Entity ID"
// @Param format query string false "csv (default) or pdf"
// @Success 200 {file} file
// @Router /timeline/{entityType}/{entityId}/export [get]
func (h *TimelineHandler) Export(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	format, err := export.ParseFormat(c.Query("format"))
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "format must be csv or pdf"))
		return
	}
	file, err := h.timeline.Export(c.Request.Context(), c.Param("entityType"), c.Param("entityId"), format, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.ContentType, file.Filename, file.Data)
}
