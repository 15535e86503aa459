package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/academic-programs-api/internal/dto"
	"github.com/noah-isme/academic-programs-api/internal/models"
	"github.com/noah-isme/academic-programs-api/pkg/response"
)

type messageService interface {
	Post(ctx context.Context, entityType, entityID, text string, actor models.AuthContext) (*models.EntityMessage, error)
	List(ctx context.Context, entityType, entityID string, actor models.AuthContext) ([]models.EntityMessage, error)
}

// MessageHandler exposes notes attached to tracked entities.
type MessageHandler struct {
	messages messageService
}

// NewMessageHandler constructs MessageHandler.
func NewMessageHandler(messages messageService) *MessageHandler {
	return &MessageHandler{messages: messages}
}

// Post godoc
// @Summary Attach a message to an entity
// @Tags Messages
// @Accept json
// @Produce json
// @Param entityType path string true "degree, course or enrollment_request"
// @Param entityId path string true "Entity ID"
// @Param payload body dto.PostMessageRequest true "Message"
// @Success 201 {object} response.Envelope
// @Router /messages/{entityType}/{entityId} [post]
func (h *MessageHandler) Post(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.PostMessageRequest
	if !bindJSON(c, &req, "invalid message payload") {
		return
	}
	msg, err := h.messages.Post(c.Request.Context(), c.Param("entityType"), c.Param("entityId"), req.Text, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, msg)
}

// List godoc
// @Summary List messages of an entity
// @Tags Messages
// @Produce json
// @Param entityType path string true "degree, course or enrollment_request"
// @Param entityId path string true "Entity ID"
// @Success 200 {object} response.Envelope
// @Router /messages/{entityType}/{entityId} [get]
func (h *MessageHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	messages, err := h.messages.List(c.Request.Context(), c.Param("entityType"), c.Param("entityId"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, messages, nil)
}
