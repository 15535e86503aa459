package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/noah-isme/academic-programs-api/internal/models"
	appErrors "github.com/noah-isme/academic-programs-api/pkg/errors"
)

const maxMessageLength = 2000

type messageStore interface {
	Create(ctx context.Context, msg *models.EntityMessage) error
	ListByEntity(ctx context.Context, entityType, entityID string) ([]models.EntityMessage, error)
}

// MessageService manages the free-text notes attached to tracked entities.
type MessageService struct {
	repo   messageStore
	access entityAccessChecker
	logger *zap.Logger
}

// NewMessageService constructs a MessageService.
func NewMessageService(repo messageStore, access entityAccessChecker, logger *zap.Logger) *MessageService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MessageService{repo: repo, access: access, logger: logger}
}

// Post attaches a note authored by actor.
func (s *MessageService) Post(ctx context.Context, entityType, entityID, text string, actor models.AuthContext) (*models.EntityMessage, error) {
	if err := s.canView(ctx, entityType, entityID, actor); err != nil {
		return nil, err
	}
	text = strings.TrimSpace(text)
	if n := utf8.RuneCountInString(text); n == 0 || n > maxMessageLength {
		return nil, appErrors.WithDetails(appErrors.ErrValidation, "message text has invalid length", map[string]interface{}{
			"minLength": 1,
			"maxLength": maxMessageLength,
			"length":    n,
		})
	}

	msg := &models.EntityMessage{
		EntityType: entityType,
		EntityID:   entityID,
		SenderID:   actor.ActorID,
		Text:       text,
	}
	if err := s.repo.Create(ctx, msg); err != nil {
		return nil, appErrors.Internal(err, "failed to post message")
	}
	s.logger.Debug("message posted", zap.String("entity_type", entityType), zap.String("entity_id", entityID))
	return msg, nil
}

// List returns the notes of an entity in posting order.
func (s *MessageService) List(ctx context.Context, entityType, entityID string, actor models.AuthContext) ([]models.EntityMessage, error) {
	if err := s.canView(ctx, entityType, entityID, actor); err != nil {
		return nil, err
	}
	messages, err := s.repo.ListByEntity(ctx, entityType, entityID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list messages")
	}
	if messages == nil {
		messages = []models.EntityMessage{}
	}
	return messages, nil
}

func (s *MessageService) canView(ctx context.Context, entityType, entityID string, actor models.AuthContext) error {
	if s.access == nil {
		return requireActor(actor)
	}
	return s.access.CanView(ctx, entityType, entityID, actor)
}
