package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/academic-programs-api/internal/models"
)

// MessageRepository stores free-text notes attached to tracked entities.
type MessageRepository struct {
	db *sqlx.DB
}

// NewMessageRepository constructs the repository.
func NewMessageRepository(db *sqlx.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Create inserts a message.
func (r *MessageRepository) Create(ctx context.Context, msg *models.EntityMessage) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO entity_messages (id, entity_type, entity_id, sender_id, text, created_at)
VALUES (:id, :entity_type, :entity_id, :sender_id, :text, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, msg); err != nil {
		return fmt.Errorf("create entity message: %w", err)
	}
	return nil
}

// ListByEntity returns the messages of an entity in insertion order.
func (r *MessageRepository) ListByEntity(ctx context.Context, entityType, entityID string) ([]models.EntityMessage, error) {
	const query = `SELECT id, entity_type, entity_id, sender_id, text, created_at
FROM entity_messages WHERE entity_type = $1 AND entity_id = $2 ORDER BY created_at ASC, seq ASC`
	var messages []models.EntityMessage
	if err := r.db.SelectContext(ctx, &messages, query, entityType, entityID); err != nil {
		return nil, fmt.Errorf("list entity messages: %w", err)
	}
	return messages, nil
}
