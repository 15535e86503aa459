package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/academic-programs-api/internal/models"
)

// AuditRepository is the append-only ledger of state transitions.
type AuditRepository struct {
	db *sqlx.DB
}

// NewAuditRepository constructs the repository.
func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Record appends an audit entry.
func (r *AuditRepository) Record(ctx context.Context, log *models.AuditLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO audit_logs (id, entity_type, entity_id, action, actor_id, description, metadata, created_at)
VALUES (:id, :entity_type, :entity_id, :action, :actor_id, :description, :metadata, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, log); err != nil {
		return fmt.Errorf("record audit log: %w", err)
	}
	return nil
}

// ListByEntity returns the audit entries of an entity in insertion order.
func (r *AuditRepository) ListByEntity(ctx context.Context, entityType, entityID string) ([]models.AuditLog, error) {
	const query = `SELECT id, entity_type, entity_id, action, actor_id, description, metadata, created_at
FROM audit_logs WHERE entity_type = $1 AND entity_id = $2 ORDER BY created_at ASC, seq ASC`
	var logs []models.AuditLog
	if err := r.db.SelectContext(ctx, &logs, query, entityType, entityID); err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	return logs, nil
}
