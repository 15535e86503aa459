package models

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// Audit actions recorded against program definitions and enrollment requests.
const (
	AuditActionCreate        = "CREATE"
	AuditActionUpdate        = "UPDATE"
	AuditActionSubmit        = "SUBMIT"
	AuditActionApprove       = "APPROVE"
	AuditActionReject        = "REJECT"
	AuditActionPublish       = "PUBLISH"
	AuditActionArchive       = "ARCHIVE"
	AuditActionCreateVersion = "CREATE_VERSION"
	AuditActionSaveDraft     = "SAVE_DRAFT"
)

// Entity types shared by the audit ledger, the message stream and the timeline.
const (
	EntityTypeDegree     = "degree"
	EntityTypeCourse     = "course"
	EntityTypeEnrollment = "enrollment_request"
)

// ValidEntityType reports whether t names a tracked entity type.
func ValidEntityType(t string) bool {
	switch t {
	case EntityTypeDegree, EntityTypeCourse, EntityTypeEnrollment:
		return true
	}
	return false
}

// AuditLog is an append-only ledger entry.
type AuditLog struct {
	ID          string       `db:"id" json:"id"`
	EntityType  string       `db:"entity_type" json:"entity_type"`
	EntityID    string       `db:"entity_id" json:"entity_id"`
	Action      string       `db:"action" json:"action"`
	ActorID     string       `db:"actor_id" json:"actor_id"`
	Description string       `db:"description" json:"description"`
	Metadata    JSONDocument `db:"metadata" json:"metadata,omitempty"`
	CreatedAt   time.Time    `db:"created_at" json:"created_at"`
}

// JSONDocument is a nullable JSONB column. An empty document is written as NULL.
type JSONDocument []byte

// Value implements driver.Valuer.
func (d JSONDocument) Value() (driver.Value, error) {
	if len(d) == 0 {
		return nil, nil
	}
	return []byte(d), nil
}

// Scan implements sql.Scanner.
func (d *JSONDocument) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*d = nil
	case []byte:
		*d = append(JSONDocument(nil), v...)
	case string:
		*d = JSONDocument(v)
	default:
		return fmt.Errorf("unsupported metadata type %T", src)
	}
	return nil
}

// MarshalJSON emits the stored document verbatim, or null when empty.
func (d JSONDocument) MarshalJSON() ([]byte, error) {
	if len(d) == 0 {
		return []byte("null"), nil
	}
	return d, nil
}
