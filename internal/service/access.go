package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/academic-programs-api/internal/models"
	"github.com/noah-isme/academic-programs-api/internal/repository"
	appErrors "github.com/noah-isme/academic-programs-api/pkg/errors"
)

type auditRecorder interface {
	Record(ctx context.Context, log *models.AuditLog) error
}

// Notifier delivers best-effort notifications about completed transitions.
type Notifier interface {
	Notify(ctx context.Context, event string, payload map[string]interface{})
}

func utcNow() time.Time {
	return time.Now().UTC()
}

func requireActor(actor models.AuthContext) error {
	if !actor.Valid() {
		return appErrors.Clone(appErrors.ErrUnauthorized, "authenticated actor required")
	}
	return nil
}

// canEditDefinition covers the creator, listed collaborators and admins.
func canEditDefinition(actor models.AuthContext, def *models.ProgramDefinition) bool {
	if actor.IsAdmin() {
		return true
	}
	return def.CreatedBy == actor.ActorID || def.HasCollaborator(actor.ActorID)
}

// canReviewDefinition is limited to the head of the owning department.
func canReviewDefinition(actor models.AuthContext, def *models.ProgramDefinition) bool {
	return actor.HeadOf(def.DepartmentCode)
}

// canPublishDefinition extends edit rights to members of the owning department.
func canPublishDefinition(actor models.AuthContext, def *models.ProgramDefinition) bool {
	return canEditDefinition(actor, def) || actor.InDepartment(def.DepartmentCode)
}

func invalidTransition(current interface{}, expected interface{}) error {
	return appErrors.WithDetails(appErrors.ErrInvalidTransition, "status does not allow this transition", map[string]interface{}{
		"currentStatus":  current,
		"expectedStatus": expected,
	})
}

func notFound(what string) error {
	return appErrors.Clone(appErrors.ErrNotFound, what+" not found")
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func isUniqueViolation(err error) bool {
	return errors.Is(err, repository.ErrUniqueViolation)
}

func normalizeIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// recordAudit appends a ledger entry; failures are logged and swallowed.
func recordAudit(ctx context.Context, audit auditRecorder, logger *zap.Logger, log *models.AuditLog) {
	if audit == nil {
		return
	}
	if err := audit.Record(ctx, log); err != nil {
		logger.Warn("failed to record audit log",
			zap.String("entity_type", log.EntityType),
			zap.String("entity_id", log.EntityID),
			zap.String("action", log.Action),
			zap.Error(err),
		)
	}
}

func notify(ctx context.Context, notifier Notifier, event string, payload map[string]interface{}) {
	if notifier == nil {
		return
	}
	notifier.Notify(ctx, event, payload)
}

type enrollmentFinder interface {
	FindByID(ctx context.Context, id string) (*models.EnrollmentReviewItem, error)
}

// EntityAccess decides who may read the history of a tracked entity.
type EntityAccess struct {
	enrollments enrollmentFinder
}

// NewEntityAccess constructs the access policy.
func NewEntityAccess(enrollments enrollmentFinder) *EntityAccess {
	return &EntityAccess{enrollments: enrollments}
}

// CanView returns nil when actor may read the entity's timeline and messages.
// Program definitions are visible to every authenticated actor; enrollment
// requests only to their student, the department head and admins.
func (a *EntityAccess) CanView(ctx context.Context, entityType, entityID string, actor models.AuthContext) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	if !models.ValidEntityType(entityType) {
		return appErrors.WithDetails(appErrors.ErrValidation, "unknown entity type", map[string]interface{}{
			"entityType": entityType,
			"allowed":    []string{models.EntityTypeDegree, models.EntityTypeCourse, models.EntityTypeEnrollment},
		})
	}
	if strings.TrimSpace(entityID) == "" {
		return appErrors.Clone(appErrors.ErrValidation, "entity id is required")
	}
	if entityType != models.EntityTypeEnrollment || actor.IsAdmin() || a == nil || a.enrollments == nil {
		return nil
	}
	item, err := a.enrollments.FindByID(ctx, entityID)
	if err != nil {
		if isNoRows(err) {
			return notFound("enrollment request")
		}
		return appErrors.Internal(err, "failed to load enrollment request")
	}
	if item.StudentID == actor.ActorID || actor.HeadOf(item.DepartmentCode) {
		return nil
	}
	return appErrors.ErrForbidden
}
