package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/academic-programs-api/internal/models"
	appErrors "github.com/noah-isme/academic-programs-api/pkg/errors"
)

const (
	minRejectionReason = 10
	maxRejectionReason = 500
)

type programStore interface {
	Kind() models.ProgramKind
	Transaction(ctx context.Context, fn func(q sqlx.ExtContext) error) error
	FindDefinition(ctx context.Context, q sqlx.ExtContext, id string) (*models.ProgramDefinition, error)
	LockDefinition(ctx context.Context, q sqlx.ExtContext, id string) (*models.ProgramDefinition, error)
	FindLatestByCode(ctx context.Context, q sqlx.ExtContext, code string) (*models.ProgramDefinition, error)
	ListFamily(ctx context.Context, q sqlx.ExtContext, rootID string, forUpdate bool) ([]models.ProgramDefinition, error)
	UpdateLifecycle(ctx context.Context, q sqlx.ExtContext, def *models.ProgramDefinition, from models.ProgramStatus) error
	ArchiveActiveSiblings(ctx context.Context, q sqlx.ExtContext, rootID, keepID string, now time.Time) (int64, error)
	ClearLatestFlags(ctx context.Context, q sqlx.ExtContext, rootID string, now time.Time) error
	InsertVersion(ctx context.Context, q sqlx.ExtContext, sourceID string, def *models.ProgramDefinition) error
}

// programTransition describes one edge of the approval state machine.
type programTransition struct {
	action    string
	auditVerb string
	event     string
	from      models.ProgramStatus
	allowed   func(models.AuthContext, *models.ProgramDefinition) bool
	apply     func(def *models.ProgramDefinition, actor models.AuthContext, now time.Time)
	// beforeWrite runs inside the transaction after guards pass and before the row is written.
	beforeWrite func(ctx context.Context, q sqlx.ExtContext, def *models.ProgramDefinition, now time.Time) error
}

// ProgramLifecycleService drives degree and course definitions through
// draft, pending_approval, approved and active.
type ProgramLifecycleService struct {
	repo     programStore
	audit    auditRecorder
	notifier Notifier
	metrics  *MetricsService
	logger   *zap.Logger
	now      func() time.Time
}

// NewProgramLifecycleService constructs the lifecycle service for the kind bound to repo.
func NewProgramLifecycleService(repo programStore, audit auditRecorder, notifier Notifier, metrics *MetricsService, logger *zap.Logger) *ProgramLifecycleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProgramLifecycleService{
		repo:     repo,
		audit:    audit,
		notifier: notifier,
		metrics:  metrics,
		logger:   logger.With(zap.String("kind", string(repo.Kind()))),
		now:      utcNow,
	}
}

// Submit sends a draft for department approval.
func (s *ProgramLifecycleService) Submit(ctx context.Context, id string, actor models.AuthContext) (*models.ProgramDefinition, error) {
	return s.transition(ctx, id, actor, programTransition{
		action:    "submit",
		auditVerb: models.AuditActionSubmit,
		event:     models.NotificationProgramSubmitted,
		from:      models.ProgramStatusDraft,
		allowed:   canEditDefinition,
		apply: func(def *models.ProgramDefinition, _ models.AuthContext, now time.Time) {
			def.Status = models.ProgramStatusPendingApproval
			def.SubmittedAt = &now
			def.RejectionReason = nil
		},
	})
}

// Approve records the head of department's approval.
func (s *ProgramLifecycleService) Approve(ctx context.Context, id string, actor models.AuthContext) (*models.ProgramDefinition, error) {
	return s.transition(ctx, id, actor, programTransition{
		action:    "approve",
		auditVerb: models.AuditActionApprove,
		event:     models.NotificationProgramApproved,
		from:      models.ProgramStatusPendingApproval,
		allowed:   canReviewDefinition,
		apply: func(def *models.ProgramDefinition, actor models.AuthContext, now time.Time) {
			approver := actor.ActorID
			def.Status = models.ProgramStatusApproved
			def.ApprovedBy = &approver
			def.ApprovedAt = &now
		},
	})
}

// Reject returns a pending definition to draft with the reviewer's reason.
func (s *ProgramLifecycleService) Reject(ctx context.Context, id string, reason string, actor models.AuthContext) (*models.ProgramDefinition, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if n := utf8.RuneCountInString(reason); n < minRejectionReason || n > maxRejectionReason {
		return nil, appErrors.WithDetails(appErrors.ErrValidation, "rejection reason has invalid length", map[string]interface{}{
			"minLength": minRejectionReason,
			"maxLength": maxRejectionReason,
			"length":    n,
		})
	}
	return s.transition(ctx, id, actor, programTransition{
		action:    "reject",
		auditVerb: models.AuditActionReject,
		event:     models.NotificationProgramRejected,
		from:      models.ProgramStatusPendingApproval,
		allowed:   canReviewDefinition,
		apply: func(def *models.ProgramDefinition, _ models.AuthContext, _ time.Time) {
			def.Status = models.ProgramStatusDraft
			def.RejectionReason = &reason
			def.SubmittedAt = nil
			def.ApprovedBy = nil
			def.ApprovedAt = nil
		},
	})
}

// Publish activates an approved definition and archives the previously active version.
func (s *ProgramLifecycleService) Publish(ctx context.Context, id string, actor models.AuthContext) (*models.ProgramDefinition, error) {
	return s.transition(ctx, id, actor, programTransition{
		action:    "publish",
		auditVerb: models.AuditActionPublish,
		event:     models.NotificationProgramPublished,
		from:      models.ProgramStatusApproved,
		allowed:   canPublishDefinition,
		apply: func(def *models.ProgramDefinition, _ models.AuthContext, now time.Time) {
			def.Status = models.ProgramStatusActive
			def.PublishedAt = &now
		},
		beforeWrite: func(ctx context.Context, q sqlx.ExtContext, def *models.ProgramDefinition, now time.Time) error {
			archived, err := s.repo.ArchiveActiveSiblings(ctx, q, def.RootID(), def.ID, now)
			if err != nil {
				return appErrors.Internal(err, "failed to archive previous version")
			}
			if archived > 0 {
				s.logger.Info("archived previous active version", zap.String("family_root_id", def.RootID()), zap.Int64("archived", archived))
			}
			return nil
		},
	})
}

func (s *ProgramLifecycleService) transition(ctx context.Context, id string, actor models.AuthContext, t programTransition) (*models.ProgramDefinition, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	kind := s.repo.Kind()
	var updated *models.ProgramDefinition

	err := s.repo.Transaction(ctx, func(q sqlx.ExtContext) error {
		def, err := s.repo.LockDefinition(ctx, q, id)
		if err != nil {
			if isNoRows(err) {
				return notFound(string(kind))
			}
			return appErrors.Internal(err, fmt.Sprintf("failed to load %s", kind))
		}
		if !t.allowed(actor, def) {
			return appErrors.Clone(appErrors.ErrForbidden, fmt.Sprintf("not allowed to %s this %s", t.action, kind))
		}
		if def.Status != t.from {
			return invalidTransition(def.Status, t.from)
		}

		now := s.now()
		if t.beforeWrite != nil {
			if err := t.beforeWrite(ctx, q, def, now); err != nil {
				return err
			}
		}
		t.apply(def, actor, now)
		def.UpdatedAt = now

		if err := s.repo.UpdateLifecycle(ctx, q, def, t.from); err != nil {
			switch {
			case isNoRows(err):
				return invalidTransition("changed concurrently", t.from)
			case isUniqueViolation(err):
				return appErrors.WithDetails(appErrors.ErrConflict, fmt.Sprintf("another %s version is already active", kind), map[string]interface{}{
					"familyRootId": def.RootID(),
				})
			}
			return appErrors.Internal(err, fmt.Sprintf("failed to %s %s", t.action, kind))
		}
		updated = def
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterTransition(ctx, updated, actor, t)
	return updated, nil
}

func (s *ProgramLifecycleService) afterTransition(ctx context.Context, def *models.ProgramDefinition, actor models.AuthContext, t programTransition) {
	kind := s.repo.Kind()
	description := fmt.Sprintf("%s %s v%d moved to %s", kind, def.Code, def.Version, def.Status)
	if t.action == "reject" && def.RejectionReason != nil {
		description = fmt.Sprintf("%s %s v%d rejected: %s", kind, def.Code, def.Version, *def.RejectionReason)
	}
	recordAudit(ctx, s.audit, s.logger, &models.AuditLog{
		EntityType:  string(kind),
		EntityID:    def.ID,
		Action:      t.auditVerb,
		ActorID:     actor.ActorID,
		Description: description,
	})
	notify(ctx, s.notifier, t.event, map[string]interface{}{
		"kind":           kind,
		"id":             def.ID,
		"code":           def.Code,
		"version":        def.Version,
		"status":         def.Status,
		"departmentCode": def.DepartmentCode,
		"actorId":        actor.ActorID,
	})
	s.metrics.RecordProgramTransition(kind, t.action)
}
