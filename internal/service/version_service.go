package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/academic-programs-api/internal/models"
	appErrors "github.com/noah-isme/academic-programs-api/pkg/errors"
)

// VersionService derives new draft versions inside a definition family.
type VersionService struct {
	repo     programStore
	audit    auditRecorder
	notifier Notifier
	metrics  *MetricsService
	logger   *zap.Logger
	now      func() time.Time
}

// NewVersionService constructs the version service for the kind bound to repo.
func NewVersionService(repo programStore, audit auditRecorder, notifier Notifier, metrics *MetricsService, logger *zap.Logger) *VersionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VersionService{
		repo:     repo,
		audit:    audit,
		notifier: notifier,
		metrics:  metrics,
		logger:   logger.With(zap.String("kind", string(repo.Kind()))),
		now:      utcNow,
	}
}

// CreateVersion copies an approved or active definition into a new draft that
// becomes the latest version of its family.
func (s *VersionService) CreateVersion(ctx context.Context, sourceID string, actor models.AuthContext) (*models.ProgramDefinition, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	kind := s.repo.Kind()
	var created *models.ProgramDefinition
	var source *models.ProgramDefinition

	err := s.repo.Transaction(ctx, func(q sqlx.ExtContext) error {
		src, err := s.repo.LockDefinition(ctx, q, sourceID)
		if err != nil {
			if isNoRows(err) {
				return notFound(string(kind))
			}
			return appErrors.Internal(err, fmt.Sprintf("failed to load %s", kind))
		}
		if !canPublishDefinition(actor, src) {
			return appErrors.Clone(appErrors.ErrForbidden, fmt.Sprintf("not allowed to version this %s", kind))
		}
		if !src.Status.Versionable() {
			return appErrors.WithDetails(appErrors.ErrInvalidState, "new versions can only be created from approved or active versions", map[string]interface{}{
				"status":  src.Status,
				"allowed": []models.ProgramStatus{models.ProgramStatusApproved, models.ProgramStatusActive},
			})
		}

		rootID := src.RootID()
		family, err := s.repo.ListFamily(ctx, q, rootID, true)
		if err != nil {
			return appErrors.Internal(err, fmt.Sprintf("failed to load %s versions", kind))
		}
		if blocker := inFlightSibling(family, src.ID); blocker != nil {
			return appErrors.WithDetails(appErrors.ErrConflict, "another version of this family is still in progress", map[string]interface{}{
				"id":      blocker.ID,
				"version": blocker.Version,
				"status":  blocker.Status,
			})
		}

		now := s.now()
		draft := src.NewVersionDraft(actor.ActorID, nextVersion(family, src.Version), now)
		if err := s.repo.ClearLatestFlags(ctx, q, rootID, now); err != nil {
			return appErrors.Internal(err, "failed to update latest version flags")
		}
		if err := s.repo.InsertVersion(ctx, q, src.ID, &draft); err != nil {
			if isUniqueViolation(err) {
				return appErrors.WithDetails(appErrors.ErrConflict, "version was created concurrently", map[string]interface{}{
					"familyRootId": rootID,
					"version":      draft.Version,
				})
			}
			return appErrors.Internal(err, fmt.Sprintf("failed to create %s version", kind))
		}
		created = &draft
		source = src
		return nil
	})
	if err != nil {
		return nil, err
	}

	recordAudit(ctx, s.audit, s.logger, &models.AuditLog{
		EntityType:  string(kind),
		EntityID:    created.ID,
		Action:      models.AuditActionCreateVersion,
		ActorID:     actor.ActorID,
		Description: fmt.Sprintf("%s %s v%d created from v%d", kind, created.Code, created.Version, source.Version),
	})
	notify(ctx, s.notifier, models.NotificationProgramVersionCreated, map[string]interface{}{
		"kind":           kind,
		"id":             created.ID,
		"sourceId":       source.ID,
		"code":           created.Code,
		"version":        created.Version,
		"departmentCode": created.DepartmentCode,
		"actorId":        actor.ActorID,
	})
	s.metrics.RecordProgramTransition(kind, "create_version")
	return created, nil
}

// inFlightSibling returns the first family member other than sourceID still moving towards activation.
func inFlightSibling(family []models.ProgramDefinition, sourceID string) *models.ProgramDefinition {
	for i := range family {
		if family[i].ID != sourceID && family[i].Status.InFlight() {
			return &family[i]
		}
	}
	return nil
}

func nextVersion(family []models.ProgramDefinition, floor int) int {
	highest := floor
	for _, member := range family {
		if member.Version > highest {
			highest = member.Version
		}
	}
	return highest + 1
}
