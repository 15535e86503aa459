package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/noah-isme/academic-programs-api/internal/dto"
	"github.com/noah-isme/academic-programs-api/internal/models"
	appErrors "github.com/noah-isme/academic-programs-api/pkg/errors"
)

type degreeStore interface {
	FindLatestByCode(ctx context.Context, q sqlx.ExtContext, code string) (*models.ProgramDefinition, error)
	Create(ctx context.Context, degree *models.Degree) error
	UpdateDraft(ctx context.Context, degree *models.Degree) error
	FindByID(ctx context.Context, id string) (*models.Degree, error)
	List(ctx context.Context, filter models.ProgramFilter) ([]models.Degree, int, error)
	Family(ctx context.Context, rootID string) ([]models.Degree, error)
}

// DegreeService manages the degree catalog outside of lifecycle transitions.
type DegreeService struct {
	repo      degreeStore
	audit     auditRecorder
	validator *validator.Validate
	logger    *zap.Logger
}

// NewDegreeService constructs a DegreeService.
func NewDegreeService(repo degreeStore, audit auditRecorder, validate *validator.Validate, logger *zap.Logger) *DegreeService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DegreeService{repo: repo, audit: audit, validator: validate, logger: logger}
}

// Create registers version 1 of a new degree family as a draft owned by actor.
func (s *DegreeService) Create(ctx context.Context, req dto.CreateDegreeRequest, actor models.AuthContext) (*models.Degree, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid degree payload")
	}
	code := models.NormalizeCode(req.Code)
	department := models.NormalizeCode(req.DepartmentCode)
	if err := authorizeCatalogCreate(actor, department); err != nil {
		return nil, err
	}
	if err := validateSemesterConfig(req.SemesterConfig, req.DurationSemesters); err != nil {
		return nil, err
	}
	if err := ensureCodeAvailable(ctx, s.repo, models.ProgramKindDegree, code); err != nil {
		return nil, err
	}

	degree := &models.Degree{
		ProgramDefinition: models.ProgramDefinition{
			Code:            code,
			DepartmentCode:  department,
			Version:         1,
			IsLatestVersion: true,
			Status:          models.ProgramStatusDraft,
			Collaborators:   normalizeCollaborators(req.Collaborators, actor.ActorID),
			CreatedBy:       actor.ActorID,
		},
		Name:              strings.TrimSpace(req.Name),
		Description:       strings.TrimSpace(req.Description),
		DurationSemesters: req.DurationSemesters,
		SemesterConfig:    req.SemesterConfig,
	}
	if err := s.repo.Create(ctx, degree); err != nil {
		if isUniqueViolation(err) {
			return nil, codeConflict(models.ProgramKindDegree, code, "")
		}
		return nil, appErrors.Internal(err, "failed to create degree")
	}

	recordAudit(ctx, s.audit, s.logger, &models.AuditLog{
		EntityType:  models.EntityTypeDegree,
		EntityID:    degree.ID,
		Action:      models.AuditActionCreate,
		ActorID:     actor.ActorID,
		Description: fmt.Sprintf("degree %s v1 created", degree.Code),
	})
	return degree, nil
}

// UpdateDraft replaces the payload of a degree that is still a draft.
func (s *DegreeService) UpdateDraft(ctx context.Context, id string, req dto.UpdateDegreeRequest, actor models.AuthContext) (*models.Degree, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid degree payload")
	}
	degree, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canEditDefinition(actor, &degree.ProgramDefinition) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not allowed to edit this degree")
	}
	if degree.Status != models.ProgramStatusDraft {
		return nil, invalidTransition(degree.Status, models.ProgramStatusDraft)
	}
	if err := validateSemesterConfig(req.SemesterConfig, req.DurationSemesters); err != nil {
		return nil, err
	}

	degree.Name = strings.TrimSpace(req.Name)
	degree.Description = strings.TrimSpace(req.Description)
	degree.DurationSemesters = req.DurationSemesters
	degree.SemesterConfig = req.SemesterConfig
	degree.Collaborators = normalizeCollaborators(req.Collaborators, degree.CreatedBy)
	if err := s.repo.UpdateDraft(ctx, degree); err != nil {
		if isNoRows(err) {
			return nil, invalidTransition("changed concurrently", models.ProgramStatusDraft)
		}
		return nil, appErrors.Internal(err, "failed to update degree")
	}

	recordAudit(ctx, s.audit, s.logger, &models.AuditLog{
		EntityType:  models.EntityTypeDegree,
		EntityID:    degree.ID,
		Action:      models.AuditActionUpdate,
		ActorID:     actor.ActorID,
		Description: fmt.Sprintf("degree %s v%d draft updated", degree.Code, degree.Version),
	})
	return degree, nil
}

// Get returns a degree by id.
func (s *DegreeService) Get(ctx context.Context, id string, actor models.AuthContext) (*models.Degree, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	return s.load(ctx, id)
}

// List returns degrees matching the query.
func (s *DegreeService) List(ctx context.Context, query dto.ProgramListQuery, actor models.AuthContext) ([]models.Degree, *models.Pagination, error) {
	if err := requireActor(actor); err != nil {
		return nil, nil, err
	}
	filter, err := programFilterFromQuery(query)
	if err != nil {
		return nil, nil, err
	}
	degrees, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list degrees")
	}
	return degrees, paginationFor(filter, total), nil
}

// Versions returns every version of the family the degree belongs to.
func (s *DegreeService) Versions(ctx context.Context, id string, actor models.AuthContext) ([]models.Degree, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	degree, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	family, err := s.repo.Family(ctx, degree.RootID())
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list degree versions")
	}
	return family, nil
}

func (s *DegreeService) load(ctx context.Context, id string) (*models.Degree, error) {
	degree, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if isNoRows(err) {
			return nil, notFound("degree")
		}
		return nil, appErrors.Internal(err, "failed to load degree")
	}
	return degree, nil
}

// validateSemesterConfig checks that windows reference real semesters and are well ordered.
func validateSemesterConfig(cfg models.SemesterConfig, duration int) error {
	for semester, window := range cfg {
		details := map[string]interface{}{"semester": semester}
		switch {
		case semester < 1 || semester > duration:
			details["durationSemesters"] = duration
			return appErrors.WithDetails(appErrors.ErrValidation, "semester config references an unknown semester", details)
		case window.Count < 0:
			details["count"] = window.Count
			return appErrors.WithDetails(appErrors.ErrValidation, "semester course count cannot be negative", details)
		case window.EnrollmentStart != nil && window.EnrollmentEnd != nil && window.EnrollmentEnd.Before(*window.EnrollmentStart):
			details["enrollmentStart"] = window.EnrollmentStart
			details["enrollmentEnd"] = window.EnrollmentEnd
			return appErrors.WithDetails(appErrors.ErrValidation, "enrollment window ends before it starts", details)
		}
	}
	return nil
}

type latestByCodeFinder interface {
	FindLatestByCode(ctx context.Context, q sqlx.ExtContext, code string) (*models.ProgramDefinition, error)
}

func ensureCodeAvailable(ctx context.Context, repo latestByCodeFinder, kind models.ProgramKind, code string) error {
	existing, err := repo.FindLatestByCode(ctx, nil, code)
	if err == nil {
		return codeConflict(kind, code, existing.ID)
	}
	if !isNoRows(err) {
		return appErrors.Internal(err, fmt.Sprintf("failed to check %s code", kind))
	}
	return nil
}

func codeConflict(kind models.ProgramKind, code, existingID string) error {
	details := map[string]interface{}{"code": code}
	if existingID != "" {
		details["existingId"] = existingID
	}
	return appErrors.WithDetails(appErrors.ErrConflict, fmt.Sprintf("%s code already in use; create a new version instead", kind), details)
}

// authorizeCatalogCreate allows admins anywhere and faculty within their own department.
func authorizeCatalogCreate(actor models.AuthContext, department string) error {
	if actor.IsAdmin() {
		return nil
	}
	if actor.Role == models.RoleFaculty && actor.InDepartment(department) {
		return nil
	}
	return appErrors.Clone(appErrors.ErrForbidden, "not allowed to create definitions for this department")
}

func normalizeCollaborators(ids []string, owner string) pq.StringArray {
	out := pq.StringArray{}
	for _, id := range normalizeIDs(ids) {
		if id != owner {
			out = append(out, id)
		}
	}
	return out
}

func programFilterFromQuery(query dto.ProgramListQuery) (models.ProgramFilter, error) {
	filter := models.ProgramFilter{
		Code:           query.Code,
		DepartmentCode: query.DepartmentCode,
		LatestOnly:     query.LatestOnly,
		Page:           query.Page,
		PageSize:       query.PageSize,
	}
	if query.Status != "" {
		for _, raw := range strings.Split(query.Status, ",") {
			status := models.ProgramStatus(strings.TrimSpace(strings.ToLower(raw)))
			switch status {
			case models.ProgramStatusDraft, models.ProgramStatusPendingApproval, models.ProgramStatusApproved,
				models.ProgramStatusActive, models.ProgramStatusArchived:
				filter.Status = append(filter.Status, status)
			default:
				return filter, appErrors.WithDetails(appErrors.ErrValidation, "unknown status filter", map[string]interface{}{
					"status": raw,
				})
			}
		}
	}
	return filter, nil
}

func paginationFor(filter models.ProgramFilter, total int) *models.Pagination {
	return pagination(filter.Page, filter.PageSize, total)
}

func pagination(page, pageSize, total int) *models.Pagination {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}
}
