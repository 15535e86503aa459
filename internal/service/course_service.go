package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/academic-programs-api/internal/dto"
	"github.com/noah-isme/academic-programs-api/internal/models"
	appErrors "github.com/noah-isme/academic-programs-api/pkg/errors"
)

type courseStore interface {
	FindLatestByCode(ctx context.Context, q sqlx.ExtContext, code string) (*models.ProgramDefinition, error)
	Create(ctx context.Context, course *models.Course) error
	UpdateDraft(ctx context.Context, course *models.Course) error
	FindByID(ctx context.Context, id string) (*models.Course, error)
	List(ctx context.Context, filter models.ProgramFilter) ([]models.Course, int, error)
	Family(ctx context.Context, rootID string) ([]models.Course, error)
}

type displayNameResolver interface {
	DisplayNames(ctx context.Context, ids []string) map[string]string
}

// CourseService manages the course catalog outside of lifecycle transitions.
type CourseService struct {
	repo      courseStore
	directory displayNameResolver
	audit     auditRecorder
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCourseService constructs a CourseService.
func NewCourseService(repo courseStore, directory displayNameResolver, audit auditRecorder, validate *validator.Validate, logger *zap.Logger) *CourseService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseService{repo: repo, directory: directory, audit: audit, validator: validate, logger: logger}
}

// Create registers version 1 of a new course family as a draft owned by actor.
func (s *CourseService) Create(ctx context.Context, req dto.CreateCourseRequest, actor models.AuthContext) (*models.Course, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	code := models.NormalizeCode(req.Code)
	department := models.NormalizeCode(req.DepartmentCode)
	if err := authorizeCatalogCreate(actor, department); err != nil {
		return nil, err
	}
	faculty, err := normalizeFaculty(req.Faculty)
	if err != nil {
		return nil, err
	}
	if err := ensureCodeAvailable(ctx, s.repo, models.ProgramKindCourse, code); err != nil {
		return nil, err
	}

	course := &models.Course{
		ProgramDefinition: models.ProgramDefinition{
			Code:            code,
			DepartmentCode:  department,
			Version:         1,
			IsLatestVersion: true,
			Status:          models.ProgramStatusDraft,
			Collaborators:   normalizeCollaborators(req.Collaborators, actor.ActorID),
			CreatedBy:       actor.ActorID,
		},
		Title:       strings.TrimSpace(req.Title),
		Description: strings.TrimSpace(req.Description),
		Credits:     req.Credits,
		Faculty:     faculty,
	}
	if err := s.repo.Create(ctx, course); err != nil {
		if isUniqueViolation(err) {
			return nil, codeConflict(models.ProgramKindCourse, code, "")
		}
		return nil, appErrors.Internal(err, "failed to create course")
	}

	recordAudit(ctx, s.audit, s.logger, &models.AuditLog{
		EntityType:  models.EntityTypeCourse,
		EntityID:    course.ID,
		Action:      models.AuditActionCreate,
		ActorID:     actor.ActorID,
		Description: fmt.Sprintf("course %s v1 created", course.Code),
	})
	return course, nil
}

// UpdateDraft replaces the payload of a course that is still a draft.
func (s *CourseService) UpdateDraft(ctx context.Context, id string, req dto.UpdateCourseRequest, actor models.AuthContext) (*models.Course, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	course, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canEditDefinition(actor, &course.ProgramDefinition) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not allowed to edit this course")
	}
	if course.Status != models.ProgramStatusDraft {
		return nil, invalidTransition(course.Status, models.ProgramStatusDraft)
	}
	faculty, err := normalizeFaculty(req.Faculty)
	if err != nil {
		return nil, err
	}

	course.Title = strings.TrimSpace(req.Title)
	course.Description = strings.TrimSpace(req.Description)
	course.Credits = req.Credits
	course.Faculty = faculty
	course.Collaborators = normalizeCollaborators(req.Collaborators, course.CreatedBy)
	if err := s.repo.UpdateDraft(ctx, course); err != nil {
		if isNoRows(err) {
			return nil, invalidTransition("changed concurrently", models.ProgramStatusDraft)
		}
		return nil, appErrors.Internal(err, "failed to update course")
	}

	recordAudit(ctx, s.audit, s.logger, &models.AuditLog{
		EntityType:  models.EntityTypeCourse,
		EntityID:    course.ID,
		Action:      models.AuditActionUpdate,
		ActorID:     actor.ActorID,
		Description: fmt.Sprintf("course %s v%d draft updated", course.Code, course.Version),
	})
	return course, nil
}

// Get returns a course by id with instructor names resolved.
func (s *CourseService) Get(ctx context.Context, id string, actor models.AuthContext) (*models.Course, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	course, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	s.ResolveFaculty(ctx, &course.Faculty)
	return course, nil
}

// List returns courses matching the query.
func (s *CourseService) List(ctx context.Context, query dto.ProgramListQuery, actor models.AuthContext) ([]models.Course, *models.Pagination, error) {
	if err := requireActor(actor); err != nil {
		return nil, nil, err
	}
	filter, err := programFilterFromQuery(query)
	if err != nil {
		return nil, nil, err
	}
	courses, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list courses")
	}
	return courses, paginationFor(filter, total), nil
}

// Versions returns every version of the family the course belongs to.
func (s *CourseService) Versions(ctx context.Context, id string, actor models.AuthContext) ([]models.Course, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	course, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	family, err := s.repo.Family(ctx, course.RootID())
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list course versions")
	}
	return family, nil
}

// ResolveFaculty fills in the display name of every instructor reference using
// one batched directory lookup.
func (s *CourseService) ResolveFaculty(ctx context.Context, faculty *models.FacultyDetails) {
	if s.directory == nil || faculty == nil {
		return
	}
	ids := faculty.UserIDs()
	if len(ids) == 0 {
		return
	}
	names := s.directory.DisplayNames(ctx, ids)
	for _, ref := range faculty.Refs() {
		if name, ok := names[ref.UserID]; ok {
			ref.Name = name
		}
	}
}

func (s *CourseService) load(ctx context.Context, id string) (*models.Course, error) {
	course, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if isNoRows(err) {
			return nil, notFound("course")
		}
		return nil, appErrors.Internal(err, "failed to load course")
	}
	return course, nil
}

// normalizeFaculty trims references, tags their kind and drops stored names,
// which are always resolved on read.
func normalizeFaculty(faculty models.FacultyDetails) (models.FacultyDetails, error) {
	for _, ref := range faculty.Refs() {
		ref.UserID = strings.TrimSpace(ref.UserID)
		ref.Role = strings.TrimSpace(ref.Role)
		ref.Name = ""
		if ref.UserID == "" {
			return faculty, appErrors.WithDetails(appErrors.ErrValidation, "instructor reference is missing userId", map[string]interface{}{
				"kind": ref.Kind,
			})
		}
	}
	return faculty, nil
}
