package service

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/noah-isme/academic-programs-api/internal/dto"
	"github.com/noah-isme/academic-programs-api/internal/models"
	"github.com/noah-isme/academic-programs-api/internal/repository"
	appErrors "github.com/noah-isme/academic-programs-api/pkg/errors"
)

var academicYearPattern = regexp.MustCompile(`^(\d{4})-(\d{4})$`)

type enrollmentStore interface {
	Transaction(ctx context.Context, fn func(q sqlx.ExtContext) error) error
	FindByID(ctx context.Context, id string) (*models.EnrollmentReviewItem, error)
	LockByID(ctx context.Context, q sqlx.ExtContext, id string) (*models.EnrollmentRequest, error)
	LockForTerm(ctx context.Context, q sqlx.ExtContext, studentID, academicYear string, semester int) ([]models.EnrollmentRequest, error)
	Create(ctx context.Context, q sqlx.ExtContext, req *models.EnrollmentRequest) error
	SaveDraft(ctx context.Context, q sqlx.ExtContext, req *models.EnrollmentRequest) error
	CountInFlight(ctx context.Context, q sqlx.ExtContext, studentID, academicYear string, semester int, excludeID string) (int, error)
	MarkSubmitted(ctx context.Context, q sqlx.ExtContext, id string, submittedAt time.Time) error
	LockReviewItems(ctx context.Context, q sqlx.ExtContext, ids []string) ([]models.EnrollmentReviewItem, error)
	ApplyDecision(ctx context.Context, q sqlx.ExtContext, decision repository.EnrollmentDecision) ([]string, error)
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentReviewItem, int, error)
}

type studentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type activeDegreeReader interface {
	FindActiveByCode(ctx context.Context, code string) (*models.Degree, error)
}

type activeCourseReader interface {
	FindActiveCodes(ctx context.Context, codes []string) ([]string, error)
}

// EnrollmentService runs the student course-selection pipeline: draft, submit and HOD decision.
type EnrollmentService struct {
	repo      enrollmentStore
	students  studentReader
	degrees   activeDegreeReader
	courses   activeCourseReader
	quota     *QuotaWindowValidator
	audit     auditRecorder
	notifier  Notifier
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewEnrollmentService constructs an EnrollmentService.
func NewEnrollmentService(
	repo enrollmentStore,
	students studentReader,
	degrees activeDegreeReader,
	courses activeCourseReader,
	quota *QuotaWindowValidator,
	audit auditRecorder,
	notifier Notifier,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
) *EnrollmentService {
	if quota == nil {
		quota = NewQuotaWindowValidator()
	}
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{
		repo:      repo,
		students:  students,
		degrees:   degrees,
		courses:   courses,
		quota:     quota,
		audit:     audit,
		notifier:  notifier,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		now:       utcNow,
	}
}

// SaveDraft creates or updates the student's draft for an academic year and semester.
// The enrollment window must be open; the course quota is only enforced on submit.
func (s *EnrollmentService) SaveDraft(ctx context.Context, req dto.SaveEnrollmentDraftRequest, actor models.AuthContext) (*models.EnrollmentRequest, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if actor.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only students can save enrollment drafts")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}
	if err := validateAcademicYear(req.AcademicYear); err != nil {
		return nil, err
	}
	codes := normalizeCourseCodes(req.CourseCodes)

	degree, err := s.studentDegree(ctx, actor.ActorID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if err := s.quota.CheckWindow(degree, req.Semester, now); err != nil {
		return nil, err
	}
	if err := s.ensureCoursesExist(ctx, codes); err != nil {
		return nil, err
	}

	var saved *models.EnrollmentRequest
	created := false
	err = s.repo.Transaction(ctx, func(q sqlx.ExtContext) error {
		existing, err := s.repo.LockForTerm(ctx, q, actor.ActorID, req.AcademicYear, req.Semester)
		if err != nil {
			return appErrors.Internal(err, "failed to load enrollment requests")
		}
		var editable *models.EnrollmentRequest
		for i := range existing {
			row := &existing[i]
			if !row.Status.Editable() {
				return appErrors.WithDetails(appErrors.ErrConflict, "an enrollment request for this semester is already submitted", map[string]interface{}{
					"id":     row.ID,
					"status": row.Status,
				})
			}
			if editable == nil || (row.Status == models.EnrollmentStatusDraft && editable.Status != models.EnrollmentStatusDraft) {
				editable = row
			}
		}

		if editable != nil {
			editable.CourseCodes = codes
			if err := s.repo.SaveDraft(ctx, q, editable); err != nil {
				if isNoRows(err) {
					return invalidTransition("changed concurrently", models.EnrollmentStatusDraft)
				}
				if isUniqueViolation(err) {
					return appErrors.Clone(appErrors.ErrConflict, "an enrollment draft for this semester already exists")
				}
				return appErrors.Internal(err, "failed to save enrollment draft")
			}
			saved = editable
			return nil
		}

		draft := &models.EnrollmentRequest{
			StudentID:    actor.ActorID,
			AcademicYear: req.AcademicYear,
			Semester:     req.Semester,
			CourseCodes:  codes,
			Status:       models.EnrollmentStatusDraft,
		}
		if err := s.repo.Create(ctx, q, draft); err != nil {
			if isUniqueViolation(err) {
				return appErrors.Clone(appErrors.ErrConflict, "an enrollment draft for this semester already exists")
			}
			return appErrors.Internal(err, "failed to create enrollment draft")
		}
		saved = draft
		created = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	description := fmt.Sprintf("draft saved with %d course(s)", len(saved.CourseCodes))
	if created {
		description = fmt.Sprintf("draft created for %s semester %d with %d course(s)", saved.AcademicYear, saved.Semester, len(saved.CourseCodes))
	}
	recordAudit(ctx, s.audit, s.logger, &models.AuditLog{
		EntityType:  models.EntityTypeEnrollment,
		EntityID:    saved.ID,
		Action:      models.AuditActionSaveDraft,
		ActorID:     actor.ActorID,
		Description: description,
	})
	return saved, nil
}

// Submit sends the student's draft for HOD approval.
func (s *EnrollmentService) Submit(ctx context.Context, id string, actor models.AuthContext) (*models.EnrollmentRequest, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}

	var submitted *models.EnrollmentRequest
	err := s.repo.Transaction(ctx, func(q sqlx.ExtContext) error {
		req, err := s.repo.LockByID(ctx, q, id)
		if err != nil {
			if isNoRows(err) {
				return notFound("enrollment request")
			}
			return appErrors.Internal(err, "failed to load enrollment request")
		}
		if req.StudentID != actor.ActorID {
			return appErrors.Clone(appErrors.ErrForbidden, "only the owning student can submit this request")
		}
		if req.Status != models.EnrollmentStatusDraft {
			return invalidTransition(req.Status, models.EnrollmentStatusDraft)
		}
		if len(req.CourseCodes) == 0 {
			return appErrors.WithDetails(appErrors.ErrValidation, "select at least one course", map[string]interface{}{
				"selected": 0,
			})
		}

		degree, err := s.studentDegree(ctx, req.StudentID)
		if err != nil {
			return err
		}
		now := s.now()
		if err := s.quota.CheckWindow(degree, req.Semester, now); err != nil {
			return err
		}
		if err := s.quota.CheckQuota(degree, req.Semester, len(req.CourseCodes)); err != nil {
			return err
		}

		inFlight, err := s.repo.CountInFlight(ctx, q, req.StudentID, req.AcademicYear, req.Semester, req.ID)
		if err != nil {
			return appErrors.Internal(err, "failed to check existing enrollment requests")
		}
		if inFlight > 0 {
			return appErrors.WithDetails(appErrors.ErrConflict, "another enrollment request for this semester is already submitted", map[string]interface{}{
				"academicYear": req.AcademicYear,
				"semester":     req.Semester,
			})
		}

		if err := s.repo.MarkSubmitted(ctx, q, req.ID, now); err != nil {
			switch {
			case isNoRows(err):
				return invalidTransition("changed concurrently", models.EnrollmentStatusDraft)
			case isUniqueViolation(err):
				return appErrors.Clone(appErrors.ErrConflict, "another enrollment request for this semester is already submitted")
			}
			return appErrors.Internal(err, "failed to submit enrollment request")
		}
		req.Status = models.EnrollmentStatusPendingHODApproval
		req.SubmittedAt = &now
		req.RejectionReason = nil
		req.UpdatedAt = now
		submitted = req
		return nil
	})
	if err != nil {
		return nil, err
	}

	recordAudit(ctx, s.audit, s.logger, &models.AuditLog{
		EntityType:  models.EntityTypeEnrollment,
		EntityID:    submitted.ID,
		Action:      models.AuditActionSubmit,
		ActorID:     actor.ActorID,
		Description: fmt.Sprintf("submitted %d course(s) for HOD approval", len(submitted.CourseCodes)),
	})
	notify(ctx, s.notifier, models.NotificationEnrollmentSubmitted, map[string]interface{}{
		"id":           submitted.ID,
		"studentId":    submitted.StudentID,
		"academicYear": submitted.AcademicYear,
		"semester":     submitted.Semester,
	})
	s.metrics.RecordEnrollmentTransition("submit", 1)
	return submitted, nil
}

// HODDecision approves or rejects a batch of pending requests. Requests outside
// the HOD's department or no longer pending are skipped rather than failing the batch.
func (s *EnrollmentService) HODDecision(ctx context.Context, req dto.HODDecisionRequest, actor models.AuthContext) (*dto.HODDecisionResult, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if !actor.IsHeadOfDepartment || actor.DepartmentCode == "" {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only heads of department can decide enrollment requests")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid decision payload")
	}
	reason := strings.TrimSpace(req.Reason)
	if req.Action == dto.HODActionReject && reason == "" {
		return nil, appErrors.WithDetails(appErrors.ErrValidation, "a reason is required to reject", map[string]interface{}{
			"action": req.Action,
		})
	}

	ids := normalizeIDs(req.RequestIDs)
	decision := repository.EnrollmentDecision{
		Status:     models.EnrollmentStatusApproved,
		ReviewerID: actor.ActorID,
		DecidedAt:  s.now(),
	}
	if req.Action == dto.HODActionReject {
		decision.Status = models.EnrollmentStatusDraft
		decision.Reason = &reason
	}

	var processed []string
	err := s.repo.Transaction(ctx, func(q sqlx.ExtContext) error {
		items, err := s.repo.LockReviewItems(ctx, q, ids)
		if err != nil {
			return appErrors.Internal(err, "failed to load enrollment requests")
		}
		for _, item := range items {
			if item.Status == models.EnrollmentStatusPendingHODApproval && actor.InDepartment(item.DepartmentCode) {
				decision.IDs = append(decision.IDs, item.ID)
			}
		}
		if len(decision.IDs) == 0 {
			return nil
		}
		processed, err = s.repo.ApplyDecision(ctx, q, decision)
		if err != nil {
			return appErrors.Internal(err, "failed to apply enrollment decision")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterDecision(ctx, processed, req.Action, reason, actor)
	if processed == nil {
		processed = []string{}
	}
	s.logger.Info("enrollment decision applied",
		zap.String("action", req.Action),
		zap.String("department_code", actor.DepartmentCode),
		zap.Int("requested", len(ids)),
		zap.Int("processed", len(processed)),
	)
	return &dto.HODDecisionResult{Requested: len(ids), Processed: len(processed), ProcessedIDs: processed}, nil
}

func (s *EnrollmentService) afterDecision(ctx context.Context, processed []string, action, reason string, actor models.AuthContext) {
	auditAction := models.AuditActionApprove
	event := models.NotificationEnrollmentApproved
	description := "approved by head of department"
	if action == dto.HODActionReject {
		auditAction = models.AuditActionReject
		event = models.NotificationEnrollmentRejected
		description = "returned to draft by head of department: " + reason
	}
	for _, id := range processed {
		recordAudit(ctx, s.audit, s.logger, &models.AuditLog{
			EntityType:  models.EntityTypeEnrollment,
			EntityID:    id,
			Action:      auditAction,
			ActorID:     actor.ActorID,
			Description: description,
		})
		notify(ctx, s.notifier, event, map[string]interface{}{
			"id":         id,
			"reviewerId": actor.ActorID,
			"reason":     reason,
		})
	}
	s.metrics.RecordEnrollmentTransition(action, len(processed))
}

// Get returns a request visible to the actor.
func (s *EnrollmentService) Get(ctx context.Context, id string, actor models.AuthContext) (*models.EnrollmentReviewItem, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	item, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if isNoRows(err) {
			return nil, notFound("enrollment request")
		}
		return nil, appErrors.Internal(err, "failed to load enrollment request")
	}
	if actor.IsAdmin() || item.StudentID == actor.ActorID || actor.HeadOf(item.DepartmentCode) {
		return item, nil
	}
	return nil, appErrors.ErrForbidden
}

// List returns requests scoped to the actor: students see their own, HODs their department.
func (s *EnrollmentService) List(ctx context.Context, query dto.EnrollmentListQuery, actor models.AuthContext) ([]models.EnrollmentReviewItem, *models.Pagination, error) {
	if err := requireActor(actor); err != nil {
		return nil, nil, err
	}
	filter := models.EnrollmentFilter{
		AcademicYear: strings.TrimSpace(query.AcademicYear),
		Semester:     query.Semester,
		Status:       models.EnrollmentStatus(strings.TrimSpace(query.Status)),
		Page:         query.Page,
		PageSize:     query.PageSize,
	}
	switch {
	case actor.IsAdmin():
	case actor.Role == models.RoleStudent:
		filter.StudentID = actor.ActorID
	case actor.IsHeadOfDepartment && actor.DepartmentCode != "":
		filter.DepartmentCode = actor.DepartmentCode
	default:
		return nil, nil, appErrors.ErrForbidden
	}

	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list enrollment requests")
	}
	return items, pagination(query.Page, query.PageSize, total), nil
}

func (s *EnrollmentService) studentDegree(ctx context.Context, studentID string) (*models.Degree, error) {
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if isNoRows(err) {
			return nil, notFound("student profile")
		}
		return nil, appErrors.Internal(err, "failed to load student profile")
	}
	degree, err := s.degrees.FindActiveByCode(ctx, student.DegreeCode)
	if err != nil {
		if isNoRows(err) {
			return nil, appErrors.WithDetails(appErrors.ErrNotFound, "no active degree version for student", map[string]interface{}{
				"degreeCode": student.DegreeCode,
			})
		}
		return nil, appErrors.Internal(err, "failed to load degree")
	}
	return degree, nil
}

func (s *EnrollmentService) ensureCoursesExist(ctx context.Context, codes []string) error {
	if len(codes) == 0 {
		return nil
	}
	found, err := s.courses.FindActiveCodes(ctx, codes)
	if err != nil {
		return appErrors.Internal(err, "failed to verify course codes")
	}
	known := make(map[string]struct{}, len(found))
	for _, code := range found {
		known[code] = struct{}{}
	}
	var unknown []string
	for _, code := range codes {
		if _, ok := known[code]; !ok {
			unknown = append(unknown, code)
		}
	}
	if len(unknown) > 0 {
		return appErrors.WithDetails(appErrors.ErrValidation, "unknown or inactive course codes", map[string]interface{}{
			"unknownCodes": unknown,
		})
	}
	return nil
}

func validateAcademicYear(year string) error {
	m := academicYearPattern.FindStringSubmatch(year)
	if m != nil {
		first, _ := strconv.Atoi(m[1])
		second, _ := strconv.Atoi(m[2])
		if second == first+1 {
			return nil
		}
	}
	return appErrors.WithDetails(appErrors.ErrValidation, "academic year must look like 2024-2025", map[string]interface{}{
		"academicYear": year,
	})
}

// normalizeCourseCodes upper-cases, de-duplicates and sorts the selection.
func normalizeCourseCodes(codes []string) pq.StringArray {
	seen := make(map[string]struct{}, len(codes))
	out := make(pq.StringArray, 0, len(codes))
	for _, code := range codes {
		code = models.NormalizeCode(code)
		if code == "" {
			continue
		}
		if _, ok := seen[code]; ok {
			continue
		}
		seen[code] = struct{}{}
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}
