package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/academic-programs-api/internal/models"
	"github.com/noah-isme/academic-programs-api/pkg/database"
)

const enrollmentColumns = `e.id, e.student_id, e.academic_year, e.semester, e.course_codes, e.status, e.submitted_at,
e.hod_approved_by, e.hod_approved_at, e.rejection_reason, e.created_at, e.updated_at`

// EnrollmentDecision describes the state a batch of pending requests moves to.
type EnrollmentDecision struct {
	IDs        []string
	Status     models.EnrollmentStatus
	ReviewerID string
	Reason     *string
	DecidedAt  time.Time
}

// EnrollmentRepository handles persistence of semester enrollment requests.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// Transaction runs fn inside a database transaction.
func (r *EnrollmentRepository) Transaction(ctx context.Context, fn func(q sqlx.ExtContext) error) error {
	return database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		return fn(tx)
	})
}

func (r *EnrollmentRepository) queryer(q sqlx.ExtContext) sqlx.ExtContext {
	if q == nil {
		return r.db
	}
	return q
}

// FindByID returns a request joined with its student's department.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.EnrollmentReviewItem, error) {
	query := `SELECT ` + enrollmentColumns + `, s.department_code
FROM enrollment_requests e JOIN students s ON s.id = e.student_id
WHERE e.id = $1`
	var item models.EnrollmentReviewItem
	if err := r.db.GetContext(ctx, &item, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find enrollment request: %w", err)
	}
	return &item, nil
}

// LockByID loads a request holding a row lock.
func (r *EnrollmentRepository) LockByID(ctx context.Context, q sqlx.ExtContext, id string) (*models.EnrollmentRequest, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollment_requests e WHERE e.id = $1 FOR UPDATE`
	var req models.EnrollmentRequest
	if err := sqlx.GetContext(ctx, r.queryer(q), &req, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("lock enrollment request: %w", err)
	}
	return &req, nil
}

// LockForTerm returns every request of the student for the academic year and
// semester, most recently updated first, holding row locks.
func (r *EnrollmentRepository) LockForTerm(ctx context.Context, q sqlx.ExtContext, studentID, academicYear string, semester int) ([]models.EnrollmentRequest, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollment_requests e
WHERE e.student_id = $1 AND e.academic_year = $2 AND e.semester = $3
ORDER BY e.updated_at DESC FOR UPDATE`
	var requests []models.EnrollmentRequest
	if err := sqlx.SelectContext(ctx, r.queryer(q), &requests, query, studentID, academicYear, semester); err != nil {
		return nil, fmt.Errorf("lock enrollment requests for term: %w", err)
	}
	return requests, nil
}

// Create inserts a new draft request.
func (r *EnrollmentRepository) Create(ctx context.Context, q sqlx.ExtContext, req *models.EnrollmentRequest) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if req.CreatedAt.IsZero() {
		req.CreatedAt = now
	}
	req.UpdatedAt = now

	const query = `INSERT INTO enrollment_requests (id, student_id, academic_year, semester, course_codes, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	if _, err := r.queryer(q).ExecContext(ctx, query,
		req.ID, req.StudentID, req.AcademicYear, req.Semester, req.CourseCodes, req.Status, req.CreatedAt, req.UpdatedAt,
	); err != nil {
		return writeError("create enrollment request", err)
	}
	return nil
}

// SaveDraft stores the selection of an editable request and returns it to draft.
func (r *EnrollmentRepository) SaveDraft(ctx context.Context, q sqlx.ExtContext, req *models.EnrollmentRequest) error {
	req.UpdatedAt = time.Now().UTC()
	const query = `UPDATE enrollment_requests SET course_codes = $1, status = $2, updated_at = $3
WHERE id = $4 AND status IN ('draft', 'rejected')`
	res, err := r.queryer(q).ExecContext(ctx, query, req.CourseCodes, models.EnrollmentStatusDraft, req.UpdatedAt, req.ID)
	if err != nil {
		return writeError("save enrollment draft", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("save enrollment draft rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	req.Status = models.EnrollmentStatusDraft
	return nil
}

// CountInFlight counts requests of the triple outside draft and rejected, ignoring excludeID.
func (r *EnrollmentRepository) CountInFlight(ctx context.Context, q sqlx.ExtContext, studentID, academicYear string, semester int, excludeID string) (int, error) {
	const query = `SELECT COUNT(*) FROM enrollment_requests
WHERE student_id = $1 AND academic_year = $2 AND semester = $3 AND id <> $4
AND status NOT IN ('draft', 'rejected')`
	var count int
	if err := sqlx.GetContext(ctx, r.queryer(q), &count, query, studentID, academicYear, semester, excludeID); err != nil {
		return 0, fmt.Errorf("count in-flight enrollment requests: %w", err)
	}
	return count, nil
}

// MarkSubmitted moves a draft to pending HOD approval.
func (r *EnrollmentRepository) MarkSubmitted(ctx context.Context, q sqlx.ExtContext, id string, submittedAt time.Time) error {
	const query = `UPDATE enrollment_requests SET status = $1, submitted_at = $2, rejection_reason = NULL, updated_at = $2
WHERE id = $3 AND status = 'draft'`
	res, err := r.queryer(q).ExecContext(ctx, query, models.EnrollmentStatusPendingHODApproval, submittedAt, id)
	if err != nil {
		return writeError("submit enrollment request", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("submit enrollment request rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// LockReviewItems loads the requested rows with the department of their student.
func (r *EnrollmentRepository) LockReviewItems(ctx context.Context, q sqlx.ExtContext, ids []string) ([]models.EnrollmentReviewItem, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT ` + enrollmentColumns + `, s.department_code
FROM enrollment_requests e JOIN students s ON s.id = e.student_id
WHERE e.id = ANY($1) ORDER BY e.submitted_at ASC NULLS LAST FOR UPDATE OF e`
	var items []models.EnrollmentReviewItem
	if err := sqlx.SelectContext(ctx, r.queryer(q), &items, query, pq.StringArray(ids)); err != nil {
		return nil, fmt.Errorf("lock enrollment review items: %w", err)
	}
	return items, nil
}

// ApplyDecision transitions the pending requests among decision.IDs and returns
// the identifiers actually updated.
func (r *EnrollmentRepository) ApplyDecision(ctx context.Context, q sqlx.ExtContext, decision EnrollmentDecision) ([]string, error) {
	if len(decision.IDs) == 0 {
		return nil, nil
	}
	const query = `UPDATE enrollment_requests SET status = $1, hod_approved_by = $2, hod_approved_at = $3,
rejection_reason = $4, submitted_at = CASE WHEN $1 = 'draft' THEN NULL ELSE submitted_at END, updated_at = $3
WHERE id = ANY($5) AND status = 'pending_hod_approval'
RETURNING id`
	var processed []string
	if err := sqlx.SelectContext(ctx, r.queryer(q), &processed, query,
		decision.Status, decision.ReviewerID, decision.DecidedAt, decision.Reason, pq.StringArray(decision.IDs),
	); err != nil {
		return nil, writeError("apply enrollment decision", err)
	}
	return processed, nil
}

// List returns requests matching filter joined with the student's department.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentReviewItem, int, error) {
	base := `FROM enrollment_requests e JOIN students s ON s.id = e.student_id`
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("e.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.DepartmentCode != "" {
		conditions = append(conditions, fmt.Sprintf("s.department_code = $%d", len(args)+1))
		args = append(args, filter.DepartmentCode)
	}
	if filter.AcademicYear != "" {
		conditions = append(conditions, fmt.Sprintf("e.academic_year = $%d", len(args)+1))
		args = append(args, filter.AcademicYear)
	}
	if filter.Semester > 0 {
		conditions = append(conditions, fmt.Sprintf("e.semester = $%d", len(args)+1))
		args = append(args, filter.Semester)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("e.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}
	_, pageSize, offset := normalizePage(filter.Page, filter.PageSize)

	listQuery := fmt.Sprintf(`SELECT %s, s.department_code %s%s ORDER BY e.updated_at DESC LIMIT %d OFFSET %d`,
		enrollmentColumns, base, clause, pageSize, offset)
	var items []models.EnrollmentReviewItem
	if err := r.db.SelectContext(ctx, &items, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollment requests: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, fmt.Sprintf("SELECT COUNT(*) %s%s", base, clause), args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollment requests: %w", err)
	}
	return items, total, nil
}
