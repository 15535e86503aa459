package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/academic-programs-api/internal/models"
)

var coursePayloadColumns = []string{"title", "description", "credits", "faculty"}

const courseColumns = programBaseColumns + `, title, description, credits, faculty`

// CourseRepository persists course definitions.
type CourseRepository struct {
	*ProgramRepository
}

// NewCourseRepository constructs the repository bound to the courses table.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{ProgramRepository: newProgramRepository(db, models.ProgramKindCourse, "courses", coursePayloadColumns)}
}

// Create inserts version 1 of a new course family.
func (r *CourseRepository) Create(ctx context.Context, course *models.Course) error {
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if course.CreatedAt.IsZero() {
		course.CreatedAt = now
	}
	course.UpdatedAt = now

	const query = `INSERT INTO courses (id, code, department_code, version, family_root_id, is_latest_version, status, collaborators,
created_by, title, description, credits, faculty, created_at, updated_at)
VALUES (:id, :code, :department_code, :version, :family_root_id, :is_latest_version, :status, :collaborators,
:created_by, :title, :description, :credits, :faculty, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
		return writeError("create course", err)
	}
	return nil
}

// UpdateDraft replaces the payload of a course still in draft.
func (r *CourseRepository) UpdateDraft(ctx context.Context, course *models.Course) error {
	course.UpdatedAt = time.Now().UTC()
	const query = `UPDATE courses SET title = :title, description = :description, credits = :credits,
faculty = :faculty, collaborators = :collaborators, updated_at = :updated_at
WHERE id = :id AND status = 'draft'`
	res, err := r.db.NamedExecContext(ctx, query, course)
	if err != nil {
		return fmt.Errorf("update course draft: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update course draft rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// FindByID returns a course with its payload.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	query := `SELECT ` + courseColumns + ` FROM courses WHERE id = $1`
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find course: %w", err)
	}
	return &course, nil
}

// FindActiveCodes returns the subset of codes that have an active course version.
func (r *CourseRepository) FindActiveCodes(ctx context.Context, codes []string) ([]string, error) {
	if len(codes) == 0 {
		return nil, nil
	}
	const query = `SELECT DISTINCT code FROM courses WHERE status = 'active' AND code = ANY($1) ORDER BY code ASC`
	var found []string
	if err := r.db.SelectContext(ctx, &found, query, pq.StringArray(codes)); err != nil {
		return nil, fmt.Errorf("find active course codes: %w", err)
	}
	return found, nil
}

// List returns courses matching filter with the total count.
func (r *CourseRepository) List(ctx context.Context, filter models.ProgramFilter) ([]models.Course, int, error) {
	var courses []models.Course
	total, err := r.list(ctx, courseColumns, filter, &courses)
	if err != nil {
		return nil, 0, err
	}
	return courses, total, nil
}

// Family returns every version of the family rooted at rootID.
func (r *CourseRepository) Family(ctx context.Context, rootID string) ([]models.Course, error) {
	query := `SELECT ` + courseColumns + ` FROM courses WHERE id = $1 OR family_root_id = $1 ORDER BY version ASC`
	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, query, rootID); err != nil {
		return nil, fmt.Errorf("list course versions: %w", err)
	}
	return courses, nil
}
