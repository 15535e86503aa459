package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/academic-programs-api/internal/models"
)

var degreePayloadColumns = []string{"name", "description", "duration_semesters", "semester_config"}

const degreeColumns = programBaseColumns + `, name, description, duration_semesters, semester_config`

// DegreeRepository persists degree definitions.
type DegreeRepository struct {
	*ProgramRepository
}

// NewDegreeRepository constructs the repository bound to the degrees table.
func NewDegreeRepository(db *sqlx.DB) *DegreeRepository {
	return &DegreeRepository{ProgramRepository: newProgramRepository(db, models.ProgramKindDegree, "degrees", degreePayloadColumns)}
}

// Create inserts version 1 of a new degree family.
func (r *DegreeRepository) Create(ctx context.Context, degree *models.Degree) error {
	if degree.ID == "" {
		degree.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if degree.CreatedAt.IsZero() {
		degree.CreatedAt = now
	}
	degree.UpdatedAt = now

	const query = `INSERT INTO degrees (id, code, department_code, version, family_root_id, is_latest_version, status, collaborators,
created_by, name, description, duration_semesters, semester_config, created_at, updated_at)
VALUES (:id, :code, :department_code, :version, :family_root_id, :is_latest_version, :status, :collaborators,
:created_by, :name, :description, :duration_semesters, :semester_config, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, degree); err != nil {
		return writeError("create degree", err)
	}
	return nil
}

// UpdateDraft replaces the payload of a degree still in draft.
func (r *DegreeRepository) UpdateDraft(ctx context.Context, degree *models.Degree) error {
	degree.UpdatedAt = time.Now().UTC()
	const query = `UPDATE degrees SET name = :name, description = :description, duration_semesters = :duration_semesters,
semester_config = :semester_config, collaborators = :collaborators, updated_at = :updated_at
WHERE id = :id AND status = 'draft'`
	res, err := r.db.NamedExecContext(ctx, query, degree)
	if err != nil {
		return fmt.Errorf("update degree draft: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update degree draft rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// FindByID returns a degree with its payload.
func (r *DegreeRepository) FindByID(ctx context.Context, id string) (*models.Degree, error) {
	query := `SELECT ` + degreeColumns + ` FROM degrees WHERE id = $1`
	var degree models.Degree
	if err := r.db.GetContext(ctx, &degree, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find degree: %w", err)
	}
	return &degree, nil
}

// FindActiveByCode returns the active version of the degree family with code.
func (r *DegreeRepository) FindActiveByCode(ctx context.Context, code string) (*models.Degree, error) {
	query := `SELECT ` + degreeColumns + ` FROM degrees WHERE code = $1 AND status = 'active' LIMIT 1`
	var degree models.Degree
	if err := r.db.GetContext(ctx, &degree, query, models.NormalizeCode(code)); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find active degree: %w", err)
	}
	return &degree, nil
}

// List returns degrees matching filter with the total count.
func (r *DegreeRepository) List(ctx context.Context, filter models.ProgramFilter) ([]models.Degree, int, error) {
	var degrees []models.Degree
	total, err := r.list(ctx, degreeColumns, filter, &degrees)
	if err != nil {
		return nil, 0, err
	}
	return degrees, total, nil
}

// Family returns every version of the family rooted at rootID.
func (r *DegreeRepository) Family(ctx context.Context, rootID string) ([]models.Degree, error) {
	query := `SELECT ` + degreeColumns + ` FROM degrees WHERE id = $1 OR family_root_id = $1 ORDER BY version ASC`
	var degrees []models.Degree
	if err := r.db.SelectContext(ctx, &degrees, query, rootID); err != nil {
		return nil, fmt.Errorf("list degree versions: %w", err)
	}
	return degrees, nil
}
