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

const programBaseColumns = `id, code, department_code, version, family_root_id, is_latest_version, status, collaborators,
created_by, approved_by, submitted_at, approved_at, published_at, rejection_reason, created_at, updated_at`

// ProgramRepository implements the lifecycle and version-family queries shared by
// every versioned program table. The payload columns are copied verbatim when a
// new version is derived from an existing row.
type ProgramRepository struct {
	db      *sqlx.DB
	kind    models.ProgramKind
	table   string
	payload []string
}

func newProgramRepository(db *sqlx.DB, kind models.ProgramKind, table string, payload []string) *ProgramRepository {
	return &ProgramRepository{db: db, kind: kind, table: table, payload: payload}
}

// Kind reports which program kind the repository is bound to.
func (r *ProgramRepository) Kind() models.ProgramKind {
	return r.kind
}

// Transaction runs fn inside a database transaction.
func (r *ProgramRepository) Transaction(ctx context.Context, fn func(q sqlx.ExtContext) error) error {
	return database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		return fn(tx)
	})
}

func (r *ProgramRepository) queryer(q sqlx.ExtContext) sqlx.ExtContext {
	if q == nil {
		return r.db
	}
	return q
}

// FindDefinition loads the shared columns of a program row.
func (r *ProgramRepository) FindDefinition(ctx context.Context, q sqlx.ExtContext, id string) (*models.ProgramDefinition, error) {
	return r.getDefinition(ctx, q, id, false)
}

// LockDefinition loads the shared columns of a program row holding a row lock.
func (r *ProgramRepository) LockDefinition(ctx context.Context, q sqlx.ExtContext, id string) (*models.ProgramDefinition, error) {
	return r.getDefinition(ctx, q, id, true)
}

func (r *ProgramRepository) getDefinition(ctx context.Context, q sqlx.ExtContext, id string, forUpdate bool) (*models.ProgramDefinition, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1%s`, programBaseColumns, r.table, lockClause(forUpdate))
	var def models.ProgramDefinition
	if err := sqlx.GetContext(ctx, r.queryer(q), &def, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find %s: %w", r.kind, err)
	}
	return &def, nil
}

// FindLatestByCode returns the latest version of the family owning code.
func (r *ProgramRepository) FindLatestByCode(ctx context.Context, q sqlx.ExtContext, code string) (*models.ProgramDefinition, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE code = $1 ORDER BY is_latest_version DESC, version DESC LIMIT 1`, programBaseColumns, r.table)
	var def models.ProgramDefinition
	if err := sqlx.GetContext(ctx, r.queryer(q), &def, query, code); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find %s by code: %w", r.kind, err)
	}
	return &def, nil
}

// ListFamily returns every member of the family rooted at rootID ordered by version.
func (r *ProgramRepository) ListFamily(ctx context.Context, q sqlx.ExtContext, rootID string, forUpdate bool) ([]models.ProgramDefinition, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1 OR family_root_id = $1 ORDER BY version ASC%s`,
		programBaseColumns, r.table, lockClause(forUpdate))
	var family []models.ProgramDefinition
	if err := sqlx.SelectContext(ctx, r.queryer(q), &family, query, rootID); err != nil {
		return nil, fmt.Errorf("list %s family: %w", r.kind, err)
	}
	return family, nil
}

// UpdateLifecycle persists the lifecycle columns of def provided the stored status
// still equals from. sql.ErrNoRows is returned when the guard no longer holds.
func (r *ProgramRepository) UpdateLifecycle(ctx context.Context, q sqlx.ExtContext, def *models.ProgramDefinition, from models.ProgramStatus) error {
	query := fmt.Sprintf(`UPDATE %s SET status = $1, submitted_at = $2, approved_by = $3, approved_at = $4,
published_at = $5, rejection_reason = $6, updated_at = $7
WHERE id = $8 AND status = $9`, r.table)
	res, err := r.queryer(q).ExecContext(ctx, query,
		def.Status, def.SubmittedAt, def.ApprovedBy, def.ApprovedAt,
		def.PublishedAt, def.RejectionReason, def.UpdatedAt,
		def.ID, from,
	)
	if err != nil {
		return writeError(fmt.Sprintf("update %s lifecycle", r.kind), err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update %s lifecycle rows: %w", r.kind, err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ArchiveActiveSiblings archives every active member of the family except keepID.
func (r *ProgramRepository) ArchiveActiveSiblings(ctx context.Context, q sqlx.ExtContext, rootID, keepID string, now time.Time) (int64, error) {
	query := fmt.Sprintf(`UPDATE %s SET status = $1, updated_at = $2
WHERE (id = $3 OR family_root_id = $3) AND id <> $4 AND status = $5`, r.table)
	res, err := r.queryer(q).ExecContext(ctx, query, models.ProgramStatusArchived, now, rootID, keepID, models.ProgramStatusActive)
	if err != nil {
		return 0, fmt.Errorf("archive %s siblings: %w", r.kind, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("archive %s siblings rows: %w", r.kind, err)
	}
	return affected, nil
}

// ClearLatestFlags unsets is_latest_version across the family.
func (r *ProgramRepository) ClearLatestFlags(ctx context.Context, q sqlx.ExtContext, rootID string, now time.Time) error {
	query := fmt.Sprintf(`UPDATE %s SET is_latest_version = FALSE, updated_at = $1
WHERE (id = $2 OR family_root_id = $2) AND is_latest_version`, r.table)
	if _, err := r.queryer(q).ExecContext(ctx, query, now, rootID); err != nil {
		return fmt.Errorf("clear %s latest flags: %w", r.kind, err)
	}
	return nil
}

// InsertVersion stores def as a new family member, copying the payload columns
// from the row identified by sourceID.
func (r *ProgramRepository) InsertVersion(ctx context.Context, q sqlx.ExtContext, sourceID string, def *models.ProgramDefinition) error {
	if def.ID == "" {
		def.ID = uuid.NewString()
	}
	payload := strings.Join(r.payload, ", ")
	query := fmt.Sprintf(`INSERT INTO %s (%s, %s)
SELECT $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, %s
FROM %s WHERE id = $17`, r.table, programBaseColumns, payload, payload, r.table)
	res, err := r.queryer(q).ExecContext(ctx, query,
		def.ID, def.Code, def.DepartmentCode, def.Version, def.FamilyRootID, def.IsLatestVersion,
		def.Status, def.Collaborators, def.CreatedBy, def.ApprovedBy, def.SubmittedAt,
		def.ApprovedAt, def.PublishedAt, def.RejectionReason, def.CreatedAt, def.UpdatedAt,
		sourceID,
	)
	if err != nil {
		return writeError(fmt.Sprintf("insert %s version", r.kind), err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert %s version rows: %w", r.kind, err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// filterClause renders the WHERE clause shared by catalog listings.
func (r *ProgramRepository) filterClause(filter models.ProgramFilter) (string, []interface{}) {
	var conditions []string
	var args []interface{}

	if filter.Code != "" {
		conditions = append(conditions, fmt.Sprintf("code = $%d", len(args)+1))
		args = append(args, models.NormalizeCode(filter.Code))
	}
	if filter.DepartmentCode != "" {
		conditions = append(conditions, fmt.Sprintf("department_code = $%d", len(args)+1))
		args = append(args, models.NormalizeCode(filter.DepartmentCode))
	}
	if len(filter.Status) > 0 {
		statuses := make([]string, len(filter.Status))
		for i, s := range filter.Status {
			statuses[i] = string(s)
		}
		conditions = append(conditions, fmt.Sprintf("status = ANY($%d)", len(args)+1))
		args = append(args, pq.StringArray(statuses))
	}
	if filter.LatestOnly {
		conditions = append(conditions, "is_latest_version")
	}

	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

// list selects columns from the bound table applying filter and pagination.
func (r *ProgramRepository) list(ctx context.Context, columns string, filter models.ProgramFilter, dest interface{}) (int, error) {
	clause, args := r.filterClause(filter)
	_, pageSize, offset := normalizePage(filter.Page, filter.PageSize)

	listQuery := fmt.Sprintf(`SELECT %s FROM %s%s ORDER BY code ASC, version DESC LIMIT %d OFFSET %d`,
		columns, r.table, clause, pageSize, offset)
	if err := r.db.SelectContext(ctx, dest, listQuery, args...); err != nil {
		return 0, fmt.Errorf("list %s: %w", r.kind, err)
	}

	var total int
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM %s%s`, r.table, clause)
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return 0, fmt.Errorf("count %s: %w", r.kind, err)
	}
	return total, nil
}
