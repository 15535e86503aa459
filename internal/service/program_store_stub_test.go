package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/academic-programs-api/internal/models"
	"github.com/noah-isme/academic-programs-api/internal/repository"
)

// memProgramStore mimics ProgramRepository including guarded updates, the
// storage uniqueness rules and transaction rollback.
type memProgramStore struct {
	mu        sync.Mutex
	kind      models.ProgramKind
	rows      map[string]models.ProgramDefinition
	seq       int
	insertErr error
}

func newMemProgramStore(kind models.ProgramKind) *memProgramStore {
	return &memProgramStore{kind: kind, rows: make(map[string]models.ProgramDefinition)}
}

func (m *memProgramStore) put(def models.ProgramDefinition) {
	m.rows[def.ID] = def
}

func (m *memProgramStore) get(id string) models.ProgramDefinition {
	return m.rows[id]
}

func (m *memProgramStore) family(rootID string) []models.ProgramDefinition {
	var out []models.ProgramDefinition
	for _, row := range m.rows {
		if row.RootID() == rootID {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out
}

func (m *memProgramStore) countStatus(rootID string, status models.ProgramStatus) int {
	n := 0
	for _, row := range m.family(rootID) {
		if row.Status == status {
			n++
		}
	}
	return n
}

func (m *memProgramStore) countLatest(rootID string) int {
	n := 0
	for _, row := range m.family(rootID) {
		if row.IsLatestVersion {
			n++
		}
	}
	return n
}

func (m *memProgramStore) Kind() models.ProgramKind { return m.kind }

func (m *memProgramStore) Transaction(ctx context.Context, fn func(q sqlx.ExtContext) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	snapshot := make(map[string]models.ProgramDefinition, len(m.rows))
	for k, v := range m.rows {
		snapshot[k] = v
	}
	if err := fn(nil); err != nil {
		m.rows = snapshot
		return err
	}
	return nil
}

func (m *memProgramStore) FindDefinition(ctx context.Context, q sqlx.ExtContext, id string) (*models.ProgramDefinition, error) {
	row, ok := m.rows[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &row, nil
}

func (m *memProgramStore) LockDefinition(ctx context.Context, q sqlx.ExtContext, id string) (*models.ProgramDefinition, error) {
	return m.FindDefinition(ctx, q, id)
}

func (m *memProgramStore) FindLatestByCode(ctx context.Context, q sqlx.ExtContext, code string) (*models.ProgramDefinition, error) {
	for _, row := range m.rows {
		if row.Code == code && row.IsLatestVersion {
			found := row
			return &found, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *memProgramStore) ListFamily(ctx context.Context, q sqlx.ExtContext, rootID string, forUpdate bool) ([]models.ProgramDefinition, error) {
	return m.family(rootID), nil
}

func (m *memProgramStore) UpdateLifecycle(ctx context.Context, q sqlx.ExtContext, def *models.ProgramDefinition, from models.ProgramStatus) error {
	row, ok := m.rows[def.ID]
	if !ok || row.Status != from {
		return sql.ErrNoRows
	}
	if def.Status == models.ProgramStatusActive {
		for _, sibling := range m.family(row.RootID()) {
			if sibling.ID != def.ID && sibling.Status == models.ProgramStatusActive {
				return fmt.Errorf("update lifecycle: %w", repository.ErrUniqueViolation)
			}
		}
	}
	m.rows[def.ID] = *def
	return nil
}

func (m *memProgramStore) ArchiveActiveSiblings(ctx context.Context, q sqlx.ExtContext, rootID, keepID string, now time.Time) (int64, error) {
	var n int64
	for _, row := range m.family(rootID) {
		if row.ID != keepID && row.Status == models.ProgramStatusActive {
			row.Status = models.ProgramStatusArchived
			row.UpdatedAt = now
			m.rows[row.ID] = row
			n++
		}
	}
	return n, nil
}

func (m *memProgramStore) ClearLatestFlags(ctx context.Context, q sqlx.ExtContext, rootID string, now time.Time) error {
	for _, row := range m.family(rootID) {
		if row.IsLatestVersion {
			row.IsLatestVersion = false
			row.UpdatedAt = now
			m.rows[row.ID] = row
		}
	}
	return nil
}

func (m *memProgramStore) InsertVersion(ctx context.Context, q sqlx.ExtContext, sourceID string, def *models.ProgramDefinition) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	if _, ok := m.rows[sourceID]; !ok {
		return sql.ErrNoRows
	}
	rootID := def.RootID()
	for _, row := range m.family(rootID) {
		if row.Version == def.Version || (row.IsLatestVersion && def.IsLatestVersion) {
			return fmt.Errorf("insert version: %w", repository.ErrUniqueViolation)
		}
	}
	if def.ID == "" {
		m.seq++
		def.ID = fmt.Sprintf("%s-gen-%d", m.kind, m.seq)
	}
	m.rows[def.ID] = *def
	return nil
}

type auditRecorderStub struct {
	mu   sync.Mutex
	logs []models.AuditLog
	err  error
}

func (a *auditRecorderStub) Record(ctx context.Context, log *models.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	a.logs = append(a.logs, *log)
	return nil
}

func (a *auditRecorderStub) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.logs))
	for i, log := range a.logs {
		out[i] = log.Action
	}
	return out
}

type notifierStub struct {
	mu     sync.Mutex
	events []string
}

func (n *notifierStub) Notify(ctx context.Context, event string, payload map[string]interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

var errStoreDown = errors.New("connection reset by peer")

var (
	creatorCtx  = models.AuthContext{ActorID: "u-creator", Role: models.RoleFaculty, DepartmentCode: "CS"}
	collabCtx   = models.AuthContext{ActorID: "u-collab", Role: models.RoleFaculty, DepartmentCode: "MATH"}
	csMemberCtx = models.AuthContext{ActorID: "u-member", Role: models.RoleFaculty, DepartmentCode: "CS"}
	csHODCtx    = models.AuthContext{ActorID: "u-hod-cs", Role: models.RoleFaculty, DepartmentCode: "CS", IsHeadOfDepartment: true}
	eeHODCtx    = models.AuthContext{ActorID: "u-hod-ee", Role: models.RoleFaculty, DepartmentCode: "EE", IsHeadOfDepartment: true}
	outsiderCtx = models.AuthContext{ActorID: "u-outsider", Role: models.RoleFaculty, DepartmentCode: "EE"}
	adminCtx    = models.AuthContext{ActorID: "u-admin", Role: models.RoleAdmin}
)

func seedDefinition(id string, version int, status models.ProgramStatus, rootID *string, latest bool) models.ProgramDefinition {
	created := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	return models.ProgramDefinition{
		ID:              id,
		Code:            "CS-BSC",
		DepartmentCode:  "CS",
		Version:         version,
		FamilyRootID:    rootID,
		IsLatestVersion: latest,
		Status:          status,
		Collaborators:   []string{"u-collab"},
		CreatedBy:       "u-creator",
		CreatedAt:       created,
		UpdatedAt:       created,
	}
}

func strPtr(s string) *string { return &s }
