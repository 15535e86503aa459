package models

import (
	"strings"
	"time"

	"github.com/lib/pq"
)

// ProgramKind distinguishes the program definition tables sharing one lifecycle.
type ProgramKind string

const (
	ProgramKindDegree ProgramKind = "degree"
	ProgramKindCourse ProgramKind = "course"
)

// ProgramStatus captures the approval lifecycle of a program definition version.
type ProgramStatus string

const (
	ProgramStatusDraft           ProgramStatus = "draft"
	ProgramStatusPendingApproval ProgramStatus = "pending_approval"
	ProgramStatusApproved        ProgramStatus = "approved"
	ProgramStatusActive          ProgramStatus = "active"
	ProgramStatusArchived        ProgramStatus = "archived"
)

// InFlight reports whether a version with this status is still moving towards activation.
func (s ProgramStatus) InFlight() bool {
	switch s {
	case ProgramStatusDraft, ProgramStatusPendingApproval, ProgramStatusApproved:
		return true
	}
	return false
}

// Versionable reports whether a new version may be derived from this status.
func (s ProgramStatus) Versionable() bool {
	return s == ProgramStatusApproved || s == ProgramStatusActive
}

// ProgramDefinition holds the columns shared by every versioned program entity.
type ProgramDefinition struct {
	ID              string         `db:"id" json:"id"`
	Code            string         `db:"code" json:"code"`
	DepartmentCode  string         `db:"department_code" json:"department_code"`
	Version         int            `db:"version" json:"version"`
	FamilyRootID    *string        `db:"family_root_id" json:"family_root_id,omitempty"`
	IsLatestVersion bool           `db:"is_latest_version" json:"is_latest_version"`
	Status          ProgramStatus  `db:"status" json:"status"`
	Collaborators   pq.StringArray `db:"collaborators" json:"collaborators"`
	CreatedBy       string         `db:"created_by" json:"created_by"`
	ApprovedBy      *string        `db:"approved_by" json:"approved_by,omitempty"`
	SubmittedAt     *time.Time     `db:"submitted_at" json:"submitted_at,omitempty"`
	ApprovedAt      *time.Time     `db:"approved_at" json:"approved_at,omitempty"`
	PublishedAt     *time.Time     `db:"published_at" json:"published_at,omitempty"`
	RejectionReason *string        `db:"rejection_reason" json:"rejection_reason,omitempty"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at" json:"updated_at"`
}

// RootID returns the identifier shared by every member of the version family.
func (p *ProgramDefinition) RootID() string {
	if p.FamilyRootID != nil && *p.FamilyRootID != "" {
		return *p.FamilyRootID
	}
	return p.ID
}

// HasCollaborator reports whether userID was granted shared write access.
func (p *ProgramDefinition) HasCollaborator(userID string) bool {
	for _, c := range p.Collaborators {
		if c == userID {
			return true
		}
	}
	return false
}

// NewVersionDraft derives the next draft of the family. Identifiers, timestamps,
// approval metadata, version pointers and status are never carried over; business
// fields (code, department, collaborators) are.
func (p ProgramDefinition) NewVersionDraft(actorID string, version int, now time.Time) ProgramDefinition {
	rootID := p.RootID()
	collaborators := make(pq.StringArray, len(p.Collaborators))
	copy(collaborators, p.Collaborators)
	return ProgramDefinition{
		Code:            p.Code,
		DepartmentCode:  p.DepartmentCode,
		Version:         version,
		FamilyRootID:    &rootID,
		IsLatestVersion: true,
		Status:          ProgramStatusDraft,
		Collaborators:   collaborators,
		CreatedBy:       actorID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// NormalizeCode trims and upper-cases a business key.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ProgramFilter constrains catalog listings.
type ProgramFilter struct {
	Code           string
	DepartmentCode string
	Status         []ProgramStatus
	LatestOnly     bool
	Page           int
	PageSize       int
}
