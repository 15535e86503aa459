package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// InstructorKind tags the slot an instructor reference occupies.
type InstructorKind string

const (
	InstructorPrimary InstructorKind = "primary"
	InstructorCo      InstructorKind = "co_instructor"
	InstructorGuest   InstructorKind = "guest_lecturer"
	InstructorLab     InstructorKind = "lab_instructor"
	InstructorListed  InstructorKind = "listed"
)

// InstructorRef points at a user; Name is filled in on read.
type InstructorRef struct {
	Kind   InstructorKind `json:"kind"`
	UserID string         `json:"userId"`
	Name   string         `json:"name,omitempty"`
	Role   string         `json:"role,omitempty"`
}

// FacultyDetails is the closed set of instructor reference shapes a course may carry.
type FacultyDetails struct {
	Primary        *InstructorRef  `json:"primary,omitempty"`
	CoInstructors  []InstructorRef `json:"coInstructors,omitempty"`
	GuestLecturers []InstructorRef `json:"guestLecturers,omitempty"`
	LabInstructors []InstructorRef `json:"labInstructors,omitempty"`
	Instructors    []InstructorRef `json:"instructors,omitempty"`
}

// Refs returns every reference tagged with the kind of the slot holding it.
func (f *FacultyDetails) Refs() []*InstructorRef {
	refs := make([]*InstructorRef, 0, 1+len(f.CoInstructors)+len(f.GuestLecturers)+len(f.LabInstructors)+len(f.Instructors))
	if f.Primary != nil {
		f.Primary.Kind = InstructorPrimary
		refs = append(refs, f.Primary)
	}
	slots := []struct {
		kind InstructorKind
		list []InstructorRef
	}{
		{InstructorCo, f.CoInstructors},
		{InstructorGuest, f.GuestLecturers},
		{InstructorLab, f.LabInstructors},
		{InstructorListed, f.Instructors},
	}
	for _, slot := range slots {
		for i := range slot.list {
			slot.list[i].Kind = slot.kind
			refs = append(refs, &slot.list[i])
		}
	}
	return refs
}

// UserIDs lists the distinct non-empty user ids referenced, in slot order.
func (f *FacultyDetails) UserIDs() []string {
	seen := make(map[string]struct{})
	ids := make([]string, 0)
	for _, ref := range f.Refs() {
		if ref.UserID == "" {
			continue
		}
		if _, ok := seen[ref.UserID]; ok {
			continue
		}
		seen[ref.UserID] = struct{}{}
		ids = append(ids, ref.UserID)
	}
	return ids
}

// Value implements driver.Valuer storing the details as JSONB.
func (f FacultyDetails) Value() (driver.Value, error) {
	return json.Marshal(f)
}

// Scan implements sql.Scanner.
func (f *FacultyDetails) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*f = FacultyDetails{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("scan faculty details: unsupported type %T", src)
	}
	details := FacultyDetails{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &details); err != nil {
			return fmt.Errorf("scan faculty details: %w", err)
		}
	}
	*f = details
	return nil
}

// Course is a versioned course definition.
type Course struct {
	ProgramDefinition
	Title       string         `db:"title" json:"title"`
	Description string         `db:"description" json:"description"`
	Credits     int            `db:"credits" json:"credits"`
	Faculty     FacultyDetails `db:"faculty" json:"faculty"`
}
