package models

import (
	"time"

	"github.com/lib/pq"
)

// EnrollmentStatus represents the lifecycle of a semester enrollment request.
type EnrollmentStatus string

const (
	EnrollmentStatusDraft              EnrollmentStatus = "draft"
	EnrollmentStatusPendingHODApproval EnrollmentStatus = "pending_hod_approval"
	EnrollmentStatusApproved           EnrollmentStatus = "approved"
	// EnrollmentStatusRejected is only found on legacy rows; rejection now returns requests to draft.
	EnrollmentStatusRejected EnrollmentStatus = "rejected"
)

// Editable reports whether the owning student may still change the selection.
func (s EnrollmentStatus) Editable() bool {
	return s == EnrollmentStatusDraft || s == EnrollmentStatusRejected
}

// EnrollmentRequest is a student's course selection for one academic year and semester.
type EnrollmentRequest struct {
	ID              string           `db:"id" json:"id"`
	StudentID       string           `db:"student_id" json:"student_id"`
	AcademicYear    string           `db:"academic_year" json:"academic_year"`
	Semester        int              `db:"semester" json:"semester"`
	CourseCodes     pq.StringArray   `db:"course_codes" json:"course_codes"`
	Status          EnrollmentStatus `db:"status" json:"status"`
	SubmittedAt     *time.Time       `db:"submitted_at" json:"submitted_at,omitempty"`
	HODApprovedBy   *string          `db:"hod_approved_by" json:"hod_approved_by,omitempty"`
	HODApprovedAt   *time.Time       `db:"hod_approved_at" json:"hod_approved_at,omitempty"`
	RejectionReason *string          `db:"rejection_reason" json:"rejection_reason,omitempty"`
	CreatedAt       time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time        `db:"updated_at" json:"updated_at"`
}

// EnrollmentReviewItem pairs a request with the department of its student.
type EnrollmentReviewItem struct {
	EnrollmentRequest
	DepartmentCode string `db:"department_code" json:"department_code"`
}

// EnrollmentFilter provides filters for listing enrollment requests.
type EnrollmentFilter struct {
	StudentID      string
	DepartmentCode string
	AcademicYear   string
	Semester       int
	Status         EnrollmentStatus
	Page           int
	PageSize       int
}
