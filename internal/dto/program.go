package dto

import "github.com/noah-isme/academic-programs-api/internal/models"

// CreateDegreeRequest registers version 1 of a new degree family.
type CreateDegreeRequest struct {
	Code              string                `json:"code" validate:"required,max=32"`
	DepartmentCode    string                `json:"departmentCode" validate:"required,max=32"`
	Name              string                `json:"name" validate:"required,max=200"`
	Description       string                `json:"description" validate:"max=4000"`
	DurationSemesters int                   `json:"durationSemesters" validate:"required,min=1,max=20"`
	SemesterConfig    models.SemesterConfig `json:"semesterConfig"`
	Collaborators     []string              `json:"collaborators" validate:"omitempty,dive,required"`
}

// UpdateDegreeRequest replaces the editable payload of a degree draft.
type UpdateDegreeRequest struct {
	Name              string                `json:"name" validate:"required,max=200"`
	Description       string                `json:"description" validate:"max=4000"`
	DurationSemesters int                   `json:"durationSemesters" validate:"required,min=1,max=20"`
	SemesterConfig    models.SemesterConfig `json:"semesterConfig"`
	Collaborators     []string              `json:"collaborators" validate:"omitempty,dive,required"`
}

// CreateCourseRequest registers version 1 of a new course family.
type CreateCourseRequest struct {
	Code           string                `json:"code" validate:"required,max=32"`
	DepartmentCode string                `json:"departmentCode" validate:"required,max=32"`
	Title          string                `json:"title" validate:"required,max=200"`
	Description    string                `json:"description" validate:"max=4000"`
	Credits        int                   `json:"credits" validate:"required,min=1,max=30"`
	Faculty        models.FacultyDetails `json:"faculty"`
	Collaborators  []string              `json:"collaborators" validate:"omitempty,dive,required"`
}

// UpdateCourseRequest replaces the editable payload of a course draft.
type UpdateCourseRequest struct {
	Title         string                `json:"title" validate:"required,max=200"`
	Description   string                `json:"description" validate:"max=4000"`
	Credits       int                   `json:"credits" validate:"required,min=1,max=30"`
	Faculty       models.FacultyDetails `json:"faculty"`
	Collaborators []string              `json:"collaborators" validate:"omitempty,dive,required"`
}

// RejectRequest carries the reviewer's reason for sending a definition back to draft.
type RejectRequest struct {
	Reason string `json:"reason"`
}

// ProgramListQuery captures catalog list query parameters.
type ProgramListQuery struct {
	Code           string `form:"code"`
	DepartmentCode string `form:"departmentCode"`
	Status         string `form:"status"`
	LatestOnly     bool   `form:"latestOnly"`
	Page           int    `form:"page"`
	PageSize       int    `form:"pageSize"`
}
