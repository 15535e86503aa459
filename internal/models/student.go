package models

import "time"

// Student is the academic profile of a user with the STUDENT role; ID equals the user id.
type Student struct {
	ID              string    `db:"id" json:"id"`
	FullName        string    `db:"full_name" json:"full_name"`
	DegreeCode      string    `db:"degree_code" json:"degree_code"`
	DepartmentCode  string    `db:"department_code" json:"department_code"`
	CurrentSemester int       `db:"current_semester" json:"current_semester"`
	Active          bool      `db:"active" json:"active"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}
