package models

import "time"

// StudentStatus is the academic standing of a student.
type StudentStatus string

const (
	StudentActive    StudentStatus = "active"
	StudentOnLeave   StudentStatus = "leave"
	StudentGraduated StudentStatus = "graduated"
	StudentDropped   StudentStatus = "dropped"
)

// Student is an enrolled learner (mahasiswa). NIM is the external identifier.
type Student struct {
	ID              string        `db:"id" json:"id"`
	UserID          *string       `db:"user_id" json:"user_id,omitempty"`
	NIM             string        `db:"nim" json:"nim"`
	Name            string        `db:"name" json:"name"`
	ProgramID       string        `db:"program_id" json:"program_id"`
	ProgramName     string        `db:"program_name" json:"program_name"`
	CohortYear      int           `db:"cohort_year" json:"cohort_year"`
	CurrentSemester int           `db:"current_semester" json:"current_semester"`
	Status          StudentStatus `db:"status" json:"status"`
	AdvisorID       *string       `db:"advisor_id" json:"advisor_id,omitempty"`
	AdvisorName     *string       `db:"advisor_name" json:"advisor_name,omitempty"`
	CreatedAt       time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time     `db:"updated_at" json:"updated_at"`
}

// StudentFilter captures list filters for students.
type StudentFilter struct {
	ProgramID  string
	AdvisorID  string
	Status     StudentStatus
	CohortYear int
	Search     string
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}
