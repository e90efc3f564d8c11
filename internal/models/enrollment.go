package models

import "time"

// EnrollmentStatus is the KRS workflow state.
type EnrollmentStatus string

const (
	EnrollmentDraft     EnrollmentStatus = "draft"
	EnrollmentSubmitted EnrollmentStatus = "submitted"
	EnrollmentApproved  EnrollmentStatus = "approved"
	EnrollmentRejected  EnrollmentStatus = "rejected"
)

// EnrollmentAction drives a status transition.
type EnrollmentAction string

const (
	ActionSubmit  EnrollmentAction = "submit"
	ActionApprove EnrollmentAction = "approve"
	ActionReject  EnrollmentAction = "reject"
	ActionReopen  EnrollmentAction = "reopen"
)

// Next returns the status reached by applying action. The rejected to draft
// edge exists only when allowReopen is set. Approved is terminal.
func (s EnrollmentStatus) Next(action EnrollmentAction, allowReopen bool) (EnrollmentStatus, bool) {
	switch {
	case s == EnrollmentDraft && action == ActionSubmit:
		return EnrollmentSubmitted, true
	case s == EnrollmentSubmitted && action == ActionApprove:
		return EnrollmentApproved, true
	case s == EnrollmentSubmitted && action == ActionReject:
		return EnrollmentRejected, true
	case s == EnrollmentRejected && action == ActionReopen && allowReopen:
		return EnrollmentDraft, true
	}
	return s, false
}

// Editable reports whether lines may be added or removed.
func (s EnrollmentStatus) Editable() bool {
	return s == EnrollmentDraft
}

// Enrollment is a student's study plan (KRS) for one term.
type Enrollment struct {
	ID           string           `db:"id" json:"id"`
	StudentID    string           `db:"student_id" json:"student_id"`
	TermID       string           `db:"term_id" json:"term_id"`
	Status       EnrollmentStatus `db:"status" json:"status"`
	TotalCredits int              `db:"total_credits" json:"total_credits"`
	ApprovedBy   *string          `db:"approved_by" json:"approved_by,omitempty"`
	ApprovedAt   *time.Time       `db:"approved_at" json:"approved_at,omitempty"`
	SubmittedAt  *time.Time       `db:"submitted_at" json:"submitted_at,omitempty"`
	Notes        *string          `db:"notes" json:"notes,omitempty"`
	CreatedAt    time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time        `db:"updated_at" json:"updated_at"`
}

// EnrollmentSummary is an enrollment with student and term display fields.
type EnrollmentSummary struct {
	Enrollment
	StudentNIM  string   `db:"student_nim" json:"student_nim"`
	StudentName string   `db:"student_name" json:"student_name"`
	YearLabel   string   `db:"year_label" json:"year_label"`
	TermName    TermName `db:"term_name" json:"term_name"`
}

// EnrollmentLine is one section on an enrollment.
type EnrollmentLine struct {
	ID           string    `db:"id" json:"id"`
	EnrollmentID string    `db:"enrollment_id" json:"enrollment_id"`
	SectionID    string    `db:"section_id" json:"section_id"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// EnrollmentLineDetail is a line joined with its section and course.
type EnrollmentLineDetail struct {
	LineID         string  `db:"line_id" json:"line_id"`
	SectionID      string  `db:"section_id" json:"section_id"`
	SectionCode    string  `db:"section_code" json:"section_code"`
	CourseID       string  `db:"course_id" json:"course_id"`
	CourseCode     string  `db:"course_code" json:"course_code"`
	CourseName     string  `db:"course_name" json:"course_name"`
	CreditHours    int     `db:"credit_hours" json:"credit_hours"`
	InstructorName string  `db:"instructor_name" json:"instructor_name"`
	RoomName       *string `db:"room_name" json:"room_name,omitempty"`
	DayOfWeek      *int    `db:"day_of_week" json:"day_of_week,omitempty"`
	StartTime      *string `db:"start_time" json:"start_time,omitempty"`
	EndTime        *string `db:"end_time" json:"end_time,omitempty"`
}

// EnrollmentFilter captures list filters for advisor and admin views.
type EnrollmentFilter struct {
	TermID    string
	StudentID string
	AdvisorID string
	Status    EnrollmentStatus
	Page      int
	PageSize  int
}
