package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PassStatus is the pass/fail flag written by the grading workflow.
type PassStatus string

const (
	PassPassed PassStatus = "passed"
	PassFailed PassStatus = "failed"
	PassUnset  PassStatus = "unset"
)

// GradedCourse is one enrollment line with its term, course and final grade.
// Grade fields are empty when no grade has been recorded.
type GradedCourse struct {
	LineID       string              `db:"line_id" json:"line_id"`
	TermID       string              `db:"term_id" json:"term_id"`
	YearLabel    string              `db:"year_label" json:"year_label"`
	TermName     TermName            `db:"term_name" json:"term_name"`
	TermStart    time.Time           `db:"term_start" json:"-"`
	CourseCode   string              `db:"course_code" json:"course_code"`
	CourseName   string              `db:"course_name" json:"course_name"`
	CreditHours  int                 `db:"credit_hours" json:"credit_hours"`
	NumericScore decimal.NullDecimal `db:"numeric_score" json:"numeric_score"`
	LetterGrade  *string             `db:"letter_grade" json:"letter_grade,omitempty"`
	GradeIndex   decimal.NullDecimal `db:"grade_index" json:"grade_index"`
	Passed       *PassStatus         `db:"passed" json:"passed,omitempty"`
}

// GPAResult is a grade point average over a set of graded courses.
// QualityPoints and GPA are rendered with two decimals.
type GPAResult struct {
	TotalCredits  int    `json:"total_credits"`
	GradedCourses int    `json:"graded_courses"`
	QualityPoints string `json:"quality_points"`
	GPA           string `json:"gpa"`
}

// TermGPA is the IPS of one term.
type TermGPA struct {
	TermID    string   `json:"term_id"`
	YearLabel string   `json:"year_label"`
	TermName  TermName `json:"term_name"`
	GPAResult
}

// CumulativeGPA is the IPK together with the per-term breakdown in
// chronological order.
type CumulativeGPA struct {
	GPAResult
	Terms []TermGPA `json:"terms"`
}
