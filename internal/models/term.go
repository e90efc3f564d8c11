package models

import (
	"fmt"
	"time"
)

// TermName is the half of the academic year.
type TermName string

const (
	TermGanjil TermName = "Ganjil"
	TermGenap  TermName = "Genap"
)

// AcademicTerm is one semester of an academic year, e.g. 2024/2025 Ganjil.
// IsActive is derived from the active_term pointer row.
type AcademicTerm struct {
	ID        string    `db:"id" json:"id"`
	YearLabel string    `db:"year_label" json:"year_label"`
	TermName  TermName  `db:"term_name" json:"term_name"`
	StartDate time.Time `db:"start_date" json:"start_date"`
	EndDate   time.Time `db:"end_date" json:"end_date"`
	IsActive  bool      `db:"is_active" json:"is_active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Label renders "2024/2025 Ganjil".
func (t AcademicTerm) Label() string {
	return fmt.Sprintf("%s %s", t.YearLabel, t.TermName)
}

// TermFilter defines filters supported by list endpoints.
type TermFilter struct {
	YearLabel string
	TermName  TermName
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
