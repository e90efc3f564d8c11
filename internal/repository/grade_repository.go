package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/siakad-api/internal/models"
)

// Every line counts regardless of enrollment status; ungraded lines carry NULL grade columns.
const gradedCoursesQuery = `SELECT el.id AS line_id, t.id AS term_id, t.year_label, t.term_name, t.start_date AS term_start,
        c.code AS course_code, c.name AS course_name, c.credit_hours,
        fg.numeric_score, fg.letter_grade, fg.grade_index, fg.passed
        FROM enrollments e
        JOIN academic_terms t ON t.id = e.term_id
        JOIN enrollment_lines el ON el.enrollment_id = e.id
        JOIN course_sections cs ON cs.id = el.section_id
        JOIN courses c ON c.id = cs.course_id
        LEFT JOIN final_grades fg ON fg.enrollment_line_id = el.id
        WHERE e.student_id = $1`

const gradedCoursesOrder = ` ORDER BY t.start_date DESC, c.code ASC`

// GradeRepository reads final grades joined with their courses and terms.
type GradeRepository struct {
	db *sqlx.DB
}

// NewGradeRepository constructs a GradeRepository.
func NewGradeRepository(db *sqlx.DB) *GradeRepository {
	return &GradeRepository{db: db}
}

// GradedCourses lists every course on the student's enrollments,
// newest term first. An empty termID means all terms.
func (r *GradeRepository) GradedCourses(ctx context.Context, studentID, termID string) ([]models.GradedCourse, error) {
	query := gradedCoursesQuery
	args := []interface{}{studentID}
	if termID != "" {
		query += ` AND e.term_id = $2`
		args = append(args, termID)
	}

	var courses []models.GradedCourse
	if err := r.db.SelectContext(ctx, &courses, query+gradedCoursesOrder, args...); err != nil {
		return nil, fmt.Errorf("list graded courses: %w", err)
	}
	return courses, nil
}
