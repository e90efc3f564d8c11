package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/siakad-api/internal/models"
)

const sectionDetailSelect = `SELECT cs.id, cs.section_code, cs.course_id, cs.instructor_id, cs.term_id, cs.room_id, cs.capacity, cs.seats_filled, cs.day_of_week, cs.start_time, cs.end_time, cs.created_at, cs.updated_at,
        c.code AS course_code, c.name AS course_name, c.credit_hours, c.semester_number, l.name AS instructor_name, r.name AS room_name
        FROM course_sections cs
        JOIN courses c ON c.id = cs.course_id
        JOIN lecturers l ON l.id = cs.instructor_id
        LEFT JOIN rooms r ON r.id = cs.room_id`

const sectionAvailableQuery = sectionDetailSelect + `
        WHERE cs.term_id = $1 AND cs.id NOT IN (
            SELECT el.section_id FROM enrollment_lines el JOIN enrollments e ON e.id = el.enrollment_id
            WHERE e.student_id = $2 AND e.term_id = $1)
        ORDER BY c.code, cs.section_code`

// SectionRepository persists course sections (kelas).
type SectionRepository struct {
	db *sqlx.DB
}

// NewSectionRepository constructs a SectionRepository.
func NewSectionRepository(db *sqlx.DB) *SectionRepository {
	return &SectionRepository{db: db}
}

// List returns section details for the filter, ordered by course code.
func (r *SectionRepository) List(ctx context.Context, filter models.SectionFilter) ([]models.SectionDetail, int, error) {
	where := " WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.TermID != "" {
		conditions = append(conditions, fmt.Sprintf("cs.term_id = $%d", len(args)+1))
		args = append(args, filter.TermID)
	}
	if filter.CourseID != "" {
		conditions = append(conditions, fmt.Sprintf("cs.course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.InstructorID != "" {
		conditions = append(conditions, fmt.Sprintf("cs.instructor_id = $%d", len(args)+1))
		args = append(args, filter.InstructorID)
	}
	if len(conditions) > 0 {
		where += " AND " + strings.Join(conditions, " AND ")
	}

	limit, offset := pageBounds(filter.Page, filter.PageSize)
	query := fmt.Sprintf("%s%s ORDER BY c.code, cs.section_code LIMIT %d OFFSET %d", sectionDetailSelect, where, limit, offset)

	var sections []models.SectionDetail
	if err := r.db.SelectContext(ctx, &sections, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list sections: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM course_sections cs"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count sections: %w", err)
	}
	return sections, total, nil
}

// FindByID loads a section with its display fields.
func (r *SectionRepository) FindByID(ctx context.Context, id string) (*models.SectionDetail, error) {
	var section models.SectionDetail
	if err := r.db.GetContext(ctx, &section, sectionDetailSelect+` WHERE cs.id = $1`, id); err != nil {
		return nil, err
	}
	return &section, nil
}

// ListAvailable returns the term's sections the student has not yet put on their enrollment.
func (r *SectionRepository) ListAvailable(ctx context.Context, termID, studentID string) ([]models.SectionDetail, error) {
	var sections []models.SectionDetail
	if err := r.db.SelectContext(ctx, &sections, sectionAvailableQuery, termID, studentID); err != nil {
		return nil, fmt.Errorf("list available sections: %w", err)
	}
	return sections, nil
}

// Create inserts a section with zero seats filled.
func (r *SectionRepository) Create(ctx context.Context, section *models.CourseSection) error {
	if section.ID == "" {
		section.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	section.SeatsFilled = 0
	section.CreatedAt = now
	section.UpdatedAt = now

	const query = `INSERT INTO course_sections (id, section_code, course_id, instructor_id, term_id, room_id, capacity, seats_filled, day_of_week, start_time, end_time, created_at, updated_at) VALUES (:id, :section_code, :course_id, :instructor_id, :term_id, :room_id, :capacity, :seats_filled, :day_of_week, :start_time, :end_time, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, section); err != nil {
		return fmt.Errorf("create section: %w", err)
	}
	return nil
}
