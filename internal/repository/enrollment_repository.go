package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/siakad-api/internal/models"
)

const enrollmentColumns = `id, student_id, term_id, status, total_credits, approved_by, approved_at, submitted_at, notes, created_at, updated_at`

const (
	enrollmentInsertDraftQuery   = `INSERT INTO enrollments (id, student_id, term_id, status, total_credits, created_at, updated_at) VALUES ($1, $2, $3, 'draft', 0, $4, $4) ON CONFLICT (student_id, term_id) DO NOTHING`
	enrollmentByStudentTermQuery = `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE student_id = $1 AND term_id = $2`
	enrollmentByIDQuery          = `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE id = $1`
	enrollmentHasSectionQuery    = `SELECT EXISTS (SELECT 1 FROM enrollment_lines el JOIN enrollments e ON e.id = el.enrollment_id WHERE e.student_id = $1 AND el.section_id = $2)`
	enrollmentLockQuery          = `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE id = $1 FOR UPDATE`
	enrollmentLockStatusQuery    = `SELECT status FROM enrollments WHERE id = $1 FOR UPDATE`
	enrollmentTransitionQuery    = `UPDATE enrollments SET status = $2, submitted_at = $3, approved_by = $4, approved_at = $5, notes = $6, updated_at = $7 WHERE id = $1`
	enrollmentRecountQuery       = `UPDATE enrollments SET total_credits = (SELECT COALESCE(SUM(c.credit_hours), 0) FROM enrollment_lines el JOIN course_sections cs ON cs.id = el.section_id JOIN courses c ON c.id = cs.course_id WHERE el.enrollment_id = $1), updated_at = $2 WHERE id = $1 RETURNING total_credits`

	sectionLockQuery        = `SELECT term_id, capacity, seats_filled FROM course_sections WHERE id = $1 FOR UPDATE`
	sectionReserveSeatQuery = `UPDATE course_sections SET seats_filled = seats_filled + 1, updated_at = $2 WHERE id = $1 AND seats_filled < capacity`
	sectionReleaseSeatQuery = `UPDATE course_sections SET seats_filled = GREATEST(seats_filled - 1, 0), updated_at = $2 WHERE id = $1`

	lineExistsQuery = `SELECT EXISTS (SELECT 1 FROM enrollment_lines WHERE enrollment_id = $1 AND section_id = $2)`
	lineInsertQuery = `INSERT INTO enrollment_lines (id, enrollment_id, section_id, created_at) VALUES ($1, $2, $3, $4)`
	lineDeleteQuery = `DELETE FROM enrollment_lines WHERE id = $1 AND enrollment_id = $2 RETURNING section_id`
	lineCountQuery  = `SELECT COUNT(*) FROM enrollment_lines WHERE enrollment_id = $1`

	enrollmentLinesQuery = `SELECT el.id AS line_id, cs.id AS section_id, cs.section_code, c.id AS course_id, c.code AS course_code, c.name AS course_name, c.credit_hours, l.name AS instructor_name, r.name AS room_name, cs.day_of_week, cs.start_time, cs.end_time
        FROM enrollment_lines el
        JOIN course_sections cs ON cs.id = el.section_id
        JOIN courses c ON c.id = cs.course_id
        JOIN lecturers l ON l.id = cs.instructor_id
        LEFT JOIN rooms r ON r.id = cs.room_id
        WHERE el.enrollment_id = $1
        ORDER BY c.code, cs.section_code`

	enrollmentSummarySelect = `SELECT e.id, e.student_id, e.term_id, e.status, e.total_credits, e.approved_by, e.approved_at, e.submitted_at, e.notes, e.created_at, e.updated_at,
        s.nim AS student_nim, s.name AS student_name, t.year_label, t.term_name
        FROM enrollments e
        JOIN students s ON s.id = e.student_id
        JOIN academic_terms t ON t.id = e.term_id`
)

// TransitionParams describes a status change on an enrollment.
type TransitionParams struct {
	EnrollmentID string
	Action       models.EnrollmentAction
	ActorID      *string
	Notes        *string
	AllowReopen  bool
}

// EnrollmentRepository persists study plans (KRS) and their lines. All
// mutations run in a transaction that locks the enrollment row first.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs an EnrollmentRepository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// GetOrCreateDraft returns the student's enrollment for the term, inserting an
// empty draft when none exists. created reports whether this call inserted it.
func (r *EnrollmentRepository) GetOrCreateDraft(ctx context.Context, studentID, termID string) (*models.Enrollment, bool, error) {
	res, err := r.db.ExecContext(ctx, enrollmentInsertDraftQuery, uuid.NewString(), studentID, termID, time.Now().UTC())
	if err != nil {
		return nil, false, fmt.Errorf("insert draft enrollment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("draft enrollment rows affected: %w", err)
	}

	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, enrollmentByStudentTermQuery, studentID, termID); err != nil {
		return nil, false, fmt.Errorf("load draft enrollment: %w", err)
	}
	return &enrollment, affected == 1, nil
}

// FindByStudentTerm returns sql.ErrNoRows when the student has no enrollment for the term.
func (r *EnrollmentRepository) FindByStudentTerm(ctx context.Context, studentID, termID string) (*models.Enrollment, error) {
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, enrollmentByStudentTermQuery, studentID, termID); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// FindByID loads an enrollment.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, enrollmentByIDQuery, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// FindSummary loads an enrollment with student and term display fields.
func (r *EnrollmentRepository) FindSummary(ctx context.Context, id string) (*models.EnrollmentSummary, error) {
	var summary models.EnrollmentSummary
	if err := r.db.GetContext(ctx, &summary, enrollmentSummarySelect+` WHERE e.id = $1`, id); err != nil {
		return nil, err
	}
	return &summary, nil
}

// ListLines returns the lines of an enrollment with section and course detail.
func (r *EnrollmentRepository) ListLines(ctx context.Context, enrollmentID string) ([]models.EnrollmentLineDetail, error) {
	var lines []models.EnrollmentLineDetail
	if err := r.db.SelectContext(ctx, &lines, enrollmentLinesQuery, enrollmentID); err != nil {
		return nil, fmt.Errorf("list enrollment lines: %w", err)
	}
	return lines, nil
}

// HasSection reports whether the section is on any of the student's enrollments.
func (r *EnrollmentRepository) HasSection(ctx context.Context, studentID, sectionID string) (bool, error) {
	var exists bool
	if err := r.db.GetContext(ctx, &exists, enrollmentHasSectionQuery, studentID, sectionID); err != nil {
		return false, fmt.Errorf("check enrolled section: %w", err)
	}
	return exists, nil
}

// List returns enrollment summaries for advisor and admin views.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentSummary, int, error) {
	where := " WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.TermID != "" {
		conditions = append(conditions, fmt.Sprintf("e.term_id = $%d", len(args)+1))
		args = append(args, filter.TermID)
	}
	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("e.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.AdvisorID != "" {
		conditions = append(conditions, fmt.Sprintf("s.advisor_id = $%d", len(args)+1))
		args = append(args, filter.AdvisorID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("e.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if len(conditions) > 0 {
		where += " AND " + strings.Join(conditions, " AND ")
	}

	limit, offset := pageBounds(filter.Page, filter.PageSize)
	query := fmt.Sprintf("%s%s ORDER BY e.updated_at DESC LIMIT %d OFFSET %d", enrollmentSummarySelect, where, limit, offset)

	var items []models.EnrollmentSummary
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM enrollments e JOIN students s ON s.id = e.student_id" + where
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return items, total, nil
}

// AddLine puts a section on a draft enrollment, taking one seat and
// recomputing the credit total. termID is the term the section must belong to.
func (r *EnrollmentRepository) AddLine(ctx context.Context, enrollmentID, termID, sectionID string) (*models.EnrollmentLine, int, error) {
	line := &models.EnrollmentLine{
		ID:           uuid.NewString(),
		EnrollmentID: enrollmentID,
		SectionID:    sectionID,
	}
	var totalCredits int

	err := withTx(ctx, r.db, "add enrollment line", func(tx *sqlx.Tx) error {
		if err := lockDraft(ctx, tx, enrollmentID); err != nil {
			return err
		}

		var section struct {
			TermID      string `db:"term_id"`
			Capacity    int    `db:"capacity"`
			SeatsFilled int    `db:"seats_filled"`
		}
		if err := tx.GetContext(ctx, &section, sectionLockQuery, sectionID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrSectionUnavailable
			}
			return fmt.Errorf("lock section: %w", err)
		}
		if section.TermID != termID {
			return ErrSectionUnavailable
		}

		var exists bool
		if err := tx.GetContext(ctx, &exists, lineExistsQuery, enrollmentID, sectionID); err != nil {
			return fmt.Errorf("check duplicate line: %w", err)
		}
		if exists {
			return ErrDuplicateLine
		}
		if section.SeatsFilled >= section.Capacity {
			return ErrSectionFull
		}

		now := time.Now().UTC()
		res, err := tx.ExecContext(ctx, sectionReserveSeatQuery, sectionID, now)
		if err != nil {
			return fmt.Errorf("reserve seat: %w", err)
		}
		if affected, err := res.RowsAffected(); err != nil {
			return fmt.Errorf("reserve seat rows affected: %w", err)
		} else if affected == 0 {
			return ErrSectionFull
		}

		line.CreatedAt = now
		if _, err := tx.ExecContext(ctx, lineInsertQuery, line.ID, enrollmentID, sectionID, now); err != nil {
			if IsUniqueViolation(err) {
				return ErrDuplicateLine
			}
			return fmt.Errorf("insert enrollment line: %w", err)
		}

		return recountCredits(ctx, tx, enrollmentID, now, &totalCredits)
	})
	if err != nil {
		return nil, 0, err
	}
	return line, totalCredits, nil
}

// RemoveLine deletes a line from a draft enrollment and releases its seat.
func (r *EnrollmentRepository) RemoveLine(ctx context.Context, enrollmentID, lineID string) (int, error) {
	var totalCredits int
	err := withTx(ctx, r.db, "remove enrollment line", func(tx *sqlx.Tx) error {
		if err := lockDraft(ctx, tx, enrollmentID); err != nil {
			return err
		}

		var sectionID string
		if err := tx.GetContext(ctx, &sectionID, lineDeleteQuery, lineID, enrollmentID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrLineNotFound
			}
			return fmt.Errorf("delete enrollment line: %w", err)
		}

		now := time.Now().UTC()
		if _, err := tx.ExecContext(ctx, sectionReleaseSeatQuery, sectionID, now); err != nil {
			return fmt.Errorf("release seat: %w", err)
		}
		return recountCredits(ctx, tx, enrollmentID, now, &totalCredits)
	})
	if err != nil {
		return 0, err
	}
	return totalCredits, nil
}

// Transition applies a workflow action. Submitting requires at least one line.
func (r *EnrollmentRepository) Transition(ctx context.Context, params TransitionParams) (*models.Enrollment, error) {
	var enrollment models.Enrollment
	err := withTx(ctx, r.db, "transition enrollment", func(tx *sqlx.Tx) error {
		if err := tx.GetContext(ctx, &enrollment, enrollmentLockQuery, params.EnrollmentID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return err
			}
			return fmt.Errorf("lock enrollment: %w", err)
		}

		next, ok := enrollment.Status.Next(params.Action, params.AllowReopen)
		if !ok {
			return ErrStatusConflict
		}

		if params.Action == models.ActionSubmit {
			var lines int
			if err := tx.GetContext(ctx, &lines, lineCountQuery, params.EnrollmentID); err != nil {
				return fmt.Errorf("count enrollment lines: %w", err)
			}
			if lines == 0 {
				return ErrNoLines
			}
		}

		now := time.Now().UTC()
		switch params.Action {
		case models.ActionSubmit:
			enrollment.SubmittedAt = &now
			enrollment.ApprovedBy = nil
			enrollment.ApprovedAt = nil
		case models.ActionApprove, models.ActionReject:
			enrollment.ApprovedBy = params.ActorID
			enrollment.ApprovedAt = &now
		case models.ActionReopen:
			enrollment.SubmittedAt = nil
			enrollment.ApprovedBy = nil
			enrollment.ApprovedAt = nil
		}
		if params.Notes != nil {
			enrollment.Notes = params.Notes
		}
		enrollment.Status = next
		enrollment.UpdatedAt = now

		if _, err := tx.ExecContext(ctx, enrollmentTransitionQuery,
			enrollment.ID, enrollment.Status, enrollment.SubmittedAt, enrollment.ApprovedBy,
			enrollment.ApprovedAt, enrollment.Notes, enrollment.UpdatedAt); err != nil {
			return fmt.Errorf("update enrollment status: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &enrollment, nil
}

func lockDraft(ctx context.Context, tx *sqlx.Tx, enrollmentID string) error {
	var status models.EnrollmentStatus
	if err := tx.GetContext(ctx, &status, enrollmentLockStatusQuery, enrollmentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return err
		}
		return fmt.Errorf("lock enrollment: %w", err)
	}
	if !status.Editable() {
		return ErrEnrollmentLocked
	}
	return nil
}

func recountCredits(ctx context.Context, tx *sqlx.Tx, enrollmentID string, now time.Time, total *int) error {
	if err := tx.GetContext(ctx, total, enrollmentRecountQuery, enrollmentID, now); err != nil {
		return fmt.Errorf("recompute total credits: %w", err)
	}
	return nil
}
