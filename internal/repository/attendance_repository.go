package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/siakad-api/internal/models"
)

const meetingAttendanceSelect = `SELECT ms.id AS meeting_id, ms.section_id, ms.sequence_number, ms.held_on, ms.topic, ar.status
        FROM meeting_sessions ms
        LEFT JOIN attendance_records ar ON ar.meeting_session_id = ms.id AND ar.student_id = $1`

const (
	sectionMeetingsQuery = meetingAttendanceSelect + ` WHERE ms.section_id = $2 ORDER BY ms.sequence_number`
	termMeetingsQuery    = meetingAttendanceSelect + ` WHERE ms.section_id IN (
            SELECT el.section_id FROM enrollment_lines el JOIN enrollments e ON e.id = el.enrollment_id
            WHERE e.student_id = $1 AND e.term_id = $2)
        ORDER BY ms.section_id, ms.sequence_number`
)

// AttendanceRepository reads meetings and the attendance marks of one student.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs an AttendanceRepository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// SectionMeetings returns every meeting held for the section. Status is nil
// where the student has no mark.
func (r *AttendanceRepository) SectionMeetings(ctx context.Context, studentID, sectionID string) ([]models.MeetingAttendance, error) {
	var meetings []models.MeetingAttendance
	if err := r.db.SelectContext(ctx, &meetings, sectionMeetingsQuery, studentID, sectionID); err != nil {
		return nil, fmt.Errorf("list section meetings: %w", err)
	}
	return meetings, nil
}

// TermMeetings returns the meetings of every section on the student's
// enrollment for the term, grouped by section.
func (r *AttendanceRepository) TermMeetings(ctx context.Context, studentID, termID string) ([]models.MeetingAttendance, error) {
	var meetings []models.MeetingAttendance
	if err := r.db.SelectContext(ctx, &meetings, termMeetingsQuery, studentID, termID); err != nil {
		return nil, fmt.Errorf("list term meetings: %w", err)
	}
	return meetings, nil
}
