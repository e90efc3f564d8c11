package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/siakad-api/internal/models"
)

type stubAttendanceReader struct {
	meetings []models.MeetingAttendance
}

func (s *stubAttendanceReader) SectionMeetings(ctx context.Context, studentID, sectionID string) ([]models.MeetingAttendance, error) {
	var out []models.MeetingAttendance
	for _, m := range s.meetings {
		if m.SectionID == sectionID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *stubAttendanceReader) TermMeetings(ctx context.Context, studentID, termID string) ([]models.MeetingAttendance, error) {
	return s.meetings, nil
}

type stubLineReader struct {
	enrollment *models.Enrollment
	lines      []models.EnrollmentLineDetail
}

func (s *stubLineReader) FindByStudentTerm(ctx context.Context, studentID, termID string) (*models.Enrollment, error) {
	if s.enrollment == nil {
		return nil, sql.ErrNoRows
	}
	return s.enrollment, nil
}

func (s *stubLineReader) ListLines(ctx context.Context, enrollmentID string) ([]models.EnrollmentLineDetail, error) {
	return s.lines, nil
}

func (s *stubLineReader) HasSection(ctx context.Context, studentID, sectionID string) (bool, error) {
	for _, l := range s.lines {
		if l.SectionID == sectionID {
			return true, nil
		}
	}
	return false, nil
}

func meetingsWith(sectionID string, marks ...*models.AttendanceStatus) []models.MeetingAttendance {
	out := make([]models.MeetingAttendance, len(marks))
	for i, mark := range marks {
		out[i] = models.MeetingAttendance{SectionID: sectionID, SequenceNumber: i + 1, Status: mark}
	}
	return out
}

func mark(status models.AttendanceStatus) *models.AttendanceStatus {
	return &status
}

func TestAttendanceServiceSectionRollup(t *testing.T) {
	present, excused, sick, absent := mark(models.AttendancePresent), mark(models.AttendanceExcused), mark(models.AttendanceSick), mark(models.AttendanceAbsent)
	meetings := meetingsWith("sec-1", present, present, present, present, present, present, present, excused, sick, absent)
	svc := NewAttendanceService(&stubAttendanceReader{meetings: meetings}, &stubLineReader{}, AttendanceConfig{}, zap.NewNop())

	result, err := svc.ComputeSectionAttendance(context.Background(), "stu-1", "sec-1")
	require.NoError(t, err)
	assert.Equal(t, 10, result.Total)
	assert.Equal(t, 7, result.Present)
	assert.Equal(t, 1, result.Excused)
	assert.Equal(t, 1, result.Sick)
	assert.Equal(t, 1, result.Absent)
	assert.Equal(t, 70, result.PresentPercentage)
	assert.True(t, result.LowAttendance)
	assert.False(t, result.NoData)
	assert.Len(t, result.Meetings, 10)
}

func TestAttendanceServiceNoMeetings(t *testing.T) {
	svc := NewAttendanceService(&stubAttendanceReader{}, &stubLineReader{}, AttendanceConfig{}, zap.NewNop())

	result, err := svc.ComputeSectionAttendance(context.Background(), "stu-1", "sec-1")
	require.NoError(t, err)
	assert.True(t, result.NoData)
	assert.Equal(t, 0, result.PresentPercentage)
	assert.False(t, result.LowAttendance)
	assert.NotNil(t, result.Meetings)
}

func TestAttendanceServiceUnmarkedPolicy(t *testing.T) {
	present := mark(models.AttendancePresent)
	meetings := meetingsWith("sec-1", present, present, present, nil)

	notRecorded := NewAttendanceService(nil, nil, AttendanceConfig{}, zap.NewNop())
	sum := notRecorded.Summarize(meetings)
	assert.Equal(t, 4, sum.Total)
	assert.Equal(t, 1, sum.Unrecorded)
	assert.Equal(t, 0, sum.Absent)
	assert.Equal(t, 75, sum.PresentPercentage)
	assert.False(t, sum.LowAttendance)

	asAbsent := NewAttendanceService(nil, nil, AttendanceConfig{UnmarkedPolicy: UnmarkedAsAbsent, LowThreshold: 80}, zap.NewNop())
	sum = asAbsent.Summarize(meetings)
	assert.Equal(t, 0, sum.Unrecorded)
	assert.Equal(t, 1, sum.Absent)
	assert.True(t, sum.LowAttendance)
}

func TestRoundHalfUpPercent(t *testing.T) {
	assert.Equal(t, 67, roundHalfUpPercent(2, 3))
	assert.Equal(t, 33, roundHalfUpPercent(1, 3))
	assert.Equal(t, 13, roundHalfUpPercent(1, 8))
	assert.Equal(t, 88, roundHalfUpPercent(7, 8))
	assert.Equal(t, 100, roundHalfUpPercent(14, 14))
}

func TestAttendanceServiceTermRollup(t *testing.T) {
	present, absent := mark(models.AttendancePresent), mark(models.AttendanceAbsent)
	meetings := append(meetingsWith("sec-a", present, present), meetingsWith("sec-b", absent)...)
	lines := &stubLineReader{
		enrollment: &models.Enrollment{ID: "enr-1"},
		lines: []models.EnrollmentLineDetail{
			{SectionID: "sec-a", CourseCode: "IF101"},
			{SectionID: "sec-b", CourseCode: "IF102"},
			{SectionID: "sec-c", CourseCode: "IF103"},
		},
	}
	svc := NewAttendanceService(&stubAttendanceReader{meetings: meetings}, lines, AttendanceConfig{}, zap.NewNop())

	result, err := svc.ComputeTermAttendance(context.Background(), "stu-1", "t1")
	require.NoError(t, err)
	require.Len(t, result.Sections, 3)
	assert.Equal(t, 100, result.Sections[0].PresentPercentage)
	assert.Equal(t, "IF101", result.Sections[0].CourseCode)
	assert.Equal(t, 0, result.Sections[1].PresentPercentage)
	assert.True(t, result.Sections[1].LowAttendance)
	assert.True(t, result.Sections[2].NoData)
}

func TestAttendanceServiceTermWithoutEnrollment(t *testing.T) {
	svc := NewAttendanceService(&stubAttendanceReader{}, &stubLineReader{}, AttendanceConfig{}, zap.NewNop())

	result, err := svc.ComputeTermAttendance(context.Background(), "stu-1", "t1")
	require.NoError(t, err)
	assert.Empty(t, result.Sections)
}
