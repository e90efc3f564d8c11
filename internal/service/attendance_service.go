package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/noah-isme/siakad-api/internal/models"
)

// UnmarkedPolicy decides how meetings without a mark are counted.
type UnmarkedPolicy string

const (
	// UnmarkedNotRecorded keeps unmarked meetings in the total under their own bucket.
	UnmarkedNotRecorded UnmarkedPolicy = "not_recorded"
	// UnmarkedAsAbsent counts unmarked meetings as absences.
	UnmarkedAsAbsent UnmarkedPolicy = "absent"
)

// DefaultLowAttendanceThreshold is the percentage under which attendance is flagged.
const DefaultLowAttendanceThreshold = 75

type attendanceReader interface {
	SectionMeetings(ctx context.Context, studentID, sectionID string) ([]models.MeetingAttendance, error)
	TermMeetings(ctx context.Context, studentID, termID string) ([]models.MeetingAttendance, error)
}

type enrollmentLineReader interface {
	FindByStudentTerm(ctx context.Context, studentID, termID string) (*models.Enrollment, error)
	ListLines(ctx context.Context, enrollmentID string) ([]models.EnrollmentLineDetail, error)
}

// AttendanceConfig carries the attendance policy.
type AttendanceConfig struct {
	UnmarkedPolicy UnmarkedPolicy
	LowThreshold   int
}

// AttendanceService rolls up per-meeting marks into attendance summaries.
type AttendanceService struct {
	repo        attendanceReader
	enrollments enrollmentLineReader
	config      AttendanceConfig
	logger      *zap.Logger
}

// NewAttendanceService constructs an AttendanceService.
func NewAttendanceService(repo attendanceReader, enrollments enrollmentLineReader, config AttendanceConfig, logger *zap.Logger) *AttendanceService {
	if config.UnmarkedPolicy != UnmarkedAsAbsent {
		config.UnmarkedPolicy = UnmarkedNotRecorded
	}
	if config.LowThreshold <= 0 || config.LowThreshold > 100 {
		config.LowThreshold = DefaultLowAttendanceThreshold
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceService{repo: repo, enrollments: enrollments, config: config, logger: logger}
}

// ComputeSectionAttendance summarises a student's marks in one section.
func (s *AttendanceService) ComputeSectionAttendance(ctx context.Context, studentID, sectionID string) (*models.SectionAttendance, error) {
	meetings, err := s.repo.SectionMeetings(ctx, studentID, sectionID)
	if err != nil {
		return nil, internalError(s.logger, "failed to load section meetings", err)
	}
	if meetings == nil {
		meetings = []models.MeetingAttendance{}
	}
	return &models.SectionAttendance{
		SectionID:         sectionID,
		AttendanceSummary: s.Summarize(meetings),
		Meetings:          meetings,
	}, nil
}

// ComputeTermAttendance summarises every section on the student's enrollment
// for the term. Sections without meetings are reported with NoData.
func (s *AttendanceService) ComputeTermAttendance(ctx context.Context, studentID, termID string) (*models.TermAttendance, error) {
	result := &models.TermAttendance{TermID: termID, Sections: []models.SectionAttendance{}}

	enrollment, err := s.enrollments.FindByStudentTerm(ctx, studentID, termID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return result, nil
		}
		return nil, internalError(s.logger, "failed to load enrollment", err)
	}
	lines, err := s.enrollments.ListLines(ctx, enrollment.ID)
	if err != nil {
		return nil, internalError(s.logger, "failed to load enrollment lines", err)
	}
	meetings, err := s.repo.TermMeetings(ctx, studentID, termID)
	if err != nil {
		return nil, internalError(s.logger, "failed to load term meetings", err)
	}

	bySection := make(map[string][]models.MeetingAttendance, len(lines))
	for _, m := range meetings {
		bySection[m.SectionID] = append(bySection[m.SectionID], m)
	}
	for _, line := range lines {
		sectionMeetings := bySection[line.SectionID]
		if sectionMeetings == nil {
			sectionMeetings = []models.MeetingAttendance{}
		}
		result.Sections = append(result.Sections, models.SectionAttendance{
			SectionID:         line.SectionID,
			SectionCode:       line.SectionCode,
			CourseCode:        line.CourseCode,
			CourseName:        line.CourseName,
			AttendanceSummary: s.Summarize(sectionMeetings),
			Meetings:          sectionMeetings,
		})
	}
	return result, nil
}

// Summarize counts marks and applies the unmarked policy and low threshold.
func (s *AttendanceService) Summarize(meetings []models.MeetingAttendance) models.AttendanceSummary {
	var sum models.AttendanceSummary
	for _, m := range meetings {
		sum.Total++
		if m.Status == nil {
			if s.config.UnmarkedPolicy == UnmarkedAsAbsent {
				sum.Absent++
			} else {
				sum.Unrecorded++
			}
			continue
		}
		switch *m.Status {
		case models.AttendancePresent:
			sum.Present++
		case models.AttendanceExcused:
			sum.Excused++
		case models.AttendanceSick:
			sum.Sick++
		default:
			sum.Absent++
		}
	}

	if sum.Total == 0 {
		sum.NoData = true
		return sum
	}
	sum.PresentPercentage = roundHalfUpPercent(sum.Present, sum.Total)
	sum.LowAttendance = sum.PresentPercentage < s.config.LowThreshold
	return sum
}

// roundHalfUpPercent returns part/total*100 rounded half up.
func roundHalfUpPercent(part, total int) int {
	return (part*200 + total) / (total * 2)
}
