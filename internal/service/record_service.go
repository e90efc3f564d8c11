package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/siakad-api/internal/models"
	appErrors "github.com/noah-isme/siakad-api/pkg/errors"
	"github.com/noah-isme/siakad-api/pkg/export"
)

// Record view names used in cache keys.
const (
	viewSchedule   = "schedule"
	viewKHS        = "khs"
	viewTranscript = "transcript"
	viewAttendance = "attendance"
)

// Transcript export formats.
const (
	ExportFormatCSV = "csv"
	ExportFormatPDF = "pdf"
)

type termResolver interface {
	Resolve(ctx context.Context, id string) (*models.AcademicTerm, error)
}

type gradeCourses interface {
	Courses(ctx context.Context, studentID, termID string) ([]models.GradedCourse, error)
	ComputeTermGPA(ctx context.Context, studentID, termID string) (*models.GPAResult, error)
}

type attendanceRollup interface {
	ComputeSectionAttendance(ctx context.Context, studentID, sectionID string) (*models.SectionAttendance, error)
	ComputeTermAttendance(ctx context.Context, studentID, termID string) (*models.TermAttendance, error)
}

type recordEnrollments interface {
	enrollmentLineReader
	HasSection(ctx context.Context, studentID, sectionID string) (bool, error)
}

// RecordService answers read-only questions about a student's academic record.
type RecordService struct {
	students    studentLookup
	terms       termResolver
	enrollments recordEnrollments
	grades      gradeCourses
	attendance  attendanceRollup
	cache       *CacheService
	csv         *export.CSVExporter
	pdf         *export.PDFExporter
	logger      *zap.Logger
}

// NewRecordService constructs a RecordService. cache may be nil.
func NewRecordService(
	students studentLookup,
	terms termResolver,
	enrollments recordEnrollments,
	grades gradeCourses,
	attendance attendanceRollup,
	cache *CacheService,
	logger *zap.Logger,
) *RecordService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecordService{
		students:    students,
		terms:       terms,
		enrollments: enrollments,
		grades:      grades,
		attendance:  attendance,
		cache:       cache,
		csv:         export.NewCSVExporter(),
		pdf:         export.NewPDFExporter(),
		logger:      logger,
	}
}

// Schedule returns the weekly timetable of the student's enrollment in a term.
// An empty termID means the active term.
func (s *RecordService) Schedule(ctx context.Context, studentID, termID string) (*models.ScheduleView, error) {
	if _, err := s.student(ctx, studentID); err != nil {
		return nil, err
	}
	term, err := s.terms.Resolve(ctx, termID)
	if err != nil {
		return nil, err
	}

	var view models.ScheduleView
	key := recordCacheKey(studentID, viewSchedule, term.ID)
	if s.cache.Get(ctx, key, &view) {
		return &view, nil
	}

	lines, err := s.enrollmentLines(ctx, studentID, term.ID)
	if err != nil {
		return nil, err
	}
	view = buildSchedule(term, lines)
	s.cache.Set(ctx, key, view, 0)
	return &view, nil
}

// KHS returns the study result card of one term: courses by code with the
// term GPA and the cumulative GPA through that term.
func (s *RecordService) KHS(ctx context.Context, studentID, termID string) (*models.KHSView, error) {
	student, err := s.student(ctx, studentID)
	if err != nil {
		return nil, err
	}
	term, err := s.terms.Resolve(ctx, termID)
	if err != nil {
		return nil, err
	}

	var view models.KHSView
	key := recordCacheKey(studentID, viewKHS, term.ID)
	if s.cache.Get(ctx, key, &view) {
		return &view, nil
	}

	termGPA, err := s.grades.ComputeTermGPA(ctx, studentID, term.ID)
	if err != nil {
		return nil, err
	}
	all, err := s.grades.Courses(ctx, studentID, "")
	if err != nil {
		return nil, err
	}
	termCourses := []models.GradedCourse{}
	var throughTerm []models.GradedCourse
	for _, c := range all {
		if c.TermID == term.ID {
			termCourses = append(termCourses, c)
		}
		if c.TermID == term.ID || !c.TermStart.After(term.StartDate) {
			throughTerm = append(throughTerm, c)
		}
	}
	sortByCourseCode(termCourses)

	view = models.KHSView{
		Student:       student,
		Term:          term,
		Courses:       termCourses,
		TermGPA:       *termGPA,
		CumulativeGPA: Summarize(throughTerm),
	}
	s.cache.Set(ctx, key, view, 0)
	return &view, nil
}

// Transcript returns every enrolled course grouped by term, newest term first.
func (s *RecordService) Transcript(ctx context.Context, studentID string) (*models.TranscriptView, error) {
	student, err := s.student(ctx, studentID)
	if err != nil {
		return nil, err
	}

	var view models.TranscriptView
	key := recordCacheKey(studentID, viewTranscript, "")
	if s.cache.Get(ctx, key, &view) {
		return &view, nil
	}

	all, err := s.grades.Courses(ctx, studentID, "")
	if err != nil {
		return nil, err
	}
	sortByTermStart(all, true)

	terms := []models.TranscriptTerm{}
	index := map[string]int{}
	for _, c := range all {
		i, ok := index[c.TermID]
		if !ok {
			i = len(terms)
			index[c.TermID] = i
			terms = append(terms, models.TranscriptTerm{TermID: c.TermID, YearLabel: c.YearLabel, TermName: c.TermName})
		}
		terms[i].Courses = append(terms[i].Courses, c)
	}
	for i := range terms {
		sortByCourseCode(terms[i].Courses)
		terms[i].TermGPA = Summarize(terms[i].Courses)
	}

	overall := Summarize(all)
	view = models.TranscriptView{
		Student:       student,
		Terms:         terms,
		CumulativeGPA: overall,
		TotalCredits:  overall.TotalCredits,
		CourseCount:   len(all),
	}
	s.cache.Set(ctx, key, view, 0)
	return &view, nil
}

// Attendance returns per-section attendance rollups for a term.
func (s *RecordService) Attendance(ctx context.Context, studentID, termID string) (*models.AttendanceView, error) {
	if _, err := s.student(ctx, studentID); err != nil {
		return nil, err
	}
	term, err := s.terms.Resolve(ctx, termID)
	if err != nil {
		return nil, err
	}

	var view models.AttendanceView
	key := recordCacheKey(studentID, viewAttendance, term.ID)
	if s.cache.Get(ctx, key, &view) {
		return &view, nil
	}

	rollup, err := s.attendance.ComputeTermAttendance(ctx, studentID, term.ID)
	if err != nil {
		return nil, err
	}
	view = models.AttendanceView{Term: term, TermAttendance: *rollup}
	s.cache.Set(ctx, key, view, 0)
	return &view, nil
}

// SectionAttendance returns the meeting-by-meeting attendance of a section the
// student is enrolled in.
func (s *RecordService) SectionAttendance(ctx context.Context, studentID, sectionID string) (*models.SectionAttendance, error) {
	if _, err := s.student(ctx, studentID); err != nil {
		return nil, err
	}
	enrolled, err := s.enrollments.HasSection(ctx, studentID, sectionID)
	if err != nil {
		return nil, internalError(s.logger, "failed to check enrolled section", err)
	}
	if !enrolled {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "section is not on the student's enrollment")
	}
	return s.attendance.ComputeSectionAttendance(ctx, studentID, sectionID)
}

// ExportTranscript renders the transcript as CSV or PDF.
func (s *RecordService) ExportTranscript(ctx context.Context, studentID, format string) (*models.ExportFile, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = ExportFormatPDF
	}
	if format != ExportFormatCSV && format != ExportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}

	transcript, err := s.Transcript(ctx, studentID)
	if err != nil {
		return nil, err
	}

	file := &models.ExportFile{Filename: fmt.Sprintf("transkrip-%s.%s", transcript.Student.NIM, format)}
	switch format {
	case ExportFormatCSV:
		file.ContentType = s.csv.ContentType()
		file.Content, err = s.csv.Render(transcriptDataset(transcript))
	default:
		file.ContentType = s.pdf.ContentType()
		file.Content, err = s.pdf.Render(transcriptDocument(transcript))
	}
	if err != nil {
		return nil, internalError(s.logger, "failed to render transcript", err)
	}
	return file, nil
}

func (s *RecordService) student(ctx context.Context, studentID string) (*models.Student, error) {
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, internalError(s.logger, "failed to load student", err)
	}
	return student, nil
}

func (s *RecordService) enrollmentLines(ctx context.Context, studentID, termID string) ([]models.EnrollmentLineDetail, error) {
	enrollment, err := s.enrollments.FindByStudentTerm(ctx, studentID, termID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, internalError(s.logger, "failed to load enrollment", err)
	}
	lines, err := s.enrollments.ListLines(ctx, enrollment.ID)
	if err != nil {
		return nil, internalError(s.logger, "failed to load enrollment lines", err)
	}
	return lines, nil
}

// buildSchedule groups lines by weekday, Senin first, each day ordered by
// start time. Lines without a complete meeting time are unscheduled.
func buildSchedule(term *models.AcademicTerm, lines []models.EnrollmentLineDetail) models.ScheduleView {
	view := models.ScheduleView{
		Term:        term,
		Days:        []models.ScheduleDay{},
		Unscheduled: []models.EnrollmentLineDetail{},
	}
	byDay := map[int][]models.EnrollmentLineDetail{}
	for _, line := range lines {
		if line.DayOfWeek == nil || line.StartTime == nil || models.DayName(*line.DayOfWeek) == "" {
			view.Unscheduled = append(view.Unscheduled, line)
			continue
		}
		byDay[*line.DayOfWeek] = append(byDay[*line.DayOfWeek], line)
	}
	for day := 1; day <= 7; day++ {
		entries, ok := byDay[day]
		if !ok {
			continue
		}
		sort.SliceStable(entries, func(i, j int) bool {
			if *entries[i].StartTime != *entries[j].StartTime {
				return *entries[i].StartTime < *entries[j].StartTime
			}
			return entries[i].CourseCode < entries[j].CourseCode
		})
		view.Days = append(view.Days, models.ScheduleDay{Day: day, DayName: models.DayName(day), Entries: entries})
	}
	sort.SliceStable(view.Unscheduled, func(i, j int) bool {
		return view.Unscheduled[i].CourseCode < view.Unscheduled[j].CourseCode
	})
	return view
}

func sortByCourseCode(courses []models.GradedCourse) {
	sort.SliceStable(courses, func(i, j int) bool {
		return courses[i].CourseCode < courses[j].CourseCode
	})
}

var transcriptHeaders = []string{"Tahun Akademik", "Semester", "Kode", "Mata Kuliah", "SKS", "Nilai", "Bobot"}

func transcriptDataset(t *models.TranscriptView) export.Dataset {
	data := export.Dataset{Headers: transcriptHeaders}
	for _, term := range t.Terms {
		for _, c := range term.Courses {
			data.Rows = append(data.Rows, []string{
				term.YearLabel,
				string(term.TermName),
				c.CourseCode,
				c.CourseName,
				strconv.Itoa(c.CreditHours),
				letterOf(c),
				indexOf(c),
			})
		}
	}
	return data
}

func transcriptDocument(t *models.TranscriptView) export.Document {
	doc := export.Document{
		Title: "Transkrip Nilai",
		Header: []export.Field{
			{Label: "NIM", Value: t.Student.NIM},
			{Label: "Nama", Value: t.Student.Name},
			{Label: "Program Studi", Value: t.Student.ProgramName},
		},
		Summary: []export.Field{
			{Label: "Total SKS", Value: strconv.Itoa(t.TotalCredits)},
			{Label: "Jumlah Mata Kuliah", Value: strconv.Itoa(t.CourseCount)},
			{Label: "IPK", Value: t.CumulativeGPA.GPA},
		},
	}
	for _, term := range t.Terms {
		table := export.Table{
			Caption: fmt.Sprintf("%s %s (IPS %s)", term.YearLabel, term.TermName, term.TermGPA.GPA),
			Data:    export.Dataset{Headers: []string{"Kode", "Mata Kuliah", "SKS", "Nilai", "Bobot"}},
			Widths:  []float64{1.2, 4, 0.8, 0.8, 0.8},
		}
		for _, c := range term.Courses {
			table.Data.Rows = append(table.Data.Rows, []string{
				c.CourseCode, c.CourseName, strconv.Itoa(c.CreditHours), letterOf(c), indexOf(c),
			})
		}
		doc.Tables = append(doc.Tables, table)
	}
	return doc
}

func letterOf(c models.GradedCourse) string {
	if c.LetterGrade == nil {
		return "-"
	}
	return *c.LetterGrade
}

func indexOf(c models.GradedCourse) string {
	if !c.GradeIndex.Valid {
		return "-"
	}
	return c.GradeIndex.Decimal.StringFixed(2)
}
