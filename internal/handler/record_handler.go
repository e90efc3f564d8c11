package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/siakad-api/internal/models"
	"github.com/noah-isme/siakad-api/pkg/response"
)

type recordService interface {
	Schedule(ctx context.Context, studentID, termID string) (*models.ScheduleView, error)
	KHS(ctx context.Context, studentID, termID string) (*models.KHSView, error)
	Transcript(ctx context.Context, studentID string) (*models.TranscriptView, error)
	Attendance(ctx context.Context, studentID, termID string) (*models.AttendanceView, error)
	SectionAttendance(ctx context.Context, studentID, sectionID string) (*models.SectionAttendance, error)
	ExportTranscript(ctx context.Context, studentID, format string) (*models.ExportFile, error)
}

type gpaService interface {
	ComputeTermGPA(ctx context.Context, studentID, termID string) (*models.GPAResult, error)
	ComputeCumulativeGPA(ctx context.Context, studentID string) (*models.CumulativeGPA, error)
}

// RecordHandler serves schedule, KHS, transcript and attendance views. Routes
// carrying an :id parameter read that student; the /me routes read the
// student linked to the caller.
type RecordHandler struct {
	students studentResolver
	records  recordService
	grades   gpaService
}

// NewRecordHandler constructs a record handler.
func NewRecordHandler(students studentResolver, records recordService, grades gpaService) *RecordHandler {
	return &RecordHandler{students: students, records: records, grades: grades}
}

// Schedule godoc
// @Summary Weekly schedule
// @Description Enrolled sections grouped by day. termId defaults to the active term.
// @Tags Records
// @Produce json
// @Param termId query string false "Term"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /me/schedule [get]
// @Router /students/{id}/schedule [get]
func (h *RecordHandler) Schedule(c *gin.Context) {
	studentID, ok := h.target(c)
	if !ok {
		return
	}
	view, err := h.records.Schedule(c.Request.Context(), studentID, c.Query("termId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// KHS godoc
// @Summary Study result card (KHS)
// @Description Grades for one term with IPS and the IPK up to that term
// @Tags Records
// @Produce json
// @Param termId query string false "Term"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /me/khs [get]
// @Router /students/{id}/khs [get]
func (h *RecordHandler) KHS(c *gin.Context) {
	studentID, ok := h.target(c)
	if !ok {
		return
	}
	view, err := h.records.KHS(c.Request.Context(), studentID, c.Query("termId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// Transcript godoc
// @Summary Academic transcript
// @Tags Records
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /me/transcript [get]
// @Router /students/{id}/transcript [get]
func (h *RecordHandler) Transcript(c *gin.Context) {
	studentID, ok := h.target(c)
	if !ok {
		return
	}
	view, err := h.records.Transcript(c.Request.Context(), studentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// ExportTranscript godoc
// @Summary Download transcript
// @Tags Records
// @Produce application/pdf
// @Produce text/csv
// @Param format query string false "pdf (default) or csv"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /me/transcript/export [get]
// @Router /students/{id}/transcript/export [get]
func (h *RecordHandler) ExportTranscript(c *gin.Context) {
	studentID, ok := h.target(c)
	if !ok {
		return
	}
	file, err := h.records.ExportTranscript(c.Request.Context(), studentID, c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Content)
}

// Attendance godoc
// @Summary Attendance recap
// @Description Per-section attendance for a term with low-attendance flags
// @Tags Records
// @Produce json
// @Param termId query string false "Term"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /me/attendance [get]
// @Router /students/{id}/attendance [get]
func (h *RecordHandler) Attendance(c *gin.Context) {
	studentID, ok := h.target(c)
	if !ok {
		return
	}
	view, err := h.records.Attendance(c.Request.Context(), studentID, c.Query("termId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// SectionAttendance godoc
// @Summary Attendance of one section
// @Description Meeting-by-meeting marks for a section on the student's enrollment
// @Tags Records
// @Produce json
// @Param sectionId path string true "Section ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /me/attendance/sections/{sectionId} [get]
// @Router /students/{id}/attendance/sections/{sectionId} [get]
func (h *RecordHandler) SectionAttendance(c *gin.Context) {
	studentID, ok := h.target(c)
	if !ok {
		return
	}
	result, err := h.records.SectionAttendance(c.Request.Context(), studentID, c.Param("sectionId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// GPA godoc
// @Summary Grade point average
// @Description IPK with the IPS of every term, or the IPS of one term when termId is given
// @Tags Records
// @Produce json
// @Param termId query string false "Term"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /me/gpa [get]
// @Router /students/{id}/gpa [get]
func (h *RecordHandler) GPA(c *gin.Context) {
	studentID, ok := h.target(c)
	if !ok {
		return
	}
	if termID := c.Query("termId"); termID != "" {
		gpa, err := h.grades.ComputeTermGPA(c.Request.Context(), studentID, termID)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusOK, gpa, nil)
		return
	}
	gpa, err := h.grades.ComputeCumulativeGPA(c.Request.Context(), studentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gpa, nil)
}

func (h *RecordHandler) target(c *gin.Context) (string, bool) {
	if id := c.Param("id"); id != "" {
		return id, true
	}
	student, ok := resolveStudent(c, h.students)
	if !ok {
		return "", false
	}
	return student.ID, true
}
