package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/siakad-api/internal/models"
	"github.com/noah-isme/siakad-api/internal/service"
	appErrors "github.com/noah-isme/siakad-api/pkg/errors"
	"github.com/noah-isme/siakad-api/pkg/response"
)

type studentResolver interface {
	GetStudentByUser(ctx context.Context, userID string) (*models.Student, error)
}

type krsService interface {
	Current(ctx context.Context, studentID string) (*service.KRSView, error)
	ListAvailableSections(ctx context.Context, studentID string) ([]models.SectionDetail, error)
	AddSection(ctx context.Context, studentID, sectionID string) (*service.AddSectionResult, error)
	RemoveSection(ctx context.Context, studentID, lineID string) (*models.Enrollment, error)
	Submit(ctx context.Context, studentID string) (*models.Enrollment, error)
}

// KRSHandler serves the signed-in student's study plan for the active term.
type KRSHandler struct {
	students studentResolver
	service  krsService
}

// NewKRSHandler constructs a KRS handler.
func NewKRSHandler(students studentResolver, svc krsService) *KRSHandler {
	return &KRSHandler{students: students, service: svc}
}

// Current godoc
// @Summary Current KRS
// @Description Enrollment for the active term with its lines and the sections still open to the student
// @Tags KRS
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Security BearerAuth
// @Router /me/krs [get]
func (h *KRSHandler) Current(c *gin.Context) {
	student, ok := h.student(c)
	if !ok {
		return
	}
	view, err := h.service.Current(c.Request.Context(), student.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// Available godoc
// @Summary Sections open for enrollment
// @Tags KRS
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /me/krs/available [get]
func (h *KRSHandler) Available(c *gin.Context) {
	student, ok := h.student(c)
	if !ok {
		return
	}
	sections, err := h.service.ListAvailableSections(c.Request.Context(), student.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sections, nil)
}

// AddSection godoc
// @Summary Add a section to the KRS
// @Description Creates the draft on first use
// @Tags KRS
// @Accept json
// @Produce json
// @Param payload body service.AddSectionRequest true "Section to add"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Security BearerAuth
// @Router /me/krs/sections [post]
func (h *KRSHandler) AddSection(c *gin.Context) {
	var req service.AddSectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err, "invalid payload"))
		return
	}
	if req.SectionID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "section_id is required"))
		return
	}
	student, ok := h.student(c)
	if !ok {
		return
	}
	result, err := h.service.AddSection(c.Request.Context(), student.ID, req.SectionID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// RemoveSection godoc
// @Summary Remove a line from the KRS
// @Tags KRS
// @Produce json
// @Param lineId path string true "Enrollment line ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /me/krs/lines/{lineId} [delete]
func (h *KRSHandler) RemoveSection(c *gin.Context) {
	student, ok := h.student(c)
	if !ok {
		return
	}
	enrollment, err := h.service.RemoveSection(c.Request.Context(), student.ID, c.Param("lineId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollment, nil)
}

// Submit godoc
// @Summary Submit the KRS for advisor approval
// @Tags KRS
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Security BearerAuth
// @Router /me/krs/submit [post]
func (h *KRSHandler) Submit(c *gin.Context) {
	student, ok := h.student(c)
	if !ok {
		return
	}
	enrollment, err := h.service.Submit(c.Request.Context(), student.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollment, nil)
}

func (h *KRSHandler) student(c *gin.Context) (*models.Student, bool) {
	return resolveStudent(c, h.students)
}

func resolveStudent(c *gin.Context, students studentResolver) (*models.Student, bool) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return nil, false
	}
	student, err := students.GetStudentByUser(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return nil, false
	}
	return student, true
}
