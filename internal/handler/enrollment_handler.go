package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/siakad-api/internal/models"
	"github.com/noah-isme/siakad-api/internal/service"
	appErrors "github.com/noah-isme/siakad-api/pkg/errors"
	"github.com/noah-isme/siakad-api/pkg/response"
)

type enrollmentReviewService interface {
	List(ctx context.Context, actor service.Actor, filter models.EnrollmentFilter) ([]models.EnrollmentSummary, *models.Pagination, error)
	Get(ctx context.Context, actor service.Actor, id string) (*service.EnrollmentDetail, error)
	Approve(ctx context.Context, actor service.Actor, enrollmentID string, req service.ReviewRequest) (*models.Enrollment, error)
	Reject(ctx context.Context, actor service.Actor, enrollmentID string, req service.ReviewRequest) (*models.Enrollment, error)
	Reopen(ctx context.Context, actor service.Actor, enrollmentID string, req service.ReviewRequest) (*models.Enrollment, error)
}

type reviewFunc func(ctx context.Context, actor service.Actor, enrollmentID string, req service.ReviewRequest) (*models.Enrollment, error)

// EnrollmentHandler serves advisor and admin review of enrollments.
type EnrollmentHandler struct {
	service enrollmentReviewService
}

// NewEnrollmentHandler constructs an enrollment handler.
func NewEnrollmentHandler(svc enrollmentReviewService) *EnrollmentHandler {
	return &EnrollmentHandler{service: svc}
}

// List godoc
// @Summary List enrollments
// @Description Lecturers only see their advisees
// @Tags Enrollments
// @Produce json
// @Param termId query string false "Term"
// @Param studentId query string false "Student"
// @Param status query string false "draft, submitted, approved or rejected"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /enrollments [get]
func (h *EnrollmentHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	page, size := pageParams(c)
	filter := models.EnrollmentFilter{
		TermID:    c.Query("termId"),
		StudentID: c.Query("studentId"),
		Status:    models.EnrollmentStatus(c.Query("status")),
		Page:      page,
		PageSize:  size,
	}
	enrollments, pagination, err := h.service.List(c.Request.Context(), actor, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollments, pagination)
}

// Get godoc
// @Summary Get enrollment with lines
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /enrollments/{id} [get]
func (h *EnrollmentHandler) Get(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	detail, err := h.service.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Approve godoc
// @Summary Approve a submitted enrollment
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param payload body service.ReviewRequest false "Review notes"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /enrollments/{id}/approve [post]
func (h *EnrollmentHandler) Approve(c *gin.Context) {
	h.review(c, h.service.Approve)
}

// Reject godoc
// @Summary Reject a submitted enrollment
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param payload body service.ReviewRequest false "Review notes"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /enrollments/{id}/reject [post]
func (h *EnrollmentHandler) Reject(c *gin.Context) {
	h.review(c, h.service.Reject)
}

// Reopen godoc
// @Summary Return a rejected enrollment to draft
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param payload body service.ReviewRequest false "Review notes"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /enrollments/{id}/reopen [post]
func (h *EnrollmentHandler) Reopen(c *gin.Context) {
	h.review(c, h.service.Reopen)
}

func (h *EnrollmentHandler) review(c *gin.Context, fn reviewFunc) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.Error(c, invalidPayload(err, "invalid payload"))
		return
	}
	enrollment, err := fn(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollment, nil)
}
