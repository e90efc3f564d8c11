package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/siakad-api/internal/models"
	"github.com/noah-isme/siakad-api/internal/service"
	appErrors "github.com/noah-isme/siakad-api/pkg/errors"
)

type studentResolverMock struct {
	byUser map[string]*models.Student
	calls  int
}

func (m *studentResolverMock) GetStudentByUser(ctx context.Context, userID string) (*models.Student, error) {
	m.calls++
	if s, ok := m.byUser[userID]; ok {
		return s, nil
	}
	return nil, appErrors.Clone(appErrors.ErrForbidden, "account is not linked to a student")
}

type krsServiceMock struct {
	studentID string
	sectionID string
	lineID    string
	addResult *service.AddSectionResult
	addErr    error
	submitErr error
}

func (m *krsServiceMock) Current(ctx context.Context, studentID string) (*service.KRSView, error) {
	m.studentID = studentID
	return &service.KRSView{TotalCredits: 6}, nil
}

func (m *krsServiceMock) ListAvailableSections(ctx context.Context, studentID string) ([]models.SectionDetail, error) {
	m.studentID = studentID
	return []models.SectionDetail{}, nil
}

func (m *krsServiceMock) AddSection(ctx context.Context, studentID, sectionID string) (*service.AddSectionResult, error) {
	m.studentID = studentID
	m.sectionID = sectionID
	return m.addResult, m.addErr
}

func (m *krsServiceMock) RemoveSection(ctx context.Context, studentID, lineID string) (*models.Enrollment, error) {
	m.studentID = studentID
	m.lineID = lineID
	return &models.Enrollment{ID: "krs-1", StudentID: studentID, Status: models.EnrollmentDraft}, nil
}

func (m *krsServiceMock) Submit(ctx context.Context, studentID string) (*models.Enrollment, error) {
	m.studentID = studentID
	if m.submitErr != nil {
		return nil, m.submitErr
	}
	return &models.Enrollment{ID: "krs-1", StudentID: studentID, Status: models.EnrollmentSubmitted}, nil
}

func newKRSFixture() (*KRSHandler, *studentResolverMock, *krsServiceMock) {
	students := &studentResolverMock{byUser: map[string]*models.Student{
		"user-1": {ID: "stu-1", NIM: "2101001", Status: models.StudentActive},
	}}
	svc := &krsServiceMock{}
	return NewKRSHandler(students, svc), students, svc
}

func TestKRSHandlerAddSectionCreated(t *testing.T) {
	handler, _, svc := newKRSFixture()
	svc.addResult = &service.AddSectionResult{
		Enrollment:   &models.Enrollment{ID: "krs-1", Status: models.EnrollmentDraft, TotalCredits: 3},
		Line:         &models.EnrollmentLine{ID: "line-1", SectionID: "sec-1"},
		TotalCredits: 3,
		DraftCreated: true,
	}

	body, _ := json.Marshal(service.AddSectionRequest{SectionID: "sec-1"})
	c, w := newGinContext(http.MethodPost, "/me/krs/sections", body)
	withClaims(c, "user-1", models.RoleStudent)

	handler.AddSection(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "stu-1", svc.studentID)
	assert.Equal(t, "sec-1", svc.sectionID)

	var result service.AddSectionResult
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &result))
	assert.True(t, result.DraftCreated)
	assert.Equal(t, 3, result.TotalCredits)
}

func TestKRSHandlerAddSectionMapsDomainErrors(t *testing.T) {
	handler, _, svc := newKRSFixture()
	svc.addErr = appErrors.ErrSectionFull

	body, _ := json.Marshal(service.AddSectionRequest{SectionID: "sec-1"})
	c, w := newGinContext(http.MethodPost, "/me/krs/sections", body)
	withClaims(c, "user-1", models.RoleStudent)

	handler.AddSection(c)

	require.Equal(t, http.StatusConflict, w.Code)
	env := decodeEnvelope(t, w)
	require.NotNil(t, env.Error)
	assert.Equal(t, appErrors.ErrSectionFull.Code, env.Error.Code)
}

func TestKRSHandlerAddSectionRequiresSectionID(t *testing.T) {
	handler, students, _ := newKRSFixture()

	c, w := newGinContext(http.MethodPost, "/me/krs/sections", []byte(`{}`))
	withClaims(c, "user-1", models.RoleStudent)

	handler.AddSection(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, students.calls)
}

func TestKRSHandlerRejectsUnlinkedAccount(t *testing.T) {
	handler, _, svc := newKRSFixture()

	c, w := newGinContext(http.MethodGet, "/me/krs", nil)
	withClaims(c, "user-2", models.RoleStudent)

	handler.Current(c)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, svc.studentID)
}

func TestKRSHandlerRequiresClaims(t *testing.T) {
	handler, _, _ := newKRSFixture()

	c, w := newGinContext(http.MethodGet, "/me/krs", nil)
	handler.Current(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestKRSHandlerRemoveSectionUsesPathParam(t *testing.T) {
	handler, _, svc := newKRSFixture()

	c, w := newGinContext(http.MethodDelete, "/me/krs/lines/line-9", nil)
	c.Params = append(c.Params, ginParam("lineId", "line-9"))
	withClaims(c, "user-1", models.RoleStudent)

	handler.RemoveSection(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "line-9", svc.lineID)
}

func TestKRSHandlerSubmitEmptyPlan(t *testing.T) {
	handler, _, svc := newKRSFixture()
	svc.submitErr = appErrors.ErrEmptyEnrollment

	c, w := newGinContext(http.MethodPost, "/me/krs/submit", nil)
	withClaims(c, "user-1", models.RoleStudent)

	handler.Submit(c)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestResolveStudentPassesThroughInternalErrors(t *testing.T) {
	students := &failingResolver{err: appErrors.Internal(sql.ErrConnDone)}
	handler := NewKRSHandler(students, &krsServiceMock{})

	c, w := newGinContext(http.MethodGet, "/me/krs/available", nil)
	withClaims(c, "user-1", models.RoleStudent)

	handler.Available(c)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

type failingResolver struct {
	err error
}

func (f *failingResolver) GetStudentByUser(ctx context.Context, userID string) (*models.Student, error) {
	return nil, f.err
}
