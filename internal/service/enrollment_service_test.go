package service

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/siakad-api/internal/models"
	"github.com/noah-isme/siakad-api/internal/repository"
	appErrors "github.com/noah-isme/siakad-api/pkg/errors"
	"github.com/noah-isme/siakad-api/pkg/jobs"
)

// memoryEnrollmentRepo mirrors the transactional rules of EnrollmentRepository.
type memoryEnrollmentRepo struct {
	mu          sync.Mutex
	enrollments map[string]*models.Enrollment
	lines       map[string][]models.EnrollmentLine
	sections    map[string]*models.SectionDetail
	seq         int
}

func newMemoryEnrollmentRepo(sections ...models.SectionDetail) *memoryEnrollmentRepo {
	repo := &memoryEnrollmentRepo{
		enrollments: map[string]*models.Enrollment{},
		lines:       map[string][]models.EnrollmentLine{},
		sections:    map[string]*models.SectionDetail{},
	}
	for i := range sections {
		s := sections[i]
		repo.sections[s.ID] = &s
	}
	return repo
}

func (m *memoryEnrollmentRepo) nextID(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s-%d", prefix, m.seq)
}

func (m *memoryEnrollmentRepo) GetOrCreateDraft(ctx context.Context, studentID, termID string) (*models.Enrollment, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.enrollments {
		if e.StudentID == studentID && e.TermID == termID {
			clone := *e
			return &clone, false, nil
		}
	}
	e := &models.Enrollment{ID: m.nextID("enr"), StudentID: studentID, TermID: termID, Status: models.EnrollmentDraft}
	m.enrollments[e.ID] = e
	clone := *e
	return &clone, true, nil
}

func (m *memoryEnrollmentRepo) FindByStudentTerm(ctx context.Context, studentID, termID string) (*models.Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.enrollments {
		if e.StudentID == studentID && e.TermID == termID {
			clone := *e
			return &clone, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *memoryEnrollmentRepo) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.enrollments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *e
	return &clone, nil
}

func (m *memoryEnrollmentRepo) FindSummary(ctx context.Context, id string) (*models.EnrollmentSummary, error) {
	e, err := m.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &models.EnrollmentSummary{Enrollment: *e}, nil
}

func (m *memoryEnrollmentRepo) ListLines(ctx context.Context, enrollmentID string) ([]models.EnrollmentLineDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.EnrollmentLineDetail{}
	for _, l := range m.lines[enrollmentID] {
		sec := m.sections[l.SectionID]
		out = append(out, models.EnrollmentLineDetail{
			LineID:      l.ID,
			SectionID:   l.SectionID,
			CourseCode:  sec.CourseCode,
			CreditHours: sec.CreditHours,
		})
	}
	return out, nil
}

func (m *memoryEnrollmentRepo) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentSummary, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.EnrollmentSummary
	for _, e := range m.enrollments {
		out = append(out, models.EnrollmentSummary{Enrollment: *e})
	}
	return out, len(out), nil
}

func (m *memoryEnrollmentRepo) AddLine(ctx context.Context, enrollmentID, termID, sectionID string) (*models.EnrollmentLine, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.enrollments[enrollmentID]
	if !ok {
		return nil, 0, sql.ErrNoRows
	}
	if !e.Status.Editable() {
		return nil, 0, repository.ErrEnrollmentLocked
	}
	sec, ok := m.sections[sectionID]
	if !ok || sec.TermID != termID {
		return nil, 0, repository.ErrSectionUnavailable
	}
	for _, l := range m.lines[enrollmentID] {
		if l.SectionID == sectionID {
			return nil, 0, repository.ErrDuplicateLine
		}
	}
	if sec.SeatsFilled >= sec.Capacity {
		return nil, 0, repository.ErrSectionFull
	}
	sec.SeatsFilled++
	line := models.EnrollmentLine{ID: m.nextID("line"), EnrollmentID: enrollmentID, SectionID: sectionID}
	m.lines[enrollmentID] = append(m.lines[enrollmentID], line)
	e.TotalCredits = m.credits(enrollmentID)
	return &line, e.TotalCredits, nil
}

func (m *memoryEnrollmentRepo) RemoveLine(ctx context.Context, enrollmentID, lineID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.enrollments[enrollmentID]
	if !ok {
		return 0, sql.ErrNoRows
	}
	if !e.Status.Editable() {
		return 0, repository.ErrEnrollmentLocked
	}
	lines := m.lines[enrollmentID]
	for i, l := range lines {
		if l.ID == lineID {
			m.lines[enrollmentID] = append(lines[:i], lines[i+1:]...)
			m.sections[l.SectionID].SeatsFilled--
			e.TotalCredits = m.credits(enrollmentID)
			return e.TotalCredits, nil
		}
	}
	return 0, repository.ErrLineNotFound
}

func (m *memoryEnrollmentRepo) Transition(ctx context.Context, params repository.TransitionParams) (*models.Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.enrollments[params.EnrollmentID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	next, ok := e.Status.Next(params.Action, params.AllowReopen)
	if !ok {
		return nil, repository.ErrStatusConflict
	}
	if params.Action == models.ActionSubmit && len(m.lines[e.ID]) == 0 {
		return nil, repository.ErrNoLines
	}
	now := time.Now().UTC()
	if params.Action == models.ActionApprove || params.Action == models.ActionReject {
		e.ApprovedBy = params.ActorID
		e.ApprovedAt = &now
	}
	e.Status = next
	e.UpdatedAt = now
	clone := *e
	return &clone, nil
}

func (m *memoryEnrollmentRepo) credits(enrollmentID string) int {
	total := 0
	for _, l := range m.lines[enrollmentID] {
		total += m.sections[l.SectionID].CreditHours
	}
	return total
}

func (m *memoryEnrollmentRepo) ListAvailable(ctx context.Context, termID, studentID string) ([]models.SectionDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	taken := map[string]bool{}
	for _, e := range m.enrollments {
		if e.StudentID == studentID && e.TermID == termID {
			for _, l := range m.lines[e.ID] {
				taken[l.SectionID] = true
			}
		}
	}
	var out []models.SectionDetail
	for _, s := range m.sections {
		if s.TermID == termID && !taken[s.ID] {
			out = append(out, *s)
		}
	}
	return out, nil
}

// memorySections exposes the section half of memoryEnrollmentRepo.
type memorySections struct {
	*memoryEnrollmentRepo
}

func (m memorySections) FindByID(ctx context.Context, id string) (*models.SectionDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sec, ok := m.sections[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *sec
	return &clone, nil
}

type stubStudents map[string]models.Student

func (s stubStudents) FindByID(ctx context.Context, id string) (*models.Student, error) {
	st, ok := s[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &st, nil
}

type stubLecturers map[string]models.Lecturer

func (s stubLecturers) FindByUserID(ctx context.Context, userID string) (*models.Lecturer, error) {
	l, ok := s[userID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &l, nil
}

type stubActiveTerm struct {
	term *models.AcademicTerm
}

func (s stubActiveTerm) GetActive(ctx context.Context) (*models.AcademicTerm, error) {
	if s.term == nil {
		return nil, appErrors.Clone(appErrors.ErrNoActiveTerm, "")
	}
	return s.term, nil
}

type recordingPublisher struct {
	jobs []jobs.Job
}

func (p *recordingPublisher) TryEnqueue(job jobs.Job) error {
	p.jobs = append(p.jobs, job)
	return nil
}

type enrollmentFixture struct {
	svc       *EnrollmentService
	repo      *memoryEnrollmentRepo
	publisher *recordingPublisher
	metrics   *MetricsService
}

func newEnrollmentFixture(t *testing.T, term *models.AcademicTerm) enrollmentFixture {
	t.Helper()
	advisor := "lect-1"
	repo := newMemoryEnrollmentRepo(
		sectionFixture("sec-alg", "t1", "IF101", 3, 40, 0),
		sectionFixture("sec-db", "t1", "IF102", 4, 30, 0),
		sectionFixture("sec-full", "t1", "IF103", 2, 1, 1),
		sectionFixture("sec-old", "t0", "IF100", 2, 40, 0),
	)
	students := stubStudents{
		"stu-1":   {ID: "stu-1", Status: models.StudentActive, AdvisorID: &advisor},
		"stu-off": {ID: "stu-off", Status: models.StudentOnLeave},
	}
	lecturers := stubLecturers{
		"user-advisor": {ID: "lect-1"},
		"user-other":   {ID: "lect-2"},
	}
	publisher := &recordingPublisher{}
	metrics := NewMetricsService()
	svc := NewEnrollmentService(repo, memorySections{repo}, students, lecturers, stubActiveTerm{term: term}, publisher, nil, metrics, EnrollmentConfig{AllowReopen: true}, zap.NewNop())
	return enrollmentFixture{svc: svc, repo: repo, publisher: publisher, metrics: metrics}
}

func sectionFixture(id, termID, code string, credits, capacity, filled int) models.SectionDetail {
	return models.SectionDetail{
		CourseSection: models.CourseSection{ID: id, TermID: termID, Capacity: capacity, SeatsFilled: filled},
		CourseCode:    code,
		CreditHours:   credits,
	}
}

func activeTerm() *models.AcademicTerm {
	return &models.AcademicTerm{ID: "t1", YearLabel: "2024/2025", TermName: models.TermGanjil, IsActive: true}
}

func TestEnrollmentServiceFirstAddCreatesDraft(t *testing.T) {
	f := newEnrollmentFixture(t, activeTerm())

	result, err := f.svc.AddSection(context.Background(), "stu-1", "sec-alg")
	require.NoError(t, err)
	assert.True(t, result.DraftCreated)
	assert.Equal(t, models.EnrollmentDraft, result.Enrollment.Status)
	assert.Equal(t, 3, result.TotalCredits)
	assert.Equal(t, 3, result.Enrollment.TotalCredits)

	lines, err := f.repo.ListLines(context.Background(), result.Enrollment.ID)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "sec-alg", lines[0].SectionID)

	second, err := f.svc.AddSection(context.Background(), "stu-1", "sec-db")
	require.NoError(t, err)
	assert.False(t, second.DraftCreated)
	assert.Equal(t, result.Enrollment.ID, second.Enrollment.ID)
	assert.Equal(t, 7, second.TotalCredits)
}

func TestEnrollmentServiceAddSectionRejections(t *testing.T) {
	f := newEnrollmentFixture(t, activeTerm())
	ctx := context.Background()

	_, err := f.svc.AddSection(ctx, "stu-1", "sec-alg")
	require.NoError(t, err)

	_, err = f.svc.AddSection(ctx, "stu-1", "sec-alg")
	assert.ErrorIs(t, err, appErrors.ErrDuplicateSection)

	_, err = f.svc.AddSection(ctx, "stu-1", "sec-full")
	assert.ErrorIs(t, err, appErrors.ErrSectionFull)

	_, err = f.svc.AddSection(ctx, "stu-1", "sec-old")
	assert.ErrorIs(t, err, appErrors.ErrInvalidSection)

	_, err = f.svc.AddSection(ctx, "stu-1", "sec-missing")
	assert.ErrorIs(t, err, appErrors.ErrInvalidSection)

	lines, err := f.repo.ListLines(ctx, "enr-1")
	require.NoError(t, err)
	assert.Len(t, lines, 1)
	assert.Equal(t, 1, f.repo.sections["sec-full"].SeatsFilled)
}

func TestEnrollmentServiceRefusedAddLeavesNoDraft(t *testing.T) {
	f := newEnrollmentFixture(t, activeTerm())
	ctx := context.Background()

	_, err := f.svc.AddSection(ctx, "stu-1", "sec-missing")
	assert.ErrorIs(t, err, appErrors.ErrInvalidSection)
	_, err = f.svc.AddSection(ctx, "stu-1", "sec-old")
	assert.ErrorIs(t, err, appErrors.ErrInvalidSection)
	_, err = f.svc.AddSection(ctx, "stu-1", "sec-full")
	assert.ErrorIs(t, err, appErrors.ErrSectionFull)

	_, err = f.repo.FindByStudentTerm(ctx, "stu-1", "t1")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.Empty(t, f.repo.enrollments)
}

func TestEnrollmentServiceSeatsNeverExceedCapacity(t *testing.T) {
	f := newEnrollmentFixture(t, activeTerm())
	f.repo.sections["sec-db"].Capacity = 1
	advisor := "lect-1"
	f.svc.students = stubStudents{
		"stu-1": {ID: "stu-1", Status: models.StudentActive, AdvisorID: &advisor},
		"stu-2": {ID: "stu-2", Status: models.StudentActive, AdvisorID: &advisor},
	}

	_, err := f.svc.AddSection(context.Background(), "stu-1", "sec-db")
	require.NoError(t, err)
	_, err = f.svc.AddSection(context.Background(), "stu-2", "sec-db")
	assert.ErrorIs(t, err, appErrors.ErrSectionFull)
	assert.Equal(t, 1, f.repo.sections["sec-db"].SeatsFilled)
}

func TestEnrollmentServiceRequiresActiveTerm(t *testing.T) {
	f := newEnrollmentFixture(t, nil)

	_, err := f.svc.AddSection(context.Background(), "stu-1", "sec-alg")
	assert.ErrorIs(t, err, appErrors.ErrNoActiveTerm)

	_, err = f.svc.Current(context.Background(), "stu-1")
	assert.ErrorIs(t, err, appErrors.ErrNoActiveTerm)
}

func TestEnrollmentServiceInactiveStudent(t *testing.T) {
	f := newEnrollmentFixture(t, activeTerm())

	_, err := f.svc.AddSection(context.Background(), "stu-off", "sec-alg")
	assert.ErrorIs(t, err, appErrors.ErrPreconditionFailed)
}

func TestEnrollmentServiceSubmitEmptyKeepsDraft(t *testing.T) {
	f := newEnrollmentFixture(t, activeTerm())
	ctx := context.Background()

	draft, err := f.svc.GetOrCreateDraft(ctx, "stu-1")
	require.NoError(t, err)
	require.True(t, draft.Created)

	_, err = f.svc.Submit(ctx, "stu-1")
	assert.ErrorIs(t, err, appErrors.ErrEmptyEnrollment)

	stored, err := f.repo.FindByID(ctx, draft.Enrollment.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentDraft, stored.Status)
	assert.Empty(t, f.publisher.jobs)
}

func TestEnrollmentServiceLockedAfterSubmit(t *testing.T) {
	f := newEnrollmentFixture(t, activeTerm())
	ctx := context.Background()

	added, err := f.svc.AddSection(ctx, "stu-1", "sec-alg")
	require.NoError(t, err)

	submitted, err := f.svc.Submit(ctx, "stu-1")
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentSubmitted, submitted.Status)
	require.Len(t, f.publisher.jobs, 1)
	assert.Equal(t, JobEnrollmentSubmitted, f.publisher.jobs[0].Type)

	_, err = f.svc.AddSection(ctx, "stu-1", "sec-db")
	assert.ErrorIs(t, err, appErrors.ErrEnrollmentLocked)

	_, err = f.svc.RemoveSection(ctx, "stu-1", added.Line.ID)
	assert.ErrorIs(t, err, appErrors.ErrEnrollmentLocked)

	_, err = f.svc.Submit(ctx, "stu-1")
	assert.ErrorIs(t, err, appErrors.ErrInvalidStateTransition)
}

func TestEnrollmentServiceRemoveSectionRecomputesCredits(t *testing.T) {
	f := newEnrollmentFixture(t, activeTerm())
	ctx := context.Background()

	first, err := f.svc.AddSection(ctx, "stu-1", "sec-alg")
	require.NoError(t, err)
	_, err = f.svc.AddSection(ctx, "stu-1", "sec-db")
	require.NoError(t, err)

	enrollment, err := f.svc.RemoveSection(ctx, "stu-1", first.Line.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, enrollment.TotalCredits)
	assert.Equal(t, 0, f.repo.sections["sec-alg"].SeatsFilled)

	_, err = f.svc.RemoveSection(ctx, "stu-1", first.Line.ID)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestEnrollmentServiceReviewAuthorization(t *testing.T) {
	f := newEnrollmentFixture(t, activeTerm())
	ctx := context.Background()

	added, err := f.svc.AddSection(ctx, "stu-1", "sec-alg")
	require.NoError(t, err)
	_, err = f.svc.Submit(ctx, "stu-1")
	require.NoError(t, err)
	id := added.Enrollment.ID

	_, err = f.svc.Approve(ctx, Actor{UserID: "user-other", Role: models.RoleLecturer}, id, ReviewRequest{})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	_, err = f.svc.Approve(ctx, Actor{UserID: "user-student", Role: models.RoleStudent}, id, ReviewRequest{})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	approved, err := f.svc.Approve(ctx, Actor{UserID: "user-advisor", Role: models.RoleLecturer}, id, ReviewRequest{})
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentApproved, approved.Status)
	require.NotNil(t, approved.ApprovedBy)
	assert.Equal(t, "user-advisor", *approved.ApprovedBy)

	_, err = f.svc.Reject(ctx, Actor{UserID: "user-admin", Role: models.RoleAdmin}, id, ReviewRequest{})
	assert.ErrorIs(t, err, appErrors.ErrInvalidStateTransition)

	assert.Equal(t, uint64(2), f.metrics.Snapshot().EnrollmentTransitions)
}

func TestEnrollmentServiceRejectAndReopen(t *testing.T) {
	f := newEnrollmentFixture(t, activeTerm())
	ctx := context.Background()
	admin := Actor{UserID: "user-admin", Role: models.RoleAdmin}

	added, err := f.svc.AddSection(ctx, "stu-1", "sec-alg")
	require.NoError(t, err)
	_, err = f.svc.Submit(ctx, "stu-1")
	require.NoError(t, err)

	rejected, err := f.svc.Reject(ctx, admin, added.Enrollment.ID, ReviewRequest{})
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentRejected, rejected.Status)

	reopened, err := f.svc.Reopen(ctx, admin, added.Enrollment.ID, ReviewRequest{})
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentDraft, reopened.Status)

	_, err = f.svc.AddSection(ctx, "stu-1", "sec-db")
	require.NoError(t, err)

	types := make([]string, 0, len(f.publisher.jobs))
	for _, job := range f.publisher.jobs {
		types = append(types, job.Type)
	}
	assert.Equal(t, []string{JobEnrollmentSubmitted, JobEnrollmentRejected, JobEnrollmentReopened}, types)
}

func TestEnrollmentServiceReopenDisabled(t *testing.T) {
	f := newEnrollmentFixture(t, activeTerm())
	f.svc.config.AllowReopen = false
	ctx := context.Background()
	admin := Actor{UserID: "user-admin", Role: models.RoleAdmin}

	added, err := f.svc.AddSection(ctx, "stu-1", "sec-alg")
	require.NoError(t, err)
	_, err = f.svc.Submit(ctx, "stu-1")
	require.NoError(t, err)
	_, err = f.svc.Reject(ctx, admin, added.Enrollment.ID, ReviewRequest{})
	require.NoError(t, err)

	_, err = f.svc.Reopen(ctx, admin, added.Enrollment.ID, ReviewRequest{})
	assert.ErrorIs(t, err, appErrors.ErrInvalidStateTransition)
}

func TestEnrollmentServiceCurrentView(t *testing.T) {
	f := newEnrollmentFixture(t, activeTerm())
	ctx := context.Background()

	view, err := f.svc.Current(ctx, "stu-1")
	require.NoError(t, err)
	assert.Nil(t, view.Enrollment)
	assert.False(t, view.CanSubmit)
	assert.Len(t, view.Available, 3)

	_, err = f.svc.AddSection(ctx, "stu-1", "sec-db")
	require.NoError(t, err)

	view, err = f.svc.Current(ctx, "stu-1")
	require.NoError(t, err)
	require.NotNil(t, view.Enrollment)
	assert.True(t, view.CanSubmit)
	assert.Equal(t, 4, view.TotalCredits)
	assert.Len(t, view.Lines, 1)
	assert.Len(t, view.Available, 2)
}

func TestEnrollmentServiceListScopesLecturerToAdvisees(t *testing.T) {
	f := newEnrollmentFixture(t, activeTerm())
	captured := &filterCapture{memoryEnrollmentRepo: f.repo}
	f.svc.repo = captured

	_, _, err := f.svc.List(context.Background(), Actor{UserID: "user-advisor", Role: models.RoleLecturer}, models.EnrollmentFilter{AdvisorID: "lect-9"})
	require.NoError(t, err)
	assert.Equal(t, "lect-1", captured.filter.AdvisorID)

	_, _, err = f.svc.List(context.Background(), Actor{UserID: "user-unknown", Role: models.RoleLecturer}, models.EnrollmentFilter{})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
}

type filterCapture struct {
	*memoryEnrollmentRepo
	filter models.EnrollmentFilter
}

func (f *filterCapture) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentSummary, int, error) {
	f.filter = filter
	return f.memoryEnrollmentRepo.List(ctx, filter)
}
