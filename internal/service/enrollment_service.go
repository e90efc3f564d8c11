package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/siakad-api/internal/models"
	"github.com/noah-isme/siakad-api/internal/repository"
	appErrors "github.com/noah-isme/siakad-api/pkg/errors"
	"github.com/noah-isme/siakad-api/pkg/jobs"
)

// Job types published for enrollment transitions.
const (
	JobEnrollmentSubmitted = "enrollment.submitted"
	JobEnrollmentApproved  = "enrollment.approved"
	JobEnrollmentRejected  = "enrollment.rejected"
	JobEnrollmentReopened  = "enrollment.reopened"
)

var transitionJobTypes = map[models.EnrollmentAction]string{
	models.ActionSubmit:  JobEnrollmentSubmitted,
	models.ActionApprove: JobEnrollmentApproved,
	models.ActionReject:  JobEnrollmentRejected,
	models.ActionReopen:  JobEnrollmentReopened,
}

type enrollmentRepository interface {
	GetOrCreateDraft(ctx context.Context, studentID, termID string) (*models.Enrollment, bool, error)
	FindByStudentTerm(ctx context.Context, studentID, termID string) (*models.Enrollment, error)
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	FindSummary(ctx context.Context, id string) (*models.EnrollmentSummary, error)
	ListLines(ctx context.Context, enrollmentID string) ([]models.EnrollmentLineDetail, error)
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentSummary, int, error)
	AddLine(ctx context.Context, enrollmentID, termID, sectionID string) (*models.EnrollmentLine, int, error)
	RemoveLine(ctx context.Context, enrollmentID, lineID string) (int, error)
	Transition(ctx context.Context, params repository.TransitionParams) (*models.Enrollment, error)
}

type sectionReader interface {
	FindByID(ctx context.Context, id string) (*models.SectionDetail, error)
	ListAvailable(ctx context.Context, termID, studentID string) ([]models.SectionDetail, error)
}

type studentLookup interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type lecturerLookup interface {
	FindByUserID(ctx context.Context, userID string) (*models.Lecturer, error)
}

type activeTermProvider interface {
	GetActive(ctx context.Context) (*models.AcademicTerm, error)
}

type eventPublisher interface {
	TryEnqueue(job jobs.Job) error
}

// Actor is the authenticated caller of a workflow operation.
type Actor struct {
	UserID string
	Role   models.UserRole
}

// EnrollmentEvent is published after every successful status transition.
type EnrollmentEvent struct {
	EnrollmentID string                  `json:"enrollment_id"`
	StudentID    string                  `json:"student_id"`
	TermID       string                  `json:"term_id"`
	Action       models.EnrollmentAction `json:"action"`
	Status       models.EnrollmentStatus `json:"status"`
	ActorID      string                  `json:"actor_id,omitempty"`
	Notes        *string                 `json:"notes,omitempty"`
	OccurredAt   time.Time               `json:"occurred_at"`
}

// DraftResult reports whether GetOrCreateDraft created the enrollment.
type DraftResult struct {
	Enrollment *models.Enrollment `json:"enrollment"`
	Created    bool               `json:"created"`
}

// AddSectionRequest is the payload for adding a section to the current KRS.
type AddSectionRequest struct {
	SectionID string `json:"section_id" validate:"required"`
}

// AddSectionResult describes the line added and the new credit total.
type AddSectionResult struct {
	Enrollment   *models.Enrollment     `json:"enrollment"`
	Line         *models.EnrollmentLine `json:"line"`
	TotalCredits int                    `json:"total_credits"`
	DraftCreated bool                   `json:"draft_created"`
}

// ReviewRequest carries optional reviewer notes.
type ReviewRequest struct {
	Notes *string `json:"notes" validate:"omitempty,max=1000"`
}

// KRSView is the student's study plan page for the active term.
type KRSView struct {
	Term         *models.AcademicTerm          `json:"term"`
	Enrollment   *models.Enrollment            `json:"enrollment"`
	Lines        []models.EnrollmentLineDetail `json:"lines"`
	Available    []models.SectionDetail        `json:"available_sections"`
	TotalCredits int                           `json:"total_credits"`
	CanSubmit    bool                          `json:"can_submit"`
}

// EnrollmentDetail is an enrollment summary with its lines.
type EnrollmentDetail struct {
	*models.EnrollmentSummary
	Lines []models.EnrollmentLineDetail `json:"lines"`
}

// EnrollmentConfig toggles optional workflow edges.
type EnrollmentConfig struct {
	AllowReopen bool
}

// EnrollmentService runs the KRS workflow.
type EnrollmentService struct {
	repo      enrollmentRepository
	sections  sectionReader
	students  studentLookup
	lecturers lecturerLookup
	terms     activeTermProvider
	events    eventPublisher
	cache     *CacheService
	metrics   *MetricsService
	config    EnrollmentConfig
	logger    *zap.Logger
}

// NewEnrollmentService constructs the workflow service. events, cache and
// metrics may be nil.
func NewEnrollmentService(
	repo enrollmentRepository,
	sections sectionReader,
	students studentLookup,
	lecturers lecturerLookup,
	terms activeTermProvider,
	events eventPublisher,
	cache *CacheService,
	metrics *MetricsService,
	config EnrollmentConfig,
	logger *zap.Logger,
) *EnrollmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{
		repo:      repo,
		sections:  sections,
		students:  students,
		lecturers: lecturers,
		terms:     terms,
		events:    events,
		cache:     cache,
		metrics:   metrics,
		config:    config,
		logger:    logger,
	}
}

// GetOrCreateDraft returns the student's enrollment for the active term,
// creating a draft when none exists.
func (s *EnrollmentService) GetOrCreateDraft(ctx context.Context, studentID string) (*DraftResult, error) {
	if _, err := s.activeStudent(ctx, studentID); err != nil {
		return nil, err
	}
	term, err := s.terms.GetActive(ctx)
	if err != nil {
		return nil, err
	}
	return s.openDraft(ctx, studentID, term)
}

// AddSection puts a section of the active term on the student's draft. The
// draft is only created once the section is known to be open in the term.
func (s *EnrollmentService) AddSection(ctx context.Context, studentID, sectionID string) (*AddSectionResult, error) {
	if sectionID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "section_id is required")
	}
	if _, err := s.activeStudent(ctx, studentID); err != nil {
		return nil, err
	}
	term, err := s.terms.GetActive(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.checkSection(ctx, term.ID, sectionID); err != nil {
		return nil, s.rejectAdd(err)
	}
	draft, err := s.openDraft(ctx, studentID, term)
	if err != nil {
		return nil, err
	}

	line, total, err := s.repo.AddLine(ctx, draft.Enrollment.ID, draft.Enrollment.TermID, sectionID)
	if err != nil {
		return nil, s.rejectAdd(err)
	}

	enrollment := *draft.Enrollment
	enrollment.TotalCredits = total
	s.cache.InvalidateStudent(ctx, studentID)
	return &AddSectionResult{
		Enrollment:   &enrollment,
		Line:         line,
		TotalCredits: total,
		DraftCreated: draft.Created,
	}, nil
}

// RemoveSection deletes a line from the student's draft for the active term.
func (s *EnrollmentService) RemoveSection(ctx context.Context, studentID, lineID string) (*models.Enrollment, error) {
	enrollment, err := s.currentEnrollment(ctx, studentID)
	if err != nil {
		return nil, err
	}
	total, err := s.repo.RemoveLine(ctx, enrollment.ID, lineID)
	if err != nil {
		return nil, s.workflowError("failed to remove section", err)
	}
	enrollment.TotalCredits = total
	s.cache.InvalidateStudent(ctx, studentID)
	return enrollment, nil
}

// Submit sends the student's draft for advisor review.
func (s *EnrollmentService) Submit(ctx context.Context, studentID string) (*models.Enrollment, error) {
	enrollment, err := s.currentEnrollment(ctx, studentID)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, enrollment, models.ActionSubmit, nil, nil)
}

// Approve accepts a submitted enrollment.
func (s *EnrollmentService) Approve(ctx context.Context, actor Actor, enrollmentID string, req ReviewRequest) (*models.Enrollment, error) {
	return s.review(ctx, actor, enrollmentID, models.ActionApprove, req.Notes)
}

// Reject returns a submitted enrollment to the student.
func (s *EnrollmentService) Reject(ctx context.Context, actor Actor, enrollmentID string, req ReviewRequest) (*models.Enrollment, error) {
	return s.review(ctx, actor, enrollmentID, models.ActionReject, req.Notes)
}

// Reopen moves a rejected enrollment back to draft when enabled.
func (s *EnrollmentService) Reopen(ctx context.Context, actor Actor, enrollmentID string, req ReviewRequest) (*models.Enrollment, error) {
	return s.review(ctx, actor, enrollmentID, models.ActionReopen, req.Notes)
}

// ListAvailableSections returns active-term sections not yet on the student's enrollment.
func (s *EnrollmentService) ListAvailableSections(ctx context.Context, studentID string) ([]models.SectionDetail, error) {
	term, err := s.terms.GetActive(ctx)
	if err != nil {
		return nil, err
	}
	sections, err := s.sections.ListAvailable(ctx, term.ID, studentID)
	if err != nil {
		return nil, internalError(s.logger, "failed to list available sections", err)
	}
	return sections, nil
}

// Current assembles the KRS page for the active term without creating a draft.
func (s *EnrollmentService) Current(ctx context.Context, studentID string) (*KRSView, error) {
	term, err := s.terms.GetActive(ctx)
	if err != nil {
		return nil, err
	}
	view := &KRSView{Term: term, Lines: []models.EnrollmentLineDetail{}}

	enrollment, err := s.repo.FindByStudentTerm(ctx, studentID, term.ID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return nil, internalError(s.logger, "failed to load enrollment", err)
	default:
		view.Enrollment = enrollment
		view.TotalCredits = enrollment.TotalCredits
		lines, err := s.repo.ListLines(ctx, enrollment.ID)
		if err != nil {
			return nil, internalError(s.logger, "failed to load enrollment lines", err)
		}
		view.Lines = lines
		view.CanSubmit = enrollment.Status.Editable() && len(lines) > 0
	}

	available, err := s.sections.ListAvailable(ctx, term.ID, studentID)
	if err != nil {
		return nil, internalError(s.logger, "failed to list available sections", err)
	}
	view.Available = available
	return view, nil
}

// List returns enrollments. Lecturers only see their advisees.
func (s *EnrollmentService) List(ctx context.Context, actor Actor, filter models.EnrollmentFilter) ([]models.EnrollmentSummary, *models.Pagination, error) {
	if actor.Role == models.RoleLecturer {
		lecturer, err := s.lecturerFor(ctx, actor)
		if err != nil {
			return nil, nil, err
		}
		filter.AdvisorID = lecturer.ID
	}
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internalError(s.logger, "failed to list enrollments", err)
	}
	return items, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns an enrollment with its lines.
func (s *EnrollmentService) Get(ctx context.Context, actor Actor, id string) (*EnrollmentDetail, error) {
	summary, err := s.repo.FindSummary(ctx, id)
	if err != nil {
		return nil, s.workflowError("failed to load enrollment", err)
	}
	student, err := s.loadStudent(ctx, summary.StudentID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeReviewer(ctx, actor, student); err != nil {
		return nil, err
	}
	lines, err := s.repo.ListLines(ctx, id)
	if err != nil {
		return nil, internalError(s.logger, "failed to load enrollment lines", err)
	}
	return &EnrollmentDetail{EnrollmentSummary: summary, Lines: lines}, nil
}

func (s *EnrollmentService) review(ctx context.Context, actor Actor, enrollmentID string, action models.EnrollmentAction, notes *string) (*models.Enrollment, error) {
	enrollment, err := s.repo.FindByID(ctx, enrollmentID)
	if err != nil {
		return nil, s.workflowError("failed to load enrollment", err)
	}
	student, err := s.loadStudent(ctx, enrollment.StudentID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeReviewer(ctx, actor, student); err != nil {
		return nil, err
	}
	actorID := actor.UserID
	return s.transition(ctx, enrollment, action, &actorID, notes)
}

func (s *EnrollmentService) transition(ctx context.Context, enrollment *models.Enrollment, action models.EnrollmentAction, actorID, notes *string) (*models.Enrollment, error) {
	updated, err := s.repo.Transition(ctx, repository.TransitionParams{
		EnrollmentID: enrollment.ID,
		Action:       action,
		ActorID:      actorID,
		Notes:        notes,
		AllowReopen:  s.config.AllowReopen,
	})
	if err != nil {
		return nil, s.workflowError("failed to update enrollment status", err)
	}

	s.metrics.RecordTransition(action)
	s.cache.InvalidateStudent(ctx, updated.StudentID)
	s.logger.Info("enrollment status changed",
		zap.String("enrollment_id", updated.ID),
		zap.String("action", string(action)),
		zap.String("status", string(updated.Status)),
	)

	event := EnrollmentEvent{
		EnrollmentID: updated.ID,
		StudentID:    updated.StudentID,
		TermID:       updated.TermID,
		Action:       action,
		Status:       updated.Status,
		Notes:        updated.Notes,
		OccurredAt:   updated.UpdatedAt,
	}
	if actorID != nil {
		event.ActorID = *actorID
	}
	s.publish(event)
	return updated, nil
}

func (s *EnrollmentService) publish(event EnrollmentEvent) {
	if s.events == nil {
		return
	}
	jobType, ok := transitionJobTypes[event.Action]
	if !ok {
		return
	}
	if err := s.events.TryEnqueue(jobs.Job{Type: jobType, Payload: event}); err != nil {
		s.logger.Warn("enrollment event dropped",
			zap.String("enrollment_id", event.EnrollmentID),
			zap.String("type", jobType),
			zap.Error(err),
		)
	}
}

func (s *EnrollmentService) openDraft(ctx context.Context, studentID string, term *models.AcademicTerm) (*DraftResult, error) {
	enrollment, created, err := s.repo.GetOrCreateDraft(ctx, studentID, term.ID)
	if err != nil {
		return nil, internalError(s.logger, "failed to open enrollment", err)
	}
	if created {
		s.logger.Info("enrollment draft created",
			zap.String("student_id", studentID),
			zap.String("term_id", term.ID),
			zap.String("enrollment_id", enrollment.ID),
		)
	}
	return &DraftResult{Enrollment: enrollment, Created: created}, nil
}

// checkSection is a pre-check only; AddLine repeats the capacity test under lock.
func (s *EnrollmentService) checkSection(ctx context.Context, termID, sectionID string) error {
	section, err := s.sections.FindByID(ctx, sectionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return repository.ErrSectionUnavailable
		}
		return err
	}
	if section.TermID != termID {
		return repository.ErrSectionUnavailable
	}
	if section.SeatsFilled >= section.Capacity {
		return repository.ErrSectionFull
	}
	return nil
}

func (s *EnrollmentService) rejectAdd(err error) error {
	mapped := s.workflowError("failed to add section", err)
	if appErr := appErrors.FromError(mapped); appErr.Code != appErrors.ErrInternal.Code {
		s.metrics.RecordAddRejection(appErr.Code)
	}
	return mapped
}

// currentEnrollment loads the student's enrollment in the active term.
func (s *EnrollmentService) currentEnrollment(ctx context.Context, studentID string) (*models.Enrollment, error) {
	if _, err := s.activeStudent(ctx, studentID); err != nil {
		return nil, err
	}
	term, err := s.terms.GetActive(ctx)
	if err != nil {
		return nil, err
	}
	enrollment, err := s.repo.FindByStudentTerm(ctx, studentID, term.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no enrollment for the active term")
		}
		return nil, internalError(s.logger, "failed to load enrollment", err)
	}
	return enrollment, nil
}

func (s *EnrollmentService) activeStudent(ctx context.Context, studentID string) (*models.Student, error) {
	student, err := s.loadStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if student.Status != models.StudentActive {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "student is not active")
	}
	return student, nil
}

func (s *EnrollmentService) loadStudent(ctx context.Context, studentID string) (*models.Student, error) {
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, internalError(s.logger, "failed to load student", err)
	}
	return student, nil
}

// authorizeReviewer admits admins and the student's academic advisor.
func (s *EnrollmentService) authorizeReviewer(ctx context.Context, actor Actor, student *models.Student) error {
	switch actor.Role {
	case models.RoleAdmin:
		return nil
	case models.RoleLecturer:
		lecturer, err := s.lecturerFor(ctx, actor)
		if err != nil {
			return err
		}
		if student.AdvisorID != nil && *student.AdvisorID == lecturer.ID {
			return nil
		}
		return appErrors.Clone(appErrors.ErrForbidden, "only the student's academic advisor may review this enrollment")
	}
	return appErrors.Clone(appErrors.ErrForbidden, "")
}

func (s *EnrollmentService) lecturerFor(ctx context.Context, actor Actor) (*models.Lecturer, error) {
	lecturer, err := s.lecturers.FindByUserID(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "account is not linked to a lecturer")
		}
		return nil, internalError(s.logger, "failed to load lecturer", err)
	}
	return lecturer, nil
}

// workflowError translates repository sentinels into API errors.
func (s *EnrollmentService) workflowError(msg string, err error) error {
	switch {
	case errors.Is(err, repository.ErrEnrollmentLocked):
		return appErrors.Clone(appErrors.ErrEnrollmentLocked, "")
	case errors.Is(err, repository.ErrSectionUnavailable):
		return appErrors.Clone(appErrors.ErrInvalidSection, "")
	case errors.Is(err, repository.ErrDuplicateLine):
		return appErrors.Clone(appErrors.ErrDuplicateSection, "")
	case errors.Is(err, repository.ErrSectionFull):
		return appErrors.Clone(appErrors.ErrSectionFull, "")
	case errors.Is(err, repository.ErrNoLines):
		return appErrors.Clone(appErrors.ErrEmptyEnrollment, "")
	case errors.Is(err, repository.ErrStatusConflict):
		return appErrors.Clone(appErrors.ErrInvalidStateTransition, "")
	case errors.Is(err, repository.ErrLineNotFound):
		return appErrors.Clone(appErrors.ErrNotFound, "enrollment line not found")
	case errors.Is(err, sql.ErrNoRows):
		return appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
	}
	return internalError(s.logger, msg, err)
}
