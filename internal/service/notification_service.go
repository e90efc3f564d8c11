package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/siakad-api/internal/models"
	appErrors "github.com/noah-isme/siakad-api/pkg/errors"
	"github.com/noah-isme/siakad-api/pkg/jobs"
)

type notificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
	ListByUser(ctx context.Context, userID string, unreadOnly bool, page, size int) ([]models.Notification, int, error)
	MarkRead(ctx context.Context, id, userID string) error
}

type advisorLookup interface {
	FindByID(ctx context.Context, id string) (*models.Lecturer, error)
}

type jobRegistrar interface {
	Handle(jobType string, handler jobs.Handler)
}

// NotificationService turns enrollment events into in-app notifications.
type NotificationService struct {
	repo      notificationRepository
	students  studentLookup
	lecturers advisorLookup
	logger    *zap.Logger
}

// NewNotificationService constructs a NotificationService.
func NewNotificationService(repo notificationRepository, students studentLookup, lecturers advisorLookup, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{repo: repo, students: students, lecturers: lecturers, logger: logger}
}

// Register subscribes the service to every enrollment job type.
func (s *NotificationService) Register(queue jobRegistrar) {
	for _, jobType := range transitionJobTypes {
		queue.Handle(jobType, s.HandleEnrollmentEvent)
	}
}

// HandleEnrollmentEvent notifies the student, and the advisor on submission.
func (s *NotificationService) HandleEnrollmentEvent(ctx context.Context, job jobs.Job) error {
	event, ok := job.Payload.(EnrollmentEvent)
	if !ok {
		return fmt.Errorf("job %s: unexpected payload %T", job.ID, job.Payload)
	}

	student, err := s.students.FindByID(ctx, event.StudentID)
	if err != nil {
		return fmt.Errorf("load student %s: %w", event.StudentID, err)
	}

	kind, title, message := describeEvent(event)
	link := "/krs"
	if student.UserID != nil {
		if err := s.repo.Create(ctx, &models.Notification{
			UserID:  *student.UserID,
			Title:   title,
			Message: message,
			Kind:    kind,
			Link:    &link,
		}); err != nil {
			return fmt.Errorf("notify student: %w", err)
		}
	}

	if event.Action != models.ActionSubmit || student.AdvisorID == nil {
		return nil
	}
	advisor, err := s.lecturers.FindByID(ctx, *student.AdvisorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("advisor not found for notification", zap.String("advisor_id", *student.AdvisorID))
			return nil
		}
		return fmt.Errorf("load advisor: %w", err)
	}
	if advisor.UserID == nil {
		return nil
	}
	reviewLink := "/enrollments/" + event.EnrollmentID
	if err := s.repo.Create(ctx, &models.Notification{
		UserID:  *advisor.UserID,
		Title:   "KRS menunggu persetujuan",
		Message: fmt.Sprintf("%s (%s) mengajukan KRS untuk disetujui.", student.Name, student.NIM),
		Kind:    models.NotificationKRSSubmitted,
		Link:    &reviewLink,
	}); err != nil {
		return fmt.Errorf("notify advisor: %w", err)
	}
	return nil
}

// ListMine returns the caller's notifications.
func (s *NotificationService) ListMine(ctx context.Context, userID string, unreadOnly bool, page, size int) ([]models.Notification, *models.Pagination, error) {
	items, total, err := s.repo.ListByUser(ctx, userID, unreadOnly, page, size)
	if err != nil {
		return nil, nil, internalError(s.logger, "failed to list notifications", err)
	}
	if items == nil {
		items = []models.Notification{}
	}
	return items, models.NewPagination(page, size, total), nil
}

// MarkRead flags one of the caller's notifications as read.
func (s *NotificationService) MarkRead(ctx context.Context, userID, id string) error {
	if err := s.repo.MarkRead(ctx, id, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "notification not found")
		}
		return internalError(s.logger, "failed to mark notification read", err)
	}
	return nil
}

func describeEvent(event EnrollmentEvent) (kind, title, message string) {
	switch event.Action {
	case models.ActionSubmit:
		return models.NotificationKRSSubmitted, "KRS diajukan", "KRS Anda telah diajukan dan menunggu persetujuan dosen wali."
	case models.ActionApprove:
		return models.NotificationKRSApproved, "KRS disetujui", "KRS Anda telah disetujui."
	case models.ActionReject:
		message = "KRS Anda ditolak."
		if event.Notes != nil && *event.Notes != "" {
			message += " Catatan: " + *event.Notes
		}
		return models.NotificationKRSRejected, "KRS ditolak", message
	default:
		return models.NotificationKRSReopened, "KRS dibuka kembali", "KRS Anda dapat diubah kembali."
	}
}
