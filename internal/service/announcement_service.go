package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/siakad-api/internal/models"
	appErrors "github.com/noah-isme/siakad-api/pkg/errors"
)

type announcementRepository interface {
	List(ctx context.Context, filter models.AnnouncementFilter) ([]models.Announcement, int, error)
	FindByID(ctx context.Context, id string) (*models.Announcement, error)
	Create(ctx context.Context, announcement *models.Announcement) error
	Update(ctx context.Context, announcement *models.Announcement) error
	Delete(ctx context.Context, id string) error
}

// AnnouncementListRequest describes filters for listing announcements.
type AnnouncementListRequest struct {
	Category string
	Audience string
	Search   string
	Page     int
	PageSize int
}

// AnnouncementRequest is the create and update payload.
type AnnouncementRequest struct {
	Title       string     `json:"title" validate:"required,max=200"`
	Content     string     `json:"content" validate:"required"`
	Category    string     `json:"category" validate:"omitempty,oneof=GENERAL ACADEMIC EVENT"`
	Audience    string     `json:"audience" validate:"omitempty,oneof=ALL STUDENT LECTURER"`
	IsPinned    bool       `json:"is_pinned"`
	PublishedAt *time.Time `json:"published_at"`
	ExpiresAt   *time.Time `json:"expires_at"`
}

// AnnouncementService manages the announcement board.
type AnnouncementService struct {
	repo      announcementRepository
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewAnnouncementService constructs the service.
func NewAnnouncementService(repo announcementRepository, validate *validator.Validate, logger *zap.Logger) *AnnouncementService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnnouncementService{repo: repo, validator: validate, logger: logger, now: time.Now}
}

// List returns the announcements the actor may read. Admins also see
// scheduled and expired announcements.
func (s *AnnouncementService) List(ctx context.Context, actor Actor, req AnnouncementListRequest) ([]models.Announcement, *models.Pagination, error) {
	filter := models.AnnouncementFilter{
		Audiences:     models.AudiencesFor(actor.Role),
		Category:      models.AnnouncementCategory(strings.ToUpper(strings.TrimSpace(req.Category))),
		Search:        req.Search,
		IncludeHidden: actor.Role == models.RoleAdmin,
		Page:          req.Page,
		PageSize:      req.PageSize,
	}
	if audience := models.AnnouncementAudience(strings.ToUpper(strings.TrimSpace(req.Audience))); audience != "" {
		if !audienceAllowed(filter.Audiences, audience) {
			return []models.Announcement{}, models.NewPagination(req.Page, req.PageSize, 0), nil
		}
		filter.Audiences = []models.AnnouncementAudience{audience}
	}

	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internalError(s.logger, "failed to list announcements", err)
	}
	if items == nil {
		items = []models.Announcement{}
	}
	return items, models.NewPagination(req.Page, req.PageSize, total), nil
}

// Get returns one announcement. Announcements outside the actor's audience or
// publication window read as not found.
func (s *AnnouncementService) Get(ctx context.Context, actor Actor, id string) (*models.Announcement, error) {
	announcement, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role != models.RoleAdmin {
		if !audienceAllowed(models.AudiencesFor(actor.Role), announcement.Audience) || !announcement.VisibleAt(s.now()) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "announcement not found")
		}
	}
	return announcement, nil
}

// Create publishes a new announcement authored by the actor.
func (s *AnnouncementService) Create(ctx context.Context, actor Actor, req AnnouncementRequest) (*models.Announcement, error) {
	announcement := &models.Announcement{PublishedBy: actor.UserID}
	if err := s.apply(announcement, req); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, announcement); err != nil {
		return nil, internalError(s.logger, "failed to create announcement", err)
	}
	s.logger.Info("announcement published",
		zap.String("announcement_id", announcement.ID),
		zap.String("audience", string(announcement.Audience)),
		zap.String("published_by", actor.UserID),
	)
	return announcement, nil
}

// Update replaces the content of an announcement.
func (s *AnnouncementService) Update(ctx context.Context, id string, req AnnouncementRequest) (*models.Announcement, error) {
	announcement, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.apply(announcement, req); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, announcement); err != nil {
		return nil, internalError(s.logger, "failed to update announcement", err)
	}
	return announcement, nil
}

// Delete removes an announcement.
func (s *AnnouncementService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "announcement not found")
		}
		return internalError(s.logger, "failed to delete announcement", err)
	}
	return nil
}

func (s *AnnouncementService) load(ctx context.Context, id string) (*models.Announcement, error) {
	announcement, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "announcement not found")
		}
		return nil, internalError(s.logger, "failed to load announcement", err)
	}
	return announcement, nil
}

// apply validates req and copies it onto announcement. Category defaults to
// GENERAL, audience to ALL and the publication time to now.
func (s *AnnouncementService) apply(announcement *models.Announcement, req AnnouncementRequest) error {
	req.Title = strings.TrimSpace(req.Title)
	req.Content = strings.TrimSpace(req.Content)
	req.Category = strings.ToUpper(strings.TrimSpace(req.Category))
	req.Audience = strings.ToUpper(strings.TrimSpace(req.Audience))
	if err := s.validator.Struct(req); err != nil {
		return validationError(err, "invalid announcement payload")
	}

	publishedAt := s.now().UTC()
	if req.PublishedAt != nil {
		publishedAt = req.PublishedAt.UTC()
	}
	if req.ExpiresAt != nil && !req.ExpiresAt.After(publishedAt) {
		return appErrors.Clone(appErrors.ErrValidation, "expires_at must be after published_at")
	}

	announcement.Title = req.Title
	announcement.Content = req.Content
	announcement.Category = models.CategoryGeneral
	if req.Category != "" {
		announcement.Category = models.AnnouncementCategory(req.Category)
	}
	announcement.Audience = models.AudienceAll
	if req.Audience != "" {
		announcement.Audience = models.AnnouncementAudience(req.Audience)
	}
	announcement.IsPinned = req.IsPinned
	announcement.PublishedAt = publishedAt
	announcement.ExpiresAt = req.ExpiresAt
	return nil
}

// audienceAllowed treats a nil allow-list as every audience.
func audienceAllowed(allowed []models.AnnouncementAudience, audience models.AnnouncementAudience) bool {
	if allowed == nil {
		return true
	}
	for _, a := range allowed {
		if a == audience {
			return true
		}
	}
	return false
}
