package service

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/siakad-api/internal/models"
	appErrors "github.com/noah-isme/siakad-api/pkg/errors"
)

var yearLabelPattern = regexp.MustCompile(`^(\d{4})/(\d{4})$`)

type termRepository interface {
	List(ctx context.Context, filter models.TermFilter) ([]models.AcademicTerm, int, error)
	FindByID(ctx context.Context, id string) (*models.AcademicTerm, error)
	FindActive(ctx context.Context) (*models.AcademicTerm, error)
	ExistsByYearAndName(ctx context.Context, yearLabel string, name models.TermName, excludeID string) (bool, error)
	Create(ctx context.Context, term *models.AcademicTerm) error
	Update(ctx context.Context, term *models.AcademicTerm) error
	Activate(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	CountSections(ctx context.Context, id string) (int, error)
}

// CreateTermRequest describes payload for creating academic terms.
type CreateTermRequest struct {
	YearLabel string          `json:"year_label" validate:"required"`
	TermName  models.TermName `json:"term_name" validate:"required,oneof=Ganjil Genap"`
	StartDate time.Time       `json:"start_date" validate:"required"`
	EndDate   time.Time       `json:"end_date" validate:"required"`
	Activate  bool            `json:"activate"`
}

// UpdateTermRequest updates mutable fields on a term. Activation has its own operation.
type UpdateTermRequest struct {
	YearLabel string          `json:"year_label" validate:"required"`
	TermName  models.TermName `json:"term_name" validate:"required,oneof=Ganjil Genap"`
	StartDate time.Time       `json:"start_date" validate:"required"`
	EndDate   time.Time       `json:"end_date" validate:"required"`
}

// TermService is the academic calendar registry. It owns the single active term.
type TermService struct {
	repo      termRepository
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTermService creates a new term service instance.
func NewTermService(repo termRepository, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *TermService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TermService{repo: repo, cache: cache, validator: validate, logger: logger}
}

// List returns paginated terms, newest first unless another order is requested.
func (s *TermService) List(ctx context.Context, filter models.TermFilter) ([]models.AcademicTerm, *models.Pagination, error) {
	terms, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internalError(s.logger, "failed to list terms", err)
	}
	return terms, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns a term by ID.
func (s *TermService) Get(ctx context.Context, id string) (*models.AcademicTerm, error) {
	term, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "term not found")
		}
		return nil, internalError(s.logger, "failed to load term", err)
	}
	return term, nil
}

// GetActive returns the active term or ErrNoActiveTerm. It never falls back
// to another term.
func (s *TermService) GetActive(ctx context.Context) (*models.AcademicTerm, error) {
	var cached models.AcademicTerm
	if s.cache.Get(ctx, activeTermCacheKey, &cached) {
		return &cached, nil
	}

	term, err := s.repo.FindActive(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNoActiveTerm
		}
		return nil, internalError(s.logger, "failed to load active term", err)
	}
	s.cache.Set(ctx, activeTermCacheKey, term, 0)
	return term, nil
}

// Resolve returns the term with the given id, or the active term when id is empty.
func (s *TermService) Resolve(ctx context.Context, id string) (*models.AcademicTerm, error) {
	if id == "" {
		return s.GetActive(ctx)
	}
	return s.Get(ctx, id)
}

// Create adds a new term. It starts inactive unless Activate is set.
func (s *TermService) Create(ctx context.Context, req CreateTermRequest) (*models.AcademicTerm, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid term payload")
	}
	if err := validateTermFields(req.YearLabel, req.StartDate, req.EndDate); err != nil {
		return nil, err
	}

	exists, err := s.repo.ExistsByYearAndName(ctx, req.YearLabel, req.TermName, "")
	if err != nil {
		return nil, internalError(s.logger, "failed to check term uniqueness", err)
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "term already exists for this academic year")
	}

	term := &models.AcademicTerm{
		YearLabel: req.YearLabel,
		TermName:  req.TermName,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
	}
	if err := s.repo.Create(ctx, term); err != nil {
		return nil, internalError(s.logger, "failed to create term", err)
	}

	if req.Activate {
		return s.Activate(ctx, term.ID)
	}
	return term, nil
}

// Update modifies a term record.
func (s *TermService) Update(ctx context.Context, id string, req UpdateTermRequest) (*models.AcademicTerm, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid term payload")
	}
	if err := validateTermFields(req.YearLabel, req.StartDate, req.EndDate); err != nil {
		return nil, err
	}

	term, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	exists, err := s.repo.ExistsByYearAndName(ctx, req.YearLabel, req.TermName, id)
	if err != nil {
		return nil, internalError(s.logger, "failed to check term uniqueness", err)
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "term already exists for this academic year")
	}

	term.YearLabel = req.YearLabel
	term.TermName = req.TermName
	term.StartDate = req.StartDate
	term.EndDate = req.EndDate
	if err := s.repo.Update(ctx, term); err != nil {
		return nil, internalError(s.logger, "failed to update term", err)
	}
	if term.IsActive {
		s.cache.Delete(ctx, activeTermCacheKey)
	}
	return term, nil
}

// Activate makes id the single active term. The previously active term is
// deactivated in the same transaction.
func (s *TermService) Activate(ctx context.Context, id string) (*models.AcademicTerm, error) {
	if err := s.repo.Activate(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "term not found")
		}
		return nil, internalError(s.logger, "failed to activate term", err)
	}

	s.cache.Delete(ctx, activeTermCacheKey)
	s.cache.Invalidate(ctx, recordCachePrefix+"*")

	term, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.logger.Info("academic term activated", zap.String("term_id", term.ID), zap.String("term", term.Label()))
	return term, nil
}

// Delete removes a term that is neither active nor referenced by sections.
func (s *TermService) Delete(ctx context.Context, id string) error {
	term, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if term.IsActive {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "cannot delete the active term")
	}

	count, err := s.repo.CountSections(ctx, id)
	if err != nil {
		return internalError(s.logger, "failed to check term dependencies", err)
	}
	if count > 0 {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "term still has course sections")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return internalError(s.logger, "failed to delete term", err)
	}
	return nil
}

// validateTermFields checks the "YYYY/YYYY" label spans consecutive years and
// the dates are ordered.
func validateTermFields(yearLabel string, start, end time.Time) error {
	match := yearLabelPattern.FindStringSubmatch(yearLabel)
	if match == nil {
		return appErrors.Clone(appErrors.ErrValidation, "year_label must look like 2024/2025")
	}
	first, _ := strconv.Atoi(match[1])
	second, _ := strconv.Atoi(match[2])
	if second != first+1 {
		return appErrors.Clone(appErrors.ErrValidation, "year_label must span consecutive years")
	}
	if !start.Before(end) {
		return appErrors.Clone(appErrors.ErrValidation, "start_date must be before end_date")
	}
	return nil
}
