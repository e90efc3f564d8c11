package service

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/noah-isme/siakad-api/internal/models"
)

type gradeReader interface {
	GradedCourses(ctx context.Context, studentID, termID string) ([]models.GradedCourse, error)
}

// GradeService computes term (IPS) and cumulative (IPK) grade point averages.
type GradeService struct {
	repo    gradeReader
	scale   *GradeScale
	metrics *MetricsService
	logger  *zap.Logger
}

// NewGradeService constructs a GradeService. A nil scale uses the default.
func NewGradeService(repo gradeReader, scale *GradeScale, metrics *MetricsService, logger *zap.Logger) *GradeService {
	if scale == nil {
		scale = MustDefaultGradeScale()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GradeService{repo: repo, scale: scale, metrics: metrics, logger: logger}
}

// Courses returns the student's enrolled courses with letters and indexes
// resolved through the grade scale. An empty termID spans every term.
func (s *GradeService) Courses(ctx context.Context, studentID, termID string) ([]models.GradedCourse, error) {
	courses, err := s.repo.GradedCourses(ctx, studentID, termID)
	if err != nil {
		return nil, internalError(s.logger, "failed to load graded courses", err)
	}
	for i := range courses {
		courses[i], _ = s.scale.Resolve(courses[i])
	}
	return courses, nil
}

// ComputeTermGPA returns the IPS of one term.
func (s *GradeService) ComputeTermGPA(ctx context.Context, studentID, termID string) (*models.GPAResult, error) {
	courses, err := s.Courses(ctx, studentID, termID)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordGPAComputation("term")
	result := Summarize(courses)
	return &result, nil
}

// ComputeCumulativeGPA returns the IPK over every graded course together with
// each term's IPS, oldest term first.
func (s *GradeService) ComputeCumulativeGPA(ctx context.Context, studentID string) (*models.CumulativeGPA, error) {
	courses, err := s.Courses(ctx, studentID, "")
	if err != nil {
		return nil, err
	}
	s.metrics.RecordGPAComputation("cumulative")
	return Cumulative(courses), nil
}

// Summarize averages the graded courses in the list. Ungraded courses carry no
// credits into the result.
func Summarize(courses []models.GradedCourse) models.GPAResult {
	var acc gpaAccumulator
	for _, c := range courses {
		if c.GradeIndex.Valid {
			acc.add(c.CreditHours, c.GradeIndex.Decimal)
		}
	}
	return acc.result()
}

// Cumulative groups resolved courses by term. Terms are returned in
// chronological order regardless of input order.
func Cumulative(courses []models.GradedCourse) *models.CumulativeGPA {
	var overall gpaAccumulator
	perTerm := map[string]*gpaAccumulator{}
	var order []models.GradedCourse

	for _, c := range courses {
		acc, ok := perTerm[c.TermID]
		if !ok {
			acc = &gpaAccumulator{}
			perTerm[c.TermID] = acc
			order = append(order, c)
		}
		if c.GradeIndex.Valid {
			acc.add(c.CreditHours, c.GradeIndex.Decimal)
			overall.add(c.CreditHours, c.GradeIndex.Decimal)
		}
	}

	sortByTermStart(order, false)
	terms := make([]models.TermGPA, 0, len(order))
	for _, c := range order {
		terms = append(terms, models.TermGPA{
			TermID:    c.TermID,
			YearLabel: c.YearLabel,
			TermName:  c.TermName,
			GPAResult: perTerm[c.TermID].result(),
		})
	}
	return &models.CumulativeGPA{GPAResult: overall.result(), Terms: terms}
}

// sortByTermStart orders courses by term start date, newest first when desc.
func sortByTermStart(courses []models.GradedCourse, desc bool) {
	sort.SliceStable(courses, func(i, j int) bool {
		if desc {
			return courses[i].TermStart.After(courses[j].TermStart)
		}
		return courses[i].TermStart.Before(courses[j].TermStart)
	})
}
