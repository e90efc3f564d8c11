package service

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/siakad-api/internal/models"
)

// Institutional defaults used when no scale is configured.
const (
	DefaultGradeScale        = "A=4.00,A-=3.70,B+=3.30,B=3.00,B-=2.70,C+=2.30,C=2.00,D=1.00,E=0.00"
	DefaultGradeScoreCutoffs = "A=85,A-=80,B+=75,B=70,B-=65,C+=60,C=55,D=40,E=0"
)

type scoreCutoff struct {
	letter   string
	minScore decimal.Decimal
}

// GradeScale maps letter grades to grade points and numeric scores to letters.
type GradeScale struct {
	indexes map[string]decimal.Decimal
	cutoffs []scoreCutoff
}

// ParseGradeScale reads "A=4.00,B=3.00" style scale and cutoff lists. Every
// cutoff letter must exist in the scale.
func ParseGradeScale(scale, cutoffs string) (*GradeScale, error) {
	if strings.TrimSpace(scale) == "" {
		scale = DefaultGradeScale
	}
	if strings.TrimSpace(cutoffs) == "" {
		cutoffs = DefaultGradeScoreCutoffs
	}

	indexPairs, err := parseLetterPairs(scale)
	if err != nil {
		return nil, fmt.Errorf("grade scale: %w", err)
	}
	gs := &GradeScale{indexes: make(map[string]decimal.Decimal, len(indexPairs))}
	for _, p := range indexPairs {
		if p.value.IsNegative() {
			return nil, fmt.Errorf("grade scale: negative index for %s", p.letter)
		}
		gs.indexes[p.letter] = p.value
	}

	cutoffPairs, err := parseLetterPairs(cutoffs)
	if err != nil {
		return nil, fmt.Errorf("grade cutoffs: %w", err)
	}
	for _, p := range cutoffPairs {
		if _, ok := gs.indexes[p.letter]; !ok {
			return nil, fmt.Errorf("grade cutoffs: letter %s missing from scale", p.letter)
		}
		gs.cutoffs = append(gs.cutoffs, scoreCutoff{letter: p.letter, minScore: p.value})
	}
	sort.SliceStable(gs.cutoffs, func(i, j int) bool {
		return gs.cutoffs[i].minScore.GreaterThan(gs.cutoffs[j].minScore)
	})
	return gs, nil
}

// MustDefaultGradeScale returns the institutional default scale.
func MustDefaultGradeScale() *GradeScale {
	gs, err := ParseGradeScale(DefaultGradeScale, DefaultGradeScoreCutoffs)
	if err != nil {
		panic(err)
	}
	return gs
}

// IndexFor returns the grade points of a letter.
func (g *GradeScale) IndexFor(letter string) (decimal.Decimal, bool) {
	idx, ok := g.indexes[strings.ToUpper(strings.TrimSpace(letter))]
	return idx, ok
}

// LetterFor returns the highest letter whose cutoff score is reached.
func (g *GradeScale) LetterFor(score decimal.Decimal) (string, bool) {
	for _, c := range g.cutoffs {
		if score.GreaterThanOrEqual(c.minScore) {
			return c.letter, true
		}
	}
	return "", false
}

// Resolve fills the letter and grade index of a course from whatever the
// grading workflow recorded: a stored index wins, then the letter, then the
// numeric score. ok is false for ungraded courses.
func (g *GradeScale) Resolve(course models.GradedCourse) (models.GradedCourse, bool) {
	if course.GradeIndex.Valid {
		return course, true
	}
	if course.LetterGrade != nil && *course.LetterGrade != "" {
		if idx, ok := g.IndexFor(*course.LetterGrade); ok {
			course.GradeIndex = decimal.NullDecimal{Decimal: idx, Valid: true}
			return course, true
		}
	}
	if course.NumericScore.Valid {
		if letter, ok := g.LetterFor(course.NumericScore.Decimal); ok {
			idx := g.indexes[letter]
			course.LetterGrade = &letter
			course.GradeIndex = decimal.NullDecimal{Decimal: idx, Valid: true}
			return course, true
		}
	}
	return course, false
}

type letterPair struct {
	letter string
	value  decimal.Decimal
}

func parseLetterPairs(raw string) ([]letterPair, error) {
	var pairs []letterPair
	seen := map[string]bool{}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		letter, value, found := strings.Cut(part, "=")
		letter = strings.ToUpper(strings.TrimSpace(letter))
		if !found || letter == "" {
			return nil, fmt.Errorf("malformed entry %q", part)
		}
		if seen[letter] {
			return nil, fmt.Errorf("duplicate letter %s", letter)
		}
		d, err := decimal.NewFromString(strings.TrimSpace(value))
		if err != nil {
			return nil, fmt.Errorf("invalid value for %s: %w", letter, err)
		}
		seen[letter] = true
		pairs = append(pairs, letterPair{letter: letter, value: d})
	}
	if len(pairs) == 0 {
		return nil, fmt.Errorf("no entries")
	}
	return pairs, nil
}

// gpaAccumulator sums credit-weighted grade points.
type gpaAccumulator struct {
	credits int
	courses int
	points  decimal.Decimal
}

func (a *gpaAccumulator) add(credits int, index decimal.Decimal) {
	a.credits += credits
	a.courses++
	a.points = a.points.Add(index.Mul(decimal.NewFromInt(int64(credits))))
}

func (a *gpaAccumulator) result() models.GPAResult {
	gpa := decimal.Zero
	if a.credits > 0 {
		gpa = a.points.Div(decimal.NewFromInt(int64(a.credits)))
	}
	return models.GPAResult{
		TotalCredits:  a.credits,
		GradedCourses: a.courses,
		QualityPoints: a.points.StringFixed(2),
		GPA:           gpa.StringFixed(2),
	}
}
