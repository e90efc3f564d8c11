package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/siakad-api/internal/models"
)

const termColumns = `t.id, t.year_label, t.term_name, t.start_date, t.end_date, (a.term_id IS NOT NULL) AS is_active, t.created_at, t.updated_at`

const (
	termFindByIDQuery   = `SELECT ` + termColumns + ` FROM academic_terms t LEFT JOIN active_term a ON a.term_id = t.id WHERE t.id = $1`
	termFindActiveQuery = `SELECT ` + termColumns + ` FROM active_term a JOIN academic_terms t ON t.id = a.term_id`
	termLockQuery       = `SELECT id FROM academic_terms WHERE id = $1 FOR UPDATE`
	termActivateQuery   = `INSERT INTO active_term (singleton, term_id, updated_at) VALUES (TRUE, $1, $2) ON CONFLICT (singleton) DO UPDATE SET term_id = EXCLUDED.term_id, updated_at = EXCLUDED.updated_at`
)

// TermRepository handles persistence for academic terms and the active-term pointer.
type TermRepository struct {
	db *sqlx.DB
}

// NewTermRepository instantiates a term repository.
func NewTermRepository(db *sqlx.DB) *TermRepository {
	return &TermRepository{db: db}
}

// List returns terms matching provided filters, newest first by default.
func (r *TermRepository) List(ctx context.Context, filter models.TermFilter) ([]models.AcademicTerm, int, error) {
	base := "FROM academic_terms t LEFT JOIN active_term a ON a.term_id = t.id WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.YearLabel != "" {
		conditions = append(conditions, fmt.Sprintf("t.year_label = $%d", len(args)+1))
		args = append(args, filter.YearLabel)
	}
	if filter.TermName != "" {
		conditions = append(conditions, fmt.Sprintf("t.term_name = $%d", len(args)+1))
		args = append(args, filter.TermName)
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"start_date": "t.start_date",
		"end_date":   "t.end_date",
		"year_label": "t.year_label",
		"created_at": "t.created_at",
	}
	column, ok := allowedSorts[filter.SortBy]
	if !ok {
		column = "t.start_date"
	}

	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}

	limit, offset := pageBounds(filter.Page, filter.PageSize)
	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", termColumns, base, column, order, limit, offset)

	var terms []models.AcademicTerm
	if err := r.db.SelectContext(ctx, &terms, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list terms: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, fmt.Sprintf("SELECT COUNT(*) %s", base), args...); err != nil {
		return nil, 0, fmt.Errorf("count terms: %w", err)
	}

	return terms, total, nil
}

// FindByID loads a term by identifier.
func (r *TermRepository) FindByID(ctx context.Context, id string) (*models.AcademicTerm, error) {
	var term models.AcademicTerm
	if err := r.db.GetContext(ctx, &term, termFindByIDQuery, id); err != nil {
		return nil, err
	}
	return &term, nil
}

// FindActive returns the term the active-term pointer references.
// sql.ErrNoRows means no term has ever been activated.
func (r *TermRepository) FindActive(ctx context.Context) (*models.AcademicTerm, error) {
	var term models.AcademicTerm
	if err := r.db.GetContext(ctx, &term, termFindActiveQuery); err != nil {
		return nil, err
	}
	return &term, nil
}

// ExistsByYearAndName checks if the year/semester pair is already taken.
func (r *TermRepository) ExistsByYearAndName(ctx context.Context, yearLabel string, name models.TermName, excludeID string) (bool, error) {
	base := "SELECT 1 FROM academic_terms WHERE year_label = $1 AND term_name = $2"
	args := []interface{}{yearLabel, name}
	if excludeID != "" {
		base += " AND id <> $3"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, base+" LIMIT 1", args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check term uniqueness: %w", err)
	}
	return true, nil
}

// Create inserts a new term record.
func (r *TermRepository) Create(ctx context.Context, term *models.AcademicTerm) error {
	if term.ID == "" {
		term.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if term.CreatedAt.IsZero() {
		term.CreatedAt = now
	}
	term.UpdatedAt = now

	const query = `INSERT INTO academic_terms (id, year_label, term_name, start_date, end_date, created_at, updated_at) VALUES (:id, :year_label, :term_name, :start_date, :end_date, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, term); err != nil {
		return fmt.Errorf("create term: %w", err)
	}
	return nil
}

// Update modifies an existing term.
func (r *TermRepository) Update(ctx context.Context, term *models.AcademicTerm) error {
	term.UpdatedAt = time.Now().UTC()
	const query = `UPDATE academic_terms SET year_label = :year_label, term_name = :term_name, start_date = :start_date, end_date = :end_date, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, term); err != nil {
		return fmt.Errorf("update term: %w", err)
	}
	return nil
}

// Activate points the active-term singleton at id. The previous active term,
// if any, stops being active in the same transaction.
func (r *TermRepository) Activate(ctx context.Context, id string) error {
	return withTx(ctx, r.db, "activate term", func(tx *sqlx.Tx) error {
		var locked string
		if err := tx.GetContext(ctx, &locked, termLockQuery, id); err != nil {
			if err == sql.ErrNoRows {
				return err
			}
			return fmt.Errorf("lock term: %w", err)
		}
		if _, err := tx.ExecContext(ctx, termActivateQuery, id, time.Now().UTC()); err != nil {
			return fmt.Errorf("activate term: %w", err)
		}
		return nil
	})
}

// Delete removes a term permanently.
func (r *TermRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM academic_terms WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete term: %w", err)
	}
	return nil
}

// CountSections returns the number of course sections offered in the term.
func (r *TermRepository) CountSections(ctx context.Context, id string) (int, error) {
	const query = `SELECT COUNT(*) FROM course_sections WHERE term_id = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, id); err != nil {
		return 0, fmt.Errorf("count term sections: %w", err)
	}
	return count, nil
}
