package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/siakad-api/internal/models"
)

const lecturerColumns = `id, user_id, employee_number, name, email, status, created_at, updated_at`

// LecturerRepository persists lecturers.
type LecturerRepository struct {
	db *sqlx.DB
}

// NewLecturerRepository constructs a LecturerRepository.
func NewLecturerRepository(db *sqlx.DB) *LecturerRepository {
	return &LecturerRepository{db: db}
}

// List returns lecturers optionally filtered by a name or NIP search term.
func (r *LecturerRepository) List(ctx context.Context, search string, page, size int) ([]models.Lecturer, int, error) {
	base := "FROM lecturers WHERE 1=1"
	var args []interface{}
	if search != "" {
		base += fmt.Sprintf(" AND (LOWER(name) LIKE $%d OR employee_number LIKE $%d)", len(args)+1, len(args)+1)
		args = append(args, "%"+strings.ToLower(search)+"%")
	}

	limit, offset := pageBounds(page, size)
	query := fmt.Sprintf("SELECT %s %s ORDER BY name ASC LIMIT %d OFFSET %d", lecturerColumns, base, limit, offset)

	var lecturers []models.Lecturer
	if err := r.db.SelectContext(ctx, &lecturers, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list lecturers: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count lecturers: %w", err)
	}
	return lecturers, total, nil
}

// FindByID loads a lecturer.
func (r *LecturerRepository) FindByID(ctx context.Context, id string) (*models.Lecturer, error) {
	var lecturer models.Lecturer
	if err := r.db.GetContext(ctx, &lecturer, `SELECT `+lecturerColumns+` FROM lecturers WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &lecturer, nil
}

// FindByUserID resolves the lecturer profile of a login account.
func (r *LecturerRepository) FindByUserID(ctx context.Context, userID string) (*models.Lecturer, error) {
	var lecturer models.Lecturer
	if err := r.db.GetContext(ctx, &lecturer, `SELECT `+lecturerColumns+` FROM lecturers WHERE user_id = $1`, userID); err != nil {
		return nil, err
	}
	return &lecturer, nil
}

// Create inserts a lecturer.
func (r *LecturerRepository) Create(ctx context.Context, lecturer *models.Lecturer) error {
	if lecturer.ID == "" {
		lecturer.ID = uuid.NewString()
	}
	if lecturer.Status == "" {
		lecturer.Status = "active"
	}
	now := time.Now().UTC()
	lecturer.CreatedAt = now
	lecturer.UpdatedAt = now

	const query = `INSERT INTO lecturers (id, user_id, employee_number, name, email, status, created_at, updated_at) VALUES (:id, :user_id, :employee_number, :name, :email, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, lecturer); err != nil {
		return fmt.Errorf("create lecturer: %w", err)
	}
	return nil
}
