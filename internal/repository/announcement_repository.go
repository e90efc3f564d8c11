package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/siakad-api/internal/models"
)

const announcementSelect = `SELECT a.id, a.title, a.content, a.category, a.audience, a.is_pinned, a.published_by, u.full_name AS author_name, a.published_at, a.expires_at, a.created_at, a.updated_at FROM announcements a LEFT JOIN users u ON u.id = a.published_by`

const announcementVisible = `a.published_at <= NOW() AND (a.expires_at IS NULL OR a.expires_at > NOW())`

// AnnouncementRepository provides persistence for announcements.
type AnnouncementRepository struct {
	db *sqlx.DB
}

// NewAnnouncementRepository creates the repository.
func NewAnnouncementRepository(db *sqlx.DB) *AnnouncementRepository {
	return &AnnouncementRepository{db: db}
}

// List returns announcements matching the filter, pinned first then newest.
// Unpublished and expired rows are skipped unless IncludeHidden is set.
func (r *AnnouncementRepository) List(ctx context.Context, filter models.AnnouncementFilter) ([]models.Announcement, int, error) {
	where := " WHERE 1=1"
	var args []interface{}

	if !filter.IncludeHidden {
		where += " AND " + announcementVisible
	}
	if len(filter.Audiences) > 0 {
		audiences := make([]string, len(filter.Audiences))
		for i, a := range filter.Audiences {
			audiences[i] = string(a)
		}
		where += fmt.Sprintf(" AND a.audience = ANY($%d)", len(args)+1)
		args = append(args, pq.Array(audiences))
	}
	if filter.Category != "" {
		where += fmt.Sprintf(" AND a.category = $%d", len(args)+1)
		args = append(args, string(filter.Category))
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		where += fmt.Sprintf(" AND a.title ILIKE $%d", len(args)+1)
		args = append(args, "%"+search+"%")
	}

	limit, offset := pageBounds(filter.Page, filter.PageSize)
	query := fmt.Sprintf("%s%s ORDER BY a.is_pinned DESC, a.published_at DESC LIMIT %d OFFSET %d", announcementSelect, where, limit, offset)

	var announcements []models.Announcement
	if err := r.db.SelectContext(ctx, &announcements, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list announcements: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM announcements a"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count announcements: %w", err)
	}
	return announcements, total, nil
}

// FindByID returns an announcement with its author name.
func (r *AnnouncementRepository) FindByID(ctx context.Context, id string) (*models.Announcement, error) {
	var announcement models.Announcement
	if err := r.db.GetContext(ctx, &announcement, announcementSelect+` WHERE a.id = $1`, id); err != nil {
		return nil, err
	}
	return &announcement, nil
}

// Create inserts a new announcement.
func (r *AnnouncementRepository) Create(ctx context.Context, announcement *models.Announcement) error {
	if announcement.ID == "" {
		announcement.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if announcement.CreatedAt.IsZero() {
		announcement.CreatedAt = now
	}
	announcement.UpdatedAt = now
	const query = `INSERT INTO announcements (id, title, content, category, audience, is_pinned, published_by, published_at, expires_at, created_at, updated_at) VALUES (:id, :title, :content, :category, :audience, :is_pinned, :published_by, :published_at, :expires_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, announcement); err != nil {
		return fmt.Errorf("create announcement: %w", err)
	}
	return nil
}

// Update modifies an existing announcement.
func (r *AnnouncementRepository) Update(ctx context.Context, announcement *models.Announcement) error {
	announcement.UpdatedAt = time.Now().UTC()
	const query = `UPDATE announcements SET title = :title, content = :content, category = :category, audience = :audience, is_pinned = :is_pinned, published_at = :published_at, expires_at = :expires_at, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, announcement); err != nil {
		return fmt.Errorf("update announcement: %w", err)
	}
	return nil
}

// Delete removes an announcement. It returns sql.ErrNoRows when nothing was deleted.
func (r *AnnouncementRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM announcements WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete announcement: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete announcement: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
