package models

import "time"

// AnnouncementAudience defines who can see an announcement.
type AnnouncementAudience string

const (
	AudienceAll       AnnouncementAudience = "ALL"
	AudienceStudents  AnnouncementAudience = "STUDENT"
	AudienceLecturers AnnouncementAudience = "LECTURER"
)

// AnnouncementCategory groups announcements on the board.
type AnnouncementCategory string

const (
	CategoryGeneral  AnnouncementCategory = "GENERAL"
	CategoryAcademic AnnouncementCategory = "ACADEMIC"
	CategoryEvent    AnnouncementCategory = "EVENT"
)

// Announcement is a campus-wide notice published by an administrator.
type Announcement struct {
	ID          string               `db:"id" json:"id"`
	Title       string               `db:"title" json:"title"`
	Content     string               `db:"content" json:"content"`
	Category    AnnouncementCategory `db:"category" json:"category"`
	Audience    AnnouncementAudience `db:"audience" json:"audience"`
	IsPinned    bool                 `db:"is_pinned" json:"is_pinned"`
	PublishedBy string               `db:"published_by" json:"published_by"`
	AuthorName  *string              `db:"author_name" json:"author_name,omitempty"`
	PublishedAt time.Time            `db:"published_at" json:"published_at"`
	ExpiresAt   *time.Time           `db:"expires_at" json:"expires_at,omitempty"`
	CreatedAt   time.Time            `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time            `db:"updated_at" json:"updated_at"`
}

// VisibleAt reports whether the announcement is published and not yet expired.
func (a Announcement) VisibleAt(now time.Time) bool {
	if a.PublishedAt.After(now) {
		return false
	}
	return a.ExpiresAt == nil || a.ExpiresAt.After(now)
}

// AudiencesFor lists the audiences a role may read. Nil means every audience.
func AudiencesFor(role UserRole) []AnnouncementAudience {
	switch role {
	case RoleAdmin:
		return nil
	case RoleLecturer:
		return []AnnouncementAudience{AudienceAll, AudienceLecturers}
	default:
		return []AnnouncementAudience{AudienceAll, AudienceStudents}
	}
}

// AnnouncementFilter narrows announcement listings.
type AnnouncementFilter struct {
	Audiences     []AnnouncementAudience
	Category      AnnouncementCategory
	Search        string
	IncludeHidden bool
	Page          int
	PageSize      int
}
