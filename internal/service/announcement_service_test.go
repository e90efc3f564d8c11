package service

import (
	"context"
	"database/sql"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/siakad-api/internal/models"
	appErrors "github.com/noah-isme/siakad-api/pkg/errors"
)

type memoryAnnouncementRepo struct {
	items   map[string]*models.Announcement
	now     time.Time
	filters []models.AnnouncementFilter
}

func newMemoryAnnouncementRepo(now time.Time) *memoryAnnouncementRepo {
	return &memoryAnnouncementRepo{items: map[string]*models.Announcement{}, now: now}
}

func (m *memoryAnnouncementRepo) List(ctx context.Context, filter models.AnnouncementFilter) ([]models.Announcement, int, error) {
	m.filters = append(m.filters, filter)
	var out []models.Announcement
	for _, item := range m.items {
		if !filter.IncludeHidden && !item.VisibleAt(m.now) {
			continue
		}
		if !audienceAllowed(filter.Audiences, item.Audience) {
			continue
		}
		if filter.Category != "" && item.Category != filter.Category {
			continue
		}
		out = append(out, *item)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IsPinned != out[j].IsPinned {
			return out[i].IsPinned
		}
		return out[i].PublishedAt.After(out[j].PublishedAt)
	})
	return out, len(out), nil
}

func (m *memoryAnnouncementRepo) FindByID(ctx context.Context, id string) (*models.Announcement, error) {
	item, ok := m.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *item
	return &copied, nil
}

func (m *memoryAnnouncementRepo) Create(ctx context.Context, announcement *models.Announcement) error {
	if announcement.ID == "" {
		announcement.ID = "ann-" + announcement.Title
	}
	copied := *announcement
	m.items[announcement.ID] = &copied
	return nil
}

func (m *memoryAnnouncementRepo) Update(ctx context.Context, announcement *models.Announcement) error {
	if _, ok := m.items[announcement.ID]; !ok {
		return sql.ErrNoRows
	}
	copied := *announcement
	m.items[announcement.ID] = &copied
	return nil
}

func (m *memoryAnnouncementRepo) Delete(ctx context.Context, id string) error {
	if _, ok := m.items[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.items, id)
	return nil
}

var boardAdmin = Actor{UserID: "admin-1", Role: models.RoleAdmin}

func newAnnouncementFixture(t *testing.T) (*AnnouncementService, *memoryAnnouncementRepo, time.Time) {
	t.Helper()
	now := time.Date(2024, 8, 20, 9, 0, 0, 0, time.UTC)
	repo := newMemoryAnnouncementRepo(now)
	svc := NewAnnouncementService(repo, nil, zap.NewNop())
	svc.now = func() time.Time { return now }
	return svc, repo, now
}

func TestAnnouncementServiceCreateAppliesDefaults(t *testing.T) {
	svc, repo, now := newAnnouncementFixture(t)

	created, err := svc.Create(context.Background(), boardAdmin, AnnouncementRequest{Title: " Libur ", Content: "Kampus tutup"})
	require.NoError(t, err)
	assert.Equal(t, "Libur", created.Title)
	assert.Equal(t, models.CategoryGeneral, created.Category)
	assert.Equal(t, models.AudienceAll, created.Audience)
	assert.Equal(t, now, created.PublishedAt)
	assert.Equal(t, "admin-1", created.PublishedBy)
	require.Contains(t, repo.items, created.ID)
}

func TestAnnouncementServiceCreateValidates(t *testing.T) {
	svc, repo, now := newAnnouncementFixture(t)
	past := now.Add(-time.Hour)

	cases := map[string]AnnouncementRequest{
		"missing title":    {Content: "x"},
		"unknown audience": {Title: "a", Content: "x", Audience: "parents"},
		"expired on write": {Title: "a", Content: "x", ExpiresAt: &past},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), boardAdmin, req)
			require.Error(t, err)
			assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
		})
	}
	assert.Empty(t, repo.items)
}

func TestAnnouncementServiceListFiltersByRole(t *testing.T) {
	svc, repo, now := newAnnouncementFixture(t)
	expired := now.Add(-time.Minute)
	repo.items = map[string]*models.Announcement{
		"all":      {ID: "all", Audience: models.AudienceAll, PublishedAt: now.Add(-48 * time.Hour)},
		"students": {ID: "students", Audience: models.AudienceStudents, IsPinned: true, PublishedAt: now.Add(-72 * time.Hour)},
		"staff":    {ID: "staff", Audience: models.AudienceLecturers, PublishedAt: now.Add(-time.Hour)},
		"expired":  {ID: "expired", Audience: models.AudienceAll, PublishedAt: now.Add(-96 * time.Hour), ExpiresAt: &expired},
		"later":    {ID: "later", Audience: models.AudienceAll, PublishedAt: now.Add(time.Hour)},
	}

	ids := func(items []models.Announcement) []string {
		out := make([]string, 0, len(items))
		for _, item := range items {
			out = append(out, item.ID)
		}
		return out
	}

	items, pagination, err := svc.List(context.Background(), Actor{UserID: "u-1", Role: models.RoleStudent}, AnnouncementListRequest{})
	require.NoError(t, err)
	assert.Equal(t, []string{"students", "all"}, ids(items))
	assert.Equal(t, 2, pagination.TotalCount)

	items, _, err = svc.List(context.Background(), Actor{UserID: "l-1", Role: models.RoleLecturer}, AnnouncementListRequest{})
	require.NoError(t, err)
	assert.Equal(t, []string{"staff", "all"}, ids(items))

	items, _, err = svc.List(context.Background(), boardAdmin, AnnouncementListRequest{})
	require.NoError(t, err)
	assert.Len(t, items, 5)
	assert.True(t, repo.filters[len(repo.filters)-1].IncludeHidden)
}

func TestAnnouncementServiceListAudienceOutsideRole(t *testing.T) {
	svc, repo, _ := newAnnouncementFixture(t)

	items, pagination, err := svc.List(context.Background(), Actor{UserID: "u-1", Role: models.RoleStudent}, AnnouncementListRequest{Audience: "lecturer"})
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Equal(t, 0, pagination.TotalCount)
	assert.Empty(t, repo.filters)
}

func TestAnnouncementServiceGetHidesOtherAudience(t *testing.T) {
	svc, repo, now := newAnnouncementFixture(t)
	repo.items["staff"] = &models.Announcement{ID: "staff", Audience: models.AudienceLecturers, PublishedAt: now.Add(-time.Hour)}

	_, err := svc.Get(context.Background(), Actor{UserID: "u-1", Role: models.RoleStudent}, "staff")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	got, err := svc.Get(context.Background(), Actor{UserID: "l-1", Role: models.RoleLecturer}, "staff")
	require.NoError(t, err)
	assert.Equal(t, "staff", got.ID)
}

func TestAnnouncementServiceUpdateAndDelete(t *testing.T) {
	svc, repo, now := newAnnouncementFixture(t)
	repo.items["a-1"] = &models.Announcement{ID: "a-1", Title: "old", PublishedBy: "admin-1", PublishedAt: now.Add(-time.Hour)}

	updated, err := svc.Update(context.Background(), "a-1", AnnouncementRequest{Title: "new", Content: "body", Category: "event", IsPinned: true})
	require.NoError(t, err)
	assert.Equal(t, "new", updated.Title)
	assert.Equal(t, models.CategoryEvent, updated.Category)
	assert.True(t, repo.items["a-1"].IsPinned)
	assert.Equal(t, "admin-1", repo.items["a-1"].PublishedBy)

	require.NoError(t, svc.Delete(context.Background(), "a-1"))
	err = svc.Delete(context.Background(), "a-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	_, err = svc.Update(context.Background(), "a-1", AnnouncementRequest{Title: "x", Content: "y"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
