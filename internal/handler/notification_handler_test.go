package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/siakad-api/internal/models"
	appErrors "github.com/noah-isme/siakad-api/pkg/errors"
)

type notificationServiceMock struct {
	userID     string
	unreadOnly bool
	readID     string
	markErr    error
}

func (m *notificationServiceMock) ListMine(ctx context.Context, userID string, unreadOnly bool, page, size int) ([]models.Notification, *models.Pagination, error) {
	m.userID = userID
	m.unreadOnly = unreadOnly
	return []models.Notification{{ID: "n-1", UserID: userID, Title: "KRS disetujui"}}, models.NewPagination(page, size, 1), nil
}

func (m *notificationServiceMock) MarkRead(ctx context.Context, userID, id string) error {
	m.userID = userID
	m.readID = id
	return m.markErr
}

func TestNotificationHandlerListUnread(t *testing.T) {
	svc := &notificationServiceMock{}
	handler := NewNotificationHandler(svc)

	c, w := newGinContext(http.MethodGet, "/me/notifications?unread=true", nil)
	withClaims(c, "user-1", models.RoleStudent)

	handler.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user-1", svc.userID)
	assert.True(t, svc.unreadOnly)
	assert.Contains(t, w.Body.String(), `"pagination"`)
}

func TestNotificationHandlerMarkRead(t *testing.T) {
	svc := &notificationServiceMock{}
	handler := NewNotificationHandler(svc)

	c, _ := newGinContext(http.MethodPost, "/me/notifications/n-1/read", nil)
	c.Params = append(c.Params, ginParam("id", "n-1"))
	withClaims(c, "user-1", models.RoleStudent)

	handler.MarkRead(c)

	assert.Equal(t, http.StatusNoContent, c.Writer.Status())
	assert.Equal(t, "n-1", svc.readID)
}

func TestNotificationHandlerMarkReadNotFound(t *testing.T) {
	handler := NewNotificationHandler(&notificationServiceMock{markErr: appErrors.ErrNotFound})

	c, w := newGinContext(http.MethodPost, "/me/notifications/n-2/read", nil)
	c.Params = append(c.Params, ginParam("id", "n-2"))
	withClaims(c, "user-1", models.RoleStudent)

	handler.MarkRead(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
