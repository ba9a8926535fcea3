package service

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/jobs"
)

func newNotificationFixture() (*NotificationService, *fakeNotificationRepo, *fakeQueue) {
	repo := &fakeNotificationRepo{}
	queue := &fakeQueue{}
	return NewNotificationService(repo, queue, zap.NewNop()), repo, queue
}

func seedNotifications(t *testing.T, repo *fakeNotificationRepo, userID string, count int) {
	t.Helper()
	for i := 0; i < count; i++ {
		require.NoError(t, repo.Create(context.Background(), &domain.Notification{
			UserID:  userID,
			Title:   "Ticket update",
			Message: "Something happened",
		}))
	}
}

func TestNotificationFeed(t *testing.T) {
	svc, repo, _ := newNotificationFixture()
	seedNotifications(t, repo, "user-1", 7)
	seedNotifications(t, repo, "user-2", 2)

	all, err := svc.List(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Len(t, all, 7)

	recent, err := svc.Recent(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Len(t, recent, recentLimit)

	count, err := svc.UnreadCount(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, 7, count)
}

func TestNotificationDetailsScopedToOwner(t *testing.T) {
	svc, repo, _ := newNotificationFixture()
	seedNotifications(t, repo, "user-1", 1)
	id := repo.notifications[0].ID

	n, err := svc.Details(context.Background(), "user-1", id)
	require.NoError(t, err)
	assert.Equal(t, id, n.ID)

	_, err = svc.Details(context.Background(), "user-2", id)
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, errStatus(t, err))
}

func TestMarkAsRead(t *testing.T) {
	svc, repo, _ := newNotificationFixture()
	seedNotifications(t, repo, "user-1", 2)

	require.NoError(t, svc.MarkAsRead(context.Background(), "user-1", repo.notifications[0].ID))

	count, err := svc.UnreadCount(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	err = svc.MarkAsRead(context.Background(), "user-2", repo.notifications[1].ID)
	assert.Equal(t, http.StatusNotFound, errStatus(t, err))
}

func TestMarkAllAsReadEnqueuesJob(t *testing.T) {
	svc, _, queue := newNotificationFixture()
	require.NoError(t, svc.MarkAllAsRead(context.Background(), "user-1"))
	assert.Equal(t, []string{jobs.TypeMarkAllNotificationsRead}, queue.typesEnqueued())
}
