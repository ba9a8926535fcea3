package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/jobs"
	"github.com/spec-kit/helpdesk/internal/repository"
	"github.com/spec-kit/helpdesk/pkg/util"
)

// recentLimit caps the dropdown feed.
const recentLimit = 5

// NotificationService exposes the per-user notification feed.
type NotificationService struct {
	notifications repository.NotificationRepository
	queue         jobs.Enqueuer
	logger        *zap.Logger
}

// NewNotificationService builds the service.
func NewNotificationService(notifications repository.NotificationRepository, queue jobs.Enqueuer, logger *zap.Logger) *NotificationService {
	return &NotificationService{notifications: notifications, queue: queue, logger: logger}
}

// List returns every notification of the user, newest first.
func (s *NotificationService) List(ctx context.Context, userID string) ([]domain.Notification, error) {
	items, err := s.notifications.ListByUser(ctx, userID, 0)
	if err != nil {
		return nil, util.MapError(err)
	}
	return items, nil
}

// Recent returns the latest few notifications for the dropdown feed.
func (s *NotificationService) Recent(ctx context.Context, userID string) ([]domain.Notification, error) {
	items, err := s.notifications.ListByUser(ctx, userID, recentLimit)
	if err != nil {
		return nil, util.MapError(err)
	}
	return items, nil
}

// UnreadCount returns how many notifications are still unread.
func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int, error) {
	count, err := s.notifications.CountUnread(ctx, userID)
	if err != nil {
		return 0, util.MapError(err)
	}
	return count, nil
}

// Details returns a single notification; users only see their own.
func (s *NotificationService) Details(ctx context.Context, userID, id string) (*domain.Notification, error) {
	n, err := s.notifications.GetByID(ctx, userID, id)
	if err != nil {
		return nil, util.MapError(err)
	}
	return n, nil
}

// MarkAsRead flips one notification to read.
func (s *NotificationService) MarkAsRead(ctx context.Context, userID, id string) error {
	if err := s.notifications.MarkRead(ctx, userID, id); err != nil {
		return util.MapError(err)
	}
	return nil
}

// MarkAllAsRead clears the unread state off the request path; the
// worker performs the bulk update.
func (s *NotificationService) MarkAllAsRead(ctx context.Context, userID string) error {
	task, err := jobs.NewMarkAllReadTask(jobs.MarkAllReadPayload{UserID: userID})
	if err != nil {
		return util.NewInternalError(err)
	}
	if err := s.queue.Enqueue(ctx, task); err != nil {
		return util.NewInternalError(err)
	}
	s.logger.Debug("mark-all-read queued", zap.String("userId", userID))
	return nil
}
