package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk/internal/api/dto"
	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/service"
	"github.com/spec-kit/helpdesk/pkg/util"
)

// NotificationsHandler exposes the per-user notification feed.
type NotificationsHandler struct {
	service *service.NotificationService
}

// NewNotificationsHandler constructs handler.
func NewNotificationsHandler(notificationService *service.NotificationService) *NotificationsHandler {
	return &NotificationsHandler{service: notificationService}
}

// List GET /notifications.
func (h *NotificationsHandler) List(c *fiber.Ctx) error {
	principal := auth.PrincipalFrom(c)
	if principal == nil {
		return util.NewUnauthorized("authentication required")
	}
	items, err := h.service.List(c.UserContext(), principal.User.ID)
	if err != nil {
		return err
	}
	return ok(c, "notifications", dto.NewNotificationListResponse(items))
}

// Recent GET /notifications/recent.
func (h *NotificationsHandler) Recent(c *fiber.Ctx) error {
	principal := auth.PrincipalFrom(c)
	if principal == nil {
		return util.NewUnauthorized("authentication required")
	}
	items, err := h.service.Recent(c.UserContext(), principal.User.ID)
	if err != nil {
		return err
	}
	return ok(c, "recent notifications", dto.NewNotificationListResponse(items))
}

// UnreadCount GET /notifications/unread-count.
func (h *NotificationsHandler) UnreadCount(c *fiber.Ctx) error {
	principal := auth.PrincipalFrom(c)
	if principal == nil {
		return util.NewUnauthorized("authentication required")
	}
	count, err := h.service.UnreadCount(c.UserContext(), principal.User.ID)
	if err != nil {
		return err
	}
	return ok(c, "unread count", fiber.Map{"unread": count})
}

// Details GET /notifications/:id.
func (h *NotificationsHandler) Details(c *fiber.Ctx) error {
	principal := auth.PrincipalFrom(c)
	if principal == nil {
		return util.NewUnauthorized("authentication required")
	}
	n, err := h.service.Details(c.UserContext(), principal.User.ID, c.Params("id"))
	if err != nil {
		return err
	}
	return ok(c, "notification", dto.NewNotificationResponse(n))
}

// MarkRead PATCH /notifications/:id/read.
func (h *NotificationsHandler) MarkRead(c *fiber.Ctx) error {
	principal := auth.PrincipalFrom(c)
	if principal == nil {
		return util.NewUnauthorized("authentication required")
	}
	if err := h.service.MarkAsRead(c.UserContext(), principal.User.ID, c.Params("id")); err != nil {
		return err
	}
	return ok(c, "notification read", fiber.Map{"read": true})
}

// MarkAllRead PATCH /notifications/read-all.
func (h *NotificationsHandler) MarkAllRead(c *fiber.Ctx) error {
	principal := auth.PrincipalFrom(c)
	if principal == nil {
		return util.NewUnauthorized("authentication required")
	}
	if err := h.service.MarkAllAsRead(c.UserContext(), principal.User.ID); err != nil {
		return err
	}
	return success(c, fiber.StatusAccepted, "mark-all-read queued", fiber.Map{"queued": true})
}
