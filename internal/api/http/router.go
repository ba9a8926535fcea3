package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Tickets        *handlers.TicketsHandler
	Notifications  *handlers.NotificationsHandler
	AuthMiddleware *auth.Middleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Post("/sign-up", cfg.Auth.SignUp)
	authGroup.Post("/sign-in", cfg.Auth.SignIn)
	authGroup.Post("/sign-out", cfg.Auth.SignOut)
	authGroup.Post("/forgot-password", cfg.Auth.ForgotPassword)
	authGroup.Post("/reset-password", cfg.Auth.ResetPassword)
	authGroup.Get("/verify", cfg.Auth.VerifyAccount)

	authProtected := authGroup.Group("", cfg.AuthMiddleware.Authenticate())
	authProtected.Get("/me", cfg.Auth.Me)
	authProtected.Post("/change-password", cfg.Auth.ChangePassword)

	tickets := app.Group("/tickets", cfg.AuthMiddleware.Authenticate())
	tickets.Post("/", cfg.Tickets.CreateTicket)
	tickets.Get("/my", cfg.Tickets.MyTickets)
	tickets.Get("/my/archived", cfg.Tickets.MyArchivedTickets)

	staffTickets := tickets.Group("", cfg.AuthMiddleware.RequireAdministrative())
	staffTickets.Get("/", cfg.Tickets.ListTickets)
	staffTickets.Get("/assigned", cfg.Tickets.AssignedTickets)
	staffTickets.Get("/unassigned", cfg.Tickets.UnassignedTickets)
	staffTickets.Get("/open", cfg.Tickets.OpenTickets)
	staffTickets.Patch("/:id/assign", cfg.Tickets.AssignTicket)
	staffTickets.Patch("/:id/take", cfg.Tickets.TakeTicket)
	staffTickets.Patch("/:id/reassign", cfg.Tickets.Reassign)
	staffTickets.Patch("/:id/status", cfg.Tickets.UpdateStatus)

	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Post("/:id/messages", cfg.Tickets.AddMessage)
	tickets.Get("/:id/messages/:messageId/attachments/:filename", cfg.Tickets.Attachment)

	notifications := app.Group("/notifications", cfg.AuthMiddleware.Authenticate())
	notifications.Get("/", cfg.Notifications.List)
	notifications.Get("/recent", cfg.Notifications.Recent)
	notifications.Get("/unread-count", cfg.Notifications.UnreadCount)
	notifications.Patch("/read-all", cfg.Notifications.MarkAllRead)
	notifications.Get("/:id", cfg.Notifications.Details)
	notifications.Patch("/:id/read", cfg.Notifications.MarkRead)
}
