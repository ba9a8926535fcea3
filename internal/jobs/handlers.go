package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/mailer"
	"github.com/spec-kit/helpdesk/internal/repository"
)

// inactivityWindow is how long a ticket may sit without a new message
// before the sweep archives it.
const inactivityWindow = 5 * 24 * time.Hour

const autoArchiveBody = "Ticket automatically archived due to inactivity (no updates for 5 days)"

// Handlers executes queued work.
type Handlers struct {
	tickets       repository.TicketRepository
	users         repository.UserRepository
	notifications repository.NotificationRepository
	sessions      repository.SessionRepository
	mail          mailer.Sender
	logger        *zap.Logger
	now           func() time.Time
}

// HandlerDependencies bundles what Handlers needs.
type HandlerDependencies struct {
	Tickets       repository.TicketRepository
	Users         repository.UserRepository
	Notifications repository.NotificationRepository
	Sessions      repository.SessionRepository
	Mail          mailer.Sender
	Logger        *zap.Logger
	Now           func() time.Time
}

// NewHandlers builds handlers.
func NewHandlers(deps HandlerDependencies) *Handlers {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Handlers{
		tickets:       deps.Tickets,
		users:         deps.Users,
		notifications: deps.Notifications,
		sessions:      deps.Sessions,
		mail:          deps.Mail,
		logger:        deps.Logger,
		now:           now,
	}
}

// Register wires every handler onto the mux.
func (h *Handlers) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeArchiveInactiveTickets, h.HandleArchiveInactiveTickets)
	mux.HandleFunc(TypeCleanupExpiredSessions, h.HandleCleanupExpiredSessions)
	mux.HandleFunc(TypeNewTicketNotification, h.HandleNewTicketNotification)
	mux.HandleFunc(TypeAssignmentNotification, h.HandleAssignmentNotification)
	mux.HandleFunc(TypeNewMessageNotification, h.HandleNewMessageNotification)
	mux.HandleFunc(TypeMarkAllNotificationsRead, h.HandleMarkAllRead)
	mux.HandleFunc(TypeMailWelcome, h.HandleMailWelcome)
	mux.HandleFunc(TypeMailVerification, h.HandleMailVerification)
	mux.HandleFunc(TypeMailNewDeviceAlert, h.HandleMailNewDeviceAlert)
	mux.HandleFunc(TypeMailForgotPassword, h.HandleMailForgotPassword)
	mux.HandleFunc(TypeMailPasswordChanged, h.HandleMailPasswordChanged)
	mux.HandleFunc(TypeMailAccountVerified, h.HandleMailAccountVerified)
}

// HandleArchiveInactiveTickets archives every ticket idle past the
// inactivity window. Each ticket is archived independently, one failure
// does not abort the sweep; a retry only picks up tickets still
// unarchived because the listing excludes ARCHIVED rows.
func (h *Handlers) HandleArchiveInactiveTickets(ctx context.Context, _ *asynq.Task) error {
	cutoff := h.now().Add(-inactivityWindow)
	tickets, err := h.tickets.ListInactiveSince(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("list inactive tickets: %w", err)
	}

	var failed int
	for i := range tickets {
		ticket := tickets[i]
		ticket.Status = domain.TicketStatusArchived
		ticket.LastMessageAt = h.now()
		msg := &domain.TicketMessage{
			TicketID:          ticket.ID,
			Body:              autoArchiveBody,
			IsSystemMessage:   true,
			SystemMessageType: systemTypePtr(domain.SystemMessageAutoArchive),
		}
		if err := h.tickets.UpdateWithSystemMessage(ctx, &ticket, msg); err != nil {
			failed++
			h.logger.Error("archive sweep: ticket failed",
				zap.String("ticketId", ticket.ID), zap.Error(err))
		}
	}

	h.logger.Info("archive sweep finished",
		zap.Int("candidates", len(tickets)),
		zap.Int("archived", len(tickets)-failed),
		zap.Int("failed", failed),
	)
	if failed > 0 {
		return fmt.Errorf("archive sweep: %d of %d tickets failed", failed, len(tickets))
	}
	return nil
}

// HandleCleanupExpiredSessions deletes sessions past their expiry.
func (h *Handlers) HandleCleanupExpiredSessions(ctx context.Context, _ *asynq.Task) error {
	deleted, err := h.sessions.DeleteExpired(ctx, h.now())
	if err != nil {
		return fmt.Errorf("delete expired sessions: %w", err)
	}
	h.logger.Info("expired sessions removed", zap.Int64("deleted", deleted))
	return nil
}

// HandleNewTicketNotification fans a new-ticket alert out to every
// enabled administrative user.
func (h *Handlers) HandleNewTicketNotification(ctx context.Context, task *asynq.Task) error {
	var p NewTicketPayload
	if err := json.Unmarshal(task.Payload(), &p); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}

	admins, err := h.users.ListAdministrators(ctx)
	if err != nil {
		return fmt.Errorf("list administrators: %w", err)
	}

	var batch []domain.Notification
	for _, admin := range admins {
		if !admin.Enabled() {
			continue
		}
		batch = append(batch, domain.Notification{
			UserID:  admin.ID,
			Title:   "New ticket",
			Message: fmt.Sprintf("A new ticket was opened: %s", p.Subject),
		})
	}
	if err := h.notifications.CreateBatch(ctx, batch); err != nil {
		return fmt.Errorf("notify administrators: %w", err)
	}
	h.logger.Info("new ticket fan-out",
		zap.String("ticketId", p.TicketID), zap.Int("recipients", len(batch)))
	return nil
}

// HandleAssignmentNotification notifies the assigned manager and the
// ticket owner.
func (h *Handlers) HandleAssignmentNotification(ctx context.Context, task *asynq.Task) error {
	var p AssignmentPayload
	if err := json.Unmarshal(task.Payload(), &p); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}

	pair := []domain.Notification{
		{
			UserID:  p.ManagerID,
			Title:   "Ticket assigned to you",
			Message: fmt.Sprintf("You were assigned the ticket: %s", p.Subject),
		},
		{
			UserID:  p.ClientID,
			Title:   "Ticket assigned",
			Message: fmt.Sprintf("A support agent is now handling your ticket: %s", p.Subject),
		},
	}
	if err := h.notifications.CreateBatch(ctx, pair); err != nil {
		return fmt.Errorf("notify assignment: %w", err)
	}
	return nil
}

// HandleNewMessageNotification routes a thread message alert. Client
// messages go to the assigned manager, or to every enabled administrator
// when the ticket is unassigned; staff messages go to the client.
func (h *Handlers) HandleNewMessageNotification(ctx context.Context, task *asynq.Task) error {
	var p NewMessagePayload
	if err := json.Unmarshal(task.Payload(), &p); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}

	ticket, err := h.tickets.GetByID(ctx, p.TicketID)
	if err != nil {
		return fmt.Errorf("load ticket %s: %w", p.TicketID, err)
	}

	var recipients []string
	if p.IsFromClient {
		if ticket.ManagerID != nil {
			recipients = []string{*ticket.ManagerID}
		} else {
			admins, err := h.users.ListAdministrators(ctx)
			if err != nil {
				return fmt.Errorf("list administrators: %w", err)
			}
			for _, admin := range admins {
				if admin.Enabled() {
					recipients = append(recipients, admin.ID)
				}
			}
		}
	} else {
		recipients = []string{ticket.UserID}
	}

	var batch []domain.Notification
	for _, id := range recipients {
		batch = append(batch, domain.Notification{
			UserID:  id,
			Title:   "New message",
			Message: fmt.Sprintf("New message on ticket: %s", ticket.Subject),
		})
	}
	if err := h.notifications.CreateBatch(ctx, batch); err != nil {
		return fmt.Errorf("notify message: %w", err)
	}
	return nil
}

// HandleMarkAllRead flips every unread notification of one user.
func (h *Handlers) HandleMarkAllRead(ctx context.Context, task *asynq.Task) error {
	var p MarkAllReadPayload
	if err := json.Unmarshal(task.Payload(), &p); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	updated, err := h.notifications.MarkAllRead(ctx, p.UserID)
	if err != nil {
		return fmt.Errorf("mark all read for %s: %w", p.UserID, err)
	}
	h.logger.Debug("notifications marked read",
		zap.String("userId", p.UserID), zap.Int64("updated", updated))
	return nil
}

func (h *Handlers) HandleMailWelcome(ctx context.Context, task *asynq.Task) error {
	p, err := decodeMail(task)
	if err != nil {
		return err
	}
	return h.mail.SendWelcome(ctx, p.To, p.Name)
}

func (h *Handlers) HandleMailVerification(ctx context.Context, task *asynq.Task) error {
	p, err := decodeMail(task)
	if err != nil {
		return err
	}
	return h.mail.SendVerification(ctx, p.To, p.Name, p.Token)
}

func (h *Handlers) HandleMailNewDeviceAlert(ctx context.Context, task *asynq.Task) error {
	p, err := decodeMail(task)
	if err != nil {
		return err
	}
	return h.mail.SendNewDeviceAlert(ctx, p.To, p.Name, p.IP, p.Device)
}

func (h *Handlers) HandleMailForgotPassword(ctx context.Context, task *asynq.Task) error {
	p, err := decodeMail(task)
	if err != nil {
		return err
	}
	return h.mail.SendForgotPassword(ctx, p.To, p.Name, p.Token)
}

func (h *Handlers) HandleMailPasswordChanged(ctx context.Context, task *asynq.Task) error {
	p, err := decodeMail(task)
	if err != nil {
		return err
	}
	return h.mail.SendPasswordChanged(ctx, p.To, p.Name)
}

func (h *Handlers) HandleMailAccountVerified(ctx context.Context, task *asynq.Task) error {
	p, err := decodeMail(task)
	if err != nil {
		return err
	}
	return h.mail.SendAccountVerified(ctx, p.To, p.Name)
}

func decodeMail(task *asynq.Task) (MailPayload, error) {
	var p MailPayload
	if err := json.Unmarshal(task.Payload(), &p); err != nil {
		return p, fmt.Errorf("decode mail payload: %w", err)
	}
	return p, nil
}

func systemTypePtr(t domain.SystemMessageType) *domain.SystemMessageType {
	return &t
}
