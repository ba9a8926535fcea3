package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/jobs"
	"github.com/spec-kit/helpdesk/internal/repository"
	"github.com/spec-kit/helpdesk/pkg/util"
)

// ListOptions are the caller-facing listing knobs shared by the scoped
// ticket queries.
type ListOptions struct {
	Page       int
	Limit      int
	SortBy     string
	SortOrder  string
	Search     *string
	Statuses   []domain.TicketStatus
	Department *domain.Department
	DateFrom   *time.Time
	DateTo     *time.Time
}

// TicketPage is one page of tickets with pagination metadata.
type TicketPage struct {
	Tickets     []domain.Ticket
	Total       int
	Pages       int
	CurrentPage int
}

// TicketDetails bundles a ticket with its full message thread.
type TicketDetails struct {
	Ticket   *domain.Ticket
	Messages []domain.TicketMessage
}

// AttachmentFile points the transport layer at a stored upload.
type AttachmentFile struct {
	AbsolutePath string
	MimeType     string
	OriginalName string
	Size         int64
}

// CreateTicketInput carries the fields of a new ticket.
type CreateTicketInput struct {
	UserID      string
	Department  string
	Category    string
	Subject     string
	Body        string
	Attachments []domain.Attachment
}

// AddMessageInput appends one message to a ticket thread.
type AddMessageInput struct {
	TicketID    string
	SenderID    string
	Body        string
	Attachments []domain.Attachment
}

// TicketService implements the ticket lifecycle.
type TicketService struct {
	tickets   repository.TicketRepository
	messages  repository.TicketMessageRepository
	users     repository.UserRepository
	queue     jobs.Enqueuer
	uploadDir string
	logger    *zap.Logger
	now       func() time.Time
}

// TicketDependencies bundles the collaborators of TicketService.
type TicketDependencies struct {
	Tickets   repository.TicketRepository
	Messages  repository.TicketMessageRepository
	Users     repository.UserRepository
	Queue     jobs.Enqueuer
	UploadDir string
	Logger    *zap.Logger
	Now       func() time.Time
}

// NewTicketService builds the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &TicketService{
		tickets:   deps.Tickets,
		messages:  deps.Messages,
		users:     deps.Users,
		queue:     deps.Queue,
		uploadDir: deps.UploadDir,
		logger:    deps.Logger,
		now:       now,
	}
}

// CreateTicket opens a ticket with its first message and alerts the
// administrative staff.
func (s *TicketService) CreateTicket(ctx context.Context, input CreateTicketInput) (*domain.Ticket, error) {
	department, ok := domain.ParseDepartment(input.Department)
	if !ok {
		return nil, util.NewBadRequest(fmt.Sprintf("unknown department %q", input.Department))
	}
	if input.Subject == "" || input.Body == "" {
		return nil, util.NewBadRequest("subject and message body are required")
	}

	now := s.now()
	ticket := &domain.Ticket{
		UserID:        input.UserID,
		Department:    department,
		Category:      input.Category,
		Subject:       input.Subject,
		Status:        domain.TicketStatusOpen,
		LastMessageAt: now,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, util.MapError(err)
	}

	msg := &domain.TicketMessage{
		TicketID:    ticket.ID,
		SenderID:    &input.UserID,
		Body:        input.Body,
		Attachments: input.Attachments,
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, util.MapError(err)
	}

	task, err := jobs.NewTicketNotificationTask(jobs.NewTicketPayload{
		TicketID:   ticket.ID,
		UserID:     ticket.UserID,
		Department: string(ticket.Department),
		Subject:    ticket.Subject,
	})
	s.enqueue(ctx, task, err)

	s.logger.Info("ticket created",
		zap.String("ticketId", ticket.ID), zap.String("userId", ticket.UserID))
	return ticket, nil
}

// AssignManager puts a ticket under a manager and moves it to
// IN_PROGRESS. Assigning the current manager again is a no-op. Resolved
// and archived tickets cannot be assigned.
func (s *TicketService) AssignManager(ctx context.Context, ticketID, managerID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, util.MapError(err)
	}
	if ticket.Status.Terminal() {
		return nil, util.NewBadRequest(fmt.Sprintf("ticket in status %s cannot be assigned", ticket.Status))
	}
	if ticket.ManagerID != nil && *ticket.ManagerID == managerID {
		return ticket, nil
	}

	manager, err := s.users.GetByID(ctx, managerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, util.NewNotFound("manager not found", nil)
		}
		return nil, util.MapError(err)
	}
	if !manager.Role.IsAdministrative() {
		return nil, util.NewBadRequest("assignee must hold an administrative role")
	}
	if !manager.Enabled() {
		return nil, util.NewBadRequest("assignee account is disabled")
	}

	ticket.ManagerID = &managerID
	ticket.Status = domain.TicketStatusInProgress
	ticket.LastMessageAt = s.now()

	systemType := domain.SystemMessageAssignment
	msg := &domain.TicketMessage{
		TicketID:          ticket.ID,
		Body:              fmt.Sprintf("Ticket assigned to %s", manager.FullName()),
		IsSystemMessage:   true,
		SystemMessageType: &systemType,
	}
	if err := s.tickets.UpdateWithSystemMessage(ctx, ticket, msg); err != nil {
		return nil, util.MapError(err)
	}

	task, err := jobs.NewAssignmentNotificationTask(jobs.AssignmentPayload{
		TicketID:  ticket.ID,
		ManagerID: managerID,
		ClientID:  ticket.UserID,
		Subject:   ticket.Subject,
	})
	s.enqueue(ctx, task, err)

	s.logger.Info("ticket assigned",
		zap.String("ticketId", ticket.ID), zap.String("managerId", managerID))
	return ticket, nil
}

// ReassignTicket hands a ticket over to a different manager. Unlike
// AssignManager, reassigning to the currently assigned manager is an
// error. When priority is set the ticket is forced back to IN_PROGRESS.
func (s *TicketService) ReassignTicket(ctx context.Context, ticketID, newManagerID, actorID string, reason *string, priority bool) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, util.MapError(err)
	}
	if ticket.Status.Terminal() {
		return nil, util.NewBadRequest(fmt.Sprintf("ticket in status %s cannot be reassigned", ticket.Status))
	}
	if ticket.ManagerID != nil && *ticket.ManagerID == newManagerID {
		return nil, util.NewBadRequest("ticket is already assigned to this manager")
	}

	manager, err := s.users.GetByID(ctx, newManagerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, util.NewNotFound("manager not found", nil)
		}
		return nil, util.MapError(err)
	}
	if !manager.Role.IsAdministrative() {
		return nil, util.NewBadRequest("assignee must hold an administrative role")
	}
	if !manager.Enabled() {
		return nil, util.NewBadRequest("assignee account is disabled")
	}

	ticket.ManagerID = &newManagerID
	if priority {
		ticket.Status = domain.TicketStatusInProgress
	}
	ticket.LastMessageAt = s.now()

	body := fmt.Sprintf("Ticket reassigned to %s", manager.FullName())
	if reason != nil && *reason != "" {
		body = fmt.Sprintf("%s: %s", body, *reason)
	}
	systemType := domain.SystemMessageAssignment
	msg := &domain.TicketMessage{
		TicketID:          ticket.ID,
		Body:              body,
		IsSystemMessage:   true,
		SystemMessageType: &systemType,
	}
	if err := s.tickets.UpdateWithSystemMessage(ctx, ticket, msg); err != nil {
		return nil, util.MapError(err)
	}

	task, err := jobs.NewAssignmentNotificationTask(jobs.AssignmentPayload{
		TicketID:  ticket.ID,
		ManagerID: newManagerID,
		ClientID:  ticket.UserID,
		Subject:   ticket.Subject,
	})
	s.enqueue(ctx, task, err)

	s.logger.Info("ticket reassigned",
		zap.String("ticketId", ticket.ID),
		zap.String("managerId", newManagerID),
		zap.String("actorId", actorID))
	return ticket, nil
}

// AddMessage appends a message to a ticket thread. Only the ticket owner
// and the assigned manager may write; archived tickets are read-only.
func (s *TicketService) AddMessage(ctx context.Context, input AddMessageInput) (*domain.TicketMessage, error) {
	ticket, err := s.tickets.GetByID(ctx, input.TicketID)
	if err != nil {
		return nil, util.MapError(err)
	}
	if !ticket.Participant(input.SenderID) {
		return nil, util.NewUnauthorized("only the ticket owner and its manager may post messages")
	}
	if ticket.Status == domain.TicketStatusArchived {
		return nil, util.NewBadRequest("archived tickets are read-only")
	}
	if input.Body == "" && len(input.Attachments) == 0 {
		return nil, util.NewBadRequest("message body or attachments required")
	}

	msg := &domain.TicketMessage{
		TicketID:    ticket.ID,
		SenderID:    &input.SenderID,
		Body:        input.Body,
		Attachments: input.Attachments,
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, util.MapError(err)
	}

	ticket.LastMessageAt = s.now()
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, util.MapError(err)
	}

	task, err := jobs.NewMessageNotificationTask(jobs.NewMessagePayload{
		TicketID:     ticket.ID,
		MessageID:    msg.ID,
		SenderID:     input.SenderID,
		IsFromClient: input.SenderID == ticket.UserID,
	})
	s.enqueue(ctx, task, err)

	return msg, nil
}

// UpdateStatus changes a ticket's lifecycle state. Only the assigned
// manager may do so, and archived tickets stay frozen.
func (s *TicketService) UpdateStatus(ctx context.Context, ticketID, actorID, rawStatus string) (*domain.Ticket, error) {
	status, ok := domain.NormalizeStatus(rawStatus)
	if !ok {
		return nil, util.NewBadRequest(fmt.Sprintf("unknown status %q", rawStatus))
	}

	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, util.MapError(err)
	}
	if ticket.ManagerID == nil || *ticket.ManagerID != actorID {
		return nil, util.NewUnauthorized("only the assigned manager may change the ticket status")
	}
	if ticket.Status == domain.TicketStatusArchived {
		return nil, util.NewBadRequest("archived tickets cannot change status")
	}
	if ticket.Status == status {
		return ticket, nil
	}

	ticket.Status = status
	ticket.LastMessageAt = s.now()
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, util.MapError(err)
	}

	s.logger.Info("ticket status changed",
		zap.String("ticketId", ticket.ID), zap.String("status", string(status)))
	return ticket, nil
}

// GetTicketDetails loads a ticket and its thread. Clients only see their
// own tickets; administrative users see everything.
func (s *TicketService) GetTicketDetails(ctx context.Context, ticketID, requesterID string, administrative bool) (*TicketDetails, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, util.MapError(err)
	}
	if !administrative && !ticket.Participant(requesterID) {
		return nil, util.NewUnauthorized("you do not have access to this ticket")
	}

	messages, err := s.messages.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, util.MapError(err)
	}
	return &TicketDetails{Ticket: ticket, Messages: messages}, nil
}

// ListTickets is the unscoped administrative listing. An empty result is
// a valid page, not an error.
func (s *TicketService) ListTickets(ctx context.Context, opts ListOptions) (*TicketPage, error) {
	return s.page(ctx, filterFrom(opts), false)
}

// GetClientTickets lists the requester's active tickets.
func (s *TicketService) GetClientTickets(ctx context.Context, userID string, opts ListOptions) (*TicketPage, error) {
	filter := filterFrom(opts)
	filter.UserID = &userID
	if len(filter.Statuses) == 0 {
		filter.Statuses = []domain.TicketStatus{domain.TicketStatusOpen, domain.TicketStatusInProgress}
	}
	return s.page(ctx, filter, true)
}

// GetClientArchivedTickets lists the requester's closed tickets.
func (s *TicketService) GetClientArchivedTickets(ctx context.Context, userID string, opts ListOptions) (*TicketPage, error) {
	filter := filterFrom(opts)
	filter.UserID = &userID
	filter.Statuses = []domain.TicketStatus{domain.TicketStatusResolved, domain.TicketStatusArchived}
	return s.page(ctx, filter, true)
}

// GetAssignedTickets lists tickets under the given manager.
func (s *TicketService) GetAssignedTickets(ctx context.Context, managerID string, opts ListOptions) (*TicketPage, error) {
	filter := filterFrom(opts)
	filter.ManagerID = &managerID
	return s.page(ctx, filter, true)
}

// GetUnassignedTickets lists tickets waiting for a manager, oldest first
// by default so the queue drains in order.
func (s *TicketService) GetUnassignedTickets(ctx context.Context, opts ListOptions) (*TicketPage, error) {
	filter := filterFrom(opts)
	filter.Unassigned = true
	if len(filter.Statuses) == 0 {
		filter.Statuses = []domain.TicketStatus{domain.TicketStatusOpen, domain.TicketStatusInProgress}
	}
	if filter.SortBy == "" {
		filter.SortBy = "createdAt"
		filter.SortOrder = "ASC"
	}
	return s.page(ctx, filter, true)
}

// GetOpenTickets lists every ticket still in OPEN state.
func (s *TicketService) GetOpenTickets(ctx context.Context, opts ListOptions) (*TicketPage, error) {
	filter := filterFrom(opts)
	filter.Statuses = []domain.TicketStatus{domain.TicketStatusOpen}
	return s.page(ctx, filter, true)
}

// OpenAttachment resolves a stored upload for download or preview. The
// caller must be a ticket participant and the filename must belong to
// the addressed message.
func (s *TicketService) OpenAttachment(ctx context.Context, ticketID, messageID, filename, requesterID string, administrative bool) (*AttachmentFile, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, util.MapError(err)
	}
	if !administrative && !ticket.Participant(requesterID) {
		return nil, util.NewUnauthorized("you do not have access to this ticket")
	}

	msg, err := s.messages.GetByID(ctx, ticketID, messageID)
	if err != nil {
		return nil, util.MapError(err)
	}

	for _, att := range msg.Attachments {
		if att.Filename != filename {
			continue
		}
		path := filepath.Join(s.uploadDir, att.Filename)
		info, err := os.Stat(path)
		if err != nil {
			return nil, util.NewNotFound("attachment file is missing from storage", nil)
		}
		return &AttachmentFile{
			AbsolutePath: path,
			MimeType:     att.MimeType,
			OriginalName: att.OriginalName,
			Size:         info.Size(),
		}, nil
	}
	return nil, util.NewNotFound("attachment not found on this message", nil)
}

// page runs the filtered query and converts it into a page envelope.
// Scoped queries treat an empty result as NOT_FOUND, mirroring the
// behavior clients already depend on.
func (s *TicketService) page(ctx context.Context, filter repository.TicketFilter, emptyIsMiss bool) (*TicketPage, error) {
	tickets, total, err := s.tickets.ListWithFilter(ctx, filter)
	if err != nil {
		return nil, util.MapError(err)
	}
	if emptyIsMiss && total == 0 {
		return nil, util.NewNotFound("no tickets found", nil)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 10
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	pages := (total + limit - 1) / limit

	return &TicketPage{
		Tickets:     tickets,
		Total:       total,
		Pages:       pages,
		CurrentPage: page,
	}, nil
}

// enqueue hands a built task to the queue; notification delivery is
// best effort and never fails the request that produced it.
func (s *TicketService) enqueue(ctx context.Context, task *asynq.Task, err error) {
	if err != nil {
		s.logger.Error("task build failed", zap.Error(err))
		return
	}
	if err := s.queue.Enqueue(ctx, task); err != nil {
		s.logger.Error("task enqueue failed", zap.String("type", task.Type()), zap.Error(err))
	}
}

func filterFrom(opts ListOptions) repository.TicketFilter {
	return repository.TicketFilter{
		Statuses:   opts.Statuses,
		Department: opts.Department,
		Search:     opts.Search,
		DateFrom:   opts.DateFrom,
		DateTo:     opts.DateTo,
		SortBy:     opts.SortBy,
		SortOrder:  opts.SortOrder,
		Page:       opts.Page,
		Limit:      opts.Limit,
	}
}
