package service

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/jobs"
	"github.com/spec-kit/helpdesk/pkg/util"
)

type ticketFixture struct {
	service *TicketService
	tickets *fakeTicketRepo
	msgs    *fakeMessageRepo
	users   *fakeUserRepo
	queue   *fakeQueue
}

func newTicketFixture(t *testing.T) *ticketFixture {
	t.Helper()
	tickets := newFakeTicketRepo()
	msgs := &fakeMessageRepo{}
	users := newFakeUserRepo()
	queue := &fakeQueue{}
	svc := NewTicketService(TicketDependencies{
		Tickets:   tickets,
		Messages:  msgs,
		Users:     users,
		Queue:     queue,
		UploadDir: t.TempDir(),
		Logger:    zap.NewNop(),
	})
	return &ticketFixture{service: svc, tickets: tickets, msgs: msgs, users: users, queue: queue}
}

func errStatus(t *testing.T, err error) int {
	t.Helper()
	require.Error(t, err)
	return util.ToDomainError(err).HTTPStatus
}

func TestCreateTicket(t *testing.T) {
	fx := newTicketFixture(t)
	client := fx.users.add(domain.User{Email: "client@example.com", Role: domain.RoleClient, IsActive: true})

	ticket, err := fx.service.CreateTicket(context.Background(), CreateTicketInput{
		UserID:     client.ID,
		Department: string(domain.DepartmentTechnical),
		Category:   "billing",
		Subject:    "Invoice missing",
		Body:       "I cannot find my March invoice.",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusOpen, ticket.Status)
	assert.Nil(t, ticket.ManagerID)

	require.Len(t, fx.msgs.messages, 1)
	assert.Equal(t, "I cannot find my March invoice.", fx.msgs.messages[0].Body)
	assert.Equal(t, []string{jobs.TypeNewTicketNotification}, fx.queue.typesEnqueued())

	var payload jobs.NewTicketPayload
	require.NoError(t, json.Unmarshal(fx.queue.tasks[0].Payload(), &payload))
	assert.Equal(t, ticket.ID, payload.TicketID)
	assert.Equal(t, client.ID, payload.UserID)
	assert.Equal(t, string(domain.DepartmentTechnical), payload.Department)
}

func TestCreateTicketRejectsUnknownDepartment(t *testing.T) {
	fx := newTicketFixture(t)
	_, err := fx.service.CreateTicket(context.Background(), CreateTicketInput{
		UserID:     "user-1",
		Department: "accounting",
		Subject:    "s",
		Body:       "b",
	})
	assert.Equal(t, http.StatusBadRequest, errStatus(t, err))
	assert.Empty(t, fx.queue.tasks)
}

func TestAssignManager(t *testing.T) {
	fx := newTicketFixture(t)
	manager := fx.users.add(domain.User{
		FirstName: "Dana", LastName: "Reyes",
		Role: domain.RoleAdministration, IsActive: true,
	})
	ticket := fx.tickets.add(domain.Ticket{
		UserID: "user-client", Status: domain.TicketStatusOpen,
		Subject: "Printer on fire",
	})

	updated, err := fx.service.AssignManager(context.Background(), ticket.ID, manager.ID)
	require.NoError(t, err)
	require.NotNil(t, updated.ManagerID)
	assert.Equal(t, manager.ID, *updated.ManagerID)
	assert.Equal(t, domain.TicketStatusInProgress, updated.Status)

	require.Len(t, fx.tickets.systemMessages, 1)
	sys := fx.tickets.systemMessages[0]
	assert.True(t, sys.IsSystemMessage)
	require.NotNil(t, sys.SystemMessageType)
	assert.Equal(t, domain.SystemMessageAssignment, *sys.SystemMessageType)
	assert.Contains(t, sys.Body, "Dana Reyes")

	assert.Equal(t, []string{jobs.TypeAssignmentNotification}, fx.queue.typesEnqueued())
}

func TestAssignManagerIsNoOpForSameManager(t *testing.T) {
	fx := newTicketFixture(t)
	manager := fx.users.add(domain.User{Role: domain.RoleSysadmin, IsActive: true})
	ticket := fx.tickets.add(domain.Ticket{
		UserID: "user-client", ManagerID: &manager.ID,
		Status: domain.TicketStatusInProgress,
	})

	_, err := fx.service.AssignManager(context.Background(), ticket.ID, manager.ID)
	require.NoError(t, err)
	assert.Empty(t, fx.tickets.systemMessages)
	assert.Empty(t, fx.queue.tasks)
}

func TestAssignManagerRejectsTerminalTickets(t *testing.T) {
	for _, status := range []domain.TicketStatus{domain.TicketStatusResolved, domain.TicketStatusArchived} {
		t.Run(string(status), func(t *testing.T) {
			fx := newTicketFixture(t)
			manager := fx.users.add(domain.User{Role: domain.RoleAdministration, IsActive: true})
			ticket := fx.tickets.add(domain.Ticket{UserID: "user-client", Status: status})

			_, err := fx.service.AssignManager(context.Background(), ticket.ID, manager.ID)
			assert.Equal(t, http.StatusBadRequest, errStatus(t, err))
		})
	}
}

func TestAssignManagerRejectsNonAdministrativeAssignee(t *testing.T) {
	fx := newTicketFixture(t)
	client := fx.users.add(domain.User{Role: domain.RoleClient, IsActive: true})
	ticket := fx.tickets.add(domain.Ticket{UserID: "user-client", Status: domain.TicketStatusOpen})

	_, err := fx.service.AssignManager(context.Background(), ticket.ID, client.ID)
	assert.Equal(t, http.StatusBadRequest, errStatus(t, err))
}

func TestReassignTicket(t *testing.T) {
	fx := newTicketFixture(t)
	oldManager := fx.users.add(domain.User{Role: domain.RoleAdministration, IsActive: true})
	newManager := fx.users.add(domain.User{
		FirstName: "Noor", LastName: "Haddad",
		Role: domain.RoleSysadmin, IsActive: true,
	})
	ticket := fx.tickets.add(domain.Ticket{
		UserID: "user-client", ManagerID: &oldManager.ID,
		Status: domain.TicketStatusOpen,
	})

	reason := "escalation"
	updated, err := fx.service.ReassignTicket(context.Background(),
		ticket.ID, newManager.ID, oldManager.ID, &reason, true)
	require.NoError(t, err)
	require.NotNil(t, updated.ManagerID)
	assert.Equal(t, newManager.ID, *updated.ManagerID)
	assert.Equal(t, domain.TicketStatusInProgress, updated.Status)

	require.Len(t, fx.tickets.systemMessages, 1)
	sys := fx.tickets.systemMessages[0]
	assert.True(t, sys.IsSystemMessage)
	assert.Contains(t, sys.Body, "Noor Haddad")
	assert.Contains(t, sys.Body, "escalation")

	assert.Equal(t, []string{jobs.TypeAssignmentNotification}, fx.queue.typesEnqueued())
}

func TestReassignTicketRejectsSameManager(t *testing.T) {
	fx := newTicketFixture(t)
	manager := fx.users.add(domain.User{Role: domain.RoleAdministration, IsActive: true})
	ticket := fx.tickets.add(domain.Ticket{
		UserID: "user-client", ManagerID: &manager.ID,
		Status: domain.TicketStatusInProgress,
	})

	_, err := fx.service.ReassignTicket(context.Background(),
		ticket.ID, manager.ID, manager.ID, nil, false)
	assert.Equal(t, http.StatusBadRequest, errStatus(t, err))
	assert.Empty(t, fx.tickets.systemMessages)
	assert.Empty(t, fx.queue.tasks)
}

func TestReassignTicketKeepsStatusWithoutPriority(t *testing.T) {
	fx := newTicketFixture(t)
	manager := fx.users.add(domain.User{Role: domain.RoleAdministration, IsActive: true})
	ticket := fx.tickets.add(domain.Ticket{UserID: "user-client", Status: domain.TicketStatusOpen})

	updated, err := fx.service.ReassignTicket(context.Background(),
		ticket.ID, manager.ID, "user-actor", nil, false)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusOpen, updated.Status)
}

func TestAddMessage(t *testing.T) {
	fx := newTicketFixture(t)
	managerID := "user-manager"
	ticket := fx.tickets.add(domain.Ticket{
		UserID: "user-client", ManagerID: &managerID,
		Status:        domain.TicketStatusInProgress,
		LastMessageAt: time.Now().Add(-time.Hour),
	})

	attachments := []domain.Attachment{
		{Filename: "a1.png", OriginalName: "screenshot.png", MimeType: "image/png", Size: 2048},
		{Filename: "a2.pdf", OriginalName: "invoice.pdf", MimeType: "application/pdf", Size: 4096},
	}
	msg, err := fx.service.AddMessage(context.Background(), AddMessageInput{
		TicketID:    ticket.ID,
		SenderID:    "user-client",
		Body:        "Here are the files.",
		Attachments: attachments,
	})
	require.NoError(t, err)
	assert.Equal(t, attachments, msg.Attachments)

	stored, err := fx.tickets.GetByID(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.True(t, stored.LastMessageAt.After(ticket.LastMessageAt))

	assert.Equal(t, []string{jobs.TypeNewMessageNotification}, fx.queue.typesEnqueued())
}

func TestAddMessageRejectsNonParticipants(t *testing.T) {
	fx := newTicketFixture(t)
	ticket := fx.tickets.add(domain.Ticket{UserID: "user-client", Status: domain.TicketStatusOpen})

	_, err := fx.service.AddMessage(context.Background(), AddMessageInput{
		TicketID: ticket.ID,
		SenderID: "user-stranger",
		Body:     "let me in",
	})
	assert.Equal(t, http.StatusUnauthorized, errStatus(t, err))
	assert.Empty(t, fx.msgs.messages)
}

func TestAddMessageRejectsArchivedTickets(t *testing.T) {
	fx := newTicketFixture(t)
	ticket := fx.tickets.add(domain.Ticket{UserID: "user-client", Status: domain.TicketStatusArchived})

	_, err := fx.service.AddMessage(context.Background(), AddMessageInput{
		TicketID: ticket.ID,
		SenderID: "user-client",
		Body:     "hello?",
	})
	assert.Equal(t, http.StatusBadRequest, errStatus(t, err))
}

func TestUpdateStatus(t *testing.T) {
	fx := newTicketFixture(t)
	managerID := "user-manager"
	ticket := fx.tickets.add(domain.Ticket{
		UserID: "user-client", ManagerID: &managerID,
		Status:        domain.TicketStatusInProgress,
		LastMessageAt: time.Now().Add(-6 * 24 * time.Hour),
	})

	updated, err := fx.service.UpdateStatus(context.Background(), ticket.ID, managerID, "resolved")
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusResolved, updated.Status)
	// a resolved ticket is fresh again; it must not fall into the next
	// inactivity sweep window
	assert.True(t, updated.LastMessageAt.After(ticket.LastMessageAt))
}

func TestUpdateStatusOnlyAssignedManager(t *testing.T) {
	fx := newTicketFixture(t)
	managerID := "user-manager"
	ticket := fx.tickets.add(domain.Ticket{
		UserID: "user-client", ManagerID: &managerID,
		Status: domain.TicketStatusInProgress,
	})

	_, err := fx.service.UpdateStatus(context.Background(), ticket.ID, "user-other", "RESOLVED")
	assert.Equal(t, http.StatusUnauthorized, errStatus(t, err))

	_, err = fx.service.UpdateStatus(context.Background(), ticket.ID, "user-client", "RESOLVED")
	assert.Equal(t, http.StatusUnauthorized, errStatus(t, err))
}

func TestUpdateStatusArchivedIsFrozen(t *testing.T) {
	fx := newTicketFixture(t)
	managerID := "user-manager"
	ticket := fx.tickets.add(domain.Ticket{
		UserID: "user-client", ManagerID: &managerID,
		Status: domain.TicketStatusArchived,
	})

	_, err := fx.service.UpdateStatus(context.Background(), ticket.ID, managerID, "OPEN")
	assert.Equal(t, http.StatusBadRequest, errStatus(t, err))
}

func TestScopedListingsReportEmptyAsMiss(t *testing.T) {
	fx := newTicketFixture(t)
	ctx := context.Background()

	_, err := fx.service.GetClientTickets(ctx, "user-nobody", ListOptions{})
	assert.Equal(t, http.StatusNotFound, errStatus(t, err))

	_, err = fx.service.GetUnassignedTickets(ctx, ListOptions{})
	assert.Equal(t, http.StatusNotFound, errStatus(t, err))

	_, err = fx.service.GetOpenTickets(ctx, ListOptions{})
	assert.Equal(t, http.StatusNotFound, errStatus(t, err))
}

func TestListTicketsReturnsEmptyPage(t *testing.T) {
	fx := newTicketFixture(t)
	page, err := fx.service.ListTickets(context.Background(), ListOptions{})
	require.NoError(t, err)
	assert.Zero(t, page.Total)
	assert.Empty(t, page.Tickets)
}

func TestGetClientTicketsFiltersClosedStates(t *testing.T) {
	fx := newTicketFixture(t)
	fx.tickets.add(domain.Ticket{UserID: "user-client", Status: domain.TicketStatusOpen})
	fx.tickets.add(domain.Ticket{UserID: "user-client", Status: domain.TicketStatusInProgress})
	fx.tickets.add(domain.Ticket{UserID: "user-client", Status: domain.TicketStatusResolved})
	fx.tickets.add(domain.Ticket{UserID: "user-client", Status: domain.TicketStatusArchived})

	active, err := fx.service.GetClientTickets(context.Background(), "user-client", ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, active.Total)

	archived, err := fx.service.GetClientArchivedTickets(context.Background(), "user-client", ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, archived.Total)
}

func TestGetUnassignedTicketsExcludesClosedStates(t *testing.T) {
	fx := newTicketFixture(t)
	fx.tickets.add(domain.Ticket{UserID: "user-client", Status: domain.TicketStatusOpen})
	fx.tickets.add(domain.Ticket{UserID: "user-client", Status: domain.TicketStatusResolved})
	fx.tickets.add(domain.Ticket{UserID: "user-client", Status: domain.TicketStatusArchived})

	page, err := fx.service.GetUnassignedTickets(context.Background(), ListOptions{})
	require.NoError(t, err)
	require.Equal(t, 1, page.Total)
	assert.Equal(t, domain.TicketStatusOpen, page.Tickets[0].Status)
}

func TestOpenAttachment(t *testing.T) {
	fx := newTicketFixture(t)
	ticket := fx.tickets.add(domain.Ticket{UserID: "user-client", Status: domain.TicketStatusOpen})

	content := []byte("fake image bytes")
	require.NoError(t, os.WriteFile(filepath.Join(fx.service.uploadDir, "stored.png"), content, 0o644))

	sender := "user-client"
	msg := &domain.TicketMessage{
		TicketID: ticket.ID,
		SenderID: &sender,
		Body:     "see attachment",
		Attachments: []domain.Attachment{
			{Filename: "stored.png", OriginalName: "photo.png", MimeType: "image/png", Size: int64(len(content))},
		},
	}
	require.NoError(t, fx.msgs.Create(context.Background(), msg))

	file, err := fx.service.OpenAttachment(context.Background(), ticket.ID, msg.ID, "stored.png", "user-client", false)
	require.NoError(t, err)
	assert.Equal(t, "photo.png", file.OriginalName)
	assert.Equal(t, "image/png", file.MimeType)
	assert.Equal(t, int64(len(content)), file.Size)

	_, err = fx.service.OpenAttachment(context.Background(), ticket.ID, msg.ID, "other.png", "user-client", false)
	assert.Equal(t, http.StatusNotFound, errStatus(t, err))

	_, err = fx.service.OpenAttachment(context.Background(), ticket.ID, msg.ID, "stored.png", "user-stranger", false)
	assert.Equal(t, http.StatusUnauthorized, errStatus(t, err))
}
