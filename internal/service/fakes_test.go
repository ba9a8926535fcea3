package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/repository"
)

type fakeQueue struct {
	tasks []*asynq.Task
	err   error
}

func (q *fakeQueue) Enqueue(_ context.Context, task *asynq.Task, _ ...asynq.Option) error {
	if q.err != nil {
		return q.err
	}
	q.tasks = append(q.tasks, task)
	return nil
}

func (q *fakeQueue) typesEnqueued() []string {
	types := make([]string, 0, len(q.tasks))
	for _, t := range q.tasks {
		types = append(types, t.Type())
	}
	return types
}

type fakeUserRepo struct {
	users  map[string]*domain.User
	nextID int
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[string]*domain.User{}}
}

func (r *fakeUserRepo) Create(_ context.Context, user *domain.User) error {
	r.nextID++
	user.ID = fmt.Sprintf("user-%d", r.nextID)
	user.CreatedAt = time.Now()
	copied := *user
	r.users[user.ID] = &copied
	return nil
}

func (r *fakeUserRepo) Update(_ context.Context, user *domain.User) error {
	if _, ok := r.users[user.ID]; !ok {
		return pgx.ErrNoRows
	}
	copied := *user
	r.users[user.ID] = &copied
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	user, ok := r.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *user
	return &copied, nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	for _, user := range r.users {
		if strings.EqualFold(user.Email, email) {
			copied := *user
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeUserRepo) GetByResetTokenHash(_ context.Context, hash string, now time.Time) (*domain.User, error) {
	for _, user := range r.users {
		if user.ResetTokenHash != nil && *user.ResetTokenHash == hash &&
			user.ResetTokenExpires != nil && user.ResetTokenExpires.After(now) {
			copied := *user
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeUserRepo) GetByVerificationTokenHash(_ context.Context, hash string, now time.Time) (*domain.User, error) {
	for _, user := range r.users {
		if user.VerificationTokenHash != nil && *user.VerificationTokenHash == hash &&
			user.VerificationTokenExpires != nil && user.VerificationTokenExpires.After(now) {
			copied := *user
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeUserRepo) ListAdministrators(_ context.Context) ([]domain.User, error) {
	var result []domain.User
	for _, user := range r.users {
		if user.Role.IsAdministrative() {
			result = append(result, *user)
		}
	}
	return result, nil
}

func (r *fakeUserRepo) add(user domain.User) *domain.User {
	r.nextID++
	if user.ID == "" {
		user.ID = fmt.Sprintf("user-%d", r.nextID)
	}
	copied := user
	r.users[user.ID] = &copied
	return &copied
}

type fakeSessionRepo struct {
	sessions map[string]*domain.Session
	nextID   int
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: map[string]*domain.Session{}}
}

func (r *fakeSessionRepo) Create(_ context.Context, session *domain.Session) error {
	r.nextID++
	session.ID = fmt.Sprintf("session-%d", r.nextID)
	session.CreatedAt = time.Now()
	copied := *session
	r.sessions[session.TokenHash] = &copied
	return nil
}

func (r *fakeSessionRepo) GetByTokenHash(_ context.Context, tokenHash string) (*domain.Session, error) {
	session, ok := r.sessions[tokenHash]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *session
	return &copied, nil
}

func (r *fakeSessionRepo) DeleteByTokenHash(_ context.Context, tokenHash string) error {
	delete(r.sessions, tokenHash)
	return nil
}

func (r *fakeSessionRepo) DeleteByUser(_ context.Context, userID string) error {
	for hash, session := range r.sessions {
		if session.UserID == userID {
			delete(r.sessions, hash)
		}
	}
	return nil
}

func (r *fakeSessionRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	var deleted int64
	for hash, session := range r.sessions {
		if session.Expired(now) {
			delete(r.sessions, hash)
			deleted++
		}
	}
	return deleted, nil
}

type fakeLoginHistoryRepo struct {
	entries []domain.LoginHistory
}

func (r *fakeLoginHistoryRepo) Create(_ context.Context, entry *domain.LoginHistory) error {
	entry.ID = fmt.Sprintf("login-%d", len(r.entries)+1)
	entry.CreatedAt = time.Now()
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *fakeLoginHistoryRepo) Exists(_ context.Context, userID, ip, deviceName string) (bool, error) {
	for _, entry := range r.entries {
		if entry.UserID == userID && entry.IP == ip && entry.DeviceName == deviceName {
			return true, nil
		}
	}
	return false, nil
}

type fakeNotificationRepo struct {
	notifications []domain.Notification
}

func (r *fakeNotificationRepo) Create(_ context.Context, n *domain.Notification) error {
	n.ID = fmt.Sprintf("notification-%d", len(r.notifications)+1)
	n.CreatedAt = time.Now()
	r.notifications = append(r.notifications, *n)
	return nil
}

func (r *fakeNotificationRepo) CreateBatch(ctx context.Context, batch []domain.Notification) error {
	for i := range batch {
		if err := r.Create(ctx, &batch[i]); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakeNotificationRepo) ListByUser(_ context.Context, userID string, limit int) ([]domain.Notification, error) {
	var result []domain.Notification
	for i := len(r.notifications) - 1; i >= 0; i-- {
		if r.notifications[i].UserID != userID {
			continue
		}
		result = append(result, r.notifications[i])
		if limit > 0 && len(result) == limit {
			break
		}
	}
	return result, nil
}

func (r *fakeNotificationRepo) GetByID(_ context.Context, userID, id string) (*domain.Notification, error) {
	for _, n := range r.notifications {
		if n.ID == id && n.UserID == userID {
			copied := n
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeNotificationRepo) CountUnread(_ context.Context, userID string) (int, error) {
	count := 0
	for _, n := range r.notifications {
		if n.UserID == userID && !n.Read {
			count++
		}
	}
	return count, nil
}

func (r *fakeNotificationRepo) MarkRead(_ context.Context, userID, id string) error {
	for i := range r.notifications {
		if r.notifications[i].ID == id && r.notifications[i].UserID == userID {
			r.notifications[i].Read = true
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (r *fakeNotificationRepo) MarkAllRead(_ context.Context, userID string) (int64, error) {
	var updated int64
	for i := range r.notifications {
		if r.notifications[i].UserID == userID && !r.notifications[i].Read {
			r.notifications[i].Read = true
			updated++
		}
	}
	return updated, nil
}

func (r *fakeNotificationRepo) forUser(userID string) []domain.Notification {
	var result []domain.Notification
	for _, n := range r.notifications {
		if n.UserID == userID {
			result = append(result, n)
		}
	}
	return result
}

type fakeTicketRepo struct {
	tickets        map[string]*domain.Ticket
	systemMessages []domain.TicketMessage
	nextID         int
}

func newFakeTicketRepo() *fakeTicketRepo {
	return &fakeTicketRepo{tickets: map[string]*domain.Ticket{}}
}

func (r *fakeTicketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	r.nextID++
	ticket.ID = fmt.Sprintf("ticket-%d", r.nextID)
	ticket.CreatedAt = time.Now()
	ticket.UpdatedAt = ticket.CreatedAt
	copied := *ticket
	r.tickets[ticket.ID] = &copied
	return nil
}

func (r *fakeTicketRepo) Update(_ context.Context, ticket *domain.Ticket) error {
	if _, ok := r.tickets[ticket.ID]; !ok {
		return pgx.ErrNoRows
	}
	ticket.UpdatedAt = time.Now()
	copied := *ticket
	r.tickets[ticket.ID] = &copied
	return nil
}

func (r *fakeTicketRepo) UpdateWithSystemMessage(ctx context.Context, ticket *domain.Ticket, msg *domain.TicketMessage) error {
	if err := r.Update(ctx, ticket); err != nil {
		return err
	}
	msg.ID = fmt.Sprintf("system-message-%d", len(r.systemMessages)+1)
	msg.CreatedAt = time.Now()
	r.systemMessages = append(r.systemMessages, *msg)
	return nil
}

func (r *fakeTicketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	ticket, ok := r.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *ticket
	return &copied, nil
}

func (r *fakeTicketRepo) ListWithFilter(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, int, error) {
	var matched []domain.Ticket
	for _, ticket := range r.tickets {
		if filter.UserID != nil && ticket.UserID != *filter.UserID {
			continue
		}
		if filter.ManagerID != nil && (ticket.ManagerID == nil || *ticket.ManagerID != *filter.ManagerID) {
			continue
		}
		if filter.Unassigned && ticket.ManagerID != nil {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, ticket.Status) {
			continue
		}
		matched = append(matched, *ticket)
	}
	return matched, len(matched), nil
}

func (r *fakeTicketRepo) ListInactiveSince(_ context.Context, cutoff time.Time) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for _, ticket := range r.tickets {
		if ticket.Status != domain.TicketStatusArchived && ticket.LastMessageAt.Before(cutoff) {
			result = append(result, *ticket)
		}
	}
	return result, nil
}

func (r *fakeTicketRepo) add(ticket domain.Ticket) *domain.Ticket {
	r.nextID++
	if ticket.ID == "" {
		ticket.ID = fmt.Sprintf("ticket-%d", r.nextID)
	}
	copied := ticket
	r.tickets[ticket.ID] = &copied
	return &copied
}

func containsStatus(statuses []domain.TicketStatus, status domain.TicketStatus) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

type fakeMessageRepo struct {
	messages []domain.TicketMessage
}

func (r *fakeMessageRepo) Create(_ context.Context, msg *domain.TicketMessage) error {
	msg.ID = fmt.Sprintf("message-%d", len(r.messages)+1)
	msg.CreatedAt = time.Now()
	r.messages = append(r.messages, *msg)
	return nil
}

func (r *fakeMessageRepo) GetByID(_ context.Context, ticketID, messageID string) (*domain.TicketMessage, error) {
	for _, msg := range r.messages {
		if msg.ID == messageID && msg.TicketID == ticketID {
			copied := msg
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeMessageRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.TicketMessage, error) {
	var result []domain.TicketMessage
	for _, msg := range r.messages {
		if msg.TicketID == ticketID {
			result = append(result, msg)
		}
	}
	return result, nil
}
