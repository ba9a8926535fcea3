package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

// Task type names routed through the queue.
const (
	TypeArchiveInactiveTickets      = "tickets:archive-inactive"
	TypeCleanupExpiredSessions      = "sessions:cleanup-expired"
	TypeNewTicketNotification       = "tickets:new-ticket-notification"
	TypeAssignmentNotification      = "tickets:assignment-notification"
	TypeNewMessageNotification      = "tickets:new-message-notification"
	TypeMarkAllNotificationsRead    = "notifications:mark-all-read"
	TypeMailWelcome                 = "mail:welcome"
	TypeMailVerification            = "mail:verification"
	TypeMailNewDeviceAlert          = "mail:new-device-alert"
	TypeMailForgotPassword          = "mail:forgot-password"
	TypeMailPasswordChanged         = "mail:password-changed"
	TypeMailAccountVerified         = "mail:account-verified"
)

const (
	defaultMaxRetry = 3
	sweepTimeout    = 5 * time.Minute
	// sweepUniqueTTL suppresses duplicate sweep enqueues; overlapping
	// cron fires and manual triggers collapse into one run.
	sweepUniqueTTL = 10 * time.Minute
)

// NewTicketPayload notifies administrators about a freshly opened ticket.
type NewTicketPayload struct {
	TicketID   string `json:"ticketId"`
	UserID     string `json:"userId"`
	Department string `json:"department"`
	Subject    string `json:"subject"`
}

// AssignmentPayload notifies manager and client about an assignment.
type AssignmentPayload struct {
	TicketID  string `json:"ticketId"`
	ManagerID string `json:"managerId"`
	ClientID  string `json:"clientId"`
	Subject   string `json:"subject"`
}

// NewMessagePayload routes a new-message notification to the right party.
type NewMessagePayload struct {
	TicketID     string `json:"ticketId"`
	MessageID    string `json:"messageId"`
	SenderID     string `json:"senderId"`
	IsFromClient bool   `json:"isFromClient"`
}

// MarkAllReadPayload marks every notification of a user as read.
type MarkAllReadPayload struct {
	UserID string `json:"userId"`
}

// MailPayload carries the fields the mail handlers need; unused fields
// stay empty for mail kinds that do not need them.
type MailPayload struct {
	To     string `json:"to"`
	Name   string `json:"name"`
	Token  string `json:"token,omitempty"`
	IP     string `json:"ip,omitempty"`
	Device string `json:"device,omitempty"`
}

// NewArchiveInactiveTicketsTask builds the periodic archive sweep task.
func NewArchiveInactiveTicketsTask() *asynq.Task {
	return asynq.NewTask(TypeArchiveInactiveTickets, nil,
		asynq.MaxRetry(defaultMaxRetry),
		asynq.Timeout(sweepTimeout),
		asynq.Unique(sweepUniqueTTL),
	)
}

// NewCleanupExpiredSessionsTask builds the periodic session cleanup task.
func NewCleanupExpiredSessionsTask() *asynq.Task {
	return asynq.NewTask(TypeCleanupExpiredSessions, nil,
		asynq.MaxRetry(defaultMaxRetry),
		asynq.Unique(sweepUniqueTTL),
	)
}

// NewTicketNotificationTask fans a new-ticket alert out to administrators.
func NewTicketNotificationTask(p NewTicketPayload) (*asynq.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeNewTicketNotification, payload, asynq.MaxRetry(defaultMaxRetry)), nil
}

// NewAssignmentNotificationTask notifies manager and client of an assignment.
func NewAssignmentNotificationTask(p AssignmentPayload) (*asynq.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeAssignmentNotification, payload, asynq.MaxRetry(defaultMaxRetry)), nil
}

// NewMessageNotificationTask routes a thread-message alert.
func NewMessageNotificationTask(p NewMessagePayload) (*asynq.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeNewMessageNotification, payload, asynq.MaxRetry(defaultMaxRetry)), nil
}

// NewMarkAllReadTask marks all notifications of a user as read off the request path.
func NewMarkAllReadTask(p MarkAllReadPayload) (*asynq.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeMarkAllNotificationsRead, payload, asynq.MaxRetry(defaultMaxRetry)), nil
}

// NewMailTask builds a mail delivery task of the given kind.
func NewMailTask(kind string, p MailPayload) (*asynq.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(kind, payload, asynq.MaxRetry(defaultMaxRetry)), nil
}
