package dto

import (
	"time"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/service"
)

// CreateTicketRequest opens a ticket. Multipart requests carry the same
// fields as form values plus file parts named "attachments".
type CreateTicketRequest struct {
	Department string `json:"department" form:"department"`
	Category   string `json:"category" form:"category"`
	Subject    string `json:"subject" form:"subject"`
	Message    string `json:"message" form:"message"`
}

// AddMessageRequest appends a thread message.
type AddMessageRequest struct {
	Message string `json:"message" form:"message"`
}

// AssignTicketRequest puts a ticket under a manager.
type AssignTicketRequest struct {
	ManagerID string `json:"managerId"`
}

// ReassignTicketRequest moves a ticket to a different manager.
type ReassignTicketRequest struct {
	ManagerID string  `json:"managerId"`
	Reason    *string `json:"reason"`
	Priority  bool    `json:"priority"`
}

// UpdateStatusRequest changes the ticket lifecycle state.
type UpdateStatusRequest struct {
	Status string `json:"status"`
}

// AttachmentResponse describes one stored upload.
type AttachmentResponse struct {
	Filename     string `json:"filename"`
	OriginalName string `json:"originalName"`
	MimeType     string `json:"mimeType"`
	Size         int64  `json:"size"`
}

// MessageResponse is one thread entry.
type MessageResponse struct {
	ID                string               `json:"id"`
	SenderID          *string              `json:"senderId"`
	Body              string               `json:"body"`
	IsSystemMessage   bool                 `json:"isSystemMessage"`
	SystemMessageType *string              `json:"systemMessageType,omitempty"`
	Attachments       []AttachmentResponse `json:"attachments"`
	CreatedAt         time.Time            `json:"createdAt"`
}

// TicketResponse is the public view of a ticket.
type TicketResponse struct {
	ID            string    `json:"id"`
	UserID        string    `json:"userId"`
	ManagerID     *string   `json:"managerId"`
	Department    string    `json:"department"`
	Category      string    `json:"category"`
	Subject       string    `json:"subject"`
	Status        string    `json:"status"`
	LastMessageAt time.Time `json:"lastMessageAt"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// TicketDetailsResponse bundles a ticket with its thread.
type TicketDetailsResponse struct {
	Ticket   TicketResponse    `json:"ticket"`
	Messages []MessageResponse `json:"messages"`
}

// TicketPageResponse is one listing page with pagination metadata.
type TicketPageResponse struct {
	Tickets     []TicketResponse `json:"tickets"`
	Total       int              `json:"total"`
	Pages       int              `json:"pages"`
	CurrentPage int              `json:"currentPage"`
}

// NewTicketResponse maps a domain ticket.
func NewTicketResponse(t *domain.Ticket) TicketResponse {
	return TicketResponse{
		ID:            t.ID,
		UserID:        t.UserID,
		ManagerID:     t.ManagerID,
		Department:    string(t.Department),
		Category:      t.Category,
		Subject:       t.Subject,
		Status:        string(t.Status),
		LastMessageAt: t.LastMessageAt,
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
	}
}

// NewMessageResponse maps a thread message.
func NewMessageResponse(m *domain.TicketMessage) MessageResponse {
	attachments := make([]AttachmentResponse, 0, len(m.Attachments))
	for _, a := range m.Attachments {
		attachments = append(attachments, AttachmentResponse{
			Filename:     a.Filename,
			OriginalName: a.OriginalName,
			MimeType:     a.MimeType,
			Size:         a.Size,
		})
	}
	var systemType *string
	if m.SystemMessageType != nil {
		s := string(*m.SystemMessageType)
		systemType = &s
	}
	return MessageResponse{
		ID:                m.ID,
		SenderID:          m.SenderID,
		Body:              m.Body,
		IsSystemMessage:   m.IsSystemMessage,
		SystemMessageType: systemType,
		Attachments:       attachments,
		CreatedAt:         m.CreatedAt,
	}
}

// NewTicketDetailsResponse maps a ticket plus thread.
func NewTicketDetailsResponse(d *service.TicketDetails) TicketDetailsResponse {
	messages := make([]MessageResponse, 0, len(d.Messages))
	for i := range d.Messages {
		messages = append(messages, NewMessageResponse(&d.Messages[i]))
	}
	return TicketDetailsResponse{
		Ticket:   NewTicketResponse(d.Ticket),
		Messages: messages,
	}
}

// NewTicketPageResponse maps a listing page.
func NewTicketPageResponse(p *service.TicketPage) TicketPageResponse {
	tickets := make([]TicketResponse, 0, len(p.Tickets))
	for i := range p.Tickets {
		tickets = append(tickets, NewTicketResponse(&p.Tickets[i]))
	}
	return TicketPageResponse{
		Tickets:     tickets,
		Total:       p.Total,
		Pages:       p.Pages,
		CurrentPage: p.CurrentPage,
	}
}
