package domain

import "time"

// SystemMessageType tags automatically generated messages.
type SystemMessageType string

const (
	SystemMessageAssignment  SystemMessageType = "ASSIGNMENT"
	SystemMessageAutoArchive SystemMessageType = "AUTO_ARCHIVE"
)

// Attachment stores file metadata persisted alongside a message. Files
// live on disk under uploads/tickets/ and are resolved by the generated
// Filename, never by a caller-supplied path.
type Attachment struct {
	Filename     string `json:"filename"`
	OriginalName string `json:"originalName"`
	MimeType     string `json:"mimeType"`
	Size         int64  `json:"size"`
	Path         string `json:"path"`
}

// TicketMessage captures one entry in a ticket thread. SenderID is nil
// for system messages. Messages are immutable once written.
type TicketMessage struct {
	ID                string
	TicketID          string
	SenderID          *string
	Body              string
	IsSystemMessage   bool
	SystemMessageType *SystemMessageType
	Attachments       []Attachment
	CreatedAt         time.Time
}
