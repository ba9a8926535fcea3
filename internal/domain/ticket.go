package domain

import (
	"strings"
	"time"
)

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "OPEN"
	TicketStatusInProgress TicketStatus = "IN_PROGRESS"
	TicketStatusResolved   TicketStatus = "RESOLVED"
	TicketStatusArchived   TicketStatus = "ARCHIVED"
)

// legacy data carries an "ACTIVE" status and, in older rows, lower-case
// values. NormalizeStatus maps all of them onto the canonical set.
func NormalizeStatus(raw string) (TicketStatus, bool) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "ACTIVE", "OPEN":
		return TicketStatusOpen, true
	case "IN_PROGRESS":
		return TicketStatusInProgress, true
	case "RESOLVED":
		return TicketStatusResolved, true
	case "ARCHIVED":
		return TicketStatusArchived, true
	}
	return "", false
}

// Terminal reports whether the status forbids assignment and further
// manager-driven status changes.
func (s TicketStatus) Terminal() bool {
	return s == TicketStatusResolved || s == TicketStatusArchived
}

// Department enumerates the support departments a ticket can target.
type Department string

const (
	DepartmentTechnical    Department = "technical_support"
	DepartmentCustomerCare Department = "customer_care"
)

// ParseDepartment validates a raw department string.
func ParseDepartment(raw string) (Department, bool) {
	switch Department(raw) {
	case DepartmentTechnical, DepartmentCustomerCare:
		return Department(raw), true
	}
	return "", false
}

// Ticket is the aggregate for support requests. ManagerID is nil until a
// staff member is assigned.
type Ticket struct {
	ID            string
	UserID        string
	ManagerID     *string
	Department    Department
	Category      string
	Subject       string
	Status        TicketStatus
	LastMessageAt time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Participant reports whether the given user owns the ticket or is its
// assigned manager.
func (t *Ticket) Participant(userID string) bool {
	if t.UserID == userID {
		return true
	}
	return t.ManagerID != nil && *t.ManagerID == userID
}
