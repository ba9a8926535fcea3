package domain

import "time"

// Notification is an in-app message owned by a single user. Only the
// read flag mutates after creation.
type Notification struct {
	ID        string
	UserID    string
	Title     string
	Message   string
	Read      bool
	CreatedAt time.Time
}
