package domain

import "time"

// Session binds a SHA-256 hash of an issued access token to a user. The
// raw token is never stored; lookups hash the presented token first.
type Session struct {
	ID         string
	UserID     string
	TokenHash  string
	DeviceInfo string
	IPAddress  string
	CreatedAt  time.Time
	ExpiresAt  time.Time
}

// Expired reports whether the session is past its expiry.
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// LoginHistory is an append-only record of where a user signed in from.
// A row is written once per distinct (user, ip, device) combination.
type LoginHistory struct {
	ID         string
	UserID     string
	IP         string
	Country    string
	City       string
	ISP        string
	SourceApp  string
	DeviceType string
	DeviceName string
	CreatedAt  time.Time
}
