package domain

import "time"

// User is the domain model for every account, client and staff alike.
// Accounts are never hard-deleted; deactivation clears IsActive.
type User struct {
	ID           string
	FirstName    string
	LastName     string
	Username     string
	Email        string
	PasswordHash string
	Role         Role

	IsActive     bool
	IsBlocked    bool
	IsSuspicious bool

	EmailVerified            bool
	VerificationTokenHash    *string
	VerificationTokenExpires *time.Time
	ResetTokenHash           *string
	ResetTokenExpires        *time.Time

	LastLoginIP      *string
	LastLoginCountry *string
	LastLoginCity    *string
	LastLoginAt      *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Enabled reports whether the account may authenticate and act.
func (u *User) Enabled() bool {
	return u.IsActive && !u.IsBlocked && !u.IsSuspicious
}

// FullName joins first and last name for notification copy.
func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}
